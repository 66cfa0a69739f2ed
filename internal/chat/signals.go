package chat

type SignalKind string

const (
	SignalConnection         SignalKind = "connection"
	SignalStateChanged       SignalKind = "state"
	SignalStoreChanged       SignalKind = "store"
	SignalUnreadChanged      SignalKind = "unread"
	SignalBanner             SignalKind = "banner"
	SignalBannerCleared      SignalKind = "banner_cleared"
	SignalPresenceChanged    SignalKind = "presence"
	SignalChannelUnavailable SignalKind = "channel_unavailable"
	SignalReconnectFailed    SignalKind = "reconnect_failed"
)

// Signal tells the UI shell that some observable state moved. It carries
// just enough to decide what to re-read from a Snapshot.
type Signal struct {
	Kind    SignalKind
	Channel Channel
	Peer    string
	Err     error
}
