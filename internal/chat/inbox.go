package chat

import (
	"sort"
	"time"
)

const (
	timerFresh  = "fresh"
	timerBanner = "banner"
)

// Banner is the transient "new message" notice.
type Banner struct {
	Sender    string
	Channel   Channel
	MessageID string
}

// NotificationTracker keeps the per-peer unread flags, the banner and the
// freshness timers of the active store.
type NotificationTracker struct {
	local        string
	unread       map[string]bool // peer -> unread
	banner       *Banner
	store        *MessageStore
	timers       *Timers
	freshWindow  time.Duration
	bannerWindow time.Duration
	emit         func(Signal)
}

func NewNotificationTracker(local string, store *MessageStore, timers *Timers, freshWindow, bannerWindow time.Duration, emit func(Signal)) *NotificationTracker {
	if emit == nil {
		emit = func(Signal) {}
	}
	return &NotificationTracker{
		local:        local,
		unread:       map[string]bool{},
		store:        store,
		timers:       timers,
		freshWindow:  freshWindow,
		bannerWindow: bannerWindow,
		emit:         emit,
	}
}

// Observe handles one live message. stored is the copy kept by the active
// store, or nil when the message went elsewhere; stored messages are never
// unread.
func (n *NotificationTracker) Observe(m Message, active Channel, stored *Message) {
	if m.Sender == n.local {
		return
	}
	ch := m.Channel(n.local)
	if ch.Kind == ChannelDM && stored == nil && !SameChannel(ch, active) {
		n.markUnread(ch.Peer)
	}
	id := ""
	if stored != nil {
		id = stored.ID
		n.markFresh(id)
	}
	n.raiseBanner(Banner{Sender: m.Sender, Channel: ch, MessageID: id})
}

// Notify handles a DM notification from a peer the user is not looking at.
func (n *NotificationTracker) Notify(from string, active Channel) {
	if from == "" || from == n.local {
		return
	}
	ch := DMChannel(from)
	if SameChannel(ch, active) {
		return
	}
	n.markUnread(from)
	n.raiseBanner(Banner{Sender: from, Channel: ch})
}

// Activate clears the unread flag of peer. It reports whether anything
// changed, so repeated activation is a no-op.
func (n *NotificationTracker) Activate(peer string) bool {
	if !n.unread[peer] {
		return false
	}
	n.unread[peer] = false
	n.emit(Signal{Kind: SignalUnreadChanged, Peer: peer})
	return true
}

// KnowPeers adds an entry for every peer not seen before.
func (n *NotificationTracker) KnowPeers(users []User) {
	for _, u := range users {
		if u.Nickname == "" || u.Nickname == n.local {
			continue
		}
		if _, ok := n.unread[u.Nickname]; !ok {
			n.unread[u.Nickname] = false
		}
	}
}

// Reset runs on every channel switch: pending freshness timers would
// otherwise fire against a discarded store.
func (n *NotificationTracker) Reset() {
	n.timers.CancelKind(timerFresh)
	n.timers.Cancel(timerKey{kind: timerBanner})
	if n.banner != nil {
		n.banner = nil
		n.emit(Signal{Kind: SignalBannerCleared})
	}
}

func (n *NotificationTracker) Unread(peer string) bool { return n.unread[peer] }

// UnreadIndex returns a copy of peer -> unread.
func (n *NotificationTracker) UnreadIndex() map[string]bool {
	out := make(map[string]bool, len(n.unread))
	for k, v := range n.unread {
		out[k] = v
	}
	return out
}

// Peers lists known DM peers, sorted.
func (n *NotificationTracker) Peers() []string {
	out := make([]string, 0, len(n.unread))
	for p := range n.unread {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (n *NotificationTracker) Banner() *Banner {
	if n.banner == nil {
		return nil
	}
	b := *n.banner
	return &b
}

func (n *NotificationTracker) markUnread(peer string) {
	if n.unread[peer] {
		return
	}
	n.unread[peer] = true
	n.emit(Signal{Kind: SignalUnreadChanged, Peer: peer})
}

func (n *NotificationTracker) markFresh(id string) {
	if !n.store.SetFresh(id, true) {
		return
	}
	n.timers.Schedule(timerKey{kind: timerFresh, id: id}, n.freshWindow, func() {
		if n.store.SetFresh(id, false) {
			n.emit(Signal{Kind: SignalStoreChanged, Channel: n.store.Channel()})
		}
	})
}

func (n *NotificationTracker) raiseBanner(b Banner) {
	n.banner = &b
	n.emit(Signal{Kind: SignalBanner, Channel: b.Channel, Peer: b.Sender})
	n.timers.Schedule(timerKey{kind: timerBanner}, n.bannerWindow, func() {
		n.banner = nil
		n.emit(Signal{Kind: SignalBannerCleared})
	})
}
