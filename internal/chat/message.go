package chat

import "time"

// Space is one entry of the REST space directory.
type Space struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedBy   string `json:"createdBy"`
	IsDefault   bool   `json:"isDefault"`
}

// ChannelKind distinguishes group spaces from direct messages.
type ChannelKind string

const (
	ChannelSpace ChannelKind = "space"
	ChannelDM    ChannelKind = "dm"
)

// Channel is either a space or a DM with Peer. Values are replaced on
// switch, never edited.
type Channel struct {
	Kind  ChannelKind `json:"kind"`
	Space Space       `json:"space,omitempty"`
	Peer  string      `json:"peer,omitempty"`
}

func SpaceChannel(s Space) Channel { return Channel{Kind: ChannelSpace, Space: s} }
func DMChannel(peer string) Channel { return Channel{Kind: ChannelDM, Peer: peer} }

func (c Channel) IsZero() bool { return c.Kind == "" }

// Key is g:<space id> or u:<peer>.
func (c Channel) Key() string {
	switch c.Kind {
	case ChannelSpace:
		return "g:" + c.Space.ID
	case ChannelDM:
		return "u:" + c.Peer
	}
	return ""
}

func (c Channel) String() string {
	if c.Kind == ChannelSpace {
		if c.Space.Name != "" {
			return "#" + c.Space.Name
		}
		return "#" + c.Space.ID
	}
	if c.Kind == ChannelDM {
		return "@" + c.Peer
	}
	return "<none>"
}

// Image is an inline attachment; Data is a data URL.
type Image struct {
	Data        string `json:"data"`
	ContentType string `json:"contentType"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
}

type Message struct {
	ID        string    `json:"-"` // local, assigned on arrival
	Sender    string    `json:"sender"`
	Content   string    `json:"content,omitempty"`
	Image     *Image    `json:"image,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Space     string    `json:"space,omitempty"`    // space messages
	Receiver  string    `json:"receiver,omitempty"` // DM messages
	Fresh     bool      `json:"-"`
}

// Channel reports the conversation the message belongs to, seen from local.
func (m Message) Channel(local string) Channel {
	if m.Receiver == "" {
		return SpaceChannel(Space{ID: m.Space})
	}
	if m.Sender == local {
		return DMChannel(m.Receiver)
	}
	return DMChannel(m.Sender)
}

// SameChannel compares by identity only; space metadata may differ.
func SameChannel(a, b Channel) bool {
	return a.Kind == b.Kind && a.Key() == b.Key()
}

// Scope says whether a user list covers one space or the whole relay.
type Scope string

const (
	ScopeSpace  Scope = "space"
	ScopeGlobal Scope = "global"
)

type User struct {
	Nickname string `json:"nickname"`
	Scope    Scope  `json:"scope,omitempty"`
}

// Payload is a composed outgoing message.
type Payload struct {
	Content string `json:"content"`
	Image   *Image `json:"image,omitempty"`
}

// Wire payloads. Names follow the event names on the channel.
const (
	EvJoin        = "join"
	EvChangeSpace = "changeSpace"
	EvStartDM     = "startDM"
	EvCloseDM     = "closeDM"
	EvSendMessage = "sendMessage"

	EvChatHistory    = "chatHistory"
	EvDMHistory      = "dmHistory"
	EvReceiveMessage = "receiveMessage"
	EvReceiveDM      = "receiveDM"
	EvSpaceUsers     = "spaceUsers"
	EvAllUsers       = "allUsers"
	EvNewDMNotice    = "newDMNotification"
	EvUserJoined     = "userJoined"
	EvUserLeft       = "userLeft"
)

type JoinRequest struct {
	Nickname string `json:"nickname"`
	Space    string `json:"space"`
}

type ChangeSpaceRequest struct {
	Space string `json:"space"`
}

type StartDMRequest struct {
	Receiver string `json:"receiver"`
}

type CloseDMRequest struct {
	Space string `json:"space"`
}

type SendMessageRequest struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
	Image   *Image `json:"image,omitempty"`
}

type DMNotice struct {
	From string `json:"from"`
}

type PresenceNotice struct {
	Nickname string `json:"nickname"`
}
