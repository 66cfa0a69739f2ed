package chat

import (
	"time"

	"github.com/pelusa-v/pelusa-spaces/internal/transport"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// SessionState tracks whether the active channel has been confirmed.
type SessionState string

const (
	StateIdle    SessionState = "idle"
	StateJoining SessionState = "joining"
	StateActive  SessionState = "active"
)

// Emitter is the outbound half of the event channel.
type Emitter interface {
	Emit(event string, seq uint64, data any) error
}

// SessionOptions configures a Session. Zero windows take their defaults.
type SessionOptions struct {
	Nickname     string
	Transport    Emitter
	Timers       *Timers
	DefaultSpace func() Space
	FreshWindow  time.Duration
	BannerWindow time.Duration
	DedupeWindow time.Duration
	Signals      func(Signal)
	Logger       *zap.Logger
}

type request struct {
	event string
	data  any
}

// Session is the channel state machine. It is not safe for concurrent use:
// Manager.Run is the only caller once a session is live.
type Session struct {
	nickname     string
	transport    Emitter
	timers       *Timers
	store        *MessageStore
	tracker      *NotificationTracker
	defaultSpace func() Space
	emit         func(Signal)
	log          *zap.Logger

	state     SessionState
	active    Channel
	lastSpace Channel // target of CloseDM and of the server-side join
	via       string  // request kind that produced the active channel
	seq       uint64
	joined    bool
	connected bool

	spaceUsers []User
	allUsers   []User
}

func NewSession(opts SessionOptions) *Session {
	if opts.Timers == nil {
		opts.Timers = NewTimers(nil)
	}
	if opts.Signals == nil {
		opts.Signals = func(Signal) {}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.FreshWindow <= 0 {
		opts.FreshWindow = 2 * time.Second
	}
	if opts.BannerWindow <= 0 {
		opts.BannerWindow = 3 * time.Second
	}
	if opts.DedupeWindow <= 0 {
		opts.DedupeWindow = time.Second
	}
	if opts.DefaultSpace == nil {
		opts.DefaultSpace = func() Space { return Space{ID: "general", Name: "general"} }
	}
	s := &Session{
		nickname:     opts.Nickname,
		transport:    opts.Transport,
		timers:       opts.Timers,
		store:        NewMessageStore(opts.DedupeWindow),
		defaultSpace: opts.DefaultSpace,
		emit:         opts.Signals,
		log:          opts.Logger.Named("session").With(zap.String("nickname", opts.Nickname)),
		state:        StateIdle,
	}
	s.tracker = NewNotificationTracker(opts.Nickname, s.store, opts.Timers, opts.FreshWindow, opts.BannerWindow, opts.Signals)
	return s
}

func (s *Session) Nickname() string              { return s.nickname }
func (s *Session) State() SessionState           { return s.state }
func (s *Session) Active() Channel               { return s.active }
func (s *Session) Seq() uint64                   { return s.seq }
func (s *Session) Store() *MessageStore          { return s.store }
func (s *Session) Tracker() *NotificationTracker { return s.tracker }
func (s *Session) Timers() *Timers               { return s.timers }

// Join enters ch from any state.
func (s *Session) Join(ch Channel) {
	if ch.IsZero() {
		ch = SpaceChannel(s.defaultSpace())
	}
	s.switchTo(ch, EvJoin)
}

func (s *Session) ChangeSpace(space Space) {
	ch := SpaceChannel(space)
	if SameChannel(ch, s.active) {
		return
	}
	s.switchTo(ch, EvChangeSpace)
}

func (s *Session) StartDM(peer string) error {
	if peer == "" || peer == s.nickname {
		return &ValidationError{Field: "peer", Reason: "must name another user"}
	}
	ch := DMChannel(peer)
	if SameChannel(ch, s.active) {
		return nil
	}
	s.switchTo(ch, EvStartDM)
	return nil
}

// CloseDM leaves the active DM and goes back to the last space.
func (s *Session) CloseDM() error {
	if s.active.Kind != ChannelDM {
		return errors.New("no direct message is open")
	}
	back := s.lastSpace
	if back.IsZero() {
		back = SpaceChannel(s.defaultSpace())
	}
	s.switchTo(back, EvCloseDM)
	return nil
}

// Retry re-issues the pending switch request under a fresh sequence number.
func (s *Session) Retry() {
	if s.state != StateJoining {
		return
	}
	s.send()
}

// Send transmits a composed payload to the active channel, fire-and-forget.
func (s *Session) Send(p Payload) error {
	if s.active.IsZero() {
		return errors.Wrap(ErrChannelUnavailable, "send message")
	}
	req := SendMessageRequest{Sender: s.nickname, Content: p.Content, Image: p.Image}
	return errors.Wrap(s.transport.Emit(EvSendMessage, 0, req), "send message")
}

func (s *Session) Close() { s.timers.Stop() }

// switchTo applies a channel switch locally and synchronously, then emits
// the request. Nothing waits for the server.
func (s *Session) switchTo(ch Channel, via string) {
	s.active = ch
	s.via = via
	if ch.Kind == ChannelSpace {
		s.lastSpace = ch
	}
	s.state = StateJoining
	s.store.Reset(ch)
	s.tracker.Reset()
	s.spaceUsers = nil
	if ch.Kind == ChannelDM {
		s.tracker.Activate(ch.Peer)
	}
	s.log.Debug("switching channel", zap.Stringer("channel", ch), zap.String("via", via))
	s.emit(Signal{Kind: SignalStateChanged, Channel: ch})
	s.emit(Signal{Kind: SignalStoreChanged, Channel: ch})
	s.send()
}

// requests lists what the server has to see for the active channel. Until
// a join went out on this connection, a join for the last space comes
// first; its reply is stale by the time it lands when a DM follows.
func (s *Session) requests() []request {
	space := s.lastSpace
	if space.IsZero() {
		space = SpaceChannel(s.defaultSpace())
	}
	if !s.joined || s.via == EvJoin {
		reqs := []request{{EvJoin, JoinRequest{Nickname: s.nickname, Space: space.Space.ID}}}
		if s.active.Kind == ChannelDM {
			reqs = append(reqs, request{EvStartDM, StartDMRequest{Receiver: s.active.Peer}})
		}
		return reqs
	}
	switch s.via {
	case EvStartDM:
		return []request{{EvStartDM, StartDMRequest{Receiver: s.active.Peer}}}
	case EvCloseDM:
		return []request{{EvCloseDM, CloseDMRequest{Space: space.Space.ID}}}
	default:
		return []request{{EvChangeSpace, ChangeSpaceRequest{Space: space.Space.ID}}}
	}
}

func (s *Session) send() {
	for _, r := range s.requests() {
		s.seq++
		if err := s.transport.Emit(r.event, s.seq, r.data); err != nil {
			s.log.Warn("channel request failed", zap.String("event", r.event), zap.Uint64("seq", s.seq), zap.Error(err))
			s.emit(Signal{
				Kind:    SignalChannelUnavailable,
				Channel: s.active,
				Err:     errors.Wrapf(ErrChannelUnavailable, "%s %s: %v", r.event, s.active, err),
			})
			return
		}
		if r.event == EvJoin {
			s.joined = true
		}
	}
}

// HandleEvent applies one inbound event. Stale events return ErrStaleEvent
// and leave state untouched.
func (s *Session) HandleEvent(env transport.Envelope) error {
	switch env.Event {
	case transport.EventConnect:
		s.connected = true
		s.emit(Signal{Kind: SignalConnection})
		if !s.joined {
			s.rejoin()
		}
		return nil
	case transport.EventDisconnect:
		s.connected = false
		s.joined = false
		s.emit(Signal{Kind: SignalConnection})
		return nil
	case transport.EventReconnectFailed:
		s.emit(Signal{Kind: SignalReconnectFailed})
		return nil
	case EvChatHistory, EvDMHistory:
		return s.onHistory(env)
	case EvReceiveMessage, EvReceiveDM:
		return s.onLive(env)
	case EvSpaceUsers:
		return s.onSpaceUsers(env)
	case EvAllUsers:
		return s.onAllUsers(env)
	case EvUserJoined, EvUserLeft:
		return s.onPresence(env)
	case EvNewDMNotice:
		var n DMNotice
		if err := env.Bind(&n); err != nil {
			return err
		}
		s.tracker.KnowPeers([]User{{Nickname: n.From, Scope: ScopeGlobal}})
		s.tracker.Notify(n.From, s.active)
		return nil
	}
	s.log.Debug("ignoring unknown event", zap.String("event", env.Event))
	return nil
}

// rejoin runs on a Connected transition while not joined: back to the last
// active channel, or the default space on first connect.
func (s *Session) rejoin() {
	target := s.active
	if target.IsZero() {
		target = SpaceChannel(s.defaultSpace())
	}
	s.switchTo(target, EvJoin)
}

func (s *Session) current(env transport.Envelope) error {
	if env.Seq != s.seq {
		s.log.Debug("discarding stale event", zap.String("event", env.Event), zap.Uint64("seq", env.Seq), zap.Uint64("current", s.seq))
		return ErrStaleEvent
	}
	return nil
}

func (s *Session) onHistory(env transport.Envelope) error {
	if err := s.current(env); err != nil {
		return err
	}
	want := ChannelSpace
	if env.Event == EvDMHistory {
		want = ChannelDM
	}
	if s.active.Kind != want {
		return ErrStaleEvent
	}
	var batch []Message
	if err := env.Bind(&batch); err != nil {
		return err
	}
	s.store.Hydrate(batch)
	s.state = StateActive
	s.emit(Signal{Kind: SignalStateChanged, Channel: s.active})
	s.emit(Signal{Kind: SignalStoreChanged, Channel: s.active})
	return nil
}

// onLive appends a live message to the active store. A current seq tag
// places the message in the active channel whatever its payload says;
// untagged deliveries are routed by channel key.
func (s *Session) onLive(env transport.Envelope) error {
	tagged := env.Seq != 0
	if tagged {
		if err := s.current(env); err != nil {
			return err
		}
	}
	var m Message
	if err := env.Bind(&m); err != nil {
		return err
	}
	want := ChannelSpace
	if env.Event == EvReceiveDM {
		want = ChannelDM
	}
	inActive := tagged && s.active.Kind == want
	if env.Event == EvReceiveMessage && s.active.Kind == ChannelSpace && (inActive || m.Space == "") {
		m.Space = s.active.Space.ID
	}
	m.ID = ""
	m.Fresh = false

	var stored *Message
	if inActive || SameChannel(m.Channel(s.nickname), s.active) {
		cp, ok := s.store.Append(m)
		if !ok {
			s.log.Debug("dropping duplicate delivery", zap.String("sender", m.Sender))
			return nil
		}
		stored = &cp
		s.emit(Signal{Kind: SignalStoreChanged, Channel: s.active})
	}
	if m.Receiver != "" {
		s.tracker.KnowPeers([]User{{Nickname: m.Sender}, {Nickname: m.Receiver}})
	}
	s.tracker.Observe(m, s.active, stored)
	return nil
}

func (s *Session) onSpaceUsers(env transport.Envelope) error {
	if err := s.current(env); err != nil {
		return err
	}
	var users []User
	if err := env.Bind(&users); err != nil {
		return err
	}
	for i := range users {
		users[i].Scope = ScopeSpace
	}
	s.spaceUsers = users
	s.tracker.KnowPeers(users)
	s.emit(Signal{Kind: SignalPresenceChanged, Channel: s.active})
	return nil
}

func (s *Session) onAllUsers(env transport.Envelope) error {
	var users []User
	if err := env.Bind(&users); err != nil {
		return err
	}
	for i := range users {
		users[i].Scope = ScopeGlobal
	}
	s.allUsers = users
	s.tracker.KnowPeers(users)
	s.emit(Signal{Kind: SignalPresenceChanged})
	return nil
}

func (s *Session) onPresence(env transport.Envelope) error {
	if env.Seq != 0 {
		if err := s.current(env); err != nil {
			return err
		}
	}
	var p PresenceNotice
	if err := env.Bind(&p); err != nil {
		return err
	}
	kept := s.spaceUsers[:0]
	for _, u := range s.spaceUsers {
		if u.Nickname != p.Nickname {
			kept = append(kept, u)
		}
	}
	s.spaceUsers = kept
	if env.Event == EvUserJoined {
		s.spaceUsers = append(s.spaceUsers, User{Nickname: p.Nickname, Scope: ScopeSpace})
		s.tracker.KnowPeers([]User{{Nickname: p.Nickname}})
	}
	s.emit(Signal{Kind: SignalPresenceChanged, Channel: s.active})
	return nil
}

// Snapshot is a copy of everything the UI renders.
type Snapshot struct {
	Nickname   string
	State      SessionState
	Connected  bool
	Joined     bool
	Channel    Channel
	Seq        uint64
	Messages   []Message
	Unread     map[string]bool
	Peers      []string
	Banner     *Banner
	SpaceUsers []User
	AllUsers   []User
}

func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		Nickname:   s.nickname,
		State:      s.state,
		Connected:  s.connected,
		Joined:     s.joined,
		Channel:    s.active,
		Seq:        s.seq,
		Messages:   s.store.Messages(),
		Unread:     s.tracker.UnreadIndex(),
		Peers:      s.tracker.Peers(),
		Banner:     s.tracker.Banner(),
		SpaceUsers: append([]User(nil), s.spaceUsers...),
		AllUsers:   append([]User(nil), s.allUsers...),
	}
}
