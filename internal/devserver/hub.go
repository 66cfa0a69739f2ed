package devserver

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pelusa-v/pelusa-spaces/internal/chat"
	"github.com/pelusa-v/pelusa-spaces/internal/transport"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const maxHistory = 500

var errNotJoined = errors.New("client has not joined yet")

// Hub is the relay side of the chat protocol. All client state lives on the
// Run goroutine; connections talk to it through channels.
type Hub struct {
	spaces *Spaces
	log    *zap.Logger
	now    func() time.Time

	register   chan *Client
	unregister chan *Client
	inbound    chan inbound
	done       chan struct{}

	clients map[string]*Client // id -> client
	byName  map[string]*Client // nickname -> client
	history map[string][]chat.Message
	dms     map[string][]chat.Message
}

func NewHub(spaces *Spaces, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		spaces:     spaces,
		log:        log.Named("hub"),
		now:        time.Now,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inbound, 64),
		done:       make(chan struct{}),
		clients:    map[string]*Client{},
		byName:     map[string]*Client{},
		history:    map[string][]chat.Message{},
		dms:        map[string][]chat.Message{},
	}
}

func (h *Hub) Spaces() *Spaces { return h.spaces }

// Run blocks until ctx is done. Every connected client's send queue is
// closed on the way out.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, c := range h.clients {
				close(c.Send)
			}
			h.clients = map[string]*Client{}
			return

		case c := <-h.register:
			h.clients[c.ID] = c
			h.log.Debug("client connected", zap.String("client", c.ID))

		case c := <-h.unregister:
			h.drop(c)

		case in := <-h.inbound:
			if _, ok := h.clients[in.client.ID]; !ok {
				continue
			}
			if err := h.handle(in.client, in.env); err != nil {
				h.log.Warn("request rejected",
					zap.String("client", in.client.ID),
					zap.String("event", in.env.Event),
					zap.Error(err))
			}
		}
	}
}

// Serve runs one connection until it closes.
func (h *Hub) Serve(conn transport.ConnLike) {
	c := &Client{ID: uuid.NewString(), Conn: conn, Send: make(chan []byte, 64)}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}
	go c.WritePump()
	h.readPump(c)
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) drop(c *Client) {
	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	h.leave(c)
	delete(h.clients, c.ID)
	if h.byName[c.Name] == c {
		delete(h.byName, c.Name)
	}
	close(c.Send)
	h.log.Debug("client disconnected", zap.String("client", c.ID), zap.String("nickname", c.Name))
	if c.Name != "" {
		h.broadcastAllUsers()
	}
}

func (h *Hub) handle(c *Client, env transport.Envelope) error {
	if env.Event != chat.EvJoin && c.Name == "" {
		return errNotJoined
	}
	switch env.Event {
	case chat.EvJoin:
		var req chat.JoinRequest
		if err := env.Bind(&req); err != nil {
			return err
		}
		nick := strings.TrimSpace(req.Nickname)
		if nick == "" {
			return &chat.ValidationError{Field: "nickname", Reason: "must not be empty"}
		}
		if c.Name != nick {
			if h.byName[c.Name] == c {
				delete(h.byName, c.Name)
			}
			c.Name = nick
		}
		h.byName[nick] = c
		h.enterSpace(c, req.Space, env.Seq)
		h.broadcastAllUsers()

	case chat.EvChangeSpace:
		var req chat.ChangeSpaceRequest
		if err := env.Bind(&req); err != nil {
			return err
		}
		h.enterSpace(c, req.Space, env.Seq)

	case chat.EvCloseDM:
		var req chat.CloseDMRequest
		if err := env.Bind(&req); err != nil {
			return err
		}
		h.enterSpace(c, req.Space, env.Seq)

	case chat.EvStartDM:
		var req chat.StartDMRequest
		if err := env.Bind(&req); err != nil {
			return err
		}
		peer := strings.TrimSpace(req.Receiver)
		if peer == "" || peer == c.Name {
			return &chat.ValidationError{Field: "receiver", Reason: "must name another user"}
		}
		h.leave(c)
		c.channel = chat.DMChannel(peer)
		c.seq = env.Seq
		h.deliver(c, chat.EvDMHistory, c.seq, h.dmHistory(c.Name, peer))

	case chat.EvSendMessage:
		var req chat.SendMessageRequest
		if err := env.Bind(&req); err != nil {
			return err
		}
		return h.relay(c, req)

	default:
		h.log.Debug("ignoring unknown event", zap.String("event", env.Event))
	}
	return nil
}

// enterSpace moves c into the space with id and answers with history and
// members tagged with seq. Unknown ids are served as empty ad-hoc spaces;
// an empty id means the default space.
func (h *Hub) enterSpace(c *Client, id string, seq uint64) {
	sp, ok := h.spaces.Get(id)
	if !ok {
		sp = chat.Space{ID: normalizeSpace(id), Name: strings.TrimSpace(id)}
	}
	if sp.ID == "" {
		sp = h.spaces.Default()
	}
	h.leave(c)
	c.channel = chat.SpaceChannel(sp)
	c.seq = seq

	h.deliver(c, chat.EvChatHistory, seq, append([]chat.Message{}, h.history[sp.ID]...))
	h.deliver(c, chat.EvSpaceUsers, seq, h.members(sp.ID))
	for _, o := range h.inSpace(sp.ID) {
		if o != c {
			h.deliver(o, chat.EvUserJoined, o.seq, chat.PresenceNotice{Nickname: c.Name})
		}
	}
}

func (h *Hub) leave(c *Client) {
	prev := c.channel
	c.channel = chat.Channel{}
	if prev.Kind != chat.ChannelSpace {
		return
	}
	for _, o := range h.inSpace(prev.Space.ID) {
		h.deliver(o, chat.EvUserLeft, o.seq, chat.PresenceNotice{Nickname: c.Name})
	}
}

func (h *Hub) relay(c *Client, req chat.SendMessageRequest) error {
	content := strings.TrimSpace(req.Content)
	if content == "" && req.Image == nil {
		return chat.ErrEmptyMessage
	}
	msg := chat.Message{
		Sender:    c.Name,
		Content:   content,
		Image:     req.Image,
		Timestamp: h.now().UTC(),
	}

	switch c.channel.Kind {
	case chat.ChannelSpace:
		id := c.channel.Space.ID
		msg.Space = id
		h.history[id] = capped(append(h.history[id], msg))
		for _, o := range h.inSpace(id) {
			h.deliver(o, chat.EvReceiveMessage, o.seq, msg)
		}

	case chat.ChannelDM:
		peer := c.channel.Peer
		msg.Receiver = peer
		key := dmKey(c.Name, peer)
		h.dms[key] = capped(append(h.dms[key], msg))
		h.deliver(c, chat.EvReceiveDM, c.seq, msg)
		p := h.byName[peer]
		if p == nil {
			return nil
		}
		if p.channel.Kind == chat.ChannelDM && p.channel.Peer == c.Name {
			h.deliver(p, chat.EvReceiveDM, p.seq, msg)
		} else {
			h.deliver(p, chat.EvNewDMNotice, 0, chat.DMNotice{From: c.Name})
		}

	default:
		return errors.Wrap(chat.ErrChannelUnavailable, "send message")
	}
	return nil
}

func (h *Hub) broadcastAllUsers() {
	users := make([]chat.User, 0, len(h.byName))
	for name := range h.byName {
		users = append(users, chat.User{Nickname: name, Scope: chat.ScopeGlobal})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Nickname < users[j].Nickname })
	for _, c := range h.clients {
		if c.Name != "" {
			h.deliver(c, chat.EvAllUsers, 0, users)
		}
	}
}

func (h *Hub) inSpace(id string) []*Client {
	var out []*Client
	for _, c := range h.clients {
		if c.channel.Kind == chat.ChannelSpace && c.channel.Space.ID == id {
			out = append(out, c)
		}
	}
	return out
}

func (h *Hub) members(id string) []chat.User {
	users := []chat.User{}
	for _, c := range h.inSpace(id) {
		users = append(users, chat.User{Nickname: c.Name, Scope: chat.ScopeSpace})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Nickname < users[j].Nickname })
	return users
}

func (h *Hub) dmHistory(a, b string) []chat.Message {
	return append([]chat.Message{}, h.dms[dmKey(a, b)]...)
}

// deliver never blocks the hub; a client that cannot keep up misses frames.
func (h *Hub) deliver(c *Client, event string, seq uint64, data any) {
	frame, err := transport.Encode(event, seq, data)
	if err != nil {
		h.log.Error("encode frame", zap.String("event", event), zap.Error(err))
		return
	}
	select {
	case c.Send <- frame:
	default:
		h.log.Warn("client send queue full, dropping frame", zap.String("client", c.ID), zap.String("event", event))
	}
}

func dmKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

func capped(msgs []chat.Message) []chat.Message {
	if len(msgs) > maxHistory {
		return msgs[len(msgs)-maxHistory:]
	}
	return msgs
}
