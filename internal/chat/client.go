package chat

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// SpaceLookup resolves space ids against the directory cache.
type SpaceLookup interface {
	Lookup(id string) (Space, bool)
}

// Client is the handle the UI shell holds. Every method is safe from any
// goroutine; channel switches return as soon as they are queued.
type Client struct {
	manager  *Manager
	composer *Composer
	spaces   SpaceLookup
	log      *zap.Logger
}

func NewClient(m *Manager, composer *Composer, spaces SpaceLookup, log *zap.Logger) *Client {
	if composer == nil {
		composer = NewComposer(0)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{manager: m, composer: composer, spaces: spaces, log: log.Named("client")}
}

func (c *Client) Nickname() string { return c.manager.Nickname() }

func (c *Client) Signals() <-chan Signal { return c.manager.Signals() }

func (c *Client) Join(ch Channel) error {
	return c.manager.Do(func(s *Session) { s.Join(ch) })
}

// ChangeSpace switches to the space with id; ids missing from the cache
// are still attempted, named after the id.
func (c *Client) ChangeSpace(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return &ValidationError{Field: "space", Reason: "must not be empty"}
	}
	space := Space{ID: id, Name: id}
	if c.spaces != nil {
		if sp, ok := c.spaces.Lookup(id); ok {
			space = sp
		}
	}
	return c.manager.Do(func(s *Session) { s.ChangeSpace(space) })
}

func (c *Client) StartDM(peer string) error {
	peer = strings.TrimSpace(peer)
	if peer == "" || peer == c.Nickname() {
		return &ValidationError{Field: "peer", Reason: "must name another user"}
	}
	return c.manager.Do(func(s *Session) {
		if err := s.StartDM(peer); err != nil {
			c.log.Warn("start dm", zap.Error(err))
		}
	})
}

func (c *Client) CloseDM() error {
	return c.manager.Do(func(s *Session) {
		if err := s.CloseDM(); err != nil {
			c.log.Debug("close dm", zap.Error(err))
		}
	})
}

// Retry re-issues a switch that failed with SignalChannelUnavailable.
func (c *Client) Retry() error {
	return c.manager.Do(func(s *Session) { s.Retry() })
}

// Send implements Sender. It waits for the loop to hand the payload to the
// transport, never for delivery.
func (c *Client) Send(p Payload) error {
	var sendErr error
	if err := c.manager.Call(context.Background(), func(s *Session) { sendErr = s.Send(p) }); err != nil {
		return err
	}
	return sendErr
}

// Submit validates and sends the draft, clearing it on success.
func (c *Client) Submit(d *Draft) error {
	return c.composer.Submit(d, c)
}

func (c *Client) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := c.manager.Call(ctx, func(s *Session) { snap = s.Snapshot() })
	return snap, err
}
