package chat

import (
	"context"

	"github.com/pelusa-v/pelusa-spaces/internal/transport"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var ErrSessionClosed = errors.New("session closed")

type ManagerOptions struct {
	SessionOptions
	Events       <-chan transport.Envelope
	SignalBuffer int
}

// Manager runs the session's event loop. Transport events, UI commands and
// timer firings are handled one at a time on the Run goroutine, in the order
// they arrive; nothing else touches the Session.
type Manager struct {
	session  *Session
	events   <-chan transport.Envelope
	commands chan func(*Session)
	signals  chan Signal
	log      *zap.Logger
	done     chan struct{}
}

func NewManager(opts ManagerOptions) *Manager {
	if opts.SignalBuffer <= 0 {
		opts.SignalBuffer = 64
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	m := &Manager{
		events:   opts.Events,
		commands: make(chan func(*Session), 64),
		signals:  make(chan Signal, opts.SignalBuffer),
		log:      opts.Logger.Named("loop"),
		done:     make(chan struct{}),
	}
	so := opts.SessionOptions
	so.Signals = m.publish
	m.session = NewSession(so)
	return m
}

func (m *Manager) Signals() <-chan Signal { return m.signals }

func (m *Manager) Nickname() string { return m.session.Nickname() }

// Run blocks until ctx is done or the event stream closes.
func (m *Manager) Run(ctx context.Context) error {
	defer close(m.done)
	defer m.session.Close()

	timers := m.session.Timers()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case env, ok := <-m.events:
			if !ok {
				m.log.Info("event stream closed")
				return nil
			}
			if err := m.session.HandleEvent(env); err != nil && !errors.Is(err, ErrStaleEvent) {
				m.log.Warn("event rejected", zap.String("event", env.Event), zap.Error(err))
			}

		case cmd := <-m.commands:
			cmd(m.session)

		case f := <-timers.Fired():
			timers.Run(f)
		}
	}
}

// Do queues fn for the loop and returns without waiting for it.
func (m *Manager) Do(fn func(*Session)) error {
	select {
	case <-m.done:
		return ErrSessionClosed
	default:
	}
	select {
	case m.commands <- fn:
		return nil
	case <-m.done:
		return ErrSessionClosed
	}
}

// Call queues fn and waits until the loop ran it.
func (m *Manager) Call(ctx context.Context, fn func(*Session)) error {
	ran := make(chan struct{})
	if err := m.Do(func(s *Session) {
		fn(s)
		close(ran)
	}); err != nil {
		return err
	}
	select {
	case <-ran:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return ErrSessionClosed
	}
}

// Done is closed once Run returned.
func (m *Manager) Done() <-chan struct{} { return m.done }

func (m *Manager) publish(sig Signal) {
	select {
	case m.signals <- sig:
	default:
		m.log.Debug("signal dropped, consumer is behind", zap.String("kind", string(sig.Kind)))
	}
}
