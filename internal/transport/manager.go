package transport

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	ErrNotConnected  = errors.New("transport: not connected")
	ErrSendQueueFull = errors.New("transport: send queue full")
)

type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

type Options struct {
	Dialer            Dialer
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	SendQueue         int
	Logger            *zap.Logger
}

// Manager owns the persistent event connection. Protocol frames and state
// transitions come out of Events() in the order they happened.
type Manager struct {
	opts Options
	log  *zap.Logger

	mu      sync.Mutex
	state   State
	send    chan []byte // queue of the live connection, nil otherwise
	cancel  context.CancelFunc
	running chan struct{}

	events    chan Envelope
	closed    chan struct{}
	closeOnce sync.Once
}

func NewManager(opts Options) *Manager {
	if opts.Dialer == nil {
		opts.Dialer = WSDialer{}
	}
	if opts.ReconnectAttempts <= 0 {
		opts.ReconnectAttempts = 5
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = time.Second
	}
	if opts.SendQueue <= 0 {
		opts.SendQueue = 16
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Manager{
		opts:   opts,
		log:    opts.Logger.Named("transport"),
		events: make(chan Envelope, 256),
		closed: make(chan struct{}),
	}
}

func (m *Manager) Events() <-chan Envelope { return m.events }

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect starts connecting to endpoint in the background. It is a no-op
// while a previous Connect is still dialing or connected.
func (m *Manager) Connect(ctx context.Context, endpoint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	select {
	case <-m.closed:
		return errors.New("transport: manager closed")
	default:
	}
	if m.cancel != nil {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = make(chan struct{})
	go m.run(runCtx, endpoint, m.running)
	return nil
}

// Emit queues an outbound event without blocking.
func (m *Manager) Emit(event string, seq uint64, data any) error {
	frame, err := Encode(event, seq, data)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Connected || m.send == nil {
		return ErrNotConnected
	}
	select {
	case m.send <- frame:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close tears the connection down and closes Events. Safe to call twice.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		close(m.closed)
		cancel, running := m.cancel, m.running
		m.mu.Unlock()
		if cancel != nil {
			cancel()
			<-running
		}
		close(m.events)
	})
}

func (m *Manager) run(ctx context.Context, endpoint string, running chan struct{}) {
	defer func() {
		m.mu.Lock()
		if m.cancel != nil {
			m.cancel()
		}
		m.cancel = nil
		m.state = Disconnected
		m.mu.Unlock()
		close(running)
	}()

	reconnect := false
	for {
		conn, err := m.dial(ctx, endpoint, reconnect)
		if err != nil {
			if ctx.Err() == nil {
				m.log.Error("giving up on connection", zap.String("endpoint", endpoint), zap.Error(err))
				m.setState(Disconnected)
				m.push(ctx, Envelope{Event: EventReconnectFailed})
			}
			return
		}
		m.serve(ctx, conn)
		if ctx.Err() != nil {
			return
		}
		reconnect = true
	}
}

// dial makes one initial attempt plus ReconnectAttempts retries on first
// connect, and ReconnectAttempts delayed attempts after a drop.
func (m *Manager) dial(ctx context.Context, endpoint string, reconnect bool) (ConnLike, error) {
	m.setState(Connecting)

	retries := m.opts.ReconnectAttempts
	if reconnect {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.opts.ReconnectDelay):
		}
		retries--
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(m.opts.ReconnectDelay), uint64(retries)),
		ctx,
	)

	var conn ConnLike
	op := func() error {
		c, err := m.opts.Dialer.Dial(ctx, endpoint)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}
	notify := func(err error, wait time.Duration) {
		m.log.Warn("dial failed", zap.String("endpoint", endpoint), zap.Duration("retry_in", wait), zap.Error(err))
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, err
	}
	return conn, nil
}

func (m *Manager) serve(ctx context.Context, conn ConnLike) {
	send := make(chan []byte, m.opts.SendQueue)
	m.mu.Lock()
	m.send = send
	m.state = Connected
	m.mu.Unlock()
	m.log.Info("connected")
	m.push(ctx, Envelope{Event: EventConnect})

	connCtx, stop := context.WithCancel(ctx)
	go func() {
		<-connCtx.Done()
		_ = conn.Close()
	}()
	go m.writePump(connCtx, conn, send)
	err := m.readPump(connCtx, conn)
	stop()

	m.mu.Lock()
	m.send = nil
	m.state = Disconnected
	m.mu.Unlock()
	m.log.Info("disconnected", zap.Error(err))
	m.push(ctx, Envelope{Event: EventDisconnect})
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Manager) push(ctx context.Context, env Envelope) bool {
	select {
	case m.events <- env:
		return true
	case <-ctx.Done():
		return false
	}
}
