package chat

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pelusa-v/pelusa-spaces/internal/transport"
	"github.com/stretchr/testify/require"
)

type emitted struct {
	event string
	seq   uint64
	data  any
}

// fakeTransport records emitted events; fail makes every Emit fail.
type fakeTransport struct {
	calls []emitted
	fail  error
}

func (f *fakeTransport) Emit(event string, seq uint64, data any) error {
	if f.fail != nil {
		return f.fail
	}
	f.calls = append(f.calls, emitted{event: event, seq: seq, data: data})
	return nil
}

func (f *fakeTransport) last() emitted {
	if len(f.calls) == 0 {
		return emitted{}
	}
	return f.calls[len(f.calls)-1]
}

type signalLog struct {
	got []Signal
}

func (l *signalLog) record(s Signal) { l.got = append(l.got, s) }

func (l *signalLog) count(kind SignalKind) int {
	n := 0
	for _, s := range l.got {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

type harness struct {
	session *Session
	net     *fakeTransport
	clock   *clock.Mock
	signals *signalLog
}

func newHarness(t *testing.T, nickname string) *harness {
	t.Helper()
	h := &harness{net: &fakeTransport{}, clock: clock.NewMock(), signals: &signalLog{}}
	h.session = NewSession(SessionOptions{
		Nickname:     nickname,
		Transport:    h.net,
		Timers:       NewTimers(h.clock),
		DefaultSpace: func() Space { return Space{ID: "general", Name: "general", IsDefault: true} },
		FreshWindow:  2 * time.Second,
		BannerWindow: 3 * time.Second,
		DedupeWindow: time.Second,
		Signals:      h.signals.record,
	})
	t.Cleanup(h.session.Close)
	return h
}

func envelope(t *testing.T, event string, seq uint64, data any) transport.Envelope {
	t.Helper()
	frame, err := transport.Encode(event, seq, data)
	require.NoError(t, err)
	env, err := transport.Decode(frame)
	require.NoError(t, err)
	return env
}

func (h *harness) deliver(t *testing.T, event string, seq uint64, data any) error {
	t.Helper()
	return h.session.HandleEvent(envelope(t, event, seq, data))
}

// connectActive connects and acknowledges the initial join.
func (h *harness) connectActive(t *testing.T, history ...Message) {
	t.Helper()
	require.NoError(t, h.deliver(t, transport.EventConnect, 0, nil))
	if history == nil {
		history = []Message{}
	}
	require.NoError(t, h.deliver(t, EvChatHistory, h.session.Seq(), history))
	require.Equal(t, StateActive, h.session.State())
}

// advance moves the mock clock and runs whatever timers fired, the way the
// manager loop would.
func (h *harness) advance(d time.Duration) {
	h.clock.Add(d)
	timers := h.session.Timers()
	for {
		select {
		case f := <-timers.Fired():
			timers.Run(f)
		case <-time.After(50 * time.Millisecond):
			return
		}
	}
}

func msg(sender, content string, at time.Time) Message {
	return Message{Sender: sender, Content: content, Timestamp: at}
}

func spaceMsg(space, sender, content string, at time.Time) Message {
	m := msg(sender, content, at)
	m.Space = space
	return m
}

func dmMsg(sender, receiver, content string, at time.Time) Message {
	m := msg(sender, content, at)
	m.Receiver = receiver
	return m
}
