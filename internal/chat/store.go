package chat

import (
	"time"

	"github.com/google/uuid"
)

// MessageStore is the ordered log of the active channel. Order is arrival
// order; nothing is ever re-sorted by timestamp.
type MessageStore struct {
	channel      Channel
	messages     []*Message
	byID         map[string]*Message
	dedupeWindow time.Duration
}

func NewMessageStore(dedupeWindow time.Duration) *MessageStore {
	return &MessageStore{
		byID:         map[string]*Message{},
		dedupeWindow: dedupeWindow,
	}
}

// Reset discards the log and rebinds the store to ch.
func (s *MessageStore) Reset(ch Channel) {
	s.channel = ch
	s.messages = nil
	s.byID = map[string]*Message{}
}

func (s *MessageStore) Channel() Channel { return s.channel }

// Hydrate replaces the whole log with a history batch.
func (s *MessageStore) Hydrate(batch []Message) {
	s.messages = make([]*Message, 0, len(batch))
	s.byID = make(map[string]*Message, len(batch))
	for i := range batch {
		m := batch[i]
		m.Fresh = false
		s.add(&m)
	}
}

// Append adds one live message unless it duplicates an entry already in
// the log. The returned copy carries the local ID timers are keyed on.
func (s *MessageStore) Append(m Message) (Message, bool) {
	if s.isDuplicate(m) {
		return Message{}, false
	}
	s.add(&m)
	return m, true
}

// SetFresh clears or sets the freshness flag of a stored message.
func (s *MessageStore) SetFresh(id string, fresh bool) bool {
	m, ok := s.byID[id]
	if !ok || m.Fresh == fresh {
		return false
	}
	m.Fresh = fresh
	return true
}

func (s *MessageStore) Len() int { return len(s.messages) }

// Messages returns a copy of the log.
func (s *MessageStore) Messages() []Message {
	out := make([]Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = *m
	}
	return out
}

func (s *MessageStore) add(m *Message) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	s.messages = append(s.messages, m)
	s.byID[m.ID] = m
}

// isDuplicate matches on sender and content with timestamps inside the
// dedupe window; redelivery after a reconnect looks exactly like this.
// An attached image counts as part of the content.
func (s *MessageStore) isDuplicate(m Message) bool {
	for _, e := range s.messages {
		if e.Sender != m.Sender || e.Content != m.Content || !sameImage(e.Image, m.Image) {
			continue
		}
		d := e.Timestamp.Sub(m.Timestamp)
		if d < 0 {
			d = -d
		}
		if d <= s.dedupeWindow {
			return true
		}
	}
	return false
}

func sameImage(a, b *Image) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
