package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageStore_HydrateReplaces(t *testing.T) {
	s := NewMessageStore(time.Second)
	s.Reset(SpaceChannel(Space{ID: "general"}))
	now := time.Now()

	_, ok := s.Append(msg("ben", "live", now))
	require.True(t, ok)
	s.Hydrate([]Message{msg("ana", "one", now), msg("ben", "two", now.Add(time.Minute))})

	got := s.Messages()
	require.Len(t, got, 2)
	assert.Equal(t, "one", got[0].Content)
	assert.Equal(t, "two", got[1].Content)
	for _, m := range got {
		assert.NotEmpty(t, m.ID)
		assert.False(t, m.Fresh)
	}
}

func TestMessageStore_ArrivalOrderKept(t *testing.T) {
	s := NewMessageStore(time.Second)
	now := time.Now()

	s.Append(msg("ben", "later", now.Add(time.Hour)))
	s.Append(msg("ben", "earlier", now))

	got := s.Messages()
	assert.Equal(t, "later", got[0].Content)
	assert.Equal(t, "earlier", got[1].Content)
}

func TestMessageStore_Dedupe(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		next Message
		dup  bool
	}{
		{"same within window", msg("ben", "hi", now.Add(900*time.Millisecond)), true},
		{"earlier within window", msg("ben", "hi", now.Add(-time.Second)), true},
		{"outside window", msg("ben", "hi", now.Add(1100*time.Millisecond)), false},
		{"other sender", msg("cleo", "hi", now), false},
		{"other content", msg("ben", "hi!", now), false},
		{"same text with image", Message{Sender: "ben", Content: "hi", Timestamp: now, Image: &Image{Data: "data:image/png;base64,AA=="}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewMessageStore(time.Second)
			_, ok := s.Append(msg("ben", "hi", now))
			require.True(t, ok)

			_, ok = s.Append(tt.next)
			assert.Equal(t, !tt.dup, ok)
		})
	}
}

func TestMessageStore_SetFreshOnce(t *testing.T) {
	s := NewMessageStore(time.Second)
	m, ok := s.Append(msg("ben", "hi", time.Now()))
	require.True(t, ok)

	assert.True(t, s.SetFresh(m.ID, true))
	assert.False(t, s.SetFresh(m.ID, true))
	assert.True(t, s.Messages()[0].Fresh)
	assert.True(t, s.SetFresh(m.ID, false))
	assert.False(t, s.SetFresh(m.ID, false))
	assert.False(t, s.SetFresh("unknown", true))
}

func TestMessageStore_MessagesAreCopies(t *testing.T) {
	s := NewMessageStore(time.Second)
	s.Append(msg("ben", "hi", time.Now()))

	got := s.Messages()
	got[0].Content = "edited"
	assert.Equal(t, "hi", s.Messages()[0].Content)
}

func TestMessageStore_ResetForgetsIDs(t *testing.T) {
	s := NewMessageStore(time.Second)
	m, _ := s.Append(msg("ben", "hi", time.Now()))

	s.Reset(DMChannel("ben"))
	assert.Zero(t, s.Len())
	assert.False(t, s.SetFresh(m.ID, true))
	assert.Equal(t, "u:ben", s.Channel().Key())
}
