package chat

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	sent []Payload
	err  error
}

func (r *recordingSender) Send(p Payload) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, p)
	return nil
}

func TestComposer_EmptyDraftSendsNothing(t *testing.T) {
	c := NewComposer(0)
	s := &recordingSender{}

	for _, text := range []string{"", "   ", "\n\t "} {
		d := &Draft{Text: text}
		err := c.Submit(d, s)
		assert.True(t, errors.Is(err, ErrEmptyMessage))
		assert.Equal(t, text, d.Text)
	}
	assert.Empty(t, s.sent)
}

func TestComposer_TextIsTrimmed(t *testing.T) {
	c := NewComposer(0)
	s := &recordingSender{}
	d := &Draft{Text: "  hello there \n"}

	require.NoError(t, c.Submit(d, s))
	require.Len(t, s.sent, 1)
	assert.Equal(t, "hello there", s.sent[0].Content)
	assert.Nil(t, s.sent[0].Image)
	assert.Empty(t, d.Text)
}

func TestComposer_ImageEncodedAsDataURL(t *testing.T) {
	c := NewComposer(0)
	raw := []byte{0x89, 'P', 'N', 'G'}

	p, err := c.Compose(Draft{Image: &Attachment{Data: raw, ContentType: "Image/PNG", Filename: "cat.png"}})
	require.NoError(t, err)
	require.NotNil(t, p.Image)
	assert.Empty(t, p.Content)
	assert.Equal(t, "image/png", p.Image.ContentType)
	assert.Equal(t, "cat.png", p.Image.Filename)
	assert.Equal(t, int64(len(raw)), p.Image.Size)
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(raw), p.Image.Data)
}

func TestComposer_OversizedImageRejected(t *testing.T) {
	c := NewComposer(DefaultMaxImageBytes)
	s := &recordingSender{}
	img := &Attachment{Data: bytes.Repeat([]byte{1}, int(DefaultMaxImageBytes)+1), ContentType: "image/jpeg"}
	d := &Draft{Text: "look", Image: img}

	err := c.Submit(d, s)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "image", verr.Field)
	assert.True(t, strings.Contains(verr.Reason, "2.0 MiB"), verr.Reason)
	assert.Empty(t, s.sent)
	assert.Equal(t, "look", d.Text, "draft kept for editing")
	assert.Same(t, img, d.Image)
}

func TestComposer_ImageAtLimitAccepted(t *testing.T) {
	c := NewComposer(16)
	_, err := c.Compose(Draft{Image: &Attachment{Data: make([]byte, 16), ContentType: "image/gif"}})
	assert.NoError(t, err)
}

func TestComposer_NonImageRejected(t *testing.T) {
	c := NewComposer(0)
	_, err := c.Compose(Draft{Image: &Attachment{Data: []byte("%PDF"), ContentType: "application/pdf"}})
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestComposer_DraftKeptWhenSendFails(t *testing.T) {
	c := NewComposer(0)
	s := &recordingSender{err: ErrChannelUnavailable}
	d := &Draft{Text: "hi"}

	err := c.Submit(d, s)
	assert.True(t, errors.Is(err, ErrChannelUnavailable))
	assert.Equal(t, "hi", d.Text)
}
