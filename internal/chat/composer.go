package chat

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

const DefaultMaxImageBytes int64 = 2 << 20

// Attachment is a picked file before encoding.
type Attachment struct {
	Data        []byte
	ContentType string
	Filename    string
}

// Draft is the message being typed. It survives a failed submit.
type Draft struct {
	Text  string
	Image *Attachment
}

func (d *Draft) Clear() {
	d.Text = ""
	d.Image = nil
}

// Sender hands a composed payload to the transport without waiting for
// delivery.
type Sender interface {
	Send(Payload) error
}

type Composer struct {
	maxImageBytes int64
}

func NewComposer(maxImageBytes int64) *Composer {
	if maxImageBytes <= 0 {
		maxImageBytes = DefaultMaxImageBytes
	}
	return &Composer{maxImageBytes: maxImageBytes}
}

// Compose validates the draft and builds the wire payload. A blank draft
// yields ErrEmptyMessage; a bad image yields a *ValidationError.
func (c *Composer) Compose(d Draft) (Payload, error) {
	text := strings.TrimSpace(d.Text)
	if text == "" && d.Image == nil {
		return Payload{}, ErrEmptyMessage
	}
	p := Payload{Content: text}
	if d.Image != nil {
		img, err := c.encodeImage(*d.Image)
		if err != nil {
			return Payload{}, err
		}
		p.Image = img
	}
	return p, nil
}

// Submit composes d and hands it to s. The draft is cleared only once the
// hand-off succeeded.
func (c *Composer) Submit(d *Draft, s Sender) error {
	p, err := c.Compose(*d)
	if err != nil {
		return err
	}
	if err := s.Send(p); err != nil {
		return err
	}
	d.Clear()
	return nil
}

func (c *Composer) encodeImage(a Attachment) (*Image, error) {
	size := int64(len(a.Data))
	if size > c.maxImageBytes {
		return nil, &ValidationError{
			Field:  "image",
			Reason: fmt.Sprintf("%s exceeds the %s limit", humanize.IBytes(uint64(size)), humanize.IBytes(uint64(c.maxImageBytes))),
		}
	}
	ct := strings.ToLower(strings.TrimSpace(a.ContentType))
	if !strings.HasPrefix(ct, "image/") {
		return nil, &ValidationError{Field: "image", Reason: fmt.Sprintf("content type %q is not an image", a.ContentType)}
	}
	return &Image{
		Data:        "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(a.Data),
		ContentType: ct,
		Filename:    a.Filename,
		Size:        size,
	}, nil
}
