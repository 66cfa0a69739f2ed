package transport

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Transport-level events, delivered in-band with protocol events.
const (
	EventConnect         = "connect"
	EventDisconnect      = "disconnect"
	EventReconnectFailed = "reconnectFailed"
)

// Envelope is the frame exchanged over the event channel. Seq is the
// join/switch sequence number the frame belongs to; zero means untagged.
type Envelope struct {
	Event string          `json:"event"`
	Seq   uint64          `json:"seq,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func Encode(event string, seq uint64, data any) ([]byte, error) {
	env := Envelope{Event: event, Seq: seq}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, errors.Wrapf(err, "encode %s payload", event)
		}
		env.Data = raw
	}
	return json.Marshal(&env)
}

func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, errors.Wrap(err, "decode envelope")
	}
	if env.Event == "" {
		return Envelope{}, errors.New("decode envelope: missing event name")
	}
	return env, nil
}

// Bind unmarshals the envelope payload into v.
func (e Envelope) Bind(v any) error {
	if len(e.Data) == 0 {
		return errors.Errorf("%s: empty payload", e.Event)
	}
	return errors.Wrapf(json.Unmarshal(e.Data, v), "%s payload", e.Event)
}
