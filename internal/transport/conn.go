package transport

import (
	"context"
	"net/http"

	"github.com/fasthttp/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ConnLike is the subset of a websocket connection the pumps need.
type ConnLike interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(int, []byte) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, endpoint string) (ConnLike, error)
}

// WSDialer dials websocket endpoints. A nil Dialer uses websocket.DefaultDialer.
type WSDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

func (d WSDialer) Dial(ctx context.Context, endpoint string) (ConnLike, error) {
	wd := d.Dialer
	if wd == nil {
		wd = websocket.DefaultDialer
	}
	conn, _, err := wd.DialContext(ctx, endpoint, d.Header)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", endpoint)
	}
	return conn, nil
}

func (m *Manager) readPump(ctx context.Context, conn ConnLike) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		env, err := Decode(data)
		if err != nil {
			m.log.Warn("dropping malformed frame", zap.Error(err))
			continue
		}
		if !m.push(ctx, env) {
			return ctx.Err()
		}
	}
}

func (m *Manager) writePump(ctx context.Context, conn ConnLike, send <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-send:
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				m.log.Warn("write failed, closing connection", zap.Error(err))
				_ = conn.Close()
				return
			}
		}
	}
}
