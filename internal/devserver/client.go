package devserver

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/pelusa-v/pelusa-spaces/internal/chat"
	"github.com/pelusa-v/pelusa-spaces/internal/transport"
	"go.uber.org/zap"
)

// Client is one websocket connection as the hub sees it. Name, channel and
// seq are owned by the hub goroutine.
type Client struct {
	ID   string
	Name string
	Conn transport.ConnLike
	Send chan []byte

	channel chat.Channel
	seq     uint64
}

type inbound struct {
	client *Client
	env    transport.Envelope
}

func (h *Hub) readPump(c *Client) {
	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := transport.Decode(data)
		if err != nil {
			h.log.Debug("skipping malformed frame", zap.String("client", c.ID), zap.Error(err))
			continue
		}
		select {
		case h.inbound <- inbound{client: c, env: env}:
		case <-h.done:
			return
		}
	}
}

// WritePump drains Send until the hub closes it, then closes the conn so the
// read side unblocks too.
func (c *Client) WritePump() {
	for data := range c.Send {
		_ = c.Conn.WriteMessage(websocket.TextMessage, data)
	}
	_ = c.Conn.Close()
}
