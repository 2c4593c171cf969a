package ws

import (
	"encoding/json"

	"github.com/gorilla/websocket"
)

// WritePump drains the client's send channel onto the socket. It exits
// when the hub closes the channel or the write fails.
func (c *Client) WritePump() {
	defer c.Conn.Close()
	for message := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

// ReadPump dispatches each inbound frame to onFrame and unregisters the
// client when the socket dies. Handlers share no state beyond the hub.
func (c *Client) ReadPump(hub *Hub, onFrame func(InboundFrame)) {
	defer func() {
		hub.Unregister <- c
		c.Conn.Close()
	}()
	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			return
		}
		var frame InboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}
		onFrame(frame)
	}
}
