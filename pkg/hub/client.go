package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	writeTimeout  = 10 * time.Second
	idleTimeout   = 60 * time.Second
	keepaliveTick = idleTimeout * 9 / 10

	// Subscribers only send control frames.
	inboundLimit = 4 * 1024

	sendQueue = 64
)

// Client is a single websocket subscriber.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

// Serve registers conn with the hub and streams broadcasts to it until the
// peer disconnects or the hub stops. It blocks for the life of the
// connection, as fiber's websocket handler requires.
func Serve(h *Hub, conn *websocket.Conn) {
	c := &Client{hub: h, conn: conn, send: make(chan Message, sendQueue)}
	if !h.add(c) {
		conn.Close()
		return
	}

	go c.forward()
	c.drain()
}

// drain discards inbound frames so pongs and close frames are processed,
// and unregisters the client once the peer goes away.
func (c *Client) drain() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	extend := func() { c.conn.SetReadDeadline(time.Now().Add(idleTimeout)) }

	c.conn.SetReadLimit(inboundLimit)
	extend()
	c.conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// forward owns all writes on the connection.
func (c *Client) forward() {
	keepalive := time.NewTicker(keepaliveTick)
	defer func() {
		keepalive.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				write(websocket.CloseMessage, nil)
				return
			}
			kind := websocket.TextMessage
			if msg.Type == BinaryMessage {
				kind = websocket.BinaryMessage
			}
			if err := write(kind, msg.Data); err != nil {
				return
			}

		case <-keepalive.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
