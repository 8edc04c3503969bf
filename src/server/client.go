package server

import (
	"time"

	"github.com/gorilla/websocket"
)

// Console link limits. A console that stops answering pings for
// consoleIdleTimeout is detached.
const (
	writeWait          = 2 * time.Second
	consoleIdleTimeout = 60 * time.Second
	pingPeriod         = consoleIdleTimeout * 9 / 10
	maxCommandSize     = 64 * 1024
	consoleQueueSize   = 256
)

// -----------------------------------------------------------------------------

// Client is one operator console attached to the live channel. The hub owns
// send and is the only goroutine that closes it.
type Client struct {
	hub  *ControlServer
	conn *websocket.Conn
	addr string
	send chan interface{}
}

func newClient(hub *ControlServer, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		addr: conn.RemoteAddr().String(),
		send: make(chan interface{}, consoleQueueSize),
	}
}

// -----------------------------------------------------------------------------

// readCommands hands operator commands to the hub until the console leaves
// or goes quiet.
func (c *Client) readCommands() {
	defer c.detach()

	c.conn.SetReadLimit(maxCommandSize)
	c.conn.SetReadDeadline(time.Now().Add(consoleIdleTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(consoleIdleTimeout))
		return nil
	})

	for {
		kind, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.Logger.Info("Console %s closed: %v", c.addr, err)
			}
			return
		}
		if kind != websocket.TextMessage {
			c.hub.Logger.Debug("Console %s sent a non-text frame, ignored", c.addr)
			continue
		}
		c.hub.HandleClientMessage(c, message)
	}
}

func (c *Client) detach() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
	c.conn.Close()
	c.hub.Logger.Debug("Console %s detached", c.addr)
}

// -----------------------------------------------------------------------------

// writeUpdates pushes acquisition state queued by the hub and pings the console.
func (c *Client) writeUpdates() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case state, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(state); err != nil {
				c.hub.Logger.Warning("Dropping console %s: %v", c.addr, err)
				return
			}

		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
