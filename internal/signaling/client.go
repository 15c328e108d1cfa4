package signaling

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pairline/pairline/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. 64 KB fits any SDP blob.
	maxMessageSize = 64 * 1024
)

// Client wraps a single websocket connection. Its participant id is
// assigned here, at connection time, and is invalidated when the
// connection goes away.
type Client struct {
	id  string
	hub *Hub

	conn *websocket.Conn

	// room is set and cleared by the hub dispatcher only.
	room string

	// send buffers outbound messages for WritePump.
	send chan protocol.Message
}

// NewClient wraps an upgraded websocket connection with a fresh
// participant id.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:   uuid.NewString(),
		hub:  hub,
		conn: conn,
		send: make(chan protocol.Message, 256),
	}
}

// ID returns the participant id assigned to this connection.
func (c *Client) ID() string {
	return c.id
}

// enqueue hands a message to WritePump without blocking the dispatcher.
// A client whose buffer is full loses the message; signaling delivery is
// fire-and-forget.
func (c *Client) enqueue(msg protocol.Message) {
	select {
	case c.send <- msg:
	default:
	}
}

// ReadPump pumps messages from the websocket connection to the hub.
//
// It runs in a per-connection goroutine; all reads happen here so there is
// at most one reader per connection.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg protocol.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug().Err(err).Str("participant", c.id).Msg("read error")
			}
			break
		}
		c.hub.Dispatch(c, msg)
	}
}

// WritePump pumps messages from the hub to the websocket connection and
// keeps the connection alive with periodic pings.
//
// It runs in a per-connection goroutine; all writes happen here so there
// is at most one writer per connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// the hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
