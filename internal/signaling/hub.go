// Package signaling implements the server side of the room signaling
// protocol: one hub goroutine owns the room registry and relays typed
// messages between connected participants.
package signaling

import (
	"github.com/rs/zerolog"

	"github.com/pairline/pairline/internal/protocol"
	"github.com/pairline/pairline/internal/registry"
)

// inbound pairs a parsed message with the connection it arrived on.
type inbound struct {
	client *Client
	msg    protocol.Message
}

// Hub routes signaling messages between participants.
//
// All registry mutation and message emission happens on the single Run
// goroutine, so membership changes are linearizable and the registry needs
// no locking. Delivery is fire-and-forget: a target that is mid-disconnect
// simply misses the message and the originating negotiation is torn down by
// the user-left that follows.
type Hub struct {
	registry *registry.Registry
	clients  map[string]*Client

	register   chan *Client
	unregister chan *Client
	inbound    chan inbound
	quit       chan struct{}

	log zerolog.Logger
}

// NewHub creates a hub. Call Run on its own goroutine before registering
// clients.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		registry:   registry.New(),
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inbound, 64),
		quit:       make(chan struct{}),
		log:        log.With().Str("component", "hub").Logger(),
	}
}

// Register adds a connected client to the hub.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.quit:
	}
}

// Unregister removes a client, leaves its room and notifies the remaining
// members. Safe to call multiple times for the same client.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

// Dispatch hands an inbound message to the Run loop.
func (h *Hub) Dispatch(c *Client, msg protocol.Message) {
	select {
	case h.inbound <- inbound{client: c, msg: msg}:
	case <-h.quit:
	}
}

// Stop shuts the hub down and disconnects every client.
func (h *Hub) Stop() {
	close(h.quit)
}

// Run is the hub's dispatcher loop. It is the only goroutine allowed to
// touch the registry or the clients map; each message is processed to
// completion before the next one is picked up.
func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			for id, c := range h.clients {
				delete(h.clients, id)
				close(c.send)
			}
			return

		case c := <-h.register:
			h.clients[c.id] = c
			h.log.Info().Str("participant", c.id).Msg("client connected")

		case c := <-h.unregister:
			if _, ok := h.clients[c.id]; !ok {
				continue
			}
			delete(h.clients, c.id)
			h.leave(c)
			close(c.send)
			h.log.Info().Str("participant", c.id).Msg("client disconnected")

		case in := <-h.inbound:
			h.dispatch(in.client, in.msg)
		}
	}
}

func (h *Hub) dispatch(c *Client, msg protocol.Message) {
	switch {
	case msg.Event == protocol.EventJoinRoom:
		h.join(c, msg.Room)
	case msg.Event == protocol.EventLeaveRoom:
		h.leave(c)
	case msg.Event.PointToPoint():
		h.relay(c, msg)
	default:
		h.log.Warn().Str("event", string(msg.Event)).Str("participant", c.id).Msg("unknown event")
	}
}

// join puts c into room, tells the existing members someone arrived and
// tells c who was already there. The two notifications may race across
// sockets but each is delivered at most once.
func (h *Hub) join(c *Client, room string) {
	if room == "" {
		h.log.Warn().Str("participant", c.id).Msg("join-room without a room id")
		return
	}
	if c.room != "" {
		// one join per connection lifetime; the registry would duplicate us
		h.log.Warn().Str("participant", c.id).Str("room", c.room).Msg("duplicate join-room ignored")
		return
	}

	prior := h.registry.Join(room, c.id)
	c.room = room

	for _, id := range prior {
		if member, ok := h.clients[id]; ok {
			member.enqueue(protocol.Message{Event: protocol.EventUserJoined, Sender: c.id})
		}
	}
	if len(prior) > 0 {
		c.enqueue(protocol.Message{Event: protocol.EventExistingUsers, Users: prior})
	}

	h.log.Info().
		Str("participant", c.id).
		Str("room", room).
		Int("members", len(prior)+1).
		Msg("joined room")
}

// leave removes c from its room and broadcasts user-left to whoever stayed.
// A client that never joined (or already left) is a no-op.
func (h *Hub) leave(c *Client) {
	room, remaining, ok := h.registry.Leave(c.id)
	if !ok {
		return
	}
	c.room = ""

	for _, id := range remaining {
		if member, ok := h.clients[id]; ok {
			member.enqueue(protocol.Message{Event: protocol.EventUserLeft, Sender: c.id})
		}
	}

	h.log.Info().Str("participant", c.id).Str("room", room).Msg("left room")
}

// relay forwards a point-to-point message to its target with the sender
// stamped over whatever the client put there. Unknown targets are dropped
// silently; there is no delivery guarantee at this layer.
func (h *Hub) relay(c *Client, msg protocol.Message) {
	target, ok := h.clients[msg.Target]
	if !ok {
		h.log.Debug().
			Str("event", string(msg.Event)).
			Str("target", msg.Target).
			Msg("target not connected, dropping")
		return
	}
	msg.Sender = c.id
	target.enqueue(msg)
}
