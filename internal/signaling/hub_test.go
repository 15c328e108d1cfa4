package signaling

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pairline/pairline/internal/protocol"
)

// testClient builds a client without a websocket; tests read its send
// channel directly instead of running the pumps.
func testClient(id string) *Client {
	return &Client{id: id, send: make(chan protocol.Message, 16)}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(zerolog.Nop())
	go h.Run()
	t.Cleanup(h.Stop)
	return h
}

func recv(t *testing.T, c *Client) protocol.Message {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for message to %s", c.id)
		return protocol.Message{}
	}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.send:
		t.Fatalf("unexpected %s to %s", msg.Event, c.id)
	case <-time.After(50 * time.Millisecond):
	}
}

func join(h *Hub, c *Client, room string) {
	h.Register(c)
	h.Dispatch(c, protocol.Message{Event: protocol.EventJoinRoom, Room: room})
}

func TestFirstJoinerGetsNoExistingUsers(t *testing.T) {
	h := startHub(t)
	a := testClient("a")

	join(h, a, "r1")
	assertSilent(t, a)
}

func TestJoinNotifiesBothSides(t *testing.T) {
	h := startHub(t)
	a := testClient("a")
	b := testClient("b")

	join(h, a, "r1")
	join(h, b, "r1")

	got := recv(t, a)
	assert.Equal(t, protocol.EventUserJoined, got.Event)
	assert.Equal(t, "b", got.Sender)

	got = recv(t, b)
	assert.Equal(t, protocol.EventExistingUsers, got.Event)
	assert.Equal(t, []string{"a"}, got.Users)

	// exactly one notification each
	assertSilent(t, a)
	assertSilent(t, b)
}

func TestExistingUsersPreservesJoinOrder(t *testing.T) {
	h := startHub(t)
	a := testClient("a")
	b := testClient("b")
	c := testClient("c")

	join(h, a, "r1")
	join(h, b, "r1")
	recv(t, a) // user-joined b
	recv(t, b) // existing-users

	join(h, c, "r1")
	recv(t, a) // user-joined c
	recv(t, b) // user-joined c

	got := recv(t, c)
	require.Equal(t, protocol.EventExistingUsers, got.Event)
	assert.Equal(t, []string{"a", "b"}, got.Users)
}

func TestDuplicateJoinIgnored(t *testing.T) {
	h := startHub(t)
	a := testClient("a")
	b := testClient("b")

	join(h, a, "r1")
	join(h, b, "r1")
	recv(t, a)
	recv(t, b)

	h.Dispatch(b, protocol.Message{Event: protocol.EventJoinRoom, Room: "r1"})
	assertSilent(t, a)
	assertSilent(t, b)
}

func TestRelayStampsSender(t *testing.T) {
	h := startHub(t)
	a := testClient("a")
	b := testClient("b")

	join(h, a, "r1")
	join(h, b, "r1")
	recv(t, a)
	recv(t, b)

	sdp := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	h.Dispatch(b, protocol.Message{
		Event:  protocol.EventOffer,
		Target: "a",
		Sender: "mallory", // must be overwritten
		SDP:    sdp,
	})

	got := recv(t, a)
	assert.Equal(t, protocol.EventOffer, got.Event)
	assert.Equal(t, "b", got.Sender)
	assert.Equal(t, sdp, got.SDP)
}

func TestRelayToUnknownTargetIsDropped(t *testing.T) {
	h := startHub(t)
	a := testClient("a")

	join(h, a, "r1")
	h.Dispatch(a, protocol.Message{Event: protocol.EventChatMessage, Target: "ghost", Text: "hi"})

	assertSilent(t, a)
}

func TestDisconnectBroadcastsUserLeft(t *testing.T) {
	h := startHub(t)
	a := testClient("a")
	b := testClient("b")

	join(h, a, "r1")
	join(h, b, "r1")
	recv(t, a)
	recv(t, b)

	h.Unregister(b)

	got := recv(t, a)
	assert.Equal(t, protocol.EventUserLeft, got.Event)
	assert.Equal(t, "b", got.Sender)

	// b is gone from every room: relaying to it is now a silent drop
	h.Dispatch(a, protocol.Message{Event: protocol.EventOffer, Target: "b"})
	assertSilent(t, a)
}

func TestExplicitLeaveRoom(t *testing.T) {
	h := startHub(t)
	a := testClient("a")
	b := testClient("b")

	join(h, a, "r1")
	join(h, b, "r1")
	recv(t, a)
	recv(t, b)

	h.Dispatch(b, protocol.Message{Event: protocol.EventLeaveRoom})

	got := recv(t, a)
	assert.Equal(t, protocol.EventUserLeft, got.Event)
	assert.Equal(t, "b", got.Sender)

	// still connected: b may join again
	h.Dispatch(b, protocol.Message{Event: protocol.EventJoinRoom, Room: "r1"})
	got = recv(t, b)
	assert.Equal(t, protocol.EventExistingUsers, got.Event)
	assert.Equal(t, []string{"a"}, got.Users)
}

func TestScreenShareAndChatRelay(t *testing.T) {
	h := startHub(t)
	a := testClient("a")
	b := testClient("b")

	join(h, a, "r1")
	join(h, b, "r1")
	recv(t, a)
	recv(t, b)

	h.Dispatch(a, protocol.Message{
		Event:     protocol.EventScreenICE,
		Target:    "b",
		Candidate: json.RawMessage(`{"candidate":"candidate:1"}`),
	})
	got := recv(t, b)
	assert.Equal(t, protocol.EventScreenICE, got.Event)
	assert.Equal(t, "a", got.Sender)

	h.Dispatch(b, protocol.Message{Event: protocol.EventChatMessage, Target: "a", Text: "hello"})
	got = recv(t, a)
	assert.Equal(t, protocol.EventChatMessage, got.Event)
	assert.Equal(t, "b", got.Sender)
	assert.Equal(t, "hello", got.Text)
}
