package protocol

import "encoding/json"

// Event identifies a signaling message kind.
type Event string

// Event constants for all C2S and S2C signaling messages.
const (
	EventJoinRoom  Event = "join-room"
	EventLeaveRoom Event = "leave-room"

	EventUserJoined    Event = "user-joined"
	EventExistingUsers Event = "existing-users"
	EventUserLeft      Event = "user-left"

	EventOffer        Event = "offer"
	EventAnswer       Event = "answer"
	EventICECandidate Event = "ice-candidate"

	EventScreenOffer  Event = "screen-share-offer"
	EventScreenAnswer Event = "screen-share-answer"
	EventScreenICE    Event = "screen-share-ice"

	EventChatMessage Event = "chat-message"
	EventError       Event = "error"
)

// Message is the wire envelope for all signaling traffic. Point-to-point
// events carry Target on the way in; the server stamps Sender on the way
// out, so the field cannot be forged by a peer. SDP and Candidate are kept
// opaque: the server relays them, only the two endpoints interpret them.
type Message struct {
	Event     Event           `json:"event"`
	Room      string          `json:"room,omitempty"`
	Target    string          `json:"target,omitempty"`
	Sender    string          `json:"sender,omitempty"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	Text      string          `json:"text,omitempty"`
	Users     []string        `json:"users,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// PointToPoint reports whether the event is relayed to a single target
// rather than broadcast to a room.
func (e Event) PointToPoint() bool {
	switch e {
	case EventOffer, EventAnswer, EventICECandidate,
		EventScreenOffer, EventScreenAnswer, EventScreenICE,
		EventChatMessage:
		return true
	}
	return false
}

// ChannelKind distinguishes the two independent negotiations a peer pair
// can run concurrently: the camera/microphone connection and the
// screen-share connection.
type ChannelKind string

const (
	KindMedia  ChannelKind = "media"
	KindScreen ChannelKind = "screen-share"
)

// OfferEvent returns the wire event carrying an offer for this kind.
func (k ChannelKind) OfferEvent() Event {
	if k == KindScreen {
		return EventScreenOffer
	}
	return EventOffer
}

// AnswerEvent returns the wire event carrying an answer for this kind.
func (k ChannelKind) AnswerEvent() Event {
	if k == KindScreen {
		return EventScreenAnswer
	}
	return EventAnswer
}

// ICEEvent returns the wire event carrying an ICE candidate for this kind.
func (k ChannelKind) ICEEvent() Event {
	if k == KindScreen {
		return EventScreenICE
	}
	return EventICECandidate
}
