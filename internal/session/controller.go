// Package session owns the client side of a 1:1 room: it reacts to
// membership events, decides which side initiates each negotiation
// channel, and routes inbound signaling to the right channel.
package session

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pairline/pairline/internal/negotiation"
	"github.com/pairline/pairline/internal/protocol"
)

// ErrNoPeer is returned for actions that need a remote peer before one
// has joined the room.
var ErrNoPeer = errors.New("no remote peer in room")

// Sender delivers outbound signaling messages. The websocket client
// implements it; tests use an in-memory recorder.
type Sender interface {
	Send(msg protocol.Message)
}

// TransportFactory opens a new peer transport for a channel kind and
// role. Initiating transports may need local media the factory cannot
// provide; that failure comes back here and aborts channel creation.
// onCandidate is invoked for every local ICE candidate the transport
// gathers; the controller relays them to the channel's remote peer.
type TransportFactory interface {
	NewTransport(kind protocol.ChannelKind, role negotiation.Role, onCandidate func(candidate []byte)) (negotiation.PeerTransport, error)
}

// Events receives user-visible session happenings. Methods are called
// from the signaling goroutine and must not block or call back into the
// controller synchronously.
type Events interface {
	PeerJoined(id string)
	PeerLeft(id string)
	Chat(sender, text string)
	ScreenShareStarted(sender string)
}

// NopEvents is an Events that ignores everything.
type NopEvents struct{}

func (NopEvents) PeerJoined(string)         {}
func (NopEvents) PeerLeft(string)           {}
func (NopEvents) Chat(string, string)       {}
func (NopEvents) ScreenShareStarted(string) {}

type channelKey struct {
	peer string
	kind protocol.ChannelKind
}

// Controller is the peer session controller for one local participant.
// It tracks at most one remote peer and up to two negotiation channels
// for it, keyed explicitly by (peer, kind) instead of nullable slots.
type Controller struct {
	mu sync.Mutex

	sender  Sender
	factory TransportFactory
	events  Events
	log     zerolog.Logger

	room     string
	remote   string
	channels map[channelKey]*negotiation.Channel
	closed   bool
}

// New creates a controller. events may be nil.
func New(sender Sender, factory TransportFactory, events Events, log zerolog.Logger) *Controller {
	if events == nil {
		events = NopEvents{}
	}
	return &Controller{
		sender:   sender,
		factory:  factory,
		events:   events,
		log:      log.With().Str("component", "session").Logger(),
		channels: make(map[channelKey]*negotiation.Channel),
	}
}

// JoinRoom announces this participant to the server. Call once per
// connection.
func (s *Controller) JoinRoom(room string) {
	s.mu.Lock()
	s.room = room
	s.mu.Unlock()
	s.sender.Send(protocol.Message{Event: protocol.EventJoinRoom, Room: room})
}

// LeaveRoom tells the server we are leaving and tears down all channels.
// The controller can join again afterwards.
func (s *Controller) LeaveRoom() {
	s.sender.Send(protocol.Message{Event: protocol.EventLeaveRoom})

	s.mu.Lock()
	s.teardownAllLocked()
	s.remote = ""
	s.room = ""
	s.mu.Unlock()
}

// Close tears down every channel. The controller is unusable afterwards.
func (s *Controller) Close() {
	s.mu.Lock()
	s.teardownAllLocked()
	s.remote = ""
	s.closed = true
	s.mu.Unlock()
}

// Remote returns the current remote peer id, or "" before one joined.
func (s *Controller) Remote() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote
}

// ChannelState reports the signaling state of the (peer, kind) channel.
func (s *Controller) ChannelState(peer string, kind protocol.ChannelKind) (negotiation.State, bool) {
	s.mu.Lock()
	ch := s.channels[channelKey{peer, kind}]
	s.mu.Unlock()
	if ch == nil {
		return 0, false
	}
	return ch.State(), true
}

// HandleMessage dispatches one inbound signaling message to its handler.
func (s *Controller) HandleMessage(msg protocol.Message) {
	switch msg.Event {
	case protocol.EventExistingUsers:
		s.HandleExistingUsers(msg.Users)
	case protocol.EventUserJoined:
		s.HandleUserJoined(msg.Sender)
	case protocol.EventUserLeft:
		s.HandleUserLeft(msg.Sender)
	case protocol.EventOffer:
		s.HandleOffer(protocol.KindMedia, msg.Sender, msg.SDP)
	case protocol.EventAnswer:
		s.HandleAnswer(protocol.KindMedia, msg.Sender, msg.SDP)
	case protocol.EventICECandidate:
		s.HandleCandidate(protocol.KindMedia, msg.Sender, msg.Candidate)
	case protocol.EventScreenOffer:
		s.HandleOffer(protocol.KindScreen, msg.Sender, msg.SDP)
	case protocol.EventScreenAnswer:
		s.HandleAnswer(protocol.KindScreen, msg.Sender, msg.SDP)
	case protocol.EventScreenICE:
		s.HandleCandidate(protocol.KindScreen, msg.Sender, msg.Candidate)
	case protocol.EventChatMessage:
		s.events.Chat(msg.Sender, msg.Text)
	case protocol.EventError:
		s.log.Warn().Str("error", msg.Error).Msg("server error")
	default:
		s.log.Warn().Str("event", string(msg.Event)).Msg("unknown event")
	}
}

// HandleExistingUsers is delivered once, right after joining a room that
// already has members. The first entry (the room's earliest joiner) is
// our remote peer, and as the newcomer we initiate the media negotiation.
func (s *Controller) HandleExistingUsers(users []string) {
	if len(users) == 0 {
		return
	}

	s.mu.Lock()
	if s.closed || s.remote != "" {
		s.mu.Unlock()
		return
	}
	peer := users[0]
	s.remote = peer

	ch, err := s.createChannelLocked(protocol.KindMedia, peer, negotiation.RoleInitiator)
	s.mu.Unlock()
	if err != nil {
		s.log.Error().Err(err).Str("peer", peer).Msg("create media channel")
		return
	}

	sdp, err := ch.Offer()
	if err != nil {
		s.log.Error().Err(err).Str("peer", peer).Msg("create offer")
		return
	}
	s.sender.Send(protocol.Message{Event: protocol.EventOffer, Target: peer, SDP: sdp})
	s.events.PeerJoined(peer)
}

// HandleUserJoined records the newcomer as our remote peer and prepares
// the media channel as responder: the newcomer sends the first offer.
// Channels still open for a previous remote are reaped here; user-left
// only matches the current remote, so this is their last exit.
func (s *Controller) HandleUserJoined(id string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.remote != "" && s.remote != id {
		s.closeChannelLocked(channelKey{s.remote, protocol.KindMedia})
		s.closeChannelLocked(channelKey{s.remote, protocol.KindScreen})
	}
	s.remote = id
	if _, err := s.createChannelLocked(protocol.KindMedia, id, negotiation.RoleResponder); err != nil {
		s.mu.Unlock()
		s.log.Error().Err(err).Str("peer", id).Msg("create media channel")
		return
	}
	s.mu.Unlock()
	s.events.PeerJoined(id)
}

// HandleUserLeft tears down both channels for the departed peer. Events
// for peers we never tracked are ignored.
func (s *Controller) HandleUserLeft(id string) {
	s.mu.Lock()
	if id == "" || id != s.remote {
		s.mu.Unlock()
		return
	}
	s.closeChannelLocked(channelKey{id, protocol.KindMedia})
	s.closeChannelLocked(channelKey{id, protocol.KindScreen})
	s.remote = ""
	s.mu.Unlock()

	s.events.PeerLeft(id)
}

// HandleOffer answers an inbound offer on the channel of its kind,
// creating the channel lazily as responder when it does not exist yet.
// That is the normal path for an asymmetric screen share, and it also
// covers a media offer outrunning its user-joined.
func (s *Controller) HandleOffer(kind protocol.ChannelKind, sender string, sdp json.RawMessage) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.remote == "" {
		s.remote = sender
	}
	key := channelKey{sender, kind}
	ch := s.channels[key]
	if ch == nil {
		var err error
		ch, err = s.createChannelLocked(kind, sender, negotiation.RoleResponder)
		if err != nil {
			s.mu.Unlock()
			s.log.Error().Err(err).Str("peer", sender).Str("kind", string(kind)).Msg("create channel for offer")
			return
		}
	}
	s.mu.Unlock()

	answer, err := ch.HandleOffer(sdp)
	if err != nil {
		return
	}
	s.sender.Send(protocol.Message{Event: kind.AnswerEvent(), Target: sender, SDP: answer})
	if kind == protocol.KindScreen {
		s.events.ScreenShareStarted(sender)
	}
}

// HandleAnswer applies an inbound answer on the channel of its kind.
// Answers for channels we never opened are logged and dropped.
func (s *Controller) HandleAnswer(kind protocol.ChannelKind, sender string, sdp json.RawMessage) {
	s.mu.Lock()
	ch := s.channels[channelKey{sender, kind}]
	s.mu.Unlock()

	if ch == nil {
		s.log.Warn().Str("peer", sender).Str("kind", string(kind)).Msg("answer for unknown channel")
		return
	}
	ch.HandleAnswer(sdp)
}

// HandleCandidate routes an inbound ICE candidate to the channel of its
// kind. Candidates for a channel that does not exist yet are dropped: the
// offer that creates the channel has not arrived, and the remote side
// will keep trickling candidates after it does.
func (s *Controller) HandleCandidate(kind protocol.ChannelKind, sender string, candidate json.RawMessage) {
	s.mu.Lock()
	ch := s.channels[channelKey{sender, kind}]
	s.mu.Unlock()

	if ch == nil {
		s.log.Debug().Str("peer", sender).Str("kind", string(kind)).Msg("candidate for unknown channel, dropping")
		return
	}
	ch.HandleCandidate(candidate)
}

// SendChat relays a text message to the remote peer through the
// signaling channel. Valid only while a remote peer is known.
func (s *Controller) SendChat(text string) error {
	s.mu.Lock()
	remote := s.remote
	s.mu.Unlock()

	if remote == "" {
		return ErrNoPeer
	}
	s.sender.Send(protocol.Message{Event: protocol.EventChatMessage, Target: remote, Text: text})
	return nil
}

// StartScreenShare opens the screen-share channel as initiator and sends
// the offer. Requires a remote peer; there is no queueing of "share once
// someone joins". An existing screen channel is replaced.
func (s *Controller) StartScreenShare() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrNoPeer
	}
	peer := s.remote
	if peer == "" {
		s.mu.Unlock()
		s.log.Warn().Msg("screen share requested with no remote peer")
		return ErrNoPeer
	}
	s.closeChannelLocked(channelKey{peer, protocol.KindScreen})

	ch, err := s.createChannelLocked(protocol.KindScreen, peer, negotiation.RoleInitiator)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	sdp, err := ch.Offer()
	if err != nil {
		return err
	}
	s.sender.Send(protocol.Message{Event: protocol.EventScreenOffer, Target: peer, SDP: sdp})
	return nil
}

// StopScreenShare tears down the screen-share channel immediately and
// releases its media. No-op when not sharing.
func (s *Controller) StopScreenShare() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remote == "" {
		return
	}
	s.closeChannelLocked(channelKey{s.remote, protocol.KindScreen})
}

// createChannelLocked opens a transport and registers a channel for
// (peer, kind). Caller holds mu.
func (s *Controller) createChannelLocked(kind protocol.ChannelKind, peer string, role negotiation.Role) (*negotiation.Channel, error) {
	transport, err := s.factory.NewTransport(kind, role, func(candidate []byte) {
		s.sender.Send(protocol.Message{Event: kind.ICEEvent(), Target: peer, Candidate: candidate})
	})
	if err != nil {
		return nil, err
	}
	ch := negotiation.New(kind, peer, role, transport, s.log)
	s.channels[channelKey{peer, kind}] = ch
	s.log.Debug().Str("peer", peer).Str("kind", string(kind)).Str("role", role.String()).Msg("channel created")
	return ch, nil
}

func (s *Controller) closeChannelLocked(key channelKey) {
	if ch := s.channels[key]; ch != nil {
		ch.Close()
		delete(s.channels, key)
	}
}

func (s *Controller) teardownAllLocked() {
	for key, ch := range s.channels {
		ch.Close()
		delete(s.channels, key)
	}
}
