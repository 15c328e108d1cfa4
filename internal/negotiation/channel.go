// Package negotiation drives the offer/answer/ICE exchange for a single
// logical peer connection.
//
// The signaling state is first-class here rather than read off the
// underlying peer-connection object, so the race-tolerance rules can be
// tested without any media stack behind them.
package negotiation

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pairline/pairline/internal/protocol"
)

// State is the signaling state of one negotiation channel.
type State int

const (
	StateIdle State = iota
	StateHaveLocalOffer
	StateHaveRemoteOffer
	StateStable
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHaveLocalOffer:
		return "have-local-offer"
	case StateHaveRemoteOffer:
		return "have-remote-offer"
	case StateStable:
		return "stable"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Role is which side of the exchange this channel plays. It is decided
// once at creation and never renegotiated.
type Role int

const (
	// RoleInitiator creates the offer and waits for an answer.
	RoleInitiator Role = iota
	// RoleResponder waits for an offer and answers it.
	RoleResponder
)

func (r Role) String() string {
	if r == RoleInitiator {
		return "initiator"
	}
	return "responder"
}

var (
	// ErrClosed is returned for operations on a torn-down channel.
	ErrClosed = errors.New("negotiation channel closed")
	// ErrBadState is returned when an operation is not valid in the
	// current signaling state.
	ErrBadState = errors.New("invalid signaling state")
	// ErrNotInitiator is returned when the responder side tries to offer.
	ErrNotInitiator = errors.New("not the initiating side")
)

// PeerTransport is the slice of a peer connection the state machine
// needs. internal/rtc implements it on pion; tests implement it in
// memory. SDP blobs and candidates stay opaque byte slices.
type PeerTransport interface {
	// CreateOffer produces and installs the local offer description.
	CreateOffer() ([]byte, error)
	// CreateAnswer installs the remote offer, then produces and installs
	// the local answer.
	CreateAnswer(remote []byte) ([]byte, error)
	// ApplyAnswer installs the remote answer description.
	ApplyAnswer(remote []byte) error
	// AddCandidate applies a remote ICE candidate. The channel only calls
	// this once a remote description has been installed.
	AddCandidate(candidate []byte) error
	// Close releases the underlying connection and any captured media.
	Close() error
}

// Channel drives the negotiation for one (remote peer, kind) pair. The
// media and screen-share channels of the same pair are two independent
// instances. All transitions are serialized by the channel's mutex;
// concurrent arrivals are resolved by the tolerance rules below, never by
// unsynchronized mutation.
type Channel struct {
	mu sync.Mutex

	kind   protocol.ChannelKind
	remote string
	role   Role
	state  State

	// remoteSet tracks whether a remote description has been installed;
	// candidates buffered before that are flushed in arrival order.
	remoteSet bool
	pending   [][]byte

	transport PeerTransport
	log       zerolog.Logger
}

// New creates a channel in the idle state.
func New(kind protocol.ChannelKind, remote string, role Role, transport PeerTransport, log zerolog.Logger) *Channel {
	return &Channel{
		kind:      kind,
		remote:    remote,
		role:      role,
		state:     StateIdle,
		transport: transport,
		log: log.With().
			Str("channel", string(kind)).
			Str("peer", remote).
			Str("role", role.String()).
			Logger(),
	}
}

// Kind returns the channel kind.
func (ch *Channel) Kind() protocol.ChannelKind { return ch.kind }

// Remote returns the remote participant id.
func (ch *Channel) Remote() string { return ch.remote }

// Role returns the side this channel plays.
func (ch *Channel) Role() Role { return ch.role }

// State returns the current signaling state.
func (ch *Channel) State() State {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.state
}

// Offer creates and installs the local offer and returns the SDP to send
// to the remote peer. Only the initiator may offer, and only from idle.
func (ch *Channel) Offer() ([]byte, error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.state == StateClosed {
		return nil, ErrClosed
	}
	if ch.role != RoleInitiator {
		return nil, ErrNotInitiator
	}
	if ch.state != StateIdle {
		return nil, fmt.Errorf("%w: offer in %s", ErrBadState, ch.state)
	}

	sdp, err := ch.transport.CreateOffer()
	if err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}
	ch.state = StateHaveLocalOffer
	ch.log.Debug().Msg("local offer installed")
	return sdp, nil
}

// HandleAnswer applies a remote answer. Expected in have-local-offer; an
// answer arriving in stable is applied best-effort because the signaling
// channel can reorder it past the message that moved us there. Anything
// else is logged and discarded. Never fatal to the channel.
func (ch *Channel) HandleAnswer(sdp []byte) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	switch ch.state {
	case StateHaveLocalOffer:
		if err := ch.transport.ApplyAnswer(sdp); err != nil {
			ch.log.Error().Err(err).Msg("apply answer")
			return
		}
		ch.state = StateStable
		ch.remoteDescriptionSet()

	case StateStable:
		ch.log.Warn().Msg("answer arrived in stable state, applying best-effort")
		if err := ch.transport.ApplyAnswer(sdp); err != nil {
			ch.log.Error().Err(err).Msg("apply late answer")
			return
		}
		ch.remoteDescriptionSet()

	case StateClosed:

	default:
		ch.log.Warn().Str("state", ch.state.String()).Msg("discarding answer in unexpected state")
	}
}

// HandleOffer applies a remote offer and returns the answer SDP to send
// back. Expected in idle or stable; an offer arriving mid-negotiation
// (glare) is logged and still applied. No tie-break: the remote offer
// simply supersedes whatever was pending.
func (ch *Channel) HandleOffer(sdp []byte) ([]byte, error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.state == StateClosed {
		return nil, ErrClosed
	}
	if ch.state != StateIdle && ch.state != StateStable {
		ch.log.Warn().Str("state", ch.state.String()).Msg("offer collision, applying anyway")
	}

	prev := ch.state
	ch.state = StateHaveRemoteOffer
	answer, err := ch.transport.CreateAnswer(sdp)
	if err != nil {
		ch.state = prev
		ch.log.Error().Err(err).Msg("answer offer")
		return nil, fmt.Errorf("create answer: %w", err)
	}

	ch.state = StateStable
	ch.remoteDescriptionSet()
	ch.log.Debug().Msg("remote offer answered")
	return answer, nil
}

// HandleCandidate applies or buffers a remote ICE candidate. Candidates
// must not reach the transport before a remote description exists; early
// arrivals are held and flushed in arrival order the moment it lands.
func (ch *Channel) HandleCandidate(candidate []byte) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.state == StateClosed {
		return
	}
	if !ch.remoteSet {
		ch.pending = append(ch.pending, candidate)
		ch.log.Debug().Int("buffered", len(ch.pending)).Msg("candidate held until remote description")
		return
	}
	if err := ch.transport.AddCandidate(candidate); err != nil {
		ch.log.Warn().Err(err).Msg("add candidate")
	}
}

// Close tears the channel down immediately regardless of state and
// discards any buffered candidates. There is no graceful half-close.
func (ch *Channel) Close() {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.state == StateClosed {
		return
	}
	ch.state = StateClosed
	ch.pending = nil
	if err := ch.transport.Close(); err != nil {
		ch.log.Debug().Err(err).Msg("close transport")
	}
	ch.log.Debug().Msg("channel closed")
}

// remoteDescriptionSet marks the remote description installed and flushes
// buffered candidates in their original arrival order. Caller holds mu, so
// a concurrently arriving candidate cannot jump the queue.
func (ch *Channel) remoteDescriptionSet() {
	ch.remoteSet = true
	for _, c := range ch.pending {
		if err := ch.transport.AddCandidate(c); err != nil {
			ch.log.Warn().Err(err).Msg("add buffered candidate")
		}
	}
	ch.pending = nil
}
