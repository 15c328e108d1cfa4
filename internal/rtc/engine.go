// Package rtc builds pion peer connections for the session controller.
// The engine translates ICE server configuration into pion terms once,
// then stamps out one transport per negotiation channel.
package rtc

import (
	"encoding/json"

	pion "github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/pairline/pairline/internal/config"
	"github.com/pairline/pairline/internal/negotiation"
	"github.com/pairline/pairline/internal/protocol"
)

// TrackHandler receives every inbound remote track along with the kind
// of the channel it arrived on.
type TrackHandler func(kind protocol.ChannelKind, track *pion.TrackRemote)

// StateHandler observes connection state transitions per channel kind.
type StateHandler func(kind protocol.ChannelKind, state pion.PeerConnectionState)

// Engine is a transport factory backed by pion. Safe to share across
// channels; each NewTransport call opens an independent peer connection.
type Engine struct {
	iceServers []pion.ICEServer
	icePolicy  pion.ICETransportPolicy
	log        zerolog.Logger

	onTrack TrackHandler
	onState StateHandler

	screenTrack pion.TrackLocal
}

// NewEngine resolves the ICE configuration once up front.
func NewEngine(cfg *config.Config, log zerolog.Logger) *Engine {
	iceServers := []pion.ICEServer{{URLs: cfg.GetSTUNServers()}}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, pion.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := pion.ICETransportPolicyAll
	if turnServers != nil && cfg.ForceRelay {
		policy = pion.ICETransportPolicyRelay
	}

	return &Engine{
		iceServers: iceServers,
		icePolicy:  policy,
		log:        log.With().Str("component", "rtc").Logger(),
	}
}

// OnTrack sets the inbound track handler. Set before any transport is
// created.
func (e *Engine) OnTrack(h TrackHandler) {
	e.onTrack = h
}

// OnConnectionStateChange sets the state observer. Set before any
// transport is created.
func (e *Engine) OnConnectionStateChange(h StateHandler) {
	e.onState = h
}

// SetScreenTrack supplies the local track sent on screen-share channels
// this client initiates. Starting a share without one fails with
// ErrNoScreenSource; responding transports stay receive-only.
func (e *Engine) SetScreenTrack(track pion.TrackLocal) {
	e.screenTrack = track
}

// NewTransport opens a peer connection configured for the channel kind
// and role and wires its ICE gathering to onCandidate. An initiating
// screen transport needs a local track before anything is allocated.
func (e *Engine) NewTransport(kind protocol.ChannelKind, role negotiation.Role, onCandidate func(candidate []byte)) (negotiation.PeerTransport, error) {
	if kind == protocol.KindScreen && role == negotiation.RoleInitiator && e.screenTrack == nil {
		return nil, ErrNoScreenSource
	}

	pc, err := pion.NewPeerConnection(pion.Configuration{
		ICEServers:         e.iceServers,
		ICETransportPolicy: e.icePolicy,
	})
	if err != nil {
		return nil, NewError("create peer connection", err)
	}

	if err := e.addTransceivers(pc, kind); err != nil {
		pc.Close()
		return nil, err
	}

	pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			return
		}
		payload, err := json.Marshal(c.ToJSON())
		if err != nil {
			e.log.Error().Err(err).Msg("marshal ICE candidate")
			return
		}
		onCandidate(payload)
	})

	pc.OnTrack(func(track *pion.TrackRemote, _ *pion.RTPReceiver) {
		e.log.Debug().
			Str("kind", string(kind)).
			Str("codec", track.Codec().MimeType).
			Msg("remote track")
		if e.onTrack != nil {
			e.onTrack(kind, track)
		}
	})

	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		e.log.Debug().Str("kind", string(kind)).Str("state", state.String()).Msg("connection state")
		if e.onState != nil {
			e.onState(kind, state)
		}
	})

	return &Transport{pc: pc}, nil
}

// addTransceivers declares the media each channel kind carries. Media
// channels receive the peer's audio and video; screen channels carry a
// single video track, sent when a local one is configured.
func (e *Engine) addTransceivers(pc *pion.PeerConnection, kind protocol.ChannelKind) error {
	recv := pion.RTPTransceiverInit{Direction: pion.RTPTransceiverDirectionRecvonly}

	switch kind {
	case protocol.KindScreen:
		if e.screenTrack != nil {
			if _, err := pc.AddTrack(e.screenTrack); err != nil {
				return NewError("add screen track", err)
			}
			return nil
		}
		if _, err := pc.AddTransceiverFromKind(pion.RTPCodecTypeVideo, recv); err != nil {
			return NewError("add screen transceiver", err)
		}
	default:
		if _, err := pc.AddTransceiverFromKind(pion.RTPCodecTypeAudio, recv); err != nil {
			return NewError("add audio transceiver", err)
		}
		if _, err := pc.AddTransceiverFromKind(pion.RTPCodecTypeVideo, recv); err != nil {
			return NewError("add video transceiver", err)
		}
	}
	return nil
}
