package rtc

import (
	"encoding/json"

	pion "github.com/pion/webrtc/v4"
)

// Transport adapts one pion peer connection to the negotiation layer.
// Descriptions and candidates cross the boundary as raw JSON so the
// signaling path stays codec-agnostic.
type Transport struct {
	pc *pion.PeerConnection
}

func (t *Transport) CreateOffer() ([]byte, error) {
	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		return nil, NewError("create offer", err)
	}
	if err = t.pc.SetLocalDescription(offer); err != nil {
		return nil, NewError("set local description", err)
	}
	return marshalDescription(t.pc.LocalDescription())
}

func (t *Transport) CreateAnswer(remote []byte) ([]byte, error) {
	desc, err := unmarshalDescription(remote)
	if err != nil {
		return nil, err
	}
	if err := t.pc.SetRemoteDescription(desc); err != nil {
		return nil, NewError("set remote description", err)
	}

	answer, err := t.pc.CreateAnswer(nil)
	if err != nil {
		return nil, NewError("create answer", err)
	}
	if err = t.pc.SetLocalDescription(answer); err != nil {
		return nil, NewError("set local description", err)
	}
	return marshalDescription(t.pc.LocalDescription())
}

func (t *Transport) ApplyAnswer(remote []byte) error {
	desc, err := unmarshalDescription(remote)
	if err != nil {
		return err
	}
	if err := t.pc.SetRemoteDescription(desc); err != nil {
		return NewError("set remote description", err)
	}
	return nil
}

func (t *Transport) AddCandidate(candidate []byte) error {
	var ice pion.ICECandidateInit
	if err := json.Unmarshal(candidate, &ice); err != nil {
		return NewError("parse ICE candidate", err)
	}
	if err := t.pc.AddICECandidate(ice); err != nil {
		return NewError("add ICE candidate", err)
	}
	return nil
}

func (t *Transport) Close() error {
	return t.pc.Close()
}

func marshalDescription(desc *pion.SessionDescription) ([]byte, error) {
	payload, err := json.Marshal(desc)
	if err != nil {
		return nil, NewError("marshal description", err)
	}
	return payload, nil
}

func unmarshalDescription(raw []byte) (pion.SessionDescription, error) {
	var desc pion.SessionDescription
	if err := json.Unmarshal(raw, &desc); err != nil {
		return desc, NewError("parse description", ErrBadDescription)
	}
	return desc, nil
}
