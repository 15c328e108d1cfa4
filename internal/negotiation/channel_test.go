package negotiation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pairline/pairline/internal/protocol"
)

// fakeTransport records everything the state machine pushes at it.
type fakeTransport struct {
	offers       int
	remoteOffers [][]byte
	answers      [][]byte
	candidates   [][]byte
	closed       bool

	answerErr error
}

func (f *fakeTransport) CreateOffer() ([]byte, error) {
	f.offers++
	return []byte(`{"type":"offer"}`), nil
}

func (f *fakeTransport) CreateAnswer(remote []byte) ([]byte, error) {
	if f.answerErr != nil {
		return nil, f.answerErr
	}
	f.remoteOffers = append(f.remoteOffers, remote)
	return []byte(`{"type":"answer"}`), nil
}

func (f *fakeTransport) ApplyAnswer(remote []byte) error {
	if f.answerErr != nil {
		return f.answerErr
	}
	f.answers = append(f.answers, remote)
	return nil
}

func (f *fakeTransport) AddCandidate(candidate []byte) error {
	f.candidates = append(f.candidates, candidate)
	return nil
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

func newChannel(role Role) (*Channel, *fakeTransport) {
	ft := &fakeTransport{}
	return New(protocol.KindMedia, "peer-1", role, ft, zerolog.Nop()), ft
}

func TestInitiatorOfferAnswerFlow(t *testing.T) {
	ch, ft := newChannel(RoleInitiator)

	sdp, err := ch.Offer()
	require.NoError(t, err)
	assert.NotEmpty(t, sdp)
	assert.Equal(t, StateHaveLocalOffer, ch.State())

	ch.HandleAnswer([]byte(`{"type":"answer"}`))
	assert.Equal(t, StateStable, ch.State())
	require.Len(t, ft.answers, 1)
}

func TestResponderAnswersOffer(t *testing.T) {
	ch, ft := newChannel(RoleResponder)

	answer, err := ch.HandleOffer([]byte(`{"type":"offer"}`))
	require.NoError(t, err)
	assert.NotEmpty(t, answer)
	assert.Equal(t, StateStable, ch.State())
	require.Len(t, ft.remoteOffers, 1)
}

func TestResponderOfferThenCandidatesInOrder(t *testing.T) {
	ch, ft := newChannel(RoleResponder)

	_, err := ch.HandleOffer([]byte(`{"type":"offer"}`))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		ch.HandleCandidate([]byte(fmt.Sprintf("cand-%d", i)))
	}

	assert.Equal(t, StateStable, ch.State())
	require.Len(t, ft.candidates, 5)
	for i, c := range ft.candidates {
		assert.Equal(t, fmt.Sprintf("cand-%d", i), string(c))
	}
}

func TestCandidatesBufferedUntilRemoteDescription(t *testing.T) {
	ch, ft := newChannel(RoleResponder)

	ch.HandleCandidate([]byte("early-0"))
	ch.HandleCandidate([]byte("early-1"))
	ch.HandleCandidate([]byte("early-2"))
	assert.Empty(t, ft.candidates, "candidates must not reach the transport before a remote description")

	_, err := ch.HandleOffer([]byte(`{"type":"offer"}`))
	require.NoError(t, err)

	ch.HandleCandidate([]byte("late-0"))

	require.Len(t, ft.candidates, 4)
	assert.Equal(t, "early-0", string(ft.candidates[0]))
	assert.Equal(t, "early-1", string(ft.candidates[1]))
	assert.Equal(t, "early-2", string(ft.candidates[2]))
	assert.Equal(t, "late-0", string(ft.candidates[3]))
}

func TestInitiatorBuffersCandidatesUntilAnswer(t *testing.T) {
	ch, ft := newChannel(RoleInitiator)

	_, err := ch.Offer()
	require.NoError(t, err)

	ch.HandleCandidate([]byte("early"))
	assert.Empty(t, ft.candidates)

	ch.HandleAnswer([]byte(`{"type":"answer"}`))
	require.Len(t, ft.candidates, 1)
	assert.Equal(t, "early", string(ft.candidates[0]))
}

func TestAnswerInStableAppliedBestEffort(t *testing.T) {
	ch, ft := newChannel(RoleInitiator)

	_, err := ch.Offer()
	require.NoError(t, err)
	ch.HandleAnswer([]byte("first"))
	require.Equal(t, StateStable, ch.State())

	// reordered duplicate: tolerated, not rejected
	ch.HandleAnswer([]byte("second"))
	assert.Equal(t, StateStable, ch.State())
	assert.Len(t, ft.answers, 2)
}

func TestAnswerInIdleDiscarded(t *testing.T) {
	ch, ft := newChannel(RoleInitiator)

	ch.HandleAnswer([]byte("stray"))
	assert.Equal(t, StateIdle, ch.State())
	assert.Empty(t, ft.answers)
}

func TestGlareOfferStillApplied(t *testing.T) {
	ch, ft := newChannel(RoleInitiator)

	_, err := ch.Offer()
	require.NoError(t, err)

	// both sides offered at once; we still answer theirs
	answer, err := ch.HandleOffer([]byte(`{"type":"offer"}`))
	require.NoError(t, err)
	assert.NotEmpty(t, answer)
	assert.Equal(t, StateStable, ch.State())
	assert.Len(t, ft.remoteOffers, 1)
}

func TestOfferRestrictedToInitiatorAndIdle(t *testing.T) {
	ch, _ := newChannel(RoleResponder)
	_, err := ch.Offer()
	assert.ErrorIs(t, err, ErrNotInitiator)

	ch, _ = newChannel(RoleInitiator)
	_, err = ch.Offer()
	require.NoError(t, err)
	_, err = ch.Offer()
	assert.ErrorIs(t, err, ErrBadState)
}

func TestFailedOfferApplyKeepsPreviousState(t *testing.T) {
	ch, ft := newChannel(RoleResponder)
	ft.answerErr = errors.New("codec mismatch")

	_, err := ch.HandleOffer([]byte(`{"type":"offer"}`))
	assert.Error(t, err)
	assert.Equal(t, StateIdle, ch.State())
}

func TestCloseDiscardsStateAndBuffer(t *testing.T) {
	ch, ft := newChannel(RoleResponder)

	ch.HandleCandidate([]byte("buffered"))
	ch.Close()

	assert.Equal(t, StateClosed, ch.State())
	assert.True(t, ft.closed)

	// everything after close is inert
	_, err := ch.HandleOffer([]byte(`{"type":"offer"}`))
	assert.ErrorIs(t, err, ErrClosed)
	ch.HandleAnswer([]byte("late"))
	ch.HandleCandidate([]byte("late"))
	assert.Empty(t, ft.candidates)
	assert.Empty(t, ft.answers)

	ch.Close() // idempotent
}
