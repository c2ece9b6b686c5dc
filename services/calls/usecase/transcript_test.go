package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rishabh280305/SehatMitra-sub000/services/calls/consts"
	"github.com/rishabh280305/SehatMitra-sub000/services/calls/entity"
)

func activeCall(t *testing.T, f *fixture) *entity.CallSession {
	t.Helper()
	session := initiate(t, f, drRao.UserID, sita.UserID)
	_, err := f.uc.RecordAnswer(context.Background(), session.CallID)
	require.NoError(t, err)
	return session
}

func appendSegment(t *testing.T, f *fixture, callID string, role entity.SpeakerRole, text string, ts time.Time) {
	t.Helper()
	_, err := f.uc.AppendTranscript(context.Background(), &entity.AppendTranscriptRequest{
		CallID:      callID,
		SpeakerRole: role,
		Text:        text,
		Timestamp:   ts,
	})
	require.NoError(t, err)
}

func TestAppendTranscript_RejectedOutsideActive(t *testing.T) {
	f := newFixture(time.Minute)
	defer f.uc.Shutdown()

	session := initiate(t, f, drRao.UserID, sita.UserID)

	_, err := f.uc.AppendTranscript(context.Background(), &entity.AppendTranscriptRequest{
		CallID:      session.CallID,
		SpeakerRole: entity.SpeakerRoleCaller,
		Text:        "hello",
	})
	require.ErrorIs(t, err, entity.ErrCallNotActive)
}

func TestAppendTranscript_OrdersByTimestampNotArrival(t *testing.T) {
	f := newFixture(time.Minute)
	defer f.uc.Shutdown()

	session := activeCall(t, f)
	base := time.Now()

	// The caller's later segment arrives before the receiver's earlier one.
	appendSegment(t, f, session.CallID, entity.SpeakerRoleCaller, "hello", base.Add(10*time.Second))
	appendSegment(t, f, session.CallID, entity.SpeakerRoleReceiver, "hi", base.Add(8*time.Second))

	text, err := f.uc.RenderTranscript(context.Background(), session.CallID)
	require.NoError(t, err)
	assert.Equal(t, "[receiver]: hi\n[caller]: hello", text)
}

func TestAppendTranscript_EqualTimestampsKeepArrivalOrder(t *testing.T) {
	f := newFixture(time.Minute)
	defer f.uc.Shutdown()

	session := activeCall(t, f)
	ts := time.Now()

	appendSegment(t, f, session.CallID, entity.SpeakerRoleCaller, "first", ts)
	appendSegment(t, f, session.CallID, entity.SpeakerRoleReceiver, "second", ts)

	text, err := f.uc.RenderTranscript(context.Background(), session.CallID)
	require.NoError(t, err)
	assert.Equal(t, "[caller]: first\n[receiver]: second", text)
}

func TestAppendTranscript_MirroredToOtherParty(t *testing.T) {
	f := newFixture(time.Minute)
	defer f.uc.Shutdown()

	session := activeCall(t, f)
	appendSegment(t, f, session.CallID, entity.SpeakerRoleCaller, "namaste", time.Now())

	frames := f.relay.framesTo(sita.UserID)
	require.Len(t, frames, 1)
	require.NotNil(t, frames[0].Env)
	assert.Equal(t, consts.SignalTranscriptUpdate, frames[0].Env.Type)
	assert.Equal(t, "namaste", frames[0].Env.Text)
	assert.Equal(t, entity.SpeakerRoleCaller, frames[0].Env.SpeakerRole)
}

func TestAppendTranscript_MirrorFailureDoesNotAffectPersistence(t *testing.T) {
	f := newFixture(time.Minute)
	defer f.uc.Shutdown()

	session := activeCall(t, f)
	f.relay.offline = true

	appendSegment(t, f, session.CallID, entity.SpeakerRoleCaller, "namaste", time.Now())

	got, err := f.uc.GetCall(context.Background(), session.CallID)
	require.NoError(t, err)
	require.Len(t, got.Transcript, 1)
	assert.Equal(t, "namaste", got.Transcript[0].Text)
}

func TestRenderTranscript_IdempotentProjection(t *testing.T) {
	f := newFixture(time.Minute)
	defer f.uc.Shutdown()

	session := activeCall(t, f)
	appendSegment(t, f, session.CallID, entity.SpeakerRoleCaller, "how are you", time.Now())

	first, err := f.uc.RenderTranscript(context.Background(), session.CallID)
	require.NoError(t, err)
	second, err := f.uc.RenderTranscript(context.Background(), session.CallID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Renderable after the call ends too.
	_, err = f.uc.RecordEnd(context.Background(), session.CallID, entity.EndReasonCompleted)
	require.NoError(t, err)
	after, err := f.uc.RenderTranscript(context.Background(), session.CallID)
	require.NoError(t, err)
	assert.Equal(t, first, after)
}

func TestRenderTranscript_EmptyCall(t *testing.T) {
	f := newFixture(time.Minute)
	defer f.uc.Shutdown()

	session := initiate(t, f, drRao.UserID, sita.UserID)

	text, err := f.uc.RenderTranscript(context.Background(), session.CallID)
	require.NoError(t, err)
	assert.Empty(t, text)
}

// stalledRelay parks every delivery until released, imitating a live peer
// whose connection has stopped draining.
type stalledRelay struct {
	started chan struct{}
	release chan struct{}
}

func (r *stalledRelay) Relay(ctx context.Context, from, to string, msg any) error {
	r.started <- struct{}{}
	<-r.release
	return nil
}

func TestAppendTranscript_StalledMirrorDoesNotBlockTransitions(t *testing.T) {
	relay := &stalledRelay{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	defer close(relay.release)

	f := newFixtureWithRelay(time.Minute, relay)
	defer f.uc.Shutdown()

	session := activeCall(t, f)

	go func() {
		f.uc.AppendTranscript(context.Background(), &entity.AppendTranscriptRequest{
			CallID:      session.CallID,
			SpeakerRole: entity.SpeakerRoleCaller,
			Text:        "namaste",
			Timestamp:   time.Now(),
		})
	}()
	<-relay.started

	// The mirror is parked mid-delivery; ending the call must not wait on it.
	done := make(chan error, 1)
	go func() {
		_, err := f.uc.RecordEnd(context.Background(), session.CallID, entity.EndReasonCompleted)
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("call transition blocked behind an in-flight transcript mirror")
	}

	got, err := f.uc.GetCall(context.Background(), session.CallID)
	require.NoError(t, err)
	assert.Equal(t, entity.CallStatusCompleted, got.Status)
	assert.Len(t, got.Transcript, 1)
}
