package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rishabh280305/SehatMitra-sub000/services/calls/consts"
	"github.com/rishabh280305/SehatMitra-sub000/services/calls/entity"
)

func initiate(t *testing.T, f *fixture, caller, receiver string) *entity.CallSession {
	t.Helper()
	session, err := f.uc.InitiateCall(context.Background(), &entity.InitiateCallRequest{
		CallerID:   caller,
		ReceiverID: receiver,
		CallType:   entity.CallTypeVideo,
	})
	require.NoError(t, err)
	return session
}

func TestInitiateCall_StartsRinging(t *testing.T) {
	f := newFixture(time.Minute)
	defer f.uc.Shutdown()

	session := initiate(t, f, drRao.UserID, sita.UserID)

	assert.NotEmpty(t, session.CallID)
	assert.Equal(t, entity.CallStatusRinging, session.Status)
	assert.Equal(t, drRao, session.Caller)
	assert.Equal(t, sita, session.Receiver)
	assert.Nil(t, session.StartTime)
	assert.Zero(t, session.DurationSeconds)
}

func TestInitiateCall_UnknownReceiver(t *testing.T) {
	f := newFixture(time.Minute)
	defer f.uc.Shutdown()

	_, err := f.uc.InitiateCall(context.Background(), &entity.InitiateCallRequest{
		CallerID:   drRao.UserID,
		ReceiverID: "ghost",
	})
	require.ErrorIs(t, err, entity.ErrReceiverUnknown)
}

func TestRecordAnswer_RingingToActive(t *testing.T) {
	f := newFixture(time.Minute)
	defer f.uc.Shutdown()

	session := initiate(t, f, drRao.UserID, sita.UserID)

	answered, err := f.uc.RecordAnswer(context.Background(), session.CallID)
	require.NoError(t, err)
	assert.Equal(t, entity.CallStatusActive, answered.Status)
	require.NotNil(t, answered.StartTime)
}

func TestRecordAnswer_IllegalFromTerminal(t *testing.T) {
	f := newFixture(time.Minute)
	defer f.uc.Shutdown()

	session := initiate(t, f, drRao.UserID, sita.UserID)
	_, err := f.uc.RecordEnd(context.Background(), session.CallID, entity.EndReasonRejected)
	require.NoError(t, err)

	_, err = f.uc.RecordAnswer(context.Background(), session.CallID)
	require.Error(t, err)
	assert.True(t, entity.IsInvalidTransition(err))

	// The illegal attempt is a no-op, never a silent state change.
	got, err := f.uc.GetCall(context.Background(), session.CallID)
	require.NoError(t, err)
	assert.Equal(t, entity.CallStatusRejected, got.Status)
}

func TestRecordEnd_CompletedComputesDuration(t *testing.T) {
	f := newFixture(time.Minute)
	defer f.uc.Shutdown()

	session := initiate(t, f, drRao.UserID, sita.UserID)
	_, err := f.uc.RecordAnswer(context.Background(), session.CallID)
	require.NoError(t, err)

	ended, err := f.uc.RecordEnd(context.Background(), session.CallID, entity.EndReasonCompleted)
	require.NoError(t, err)
	assert.Equal(t, entity.CallStatusCompleted, ended.Status)
	require.NotNil(t, ended.EndTime)
	assert.GreaterOrEqual(t, ended.DurationSeconds, 0)
}

func TestRecordEnd_RejectedNeverActiveHasZeroDuration(t *testing.T) {
	f := newFixture(time.Minute)
	defer f.uc.Shutdown()

	session := initiate(t, f, drRao.UserID, sita.UserID)

	ended, err := f.uc.RecordEnd(context.Background(), session.CallID, entity.EndReasonRejected)
	require.NoError(t, err)
	assert.Equal(t, entity.CallStatusRejected, ended.Status)
	assert.Zero(t, ended.DurationSeconds)
}

func TestRecordEnd_CompletedRequiresActive(t *testing.T) {
	f := newFixture(time.Minute)
	defer f.uc.Shutdown()

	session := initiate(t, f, drRao.UserID, sita.UserID)

	_, err := f.uc.RecordEnd(context.Background(), session.CallID, entity.EndReasonCompleted)
	require.Error(t, err)
	assert.True(t, entity.IsInvalidTransition(err))
}

func TestRecordEnd_FailedFromActive(t *testing.T) {
	f := newFixture(time.Minute)
	defer f.uc.Shutdown()

	session := initiate(t, f, drRao.UserID, sita.UserID)
	_, err := f.uc.RecordAnswer(context.Background(), session.CallID)
	require.NoError(t, err)

	ended, err := f.uc.RecordEnd(context.Background(), session.CallID, entity.EndReasonFailed)
	require.NoError(t, err)
	assert.Equal(t, entity.CallStatusFailed, ended.Status)
}

func TestRingTimeout_UnansweredCallGoesMissed(t *testing.T) {
	f := newFixture(30 * time.Millisecond)
	defer f.uc.Shutdown()

	session := initiate(t, f, drRao.UserID, meena.UserID)

	require.Eventually(t, func() bool {
		got, err := f.uc.GetCall(context.Background(), session.CallID)
		return err == nil && got.Status == entity.CallStatusMissed
	}, time.Second, 5*time.Millisecond)

	// The caller is told the ring is over rather than ringing forever.
	require.Eventually(t, func() bool {
		frames := f.relay.framesTo(drRao.UserID)
		for _, fr := range frames {
			if fr.Env != nil && fr.Env.Type == consts.SignalCallEnded {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestRingTimeout_CanceledByAnswer(t *testing.T) {
	f := newFixture(40 * time.Millisecond)
	defer f.uc.Shutdown()

	session := initiate(t, f, drRao.UserID, sita.UserID)
	_, err := f.uc.RecordAnswer(context.Background(), session.CallID)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	got, err := f.uc.GetCall(context.Background(), session.CallID)
	require.NoError(t, err)
	assert.Equal(t, entity.CallStatusActive, got.Status)
}

func TestRacingAnswerAndReject_ExactlyOneWins(t *testing.T) {
	f := newFixture(time.Minute)
	defer f.uc.Shutdown()

	session := initiate(t, f, drRao.UserID, sita.UserID)

	var wg sync.WaitGroup
	var answerErr, rejectErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, answerErr = f.uc.RecordAnswer(context.Background(), session.CallID)
	}()
	go func() {
		defer wg.Done()
		_, rejectErr = f.uc.RecordEnd(context.Background(), session.CallID, entity.EndReasonRejected)
	}()
	wg.Wait()

	// Exactly one transition succeeds; the loser is an illegal transition.
	if answerErr == nil {
		require.Error(t, rejectErr)
		assert.True(t, entity.IsInvalidTransition(rejectErr))
	} else {
		require.NoError(t, rejectErr)
		assert.True(t, entity.IsInvalidTransition(answerErr))
	}

	got, err := f.uc.GetCall(context.Background(), session.CallID)
	require.NoError(t, err)
	if answerErr == nil {
		assert.Equal(t, entity.CallStatusActive, got.Status)
	} else {
		assert.Equal(t, entity.CallStatusRejected, got.Status)
	}
}

func TestHandleDisconnect_ActiveCallCompletes(t *testing.T) {
	f := newFixture(time.Minute)
	defer f.uc.Shutdown()

	session := initiate(t, f, drRao.UserID, sita.UserID)
	_, err := f.uc.RecordAnswer(context.Background(), session.CallID)
	require.NoError(t, err)

	f.uc.HandleDisconnect(context.Background(), sita.UserID)

	got, err := f.uc.GetCall(context.Background(), session.CallID)
	require.NoError(t, err)
	assert.Equal(t, entity.CallStatusCompleted, got.Status)
}

func TestHandleDisconnect_RingingReceiverRejects(t *testing.T) {
	f := newFixture(time.Minute)
	defer f.uc.Shutdown()

	session := initiate(t, f, drRao.UserID, sita.UserID)

	f.uc.HandleDisconnect(context.Background(), sita.UserID)

	got, err := f.uc.GetCall(context.Background(), session.CallID)
	require.NoError(t, err)
	assert.Equal(t, entity.CallStatusRejected, got.Status)
}

func TestHandleDisconnect_RingingCallerGoesMissed(t *testing.T) {
	f := newFixture(time.Minute)
	defer f.uc.Shutdown()

	session := initiate(t, f, drRao.UserID, sita.UserID)

	f.uc.HandleDisconnect(context.Background(), drRao.UserID)

	got, err := f.uc.GetCall(context.Background(), session.CallID)
	require.NoError(t, err)
	assert.Equal(t, entity.CallStatusMissed, got.Status)
}

func TestListCallHistory(t *testing.T) {
	f := newFixture(time.Minute)
	defer f.uc.Shutdown()

	first := initiate(t, f, drRao.UserID, sita.UserID)
	second := initiate(t, f, meena.UserID, drRao.UserID)

	history, err := f.uc.ListCallHistory(context.Background(), drRao.UserID)
	require.NoError(t, err)
	require.Len(t, history, 2)

	ids := []string{history[0].CallID, history[1].CallID}
	assert.Contains(t, ids, first.CallID)
	assert.Contains(t, ids, second.CallID)

	other, err := f.uc.ListCallHistory(context.Background(), sita.UserID)
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, first.CallID, other[0].CallID)
}
