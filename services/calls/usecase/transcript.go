package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/rishabh280305/SehatMitra-sub000/services/calls/consts"
	"github.com/rishabh280305/SehatMitra-sub000/services/calls/entity"
)

// AppendTranscript records one speech segment while the call is active and
// mirrors it to the other party. Both sides' speech-to-text pipelines emit
// independently and arrivals can reorder, so the segment is inserted at the
// position its timestamp demands, not at the tail.
func (u *usecase) AppendTranscript(ctx context.Context, req *entity.AppendTranscriptRequest) (*entity.TranscriptSegment, error) {
	segment, session, err := u.appendSegment(ctx, req)
	if err != nil {
		return nil, err
	}

	// Mirror to the other party, best-effort and outside the per-call
	// lock: a stalled peer connection must never hold up transitions on
	// the call, and a disconnected peer never affects persistence.
	speaker := session.Caller
	if req.SpeakerRole == entity.SpeakerRoleReceiver {
		speaker = session.Receiver
	}
	other := session.OtherParty(req.SpeakerRole)
	err = u.relay.Relay(ctx, speaker.UserID, other.UserID, &entity.Envelope{
		Type:        consts.SignalTranscriptUpdate,
		CallID:      req.CallID,
		From:        speaker.UserID,
		SpeakerRole: req.SpeakerRole,
		Text:        req.Text,
		Timestamp:   segment.Timestamp,
	})
	if err != nil && !errors.Is(err, entity.ErrDeliveryUnavailable) {
		u.log.Warn("transcript mirror failed",
			slog.String("call_id", req.CallID),
			slog.String("error", err.Error()))
	}

	return segment, nil
}

// appendSegment holds the per-call lock only for the read-modify-persist of
// the transcript itself. Network I/O stays outside.
func (u *usecase) appendSegment(ctx context.Context, req *entity.AppendTranscriptRequest) (*entity.TranscriptSegment, *entity.CallSession, error) {
	unlock := u.lock(req.CallID)
	defer unlock()

	session, err := u.sessions.GetSession(ctx, req.CallID)
	if err != nil {
		return nil, nil, err
	}

	if session.Status != entity.CallStatusActive {
		return nil, nil, fmt.Errorf("%w: call %s is %s", entity.ErrCallNotActive, req.CallID, session.Status)
	}

	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	segment := entity.TranscriptSegment{
		SpeakerRole: req.SpeakerRole,
		Text:        req.Text,
		Timestamp:   ts,
	}

	// Insert after any segment with an equal timestamp, keeping arrival
	// order stable among ties.
	idx := sort.Search(len(session.Transcript), func(i int) bool {
		return session.Transcript[i].Timestamp.After(ts)
	})
	session.Transcript = append(session.Transcript, entity.TranscriptSegment{})
	copy(session.Transcript[idx+1:], session.Transcript[idx:])
	session.Transcript[idx] = segment

	if err := u.persistWithRetry("append transcript", func() error {
		return u.sessions.UpdateSession(ctx, session)
	}); err != nil {
		return nil, nil, err
	}

	return &segment, session, nil
}

// RenderTranscript is a pure projection of the stored segments, safe to
// recompute at any time and in any call state.
func (u *usecase) RenderTranscript(ctx context.Context, callID string) (string, error) {
	session, err := u.sessions.GetSession(ctx, callID)
	if err != nil {
		return "", err
	}

	lines := make([]string, 0, len(session.Transcript))
	for _, seg := range session.Transcript {
		lines = append(lines, fmt.Sprintf("[%s]: %s", seg.SpeakerRole, seg.Text))
	}
	return strings.Join(lines, "\n"), nil
}
