package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	pkgjwt "github.com/rishabh280305/SehatMitra-sub000/pkg/jwt"
	"github.com/rishabh280305/SehatMitra-sub000/services/calls/consts"
	"github.com/rishabh280305/SehatMitra-sub000/services/calls/entity"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsConn serializes writes: the read-loop goroutine, ring timers and
// transcript mirroring all write to the same connection. Every write carries
// a deadline so a peer with a full TCP buffer fails the write instead of
// wedging the writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(consts.SignalWriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// HandleWS upgrades the signaling websocket, binds it to the authenticated
// user and pumps frames until disconnect. Disconnecting while party to a
// live call drives the same transitions an explicit end or reject would.
func (h *Handler) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	claims, err := pkgjwt.Parse(r.Context(), token, h.jwtSecret)
	if err != nil {
		h.log.Warn("websocket token rejected", slog.String("error", err.Error()))
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	conn := &wsConn{conn: raw}

	h.router.Register(claims.UserID, conn)
	h.log.Info("signaling connection opened", slog.String("user_id", claims.UserID))

	defer func() {
		h.router.Unregister(claims.UserID, conn)
		h.usecase.HandleDisconnect(context.Background(), claims.UserID)
		conn.Close()
		h.log.Info("signaling connection closed", slog.String("user_id", claims.UserID))
	}()

	for {
		var env entity.Envelope
		if err := raw.ReadJSON(&env); err != nil {
			h.log.Debug("websocket read ended",
				slog.String("user_id", claims.UserID),
				slog.String("error", err.Error()))
			return
		}
		h.handleSignal(r.Context(), claims, conn, &env)
	}
}

func (h *Handler) handleSignal(ctx context.Context, claims *pkgjwt.Claims, conn *wsConn, env *entity.Envelope) {
	switch env.Type {
	case consts.SignalCallUser:
		h.signalCallUser(ctx, claims, conn, env)
	case consts.SignalCallAnswered:
		h.signalTransition(ctx, claims, conn, env, func() (*entity.CallSession, error) {
			return h.usecase.RecordAnswer(ctx, env.CallID)
		})
	case consts.SignalCallRejected:
		h.signalTransition(ctx, claims, conn, env, func() (*entity.CallSession, error) {
			return h.usecase.RecordEnd(ctx, env.CallID, entity.EndReasonRejected)
		})
	case consts.SignalCallEnded:
		h.signalCallEnded(ctx, claims, conn, env)
	case consts.SignalIceCandidate:
		h.signalIceCandidate(ctx, claims, env)
	case consts.SignalTranscriptUpdate:
		h.signalTranscript(ctx, claims, conn, env)
	default:
		h.log.Warn("unknown signal type",
			slog.String("type", env.Type),
			slog.String("user_id", claims.UserID))
	}
}

// signalCallUser creates the session first and relays the offer second: a
// crash between the two leaves a ringing record that the missed-call timer
// cleans up, never an untracked ring.
func (h *Handler) signalCallUser(ctx context.Context, claims *pkgjwt.Claims, conn *wsConn, env *entity.Envelope) {
	session, err := h.usecase.InitiateCall(ctx, &entity.InitiateCallRequest{
		CallID:     env.CallID,
		CallerID:   claims.UserID,
		ReceiverID: env.To,
		CallType:   env.CallType,
	})
	if err != nil {
		h.writeSignalError(conn, env, err)
		return
	}

	// Ack with the server-assigned call id so a caller who omitted one can
	// address the answer, end and ice frames that follow.
	if err := conn.WriteJSON(&entity.Envelope{
		Type:     consts.SignalCallRinging,
		CallID:   session.CallID,
		To:       session.Receiver.UserID,
		CallType: session.CallType,
	}); err != nil {
		h.log.Debug("failed to ack call initiation",
			slog.String("call_id", session.CallID),
			slog.String("error", err.Error()))
	}

	// Best-effort ringing notification. An offline receiver is not an
	// error; the ring timeout moves the call to missed.
	h.relayFrame(ctx, claims.UserID, session.Receiver.UserID, &entity.Envelope{
		Type:     consts.SignalCallUser,
		CallID:   session.CallID,
		From:     claims.UserID,
		FromName: session.Caller.DisplayName,
		CallType: session.CallType,
		SDP:      env.SDP,
	})
}

// signalTransition applies a state transition and, only if it was legal,
// relays the frame to the opposite party.
func (h *Handler) signalTransition(ctx context.Context, claims *pkgjwt.Claims, conn *wsConn, env *entity.Envelope, transition func() (*entity.CallSession, error)) {
	session, err := transition()
	if err != nil {
		h.writeSignalError(conn, env, err)
		return
	}

	peer := h.peerOf(session, claims.UserID)
	h.relayFrame(ctx, claims.UserID, peer, &entity.Envelope{
		Type:      env.Type,
		CallID:    session.CallID,
		From:      claims.UserID,
		SDP:       env.SDP,
		Candidate: env.Candidate,
	})
}

func (h *Handler) signalCallEnded(ctx context.Context, claims *pkgjwt.Claims, conn *wsConn, env *entity.Envelope) {
	session, err := h.usecase.GetCall(ctx, env.CallID)
	if err != nil {
		h.writeSignalError(conn, env, err)
		return
	}

	var reason entity.EndReason
	switch session.Status {
	case entity.CallStatusActive:
		reason = entity.EndReasonCompleted
	case entity.CallStatusRinging:
		if session.Receiver.UserID == claims.UserID {
			reason = entity.EndReasonRejected
		} else {
			reason = entity.EndReasonMissed
		}
	default:
		h.writeSignalError(conn, env, &entity.InvalidTransitionError{
			ID:   env.CallID,
			From: string(session.Status),
			To:   string(entity.CallStatusCompleted),
		})
		return
	}

	h.signalTransition(ctx, claims, conn, env, func() (*entity.CallSession, error) {
		return h.usecase.RecordEnd(ctx, env.CallID, reason)
	})
}

func (h *Handler) signalIceCandidate(ctx context.Context, claims *pkgjwt.Claims, env *entity.Envelope) {
	session, err := h.usecase.GetCall(ctx, env.CallID)
	if err != nil {
		h.log.Debug("ice candidate for unknown call", slog.String("call_id", env.CallID))
		return
	}
	h.usecase.RecordIceExchange(ctx, env.CallID, claims.UserID)

	peer := h.peerOf(session, claims.UserID)
	h.relayFrame(ctx, claims.UserID, peer, &entity.Envelope{
		Type:      consts.SignalIceCandidate,
		CallID:    env.CallID,
		From:      claims.UserID,
		Candidate: env.Candidate,
	})
}

func (h *Handler) signalTranscript(ctx context.Context, claims *pkgjwt.Claims, conn *wsConn, env *entity.Envelope) {
	session, err := h.usecase.GetCall(ctx, env.CallID)
	if err != nil {
		h.writeSignalError(conn, env, err)
		return
	}

	role := entity.SpeakerRoleReceiver
	if session.Caller.UserID == claims.UserID {
		role = entity.SpeakerRoleCaller
	}

	// Mirroring to the other party happens inside the recorder.
	_, err = h.usecase.AppendTranscript(ctx, &entity.AppendTranscriptRequest{
		CallID:      env.CallID,
		SpeakerRole: role,
		Text:        env.Text,
		Timestamp:   env.Timestamp,
	})
	if err != nil {
		h.writeSignalError(conn, env, err)
	}
}

func (h *Handler) peerOf(session *entity.CallSession, userID string) string {
	if session.Caller.UserID == userID {
		return session.Receiver.UserID
	}
	return session.Caller.UserID
}

// relayFrame drops silently when the target is offline; stale signaling
// delivered late is worse than dropped signaling.
func (h *Handler) relayFrame(ctx context.Context, from, to string, frame *entity.Envelope) {
	if err := h.router.Relay(ctx, from, to, frame); err != nil {
		h.log.Debug("signal not delivered",
			slog.String("type", frame.Type),
			slog.String("call_id", frame.CallID),
			slog.String("to", to))
	}
}

func (h *Handler) writeSignalError(conn *wsConn, env *entity.Envelope, err error) {
	if werr := conn.WriteJSON(&entity.Envelope{
		Type:   env.Type,
		CallID: env.CallID,
		Error:  err.Error(),
	}); werr != nil {
		h.log.Debug("failed to write signal error", slog.String("error", werr.Error()))
	}
}
