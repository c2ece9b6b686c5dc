package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	pkgjson "github.com/rishabh280305/SehatMitra-sub000/pkg/json"
	pkgjwt "github.com/rishabh280305/SehatMitra-sub000/pkg/jwt"
	"github.com/rishabh280305/SehatMitra-sub000/services/calls/entity"
	"github.com/rishabh280305/SehatMitra-sub000/services/calls/signal"
	"github.com/rishabh280305/SehatMitra-sub000/services/calls/usecase"
)

type Handler struct {
	usecase   usecase.Usecase
	router    *signal.Router
	jwtSecret string
	log       *slog.Logger
}

func New(uc usecase.Usecase, router *signal.Router, jwtSecret string, log *slog.Logger) *Handler {
	return &Handler{
		usecase:   uc,
		router:    router,
		jwtSecret: jwtSecret,
		log:       log,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/v1/health", h.HealthCheck)
	r.Get("/ws", h.HandleWS)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(h.authenticate)

		api.Route("/calls", func(calls chi.Router) {
			calls.Post("/", h.InitiateCall)
			calls.Get("/{call_id}", h.GetCall)
			calls.Get("/history/{user_id}", h.CallHistory)
			calls.Post("/{call_id}/transcript", h.AppendTranscript)
			calls.Get("/{call_id}/transcript", h.GetTranscript)
		})

		api.Route("/schedules", func(schedules chi.Router) {
			schedules.Post("/", h.CreateSchedule)
			schedules.Get("/{schedule_id}", h.GetSchedule)
			schedules.Post("/{schedule_id}/accept", h.AcceptSchedule)
			schedules.Post("/{schedule_id}/decline", h.DeclineSchedule)
			schedules.Post("/{schedule_id}/outcome", h.ScheduleOutcome)
			schedules.Get("/pending/{user_id}", h.PendingSchedules)
		})
	})

	h.log.Info("routes registered")
}

type claimsKeyType string

const claimsKey claimsKeyType = "claims"

func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if len(auth) < 8 || auth[:7] != "Bearer " {
			pkgjson.WriteError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		claims, err := pkgjwt.Parse(r.Context(), auth[7:], h.jwtSecret)
		if err != nil {
			h.log.Warn("token rejected", slog.String("error", err.Error()))
			pkgjson.WriteError(w, http.StatusUnauthorized, errors.New("invalid token"))
			return
		}

		ctx := withClaims(r.Context(), claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	pkgjson.WriteJSON(w, http.StatusOK, map[string]bool{"status": true})
}

type InitiateCallRequest struct {
	CallID         string `json:"call_id,omitempty"`
	ReceiverID     string `json:"receiver_id"`
	CallType       string `json:"call_type"`
	PatientID      string `json:"patient_id,omitempty"`
	ConsultationID string `json:"consultation_id,omitempty"`
}

func (h *Handler) InitiateCall(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	var req InitiateCallRequest
	if err := pkgjson.ParseJSON(r, &req); err != nil {
		pkgjson.WriteError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	if req.ReceiverID == "" {
		pkgjson.WriteError(w, http.StatusBadRequest, errors.New("receiver_id is required"))
		return
	}

	h.log.Info("initiate call request",
		slog.String("caller", claims.UserID),
		slog.String("receiver", req.ReceiverID),
		slog.String("call_type", req.CallType))

	session, err := h.usecase.InitiateCall(r.Context(), &entity.InitiateCallRequest{
		CallID:         req.CallID,
		CallerID:       claims.UserID,
		ReceiverID:     req.ReceiverID,
		CallType:       entity.CallType(req.CallType),
		PatientID:      req.PatientID,
		ConsultationID: req.ConsultationID,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	pkgjson.WriteJSON(w, http.StatusCreated, session)
}

func (h *Handler) GetCall(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "call_id")

	session, err := h.usecase.GetCall(r.Context(), callID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	pkgjson.WriteJSON(w, http.StatusOK, session)
}

func (h *Handler) CallHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	sessions, err := h.usecase.ListCallHistory(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if sessions == nil {
		sessions = []*entity.CallSession{}
	}
	pkgjson.WriteJSON(w, http.StatusOK, sessions)
}

type AppendTranscriptRequest struct {
	SpeakerRole string    `json:"speaker_role"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp,omitzero"`
}

func (h *Handler) AppendTranscript(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "call_id")

	var req AppendTranscriptRequest
	if err := pkgjson.ParseJSON(r, &req); err != nil {
		pkgjson.WriteError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	if req.Text == "" {
		pkgjson.WriteError(w, http.StatusBadRequest, errors.New("text is required"))
		return
	}

	segment, err := h.usecase.AppendTranscript(r.Context(), &entity.AppendTranscriptRequest{
		CallID:      callID,
		SpeakerRole: entity.SpeakerRole(req.SpeakerRole),
		Text:        req.Text,
		Timestamp:   req.Timestamp,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	pkgjson.WriteJSON(w, http.StatusCreated, segment)
}

type TranscriptResponse struct {
	CallID   string                     `json:"call_id"`
	FullText string                     `json:"full_text"`
	Segments []entity.TranscriptSegment `json:"segments"`
}

func (h *Handler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "call_id")

	session, err := h.usecase.GetCall(r.Context(), callID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	fullText, err := h.usecase.RenderTranscript(r.Context(), callID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	pkgjson.WriteJSON(w, http.StatusOK, TranscriptResponse{
		CallID:   callID,
		FullText: fullText,
		Segments: session.Transcript,
	})
}

type CreateScheduleRequest struct {
	FollowUpID      string    `json:"follow_up_id"`
	PatientID       string    `json:"patient_id"`
	CallType        string    `json:"call_type"`
	ScheduledTime   time.Time `json:"scheduled_time"`
	DurationMinutes int       `json:"duration_minutes"`
}

func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	var req CreateScheduleRequest
	if err := pkgjson.ParseJSON(r, &req); err != nil {
		pkgjson.WriteError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	if req.PatientID == "" {
		pkgjson.WriteError(w, http.StatusBadRequest, errors.New("patient_id is required"))
		return
	}

	schedule, err := h.usecase.CreateSchedule(r.Context(), &entity.CreateScheduleRequest{
		FollowUpID: req.FollowUpID,
		PatientID:  req.PatientID,
		Doctor: entity.Participant{
			UserID:      claims.UserID,
			UserType:    entity.UserType(claims.UserType),
			DisplayName: claims.Name,
		},
		CallType:        entity.CallType(req.CallType),
		ScheduledTime:   req.ScheduledTime,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	pkgjson.WriteJSON(w, http.StatusCreated, schedule)
}

func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	scheduleID := chi.URLParam(r, "schedule_id")

	schedule, err := h.usecase.GetSchedule(r.Context(), scheduleID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	pkgjson.WriteJSON(w, http.StatusOK, schedule)
}

func (h *Handler) AcceptSchedule(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	scheduleID := chi.URLParam(r, "schedule_id")

	schedule, err := h.usecase.AcceptSchedule(r.Context(), scheduleID,
		claims.UserID, entity.UserType(claims.UserType))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	pkgjson.WriteJSON(w, http.StatusOK, schedule)
}

func (h *Handler) DeclineSchedule(w http.ResponseWriter, r *http.Request) {
	scheduleID := chi.URLParam(r, "schedule_id")

	schedule, err := h.usecase.DeclineSchedule(r.Context(), scheduleID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	pkgjson.WriteJSON(w, http.StatusOK, schedule)
}

type ScheduleOutcomeRequest struct {
	Outcome string `json:"outcome"`
}

func (h *Handler) ScheduleOutcome(w http.ResponseWriter, r *http.Request) {
	scheduleID := chi.URLParam(r, "schedule_id")

	var req ScheduleOutcomeRequest
	if err := pkgjson.ParseJSON(r, &req); err != nil {
		pkgjson.WriteError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	schedule, err := h.usecase.MarkScheduleOutcome(r.Context(), scheduleID,
		entity.ScheduleOutcome(req.Outcome))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	pkgjson.WriteJSON(w, http.StatusOK, schedule)
}

func (h *Handler) PendingSchedules(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	schedules, err := h.usecase.ListPendingSchedules(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if schedules == nil {
		schedules = []*entity.CallSchedule{}
	}
	pkgjson.WriteJSON(w, http.StatusOK, schedules)
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, entity.ErrCallNotFound), errors.Is(err, entity.ErrScheduleNotFound):
		pkgjson.WriteError(w, http.StatusNotFound, err)
	case errors.Is(err, entity.ErrReceiverUnknown):
		pkgjson.WriteError(w, http.StatusNotFound, err)
	case entity.IsInvalidTransition(err), errors.Is(err, entity.ErrCallNotActive):
		pkgjson.WriteError(w, http.StatusConflict, err)
	default:
		h.log.Error("request failed", slog.String("error", err.Error()))
		pkgjson.WriteError(w, http.StatusInternalServerError, err)
	}
}
