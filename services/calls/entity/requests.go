package entity

import "time"

type InitiateCallRequest struct {
	// CallID is optional; a server-generated id is used when empty.
	CallID         string
	CallerID       string
	ReceiverID     string
	CallType       CallType
	PatientID      string
	ConsultationID string
}

type CreateScheduleRequest struct {
	FollowUpID      string
	PatientID       string
	Doctor          Participant
	CallType        CallType
	ScheduledTime   time.Time
	DurationMinutes int
}

type AppendTranscriptRequest struct {
	CallID      string
	SpeakerRole SpeakerRole
	Text        string
	Timestamp   time.Time
}
