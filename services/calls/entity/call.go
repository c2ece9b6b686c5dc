package entity

import "time"

type UserType string

const (
	UserTypeDoctor     UserType = "doctor"
	UserTypePatient    UserType = "patient"
	UserTypeAshaWorker UserType = "asha_worker"
)

type CallType string

const (
	CallTypeAudio CallType = "audio"
	CallTypeVideo CallType = "video"
)

// Participant is an immutable snapshot of a user taken at call-creation
// time, so a call record stays a stable audit trail even if the account
// behind it changes later.
type Participant struct {
	UserID      string   `json:"user_id"`
	UserType    UserType `json:"user_type"`
	DisplayName string   `json:"display_name"`
}

type CallStatus string

const (
	CallStatusRinging   CallStatus = "ringing"
	CallStatusActive    CallStatus = "active"
	CallStatusCompleted CallStatus = "completed"
	CallStatusRejected  CallStatus = "rejected"
	CallStatusMissed    CallStatus = "missed"
	CallStatusFailed    CallStatus = "failed"
)

func (s CallStatus) Terminal() bool {
	switch s {
	case CallStatusCompleted, CallStatusRejected, CallStatusMissed, CallStatusFailed:
		return true
	}
	return false
}

type EndReason string

const (
	EndReasonCompleted EndReason = "completed"
	EndReasonRejected  EndReason = "rejected"
	EndReasonMissed    EndReason = "missed"
	EndReasonFailed    EndReason = "failed"
)

// TargetStatus maps an end reason to the terminal status it produces and
// the status the session must currently be in for the transition to be legal.
func (r EndReason) TargetStatus() (target CallStatus, from CallStatus, ok bool) {
	switch r {
	case EndReasonCompleted:
		return CallStatusCompleted, CallStatusActive, true
	case EndReasonFailed:
		return CallStatusFailed, CallStatusActive, true
	case EndReasonRejected:
		return CallStatusRejected, CallStatusRinging, true
	case EndReasonMissed:
		return CallStatusMissed, CallStatusRinging, true
	}
	return "", "", false
}

type SpeakerRole string

const (
	SpeakerRoleCaller   SpeakerRole = "caller"
	SpeakerRoleReceiver SpeakerRole = "receiver"
)

type TranscriptSegment struct {
	SpeakerRole SpeakerRole `json:"speaker_role"`
	Text        string      `json:"text"`
	Timestamp   time.Time   `json:"timestamp"`
}

// CallSession is the control-plane record of one real-time call attempt.
type CallSession struct {
	CallID   string      `json:"call_id"`
	Caller   Participant `json:"caller"`
	Receiver Participant `json:"receiver"`
	CallType CallType    `json:"call_type"`
	Status   CallStatus  `json:"status"`

	// Opaque context references passed through from the consultation flow.
	PatientID      string `json:"patient_id,omitempty"`
	ConsultationID string `json:"consultation_id,omitempty"`

	CreatedAt       time.Time  `json:"created_at"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationSeconds int        `json:"duration_seconds"`

	Transcript []TranscriptSegment `json:"transcript,omitempty"`
}

// Party returns the participant matching userID, or nil.
func (c *CallSession) Party(userID string) *Participant {
	switch userID {
	case c.Caller.UserID:
		return &c.Caller
	case c.Receiver.UserID:
		return &c.Receiver
	}
	return nil
}

// OtherParty returns the participant on the opposite side of role.
func (c *CallSession) OtherParty(role SpeakerRole) Participant {
	if role == SpeakerRoleCaller {
		return c.Receiver
	}
	return c.Caller
}

func (c *CallSession) Clone() *CallSession {
	cp := *c
	if c.StartTime != nil {
		t := *c.StartTime
		cp.StartTime = &t
	}
	if c.EndTime != nil {
		t := *c.EndTime
		cp.EndTime = &t
	}
	cp.Transcript = make([]TranscriptSegment, len(c.Transcript))
	copy(cp.Transcript, c.Transcript)
	return &cp
}
