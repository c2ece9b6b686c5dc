package entity

import "time"

type ScheduleStatus string

const (
	ScheduleStatusPending   ScheduleStatus = "pending"
	ScheduleStatusConfirmed ScheduleStatus = "confirmed"
	ScheduleStatusCompleted ScheduleStatus = "completed"
	ScheduleStatusMissed    ScheduleStatus = "missed"
	ScheduleStatusCancelled ScheduleStatus = "cancelled"
)

type ScheduleOutcome string

const (
	ScheduleOutcomeCompleted ScheduleOutcome = "completed"
	ScheduleOutcomeMissed    ScheduleOutcome = "missed"
)

type Acceptance struct {
	UserID     string    `json:"user_id"`
	UserType   UserType  `json:"user_type"`
	AcceptedAt time.Time `json:"accepted_at"`
}

// CallSchedule is a pre-agreed future call tied to a follow-up request.
// It confirms once two distinct users of two different roles have accepted;
// the initiating doctor counts as pre-accepted at creation.
type CallSchedule struct {
	ScheduleID      string         `json:"schedule_id"`
	FollowUpID      string         `json:"follow_up_id"`
	PatientID       string         `json:"patient_id"`
	CreatedBy       Participant    `json:"created_by"`
	CallType        CallType       `json:"call_type"`
	ScheduledTime   time.Time      `json:"scheduled_time"`
	DurationMinutes int            `json:"duration_minutes"`
	Status          ScheduleStatus `json:"status"`
	Acceptances     []Acceptance   `json:"acceptances"`
	CallLink        string         `json:"call_link,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

func (s *CallSchedule) HasAccepted(userID string) bool {
	for _, a := range s.Acceptances {
		if a.UserID == userID {
			return true
		}
	}
	return false
}

// Quorum reports whether the acceptance set holds at least two distinct
// users spanning at least two distinct roles.
func (s *CallSchedule) Quorum() bool {
	if len(s.Acceptances) < 2 {
		return false
	}
	roles := make(map[UserType]bool, len(s.Acceptances))
	for _, a := range s.Acceptances {
		roles[a.UserType] = true
	}
	return len(roles) >= 2
}

func (s *CallSchedule) Clone() *CallSchedule {
	cp := *s
	cp.Acceptances = make([]Acceptance, len(s.Acceptances))
	copy(cp.Acceptances, s.Acceptances)
	return &cp
}
