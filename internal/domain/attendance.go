package domain

import "time"

type AttendanceStatus string

const (
	AttendanceStatusConfirmed AttendanceStatus = "confirmed"
	AttendanceStatusWaitlist  AttendanceStatus = "waitlist"
	AttendanceStatusCancelled AttendanceStatus = "cancelled"
)

// Active reports whether the record occupies a seat or a waitlist position.
func (s AttendanceStatus) Active() bool {
	return s == AttendanceStatusConfirmed || s == AttendanceStatusWaitlist
}

type Attendance struct {
	EventID   EventID
	UserID    UserID
	Status    AttendanceStatus
	JoinedAt  time.Time
	UpdatedAt time.Time
}

type JoinOutcome string

const (
	JoinOutcomeJoined        JoinOutcome = "JOINED"
	JoinOutcomeAlreadyJoined JoinOutcome = "ALREADY_JOINED"
)

type LeaveOutcome string

const (
	LeaveOutcomeLeft      LeaveOutcome = "LEFT"
	LeaveOutcomeNotJoined LeaveOutcome = "NOT_JOINED"
)

// AttendanceSummary is a per-event snapshot of seats and waitlist.
//
// ConfirmedUsers is ordered by JoinedAt ascending.
type AttendanceSummary struct {
	EventID  EventID
	Capacity int

	ConfirmedCount int
	SpotsLeft      int
	WaitlistCount  int

	ConfirmedUsers []UserSummary
}
