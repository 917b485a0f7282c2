package attendance

import "github.com/matchi-app/matchi-api/internal/domain"

type JoinResult struct {
	Status     domain.AttendanceStatus
	Outcome    domain.JoinOutcome
	Attendance domain.Attendance
}

type LeaveResult struct {
	Outcome domain.LeaveOutcome

	// PreviousStatus is empty when Outcome is NOT_JOINED.
	PreviousStatus domain.AttendanceStatus

	// PromotedUserID is set when leaving freed a seat that went to the
	// earliest waitlisted user.
	PromotedUserID *domain.UserID
}
