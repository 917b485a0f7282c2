package attendance

import "github.com/matchi-app/matchi-api/internal/domain"

// Error is an application-layer error that can be mapped to an HTTP response.
type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func errUnauthenticated() *Error {
	return &Error{Status: 401, Code: "UNAUTHENTICATED", Message: "authentication required"}
}

func errUserNotProvisioned() *Error {
	return &Error{Status: 401, Code: "USER_NOT_PROVISIONED", Message: "user is not provisioned"}
}

func errEventNotFound() *Error {
	return &Error{Status: 404, Code: "EVENT_NOT_FOUND", Message: "event not found"}
}

func errEventNotActive(status domain.EventStatus) *Error {
	return &Error{
		Status:  409,
		Code:    "EVENT_NOT_ACTIVE",
		Message: "event is not accepting attendees",
		Details: map[string]any{"eventStatus": string(status)},
	}
}
