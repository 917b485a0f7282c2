package domain

import "time"

// User is the domain representation of a provisioned user profile.
type User struct {
	ID      UserID
	Subject SubjectID

	DisplayName string

	CreatedAt time.Time
	UpdatedAt time.Time
}

type UserSummary struct {
	ID          UserID
	DisplayName string
}
