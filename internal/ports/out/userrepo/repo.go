package userrepo

import (
	"context"
	"time"

	"github.com/matchi-app/matchi-api/internal/domain"
)

// User is the persistence shape used by the user repository.
type User struct {
	ID      domain.UserID
	Subject domain.SubjectID

	DisplayName string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository provides access to provisioned users.
type Repository interface {
	Create(ctx context.Context, u User) error

	GetByID(ctx context.Context, id domain.UserID) (User, error)
	GetBySubject(ctx context.Context, subject domain.SubjectID) (User, error)
}
