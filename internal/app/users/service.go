package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matchi-app/matchi-api/internal/domain"
	"github.com/matchi-app/matchi-api/internal/platform/validation"
	clockport "github.com/matchi-app/matchi-api/internal/ports/out/clock"
	"github.com/matchi-app/matchi-api/internal/ports/out/userrepo"
)

type Service struct {
	repo userrepo.Repository
	clk  clockport.Clock
	log  *zap.Logger

	newUserID func() domain.UserID
}

func NewService(repo userrepo.Repository, clk clockport.Clock, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo: repo,
		clk:  clk,
		log:  log,
		newUserID: func() domain.UserID {
			return domain.UserID(uuid.NewString())
		},
	}
}

// SetNewUserIDForTest overrides user ID generation for deterministic tests.
// It should not be used in production code.
func (s *Service) SetNewUserIDForTest(fn func() domain.UserID) {
	if fn != nil {
		s.newUserID = fn
	}
}

var errUnauthenticated = &Error{
	Status:  401,
	Code:    "UNAUTHENTICATED",
	Message: "authentication required",
}

// ResolveCaller maps an authenticated subject to its provisioned user.
func (s *Service) ResolveCaller(ctx context.Context, subject domain.SubjectID) (domain.UserID, error) {
	if subject == "" {
		return "", errUnauthenticated
	}
	u, err := s.repo.GetBySubject(ctx, subject)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return "", &Error{
				Status:  401,
				Code:    "USER_NOT_PROVISIONED",
				Message: "No user profile exists for the authenticated subject.",
			}
		}
		return "", err
	}
	return u.ID, nil
}

func (s *Service) GetMe(ctx context.Context, subject domain.SubjectID) (domain.User, error) {
	if subject == "" {
		return domain.User{}, errUnauthenticated
	}
	u, err := s.repo.GetBySubject(ctx, subject)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return domain.User{}, &Error{
				Status:  404,
				Code:    "USER_NOT_PROVISIONED",
				Message: "No user profile exists for the authenticated subject.",
			}
		}
		return domain.User{}, err
	}
	return toDomain(u), nil
}

func (s *Service) RegisterMe(ctx context.Context, subject domain.SubjectID, in RegisterMeInput) (domain.User, error) {
	if subject == "" {
		return domain.User{}, errUnauthenticated
	}

	in.DisplayName = domain.NormalizeHumanName(in.DisplayName)
	if details := validation.Struct(in); details != nil {
		return domain.User{}, &Error{
			Status:  422,
			Code:    "VALIDATION_ERROR",
			Message: "invalid user profile",
			Details: details,
		}
	}

	if _, err := s.repo.GetBySubject(ctx, subject); err == nil {
		return domain.User{}, errAlreadyExists()
	} else if !errors.Is(err, userrepo.ErrNotFound) {
		return domain.User{}, err
	}

	now := s.clk.Now()
	u := userrepo.User{
		ID:          s.newUserID(),
		Subject:     subject,
		DisplayName: in.DisplayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, userrepo.ErrSubjectAlreadyBound) {
			return domain.User{}, errAlreadyExists()
		}
		return domain.User{}, err
	}
	s.log.Info("user registered", zap.String("user_id", string(u.ID)))
	return toDomain(u), nil
}

// Summaries resolves display names for ids, preserving order. Unknown ids
// are returned with an empty display name.
func (s *Service) Summaries(ctx context.Context, ids []domain.UserID) ([]domain.UserSummary, error) {
	out := make([]domain.UserSummary, 0, len(ids))
	for _, id := range ids {
		u, err := s.repo.GetByID(ctx, id)
		if err != nil && !errors.Is(err, userrepo.ErrNotFound) {
			return nil, err
		}
		out = append(out, domain.UserSummary{ID: id, DisplayName: u.DisplayName})
	}
	return out, nil
}

func errAlreadyExists() *Error {
	return &Error{
		Status:  409,
		Code:    "USER_ALREADY_EXISTS",
		Message: "A user profile already exists for the authenticated subject.",
	}
}

func toDomain(u userrepo.User) domain.User {
	return domain.User{
		ID:          u.ID,
		Subject:     u.Subject,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}
