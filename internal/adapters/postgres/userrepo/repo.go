package userrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/matchi-app/matchi-api/internal/adapters/postgres"
	"github.com/matchi-app/matchi-api/internal/domain"
	"github.com/matchi-app/matchi-api/internal/ports/out/userrepo"
)

// Repo is a Postgres implementation of userrepo.Repository.
//
// Subjects are scoped to the configured JWT issuer.
type Repo struct {
	pool   *pgxpool.Pool
	issuer string
}

func NewRepo(pool *pgxpool.Pool, jwtIssuer string) *Repo {
	return &Repo{pool: pool, issuer: jwtIssuer}
}

func (r *Repo) Create(ctx context.Context, u userrepo.User) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(u.ID))
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO users (
			id,
			subject_iss,
			subject_sub,
			display_name,
			created_at,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`,
		id,
		r.issuer,
		string(u.Subject),
		u.DisplayName,
		u.CreatedAt.UTC(),
		u.UpdatedAt.UTC(),
	)
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
			switch pe.ConstraintName {
			case "users_subject_unique":
				return userrepo.ErrSubjectAlreadyBound
			case "users_pkey":
				return userrepo.ErrAlreadyExists
			}
		}
		return err
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.UserID) (userrepo.User, error) {
	if r.pool == nil {
		return userrepo.User{}, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return userrepo.User{}, userrepo.ErrNotFound
	}
	return r.scanOne(r.pool.QueryRow(ctx, `
		SELECT id, subject_sub, display_name, created_at, updated_at
		FROM users
		WHERE id = $1
	`, uid))
}

func (r *Repo) GetBySubject(ctx context.Context, subject domain.SubjectID) (userrepo.User, error) {
	if r.pool == nil {
		return userrepo.User{}, errors.New("nil postgres pool")
	}
	return r.scanOne(r.pool.QueryRow(ctx, `
		SELECT id, subject_sub, display_name, created_at, updated_at
		FROM users
		WHERE subject_iss = $1 AND subject_sub = $2
	`, r.issuer, string(subject)))
}

func (r *Repo) scanOne(row pgx.Row) (userrepo.User, error) {
	var (
		id  uuid.UUID
		sub string
		u   userrepo.User
	)
	if err := row.Scan(&id, &sub, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return userrepo.User{}, userrepo.ErrNotFound
		}
		return userrepo.User{}, err
	}
	u.ID = domain.UserID(id.String())
	u.Subject = domain.SubjectID(sub)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}
