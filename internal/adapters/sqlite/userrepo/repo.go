package userrepo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/matchi-app/matchi-api/internal/adapters/sqlite"
	"github.com/matchi-app/matchi-api/internal/domain"
	"github.com/matchi-app/matchi-api/internal/ports/out/userrepo"
)

// Repo is a SQLite implementation of userrepo.Repository.
type Repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, u userrepo.User) error {
	if r.db == nil {
		return errors.New("nil sqlite db")
	}
	if u.ID == "" {
		return userrepo.ErrAlreadyExists
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, subject, display_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		string(u.ID),
		string(u.Subject),
		u.DisplayName,
		sqlite.Nanos(u.CreatedAt),
		sqlite.Nanos(u.UpdatedAt),
	)
	switch {
	case err == nil:
		return nil
	case sqlite.IsPrimaryKeyViolation(err):
		return userrepo.ErrAlreadyExists
	case sqlite.IsUniqueViolation(err):
		return userrepo.ErrSubjectAlreadyBound
	default:
		return err
	}
}

func (r *Repo) GetByID(ctx context.Context, id domain.UserID) (userrepo.User, error) {
	if r.db == nil {
		return userrepo.User{}, errors.New("nil sqlite db")
	}
	return scanUser(r.db.QueryRowContext(ctx, `
		SELECT id, subject, display_name, created_at, updated_at
		FROM users
		WHERE id = ?
	`, string(id)))
}

func (r *Repo) GetBySubject(ctx context.Context, subject domain.SubjectID) (userrepo.User, error) {
	if r.db == nil {
		return userrepo.User{}, errors.New("nil sqlite db")
	}
	return scanUser(r.db.QueryRowContext(ctx, `
		SELECT id, subject, display_name, created_at, updated_at
		FROM users
		WHERE subject = ?
	`, string(subject)))
}

func scanUser(row *sql.Row) (userrepo.User, error) {
	var (
		id, sub              string
		u                    userrepo.User
		createdAt, updatedAt int64
	)
	if err := row.Scan(&id, &sub, &u.DisplayName, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return userrepo.User{}, userrepo.ErrNotFound
		}
		return userrepo.User{}, err
	}
	u.ID = domain.UserID(id)
	u.Subject = domain.SubjectID(sub)
	u.CreatedAt = sqlite.FromNanos(createdAt)
	u.UpdatedAt = sqlite.FromNanos(updatedAt)
	return u, nil
}
