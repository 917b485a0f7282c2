package userrepo

import (
	"context"
	"sync"

	"github.com/matchi-app/matchi-api/internal/domain"
	"github.com/matchi-app/matchi-api/internal/ports/out/userrepo"
)

// Repo is an in-memory implementation of userrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu sync.RWMutex

	byID    map[domain.UserID]userrepo.User
	idBySub map[domain.SubjectID]domain.UserID
}

func NewRepo() *Repo {
	return &Repo{
		byID:    make(map[domain.UserID]userrepo.User),
		idBySub: make(map[domain.SubjectID]domain.UserID),
	}
}

func (r *Repo) Create(ctx context.Context, u userrepo.User) error {
	_ = ctx
	if u.ID == "" {
		return userrepo.ErrAlreadyExists
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[u.ID]; ok {
		return userrepo.ErrAlreadyExists
	}
	if existingID, ok := r.idBySub[u.Subject]; ok && existingID != "" {
		return userrepo.ErrSubjectAlreadyBound
	}

	r.byID[u.ID] = u
	r.idBySub[u.Subject] = u.ID
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.UserID) (userrepo.User, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return userrepo.User{}, userrepo.ErrNotFound
	}
	return u, nil
}

func (r *Repo) GetBySubject(ctx context.Context, subject domain.SubjectID) (userrepo.User, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.idBySub[subject]
	if !ok {
		return userrepo.User{}, userrepo.ErrNotFound
	}
	u, ok := r.byID[id]
	if !ok {
		return userrepo.User{}, userrepo.ErrNotFound
	}
	return u, nil
}
