package infopostrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/matchi-app/matchi-api/internal/domain"
	"github.com/matchi-app/matchi-api/internal/ports/out/infopostrepo"
)

// Repo is an in-memory implementation of infopostrepo.Repository.
// It is safe for concurrent use. Author references are not checked.
type Repo struct {
	mu   sync.RWMutex
	byID map[domain.InfoPostID]infopostrepo.Post
}

func NewRepo() *Repo {
	return &Repo{
		byID: make(map[domain.InfoPostID]infopostrepo.Post),
	}
}

func (r *Repo) Create(ctx context.Context, p infopostrepo.Post) error {
	_ = ctx
	if p.ID == "" {
		return infopostrepo.ErrAlreadyExists
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[p.ID]; ok {
		return infopostrepo.ErrAlreadyExists
	}
	r.byID[p.ID] = clonePost(p)
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.InfoPostID) (infopostrepo.Post, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return infopostrepo.Post{}, infopostrepo.ErrNotFound
	}
	return clonePost(p), nil
}

func (r *Repo) IncrementViews(ctx context.Context, id domain.InfoPostID) (infopostrepo.Post, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return infopostrepo.Post{}, infopostrepo.ErrNotFound
	}
	p.ViewCount++
	r.byID[id] = p
	return clonePost(p), nil
}

func (r *Repo) CountByCategory(ctx context.Context) (map[domain.InfoCategory]int, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[domain.InfoCategory]int)
	for _, p := range r.byID {
		out[p.Category]++
	}
	return out, nil
}

func (r *Repo) ListRecent(ctx context.Context, limit int) ([]infopostrepo.Post, error) {
	return r.list(ctx, func(infopostrepo.Post) bool { return true }, limit)
}

func (r *Repo) ListByCategory(ctx context.Context, c domain.InfoCategory, limit int) ([]infopostrepo.Post, error) {
	return r.list(ctx, func(p infopostrepo.Post) bool { return p.Category == c }, limit)
}

func (r *Repo) list(ctx context.Context, keep func(infopostrepo.Post) bool, limit int) ([]infopostrepo.Post, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]infopostrepo.Post, 0)
	for _, p := range r.byID {
		if keep(p) {
			out = append(out, clonePost(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return string(out[i].ID) > string(out[j].ID)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func clonePost(p infopostrepo.Post) infopostrepo.Post {
	out := p
	out.Tags = append([]string(nil), p.Tags...)
	return out
}
