package eventrepo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/matchi-app/matchi-api/internal/domain"
	"github.com/matchi-app/matchi-api/internal/ports/out/eventrepo"
)

// Repo is an in-memory implementation of eventrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu   sync.RWMutex
	byID map[domain.EventID]eventrepo.Event
}

func NewRepo() *Repo {
	return &Repo{
		byID: make(map[domain.EventID]eventrepo.Event),
	}
}

func (r *Repo) Create(ctx context.Context, e eventrepo.Event) error {
	_ = ctx
	if e.ID == "" {
		return eventrepo.ErrAlreadyExists
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[e.ID]; ok {
		return eventrepo.ErrAlreadyExists
	}
	r.byID[e.ID] = cloneEvent(e)
	return nil
}

func (r *Repo) Update(ctx context.Context, e eventrepo.Event) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[e.ID]; !ok {
		return eventrepo.ErrNotFound
	}
	r.byID[e.ID] = cloneEvent(e)
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.EventID) (eventrepo.Event, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	if !ok {
		return eventrepo.Event{}, eventrepo.ErrNotFound
	}
	return cloneEvent(e), nil
}

func (r *Repo) ListUpcoming(ctx context.Context, from time.Time, f eventrepo.ListFilter) ([]eventrepo.Event, error) {
	_ = ctx
	city := strings.ToLower(strings.TrimSpace(f.City))
	search := strings.ToLower(strings.TrimSpace(f.Search))

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]eventrepo.Event, 0)
	for _, e := range r.byID {
		if e.Status != domain.EventStatusActive || e.StartsAt.Before(from) {
			continue
		}
		if f.Type != nil && e.Type != *f.Type {
			continue
		}
		if city != "" && !strings.Contains(strings.ToLower(e.LocationAddress), city) {
			continue
		}
		if search != "" && !matchesSearch(e, search) {
			continue
		}
		out = append(out, cloneEvent(e))
	}
	sortEvents(out)
	return out, nil
}

func (r *Repo) ListActiveStartedBefore(ctx context.Context, cutoff time.Time) ([]eventrepo.Event, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]eventrepo.Event, 0)
	for _, e := range r.byID {
		if e.Status == domain.EventStatusActive && e.StartsAt.Before(cutoff) {
			out = append(out, cloneEvent(e))
		}
	}
	sortEvents(out)
	return out, nil
}

func matchesSearch(e eventrepo.Event, q string) bool {
	if strings.Contains(strings.ToLower(e.Title), q) {
		return true
	}
	return e.Description != nil && strings.Contains(strings.ToLower(*e.Description), q)
}

func sortEvents(es []eventrepo.Event) {
	sort.Slice(es, func(i, j int) bool {
		if es[i].StartsAt.Equal(es[j].StartsAt) {
			return string(es[i].ID) < string(es[j].ID)
		}
		return es[i].StartsAt.Before(es[j].StartsAt)
	})
}

func cloneEvent(e eventrepo.Event) eventrepo.Event {
	out := e
	if e.Description != nil {
		v := *e.Description
		out.Description = &v
	}
	out.Tags = append([]string(nil), e.Tags...)
	return out
}
