package attendancerepo

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/matchi-app/matchi-api/internal/domain"
	"github.com/matchi-app/matchi-api/internal/ports/out/attendancerepo"
	"github.com/matchi-app/matchi-api/internal/ports/out/eventrepo"
)

type entry struct {
	rec attendancerepo.Record
	// seq orders records that share a JoinedAt. It is reassigned whenever
	// JoinedAt changes or a cancelled record becomes active again.
	seq uint64
}

// Repo is an in-memory implementation of attendancerepo.Repository.
// It is safe for concurrent use.
//
// Each event has its own lock so units of work on different events never contend.
// Writes made inside InEventTx are staged and only published when fn succeeds.
type Repo struct {
	events eventrepo.Repository

	mu      sync.RWMutex
	byEvent map[domain.EventID]map[domain.UserID]entry
	locks   map[domain.EventID]*eventLock

	seq atomic.Uint64
}

func NewRepo(events eventrepo.Repository) *Repo {
	return &Repo{
		events:  events,
		byEvent: make(map[domain.EventID]map[domain.UserID]entry),
		locks:   make(map[domain.EventID]*eventLock),
	}
}

func (r *Repo) InEventTx(ctx context.Context, eventID domain.EventID, fn func(ctx context.Context, ev attendancerepo.EventState, tx attendancerepo.Tx) error) error {
	lock := r.acquireRef(eventID)
	defer r.releaseRef(eventID, lock)
	select {
	case lock.ch <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-lock.ch }()

	e, err := r.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, eventrepo.ErrNotFound) {
			return attendancerepo.ErrEventNotFound
		}
		return err
	}

	tx := &memTx{
		repo:    r,
		eventID: eventID,
		cap:     e.Capacity,
		staged:  make(map[domain.UserID]entry),
	}
	if err := fn(ctx, attendancerepo.EventState{ID: e.ID, Capacity: e.Capacity, Status: e.Status}, tx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.byEvent[eventID]
	if m == nil {
		m = make(map[domain.UserID]entry)
		r.byEvent[eventID] = m
	}
	for uid, en := range tx.staged {
		m[uid] = en
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, eventID domain.EventID, userID domain.UserID) (attendancerepo.Record, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	en, ok := r.byEvent[eventID][userID]
	if !ok {
		return attendancerepo.Record{}, attendancerepo.ErrNotFound
	}
	return en.rec, nil
}

func (r *Repo) ListByEvent(ctx context.Context, eventID domain.EventID) ([]attendancerepo.Record, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	es := make([]entry, 0, len(r.byEvent[eventID]))
	for _, en := range r.byEvent[eventID] {
		if en.rec.Status.Active() {
			es = append(es, en)
		}
	}
	sortEntries(es)
	out := make([]attendancerepo.Record, 0, len(es))
	for _, en := range es {
		out = append(out, en.rec)
	}
	return out, nil
}

func (r *Repo) ListByUser(ctx context.Context, userID domain.UserID) ([]attendancerepo.Record, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	es := make([]entry, 0)
	for _, m := range r.byEvent {
		if en, ok := m[userID]; ok && en.rec.Status.Active() {
			es = append(es, en)
		}
	}
	sortEntries(es)
	out := make([]attendancerepo.Record, 0, len(es))
	for i := len(es) - 1; i >= 0; i-- {
		out = append(out, es[i].rec)
	}
	return out, nil
}

// eventLock is a one-slot channel so waiting honors ctx. refs counts the
// units of work holding or waiting on it; the lock is dropped at zero.
type eventLock struct {
	ch   chan struct{}
	refs int
}

func (r *Repo) acquireRef(eventID domain.EventID) *eventLock {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[eventID]
	if !ok {
		l = &eventLock{ch: make(chan struct{}, 1)}
		r.locks[eventID] = l
	}
	l.refs++
	return l
}

func (r *Repo) releaseRef(eventID domain.EventID, l *eventLock) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(r.locks, eventID)
	}
}

func (r *Repo) lockCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.locks)
}

type memTx struct {
	repo    *Repo
	eventID domain.EventID
	cap     int
	staged  map[domain.UserID]entry
}

func (t *memTx) lookup(userID domain.UserID) (entry, bool) {
	if en, ok := t.staged[userID]; ok {
		return en, true
	}
	t.repo.mu.RLock()
	defer t.repo.mu.RUnlock()
	en, ok := t.repo.byEvent[t.eventID][userID]
	return en, ok
}

// view merges committed records with staged writes.
func (t *memTx) view() []entry {
	t.repo.mu.RLock()
	merged := make(map[domain.UserID]entry, len(t.repo.byEvent[t.eventID])+len(t.staged))
	for uid, en := range t.repo.byEvent[t.eventID] {
		merged[uid] = en
	}
	t.repo.mu.RUnlock()
	for uid, en := range t.staged {
		merged[uid] = en
	}
	out := make([]entry, 0, len(merged))
	for _, en := range merged {
		out = append(out, en)
	}
	return out
}

func (t *memTx) Get(ctx context.Context, userID domain.UserID) (attendancerepo.Record, error) {
	_ = ctx
	en, ok := t.lookup(userID)
	if !ok {
		return attendancerepo.Record{}, attendancerepo.ErrNotFound
	}
	return en.rec, nil
}

func (t *memTx) CountConfirmed(ctx context.Context) (int, error) {
	_ = ctx
	n := 0
	for _, en := range t.view() {
		if en.rec.Status == domain.AttendanceStatusConfirmed {
			n++
		}
	}
	return n, nil
}

func (t *memTx) EarliestWaitlisted(ctx context.Context) (attendancerepo.Record, error) {
	_ = ctx
	ws := make([]entry, 0)
	for _, en := range t.view() {
		if en.rec.Status == domain.AttendanceStatusWaitlist {
			ws = append(ws, en)
		}
	}
	if len(ws) == 0 {
		return attendancerepo.Record{}, attendancerepo.ErrNotFound
	}
	sortEntries(ws)
	return ws[0].rec, nil
}

func (t *memTx) Insert(ctx context.Context, rec attendancerepo.Record) error {
	if rec.EventID != t.eventID {
		return attendancerepo.ErrEventNotFound
	}
	if _, ok := t.lookup(rec.UserID); ok {
		return attendancerepo.ErrAlreadyExists
	}
	if rec.Status == domain.AttendanceStatusConfirmed {
		n, _ := t.CountConfirmed(ctx)
		if n >= t.cap {
			return attendancerepo.ErrCapacityExceeded
		}
	}
	t.staged[rec.UserID] = entry{rec: rec, seq: t.repo.seq.Add(1)}
	return nil
}

func (t *memTx) Update(ctx context.Context, rec attendancerepo.Record) error {
	if rec.EventID != t.eventID {
		return attendancerepo.ErrNotFound
	}
	prev, ok := t.lookup(rec.UserID)
	if !ok {
		return attendancerepo.ErrNotFound
	}
	if rec.Status == domain.AttendanceStatusConfirmed && prev.rec.Status != domain.AttendanceStatusConfirmed {
		n, _ := t.CountConfirmed(ctx)
		if n >= t.cap {
			return attendancerepo.ErrCapacityExceeded
		}
	}
	seq := prev.seq
	reactivated := !prev.rec.Status.Active() && rec.Status.Active()
	if reactivated || !rec.JoinedAt.Equal(prev.rec.JoinedAt) {
		seq = t.repo.seq.Add(1)
	}
	t.staged[rec.UserID] = entry{rec: rec, seq: seq}
	return nil
}

func sortEntries(es []entry) {
	sort.Slice(es, func(i, j int) bool {
		if es[i].rec.JoinedAt.Equal(es[j].rec.JoinedAt) {
			return es[i].seq < es[j].seq
		}
		return es[i].rec.JoinedAt.Before(es[j].rec.JoinedAt)
	})
}
