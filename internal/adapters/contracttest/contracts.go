package contracttest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/matchi-app/matchi-api/internal/domain"
	attendancerepoport "github.com/matchi-app/matchi-api/internal/ports/out/attendancerepo"
	eventrepoport "github.com/matchi-app/matchi-api/internal/ports/out/eventrepo"
	idempotencyport "github.com/matchi-app/matchi-api/internal/ports/out/idempotency"
	infopostrepoport "github.com/matchi-app/matchi-api/internal/ports/out/infopostrepo"
	userrepoport "github.com/matchi-app/matchi-api/internal/ports/out/userrepo"
)

type CleanupFunc = func()

type UserRepoFactory func(t *testing.T) (userrepoport.Repository, CleanupFunc)
type EventRepoFactory func(t *testing.T) (eventrepoport.Repository, CleanupFunc)

// AttendanceRepoFactory receives the event repository seeded by the suite so
// adapters that read capacity from it can share state.
type AttendanceRepoFactory func(t *testing.T, events eventrepoport.Repository) (attendancerepoport.Repository, CleanupFunc)
type IdemStoreFactory func(t *testing.T) (idempotencyport.Store, CleanupFunc)
type InfoPostRepoFactory func(t *testing.T) (infopostrepoport.Repository, CleanupFunc)

func RunIdempotencyStore(t *testing.T, newStore IdemStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	sub := domain.SubjectID("sub-" + uuid.NewString())
	fp := idempotencyport.Fingerprint{
		Key:     "k-1",
		Subject: sub,
		Method:  "PUT",
		Route:   "/events/{eventId}/attendance",
	}.Marker()
	if _, ok, err := store.Get(ctx, fp); err != nil || ok {
		t.Fatalf("Get before Put: ok=%v err=%v", ok, err)
	}

	rec := idempotencyport.NewMarker("hash-abc")
	if err := store.Put(ctx, fp, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := store.Get(ctx, fp)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if string(got.Body) != "hash-abc" || got.ContentType != "text/plain" || got.Replayable() {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Fatalf("CreatedAt not stamped")
	}

	// Overwrite semantics.
	rec2 := rec
	rec2.Body = []byte("hash-def")
	if err := store.Put(ctx, fp, rec2); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, ok, err = store.Get(ctx, fp)
	if err != nil || !ok || string(got.Body) != "hash-def" {
		t.Fatalf("expected overwritten record, got ok=%v err=%v body=%q", ok, err, string(got.Body))
	}

	// Every fingerprint field partitions the key space.
	other := fp.WithBody("hash-def")
	if _, ok, err := store.Get(ctx, other); err != nil || ok {
		t.Fatalf("Get with different body hash: ok=%v err=%v", ok, err)
	}
	other = fp
	other.Subject = domain.SubjectID("sub-" + uuid.NewString())
	if _, ok, err := store.Get(ctx, other); err != nil || ok {
		t.Fatalf("Get with different subject: ok=%v err=%v", ok, err)
	}
	other = fp
	other.Route = "/events/{eventId}/cancel"
	if _, ok, err := store.Get(ctx, other); err != nil || ok {
		t.Fatalf("Get with different route: ok=%v err=%v", ok, err)
	}

	// Reserve keeps the first record.
	resFP := fp
	resFP.Key = "k-reserve"
	first, reserved, err := store.Reserve(ctx, resFP, idempotencyport.NewMarker("hash-first"))
	if err != nil || !reserved || string(first.Body) != "hash-first" {
		t.Fatalf("first Reserve: reserved=%v err=%v body=%q", reserved, err, string(first.Body))
	}
	cur, reserved, err := store.Reserve(ctx, resFP, idempotencyport.NewMarker("hash-second"))
	if err != nil {
		t.Fatalf("second Reserve: %v", err)
	}
	if reserved || string(cur.Body) != "hash-first" {
		t.Fatalf("second Reserve: reserved=%v body=%q, want existing hash-first", reserved, string(cur.Body))
	}
	if got, ok, err := store.Get(ctx, resFP); err != nil || !ok || string(got.Body) != "hash-first" {
		t.Fatalf("Get after Reserve: ok=%v err=%v body=%q", ok, err, string(got.Body))
	}

	runConcurrentReserve(t, store, sub)
}

// runConcurrentReserve races distinct bodies for one fingerprint; exactly one
// reservation may win and every loser must see the winner's record.
func runConcurrentReserve(t *testing.T, store idempotencyport.Store, sub domain.SubjectID) {
	t.Helper()
	ctx := context.Background()
	fp := idempotencyport.Fingerprint{
		Key:     idempotencyport.Key("k-race-" + uuid.NewString()),
		Subject: sub,
		Method:  "PUT",
		Route:   "/events/{eventId}/attendance",
	}.Marker()

	const n = 8
	type outcome struct {
		body     string
		seen     string
		reserved bool
		err      error
	}
	results := make([]outcome, n)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			body := "hash-" + uuid.NewString()
			cur, reserved, err := store.Reserve(ctx, fp, idempotencyport.NewMarker(body))
			results[i] = outcome{body: body, seen: string(cur.Body), reserved: reserved, err: err}
		}(i)
	}
	close(start)
	wg.Wait()

	winner := ""
	for _, r := range results {
		if r.err != nil {
			t.Fatalf("concurrent Reserve: %v", r.err)
		}
		if r.reserved {
			if winner != "" {
				t.Fatalf("more than one concurrent Reserve won")
			}
			winner = r.body
		}
	}
	if winner == "" {
		t.Fatalf("no concurrent Reserve won")
	}
	for _, r := range results {
		if r.seen != winner {
			t.Fatalf("Reserve observed %q, want winner %q", r.seen, winner)
		}
	}
}

func RunUserRepo(t *testing.T, newRepo UserRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	now := time.Unix(1000, 0).UTC()
	aID := domain.UserID(uuid.NewString())
	sub := domain.SubjectID("sub-" + uuid.NewString())
	if err := repo.Create(ctx, userrepoport.User{
		ID:          aID,
		Subject:     sub,
		DisplayName: "Alice Johnson",
		CreatedAt:   now,
		UpdatedAt:   now,
	}); err != nil {
		t.Fatalf("Create a: %v", err)
	}
	got, err := repo.GetByID(ctx, aID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Subject != sub || got.DisplayName != "Alice Johnson" || !got.CreatedAt.Equal(now) {
		t.Fatalf("unexpected user: %#v", got)
	}
	if got, err := repo.GetBySubject(ctx, sub); err != nil || got.ID != aID {
		t.Fatalf("GetBySubject: id=%q err=%v", got.ID, err)
	}

	// Subject uniqueness.
	err = repo.Create(ctx, userrepoport.User{
		ID:          domain.UserID(uuid.NewString()),
		Subject:     sub,
		DisplayName: "Alice 2",
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if !errors.Is(err, userrepoport.ErrSubjectAlreadyBound) {
		t.Fatalf("expected ErrSubjectAlreadyBound, got %v", err)
	}

	if _, err := repo.GetByID(ctx, domain.UserID(uuid.NewString())); !errors.Is(err, userrepoport.ErrNotFound) {
		t.Fatalf("GetByID unknown: expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetBySubject(ctx, "sub-missing-"+domain.SubjectID(uuid.NewString())); !errors.Is(err, userrepoport.ErrNotFound) {
		t.Fatalf("GetBySubject unknown: expected ErrNotFound, got %v", err)
	}
}

func seedUser(t *testing.T, users userrepoport.Repository, name string) domain.UserID {
	t.Helper()
	now := time.Unix(1500, 0).UTC()
	id := domain.UserID(uuid.NewString())
	if err := users.Create(context.Background(), userrepoport.User{
		ID:          id,
		Subject:     domain.SubjectID("sub-" + uuid.NewString()),
		DisplayName: name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}); err != nil {
		t.Fatalf("seed user %s: %v", name, err)
	}
	return id
}

func newEvent(host domain.UserID, title string, startsAt time.Time, capacity int) eventrepoport.Event {
	return eventrepoport.Event{
		ID:              domain.EventID(uuid.NewString()),
		HostUserID:      host,
		Title:           title,
		Type:            domain.EventTypeSocial,
		StartsAt:        startsAt,
		LocationAddress: "1 Main St, Springfield",
		Tags:            []string{},
		IsPublic:        true,
		Capacity:        capacity,
		Status:          domain.EventStatusActive,
		CreatedAt:       time.Unix(1500, 0).UTC(),
		UpdatedAt:       time.Unix(1500, 0).UTC(),
	}
}

// RunEventRepo exercises event persistence, filtering, and ordering.
func RunEventRepo(t *testing.T, newUserRepo UserRepoFactory, newRepo EventRepoFactory) {
	t.Helper()
	ctx := context.Background()

	users, uCleanup := newUserRepo(t)
	if uCleanup != nil {
		t.Cleanup(uCleanup)
	}
	events, eCleanup := newRepo(t)
	if eCleanup != nil {
		t.Cleanup(eCleanup)
	}
	host := seedUser(t, users, "Host")

	// Shared databases may hold rows from earlier runs; listings are narrowed by marker.
	base := time.Date(2100, 1, 1, 18, 0, 0, 0, time.UTC)
	marker := uuid.NewString()[:8]

	desc := "Casual pickup game " + marker
	soccer := newEvent(host, "Sunday Soccer", base.Add(48*time.Hour), 10)
	soccer.Type = domain.EventTypeSports
	soccer.Description = &desc
	soccer.LocationAddress = "Golden Gate Park, San Francisco"
	soccer.Tags = []string{"outdoor", "beginner friendly"}

	dinner := newEvent(host, "Dumpling Night "+marker, base.Add(24*time.Hour), 6)
	dinner.Type = domain.EventTypeFood
	dinner.LocationAddress = "12 Mission St, San Francisco"

	past := newEvent(host, "Yesterday's Study Hall "+marker, base.Add(-24*time.Hour), 4)
	past.Type = domain.EventTypeStudy
	past.LocationAddress = "Oakland Library"

	for _, e := range []eventrepoport.Event{soccer, dinner, past} {
		if err := events.Create(ctx, e); err != nil {
			t.Fatalf("Create %s: %v", e.Title, err)
		}
	}
	if err := events.Create(ctx, soccer); !errors.Is(err, eventrepoport.ErrAlreadyExists) {
		t.Fatalf("duplicate Create: expected ErrAlreadyExists, got %v", err)
	}

	got, err := events.GetByID(ctx, soccer.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Title != soccer.Title || got.Capacity != 10 || got.Type != domain.EventTypeSports ||
		got.Description == nil || *got.Description != desc || len(got.Tags) != 2 || !got.StartsAt.Equal(soccer.StartsAt) {
		t.Fatalf("unexpected event: %#v", got)
	}
	if _, err := events.GetByID(ctx, domain.EventID(uuid.NewString())); !errors.Is(err, eventrepoport.ErrNotFound) {
		t.Fatalf("GetByID unknown: expected ErrNotFound, got %v", err)
	}

	// Upcoming: ordered by start time, past excluded.
	up, err := events.ListUpcoming(ctx, base, eventrepoport.ListFilter{Search: marker})
	if err != nil {
		t.Fatalf("ListUpcoming: %v", err)
	}
	if len(up) != 2 || up[0].ID != dinner.ID || up[1].ID != soccer.ID {
		t.Fatalf("unexpected upcoming ordering: %#v", up)
	}
	for _, e := range up {
		if e.ID == past.ID {
			t.Fatalf("past event listed as upcoming")
		}
	}

	sports := domain.EventTypeSports
	up, err = events.ListUpcoming(ctx, base, eventrepoport.ListFilter{Type: &sports, Search: marker})
	if err != nil || len(up) != 1 || up[0].ID != soccer.ID {
		t.Fatalf("type+search filter: n=%d err=%v", len(up), err)
	}
	up, err = events.ListUpcoming(ctx, base, eventrepoport.ListFilter{City: "mission st", Search: "DUMPLING NIGHT " + marker})
	if err != nil || len(up) != 1 || up[0].ID != dinner.ID {
		t.Fatalf("city+search filter: n=%d err=%v", len(up), err)
	}

	// Cancelled events drop out of the upcoming list.
	got.Status = domain.EventStatusCancelled
	got.UpdatedAt = time.Unix(1600, 0).UTC()
	if err := events.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	up, err = events.ListUpcoming(ctx, base, eventrepoport.ListFilter{Search: marker})
	if err != nil {
		t.Fatalf("ListUpcoming after cancel: %v", err)
	}
	for _, e := range up {
		if e.ID == soccer.ID {
			t.Fatalf("cancelled event still listed")
		}
	}

	started, err := events.ListActiveStartedBefore(ctx, base)
	if err != nil {
		t.Fatalf("ListActiveStartedBefore: %v", err)
	}
	found := false
	for _, e := range started {
		if e.ID == dinner.ID || e.ID == soccer.ID {
			t.Fatalf("future event reported as started: %s", e.Title)
		}
		if e.ID == past.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected past event in ListActiveStartedBefore")
	}

	missing := newEvent(host, "Ghost", base, 3)
	if err := events.Update(ctx, missing); !errors.Is(err, eventrepoport.ErrNotFound) {
		t.Fatalf("Update unknown: expected ErrNotFound, got %v", err)
	}
}

// RunAttendanceRepo exercises the per-event unit of work, conditional
// confirmed writes, FIFO ordering, and concurrent joins.
func RunAttendanceRepo(t *testing.T, newUserRepo UserRepoFactory, newEventRepo EventRepoFactory, newRepo AttendanceRepoFactory) {
	t.Helper()
	ctx := context.Background()

	users, uCleanup := newUserRepo(t)
	if uCleanup != nil {
		t.Cleanup(uCleanup)
	}
	events, eCleanup := newEventRepo(t)
	if eCleanup != nil {
		t.Cleanup(eCleanup)
	}
	repo, aCleanup := newRepo(t, events)
	if aCleanup != nil {
		t.Cleanup(aCleanup)
	}

	host := seedUser(t, users, "Host")
	ev := newEvent(host, "Board Games", time.Unix(900000, 0).UTC(), 2)
	if err := events.Create(ctx, ev); err != nil {
		t.Fatalf("Create event: %v", err)
	}

	alice := seedUser(t, users, "Alice")
	bob := seedUser(t, users, "Bob")
	carol := seedUser(t, users, "Carol")
	dave := seedUser(t, users, "Dave")

	t0 := time.Unix(10000, 0).UTC()
	insert := func(u domain.UserID, st domain.AttendanceStatus, at time.Time) error {
		return repo.InEventTx(ctx, ev.ID, func(ctx context.Context, es attendancerepoport.EventState, tx attendancerepoport.Tx) error {
			if es.ID != ev.ID || es.Capacity != 2 || es.Status != domain.EventStatusActive {
				t.Fatalf("unexpected event state: %#v", es)
			}
			return tx.Insert(ctx, attendancerepoport.Record{EventID: ev.ID, UserID: u, Status: st, JoinedAt: at, UpdatedAt: at})
		})
	}

	if err := repo.InEventTx(ctx, domain.EventID(uuid.NewString()), func(context.Context, attendancerepoport.EventState, attendancerepoport.Tx) error {
		t.Fatalf("fn must not run for a missing event")
		return nil
	}); !errors.Is(err, attendancerepoport.ErrEventNotFound) {
		t.Fatalf("InEventTx unknown event: expected ErrEventNotFound, got %v", err)
	}

	if err := insert(alice, domain.AttendanceStatusConfirmed, t0); err != nil {
		t.Fatalf("insert alice: %v", err)
	}
	if err := insert(bob, domain.AttendanceStatusConfirmed, t0.Add(time.Second)); err != nil {
		t.Fatalf("insert bob: %v", err)
	}
	if err := insert(carol, domain.AttendanceStatusConfirmed, t0.Add(2*time.Second)); !errors.Is(err, attendancerepoport.ErrCapacityExceeded) {
		t.Fatalf("confirmed insert over capacity: expected ErrCapacityExceeded, got %v", err)
	}
	if err := insert(alice, domain.AttendanceStatusWaitlist, t0.Add(3*time.Second)); !errors.Is(err, attendancerepoport.ErrAlreadyExists) {
		t.Fatalf("duplicate insert: expected ErrAlreadyExists, got %v", err)
	}
	// Dave joins the waitlist before Carol.
	if err := insert(dave, domain.AttendanceStatusWaitlist, t0.Add(4*time.Second)); err != nil {
		t.Fatalf("insert dave: %v", err)
	}
	if err := insert(carol, domain.AttendanceStatusWaitlist, t0.Add(5*time.Second)); err != nil {
		t.Fatalf("insert carol: %v", err)
	}

	err := repo.InEventTx(ctx, ev.ID, func(ctx context.Context, _ attendancerepoport.EventState, tx attendancerepoport.Tx) error {
		n, err := tx.CountConfirmed(ctx)
		if err != nil || n != 2 {
			t.Fatalf("CountConfirmed: n=%d err=%v", n, err)
		}
		w, err := tx.EarliestWaitlisted(ctx)
		if err != nil || w.UserID != dave {
			t.Fatalf("EarliestWaitlisted: user=%q err=%v", w.UserID, err)
		}
		if _, err := tx.Get(ctx, domain.UserID(uuid.NewString())); !errors.Is(err, attendancerepoport.ErrNotFound) {
			t.Fatalf("tx.Get unknown: expected ErrNotFound, got %v", err)
		}

		// Promotion into a full event is rejected.
		w.Status = domain.AttendanceStatusConfirmed
		if err := tx.Update(ctx, w); !errors.Is(err, attendancerepoport.ErrCapacityExceeded) {
			t.Fatalf("promote into full event: expected ErrCapacityExceeded, got %v", err)
		}

		// Free a seat, then promotion succeeds and is visible inside the unit.
		a, err := tx.Get(ctx, alice)
		if err != nil {
			t.Fatalf("tx.Get alice: %v", err)
		}
		a.Status = domain.AttendanceStatusCancelled
		a.UpdatedAt = t0.Add(10 * time.Second)
		if err := tx.Update(ctx, a); err != nil {
			t.Fatalf("cancel alice: %v", err)
		}
		if err := tx.Update(ctx, w); err != nil {
			t.Fatalf("promote dave: %v", err)
		}
		if n, _ := tx.CountConfirmed(ctx); n != 2 {
			t.Fatalf("CountConfirmed after promote: n=%d want=2", n)
		}
		if w2, err := tx.EarliestWaitlisted(ctx); err != nil || w2.UserID != carol {
			t.Fatalf("EarliestWaitlisted after promote: user=%q err=%v", w2.UserID, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("InEventTx promote: %v", err)
	}

	if rec, err := repo.Get(ctx, ev.ID, alice); err != nil || rec.Status != domain.AttendanceStatusCancelled {
		t.Fatalf("Get alice: status=%q err=%v", rec.Status, err)
	}
	if _, err := repo.Get(ctx, ev.ID, domain.UserID(uuid.NewString())); !errors.Is(err, attendancerepoport.ErrNotFound) {
		t.Fatalf("Get unknown: expected ErrNotFound, got %v", err)
	}

	// ListByEvent excludes cancelled records and orders by JoinedAt.
	recs, err := repo.ListByEvent(ctx, ev.ID)
	if err != nil {
		t.Fatalf("ListByEvent: %v", err)
	}
	if len(recs) != 3 || recs[0].UserID != bob || recs[1].UserID != dave || recs[2].UserID != carol {
		t.Fatalf("unexpected ListByEvent: %#v", recs)
	}
	if recs[1].Status != domain.AttendanceStatusConfirmed || recs[2].Status != domain.AttendanceStatusWaitlist {
		t.Fatalf("unexpected statuses: %#v", recs)
	}

	// Reactivation keeps the single (event, user) row and moves JoinedAt.
	rejoinAt := t0.Add(20 * time.Second)
	err = repo.InEventTx(ctx, ev.ID, func(ctx context.Context, _ attendancerepoport.EventState, tx attendancerepoport.Tx) error {
		a, err := tx.Get(ctx, alice)
		if err != nil {
			return err
		}
		a.Status = domain.AttendanceStatusWaitlist
		a.JoinedAt = rejoinAt
		a.UpdatedAt = rejoinAt
		return tx.Update(ctx, a)
	})
	if err != nil {
		t.Fatalf("reactivate alice: %v", err)
	}
	recs, _ = repo.ListByEvent(ctx, ev.ID)
	if len(recs) != 4 || recs[3].UserID != alice || !recs[3].JoinedAt.Equal(rejoinAt) {
		t.Fatalf("reactivated record should be last: %#v", recs)
	}

	mine, err := repo.ListByUser(ctx, alice)
	if err != nil || len(mine) != 1 || mine[0].EventID != ev.ID {
		t.Fatalf("ListByUser: %#v err=%v", mine, err)
	}

	// A failed unit keeps none of its writes.
	boom := errors.New("boom")
	err = repo.InEventTx(ctx, ev.ID, func(ctx context.Context, _ attendancerepoport.EventState, tx attendancerepoport.Tx) error {
		b, err := tx.Get(ctx, bob)
		if err != nil {
			return err
		}
		b.Status = domain.AttendanceStatusCancelled
		if err := tx.Update(ctx, b); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if rec, _ := repo.Get(ctx, ev.ID, bob); rec.Status != domain.AttendanceStatusConfirmed {
		t.Fatalf("rolled back write leaked: bob status=%q", rec.Status)
	}

	runSameInstantRejoin(t, users, events, repo, host)
	runConcurrentJoins(t, users, events, repo, host)
}

// runSameInstantRejoin checks that a reactivated record queues behind records
// inserted before the reactivation even when every JoinedAt is identical.
func runSameInstantRejoin(t *testing.T, users userrepoport.Repository, events eventrepoport.Repository, repo attendancerepoport.Repository, host domain.UserID) {
	t.Helper()
	ctx := context.Background()

	ev := newEvent(host, "Pickup Soccer", time.Unix(900000, 0).UTC(), 1)
	if err := events.Create(ctx, ev); err != nil {
		t.Fatalf("Create event: %v", err)
	}
	first := seedUser(t, users, "First")
	second := seedUser(t, users, "Second")
	third := seedUser(t, users, "Third")
	at := time.Unix(30000, 0).UTC()

	unit := func(fn func(ctx context.Context, tx attendancerepoport.Tx) error) {
		t.Helper()
		if err := repo.InEventTx(ctx, ev.ID, func(ctx context.Context, _ attendancerepoport.EventState, tx attendancerepoport.Tx) error {
			return fn(ctx, tx)
		}); err != nil {
			t.Fatalf("InEventTx: %v", err)
		}
	}
	setStatus := func(ctx context.Context, tx attendancerepoport.Tx, u domain.UserID, st domain.AttendanceStatus) error {
		rec, err := tx.Get(ctx, u)
		if err != nil {
			return err
		}
		rec.Status = st
		rec.JoinedAt = at
		rec.UpdatedAt = at
		return tx.Update(ctx, rec)
	}

	for _, j := range []struct {
		u  domain.UserID
		st domain.AttendanceStatus
	}{
		{first, domain.AttendanceStatusConfirmed},
		{second, domain.AttendanceStatusWaitlist},
		{third, domain.AttendanceStatusWaitlist},
	} {
		unit(func(ctx context.Context, tx attendancerepoport.Tx) error {
			return tx.Insert(ctx, attendancerepoport.Record{EventID: ev.ID, UserID: j.u, Status: j.st, JoinedAt: at, UpdatedAt: at})
		})
	}
	unit(func(ctx context.Context, tx attendancerepoport.Tx) error {
		return setStatus(ctx, tx, second, domain.AttendanceStatusCancelled)
	})
	unit(func(ctx context.Context, tx attendancerepoport.Tx) error {
		return setStatus(ctx, tx, second, domain.AttendanceStatusWaitlist)
	})
	unit(func(ctx context.Context, tx attendancerepoport.Tx) error {
		w, err := tx.EarliestWaitlisted(ctx)
		if err != nil {
			return err
		}
		if w.UserID != third {
			t.Fatalf("EarliestWaitlisted=%s want=%s (rejoined record must queue last)", w.UserID, third)
		}
		return nil
	})

	recs, err := repo.ListByEvent(ctx, ev.ID)
	if err != nil {
		t.Fatalf("ListByEvent: %v", err)
	}
	if len(recs) != 3 || recs[0].UserID != first || recs[1].UserID != third || recs[2].UserID != second {
		t.Fatalf("unexpected order after same-instant rejoin: %#v", recs)
	}
}

func runConcurrentJoins(t *testing.T, users userrepoport.Repository, events eventrepoport.Repository, repo attendancerepoport.Repository, host domain.UserID) {
	t.Helper()
	ctx := context.Background()

	const capacity = 5
	const joiners = 20

	ev := newEvent(host, "Rooftop Yoga", time.Unix(900000, 0).UTC(), capacity)
	if err := events.Create(ctx, ev); err != nil {
		t.Fatalf("Create event: %v", err)
	}
	ids := make([]domain.UserID, joiners)
	for i := range ids {
		ids[i] = seedUser(t, users, "Joiner")
	}

	join := func(u domain.UserID, at time.Time) error {
		return repo.InEventTx(ctx, ev.ID, func(ctx context.Context, es attendancerepoport.EventState, tx attendancerepoport.Tx) error {
			n, err := tx.CountConfirmed(ctx)
			if err != nil {
				return err
			}
			rec := attendancerepoport.Record{EventID: ev.ID, UserID: u, Status: domain.AttendanceStatusWaitlist, JoinedAt: at, UpdatedAt: at}
			if n < es.Capacity {
				rec.Status = domain.AttendanceStatusConfirmed
			}
			err = tx.Insert(ctx, rec)
			if errors.Is(err, attendancerepoport.ErrCapacityExceeded) {
				rec.Status = domain.AttendanceStatusWaitlist
				return tx.Insert(ctx, rec)
			}
			return err
		})
	}

	var wg sync.WaitGroup
	errs := make(chan error, joiners)
	start := make(chan struct{})
	for i, u := range ids {
		wg.Add(1)
		go func(i int, u domain.UserID) {
			defer wg.Done()
			<-start
			at := time.Unix(20000+int64(i), 0).UTC()
			err := join(u, at)
			if errors.Is(err, attendancerepoport.ErrConflict) {
				err = join(u, at)
			}
			errs <- err
		}(i, u)
	}
	close(start)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent join: %v", err)
		}
	}

	recs, err := repo.ListByEvent(ctx, ev.ID)
	if err != nil {
		t.Fatalf("ListByEvent: %v", err)
	}
	confirmed, waitlisted := 0, 0
	seen := make(map[domain.UserID]bool, len(recs))
	for _, r := range recs {
		if seen[r.UserID] {
			t.Fatalf("duplicate active record for %s", r.UserID)
		}
		seen[r.UserID] = true
		switch r.Status {
		case domain.AttendanceStatusConfirmed:
			confirmed++
		case domain.AttendanceStatusWaitlist:
			waitlisted++
		}
	}
	if confirmed != capacity || waitlisted != joiners-capacity {
		t.Fatalf("confirmed=%d waitlisted=%d want=%d/%d", confirmed, waitlisted, capacity, joiners-capacity)
	}
}

// RunAttendanceUserReference is for stores that enforce the user reference:
// inserting a record for an unknown user yields ErrUserNotFound.
func RunAttendanceUserReference(t *testing.T, newUserRepo UserRepoFactory, newEventRepo EventRepoFactory, newRepo AttendanceRepoFactory) {
	t.Helper()
	ctx := context.Background()

	users, uCleanup := newUserRepo(t)
	if uCleanup != nil {
		t.Cleanup(uCleanup)
	}
	events, eCleanup := newEventRepo(t)
	if eCleanup != nil {
		t.Cleanup(eCleanup)
	}
	repo, aCleanup := newRepo(t, events)
	if aCleanup != nil {
		t.Cleanup(aCleanup)
	}

	host := seedUser(t, users, "Host")
	ev := newEvent(host, "Trivia Night", time.Unix(900000, 0).UTC(), 2)
	if err := events.Create(ctx, ev); err != nil {
		t.Fatalf("Create event: %v", err)
	}

	at := time.Unix(40000, 0).UTC()
	err := repo.InEventTx(ctx, ev.ID, func(ctx context.Context, _ attendancerepoport.EventState, tx attendancerepoport.Tx) error {
		return tx.Insert(ctx, attendancerepoport.Record{
			EventID:   ev.ID,
			UserID:    domain.UserID(uuid.NewString()),
			Status:    domain.AttendanceStatusConfirmed,
			JoinedAt:  at,
			UpdatedAt: at,
		})
	})
	if !errors.Is(err, attendancerepoport.ErrUserNotFound) {
		t.Fatalf("insert for unknown user: err=%v want=%v", err, attendancerepoport.ErrUserNotFound)
	}
}

func newInfoPost(author domain.UserID, c domain.InfoCategory, title string, at time.Time) infopostrepoport.Post {
	return infopostrepoport.Post{
		ID:        domain.InfoPostID(uuid.NewString()),
		AuthorID:  author,
		Category:  c,
		Title:     title,
		Content:   "Ask at the front desk for the student rate.",
		Tags:      []string{"tips"},
		CreatedAt: at,
		UpdatedAt: at,
	}
}

// RunInfoPostRepo exercises info post persistence, counts, and newest-first
// listing. Posts are dated far in the future and counts are compared as
// deltas so the suite tolerates rows left by earlier runs.
func RunInfoPostRepo(t *testing.T, newUserRepo UserRepoFactory, newRepo InfoPostRepoFactory) {
	t.Helper()
	ctx := context.Background()

	users, uCleanup := newUserRepo(t)
	if uCleanup != nil {
		t.Cleanup(uCleanup)
	}
	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	author := seedUser(t, users, "Writer")
	before, err := repo.CountByCategory(ctx)
	if err != nil {
		t.Fatalf("CountByCategory before: %v", err)
	}

	base := time.Now().UTC().AddDate(200, 0, 0).Truncate(time.Second)
	var created []infopostrepoport.Post
	for i, c := range []domain.InfoCategory{
		domain.InfoCategoryFood,
		domain.InfoCategoryHousing,
		domain.InfoCategoryFood,
		domain.InfoCategoryTransport,
		domain.InfoCategoryFood,
	} {
		p := newInfoPost(author, c, "Post", base.Add(time.Duration(i)*time.Minute))
		if err := repo.Create(ctx, p); err != nil {
			t.Fatalf("Create #%d: %v", i, err)
		}
		created = append(created, p)
	}
	if err := repo.Create(ctx, created[0]); !errors.Is(err, infopostrepoport.ErrAlreadyExists) {
		t.Fatalf("Create duplicate err=%v want=%v", err, infopostrepoport.ErrAlreadyExists)
	}

	got, err := repo.GetByID(ctx, created[1].ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.AuthorID != author || got.Category != domain.InfoCategoryHousing || got.Title != "Post" ||
		len(got.Tags) != 1 || got.Tags[0] != "tips" || got.Upvotes != 0 || got.ViewCount != 0 ||
		!got.CreatedAt.Equal(created[1].CreatedAt) {
		t.Fatalf("GetByID=%+v want=%+v", got, created[1])
	}
	if _, err := repo.GetByID(ctx, domain.InfoPostID(uuid.NewString())); !errors.Is(err, infopostrepoport.ErrNotFound) {
		t.Fatalf("GetByID missing err=%v want=%v", err, infopostrepoport.ErrNotFound)
	}

	viewed, err := repo.IncrementViews(ctx, created[1].ID)
	if err != nil {
		t.Fatalf("IncrementViews: %v", err)
	}
	if viewed.ViewCount != 1 {
		t.Fatalf("ViewCount=%d want=1", viewed.ViewCount)
	}
	if viewed, _ = repo.IncrementViews(ctx, created[1].ID); viewed.ViewCount != 2 {
		t.Fatalf("ViewCount=%d want=2", viewed.ViewCount)
	}
	if _, err := repo.IncrementViews(ctx, domain.InfoPostID(uuid.NewString())); !errors.Is(err, infopostrepoport.ErrNotFound) {
		t.Fatalf("IncrementViews missing err=%v want=%v", err, infopostrepoport.ErrNotFound)
	}

	after, err := repo.CountByCategory(ctx)
	if err != nil {
		t.Fatalf("CountByCategory: %v", err)
	}
	for c, want := range map[domain.InfoCategory]int{
		domain.InfoCategoryFood:      3,
		domain.InfoCategoryHousing:   1,
		domain.InfoCategoryTransport: 1,
		domain.InfoCategoryMoney:     0,
	} {
		if d := after[c] - before[c]; d != want {
			t.Fatalf("count delta for %s=%d want=%d", c, d, want)
		}
	}

	// Same instant: ID breaks the tie, highest first.
	tieAt := base.Add(10 * time.Minute)
	tieA := newInfoPost(author, domain.InfoCategoryCampus, "Tie A", tieAt)
	tieB := newInfoPost(author, domain.InfoCategoryCampus, "Tie B", tieAt)
	for _, p := range []infopostrepoport.Post{tieA, tieB} {
		if err := repo.Create(ctx, p); err != nil {
			t.Fatalf("Create tie: %v", err)
		}
	}
	hi, lo := tieA.ID, tieB.ID
	if string(hi) < string(lo) {
		hi, lo = lo, hi
	}

	recent, err := repo.ListRecent(ctx, 4)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	wantRecent := []domain.InfoPostID{hi, lo, created[4].ID, created[3].ID}
	if len(recent) != len(wantRecent) {
		t.Fatalf("ListRecent len=%d want=%d", len(recent), len(wantRecent))
	}
	for i, id := range wantRecent {
		if recent[i].ID != id {
			t.Fatalf("ListRecent[%d]=%s want=%s", i, recent[i].ID, id)
		}
	}

	food, err := repo.ListByCategory(ctx, domain.InfoCategoryFood, 2)
	if err != nil {
		t.Fatalf("ListByCategory: %v", err)
	}
	if len(food) != 2 || food[0].ID != created[4].ID || food[1].ID != created[2].ID {
		t.Fatalf("ListByCategory(food, 2)=%v want [%s %s]", postIDs(food), created[4].ID, created[2].ID)
	}
	for _, p := range food {
		if p.Category != domain.InfoCategoryFood {
			t.Fatalf("ListByCategory returned category %s", p.Category)
		}
	}
	all, err := repo.ListByCategory(ctx, domain.InfoCategoryFood, 0)
	if err != nil {
		t.Fatalf("ListByCategory unlimited: %v", err)
	}
	if len(all) < 3 {
		t.Fatalf("ListByCategory unlimited len=%d want>=3", len(all))
	}
}

// RunInfoPostAuthorReference checks that adapters with referential integrity
// reject posts by unknown authors.
func RunInfoPostAuthorReference(t *testing.T, newRepo InfoPostRepoFactory) {
	t.Helper()
	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}
	p := newInfoPost(domain.UserID(uuid.NewString()), domain.InfoCategoryMoney, "Orphan", time.Unix(5000, 0).UTC())
	if err := repo.Create(context.Background(), p); !errors.Is(err, infopostrepoport.ErrAuthorNotFound) {
		t.Fatalf("Create by unknown author err=%v want=%v", err, infopostrepoport.ErrAuthorNotFound)
	}
}

func postIDs(ps []infopostrepoport.Post) []domain.InfoPostID {
	out := make([]domain.InfoPostID, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}
