package attendancerepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/matchi-app/matchi-api/internal/adapters/postgres"
	"github.com/matchi-app/matchi-api/internal/domain"
	"github.com/matchi-app/matchi-api/internal/ports/out/attendancerepo"
)

// Repo is a Postgres implementation of attendancerepo.Repository.
//
// InEventTx takes a row lock on the event, so every unit of work for one event
// is serialized by the database while other events proceed in parallel.
type Repo struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool, lockTimeout: 5 * time.Second}
}

// WithLockTimeout bounds how long InEventTx waits for the event row lock.
// Zero disables the bound.
func (r *Repo) WithLockTimeout(d time.Duration) *Repo {
	r.lockTimeout = d
	return r
}

func (r *Repo) InEventTx(ctx context.Context, eventID domain.EventID, fn func(ctx context.Context, ev attendancerepo.EventState, tx attendancerepo.Tx) error) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	eid, err := uuid.Parse(string(eventID))
	if err != nil {
		return attendancerepo.ErrEventNotFound
	}

	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if r.lockTimeout > 0 {
			if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", r.lockTimeout.Milliseconds())); err != nil {
				return err
			}
		}

		var (
			capacity int
			status   string
		)
		err := tx.QueryRow(ctx, `
			SELECT capacity, status
			FROM events
			WHERE id = $1
			FOR UPDATE
		`, eid).Scan(&capacity, &status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return attendancerepo.ErrEventNotFound
			}
			return err
		}

		ev := attendancerepo.EventState{
			ID:       eventID,
			Capacity: capacity,
			Status:   domain.EventStatus(status),
		}
		return fn(ctx, ev, &eventTx{tx: tx, eventID: eventID, eid: eid, capacity: capacity})
	})
	if err != nil && postgres.IsRetryable(err) {
		return fmt.Errorf("%w: %v", attendancerepo.ErrConflict, err)
	}
	return err
}

func (r *Repo) Get(ctx context.Context, eventID domain.EventID, userID domain.UserID) (attendancerepo.Record, error) {
	if r.pool == nil {
		return attendancerepo.Record{}, errors.New("nil postgres pool")
	}
	return getRecord(ctx, r.pool, eventID, userID)
}

func (r *Repo) ListByEvent(ctx context.Context, eventID domain.EventID) ([]attendancerepo.Record, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	eid, err := uuid.Parse(string(eventID))
	if err != nil {
		return []attendancerepo.Record{}, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT event_id, user_id, status, joined_at, updated_at
		FROM event_attendees
		WHERE event_id = $1 AND status <> 'cancelled'
		ORDER BY joined_at ASC, join_seq ASC
	`, eid)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

func (r *Repo) ListByUser(ctx context.Context, userID domain.UserID) ([]attendancerepo.Record, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(userID))
	if err != nil {
		return []attendancerepo.Record{}, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT event_id, user_id, status, joined_at, updated_at
		FROM event_attendees
		WHERE user_id = $1 AND status <> 'cancelled'
		ORDER BY joined_at DESC, join_seq DESC
	`, uid)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type eventTx struct {
	tx       pgx.Tx
	eventID  domain.EventID
	eid      uuid.UUID
	capacity int
}

func (t *eventTx) Get(ctx context.Context, userID domain.UserID) (attendancerepo.Record, error) {
	return getRecord(ctx, t.tx, t.eventID, userID)
}

func (t *eventTx) CountConfirmed(ctx context.Context) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `
		SELECT count(*)
		FROM event_attendees
		WHERE event_id = $1 AND status = 'confirmed'
	`, t.eid).Scan(&n)
	return n, err
}

func (t *eventTx) EarliestWaitlisted(ctx context.Context) (attendancerepo.Record, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT event_id, user_id, status, joined_at, updated_at
		FROM event_attendees
		WHERE event_id = $1 AND status = 'waitlist'
		ORDER BY joined_at ASC, join_seq ASC
		LIMIT 1
	`, t.eid)
	if err != nil {
		return attendancerepo.Record{}, err
	}
	recs, err := collectRecords(rows)
	if err != nil {
		return attendancerepo.Record{}, err
	}
	if len(recs) == 0 {
		return attendancerepo.Record{}, attendancerepo.ErrNotFound
	}
	return recs[0], nil
}

func (t *eventTx) Insert(ctx context.Context, rec attendancerepo.Record) error {
	uid, err := uuid.Parse(string(rec.UserID))
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}
	// The seat check and the write are one statement, so a confirmed row can
	// never push the count past capacity even if callers miscounted.
	ct, err := t.tx.Exec(ctx, `
		INSERT INTO event_attendees (event_id, user_id, status, joined_at, updated_at)
		SELECT $1::uuid, $2::uuid, $3::text, $4::timestamptz, $5::timestamptz
		WHERE $3::text <> 'confirmed'
		   OR (SELECT count(*) FROM event_attendees WHERE event_id = $1::uuid AND status = 'confirmed') < $6::int
	`,
		t.eid,
		uid,
		string(rec.Status),
		rec.JoinedAt.UTC(),
		rec.UpdatedAt.UTC(),
		t.capacity,
	)
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok {
			switch pe.Code {
			case postgres.UniqueViolationCode:
				return attendancerepo.ErrAlreadyExists
			case postgres.ForeignKeyViolationCode:
				return attendancerepo.ErrUserNotFound
			}
		}
		return err
	}
	if ct.RowsAffected() == 0 {
		return attendancerepo.ErrCapacityExceeded
	}
	return nil
}

func (t *eventTx) Update(ctx context.Context, rec attendancerepo.Record) error {
	uid, err := uuid.Parse(string(rec.UserID))
	if err != nil {
		return attendancerepo.ErrNotFound
	}
	ct, err := t.tx.Exec(ctx, `
		UPDATE event_attendees
		SET status = $3::text,
		    updated_at = $5::timestamptz,
		    join_seq = CASE
				WHEN joined_at = $4::timestamptz AND (status <> 'cancelled' OR $3::text = 'cancelled') THEN join_seq
				ELSE nextval('event_attendees_join_seq')
			END,
		    joined_at = $4::timestamptz
		WHERE event_id = $1::uuid
		  AND user_id = $2::uuid
		  AND (
			$3::text <> 'confirmed'
			OR status = 'confirmed'
			OR (SELECT count(*) FROM event_attendees WHERE event_id = $1::uuid AND status = 'confirmed') < $6::int
		  )
	`,
		t.eid,
		uid,
		string(rec.Status),
		rec.JoinedAt.UTC(),
		rec.UpdatedAt.UTC(),
		t.capacity,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM event_attendees WHERE event_id = $1 AND user_id = $2)
	`, t.eid, uid).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return attendancerepo.ErrNotFound
	}
	return attendancerepo.ErrCapacityExceeded
}

func getRecord(ctx context.Context, q querier, eventID domain.EventID, userID domain.UserID) (attendancerepo.Record, error) {
	eid, err := uuid.Parse(string(eventID))
	if err != nil {
		return attendancerepo.Record{}, attendancerepo.ErrNotFound
	}
	uid, err := uuid.Parse(string(userID))
	if err != nil {
		return attendancerepo.Record{}, attendancerepo.ErrNotFound
	}

	var (
		status string
		rec    attendancerepo.Record
	)
	err = q.QueryRow(ctx, `
		SELECT status, joined_at, updated_at
		FROM event_attendees
		WHERE event_id = $1 AND user_id = $2
	`, eid, uid).Scan(&status, &rec.JoinedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendancerepo.Record{}, attendancerepo.ErrNotFound
		}
		return attendancerepo.Record{}, err
	}
	rec.EventID = eventID
	rec.UserID = userID
	rec.Status = domain.AttendanceStatus(status)
	rec.JoinedAt = rec.JoinedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}

func collectRecords(rows pgx.Rows) ([]attendancerepo.Record, error) {
	defer rows.Close()
	out := make([]attendancerepo.Record, 0)
	for rows.Next() {
		var (
			eid, uid uuid.UUID
			status   string
			rec      attendancerepo.Record
		)
		if err := rows.Scan(&eid, &uid, &status, &rec.JoinedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.EventID = domain.EventID(eid.String())
		rec.UserID = domain.UserID(uid.String())
		rec.Status = domain.AttendanceStatus(status)
		rec.JoinedAt = rec.JoinedAt.UTC()
		rec.UpdatedAt = rec.UpdatedAt.UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}
