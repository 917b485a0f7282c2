package attendancerepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/matchi-app/matchi-api/internal/adapters/sqlite"
	"github.com/matchi-app/matchi-api/internal/domain"
	"github.com/matchi-app/matchi-api/internal/ports/out/attendancerepo"
)

// Repo is a SQLite implementation of attendancerepo.Repository.
//
// Transactions begin IMMEDIATE on a single connection, so units of work are
// serialized database-wide rather than per event.
type Repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

const nextJoinSeq = `(SELECT coalesce(max(join_seq), 0) + 1 FROM event_attendees)`

func (r *Repo) InEventTx(ctx context.Context, eventID domain.EventID, fn func(ctx context.Context, ev attendancerepo.EventState, tx attendancerepo.Tx) error) error {
	if r.db == nil {
		return errors.New("nil sqlite db")
	}
	err := sqlite.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var (
			capacity int
			status   string
		)
		err := tx.QueryRowContext(ctx, `SELECT capacity, status FROM events WHERE id = ?`, string(eventID)).Scan(&capacity, &status)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return attendancerepo.ErrEventNotFound
			}
			return err
		}
		ev := attendancerepo.EventState{
			ID:       eventID,
			Capacity: capacity,
			Status:   domain.EventStatus(status),
		}
		return fn(ctx, ev, &eventTx{tx: tx, eventID: eventID, capacity: capacity})
	})
	if err != nil && sqlite.IsBusy(err) {
		return fmt.Errorf("%w: %v", attendancerepo.ErrConflict, err)
	}
	return err
}

func (r *Repo) Get(ctx context.Context, eventID domain.EventID, userID domain.UserID) (attendancerepo.Record, error) {
	if r.db == nil {
		return attendancerepo.Record{}, errors.New("nil sqlite db")
	}
	return getRecord(ctx, r.db, eventID, userID)
}

func (r *Repo) ListByEvent(ctx context.Context, eventID domain.EventID) ([]attendancerepo.Record, error) {
	if r.db == nil {
		return nil, errors.New("nil sqlite db")
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT event_id, user_id, status, joined_at, updated_at
		FROM event_attendees
		WHERE event_id = ? AND status <> 'cancelled'
		ORDER BY joined_at ASC, join_seq ASC
	`, string(eventID))
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

func (r *Repo) ListByUser(ctx context.Context, userID domain.UserID) ([]attendancerepo.Record, error) {
	if r.db == nil {
		return nil, errors.New("nil sqlite db")
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT event_id, user_id, status, joined_at, updated_at
		FROM event_attendees
		WHERE user_id = ? AND status <> 'cancelled'
		ORDER BY joined_at DESC, join_seq DESC
	`, string(userID))
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// eventTx must only touch tx: the pool holds one connection and it is ours.
type eventTx struct {
	tx       *sql.Tx
	eventID  domain.EventID
	capacity int
}

func (t *eventTx) Get(ctx context.Context, userID domain.UserID) (attendancerepo.Record, error) {
	return getRecord(ctx, t.tx, t.eventID, userID)
}

func (t *eventTx) CountConfirmed(ctx context.Context) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, `
		SELECT count(*) FROM event_attendees WHERE event_id = ? AND status = 'confirmed'
	`, string(t.eventID)).Scan(&n)
	return n, err
}

func (t *eventTx) EarliestWaitlisted(ctx context.Context) (attendancerepo.Record, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT event_id, user_id, status, joined_at, updated_at
		FROM event_attendees
		WHERE event_id = ? AND status = 'waitlist'
		ORDER BY joined_at ASC, join_seq ASC
		LIMIT 1
	`, string(t.eventID))
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
	status := string(rec.Status)
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO event_attendees (event_id, user_id, status, joined_at, join_seq, updated_at)
		SELECT ?, ?, ?, ?, `+nextJoinSeq+`, ?
		WHERE ? <> 'confirmed'
		   OR (SELECT count(*) FROM event_attendees WHERE event_id = ? AND status = 'confirmed') < ?
	`,
		string(t.eventID),
		string(rec.UserID),
		status,
		sqlite.Nanos(rec.JoinedAt),
		sqlite.Nanos(rec.UpdatedAt),
		status,
		string(t.eventID),
		t.capacity,
	)
	if err != nil {
		switch {
		case sqlite.IsPrimaryKeyViolation(err):
			return attendancerepo.ErrAlreadyExists
		case sqlite.IsForeignKeyViolation(err):
			return attendancerepo.ErrUserNotFound
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return attendancerepo.ErrCapacityExceeded
	}
	return nil
}

func (t *eventTx) Update(ctx context.Context, rec attendancerepo.Record) error {
	status := string(rec.Status)
	joinedAt := sqlite.Nanos(rec.JoinedAt)
	res, err := t.tx.ExecContext(ctx, `
		UPDATE event_attendees
		SET status = ?,
		    updated_at = ?,
		    join_seq = CASE
				WHEN joined_at = ? AND (status <> 'cancelled' OR ? = 'cancelled') THEN join_seq
				ELSE `+nextJoinSeq+`
			END,
		    joined_at = ?
		WHERE event_id = ?
		  AND user_id = ?
		  AND (
			? <> 'confirmed'
			OR status = 'confirmed'
			OR (SELECT count(*) FROM event_attendees WHERE event_id = ? AND status = 'confirmed') < ?
		  )
	`,
		status,
		sqlite.Nanos(rec.UpdatedAt),
		joinedAt,
		status,
		joinedAt,
		string(t.eventID),
		string(rec.UserID),
		status,
		string(t.eventID),
		t.capacity,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var exists int
	if err := t.tx.QueryRowContext(ctx, `
		SELECT count(*) FROM event_attendees WHERE event_id = ? AND user_id = ?
	`, string(t.eventID), string(rec.UserID)).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return attendancerepo.ErrNotFound
	}
	return attendancerepo.ErrCapacityExceeded
}

func getRecord(ctx context.Context, q rowQuerier, eventID domain.EventID, userID domain.UserID) (attendancerepo.Record, error) {
	var (
		status              string
		joinedAt, updatedAt int64
	)
	err := q.QueryRowContext(ctx, `
		SELECT status, joined_at, updated_at
		FROM event_attendees
		WHERE event_id = ? AND user_id = ?
	`, string(eventID), string(userID)).Scan(&status, &joinedAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return attendancerepo.Record{}, attendancerepo.ErrNotFound
		}
		return attendancerepo.Record{}, err
	}
	return attendancerepo.Record{
		EventID:   eventID,
		UserID:    userID,
		Status:    domain.AttendanceStatus(status),
		JoinedAt:  sqlite.FromNanos(joinedAt),
		UpdatedAt: sqlite.FromNanos(updatedAt),
	}, nil
}

func collectRecords(rows *sql.Rows) ([]attendancerepo.Record, error) {
	defer rows.Close()
	out := make([]attendancerepo.Record, 0)
	for rows.Next() {
		var (
			eventID, userID, status string
			joinedAt, updatedAt     int64
		)
		if err := rows.Scan(&eventID, &userID, &status, &joinedAt, &updatedAt); err != nil {
			return nil, err
		}
		out = append(out, attendancerepo.Record{
			EventID:   domain.EventID(eventID),
			UserID:    domain.UserID(userID),
			Status:    domain.AttendanceStatus(status),
			JoinedAt:  sqlite.FromNanos(joinedAt),
			UpdatedAt: sqlite.FromNanos(updatedAt),
		})
	}
	return out, rows.Err()
}
