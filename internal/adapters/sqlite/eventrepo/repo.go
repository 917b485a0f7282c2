package eventrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matchi-app/matchi-api/internal/adapters/sqlite"
	"github.com/matchi-app/matchi-api/internal/domain"
	"github.com/matchi-app/matchi-api/internal/ports/out/eventrepo"
)

// Repo is a SQLite implementation of eventrepo.Repository.
//
// Tags are stored as a JSON array in a TEXT column.
type Repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

const selectColumns = `
	id, host_user_id, title, description, event_type, starts_at,
	location_address, tags, is_public, capacity, status, created_at, updated_at
`

func (r *Repo) Create(ctx context.Context, e eventrepo.Event) error {
	if r.db == nil {
		return errors.New("nil sqlite db")
	}
	if e.ID == "" {
		return eventrepo.ErrAlreadyExists
	}
	tags, err := encodeTags(e.Tags)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO events (
			id,
			host_user_id,
			title,
			description,
			event_type,
			starts_at,
			location_address,
			tags,
			is_public,
			capacity,
			status,
			created_at,
			updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(e.ID),
		string(e.HostUserID),
		e.Title,
		e.Description,
		string(e.Type),
		sqlite.Nanos(e.StartsAt),
		e.LocationAddress,
		tags,
		e.IsPublic,
		e.Capacity,
		string(e.Status),
		sqlite.Nanos(e.CreatedAt),
		sqlite.Nanos(e.UpdatedAt),
	)
	if err != nil {
		if sqlite.IsPrimaryKeyViolation(err) {
			return eventrepo.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *Repo) Update(ctx context.Context, e eventrepo.Event) error {
	if r.db == nil {
		return errors.New("nil sqlite db")
	}
	tags, err := encodeTags(e.Tags)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE events
		SET title = ?,
		    description = ?,
		    event_type = ?,
		    starts_at = ?,
		    location_address = ?,
		    tags = ?,
		    is_public = ?,
		    capacity = ?,
		    status = ?,
		    updated_at = ?
		WHERE id = ?
	`,
		e.Title,
		e.Description,
		string(e.Type),
		sqlite.Nanos(e.StartsAt),
		e.LocationAddress,
		tags,
		e.IsPublic,
		e.Capacity,
		string(e.Status),
		sqlite.Nanos(e.UpdatedAt),
		string(e.ID),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return eventrepo.ErrNotFound
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.EventID) (eventrepo.Event, error) {
	if r.db == nil {
		return eventrepo.Event{}, errors.New("nil sqlite db")
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM events WHERE id = ?`, string(id))
	if err != nil {
		return eventrepo.Event{}, err
	}
	out, err := collectEvents(rows)
	if err != nil {
		return eventrepo.Event{}, err
	}
	if len(out) == 0 {
		return eventrepo.Event{}, eventrepo.ErrNotFound
	}
	return out[0], nil
}

func (r *Repo) ListUpcoming(ctx context.Context, from time.Time, f eventrepo.ListFilter) ([]eventrepo.Event, error) {
	if r.db == nil {
		return nil, errors.New("nil sqlite db")
	}
	typ := ""
	if f.Type != nil {
		typ = string(*f.Type)
	}
	city := strings.TrimSpace(f.City)
	search := strings.TrimSpace(f.Search)
	searchPattern := sqlite.LikePattern(search)

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM events
		WHERE status = 'active'
		  AND starts_at >= ?
		  AND (? = '' OR event_type = ?)
		  AND (? = '' OR lower(location_address) LIKE ? ESCAPE '\')
		  AND (? = '' OR lower(title) LIKE ? ESCAPE '\' OR lower(coalesce(description, '')) LIKE ? ESCAPE '\')
		ORDER BY starts_at ASC, id ASC
	`,
		sqlite.Nanos(from),
		typ, typ,
		city, sqlite.LikePattern(city),
		search, searchPattern, searchPattern,
	)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

func (r *Repo) ListActiveStartedBefore(ctx context.Context, cutoff time.Time) ([]eventrepo.Event, error) {
	if r.db == nil {
		return nil, errors.New("nil sqlite db")
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM events
		WHERE status = 'active' AND starts_at < ?
		ORDER BY starts_at ASC, id ASC
	`, sqlite.Nanos(cutoff))
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

func collectEvents(rows *sql.Rows) ([]eventrepo.Event, error) {
	defer rows.Close()
	out := make([]eventrepo.Event, 0)
	for rows.Next() {
		var (
			id, hostID, typ, status string
			description             sql.NullString
			tags                    string
			startsAt                int64
			createdAt, updatedAt    int64
			e                       eventrepo.Event
		)
		if err := rows.Scan(
			&id,
			&hostID,
			&e.Title,
			&description,
			&typ,
			&startsAt,
			&e.LocationAddress,
			&tags,
			&e.IsPublic,
			&e.Capacity,
			&status,
			&createdAt,
			&updatedAt,
		); err != nil {
			return nil, err
		}
		if description.Valid {
			v := description.String
			e.Description = &v
		}
		if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
			return nil, fmt.Errorf("decode tags for event %s: %w", id, err)
		}
		e.ID = domain.EventID(id)
		e.HostUserID = domain.UserID(hostID)
		e.Type = domain.EventType(typ)
		e.Status = domain.EventStatus(status)
		e.StartsAt = sqlite.FromNanos(startsAt)
		e.CreatedAt = sqlite.FromNanos(createdAt)
		e.UpdatedAt = sqlite.FromNanos(updatedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(b), nil
}
