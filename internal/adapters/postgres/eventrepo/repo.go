package eventrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/matchi-app/matchi-api/internal/adapters/postgres"
	"github.com/matchi-app/matchi-api/internal/domain"
	"github.com/matchi-app/matchi-api/internal/ports/out/eventrepo"
)

// Repo is a Postgres implementation of eventrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const selectColumns = `
	id, host_user_id, title, description, event_type, starts_at,
	location_address, tags, is_public, capacity, status, created_at, updated_at
`

func (r *Repo) Create(ctx context.Context, e eventrepo.Event) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(e.ID))
	if err != nil {
		return fmt.Errorf("invalid event id: %w", err)
	}
	hostID, err := uuid.Parse(string(e.HostUserID))
	if err != nil {
		return fmt.Errorf("invalid host user id: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
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
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		id,
		hostID,
		e.Title,
		e.Description,
		string(e.Type),
		e.StartsAt.UTC(),
		e.LocationAddress,
		nonNilTags(e.Tags),
		e.IsPublic,
		e.Capacity,
		string(e.Status),
		e.CreatedAt.UTC(),
		e.UpdatedAt.UTC(),
	)
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
			return eventrepo.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *Repo) Update(ctx context.Context, e eventrepo.Event) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(e.ID))
	if err != nil {
		return eventrepo.ErrNotFound
	}

	ct, err := r.pool.Exec(ctx, `
		UPDATE events
		SET title = $2,
		    description = $3,
		    event_type = $4,
		    starts_at = $5,
		    location_address = $6,
		    tags = $7,
		    is_public = $8,
		    capacity = $9,
		    status = $10,
		    updated_at = $11
		WHERE id = $1
	`,
		id,
		e.Title,
		e.Description,
		string(e.Type),
		e.StartsAt.UTC(),
		e.LocationAddress,
		nonNilTags(e.Tags),
		e.IsPublic,
		e.Capacity,
		string(e.Status),
		e.UpdatedAt.UTC(),
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return eventrepo.ErrNotFound
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.EventID) (eventrepo.Event, error) {
	if r.pool == nil {
		return eventrepo.Event{}, errors.New("nil postgres pool")
	}
	eid, err := uuid.Parse(string(id))
	if err != nil {
		return eventrepo.Event{}, eventrepo.ErrNotFound
	}
	rows, err := r.pool.Query(ctx, `SELECT `+selectColumns+` FROM events WHERE id = $1`, eid)
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
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	var typ *string
	if f.Type != nil {
		v := string(*f.Type)
		typ = &v
	}
	city := strings.TrimSpace(f.City)
	search := strings.TrimSpace(f.Search)

	rows, err := r.pool.Query(ctx, `
		SELECT `+selectColumns+`
		FROM events
		WHERE status = 'active'
		  AND starts_at >= $1
		  AND ($2::text IS NULL OR event_type = $2::text)
		  AND ($3::text = '' OR location_address ILIKE $4)
		  AND ($5::text = '' OR title ILIKE $6 OR coalesce(description, '') ILIKE $6)
		ORDER BY starts_at ASC, id ASC
	`,
		from.UTC(),
		typ,
		city,
		postgres.LikePattern(city),
		search,
		postgres.LikePattern(search),
	)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

func (r *Repo) ListActiveStartedBefore(ctx context.Context, cutoff time.Time) ([]eventrepo.Event, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+selectColumns+`
		FROM events
		WHERE status = 'active' AND starts_at < $1
		ORDER BY starts_at ASC, id ASC
	`, cutoff.UTC())
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]eventrepo.Event, error) {
	defer rows.Close()
	out := make([]eventrepo.Event, 0)
	for rows.Next() {
		var (
			id, hostID  uuid.UUID
			typ, status string
			e           eventrepo.Event
		)
		if err := rows.Scan(
			&id,
			&hostID,
			&e.Title,
			&e.Description,
			&typ,
			&e.StartsAt,
			&e.LocationAddress,
			&e.Tags,
			&e.IsPublic,
			&e.Capacity,
			&status,
			&e.CreatedAt,
			&e.UpdatedAt,
		); err != nil {
			return nil, err
		}
		e.ID = domain.EventID(id.String())
		e.HostUserID = domain.UserID(hostID.String())
		e.Type = domain.EventType(typ)
		e.Status = domain.EventStatus(status)
		e.StartsAt = e.StartsAt.UTC()
		e.CreatedAt = e.CreatedAt.UTC()
		e.UpdatedAt = e.UpdatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
