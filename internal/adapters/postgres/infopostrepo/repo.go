package infopostrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/matchi-app/matchi-api/internal/adapters/postgres"
	"github.com/matchi-app/matchi-api/internal/domain"
	"github.com/matchi-app/matchi-api/internal/ports/out/infopostrepo"
)

// Repo is a Postgres implementation of infopostrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const selectColumns = `
	id, author_id, category, title, content, tags, upvotes, view_count, created_at, updated_at
`

func (r *Repo) Create(ctx context.Context, p infopostrepo.Post) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(p.ID))
	if err != nil {
		return fmt.Errorf("invalid info post id: %w", err)
	}
	authorID, err := uuid.Parse(string(p.AuthorID))
	if err != nil {
		return infopostrepo.ErrAuthorNotFound
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO info_posts (
			id,
			author_id,
			category,
			title,
			content,
			tags,
			upvotes,
			view_count,
			created_at,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		id,
		authorID,
		string(p.Category),
		p.Title,
		p.Content,
		nonNilTags(p.Tags),
		p.Upvotes,
		p.ViewCount,
		p.CreatedAt.UTC(),
		p.UpdatedAt.UTC(),
	)
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok {
			switch pe.Code {
			case postgres.UniqueViolationCode:
				return infopostrepo.ErrAlreadyExists
			case postgres.ForeignKeyViolationCode:
				return infopostrepo.ErrAuthorNotFound
			}
		}
		return err
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.InfoPostID) (infopostrepo.Post, error) {
	if r.pool == nil {
		return infopostrepo.Post{}, errors.New("nil postgres pool")
	}
	pid, err := uuid.Parse(string(id))
	if err != nil {
		return infopostrepo.Post{}, infopostrepo.ErrNotFound
	}
	rows, err := r.pool.Query(ctx, `SELECT `+selectColumns+` FROM info_posts WHERE id = $1`, pid)
	if err != nil {
		return infopostrepo.Post{}, err
	}
	return firstPost(rows)
}

func (r *Repo) IncrementViews(ctx context.Context, id domain.InfoPostID) (infopostrepo.Post, error) {
	if r.pool == nil {
		return infopostrepo.Post{}, errors.New("nil postgres pool")
	}
	pid, err := uuid.Parse(string(id))
	if err != nil {
		return infopostrepo.Post{}, infopostrepo.ErrNotFound
	}
	rows, err := r.pool.Query(ctx, `
		UPDATE info_posts
		SET view_count = view_count + 1
		WHERE id = $1
		RETURNING `+selectColumns, pid)
	if err != nil {
		return infopostrepo.Post{}, err
	}
	return firstPost(rows)
}

func (r *Repo) CountByCategory(ctx context.Context) (map[domain.InfoCategory]int, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	rows, err := r.pool.Query(ctx, `SELECT category, count(*) FROM info_posts GROUP BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[domain.InfoCategory]int)
	for rows.Next() {
		var (
			c string
			n int
		)
		if err := rows.Scan(&c, &n); err != nil {
			return nil, err
		}
		out[domain.InfoCategory(c)] = n
	}
	return out, rows.Err()
}

func (r *Repo) ListRecent(ctx context.Context, limit int) ([]infopostrepo.Post, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+selectColumns+`
		FROM info_posts
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limitArg(limit))
	if err != nil {
		return nil, err
	}
	return collectPosts(rows)
}

func (r *Repo) ListByCategory(ctx context.Context, c domain.InfoCategory, limit int) ([]infopostrepo.Post, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+selectColumns+`
		FROM info_posts
		WHERE category = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, string(c), limitArg(limit))
	if err != nil {
		return nil, err
	}
	return collectPosts(rows)
}

func firstPost(rows pgx.Rows) (infopostrepo.Post, error) {
	out, err := collectPosts(rows)
	if err != nil {
		return infopostrepo.Post{}, err
	}
	if len(out) == 0 {
		return infopostrepo.Post{}, infopostrepo.ErrNotFound
	}
	return out[0], nil
}

func collectPosts(rows pgx.Rows) ([]infopostrepo.Post, error) {
	defer rows.Close()
	out := make([]infopostrepo.Post, 0)
	for rows.Next() {
		var (
			id, authorID uuid.UUID
			category     string
			p            infopostrepo.Post
		)
		if err := rows.Scan(
			&id,
			&authorID,
			&category,
			&p.Title,
			&p.Content,
			&p.Tags,
			&p.Upvotes,
			&p.ViewCount,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		p.ID = domain.InfoPostID(id.String())
		p.AuthorID = domain.UserID(authorID.String())
		p.Category = domain.InfoCategory(category)
		p.CreatedAt = p.CreatedAt.UTC()
		p.UpdatedAt = p.UpdatedAt.UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

// limitArg maps a non-positive limit to NULL, which Postgres reads as LIMIT ALL.
func limitArg(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
