package infopostrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/matchi-app/matchi-api/internal/adapters/sqlite"
	"github.com/matchi-app/matchi-api/internal/domain"
	"github.com/matchi-app/matchi-api/internal/ports/out/infopostrepo"
)

// Repo is a SQLite implementation of infopostrepo.Repository.
//
// Tags are stored as a JSON array in a TEXT column.
type Repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

const selectColumns = `
	id, author_id, category, title, content, tags, upvotes, view_count, created_at, updated_at
`

func (r *Repo) Create(ctx context.Context, p infopostrepo.Post) error {
	if r.db == nil {
		return errors.New("nil sqlite db")
	}
	if p.ID == "" {
		return infopostrepo.ErrAlreadyExists
	}
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
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
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(p.ID),
		string(p.AuthorID),
		string(p.Category),
		p.Title,
		p.Content,
		string(b),
		p.Upvotes,
		p.ViewCount,
		sqlite.Nanos(p.CreatedAt),
		sqlite.Nanos(p.UpdatedAt),
	)
	switch {
	case err == nil:
		return nil
	case sqlite.IsPrimaryKeyViolation(err):
		return infopostrepo.ErrAlreadyExists
	case sqlite.IsForeignKeyViolation(err):
		return infopostrepo.ErrAuthorNotFound
	default:
		return err
	}
}

func (r *Repo) GetByID(ctx context.Context, id domain.InfoPostID) (infopostrepo.Post, error) {
	if r.db == nil {
		return infopostrepo.Post{}, errors.New("nil sqlite db")
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM info_posts WHERE id = ?`, string(id))
	if err != nil {
		return infopostrepo.Post{}, err
	}
	return firstPost(rows)
}

func (r *Repo) IncrementViews(ctx context.Context, id domain.InfoPostID) (infopostrepo.Post, error) {
	if r.db == nil {
		return infopostrepo.Post{}, errors.New("nil sqlite db")
	}
	rows, err := r.db.QueryContext(ctx, `
		UPDATE info_posts
		SET view_count = view_count + 1
		WHERE id = ?
		RETURNING `+selectColumns, string(id))
	if err != nil {
		return infopostrepo.Post{}, err
	}
	return firstPost(rows)
}

func (r *Repo) CountByCategory(ctx context.Context) (map[domain.InfoCategory]int, error) {
	if r.db == nil {
		return nil, errors.New("nil sqlite db")
	}
	rows, err := r.db.QueryContext(ctx, `SELECT category, count(*) FROM info_posts GROUP BY category`)
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
	if r.db == nil {
		return nil, errors.New("nil sqlite db")
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM info_posts
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limitArg(limit))
	if err != nil {
		return nil, err
	}
	return collectPosts(rows)
}

func (r *Repo) ListByCategory(ctx context.Context, c domain.InfoCategory, limit int) ([]infopostrepo.Post, error) {
	if r.db == nil {
		return nil, errors.New("nil sqlite db")
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM info_posts
		WHERE category = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, string(c), limitArg(limit))
	if err != nil {
		return nil, err
	}
	return collectPosts(rows)
}

func firstPost(rows *sql.Rows) (infopostrepo.Post, error) {
	out, err := collectPosts(rows)
	if err != nil {
		return infopostrepo.Post{}, err
	}
	if len(out) == 0 {
		return infopostrepo.Post{}, infopostrepo.ErrNotFound
	}
	return out[0], nil
}

func collectPosts(rows *sql.Rows) ([]infopostrepo.Post, error) {
	defer rows.Close()
	out := make([]infopostrepo.Post, 0)
	for rows.Next() {
		var (
			id, authorID, category string
			tags                   string
			createdAt, updatedAt   int64
			p                      infopostrepo.Post
		)
		if err := rows.Scan(
			&id,
			&authorID,
			&category,
			&p.Title,
			&p.Content,
			&tags,
			&p.Upvotes,
			&p.ViewCount,
			&createdAt,
			&updatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
			return nil, fmt.Errorf("decode tags for info post %s: %w", id, err)
		}
		p.ID = domain.InfoPostID(id)
		p.AuthorID = domain.UserID(authorID)
		p.Category = domain.InfoCategory(category)
		p.CreatedAt = sqlite.FromNanos(createdAt)
		p.UpdatedAt = sqlite.FromNanos(updatedAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

// limitArg maps a non-positive limit to -1, which SQLite reads as no limit.
func limitArg(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
