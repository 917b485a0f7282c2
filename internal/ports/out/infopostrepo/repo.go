package infopostrepo

import (
	"context"
	"time"

	"github.com/matchi-app/matchi-api/internal/domain"
)

type Post struct {
	ID       domain.InfoPostID
	AuthorID domain.UserID
	Category domain.InfoCategory

	Title   string
	Content string
	Tags    []string

	Upvotes   int
	ViewCount int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository provides access to info hub posts.
//
// Result ordering expectations:
// - ListRecent and ListByCategory return newest first (CreatedAt descending),
//   ties broken by ID descending.
type Repository interface {
	// Create fails with ErrAuthorNotFound when AuthorID is not a known user.
	Create(ctx context.Context, p Post) error

	GetByID(ctx context.Context, id domain.InfoPostID) (Post, error)

	// IncrementViews bumps ViewCount by one and returns the updated post.
	IncrementViews(ctx context.Context, id domain.InfoPostID) (Post, error)

	// CountByCategory returns post counts keyed by category. Categories
	// without posts may be absent.
	CountByCategory(ctx context.Context) (map[domain.InfoCategory]int, error)

	ListRecent(ctx context.Context, limit int) ([]Post, error)
	ListByCategory(ctx context.Context, c domain.InfoCategory, limit int) ([]Post, error)
}
