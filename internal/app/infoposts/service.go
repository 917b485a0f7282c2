package infoposts

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matchi-app/matchi-api/internal/domain"
	"github.com/matchi-app/matchi-api/internal/platform/metrics"
	"github.com/matchi-app/matchi-api/internal/platform/validation"
	clockport "github.com/matchi-app/matchi-api/internal/ports/out/clock"
	"github.com/matchi-app/matchi-api/internal/ports/out/infopostrepo"
	"github.com/matchi-app/matchi-api/internal/ports/out/userrepo"
)

const (
	// RecentLimit is how many posts the info hub overview shows.
	RecentLimit = 4

	DefaultListLimit = 50
	MaxListLimit     = 100
)

type Service struct {
	posts   infopostrepo.Repository
	users   userrepo.Repository
	clk     clockport.Clock
	log     *zap.Logger
	metrics *metrics.Metrics

	newPostID func() domain.InfoPostID
}

func NewService(
	postsRepo infopostrepo.Repository,
	usersRepo userrepo.Repository,
	clk clockport.Clock,
	log *zap.Logger,
	m *metrics.Metrics,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		posts:   postsRepo,
		users:   usersRepo,
		clk:     clk,
		log:     log,
		metrics: m,
		newPostID: func() domain.InfoPostID {
			return domain.InfoPostID(uuid.NewString())
		},
	}
}

// SetNewPostIDForTest overrides post ID generation for deterministic tests.
func (s *Service) SetNewPostIDForTest(fn func() domain.InfoPostID) {
	if fn != nil {
		s.newPostID = fn
	}
}

// Overview returns every category with its post count, in catalogue order,
// and the RecentLimit newest posts across all categories.
func (s *Service) Overview(ctx context.Context) (domain.InfoHubOverview, error) {
	counts, err := s.posts.CountByCategory(ctx)
	if err != nil {
		return domain.InfoHubOverview{}, err
	}
	cats := make([]domain.InfoCategoryCount, 0, len(domain.InfoCategories))
	for _, c := range domain.InfoCategories {
		cats = append(cats, domain.InfoCategoryCount{InfoCategoryInfo: c, Count: counts[c.Value]})
	}

	recent, err := s.posts.ListRecent(ctx, RecentLimit)
	if err != nil {
		return domain.InfoHubOverview{}, err
	}
	withAuthors, err := s.withAuthors(ctx, recent)
	if err != nil {
		return domain.InfoHubOverview{}, err
	}
	return domain.InfoHubOverview{Categories: cats, Recent: withAuthors}, nil
}

// ListByCategory returns the newest posts in category. A non-positive limit
// means DefaultListLimit; larger limits are capped at MaxListLimit.
func (s *Service) ListByCategory(ctx context.Context, category string, limit int) (domain.InfoCategoryInfo, []domain.InfoPostWithAuthor, error) {
	info, ok := domain.LookupInfoCategory(domain.InfoCategory(strings.ToLower(strings.TrimSpace(category))))
	if !ok {
		return domain.InfoCategoryInfo{}, nil, errCategoryNotFound()
	}
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	ps, err := s.posts.ListByCategory(ctx, info.Value, limit)
	if err != nil {
		return domain.InfoCategoryInfo{}, nil, err
	}
	out, err := s.withAuthors(ctx, ps)
	if err != nil {
		return domain.InfoCategoryInfo{}, nil, err
	}
	return info, out, nil
}

// ViewPost returns a post and counts the view.
func (s *Service) ViewPost(ctx context.Context, id domain.InfoPostID) (domain.InfoPostWithAuthor, error) {
	p, err := s.posts.IncrementViews(ctx, id)
	if err != nil {
		if errors.Is(err, infopostrepo.ErrNotFound) {
			return domain.InfoPostWithAuthor{}, errPostNotFound()
		}
		return domain.InfoPostWithAuthor{}, err
	}
	out, err := s.withAuthors(ctx, []infopostrepo.Post{p})
	if err != nil {
		return domain.InfoPostWithAuthor{}, err
	}
	return out[0], nil
}

func (s *Service) CreatePost(ctx context.Context, author domain.UserID, in CreateInfoPostInput) (domain.InfoPostWithAuthor, error) {
	now := s.clk.Now()

	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	in.Title = domain.NormalizeHumanName(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	in.Tags = domain.NormalizeTags(in.Tags)

	if details := validation.Struct(in); len(details) > 0 {
		return domain.InfoPostWithAuthor{}, &Error{
			Status:  422,
			Code:    "VALIDATION_ERROR",
			Message: "invalid info post",
			Details: details,
		}
	}

	p := infopostrepo.Post{
		ID:        s.newPostID(),
		AuthorID:  author,
		Category:  domain.InfoCategory(in.Category),
		Title:     in.Title,
		Content:   in.Content,
		Tags:      in.Tags,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.posts.Create(ctx, p); err != nil {
		if errors.Is(err, infopostrepo.ErrAuthorNotFound) {
			return domain.InfoPostWithAuthor{}, errAuthorNotProvisioned()
		}
		return domain.InfoPostWithAuthor{}, err
	}
	s.metrics.IncInfoPostCreated(in.Category)
	s.log.Info("info post created",
		zap.String("post_id", string(p.ID)),
		zap.String("author_id", string(author)),
		zap.String("category", in.Category),
	)
	out, err := s.withAuthors(ctx, []infopostrepo.Post{p})
	if err != nil {
		return domain.InfoPostWithAuthor{}, err
	}
	return out[0], nil
}

// withAuthors attaches author summaries, looking each author up once.
// Authors that no longer resolve are shown as domain.AnonymousAuthor.
func (s *Service) withAuthors(ctx context.Context, ps []infopostrepo.Post) ([]domain.InfoPostWithAuthor, error) {
	names := make(map[domain.UserID]string, len(ps))
	out := make([]domain.InfoPostWithAuthor, 0, len(ps))
	for _, p := range ps {
		name, ok := names[p.AuthorID]
		if !ok {
			u, err := s.users.GetByID(ctx, p.AuthorID)
			switch {
			case err == nil && u.DisplayName != "":
				name = u.DisplayName
			case err == nil || errors.Is(err, userrepo.ErrNotFound):
				name = domain.AnonymousAuthor
			default:
				return nil, err
			}
			names[p.AuthorID] = name
		}
		out = append(out, domain.InfoPostWithAuthor{
			InfoPost: toDomain(p),
			Author:   domain.UserSummary{ID: p.AuthorID, DisplayName: name},
		})
	}
	return out, nil
}

func toDomain(p infopostrepo.Post) domain.InfoPost {
	return domain.InfoPost{
		ID:        p.ID,
		AuthorID:  p.AuthorID,
		Category:  p.Category,
		Title:     p.Title,
		Content:   p.Content,
		Tags:      append([]string(nil), p.Tags...),
		Upvotes:   p.Upvotes,
		ViewCount: p.ViewCount,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
