package infoposts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	memclock "github.com/matchi-app/matchi-api/internal/adapters/memory/clock"
	meminfopostrepo "github.com/matchi-app/matchi-api/internal/adapters/memory/infopostrepo"
	memuserrepo "github.com/matchi-app/matchi-api/internal/adapters/memory/userrepo"
	"github.com/matchi-app/matchi-api/internal/domain"
	"github.com/matchi-app/matchi-api/internal/platform/metrics"
	"github.com/matchi-app/matchi-api/internal/ports/out/infopostrepo"
	"github.com/matchi-app/matchi-api/internal/ports/out/userrepo"
)

type fixture struct {
	svc     *Service
	clk     *memclock.ManualClock
	posts   *meminfopostrepo.Repo
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	clk := memclock.NewManualClock(time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC))
	users := memuserrepo.NewRepo()
	posts := meminfopostrepo.NewRepo()
	m := metrics.NewWithRegistry(prometheus.NewRegistry(), nil)
	svc := NewService(posts, users, clk, nil, m)

	for _, u := range []struct{ id, name string }{{"user-1", "Sarah K."}, {"user-2", "Mike T."}} {
		if err := users.Create(context.Background(), userrepo.User{
			ID: domain.UserID(u.id), Subject: domain.SubjectID("sub-" + u.id), DisplayName: u.name,
		}); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	n := 0
	svc.SetNewPostIDForTest(func() domain.InfoPostID {
		n++
		return domain.InfoPostID(fmt.Sprintf("post-%02d", n))
	})
	return fixture{svc: svc, clk: clk, posts: posts, metrics: m}
}

func (f fixture) create(t *testing.T, author, category, title string) domain.InfoPostWithAuthor {
	t.Helper()
	p, err := f.svc.CreatePost(context.Background(), domain.UserID(author), CreateInfoPostInput{
		Category: category,
		Title:    title,
		Content:  "Everything you need to know before you move in.",
	})
	if err != nil {
		t.Fatalf("CreatePost(%q) err=%v", title, err)
	}
	f.clk.Advance(time.Minute)
	return p
}

func assertAppError(t *testing.T, err error, status int, code string) *Error {
	t.Helper()
	ae := (*Error)(nil)
	if !errors.As(err, &ae) || ae.Status != status || ae.Code != code {
		t.Fatalf("err=%v (type=%T), want %s %d", err, err, code, status)
	}
	return ae
}

func TestService_CreatePost_Normalizes(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	got, err := f.svc.CreatePost(context.Background(), "user-1", CreateInfoPostInput{
		Category: " Housing ",
		Title:    "  Complete   guide to off-campus housing ",
		Content:  "  Everything you need to know about finding apartments.  ",
		Tags:     []string{"Guide", "guide", " Popular "},
	})
	if err != nil {
		t.Fatalf("CreatePost err=%v", err)
	}
	if got.ID != "post-01" || got.Category != domain.InfoCategoryHousing {
		t.Fatalf("id=%q category=%q", got.ID, got.Category)
	}
	if got.Title != "Complete guide to off-campus housing" {
		t.Fatalf("Title=%q", got.Title)
	}
	if got.Content != "Everything you need to know about finding apartments." {
		t.Fatalf("Content=%q", got.Content)
	}
	if strings.Join(got.Tags, ",") != "guide,popular" {
		t.Fatalf("Tags=%v want=[guide popular]", got.Tags)
	}
	if got.Author.DisplayName != "Sarah K." || got.Upvotes != 0 || got.ViewCount != 0 {
		t.Fatalf("author=%+v upvotes=%d views=%d", got.Author, got.Upvotes, got.ViewCount)
	}
	if !got.CreatedAt.Equal(f.clk.Now()) {
		t.Fatalf("CreatedAt=%v want=%v", got.CreatedAt, f.clk.Now())
	}
	if v := testutil.ToFloat64(f.metrics.InfoPostsCreatedTotal.WithLabelValues("housing")); v != 1 {
		t.Fatalf("info_posts_created_total=%v want=1", v)
	}
}

func TestService_CreatePost_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.svc.CreatePost(context.Background(), "user-1", CreateInfoPostInput{
		Category: "nightlife",
		Title:    "Hi",
		Content:  "   ",
		Tags:     []string{"a", "b", "c", "d", "e", "f"},
	})
	ae := assertAppError(t, err, 422, "VALIDATION_ERROR")
	for _, field := range []string{"category", "title", "content", "tags"} {
		if _, ok := ae.Details[field]; !ok {
			t.Fatalf("details missing %q: %v", field, ae.Details)
		}
	}
	if counts, _ := f.posts.CountByCategory(context.Background()); len(counts) != 0 {
		t.Fatalf("rejected post was stored: %v", counts)
	}
}

func TestService_CreatePost_UnknownAuthor(t *testing.T) {
	t.Parallel()
	clk := memclock.NewManualClock(time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC))
	svc := NewService(authorCheckingRepo{meminfopostrepo.NewRepo()}, memuserrepo.NewRepo(), clk, nil, nil)

	_, err := svc.CreatePost(context.Background(), "ghost", CreateInfoPostInput{
		Category: "food",
		Title:    "Late night tacos",
		Content:  "The truck on 5th stays open until 2am.",
	})
	assertAppError(t, err, 401, "USER_NOT_PROVISIONED")
}

type authorCheckingRepo struct {
	*meminfopostrepo.Repo
}

func (authorCheckingRepo) Create(context.Context, infopostrepo.Post) error {
	return infopostrepo.ErrAuthorNotFound
}

func TestService_Overview_CountsAndRecent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.create(t, "user-1", "food", "Best late night tacos")
	f.create(t, "user-2", "housing", "Sublet season tips")
	f.create(t, "user-1", "food", "Cheap lunch deals")
	f.create(t, "user-2", "transport", "Bike routes to campus")
	f.create(t, "user-1", "campus", "Gym opening hours")

	got, err := f.svc.Overview(context.Background())
	if err != nil {
		t.Fatalf("Overview err=%v", err)
	}
	if len(got.Categories) != len(domain.InfoCategories) {
		t.Fatalf("categories=%d want=%d", len(got.Categories), len(domain.InfoCategories))
	}
	want := map[domain.InfoCategory]int{"housing": 1, "classes": 0, "food": 2, "transport": 1, "money": 0, "campus": 1}
	for i, c := range got.Categories {
		if c.Value != domain.InfoCategories[i].Value {
			t.Fatalf("categories[%d]=%q want=%q", i, c.Value, domain.InfoCategories[i].Value)
		}
		if c.Count != want[c.Value] {
			t.Fatalf("count[%s]=%d want=%d", c.Value, c.Count, want[c.Value])
		}
	}

	if len(got.Recent) != RecentLimit {
		t.Fatalf("recent=%d want=%d", len(got.Recent), RecentLimit)
	}
	wantTitles := []string{"Gym opening hours", "Bike routes to campus", "Cheap lunch deals", "Sublet season tips"}
	wantAuthors := []string{"Sarah K.", "Mike T.", "Sarah K.", "Mike T."}
	for i, p := range got.Recent {
		if p.Title != wantTitles[i] || p.Author.DisplayName != wantAuthors[i] {
			t.Fatalf("recent[%d]=%q by %q, want %q by %q", i, p.Title, p.Author.DisplayName, wantTitles[i], wantAuthors[i])
		}
	}
}

func TestService_Overview_EmptyHub(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	got, err := f.svc.Overview(context.Background())
	if err != nil {
		t.Fatalf("Overview err=%v", err)
	}
	if len(got.Recent) != 0 {
		t.Fatalf("recent=%d want=0", len(got.Recent))
	}
	for _, c := range got.Categories {
		if c.Count != 0 {
			t.Fatalf("count[%s]=%d want=0", c.Value, c.Count)
		}
	}
}

func TestService_MissingAuthorIsAnonymous(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	at := f.clk.Now()
	if err := f.posts.Create(context.Background(), infopostrepo.Post{
		ID: "orphan", AuthorID: "deleted-user", Category: domain.InfoCategoryMoney,
		Title: "Campus job board", Content: "Check the board by the library.", CreatedAt: at, UpdatedAt: at,
	}); err != nil {
		t.Fatalf("seed post: %v", err)
	}

	got, err := f.svc.Overview(context.Background())
	if err != nil {
		t.Fatalf("Overview err=%v", err)
	}
	if len(got.Recent) != 1 || got.Recent[0].Author.DisplayName != domain.AnonymousAuthor {
		t.Fatalf("recent=%+v want one post by %q", got.Recent, domain.AnonymousAuthor)
	}
}

func TestService_ListByCategory(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.create(t, "user-1", "food", "Best late night tacos")
	f.create(t, "user-2", "housing", "Sublet season tips")
	f.create(t, "user-2", "food", "Cheap lunch deals")

	info, got, err := f.svc.ListByCategory(context.Background(), "FOOD", 0)
	if err != nil {
		t.Fatalf("ListByCategory err=%v", err)
	}
	if info.Label != "Food & Dining" {
		t.Fatalf("Label=%q", info.Label)
	}
	if len(got) != 2 || got[0].Title != "Cheap lunch deals" || got[1].Title != "Best late night tacos" {
		t.Fatalf("posts=%+v", got)
	}

	_, got, err = f.svc.ListByCategory(context.Background(), "food", 1)
	if err != nil || len(got) != 1 {
		t.Fatalf("limit=1: len=%d err=%v", len(got), err)
	}

	_, _, err = f.svc.ListByCategory(context.Background(), "nightlife", 0)
	assertAppError(t, err, 404, "CATEGORY_NOT_FOUND")
}

func TestService_ViewPostCountsViews(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	p := f.create(t, "user-1", "classes", "Study groups for CS101")

	for want := 1; want <= 2; want++ {
		got, err := f.svc.ViewPost(context.Background(), p.ID)
		if err != nil {
			t.Fatalf("ViewPost err=%v", err)
		}
		if got.ViewCount != want || got.Author.DisplayName != "Sarah K." {
			t.Fatalf("views=%d author=%q, want %d Sarah K.", got.ViewCount, got.Author.DisplayName, want)
		}
	}

	_, err := f.svc.ViewPost(context.Background(), "missing")
	assertAppError(t, err, 404, "INFO_POST_NOT_FOUND")
}
