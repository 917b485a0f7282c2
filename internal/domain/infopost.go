package domain

import "time"

// InfoPostID is an internal identifier for an info hub post.
type InfoPostID string

type InfoCategory string

const (
	InfoCategoryHousing   InfoCategory = "housing"
	InfoCategoryClasses   InfoCategory = "classes"
	InfoCategoryFood      InfoCategory = "food"
	InfoCategoryTransport InfoCategory = "transport"
	InfoCategoryMoney     InfoCategory = "money"
	InfoCategoryCampus    InfoCategory = "campus"
)

// InfoCategoryInfo describes one info hub section.
type InfoCategoryInfo struct {
	Value       InfoCategory
	Label       string
	Description string
}

// InfoCategories lists every info hub category in display order.
var InfoCategories = []InfoCategoryInfo{
	{InfoCategoryHousing, "Housing", "Find rooms, roommates, neighborhood guides"},
	{InfoCategoryClasses, "Classes & Academics", "Professor reviews, study groups, tips"},
	{InfoCategoryFood, "Food & Dining", "Best spots, deals, delivery tips"},
	{InfoCategoryTransport, "Getting Around", "Transit, parking, bike routes"},
	{InfoCategoryMoney, "Money & Jobs", "Part-time jobs, budgeting, student discounts"},
	{InfoCategoryCampus, "Campus Life", "Clubs, gyms, events, traditions"},
}

// LookupInfoCategory returns the catalogue entry for c.
func LookupInfoCategory(c InfoCategory) (InfoCategoryInfo, bool) {
	for _, v := range InfoCategories {
		if v.Value == c {
			return v, true
		}
	}
	return InfoCategoryInfo{}, false
}

func (c InfoCategory) Valid() bool {
	_, ok := LookupInfoCategory(c)
	return ok
}

type InfoPost struct {
	ID       InfoPostID
	AuthorID UserID
	Category InfoCategory

	Title   string
	Content string
	Tags    []string

	Upvotes   int
	ViewCount int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// InfoPostWithAuthor carries the author's display name. A missing author
// renders as AnonymousAuthor.
type InfoPostWithAuthor struct {
	InfoPost
	Author UserSummary
}

const AnonymousAuthor = "Anonymous"

type InfoCategoryCount struct {
	InfoCategoryInfo
	Count int
}

// InfoHubOverview is the landing view: every category with its post count,
// plus the most recent posts across all categories.
type InfoHubOverview struct {
	Categories []InfoCategoryCount
	Recent     []InfoPostWithAuthor
}
