package httpapi

import (
	"time"

	"github.com/oapi-codegen/nullable"

	"github.com/matchi-app/matchi-api/internal/domain"
)

type UserDTO struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}

type UserSummaryDTO struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type EventDTO struct {
	ID              string                    `json:"id"`
	HostUserID      string                    `json:"hostUserId"`
	Title           string                    `json:"title"`
	Description     nullable.Nullable[string] `json:"description"`
	Type            string                    `json:"type"`
	StartsAt        time.Time                 `json:"startsAt"`
	LocationAddress string                    `json:"locationAddress"`
	Tags            []string                  `json:"tags"`
	IsPublic        bool                      `json:"isPublic"`
	Capacity        int                       `json:"capacity"`
	Status          string                    `json:"status"`
	CreatedAt       time.Time                 `json:"createdAt"`
	UpdatedAt       time.Time                 `json:"updatedAt"`
}

type EventDetailsDTO struct {
	EventDTO
	Host           UserSummaryDTO `json:"host"`
	ConfirmedCount int            `json:"confirmedCount"`
	SpotsLeft      int            `json:"spotsLeft"`
}

type AttendanceDTO struct {
	EventID   string    `json:"eventId"`
	UserID    string    `json:"userId"`
	Status    string    `json:"status"`
	JoinedAt  time.Time `json:"joinedAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type AttendanceSummaryDTO struct {
	EventID        string           `json:"eventId"`
	Capacity       int              `json:"capacity"`
	ConfirmedCount int              `json:"confirmedCount"`
	SpotsLeft      int              `json:"spotsLeft"`
	WaitlistCount  int              `json:"waitlistCount"`
	ConfirmedUsers []UserSummaryDTO `json:"confirmedUsers"`
}

type JoinResponse struct {
	Status     string        `json:"status"`
	Outcome    string        `json:"outcome"`
	Attendance AttendanceDTO `json:"attendance"`
}

type LeaveResponse struct {
	OK             bool                      `json:"ok"`
	Outcome        string                    `json:"outcome"`
	PromotedUserID nullable.Nullable[string] `json:"promotedUserId,omitempty"`
}

type InfoCategoryDTO struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

type InfoCategoryCountDTO struct {
	InfoCategoryDTO
	PostCount int `json:"postCount"`
}

type InfoPostDTO struct {
	ID        string         `json:"id"`
	Category  string         `json:"category"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Tags      []string       `json:"tags"`
	Author    UserSummaryDTO `json:"author"`
	Upvotes   int            `json:"upvotes"`
	ViewCount int            `json:"viewCount"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

type InfoHubDTO struct {
	Categories  []InfoCategoryCountDTO `json:"categories"`
	RecentPosts []InfoPostDTO          `json:"recentPosts"`
}

func userFromDomain(u domain.User) UserDTO {
	return UserDTO{ID: string(u.ID), DisplayName: u.DisplayName, CreatedAt: u.CreatedAt}
}

func userSummaryFromDomain(u domain.UserSummary) UserSummaryDTO {
	return UserSummaryDTO{ID: string(u.ID), DisplayName: u.DisplayName}
}

func eventFromDomain(e domain.Event) EventDTO {
	out := EventDTO{
		ID:              string(e.ID),
		HostUserID:      string(e.HostUserID),
		Title:           e.Title,
		Type:            string(e.Type),
		StartsAt:        e.StartsAt,
		LocationAddress: e.LocationAddress,
		Tags:            e.Tags,
		IsPublic:        e.IsPublic,
		Capacity:        e.Capacity,
		Status:          string(e.Status),
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if e.Description != nil {
		out.Description = nullable.NewNullableWithValue(*e.Description)
	} else {
		out.Description = nullable.NewNullNullable[string]()
	}
	return out
}

func eventDetailsFromDomain(d domain.EventDetails) EventDetailsDTO {
	return EventDetailsDTO{
		EventDTO:       eventFromDomain(d.Event),
		Host:           userSummaryFromDomain(d.Host),
		ConfirmedCount: d.ConfirmedCount,
		SpotsLeft:      d.SpotsLeft,
	}
}

func attendanceFromDomain(a domain.Attendance) AttendanceDTO {
	return AttendanceDTO{
		EventID:   string(a.EventID),
		UserID:    string(a.UserID),
		Status:    string(a.Status),
		JoinedAt:  a.JoinedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func summaryFromDomain(s domain.AttendanceSummary) AttendanceSummaryDTO {
	out := AttendanceSummaryDTO{
		EventID:        string(s.EventID),
		Capacity:       s.Capacity,
		ConfirmedCount: s.ConfirmedCount,
		SpotsLeft:      s.SpotsLeft,
		WaitlistCount:  s.WaitlistCount,
		ConfirmedUsers: make([]UserSummaryDTO, 0, len(s.ConfirmedUsers)),
	}
	for _, u := range s.ConfirmedUsers {
		out.ConfirmedUsers = append(out.ConfirmedUsers, userSummaryFromDomain(u))
	}
	return out
}

func infoCategoryFromDomain(c domain.InfoCategoryInfo) InfoCategoryDTO {
	return InfoCategoryDTO{Value: string(c.Value), Label: c.Label, Description: c.Description}
}

func infoPostFromDomain(p domain.InfoPostWithAuthor) InfoPostDTO {
	out := InfoPostDTO{
		ID:        string(p.ID),
		Category:  string(p.Category),
		Title:     p.Title,
		Content:   p.Content,
		Tags:      p.Tags,
		Author:    userSummaryFromDomain(p.Author),
		Upvotes:   p.Upvotes,
		ViewCount: p.ViewCount,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	return out
}

func infoPostsFromDomain(ps []domain.InfoPostWithAuthor) []InfoPostDTO {
	out := make([]InfoPostDTO, 0, len(ps))
	for _, p := range ps {
		out = append(out, infoPostFromDomain(p))
	}
	return out
}

func infoHubFromDomain(o domain.InfoHubOverview) InfoHubDTO {
	out := InfoHubDTO{
		Categories:  make([]InfoCategoryCountDTO, 0, len(o.Categories)),
		RecentPosts: infoPostsFromDomain(o.Recent),
	}
	for _, c := range o.Categories {
		out.Categories = append(out.Categories, InfoCategoryCountDTO{
			InfoCategoryDTO: infoCategoryFromDomain(c.InfoCategoryInfo),
			PostCount:       c.Count,
		})
	}
	return out
}
