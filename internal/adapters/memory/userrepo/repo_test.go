package userrepo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matchi-app/matchi-api/internal/domain"
	"github.com/matchi-app/matchi-api/internal/ports/out/userrepo"
)

func TestRepo_CreateAndGet(t *testing.T) {
	t.Parallel()

	r := NewRepo()
	now := time.Unix(100, 0).UTC()

	u := userrepo.User{
		ID:          domain.UserID("u1"),
		Subject:     domain.SubjectID("sub-1"),
		DisplayName: "Alice Smith",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.Create(context.Background(), u); err != nil {
		t.Fatalf("Create() err=%v", err)
	}

	gotByID, err := r.GetByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("GetByID() err=%v", err)
	}
	if gotByID != u {
		t.Fatalf("GetByID()=%+v, want %+v", gotByID, u)
	}

	gotBySub, err := r.GetBySubject(context.Background(), u.Subject)
	if err != nil {
		t.Fatalf("GetBySubject() err=%v", err)
	}
	if gotBySub.ID != u.ID {
		t.Fatalf("GetBySubject().ID=%q, want %q", gotBySub.ID, u.ID)
	}
}

func TestRepo_CreateRejectsDuplicates(t *testing.T) {
	t.Parallel()

	r := NewRepo()
	if err := r.Create(context.Background(), userrepo.User{ID: "u1", Subject: "sub-1", DisplayName: "A"}); err != nil {
		t.Fatalf("Create(u1) err=%v", err)
	}
	if err := r.Create(context.Background(), userrepo.User{ID: "u1", Subject: "sub-2", DisplayName: "B"}); !errors.Is(err, userrepo.ErrAlreadyExists) {
		t.Fatalf("Create(dup id) err=%v, want %v", err, userrepo.ErrAlreadyExists)
	}
	if err := r.Create(context.Background(), userrepo.User{ID: "u2", Subject: "sub-1", DisplayName: "C"}); !errors.Is(err, userrepo.ErrSubjectAlreadyBound) {
		t.Fatalf("Create(dup subject) err=%v, want %v", err, userrepo.ErrSubjectAlreadyBound)
	}
}
