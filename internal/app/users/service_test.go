package users

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	memclock "github.com/matchi-app/matchi-api/internal/adapters/memory/clock"
	memuserrepo "github.com/matchi-app/matchi-api/internal/adapters/memory/userrepo"
	"github.com/matchi-app/matchi-api/internal/domain"
)

func newTestService() *Service {
	clk := memclock.NewManualClock(time.Unix(100, 0).UTC())
	return NewService(memuserrepo.NewRepo(), clk, nil)
}

func assertAppError(t *testing.T, err error, status int, code string) *Error {
	t.Helper()
	ae := (*Error)(nil)
	if !errors.As(err, &ae) || ae.Status != status || ae.Code != code {
		t.Fatalf("err=%v (type=%T), want %s %d", err, err, code, status)
	}
	return ae
}

func TestService_GetMe_NotProvisioned(t *testing.T) {
	t.Parallel()

	_, err := newTestService().GetMe(context.Background(), domain.SubjectID("sub-1"))
	assertAppError(t, err, 404, "USER_NOT_PROVISIONED")
}

func TestService_RegisterThenGet(t *testing.T) {
	t.Parallel()
	svc := newTestService()
	svc.SetNewUserIDForTest(func() domain.UserID { return "u-1" })

	created, err := svc.RegisterMe(context.Background(), "sub-1", RegisterMeInput{DisplayName: "  Alice   Smith "})
	if err != nil {
		t.Fatalf("RegisterMe err=%v", err)
	}
	if created.ID != "u-1" || created.DisplayName != "Alice Smith" {
		t.Fatalf("created=%+v", created)
	}
	if !created.CreatedAt.Equal(time.Unix(100, 0)) {
		t.Fatalf("createdAt=%v want=%v", created.CreatedAt, time.Unix(100, 0))
	}

	got, err := svc.GetMe(context.Background(), "sub-1")
	if err != nil {
		t.Fatalf("GetMe err=%v", err)
	}
	if got.ID != created.ID || got.Subject != "sub-1" {
		t.Fatalf("got=%+v created=%+v", got, created)
	}

	id, err := svc.ResolveCaller(context.Background(), "sub-1")
	if err != nil || id != "u-1" {
		t.Fatalf("ResolveCaller id=%q err=%v want=u-1", id, err)
	}
}

func TestService_RegisterMe_AlreadyExists(t *testing.T) {
	t.Parallel()
	svc := newTestService()

	if _, err := svc.RegisterMe(context.Background(), "sub-1", RegisterMeInput{DisplayName: "Alice"}); err != nil {
		t.Fatalf("RegisterMe err=%v", err)
	}
	_, err := svc.RegisterMe(context.Background(), "sub-1", RegisterMeInput{DisplayName: "Alice"})
	assertAppError(t, err, 409, "USER_ALREADY_EXISTS")
}

func TestService_RegisterMe_Validation(t *testing.T) {
	t.Parallel()
	svc := newTestService()

	_, err := svc.RegisterMe(context.Background(), "sub-1", RegisterMeInput{DisplayName: "   "})
	ae := assertAppError(t, err, 422, "VALIDATION_ERROR")
	if ae.Details["displayName"] != "is required" {
		t.Fatalf("details=%v", ae.Details)
	}

	_, err = svc.RegisterMe(context.Background(), "sub-1", RegisterMeInput{DisplayName: strings.Repeat("a", 81)})
	assertAppError(t, err, 422, "VALIDATION_ERROR")
}

func TestService_ResolveCaller(t *testing.T) {
	t.Parallel()
	svc := newTestService()

	_, err := svc.ResolveCaller(context.Background(), "")
	assertAppError(t, err, 401, "UNAUTHENTICATED")

	_, err = svc.ResolveCaller(context.Background(), "sub-unknown")
	assertAppError(t, err, 401, "USER_NOT_PROVISIONED")
}

func TestService_Summaries_KeepsOrderAndToleratesUnknown(t *testing.T) {
	t.Parallel()
	svc := newTestService()
	ids := []domain.UserID{"u-b", "u-a"}
	next := 0
	svc.SetNewUserIDForTest(func() domain.UserID { id := ids[next]; next++; return id })

	if _, err := svc.RegisterMe(context.Background(), "sub-b", RegisterMeInput{DisplayName: "Bea"}); err != nil {
		t.Fatalf("RegisterMe: %v", err)
	}
	if _, err := svc.RegisterMe(context.Background(), "sub-a", RegisterMeInput{DisplayName: "Abe"}); err != nil {
		t.Fatalf("RegisterMe: %v", err)
	}

	got, err := svc.Summaries(context.Background(), []domain.UserID{"u-a", "u-missing", "u-b"})
	if err != nil {
		t.Fatalf("Summaries: %v", err)
	}
	want := []domain.UserSummary{{ID: "u-a", DisplayName: "Abe"}, {ID: "u-missing"}, {ID: "u-b", DisplayName: "Bea"}}
	if len(got) != len(want) {
		t.Fatalf("Summaries()=%v want=%v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Summaries()[%d]=%v want=%v", i, got[i], want[i])
		}
	}
}
