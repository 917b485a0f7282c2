package attendance

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/matchi-app/matchi-api/internal/domain"
	"github.com/matchi-app/matchi-api/internal/platform/metrics"
	"github.com/matchi-app/matchi-api/internal/ports/out/attendancerepo"
	clockport "github.com/matchi-app/matchi-api/internal/ports/out/clock"
	"github.com/matchi-app/matchi-api/internal/ports/out/eventrepo"
	"github.com/matchi-app/matchi-api/internal/ports/out/userrepo"
)

// Service owns the join/leave/waitlist lifecycle of event attendance.
//
// All writes for one event go through attendancerepo.Repository.InEventTx, so
// the count-then-write in Join and the promotion in Leave never interleave
// with another mutation of the same event.
type Service struct {
	repo    attendancerepo.Repository
	events  eventrepo.Repository
	users   userrepo.Repository
	clk     clockport.Clock
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewService(
	repo attendancerepo.Repository,
	events eventrepo.Repository,
	users userrepo.Repository,
	clk clockport.Clock,
	log *zap.Logger,
	m *metrics.Metrics,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:    repo,
		events:  events,
		users:   users,
		clk:     clk,
		log:     log,
		metrics: m,
	}
}

// Join adds caller to the event: confirmed while seats remain, otherwise
// waitlisted. Joining again while confirmed or waitlisted changes nothing.
func (s *Service) Join(ctx context.Context, caller domain.UserID, eventID domain.EventID) (JoinResult, error) {
	if caller == "" {
		return JoinResult{}, errUnauthenticated()
	}

	var res JoinResult
	err := s.withRetry(ctx, "join", eventID, func(ctx context.Context) error {
		res = JoinResult{}
		return s.repo.InEventTx(ctx, eventID, func(ctx context.Context, ev attendancerepo.EventState, tx attendancerepo.Tx) error {
			if ev.Status != domain.EventStatusActive {
				return errEventNotActive(ev.Status)
			}

			existing, err := tx.Get(ctx, caller)
			switch {
			case err == nil && existing.Status.Active():
				res = JoinResult{
					Status:     existing.Status,
					Outcome:    domain.JoinOutcomeAlreadyJoined,
					Attendance: toDomain(existing),
				}
				return nil
			case err != nil && !errors.Is(err, attendancerepo.ErrNotFound):
				return err
			}
			write := tx.Insert
			if err == nil {
				// A cancelled record is reactivated in place and goes to the back of the queue.
				write = tx.Update
			}

			confirmed, err := tx.CountConfirmed(ctx)
			if err != nil {
				return err
			}
			now := s.clk.Now()
			rec := attendancerepo.Record{
				EventID:   eventID,
				UserID:    caller,
				Status:    domain.AttendanceStatusWaitlist,
				JoinedAt:  now,
				UpdatedAt: now,
			}
			if confirmed < ev.Capacity {
				rec.Status = domain.AttendanceStatusConfirmed
			}

			err = write(ctx, rec)
			if errors.Is(err, attendancerepo.ErrCapacityExceeded) && rec.Status == domain.AttendanceStatusConfirmed {
				s.log.Warn("confirmed seat taken at write time, joining waitlist",
					zap.String("event_id", string(eventID)),
					zap.String("user_id", string(caller)),
				)
				s.metrics.IncCapacityRaceFallback()
				rec.Status = domain.AttendanceStatusWaitlist
				err = write(ctx, rec)
			}
			if err != nil {
				return err
			}

			res = JoinResult{
				Status:     rec.Status,
				Outcome:    domain.JoinOutcomeJoined,
				Attendance: toDomain(rec),
			}
			return nil
		})
	})
	if err != nil {
		return JoinResult{}, err
	}

	if res.Outcome == domain.JoinOutcomeJoined {
		s.metrics.IncAttendanceTransition("join", string(res.Status))
		s.log.Info("attendance joined",
			zap.String("event_id", string(eventID)),
			zap.String("user_id", string(caller)),
			zap.String("status", string(res.Status)),
		)
	}
	return res, nil
}

// Leave cancels caller's attendance. If a confirmed seat is freed on an
// active event, the earliest waitlisted user is promoted in the same unit.
// Leaving without an active record is a successful no-op.
func (s *Service) Leave(ctx context.Context, caller domain.UserID, eventID domain.EventID) (LeaveResult, error) {
	if caller == "" {
		return LeaveResult{}, errUnauthenticated()
	}

	var res LeaveResult
	err := s.withRetry(ctx, "leave", eventID, func(ctx context.Context) error {
		res = LeaveResult{}
		return s.repo.InEventTx(ctx, eventID, func(ctx context.Context, ev attendancerepo.EventState, tx attendancerepo.Tx) error {
			existing, err := tx.Get(ctx, caller)
			if errors.Is(err, attendancerepo.ErrNotFound) || (err == nil && !existing.Status.Active()) {
				res = LeaveResult{Outcome: domain.LeaveOutcomeNotJoined}
				return nil
			}
			if err != nil {
				return err
			}

			now := s.clk.Now()
			prev := existing.Status
			existing.Status = domain.AttendanceStatusCancelled
			existing.UpdatedAt = now
			if err := tx.Update(ctx, existing); err != nil {
				return err
			}
			res = LeaveResult{Outcome: domain.LeaveOutcomeLeft, PreviousStatus: prev}

			if prev != domain.AttendanceStatusConfirmed || ev.Status != domain.EventStatusActive {
				return nil
			}
			promoted, err := s.promoteNext(ctx, ev, tx, now)
			if err != nil {
				return err
			}
			res.PromotedUserID = promoted
			return nil
		})
	})
	if err != nil {
		return LeaveResult{}, err
	}

	if res.Outcome == domain.LeaveOutcomeLeft {
		s.metrics.IncAttendanceTransition("leave", string(domain.AttendanceStatusCancelled))
		fields := []zap.Field{
			zap.String("event_id", string(eventID)),
			zap.String("user_id", string(caller)),
			zap.String("previous_status", string(res.PreviousStatus)),
		}
		if res.PromotedUserID != nil {
			s.metrics.IncWaitlistPromotion()
			fields = append(fields, zap.String("promoted_user_id", string(*res.PromotedUserID)))
		}
		s.log.Info("attendance left", fields...)
	}
	return res, nil
}

// promoteNext moves the earliest waitlisted record to confirmed if a seat is
// free. It returns nil when nobody was promoted.
func (s *Service) promoteNext(ctx context.Context, ev attendancerepo.EventState, tx attendancerepo.Tx, now time.Time) (*domain.UserID, error) {
	next, err := tx.EarliestWaitlisted(ctx)
	if errors.Is(err, attendancerepo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	confirmed, err := tx.CountConfirmed(ctx)
	if err != nil {
		return nil, err
	}
	if confirmed >= ev.Capacity {
		return nil, nil
	}

	next.Status = domain.AttendanceStatusConfirmed
	next.UpdatedAt = now
	if err := tx.Update(ctx, next); err != nil {
		if errors.Is(err, attendancerepo.ErrCapacityExceeded) {
			return nil, nil
		}
		return nil, err
	}
	id := next.UserID
	return &id, nil
}

// GetSummary reports seats and the confirmed attendees in join order.
func (s *Service) GetSummary(ctx context.Context, eventID domain.EventID) (domain.AttendanceSummary, error) {
	e, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, eventrepo.ErrNotFound) {
			return domain.AttendanceSummary{}, errEventNotFound()
		}
		return domain.AttendanceSummary{}, err
	}

	recs, err := s.repo.ListByEvent(ctx, eventID)
	if err != nil {
		return domain.AttendanceSummary{}, err
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].JoinedAt.Before(recs[j].JoinedAt)
	})

	out := domain.AttendanceSummary{
		EventID:        eventID,
		Capacity:       e.Capacity,
		ConfirmedUsers: make([]domain.UserSummary, 0),
	}
	for _, r := range recs {
		switch r.Status {
		case domain.AttendanceStatusConfirmed:
			out.ConfirmedCount++
			u := domain.UserSummary{ID: r.UserID}
			if pu, err := s.users.GetByID(ctx, r.UserID); err == nil {
				u.DisplayName = pu.DisplayName
			} else if !errors.Is(err, userrepo.ErrNotFound) {
				return domain.AttendanceSummary{}, err
			}
			out.ConfirmedUsers = append(out.ConfirmedUsers, u)
		case domain.AttendanceStatusWaitlist:
			out.WaitlistCount++
		}
	}
	out.SpotsLeft = e.Capacity - out.ConfirmedCount
	if out.SpotsLeft < 0 {
		out.SpotsLeft = 0
	}
	return out, nil
}

// GetMyAttendance returns caller's record for the event in any status,
// including cancelled.
func (s *Service) GetMyAttendance(ctx context.Context, caller domain.UserID, eventID domain.EventID) (domain.Attendance, error) {
	if caller == "" {
		return domain.Attendance{}, errUnauthenticated()
	}
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, eventrepo.ErrNotFound) {
			return domain.Attendance{}, errEventNotFound()
		}
		return domain.Attendance{}, err
	}
	rec, err := s.repo.Get(ctx, eventID, caller)
	if err != nil {
		if errors.Is(err, attendancerepo.ErrNotFound) {
			return domain.Attendance{}, &Error{
				Status:  404,
				Code:    "ATTENDANCE_NOT_FOUND",
				Message: "you have not joined this event",
			}
		}
		return domain.Attendance{}, err
	}
	return toDomain(rec), nil
}

// ListMyAttendance returns caller's confirmed and waitlisted records, most recent first.
func (s *Service) ListMyAttendance(ctx context.Context, caller domain.UserID) ([]domain.Attendance, error) {
	if caller == "" {
		return nil, errUnauthenticated()
	}
	recs, err := s.repo.ListByUser(ctx, caller)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Attendance, 0, len(recs))
	for _, r := range recs {
		out = append(out, toDomain(r))
	}
	return out, nil
}

// withRetry runs fn and, on a store conflict, once more with fresh reads.
func (s *Service) withRetry(ctx context.Context, op string, eventID domain.EventID, fn func(context.Context) error) error {
	err := mapRepoError(fn(ctx))
	if !isConflict(err) {
		return err
	}
	s.log.Warn("attendance write conflict, retrying",
		zap.String("operation", op),
		zap.String("event_id", string(eventID)),
		zap.Error(err),
	)

	err = mapRepoError(fn(ctx))
	switch {
	case err == nil:
		s.metrics.IncConflictRetry(op, "recovered")
		return nil
	case isConflict(err):
		s.metrics.IncConflictRetry(op, "exhausted")
		s.log.Error("attendance write conflict after retry",
			zap.String("operation", op),
			zap.String("event_id", string(eventID)),
			zap.Error(err),
		)
		return &Error{
			Status:  503,
			Code:    "PERSISTENCE_CONFLICT",
			Message: "the event is busy, please try again",
		}
	default:
		return err
	}
}

func isConflict(err error) bool {
	return errors.Is(err, attendancerepo.ErrConflict) || errors.Is(err, attendancerepo.ErrAlreadyExists)
}

func mapRepoError(err error) error {
	switch {
	case errors.Is(err, attendancerepo.ErrEventNotFound):
		return errEventNotFound()
	case errors.Is(err, attendancerepo.ErrUserNotFound):
		return errUserNotProvisioned()
	}
	return err
}

func toDomain(r attendancerepo.Record) domain.Attendance {
	return domain.Attendance{
		EventID:   r.EventID,
		UserID:    r.UserID,
		Status:    r.Status,
		JoinedAt:  r.JoinedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
