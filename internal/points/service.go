// Package points maintains the points ledger: manual admin adjustments and
// per-event awards with an at-most-once guarantee per event and staff member.
package points

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/crewmuster/crewmuster/internal/levels"
	"github.com/crewmuster/crewmuster/internal/metrics"
	"github.com/crewmuster/crewmuster/internal/models"
	"github.com/crewmuster/crewmuster/internal/repository"
)

// Notifier delivers level-up congratulations. Best-effort, never fails the
// award.
type Notifier interface {
	LevelUp(ctx context.Context, member models.StaffMember, levelName string)
}

// Service is the points ledger.
type Service struct {
	events      *repository.Events
	awards      *repository.Awards
	levels      *repository.Levels
	adjustments *repository.Adjustments
	notifier    Notifier
	metrics     *metrics.Metrics
	log         *slog.Logger
	now         func() time.Time
}

// NewService creates the ledger service.
func NewService(
	events *repository.Events,
	awards *repository.Awards,
	lvls *repository.Levels,
	adjustments *repository.Adjustments,
	notifier Notifier,
	m *metrics.Metrics,
	log *slog.Logger,
) *Service {
	return &Service{
		events:      events,
		awards:      awards,
		levels:      lvls,
		adjustments: adjustments,
		notifier:    notifier,
		metrics:     m,
		log:         log,
		now:         time.Now,
	}
}

// Adjust applies a manual signed points delta to a staff member. The balance
// is clamped at zero, the level is re-resolved, and the applied delta is
// appended to the ledger in the same store update that credits the balance.
func (s *Service) Adjust(ctx context.Context, p models.Principal, staffID string, delta int, reason string) (models.StaffMember, error) {
	if !p.IsAdmin() {
		return models.StaffMember{}, models.ErrUnauthorized
	}
	if reason == "" {
		return models.StaffMember{}, fmt.Errorf("adjustment reason is required: %w", models.ErrValidation)
	}

	table, err := s.levels.List(ctx)
	if err != nil {
		return models.StaffMember{}, err
	}

	var applied int
	var leveledUp bool
	member, err := s.awards.Adjust(ctx, staffID, func(cur *models.StaffMember) (models.PointAdjustment, error) {
		next := cur.Points + delta
		if next < 0 {
			next = 0
		}
		applied = next - cur.Points
		cur.Points = next

		resolved := levels.Resolve(cur.Points, table)
		leveledUp = resolved != cur.Level && rankOf(resolved, table) > rankOf(cur.Level, table)
		cur.Level = resolved
		return models.PointAdjustment{
			StaffID:   staffID,
			Points:    applied,
			Reason:    reason,
			AdminID:   p.ID,
			Timestamp: s.now(),
		}, nil
	})
	if err != nil {
		return models.StaffMember{}, err
	}

	s.metrics.PointsGranted.Add(float64(max(applied, 0)))
	s.log.Info("points adjusted",
		"staff", staffID, "admin", p.ID, "delta", applied, "total", member.Points, "level", member.Level)

	if leveledUp {
		s.reportLevelUp(ctx, member)
	}
	return member, nil
}

// ConfirmOne awards an event's points to a single confirmed staff member.
// The awarded-set guard, the balance credit and the ledger entry commit in
// one store transaction, so two concurrent confirms for the same pair award
// exactly once and a failed confirm leaves no partial state.
func (s *Service) ConfirmOne(ctx context.Context, p models.Principal, eventID, staffID string) (models.StaffMember, error) {
	if !p.IsAdmin() {
		return models.StaffMember{}, models.ErrUnauthorized
	}
	table, err := s.levels.List(ctx)
	if err != nil {
		return models.StaffMember{}, err
	}
	return s.award(ctx, p, eventID, staffID, table)
}

// ConfirmAll awards the event's points to every confirmed staff member not
// yet awarded. Ids that no longer resolve to a staff record are skipped with
// a log line and stay unawarded.
func (s *Service) ConfirmAll(ctx context.Context, p models.Principal, eventID string) ([]models.StaffMember, error) {
	if !p.IsAdmin() {
		return nil, models.ErrUnauthorized
	}

	ev, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	table, err := s.levels.List(ctx)
	if err != nil {
		return nil, err
	}

	members := make([]models.StaffMember, 0, len(ev.ConfirmedStaff))
	for _, staffID := range ev.ConfirmedStaff {
		if ev.IsAwarded(staffID) {
			continue
		}
		member, aerr := s.award(ctx, p, eventID, staffID, table)
		switch {
		case errors.Is(aerr, models.ErrNotFound):
			s.log.Warn("skipping award for unknown staff id", "event", eventID, "staff", staffID)
			continue
		case errors.Is(aerr, models.ErrPrecondition):
			// someone else awarded this pair between Get and now
			continue
		case aerr != nil:
			s.log.Error("failed to apply award", "event", eventID, "staff", staffID, "error", aerr)
			continue
		}
		members = append(members, member)
	}
	return members, nil
}

// award writes one event award as a single atomic unit: the guard check and
// the awarded-set append, the balance and level update, and the ledger entry.
func (s *Service) award(ctx context.Context, p models.Principal, eventID, staffID string, table []models.Level) (models.StaffMember, error) {
	var leveledUp bool
	ev, member, err := s.awards.Grant(ctx, eventID, staffID, func(cur *models.Event, m *models.StaffMember) (models.PointAdjustment, error) {
		if !cur.IsConfirmed(staffID) {
			return models.PointAdjustment{}, fmt.Errorf("staff %q is not confirmed for event %q: %w", staffID, eventID, models.ErrPrecondition)
		}
		if cur.IsAwarded(staffID) {
			return models.PointAdjustment{}, fmt.Errorf("staff %q already received points for event %q: %w", staffID, eventID, models.ErrPrecondition)
		}
		cur.PointsAwarded = append(cur.PointsAwarded, staffID)

		m.Points += cur.Points
		resolved := levels.Resolve(m.Points, table)
		leveledUp = resolved != m.Level && rankOf(resolved, table) > rankOf(m.Level, table)
		m.Level = resolved
		return models.PointAdjustment{
			StaffID:   staffID,
			Points:    cur.Points,
			Reason:    fmt.Sprintf("Completed event %s", cur.Name),
			AdminID:   p.ID,
			EventID:   cur.ID,
			Timestamp: s.now(),
		}, nil
	})
	if err != nil {
		return models.StaffMember{}, err
	}

	s.metrics.PointsGranted.Add(float64(ev.Points))
	s.log.Info("points awarded",
		"event", ev.ID, "staff", staffID, "points", ev.Points, "total", member.Points, "level", member.Level)

	if leveledUp {
		s.reportLevelUp(ctx, member)
	}
	return member, nil
}

func (s *Service) reportLevelUp(ctx context.Context, member models.StaffMember) {
	s.metrics.LevelUps.Inc()
	s.log.Info("staff leveled up", "staff", member.ID, "level", member.Level)
	s.notifier.LevelUp(ctx, member, member.Level)
}

// History returns the ledger entries of one staff member, oldest first.
// Staff may read their own history; anything else requires admin.
func (s *Service) History(ctx context.Context, p models.Principal, staffID string) ([]models.PointAdjustment, error) {
	if !p.IsAdmin() && p.ID != staffID {
		return nil, models.ErrUnauthorized
	}
	return s.adjustments.ListByStaff(ctx, staffID)
}

// rankOf returns the access rank of a level name, or a rank below every real
// level when the name does not resolve.
func rankOf(name string, table []models.Level) int {
	for _, l := range table {
		if l.Name == name {
			return l.Order
		}
	}
	return -1 << 31
}
