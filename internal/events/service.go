// Package events implements the event lifecycle: draft, publish, edit, close
// with staff selection, cancel and reinstate, plus staff signup. Every
// mutation computes exactly the recipients whose situation changed and hands
// them to the notifier after the write committed.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/crewmuster/crewmuster/internal/levels"
	"github.com/crewmuster/crewmuster/internal/metrics"
	"github.com/crewmuster/crewmuster/internal/models"
	"github.com/crewmuster/crewmuster/internal/repository"
)

// Notifier receives the recipient sets computed by the lifecycle operations.
// Delivery is best-effort; implementations must not fail the mutation.
type Notifier interface {
	EventPublished(ctx context.Context, ev models.Event, recipients []models.StaffMember)
	EventUpdated(ctx context.Context, ev models.Event, changes []string, recipients []models.StaffMember)
	StaffSelected(ctx context.Context, ev models.Event, recipients []models.StaffMember)
	StaffDeselected(ctx context.Context, ev models.Event, recipients []models.StaffMember)
	EventCancelled(ctx context.Context, ev models.Event, recipients []models.StaffMember)
}

// Service is the event lifecycle state machine.
type Service struct {
	events   *repository.Events
	staff    *repository.Staff
	levels   *repository.Levels
	notifier Notifier
	metrics  *metrics.Metrics
	log      *slog.Logger
	now      func() time.Time
}

// NewService creates the lifecycle service.
func NewService(
	events *repository.Events,
	staff *repository.Staff,
	lvls *repository.Levels,
	notifier Notifier,
	m *metrics.Metrics,
	log *slog.Logger,
) *Service {
	return &Service{
		events:   events,
		staff:    staff,
		levels:   lvls,
		notifier: notifier,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

// Create stores a new event as an invisible draft.
func (s *Service) Create(ctx context.Context, p models.Principal, ev models.Event) (models.Event, error) {
	if !p.IsAdmin() {
		return models.Event{}, models.ErrUnauthorized
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	ev.Status = models.EventDraft
	ev.SignedUpStaff = []string{}
	ev.SignUpTimestamps = nil
	ev.ConfirmedStaff = []string{}
	ev.PointsAwarded = []string{}
	ev.CloseGeneration = 0
	ev.PreviousConfirmed = nil
	ev.CreatedAt = s.now()

	if err := s.events.Save(ctx, ev); err != nil {
		return models.Event{}, err
	}
	s.log.Info("event created", "event", ev.ID, "admin", p.ID)
	return ev, nil
}

// Get returns one event, hiding drafts and level-gated events from
// non-admin staff. Invisible events read as not found.
func (s *Service) Get(ctx context.Context, p models.Principal, id string) (models.Event, error) {
	ev, err := s.events.Get(ctx, id)
	if err != nil {
		return models.Event{}, err
	}
	if p.IsAdmin() {
		return ev, nil
	}
	visible, err := s.visibleTo(ctx, p, ev)
	if err != nil {
		return models.Event{}, err
	}
	if !visible {
		return models.Event{}, fmt.Errorf("event %q: %w", id, models.ErrNotFound)
	}
	return ev, nil
}

// List returns the events visible to the principal. Admins see everything;
// staff see published events whose required level they can access.
func (s *Service) List(ctx context.Context, p models.Principal) ([]models.Event, error) {
	all, err := s.events.List(ctx)
	if err != nil {
		return nil, err
	}
	if p.IsAdmin() {
		return all, nil
	}

	member, err := s.staff.Get(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	table, err := s.levels.List(ctx)
	if err != nil {
		return nil, err
	}

	visible := make([]models.Event, 0, len(all))
	for _, ev := range all {
		if ev.Status == models.EventDraft {
			continue
		}
		if !levels.CanAccess(member.Level, ev.RequiredLevel, table) {
			continue
		}
		visible = append(visible, ev)
	}
	return visible, nil
}

func (s *Service) visibleTo(ctx context.Context, p models.Principal, ev models.Event) (bool, error) {
	if ev.Status == models.EventDraft {
		return false, nil
	}
	member, err := s.staff.Get(ctx, p.ID)
	if err != nil {
		return false, err
	}
	table, err := s.levels.List(ctx)
	if err != nil {
		return false, err
	}
	return levels.CanAccess(member.Level, ev.RequiredLevel, table), nil
}

// Update edits an event's content fields in place. Status and the derived
// staffing sets are never touched here. Involved staff are notified about
// the changed fields; an edit that changes nothing notifies nobody.
func (s *Service) Update(ctx context.Context, p models.Principal, updated models.Event) (models.Event, error) {
	if !p.IsAdmin() {
		return models.Event{}, models.ErrUnauthorized
	}

	var changes []string
	ev, err := s.events.Mutate(ctx, updated.ID, func(cur *models.Event) error {
		next := *cur
		next.Name = updated.Name
		next.Date = updated.Date
		next.EndDate = updated.EndDate
		next.Time = updated.Time
		next.Duration = updated.Duration
		next.Location = updated.Location
		next.Description = updated.Description
		next.Notes = updated.Notes
		next.Points = updated.Points
		next.RequiredLevel = updated.RequiredLevel

		changes = DiffFields(*cur, next)
		*cur = next
		return nil
	})
	if err != nil {
		return models.Event{}, err
	}

	if len(changes) > 0 {
		recipients, rerr := s.resolveStaff(ctx, s.updateRecipients(ev))
		if rerr != nil {
			// the edit is already committed at this point
			s.log.Error("failed to resolve update recipients", "event", ev.ID, "error", rerr)
			return ev, nil
		}
		s.notifier.EventUpdated(ctx, ev, changes, recipients)
	}
	return ev, nil
}

// updateRecipients picks who cares about a content edit: everyone signed up
// while the event is open, only the confirmed staff once it is closed.
func (s *Service) updateRecipients(ev models.Event) []string {
	switch ev.Status {
	case models.EventOpen:
		return ev.SignedUpStaff
	case models.EventClosed:
		return ev.ConfirmedStaff
	default:
		return nil
	}
}

// Publish moves a draft to open and announces it to every active staff
// member whose level grants access.
func (s *Service) Publish(ctx context.Context, p models.Principal, id string) (models.Event, error) {
	if !p.IsAdmin() {
		return models.Event{}, models.ErrUnauthorized
	}

	ev, err := s.events.Mutate(ctx, id, func(cur *models.Event) error {
		if cur.Status != models.EventDraft {
			return fmt.Errorf("event %q is %s, only drafts can be published: %w", id, cur.Status, models.ErrPrecondition)
		}
		cur.Status = models.EventOpen
		return nil
	})
	if err != nil {
		return models.Event{}, err
	}
	s.metrics.EventTransitions.WithLabelValues("published").Inc()
	s.log.Info("event published", "event", id, "admin", p.ID)

	recipients, err := s.eligibleStaff(ctx, ev.RequiredLevel)
	if err != nil {
		s.log.Error("failed to resolve publish recipients", "event", id, "error", err)
		return ev, nil
	}
	s.notifier.EventPublished(ctx, ev, recipients)
	return ev, nil
}

// eligibleStaff returns all active staff whose level can access the required
// level. Eligibility is fail-closed, so staff with a missing or deleted
// level are left out.
func (s *Service) eligibleStaff(ctx context.Context, requiredLevel string) ([]models.StaffMember, error) {
	members, err := s.staff.List(ctx)
	if err != nil {
		return nil, err
	}
	table, err := s.levels.List(ctx)
	if err != nil {
		return nil, err
	}

	eligible := make([]models.StaffMember, 0, len(members))
	for _, m := range members {
		if m.Status != models.StaffActive {
			continue
		}
		if !levels.CanAccess(m.Level, requiredLevel, table) {
			continue
		}
		eligible = append(eligible, m)
	}
	return eligible, nil
}

// Close records the admin's staff selection and notifies exactly the staff
// whose selection changed. The first close treats every signed-up member as
// affected; a re-close diffs against the previous confirmed set so unchanged
// members hear nothing.
func (s *Service) Close(ctx context.Context, p models.Principal, id string, approved []string) (models.Event, error) {
	if !p.IsAdmin() {
		return models.Event{}, models.ErrUnauthorized
	}

	var selected, deselected []string
	ev, err := s.events.Mutate(ctx, id, func(cur *models.Event) error {
		if cur.Status != models.EventOpen && cur.Status != models.EventClosed {
			return fmt.Errorf("event %q is %s and cannot be closed: %w", id, cur.Status, models.ErrPrecondition)
		}
		for _, staffID := range approved {
			if !cur.IsSignedUp(staffID) {
				return fmt.Errorf("staff %q is not signed up for event %q: %w", staffID, id, models.ErrPrecondition)
			}
		}

		if cur.CloseGeneration == 0 {
			selected = append([]string(nil), approved...)
			deselected = nil
			approvedSet := toSet(approved)
			for _, staffID := range cur.SignedUpStaff {
				if !approvedSet[staffID] {
					deselected = append(deselected, staffID)
				}
			}
		} else {
			// On a re-close only the delta against the previous selection
			// is notified; members whose status did not change stay quiet.
			sel := DiffSelection(cur.ConfirmedStaff, approved)
			selected = sel.Added
			deselected = nil
			signedUp := toSet(cur.SignedUpStaff)
			for _, staffID := range sel.Removed {
				if signedUp[staffID] {
					deselected = append(deselected, staffID)
				}
			}
		}

		cur.PreviousConfirmed = append([]string(nil), cur.ConfirmedStaff...)
		cur.ConfirmedStaff = append([]string(nil), approved...)
		cur.CloseGeneration++
		cur.Status = models.EventClosed
		return nil
	})
	if err != nil {
		return models.Event{}, err
	}
	s.metrics.EventTransitions.WithLabelValues("closed").Inc()
	s.log.Info("event closed",
		"event", id, "admin", p.ID, "generation", ev.CloseGeneration,
		"selected", len(selected), "deselected", len(deselected))

	if members, rerr := s.resolveStaff(ctx, selected); rerr == nil {
		s.notifier.StaffSelected(ctx, ev, members)
	} else {
		s.log.Error("failed to resolve selected staff", "event", id, "error", rerr)
	}
	if members, rerr := s.resolveStaff(ctx, deselected); rerr == nil {
		s.notifier.StaffDeselected(ctx, ev, members)
	} else {
		s.log.Error("failed to resolve deselected staff", "event", id, "error", rerr)
	}
	return ev, nil
}

// Cancel marks the event cancelled, notifies everyone who was signed up, and
// only then purges the signup list. The cancellation sticks even when
// notification delivery fails.
func (s *Service) Cancel(ctx context.Context, p models.Principal, id string) (models.Event, error) {
	if !p.IsAdmin() {
		return models.Event{}, models.ErrUnauthorized
	}

	var signedUp []string
	ev, err := s.events.Mutate(ctx, id, func(cur *models.Event) error {
		if cur.Status == models.EventCancelled {
			return fmt.Errorf("event %q is already cancelled: %w", id, models.ErrPrecondition)
		}
		signedUp = append([]string(nil), cur.SignedUpStaff...)
		cur.Status = models.EventCancelled
		return nil
	})
	if err != nil {
		return models.Event{}, err
	}
	s.metrics.EventTransitions.WithLabelValues("cancelled").Inc()
	s.log.Info("event cancelled", "event", id, "admin", p.ID, "signed_up", len(signedUp))

	if members, rerr := s.resolveStaff(ctx, signedUp); rerr == nil {
		s.notifier.EventCancelled(ctx, ev, members)
	} else {
		s.log.Error("failed to resolve cancellation recipients", "event", id, "error", rerr)
	}

	// Purge only after the dispatch attempts completed; the recipients were
	// captured above so the notification content is unaffected.
	ev, err = s.events.Mutate(ctx, id, func(cur *models.Event) error {
		cur.SignedUpStaff = []string{}
		cur.SignUpTimestamps = nil
		return nil
	})
	if err != nil {
		return models.Event{}, err
	}
	return ev, nil
}

// Reinstate reopens a cancelled event for signup.
func (s *Service) Reinstate(ctx context.Context, p models.Principal, id string) (models.Event, error) {
	if !p.IsAdmin() {
		return models.Event{}, models.ErrUnauthorized
	}

	ev, err := s.events.Mutate(ctx, id, func(cur *models.Event) error {
		if cur.Status != models.EventCancelled {
			return fmt.Errorf("event %q is %s, only cancelled events can be reinstated: %w",
				id, cur.Status, models.ErrPrecondition)
		}
		cur.Status = models.EventOpen
		return nil
	})
	if err != nil {
		return models.Event{}, err
	}
	s.metrics.EventTransitions.WithLabelValues("reinstated").Inc()
	s.log.Info("event reinstated", "event", id, "admin", p.ID)
	return ev, nil
}

// Delete removes an event permanently. Cancelling is the softer path; delete
// exists for drafts and mistakes.
func (s *Service) Delete(ctx context.Context, p models.Principal, id string) error {
	if !p.IsAdmin() {
		return models.ErrUnauthorized
	}
	if err := s.events.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("event deleted", "event", id, "admin", p.ID)
	return nil
}

// SignUp registers the calling staff member for an open event.
func (s *Service) SignUp(ctx context.Context, p models.Principal, id string) (models.Event, error) {
	member, err := s.staff.Get(ctx, p.ID)
	if err != nil {
		return models.Event{}, err
	}
	if member.Status != models.StaffActive {
		return models.Event{}, fmt.Errorf("staff %q is not active: %w", p.ID, models.ErrPrecondition)
	}
	table, err := s.levels.List(ctx)
	if err != nil {
		return models.Event{}, err
	}

	ev, err := s.events.Mutate(ctx, id, func(cur *models.Event) error {
		if err := s.checkSignUp(cur, member.ID); err != nil {
			return err
		}
		if !levels.CanAccess(member.Level, cur.RequiredLevel, table) {
			return fmt.Errorf("staff %q lacks the level required by event %q: %w",
				member.ID, id, models.ErrPrecondition)
		}
		s.addSignUp(cur, member.ID)
		return nil
	})
	if err != nil {
		return models.Event{}, err
	}
	s.log.Info("staff signed up", "event", id, "staff", p.ID)
	return ev, nil
}

// AdminSignUp registers a staff member on an admin's behalf. The eligibility
// check is bypassed on purpose; the override is logged for audit.
func (s *Service) AdminSignUp(ctx context.Context, p models.Principal, id, staffID string) (models.Event, error) {
	if !p.IsAdmin() {
		return models.Event{}, models.ErrUnauthorized
	}
	member, err := s.staff.Get(ctx, staffID)
	if err != nil {
		return models.Event{}, err
	}
	if member.Status != models.StaffActive {
		return models.Event{}, fmt.Errorf("staff %q is not active: %w", staffID, models.ErrPrecondition)
	}

	ev, err := s.events.Mutate(ctx, id, func(cur *models.Event) error {
		if err := s.checkSignUp(cur, staffID); err != nil {
			return err
		}
		s.addSignUp(cur, staffID)
		return nil
	})
	if err != nil {
		return models.Event{}, err
	}
	s.log.Info("staff signed up", "event", id, "staff", staffID, "admin", p.ID, "admin_override", true)
	return ev, nil
}

// checkSignUp enforces the signup preconditions shared by self and admin
// signup: the event must be open, in the future, and new to the staff member.
func (s *Service) checkSignUp(ev *models.Event, staffID string) error {
	if ev.Status != models.EventOpen {
		return fmt.Errorf("event %q is %s and not open for signup: %w", ev.ID, ev.Status, models.ErrPrecondition)
	}
	if ev.StartsBefore(s.now()) {
		return fmt.Errorf("event %q already started: %w", ev.ID, models.ErrPrecondition)
	}
	if ev.IsSignedUp(staffID) {
		return fmt.Errorf("staff %q is already signed up for event %q: %w", staffID, ev.ID, models.ErrPrecondition)
	}
	return nil
}

func (s *Service) addSignUp(ev *models.Event, staffID string) {
	ev.SignedUpStaff = append(ev.SignedUpStaff, staffID)
	if ev.SignUpTimestamps == nil {
		ev.SignUpTimestamps = make(map[string]time.Time)
	}
	ev.SignUpTimestamps[staffID] = s.now()
}

// CancelSignUp withdraws the calling staff member's signup.
func (s *Service) CancelSignUp(ctx context.Context, p models.Principal, id string) (models.Event, error) {
	ev, err := s.events.Mutate(ctx, id, func(cur *models.Event) error {
		if !cur.IsSignedUp(p.ID) {
			return fmt.Errorf("staff %q is not signed up for event %q: %w", p.ID, id, models.ErrPrecondition)
		}
		kept := make([]string, 0, len(cur.SignedUpStaff)-1)
		for _, staffID := range cur.SignedUpStaff {
			if staffID != p.ID {
				kept = append(kept, staffID)
			}
		}
		cur.SignedUpStaff = kept
		delete(cur.SignUpTimestamps, p.ID)
		return nil
	})
	if err != nil {
		return models.Event{}, err
	}
	s.log.Info("signup cancelled", "event", id, "staff", p.ID)
	return ev, nil
}

// RemoveStaffEverywhere drops a staff id from every event's signup and
// confirmation sets. Used by the staff deletion cascade.
func (s *Service) RemoveStaffEverywhere(ctx context.Context, staffID string) error {
	all, err := s.events.List(ctx)
	if err != nil {
		return err
	}
	for _, ev := range all {
		if !ev.IsSignedUp(staffID) && !ev.IsConfirmed(staffID) {
			continue
		}
		_, err = s.events.Mutate(ctx, ev.ID, func(cur *models.Event) error {
			cur.SignedUpStaff = removeID(cur.SignedUpStaff, staffID)
			cur.ConfirmedStaff = removeID(cur.ConfirmedStaff, staffID)
			delete(cur.SignUpTimestamps, staffID)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to remove staff %q from event %q: %w", staffID, ev.ID, err)
		}
	}
	return nil
}

// resolveStaff loads the staff records for the given ids. Ids that no longer
// resolve are skipped with a log line; a deleted member must not block the
// rest of the batch.
func (s *Service) resolveStaff(ctx context.Context, ids []string) ([]models.StaffMember, error) {
	members := make([]models.StaffMember, 0, len(ids))
	for _, id := range ids {
		member, err := s.staff.Get(ctx, id)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				s.log.Warn("skipping unknown staff id", "staff", id)
				continue
			}
			return nil, err
		}
		members = append(members, member)
	}
	return members, nil
}

func removeID(ids []string, id string) []string {
	kept := ids[:0]
	for _, v := range ids {
		if v != id {
			kept = append(kept, v)
		}
	}
	return kept
}
