// Package staff implements staff administration: inviting, activation,
// contact updates, level overrides and deletion with event cascade.
package staff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/crewmuster/crewmuster/internal/levels"
	"github.com/crewmuster/crewmuster/internal/models"
	"github.com/crewmuster/crewmuster/internal/repository"
)

// EventCascade removes a deleted staff member from every event.
type EventCascade interface {
	RemoveStaffEverywhere(ctx context.Context, staffID string) error
}

// Service manages the staff roster.
type Service struct {
	staff  *repository.Staff
	levels *repository.Levels
	events EventCascade
	log    *slog.Logger
}

// NewService creates the roster service.
func NewService(staff *repository.Staff, lvls *repository.Levels, events EventCascade, log *slog.Logger) *Service {
	return &Service{staff: staff, levels: lvls, events: events, log: log}
}

// Invite creates a pending staff member with zero points and the base level.
// The member becomes active once the password setup completes upstream.
func (s *Service) Invite(ctx context.Context, p models.Principal, email, name string) (models.StaffMember, error) {
	if !p.IsAdmin() {
		return models.StaffMember{}, models.ErrUnauthorized
	}
	if _, err := s.staff.FindByEmail(ctx, email); err == nil {
		return models.StaffMember{}, fmt.Errorf("staff with email %q already exists: %w", email, models.ErrValidation)
	} else if !errors.Is(err, models.ErrNotFound) {
		return models.StaffMember{}, err
	}

	table, err := s.levels.List(ctx)
	if err != nil {
		return models.StaffMember{}, err
	}

	member := models.StaffMember{
		ID:     uuid.NewString(),
		Email:  email,
		Name:   name,
		Points: 0,
		Level:  levels.Resolve(0, table),
		Status: models.StaffPending,
		Role:   models.RoleStaff,
	}
	if err = s.staff.Save(ctx, member); err != nil {
		return models.StaffMember{}, err
	}
	s.log.Info("staff invited", "staff", member.ID, "admin", p.ID)
	return member, nil
}

// Activate flips a pending member to active. Called on the upstream signal
// that the member completed their password setup; activating an already
// active member is a no-op.
func (s *Service) Activate(ctx context.Context, id string) (models.StaffMember, error) {
	return s.staff.Mutate(ctx, id, func(cur *models.StaffMember) error {
		cur.Status = models.StaffActive
		return nil
	})
}

// UpdateContact sets the channel addresses of a member. Staff may update
// their own record; admins anyone's.
func (s *Service) UpdateContact(ctx context.Context, p models.Principal, id, phone, telegramChatID string) (models.StaffMember, error) {
	if !p.IsAdmin() && p.ID != id {
		return models.StaffMember{}, models.ErrUnauthorized
	}
	member, err := s.staff.Mutate(ctx, id, func(cur *models.StaffMember) error {
		cur.Phone = phone
		cur.TelegramChatID = telegramChatID
		return nil
	})
	if err != nil {
		return models.StaffMember{}, err
	}
	s.log.Info("staff contact updated", "staff", id, "by", p.ID)
	return member, nil
}

// OverrideLevel pins a member to an explicit level. The override holds until
// the next points change re-resolves the level from the table.
func (s *Service) OverrideLevel(ctx context.Context, p models.Principal, id, levelName string) (models.StaffMember, error) {
	if !p.IsAdmin() {
		return models.StaffMember{}, models.ErrUnauthorized
	}
	table, err := s.levels.List(ctx)
	if err != nil {
		return models.StaffMember{}, err
	}
	if !levelExists(levelName, table) {
		return models.StaffMember{}, fmt.Errorf("level %q does not exist: %w", levelName, models.ErrValidation)
	}

	member, err := s.staff.Mutate(ctx, id, func(cur *models.StaffMember) error {
		cur.Level = levelName
		return nil
	})
	if err != nil {
		return models.StaffMember{}, err
	}
	s.log.Info("staff level overridden", "staff", id, "level", levelName, "admin", p.ID)
	return member, nil
}

// Delete removes a member and cascades the removal through every event's
// signup and confirmation sets.
func (s *Service) Delete(ctx context.Context, p models.Principal, id string) error {
	if !p.IsAdmin() {
		return models.ErrUnauthorized
	}
	if _, err := s.staff.Get(ctx, id); err != nil {
		return err
	}
	if err := s.events.RemoveStaffEverywhere(ctx, id); err != nil {
		return err
	}
	if err := s.staff.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("staff deleted", "staff", id, "admin", p.ID)
	return nil
}

// Get returns one member. Staff may read their own record; admins anyone's.
func (s *Service) Get(ctx context.Context, p models.Principal, id string) (models.StaffMember, error) {
	if !p.IsAdmin() && p.ID != id {
		return models.StaffMember{}, models.ErrUnauthorized
	}
	return s.staff.Get(ctx, id)
}

// List returns the whole roster. Admin only.
func (s *Service) List(ctx context.Context, p models.Principal) ([]models.StaffMember, error) {
	if !p.IsAdmin() {
		return nil, models.ErrUnauthorized
	}
	return s.staff.List(ctx)
}

func levelExists(name string, table []models.Level) bool {
	for _, l := range table {
		if l.Name == name {
			return true
		}
	}
	return false
}
