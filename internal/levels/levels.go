// Package levels holds the level table, the point-to-level resolver and the
// eligibility filter that gates which events a staff member may see.
package levels

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/crewmuster/crewmuster/internal/models"
)

// NoLevel is the sentinel returned by Resolve when no levels exist.
const NoLevel = ""

// Resolve maps a point total to a level name: among the levels whose
// MinPoints does not exceed points, the one with the greatest MinPoints wins;
// ties break deterministically on the lowest order rank. When no level
// qualifies the level with the smallest order is the fallback.
func Resolve(points int, table []models.Level) string {
	if len(table) == 0 {
		return NoLevel
	}

	var best *models.Level
	lowest := &table[0]
	for i := range table {
		level := &table[i]
		if level.Order < lowest.Order {
			lowest = level
		}
		if level.MinPoints > points {
			continue
		}
		if best == nil ||
			level.MinPoints > best.MinPoints ||
			(level.MinPoints == best.MinPoints && level.Order < best.Order) {
			best = level
		}
	}
	if best == nil {
		return lowest.Name
	}
	return best.Name
}

// CanAccess reports whether a staff member at staffLevel may see, sign up for
// and be notified about an event requiring requiredLevel. Access is cumulative
// downward: a higher order rank sees everything at its own and all lower
// ranks. Unknown or deleted levels fail closed.
func CanAccess(staffLevel, requiredLevel string, table []models.Level) bool {
	staffOrder, ok := orderOf(staffLevel, table)
	if !ok {
		return false
	}
	requiredOrder, ok := orderOf(requiredLevel, table)
	if !ok {
		return false
	}
	return staffOrder >= requiredOrder
}

func orderOf(name string, table []models.Level) (int, bool) {
	if name == "" {
		return 0, false
	}
	for _, level := range table {
		if level.Name == name {
			return level.Order, true
		}
	}
	return 0, false
}

// Repo is the subset of the level repository the service needs.
type Repo interface {
	Get(ctx context.Context, id string) (models.Level, error)
	List(ctx context.Context) ([]models.Level, error)
	Save(ctx context.Context, level models.Level) error
	Delete(ctx context.Context, id string) error
	SwapOrders(ctx context.Context, idA, idB string) error
}

// Service provides the admin-only level table management operations.
type Service struct {
	repo Repo
	log  *slog.Logger
}

// NewService creates a level service.
func NewService(repo Repo, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// List returns the level table sorted by order rank. Not admin-gated: every
// staff member needs the table to understand their own level.
func (s *Service) List(ctx context.Context) ([]models.Level, error) {
	return s.repo.List(ctx)
}

// Create adds a new level at the top order rank.
func (s *Service) Create(ctx context.Context, p models.Principal, name string, minPoints int) (models.Level, error) {
	if !p.IsAdmin() {
		return models.Level{}, fmt.Errorf("create level: %w", models.ErrUnauthorized)
	}

	table, err := s.repo.List(ctx)
	if err != nil {
		return models.Level{}, err
	}
	maxOrder := 0
	for _, level := range table {
		if level.Name == name {
			return models.Level{}, fmt.Errorf("level name %q already exists: %w", name, models.ErrValidation)
		}
		if level.Order > maxOrder {
			maxOrder = level.Order
		}
	}

	level := models.Level{
		ID:        uuid.NewString(),
		Name:      name,
		MinPoints: minPoints,
		Order:     maxOrder + 1,
	}
	if err = s.repo.Save(ctx, level); err != nil {
		return models.Level{}, err
	}
	s.log.Info("level created", "id", level.ID, "name", name, "min_points", minPoints, "order", level.Order)
	return level, nil
}

// Update changes a level's name and threshold. The order rank is only changed
// through Reorder.
func (s *Service) Update(ctx context.Context, p models.Principal, id, name string, minPoints int) (models.Level, error) {
	if !p.IsAdmin() {
		return models.Level{}, fmt.Errorf("update level: %w", models.ErrUnauthorized)
	}

	level, err := s.repo.Get(ctx, id)
	if err != nil {
		return models.Level{}, err
	}
	level.Name = name
	level.MinPoints = minPoints
	if err = s.repo.Save(ctx, level); err != nil {
		return models.Level{}, err
	}
	s.log.Info("level updated", "id", id, "name", name, "min_points", minPoints)
	return level, nil
}

// Delete removes a level without cascading: staff or events that reference it
// keep the dangling name and fail closed in access checks.
func (s *Service) Delete(ctx context.Context, p models.Principal, id string) error {
	if !p.IsAdmin() {
		return fmt.Errorf("delete level: %w", models.ErrUnauthorized)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("level deleted", "id", id)
	return nil
}

// Direction selects which neighbor Reorder swaps with.
type Direction int

// Reorder directions.
const (
	MoveDown Direction = iota // towards the lowest rank
	MoveUp                    // towards the highest rank
)

// Reorder swaps the order ranks of the given level and its adjacent neighbor
// as one atomic unit. Moving the lowest level down or the highest level up is
// a precondition failure.
func (s *Service) Reorder(ctx context.Context, p models.Principal, id string, dir Direction) error {
	if !p.IsAdmin() {
		return fmt.Errorf("reorder level: %w", models.ErrUnauthorized)
	}

	table, err := s.repo.List(ctx)
	if err != nil {
		return err
	}
	idx := -1
	for i, level := range table {
		if level.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("level %q: %w", id, models.ErrNotFound)
	}

	var neighbor int
	switch dir {
	case MoveDown:
		if idx == 0 {
			return fmt.Errorf("level %q is already the lowest: %w", id, models.ErrPrecondition)
		}
		neighbor = idx - 1
	case MoveUp:
		if idx == len(table)-1 {
			return fmt.Errorf("level %q is already the highest: %w", id, models.ErrPrecondition)
		}
		neighbor = idx + 1
	default:
		return fmt.Errorf("unknown reorder direction %d: %w", dir, models.ErrValidation)
	}

	if err = s.repo.SwapOrders(ctx, id, table[neighbor].ID); err != nil {
		return err
	}
	s.log.Info("levels reordered", "id", id, "swapped_with", table[neighbor].ID)
	return nil
}
