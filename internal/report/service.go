package report

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/crewmuster/crewmuster/internal/models"
	"github.com/crewmuster/crewmuster/internal/repository"
)

// Service produces ledger exports. Admin only.
type Service struct {
	adjustments *repository.Adjustments
	staff       *repository.Staff
	events      *repository.Events
	log         *slog.Logger
}

// NewService creates the report service.
func NewService(
	adjustments *repository.Adjustments,
	staff *repository.Staff,
	events *repository.Events,
	log *slog.Logger,
) *Service {
	return &Service{
		adjustments: adjustments,
		staff:       staff,
		events:      events,
		log:         log,
	}
}

// PointsLedger renders the complete points ledger as an Excel workbook, one
// sheet per staff member. It returns ErrNoEntries when the ledger is empty.
func (s *Service) PointsLedger(ctx context.Context, p models.Principal) (*bytes.Buffer, error) {
	if !p.IsAdmin() {
		return nil, models.ErrUnauthorized
	}

	entries, err := s.adjustments.List(ctx)
	if err != nil {
		return nil, err
	}
	staffNames, eventNames, err := s.ledgerNames(ctx)
	if err != nil {
		return nil, err
	}

	buffer, err := GenerateExcelReport(RowsFromLedger(entries, staffNames, eventNames))
	if err != nil {
		return nil, err
	}
	s.log.Info("points ledger exported", "admin", p.ID, "entries", len(entries))
	return buffer, nil
}

// ledgerNames collects the id-to-name maps the report joins ledger entries
// against. Deleted staff and events simply stay absent and render as ids.
func (s *Service) ledgerNames(ctx context.Context) (map[string]string, map[string]string, error) {
	members, err := s.staff.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	staffNames := make(map[string]string, len(members))
	for _, m := range members {
		staffNames[m.ID] = m.Name
	}

	events, err := s.events.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	eventNames := make(map[string]string, len(events))
	for _, ev := range events {
		eventNames[ev.ID] = ev.Name
	}
	return staffNames, eventNames, nil
}
