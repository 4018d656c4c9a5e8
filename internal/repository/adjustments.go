package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/crewmuster/crewmuster/internal/models"
	"github.com/crewmuster/crewmuster/internal/store"
)

// Adjustments appends and reads point ledger entries. The ledger is
// append-only: entries are never mutated or deleted.
type Adjustments struct {
	store store.Store
}

// NewAdjustments creates an adjustment repository over the given store.
func NewAdjustments(s store.Store) *Adjustments {
	return &Adjustments{store: s}
}

// Append validates and writes a new ledger entry.
func (r *Adjustments) Append(ctx context.Context, adj models.PointAdjustment) error {
	data, err := encodeAdjustment(adj)
	if err != nil {
		return err
	}
	if err = r.store.Set(ctx, AdjustmentKey(adj.ID), data); err != nil {
		return fmt.Errorf("failed to save adjustment %q: %w", adj.ID, err)
	}
	return nil
}

// List returns every ledger entry ordered by timestamp.
func (r *Adjustments) List(ctx context.Context) ([]models.PointAdjustment, error) {
	blobs, err := r.store.ListByPrefix(ctx, adjustmentPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list adjustments: %w", err)
	}
	adjustments := make([]models.PointAdjustment, 0, len(blobs))
	for _, data := range blobs {
		var adj models.PointAdjustment
		if decErr := json.Unmarshal(data, &adj); decErr != nil {
			return nil, fmt.Errorf("malformed adjustment record: %v: %w", decErr, models.ErrValidation)
		}
		adjustments = append(adjustments, adj)
	}
	sort.Slice(adjustments, func(i, j int) bool {
		return adjustments[i].Timestamp.Before(adjustments[j].Timestamp)
	})
	return adjustments, nil
}

// ListByStaff returns the ledger entries of one staff member ordered by
// timestamp.
func (r *Adjustments) ListByStaff(ctx context.Context, staffID string) ([]models.PointAdjustment, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var adjustments []models.PointAdjustment
	for _, adj := range all {
		if adj.StaffID == staffID {
			adjustments = append(adjustments, adj)
		}
	}
	return adjustments, nil
}
