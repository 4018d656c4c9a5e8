package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/crewmuster/crewmuster/internal/models"
	"github.com/crewmuster/crewmuster/internal/store"
)

// Levels reads and writes level records.
type Levels struct {
	store store.Store
}

// NewLevels creates a level repository over the given store.
func NewLevels(s store.Store) *Levels {
	return &Levels{store: s}
}

// Get returns the level with the given id.
func (r *Levels) Get(ctx context.Context, id string) (models.Level, error) {
	data, err := r.store.Get(ctx, LevelKey(id))
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return models.Level{}, fmt.Errorf("level %q: %w", id, models.ErrNotFound)
		}
		return models.Level{}, fmt.Errorf("failed to load level %q: %w", id, err)
	}
	return decodeLevel(data)
}

// List returns every stored level sorted by ascending order rank.
func (r *Levels) List(ctx context.Context) ([]models.Level, error) {
	blobs, err := r.store.ListByPrefix(ctx, levelPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list levels: %w", err)
	}
	levels := make([]models.Level, 0, len(blobs))
	for _, data := range blobs {
		level, decErr := decodeLevel(data)
		if decErr != nil {
			return nil, decErr
		}
		levels = append(levels, level)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].Order < levels[j].Order })
	return levels, nil
}

// Save validates and writes the level record.
func (r *Levels) Save(ctx context.Context, level models.Level) error {
	data, err := encodeLevel(level)
	if err != nil {
		return err
	}
	if err = r.store.Set(ctx, LevelKey(level.ID), data); err != nil {
		return fmt.Errorf("failed to save level %q: %w", level.ID, err)
	}
	return nil
}

// Delete removes the level record. Staff or events referencing the level keep
// the now-dangling level name; access checks fail closed on it.
func (r *Levels) Delete(ctx context.Context, id string) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	if err := r.store.Delete(ctx, LevelKey(id)); err != nil {
		return fmt.Errorf("failed to delete level %q: %w", id, err)
	}
	return nil
}

// SwapOrders exchanges the order ranks of two levels as one atomic unit.
// A concurrent reader never observes two levels sharing an order or a level
// without one.
func (r *Levels) SwapOrders(ctx context.Context, idA, idB string) error {
	keyA, keyB := LevelKey(idA), LevelKey(idB)
	return r.store.UpdateMulti(ctx, []string{keyA, keyB}, func(current map[string][]byte) (map[string][]byte, error) {
		dataA, okA := current[keyA]
		if !okA {
			return nil, fmt.Errorf("level %q: %w", idA, models.ErrNotFound)
		}
		dataB, okB := current[keyB]
		if !okB {
			return nil, fmt.Errorf("level %q: %w", idB, models.ErrNotFound)
		}
		levelA, err := decodeLevel(dataA)
		if err != nil {
			return nil, err
		}
		levelB, err := decodeLevel(dataB)
		if err != nil {
			return nil, err
		}
		levelA.Order, levelB.Order = levelB.Order, levelA.Order
		nextA, err := encodeLevel(levelA)
		if err != nil {
			return nil, err
		}
		nextB, err := encodeLevel(levelB)
		if err != nil {
			return nil, err
		}
		return map[string][]byte{keyA: nextA, keyB: nextB}, nil
	})
}

func decodeLevel(data []byte) (models.Level, error) {
	var level models.Level
	if err := json.Unmarshal(data, &level); err != nil {
		return models.Level{}, fmt.Errorf("malformed level record: %v: %w", err, models.ErrValidation)
	}
	if err := level.Validate(); err != nil {
		return models.Level{}, fmt.Errorf("stored level record: %w", err)
	}
	return level, nil
}

func encodeLevel(level models.Level) ([]byte, error) {
	if err := level.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(level)
	if err != nil {
		return nil, fmt.Errorf("failed to encode level %q: %w", level.ID, err)
	}
	return data, nil
}
