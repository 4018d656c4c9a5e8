package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/crewmuster/crewmuster/internal/models"
	"github.com/crewmuster/crewmuster/internal/store"
)

// Events reads and writes event records.
type Events struct {
	store store.Store
}

// NewEvents creates an event repository over the given store.
func NewEvents(s store.Store) *Events {
	return &Events{store: s}
}

// Get returns the event with the given id.
func (r *Events) Get(ctx context.Context, id string) (models.Event, error) {
	data, err := r.store.Get(ctx, EventKey(id))
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return models.Event{}, fmt.Errorf("event %q: %w", id, models.ErrNotFound)
		}
		return models.Event{}, fmt.Errorf("failed to load event %q: %w", id, err)
	}
	return decodeEvent(data)
}

// List returns every stored event.
func (r *Events) List(ctx context.Context) ([]models.Event, error) {
	blobs, err := r.store.ListByPrefix(ctx, eventPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	events := make([]models.Event, 0, len(blobs))
	for _, data := range blobs {
		ev, decErr := decodeEvent(data)
		if decErr != nil {
			return nil, decErr
		}
		events = append(events, ev)
	}
	return events, nil
}

// Save validates and writes the event record.
func (r *Events) Save(ctx context.Context, ev models.Event) error {
	data, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	if err = r.store.Set(ctx, EventKey(ev.ID), data); err != nil {
		return fmt.Errorf("failed to save event %q: %w", ev.ID, err)
	}
	return nil
}

// Delete removes the event record.
func (r *Events) Delete(ctx context.Context, id string) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	if err := r.store.Delete(ctx, EventKey(id)); err != nil {
		return fmt.Errorf("failed to delete event %q: %w", id, err)
	}
	return nil
}

// Mutate applies fn to the event inside a single atomic store update and
// returns the updated record. An error from fn aborts the update with nothing
// written; a missing event aborts with a not-found error before fn runs.
func (r *Events) Mutate(ctx context.Context, id string, fn func(*models.Event) error) (models.Event, error) {
	var updated models.Event
	err := r.store.Update(ctx, EventKey(id), func(current []byte) ([]byte, error) {
		if current == nil {
			return nil, fmt.Errorf("event %q: %w", id, models.ErrNotFound)
		}
		ev, decErr := decodeEvent(current)
		if decErr != nil {
			return nil, decErr
		}
		if fnErr := fn(&ev); fnErr != nil {
			return nil, fnErr
		}
		updated = ev
		return encodeEvent(ev)
	})
	if err != nil {
		return models.Event{}, err
	}
	return updated, nil
}

func decodeEvent(data []byte) (models.Event, error) {
	var ev models.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return models.Event{}, fmt.Errorf("malformed event record: %v: %w", err, models.ErrValidation)
	}
	if err := ev.Validate(); err != nil {
		return models.Event{}, fmt.Errorf("stored event record: %w", err)
	}
	return ev, nil
}

func encodeEvent(ev models.Event) ([]byte, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event %q: %w", ev.ID, err)
	}
	return data, nil
}
