package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/crewmuster/crewmuster/internal/models"
	"github.com/crewmuster/crewmuster/internal/store"
)

// Awards performs the cross-entity writes of the points ledger. The event's
// awarded-set guard, the staff balance and the ledger entry land in one
// atomic multi-key update, so an award either commits completely or leaves
// no trace behind for a retry to trip over.
type Awards struct {
	store store.Store
}

// NewAwards creates an award repository over the given store.
func NewAwards(s store.Store) *Awards {
	return &Awards{store: s}
}

// Grant applies fn to the event and staff records inside a single atomic
// store update and appends the ledger entry fn returns in the same update.
// An error from fn aborts with nothing written; a missing event or staff
// record aborts with a not-found error before fn runs. The entry's ID is
// assigned here.
func (r *Awards) Grant(
	ctx context.Context,
	eventID, staffID string,
	fn func(ev *models.Event, member *models.StaffMember) (models.PointAdjustment, error),
) (models.Event, models.StaffMember, error) {
	var (
		updatedEvent models.Event
		updatedStaff models.StaffMember
	)
	adjID := uuid.NewString()
	keys := []string{EventKey(eventID), StaffKey(staffID), AdjustmentKey(adjID)}

	err := r.store.UpdateMulti(ctx, keys, func(current map[string][]byte) (map[string][]byte, error) {
		evData, ok := current[EventKey(eventID)]
		if !ok {
			return nil, fmt.Errorf("event %q: %w", eventID, models.ErrNotFound)
		}
		staffData, ok := current[StaffKey(staffID)]
		if !ok {
			return nil, fmt.Errorf("staff %q: %w", staffID, models.ErrNotFound)
		}
		ev, decErr := decodeEvent(evData)
		if decErr != nil {
			return nil, decErr
		}
		member, decErr := decodeStaff(staffData)
		if decErr != nil {
			return nil, decErr
		}

		entry, fnErr := fn(&ev, &member)
		if fnErr != nil {
			return nil, fnErr
		}
		entry.ID = adjID

		next, encErr := encodeAwardRecords(ev, member, entry)
		if encErr != nil {
			return nil, encErr
		}
		updatedEvent, updatedStaff = ev, member
		return next, nil
	})
	if err != nil {
		return models.Event{}, models.StaffMember{}, err
	}
	return updatedEvent, updatedStaff, nil
}

// Adjust applies fn to the staff record inside a single atomic store update
// and appends the ledger entry fn returns in the same update. The entry's ID
// is assigned here.
func (r *Awards) Adjust(
	ctx context.Context,
	staffID string,
	fn func(member *models.StaffMember) (models.PointAdjustment, error),
) (models.StaffMember, error) {
	var updated models.StaffMember
	adjID := uuid.NewString()
	keys := []string{StaffKey(staffID), AdjustmentKey(adjID)}

	err := r.store.UpdateMulti(ctx, keys, func(current map[string][]byte) (map[string][]byte, error) {
		staffData, ok := current[StaffKey(staffID)]
		if !ok {
			return nil, fmt.Errorf("staff %q: %w", staffID, models.ErrNotFound)
		}
		member, decErr := decodeStaff(staffData)
		if decErr != nil {
			return nil, decErr
		}

		entry, fnErr := fn(&member)
		if fnErr != nil {
			return nil, fnErr
		}
		entry.ID = adjID

		staffOut, encErr := encodeStaff(member)
		if encErr != nil {
			return nil, encErr
		}
		adjOut, encErr := encodeAdjustment(entry)
		if encErr != nil {
			return nil, encErr
		}
		updated = member
		return map[string][]byte{
			StaffKey(staffID):    staffOut,
			AdjustmentKey(adjID): adjOut,
		}, nil
	})
	if err != nil {
		return models.StaffMember{}, err
	}
	return updated, nil
}

func encodeAwardRecords(ev models.Event, member models.StaffMember, entry models.PointAdjustment) (map[string][]byte, error) {
	evOut, err := encodeEvent(ev)
	if err != nil {
		return nil, err
	}
	staffOut, err := encodeStaff(member)
	if err != nil {
		return nil, err
	}
	adjOut, err := encodeAdjustment(entry)
	if err != nil {
		return nil, err
	}
	return map[string][]byte{
		EventKey(ev.ID):         evOut,
		StaffKey(member.ID):     staffOut,
		AdjustmentKey(entry.ID): adjOut,
	}, nil
}

func encodeAdjustment(adj models.PointAdjustment) ([]byte, error) {
	if err := adj.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(adj)
	if err != nil {
		return nil, fmt.Errorf("failed to encode adjustment %q: %w", adj.ID, err)
	}
	return data, nil
}
