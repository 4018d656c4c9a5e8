package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/crewmuster/crewmuster/internal/models"
	"github.com/crewmuster/crewmuster/internal/store"
)

// Staff reads and writes staff member records.
type Staff struct {
	store store.Store
}

// NewStaff creates a staff repository over the given store.
func NewStaff(s store.Store) *Staff {
	return &Staff{store: s}
}

// Get returns the staff member with the given id.
func (r *Staff) Get(ctx context.Context, id string) (models.StaffMember, error) {
	data, err := r.store.Get(ctx, StaffKey(id))
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return models.StaffMember{}, fmt.Errorf("staff %q: %w", id, models.ErrNotFound)
		}
		return models.StaffMember{}, fmt.Errorf("failed to load staff %q: %w", id, err)
	}
	return decodeStaff(data)
}

// List returns every stored staff member.
func (r *Staff) List(ctx context.Context) ([]models.StaffMember, error) {
	blobs, err := r.store.ListByPrefix(ctx, staffPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	staff := make([]models.StaffMember, 0, len(blobs))
	for _, data := range blobs {
		member, decErr := decodeStaff(data)
		if decErr != nil {
			return nil, decErr
		}
		staff = append(staff, member)
	}
	return staff, nil
}

// FindByEmail returns the staff member with the given email address.
func (r *Staff) FindByEmail(ctx context.Context, email string) (models.StaffMember, error) {
	staff, err := r.List(ctx)
	if err != nil {
		return models.StaffMember{}, err
	}
	for _, member := range staff {
		if member.Email == email {
			return member, nil
		}
	}
	return models.StaffMember{}, fmt.Errorf("staff with email %q: %w", email, models.ErrNotFound)
}

// Save validates and writes the staff record.
func (r *Staff) Save(ctx context.Context, member models.StaffMember) error {
	data, err := encodeStaff(member)
	if err != nil {
		return err
	}
	if err = r.store.Set(ctx, StaffKey(member.ID), data); err != nil {
		return fmt.Errorf("failed to save staff %q: %w", member.ID, err)
	}
	return nil
}

// Delete removes the staff record.
func (r *Staff) Delete(ctx context.Context, id string) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	if err := r.store.Delete(ctx, StaffKey(id)); err != nil {
		return fmt.Errorf("failed to delete staff %q: %w", id, err)
	}
	return nil
}

// Mutate applies fn to the staff member inside a single atomic store update
// and returns the updated record.
func (r *Staff) Mutate(ctx context.Context, id string, fn func(*models.StaffMember) error) (models.StaffMember, error) {
	var updated models.StaffMember
	err := r.store.Update(ctx, StaffKey(id), func(current []byte) ([]byte, error) {
		if current == nil {
			return nil, fmt.Errorf("staff %q: %w", id, models.ErrNotFound)
		}
		member, decErr := decodeStaff(current)
		if decErr != nil {
			return nil, decErr
		}
		if fnErr := fn(&member); fnErr != nil {
			return nil, fnErr
		}
		updated = member
		return encodeStaff(member)
	})
	if err != nil {
		return models.StaffMember{}, err
	}
	return updated, nil
}

func decodeStaff(data []byte) (models.StaffMember, error) {
	var member models.StaffMember
	if err := json.Unmarshal(data, &member); err != nil {
		return models.StaffMember{}, fmt.Errorf("malformed staff record: %v: %w", err, models.ErrValidation)
	}
	if err := member.Validate(); err != nil {
		return models.StaffMember{}, fmt.Errorf("stored staff record: %w", err)
	}
	return member, nil
}

func encodeStaff(member models.StaffMember) ([]byte, error) {
	if err := member.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(member)
	if err != nil {
		return nil, fmt.Errorf("failed to encode staff %q: %w", member.ID, err)
	}
	return data, nil
}
