package staff_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewmuster/crewmuster/internal/models"
	"github.com/crewmuster/crewmuster/internal/repository"
	"github.com/crewmuster/crewmuster/internal/staff"
	"github.com/crewmuster/crewmuster/internal/store"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var admin = models.Principal{ID: "admin-1", Role: models.RoleAdmin}

type fakeCascade struct {
	removed []string
}

func (f *fakeCascade) RemoveStaffEverywhere(_ context.Context, staffID string) error {
	f.removed = append(f.removed, staffID)
	return nil
}

func newService(t *testing.T) (*staff.Service, *repository.Staff, *fakeCascade) {
	t.Helper()
	mem := store.NewMemory()
	repo := repository.NewStaff(mem)
	lvls := repository.NewLevels(mem)
	cascade := &fakeCascade{}

	ctx := context.Background()
	require.NoError(t, lvls.Save(ctx, models.Level{ID: "lvl-bronze", Name: "Bronze", MinPoints: 0, Order: 1}))
	require.NoError(t, lvls.Save(ctx, models.Level{ID: "lvl-silver", Name: "Silver", MinPoints: 10, Order: 2}))

	return staff.NewService(repo, lvls, cascade, discard), repo, cascade
}

func TestInvite(t *testing.T) {
	t.Parallel()
	svc, _, _ := newService(t)
	ctx := context.Background()

	member, err := svc.Invite(ctx, admin, "new@example.com", "Newbie")

	require.NoError(t, err)
	assert.NotEmpty(t, member.ID)
	assert.Equal(t, models.StaffPending, member.Status)
	assert.Equal(t, models.RoleStaff, member.Role)
	assert.Zero(t, member.Points)
	assert.Equal(t, "Bronze", member.Level)

	_, err = svc.Invite(ctx, admin, "new@example.com", "Duplicate")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = svc.Invite(ctx, models.Principal{ID: "x", Role: models.RoleStaff}, "other@example.com", "Other")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestActivate(t *testing.T) {
	t.Parallel()
	svc, _, _ := newService(t)
	ctx := context.Background()

	member, err := svc.Invite(ctx, admin, "new@example.com", "Newbie")
	require.NoError(t, err)

	activated, err := svc.Activate(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StaffActive, activated.Status)

	// Activating twice stays active.
	activated, err = svc.Activate(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StaffActive, activated.Status)

	_, err = svc.Activate(ctx, "ghost")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestUpdateContact(t *testing.T) {
	t.Parallel()
	svc, _, _ := newService(t)
	ctx := context.Background()

	member, err := svc.Invite(ctx, admin, "new@example.com", "Newbie")
	require.NoError(t, err)

	self := models.Principal{ID: member.ID, Role: models.RoleStaff}
	updated, err := svc.UpdateContact(ctx, self, member.ID, "+31612345678", "123456789")
	require.NoError(t, err)
	assert.Equal(t, "+31612345678", updated.Phone)
	assert.Equal(t, "123456789", updated.TelegramChatID)

	_, err = svc.UpdateContact(ctx, models.Principal{ID: "other", Role: models.RoleStaff}, member.ID, "", "")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestOverrideLevel(t *testing.T) {
	t.Parallel()
	svc, _, _ := newService(t)
	ctx := context.Background()

	member, err := svc.Invite(ctx, admin, "new@example.com", "Newbie")
	require.NoError(t, err)

	updated, err := svc.OverrideLevel(ctx, admin, member.ID, "Silver")
	require.NoError(t, err)
	assert.Equal(t, "Silver", updated.Level)

	_, err = svc.OverrideLevel(ctx, admin, member.ID, "Platinum")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestDeleteCascades(t *testing.T) {
	t.Parallel()
	svc, repo, cascade := newService(t)
	ctx := context.Background()

	member, err := svc.Invite(ctx, admin, "new@example.com", "Newbie")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, admin, member.ID))
	assert.Equal(t, []string{member.ID}, cascade.removed)

	_, err = repo.Get(ctx, member.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, admin, member.ID), models.ErrNotFound)
}

func TestGetAndListAuthorization(t *testing.T) {
	t.Parallel()
	svc, _, _ := newService(t)
	ctx := context.Background()

	member, err := svc.Invite(ctx, admin, "new@example.com", "Newbie")
	require.NoError(t, err)

	self := models.Principal{ID: member.ID, Role: models.RoleStaff}
	got, err := svc.Get(ctx, self, member.ID)
	require.NoError(t, err)
	assert.Equal(t, member.ID, got.ID)

	_, err = svc.Get(ctx, models.Principal{ID: "other", Role: models.RoleStaff}, member.ID)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = svc.List(ctx, self)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	all, err := svc.List(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
