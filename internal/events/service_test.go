package events

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewmuster/crewmuster/internal/metrics"
	"github.com/crewmuster/crewmuster/internal/models"
	"github.com/crewmuster/crewmuster/internal/repository"
	"github.com/crewmuster/crewmuster/internal/store"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var (
	admin = models.Principal{ID: "admin-1", Role: models.RoleAdmin}
	fixed = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
)

type notification struct {
	kind       string
	event      string
	changes    []string
	recipients []string
}

type fakeNotifier struct {
	calls []notification
}

func (f *fakeNotifier) record(kind string, ev models.Event, changes []string, recipients []models.StaffMember) {
	ids := make([]string, 0, len(recipients))
	for _, r := range recipients {
		ids = append(ids, r.ID)
	}
	f.calls = append(f.calls, notification{kind: kind, event: ev.ID, changes: changes, recipients: ids})
}

func (f *fakeNotifier) EventPublished(_ context.Context, ev models.Event, r []models.StaffMember) {
	f.record("published", ev, nil, r)
}

func (f *fakeNotifier) EventUpdated(_ context.Context, ev models.Event, changes []string, r []models.StaffMember) {
	f.record("updated", ev, changes, r)
}

func (f *fakeNotifier) StaffSelected(_ context.Context, ev models.Event, r []models.StaffMember) {
	f.record("selected", ev, nil, r)
}

func (f *fakeNotifier) StaffDeselected(_ context.Context, ev models.Event, r []models.StaffMember) {
	f.record("deselected", ev, nil, r)
}

func (f *fakeNotifier) EventCancelled(_ context.Context, ev models.Event, r []models.StaffMember) {
	f.record("cancelled", ev, nil, r)
}

func (f *fakeNotifier) byKind(kind string) []notification {
	var out []notification
	for _, c := range f.calls {
		if c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}

type fixture struct {
	svc      *Service
	events   *repository.Events
	staff    *repository.Staff
	levels   *repository.Levels
	notifier *fakeNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, store.NewMemory())
}

func newFixtureOn(t *testing.T, mem store.Store) *fixture {
	t.Helper()
	f := &fixture{
		events:   repository.NewEvents(mem),
		staff:    repository.NewStaff(mem),
		levels:   repository.NewLevels(mem),
		notifier: &fakeNotifier{},
	}
	f.svc = NewService(f.events, f.staff, f.levels, f.notifier,
		metrics.NewMetrics(prometheus.NewRegistry()), discard)
	f.svc.now = func() time.Time { return fixed }

	ctx := context.Background()
	require.NoError(t, f.levels.Save(ctx, models.Level{ID: "lvl-bronze", Name: "Bronze", MinPoints: 0, Order: 1}))
	require.NoError(t, f.levels.Save(ctx, models.Level{ID: "lvl-silver", Name: "Silver", MinPoints: 10, Order: 2}))
	for _, m := range []models.StaffMember{
		{ID: "alice", Email: "alice@example.com", Name: "Alice", Level: "Silver", Status: models.StaffActive, Role: models.RoleStaff},
		{ID: "bob", Email: "bob@example.com", Name: "Bob", Level: "Bronze", Status: models.StaffActive, Role: models.RoleStaff},
		{ID: "carol", Email: "carol@example.com", Name: "Carol", Level: "Bronze", Status: models.StaffActive, Role: models.RoleStaff},
		{ID: "pending", Email: "pending@example.com", Name: "Pending", Level: "Bronze", Status: models.StaffPending, Role: models.RoleStaff},
		{ID: "admin-1", Email: "admin@example.com", Name: "Admin", Level: "Silver", Status: models.StaffActive, Role: models.RoleAdmin},
	} {
		require.NoError(t, f.staff.Save(ctx, m))
	}
	return f
}

func (f *fixture) createOpen(t *testing.T, requiredLevel string) models.Event {
	t.Helper()
	ctx := context.Background()
	ev, err := f.svc.Create(ctx, admin, models.Event{
		Name:          "Summer Fair",
		Date:          "2026-07-10",
		Location:      "Town Hall",
		Points:        5,
		RequiredLevel: requiredLevel,
	})
	require.NoError(t, err)
	ev, err = f.svc.Publish(ctx, admin, ev.ID)
	require.NoError(t, err)
	f.notifier.calls = nil
	return ev
}

func signUpAll(t *testing.T, f *fixture, eventID string, staffIDs ...string) {
	t.Helper()
	for _, id := range staffIDs {
		_, err := f.svc.SignUp(context.Background(), models.Principal{ID: id, Role: models.RoleStaff}, eventID)
		require.NoError(t, err)
	}
}

func TestCreateRequiresAdmin(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), models.Principal{ID: "bob", Role: models.RoleStaff}, models.Event{})

	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestCreateStartsAsDraft(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	ev, err := f.svc.Create(context.Background(), admin, models.Event{
		Name: "Fair", Date: "2026-07-10", Location: "Hall", RequiredLevel: "Bronze",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, models.EventDraft, ev.Status)
	assert.Empty(t, ev.SignedUpStaff)
	assert.Equal(t, fixed, ev.CreatedAt)
	assert.Empty(t, f.notifier.calls)
}

func TestPublishNotifiesEligibleActiveStaff(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	ev, err := f.svc.Create(ctx, admin, models.Event{
		Name: "Gala", Date: "2026-07-10", Location: "Hall", RequiredLevel: "Silver",
	})
	require.NoError(t, err)

	_, err = f.svc.Publish(ctx, admin, ev.ID)
	require.NoError(t, err)

	published := f.notifier.byKind("published")
	require.Len(t, published, 1)
	// Bronze staff and the pending member must not hear about a Silver event.
	assert.ElementsMatch(t, []string{"alice", "admin-1"}, published[0].recipients)

	_, err = f.svc.Publish(ctx, admin, ev.ID)
	assert.ErrorIs(t, err, models.ErrPrecondition)
}

func TestSignUpPreconditions(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	bob := models.Principal{ID: "bob", Role: models.RoleStaff}

	t.Run("success records timestamp", func(t *testing.T) {
		ev := f.createOpen(t, "Bronze")
		got, err := f.svc.SignUp(ctx, bob, ev.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"bob"}, got.SignedUpStaff)
		assert.Equal(t, fixed, got.SignUpTimestamps["bob"])
	})

	t.Run("duplicate signup rejected", func(t *testing.T) {
		ev := f.createOpen(t, "Bronze")
		_, err := f.svc.SignUp(ctx, bob, ev.ID)
		require.NoError(t, err)
		_, err = f.svc.SignUp(ctx, bob, ev.ID)
		assert.ErrorIs(t, err, models.ErrPrecondition)
	})

	t.Run("ineligible level rejected", func(t *testing.T) {
		ev := f.createOpen(t, "Silver")
		_, err := f.svc.SignUp(ctx, bob, ev.ID)
		assert.ErrorIs(t, err, models.ErrPrecondition)
	})

	t.Run("past event rejected", func(t *testing.T) {
		ev, err := f.svc.Create(ctx, admin, models.Event{
			Name: "Past", Date: "2026-01-05", Location: "Hall", RequiredLevel: "Bronze",
		})
		require.NoError(t, err)
		_, err = f.svc.Publish(ctx, admin, ev.ID)
		require.NoError(t, err)
		_, err = f.svc.SignUp(ctx, bob, ev.ID)
		assert.ErrorIs(t, err, models.ErrPrecondition)
	})

	t.Run("pending staff rejected", func(t *testing.T) {
		ev := f.createOpen(t, "Bronze")
		_, err := f.svc.SignUp(ctx, models.Principal{ID: "pending", Role: models.RoleStaff}, ev.ID)
		assert.ErrorIs(t, err, models.ErrPrecondition)
	})

	t.Run("draft invisible for signup", func(t *testing.T) {
		ev, err := f.svc.Create(ctx, admin, models.Event{
			Name: "Draft", Date: "2026-07-10", Location: "Hall", RequiredLevel: "Bronze",
		})
		require.NoError(t, err)
		_, err = f.svc.SignUp(ctx, bob, ev.ID)
		assert.ErrorIs(t, err, models.ErrPrecondition)
	})
}

func TestAdminSignUpBypassesEligibility(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ev := f.createOpen(t, "Silver")

	got, err := f.svc.AdminSignUp(context.Background(), admin, ev.ID, "bob")

	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, got.SignedUpStaff)

	_, err = f.svc.AdminSignUp(context.Background(), models.Principal{ID: "bob", Role: models.RoleStaff}, ev.ID, "carol")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestCancelSignUp(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createOpen(t, "Bronze")
	signUpAll(t, f, ev.ID, "bob", "carol")

	got, err := f.svc.CancelSignUp(ctx, models.Principal{ID: "bob", Role: models.RoleStaff}, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"carol"}, got.SignedUpStaff)
	assert.NotContains(t, got.SignUpTimestamps, "bob")

	_, err = f.svc.CancelSignUp(ctx, models.Principal{ID: "bob", Role: models.RoleStaff}, ev.ID)
	assert.ErrorIs(t, err, models.ErrPrecondition)
}

func TestUpdateNotifiesOnlyOnChanges(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createOpen(t, "Bronze")
	signUpAll(t, f, ev.ID, "bob", "carol")

	// A save with identical content stays silent.
	_, err := f.svc.Update(ctx, admin, ev)
	require.NoError(t, err)
	assert.Empty(t, f.notifier.byKind("updated"))

	changed := ev
	changed.Location = "Park"
	got, err := f.svc.Update(ctx, admin, changed)
	require.NoError(t, err)
	assert.Equal(t, "Park", got.Location)
	assert.Equal(t, []string{"bob", "carol"}, got.SignedUpStaff)

	updated := f.notifier.byKind("updated")
	require.Len(t, updated, 1)
	assert.Equal(t, []string{"Location: Town Hall → Park"}, updated[0].changes)
	assert.ElementsMatch(t, []string{"bob", "carol"}, updated[0].recipients)
}

// brokenReadStore fails staff record reads on demand.
type brokenReadStore struct {
	store.Store
	failStaffReads bool
}

func (s *brokenReadStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.failStaffReads && strings.HasPrefix(key, repository.StaffKey("")) {
		return nil, assert.AnError
	}
	return s.Store.Get(ctx, key)
}

func TestUpdateSucceedsWhenRecipientLookupFails(t *testing.T) {
	t.Parallel()
	st := &brokenReadStore{Store: store.NewMemory()}
	f := newFixtureOn(t, st)
	ctx := context.Background()
	ev := f.createOpen(t, "Bronze")
	signUpAll(t, f, ev.ID, "bob")

	st.failStaffReads = true
	changed := ev
	changed.Location = "Park"
	got, err := f.svc.Update(ctx, admin, changed)

	// The edit itself committed, so the caller sees success.
	require.NoError(t, err)
	assert.Equal(t, "Park", got.Location)
	assert.Empty(t, f.notifier.byKind("updated"))

	st.failStaffReads = false
	stored, err := f.svc.Get(ctx, admin, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Park", stored.Location)
}

func TestUpdateClosedEventNotifiesConfirmedOnly(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createOpen(t, "Bronze")
	signUpAll(t, f, ev.ID, "bob", "carol")

	_, err := f.svc.Close(ctx, admin, ev.ID, []string{"bob"})
	require.NoError(t, err)
	f.notifier.calls = nil

	changed, err := f.svc.Get(ctx, admin, ev.ID)
	require.NoError(t, err)
	changed.Time = "18:00"
	_, err = f.svc.Update(ctx, admin, changed)
	require.NoError(t, err)

	updated := f.notifier.byKind("updated")
	require.Len(t, updated, 1)
	assert.Equal(t, []string{"bob"}, updated[0].recipients)
}

func TestCloseFirstTimeNotifiesEverySignup(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createOpen(t, "Bronze")
	signUpAll(t, f, ev.ID, "alice", "bob", "carol")

	got, err := f.svc.Close(ctx, admin, ev.ID, []string{"alice", "bob"})

	require.NoError(t, err)
	assert.Equal(t, models.EventClosed, got.Status)
	assert.Equal(t, 1, got.CloseGeneration)
	assert.Equal(t, []string{"alice", "bob"}, got.ConfirmedStaff)
	assert.Empty(t, got.PreviousConfirmed)

	selected := f.notifier.byKind("selected")
	require.Len(t, selected, 1)
	assert.ElementsMatch(t, []string{"alice", "bob"}, selected[0].recipients)

	deselected := f.notifier.byKind("deselected")
	require.Len(t, deselected, 1)
	assert.Equal(t, []string{"carol"}, deselected[0].recipients)
}

func TestReCloseNotifiesOnlyTheDelta(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createOpen(t, "Bronze")
	signUpAll(t, f, ev.ID, "alice", "bob", "carol")

	_, err := f.svc.Close(ctx, admin, ev.ID, []string{"alice", "bob"})
	require.NoError(t, err)
	f.notifier.calls = nil

	// Bob drops out, Carol comes in, Alice stays and must hear nothing.
	got, err := f.svc.Close(ctx, admin, ev.ID, []string{"alice", "carol"})
	require.NoError(t, err)
	assert.Equal(t, 2, got.CloseGeneration)
	assert.Equal(t, []string{"alice", "bob"}, got.PreviousConfirmed)

	selected := f.notifier.byKind("selected")
	require.Len(t, selected, 1)
	assert.Equal(t, []string{"carol"}, selected[0].recipients)

	deselected := f.notifier.byKind("deselected")
	require.Len(t, deselected, 1)
	assert.Equal(t, []string{"bob"}, deselected[0].recipients)
}

func TestReCloseWithSameSelectionIsSilent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createOpen(t, "Bronze")
	signUpAll(t, f, ev.ID, "alice", "bob")

	_, err := f.svc.Close(ctx, admin, ev.ID, []string{"alice"})
	require.NoError(t, err)
	f.notifier.calls = nil

	_, err = f.svc.Close(ctx, admin, ev.ID, []string{"alice"})
	require.NoError(t, err)

	for _, call := range f.notifier.calls {
		assert.Empty(t, call.recipients)
	}
}

func TestCloseRejectsUnknownSelection(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ev := f.createOpen(t, "Bronze")
	signUpAll(t, f, ev.ID, "bob")

	_, err := f.svc.Close(context.Background(), admin, ev.ID, []string{"bob", "carol"})

	assert.ErrorIs(t, err, models.ErrPrecondition)
}

func TestCancelNotifiesThenPurges(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createOpen(t, "Bronze")
	signUpAll(t, f, ev.ID, "bob", "carol")

	got, err := f.svc.Cancel(ctx, admin, ev.ID)

	require.NoError(t, err)
	assert.Equal(t, models.EventCancelled, got.Status)
	assert.Empty(t, got.SignedUpStaff)
	assert.Empty(t, got.SignUpTimestamps)

	cancelled := f.notifier.byKind("cancelled")
	require.Len(t, cancelled, 1)
	assert.ElementsMatch(t, []string{"bob", "carol"}, cancelled[0].recipients)

	_, err = f.svc.Cancel(ctx, admin, ev.ID)
	assert.ErrorIs(t, err, models.ErrPrecondition)
}

func TestReinstate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createOpen(t, "Bronze")

	_, err := f.svc.Reinstate(ctx, admin, ev.ID)
	assert.ErrorIs(t, err, models.ErrPrecondition)

	_, err = f.svc.Cancel(ctx, admin, ev.ID)
	require.NoError(t, err)

	got, err := f.svc.Reinstate(ctx, admin, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventOpen, got.Status)
}

func TestDelete(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createOpen(t, "Bronze")

	require.NoError(t, f.svc.Delete(ctx, admin, ev.ID))

	_, err := f.svc.Get(ctx, admin, ev.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, admin, ev.ID), models.ErrNotFound)
}

func TestListVisibility(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	silver := f.createOpen(t, "Silver")
	bronze := f.createOpen(t, "Bronze")
	draft, err := f.svc.Create(ctx, admin, models.Event{
		Name: "Draft", Date: "2026-07-10", Location: "Hall", RequiredLevel: "Bronze",
	})
	require.NoError(t, err)

	all, err := f.svc.List(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	visible, err := f.svc.List(ctx, models.Principal{ID: "bob", Role: models.RoleStaff})
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, bronze.ID, visible[0].ID)

	_, err = f.svc.Get(ctx, models.Principal{ID: "bob", Role: models.RoleStaff}, silver.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = f.svc.Get(ctx, models.Principal{ID: "bob", Role: models.RoleStaff}, draft.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeletedLevelFailsClosed(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createOpen(t, "Silver")

	require.NoError(t, f.levels.Delete(ctx, "lvl-silver"))

	// The event survives its level, but nobody can see or join it anymore.
	got, err := f.svc.Get(ctx, admin, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventOpen, got.Status)

	visible, err := f.svc.List(ctx, models.Principal{ID: "alice", Role: models.RoleStaff})
	require.NoError(t, err)
	assert.Empty(t, visible)

	_, err = f.svc.SignUp(ctx, models.Principal{ID: "alice", Role: models.RoleStaff}, ev.ID)
	assert.ErrorIs(t, err, models.ErrPrecondition)
}

func TestRemoveStaffEverywhere(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	first := f.createOpen(t, "Bronze")
	second := f.createOpen(t, "Bronze")
	signUpAll(t, f, first.ID, "bob", "carol")
	signUpAll(t, f, second.ID, "bob")
	_, err := f.svc.Close(ctx, admin, first.ID, []string{"bob"})
	require.NoError(t, err)

	require.NoError(t, f.svc.RemoveStaffEverywhere(ctx, "bob"))

	got, err := f.svc.Get(ctx, admin, first.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"carol"}, got.SignedUpStaff)
	assert.Empty(t, got.ConfirmedStaff)

	got, err = f.svc.Get(ctx, admin, second.ID)
	require.NoError(t, err)
	assert.Empty(t, got.SignedUpStaff)
}
