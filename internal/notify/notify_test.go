package notify

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewmuster/crewmuster/internal/metrics"
	"github.com/crewmuster/crewmuster/internal/models"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestDispatcher() *Dispatcher {
	return NewDispatcher(0, discard, metrics.NewMetrics(prometheus.NewRegistry()))
}

type fakeChannel struct {
	name      string
	connected bool
	failFor   map[string]error
	sent      []string // addresses in send order
	messages  []Message
}

func (f *fakeChannel) Name() string    { return f.name }
func (f *fakeChannel) Connected() bool { return f.connected }

func (f *fakeChannel) Address(member models.StaffMember) string { return member.Email }

func (f *fakeChannel) ValidateAddress(address string) error {
	if address == "broken" {
		return assert.AnError
	}
	return nil
}

func (f *fakeChannel) Send(_ context.Context, address string, msg Message) error {
	if err, ok := f.failFor[address]; ok {
		return err
	}
	f.sent = append(f.sent, address)
	f.messages = append(f.messages, msg)
	return nil
}

func member(id, email string) models.StaffMember {
	return models.StaffMember{ID: id, Email: email, Name: "Staff " + id}
}

func TestDispatchNotConnected(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher()
	ch := &fakeChannel{name: "test", connected: false}

	results, err := d.Dispatch(context.Background(), ch, []models.StaffMember{member("a", "a@example.com")}, func(models.StaffMember) Message {
		return Message{Text: "hello"}
	})

	require.ErrorIs(t, err, models.ErrChannel)
	assert.Nil(t, results)
	assert.Empty(t, ch.sent)
}

func TestDispatchDeliversInOrder(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher()
	ch := &fakeChannel{name: "test", connected: true}

	recipients := []models.StaffMember{
		member("a", "a@example.com"),
		member("b", "b@example.com"),
		member("c", "c@example.com"),
	}

	results, err := d.Dispatch(context.Background(), ch, recipients, func(m models.StaffMember) Message {
		return Message{Subject: "hi", Text: "hello " + m.Name}
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "b@example.com", "c@example.com"}, ch.sent)
	assert.Equal(t, "hello Staff b", ch.messages[1].Text)
	assert.Equal(t, Summary{Attempted: 3, Sent: 3}, Summarize(results))
}

func TestDispatchSkipsAndRecordsFailures(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher()
	ch := &fakeChannel{
		name:      "test",
		connected: true,
		failFor:   map[string]error{"b@example.com": assert.AnError},
	}

	recipients := []models.StaffMember{
		member("a", "a@example.com"),
		member("b", "b@example.com"), // send fails
		member("c", ""),              // no address
		member("d", "broken"),        // invalid address
		member("e", "e@example.com"),
	}

	results, err := d.Dispatch(context.Background(), ch, recipients, func(models.StaffMember) Message {
		return Message{Text: "hello"}
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "e@example.com"}, ch.sent)
	assert.Equal(t, Summary{Attempted: 5, Sent: 2, Failed: 1, Skipped: 2}, Summarize(results))

	byID := make(map[string]Result, len(results))
	for _, r := range results {
		byID[r.StaffID] = r
	}
	assert.Equal(t, StatusFailed, byID["b"].Status)
	assert.ErrorIs(t, byID["b"].Err, assert.AnError)
	assert.Equal(t, StatusSkipped, byID["c"].Status)
	assert.NoError(t, byID["c"].Err)
	assert.Equal(t, StatusSkipped, byID["d"].Status)
	assert.ErrorIs(t, byID["d"].Err, assert.AnError)
}

type fakeProvider struct {
	channels []Channel
}

func (f *fakeProvider) Channels(context.Context) []Channel { return f.channels }

func TestServiceBroadcastsOverConnectedChannels(t *testing.T) {
	t.Parallel()

	connected := &fakeChannel{name: "one", connected: true}
	offline := &fakeChannel{name: "two", connected: false}
	svc := NewService(newTestDispatcher(), &fakeProvider{channels: []Channel{connected, offline}}, discard)

	ev := models.Event{Name: "Summer Fair", Date: "2026-09-12", Location: "Town Hall", Points: 5}
	svc.EventPublished(context.Background(), ev, []models.StaffMember{member("a", "a@example.com")})

	require.Len(t, connected.sent, 1)
	assert.Contains(t, connected.messages[0].Text, "Summer Fair")
	assert.Empty(t, offline.sent)
}

func TestServiceUpdateWithoutChangesIsSilent(t *testing.T) {
	t.Parallel()

	ch := &fakeChannel{name: "one", connected: true}
	svc := NewService(newTestDispatcher(), &fakeProvider{channels: []Channel{ch}}, discard)

	svc.EventUpdated(context.Background(), models.Event{Name: "Fair"}, nil, []models.StaffMember{member("a", "a@example.com")})

	assert.Empty(t, ch.sent)
}

func TestMessageRendering(t *testing.T) {
	t.Parallel()

	ev := models.Event{
		Name:     "Summer Fair",
		Date:     "2026-09-12",
		EndDate:  "2026-09-13",
		Time:     "14:00",
		Duration: "4h",
		Location: "Town Hall",
		Points:   5,
	}
	staff := member("a", "a@example.com")

	published := EventPublished(ev)(staff)
	assert.Equal(t, "New event: Summer Fair", published.Subject)
	assert.Contains(t, published.Text, "Hi Staff a,")
	assert.Contains(t, published.Text, "Date: 2026-09-12 - 2026-09-13")
	assert.Contains(t, published.Text, "Time: 14:00")
	assert.Contains(t, published.Text, "Duration: 4h")
	assert.Contains(t, published.Text, "Points: 5")

	updated := EventUpdated(ev, []string{"Location: Town Hall → Park"})(staff)
	assert.Contains(t, updated.Text, "Location: Town Hall → Park")

	cancelled := EventCancelled(ev)(staff)
	assert.Contains(t, cancelled.Subject, "cancelled")

	levelUp := LevelUp("Gold")(staff)
	assert.Contains(t, levelUp.Text, "Gold")
}
