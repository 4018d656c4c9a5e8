// Package notify delivers engine notifications over Telegram, WhatsApp and
// email. Delivery is best-effort: the mutation that triggered a batch has
// already been committed, so per-recipient failures are logged and counted
// but never surface to the caller.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/crewmuster/crewmuster/internal/metrics"
	"github.com/crewmuster/crewmuster/internal/models"
)

// Message is one rendered notification.
type Message struct {
	Subject string // used by channels with a subject line (email)
	Text    string
}

// RenderFunc produces the personalized message for one recipient.
type RenderFunc func(models.StaffMember) Message

// Channel is one configured delivery channel.
type Channel interface {
	// Name identifies the channel in logs and metrics.
	Name() string
	// Connected reports whether the channel is configured for sending.
	Connected() bool
	// Address extracts the channel address from a staff record; empty means
	// the staff member cannot be reached on this channel.
	Address(member models.StaffMember) string
	// ValidateAddress rejects malformed addresses before a send is attempted.
	ValidateAddress(address string) error
	// Send delivers one message. Implementations carry a bounded timeout.
	Send(ctx context.Context, address string, msg Message) error
}

// Per-recipient dispatch outcomes.
const (
	StatusSent    = "sent"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// Result is the outcome of one recipient within a dispatch batch.
type Result struct {
	StaffID string
	Status  string
	Err     error
}

// Summary aggregates a batch's results.
type Summary struct {
	Attempted int
	Sent      int
	Skipped   int
	Failed    int
}

// Summarize folds results into aggregate counts.
func Summarize(results []Result) Summary {
	s := Summary{Attempted: len(results)}
	for _, r := range results {
		switch r.Status {
		case StatusSent:
			s.Sent++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}

// Dispatcher fans one message out to a recipient list over a single channel.
// Sends run sequentially with a fixed inter-message delay to respect channel
// rate limits; independent batches may run concurrently.
type Dispatcher struct {
	delay   time.Duration
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewDispatcher creates a dispatcher with the given inter-message delay.
func NewDispatcher(delay time.Duration, log *slog.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{delay: delay, log: log, metrics: m}
}

// Dispatch delivers the rendered message to every recipient on the channel.
//
// A recipient without a valid channel address is skipped; a failed send is
// recorded and the batch continues. The only error Dispatch itself returns is
// a channel-level misconfiguration (channel not connected), which
// short-circuits before any send attempt.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	ch Channel,
	recipients []models.StaffMember,
	render RenderFunc,
) ([]Result, error) {
	if !ch.Connected() {
		return nil, fmt.Errorf("channel %q is not connected: %w", ch.Name(), models.ErrChannel)
	}

	start := time.Now()
	results := make([]Result, 0, len(recipients))
	sentAny := false
	for _, member := range recipients {
		address := ch.Address(member)
		if address == "" {
			results = append(results, Result{StaffID: member.ID, Status: StatusSkipped})
			d.log.Debug("recipient has no address, skipping", "channel", ch.Name(), "staff", member.ID)
			continue
		}
		if err := ch.ValidateAddress(address); err != nil {
			results = append(results, Result{StaffID: member.ID, Status: StatusSkipped, Err: err})
			d.log.Debug("recipient address invalid, skipping",
				"channel", ch.Name(), "staff", member.ID, "error", err)
			continue
		}

		if sentAny {
			time.Sleep(d.delay)
		}
		sentAny = true

		if err := ch.Send(ctx, address, render(member)); err != nil {
			results = append(results, Result{StaffID: member.ID, Status: StatusFailed, Err: err})
			d.log.Warn("failed to send notification",
				"channel", ch.Name(), "staff", member.ID, "error", err)
			continue
		}
		results = append(results, Result{StaffID: member.ID, Status: StatusSent})
	}

	summary := Summarize(results)
	for _, r := range results {
		d.metrics.NotificationsSent.WithLabelValues(ch.Name(), r.Status).Inc()
	}
	d.metrics.DispatchDuration.WithLabelValues(ch.Name()).Observe(time.Since(start).Seconds())
	d.log.Info("dispatch batch finished",
		"channel", ch.Name(),
		"attempted", summary.Attempted,
		"sent", summary.Sent,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	return results, nil
}
