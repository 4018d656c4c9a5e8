package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/crewmuster/crewmuster/internal/models"
)

// SettingsSource loads the stored channel settings.
type SettingsSource interface {
	Telegram(ctx context.Context) (models.TelegramSettings, error)
	WhatsApp(ctx context.Context) (models.WhatsAppSettings, error)
}

// ChannelProvider yields the channel set for one dispatch batch. Channels are
// rebuilt per batch so admin changes to the stored settings take effect
// without a restart.
type ChannelProvider interface {
	Channels(ctx context.Context) []Channel
}

// SettingsChannels builds the production channel set from stored settings and
// the static email configuration.
type SettingsChannels struct {
	settings SettingsSource
	email    EmailConfig
	log      *slog.Logger
}

// NewSettingsChannels creates the production channel provider.
func NewSettingsChannels(settings SettingsSource, email EmailConfig, log *slog.Logger) *SettingsChannels {
	return &SettingsChannels{settings: settings, email: email, log: log}
}

// Channels returns one channel per supported medium. A channel whose settings
// cannot be loaded or applied is returned disconnected so the batch records a
// channel failure instead of silently dropping the medium.
func (p *SettingsChannels) Channels(ctx context.Context) []Channel {
	channels := make([]Channel, 0, 3)

	tgCfg, err := p.settings.Telegram(ctx)
	if err != nil {
		p.log.Error("failed to load telegram settings", "error", err)
		tgCfg = models.TelegramSettings{}
	}
	tg, err := NewTelegram(tgCfg)
	if err != nil {
		p.log.Error("failed to build telegram channel", "error", err)
		tg = &Telegram{}
	}
	channels = append(channels, tg)

	waCfg, err := p.settings.WhatsApp(ctx)
	if err != nil {
		p.log.Error("failed to load whatsapp settings", "error", err)
		waCfg = models.WhatsAppSettings{}
	}
	channels = append(channels, NewWhatsApp(waCfg))

	channels = append(channels, NewEmail(p.email))
	return channels
}

// Service fans notifications out over every configured channel. It is the
// single notification entry point for the event and points services.
type Service struct {
	dispatcher *Dispatcher
	provider   ChannelProvider
	log        *slog.Logger
}

// NewService creates the notification facade.
func NewService(dispatcher *Dispatcher, provider ChannelProvider, log *slog.Logger) *Service {
	return &Service{dispatcher: dispatcher, provider: provider, log: log}
}

// broadcast delivers one rendered message to the recipients over every
// connected channel. Disconnected channels are skipped quietly; a recipient
// unreachable on one channel may still be reached on another.
func (s *Service) broadcast(ctx context.Context, recipients []models.StaffMember, render RenderFunc) {
	if len(recipients) == 0 {
		return
	}
	for _, ch := range s.provider.Channels(ctx) {
		if _, err := s.dispatcher.Dispatch(ctx, ch, recipients, render); err != nil {
			if errors.Is(err, models.ErrChannel) {
				s.log.Debug("channel not connected, skipping", "channel", ch.Name())
				continue
			}
			s.log.Error("dispatch failed", "channel", ch.Name(), "error", err)
		}
	}
}

// EventPublished announces a newly opened event to eligible staff.
func (s *Service) EventPublished(ctx context.Context, ev models.Event, recipients []models.StaffMember) {
	s.broadcast(ctx, recipients, EventPublished(ev))
}

// EventUpdated notifies involved staff about changed event fields.
func (s *Service) EventUpdated(ctx context.Context, ev models.Event, changes []string, recipients []models.StaffMember) {
	if len(changes) == 0 {
		return
	}
	s.broadcast(ctx, recipients, EventUpdated(ev, changes))
}

// StaffSelected congratulates newly confirmed staff.
func (s *Service) StaffSelected(ctx context.Context, ev models.Event, recipients []models.StaffMember) {
	s.broadcast(ctx, recipients, StaffSelected(ev))
}

// StaffDeselected informs staff removed from the confirmed list.
func (s *Service) StaffDeselected(ctx context.Context, ev models.Event, recipients []models.StaffMember) {
	s.broadcast(ctx, recipients, StaffDeselected(ev))
}

// EventCancelled informs signed-up staff about a cancellation.
func (s *Service) EventCancelled(ctx context.Context, ev models.Event, recipients []models.StaffMember) {
	s.broadcast(ctx, recipients, EventCancelled(ev))
}

// LevelUp congratulates a staff member on reaching a new level.
func (s *Service) LevelUp(ctx context.Context, member models.StaffMember, levelName string) {
	s.broadcast(ctx, []models.StaffMember{member}, LevelUp(levelName))
}
