package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/crewmuster/crewmuster/internal/models"
)

// SettingsStore persists the channel configuration.
type SettingsStore interface {
	SettingsSource
	SaveTelegram(ctx context.Context, settings models.TelegramSettings) error
	SaveWhatsApp(ctx context.Context, settings models.WhatsAppSettings) error
}

// SettingsAdmin is the admin surface for connecting and disconnecting
// notification channels. Changes take effect on the next dispatch batch.
type SettingsAdmin struct {
	store SettingsStore
	log   *slog.Logger
}

// NewSettingsAdmin creates the channel settings admin service.
func NewSettingsAdmin(store SettingsStore, log *slog.Logger) *SettingsAdmin {
	return &SettingsAdmin{store: store, log: log}
}

// ConnectTelegram stores the bot token and marks the channel connected.
func (a *SettingsAdmin) ConnectTelegram(ctx context.Context, p models.Principal, botToken string) error {
	if !p.IsAdmin() {
		return models.ErrUnauthorized
	}
	if botToken == "" {
		return fmt.Errorf("telegram bot token is required: %w", models.ErrValidation)
	}
	if err := a.store.SaveTelegram(ctx, models.TelegramSettings{Connected: true, BotToken: botToken}); err != nil {
		return err
	}
	a.log.Info("telegram channel connected", "admin", p.ID)
	return nil
}

// DisconnectTelegram marks the channel disconnected and drops the token.
func (a *SettingsAdmin) DisconnectTelegram(ctx context.Context, p models.Principal) error {
	if !p.IsAdmin() {
		return models.ErrUnauthorized
	}
	if err := a.store.SaveTelegram(ctx, models.TelegramSettings{}); err != nil {
		return err
	}
	a.log.Info("telegram channel disconnected", "admin", p.ID)
	return nil
}

// ConnectWhatsApp stores the Cloud API credentials and marks the channel
// connected.
func (a *SettingsAdmin) ConnectWhatsApp(ctx context.Context, p models.Principal, phoneNumberID, accessToken string) error {
	if !p.IsAdmin() {
		return models.ErrUnauthorized
	}
	if phoneNumberID == "" || accessToken == "" {
		return fmt.Errorf("whatsapp phone number id and access token are required: %w", models.ErrValidation)
	}
	settings := models.WhatsAppSettings{Connected: true, PhoneNumberID: phoneNumberID, AccessToken: accessToken}
	if err := a.store.SaveWhatsApp(ctx, settings); err != nil {
		return err
	}
	a.log.Info("whatsapp channel connected", "admin", p.ID)
	return nil
}

// DisconnectWhatsApp marks the channel disconnected and drops the
// credentials.
func (a *SettingsAdmin) DisconnectWhatsApp(ctx context.Context, p models.Principal) error {
	if !p.IsAdmin() {
		return models.ErrUnauthorized
	}
	if err := a.store.SaveWhatsApp(ctx, models.WhatsAppSettings{}); err != nil {
		return err
	}
	a.log.Info("whatsapp channel disconnected", "admin", p.ID)
	return nil
}
