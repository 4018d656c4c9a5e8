package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/crewmuster/crewmuster/internal/models"
	"github.com/crewmuster/crewmuster/internal/store"
)

// Settings reads and writes the per-channel notification configuration.
// A missing record means the channel was never connected, which is a normal
// state rather than an error.
type Settings struct {
	store store.Store
}

// NewSettings creates a settings repository over the given store.
func NewSettings(s store.Store) *Settings {
	return &Settings{store: s}
}

// Telegram returns the Telegram channel settings.
func (r *Settings) Telegram(ctx context.Context) (models.TelegramSettings, error) {
	var settings models.TelegramSettings
	if err := r.get(ctx, telegramSettingsKey, &settings); err != nil {
		return models.TelegramSettings{}, err
	}
	return settings, nil
}

// SaveTelegram writes the Telegram channel settings.
func (r *Settings) SaveTelegram(ctx context.Context, settings models.TelegramSettings) error {
	return r.set(ctx, telegramSettingsKey, settings)
}

// WhatsApp returns the WhatsApp channel settings.
func (r *Settings) WhatsApp(ctx context.Context) (models.WhatsAppSettings, error) {
	var settings models.WhatsAppSettings
	if err := r.get(ctx, whatsappSettingsKey, &settings); err != nil {
		return models.WhatsAppSettings{}, err
	}
	return settings, nil
}

// SaveWhatsApp writes the WhatsApp channel settings.
func (r *Settings) SaveWhatsApp(ctx context.Context, settings models.WhatsAppSettings) error {
	return r.set(ctx, whatsappSettingsKey, settings)
}

func (r *Settings) get(ctx context.Context, key string, out any) error {
	data, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil // never connected
		}
		return fmt.Errorf("failed to load %s: %w", key, err)
	}
	if err = json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("malformed %s record: %v: %w", key, err, models.ErrValidation)
	}
	return nil
}

func (r *Settings) set(ctx context.Context, key string, in any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err = r.store.Set(ctx, key, data); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}
