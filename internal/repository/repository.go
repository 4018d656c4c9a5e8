// Package repository provides typed access to the engine's entities on top of
// the key-value store. Records are validated at the store boundary so a
// malformed blob surfaces as a validation error instead of propagating empty
// fields through the engine.
package repository

// Key prefixes of the storage namespace. These, together with the JSON shapes
// in models, are the storage contract.
const (
	eventPrefix      = "event:"
	staffPrefix      = "user:"
	levelPrefix      = "level:"
	adjustmentPrefix = "adjustment:"

	telegramSettingsKey = "telegram:settings"
	whatsappSettingsKey = "whatsapp:settings"
)

// EventKey returns the storage key of an event record.
func EventKey(id string) string { return eventPrefix + id }

// StaffKey returns the storage key of a staff record.
func StaffKey(id string) string { return staffPrefix + id }

// LevelKey returns the storage key of a level record.
func LevelKey(id string) string { return levelPrefix + id }

// AdjustmentKey returns the storage key of a point adjustment record.
func AdjustmentKey(id string) string { return adjustmentPrefix + id }
