// Package models defines the persisted record shapes of the staffing engine.
// The JSON field names are the storage contract; other components must honor
// them verbatim.
package models

import (
	"fmt"
	"net/mail"
	"time"
)

// Staff roles.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// Staff statuses.
const (
	StaffPending = "pending" // invited, password not set yet
	StaffActive  = "active"
)

// Event statuses.
const (
	EventDraft     = "draft"
	EventOpen      = "open"
	EventClosed    = "closed"
	EventCancelled = "cancelled"
)

// Date and time layouts used by event records.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Principal is an already-authenticated caller. Credential checks happen
// upstream; the engine only enforces role gating.
type Principal struct {
	ID   string // staff member id
	Role string // admin or staff
}

// IsAdmin reports whether the principal may perform admin-only operations.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Level is one entry of the level table. Order defines the access rank:
// a staff member at rank R sees every event whose required level has rank <= R.
// Order is independent of MinPoints so an admin may reorder levels without
// touching thresholds.
type Level struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	MinPoints int    `json:"minPoints"`
	Order     int    `json:"order"`
}

// Validate checks the level record for malformed fields.
func (l Level) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("level id is required: %w", ErrValidation)
	}
	if l.Name == "" {
		return fmt.Errorf("level name is required: %w", ErrValidation)
	}
	if l.MinPoints < 0 {
		return fmt.Errorf("level minPoints must not be negative: %w", ErrValidation)
	}
	return nil
}

// StaffMember is a volunteer or administrator. Level is derived from Points
// via the level resolver on every points change; an explicit admin override
// persists only until the next points change recomputes it.
type StaffMember struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	Phone          string `json:"phone,omitempty"`          // E.164, must start with "+"
	TelegramChatID string `json:"telegramChatId,omitempty"` // numeric chat id
	Points         int    `json:"points"`
	Level          string `json:"level"`
	Status         string `json:"status"` // pending or active
	Role           string `json:"role"`   // admin or staff
}

// Validate checks the staff record for malformed fields.
func (s StaffMember) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("staff id is required: %w", ErrValidation)
	}
	if _, err := mail.ParseAddress(s.Email); err != nil {
		return fmt.Errorf("staff email %q is invalid: %w", s.Email, ErrValidation)
	}
	if s.Name == "" {
		return fmt.Errorf("staff name is required: %w", ErrValidation)
	}
	if s.Points < 0 {
		return fmt.Errorf("staff points must not be negative: %w", ErrValidation)
	}
	if s.Status != StaffPending && s.Status != StaffActive {
		return fmt.Errorf("staff status %q is unknown: %w", s.Status, ErrValidation)
	}
	if s.Role != RoleAdmin && s.Role != RoleStaff {
		return fmt.Errorf("staff role %q is unknown: %w", s.Role, ErrValidation)
	}
	return nil
}

// Event is a scheduled event together with its derived staffing sets.
// ConfirmedStaff is mutated only by the close operation; PointsAwarded only by
// the confirm operations and never contains a staff id twice.
//
// CloseGeneration counts how many times the event has been closed, and
// PreviousConfirmed snapshots the confirmed set of the previous close, so a
// re-close can notify only the staff whose selection actually changed.
type Event struct {
	ID                string               `json:"id"`
	Name              string               `json:"name"`
	Date              string               `json:"date"` // 2006-01-02
	EndDate           string               `json:"endDate,omitempty"`
	Time              string               `json:"time,omitempty"` // 15:04
	Duration          string               `json:"duration,omitempty"`
	Location          string               `json:"location"`
	Description       string               `json:"description,omitempty"`
	Notes             string               `json:"notes,omitempty"`
	Points            int                  `json:"points"`
	RequiredLevel     string               `json:"requiredLevel"`
	Status            string               `json:"status"`
	SignedUpStaff     []string             `json:"signedUpStaff"`
	SignUpTimestamps  map[string]time.Time `json:"signUpTimestamps,omitempty"`
	ConfirmedStaff    []string             `json:"confirmedStaff"`
	PointsAwarded     []string             `json:"pointsAwarded"`
	CloseGeneration   int                  `json:"closeGeneration"`
	PreviousConfirmed []string             `json:"previousConfirmed,omitempty"`
	CreatedAt         time.Time            `json:"createdAt"`
}

// Validate checks the event record for malformed fields.
func (e Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("event id is required: %w", ErrValidation)
	}
	if e.Name == "" {
		return fmt.Errorf("event name is required: %w", ErrValidation)
	}
	if _, err := time.Parse(DateLayout, e.Date); err != nil {
		return fmt.Errorf("event date %q is invalid: %w", e.Date, ErrValidation)
	}
	if e.EndDate != "" {
		if _, err := time.Parse(DateLayout, e.EndDate); err != nil {
			return fmt.Errorf("event endDate %q is invalid: %w", e.EndDate, ErrValidation)
		}
	}
	if e.Time != "" {
		if _, err := time.Parse(TimeLayout, e.Time); err != nil {
			return fmt.Errorf("event time %q is invalid: %w", e.Time, ErrValidation)
		}
	}
	if e.Points < 0 {
		return fmt.Errorf("event points must not be negative: %w", ErrValidation)
	}
	if e.RequiredLevel == "" {
		return fmt.Errorf("event requiredLevel is required: %w", ErrValidation)
	}
	switch e.Status {
	case EventDraft, EventOpen, EventClosed, EventCancelled:
	default:
		return fmt.Errorf("event status %q is unknown: %w", e.Status, ErrValidation)
	}
	if e.CloseGeneration < 0 {
		return fmt.Errorf("event closeGeneration must not be negative: %w", ErrValidation)
	}
	return nil
}

// StartsBefore reports whether the event begins before the given instant.
// Events without a time field count as running until the end of their day, so
// same-day signups stay possible.
func (e Event) StartsBefore(now time.Time) bool {
	day, err := time.Parse(DateLayout, e.Date)
	if err != nil {
		return false
	}
	start := day.Add(24*time.Hour - time.Minute)
	if e.Time != "" {
		if t, terr := time.Parse(TimeLayout, e.Time); terr == nil {
			start = day.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute)
		}
	}
	return start.Before(now)
}

// IsSignedUp reports whether the staff member is in the signed-up set.
func (e Event) IsSignedUp(staffID string) bool {
	return containsID(e.SignedUpStaff, staffID)
}

// IsConfirmed reports whether the staff member was selected at the last close.
func (e Event) IsConfirmed(staffID string) bool {
	return containsID(e.ConfirmedStaff, staffID)
}

// IsAwarded reports whether the staff member already received this event's points.
func (e Event) IsAwarded(staffID string) bool {
	return containsID(e.PointsAwarded, staffID)
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// PointAdjustment is one append-only entry of the points ledger. EventID is
// set for event-completion awards and empty for manual admin adjustments.
type PointAdjustment struct {
	ID        string    `json:"id"`
	StaffID   string    `json:"staffId"`
	Points    int       `json:"points"` // signed delta
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
	AdminID   string    `json:"adminId"`
	EventID   string    `json:"eventId,omitempty"`
}

// Validate checks the adjustment record for malformed fields.
func (a PointAdjustment) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("adjustment id is required: %w", ErrValidation)
	}
	if a.StaffID == "" {
		return fmt.Errorf("adjustment staffId is required: %w", ErrValidation)
	}
	if a.Reason == "" {
		return fmt.Errorf("adjustment reason is required: %w", ErrValidation)
	}
	if a.AdminID == "" {
		return fmt.Errorf("adjustment adminId is required: %w", ErrValidation)
	}
	return nil
}

// TelegramSettings is the process-wide Telegram channel configuration.
type TelegramSettings struct {
	Connected bool   `json:"connected"`
	BotToken  string `json:"botToken,omitempty"`
}

// WhatsAppSettings is the process-wide WhatsApp channel configuration.
type WhatsAppSettings struct {
	Connected     bool   `json:"connected"`
	PhoneNumberID string `json:"phoneNumberId,omitempty"`
	AccessToken   string `json:"accessToken,omitempty"`
}
