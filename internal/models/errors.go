package models

import "errors"

var (
	// ErrValidation is returned when a required field is missing or malformed.
	// The requested mutation is rejected before anything is persisted.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when an event, staff member or level id does not
	// resolve to a stored record.
	ErrNotFound = errors.New("not found")
	// ErrPrecondition is returned when the entity is in the wrong state for the
	// requested transition: signing up twice, confirming an unselected staff
	// member, double-awarding points, moving the first or last level.
	ErrPrecondition = errors.New("precondition failed")
	// ErrUnauthorized is returned when a non-admin principal attempts an
	// admin-only operation.
	ErrUnauthorized = errors.New("admin role required")
	// ErrChannel is returned when a notification channel is not configured or a
	// send failed. Channel errors never roll back the mutation that triggered
	// the notification.
	ErrChannel = errors.New("channel error")
)
