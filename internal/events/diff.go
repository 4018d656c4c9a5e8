package events

import (
	"fmt"

	"github.com/crewmuster/crewmuster/internal/models"
)

// DiffFields compares the notification-relevant fields of two event versions
// and returns one human-readable line per changed field. Long free-text
// fields report as updated without echoing their content. An empty result
// means nothing worth notifying changed.
func DiffFields(old, updated models.Event) []string {
	var changes []string

	appendChange := func(label, before, after string) {
		if before != after {
			changes = append(changes, fmt.Sprintf("%s: %s → %s", label, orNone(before), orNone(after)))
		}
	}

	appendChange("Name", old.Name, updated.Name)
	appendChange("Date", old.Date, updated.Date)
	appendChange("End date", old.EndDate, updated.EndDate)
	appendChange("Time", old.Time, updated.Time)
	appendChange("Duration", old.Duration, updated.Duration)
	appendChange("Location", old.Location, updated.Location)
	if old.Points != updated.Points {
		changes = append(changes, fmt.Sprintf("Points: %d → %d", old.Points, updated.Points))
	}
	appendChange("Required level", old.RequiredLevel, updated.RequiredLevel)
	if old.Description != updated.Description {
		changes = append(changes, "Description: updated")
	}
	if old.Notes != updated.Notes {
		changes = append(changes, "Notes: updated")
	}
	return changes
}

func orNone(v string) string {
	if v == "" {
		return "(none)"
	}
	return v
}

// Selection is the outcome of comparing two confirmed-staff sets.
type Selection struct {
	Added   []string
	Removed []string
}

// DiffSelection returns the staff ids that entered and left the confirmed
// set, preserving the order of the input slices.
func DiffSelection(old, updated []string) Selection {
	oldSet := toSet(old)
	newSet := toSet(updated)

	var sel Selection
	for _, id := range updated {
		if !oldSet[id] {
			sel.Added = append(sel.Added, id)
		}
	}
	for _, id := range old {
		if !newSet[id] {
			sel.Removed = append(sel.Removed, id)
		}
	}
	return sel
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
