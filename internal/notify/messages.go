package notify

import (
	"fmt"
	"strings"

	"github.com/crewmuster/crewmuster/internal/models"
)

// eventSummary renders the shared event detail block used by every
// event-related message.
func eventSummary(ev models.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Event: %s\n", ev.Name)
	fmt.Fprintf(&b, "Date: %s", ev.Date)
	if ev.EndDate != "" {
		fmt.Fprintf(&b, " - %s", ev.EndDate)
	}
	b.WriteString("\n")
	if ev.Time != "" {
		fmt.Fprintf(&b, "Time: %s\n", ev.Time)
	}
	if ev.Duration != "" {
		fmt.Fprintf(&b, "Duration: %s\n", ev.Duration)
	}
	fmt.Fprintf(&b, "Location: %s\n", ev.Location)
	fmt.Fprintf(&b, "Points: %d", ev.Points)
	return b.String()
}

// EventPublished renders the announcement sent to eligible staff when an
// event opens for signup.
func EventPublished(ev models.Event) RenderFunc {
	return func(member models.StaffMember) Message {
		return Message{
			Subject: fmt.Sprintf("New event: %s", ev.Name),
			Text: fmt.Sprintf("Hi %s,\n\nA new event is open for signup.\n\n%s\n\nSign up if you want to join!",
				member.Name, eventSummary(ev)),
		}
	}
}

// EventUpdated renders the change notice sent when an event is edited.
func EventUpdated(ev models.Event, changes []string) RenderFunc {
	return func(member models.StaffMember) Message {
		return Message{
			Subject: fmt.Sprintf("Event updated: %s", ev.Name),
			Text: fmt.Sprintf("Hi %s,\n\nAn event you are involved in has changed:\n\n%s\n\nCurrent details:\n\n%s",
				member.Name, strings.Join(changes, "\n"), eventSummary(ev)),
		}
	}
}

// StaffSelected renders the confirmation sent to staff selected at close.
func StaffSelected(ev models.Event) RenderFunc {
	return func(member models.StaffMember) Message {
		return Message{
			Subject: fmt.Sprintf("You are confirmed for %s", ev.Name),
			Text: fmt.Sprintf("Hi %s,\n\nGood news! You have been selected to work this event.\n\n%s\n\nSee you there!",
				member.Name, eventSummary(ev)),
		}
	}
}

// StaffDeselected renders the notice sent to staff who lost their selection
// on a re-close.
func StaffDeselected(ev models.Event) RenderFunc {
	return func(member models.StaffMember) Message {
		return Message{
			Subject: fmt.Sprintf("Selection change for %s", ev.Name),
			Text: fmt.Sprintf("Hi %s,\n\nThe staffing for this event changed and you are no longer on the confirmed list.\n\n%s",
				member.Name, eventSummary(ev)),
		}
	}
}

// EventCancelled renders the cancellation notice sent to signed-up staff.
func EventCancelled(ev models.Event) RenderFunc {
	return func(member models.StaffMember) Message {
		return Message{
			Subject: fmt.Sprintf("Event cancelled: %s", ev.Name),
			Text: fmt.Sprintf("Hi %s,\n\nThis event has been cancelled. Your signup has been removed.\n\n%s",
				member.Name, eventSummary(ev)),
		}
	}
}

// LevelUp renders the congratulations message sent when a points change
// moves a staff member to a new level.
func LevelUp(levelName string) RenderFunc {
	return func(member models.StaffMember) Message {
		return Message{
			Subject: "You reached a new level!",
			Text: fmt.Sprintf("Hi %s,\n\nCongratulations! Your points total has earned you a new level: %s.\n\nKeep it up!",
				member.Name, levelName),
		}
	}
}
