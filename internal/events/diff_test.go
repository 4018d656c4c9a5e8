package events

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crewmuster/crewmuster/internal/models"
)

func TestDiffFields(t *testing.T) {
	t.Parallel()

	base := models.Event{
		Name:          "Fair",
		Date:          "2026-07-10",
		Time:          "14:00",
		Location:      "Hall",
		Duration:      "4h",
		Points:        5,
		RequiredLevel: "Bronze",
		Description:   "come help",
	}

	t.Run("identical events produce no diff", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, DiffFields(base, base))
	})

	t.Run("each changed field yields one line", func(t *testing.T) {
		t.Parallel()
		updated := base
		updated.Date = "2026-07-11"
		updated.Location = "Park"
		updated.Points = 8

		assert.Equal(t, []string{
			"Date: 2026-07-10 → 2026-07-11",
			"Location: Hall → Park",
			"Points: 5 → 8",
		}, DiffFields(base, updated))
	})

	t.Run("free text reports as updated without content", func(t *testing.T) {
		t.Parallel()
		updated := base
		updated.Description = "changed"
		updated.Notes = "new note"

		assert.Equal(t, []string{"Description: updated", "Notes: updated"}, DiffFields(base, updated))
	})

	t.Run("cleared field renders as none", func(t *testing.T) {
		t.Parallel()
		updated := base
		updated.Time = ""

		assert.Equal(t, []string{"Time: 14:00 → (none)"}, DiffFields(base, updated))
	})

	t.Run("staffing set changes are ignored", func(t *testing.T) {
		t.Parallel()
		updated := base
		updated.SignedUpStaff = []string{"a", "b"}
		updated.CloseGeneration = 3

		assert.Empty(t, DiffFields(base, updated))
	})
}

func TestDiffSelection(t *testing.T) {
	t.Parallel()

	sel := DiffSelection([]string{"a", "b", "c"}, []string{"b", "d"})

	assert.Equal(t, []string{"d"}, sel.Added)
	assert.Equal(t, []string{"a", "c"}, sel.Removed)

	same := DiffSelection([]string{"a"}, []string{"a"})
	assert.Empty(t, same.Added)
	assert.Empty(t, same.Removed)
}
