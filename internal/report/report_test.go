package report_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/crewmuster/crewmuster/internal/models"
	"github.com/crewmuster/crewmuster/internal/report"
)

func TestGenerateExcelReport(t *testing.T) {
	testRows := []report.LedgerRow{
		{StaffName: "Alice", Timestamp: time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC), Points: 5, Reason: "Completed event Summer Fair", EventName: "Summer Fair", AdminName: "Admin"},
		{StaffName: "Bob", Timestamp: time.Date(2026, 5, 11, 0, 0, 0, 0, time.UTC), Points: -2, Reason: "Correction", AdminName: "Admin"},
		{StaffName: "Alice", Timestamp: time.Date(2026, 5, 12, 0, 0, 0, 0, time.UTC), Points: 3, Reason: "Helped with teardown", AdminName: "Admin"},
	}

	t.Run("successful report generation", func(t *testing.T) {
		buffer, err := report.GenerateExcelReport(testRows)

		require.NoError(t, err)
		assert.NotNil(t, buffer)

		f, err := excelize.OpenReader(buffer)
		require.NoError(t, err)
		defer f.Close()

		sheetList := f.GetSheetList()
		assert.ElementsMatch(t, []string{"Alice", "Bob"}, sheetList)

		headerVal, err := f.GetCellValue("Alice", "A1")
		require.NoError(t, err)
		assert.Equal(t, "Date", headerVal)

		dateVal, err := f.GetCellValue("Alice", "A2")
		require.NoError(t, err)
		assert.Equal(t, "10.05.2026", dateVal)

		reasonVal, err := f.GetCellValue("Alice", "C3")
		require.NoError(t, err)
		assert.Equal(t, "Helped with teardown", reasonVal)

		pointsVal, err := f.GetCellValue("Bob", "B2")
		require.NoError(t, err)
		assert.Equal(t, "-2", pointsVal)
	})

	t.Run("no entries found", func(t *testing.T) {
		buffer, err := report.GenerateExcelReport([]report.LedgerRow{})

		require.Error(t, err)
		assert.Nil(t, buffer)
		require.ErrorIs(t, err, report.ErrNoEntries)
	})
}

func TestRowsFromLedger(t *testing.T) {
	t.Parallel()

	entries := []models.PointAdjustment{
		{ID: "adj-1", StaffID: "s1", Points: 5, Reason: "Completed event Summer Fair", AdminID: "a1", EventID: "ev1"},
		{ID: "adj-2", StaffID: "ghost", Points: 2, Reason: "Manual", AdminID: "a1"},
	}
	staffNames := map[string]string{"s1": "Alice", "a1": "Admin"}
	eventNames := map[string]string{"ev1": "Summer Fair"}

	rows := report.RowsFromLedger(entries, staffNames, eventNames)

	require.Len(t, rows, 2)
	assert.Equal(t, "Alice", rows[0].StaffName)
	assert.Equal(t, "Summer Fair", rows[0].EventName)
	assert.Equal(t, "Admin", rows[0].AdminName)
	// Ids that no longer resolve keep the raw id instead of vanishing.
	assert.Equal(t, "ghost", rows[1].StaffName)
}
