// Package report renders the points ledger as an Excel workbook, one sheet
// per staff member.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/crewmuster/crewmuster/internal/models"
)

var ErrNoEntries = errors.New("failed to generate report, 0 ledger entries were provided")

// Generator holds the state for the Excel report generation process.
type Generator struct {
	file *excelize.File
}

// LedgerRow holds the structured row for the excel file.
type LedgerRow struct {
	StaffName string    `json:"staff_name"` // Name of the staff member the entry belongs to
	Timestamp time.Time `json:"timestamp"`  // When the adjustment was recorded
	Points    int       `json:"points"`     // Signed points delta
	Reason    string    `json:"reason"`     // Free-text reason of the adjustment
	EventName string    `json:"event_name"` // Event that triggered the award, empty for manual ones
	AdminName string    `json:"admin_name"` // Admin who recorded the entry
}

// NewGenerator creates a new report generator.
func NewGenerator() *Generator {
	return &Generator{
		file: excelize.NewFile(),
	}
}

// RowsFromLedger joins ledger entries with the staff, admin and event names
// needed for the report. Unresolvable ids render as the raw id so the entry
// is never dropped.
func RowsFromLedger(
	entries []models.PointAdjustment,
	staffNames map[string]string,
	eventNames map[string]string,
) []LedgerRow {
	rows := make([]LedgerRow, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, LedgerRow{
			StaffName: nameOrID(staffNames, entry.StaffID),
			Timestamp: entry.Timestamp,
			Points:    entry.Points,
			Reason:    entry.Reason,
			EventName: nameOrID(eventNames, entry.EventID),
			AdminName: nameOrID(staffNames, entry.AdminID),
		})
	}
	return rows
}

func nameOrID(names map[string]string, id string) string {
	if name, ok := names[id]; ok {
		return name
	}
	return id
}

// GenerateExcelReport renders the given ledger rows into an Excel workbook
// with one sheet per staff member. It returns a bytes.Buffer containing the
// file, or ErrNoEntries when there is nothing to report.
func GenerateExcelReport(rows []LedgerRow) (*bytes.Buffer, error) {
	var err error

	if len(rows) == 0 {
		return nil, ErrNoEntries
	}

	rowsByStaff := make(map[string][]LedgerRow)
	for _, row := range rows {
		rowsByStaff[row.StaffName] = append(rowsByStaff[row.StaffName], row)
	}

	gen := NewGenerator()
	defer gen.file.Close()

	if err = gen.addSheets(rowsByStaff); err != nil {
		return nil, fmt.Errorf("failed to add sheets: %w", err)
	}

	// setup first sheet as active
	gen.file.SetActiveSheet(0)

	// delete default sheet
	if sheetIndex, _ := gen.file.GetSheetIndex("Sheet1"); sheetIndex != -1 {
		if err = gen.file.DeleteSheet("Sheet1"); err != nil {
			return nil, fmt.Errorf("failed to delete default sheet 'Sheet1': %w", err)
		}
	}

	buffer, err := gen.file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write data from saved file: %w", err)
	}

	return buffer, nil
}

// addSheets adds one sheet per staff member and fills it with that member's
// ledger entries. It returns an error if any operation fails during the
// process.
func (g *Generator) addSheets(rowsByStaff map[string][]LedgerRow) error {
	var err error
	headerIndex := 2

	for staffName, entries := range rowsByStaff {
		sheetName := truncateSheetName(staffName)

		if _, err = g.file.NewSheet(sheetName); err != nil {
			return fmt.Errorf("failed to generate new sheet '%s': %w", sheetName, err)
		}

		if err = g.setupSheet(sheetName, len(entries)); err != nil {
			return fmt.Errorf("failed to setup sheet '%s': %w", sheetName, err)
		}

		// Fill data
		for i, entry := range entries {
			if err = g.addRow(sheetName, i+headerIndex, entry); err != nil { // i+2, because the first row - header
				return fmt.Errorf("failed to add row '%d': %w", i+headerIndex, err)
			}
		}
	}
	return nil
}

// setupSheet initializes the specified sheet with headers, styles, and column widths.
// It creates a header style, sets the row height for the headers, and populates the headers
// in the first row. It also configures the width for each column and adds a table to the sheet.
//
// Parameters:
// - sheetName: The name of the sheet to set up.
// - rowCount: The number of ledger entries to determine the range of the table.
//
// Returns:
// - error: An error if any operation fails, otherwise returns nil.
func (g *Generator) setupSheet(sheetName string, rowCount int) error {
	var err error

	// Style creating
	headerStyle, err := g.file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4F81BD"}, Pattern: 1},
		Alignment: &excelize.Alignment{Vertical: "center", Horizontal: "center"},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create new style: %w", err)
	}

	// Headers creating
	rowHeight := 20
	headers := []string{"Date", "Points", "Reason", "Event", "Recorded By"}
	if err = g.file.SetRowHeight(sheetName, 1, float64(rowHeight)); err != nil {
		return fmt.Errorf("failed to set row height for headers: %w", err)
	}
	if err = g.file.SetSheetRow(sheetName, "A1", &headers); err != nil {
		return fmt.Errorf("failed to set sheet row for headers: %w", err)
	}
	if err = g.file.SetCellStyle(sheetName, "A1", "E1", headerStyle); err != nil {
		return fmt.Errorf("failed to set cell style for headers: %w", err)
	}

	// Setup width column
	widths := map[string]float64{
		"A": 18, "B": 10, "C": 50, "D": 30, "E": 25, //nolint:mnd // const values for row width
	}
	for col, width := range widths {
		if err = g.file.SetColWidth(sheetName, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	// Add table
	if err = g.file.AddTable(sheetName, &excelize.Table{
		Range:     fmt.Sprintf("A1:E%d", rowCount+1),
		Name:      "table_" + strings.ReplaceAll(sheetName, " ", ""),
		StyleName: "TableStyleMedium9",
	}); err != nil {
		return fmt.Errorf("failed to add table: %w", err)
	}

	return nil
}

// addRow adds a new row to the specified sheet with the details of the given
// ledger entry. If the operation fails, it returns an error.
func (g *Generator) addRow(sheetName string, rowNum int, row LedgerRow) error {
	rowData := []interface{}{
		row.Timestamp.Format("02.01.2006"),
		row.Points,
		row.Reason,
		row.EventName,
		row.AdminName,
	}
	cell, _ := excelize.CoordinatesToCellName(1, rowNum)

	if err := g.file.SetSheetRow(sheetName, cell, &rowData); err != nil {
		return fmt.Errorf("failed to set sheet row: %w", err)
	}

	return nil
}

// truncateSheetName truncates the given sheet name to a maximum of 31 runes.
// If the name exceeds 31 runes, it returns the first 31 runes of the name.
// Otherwise, it returns the name as is.
func truncateSheetName(name string) string {
	if utf8.RuneCountInString(name) > 31 {
		runes := []rune(name)
		return string(runes[:31])
	}
	return name
}
