// Package report renders roster projections for admins. The aggregation
// itself lives in the app layer; this package only knows the output format.
package report

import (
	"bytes"
	"fmt"
	"time"

	"ippt_reminder_bot/internal/app"

	"github.com/xuri/excelize/v2"
)

var headers = []string{
	"personnel_id", "birthday", "group_name", "verified",
	"window_start", "window_end",
	"status", "completed_on",
	"deferment_status", "deferment_reason",
	"days_left", "days_overdue",
}

// RenderRosterXLSX renders the roster report as a spreadsheet. Rows that
// are outstanding (not completed, no approved deferment) are filled red.
func RenderRosterXLSX(r *app.RosterReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := fmt.Sprintf("IPPT %d", r.Today.Year())
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("failed to name report sheet: %w", err)
	}

	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	redFill, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FFC0C0"}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create highlight style: %w", err)
	}

	headerRow := make([]interface{}, len(headers))
	for i, h := range headers {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		return nil, fmt.Errorf("failed to write report header: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", boldStyle); err != nil {
		return nil, fmt.Errorf("failed to style report header: %w", err)
	}

	for i, row := range r.Rows {
		rowNum := i + 2
		cells := []interface{}{
			row.PersonnelID,
			formatDate(row.Birthday),
			row.Group,
			yesNo(row.Verified),
			formatDate(row.WindowStart),
			formatDate(row.WindowEnd),
			string(row.Status),
			formatDate(row.CompletedOn),
			row.DefermentStatus,
			row.DefermentReason,
			blankZero(row.DaysLeft),
			blankZero(row.DaysOverdue),
		}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", rowNum), &cells); err != nil {
			return nil, fmt.Errorf("failed to write report row %d: %w", rowNum, err)
		}
		if row.Outstanding {
			start := fmt.Sprintf("A%d", rowNum)
			end := fmt.Sprintf("%s%d", lastCol, rowNum)
			if err := f.SetCellStyle(sheet, start, end, redFill); err != nil {
				return nil, fmt.Errorf("failed to highlight report row %d: %w", rowNum, err)
			}
		}
	}

	if err := f.SetColWidth(sheet, "A", lastCol, 16); err != nil {
		return nil, fmt.Errorf("failed to size report columns: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize report workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Caption summarizes the report for the message accompanying the file.
func Caption(r *app.RosterReport) string {
	return fmt.Sprintf(
		"Report for %d\nCompleted: %d\nOutstanding: %d\nRed rows: not completed and no approved deferment",
		r.Today.Year(), r.Completed, r.Outstanding,
	)
}

func formatDate(d time.Time) string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func blankZero(n int) interface{} {
	if n == 0 {
		return ""
	}
	return n
}
