package roster

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ParseXLSX reads a roster spreadsheet: first sheet, same columns as the
// CSV form. Cells already formatted as dates come through in their
// displayed form and are validated downstream like any other value.
func ParseXLSX(r io.Reader) ([]Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open roster workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("roster workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read roster sheet: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("roster sheet is empty")
	}

	pidIdx, dobIdx, grpIdx := -1, -1, -1
	for i, h := range rows[0] {
		switch nh := normalizeHeader(h); {
		case nh == "personnel_id" || nh == "personnel id" || nh == "id" || (strings.Contains(nh, "personnel") && strings.Contains(nh, "id")):
			pidIdx = i
		case nh == "birthday" || nh == "dob" || nh == "dateofbirth" || nh == "date of birth":
			dobIdx = i
		case nh == "group" || nh == "group_name" || nh == "grp" || nh == "team":
			grpIdx = i
		}
	}
	if pidIdx < 0 || dobIdx < 0 {
		return nil, fmt.Errorf("roster sheet is missing personnel_id or birthday column")
	}

	records := make([]Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		records = append(records, Record{
			PersonnelID: field(row, pidIdx),
			Birthday:    field(row, dobIdx),
			Group:       field(row, grpIdx),
		})
	}
	return records, nil
}
