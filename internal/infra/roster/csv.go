// Package roster extracts personnel records from uploaded roster files.
// The services never see file formats, only extracted entries.
package roster

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Record is one raw row from a roster file. Birthday stays unparsed; the
// importer owns validation.
type Record struct {
	PersonnelID string
	Birthday    string
	Group       string
}

// ParseCSV reads a roster CSV. Header names are matched case-insensitively
// after trimming BOM and zero-width characters; the group column is
// optional under several aliases.
func ParseCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read roster header: %w", err)
	}

	pidIdx, dobIdx, grpIdx := -1, -1, -1
	for i, h := range header {
		switch nh := normalizeHeader(h); {
		case nh == "personnel_id" || nh == "personnel id" || (strings.Contains(nh, "personnel") && strings.Contains(nh, "id")):
			pidIdx = i
		case nh == "birthday" || nh == "dob" || nh == "dateofbirth" || nh == "date of birth":
			dobIdx = i
		case nh == "group" || nh == "group_name" || nh == "grp" || nh == "team":
			grpIdx = i
		}
	}
	if pidIdx < 0 || dobIdx < 0 {
		return nil, fmt.Errorf("roster file is missing personnel_id or birthday column")
	}

	var records []Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read roster row: %w", err)
		}
		rec := Record{
			PersonnelID: field(row, pidIdx),
			Birthday:    field(row, dobIdx),
			Group:       field(row, grpIdx),
		}
		records = append(records, rec)
	}
	return records, nil
}

func normalizeHeader(name string) string {
	name = strings.TrimPrefix(name, "\ufeff")
	name = strings.ReplaceAll(name, "\u200b", "")
	return strings.ToLower(strings.TrimSpace(name))
}

func field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
