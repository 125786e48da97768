package app

import (
	"context"
	"fmt"
	"time"

	"ippt_reminder_bot/internal/domain/compliance"
	"ippt_reminder_bot/internal/domain/person"
	"ippt_reminder_bot/internal/domain/window"
)

// ReportService is a read-only projection over the same records every other
// consumer uses. It never requires a linked Telegram identity: status is
// derivable from the anchor date and stored records alone.
type ReportService struct {
	persons     person.Repository
	completions compliance.CompletionRepository
	deferments  compliance.DefermentRepository
	windowDays  int
	location    *time.Location
	now         func() time.Time
}

func NewReportService(
	pr person.Repository,
	cr compliance.CompletionRepository,
	dr compliance.DefermentRepository,
	windowDays int,
	location *time.Location,
	now func() time.Time,
) *ReportService {
	return &ReportService{
		persons:     pr,
		completions: cr,
		deferments:  dr,
		windowDays:  windowDays,
		location:    location,
		now:         now,
	}
}

func (s *ReportService) today() time.Time {
	return window.DateOf(s.now().In(s.location))
}

// CycleRow is one cycle of a person's history.
type CycleRow struct {
	CycleYear   int
	CycleStart  time.Time
	CycleEnd    time.Time // exclusive
	WindowEnd   time.Time
	Status      compliance.Status
	OverdueDays int
	CompletedOn time.Time // zero when not completed
	Note        string    // admin-entered deferment reason, when relevant
}

// CycleRows projects the person's status across an inclusive cycle-year
// range, one row per cycle, oldest first.
func (s *ReportService) CycleRows(ctx context.Context, personnelID string, fromYear, toYear int) ([]CycleRow, error) {
	if fromYear > toYear {
		return nil, fmt.Errorf("invalid cycle range %d–%d", fromYear, toYear)
	}
	p, err := s.persons.GetByID(ctx, personnelID)
	if err != nil {
		return nil, err
	}

	today := s.today()
	rows := make([]CycleRow, 0, toYear-fromYear+1)
	for year := fromYear; year <= toYear; year++ {
		comp, def, err := fetchRecords(ctx, s.completions, s.deferments, p.ID, year)
		if err != nil {
			return nil, err
		}
		eval := compliance.Evaluate(p.Anchor(), year, today, comp, def, s.windowDays)

		row := CycleRow{
			CycleYear:   year,
			CycleStart:  eval.Cycle.Start,
			CycleEnd:    eval.Cycle.EndExclusive,
			WindowEnd:   eval.Window.End,
			Status:      eval.Status,
			OverdueDays: eval.OverdueDays,
			CompletedOn: eval.CompletedOn,
		}
		if !eval.Completed() && def != nil {
			row.Note = def.Reason
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// RosterRow is the current-cycle projection of one roster entry, feeding
// the rendered admin report.
type RosterRow struct {
	PersonnelID     string
	Birthday        time.Time
	Group           string
	Verified        bool
	WindowStart     time.Time
	WindowEnd       time.Time
	Status          compliance.Status
	CompletedOn     time.Time
	DefermentStatus string
	DefermentReason string
	DaysLeft        int // valid while the window has not closed
	DaysOverdue     int // valid once the window has closed without completion
	Outstanding     bool
}

// RosterReport projects every person's current cycle. A row is outstanding
// when the obligation is neither completed nor covered by an approved
// deferment.
type RosterReport struct {
	Today       time.Time
	Rows        []RosterRow
	Completed   int
	Outstanding int
}

// BuildRosterReport assembles the current-cycle report across the whole
// roster, unlinked persons included.
func (s *ReportService) BuildRosterReport(ctx context.Context) (*RosterReport, error) {
	persons, err := s.persons.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list persons for report: %w", err)
	}

	today := s.today()
	report := &RosterReport{Today: today, Rows: make([]RosterRow, 0, len(persons))}
	for _, p := range persons {
		cycleYear := window.CycleContaining(p.Anchor(), today).Year()
		comp, def, err := fetchRecords(ctx, s.completions, s.deferments, p.ID, cycleYear)
		if err != nil {
			return nil, err
		}
		eval := compliance.Evaluate(p.Anchor(), cycleYear, today, comp, def, s.windowDays)

		row := RosterRow{
			PersonnelID: p.ID,
			Birthday:    p.Birthday,
			Group:       p.Group.String,
			Verified:    p.Linked(),
			WindowStart: eval.Window.Start,
			WindowEnd:   eval.Window.End,
			Status:      eval.Status,
			CompletedOn: eval.CompletedOn,
		}
		if def != nil {
			row.DefermentStatus = string(def.Status)
			row.DefermentReason = def.Reason
		}
		if eval.Completed() {
			report.Completed++
		} else {
			report.Outstanding++
			if !today.After(eval.Window.End) {
				row.DaysLeft = window.DaysBetween(today, eval.Window.End)
			} else {
				row.DaysOverdue = window.DaysBetween(eval.Window.End, today)
			}
			row.Outstanding = def == nil
		}
		report.Rows = append(report.Rows, row)
	}
	return report, nil
}
