package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ippt_reminder_bot/internal/domain/compliance"
	"ippt_reminder_bot/internal/domain/person"
	"ippt_reminder_bot/internal/domain/window"
)

var ErrBirthdayMismatch = errors.New("personnel ID and birthday do not match the roster")

// ComplianceService handles the self-service flows: identity verification,
// status lookup, completion and uncompletion. All date math happens on the
// current window of the person's own cycle.
type ComplianceService struct {
	persons      person.Repository
	completions  compliance.CompletionRepository
	deferments   compliance.DefermentRepository
	windowDays   int
	intervalDays int
	location     *time.Location
	now          func() time.Time
}

func NewComplianceService(
	pr person.Repository,
	cr compliance.CompletionRepository,
	dr compliance.DefermentRepository,
	windowDays int,
	intervalDays int,
	location *time.Location,
	now func() time.Time,
) *ComplianceService {
	return &ComplianceService{
		persons:      pr,
		completions:  cr,
		deferments:   dr,
		windowDays:   windowDays,
		intervalDays: intervalDays,
		location:     location,
		now:          now,
	}
}

func (s *ComplianceService) today() time.Time {
	return window.DateOf(s.now().In(s.location))
}

// Verify links a Telegram identity to a roster entry after cross-checking
// the supplied birthday. Re-verifying moves the identity; the roster entry
// keeps all of its history either way.
func (s *ComplianceService) Verify(ctx context.Context, telegramID int64, personnelID string, birthday time.Time) (*person.Person, error) {
	p, err := s.persons.GetByID(ctx, personnelID)
	if err != nil {
		return nil, err
	}
	if !window.DateOf(p.Birthday).Equal(window.DateOf(birthday)) {
		return nil, ErrBirthdayMismatch
	}
	if err := s.persons.Link(ctx, p.ID, telegramID, s.now()); err != nil {
		return nil, fmt.Errorf("failed to link telegram identity: %w", err)
	}
	return s.persons.GetByID(ctx, personnelID)
}

// StatusView is the self-service snapshot for the current cycle.
type StatusView struct {
	Person       *person.Person
	Today        time.Time
	InWindow     bool
	Evaluation   compliance.Evaluation
	NextReminder time.Time
	HasReminder  bool
	IntervalDays int
}

// Status reports the caller's current window and derived status.
func (s *ComplianceService) Status(ctx context.Context, telegramID int64) (*StatusView, error) {
	p, err := s.persons.GetByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, person.ErrNotFound) {
			return nil, ErrNotVerified
		}
		return nil, err
	}

	today := s.today()
	inWindow, w := window.WindowContaining(p.Anchor(), today, s.windowDays)
	cycleYear := w.Start.Year()

	comp, def, err := fetchRecords(ctx, s.completions, s.deferments, p.ID, cycleYear)
	if err != nil {
		return nil, err
	}
	eval := compliance.Evaluate(p.Anchor(), cycleYear, today, comp, def, s.windowDays)

	view := &StatusView{
		Person:       p,
		Today:        today,
		InWindow:     inWindow,
		Evaluation:   eval,
		IntervalDays: s.intervalDays,
	}
	if !eval.Completed() {
		view.NextReminder, view.HasReminder = window.NextReminderDate(w, today, s.intervalDays)
	}
	return view, nil
}

// SelfComplete records a completion for the current cycle. The date (today
// unless explicitly supplied) must fall inside the current window;
// anything else is rejected before any write.
func (s *ComplianceService) SelfComplete(ctx context.Context, telegramID int64, explicitDate *time.Time) (compliance.Evaluation, error) {
	p, err := s.persons.GetByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, person.ErrNotFound) {
			return compliance.Evaluation{}, ErrNotVerified
		}
		return compliance.Evaluation{}, err
	}

	today := s.today()
	inWindow, w := window.WindowContaining(p.Anchor(), today, s.windowDays)

	completedOn := today
	if explicitDate != nil {
		completedOn = window.DateOf(*explicitDate)
	}
	if !inWindow || !w.Contains(completedOn) {
		return compliance.Evaluation{}, &OutOfWindowError{Window: w}
	}

	rec := &compliance.CompletionRecord{
		PersonID:    p.ID,
		CycleYear:   w.Start.Year(),
		CompletedOn: completedOn,
		RecordedVia: compliance.RecordedViaSelf,
	}
	if err := s.completions.Upsert(ctx, rec); err != nil {
		return compliance.Evaluation{}, fmt.Errorf("failed to record completion: %w", err)
	}

	def, err := getDeferment(ctx, s.deferments, p.ID, rec.CycleYear)
	if err != nil {
		return compliance.Evaluation{}, err
	}
	return compliance.Evaluate(p.Anchor(), rec.CycleYear, today, rec, def, s.windowDays), nil
}

// SelfUncomplete removes the caller's completion for the current cycle.
// Permitted only while the current window is active, and only for the
// current cycle year. Returns the cycle year that was cleared.
func (s *ComplianceService) SelfUncomplete(ctx context.Context, telegramID int64) (int, error) {
	p, err := s.persons.GetByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, person.ErrNotFound) {
			return 0, ErrNotVerified
		}
		return 0, err
	}

	today := s.today()
	inWindow, w := window.WindowContaining(p.Anchor(), today, s.windowDays)
	if !inWindow {
		return 0, &OutOfWindowError{Window: w}
	}

	cycleYear := w.Start.Year()
	if err := s.completions.Delete(ctx, p.ID, cycleYear); err != nil {
		return 0, err
	}
	return cycleYear, nil
}

func getCompletion(ctx context.Context, repo compliance.CompletionRepository, personID string, cycleYear int) (*compliance.CompletionRecord, error) {
	rec, err := repo.Get(ctx, personID, cycleYear)
	if errors.Is(err, compliance.ErrCompletionNotFound) {
		return nil, nil
	}
	return rec, err
}

func getDeferment(ctx context.Context, repo compliance.DefermentRepository, personID string, cycleYear int) (*compliance.DefermentRecord, error) {
	rec, err := repo.Get(ctx, personID, cycleYear)
	if errors.Is(err, compliance.ErrDefermentNotFound) {
		return nil, nil
	}
	return rec, err
}

func fetchRecords(ctx context.Context, cr compliance.CompletionRepository, dr compliance.DefermentRepository, personID string, cycleYear int) (*compliance.CompletionRecord, *compliance.DefermentRecord, error) {
	comp, err := getCompletion(ctx, cr, personID, cycleYear)
	if err != nil {
		return nil, nil, err
	}
	def, err := getDeferment(ctx, dr, personID, cycleYear)
	if err != nil {
		return nil, nil, err
	}
	return comp, def, nil
}
