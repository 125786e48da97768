package app

import (
	"context"
	"fmt"
	"time"

	"ippt_reminder_bot/internal/domain/audit"
	"ippt_reminder_bot/internal/domain/compliance"
	"ippt_reminder_bot/internal/domain/person"
	"ippt_reminder_bot/internal/domain/window"
)

// OverrideService is the admin path into completion and deferment state.
// Every mutation is validated before any write, replaces rather than
// merges, and appends an audit entry. Batch calls are continue-on-error
// across targets.
type OverrideService struct {
	persons     person.Repository
	completions compliance.CompletionRepository
	deferments  compliance.DefermentRepository
	auditSink   audit.Sink
	adminPolicy *AdminPolicy
	windowDays  int
	location    *time.Location
	now         func() time.Time
}

func NewOverrideService(
	pr person.Repository,
	cr compliance.CompletionRepository,
	dr compliance.DefermentRepository,
	sink audit.Sink,
	policy *AdminPolicy,
	windowDays int,
	location *time.Location,
	now func() time.Time,
) *OverrideService {
	return &OverrideService{
		persons:     pr,
		completions: cr,
		deferments:  dr,
		auditSink:   sink,
		adminPolicy: policy,
		windowDays:  windowDays,
		location:    location,
		now:         now,
	}
}

func (s *OverrideService) today() time.Time {
	return window.DateOf(s.now().In(s.location))
}

// OverrideComplete records completions for each target. With an explicit
// date, the date must fall inside the target cycle (not merely its window:
// overdue completions are legitimately recorded after the window closes but
// before the cycle ends). Without a date it records today against the
// current cycle. Prior records for the cycle year are replaced.
func (s *OverrideService) OverrideComplete(ctx context.Context, actorID int64, targets []string, explicitDate *time.Time, explicitCycleYear *int) ([]TargetOutcome, error) {
	if !s.adminPolicy.IsAdmin(actorID) {
		return nil, ErrNotAuthorized
	}

	outcomes := make([]TargetOutcome, 0, len(targets))
	for _, target := range targets {
		p, err := resolveTarget(ctx, s.persons, target)
		if err != nil {
			outcomes = append(outcomes, TargetOutcome{Target: target, Err: err})
			continue
		}

		completedOn := s.today()
		if explicitDate != nil {
			completedOn = window.DateOf(*explicitDate)
		}
		var cycle window.Cycle
		if explicitCycleYear != nil {
			cycle = window.CycleForYear(p.Anchor(), *explicitCycleYear)
		} else {
			cycle = window.CycleContaining(p.Anchor(), completedOn)
		}
		if !cycle.Contains(completedOn) {
			outcomes = append(outcomes, TargetOutcome{Target: target, PersonID: p.ID, Err: &OutOfCycleError{Cycle: cycle}})
			continue
		}

		rec := &compliance.CompletionRecord{
			PersonID:    p.ID,
			CycleYear:   cycle.Year(),
			CompletedOn: completedOn,
			RecordedVia: compliance.RecordedViaAdmin,
		}
		if err := s.completions.Upsert(ctx, rec); err != nil {
			outcomes = append(outcomes, TargetOutcome{Target: target, PersonID: p.ID, Err: err})
			continue
		}

		payload := fmt.Sprintf("cycle_year=%d completed_on=%s", rec.CycleYear, completedOn.Format("2006-01-02"))
		outcomes = append(outcomes, s.audited(ctx, actorID, audit.ActionOverrideComplete, target, p.ID, payload))
	}
	return outcomes, nil
}

// OverrideUncomplete deletes the completion record for the resolved cycle
// year. Admins are not bound by the in-window restriction that applies to
// self-service.
func (s *OverrideService) OverrideUncomplete(ctx context.Context, actorID int64, targets []string, explicitCycleYear *int) ([]TargetOutcome, error) {
	if !s.adminPolicy.IsAdmin(actorID) {
		return nil, ErrNotAuthorized
	}

	outcomes := make([]TargetOutcome, 0, len(targets))
	for _, target := range targets {
		p, err := resolveTarget(ctx, s.persons, target)
		if err != nil {
			outcomes = append(outcomes, TargetOutcome{Target: target, Err: err})
			continue
		}

		cycleYear := s.resolveCycleYear(p, explicitCycleYear)
		if err := s.completions.Delete(ctx, p.ID, cycleYear); err != nil {
			outcomes = append(outcomes, TargetOutcome{Target: target, PersonID: p.ID, Err: err})
			continue
		}

		payload := fmt.Sprintf("cycle_year=%d", cycleYear)
		outcomes = append(outcomes, s.audited(ctx, actorID, audit.ActionOverrideUncomplete, target, p.ID, payload))
	}
	return outcomes, nil
}

// SetDeferment upserts an approved deferment for the resolved cycle year.
func (s *OverrideService) SetDeferment(ctx context.Context, actorID int64, targets []string, explicitCycleYear *int, reason string) ([]TargetOutcome, error) {
	if !s.adminPolicy.IsAdmin(actorID) {
		return nil, ErrNotAuthorized
	}

	outcomes := make([]TargetOutcome, 0, len(targets))
	for _, target := range targets {
		p, err := resolveTarget(ctx, s.persons, target)
		if err != nil {
			outcomes = append(outcomes, TargetOutcome{Target: target, Err: err})
			continue
		}

		cycleYear := s.resolveCycleYear(p, explicitCycleYear)
		rec := &compliance.DefermentRecord{
			PersonID:  p.ID,
			CycleYear: cycleYear,
			Reason:    reason,
			Status:    compliance.DefermentApproved,
			DecidedBy: actorID,
		}
		if err := s.deferments.Upsert(ctx, rec); err != nil {
			outcomes = append(outcomes, TargetOutcome{Target: target, PersonID: p.ID, Err: err})
			continue
		}

		payload := fmt.Sprintf("cycle_year=%d reason=%q", cycleYear, reason)
		outcomes = append(outcomes, s.audited(ctx, actorID, audit.ActionSetDeferment, target, p.ID, payload))
	}
	return outcomes, nil
}

// ClearDeferment deletes the deferment for the resolved cycle year.
func (s *OverrideService) ClearDeferment(ctx context.Context, actorID int64, targets []string, explicitCycleYear *int) ([]TargetOutcome, error) {
	if !s.adminPolicy.IsAdmin(actorID) {
		return nil, ErrNotAuthorized
	}

	outcomes := make([]TargetOutcome, 0, len(targets))
	for _, target := range targets {
		p, err := resolveTarget(ctx, s.persons, target)
		if err != nil {
			outcomes = append(outcomes, TargetOutcome{Target: target, Err: err})
			continue
		}

		cycleYear := s.resolveCycleYear(p, explicitCycleYear)
		if err := s.deferments.Delete(ctx, p.ID, cycleYear); err != nil {
			outcomes = append(outcomes, TargetOutcome{Target: target, PersonID: p.ID, Err: err})
			continue
		}

		payload := fmt.Sprintf("cycle_year=%d", cycleYear)
		outcomes = append(outcomes, s.audited(ctx, actorID, audit.ActionClearDeferment, target, p.ID, payload))
	}
	return outcomes, nil
}

// resolveCycleYear defaults to the cycle containing today, which is also
// the cycle owning the current (or most recently closed) window.
func (s *OverrideService) resolveCycleYear(p *person.Person, explicit *int) int {
	if explicit != nil {
		return *explicit
	}
	return window.CycleContaining(p.Anchor(), s.today()).Year()
}

func (s *OverrideService) audited(ctx context.Context, actorID int64, action, target, personID, payload string) TargetOutcome {
	if err := s.auditSink.Append(ctx, audit.NewEntry(actorID, action, personID, payload)); err != nil {
		return TargetOutcome{Target: target, PersonID: personID, Err: fmt.Errorf("mutation applied but audit append failed: %w", err)}
	}
	return TargetOutcome{Target: target, PersonID: personID}
}
