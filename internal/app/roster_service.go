package app

import (
	"context"
	"fmt"
	"time"

	"ippt_reminder_bot/internal/domain/audit"
	"ippt_reminder_bot/internal/domain/person"
	"ippt_reminder_bot/internal/domain/window"
)

// RosterService covers the admin roster operations: adding and removing
// personnel, correcting anchor dates, unlinking Telegram identities and
// bulk import. The file parsing itself lives in infra; this service only
// sees already-extracted entries.
type RosterService struct {
	persons     person.Repository
	auditSink   audit.Sink
	adminPolicy *AdminPolicy
}

func NewRosterService(pr person.Repository, sink audit.Sink, policy *AdminPolicy) *RosterService {
	return &RosterService{persons: pr, auditSink: sink, adminPolicy: policy}
}

// AddPersonnel creates a roster entry. Group may be empty.
func (s *RosterService) AddPersonnel(ctx context.Context, actorID int64, personnelID string, birthday time.Time, group string) (*person.Person, error) {
	if !s.adminPolicy.IsAdmin(actorID) {
		return nil, ErrNotAuthorized
	}

	p := &person.Person{ID: personnelID, Birthday: window.DateOf(birthday)}
	if group != "" {
		p.Group.String = group
		p.Group.Valid = true
	}
	if err := s.persons.Create(ctx, p); err != nil {
		return nil, err
	}

	payload := fmt.Sprintf("birthday=%s group=%q", p.Birthday.Format("2006-01-02"), group)
	if err := s.auditSink.Append(ctx, audit.NewEntry(actorID, audit.ActionAddPersonnel, personnelID, payload)); err != nil {
		return nil, fmt.Errorf("personnel added but audit append failed: %w", err)
	}
	return p, nil
}

// UpdateBirthday corrects a person's anchor date.
func (s *RosterService) UpdateBirthday(ctx context.Context, actorID int64, personnelID string, birthday time.Time) error {
	if !s.adminPolicy.IsAdmin(actorID) {
		return ErrNotAuthorized
	}
	if err := s.persons.UpdateBirthday(ctx, personnelID, window.DateOf(birthday)); err != nil {
		return err
	}
	payload := fmt.Sprintf("birthday=%s", window.DateOf(birthday).Format("2006-01-02"))
	return s.auditSink.Append(ctx, audit.NewEntry(actorID, audit.ActionUpdateBirthday, personnelID, payload))
}

// RemovePersonnel deletes each target person along with their records.
func (s *RosterService) RemovePersonnel(ctx context.Context, actorID int64, personnelIDs []string) ([]TargetOutcome, error) {
	if !s.adminPolicy.IsAdmin(actorID) {
		return nil, ErrNotAuthorized
	}

	outcomes := make([]TargetOutcome, 0, len(personnelIDs))
	for _, id := range personnelIDs {
		if err := s.persons.Remove(ctx, id); err != nil {
			outcomes = append(outcomes, TargetOutcome{Target: id, Err: err})
			continue
		}
		if err := s.auditSink.Append(ctx, audit.NewEntry(actorID, audit.ActionRemovePersonnel, id, "")); err != nil {
			outcomes = append(outcomes, TargetOutcome{Target: id, PersonID: id, Err: fmt.Errorf("personnel removed but audit append failed: %w", err)})
			continue
		}
		outcomes = append(outcomes, TargetOutcome{Target: id, PersonID: id})
	}
	return outcomes, nil
}

// UnlinkUsers detaches Telegram identities from each target, keeping the
// roster entries and their history. Targets may mix Telegram IDs and
// personnel IDs.
func (s *RosterService) UnlinkUsers(ctx context.Context, actorID int64, targets []string) ([]TargetOutcome, error) {
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
		if err := s.persons.Unlink(ctx, p.ID); err != nil {
			outcomes = append(outcomes, TargetOutcome{Target: target, PersonID: p.ID, Err: err})
			continue
		}
		if err := s.auditSink.Append(ctx, audit.NewEntry(actorID, audit.ActionUnlinkUser, p.ID, "")); err != nil {
			outcomes = append(outcomes, TargetOutcome{Target: target, PersonID: p.ID, Err: fmt.Errorf("unlinked but audit append failed: %w", err)})
			continue
		}
		outcomes = append(outcomes, TargetOutcome{Target: target, PersonID: p.ID})
	}
	return outcomes, nil
}

// RosterEntry is one row extracted from an uploaded roster file. Birthday
// is kept raw so the service owns validation.
type RosterEntry struct {
	PersonnelID string
	Birthday    string
	Group       string
}

// ImportSummary reports the outcome of a bulk roster import.
type ImportSummary struct {
	Added   int
	Updated int
	Skipped int
}

// ImportRoster upserts each entry independently: rows with a missing ID or
// an unparseable birthday are counted as skipped, never aborting the rest.
func (s *RosterService) ImportRoster(ctx context.Context, actorID int64, entries []RosterEntry) (ImportSummary, error) {
	if !s.adminPolicy.IsAdmin(actorID) {
		return ImportSummary{}, ErrNotAuthorized
	}

	var summary ImportSummary
	for _, e := range entries {
		if e.PersonnelID == "" || e.Birthday == "" {
			summary.Skipped++
			continue
		}
		birthday, err := time.Parse("2006-01-02", e.Birthday)
		if err != nil {
			summary.Skipped++
			continue
		}
		created, err := s.persons.Upsert(ctx, e.PersonnelID, window.DateOf(birthday), e.Group)
		if err != nil {
			summary.Skipped++
			continue
		}
		if created {
			summary.Added++
		} else {
			summary.Updated++
		}
	}

	payload := fmt.Sprintf("added=%d updated=%d skipped=%d", summary.Added, summary.Updated, summary.Skipped)
	if err := s.auditSink.Append(ctx, audit.NewEntry(actorID, audit.ActionImportRoster, "roster", payload)); err != nil {
		return summary, fmt.Errorf("import applied but audit append failed: %w", err)
	}
	return summary, nil
}
