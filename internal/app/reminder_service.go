package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ippt_reminder_bot/internal/domain/compliance"
	"ippt_reminder_bot/internal/domain/person"
	domainTelegram "ippt_reminder_bot/internal/domain/telegram"
	"ippt_reminder_bot/internal/domain/window"

	"github.com/sirupsen/logrus"
)

// ReminderService runs the daily sweep: fire due reminders for in-window,
// non-terminal persons and expire deferments whose window has closed. A
// failure for one person never blocks the rest.
type ReminderService struct {
	persons        person.Repository
	completions    compliance.CompletionRepository
	deferments     compliance.DefermentRepository
	cursors        compliance.ReminderCursorRepository
	telegramClient domainTelegram.Client
	logger         *logrus.Entry
	windowDays     int
	intervalDays   int
	location       *time.Location
	now            func() time.Time
}

func NewReminderService(
	pr person.Repository,
	cr compliance.CompletionRepository,
	dr compliance.DefermentRepository,
	rc compliance.ReminderCursorRepository,
	tc domainTelegram.Client,
	logger *logrus.Entry,
	windowDays int,
	intervalDays int,
	location *time.Location,
	now func() time.Time,
) *ReminderService {
	return &ReminderService{
		persons:        pr,
		completions:    cr,
		deferments:     dr,
		cursors:        rc,
		telegramClient: tc,
		logger:         logger,
		windowDays:     windowDays,
		intervalDays:   intervalDays,
		location:       location,
		now:            now,
	}
}

// SweepStats summarizes one daily sweep for logging and tests.
type SweepStats struct {
	Persons          int
	RemindersSent    int
	SendFailures     int
	DefermentsPurged int
}

// RunDailySweep processes every roster entry once for the given day.
// Sequential by design: the volume is a roster of people, not a pipeline.
func (s *ReminderService) RunDailySweep(ctx context.Context) (SweepStats, error) {
	today := window.DateOf(s.now().In(s.location))
	s.logger.WithField("today", today.Format("2006-01-02")).Info("Starting daily sweep")

	persons, err := s.persons.ListAll(ctx)
	if err != nil {
		return SweepStats{}, fmt.Errorf("failed to list persons for sweep: %w", err)
	}

	stats := SweepStats{Persons: len(persons)}
	for _, p := range persons {
		s.sweepPerson(ctx, p, today, &stats)
	}

	s.logger.WithFields(logrus.Fields{
		"persons":           stats.Persons,
		"reminders_sent":    stats.RemindersSent,
		"send_failures":     stats.SendFailures,
		"deferments_purged": stats.DefermentsPurged,
	}).Info("Daily sweep finished")
	return stats, nil
}

func (s *ReminderService) sweepPerson(ctx context.Context, p *person.Person, today time.Time, stats *SweepStats) {
	personLogger := s.logger.WithField("person_id", p.ID)

	inWindow, w := window.WindowContaining(p.Anchor(), today, s.windowDays)
	cycleYear := w.Start.Year()

	// Window-scoped deferments do not carry into future cycles: once the
	// window end has passed, the record is deleted so the next cycle
	// starts clean. This runs for unlinked persons too.
	if today.After(w.End) {
		if err := s.deferments.Delete(ctx, p.ID, cycleYear); err == nil {
			stats.DefermentsPurged++
			personLogger.WithField("cycle_year", cycleYear).Info("Expired deferment removed")
		} else if !errors.Is(err, compliance.ErrDefermentNotFound) {
			personLogger.WithError(err).Error("Failed to expire deferment")
		}
		return
	}

	if !inWindow || !p.Linked() {
		return
	}

	comp, def, err := fetchRecords(ctx, s.completions, s.deferments, p.ID, cycleYear)
	if err != nil {
		personLogger.WithError(err).Error("Failed to load records, skipping person")
		return
	}
	eval := compliance.Evaluate(p.Anchor(), cycleYear, today, comp, def, s.windowDays)
	if eval.RemindersSuppressed(today) {
		return
	}

	next, ok := window.NextReminderDate(w, today, s.intervalDays)
	if !ok || !next.Equal(today) {
		return
	}

	lastRemindedOn, found, err := s.cursors.Get(ctx, p.ID, cycleYear)
	if err != nil {
		personLogger.WithError(err).Error("Failed to read reminder cursor, skipping person")
		return
	}
	if found && lastRemindedOn.Equal(today) {
		return
	}

	daysLeft := window.DaysBetween(today, w.End)
	text := fmt.Sprintf(
		"⚠️ IPPT Reminder\nYour window is %s → %s.\nDays left: %d.\nInterval: every %d days.\n\nReply /complete once you've done it to stop reminders, or contact an admin if you need a deferment.",
		w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"), daysLeft, s.intervalDays,
	)
	if err := s.telegramClient.SendMessage(p.TelegramID.Int64, text, nil); err != nil {
		// Cursor deliberately untouched: the next attempt happens on the
		// next grid day, not tomorrow. No same-sweep retry.
		stats.SendFailures++
		personLogger.WithError(err).Warn("Reminder send failed")
		return
	}

	if err := s.cursors.Set(ctx, p.ID, cycleYear, today); err != nil {
		personLogger.WithError(err).Error("Reminder sent but cursor update failed")
	}
	stats.RemindersSent++
	personLogger.WithFields(logrus.Fields{
		"cycle_year": cycleYear,
		"days_left":  daysLeft,
	}).Info("Reminder sent")
}
