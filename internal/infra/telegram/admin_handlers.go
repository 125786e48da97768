package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ippt_reminder_bot/internal/app"
	"ippt_reminder_bot/internal/domain/compliance"
	"ippt_reminder_bot/internal/domain/person"
	"ippt_reminder_bot/internal/infra/report"
	"ippt_reminder_bot/internal/infra/roster"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const adminHelpText = `Admin commands:

Roster:
• /add_personnel <ID> <YYYY-MM-DD> [GROUP] — add one person
• /set_birthday <ID> <YYYY-MM-DD> — correct an anchor date
• /remove_personnel <ID>[, <ID>...] — delete persons and their records
• /unlink_user <ID or TG_ID>[, ...] — detach Telegram identities
• /import_roster — then send a .csv or .xlsx roster file

Overrides (targets are personnel IDs or Telegram IDs, comma/space separated):
• /admin_complete <targets> [YYYY-MM-DD] [year=YYYY]
• /admin_uncomplete <targets> [year=YYYY]
• /defer_approve <targets> [year=YYYY] [-- reason]
• /defer_clear <targets> [year=YYYY]

Reports:
• /report — roster spreadsheet for the current cycle`

const (
	notAuthorizedText = "You are not authorized to use admin commands."
	internalErrorText = "An error occurred. Please try again later."
)

// RegisterAdminHandlers registers the management commands. Authorization is
// enforced in the services; handlers only translate errors into replies.
func RegisterAdminHandlers(
	ctx context.Context,
	b *telebot.Bot,
	overrideService *app.OverrideService,
	rosterService *app.RosterService,
	reportService *app.ReportService,
	adminPolicy *app.AdminPolicy,
	baseLogger *logrus.Entry,
) {
	awaitingRoster := make(map[int64]bool)

	b.Handle("/admin_help", func(c telebot.Context) error {
		if !adminPolicy.IsAdmin(c.Sender().ID) {
			return c.Send(notAuthorizedText)
		}
		return c.Send(adminHelpText)
	})

	b.Handle("/add_personnel", func(c telebot.Context) error {
		logCtx := baseLogger.WithFields(logrus.Fields{"handler": "/add_personnel", "sender_id": c.Sender().ID})
		logCtx.Info("Command received")

		args := c.Args()
		if len(args) < 2 {
			return c.Send("Usage: /add_personnel <ID> <YYYY-MM-DD> [GROUP]")
		}
		birthday, err := time.Parse(dateLayout, args[1])
		if err != nil {
			return c.Send("Invalid birthday. Use YYYY-MM-DD.")
		}
		group := strings.Join(args[2:], " ")

		p, err := rosterService.AddPersonnel(ctx, c.Sender().ID, args[0], birthday, group)
		if err != nil {
			logWithError := logCtx.WithError(err)
			switch {
			case errors.Is(err, app.ErrNotAuthorized):
				logWithError.Warn("Unauthorized access attempt")
				return c.Send(notAuthorizedText)
			case errors.Is(err, person.ErrAlreadyExists):
				logWithError.Warn("Personnel already exists")
				return c.Send(fmt.Sprintf("Personnel %s already exists. Use /set_birthday to correct the date.", args[0]))
			default:
				logWithError.Error("Failed to add personnel")
				return c.Send(internalErrorText)
			}
		}

		logCtx.WithField("person_id", p.ID).Info("Personnel added")
		return c.Send(fmt.Sprintf("✅ Added %s (birthday %s).", p.ID, p.Birthday.Format(dateLayout)))
	})

	b.Handle("/set_birthday", func(c telebot.Context) error {
		logCtx := baseLogger.WithFields(logrus.Fields{"handler": "/set_birthday", "sender_id": c.Sender().ID})
		logCtx.Info("Command received")

		args := c.Args()
		if len(args) != 2 {
			return c.Send("Usage: /set_birthday <ID> <YYYY-MM-DD>")
		}
		birthday, err := time.Parse(dateLayout, args[1])
		if err != nil {
			return c.Send("Invalid birthday. Use YYYY-MM-DD.")
		}

		if err := rosterService.UpdateBirthday(ctx, c.Sender().ID, args[0], birthday); err != nil {
			logWithError := logCtx.WithError(err)
			switch {
			case errors.Is(err, app.ErrNotAuthorized):
				logWithError.Warn("Unauthorized access attempt")
				return c.Send(notAuthorizedText)
			case errors.Is(err, person.ErrNotFound):
				logWithError.Warn("Unknown personnel ID")
				return c.Send(fmt.Sprintf("No such personnel ID: %s", args[0]))
			default:
				logWithError.Error("Failed to update birthday")
				return c.Send(internalErrorText)
			}
		}

		logCtx.WithField("person_id", args[0]).Info("Birthday updated")
		return c.Send(fmt.Sprintf("✅ Birthday for %s set to %s. Windows now follow the new date.", args[0], args[1]))
	})

	b.Handle("/remove_personnel", func(c telebot.Context) error {
		logCtx := baseLogger.WithFields(logrus.Fields{"handler": "/remove_personnel", "sender_id": c.Sender().ID})
		logCtx.Info("Command received")

		targets := splitTargets(c.Message().Payload)
		if len(targets) == 0 {
			return c.Send("Usage: /remove_personnel <ID>[, <ID>...]")
		}

		outcomes, err := rosterService.RemovePersonnel(ctx, c.Sender().ID, targets)
		if err != nil {
			if errors.Is(err, app.ErrNotAuthorized) {
				logCtx.Warn("Unauthorized access attempt")
				return c.Send(notAuthorizedText)
			}
			logCtx.WithError(err).Error("Failed to remove personnel")
			return c.Send(internalErrorText)
		}
		return c.Send(formatOutcomes("removed", outcomes))
	})

	b.Handle("/unlink_user", func(c telebot.Context) error {
		logCtx := baseLogger.WithFields(logrus.Fields{"handler": "/unlink_user", "sender_id": c.Sender().ID})
		logCtx.Info("Command received")

		targets := splitTargets(c.Message().Payload)
		if len(targets) == 0 {
			return c.Send("Usage: /unlink_user <ID or TG_ID>[, ...]")
		}

		outcomes, err := rosterService.UnlinkUsers(ctx, c.Sender().ID, targets)
		if err != nil {
			if errors.Is(err, app.ErrNotAuthorized) {
				logCtx.Warn("Unauthorized access attempt")
				return c.Send(notAuthorizedText)
			}
			logCtx.WithError(err).Error("Failed to unlink users")
			return c.Send(internalErrorText)
		}
		return c.Send(formatOutcomes("unlinked", outcomes))
	})

	b.Handle("/admin_complete", func(c telebot.Context) error {
		logCtx := baseLogger.WithFields(logrus.Fields{"handler": "/admin_complete", "sender_id": c.Sender().ID})
		logCtx.Info("Command received")

		tokens := splitTargets(c.Message().Payload)
		year, tokens := popYearOption(tokens)
		date, tokens, err := popTrailingDate(tokens)
		if err != nil {
			return c.Send("Invalid date. Use YYYY-MM-DD.")
		}
		if len(tokens) == 0 {
			return c.Send("Usage: /admin_complete <targets> [YYYY-MM-DD] [year=YYYY]")
		}

		outcomes, err := overrideService.OverrideComplete(ctx, c.Sender().ID, tokens, date, year)
		if err != nil {
			if errors.Is(err, app.ErrNotAuthorized) {
				logCtx.Warn("Unauthorized access attempt")
				return c.Send(notAuthorizedText)
			}
			logCtx.WithError(err).Error("Override complete failed")
			return c.Send(internalErrorText)
		}
		return c.Send(formatOutcomes("marked completed", outcomes))
	})

	b.Handle("/admin_uncomplete", func(c telebot.Context) error {
		logCtx := baseLogger.WithFields(logrus.Fields{"handler": "/admin_uncomplete", "sender_id": c.Sender().ID})
		logCtx.Info("Command received")

		tokens := splitTargets(c.Message().Payload)
		year, tokens := popYearOption(tokens)
		if len(tokens) == 0 {
			return c.Send("Usage: /admin_uncomplete <targets> [year=YYYY]")
		}

		outcomes, err := overrideService.OverrideUncomplete(ctx, c.Sender().ID, tokens, year)
		if err != nil {
			if errors.Is(err, app.ErrNotAuthorized) {
				logCtx.Warn("Unauthorized access attempt")
				return c.Send(notAuthorizedText)
			}
			logCtx.WithError(err).Error("Override uncomplete failed")
			return c.Send(internalErrorText)
		}
		return c.Send(formatOutcomes("unmarked", outcomes))
	})

	b.Handle("/defer_approve", func(c telebot.Context) error {
		logCtx := baseLogger.WithFields(logrus.Fields{"handler": "/defer_approve", "sender_id": c.Sender().ID})
		logCtx.Info("Command received")

		payload, reason := splitReason(c.Message().Payload)
		tokens := splitTargets(payload)
		year, tokens := popYearOption(tokens)
		if len(tokens) == 0 {
			return c.Send("Usage: /defer_approve <targets> [year=YYYY] [-- reason]")
		}

		outcomes, err := overrideService.SetDeferment(ctx, c.Sender().ID, tokens, year, reason)
		if err != nil {
			if errors.Is(err, app.ErrNotAuthorized) {
				logCtx.Warn("Unauthorized access attempt")
				return c.Send(notAuthorizedText)
			}
			logCtx.WithError(err).Error("Set deferment failed")
			return c.Send(internalErrorText)
		}
		return c.Send(formatOutcomes("deferment approved", outcomes))
	})

	b.Handle("/defer_clear", func(c telebot.Context) error {
		logCtx := baseLogger.WithFields(logrus.Fields{"handler": "/defer_clear", "sender_id": c.Sender().ID})
		logCtx.Info("Command received")

		tokens := splitTargets(c.Message().Payload)
		year, tokens := popYearOption(tokens)
		if len(tokens) == 0 {
			return c.Send("Usage: /defer_clear <targets> [year=YYYY]")
		}

		outcomes, err := overrideService.ClearDeferment(ctx, c.Sender().ID, tokens, year)
		if err != nil {
			if errors.Is(err, app.ErrNotAuthorized) {
				logCtx.Warn("Unauthorized access attempt")
				return c.Send(notAuthorizedText)
			}
			logCtx.WithError(err).Error("Clear deferment failed")
			return c.Send(internalErrorText)
		}
		return c.Send(formatOutcomes("deferment cleared", outcomes))
	})

	b.Handle("/report", func(c telebot.Context) error {
		logCtx := baseLogger.WithFields(logrus.Fields{"handler": "/report", "sender_id": c.Sender().ID})
		logCtx.Info("Command received")

		if !adminPolicy.IsAdmin(c.Sender().ID) {
			logCtx.Warn("Unauthorized access attempt")
			return c.Send(notAuthorizedText)
		}

		rosterReport, err := reportService.BuildRosterReport(ctx)
		if err != nil {
			logCtx.WithError(err).Error("Failed to build roster report")
			return c.Send(internalErrorText)
		}
		if len(rosterReport.Rows) == 0 {
			return c.Send("The roster is empty. Add personnel first.")
		}

		data, err := report.RenderRosterXLSX(rosterReport)
		if err != nil {
			logCtx.WithError(err).Error("Failed to render roster report")
			return c.Send(internalErrorText)
		}

		logCtx.WithField("rows", len(rosterReport.Rows)).Info("Report generated")
		doc := &telebot.Document{
			File:     telebot.FromReader(bytes.NewReader(data)),
			FileName: fmt.Sprintf("ippt_report_%s.xlsx", rosterReport.Today.Format(dateLayout)),
			Caption:  report.Caption(rosterReport),
		}
		return c.Send(doc)
	})

	b.Handle("/import_roster", func(c telebot.Context) error {
		if !adminPolicy.IsAdmin(c.Sender().ID) {
			return c.Send(notAuthorizedText)
		}
		awaitingRoster[c.Sender().ID] = true
		return c.Send("Send the roster file now (.csv or .xlsx with personnel_id, birthday and an optional group column).")
	})

	b.Handle(telebot.OnDocument, func(c telebot.Context) error {
		logCtx := baseLogger.WithFields(logrus.Fields{"handler": "document", "sender_id": c.Sender().ID})

		if !awaitingRoster[c.Sender().ID] {
			return nil
		}
		delete(awaitingRoster, c.Sender().ID)
		logCtx.Info("Roster file received")

		doc := c.Message().Document
		rc, err := b.File(&doc.File)
		if err != nil {
			logCtx.WithError(err).Error("Failed to download roster file")
			return c.Send("Could not download the file. Please try /import_roster again.")
		}
		defer rc.Close()

		var records []roster.Record
		switch strings.ToLower(filepath.Ext(doc.FileName)) {
		case ".csv":
			records, err = roster.ParseCSV(rc)
		case ".xlsx":
			records, err = roster.ParseXLSX(rc)
		default:
			return c.Send("Unsupported file type. Send a .csv or .xlsx roster.")
		}
		if err != nil {
			logCtx.WithError(err).Warn("Roster parse failed")
			return c.Send(fmt.Sprintf("Could not parse the roster: %v", err))
		}

		entries := make([]app.RosterEntry, 0, len(records))
		for _, rec := range records {
			entries = append(entries, app.RosterEntry{
				PersonnelID: rec.PersonnelID,
				Birthday:    rec.Birthday,
				Group:       rec.Group,
			})
		}

		summary, err := rosterService.ImportRoster(ctx, c.Sender().ID, entries)
		if err != nil {
			if errors.Is(err, app.ErrNotAuthorized) {
				return c.Send(notAuthorizedText)
			}
			logCtx.WithError(err).Error("Roster import failed")
			return c.Send(internalErrorText)
		}

		logCtx.WithFields(logrus.Fields{
			"added":   summary.Added,
			"updated": summary.Updated,
			"skipped": summary.Skipped,
		}).Info("Roster imported")
		return c.Send(fmt.Sprintf("Import finished.\nAdded: %d\nUpdated: %d\nSkipped: %d", summary.Added, summary.Updated, summary.Skipped))
	})
}

// splitTargets splits a command payload on commas and whitespace.
func splitTargets(payload string) []string {
	return strings.FieldsFunc(payload, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}

// popYearOption extracts a "year=YYYY" token wherever it appears.
func popYearOption(tokens []string) (*int, []string) {
	rest := make([]string, 0, len(tokens))
	var year *int
	for _, t := range tokens {
		if v, ok := strings.CutPrefix(t, "year="); ok {
			if y, err := strconv.Atoi(v); err == nil {
				year = &y
				continue
			}
		}
		rest = append(rest, t)
	}
	return year, rest
}

// popTrailingDate extracts a trailing YYYY-MM-DD token, if present. A
// malformed date-looking token is an error rather than a target.
func popTrailingDate(tokens []string) (*time.Time, []string, error) {
	if len(tokens) == 0 {
		return nil, tokens, nil
	}
	last := tokens[len(tokens)-1]
	if !strings.Contains(last, "-") {
		return nil, tokens, nil
	}
	d, err := time.Parse(dateLayout, last)
	if err != nil {
		return nil, tokens, err
	}
	return &d, tokens[:len(tokens)-1], nil
}

// splitReason splits "targets -- free text" into its two halves.
func splitReason(payload string) (string, string) {
	if i := strings.Index(payload, "--"); i >= 0 {
		return payload[:i], strings.TrimSpace(payload[i+2:])
	}
	return payload, ""
}

func formatOutcomes(verb string, outcomes []app.TargetOutcome) string {
	ok := 0
	lines := make([]string, 0, len(outcomes)+1)
	for _, o := range outcomes {
		if o.OK() {
			ok++
			lines = append(lines, fmt.Sprintf("✅ %s: %s", o.Target, verb))
			continue
		}
		lines = append(lines, fmt.Sprintf("❌ %s: %s", o.Target, describeOutcomeErr(o.Err)))
	}
	return fmt.Sprintf("Done: %d/%d %s\n%s", ok, len(outcomes), verb, strings.Join(lines, "\n"))
}

func describeOutcomeErr(err error) string {
	var oow *app.OutOfWindowError
	var ooc *app.OutOfCycleError
	switch {
	case errors.Is(err, person.ErrNotFound):
		return "no matching person"
	case errors.Is(err, compliance.ErrCompletionNotFound):
		return "no completion recorded for that cycle"
	case errors.Is(err, compliance.ErrDefermentNotFound):
		return "no deferment recorded for that cycle"
	case errors.As(err, &ooc):
		return fmt.Sprintf("date is outside cycle %d (%s → %s)",
			ooc.Cycle.Year(),
			ooc.Cycle.Start.Format(dateLayout),
			ooc.Cycle.EndExclusive.AddDate(0, 0, -1).Format(dateLayout))
	case errors.As(err, &oow):
		return fmt.Sprintf("date is outside the window (%s → %s)",
			oow.Window.Start.Format(dateLayout), oow.Window.End.Format(dateLayout))
	default:
		return err.Error()
	}
}
