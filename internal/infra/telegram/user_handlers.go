package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ippt_reminder_bot/internal/app"
	"ippt_reminder_bot/internal/domain/compliance"
	"ippt_reminder_bot/internal/domain/person"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const dateLayout = "2006-01-02"

// RegisterUserHandlers registers the self-service commands.
func RegisterUserHandlers(ctx context.Context, b *telebot.Bot, complianceService *app.ComplianceService, baseLogger *logrus.Entry) {
	b.Handle("/start", func(c telebot.Context) error {
		logCtx := baseLogger.WithFields(logrus.Fields{"handler": "/start", "sender_id": c.Sender().ID})
		logCtx.Info("Command received")
		return c.Send(strings.TrimSpace(`
Hi! I'm the IPPT Reminder Bot. Here's what I can do:

• /verify <PERSONNEL_ID> <YYYY-MM-DD> — verify yourself
• /status — view your current window & status
• /complete [YYYY-MM-DD] — mark this cycle's IPPT as completed
• /uncomplete — undo your completion for the current cycle
• /whoami — show your Telegram ID

Deferments are granted by admins; contact yours if you need one.
Admins can use /admin_help for management commands.`))
	})

	b.Handle("/whoami", func(c telebot.Context) error {
		return c.Send(fmt.Sprintf("Your Telegram ID: %d", c.Sender().ID))
	})

	b.Handle("/verify", func(c telebot.Context) error {
		logCtx := baseLogger.WithFields(logrus.Fields{"handler": "/verify", "sender_id": c.Sender().ID})
		logCtx.Info("Command received")

		args := c.Args()
		if len(args) != 2 {
			return c.Send("Usage: /verify <PERSONNEL_ID> <YYYY-MM-DD>\nExample: /verify A12345 1995-07-14")
		}
		birthday, err := time.Parse(dateLayout, args[1])
		if err != nil {
			return c.Send("Invalid date. Use YYYY-MM-DD (e.g., 1995-07-14).")
		}

		p, err := complianceService.Verify(ctx, c.Sender().ID, args[0], birthday)
		if err != nil {
			logWithError := logCtx.WithError(err)
			switch {
			case errors.Is(err, person.ErrNotFound):
				logWithError.Warn("Unknown personnel ID")
				return c.Send("No such personnel ID. Please check with your admin.")
			case errors.Is(err, app.ErrBirthdayMismatch):
				logWithError.Warn("Birthday mismatch")
				return c.Send("ID and birthday do not match our records. Please try again or contact admin.")
			default:
				logWithError.Error("Verification failed")
				return c.Send("An error occurred during verification. Please try again later.")
			}
		}

		logCtx.WithField("person_id", p.ID).Info("Identity verified")
		return c.Send("✅ Verified successfully! Use /status to view your IPPT window.")
	})

	b.Handle("/status", func(c telebot.Context) error {
		logCtx := baseLogger.WithFields(logrus.Fields{"handler": "/status", "sender_id": c.Sender().ID})
		logCtx.Info("Command received")

		view, err := complianceService.Status(ctx, c.Sender().ID)
		if err != nil {
			if errors.Is(err, app.ErrNotVerified) {
				return c.Send("You're not verified yet. Use /verify first.")
			}
			logCtx.WithError(err).Error("Status lookup failed")
			return c.Send("An error occurred. Please try again later.")
		}
		return c.Send(formatStatus(view))
	})

	b.Handle("/complete", func(c telebot.Context) error {
		logCtx := baseLogger.WithFields(logrus.Fields{"handler": "/complete", "sender_id": c.Sender().ID})
		logCtx.Info("Command received")

		var explicitDate *time.Time
		if args := c.Args(); len(args) == 1 {
			d, err := time.Parse(dateLayout, args[0])
			if err != nil {
				return c.Send("Invalid date. Use /complete or /complete YYYY-MM-DD.")
			}
			explicitDate = &d
		} else if len(args) > 1 {
			return c.Send("Usage: /complete [YYYY-MM-DD]")
		}

		eval, err := complianceService.SelfComplete(ctx, c.Sender().ID, explicitDate)
		if err != nil {
			if errors.Is(err, app.ErrNotVerified) {
				return c.Send("You're not verified yet. Use /verify first.")
			}
			var oow *app.OutOfWindowError
			if errors.As(err, &oow) {
				return c.Send(fmt.Sprintf(
					"❌ That date is outside your compliance window (%s → %s). Nothing was recorded.",
					oow.Window.Start.Format(dateLayout), oow.Window.End.Format(dateLayout)))
			}
			logCtx.WithError(err).Error("Self completion failed")
			return c.Send("An error occurred. Please try again later.")
		}

		logCtx.WithField("cycle_year", eval.Cycle.Year()).Info("Self completion recorded")
		return c.Send(fmt.Sprintf(
			"✅ Recorded as completed for cycle %d. No more reminders this cycle.\n(Window is %s → %s.)",
			eval.Cycle.Year(), eval.Window.Start.Format(dateLayout), eval.Window.End.Format(dateLayout)))
	})

	b.Handle("/uncomplete", func(c telebot.Context) error {
		logCtx := baseLogger.WithFields(logrus.Fields{"handler": "/uncomplete", "sender_id": c.Sender().ID})
		logCtx.Info("Command received")

		cycleYear, err := complianceService.SelfUncomplete(ctx, c.Sender().ID)
		if err != nil {
			if errors.Is(err, app.ErrNotVerified) {
				return c.Send("You're not verified yet. Use /verify first.")
			}
			var oow *app.OutOfWindowError
			if errors.As(err, &oow) {
				return c.Send(fmt.Sprintf(
					"❌ You can only undo a completion while your window (%s → %s) is active.",
					oow.Window.Start.Format(dateLayout), oow.Window.End.Format(dateLayout)))
			}
			if errors.Is(err, compliance.ErrCompletionNotFound) {
				return c.Send("No completion found to undo for the current cycle.")
			}
			logCtx.WithError(err).Error("Self uncompletion failed")
			return c.Send("An error occurred. Please try again later.")
		}

		logCtx.WithField("cycle_year", cycleYear).Info("Self completion undone")
		return c.Send(fmt.Sprintf("↩️ Your %d completion has been undone. You'll resume reminders while in window.", cycleYear))
	})
}

func formatStatus(view *app.StatusView) string {
	eval := view.Evaluation
	lines := []string{
		fmt.Sprintf("Personnel ID: %s", view.Person.ID),
		fmt.Sprintf("Group: %s", orDash(view.Person.Group.String)),
		fmt.Sprintf("Birthday: %s", view.Person.Birthday.Format(dateLayout)),
		fmt.Sprintf("Current window: %s → %s", eval.Window.Start.Format(dateLayout), eval.Window.End.Format(dateLayout)),
		fmt.Sprintf("Today: %s — %s", view.Today.Format(dateLayout), inWindowLabel(view.InWindow)),
		fmt.Sprintf("Status (cycle %d): %s", eval.Cycle.Year(), statusLabel(eval)),
	}
	if eval.Deferred {
		lines = append(lines, "Deferment: ✅ approved")
	} else {
		lines = append(lines, "Deferment: none")
	}
	lines = append(lines, fmt.Sprintf("Reminder interval: every %d days", view.IntervalDays))
	if !eval.Completed() {
		if view.HasReminder {
			tag := ""
			if view.NextReminder.Equal(view.Today) && view.InWindow {
				tag = " (today)"
			}
			lines = append(lines, fmt.Sprintf("Next reminder: %s%s", view.NextReminder.Format(dateLayout), tag))
		} else {
			lines = append(lines, fmt.Sprintf("Next reminder: none (window ends %s)", eval.Window.End.Format(dateLayout)))
		}
	}
	return strings.Join(lines, "\n")
}

func statusLabel(eval compliance.Evaluation) string {
	switch eval.Status {
	case compliance.StatusCompletedOnTime:
		return fmt.Sprintf("✅ Completed on time (%s)", eval.CompletedOn.Format(dateLayout))
	case compliance.StatusCompletedOverdue:
		return fmt.Sprintf("✅ Completed, %d day(s) overdue (%s)", eval.OverdueDays, eval.CompletedOn.Format(dateLayout))
	case compliance.StatusDeferred:
		return "⏸ Deferred"
	case compliance.StatusPending:
		return "❌ Not completed (window open)"
	case compliance.StatusNotOpenYet:
		return "🕒 Window not open yet"
	default:
		return "❌ Not completed (window expired)"
	}
}

func inWindowLabel(inWindow bool) string {
	if inWindow {
		return "✅ In window"
	}
	return "🕒 Outside window"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
