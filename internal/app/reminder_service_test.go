package app_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"ippt_reminder_bot/internal/app"
	"ippt_reminder_bot/internal/domain/compliance"
	"ippt_reminder_bot/internal/domain/person"
	"ippt_reminder_bot/internal/domain/window"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reminderFixture struct {
	persons     *fakePersonRepo
	completions *fakeCompletionRepo
	deferments  *fakeDefermentRepo
	cursors     *fakeCursorRepo
	client      *fakeTelegramClient
	service     *app.ReminderService
}

func newReminderFixture(t *testing.T, today time.Time) *reminderFixture {
	t.Helper()
	silent := logrus.New()
	silent.SetOutput(io.Discard)

	f := &reminderFixture{
		persons:     newFakePersonRepo(),
		completions: newFakeCompletionRepo(),
		deferments:  newFakeDefermentRepo(),
		cursors:     newFakeCursorRepo(),
		client:      newFakeTelegramClient(),
	}
	f.service = app.NewReminderService(
		f.persons, f.completions, f.deferments, f.cursors, f.client,
		logrus.NewEntry(silent),
		testWindowDays, testIntervalDays, time.UTC, fixedClock(today),
	)
	return f
}

func (f *reminderFixture) addLinkedPerson(t *testing.T, id string, birthday time.Time, telegramID int64) {
	t.Helper()
	require.NoError(t, f.persons.Create(context.Background(), &person.Person{ID: id, Birthday: birthday}))
	require.NoError(t, f.persons.Link(context.Background(), id, telegramID, time.Now()))
}

// Anchor Mar 1: window 2025-03-01 → 2025-06-09, grid every 10 days.
var reminderBirthday = window.Date(1995, time.March, 1)

func TestSweepSendsOnGridDay(t *testing.T) {
	ctx := context.Background()
	f := newReminderFixture(t, window.Date(2025, time.March, 11)) // start + 10
	f.addLinkedPerson(t, "A1", reminderBirthday, 100)

	stats, err := f.service.RunDailySweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.RemindersSent)
	assert.Zero(t, stats.SendFailures)
	require.Equal(t, 1, f.client.sentTo(100))
	assert.Contains(t, f.client.sent[0].Text, "IPPT Reminder")

	lastRemindedOn, ok, err := f.cursors.Get(ctx, "A1", 2025)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, window.Date(2025, time.March, 11), lastRemindedOn)
}

func TestSweepIsIdempotentWithinADay(t *testing.T) {
	ctx := context.Background()
	f := newReminderFixture(t, window.Date(2025, time.March, 11))
	f.addLinkedPerson(t, "A1", reminderBirthday, 100)

	_, err := f.service.RunDailySweep(ctx)
	require.NoError(t, err)
	stats, err := f.service.RunDailySweep(ctx)
	require.NoError(t, err)

	assert.Zero(t, stats.RemindersSent)
	assert.Equal(t, 1, f.client.sentTo(100))
}

func TestSweepSkipsOffGridDays(t *testing.T) {
	f := newReminderFixture(t, window.Date(2025, time.March, 15))
	f.addLinkedPerson(t, "A1", reminderBirthday, 100)

	stats, err := f.service.RunDailySweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.RemindersSent)
	assert.Zero(t, f.client.sentTo(100))
}

func TestSweepSkipsCompletedAndDeferred(t *testing.T) {
	ctx := context.Background()
	f := newReminderFixture(t, window.Date(2025, time.March, 11))
	f.addLinkedPerson(t, "A1", reminderBirthday, 100)
	f.addLinkedPerson(t, "B2", reminderBirthday, 200)
	f.addLinkedPerson(t, "C3", reminderBirthday, 300)

	require.NoError(t, f.completions.Upsert(ctx, &compliance.CompletionRecord{
		PersonID: "A1", CycleYear: 2025, CompletedOn: window.Date(2025, time.March, 5),
		RecordedVia: compliance.RecordedViaSelf,
	}))
	require.NoError(t, f.deferments.Upsert(ctx, &compliance.DefermentRecord{
		PersonID: "B2", CycleYear: 2025, Status: compliance.DefermentApproved, Reason: "medical",
	}))

	stats, err := f.service.RunDailySweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.RemindersSent)
	assert.Zero(t, f.client.sentTo(100))
	assert.Zero(t, f.client.sentTo(200))
	assert.Equal(t, 1, f.client.sentTo(300))
}

func TestSweepSkipsUnlinkedPersons(t *testing.T) {
	ctx := context.Background()
	f := newReminderFixture(t, window.Date(2025, time.March, 11))
	require.NoError(t, f.persons.Create(ctx, &person.Person{ID: "A1", Birthday: reminderBirthday}))

	stats, err := f.service.RunDailySweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.RemindersSent)
	assert.Empty(t, f.client.sent)
}

func TestSweepSendFailureLeavesCursorUntouched(t *testing.T) {
	ctx := context.Background()
	f := newReminderFixture(t, window.Date(2025, time.March, 11))
	f.addLinkedPerson(t, "A1", reminderBirthday, 100)
	f.addLinkedPerson(t, "B2", reminderBirthday, 200)
	f.client.failFor[100] = errors.New("telegram: forbidden")

	stats, err := f.service.RunDailySweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SendFailures)
	assert.Equal(t, 1, stats.RemindersSent, "one failure never blocks the rest")

	_, ok, err := f.cursors.Get(ctx, "A1", 2025)
	require.NoError(t, err)
	assert.False(t, ok, "failed send must not advance the cursor")
	_, ok, err = f.cursors.Get(ctx, "B2", 2025)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSweepPurgesExpiredDeferments(t *testing.T) {
	ctx := context.Background()
	today := window.Date(2025, time.June, 10) // day after the window end
	f := newReminderFixture(t, today)

	// Unlinked on purpose: expiry does not depend on a Telegram link.
	require.NoError(t, f.persons.Create(ctx, &person.Person{ID: "A1", Birthday: reminderBirthday}))
	require.NoError(t, f.deferments.Upsert(ctx, &compliance.DefermentRecord{
		PersonID: "A1", CycleYear: 2025, Status: compliance.DefermentApproved, Reason: "medical",
	}))

	stats, err := f.service.RunDailySweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DefermentsPurged)
	assert.Empty(t, f.client.sent)

	_, err = f.deferments.Get(ctx, "A1", 2025)
	assert.ErrorIs(t, err, compliance.ErrDefermentNotFound)
}

func TestSweepKeepsActiveDeferments(t *testing.T) {
	ctx := context.Background()
	f := newReminderFixture(t, window.Date(2025, time.June, 9)) // window end itself
	f.addLinkedPerson(t, "A1", reminderBirthday, 100)
	require.NoError(t, f.deferments.Upsert(ctx, &compliance.DefermentRecord{
		PersonID: "A1", CycleYear: 2025, Status: compliance.DefermentApproved, Reason: "medical",
	}))

	stats, err := f.service.RunDailySweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.DefermentsPurged)

	rec, err := f.deferments.Get(ctx, "A1", 2025)
	require.NoError(t, err)
	assert.Equal(t, "medical", rec.Reason)
}
