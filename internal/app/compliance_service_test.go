package app_test

import (
	"context"
	"testing"
	"time"

	"ippt_reminder_bot/internal/app"
	"ippt_reminder_bot/internal/domain/compliance"
	"ippt_reminder_bot/internal/domain/person"
	"ippt_reminder_bot/internal/domain/window"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWindowDays   = 100
	testIntervalDays = 10
)

func fixedClock(d time.Time) func() time.Time {
	return func() time.Time { return d }
}

type complianceFixture struct {
	persons     *fakePersonRepo
	completions *fakeCompletionRepo
	deferments  *fakeDefermentRepo
	service     *app.ComplianceService
}

func newComplianceFixture(t *testing.T, today time.Time) *complianceFixture {
	t.Helper()
	f := &complianceFixture{
		persons:     newFakePersonRepo(),
		completions: newFakeCompletionRepo(),
		deferments:  newFakeDefermentRepo(),
	}
	f.service = app.NewComplianceService(
		f.persons, f.completions, f.deferments,
		testWindowDays, testIntervalDays, time.UTC, fixedClock(today),
	)
	return f
}

func (f *complianceFixture) addPerson(t *testing.T, id string, birthday time.Time) {
	t.Helper()
	require.NoError(t, f.persons.Create(context.Background(), &person.Person{ID: id, Birthday: birthday}))
}

func (f *complianceFixture) addLinkedPerson(t *testing.T, id string, birthday time.Time, telegramID int64) {
	t.Helper()
	f.addPerson(t, id, birthday)
	require.NoError(t, f.persons.Link(context.Background(), id, telegramID, time.Now()))
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	birthday := window.Date(1996, time.February, 29)
	f := newComplianceFixture(t, window.Date(2025, time.March, 10))
	f.addPerson(t, "A12345", birthday)

	t.Run("unknown personnel ID", func(t *testing.T) {
		_, err := f.service.Verify(ctx, 100, "NOPE", birthday)
		assert.ErrorIs(t, err, person.ErrNotFound)
	})

	t.Run("birthday mismatch", func(t *testing.T) {
		_, err := f.service.Verify(ctx, 100, "A12345", window.Date(1996, time.March, 1))
		assert.ErrorIs(t, err, app.ErrBirthdayMismatch)

		_, err = f.persons.GetByTelegramID(ctx, 100)
		assert.ErrorIs(t, err, person.ErrNotFound, "no link on mismatch")
	})

	t.Run("successful verification links the identity", func(t *testing.T) {
		p, err := f.service.Verify(ctx, 100, "A12345", birthday)
		require.NoError(t, err)
		assert.True(t, p.Linked())
		assert.EqualValues(t, 100, p.TelegramID.Int64)
	})

	t.Run("re-verifying from another account moves the link", func(t *testing.T) {
		_, err := f.service.Verify(ctx, 200, "A12345", birthday)
		require.NoError(t, err)

		_, err = f.persons.GetByTelegramID(ctx, 100)
		assert.ErrorIs(t, err, person.ErrNotFound)
		p, err := f.persons.GetByTelegramID(ctx, 200)
		require.NoError(t, err)
		assert.Equal(t, "A12345", p.ID)
	})
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	today := window.Date(2025, time.March, 5)
	f := newComplianceFixture(t, today)
	f.addLinkedPerson(t, "A12345", window.Date(1996, time.February, 29), 100)

	t.Run("not verified", func(t *testing.T) {
		_, err := f.service.Status(ctx, 999)
		assert.ErrorIs(t, err, app.ErrNotVerified)
	})

	t.Run("pending inside the window with next grid reminder", func(t *testing.T) {
		view, err := f.service.Status(ctx, 100)
		require.NoError(t, err)
		assert.True(t, view.InWindow)
		assert.Equal(t, compliance.StatusPending, view.Evaluation.Status)
		assert.Equal(t, window.Date(2025, time.February, 28), view.Evaluation.Window.Start)
		require.True(t, view.HasReminder)
		assert.Equal(t, window.Date(2025, time.March, 10), view.NextReminder)
	})

	t.Run("completed hides the reminder projection", func(t *testing.T) {
		_, err := f.service.SelfComplete(ctx, 100, nil)
		require.NoError(t, err)

		view, err := f.service.Status(ctx, 100)
		require.NoError(t, err)
		assert.True(t, view.Evaluation.Completed())
		assert.False(t, view.HasReminder)
	})
}

func TestSelfComplete(t *testing.T) {
	ctx := context.Background()
	birthday := window.Date(1996, time.February, 29)

	t.Run("defaults to today inside the window", func(t *testing.T) {
		today := window.Date(2025, time.March, 10)
		f := newComplianceFixture(t, today)
		f.addLinkedPerson(t, "A12345", birthday, 100)

		eval, err := f.service.SelfComplete(ctx, 100, nil)
		require.NoError(t, err)
		assert.Equal(t, compliance.StatusCompletedOnTime, eval.Status)
		assert.Equal(t, 2025, eval.Cycle.Year())

		rec, err := f.completions.Get(ctx, "A12345", 2025)
		require.NoError(t, err)
		assert.Equal(t, today, rec.CompletedOn)
		assert.Equal(t, compliance.RecordedViaSelf, rec.RecordedVia)
	})

	t.Run("explicit date outside the window is rejected with no write", func(t *testing.T) {
		f := newComplianceFixture(t, window.Date(2025, time.March, 10))
		f.addLinkedPerson(t, "A12345", birthday, 100)

		past := window.Date(2025, time.January, 15)
		_, err := f.service.SelfComplete(ctx, 100, &past)
		var oow *app.OutOfWindowError
		require.ErrorAs(t, err, &oow)
		assert.ErrorIs(t, err, app.ErrOutOfWindow)
		assert.Equal(t, window.Date(2025, time.February, 28), oow.Window.Start)

		_, err = f.completions.Get(ctx, "A12345", 2025)
		assert.ErrorIs(t, err, compliance.ErrCompletionNotFound)
	})

	t.Run("today outside the window is rejected", func(t *testing.T) {
		f := newComplianceFixture(t, window.Date(2025, time.August, 1))
		f.addLinkedPerson(t, "A12345", birthday, 100)

		_, err := f.service.SelfComplete(ctx, 100, nil)
		assert.ErrorIs(t, err, app.ErrOutOfWindow)
	})

	t.Run("repeat completion replaces the record", func(t *testing.T) {
		f := newComplianceFixture(t, window.Date(2025, time.March, 10))
		f.addLinkedPerson(t, "A12345", birthday, 100)

		first := window.Date(2025, time.March, 1)
		_, err := f.service.SelfComplete(ctx, 100, &first)
		require.NoError(t, err)
		second := window.Date(2025, time.March, 8)
		_, err = f.service.SelfComplete(ctx, 100, &second)
		require.NoError(t, err)

		rec, err := f.completions.Get(ctx, "A12345", 2025)
		require.NoError(t, err)
		assert.Equal(t, second, rec.CompletedOn)
	})

	t.Run("unverified caller", func(t *testing.T) {
		f := newComplianceFixture(t, window.Date(2025, time.March, 10))
		_, err := f.service.SelfComplete(ctx, 100, nil)
		assert.ErrorIs(t, err, app.ErrNotVerified)
	})
}

func TestSelfUncomplete(t *testing.T) {
	ctx := context.Background()
	birthday := window.Date(1996, time.February, 29)

	t.Run("removes the current cycle's completion", func(t *testing.T) {
		f := newComplianceFixture(t, window.Date(2025, time.March, 10))
		f.addLinkedPerson(t, "A12345", birthday, 100)
		_, err := f.service.SelfComplete(ctx, 100, nil)
		require.NoError(t, err)

		cycleYear, err := f.service.SelfUncomplete(ctx, 100)
		require.NoError(t, err)
		assert.Equal(t, 2025, cycleYear)

		_, err = f.completions.Get(ctx, "A12345", 2025)
		assert.ErrorIs(t, err, compliance.ErrCompletionNotFound)
	})

	t.Run("rejected outside the window", func(t *testing.T) {
		f := newComplianceFixture(t, window.Date(2025, time.August, 1))
		f.addLinkedPerson(t, "A12345", birthday, 100)

		_, err := f.service.SelfUncomplete(ctx, 100)
		assert.ErrorIs(t, err, app.ErrOutOfWindow)
	})

	t.Run("nothing to undo", func(t *testing.T) {
		f := newComplianceFixture(t, window.Date(2025, time.March, 10))
		f.addLinkedPerson(t, "A12345", birthday, 100)

		_, err := f.service.SelfUncomplete(ctx, 100)
		assert.ErrorIs(t, err, compliance.ErrCompletionNotFound)
	})
}
