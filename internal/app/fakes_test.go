package app_test

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"ippt_reminder_bot/internal/domain/audit"
	"ippt_reminder_bot/internal/domain/compliance"
	"ippt_reminder_bot/internal/domain/person"

	"gopkg.in/telebot.v3"
)

// In-memory stand-ins for the Postgres repositories, shared by the service
// tests. They mirror the repository contracts exactly, including the
// sentinel errors and the replace-on-upsert semantics.

func cycleKey(personID string, cycleYear int) string {
	return fmt.Sprintf("%s|%d", personID, cycleYear)
}

func sqlNullInt64(v int64, valid bool) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: valid}
}

type fakePersonRepo struct {
	mu   sync.Mutex
	byID map[string]*person.Person
}

func newFakePersonRepo() *fakePersonRepo {
	return &fakePersonRepo{byID: make(map[string]*person.Person)}
}

func (r *fakePersonRepo) Create(_ context.Context, p *person.Person) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[p.ID]; ok {
		return person.ErrAlreadyExists
	}
	cp := *p
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	r.byID[p.ID] = &cp
	return nil
}

func (r *fakePersonRepo) GetByID(_ context.Context, id string) (*person.Person, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, person.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakePersonRepo) GetByTelegramID(_ context.Context, telegramID int64) (*person.Person, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.TelegramID.Valid && p.TelegramID.Int64 == telegramID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, person.ErrNotFound
}

func (r *fakePersonRepo) Upsert(_ context.Context, id string, birthday time.Time, group string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byID[id]; ok {
		p.Birthday = birthday
		if group != "" {
			p.Group.String = group
			p.Group.Valid = true
		}
		p.UpdatedAt = time.Now()
		return false, nil
	}
	p := &person.Person{ID: id, Birthday: birthday}
	if group != "" {
		p.Group.String = group
		p.Group.Valid = true
	}
	r.byID[id] = p
	return true, nil
}

func (r *fakePersonRepo) UpdateBirthday(_ context.Context, id string, birthday time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return person.ErrNotFound
	}
	p.Birthday = birthday
	return nil
}

func (r *fakePersonRepo) Link(_ context.Context, id string, telegramID int64, verifiedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return person.ErrNotFound
	}
	for _, other := range r.byID {
		if other.ID != id && other.TelegramID.Valid && other.TelegramID.Int64 == telegramID {
			other.TelegramID = sqlNullInt64(0, false)
			other.VerifiedAt.Valid = false
		}
	}
	p.TelegramID = sqlNullInt64(telegramID, true)
	p.VerifiedAt.Time = verifiedAt
	p.VerifiedAt.Valid = true
	return nil
}

func (r *fakePersonRepo) Unlink(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return person.ErrNotFound
	}
	p.TelegramID = sqlNullInt64(0, false)
	p.VerifiedAt.Valid = false
	return nil
}

func (r *fakePersonRepo) Remove(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return person.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *fakePersonRepo) ListAll(_ context.Context) ([]*person.Person, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*person.Person, 0, len(r.byID))
	for _, p := range r.byID {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeCompletionRepo struct {
	mu      sync.Mutex
	records map[string]compliance.CompletionRecord
}

func newFakeCompletionRepo() *fakeCompletionRepo {
	return &fakeCompletionRepo{records: make(map[string]compliance.CompletionRecord)}
}

func (r *fakeCompletionRepo) Get(_ context.Context, personID string, cycleYear int) (*compliance.CompletionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[cycleKey(personID, cycleYear)]
	if !ok {
		return nil, compliance.ErrCompletionNotFound
	}
	return &rec, nil
}

func (r *fakeCompletionRepo) Upsert(_ context.Context, rec *compliance.CompletionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	cp.CreatedAt = time.Now()
	r.records[cycleKey(rec.PersonID, rec.CycleYear)] = cp
	return nil
}

func (r *fakeCompletionRepo) Delete(_ context.Context, personID string, cycleYear int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := cycleKey(personID, cycleYear)
	if _, ok := r.records[key]; !ok {
		return compliance.ErrCompletionNotFound
	}
	delete(r.records, key)
	return nil
}

type fakeDefermentRepo struct {
	mu      sync.Mutex
	records map[string]compliance.DefermentRecord
}

func newFakeDefermentRepo() *fakeDefermentRepo {
	return &fakeDefermentRepo{records: make(map[string]compliance.DefermentRecord)}
}

func (r *fakeDefermentRepo) Get(_ context.Context, personID string, cycleYear int) (*compliance.DefermentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[cycleKey(personID, cycleYear)]
	if !ok {
		return nil, compliance.ErrDefermentNotFound
	}
	return &rec, nil
}

func (r *fakeDefermentRepo) Upsert(_ context.Context, rec *compliance.DefermentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	cp.CreatedAt = time.Now()
	r.records[cycleKey(rec.PersonID, rec.CycleYear)] = cp
	return nil
}

func (r *fakeDefermentRepo) Delete(_ context.Context, personID string, cycleYear int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := cycleKey(personID, cycleYear)
	if _, ok := r.records[key]; !ok {
		return compliance.ErrDefermentNotFound
	}
	delete(r.records, key)
	return nil
}

type fakeCursorRepo struct {
	mu      sync.Mutex
	cursors map[string]time.Time
}

func newFakeCursorRepo() *fakeCursorRepo {
	return &fakeCursorRepo{cursors: make(map[string]time.Time)}
}

func (r *fakeCursorRepo) Get(_ context.Context, personID string, cycleYear int) (time.Time, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.cursors[cycleKey(personID, cycleYear)]
	return d, ok, nil
}

func (r *fakeCursorRepo) Set(_ context.Context, personID string, cycleYear int, remindedOn time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cursors[cycleKey(personID, cycleYear)] = remindedOn
	return nil
}

type fakeAuditSink struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (s *fakeAuditSink) Append(_ context.Context, e audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *fakeAuditSink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Action)
	}
	return out
}

type sentMessage struct {
	ChatID int64
	Text   string
}

type fakeTelegramClient struct {
	mu      sync.Mutex
	sent    []sentMessage
	failFor map[int64]error
}

func newFakeTelegramClient() *fakeTelegramClient {
	return &fakeTelegramClient{failFor: make(map[int64]error)}
}

func (c *fakeTelegramClient) SendMessage(recipientChatID int64, text string, _ *telebot.SendOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err, ok := c.failFor[recipientChatID]; ok {
		return err
	}
	c.sent = append(c.sent, sentMessage{ChatID: recipientChatID, Text: text})
	return nil
}

func (c *fakeTelegramClient) sentTo(chatID int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, m := range c.sent {
		if m.ChatID == chatID {
			n++
		}
	}
	return n
}
