package recordstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yogeshchauhan3103-code/prompt-manager/internal/util"
)

// MemoryStore is the in-memory implementation of Store used for tests and
// local development. It mirrors the backing table semantics: prompts listed
// newest first, notes oldest first, ratings upserted on the composite key.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]Account
	prompts  map[string]Prompt
	ratings  map[string]Rating // key promptID + "|" + email
	notes    []Note
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]Account),
		prompts:  make(map[string]Prompt),
		ratings:  make(map[string]Rating),
		now:      time.Now,
	}
}

// SetClock overrides the timestamp source. Test hook.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.now = now
}

func (m *MemoryStore) SeedAccount(a Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[strings.ToLower(a.Email)] = a
}

func (m *MemoryStore) Accounts() Accounts { return (*memoryAccounts)(m) }
func (m *MemoryStore) Prompts() Prompts   { return (*memoryPrompts)(m) }
func (m *MemoryStore) Ratings() Ratings   { return (*memoryRatings)(m) }
func (m *MemoryStore) Notes() Notes       { return (*memoryNotes)(m) }

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

type memoryAccounts MemoryStore

func (m *memoryAccounts) GetByEmail(ctx context.Context, email string) (Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accounts[strings.ToLower(email)]
	if !ok {
		return Account{}, ErrNotFound
	}
	return account, nil
}

type memoryPrompts MemoryStore

func (m *memoryPrompts) List(ctx context.Context) ([]Prompt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Prompt, 0, len(m.prompts))
	for _, p := range m.prompts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *memoryPrompts) Insert(ctx context.Context, p Prompt) (Prompt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = util.NewID("pmt")
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = m.now().UTC()
	}
	m.prompts[p.ID] = p
	return p, nil
}

func (m *memoryPrompts) Update(ctx context.Context, id string, patch PromptPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.prompts[id]
	if !ok {
		return ErrNotFound
	}
	current.Prompt = patch.Prompt
	current.Query = patch.Query
	current.Response = patch.Response
	updatedAt := patch.UpdatedAt
	current.UpdatedAt = &updatedAt
	current.LastModifiedBy = patch.LastModifiedBy
	m.prompts[id] = current
	return nil
}

func (m *memoryPrompts) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.prompts[id]; !ok {
		return ErrNotFound
	}
	delete(m.prompts, id)
	return nil
}

type memoryRatings MemoryStore

func ratingKey(promptID, email string) string {
	return promptID + "|" + strings.ToLower(email)
}

func (m *memoryRatings) List(ctx context.Context) ([]Rating, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Rating, 0, len(m.ratings))
	for _, r := range m.ratings {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return ratingKey(out[i].PromptID, out[i].UserEmail) < ratingKey(out[j].PromptID, out[j].UserEmail)
	})
	return out, nil
}

func (m *memoryRatings) Upsert(ctx context.Context, r Rating) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ratings[ratingKey(r.PromptID, r.UserEmail)] = r
	return nil
}

func (m *memoryRatings) DeleteByPrompt(ctx context.Context, promptID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, r := range m.ratings {
		if r.PromptID == promptID {
			delete(m.ratings, key)
		}
	}
	return nil
}

type memoryNotes MemoryStore

func (m *memoryNotes) List(ctx context.Context) ([]Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Note, len(m.notes))
	copy(out, m.notes)
	return out, nil
}

func (m *memoryNotes) Insert(ctx context.Context, n Note) (Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.ID == "" {
		n.ID = util.NewID("note")
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = m.now().UTC()
	}
	m.notes = append(m.notes, n)
	return n, nil
}

func (m *memoryNotes) DeleteByPrompt(ctx context.Context, promptID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.notes[:0]
	for _, n := range m.notes {
		if n.PromptID != promptID {
			kept = append(kept, n)
		}
	}
	m.notes = kept
	return nil
}
