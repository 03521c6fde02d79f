package recordstore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryPromptsListNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })
	ctx := context.Background()

	first, _ := store.Prompts().Insert(ctx, Prompt{Prompt: "first"})
	now = now.Add(time.Minute)
	second, _ := store.Prompts().Insert(ctx, Prompt{Prompt: "second"})
	now = now.Add(time.Minute)
	third, _ := store.Prompts().Insert(ctx, Prompt{Prompt: "third"})

	prompts, err := store.Prompts().List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(prompts) != 3 {
		t.Fatalf("expected 3 prompts, got %d", len(prompts))
	}
	if prompts[0].ID != third.ID || prompts[1].ID != second.ID || prompts[2].ID != first.ID {
		t.Fatalf("not newest first: %v %v %v", prompts[0].Prompt, prompts[1].Prompt, prompts[2].Prompt)
	}
}

func TestMemoryPromptsInsertAssignsIDAndTimestamp(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	inserted, err := store.Prompts().Insert(ctx, Prompt{Prompt: "p", CreatedBy: "alice@team.example"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if inserted.ID == "" || inserted.CreatedAt.IsZero() {
		t.Fatalf("id or timestamp missing: %+v", inserted)
	}
	if inserted.UpdatedAt != nil {
		t.Fatalf("fresh prompt has an update stamp")
	}
}

func TestMemoryPromptsUpdate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	inserted, _ := store.Prompts().Insert(ctx, Prompt{Prompt: "before", Query: "q", Response: "r", CreatedBy: "alice@team.example"})

	stamp := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	err := store.Prompts().Update(ctx, inserted.ID, PromptPatch{
		Prompt:         "after",
		Query:          "q2",
		Response:       "r2",
		UpdatedAt:      stamp,
		LastModifiedBy: "root@team.example",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	prompts, _ := store.Prompts().List(ctx)
	got := prompts[0]
	if got.Prompt != "after" || got.Query != "q2" || got.Response != "r2" {
		t.Fatalf("update did not take: %+v", got)
	}
	if got.UpdatedAt == nil || !got.UpdatedAt.Equal(stamp) || got.LastModifiedBy != "root@team.example" {
		t.Fatalf("stamps wrong: %+v", got)
	}
	if got.CreatedBy != "alice@team.example" {
		t.Fatalf("creator overwritten: %+v", got)
	}
}

func TestMemoryPromptsUpdateUnknownID(t *testing.T) {
	store := NewMemoryStore()
	err := store.Prompts().Update(context.Background(), "pmt_missing", PromptPatch{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryAccountsLookupIsCaseInsensitive(t *testing.T) {
	store := NewMemoryStore()
	store.SeedAccount(Account{Email: "Alice@Team.Example", Role: "admin"})

	account, err := store.Accounts().GetByEmail(context.Background(), "alice@team.example")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if account.Role != "admin" {
		t.Fatalf("unexpected account: %+v", account)
	}

	if _, err := store.Accounts().GetByEmail(context.Background(), "nobody@team.example"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRatingsUpsertOverwrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Ratings().Upsert(ctx, Rating{PromptID: "p1", UserEmail: "alice@team.example", Rating: "up"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.Ratings().Upsert(ctx, Rating{PromptID: "p1", UserEmail: "Alice@Team.Example", Rating: "down"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	ratings, _ := store.Ratings().List(ctx)
	if len(ratings) != 1 || ratings[0].Rating != "down" {
		t.Fatalf("expected one overwritten rating, got %+v", ratings)
	}
}

func TestMemoryRatingsDeleteByPrompt(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_ = store.Ratings().Upsert(ctx, Rating{PromptID: "p1", UserEmail: "alice@team.example", Rating: "up"})
	_ = store.Ratings().Upsert(ctx, Rating{PromptID: "p1", UserEmail: "bob@team.example", Rating: "down"})
	_ = store.Ratings().Upsert(ctx, Rating{PromptID: "p2", UserEmail: "alice@team.example", Rating: "up"})

	if err := store.Ratings().DeleteByPrompt(ctx, "p1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	ratings, _ := store.Ratings().List(ctx)
	if len(ratings) != 1 || ratings[0].PromptID != "p2" {
		t.Fatalf("expected only p2's rating left, got %+v", ratings)
	}
}

func TestMemoryNotesKeepInsertionOrder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, text := range []string{"first", "second", "third"} {
		if _, err := store.Notes().Insert(ctx, Note{PromptID: "p1", Note: text}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	notes, _ := store.Notes().List(ctx)
	if len(notes) != 3 || notes[0].Note != "first" || notes[2].Note != "third" {
		t.Fatalf("insertion order not kept: %+v", notes)
	}
}

func TestMemoryNotesDeleteByPrompt(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, _ = store.Notes().Insert(ctx, Note{PromptID: "p1", Note: "a"})
	_, _ = store.Notes().Insert(ctx, Note{PromptID: "p2", Note: "b"})

	if err := store.Notes().DeleteByPrompt(ctx, "p1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	notes, _ := store.Notes().List(ctx)
	if len(notes) != 1 || notes[0].PromptID != "p2" {
		t.Fatalf("expected only p2's note left, got %+v", notes)
	}
}
