package recordstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type recordedRequest struct {
	method string
	path   string
	query  string
	prefer string
	body   string
}

// newFakeTableAPI serves canned responses in the PostgREST shape and
// records the last request for assertion.
func newFakeTableAPI(t *testing.T, status int, response string) (*RESTStore, *recordedRequest) {
	t.Helper()
	last := &recordedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("apikey"); got != "test-key" {
			t.Errorf("missing apikey header, got %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("missing bearer header, got %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		*last = recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			prefer: r.Header.Get("Prefer"),
			body:   string(body),
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)
	return NewRESTStore(server.URL, "test-key"), last
}

func TestRESTAccountsGetByEmail(t *testing.T) {
	store, last := newFakeTableAPI(t, http.StatusOK, `[{"email":"alice@team.example","role":"admin"}]`)

	account, err := store.Accounts().GetByEmail(context.Background(), "alice@team.example")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if account.Role != "admin" {
		t.Fatalf("unexpected account: %+v", account)
	}
	if last.path != "/rest/v1/allowed_users" {
		t.Fatalf("unexpected path %q", last.path)
	}
	if last.query != "email=eq.alice%40team.example&select=%2A" {
		t.Fatalf("unexpected query %q", last.query)
	}
}

func TestRESTAccountsGetByEmailEmptyResult(t *testing.T) {
	store, _ := newFakeTableAPI(t, http.StatusOK, `[]`)

	_, err := store.Accounts().GetByEmail(context.Background(), "nobody@team.example")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRESTPromptsListOrdersDescending(t *testing.T) {
	store, last := newFakeTableAPI(t, http.StatusOK, `[{"id":"p1","prompt":"x"}]`)

	prompts, err := store.Prompts().List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(prompts) != 1 || prompts[0].ID != "p1" {
		t.Fatalf("unexpected rows: %+v", prompts)
	}
	if last.query != "order=created_at.desc&select=%2A" {
		t.Fatalf("unexpected query %q", last.query)
	}
}

func TestRESTPromptsInsertAsksForRepresentation(t *testing.T) {
	store, last := newFakeTableAPI(t, http.StatusCreated, `[{"id":"pmt_1","prompt":"p","created_by":"alice@team.example"}]`)

	inserted, err := store.Prompts().Insert(context.Background(), Prompt{
		Prompt:    "p",
		Query:     "q",
		Response:  "r",
		CreatedBy: "alice@team.example",
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if inserted.ID != "pmt_1" {
		t.Fatalf("representation not used: %+v", inserted)
	}
	if last.method != http.MethodPost || last.path != "/rest/v1/prompts" {
		t.Fatalf("unexpected request %s %s", last.method, last.path)
	}
	if last.prefer != "return=representation" {
		t.Fatalf("unexpected prefer header %q", last.prefer)
	}

	var payload map[string]string
	if err := json.Unmarshal([]byte(last.body), &payload); err != nil {
		t.Fatalf("parse body: %v", err)
	}
	if payload["created_by"] != "alice@team.example" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if _, ok := payload["id"]; ok {
		t.Fatalf("client must not assign ids, sent %v", payload)
	}
}

func TestRESTPromptsUpdateFiltersByID(t *testing.T) {
	store, last := newFakeTableAPI(t, http.StatusNoContent, ``)

	stamp := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	err := store.Prompts().Update(context.Background(), "pmt_1", PromptPatch{
		Prompt:         "p",
		Query:          "q",
		Response:       "r",
		UpdatedAt:      stamp,
		LastModifiedBy: "root@team.example",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if last.method != http.MethodPatch || last.query != "id=eq.pmt_1" {
		t.Fatalf("unexpected request %s ?%s", last.method, last.query)
	}

	var payload map[string]string
	_ = json.Unmarshal([]byte(last.body), &payload)
	if payload["updated_at"] != "2026-03-02T09:00:00Z" {
		t.Fatalf("unexpected stamp %q", payload["updated_at"])
	}
}

func TestRESTRatingsUpsertUsesCompositeConflictKey(t *testing.T) {
	store, last := newFakeTableAPI(t, http.StatusCreated, ``)

	err := store.Ratings().Upsert(context.Background(), Rating{
		PromptID:  "pmt_1",
		UserEmail: "alice@team.example",
		Rating:    "up",
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if last.query != "on_conflict=prompt_id%2Cuser_email" {
		t.Fatalf("unexpected query %q", last.query)
	}
	if last.prefer != "resolution=merge-duplicates" {
		t.Fatalf("unexpected prefer header %q", last.prefer)
	}
}

func TestRESTNotesListOrdersAscending(t *testing.T) {
	store, last := newFakeTableAPI(t, http.StatusOK, `[]`)

	if _, err := store.Notes().List(context.Background()); err != nil {
		t.Fatalf("list: %v", err)
	}
	if last.query != "order=created_at.asc&select=%2A" {
		t.Fatalf("unexpected query %q", last.query)
	}
}

func TestRESTDeleteByPromptFilters(t *testing.T) {
	store, last := newFakeTableAPI(t, http.StatusNoContent, ``)

	if err := store.Ratings().DeleteByPrompt(context.Background(), "pmt_1"); err != nil {
		t.Fatalf("delete ratings: %v", err)
	}
	if last.method != http.MethodDelete || last.path != "/rest/v1/ratings" || last.query != "prompt_id=eq.pmt_1" {
		t.Fatalf("unexpected request %s %s?%s", last.method, last.path, last.query)
	}

	if err := store.Notes().DeleteByPrompt(context.Background(), "pmt_1"); err != nil {
		t.Fatalf("delete notes: %v", err)
	}
	if last.path != "/rest/v1/notes" || last.query != "prompt_id=eq.pmt_1" {
		t.Fatalf("unexpected request %s?%s", last.path, last.query)
	}
}

func TestRESTErrorStatusSurfacesBody(t *testing.T) {
	store, _ := newFakeTableAPI(t, http.StatusBadRequest, `{"message":"malformed filter"}`)

	_, err := store.Prompts().List(context.Background())
	if err == nil {
		t.Fatalf("expected error for 400 response")
	}
}
