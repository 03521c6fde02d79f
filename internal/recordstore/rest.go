package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RESTStore talks to a PostgREST-style table API (the hosted backend the
// application delegates all persistence to). Every repository call is one
// HTTP round trip; the store's own per-call atomicity is the only
// concurrency control relied on.
type RESTStore struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewRESTStore(baseURL, apiKey string) *RESTStore {
	return &RESTStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *RESTStore) Accounts() Accounts { return &restAccounts{s} }
func (s *RESTStore) Prompts() Prompts   { return &restPrompts{s} }
func (s *RESTStore) Ratings() Ratings   { return &restRatings{s} }
func (s *RESTStore) Notes() Notes       { return &restNotes{s} }

func (s *RESTStore) Ping(ctx context.Context) error {
	var out []Account
	return s.do(ctx, http.MethodGet, "allowed_users", url.Values{"limit": {"1"}}, nil, nil, &out)
}

func (s *RESTStore) do(ctx context.Context, method, table string, query url.Values, headers map[string]string, body, out any) error {
	endpoint := s.baseURL + "/rest/v1/" + table
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", table, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", table, err)
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, table, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", table, err)
	}
	return nil
}

func eq(value string) string { return "eq." + value }

type restAccounts struct{ store *RESTStore }

func (r *restAccounts) GetByEmail(ctx context.Context, email string) (Account, error) {
	query := url.Values{
		"select": {"*"},
		"email":  {eq(email)},
	}
	var rows []Account
	if err := r.store.do(ctx, http.MethodGet, "allowed_users", query, nil, nil, &rows); err != nil {
		return Account{}, err
	}
	if len(rows) == 0 {
		return Account{}, ErrNotFound
	}
	return rows[0], nil
}

type restPrompts struct{ store *RESTStore }

func (r *restPrompts) List(ctx context.Context) ([]Prompt, error) {
	query := url.Values{
		"select": {"*"},
		"order":  {"created_at.desc"},
	}
	var rows []Prompt
	if err := r.store.do(ctx, http.MethodGet, "prompts", query, nil, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *restPrompts) Insert(ctx context.Context, p Prompt) (Prompt, error) {
	headers := map[string]string{"Prefer": "return=representation"}
	payload := map[string]string{
		"prompt":     p.Prompt,
		"query":      p.Query,
		"response":   p.Response,
		"created_by": p.CreatedBy,
	}
	var rows []Prompt
	if err := r.store.do(ctx, http.MethodPost, "prompts", nil, headers, payload, &rows); err != nil {
		return Prompt{}, err
	}
	if len(rows) == 0 {
		return Prompt{}, fmt.Errorf("insert prompt: empty representation")
	}
	return rows[0], nil
}

func (r *restPrompts) Update(ctx context.Context, id string, patch PromptPatch) error {
	query := url.Values{"id": {eq(id)}}
	payload := map[string]string{
		"prompt":           patch.Prompt,
		"query":            patch.Query,
		"response":         patch.Response,
		"updated_at":       patch.UpdatedAt.UTC().Format(time.RFC3339),
		"last_modified_by": patch.LastModifiedBy,
	}
	return r.store.do(ctx, http.MethodPatch, "prompts", query, nil, payload, nil)
}

func (r *restPrompts) Delete(ctx context.Context, id string) error {
	query := url.Values{"id": {eq(id)}}
	return r.store.do(ctx, http.MethodDelete, "prompts", query, nil, nil, nil)
}

type restRatings struct{ store *RESTStore }

func (r *restRatings) List(ctx context.Context) ([]Rating, error) {
	query := url.Values{"select": {"*"}}
	var rows []Rating
	if err := r.store.do(ctx, http.MethodGet, "ratings", query, nil, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *restRatings) Upsert(ctx context.Context, rating Rating) error {
	query := url.Values{"on_conflict": {"prompt_id,user_email"}}
	headers := map[string]string{"Prefer": "resolution=merge-duplicates"}
	payload := map[string]string{
		"prompt_id":  rating.PromptID,
		"user_email": rating.UserEmail,
		"rating":     rating.Rating,
	}
	return r.store.do(ctx, http.MethodPost, "ratings", query, headers, payload, nil)
}

func (r *restRatings) DeleteByPrompt(ctx context.Context, promptID string) error {
	query := url.Values{"prompt_id": {eq(promptID)}}
	return r.store.do(ctx, http.MethodDelete, "ratings", query, nil, nil, nil)
}

type restNotes struct{ store *RESTStore }

func (r *restNotes) List(ctx context.Context) ([]Note, error) {
	query := url.Values{
		"select": {"*"},
		"order":  {"created_at.asc"},
	}
	var rows []Note
	if err := r.store.do(ctx, http.MethodGet, "notes", query, nil, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *restNotes) Insert(ctx context.Context, n Note) (Note, error) {
	headers := map[string]string{"Prefer": "return=representation"}
	payload := map[string]string{
		"prompt_id":  n.PromptID,
		"note":       n.Note,
		"created_by": n.CreatedBy,
	}
	var rows []Note
	if err := r.store.do(ctx, http.MethodPost, "notes", nil, headers, payload, &rows); err != nil {
		return Note{}, err
	}
	if len(rows) == 0 {
		return Note{}, fmt.Errorf("insert note: empty representation")
	}
	return rows[0], nil
}

func (r *restNotes) DeleteByPrompt(ctx context.Context, promptID string) error {
	query := url.Values{"prompt_id": {eq(promptID)}}
	return r.store.do(ctx, http.MethodDelete, "notes", query, nil, nil, nil)
}
