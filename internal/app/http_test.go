package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yogeshchauhan3103-code/prompt-manager/internal/view"
)

func doRequest(t *testing.T, server *HTTPServer, method, path, token string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body == "" {
		reader = bytes.NewBufferString("{}")
	} else {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func decodePage(t *testing.T, rr *httptest.ResponseRecorder) view.Page {
	t.Helper()
	var page view.Page
	if err := json.Unmarshal(rr.Body.Bytes(), &page); err != nil {
		t.Fatalf("parse page: %v body=%s", err, rr.Body.String())
	}
	return page
}

func TestBoardRequiresAuthentication(t *testing.T) {
	env := newTestEnv(t)
	server := NewHTTPServer(env.svc, "*")

	rr := doRequest(t, server, http.MethodGet, "/api/board", "", "")

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &payload)
	if payload["code"] != "UNAUTHORIZED" {
		t.Fatalf("expected UNAUTHORIZED code, got %v", payload)
	}
}

func TestBoardRejectsGarbageToken(t *testing.T) {
	env := newTestEnv(t)
	server := NewHTTPServer(env.svc, "*")

	rr := doRequest(t, server, http.MethodGet, "/api/board", "not-a-token", "")

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestMagicLinkCompleteReturnsSessionContract(t *testing.T) {
	env := newTestEnv(t)
	env.verifier.confirmEmail = "alice@team.example"
	server := NewHTTPServer(env.svc, "*")

	rr := doRequest(t, server, http.MethodPost, "/api/auth/magic-link/complete", "", `{"oobCode":"code-1"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	token, _ := payload["token"].(string)
	if token == "" {
		t.Fatalf("expected token in response: %v", payload)
	}
	if payload["email"] != "alice@team.example" || payload["isAdmin"] != false {
		t.Fatalf("unexpected session payload: %v", payload)
	}

	session := doRequest(t, server, http.MethodGet, "/api/session", token, "")
	var check map[string]any
	_ = json.Unmarshal(session.Body.Bytes(), &check)
	if check["authenticated"] != true || check["email"] != "alice@team.example" {
		t.Fatalf("session endpoint did not recognize the token: %v", check)
	}
}

func TestMagicLinkRequestForUnknownEmailIsForbidden(t *testing.T) {
	env := newTestEnv(t)
	server := NewHTTPServer(env.svc, "*")

	rr := doRequest(t, server, http.MethodPost, "/api/auth/magic-link", "", `{"email":"stranger@elsewhere.example"}`)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body=%s", rr.Code, rr.Body.String())
	}
	if env.verifier.sendCalls != 0 {
		t.Fatalf("provider called for unknown email")
	}
}

func TestBoardSearchFilterIsCaseInsensitive(t *testing.T) {
	env := newTestEnv(t)
	sess := env.login(t, "alice@team.example", "user")
	env.addPrompt(t, sess, "Fetch weekly metrics", "how to fetch", "use the dashboard")
	env.addPrompt(t, sess, "Draft release notes", "what changed", "see changelog")
	server := NewHTTPServer(env.svc, "*")

	rr := doRequest(t, server, http.MethodGet, "/api/board?search=FETCH", sess.Token, "")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	page := decodePage(t, rr)
	if page.Total != 1 || !strings.Contains(page.Rows[0].Prompt.Prompt, "Fetch") {
		t.Fatalf("search did not match case-insensitively: %+v", page)
	}
}

func TestRateEndpointReturnsRefreshedBoard(t *testing.T) {
	env := newTestEnv(t)
	sess := env.login(t, "alice@team.example", "user")
	prompt := env.addPrompt(t, sess, "p", "q", "r")
	server := NewHTTPServer(env.svc, "*")

	rr := doRequest(t, server, http.MethodPost, "/api/prompts/"+prompt.ID+"/rate", sess.Token, `{"direction":"up"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	page := decodePage(t, rr)
	if page.Rows[0].Rating != "up" {
		t.Fatalf("expected up rating on refreshed board, got %+v", page.Rows[0])
	}
}

func TestDeleteEndpointForbiddenForUserRole(t *testing.T) {
	env := newTestEnv(t)
	sess := env.login(t, "alice@team.example", "user")
	prompt := env.addPrompt(t, sess, "p", "q", "r")
	server := NewHTTPServer(env.svc, "*")

	rr := doRequest(t, server, http.MethodDelete, "/api/prompts/"+prompt.ID, sess.Token, "")

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestImportEndpointReportsCounts(t *testing.T) {
	env := newTestEnv(t)
	sess := env.login(t, "alice@team.example", "user")
	server := NewHTTPServer(env.svc, "*")

	body := `[{"prompt":"a","query":"b","response":"c"},{"prompt":"only prompt"}]`
	rr := doRequest(t, server, http.MethodPost, "/api/prompts/import", sess.Token, body)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var report ImportReport
	if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
		t.Fatalf("parse report: %v", err)
	}
	if report.Found != 2 || report.Imported != 2 || report.Failed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}

	prompts, _ := env.store.Prompts().List(context.Background())
	if len(prompts) != 2 {
		t.Fatalf("expected 2 prompts imported, got %d", len(prompts))
	}
	for _, p := range prompts {
		if p.CreatedBy != "alice@team.example" {
			t.Fatalf("import did not attribute to the importer: %+v", p)
		}
	}
}

func TestImportEndpointRejectsMalformedUpload(t *testing.T) {
	env := newTestEnv(t)
	sess := env.login(t, "alice@team.example", "user")
	server := NewHTTPServer(env.svc, "*")

	rr := doRequest(t, server, http.MethodPost, "/api/prompts/import", sess.Token, `{"not":"an array"}`)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &payload)
	if payload["code"] != "PARSE_ERROR" {
		t.Fatalf("expected PARSE_ERROR, got %v", payload)
	}
	prompts, _ := env.store.Prompts().List(context.Background())
	if len(prompts) != 0 {
		t.Fatalf("rows imported from a malformed upload")
	}
}

func TestExportEndpointSetsDownloadHeaders(t *testing.T) {
	env := newTestEnv(t)
	sess := env.login(t, "alice@team.example", "user")
	env.addPrompt(t, sess, "p1", "q1", "r1")
	server := NewHTTPServer(env.svc, "*")

	rr := doRequest(t, server, http.MethodGet, "/api/export?format=csv", sess.Token, "")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("expected text/csv, got %q", ct)
	}
	disposition := rr.Header().Get("Content-Disposition")
	if !strings.Contains(disposition, "attachment") || !strings.Contains(disposition, "prompts_") || !strings.Contains(disposition, ".csv") {
		t.Fatalf("unexpected disposition %q", disposition)
	}
	if !strings.HasPrefix(rr.Body.String(), "prompt,query,response") {
		t.Fatalf("unexpected csv body: %s", rr.Body.String())
	}
}

func TestExportEndpointRejectsUnknownFormat(t *testing.T) {
	env := newTestEnv(t)
	sess := env.login(t, "alice@team.example", "user")
	server := NewHTTPServer(env.svc, "*")

	rr := doRequest(t, server, http.MethodGet, "/api/export?format=pdf", sess.Token, "")

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestExportScopeAllIgnoresActiveFilters(t *testing.T) {
	env := newTestEnv(t)
	sess := env.login(t, "alice@team.example", "user")
	env.addPrompt(t, sess, "alpha", "q", "r")
	env.addPrompt(t, sess, "beta", "q", "r")
	server := NewHTTPServer(env.svc, "*")

	rr := doRequest(t, server, http.MethodGet, "/api/export?format=json&scope=all&search=alpha", sess.Token, "")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var rows []map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &rows); err != nil {
		t.Fatalf("parse export: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("scope=all should export everything, got %d rows", len(rows))
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	env := newTestEnv(t)
	sess := env.login(t, "alice@team.example", "user")
	server := NewHTTPServer(env.svc, "*")

	rr := doRequest(t, server, http.MethodGet, "/api/nope", sess.Token, "")

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)
	server := NewHTTPServer(env.svc, "*")

	rr := doRequest(t, server, http.MethodGet, "/api/health", "", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if id := rr.Header().Get("X-Request-ID"); id == "" {
		t.Fatalf("expected request id header")
	}
}
