package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/yogeshchauhan3103-code/prompt-manager/internal/auth"
	"github.com/yogeshchauhan3103-code/prompt-manager/internal/cache"
	"github.com/yogeshchauhan3103-code/prompt-manager/internal/config"
	"github.com/yogeshchauhan3103-code/prompt-manager/internal/export"
	"github.com/yogeshchauhan3103-code/prompt-manager/internal/identity"
	"github.com/yogeshchauhan3103-code/prompt-manager/internal/rbac"
	"github.com/yogeshchauhan3103-code/prompt-manager/internal/recordstore"
	"github.com/yogeshchauhan3103-code/prompt-manager/internal/session"
	"github.com/yogeshchauhan3103-code/prompt-manager/internal/util"
	"github.com/yogeshchauhan3103-code/prompt-manager/internal/view"
)

// Session is the request-scoped authenticated identity. It is re-read from
// the session store on every request; nothing ambient survives between
// renders.
type Session struct {
	Token     string
	Email     string
	Role      string
	JTI       string
	ExpiresAt time.Time
}

func (s Session) IsAdmin() bool {
	return rbac.Normalize(s.Role) == rbac.RoleAdmin
}

type Service struct {
	cfg      config.Config
	store    recordstore.Store
	sessions session.Store
	verifier identity.Verifier
	reads    *cache.ReadCache
	now      func() time.Time
}

func New(cfg config.Config, store recordstore.Store, sessions session.Store, verifier identity.Verifier, reads *cache.ReadCache) *Service {
	return &Service{
		cfg:      cfg,
		store:    store,
		sessions: sessions,
		verifier: verifier,
		reads:    reads,
		now:      time.Now,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// checkAllowList is the allow-list gate: exact-match lookup, role on hit,
// Unauthorized on miss. Read-only.
func (s *Service) checkAllowList(ctx context.Context, email string) (string, error) {
	account, err := s.store.Accounts().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, recordstore.ErrNotFound) {
			return "", unauthorizedError()
		}
		return "", storeError(err)
	}
	return account.Role, nil
}

// RequestMagicLink checks the allow-list before asking the provider to
// send anything; unknown emails never reach the provider.
func (s *Service) RequestMagicLink(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return validationError("email is required")
	}
	if _, err := s.checkAllowList(ctx, email); err != nil {
		return err
	}
	if err := s.verifier.SendMagicLink(ctx, email); err != nil {
		return credentialOrInternal(err)
	}
	return nil
}

// CompleteMagicLink exchanges the one-time code and gates the confirmed
// email through the allow-list again: a credential the provider accepts is
// still rejected when the email is not provisioned.
func (s *Service) CompleteMagicLink(ctx context.Context, code string) (Session, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Session{}, validationError("oobCode is required")
	}
	email, err := s.verifier.ConfirmMagicLink(ctx, code)
	if err != nil {
		return Session{}, credentialOrInternal(err)
	}
	role, err := s.checkAllowList(ctx, email)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, email, role)
}

func (s *Service) SignInPassword(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Session{}, validationError("email and password are required")
	}
	confirmed, err := s.verifier.ConfirmPassword(ctx, email, password)
	if err != nil {
		return Session{}, credentialOrInternal(err)
	}
	role, err := s.checkAllowList(ctx, confirmed)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, confirmed, role)
}

func credentialOrInternal(err error) error {
	if errors.Is(err, identity.ErrCredential) {
		return domainError(401, "CREDENTIAL_ERROR", err.Error(), nil)
	}
	return &DomainError{Status: 502, Code: "IDENTITY_ERROR", Message: "Identity provider call failed"}
}

func (s *Service) issueSession(ctx context.Context, email, role string) (Session, error) {
	expiresAt := s.now().Add(s.cfg.SessionTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.TokenSecret), auth.Claims{
		Email: email,
		Role:  role,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.Save(ctx, jti, session.Data{Email: email, Role: role}, expiresAt); err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		Email:     email,
		Role:      role,
		JTI:       jti,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}
	data, err := s.sessions.Lookup(ctx, claims.JTI)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, err
	}
	return Session{
		Token:     token,
		Email:     data.Email,
		Role:      data.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, sess Session) error {
	if sess.JTI == "" {
		return nil
	}
	return s.sessions.Revoke(ctx, sess.JTI)
}

// Board re-assembles the main view from the cached reads. The session gate
// lives here: without an authenticated email the result is a redirect to
// the login view, never a page.
func (s *Service) Board(ctx context.Context, sess Session, q view.Query) (view.Result, error) {
	if sess.Email == "" {
		return view.Redirect("/login"), nil
	}

	prompts, err := s.reads.Prompts(ctx)
	if err != nil {
		return view.Result{}, storeError(err)
	}
	ratings, err := s.reads.Ratings(ctx)
	if err != nil {
		return view.Result{}, storeError(err)
	}
	notes, err := s.reads.Notes(ctx)
	if err != nil {
		return view.Result{}, storeError(err)
	}

	q.Viewer = sess.Email
	page := view.Assemble(prompts, ratings, notes, q)
	page.IsAdmin = sess.IsAdmin()
	return view.Render(page), nil
}

// Refresh drops the read cache so the next render hits the store.
func (s *Service) Refresh(ctx context.Context, sess Session, q view.Query) (view.Result, error) {
	s.reads.Invalidate()
	return s.Board(ctx, sess, q)
}

func (s *Service) AddPrompt(ctx context.Context, sess Session, prompt, query, response string, q view.Query) (view.Result, error) {
	if strings.TrimSpace(prompt) == "" || strings.TrimSpace(query) == "" || strings.TrimSpace(response) == "" {
		return view.Result{}, validationError("all fields are required")
	}
	_, err := s.store.Prompts().Insert(ctx, recordstore.Prompt{
		Prompt:    prompt,
		Query:     query,
		Response:  response,
		CreatedBy: sess.Email,
	})
	if err != nil {
		return view.Result{}, storeError(err)
	}
	s.reads.Invalidate()
	return s.Board(ctx, sess, q)
}

func (s *Service) EditPrompt(ctx context.Context, sess Session, id, prompt, query, response string, q view.Query) (view.Result, error) {
	if strings.TrimSpace(prompt) == "" || strings.TrimSpace(query) == "" || strings.TrimSpace(response) == "" {
		return view.Result{}, validationError("all fields are required")
	}
	patch := recordstore.PromptPatch{
		Prompt:         prompt,
		Query:          query,
		Response:       response,
		UpdatedAt:      s.now().UTC(),
		LastModifiedBy: sess.Email,
	}
	if err := s.store.Prompts().Update(ctx, id, patch); err != nil {
		return view.Result{}, storeError(err)
	}
	s.reads.Invalidate()
	return s.Board(ctx, sess, q)
}

// DeletePrompt is admin-only regardless of what the client sends. The
// cascade order is ratings, notes, then the prompt itself.
func (s *Service) DeletePrompt(ctx context.Context, sess Session, id string, q view.Query) (view.Result, error) {
	if !rbac.Can(rbac.Normalize(sess.Role), rbac.ActionDelete) {
		return view.Result{}, unauthorizedError()
	}
	if err := s.store.Ratings().DeleteByPrompt(ctx, id); err != nil {
		return view.Result{}, storeError(err)
	}
	if err := s.store.Notes().DeleteByPrompt(ctx, id); err != nil {
		return view.Result{}, storeError(err)
	}
	if err := s.store.Prompts().Delete(ctx, id); err != nil {
		return view.Result{}, storeError(err)
	}
	s.reads.Invalidate()
	return s.Board(ctx, sess, q)
}

// RatePrompt upserts the viewer's vote; a new vote overwrites the prior
// one for the same (prompt, viewer) key.
func (s *Service) RatePrompt(ctx context.Context, sess Session, id, direction string, q view.Query) (view.Result, error) {
	direction = strings.ToLower(strings.TrimSpace(direction))
	if direction != view.RatingUp && direction != view.RatingDown {
		return view.Result{}, validationError("direction must be 'up' or 'down'")
	}
	err := s.store.Ratings().Upsert(ctx, recordstore.Rating{
		PromptID:  id,
		UserEmail: sess.Email,
		Rating:    direction,
	})
	if err != nil {
		return view.Result{}, storeError(err)
	}
	s.reads.Invalidate()
	return s.Board(ctx, sess, q)
}

func (s *Service) AddNote(ctx context.Context, sess Session, promptID, text string, q view.Query) (view.Result, error) {
	if strings.TrimSpace(text) == "" {
		return view.Result{}, validationError("note is required")
	}
	_, err := s.store.Notes().Insert(ctx, recordstore.Note{
		PromptID:  promptID,
		Note:      text,
		CreatedBy: sess.Email,
	})
	if err != nil {
		return view.Result{}, storeError(err)
	}
	s.reads.Invalidate()
	return s.Board(ctx, sess, q)
}

// ExportBoard serializes either the currently filtered view or the full
// prompt set, per the configured default or an explicit scope override.
func (s *Service) ExportBoard(ctx context.Context, sess Session, q view.Query, format export.Format, scope string) (*export.Result, error) {
	if scope == "" {
		scope = s.cfg.ExportScope
	}
	if scope == "all" {
		q = view.Query{Viewer: sess.Email}
	}

	result, err := s.Board(ctx, sess, q)
	if err != nil {
		return nil, err
	}
	if result.IsRedirect() {
		return nil, unauthorizedError()
	}

	rows := make([]export.Row, 0, len(result.Page.Rows))
	for _, row := range result.Page.Rows {
		rows = append(rows, export.Row{
			Prompt:   row.Prompt.Prompt,
			Query:    row.Prompt.Query,
			Response: row.Prompt.Response,
			Rating:   row.Rating,
		})
	}
	return export.Encode(format, rows, s.now())
}
