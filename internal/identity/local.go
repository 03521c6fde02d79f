package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/yogeshchauhan3103-code/prompt-manager/internal/auth"
	"github.com/yogeshchauhan3103-code/prompt-manager/internal/email"
	"github.com/yogeshchauhan3103-code/prompt-manager/internal/recordstore"
)

const codeTTL = time.Hour

// LocalVerifier is the self-hosted provider used when no hosted identity
// service is configured. Magic-link codes are minted here, stored hashed,
// and delivered over SMTP; password sign-in compares bcrypt hashes
// provisioned on the allow-list rows. When SMTP is not configured the
// sign-in link is logged instead of mailed (dev bypass).
type LocalVerifier struct {
	accounts recordstore.Accounts
	mailer   *email.Service
	appURL   string
	now      func() time.Time

	mu    sync.Mutex
	codes map[string]pendingCode // keyed by sha256 of the code
}

type pendingCode struct {
	email     string
	expiresAt time.Time
}

func NewLocalVerifier(accounts recordstore.Accounts, mailer *email.Service, appURL string) *LocalVerifier {
	return &LocalVerifier{
		accounts: accounts,
		mailer:   mailer,
		appURL:   appURL,
		now:      time.Now,
		codes:    make(map[string]pendingCode),
	}
}

// SetClock overrides the expiry clock. Test hook.
func (v *LocalVerifier) SetClock(now func() time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.now = now
}

func (v *LocalVerifier) SendMagicLink(ctx context.Context, address string) error {
	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generate sign-in code: %w", err)
	}

	v.mu.Lock()
	v.codes[auth.HashToken(code)] = pendingCode{
		email:     strings.ToLower(strings.TrimSpace(address)),
		expiresAt: v.now().Add(codeTTL),
	}
	v.mu.Unlock()

	signInURL := fmt.Sprintf("%s/login?oobCode=%s", strings.TrimRight(v.appURL, "/"), url.QueryEscape(code))
	if v.mailer != nil && v.mailer.IsConfigured() {
		return v.mailer.SendMagicLinkEmail(address, signInURL)
	}
	log.Printf("email not configured; sign-in link for %s: %s", address, signInURL)
	return nil
}

func (v *LocalVerifier) ConfirmMagicLink(ctx context.Context, code string) (string, error) {
	hash := auth.HashToken(code)

	v.mu.Lock()
	pending, ok := v.codes[hash]
	if ok {
		delete(v.codes, hash) // single use
	}
	now := v.now()
	v.mu.Unlock()

	if !ok {
		return "", credentialError("INVALID_OOB_CODE")
	}
	if !now.Before(pending.expiresAt) {
		return "", credentialError("EXPIRED_OOB_CODE")
	}
	return pending.email, nil
}

func (v *LocalVerifier) ConfirmPassword(ctx context.Context, address, password string) (string, error) {
	account, err := v.accounts.GetByEmail(ctx, address)
	if err != nil {
		if err == recordstore.ErrNotFound {
			return "", credentialError("INVALID_LOGIN_CREDENTIALS")
		}
		return "", fmt.Errorf("lookup account: %w", err)
	}
	if account.PasswordHash == "" {
		return "", credentialError("PASSWORD_LOGIN_DISABLED")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return "", credentialError("INVALID_LOGIN_CREDENTIALS")
	}
	return account.Email, nil
}

func generateCode() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
