package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// RESTVerifier is the hosted identity-toolkit provider. Endpoints follow
// the accounts:sendOobCode / accounts:signInWithEmailLink /
// accounts:signInWithPassword shape.
type RESTVerifier struct {
	baseURL     string
	apiKey      string
	continueURL string
	client      *http.Client
}

func NewRESTVerifier(baseURL, apiKey, continueURL string) *RESTVerifier {
	return &RESTVerifier{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		continueURL: continueURL,
		client:      &http.Client{Timeout: 15 * time.Second},
	}
}

type providerError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (v *RESTVerifier) post(ctx context.Context, action string, payload, out any) error {
	endpoint := fmt.Sprintf("%s/accounts:%s?key=%s", v.baseURL, action, v.apiKey)

	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", action, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var provider providerError
		if err := json.NewDecoder(resp.Body).Decode(&provider); err == nil && provider.Error.Message != "" {
			return credentialError(provider.Error.Message)
		}
		return credentialError(fmt.Sprintf("%s failed with status %d", action, resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", action, err)
	}
	return nil
}

func (v *RESTVerifier) SendMagicLink(ctx context.Context, email string) error {
	payload := map[string]any{
		"requestType":        "EMAIL_SIGNIN",
		"email":              email,
		"continueUrl":        v.continueURL,
		"canHandleCodeInApp": true,
	}
	return v.post(ctx, "sendOobCode", payload, nil)
}

func (v *RESTVerifier) ConfirmMagicLink(ctx context.Context, code string) (string, error) {
	var out struct {
		Email string `json:"email"`
	}
	if err := v.post(ctx, "signInWithEmailLink", map[string]string{"oobCode": code}, &out); err != nil {
		return "", err
	}
	if out.Email == "" {
		return "", credentialError("provider returned no email")
	}
	return out.Email, nil
}

func (v *RESTVerifier) ConfirmPassword(ctx context.Context, email, password string) (string, error) {
	payload := map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}
	var out struct {
		Email string `json:"email"`
	}
	if err := v.post(ctx, "signInWithPassword", payload, &out); err != nil {
		return "", err
	}
	if out.Email == "" {
		return "", credentialError("provider returned no email")
	}
	return out.Email, nil
}
