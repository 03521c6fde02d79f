// Package identity wraps the external identity provider. The application
// consumes it as "verify credentials, return the account email or an
// error" and never interprets anything else about the provider.
package identity

import (
	"context"
	"errors"
	"fmt"
)

// ErrCredential marks bad passwords and invalid or expired one-time codes.
// The wrapped message is the provider's own and is surfaced to the user.
var ErrCredential = errors.New("credential rejected")

func credentialError(message string) error {
	return fmt.Errorf("%w: %s", ErrCredential, message)
}

type Verifier interface {
	// SendMagicLink asks the provider to email a single-use sign-in link.
	SendMagicLink(ctx context.Context, email string) error
	// ConfirmMagicLink exchanges a one-time code for the verified email.
	ConfirmMagicLink(ctx context.Context, code string) (string, error)
	// ConfirmPassword verifies an email/password pair and returns the
	// verified email.
	ConfirmPassword(ctx context.Context, email, password string) (string, error)
}
