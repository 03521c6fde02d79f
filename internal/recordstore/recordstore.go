// Package recordstore holds the typed repositories for the four tables the
// application reads and writes: allowed_users, prompts, ratings and notes.
// The application never owns this data; every implementation is a client of
// a backing store and the in-memory structures elsewhere are views.
package recordstore

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("record not found")

// Account is one row of the allow-list. Provisioned out-of-band and
// read-only from this system. PasswordHash is optional and only consulted
// by the local identity provider.
type Account struct {
	Email        string `json:"email"`
	Role         string `json:"role"`
	PasswordHash string `json:"password_hash,omitempty"`
}

type Prompt struct {
	ID             string     `json:"id"`
	Prompt         string     `json:"prompt"`
	Query          string     `json:"query"`
	Response       string     `json:"response"`
	CreatedBy      string     `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
	LastModifiedBy string     `json:"last_modified_by,omitempty"`
}

// PromptPatch carries the fields an edit re-writes. UpdatedAt and
// LastModifiedBy are re-stamped on every update.
type PromptPatch struct {
	Prompt         string    `json:"prompt"`
	Query          string    `json:"query"`
	Response       string    `json:"response"`
	UpdatedAt      time.Time `json:"updated_at"`
	LastModifiedBy string    `json:"last_modified_by"`
}

// Rating has a composite unique key (prompt_id, user_email). Absence of a
// row means unrated; no "no rating" row is ever stored.
type Rating struct {
	PromptID  string `json:"prompt_id"`
	UserEmail string `json:"user_email"`
	Rating    string `json:"rating"`
}

type Note struct {
	ID        string    `json:"id"`
	PromptID  string    `json:"prompt_id"`
	Note      string    `json:"note"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

type Accounts interface {
	GetByEmail(ctx context.Context, email string) (Account, error)
}

type Prompts interface {
	// List returns prompts ordered by created_at descending.
	List(ctx context.Context) ([]Prompt, error)
	Insert(ctx context.Context, p Prompt) (Prompt, error)
	Update(ctx context.Context, id string, patch PromptPatch) error
	Delete(ctx context.Context, id string) error
}

type Ratings interface {
	List(ctx context.Context) ([]Rating, error)
	// Upsert overwrites any prior rating for (prompt_id, user_email).
	Upsert(ctx context.Context, r Rating) error
	DeleteByPrompt(ctx context.Context, promptID string) error
}

type Notes interface {
	// List returns notes ordered by created_at ascending.
	List(ctx context.Context) ([]Note, error)
	Insert(ctx context.Context, n Note) (Note, error)
	DeleteByPrompt(ctx context.Context, promptID string) error
}

// Store aggregates the per-table repositories.
type Store interface {
	Accounts() Accounts
	Prompts() Prompts
	Ratings() Ratings
	Notes() Notes
	Ping(ctx context.Context) error
}
