package recordstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore is the self-hosted backend option. It exposes the same
// repository surface as the hosted REST backend so the application cannot
// tell them apart.
type PostgresStore struct {
	db *sql.DB
}

func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB { return s.db }

func (s *PostgresStore) Close() error { return s.db.Close() }

// EnsureSchema creates the four tables when they do not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS allowed_users (
			email TEXT PRIMARY KEY,
			role TEXT NOT NULL DEFAULT 'user',
			password_hash TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS prompts (
			id TEXT PRIMARY KEY,
			prompt TEXT NOT NULL,
			query TEXT NOT NULL,
			response TEXT NOT NULL,
			created_by TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ,
			last_modified_by TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS ratings (
			prompt_id TEXT NOT NULL,
			user_email TEXT NOT NULL,
			rating TEXT NOT NULL,
			PRIMARY KEY (prompt_id, user_email)
		)`,
		`CREATE TABLE IF NOT EXISTS notes (
			id TEXT PRIMARY KEY,
			prompt_id TEXT NOT NULL,
			note TEXT NOT NULL,
			created_by TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, statement := range statements {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Accounts() Accounts { return &pgAccounts{s.db} }
func (s *PostgresStore) Prompts() Prompts   { return &pgPrompts{s.db} }
func (s *PostgresStore) Ratings() Ratings   { return &pgRatings{s.db} }
func (s *PostgresStore) Notes() Notes       { return &pgNotes{s.db} }

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type pgAccounts struct{ db *sql.DB }

func (r *pgAccounts) GetByEmail(ctx context.Context, email string) (Account, error) {
	const query = `SELECT email, role, password_hash FROM allowed_users WHERE email = $1`
	var account Account
	err := r.db.QueryRowContext(ctx, query, email).Scan(&account.Email, &account.Role, &account.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("lookup account: %w", err)
	}
	return account, nil
}

type pgPrompts struct{ db *sql.DB }

func (r *pgPrompts) List(ctx context.Context) ([]Prompt, error) {
	const query = `
		SELECT id, prompt, query, response, created_by, created_at, updated_at, last_modified_by
		FROM prompts
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	defer rows.Close()

	var out []Prompt
	for rows.Next() {
		var p Prompt
		if err := rows.Scan(&p.ID, &p.Prompt, &p.Query, &p.Response, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt, &p.LastModifiedBy); err != nil {
			return nil, fmt.Errorf("scan prompt: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *pgPrompts) Insert(ctx context.Context, p Prompt) (Prompt, error) {
	const query = `
		INSERT INTO prompts (id, prompt, query, response, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, prompt, query, response, created_by, created_at, updated_at, last_modified_by
	`
	id := uuid.NewString()
	var inserted Prompt
	err := r.db.QueryRowContext(ctx, query, id, p.Prompt, p.Query, p.Response, p.CreatedBy).
		Scan(&inserted.ID, &inserted.Prompt, &inserted.Query, &inserted.Response, &inserted.CreatedBy, &inserted.CreatedAt, &inserted.UpdatedAt, &inserted.LastModifiedBy)
	if err != nil {
		return Prompt{}, fmt.Errorf("insert prompt: %w", err)
	}
	return inserted, nil
}

func (r *pgPrompts) Update(ctx context.Context, id string, patch PromptPatch) error {
	const query = `
		UPDATE prompts
		SET prompt=$2, query=$3, response=$4, updated_at=$5, last_modified_by=$6
		WHERE id=$1
	`
	result, err := r.db.ExecContext(ctx, query, id, patch.Prompt, patch.Query, patch.Response, patch.UpdatedAt, patch.LastModifiedBy)
	if err != nil {
		return fmt.Errorf("update prompt: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update prompt: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgPrompts) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM prompts WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete prompt: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete prompt: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type pgRatings struct{ db *sql.DB }

func (r *pgRatings) List(ctx context.Context) ([]Rating, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT prompt_id, user_email, rating FROM ratings`)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	defer rows.Close()

	var out []Rating
	for rows.Next() {
		var rating Rating
		if err := rows.Scan(&rating.PromptID, &rating.UserEmail, &rating.Rating); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		out = append(out, rating)
	}
	return out, rows.Err()
}

func (r *pgRatings) Upsert(ctx context.Context, rating Rating) error {
	const query = `
		INSERT INTO ratings (prompt_id, user_email, rating)
		VALUES ($1, $2, $3)
		ON CONFLICT (prompt_id, user_email) DO UPDATE SET rating=EXCLUDED.rating
	`
	if _, err := r.db.ExecContext(ctx, query, rating.PromptID, rating.UserEmail, rating.Rating); err != nil {
		return fmt.Errorf("upsert rating: %w", err)
	}
	return nil
}

func (r *pgRatings) DeleteByPrompt(ctx context.Context, promptID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM ratings WHERE prompt_id=$1`, promptID); err != nil {
		return fmt.Errorf("delete ratings: %w", err)
	}
	return nil
}

type pgNotes struct{ db *sql.DB }

func (r *pgNotes) List(ctx context.Context) ([]Note, error) {
	const query = `
		SELECT id, prompt_id, note, created_by, created_at
		FROM notes
		ORDER BY created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var out []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.PromptID, &n.Note, &n.CreatedBy, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *pgNotes) Insert(ctx context.Context, n Note) (Note, error) {
	const query = `
		INSERT INTO notes (id, prompt_id, note, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, prompt_id, note, created_by, created_at
	`
	id := uuid.NewString()
	var inserted Note
	err := r.db.QueryRowContext(ctx, query, id, n.PromptID, n.Note, n.CreatedBy).
		Scan(&inserted.ID, &inserted.PromptID, &inserted.Note, &inserted.CreatedBy, &inserted.CreatedAt)
	if err != nil {
		return Note{}, fmt.Errorf("insert note: %w", err)
	}
	return inserted, nil
}

func (r *pgNotes) DeleteByPrompt(ctx context.Context, promptID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE prompt_id=$1`, promptID); err != nil {
		return fmt.Errorf("delete notes: %w", err)
	}
	return nil
}
