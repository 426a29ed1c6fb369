package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a PostgreSQL-backed Store. Tables come from
// database.Migrate.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed account store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) SaveAccount(ctx context.Context, rec Record) error {
	classes, err := json.Marshal(rec.User.Classes)
	if err != nil {
		return fmt.Errorf("marshal classes: %w", err)
	}

	var expiresAt *time.Time
	if !rec.ExpiresAt.IsZero() {
		expiresAt = &rec.ExpiresAt
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO accounts (user_id, name, email, role, classes, sealed_token, expires_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, NOW())
		 ON CONFLICT (user_id) DO UPDATE SET
		   name = EXCLUDED.name,
		   email = EXCLUDED.email,
		   role = EXCLUDED.role,
		   classes = EXCLUDED.classes,
		   sealed_token = EXCLUDED.sealed_token,
		   expires_at = EXCLUDED.expires_at,
		   updated_at = NOW()`,
		rec.User.ID, rec.User.Name, rec.User.Email, rec.User.Role, string(classes), rec.SealedToken, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, userID string) (Record, error) {
	var (
		rec       Record
		classes   []byte
		expiresAt *time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, name, email, role, classes, sealed_token, expires_at, updated_at
		 FROM accounts WHERE user_id = $1`,
		userID,
	).Scan(&rec.User.ID, &rec.User.Name, &rec.User.Email, &rec.User.Role, &classes, &rec.SealedToken, &expiresAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get account: %w", err)
	}
	if err := json.Unmarshal(classes, &rec.User.Classes); err != nil {
		return Record{}, fmt.Errorf("unmarshal classes: %w", err)
	}
	if expiresAt != nil {
		rec.ExpiresAt = *expiresAt
	}
	return rec, nil
}

func (s *PostgresStore) ClearToken(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE accounts SET sealed_token = NULL, expires_at = NULL, updated_at = NOW() WHERE user_id = $1`,
		userID,
	); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPreference(ctx context.Context, ownerID, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM preferences WHERE owner_id = $1 AND key = $2`,
		ownerID, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get preference: %w", err)
	}
	return value, true, nil
}

func (s *PostgresStore) SetPreference(ctx context.Context, ownerID, key, value string) error {
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO preferences (owner_id, key, value, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (owner_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		ownerID, key, value,
	); err != nil {
		return fmt.Errorf("set preference: %w", err)
	}
	return nil
}
