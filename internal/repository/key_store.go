package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"SybilScan/internal/domain/models"
	domrepo "SybilScan/internal/domain/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MemoryKeyStore keeps API keys for the lifetime of the process.
type MemoryKeyStore struct {
	mu   sync.RWMutex
	keys map[string]models.APIKey
}

func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{keys: make(map[string]models.APIKey)}
}

func (s *MemoryKeyStore) Create(_ context.Context, k models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[k.Key]; ok {
		return fmt.Errorf("api key already exists")
	}
	s.keys[k.Key] = k
	return nil
}

func (s *MemoryKeyStore) Get(_ context.Context, key string) (models.APIKey, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.keys[key]
	return k, ok, nil
}

func (s *MemoryKeyStore) TrackUsage(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[key]
	if !ok {
		return fmt.Errorf("unknown api key")
	}
	k.CreditsUsed++
	s.keys[key] = k
	return nil
}

func (s *MemoryKeyStore) Close() error { return nil }

// PostgresKeyStore persists API keys in the api_keys table.
type PostgresKeyStore struct {
	pool *pgxpool.Pool
}

// NewPostgresKeyStore connects, pings and ensures the schema exists.
func NewPostgresKeyStore(ctx context.Context, dsn string) (*PostgresKeyStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	s := &PostgresKeyStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresKeyStore) initSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS api_keys (
			key          TEXT PRIMARY KEY,
			name         TEXT NOT NULL,
			credits_used BIGINT NOT NULL DEFAULT 0,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create api_keys: %w", err)
	}
	return nil
}

func (s *PostgresKeyStore) Create(ctx context.Context, k models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (key, name, credits_used) VALUES ($1, $2, $3)`,
		k.Key, k.Name, k.CreditsUsed,
	)
	if err != nil {
		return fmt.Errorf("failed to save api key: %w", err)
	}
	return nil
}

func (s *PostgresKeyStore) Get(ctx context.Context, key string) (models.APIKey, bool, error) {
	var k models.APIKey
	err := s.pool.QueryRow(ctx,
		`SELECT key, name, credits_used FROM api_keys WHERE key = $1`, key,
	).Scan(&k.Key, &k.Name, &k.CreditsUsed)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.APIKey{}, false, nil
	}
	if err != nil {
		return models.APIKey{}, false, fmt.Errorf("failed to get api key: %w", err)
	}
	return k, true, nil
}

func (s *PostgresKeyStore) TrackUsage(ctx context.Context, key string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE api_keys SET credits_used = credits_used + 1 WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to track usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("unknown api key")
	}
	return nil
}

func (s *PostgresKeyStore) Close() error {
	s.pool.Close()
	return nil
}

var (
	_ domrepo.KeyStore = (*MemoryKeyStore)(nil)
	_ domrepo.KeyStore = (*PostgresKeyStore)(nil)
)
