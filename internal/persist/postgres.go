package persist

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/memetic-os/memos/internal/strategy"
	"go.uber.org/zap"
)

const (
	docSnapshot = "snapshot"
	docStats    = "strategy_stats"
)

// PostgresStore keeps the two documents as jsonb rows in a single table,
// upserted wholesale on every save.
type PostgresStore struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore connects a pgx pool and verifies it.
func NewPostgresStore(dsn string, logger *zap.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	logger.Info("PostgreSQL connected")
	return &PostgresStore{db: pool, logger: logger}, nil
}

// EnsureSchema creates the documents table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			name       TEXT PRIMARY KEY,
			content    JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) saveDoc(ctx context.Context, name string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO documents (name, content, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET
			content = EXCLUDED.content,
			updated_at = EXCLUDED.updated_at`,
		name, data)
	if err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

func (s *PostgresStore) loadDoc(ctx context.Context, name string, v interface{}) (bool, error) {
	var data []byte
	err := s.db.QueryRow(ctx,
		`SELECT content FROM documents WHERE name = $1`, name).Scan(&data)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parse %s: %w", name, err)
	}
	return true, nil
}

// LoadSnapshot reads the {memes, memory} document.
func (s *PostgresStore) LoadSnapshot(ctx context.Context) (*Snapshot, bool, error) {
	var snap Snapshot
	found, err := s.loadDoc(ctx, docSnapshot, &snap)
	if err != nil || !found {
		return nil, found, err
	}
	return &snap, true, nil
}

// SaveSnapshot upserts the {memes, memory} document.
func (s *PostgresStore) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	return s.saveDoc(ctx, docSnapshot, snap)
}

// LoadStats reads the strategy statistics document.
func (s *PostgresStore) LoadStats(ctx context.Context) (strategy.Stats, bool, error) {
	var stats strategy.Stats
	found, err := s.loadDoc(ctx, docStats, &stats)
	if err != nil || !found {
		return nil, found, err
	}
	return stats, true, nil
}

// SaveStats upserts the strategy statistics document.
func (s *PostgresStore) SaveStats(ctx context.Context, stats strategy.Stats) error {
	return s.saveDoc(ctx, docStats, stats)
}

// Close shuts down the connection pool.
func (s *PostgresStore) Close() {
	s.db.Close()
}
