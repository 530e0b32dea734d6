package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Default values for optional PGConfig fields.
const (
	DefaultPGPort     = 5432
	DefaultPGSSLMode  = "prefer"
	DefaultPGMaxConns = 10
	DefaultPGMinConns = 2
	DefaultPGTable    = "modkit_sessions"
)

// PGConfig holds connection settings for the Postgres store.
type PGConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string

	MaxConns int
	MinConns int

	// Table is the session table name.
	Table string
}

func (c *PGConfig) applyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPGPort
	}
	if c.SSLMode == "" {
		c.SSLMode = DefaultPGSSLMode
	}
	if c.MaxConns == 0 {
		c.MaxConns = DefaultPGMaxConns
	}
	if c.MinConns == 0 {
		c.MinConns = DefaultPGMinConns
	}
	if c.Table == "" {
		c.Table = DefaultPGTable
	}
}

// ConnString builds a PostgreSQL connection string from the config.
func (c PGConfig) ConnString() string {
	// URL-encode password to handle special characters
	escapedPassword := url.QueryEscape(c.Password)

	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = DefaultPGSSLMode
	}
	port := c.Port
	if port == 0 {
		port = DefaultPGPort
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User,
		escapedPassword,
		c.Host,
		port,
		c.Name,
		sslMode,
	)
}

// PGStore persists sessions in a Postgres table with a JSONB data column.
type PGStore struct {
	pool  *pgxpool.Pool
	table string
}

// NewPGStore connects to Postgres and returns a store. The connection is
// pinged before the store is handed out.
func NewPGStore(ctx context.Context, cfg PGConfig) (*PGStore, error) {
	cfg.applyDefaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PGStore{pool: pool, table: cfg.Table}, nil
}

// EnsureSchema creates the session table if it does not exist.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id         TEXT PRIMARY KEY,
			data       JSONB NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		)`, s.table)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create session table: %w", err)
	}
	return nil
}

// Load returns the data saved under id.
func (s *PGStore) Load(ctx context.Context, id string) (map[string]any, error) {
	query := fmt.Sprintf(
		"SELECT data FROM %s WHERE id = $1 AND expires_at > now()", s.table,
	)

	var raw []byte
	err := s.pool.QueryRow(ctx, query, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode session data: %w", err)
	}
	return data, nil
}

// Save upserts the session row.
func (s *PGStore) Save(ctx context.Context, id string, data map[string]any, ttl time.Duration) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode session data: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, data, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET data = EXCLUDED.data, expires_at = EXCLUDED.expires_at`, s.table)

	if _, err := s.pool.Exec(ctx, query, id, raw, time.Now().Add(ttl)); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete removes the session row.
func (s *PGStore) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.table)
	if _, err := s.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Sweep removes expired rows and returns how many were deleted.
func (s *PGStore) Sweep(ctx context.Context) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE expires_at <= now()", s.table)
	tag, err := s.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Close releases the connection pool.
func (s *PGStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
