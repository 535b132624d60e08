package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"otc-signal-bot/internal/logging"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// Config holds database configuration
type Config struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
	MaxConns int32  `json:"max_conns"`
}

// DSN builds the pgx connection string
func (c Config) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode,
	)
}

// NewDB creates a new database connection
func NewDB(ctx context.Context, cfg Config) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 10
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	logging.WithComponent("database").Info("connected to PostgreSQL", "host", cfg.Host, "database", cfg.Database)
	return &DB{Pool: pool}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		logging.WithComponent("database").Info("database connection closed")
	}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS signals (
		id UUID PRIMARY KEY,
		pair VARCHAR(32) NOT NULL,
		direction VARCHAR(8) NOT NULL,
		entry_time TIMESTAMPTZ NOT NULL,
		duration_minutes INTEGER NOT NULL,
		expiry_time TIMESTAMPTZ NOT NULL,
		probability DOUBLE PRECISION NOT NULL,
		quality_score DOUBLE PRECISION NOT NULL,
		grade VARCHAR(4) NOT NULL,
		entry_price DOUBLE PRECISION NOT NULL,
		exit_price DOUBLE PRECISION,
		status VARCHAR(16) NOT NULL DEFAULT 'PENDING',
		is_otc BOOLEAN NOT NULL DEFAULT FALSE,
		forced BOOLEAN NOT NULL DEFAULT FALSE,
		reasons JSONB NOT NULL DEFAULT '[]',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		settled_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_signals_created_at ON signals(created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_signals_pair ON signals(pair)`,
	`CREATE INDEX IF NOT EXISTS idx_signals_pending_expiry ON signals(expiry_time) WHERE status = 'PENDING'`,

	`CREATE TABLE IF NOT EXISTS signal_locks (
		name VARCHAR(64) PRIMARY KEY,
		owner VARCHAR(64) NOT NULL,
		locked_until TIMESTAMPTZ NOT NULL,
		acquired_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// EnsureSchema creates the signal tables when they are missing
func (db *DB) EnsureSchema(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d failed: %w", i+1, err)
		}
	}
	logging.WithComponent("database").Info("database schema ready")
	return nil
}

// HealthCheck performs a database health check
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}
