package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"
)

// DB represents a PostgreSQL database connection
type DB struct {
	client *sql.DB
	config *Config
}

// GetConfig returns the original DB connection settings
func (d *DB) GetConfig() *Config {
	return d.config
}

// Config holds PostgreSQL connection configuration
type Config struct {
	Host               string        // Database host
	Port               string        // Database port
	User               string        // Database user
	Password           string        // Database password
	Database           string        // Database name
	SSLMode            string        // SSL mode (disable, require, verify-ca, verify-full)
	MaxIdleConns       int           // Maximum number of idle connections
	MaxOpenConns       int           // Maximum number of open connections
	MaxLifetime        time.Duration // Maximum lifetime of a connection
	StatementTimeoutMs int           // Server-side statement timeout, 0 uses the default
	DatabaseURL        string        // Original DATABASE_URL if used
}

// ConnectionString returns the PostgreSQL connection string
func (c *Config) ConnectionString() string {
	dsn := c.DatabaseURL
	if dsn == "" {
		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
	}
	return AugmentDSNWithTimeout(dsn, c.StatementTimeoutMs)
}

// AugmentDSNWithTimeout adds statement_timeout to a DSN if not already present.
// Supports both URL format (postgresql://...) and key=value format
func AugmentDSNWithTimeout(dsn string, timeoutMs int) string {
	if dsn == "" || strings.Contains(dsn, "statement_timeout") {
		return dsn
	}
	if timeoutMs <= 0 {
		timeoutMs = 60000
	}

	if strings.HasPrefix(dsn, "postgresql://") || strings.HasPrefix(dsn, "postgres://") {
		separator := "?"
		if strings.Contains(dsn, "?") {
			separator = "&"
		}
		return fmt.Sprintf("%s%sstatement_timeout=%d", dsn, separator, timeoutMs)
	}
	return fmt.Sprintf("%s statement_timeout=%d", dsn, timeoutMs)
}

func (c *Config) applyDefaults() {
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 10
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxLifetime == 0 {
		c.MaxLifetime = 20 * time.Minute
	}
}

func (c *Config) validate() error {
	if c.DatabaseURL != "" {
		return nil
	}
	if c.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Port == "" {
		return fmt.Errorf("database port is required")
	}
	if c.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database name is required")
	}
	return nil
}

// New creates a new PostgreSQL database connection and ensures the schema exists
func New(config *Config) (*DB, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	client, err := sql.Open("pgx", config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	client.SetMaxOpenConns(config.MaxOpenConns)
	client.SetMaxIdleConns(config.MaxIdleConns)
	client.SetConnMaxLifetime(config.MaxLifetime)

	if err := client.Ping(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	if err := setupSchema(client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to setup schema: %w", err)
	}

	return &DB{client: client, config: config}, nil
}

// NewWithClient wraps an existing connection without touching the schema.
func NewWithClient(client *sql.DB) *DB {
	return &DB{client: client, config: &Config{}}
}

// InitFromEnv creates a PostgreSQL connection using environment variables
func InitFromEnv() (*DB, error) {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return New(&Config{DatabaseURL: url})
	}

	config := &Config{
		Host:     os.Getenv("POSTGRES_HOST"),
		Port:     os.Getenv("POSTGRES_PORT"),
		User:     os.Getenv("POSTGRES_USER"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		Database: os.Getenv("POSTGRES_DB"),
		SSLMode:  os.Getenv("POSTGRES_SSL_MODE"),
	}

	if config.Host == "" {
		config.Host = "localhost"
	}
	if config.Port == "" {
		config.Port = "5432"
	}
	if config.User == "" {
		config.User = "postgres"
	}
	if config.Database == "" {
		config.Database = "outline_crawler"
	}

	return New(config)
}

var schemaStatements = []struct {
	name string
	sql  string
}{
	{"crawl_jobs table", `
		CREATE TABLE IF NOT EXISTS crawl_jobs (
			id TEXT PRIMARY KEY,
			start_url TEXT NOT NULL,
			target_class TEXT NOT NULL,
			allowed_domain TEXT NOT NULL,
			state TEXT NOT NULL,
			pages_crawled INTEGER NOT NULL DEFAULT 0,
			pages_failed INTEGER NOT NULL DEFAULT 0,
			stop_reason TEXT,
			error_message TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			started_at TIMESTAMPTZ,
			finished_at TIMESTAMPTZ
		)
	`},
	{"crawl_pages table", `
		CREATE TABLE IF NOT EXISTS crawl_pages (
			id BIGSERIAL PRIMARY KEY,
			job_id TEXT NOT NULL REFERENCES crawl_jobs(id) ON DELETE CASCADE,
			article_url TEXT NOT NULL,
			meta_title TEXT NOT NULL DEFAULT '',
			meta_description TEXT NOT NULL DEFAULT '',
			is_indexable BOOLEAN NOT NULL,
			internal_links JSONB NOT NULL DEFAULT '[]',
			headings JSONB NOT NULL DEFAULT '[]',
			json_ld JSONB NOT NULL DEFAULT '[]',
			link_urls TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE(job_id, article_url)
		)
	`},
	{"crawl_pages job index", `CREATE INDEX IF NOT EXISTS idx_crawl_pages_job_id ON crawl_pages(job_id, id)`},
	{"crawl_pages link index", `CREATE INDEX IF NOT EXISTS idx_crawl_pages_link_urls ON crawl_pages USING GIN (link_urls)`},
}

// setupSchema creates the necessary tables in PostgreSQL
func setupSchema(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt.sql); err != nil {
			return fmt.Errorf("failed to create %s: %w", stmt.name, err)
		}
	}
	log.Debug().Int("statements", len(schemaStatements)).Msg("Database schema ready")
	return nil
}

// Execute runs a database operation in a transaction
func (db *DB) Execute(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.client.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.client.Close()
}

// GetDB returns the underlying database connection
func (db *DB) GetDB() *sql.DB {
	return db.client
}
