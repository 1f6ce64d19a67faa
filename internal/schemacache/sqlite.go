package schemacache

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/leapstack-labs/dataexplorer/pkg/core"

	_ "modernc.org/sqlite" // sqlite driver
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteStore keeps one row per dataset in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and runs migrations.
// Use ":memory:" for an in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writes.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate runs all pending database migrations.
func (s *SQLiteStore) Migrate() error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, id core.DatasetID) (core.SchemaSet, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM schema_cache WHERE dataset_id = ?`, id.String()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return core.SchemaSet{}, ErrNotFound
	}
	if err != nil {
		return core.SchemaSet{}, fmt.Errorf("read schema cache: %w", err)
	}
	var set core.SchemaSet
	if err := json.Unmarshal([]byte(payload), &set); err != nil {
		return core.SchemaSet{}, fmt.Errorf("decode schema cache for %s: %w", id, err)
	}
	return set, nil
}

// Save implements Store. Last writer wins.
func (s *SQLiteStore) Save(ctx context.Context, id core.DatasetID, set core.SchemaSet) error {
	payload, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encode schema cache: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO schema_cache (dataset_id, payload, fetched_at)
		VALUES (?, ?, ?)
		ON CONFLICT(dataset_id) DO UPDATE SET payload = excluded.payload, fetched_at = excluded.fetched_at
	`, id.String(), string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("write schema cache: %w", err)
	}
	return nil
}
