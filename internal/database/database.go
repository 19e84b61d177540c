package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the sqlite store holding bookings and the seeded catalog.
// Catalog entities (providers, services, resources, rules) change only at
// seed time and are cached in memory; bookings are the mutable schedule.
type DB struct {
	*sql.DB
	log zerolog.Logger

	mu        sync.RWMutex
	providers map[string]providerEntry

	commitMu sync.Mutex
	commits  map[string]*sync.Mutex
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection serializes writers and keeps :memory:
	// databases from splitting across pool connections.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := createTables(sqlDB); err != nil {
		return nil, fmt.Errorf("create tables: %w", err)
	}

	var log zerolog.Logger
	if logger != nil {
		log = logger.With().Str("component", "database").Logger()
	}
	log.Info().Str("path", path).Msg("database initialized")

	return &DB{
		DB:        sqlDB,
		log:       log,
		providers: make(map[string]providerEntry),
		commits:   make(map[string]*sync.Mutex),
	}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS providers (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            timezone TEXT NOT NULL,
            is_active BOOLEAN NOT NULL DEFAULT 1
        )`,
		`CREATE TABLE IF NOT EXISTS services (
            id TEXT PRIMARY KEY,
            provider_id TEXT NOT NULL,
            name TEXT NOT NULL,
            duration_minutes INTEGER NOT NULL,
            price_cents INTEGER NOT NULL,
            pet_categories TEXT,
            size_overrides TEXT,
            resource_type TEXT,
            resource_qty INTEGER NOT NULL DEFAULT 0
        )`,
		`CREATE TABLE IF NOT EXISTS resources (
            provider_id TEXT NOT NULL,
            type TEXT NOT NULL,
            capacity INTEGER NOT NULL,
            PRIMARY KEY (provider_id, type)
        )`,
		`CREATE TABLE IF NOT EXISTS availability_rules (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            provider_id TEXT NOT NULL,
            kind TEXT NOT NULL,
            timezone TEXT NOT NULL,
            weekday INTEGER,
            start_min INTEGER,
            end_min INTEGER,
            date TEXT,
            intervals TEXT
        )`,
		`CREATE TABLE IF NOT EXISTS bookings (
            id TEXT PRIMARY KEY,
            provider_id TEXT NOT NULL,
            service_id TEXT NOT NULL,
            pet_id TEXT NOT NULL,
            resource_type TEXT,
            resource_qty INTEGER NOT NULL DEFAULT 1,
            start_at DATETIME NOT NULL,
            end_at DATETIME NOT NULL,
            status TEXT NOT NULL,
            idempotency_key TEXT NOT NULL UNIQUE,
            price_cents INTEGER NOT NULL,
            notes TEXT,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            version INTEGER NOT NULL DEFAULT 1
        )`,
		`CREATE TABLE IF NOT EXISTS sync_queue (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_type TEXT NOT NULL,
            booking_id TEXT NOT NULL,
            payload TEXT,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME NOT NULL,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_provider_start ON bookings(provider_id, start_at)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_rules_provider ON availability_rules(provider_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("exec schema query: %w", err)
		}
	}
	return nil
}

// commitLock returns the in-process mutex serializing commit attempts for
// one (provider, resource) key. Listing never takes it; only the commit
// path's check-and-insert section does.
func (db *DB) commitLock(providerID, resourceType string) *sync.Mutex {
	key := providerID + "\x00" + resourceType
	db.commitMu.Lock()
	defer db.commitMu.Unlock()
	mu, ok := db.commits[key]
	if !ok {
		mu = &sync.Mutex{}
		db.commits[key] = mu
	}
	return mu
}

func (db *DB) Close() error {
	return db.DB.Close()
}
