package store

import (
	"fmt"
	"strings"
)

// sqliteMigrations and postgresMigrations carry the same logical schema in the
// two supported dialects. Statements run in order; ALTER TABLE additions are
// duplicate-column tolerant so the list stays append-only.
var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		user_code TEXT UNIQUE NOT NULL,
		role TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		last_login_at DATETIME,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS api_keys (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		key_hash TEXT UNIQUE NOT NULL,
		key_prefix TEXT NOT NULL,
		owner_courier_code TEXT NOT NULL DEFAULT '',
		purpose TEXT NOT NULL DEFAULT 'courier',
		description TEXT NOT NULL DEFAULT '',
		permissions TEXT NOT NULL DEFAULT '',
		is_active INTEGER NOT NULL DEFAULT 1,
		expires_at DATETIME NOT NULL,
		usage_count INTEGER NOT NULL DEFAULT 0,
		last_used_at DATETIME,
		created_by TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		deactivated_at DATETIME,
		deactivated_by TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS manifests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		courier_code TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'open',
		package_count INTEGER NOT NULL DEFAULT 0,
		dispatched_at DATETIME,
		confirmed_at DATETIME,
		confirmed_by TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS packages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tracking_code TEXT UNIQUE NOT NULL,
		customer_id INTEGER NOT NULL REFERENCES users(id),
		courier_code TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		weight_kg REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'received',
		manifest_id INTEGER REFERENCES manifests(id),
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS inventory (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sku TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		quantity INTEGER NOT NULL DEFAULT 0,
		location TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE INDEX IF NOT EXISTS idx_api_keys_hash ON api_keys(key_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_api_keys_courier ON api_keys(owner_courier_code)`,
	`CREATE INDEX IF NOT EXISTS idx_packages_customer ON packages(customer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_manifests_courier ON manifests(courier_code, status)`,
}

var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		user_code TEXT UNIQUE NOT NULL,
		role TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		last_login_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS api_keys (
		id BIGSERIAL PRIMARY KEY,
		key_hash TEXT UNIQUE NOT NULL,
		key_prefix TEXT NOT NULL,
		owner_courier_code TEXT NOT NULL DEFAULT '',
		purpose TEXT NOT NULL DEFAULT 'courier',
		description TEXT NOT NULL DEFAULT '',
		permissions TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		expires_at TIMESTAMPTZ NOT NULL,
		usage_count BIGINT NOT NULL DEFAULT 0,
		last_used_at TIMESTAMPTZ,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		deactivated_at TIMESTAMPTZ,
		deactivated_by TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS manifests (
		id BIGSERIAL PRIMARY KEY,
		courier_code TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'open',
		package_count INTEGER NOT NULL DEFAULT 0,
		dispatched_at TIMESTAMPTZ,
		confirmed_at TIMESTAMPTZ,
		confirmed_by TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS packages (
		id BIGSERIAL PRIMARY KEY,
		tracking_code TEXT UNIQUE NOT NULL,
		customer_id BIGINT NOT NULL REFERENCES users(id),
		courier_code TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		weight_kg DOUBLE PRECISION NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'received',
		manifest_id BIGINT REFERENCES manifests(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS inventory (
		id BIGSERIAL PRIMARY KEY,
		sku TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		quantity INTEGER NOT NULL DEFAULT 0,
		location TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_api_keys_hash ON api_keys(key_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_api_keys_courier ON api_keys(owner_courier_code)`,
	`CREATE INDEX IF NOT EXISTS idx_packages_customer ON packages(customer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_manifests_courier ON manifests(courier_code, status)`,
}

func (s *Store) migrate() error {
	migrations := sqliteMigrations
	if s.driver == driverPostgres {
		migrations = postgresMigrations
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// ALTER TABLE ADD COLUMN fails if the column already exists;
			// treat "duplicate column" as a no-op for idempotent migrations.
			if strings.Contains(err.Error(), "duplicate column") {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
