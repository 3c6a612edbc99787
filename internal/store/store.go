package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/parcelbay/parcelbay/internal/model"
)

const (
	driverSQLite   = "sqlite"
	driverPostgres = "pgx"
)

// Store persists users, API keys, packages, inventory, and manifests. It is
// backed by SQLite for single-node deployments or PostgreSQL when a
// postgres:// DSN is configured.
type Store struct {
	db     *sqlx.DB
	driver string
}

// Open creates a Store from a DSN. An empty DSN opens an in-memory SQLite
// database (used by tests), a postgres:// or postgresql:// DSN connects via
// pgx, and anything else is treated as a data directory for a SQLite file.
func Open(dsn string) (*Store, error) {
	var (
		driver string
		target string
	)
	switch {
	case dsn == "":
		driver = driverSQLite
		target = ":memory:?_journal_mode=WAL"
	case strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://"):
		driver = driverPostgres
		target = dsn
	default:
		driver = driverSQLite
		if err := os.MkdirAll(dsn, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		target = filepath.Join(dsn, "parcelbay.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sqlx.Connect(driver, target)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if driver == driverSQLite {
		db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// insertID runs a named INSERT and returns the generated row id, papering
// over the LastInsertId / RETURNING split between the two drivers.
func (s *Store) insertID(ctx context.Context, query string, arg interface{}) (int64, error) {
	if s.driver == driverPostgres {
		rows, err := s.db.NamedQueryContext(ctx, query+" RETURNING id", arg)
		if err != nil {
			return 0, err
		}
		defer rows.Close()
		var id int64
		if !rows.Next() {
			return 0, sql.ErrNoRows
		}
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	result, err := s.db.NamedExecContext(ctx, query, arg)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}

// ---------------------------------------------------------------------------
// Users (staff and customers)
// ---------------------------------------------------------------------------

// CreateUser inserts a new account. The ID, CreatedAt, and UpdatedAt fields
// are populated after a successful insert.
func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	const q = `INSERT INTO users
		(email, password_hash, name, user_code, role, is_active, created_at, updated_at)
		VALUES
		(:email, :password_hash, :name, :user_code, :role, :is_active, :created_at, :updated_at)`

	id, err := s.insertID(ctx, q, u)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	u.ID = id
	return nil
}

// GetUserByID returns an account by id.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	if err := s.db.GetContext(ctx, &u, s.db.Rebind("SELECT * FROM users WHERE id = ?"), id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return &u, nil
}

// GetUserByEmail returns an account by email address.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	if err := s.db.GetContext(ctx, &u, s.db.Rebind("SELECT * FROM users WHERE email = ?"), email); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, nil
}

// ListUsers returns accounts, optionally filtered by role.
func (s *Store) ListUsers(ctx context.Context, role string) ([]model.User, error) {
	var users []model.User
	if role == "" {
		if err := s.db.SelectContext(ctx, &users, "SELECT * FROM users ORDER BY email"); err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		return users, nil
	}
	if err := s.db.SelectContext(ctx, &users, s.db.Rebind("SELECT * FROM users WHERE role = ? ORDER BY email"), role); err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	return users, nil
}

// SetUserActive flips the is_active flag on an account.
func (s *Store) SetUserActive(ctx context.Context, id int64, active bool) error {
	result, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?"),
		active, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set user active: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set user active rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateUserLastLogin sets the last_login_at timestamp for an account.
func (s *Store) UpdateUserLastLogin(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE users SET last_login_at = ?, updated_at = ? WHERE id = ?"), now, now, id)
	if err != nil {
		return fmt.Errorf("update user last login: %w", err)
	}
	return nil
}

// HasAnyAdmin reports whether at least one admin account exists. Used for
// first-run detection.
func (s *Store) HasAnyAdmin(ctx context.Context) (bool, error) {
	var count int
	if err := s.db.GetContext(ctx, &count,
		s.db.Rebind("SELECT COUNT(*) FROM users WHERE role = ?"), model.RoleAdmin); err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	return count > 0, nil
}

// ---------------------------------------------------------------------------
// API keys
// ---------------------------------------------------------------------------

// CreateAPIKey inserts a new API key record. The key_hash must already be set
// (use HashAPIKey). The ID is populated after insert.
func (s *Store) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	key.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO api_keys
		(key_hash, key_prefix, owner_courier_code, purpose, description, permissions,
		 is_active, expires_at, usage_count, created_by, created_at, deactivated_by)
		VALUES
		(:key_hash, :key_prefix, :owner_courier_code, :purpose, :description, :permissions,
		 :is_active, :expires_at, :usage_count, :created_by, :created_at, :deactivated_by)`

	id, err := s.insertID(ctx, q, key)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	key.ID = id
	return nil
}

// GetAPIKeyByHash looks up an API key by its SHA-256 hash. This is the
// store-side half of matching a presented raw key by exact value.
func (s *Store) GetAPIKeyByHash(ctx context.Context, hash string) (*model.APIKey, error) {
	var key model.APIKey
	if err := s.db.GetContext(ctx, &key, s.db.Rebind("SELECT * FROM api_keys WHERE key_hash = ?"), hash); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get api key by hash: %w", err)
	}
	return &key, nil
}

// GetAPIKeyByID returns an API key record by id.
func (s *Store) GetAPIKeyByID(ctx context.Context, id int64) (*model.APIKey, error) {
	var key model.APIKey
	if err := s.db.GetContext(ctx, &key, s.db.Rebind("SELECT * FROM api_keys WHERE id = ?"), id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get api key by id: %w", err)
	}
	return &key, nil
}

// ListAPIKeys returns all API keys, newest first.
func (s *Store) ListAPIKeys(ctx context.Context) ([]model.APIKey, error) {
	var keys []model.APIKey
	if err := s.db.SelectContext(ctx, &keys, "SELECT * FROM api_keys ORDER BY created_at DESC, id DESC"); err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}

// ListAPIKeysByCourier returns all keys issued to one courier, newest first.
func (s *Store) ListAPIKeysByCourier(ctx context.Context, courierCode string) ([]model.APIKey, error) {
	var keys []model.APIKey
	if err := s.db.SelectContext(ctx, &keys,
		s.db.Rebind("SELECT * FROM api_keys WHERE owner_courier_code = ? ORDER BY created_at DESC, id DESC"),
		courierCode); err != nil {
		return nil, fmt.Errorf("list api keys by courier: %w", err)
	}
	return keys, nil
}

// RevokeAPIKey marks an API key as inactive, recording who revoked it and
// when. Revoking an already-inactive key is a no-op success so the operation
// is idempotent; only a missing key is an error.
func (s *Store) RevokeAPIKey(ctx context.Context, id int64, revokedBy string) error {
	result, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE api_keys SET is_active = ?, deactivated_at = ?, deactivated_by = ? WHERE id = ? AND is_active = ?"),
		false, time.Now().UTC(), revokedBy, id, true)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke api key rows affected: %w", err)
	}
	if n == 0 {
		// Either already revoked (fine) or never existed (error).
		if _, err := s.GetAPIKeyByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// TouchAPIKey records one successful authentication: usage_count increments
// and last_used_at advances. The arithmetic happens in SQL so the counter
// never regresses even when requests race.
func (s *Store) TouchAPIKey(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE api_keys SET usage_count = usage_count + 1, last_used_at = ? WHERE id = ?"),
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Packages
// ---------------------------------------------------------------------------

// CreatePackage inserts a new package record.
func (s *Store) CreatePackage(ctx context.Context, p *model.Package) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	const q = `INSERT INTO packages
		(tracking_code, customer_id, courier_code, description, weight_kg, status, manifest_id, created_at, updated_at)
		VALUES
		(:tracking_code, :customer_id, :courier_code, :description, :weight_kg, :status, :manifest_id, :created_at, :updated_at)`

	id, err := s.insertID(ctx, q, p)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert package: %w", err)
	}
	p.ID = id
	return nil
}

// GetPackageByTracking returns a package by its tracking code.
func (s *Store) GetPackageByTracking(ctx context.Context, trackingCode string) (*model.Package, error) {
	var p model.Package
	if err := s.db.GetContext(ctx, &p,
		s.db.Rebind("SELECT * FROM packages WHERE tracking_code = ?"), trackingCode); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get package: %w", err)
	}
	return &p, nil
}

// ListPackages returns packages, optionally filtered by customer.
// customerID 0 means all customers.
func (s *Store) ListPackages(ctx context.Context, customerID int64, limit, offset int) ([]model.Package, error) {
	var pkgs []model.Package
	if customerID != 0 {
		if err := s.db.SelectContext(ctx, &pkgs,
			s.db.Rebind("SELECT * FROM packages WHERE customer_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"),
			customerID, limit, offset); err != nil {
			return nil, fmt.Errorf("list packages: %w", err)
		}
		return pkgs, nil
	}
	if err := s.db.SelectContext(ctx, &pkgs,
		s.db.Rebind("SELECT * FROM packages ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"),
		limit, offset); err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}
	return pkgs, nil
}

// UpdatePackageStatus moves a package to a new status.
func (s *Store) UpdatePackageStatus(ctx context.Context, trackingCode, status string) error {
	result, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE packages SET status = ?, updated_at = ? WHERE tracking_code = ?"),
		status, time.Now().UTC(), trackingCode)
	if err != nil {
		return fmt.Errorf("update package status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update package status rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignPackageToManifest attaches a package to a manifest and bumps the
// manifest's package count.
func (s *Store) AssignPackageToManifest(ctx context.Context, trackingCode string, manifestID int64) error {
	result, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE packages SET manifest_id = ?, updated_at = ? WHERE tracking_code = ?"),
		manifestID, time.Now().UTC(), trackingCode)
	if err != nil {
		return fmt.Errorf("assign package to manifest: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("assign package rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	_, err = s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE manifests SET package_count = package_count + 1, updated_at = ? WHERE id = ?"),
		time.Now().UTC(), manifestID)
	if err != nil {
		return fmt.Errorf("bump manifest package count: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Inventory
// ---------------------------------------------------------------------------

// CreateInventoryItem inserts a new stocked item.
func (s *Store) CreateInventoryItem(ctx context.Context, item *model.InventoryItem) error {
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	const q = `INSERT INTO inventory
		(sku, name, quantity, location, created_at, updated_at)
		VALUES
		(:sku, :name, :quantity, :location, :created_at, :updated_at)`

	id, err := s.insertID(ctx, q, item)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert inventory item: %w", err)
	}
	item.ID = id
	return nil
}

// UpsertInventoryItem creates the item or, when the SKU already exists,
// replaces its quantity, name, and location. Used by the bulk upload path.
func (s *Store) UpsertInventoryItem(ctx context.Context, item *model.InventoryItem) error {
	err := s.CreateInventoryItem(ctx, item)
	if err == nil {
		return nil
	}
	if err != ErrConflict {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE inventory SET name = ?, quantity = ?, location = ?, updated_at = ? WHERE sku = ?"),
		item.Name, item.Quantity, item.Location, time.Now().UTC(), item.SKU)
	if err != nil {
		return fmt.Errorf("upsert inventory item: %w", err)
	}
	return nil
}

// ListInventory returns all stocked items ordered by SKU.
func (s *Store) ListInventory(ctx context.Context) ([]model.InventoryItem, error) {
	var items []model.InventoryItem
	if err := s.db.SelectContext(ctx, &items, "SELECT * FROM inventory ORDER BY sku"); err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	return items, nil
}

// ---------------------------------------------------------------------------
// Manifests
// ---------------------------------------------------------------------------

// CreateManifest opens a new manifest for a courier.
func (s *Store) CreateManifest(ctx context.Context, m *model.Manifest) error {
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	const q = `INSERT INTO manifests
		(courier_code, status, package_count, confirmed_by, created_at, updated_at)
		VALUES
		(:courier_code, :status, :package_count, :confirmed_by, :created_at, :updated_at)`

	id, err := s.insertID(ctx, q, m)
	if err != nil {
		return fmt.Errorf("insert manifest: %w", err)
	}
	m.ID = id
	return nil
}

// GetManifest returns a manifest by id.
func (s *Store) GetManifest(ctx context.Context, id int64) (*model.Manifest, error) {
	var m model.Manifest
	if err := s.db.GetContext(ctx, &m, s.db.Rebind("SELECT * FROM manifests WHERE id = ?"), id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get manifest: %w", err)
	}
	return &m, nil
}

// ListManifestsByCourier returns a courier's manifests, optionally filtered
// by status, newest first.
func (s *Store) ListManifestsByCourier(ctx context.Context, courierCode, status string) ([]model.Manifest, error) {
	var manifests []model.Manifest
	if status == "" {
		if err := s.db.SelectContext(ctx, &manifests,
			s.db.Rebind("SELECT * FROM manifests WHERE courier_code = ? ORDER BY created_at DESC, id DESC"),
			courierCode); err != nil {
			return nil, fmt.Errorf("list manifests: %w", err)
		}
		return manifests, nil
	}
	if err := s.db.SelectContext(ctx, &manifests,
		s.db.Rebind("SELECT * FROM manifests WHERE courier_code = ? AND status = ? ORDER BY created_at DESC, id DESC"),
		courierCode, status); err != nil {
		return nil, fmt.Errorf("list manifests: %w", err)
	}
	return manifests, nil
}

// DispatchManifest moves an open manifest to dispatched.
func (s *Store) DispatchManifest(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE manifests SET status = ?, dispatched_at = ?, updated_at = ? WHERE id = ? AND status = ?"),
		model.ManifestDispatched, now, now, id, model.ManifestOpen)
	if err != nil {
		return fmt.Errorf("dispatch manifest: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("dispatch manifest rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ConfirmManifest records a courier's confirmation of a dispatched manifest.
func (s *Store) ConfirmManifest(ctx context.Context, id int64, confirmedBy string) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE manifests SET status = ?, confirmed_at = ?, confirmed_by = ?, updated_at = ? WHERE id = ? AND status = ?"),
		model.ManifestConfirmed, now, confirmedBy, now, id, model.ManifestDispatched)
	if err != nil {
		return fmt.Errorf("confirm manifest: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("confirm manifest rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Utility
// ---------------------------------------------------------------------------

// HashAPIKey returns the hex-encoded SHA-256 hash of a raw API key string.
func HashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
