package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/parcelbay/parcelbay/internal/model"
	"github.com/parcelbay/parcelbay/internal/store"
)

// KeyPrefix is the recognizable prefix on every issued key so operators can
// tell parcelbay keys apart from other secrets at a glance.
const KeyPrefix = "pbk_"

// prefixLen is how much of the raw key is kept as the queryable identifier:
// the prefix plus the first 8 hex characters.
const prefixLen = len(KeyPrefix) + 8

// LifecycleStore is the persistence contract of the key lifecycle manager.
type LifecycleStore interface {
	CreateAPIKey(ctx context.Context, key *model.APIKey) error
	ListAPIKeys(ctx context.Context) ([]model.APIKey, error)
	ListAPIKeysByCourier(ctx context.Context, courierCode string) ([]model.APIKey, error)
	RevokeAPIKey(ctx context.Context, id int64, revokedBy string) error
}

// KeyManager owns the lifecycle of issued API keys: generation, metadata
// queries, and revocation. The raw key value leaves this package exactly
// once, in the Issue result; every other surface sees metadata only.
type KeyManager struct {
	keys LifecycleStore
	now  func() time.Time
}

// NewKeyManager wires a KeyManager.
func NewKeyManager(keys LifecycleStore) *KeyManager {
	return &KeyManager{keys: keys, now: time.Now}
}

// IssuedKey is the one-time result of issuing a key. RawKey is never stored
// and never retrievable again.
type IssuedKey struct {
	RawKey   string
	Metadata model.APIKey
}

// Issue generates a cryptographically unpredictable key for a courier (or for
// the warehouse integration when purpose is warehouse), persists its digest,
// and returns the raw value once. The key authenticates immediately.
func (m *KeyManager) Issue(ctx context.Context, courierCode, purpose, description string, expiresInDays int, permissions []string, createdBy string) (*IssuedKey, error) {
	if expiresInDays <= 0 {
		return nil, fmt.Errorf("expires_in_days must be positive")
	}

	rawBytes := make([]byte, 32)
	if _, err := rand.Read(rawBytes); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	rawKey := KeyPrefix + hex.EncodeToString(rawBytes)

	key := model.APIKey{
		KeyHash:          store.HashAPIKey(rawKey),
		KeyPrefix:        rawKey[:prefixLen],
		OwnerCourierCode: courierCode,
		Purpose:          purpose,
		Description:      description,
		IsActive:         true,
		ExpiresAt:        m.now().UTC().Add(time.Duration(expiresInDays) * 24 * time.Hour),
		CreatedBy:        createdBy,
	}
	key.SetPermissions(permissions)

	if err := m.keys.CreateAPIKey(ctx, &key); err != nil {
		return nil, &StoreError{Op: "issue api key", Err: err}
	}

	return &IssuedKey{RawKey: rawKey, Metadata: key}, nil
}

// KeyInfo is the metadata summary for one courier's keys. It never contains
// raw key material.
type KeyInfo struct {
	CourierCode    string     `json:"courier_code"`
	HasActiveKey   bool       `json:"has_active_key"`
	ActiveKeyCount int        `json:"active_key_count"`
	TotalKeyCount  int        `json:"total_key_count"`
	TotalUsage     int64      `json:"total_usage"`
	LastUsedAt     *time.Time `json:"last_used_at,omitempty"`
}

// Info summarizes the keys issued to one courier. Expired keys do not count
// as active even when nobody revoked them.
func (m *KeyManager) Info(ctx context.Context, courierCode string) (*KeyInfo, error) {
	keys, err := m.keys.ListAPIKeysByCourier(ctx, courierCode)
	if err != nil {
		return nil, &StoreError{Op: "key info", Err: err}
	}

	info := &KeyInfo{CourierCode: courierCode, TotalKeyCount: len(keys)}
	now := m.now()
	for i := range keys {
		k := &keys[i]
		info.TotalUsage += k.UsageCount
		if k.Usable(now) {
			info.ActiveKeyCount++
		}
		if k.LastUsedAt != nil && (info.LastUsedAt == nil || k.LastUsedAt.After(*info.LastUsedAt)) {
			info.LastUsedAt = k.LastUsedAt
		}
	}
	info.HasActiveKey = info.ActiveKeyCount > 0
	return info, nil
}

// Revoke deactivates a key, preserving its record for the usage audit trail.
// Revoking an already-revoked key succeeds without effect.
func (m *KeyManager) Revoke(ctx context.Context, keyID int64, revokedBy string) error {
	if err := m.keys.RevokeAPIKey(ctx, keyID, revokedBy); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrKeyNotFound
		}
		return &StoreError{Op: "revoke api key", Err: err}
	}
	return nil
}

// List returns metadata for all issued keys, newest first.
func (m *KeyManager) List(ctx context.Context) ([]model.APIKey, error) {
	keys, err := m.keys.ListAPIKeys(ctx)
	if err != nil {
		return nil, &StoreError{Op: "list api keys", Err: err}
	}
	return keys, nil
}
