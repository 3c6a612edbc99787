package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/parcelbay/parcelbay/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUser(t *testing.T, s *Store, email, code, role string) *model.User {
	t.Helper()
	u := &model.User{
		Email:        email,
		PasswordHash: "x",
		Name:         "Test User",
		UserCode:     code,
		Role:         role,
		IsActive:     true,
	}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("failed to seed user %s: %v", email, err)
	}
	return u
}

func seedKey(t *testing.T, s *Store, raw, courier string) *model.APIKey {
	t.Helper()
	k := &model.APIKey{
		KeyHash:          HashAPIKey(raw),
		KeyPrefix:        raw[:min(len(raw), 12)],
		OwnerCourierCode: courier,
		Purpose:          model.KeyPurposeCourier,
		PermissionsCSV:   model.PermManifestsRead,
		IsActive:         true,
		ExpiresAt:        time.Now().UTC().Add(24 * time.Hour),
		CreatedBy:        "test",
	}
	if err := s.CreateAPIKey(context.Background(), k); err != nil {
		t.Fatalf("failed to seed api key: %v", err)
	}
	return k
}

// ---------------------------------------------------------------------------
// User tests
// ---------------------------------------------------------------------------

func TestUserCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, "ops@parcelbay.test", "USR-AAAA0001", model.RoleWarehouse)
	if u.ID == 0 {
		t.Fatal("expected generated id")
	}
	if u.CreatedAt.IsZero() || u.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be populated")
	}

	byID, err := s.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if byID.Email != "ops@parcelbay.test" || byID.Role != model.RoleWarehouse {
		t.Errorf("unexpected user: %+v", byID)
	}

	byEmail, err := s.GetUserByEmail(ctx, "ops@parcelbay.test")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if byEmail.ID != u.ID {
		t.Errorf("id = %d, want %d", byEmail.ID, u.ID)
	}

	if _, err := s.GetUserByID(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetUserByEmail(ctx, "nobody@parcelbay.test"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s := newTestStore(t)

	seedUser(t, s, "dup@parcelbay.test", "USR-AAAA0001", model.RoleCustomer)

	err := s.CreateUser(context.Background(), &model.User{
		Email:        "dup@parcelbay.test",
		PasswordHash: "x",
		UserCode:     "USR-AAAA0002",
		Role:         model.RoleCustomer,
		IsActive:     true,
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestListUsersRoleFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "a@parcelbay.test", "USR-AAAA0001", model.RoleAdmin)
	seedUser(t, s, "b@parcelbay.test", "USR-AAAA0002", model.RoleWarehouse)
	seedUser(t, s, "c@parcelbay.test", "USR-AAAA0003", model.RoleCustomer)

	all, err := s.ListUsers(ctx, "")
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all users = %d, want 3", len(all))
	}

	customers, err := s.ListUsers(ctx, model.RoleCustomer)
	if err != nil {
		t.Fatalf("ListUsers(customer) failed: %v", err)
	}
	if len(customers) != 1 || customers[0].Email != "c@parcelbay.test" {
		t.Errorf("customers = %+v", customers)
	}
}

func TestSetUserActive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, "ops@parcelbay.test", "USR-AAAA0001", model.RoleWarehouse)

	if err := s.SetUserActive(ctx, u.ID, false); err != nil {
		t.Fatalf("SetUserActive failed: %v", err)
	}
	got, err := s.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if got.IsActive {
		t.Error("expected account to be inactive")
	}

	if err := s.SetUserActive(ctx, 9999, false); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateUserLastLogin(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, "ops@parcelbay.test", "USR-AAAA0001", model.RoleWarehouse)
	if u.LastLoginAt != nil {
		t.Fatal("fresh account should have no last login")
	}

	if err := s.UpdateUserLastLogin(ctx, u.ID); err != nil {
		t.Fatalf("UpdateUserLastLogin failed: %v", err)
	}
	got, err := s.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if got.LastLoginAt == nil {
		t.Error("expected last_login_at to be set")
	}
}

func TestHasAnyAdmin(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ok, err := s.HasAnyAdmin(ctx)
	if err != nil {
		t.Fatalf("HasAnyAdmin failed: %v", err)
	}
	if ok {
		t.Error("empty store should have no admin")
	}

	seedUser(t, s, "ops@parcelbay.test", "USR-AAAA0001", model.RoleWarehouse)
	if ok, _ = s.HasAnyAdmin(ctx); ok {
		t.Error("warehouse account is not an admin")
	}

	seedUser(t, s, "admin@parcelbay.test", "USR-AAAA0002", model.RoleAdmin)
	if ok, _ = s.HasAnyAdmin(ctx); !ok {
		t.Error("expected admin to be found")
	}
}

// ---------------------------------------------------------------------------
// API key tests
// ---------------------------------------------------------------------------

func TestAPIKeyLookupByHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	k := seedKey(t, s, "pbk_0123456789abcdef", model.CourierKCD)
	if k.ID == 0 {
		t.Fatal("expected generated id")
	}

	got, err := s.GetAPIKeyByHash(ctx, HashAPIKey("pbk_0123456789abcdef"))
	if err != nil {
		t.Fatalf("GetAPIKeyByHash failed: %v", err)
	}
	if got.ID != k.ID || got.OwnerCourierCode != model.CourierKCD {
		t.Errorf("unexpected key: %+v", got)
	}

	// Lookup is by digest, never by raw value.
	if _, err := s.GetAPIKeyByHash(ctx, "pbk_0123456789abcdef"); !errors.Is(err, ErrNotFound) {
		t.Errorf("raw value lookup should miss, got %v", err)
	}
}

func TestRevokeAPIKeyIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	k := seedKey(t, s, "pbk_0123456789abcdef", model.CourierKCD)

	if err := s.RevokeAPIKey(ctx, k.ID, "admin@parcelbay.test"); err != nil {
		t.Fatalf("RevokeAPIKey failed: %v", err)
	}

	got, err := s.GetAPIKeyByID(ctx, k.ID)
	if err != nil {
		t.Fatalf("record should survive revocation: %v", err)
	}
	if got.IsActive {
		t.Error("expected key to be inactive")
	}
	if got.DeactivatedAt == nil || got.DeactivatedBy != "admin@parcelbay.test" {
		t.Errorf("revocation audit fields: at=%v by=%q", got.DeactivatedAt, got.DeactivatedBy)
	}

	// Second revocation succeeds without changing anything.
	if err := s.RevokeAPIKey(ctx, k.ID, "someone-else"); err != nil {
		t.Fatalf("re-revoke should succeed: %v", err)
	}
	again, _ := s.GetAPIKeyByID(ctx, k.ID)
	if again.DeactivatedBy != "admin@parcelbay.test" {
		t.Errorf("re-revoke must not overwrite audit trail, got %q", again.DeactivatedBy)
	}

	if err := s.RevokeAPIKey(ctx, 9999, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing key, got %v", err)
	}
}

func TestTouchAPIKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	k := seedKey(t, s, "pbk_0123456789abcdef", model.CourierKCD)

	for i := 0; i < 3; i++ {
		if err := s.TouchAPIKey(ctx, k.ID); err != nil {
			t.Fatalf("TouchAPIKey failed: %v", err)
		}
	}

	got, err := s.GetAPIKeyByID(ctx, k.ID)
	if err != nil {
		t.Fatalf("GetAPIKeyByID failed: %v", err)
	}
	if got.UsageCount != 3 {
		t.Errorf("usage count = %d, want 3", got.UsageCount)
	}
	if got.LastUsedAt == nil {
		t.Error("expected last_used_at to be set")
	}
}

func TestListAPIKeysByCourier(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedKey(t, s, "pbk_kcd_one", model.CourierKCD)
	seedKey(t, s, "pbk_kcd_two", model.CourierKCD)
	seedKey(t, s, "pbk_tasoko", model.CourierTasoko)

	kcd, err := s.ListAPIKeysByCourier(ctx, model.CourierKCD)
	if err != nil {
		t.Fatalf("ListAPIKeysByCourier failed: %v", err)
	}
	if len(kcd) != 2 {
		t.Errorf("KCD keys = %d, want 2", len(kcd))
	}

	all, err := s.ListAPIKeys(ctx)
	if err != nil {
		t.Fatalf("ListAPIKeys failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all keys = %d, want 3", len(all))
	}
}

// ---------------------------------------------------------------------------
// Package tests
// ---------------------------------------------------------------------------

func TestPackageCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	customer := seedUser(t, s, "cust@parcelbay.test", "USR-AAAA0001", model.RoleCustomer)

	p := &model.Package{
		TrackingCode: "PB-000000000001",
		CustomerID:   customer.ID,
		CourierCode:  model.CourierKCD,
		Description:  "phone case",
		WeightKg:     0.2,
		Status:       model.PackageReceived,
	}
	if err := s.CreatePackage(ctx, p); err != nil {
		t.Fatalf("CreatePackage failed: %v", err)
	}

	got, err := s.GetPackageByTracking(ctx, "PB-000000000001")
	if err != nil {
		t.Fatalf("GetPackageByTracking failed: %v", err)
	}
	if got.CustomerID != customer.ID || got.Status != model.PackageReceived {
		t.Errorf("unexpected package: %+v", got)
	}

	dup := &model.Package{TrackingCode: "PB-000000000001", CustomerID: customer.ID, Status: model.PackageReceived}
	if err := s.CreatePackage(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	if err := s.UpdatePackageStatus(ctx, "PB-000000000001", model.PackageShipped); err != nil {
		t.Fatalf("UpdatePackageStatus failed: %v", err)
	}
	got, _ = s.GetPackageByTracking(ctx, "PB-000000000001")
	if got.Status != model.PackageShipped {
		t.Errorf("status = %q, want shipped", got.Status)
	}

	if err := s.UpdatePackageStatus(ctx, "PB-MISSING", model.PackageShipped); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListPackagesByCustomer(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := seedUser(t, s, "alice@parcelbay.test", "USR-AAAA0001", model.RoleCustomer)
	bob := seedUser(t, s, "bob@parcelbay.test", "USR-AAAA0002", model.RoleCustomer)

	for i, code := range []string{"PB-A1", "PB-A2", "PB-B1"} {
		owner := alice.ID
		if i == 2 {
			owner = bob.ID
		}
		if err := s.CreatePackage(ctx, &model.Package{
			TrackingCode: code,
			CustomerID:   owner,
			CourierCode:  model.CourierKCD,
			Status:       model.PackageReceived,
		}); err != nil {
			t.Fatalf("CreatePackage(%s) failed: %v", code, err)
		}
	}

	mine, err := s.ListPackages(ctx, alice.ID, 50, 0)
	if err != nil {
		t.Fatalf("ListPackages failed: %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("alice packages = %d, want 2", len(mine))
	}

	all, err := s.ListPackages(ctx, 0, 50, 0)
	if err != nil {
		t.Fatalf("ListPackages(all) failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all packages = %d, want 3", len(all))
	}

	page, err := s.ListPackages(ctx, 0, 2, 2)
	if err != nil {
		t.Fatalf("ListPackages(paged) failed: %v", err)
	}
	if len(page) != 1 {
		t.Errorf("page = %d items, want 1", len(page))
	}
}

// ---------------------------------------------------------------------------
// Inventory tests
// ---------------------------------------------------------------------------

func TestInventoryUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := &model.InventoryItem{SKU: "SKU-1", Name: "Widget", Quantity: 10, Location: "A-01"}
	if err := s.CreateInventoryItem(ctx, item); err != nil {
		t.Fatalf("CreateInventoryItem failed: %v", err)
	}

	dup := &model.InventoryItem{SKU: "SKU-1", Name: "Widget", Quantity: 1}
	if err := s.CreateInventoryItem(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	// Upsert replaces the existing row.
	if err := s.UpsertInventoryItem(ctx, &model.InventoryItem{
		SKU: "SKU-1", Name: "Widget v2", Quantity: 55, Location: "B-02",
	}); err != nil {
		t.Fatalf("UpsertInventoryItem(existing) failed: %v", err)
	}
	// Upsert inserts a new row.
	if err := s.UpsertInventoryItem(ctx, &model.InventoryItem{
		SKU: "SKU-2", Name: "Gadget", Quantity: 7, Location: "C-03",
	}); err != nil {
		t.Fatalf("UpsertInventoryItem(new) failed: %v", err)
	}

	items, err := s.ListInventory(ctx)
	if err != nil {
		t.Fatalf("ListInventory failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("inventory = %d items, want 2", len(items))
	}
	if items[0].SKU != "SKU-1" || items[0].Quantity != 55 || items[0].Name != "Widget v2" {
		t.Errorf("upserted item: %+v", items[0])
	}
}

// ---------------------------------------------------------------------------
// Manifest tests
// ---------------------------------------------------------------------------

func TestManifestLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	customer := seedUser(t, s, "cust@parcelbay.test", "USR-AAAA0001", model.RoleCustomer)
	for _, code := range []string{"PB-1", "PB-2"} {
		if err := s.CreatePackage(ctx, &model.Package{
			TrackingCode: code,
			CustomerID:   customer.ID,
			CourierCode:  model.CourierKCD,
			Status:       model.PackageProcessing,
		}); err != nil {
			t.Fatalf("CreatePackage(%s) failed: %v", code, err)
		}
	}

	m := &model.Manifest{CourierCode: model.CourierKCD, Status: model.ManifestOpen}
	if err := s.CreateManifest(ctx, m); err != nil {
		t.Fatalf("CreateManifest failed: %v", err)
	}

	for _, code := range []string{"PB-1", "PB-2"} {
		if err := s.AssignPackageToManifest(ctx, code, m.ID); err != nil {
			t.Fatalf("AssignPackageToManifest(%s) failed: %v", code, err)
		}
	}
	got, err := s.GetManifest(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetManifest failed: %v", err)
	}
	if got.PackageCount != 2 {
		t.Errorf("package count = %d, want 2", got.PackageCount)
	}

	// Confirming an open manifest is a state error.
	if err := s.ConfirmManifest(ctx, m.ID, model.CourierKCD); !errors.Is(err, ErrNotFound) {
		t.Fatalf("confirm before dispatch: expected ErrNotFound, got %v", err)
	}

	if err := s.DispatchManifest(ctx, m.ID); err != nil {
		t.Fatalf("DispatchManifest failed: %v", err)
	}
	got, _ = s.GetManifest(ctx, m.ID)
	if got.Status != model.ManifestDispatched || got.DispatchedAt == nil {
		t.Errorf("after dispatch: %+v", got)
	}

	// Dispatch is not repeatable.
	if err := s.DispatchManifest(ctx, m.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("re-dispatch: expected ErrNotFound, got %v", err)
	}

	if err := s.ConfirmManifest(ctx, m.ID, model.CourierKCD); err != nil {
		t.Fatalf("ConfirmManifest failed: %v", err)
	}
	got, _ = s.GetManifest(ctx, m.ID)
	if got.Status != model.ManifestConfirmed || got.ConfirmedAt == nil || got.ConfirmedBy != model.CourierKCD {
		t.Errorf("after confirm: %+v", got)
	}

	// Confirm is not repeatable either.
	if err := s.ConfirmManifest(ctx, m.ID, model.CourierKCD); !errors.Is(err, ErrNotFound) {
		t.Fatalf("re-confirm: expected ErrNotFound, got %v", err)
	}
}

func TestListManifestsByCourier(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, courier := range []string{model.CourierKCD, model.CourierKCD, model.CourierTasoko} {
		if err := s.CreateManifest(ctx, &model.Manifest{CourierCode: courier, Status: model.ManifestOpen}); err != nil {
			t.Fatalf("CreateManifest failed: %v", err)
		}
	}

	kcd, err := s.ListManifestsByCourier(ctx, model.CourierKCD, "")
	if err != nil {
		t.Fatalf("ListManifestsByCourier failed: %v", err)
	}
	if len(kcd) != 2 {
		t.Errorf("KCD manifests = %d, want 2", len(kcd))
	}

	dispatched, err := s.ListManifestsByCourier(ctx, model.CourierKCD, model.ManifestDispatched)
	if err != nil {
		t.Fatalf("ListManifestsByCourier(status) failed: %v", err)
	}
	if len(dispatched) != 0 {
		t.Errorf("dispatched manifests = %d, want 0", len(dispatched))
	}
}

// ---------------------------------------------------------------------------
// Hashing tests
// ---------------------------------------------------------------------------

func TestHashAPIKey(t *testing.T) {
	a := HashAPIKey("pbk_one")
	b := HashAPIKey("pbk_two")

	if a == b {
		t.Error("distinct keys must hash differently")
	}
	if a != HashAPIKey("pbk_one") {
		t.Error("hashing must be deterministic")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(a))
	}
}
