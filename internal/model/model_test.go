package model

import (
	"testing"
	"time"
)

func TestValidRole(t *testing.T) {
	for _, role := range []string{RoleAdmin, RoleWarehouse, RoleCustomer} {
		if !ValidRole(role) {
			t.Errorf("ValidRole(%q) = false", role)
		}
	}
	for _, role := range []string{"", "root", "Admin", "courier"} {
		if ValidRole(role) {
			t.Errorf("ValidRole(%q) = true", role)
		}
	}
}

func TestUserIsStaff(t *testing.T) {
	tests := []struct {
		role string
		want bool
	}{
		{RoleAdmin, true},
		{RoleWarehouse, true},
		{RoleCustomer, false},
		{"", false},
	}
	for _, tt := range tests {
		u := User{Role: tt.role}
		if got := u.IsStaff(); got != tt.want {
			t.Errorf("IsStaff() with role %q = %v, want %v", tt.role, got, tt.want)
		}
	}
}

func TestValidPackageStatus(t *testing.T) {
	for _, s := range []string{PackageReceived, PackageProcessing, PackageShipped, PackageDelivered} {
		if !ValidPackageStatus(s) {
			t.Errorf("ValidPackageStatus(%q) = false", s)
		}
	}
	for _, s := range []string{"", "lost", "Received", "in-transit"} {
		if ValidPackageStatus(s) {
			t.Errorf("ValidPackageStatus(%q) = true", s)
		}
	}
}

func TestAPIKeyPermissions(t *testing.T) {
	var k APIKey

	if got := k.Permissions(); got != nil {
		t.Errorf("empty CSV: %v, want nil", got)
	}

	k.SetPermissions([]string{PermManifestsRead, PermManifestsWrite})
	got := k.Permissions()
	if len(got) != 2 || got[0] != PermManifestsRead || got[1] != PermManifestsWrite {
		t.Errorf("permissions = %v", got)
	}

	// Stray whitespace and empty segments in a hand-edited column are dropped.
	k.PermissionsCSV = " packages:read , ,packages:write"
	got = k.Permissions()
	if len(got) != 2 || got[0] != PermPackagesRead || got[1] != PermPackagesWrite {
		t.Errorf("permissions = %v", got)
	}
}

func TestAPIKeyUsable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		active    bool
		expiresAt time.Time
		want      bool
	}{
		{"active and current", true, now.Add(time.Hour), true},
		{"active but expired", true, now.Add(-time.Hour), false},
		{"active at exact expiry", true, now, false},
		{"revoked and current", false, now.Add(time.Hour), false},
		{"revoked and expired", false, now.Add(-time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := APIKey{IsActive: tt.active, ExpiresAt: tt.expiresAt}
			if got := k.Usable(now); got != tt.want {
				t.Errorf("Usable() = %v, want %v", got, tt.want)
			}
		})
	}
}
