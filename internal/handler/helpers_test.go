package handler

import (
	"net/http/httptest"
	"regexp"
	"testing"
)

func TestNewUserCode(t *testing.T) {
	pattern := regexp.MustCompile(`^USR-[0-9A-F]{8}$`)
	seen := make(map[string]bool)

	for i := 0; i < 100; i++ {
		code := NewUserCode()
		if !pattern.MatchString(code) {
			t.Fatalf("user code %q does not match %s", code, pattern)
		}
		if seen[code] {
			t.Fatalf("duplicate user code %q", code)
		}
		seen[code] = true
	}
}

func TestNewTrackingCode(t *testing.T) {
	pattern := regexp.MustCompile(`^PB-[0-9A-F]{12}$`)
	seen := make(map[string]bool)

	for i := 0; i < 100; i++ {
		code := NewTrackingCode()
		if !pattern.MatchString(code) {
			t.Fatalf("tracking code %q does not match %s", code, pattern)
		}
		if seen[code] {
			t.Fatalf("duplicate tracking code %q", code)
		}
		seen[code] = true
	}
}

func TestQueryInt(t *testing.T) {
	tests := []struct {
		url  string
		key  string
		def  int
		want int
	}{
		{"/?limit=25", "limit", 50, 25},
		{"/?limit=abc", "limit", 50, 50},
		{"/", "limit", 50, 50},
		{"/?limit=-5", "limit", 50, -5},
		{"/?offset=0", "offset", 10, 0},
	}

	for _, tt := range tests {
		r := httptest.NewRequest("GET", tt.url, nil)
		if got := queryInt(r, tt.key, tt.def); got != tt.want {
			t.Errorf("queryInt(%q, %q, %d) = %d, want %d", tt.url, tt.key, tt.def, got, tt.want)
		}
	}
}
