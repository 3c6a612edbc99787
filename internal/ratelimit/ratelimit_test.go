package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"
)

func testStore(start time.Time) (*MemoryStore, *time.Time) {
	now := start
	s := NewMemoryStore()
	s.now = func() time.Time { return now }
	return s, &now
}

func TestMemoryStoreIncrement(t *testing.T) {
	tier := Tier{Name: "test", Limit: 3, Window: time.Minute}
	s, _ := testStore(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	for i := 1; i <= 5; i++ {
		count, remaining, err := s.Increment(tier, "10.0.0.1")
		if err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
		if count != i {
			t.Errorf("request %d: count = %d", i, count)
		}
		if remaining <= 0 || remaining > tier.Window {
			t.Errorf("request %d: remaining = %v", i, remaining)
		}
	}
}

func TestMemoryStorePeekDoesNotConsume(t *testing.T) {
	tier := Tier{Name: "test", Limit: 3, Window: time.Minute}
	s, _ := testStore(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	s.Increment(tier, "10.0.0.1")
	s.Increment(tier, "10.0.0.1")

	for i := 0; i < 10; i++ {
		count, _, err := s.Peek(tier, "10.0.0.1")
		if err != nil {
			t.Fatalf("Peek failed: %v", err)
		}
		if count != 2 {
			t.Fatalf("Peek count = %d, want 2", count)
		}
	}
}

func TestMemoryStoreWindowReset(t *testing.T) {
	tier := Tier{Name: "test", Limit: 3, Window: time.Minute}
	s, now := testStore(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	for i := 0; i < 3; i++ {
		s.Increment(tier, "10.0.0.1")
	}

	// Still inside the window: counter keeps climbing.
	*now = now.Add(59 * time.Second)
	if count, _, _ := s.Increment(tier, "10.0.0.1"); count != 4 {
		t.Errorf("count = %d, want 4", count)
	}

	// Window elapsed since the first request: fresh counter.
	*now = now.Add(2 * time.Second)
	count, remaining, _ := s.Increment(tier, "10.0.0.1")
	if count != 1 {
		t.Errorf("count after window = %d, want 1", count)
	}
	if remaining != tier.Window {
		t.Errorf("remaining after window = %v, want %v", remaining, tier.Window)
	}
}

func TestMemoryStoreIsolation(t *testing.T) {
	tierA := Tier{Name: "a", Limit: 3, Window: time.Minute}
	tierB := Tier{Name: "b", Limit: 3, Window: time.Minute}
	s, _ := testStore(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	s.Increment(tierA, "10.0.0.1")
	s.Increment(tierA, "10.0.0.1")
	s.Increment(tierA, "10.0.0.2")
	s.Increment(tierB, "10.0.0.1")

	if count, _, _ := s.Peek(tierA, "10.0.0.1"); count != 2 {
		t.Errorf("tier a / ip 1: count = %d, want 2", count)
	}
	if count, _, _ := s.Peek(tierA, "10.0.0.2"); count != 1 {
		t.Errorf("tier a / ip 2: count = %d, want 1", count)
	}
	if count, _, _ := s.Peek(tierB, "10.0.0.1"); count != 1 {
		t.Errorf("tier b / ip 1: count = %d, want 1", count)
	}
}

func TestMemoryStoreCleanup(t *testing.T) {
	tier := Tier{Name: "test", Limit: 3, Window: time.Minute}
	s, now := testStore(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	s.Increment(tier, "10.0.0.1")
	s.Increment(tier, "10.0.0.2")

	*now = now.Add(3 * time.Hour)
	s.Cleanup()

	s.mu.Lock()
	n := len(s.counters)
	s.mu.Unlock()
	if n != 0 {
		t.Errorf("counters after cleanup = %d, want 0", n)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remoteAddr string
		want       string
	}{
		{"192.0.2.1:9876", "192.0.2.1"},
		{"[2001:db8::1]:9876", "2001:db8::1"},
		{"192.0.2.1", "192.0.2.1"}, // no port, returned as-is
	}

	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = tt.remoteAddr
		if got := ClientIP(r); got != tt.want {
			t.Errorf("ClientIP(%q) = %q, want %q", tt.remoteAddr, got, tt.want)
		}
	}
}
