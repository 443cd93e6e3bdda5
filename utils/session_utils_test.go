package utils

import (
	"strings"
	"testing"
)

func TestNewSessionIDShape(t *testing.T) {
	id := NewSessionID()
	if !strings.HasPrefix(id, "session_") {
		t.Fatalf("id = %q, want session_ prefix", id)
	}
	parts := strings.Split(id, "_")
	if len(parts) != 3 {
		t.Fatalf("id = %q, want session_<millis>_<suffix>", id)
	}
	if len(parts[2]) != 10 {
		t.Errorf("suffix = %q, want 10 hex chars", parts[2])
	}
}

func TestNewSessionIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewSessionID()
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestIsValidInterval(t *testing.T) {
	for _, interval := range []string{"Minute", "Hour", "Day", "Week", "Month"} {
		if !IsValidInterval(interval) {
			t.Errorf("IsValidInterval(%q) = false, want true", interval)
		}
	}
	for _, interval := range []string{"day", "Year", "", "Second; DROP TABLE"} {
		if IsValidInterval(interval) {
			t.Errorf("IsValidInterval(%q) = true, want false", interval)
		}
	}
}
