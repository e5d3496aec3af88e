package util

import (
	"strings"
	"testing"
)

func TestGenerateRandomHex(t *testing.T) {
	hex := GenerateRandomHex(32)
	if len(hex) != 32 {
		t.Errorf("length = %d, want 32", len(hex))
	}
	for _, c := range hex {
		if !strings.ContainsRune("0123456789abcdef", c) {
			t.Errorf("non-hex character %q in %q", c, hex)
		}
	}
	if GenerateRandomHex(0) != "" {
		t.Error("zero length should return empty string")
	}
	if GenerateRandomHex(-5) != "" {
		t.Error("negative length should return empty string")
	}
}

func TestGenerateLeadID(t *testing.T) {
	id := GenerateLeadID()
	if !strings.HasPrefix(id, "lead_") {
		t.Errorf("id = %q, want lead_ prefix", id)
	}
	if len(id) != len("lead_")+32 {
		t.Errorf("id length = %d", len(id))
	}
	if GenerateLeadID() == id {
		t.Error("consecutive ids should differ")
	}
}

func TestGenerateAgentID(t *testing.T) {
	id := GenerateAgentID()
	if !strings.HasPrefix(id, "ag_") {
		t.Errorf("id = %q, want ag_ prefix", id)
	}
	if len(id) != len("ag_")+16 {
		t.Errorf("id length = %d", len(id))
	}
}

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		def      bool
		expected bool
	}{
		{"true", "true", false, true},
		{"one", "1", false, true},
		{"yes uppercase", "YES", false, true},
		{"on with spaces", " on ", false, true},
		{"false", "false", true, false},
		{"zero", "0", true, false},
		{"no", "no", true, false},
		{"off", "OFF", true, false},
		{"unset uses default", "", true, true},
		{"garbage uses default", "poate", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_BOOL_ENV", tt.value)
			if got := ParseBoolEnv("TEST_BOOL_ENV", tt.def); got != tt.expected {
				t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.expected)
			}
		})
	}
}
