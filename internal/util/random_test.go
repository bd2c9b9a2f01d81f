package util

import (
	"os"
	"testing"
)

func TestGenerateRandomBase36(t *testing.T) {
	tests := []struct {
		name   string
		length int
		want   int
	}{
		{"zero length", 0, 0},
		{"negative length", -1, 0},
		{"small length", 8, 8},
		{"token length", TokenLength, TokenLength},
		{"large length", 64, 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateRandomBase36(tt.length)

			if len(got) != tt.want {
				t.Errorf("GenerateRandomBase36() length = %v, want %v", len(got), tt.want)
			}

			if tt.want > 0 && !isValidBase36(got) {
				t.Errorf("GenerateRandomBase36() = %v is not valid base-36", got)
			}
		})
	}
}

func TestGenerateTokenUniqueness(t *testing.T) {
	const iterations = 1000
	seen := make(map[string]bool)

	for i := 0; i < iterations; i++ {
		tok := GenerateToken()
		if seen[tok] {
			t.Errorf("GenerateToken() generated duplicate: %v", tok)
		}
		seen[tok] = true
	}
}

func TestParseLooseInt(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"30g", 30},
		{"1,280 kcal", 1280},
		{"", 0},
		{"abc", 0},
		{" 12 ", 12},
		{"-5", -5},
		{"5.1", 5},
		{"rpe 8", 8},
	}

	for _, tt := range tests {
		if got := ParseLooseInt(tt.in); got != tt.want {
			t.Errorf("ParseLooseInt(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseBoolEnv(t *testing.T) {
	const key = "BIOFLOW_TEST_BOOL"
	defer os.Unsetenv(key)

	os.Unsetenv(key)
	if !ParseBoolEnv(key, true) {
		t.Error("expected default true when unset")
	}
	os.Setenv(key, "off")
	if ParseBoolEnv(key, true) {
		t.Error("expected false for 'off'")
	}
	os.Setenv(key, "maybe")
	if ParseBoolEnv(key, false) {
		t.Error("expected default for invalid value")
	}
}

func TestGetenvDefault(t *testing.T) {
	const key = "BIOFLOW_TEST_VALUE"
	defer os.Unsetenv(key)

	os.Unsetenv(key)
	if got := GetenvDefault(key, "x"); got != "x" {
		t.Errorf("expected default, got %q", got)
	}
	os.Setenv(key, "y")
	if got := GetenvDefault(key, "x"); got != "y" {
		t.Errorf("expected env value, got %q", got)
	}
}

// Helper function to validate base-36 strings
func isValidBase36(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'z')) {
			return false
		}
	}
	return true
}
