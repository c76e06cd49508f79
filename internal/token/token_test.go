// Package token provides tests for public token generation.
package token

import (
	"strings"
	"testing"
)

// TestGenerateLength verifies that generated tokens have the fixed length.
func TestGenerateLength(t *testing.T) {
	tok, err := Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(tok) != Length {
		t.Errorf("Generate() length = %d, want %d", len(tok), Length)
	}
}

// TestGenerateAlphabet verifies that tokens only contain lowercase
// alphanumeric characters.
func TestGenerateAlphabet(t *testing.T) {
	for i := 0; i < 100; i++ {
		tok, err := Generate()
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		for _, c := range tok {
			if !strings.ContainsRune("abcdefghijklmnopqrstuvwxyz0123456789", c) {
				t.Fatalf("Generate() produced character %q outside the alphabet in %q", c, tok)
			}
		}
	}
}

// TestGenerateUniqueness verifies that repeated generations do not collide.
// With 36^32 possible values any collision here indicates a broken generator.
func TestGenerateUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		tok, err := Generate()
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if seen[tok] {
			t.Fatalf("Generate() produced duplicate token %q", tok)
		}
		seen[tok] = true
	}
}

// TestValid verifies the token shape check.
func TestValid(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"valid token", "abcdefghijklmnopqrstuvwxyz012345", true},
		{"too short", "abc123", false},
		{"too long", "abcdefghijklmnopqrstuvwxyz0123456", false},
		{"uppercase", "ABCDEFGHIJKLMNOPQRSTUVWXYZ012345", false},
		{"punctuation", "abcdefghijklmnopqrstuvwxyz01234-", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Valid(tt.token); got != tt.want {
				t.Errorf("Valid(%q) = %v, want %v", tt.token, got, tt.want)
			}
		})
	}
}
