// Package token mints the public identifiers for ArtKey records.
//
// Tokens are 32-character lowercase alphanumeric strings drawn from a
// cryptographically strong source: they gate access to customers' private
// pages, so they must not be guessable or enumerable. With 36^32 possible
// values the collision probability is negligible, but the record store still
// enforces a uniqueness constraint and callers treat a collision as a
// retryable condition rather than trusting probability alone.
package token

import (
	"crypto/rand"
	"fmt"
	"regexp"
)

// Length is the fixed token length.
const Length = 32

const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// 252 is the largest multiple of len(alphabet) below 256; bytes at or above
// it are rejected so every alphabet character is equally likely.
const maxUnbiased = byte(252)

var tokenPattern = regexp.MustCompile(`^[a-z0-9]{32}$`)

// Generate returns a new random token.
func Generate() (string, error) {
	out := make([]byte, 0, Length)
	buf := make([]byte, Length*2)
	for len(out) < Length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= maxUnbiased {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == Length {
				break
			}
		}
	}
	return string(out), nil
}

// Valid reports whether s has the shape of a public token. Resolution never
// uses shape to skip a lookup path; this is for input checks and diagnostics
// only.
func Valid(s string) bool {
	return tokenPattern.MatchString(s)
}
