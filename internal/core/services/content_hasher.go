package services

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// ContentHasher computes the integrity digest stored with every document
type ContentHasher struct{}

// NewContentHasher creates a content hasher
func NewContentHasher() *ContentHasher {
	return &ContentHasher{}
}

// Hash returns the lower-case hex SHA-256 of data
func (h *ContentHasher) Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Matches reports whether data hashes to digest. The comparison is constant time.
func (h *ContentHasher) Matches(data []byte, digest string) bool {
	want := []byte(strings.ToLower(strings.TrimSpace(digest)))
	got := []byte(h.Hash(data))
	return subtle.ConstantTimeCompare(got, want) == 1
}
