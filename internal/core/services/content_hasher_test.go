package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentHasher_KnownDigest(t *testing.T) {
	h := NewContentHasher()
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", h.Hash(nil))
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", h.Hash([]byte("abc")))
}

func TestContentHasher_SingleBitFlip(t *testing.T) {
	h := NewContentHasher()
	data := []byte("%PDF-1.3 proof of address")
	digest := h.Hash(data)

	for i := range data {
		mutated := append([]byte(nil), data...)
		mutated[i] ^= 0x01
		assert.NotEqual(t, digest, h.Hash(mutated), "byte %d", i)
		assert.False(t, h.Matches(mutated, digest))
	}
}

func TestContentHasher_Matches(t *testing.T) {
	h := NewContentHasher()
	data := []byte("document")
	digest := h.Hash(data)

	assert.True(t, h.Matches(data, digest))
	assert.True(t, h.Matches(data, strings.ToUpper(digest)))
	assert.False(t, h.Matches(data, ""))
	assert.False(t, h.Matches(data, digest[:10]))
}
