// Package hashutil provides the content-hashing, redaction, tokenization and
// compression primitives shared by every storage back-end (spec §4.1).
package hashutil

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/andreahaku/llm-memory-mcp/internal/jsonbuilder"
)

// ContentHash is the SHA-256 digest over the canonical JSON body of an item,
// hex-encoded. It excludes scope and timestamps so identical content across
// scopes deduplicates (spec §3).
type ContentHash string

// CanonicalBody is the subset of a MemoryItem's fields that participate in
// content hashing, in the fixed field order spec §3 requires.
type CanonicalBody struct {
	Title    string
	Text     string
	Code     string
	Type     string
	Language string
}

// CanonicalJSON renders the body in a fixed field order so the same logical
// content always produces the same bytes regardless of struct layout.
func (b CanonicalBody) CanonicalJSON() ([]byte, error) {
	obj := jsonbuilder.NewObject().
		String("title", b.Title).
		String("text", b.Text).
		String("code", b.Code).
		String("type", b.Type).
		String("language", b.Language)
	return obj.Bytes()
}

// HashBody computes the content hash of a canonical body.
func HashBody(b CanonicalBody) (ContentHash, error) {
	raw, err := b.CanonicalJSON()
	if err != nil {
		return "", err
	}
	return HashBytes(raw), nil
}

// HashBytes computes the hex-encoded SHA-256 digest of arbitrary bytes.
func HashBytes(b []byte) ContentHash {
	sum := sha256.Sum256(b)
	return ContentHash(hex.EncodeToString(sum[:]))
}

// Bytes decodes the hex digest back to its 32 raw bytes. Returns false if
// the hash is malformed.
func (h ContentHash) Bytes() ([32]byte, bool) {
	var out [32]byte
	raw, err := hex.DecodeString(string(h))
	if err != nil || len(raw) != 32 {
		return out, false
	}
	copy(out[:], raw)
	return out, true
}

func (h ContentHash) String() string { return string(h) }
