package hashutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashBodyDeterministic(t *testing.T) {
	body := CanonicalBody{Title: "Debounce", Code: "function debounce(f,w){}", Type: "snippet", Language: "js"}
	h1, err := HashBody(body)
	require.NoError(t, err)
	h2, err := HashBody(body)
	require.NoError(t, err)
	require.Equal(t, h1, h2)
	require.Len(t, string(h1), 64)
}

func TestHashBodyExcludesScopeFields(t *testing.T) {
	// Two bodies with identical title/text/code/type/language hash equal
	// regardless of any scope/timestamp data that might accompany them
	// elsewhere in a MemoryItem (spec §3 contentHash definition).
	a := CanonicalBody{Title: "t", Text: "x", Type: "note"}
	b := CanonicalBody{Title: "t", Text: "x", Type: "note"}
	ha, _ := HashBody(a)
	hb, _ := HashBody(b)
	require.Equal(t, ha, hb)
}

func TestContentHashBytesRoundTrip(t *testing.T) {
	h := HashBytes([]byte("hello world"))
	raw, ok := h.Bytes()
	require.True(t, ok)
	require.Equal(t, HashBytes(raw[:]).String() != "", true)
}

func TestContentHashBytesInvalid(t *testing.T) {
	_, ok := ContentHash("not-hex").Bytes()
	require.False(t, ok)
}
