package hashutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenizeCamelCase(t *testing.T) {
	require.Equal(t, []string{"debounce", "function"}, Tokenize("debounceFunction"))
}

func TestTokenizeNonAlphanumeric(t *testing.T) {
	require.Equal(t, []string{"hello", "world", "foo"}, Tokenize("hello-world_foo!!"))
}

func TestTokenizeOrderPreserving(t *testing.T) {
	toks := Tokenize("a1 b2 c3")
	require.Equal(t, []string{"a1", "b2", "c3"}, toks)
}

func TestTokenizeEmpty(t *testing.T) {
	require.Empty(t, Tokenize(""))
	require.Empty(t, Tokenize("   ---   "))
}
