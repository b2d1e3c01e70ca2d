package hashutil

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGzipRoundTrip(t *testing.T) {
	orig := bytes.Repeat([]byte("hello world "), 100)
	compressed, err := Gzip(orig)
	require.NoError(t, err)
	require.Less(t, len(compressed), len(orig))

	back, err := Gunzip(compressed)
	require.NoError(t, err)
	require.Equal(t, orig, back)
}

func TestZstdRoundTrip(t *testing.T) {
	orig := bytes.Repeat([]byte("the quick brown fox "), 50)
	compressed, err := ZstdCompress(orig)
	require.NoError(t, err)
	back, err := ZstdDecompress(compressed)
	require.NoError(t, err)
	require.Equal(t, orig, back)
}
