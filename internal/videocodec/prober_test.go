package videocodec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProberUnavailableForBogusPath(t *testing.T) {
	p := &Prober{FFmpegPath: "definitely-not-a-real-binary", FFprobePath: "ffprobe"}
	require.False(t, p.Available(context.Background()))
}

func TestProberCachesResult(t *testing.T) {
	p := &Prober{FFmpegPath: "definitely-not-a-real-binary", FFprobePath: "definitely-not-a-real-binary-either"}
	first := p.Available(context.Background())
	second := p.Available(context.Background())
	require.Equal(t, first, second)
	require.False(t, first)
}
