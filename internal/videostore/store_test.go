package videostore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andreahaku/llm-memory-mcp/internal/memory"
	"github.com/andreahaku/llm-memory-mcp/internal/videocodec"
)

func TestPutWithoutFFmpegReturnsDependencyMissing(t *testing.T) {
	prober := &videocodec.Prober{FFmpegPath: "definitely-not-a-real-binary", FFprobePath: "definitely-not-a-real-binary"}
	dir := t.TempDir()

	s, err := Open(context.Background(), dir, prober)
	require.NoError(t, err)
	defer s.Close()

	item := memory.MemoryItem{ID: "item-1", Type: memory.TypeSnippet, Scope: memory.ScopeLocal, Title: "t", Text: "body"}
	_, err = s.Put(context.Background(), item)
	require.Error(t, err)
}

func TestDeleteMissingReturnsNotFound(t *testing.T) {
	prober := &videocodec.Prober{FFmpegPath: "definitely-not-a-real-binary", FFprobePath: "definitely-not-a-real-binary"}
	dir := t.TempDir()
	s, err := Open(context.Background(), dir, prober)
	require.NoError(t, err)
	defer s.Close()

	err = s.Delete(context.Background(), "nope")
	require.ErrorIs(t, err, memory.ErrNotFound)
}

func TestBackendReportsVideo(t *testing.T) {
	prober := &videocodec.Prober{FFmpegPath: "definitely-not-a-real-binary", FFprobePath: "definitely-not-a-real-binary"}
	dir := t.TempDir()
	s, err := Open(context.Background(), dir, prober)
	require.NoError(t, err)
	defer s.Close()
	require.Equal(t, "video", string(s.Backend()))
}
