package filestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andreahaku/llm-memory-mcp/internal/memory"
)

func sampleItem(id, title string) memory.MemoryItem {
	return memory.MemoryItem{
		ID:    id,
		Type:  memory.TypeSnippet,
		Scope: memory.ScopeLocal,
		Title: title,
		Text:  "body text for " + title,
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "local")
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	item := sampleItem("item-1", "retry helper")
	ref, err := s.Put(context.Background(), item)
	require.NoError(t, err)
	require.NotEmpty(t, ref.ContentHash)

	sum, ok, err := s.Get(context.Background(), "item-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "retry helper", sum.Title)

	body, err := s.GetBody(context.Background(), ref)
	require.NoError(t, err)
	require.Equal(t, item.Text, body.Text)
}

func TestDedupSharesBodyFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "local")
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	item1 := sampleItem("item-1", "shared content")
	item1.Text = "identical body"
	item2 := sampleItem("item-2", "shared content")
	item2.Text = "identical body"

	ref1, err := s.Put(context.Background(), item1)
	require.NoError(t, err)
	ref2, err := s.Put(context.Background(), item2)
	require.NoError(t, err)

	require.Equal(t, ref1.ContentHash, ref2.ContentHash)
}

func TestDeleteTombstones(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "local")
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Put(context.Background(), sampleItem("item-1", "to delete"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(context.Background(), "item-1"))
	_, ok, err := s.Get(context.Background(), "item-1")
	require.NoError(t, err)
	require.False(t, ok)

	items, err := s.Catalog(context.Background())
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestDeleteMissingReturnsNotFound(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "local")
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	err = s.Delete(context.Background(), "does-not-exist")
	require.ErrorIs(t, err, memory.ErrNotFound)
}

func TestReopenRecoversCatalog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "local")
	s, err := Open(dir)
	require.NoError(t, err)

	_, err = s.Put(context.Background(), sampleItem("item-1", "persisted"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()

	sum, ok, err := s2.Get(context.Background(), "item-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "persisted", sum.Title)
}

func TestSecondOpenWhileLockedTimesOut(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "local")
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	_, err = Open(dir)
	require.Error(t, err)
}
