package frameindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildSample(t *testing.T, dir string) string {
	t.Helper()
	w := NewWriter(30, 10)
	for i := uint32(0); i < 100; i++ {
		if i%10 == 0 {
			w.Append(NewKeyframeEntry(i, uint64(i)*33, uint64(i+1)))
		} else {
			w.Append(NewFrameEntry(i, uint64(i)*33))
		}
	}
	path := filepath.Join(dir, "segment.mvi")
	require.NoError(t, w.Commit(path))
	return path
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := buildSample(t, dir)

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, 100, r.EntryCount())
	require.NoError(t, r.Validate())

	e, ok, err := r.Lookup(42)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(42), e.FrameIndex)
	require.Equal(t, uint64(42*33), e.PTSMillis)
}

func TestLookupMissingFrame(t *testing.T) {
	dir := t.TempDir()
	path := buildSample(t, dir)
	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	_, ok, err := r.Lookup(9999)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFindNearestKeyframe(t *testing.T) {
	dir := t.TempDir()
	path := buildSample(t, dir)
	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	e, ok, err := r.FindNearestKeyframe(47)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(40), e.FrameIndex)
	require.True(t, e.IsKeyframe())

	e2, ok, err := r.FindNearestKeyframe(9)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(0), e2.FrameIndex)
}

func TestOpenRejectsCorruptMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.mvi")
	require.NoError(t, os.WriteFile(path, []byte("not an mvi file at all, way too short or wrong magic bytes"), 0o644))

	_, err := Open(path)
	require.Error(t, err)
}

func TestValidateCatchesTruncation(t *testing.T) {
	dir := t.TempDir()
	path := buildSample(t, dir)

	r, err := Open(path)
	require.NoError(t, err)
	r.header.EntryCount = 99999
	require.Error(t, r.Validate())
	r.Close()
}
