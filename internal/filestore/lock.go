package filestore

import (
	"context"
	"time"

	"github.com/gofrs/flock"

	"github.com/andreahaku/llm-memory-mcp/internal/memory"
)

// acquireLock takes an exclusive advisory lock on the store's lock file so
// two processes never write the same scope concurrently (spec §4.5).
// ErrLockTimeout is returned if another process holds the lock past
// timeout.
func acquireLock(path string, timeout time.Duration) (*flock.Flock, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	l := flock.New(path)
	locked, err := l.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, memory.ErrLockTimeout
	}
	return l, nil
}
