package memory

import (
	"context"

	"github.com/andreahaku/llm-memory-mcp/internal/hashutil"
)

// Adapter is implemented by both internal/filestore and internal/videostore
// (spec §9 design note: storage back-ends must be swappable behind one
// interface so the manager and migration engine never special-case file vs.
// video). It lives here, next to MemoryItem/MemoryItemSummary, rather than
// in its own package: both concrete back-ends already import internal/memory
// for these types, and the manager needs the interface type itself, so a
// separate adapter package would put memory and its own adapter package in
// an import cycle.
type Adapter interface {
	// Put writes item's summary to the catalog and its body to the
	// back-end, deduplicating on content hash. It returns the payload
	// reference the catalog should store.
	Put(ctx context.Context, item MemoryItem) (PayloadRef, error)

	// GetBody hydrates the body bytes (pre content-hash-verification) a
	// PayloadRef points to.
	GetBody(ctx context.Context, ref PayloadRef) (hashutil.CanonicalBody, error)

	// Delete tombstones id in the catalog. The back-end frees the
	// underlying bytes only during compaction (spec §3 invariant 6).
	Delete(ctx context.Context, id string) error

	// Catalog returns every non-tombstoned summary currently known to this
	// back-end, in no particular order.
	Catalog(ctx context.Context) ([]MemoryItemSummary, error)

	// Get returns a single summary by ID, or ok=false if absent or
	// tombstoned.
	Get(ctx context.Context, id string) (MemoryItemSummary, bool, error)

	// Backend names which concrete back-end this adapter is, for migration
	// bookkeeping and diagnostics.
	Backend() Backend

	// Close releases any open file handles, caches, or background workers.
	Close() error
}

// Compactor is implemented by back-ends that can physically reclaim space
// held by tombstoned items (spec §4.10 compaction step 3: video stores
// rewrite the segment omitting tombstoned ranges; file stores drop the
// catalog entries and truncate the journal to a snapshot marker). It is
// optional: a back-end without a meaningful compaction step can simply not
// implement it, and internal/maintenance skips that step.
type Compactor interface {
	Compact(ctx context.Context) error
}

// Backend identifies a concrete storage implementation.
type Backend string

const (
	BackendFile  Backend = "file"
	BackendVideo Backend = "video"
)
