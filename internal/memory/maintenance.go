package memory

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/andreahaku/llm-memory-mcp/internal/hashutil"
	"github.com/andreahaku/llm-memory-mcp/internal/invindex"
)

var maintJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// stateOK is the marker maintenance writes on a successful snapshot/compact
// (spec §4.10 compaction step 6): its checksum is what Verify recomputes
// and compares against.
type stateOK struct {
	Checksum  string    `json:"checksum"`
	Timestamp time.Time `json:"ts"`
	ItemCount int       `json:"itemCount"`
}

func stateOKPath(dir string) string { return filepath.Join(dir, "state-ok.json") }

// catalogChecksum hashes a scope's catalog deterministically: summaries are
// sorted by ID so the same content always produces the same digest
// regardless of map iteration order.
func catalogChecksum(sums []MemoryItemSummary) (string, error) {
	sort.Slice(sums, func(i, j int) bool { return sums[i].ID < sums[j].ID })
	raw, err := maintJSON.Marshal(sums)
	if err != nil {
		return "", err
	}
	return hashutil.HashBytes(raw).String(), nil
}

// rebuildIndices clears and repopulates a scope's inverted and vector
// indices from its adapter's current catalog, the same recovery path
// NewManager runs at startup (spec §4.10 "rebuild catalog if empty-but-
// index-nonempty" / startup recovery step (b)).
func (m *Manager) rebuildIndices(ctx context.Context, sc *scopeState) error {
	sums, err := sc.adapter.Catalog(ctx)
	if err != nil {
		return err
	}

	inv := invindex.New(invindex.DefaultFieldWeights(), invindex.DefaultBM25Params())
	vec := sc.vec
	vec.Clear()

	for _, sum := range sums {
		if len(sum.Vector) > 0 {
			if err := vec.Upsert(sum.ID, sum.Vector); err != nil {
				log.Warnw("skipping vector with mismatched dimension on rebuild", "id", sum.ID, "err", err)
			}
		}
		body, err := sc.adapter.GetBody(ctx, sum.Payload)
		if err != nil {
			log.Warnw("skipping document body on rebuild", "id", sum.ID, "err", err)
			continue
		}
		item := Hydrate(sum, body)
		inv.Upsert(invindex.Document{ID: item.ID, Title: item.Title, Text: item.Text, Code: item.Code, Tags: item.Facets.Tags})
	}
	sc.inv = inv
	return invindex.Flush(sc.inv, sc.invPath, sc.flush)
}

// Rebuild implements maintenance.rebuild: fully reconstructs scope's
// inverted and vector indices from its durable catalog, discarding whatever
// in-memory state they held.
func (m *Manager) Rebuild(ctx context.Context, scope Scope) error {
	sc := m.scope(scope)
	if sc == nil {
		return ErrInvalidInput
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if err := m.rebuildIndices(ctx, sc); err != nil {
		return err
	}
	m.queryCache.InvalidateScope(scope)
	return nil
}

// Replay implements maintenance.replay: re-derives the in-memory indices
// from the adapter's catalog without touching the underlying journal or
// segment files, for recovering after a process crash left the indices
// stale relative to what was actually committed (spec §4.10 startup
// recovery step (c), exposed here as an on-demand operation too).
func (m *Manager) Replay(ctx context.Context, scope Scope) error {
	return m.Rebuild(ctx, scope)
}

// Compact implements maintenance.compact / maintenance.compact.now (spec
// §4.10 compaction steps 1-4): if the scope's adapter implements Compactor,
// asks it to physically reclaim tombstoned space, then rebuilds the
// in-memory indices against the now-compacted catalog. withSnapshot also
// performs the snapshot step (5-6) in the same call, matching
// maintenance.compactSnapshot.
func (m *Manager) Compact(ctx context.Context, scope Scope, withSnapshot bool) error {
	sc := m.scope(scope)
	if sc == nil {
		return ErrInvalidInput
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if compactor, ok := sc.adapter.(Compactor); ok {
		if err := compactor.Compact(ctx); err != nil {
			return err
		}
	}
	if err := m.rebuildIndices(ctx, sc); err != nil {
		return err
	}
	sc.journalAppendCount = 0
	sc.lastCompactAt = m.now()
	m.queryCache.InvalidateScope(scope)

	if withSnapshot {
		if _, _, err := m.snapshotLocked(ctx, sc); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot implements maintenance.snapshot (spec §4.10 compaction steps 5-6):
// computes the scope's catalog checksum and writes it to state-ok.json.
func (m *Manager) Snapshot(ctx context.Context, scope Scope) (checksum string, itemCount int, err error) {
	sc := m.scope(scope)
	if sc == nil {
		return "", 0, ErrInvalidInput
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return m.snapshotLocked(ctx, sc)
}

func (m *Manager) snapshotLocked(ctx context.Context, sc *scopeState) (string, int, error) {
	sums, err := sc.adapter.Catalog(ctx)
	if err != nil {
		return "", 0, err
	}
	checksum, err := catalogChecksum(sums)
	if err != nil {
		return "", 0, err
	}
	state := stateOK{Checksum: checksum, Timestamp: m.now(), ItemCount: len(sums)}
	if err := writeStateOK(stateOKPath(sc.dir), state); err != nil {
		return "", 0, err
	}
	return checksum, len(sums), nil
}

func writeStateOK(path string, state stateOK) error {
	raw, err := maintJSON.Marshal(state)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// VerifyResult is maintenance.verify's output.
type VerifyResult struct {
	OK               bool
	ComputedChecksum string
	RecordedChecksum string
	ItemCount        int
}

// Verify implements maintenance.verify: recomputes the scope's catalog
// checksum and compares it to the last state-ok.json written by Snapshot or
// Compact. A missing state-ok.json (scope never snapshotted) is reported
// as not OK, not as an error, so callers can decide whether to rebuild.
func (m *Manager) Verify(ctx context.Context, scope Scope) (VerifyResult, error) {
	sc := m.scope(scope)
	if sc == nil {
		return VerifyResult{}, ErrInvalidInput
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sums, err := sc.adapter.Catalog(ctx)
	if err != nil {
		return VerifyResult{}, err
	}
	computed, err := catalogChecksum(sums)
	if err != nil {
		return VerifyResult{}, err
	}

	raw, err := os.ReadFile(stateOKPath(sc.dir))
	if os.IsNotExist(err) {
		return VerifyResult{OK: false, ComputedChecksum: computed, ItemCount: len(sums)}, nil
	}
	if err != nil {
		return VerifyResult{}, err
	}
	var recorded stateOK
	if err := maintJSON.Unmarshal(raw, &recorded); err != nil {
		return VerifyResult{}, ErrIntegrityError
	}
	return VerifyResult{
		OK:               recorded.Checksum == computed,
		ComputedChecksum: computed,
		RecordedChecksum: recorded.Checksum,
		ItemCount:        len(sums),
	}, nil
}

// Prune implements maintenance.prune(TTL): deletes every item in scope
// whose quality.ttlDays has elapsed since its last update (spec §3
// lifecycle), returning how many were removed.
func (m *Manager) Prune(ctx context.Context, scope Scope, now time.Time) (int, error) {
	sc := m.scope(scope)
	if sc == nil {
		return 0, ErrInvalidInput
	}

	sums, err := sc.adapter.Catalog(ctx)
	if err != nil {
		return 0, err
	}

	pruned := 0
	for _, sum := range sums {
		if !sum.TTLEligibleForPrune(now) {
			continue
		}
		if _, err := m.Delete(ctx, sum.ID, scope); err != nil {
			return pruned, err
		}
		pruned++
	}
	return pruned, nil
}

// MaintenanceStatus reports the counters internal/maintenance's scheduler
// uses to decide when a scope is due for compaction (spec §4.10
// maintenance schedule).
type MaintenanceStatus struct {
	JournalAppendCount int
	LastCompactAt      time.Time
}

// Status returns scope's current maintenance counters.
func (m *Manager) Status(scope Scope) (MaintenanceStatus, bool) {
	sc := m.scope(scope)
	if sc == nil {
		return MaintenanceStatus{}, false
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return MaintenanceStatus{JournalAppendCount: sc.journalAppendCount, LastCompactAt: sc.lastCompactAt}, true
}

// Scopes lists every scope this manager has an open back-end for.
func (m *Manager) Scopes() []Scope {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Scope, 0, len(m.scopes))
	for s := range m.scopes {
		out = append(out, s)
	}
	return out
}
