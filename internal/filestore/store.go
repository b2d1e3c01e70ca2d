package filestore

import (
	"bufio"
	"context"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/andreahaku/llm-memory-mcp/internal/hashutil"
	"github.com/andreahaku/llm-memory-mcp/internal/memlog"
	"github.com/andreahaku/llm-memory-mcp/internal/memory"
)

var log = memlog.Named("filestore")

const defaultLockTimeout = 5 * time.Second

// Store is the file-backed memory.Adapter implementation.
type Store struct {
	layout  Layout
	journal *Journal
	lock    *flock.Flock

	mu      sync.RWMutex
	catalog map[string]memory.MemoryItemSummary
}

// Open mounts a scope's file store at dir, acquiring its advisory lock,
// loading the catalog, and replaying any journal entries the catalog
// doesn't yet reflect (spec §4.5 crash recovery).
func Open(dir string) (*Store, error) {
	layout := NewLayout(dir)
	if err := os.MkdirAll(layout.ItemsDir(), 0o755); err != nil {
		return nil, err
	}

	l, err := acquireLock(layout.LockFile(), defaultLockTimeout)
	if err != nil {
		return nil, err
	}

	catalog, err := loadCatalog(layout.Catalog())
	if err != nil {
		l.Unlock()
		return nil, err
	}

	s := &Store{layout: layout, journal: OpenJournal(layout.Journal()), lock: l, catalog: catalog}
	if err := s.replayJournal(); err != nil {
		l.Unlock()
		return nil, err
	}
	return s, nil
}

// replayJournal applies any journal entries the catalog doesn't already
// reflect. Safe to call on a catalog that is already fully up to date: a
// put entry for an ID already matching the journal's content hash is a
// no-op, and a delete entry for an already-tombstoned ID is a no-op.
func (s *Store) replayJournal() error {
	entries, err := Replay(s.layout.Journal())
	if err != nil {
		return err
	}
	dirty := false
	for _, e := range entries {
		switch e.Op {
		case OpPut:
			existing, ok := s.catalog[e.ID]
			if ok && existing.Payload.ContentHash.String() == e.ContentHash && !existing.Tombstoned {
				continue
			}
			// The body file itself is authoritative; the catalog entry
			// is reconstructed minimally and will be overwritten by the
			// next full Put from the caller holding the real item.
			if ok {
				existing.Payload.ContentHash = hashutil.ContentHash(e.ContentHash)
				existing.Tombstoned = false
				s.catalog[e.ID] = existing
				dirty = true
			}
		case OpDelete:
			if existing, ok := s.catalog[e.ID]; ok && !existing.Tombstoned {
				existing.Tombstoned = true
				s.catalog[e.ID] = existing
				dirty = true
			}
		}
	}
	if dirty {
		return saveCatalog(s.layout.Catalog(), s.catalog)
	}
	return nil
}

// Put implements memory.Adapter.
func (s *Store) Put(ctx context.Context, item memory.MemoryItem) (memory.PayloadRef, error) {
	hash, err := item.ContentHash()
	if err != nil {
		return memory.PayloadRef{}, err
	}

	bodyPath := s.layout.BodyPath(hash.String())
	if _, err := os.Stat(bodyPath); os.IsNotExist(err) {
		body, err := item.CanonicalBody().CanonicalJSON()
		if err != nil {
			return memory.PayloadRef{}, err
		}
		if err := writeAtomic(bodyPath, body); err != nil {
			return memory.PayloadRef{}, err
		}
	}

	ref := memory.PayloadRef{ContentHash: hash, Size: uint32(len(item.Text) + len(item.Code) + len(item.Title))}

	if err := s.journal.Append(JournalEntry{Op: OpPut, ID: item.ID, ContentHash: hash.String(), Timestamp: time.Now()}); err != nil {
		return memory.PayloadRef{}, err
	}

	s.mu.Lock()
	s.catalog[item.ID] = item.Summary(ref)
	err = saveCatalog(s.layout.Catalog(), s.catalog)
	s.mu.Unlock()
	if err != nil {
		return memory.PayloadRef{}, err
	}
	return ref, nil
}

// GetBody implements memory.Adapter.
func (s *Store) GetBody(ctx context.Context, ref memory.PayloadRef) (hashutil.CanonicalBody, error) {
	path := s.layout.BodyPath(ref.ContentHash.String())
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return hashutil.CanonicalBody{}, memory.ErrNotFound
		}
		return hashutil.CanonicalBody{}, err
	}
	defer f.Close()

	var body hashutil.CanonicalBody
	if err := jsonAPI.NewDecoder(bufio.NewReader(f)).Decode(&body); err != nil {
		return hashutil.CanonicalBody{}, memory.ErrDecodeError
	}
	return body, nil
}

// Delete implements memory.Adapter.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.catalog[id]
	if !ok {
		return memory.ErrNotFound
	}
	if err := s.journal.Append(JournalEntry{Op: OpDelete, ID: id, Timestamp: time.Now()}); err != nil {
		return err
	}
	existing.Tombstoned = true
	s.catalog[id] = existing
	return saveCatalog(s.layout.Catalog(), s.catalog)
}

// Catalog implements memory.Adapter.
func (s *Store) Catalog(ctx context.Context) ([]memory.MemoryItemSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]memory.MemoryItemSummary, 0, len(s.catalog))
	for _, sum := range s.catalog {
		if sum.Tombstoned {
			continue
		}
		out = append(out, sum)
	}
	return out, nil
}

// Get implements memory.Adapter.
func (s *Store) Get(ctx context.Context, id string) (memory.MemoryItemSummary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum, ok := s.catalog[id]
	if !ok || sum.Tombstoned {
		return memory.MemoryItemSummary{}, false, nil
	}
	return sum, true, nil
}

// Backend implements memory.Adapter.
func (s *Store) Backend() memory.Backend { return memory.BackendFile }

// Compact implements memory.Compactor (spec §4.10 compaction step 4): drops
// tombstoned catalog entries permanently and truncates the journal to a
// single snapshot marker, so replay on next startup has nothing stale to
// skip past. Body files are left in place; they are addressed by content
// hash and may still be shared by a live item.
func (s *Store) Compact(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sum := range s.catalog {
		if sum.Tombstoned {
			delete(s.catalog, id)
		}
	}
	if err := saveCatalog(s.layout.Catalog(), s.catalog); err != nil {
		return err
	}
	return s.journal.Snapshot(time.Now())
}

// Close releases the store's advisory lock.
func (s *Store) Close() error {
	return s.lock.Unlock()
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
