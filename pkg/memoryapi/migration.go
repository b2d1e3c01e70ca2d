package memoryapi

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/andreahaku/llm-memory-mcp/internal/memory"
	"github.com/andreahaku/llm-memory-mcp/internal/migration"
)

// MigrationProgress is migration.status's output for one job: a live
// snapshot of a backend migration's progress, since MigrateBackend itself
// runs synchronously to completion and only reports via a callback.
type MigrationProgress struct {
	JobID    string
	Scope    string
	Done     int
	Total    int
	Complete bool
}

// migrationTracker records the latest progress callback from an in-flight
// or just-completed backend migration, keyed by a job id minted at start
// time, so a concurrent migration.status poller has something to read
// (spec §9 "migration.status exposes a live progress snapshot").
type migrationTracker struct {
	mu       sync.Mutex
	progress map[string]*MigrationProgress
}

var tracker = &migrationTracker{progress: make(map[string]*MigrationProgress)}

func (t *migrationTracker) set(id string, p MigrationProgress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.progress[id] = &p
}

// MigrationStatus implements migration.status: the latest known progress
// for jobID, as recorded by its onProgress callback.
func (s *Service) MigrationStatus(jobID string) (MigrationProgress, bool) {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	p, ok := tracker.progress[jobID]
	if !ok {
		return MigrationProgress{}, false
	}
	return *p, true
}

// MigrateStorageBackend implements migration.storage.backend: moves scope's
// items from one storage back-end to another (spec §4.11). The caller must
// have closed any live manager holding that scope open first; this mints a
// job id so the caller can poll MigrationStatus while it runs.
func (s *Service) MigrateStorageBackend(ctx context.Context, homeDir, scopeSub string, from, to memory.Backend, batchSize int, dryRun bool) (string, migration.BackendResult, error) {
	jobID := uuid.New().String()
	result, err := migration.MigrateBackend(ctx, homeDir, scopeSub, from, to, batchSize, dryRun, func(done, total int) {
		tracker.set(jobID, MigrationProgress{JobID: jobID, Scope: scopeSub, Done: done, Total: total})
	})
	if p, ok := s.MigrationStatus(jobID); ok {
		p.Complete = true
		tracker.set(jobID, p)
	}
	return jobID, result, err
}

// MigrateScope implements migration.scope: moves items between scopes under
// an online content filter (spec §4.11).
func (s *Service) MigrateScope(ctx context.Context, from, to memory.Scope, filter migration.ScopeFilter, dryRun bool) (migration.ScopeMigrationResult, error) {
	return migration.MigrateScope(ctx, s.Manager, from, to, filter, dryRun, time.Now())
}

// MigrationValidate implements migration.validate: re-verifies every open
// scope's catalog checksum, the same integrity check a migration's
// "validate:true" option runs post-migration (spec §8 scenario S5).
func (s *Service) MigrationValidate(ctx context.Context) (map[memory.Scope]memory.VerifyResult, error) {
	return s.VerifyAll(ctx)
}
