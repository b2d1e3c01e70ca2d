// Package memoryapi is the external operation surface named by spec §6:
// memory.*, project.*, maintenance.*, journal.*, migration.* and vectors.*,
// bridging to internal/memory, internal/maintenance, internal/migration and
// internal/scope. It is types-and-methods only — no transport binding (the
// Non-goals exclude a network/RPC surface) — so cmd/memoryd and any future
// host adapter share one Go contract instead of re-deriving it from the
// Manager's lower-level methods.
package memoryapi

import (
	"context"
	"fmt"
	"time"

	"github.com/andreahaku/llm-memory-mcp/internal/config"
	"github.com/andreahaku/llm-memory-mcp/internal/maintenance"
	"github.com/andreahaku/llm-memory-mcp/internal/memory"
	"github.com/andreahaku/llm-memory-mcp/internal/telemetry"
)

// Service wraps an open *memory.Manager with its maintenance scheduler and
// the engine's resolved configuration, and is the receiver for every
// memory.*/project.*/maintenance.*/journal.*/migration.*/vectors.*
// operation in this package.
type Service struct {
	Manager   *memory.Manager
	Scheduler *maintenance.Scheduler
	Config    *config.Config
}

// New wraps an already-open manager and scheduler. cmd/memoryd constructs
// both via internal/engine.Open and internal/maintenance.NewScheduler and
// passes them here so this package never has to know how a back-end is
// chosen.
func New(cfg *config.Config, mgr *memory.Manager, sched *maintenance.Scheduler) *Service {
	return &Service{Manager: mgr, Scheduler: sched, Config: cfg}
}

func observe(op string, fn func() error) error {
	return telemetry.Observe(op, fn)
}

// --- memory.* -------------------------------------------------------------

// Upsert implements memory.upsert.
func (s *Service) Upsert(ctx context.Context, item memory.MemoryItem) (memory.MemoryItem, error) {
	var out memory.MemoryItem
	err := observe("memory.upsert", func() error {
		var err error
		out, err = s.Manager.Upsert(ctx, item)
		return err
	})
	return out, err
}

// Get implements memory.get.
func (s *Service) Get(ctx context.Context, id string, scope *memory.Scope) (memory.MemoryItem, error) {
	var out memory.MemoryItem
	err := observe("memory.get", func() error {
		var err error
		out, err = s.Manager.Get(ctx, id, scope)
		return err
	})
	return out, err
}

// Delete implements memory.delete.
func (s *Service) Delete(ctx context.Context, id string, scope memory.Scope) (bool, error) {
	var out bool
	err := observe("memory.delete", func() error {
		var err error
		out, err = s.Manager.Delete(ctx, id, scope)
		return err
	})
	return out, err
}

// List implements memory.list.
func (s *Service) List(ctx context.Context, scope memory.Scope) ([]memory.MemoryItemSummary, error) {
	var out []memory.MemoryItemSummary
	err := observe("memory.list", func() error {
		var err error
		out, err = s.Manager.List(ctx, scope)
		return err
	})
	return out, err
}

// Query implements memory.query.
func (s *Service) Query(ctx context.Context, req memory.QueryRequest) ([]memory.ScoredItem, error) {
	var out []memory.ScoredItem
	err := observe("memory.query", func() error {
		var err error
		out, err = s.Manager.Query(ctx, req)
		return err
	})
	return out, err
}

// ContextPack implements memory.contextPack.
func (s *Service) ContextPack(ctx context.Context, req memory.ContextPackRequest) (memory.ContextPackResult, error) {
	var out memory.ContextPackResult
	err := observe("memory.contextPack", func() error {
		var err error
		out, err = s.Manager.ContextPack(ctx, req)
		return err
	})
	return out, err
}

// Link implements memory.link.
func (s *Service) Link(ctx context.Context, id string, scope memory.Scope, targetID string, relation memory.Relation) (memory.MemoryItem, error) {
	return s.Manager.Link(ctx, id, scope, targetID, relation)
}

// Pin implements memory.pin.
func (s *Service) Pin(ctx context.Context, id string, scope memory.Scope) (memory.MemoryItem, error) {
	return s.Manager.Pin(ctx, id, scope)
}

// Unpin implements memory.unpin.
func (s *Service) Unpin(ctx context.Context, id string, scope memory.Scope) (memory.MemoryItem, error) {
	return s.Manager.Unpin(ctx, id, scope)
}

// Tag implements memory.tag.
func (s *Service) Tag(ctx context.Context, id string, scope memory.Scope, add, remove []string) (memory.MemoryItem, error) {
	return s.Manager.Tag(ctx, id, scope, add, remove)
}

// Feedback implements memory.feedback({id, helpful}).
func (s *Service) Feedback(ctx context.Context, id string, scope memory.Scope, helpful bool) (memory.MemoryItem, error) {
	return s.Manager.Feedback(ctx, id, scope, helpful)
}

// Use implements memory.use({id}).
func (s *Service) Use(ctx context.Context, id string, scope memory.Scope) (memory.MemoryItem, error) {
	return s.Manager.Use(ctx, id, scope)
}

// Renew implements memory.renew.
func (s *Service) Renew(ctx context.Context, id string, scope memory.Scope) (memory.MemoryItem, error) {
	return s.Manager.Renew(ctx, id, scope)
}

// Patch implements memory.patch.
func (s *Service) Patch(ctx context.Context, id string, scope memory.Scope, patch memory.PatchRequest) (memory.MemoryItem, error) {
	return s.Manager.Patch(ctx, id, scope, patch)
}

// Append implements memory.append.
func (s *Service) Append(ctx context.Context, id string, scope memory.Scope, text, code string) (memory.MemoryItem, error) {
	return s.Manager.Append(ctx, id, scope, text, code)
}

// Merge implements memory.merge.
func (s *Service) Merge(ctx context.Context, primaryID, secondaryID string, scope memory.Scope) (memory.MemoryItem, error) {
	return s.Manager.Merge(ctx, primaryID, secondaryID, scope)
}

// --- maintenance.* ----------------------------------------------------------

// Rebuild implements maintenance.rebuild.
func (s *Service) Rebuild(ctx context.Context, scope memory.Scope) error {
	return observe("maintenance.rebuild", func() error { return s.Manager.Rebuild(ctx, scope) })
}

// Replay implements maintenance.replay.
func (s *Service) Replay(ctx context.Context, scope memory.Scope) error {
	return observe("maintenance.replay", func() error { return s.Manager.Replay(ctx, scope) })
}

// Compact implements maintenance.compact / maintenance.compact.now.
func (s *Service) Compact(ctx context.Context, scope memory.Scope) error {
	trigger := "manual"
	err := observe("maintenance.compact", func() error { return s.Manager.Compact(ctx, scope, false) })
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	telemetry.CompactionsTotal.WithLabelValues(trigger, outcome).Inc()
	return err
}

// CompactSnapshot implements maintenance.compactSnapshot.
func (s *Service) CompactSnapshot(ctx context.Context, scope memory.Scope) error {
	return observe("maintenance.compactSnapshot", func() error { return s.Manager.Compact(ctx, scope, true) })
}

// Snapshot implements maintenance.snapshot.
func (s *Service) Snapshot(ctx context.Context, scope memory.Scope) (checksum string, itemCount int, err error) {
	err = observe("maintenance.snapshot", func() error {
		var err error
		checksum, itemCount, err = s.Manager.Snapshot(ctx, scope)
		return err
	})
	return
}

// Verify implements maintenance.verify.
func (s *Service) Verify(ctx context.Context, scope memory.Scope) (memory.VerifyResult, error) {
	var out memory.VerifyResult
	err := observe("maintenance.verify", func() error {
		var err error
		out, err = s.Manager.Verify(ctx, scope)
		return err
	})
	return out, err
}

// VerifyAll runs maintenance.verify over every open scope, returning the
// aggregate as a per-scope map so a caller doesn't have to know the scope
// list up front (spec §9 "maintenance.verify additionally reports
// per-scope checksum status").
func (s *Service) VerifyAll(ctx context.Context) (map[memory.Scope]memory.VerifyResult, error) {
	out := make(map[memory.Scope]memory.VerifyResult)
	for _, scope := range s.Manager.Scopes() {
		result, err := s.Verify(ctx, scope)
		if err != nil {
			return out, fmt.Errorf("memoryapi: verify %s: %w", scope, err)
		}
		out[scope] = result
	}
	return out, nil
}

// Prune implements maintenance.prune.
func (s *Service) Prune(ctx context.Context, scope memory.Scope, now time.Time) (int, error) {
	var out int
	err := observe("maintenance.prune", func() error {
		var err error
		out, err = s.Manager.Prune(ctx, scope, now)
		return err
	})
	return out, err
}

// Status implements maintenance.status: the scheduler's per-scope report.
func (s *Service) Status() []maintenance.Status {
	return maintenance.Report(s.Manager)
}

// --- project.* / journal.* / migration.* / vectors.* are in their own
// files (project.go, journal.go, migration.go, vectors.go) to keep this
// file to the spec.md-unchanged memory.*/maintenance.* surface.
