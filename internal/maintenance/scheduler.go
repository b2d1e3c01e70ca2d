// Package maintenance implements C12: the process-wide scheduler that
// fires a scope's compaction when its journal append count or elapsed time
// crosses the configured threshold (spec §4.10 maintenance schedule), plus
// the on-demand maintenance.* operations that wrap internal/memory's
// Rebuild/Replay/Compact/Snapshot/Verify/Prune.
package maintenance

import (
	"context"
	"sync"
	"time"

	"github.com/andreahaku/llm-memory-mcp/internal/config"
	"github.com/andreahaku/llm-memory-mcp/internal/memlog"
	"github.com/andreahaku/llm-memory-mcp/internal/memory"
)

var log = memlog.Named("maintenance")

// Scheduler polls every open scope on a timer and compacts any scope whose
// journalAppendCount or time-since-lastCompactAt has crossed the configured
// threshold (spec §4.10: "compaction triggers when count ≥ compactEvery or
// now − lastCompactAt ≥ compactIntervalMs").
type Scheduler struct {
	mgr  *memory.Manager
	cfg  config.MaintenanceConfig
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewScheduler builds a scheduler over mgr, not yet running.
func NewScheduler(mgr *memory.Manager, cfg config.MaintenanceConfig) *Scheduler {
	return &Scheduler{mgr: mgr, cfg: cfg, stop: make(chan struct{})}
}

// Start launches the background poll loop. Stop must be called to release
// its goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop halts the poll loop and waits for it to exit.
func (s *Scheduler) Stop() {
	close(s.stop)
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	for _, scope := range s.mgr.Scopes() {
		status, ok := s.mgr.Status(scope)
		if !ok {
			continue
		}
		due := status.JournalAppendCount >= s.cfg.CompactEvery ||
			time.Since(status.LastCompactAt) >= s.cfg.CompactInterval
		if !due {
			continue
		}
		log.Infow("compacting scope on schedule", "scope", scope, "ops", status.JournalAppendCount)
		if err := s.mgr.Compact(ctx, scope, true); err != nil {
			log.Warnw("scheduled compaction failed", "scope", scope, "err", err)
		}
	}
}

// Status is maintenance.status's output: per-scope counters plus the last
// verify result, for a CLI or API caller to inspect without forcing a
// compaction.
type Status struct {
	Scope              memory.Scope
	JournalAppendCount int
	LastCompactAt      time.Time
}

// Report collects maintenance status for every open scope.
func Report(mgr *memory.Manager) []Status {
	scopes := mgr.Scopes()
	out := make([]Status, 0, len(scopes))
	for _, scope := range scopes {
		status, ok := mgr.Status(scope)
		if !ok {
			continue
		}
		out = append(out, Status{Scope: scope, JournalAppendCount: status.JournalAppendCount, LastCompactAt: status.LastCompactAt})
	}
	return out
}
