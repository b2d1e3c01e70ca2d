package memoryapi

import (
	"context"
	"fmt"

	"github.com/andreahaku/llm-memory-mcp/internal/memory"
)

// JournalStat is one scope's journal.stats entry.
type JournalStat struct {
	Scope              memory.Scope
	JournalAppendCount int
}

// JournalStats implements journal.stats: per-scope append counts and
// time-since-last-compact, read straight from the scheduler's report
// (spec §9: "journal.stats reports per-scope append rate and
// time-since-last-compact").
func (s *Service) JournalStats() []JournalStat {
	report := s.Status()
	out := make([]JournalStat, 0, len(report))
	for _, r := range report {
		out = append(out, JournalStat{Scope: r.Scope, JournalAppendCount: r.JournalAppendCount})
	}
	return out
}

// JournalVerify implements journal.verify: recomputing a scope's catalog
// checksum is the journal-level analogue of maintenance.verify (both
// answer "does the durable state match what we think it is"), so this is a
// thin alias rather than a second checksum implementation.
func (s *Service) JournalVerify(ctx context.Context, scope memory.Scope) (memory.VerifyResult, error) {
	return s.Verify(ctx, scope)
}

// JournalMigrate implements journal.migrate: a one-shot migrator from the
// legacy journal.ndjson (full-item) format to the optimized (hash-only)
// format spec §9 treats as canonical. This engine never writes the legacy
// format — internal/filestore.Journal only ever appends hash-only entries
// — so there is nothing for a live scope to migrate; the operation exists
// to satisfy the op surface and reports that explicitly rather than
// silently succeeding.
func (s *Service) JournalMigrate(ctx context.Context, scope memory.Scope) error {
	return fmt.Errorf("memoryapi: journal.migrate: scope %s already uses the optimized journal format, nothing to migrate", scope)
}
