package migration

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/andreahaku/llm-memory-mcp/internal/memory"
)

// ScopeFilter narrows which items a scope migration considers (spec §4.11:
// "types, tags, files, substring/regex match on title/content, date
// range"). An unset (zero-value) field is not applied.
type ScopeFilter struct {
	Types     []memory.ItemType
	Tags      []string
	Files     []string
	Substring string
	Regex     string
	After     *time.Time
	Before    *time.Time
}

func (f ScopeFilter) matches(item memory.MemoryItem) bool {
	if len(f.Types) > 0 && !containsType(f.Types, item.Type) {
		return false
	}
	if len(f.Tags) > 0 && !intersects(f.Tags, item.Facets.Tags) {
		return false
	}
	if len(f.Files) > 0 && !intersects(f.Files, item.Facets.Files) {
		return false
	}
	if f.Substring != "" {
		haystack := strings.ToLower(item.Title + " " + item.Text + " " + item.Code)
		if !strings.Contains(haystack, strings.ToLower(f.Substring)) {
			return false
		}
	}
	if f.Regex != "" {
		re, err := regexp.Compile(f.Regex)
		if err != nil || !re.MatchString(item.Title+"\n"+item.Text+"\n"+item.Code) {
			return false
		}
	}
	if f.After != nil && item.UpdatedAt.Before(*f.After) {
		return false
	}
	if f.Before != nil && item.UpdatedAt.After(*f.Before) {
		return false
	}
	return true
}

func containsType(types []memory.ItemType, t memory.ItemType) bool {
	for _, want := range types {
		if want == t {
			return true
		}
	}
	return false
}

func intersects(want, have []string) bool {
	for _, w := range want {
		for _, h := range have {
			if w == h {
				return true
			}
		}
	}
	return false
}

// ScopeMigrationResult reports a completed (or dry-run) scope migration.
type ScopeMigrationResult struct {
	CandidateIDs []string
	MigratedIDs  []string
	DryRun       bool
}

// MigrateScope moves every item in scope `from` that matches filter into
// scope `to`, rewriting its scope and updatedAt and deleting the original
// (spec §4.11). DryRun returns the candidate id list without writing
// anything. Runs against a live *memory.Manager — unlike MigrateBackend,
// a scope migration never touches another scope's directory tree, so it
// needs no directory swap and is safe to run online.
func MigrateScope(ctx context.Context, mgr *memory.Manager, from, to memory.Scope, filter ScopeFilter, dryRun bool, now time.Time) (ScopeMigrationResult, error) {
	sums, err := mgr.List(ctx, from)
	if err != nil {
		return ScopeMigrationResult{}, err
	}

	var candidates []memory.MemoryItem
	for _, sum := range sums {
		item, err := mgr.Get(ctx, sum.ID, &from)
		if err != nil {
			continue
		}
		if filter.matches(item) {
			candidates = append(candidates, item)
		}
	}

	result := ScopeMigrationResult{DryRun: dryRun}
	for _, item := range candidates {
		result.CandidateIDs = append(result.CandidateIDs, item.ID)
	}
	if dryRun {
		return result, nil
	}

	log.Infow("starting scope migration", "from", from, "to", to, "candidates", len(candidates))

	for _, item := range candidates {
		id := item.ID
		item.Scope = to
		item.UpdatedAt = now
		if _, err := mgr.Upsert(ctx, item); err != nil {
			return result, err
		}
		if _, err := mgr.Delete(ctx, id, from); err != nil {
			return result, err
		}
		result.MigratedIDs = append(result.MigratedIDs, id)
	}
	return result, nil
}
