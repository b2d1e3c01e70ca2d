// Package migration implements C11: moving a scope's items between the
// file and video storage back-ends, and moving items between scopes with
// content filters (spec §4.11).
package migration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/andreahaku/llm-memory-mcp/internal/filestore"
	"github.com/andreahaku/llm-memory-mcp/internal/memlog"
	"github.com/andreahaku/llm-memory-mcp/internal/memory"
	"github.com/andreahaku/llm-memory-mcp/internal/videocodec"
	"github.com/andreahaku/llm-memory-mcp/internal/videostore"
)

var log = memlog.Named("migration")

const defaultBatchSize = 50

// ProgressFunc is invoked after every batch of migrated items.
type ProgressFunc func(done, total int)

// BackendResult reports a completed (or dry-run) back-end migration.
type BackendResult struct {
	SourceCount    int
	RecoveredCount int
	Errors         []error
	DryRun         bool
}

// Combined folds Errors into a single error via hashicorp/go-multierror, or
// nil if every item migrated cleanly, for callers that want one error value
// to check rather than ranging over the slice themselves.
func (r BackendResult) Combined() error {
	if len(r.Errors) == 0 {
		return nil
	}
	var merr *multierror.Error
	for _, err := range r.Errors {
		merr = multierror.Append(merr, err)
	}
	return merr.ErrorOrNil()
}

func openBackend(ctx context.Context, dir string, backend memory.Backend) (memory.Adapter, error) {
	switch backend {
	case memory.BackendFile:
		return filestore.Open(dir)
	case memory.BackendVideo:
		return videostore.Open(ctx, dir, videocodec.DefaultProber())
	default:
		return nil, fmt.Errorf("migration: unknown backend %q", backend)
	}
}

// MigrateBackend streams every item in a scope's current back-end (at
// homeDir/scopeSub) into a freshly opened `to` back-end, validates each id
// round-trips to the same content hash, then atomically swaps the new
// directory into place (spec §4.11). The caller MUST have closed any
// engine.Manager holding this scope open first: MigrateBackend opens its
// own adapters directly against the directory tree and would otherwise
// race the live scope lock.
func MigrateBackend(ctx context.Context, homeDir, scopeSub string, from, to memory.Backend, batchSize int, dryRun bool, onProgress ProgressFunc) (BackendResult, error) {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	sourceDir := filepath.Join(homeDir, scopeSub)

	source, err := openBackend(ctx, sourceDir, from)
	if err != nil {
		return BackendResult{}, err
	}

	sums, err := source.Catalog(ctx)
	if err != nil {
		_ = source.Close()
		return BackendResult{}, err
	}
	result := BackendResult{SourceCount: len(sums), DryRun: dryRun}

	if dryRun {
		_ = source.Close()
		return result, nil
	}

	ts := time.Now().UnixNano()
	targetDir := fmt.Sprintf("%s_migration_%d", sourceDir, ts)
	oldDir := fmt.Sprintf("%s_old_%d", sourceDir, ts)

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		_ = source.Close()
		return result, err
	}
	target, err := openBackend(ctx, targetDir, to)
	if err != nil {
		_ = source.Close()
		_ = os.RemoveAll(targetDir)
		return result, err
	}

	log.Infow("starting backend migration", "from", from, "to", to, "items", len(sums))

	recovered := 0
	for i := 0; i < len(sums); i += batchSize {
		end := i + batchSize
		if end > len(sums) {
			end = len(sums)
		}
		for _, sum := range sums[i:end] {
			if err := migrateOne(ctx, source, target, sum); err != nil {
				result.Errors = append(result.Errors, err)
				continue
			}
			recovered++
		}
		if onProgress != nil {
			onProgress(end, len(sums))
		}
	}
	result.RecoveredCount = recovered

	sourceErr := source.Close()
	targetErr := target.Close()
	if sourceErr != nil || targetErr != nil {
		_ = os.RemoveAll(targetDir)
		if sourceErr != nil {
			return result, sourceErr
		}
		return result, targetErr
	}

	if recovered != len(sums) {
		_ = os.RemoveAll(targetDir)
		return result, fmt.Errorf("migration: recovered %d of %d items, aborting swap", recovered, len(sums))
	}

	if err := os.Rename(sourceDir, oldDir); err != nil {
		_ = os.RemoveAll(targetDir)
		return result, err
	}
	if err := os.Rename(targetDir, sourceDir); err != nil {
		_ = os.Rename(oldDir, sourceDir)
		return result, err
	}
	_ = os.RemoveAll(oldDir)
	return result, nil
}

// migrateOne copies sum's item from source to target and validates the
// re-read content hash matches (spec §4.11 "optional re-read validation").
func migrateOne(ctx context.Context, source, target memory.Adapter, sum memory.MemoryItemSummary) error {
	body, err := source.GetBody(ctx, sum.Payload)
	if err != nil {
		return fmt.Errorf("migration: read %s: %w", sum.ID, err)
	}
	item := memory.Hydrate(sum, body)

	if _, err := target.Put(ctx, item); err != nil {
		return fmt.Errorf("migration: write %s: %w", sum.ID, err)
	}

	got, ok, err := target.Get(ctx, item.ID)
	if err != nil {
		return fmt.Errorf("migration: validate %s: %w", sum.ID, err)
	}
	if !ok {
		return fmt.Errorf("migration: validate %s: not found after write", sum.ID)
	}
	if got.Payload.ContentHash != sum.Payload.ContentHash {
		return fmt.Errorf("migration: validate %s: content hash mismatch after write", sum.ID)
	}
	return nil
}
