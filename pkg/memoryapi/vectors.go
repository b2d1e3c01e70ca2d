package memoryapi

import (
	"bufio"
	"context"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/multierr"

	"github.com/andreahaku/llm-memory-mcp/internal/memory"
)

// SetVector implements vectors.set.
func (s *Service) SetVector(ctx context.Context, id string, scope memory.Scope, vector []float64) (memory.MemoryItem, error) {
	return s.Manager.SetVector(ctx, id, scope, vector)
}

// RemoveVector implements vectors.remove.
func (s *Service) RemoveVector(ctx context.Context, id string, scope memory.Scope) (memory.MemoryItem, error) {
	return s.Manager.RemoveVector(ctx, id, scope)
}

// vectorRecord is one line of the NDJSON embeddings feed accepted by
// ImportBulk/ImportJsonl.
type vectorRecord struct {
	ID     string    `json:"id"`
	Scope  string    `json:"scope"`
	Vector []float64 `json:"vector"`
}

// ImportResult reports how many embeddings an import applied, collecting
// every per-line failure rather than aborting at the first one so a caller
// importing thousands of vectors gets one pass over the file.
type ImportResult struct {
	Imported int
	Skipped  int
}

// ImportJsonl implements vectors.importJsonl: reads one vectorRecord per
// line from r and calls SetVector for each. Malformed or failing lines are
// counted as Skipped and folded into the returned error with
// go.uber.org/multierr, so the caller sees every failure, not just the
// first (spec §6 vectors.importJsonl/importBulk stream embeddings from an
// NDJSON file).
func (s *Service) ImportJsonl(ctx context.Context, r io.Reader) (ImportResult, error) {
	var result ImportResult
	var errs error

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec vectorRecord
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(line, &rec); err != nil {
			result.Skipped++
			errs = multierr.Append(errs, fmt.Errorf("line %d: decode: %w", lineNo, err))
			continue
		}
		if rec.ID == "" || rec.Scope == "" {
			result.Skipped++
			errs = multierr.Append(errs, fmt.Errorf("line %d: missing id or scope", lineNo))
			continue
		}
		if _, err := s.Manager.SetVector(ctx, rec.ID, memory.Scope(rec.Scope), rec.Vector); err != nil {
			result.Skipped++
			errs = multierr.Append(errs, fmt.Errorf("line %d: id %s: %w", lineNo, rec.ID, err))
			continue
		}
		result.Imported++
	}
	if err := scanner.Err(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("scan: %w", err))
	}
	return result, errs
}

// ImportBulk implements vectors.importBulk: the same NDJSON embeddings feed
// as ImportJsonl, offered under the spec's other named alias so either
// external operation name resolves to the same behavior.
func (s *Service) ImportBulk(ctx context.Context, r io.Reader) (ImportResult, error) {
	return s.ImportJsonl(ctx, r)
}
