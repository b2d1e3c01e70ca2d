package memoryapi

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/andreahaku/llm-memory-mcp/internal/memory"
	"github.com/andreahaku/llm-memory-mcp/internal/migration"
	"github.com/andreahaku/llm-memory-mcp/internal/scope"
)

var projectJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// ProjectInfo is project.info's output: the resolved home directory and
// which of the three scopes currently have an on-disk presence.
type ProjectInfo struct {
	HomeDir string
	Scopes  []memory.Scope
}

// Info implements project.info.
func (s *Service) Info() ProjectInfo {
	info := ProjectInfo{HomeDir: s.Config.HomeDir}
	for _, sc := range s.Manager.Scopes() {
		info.Scopes = append(info.Scopes, sc)
	}
	sort.Slice(info.Scopes, func(i, j int) bool { return info.Scopes[i] < info.Scopes[j] })
	return info
}

// InitCommitted implements project.initCommitted: ensures the committed
// scope's storage directory exists on disk, so a project adopting shared
// memory for the first time has something to check into version control
// even before its first upsert.
func (s *Service) InitCommitted() error {
	dir := scope.Dir(s.Config.HomeDir, memory.ScopeCommitted)
	return os.MkdirAll(dir, 0o755)
}

func projectConfigPath(homeDir string) string {
	return filepath.Join(scope.Dir(homeDir, memory.ScopeCommitted), "config.json")
}

// GetProjectConfig implements project.config.get: reads the committed
// scope's config.json, returning an empty map if it doesn't exist yet.
// Unknown keys are preserved verbatim (spec §6: "Unknown keys are
// preserved but ignored").
func (s *Service) GetProjectConfig() (map[string]interface{}, error) {
	raw, err := os.ReadFile(projectConfigPath(s.Config.HomeDir))
	if os.IsNotExist(err) {
		return map[string]interface{}{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := map[string]interface{}{}
	if err := projectJSON.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetProjectConfig implements project.config.set: merges patch into the
// committed scope's config.json, preserving any existing key patch does
// not mention.
func (s *Service) SetProjectConfig(patch map[string]interface{}) (map[string]interface{}, error) {
	current, err := s.GetProjectConfig()
	if err != nil {
		return nil, err
	}
	for k, v := range patch {
		current[k] = v
	}

	path := projectConfigPath(s.Config.HomeDir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	raw, err := projectJSON.MarshalIndent(current, "", "  ")
	if err != nil {
		return nil, err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp, path); err != nil {
		return nil, err
	}
	return current, nil
}

// SyncStatus is project.sync.status's output: how many items each of the
// local and committed scopes currently holds, for a caller deciding
// whether a sync.merge is worth running.
type SyncStatus struct {
	LocalCount     int
	CommittedCount int
}

// SyncStatus implements project.sync.status.
func (s *Service) SyncStatus(ctx context.Context) (SyncStatus, error) {
	local, err := s.Manager.List(ctx, memory.ScopeLocal)
	if err != nil {
		return SyncStatus{}, err
	}
	committed, err := s.Manager.List(ctx, memory.ScopeCommitted)
	if err != nil {
		return SyncStatus{}, err
	}
	return SyncStatus{LocalCount: len(local), CommittedCount: len(committed)}, nil
}

// SyncMerge implements project.sync.merge: promotes every local item
// matching filter into the committed scope, so it is shared with the rest
// of the team (spec §6 project.sync.merge). Reuses internal/migration's
// scope-to-scope mover rather than duplicating its filter/candidate logic.
func (s *Service) SyncMerge(ctx context.Context, filter migration.ScopeFilter, dryRun bool, now func() time.Time) (migration.ScopeMigrationResult, error) {
	return migration.MigrateScope(ctx, s.Manager, memory.ScopeLocal, memory.ScopeCommitted, filter, dryRun, now())
}
