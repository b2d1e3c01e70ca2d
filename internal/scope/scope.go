// Package scope names the on-disk layout shared by every component that
// needs to find a scope's storage directory without importing
// internal/engine: internal/migration opens adapters directly against a
// scope's directory, and internal/maintenance's CLI-facing wrappers resolve
// a scope name to a path the same way internal/engine does when it first
// opens the manager.
package scope

import (
	"fmt"
	"path/filepath"

	"github.com/andreahaku/llm-memory-mcp/internal/memory"
)

// Dirs maps each scope to the directory name it lives under, relative to a
// config.Config's HomeDir.
var Dirs = map[memory.Scope]string{
	memory.ScopeGlobal:    "global",
	memory.ScopeLocal:     "local",
	memory.ScopeCommitted: "committed",
}

// DirName returns scope's subdirectory name, or "" if scope is unknown.
func DirName(s memory.Scope) string { return Dirs[s] }

// Dir returns scope's absolute storage directory under homeDir.
func Dir(homeDir string, s memory.Scope) string {
	return filepath.Join(homeDir, DirName(s))
}

// Parse validates that name is one of the three known scopes.
func Parse(name string) (memory.Scope, error) {
	s := memory.Scope(name)
	if _, ok := Dirs[s]; !ok {
		return "", fmt.Errorf("scope: unknown scope %q", name)
	}
	return s, nil
}

// All lists every known scope, in resolution-priority order.
func All() []memory.Scope { return memory.ScopeResolutionOrder }
