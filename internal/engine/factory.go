// Package engine wires concrete storage back-ends (internal/filestore,
// internal/videostore) to internal/memory.Manager. It is kept separate from
// internal/memory itself because both back-ends import internal/memory for
// its shared types: a factory living inside internal/memory would need to
// import them right back, and Go does not allow import cycles.
package engine

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/andreahaku/llm-memory-mcp/internal/config"
	"github.com/andreahaku/llm-memory-mcp/internal/filestore"
	"github.com/andreahaku/llm-memory-mcp/internal/memlog"
	"github.com/andreahaku/llm-memory-mcp/internal/memory"
	"github.com/andreahaku/llm-memory-mcp/internal/scope"
	"github.com/andreahaku/llm-memory-mcp/internal/videocodec"
	"github.com/andreahaku/llm-memory-mcp/internal/videostore"
)

var log = memlog.Named("engine")

// Open builds a memory.Manager with one storage back-end per scope, opened
// under cfg.HomeDir (directory layout from internal/scope). Backend choice
// follows cfg.ForceBackend when set; otherwise each scope probes for
// ffmpeg/ffprobe and falls back to the file back-end when the video
// back-end's dependency is unavailable (spec §4.3: "absence of ffmpeg must
// not be fatal").
func Open(ctx context.Context, cfg *config.Config, opts ...memory.ManagerOption) (*memory.Manager, error) {
	prober := videocodec.DefaultProber()

	backends := make(map[memory.Scope]memory.ScopeBackend, len(scope.Dirs))
	for s := range scope.Dirs {
		dir := filepath.Join(cfg.HomeDir, scope.DirName(s))
		adapter, err := openAdapter(ctx, cfg, dir, prober)
		if err != nil {
			return nil, fmt.Errorf("engine: open %s scope: %w", s, err)
		}
		backends[s] = memory.ScopeBackend{Adapter: adapter, Dir: dir}
	}

	return memory.NewManager(ctx, cfg, backends, opts...)
}

func openAdapter(ctx context.Context, cfg *config.Config, dir string, prober *videocodec.Prober) (memory.Adapter, error) {
	switch cfg.ForceBackend {
	case config.BackendFile:
		return filestore.Open(dir)
	case config.BackendVideo:
		return videostore.Open(ctx, dir, prober)
	case config.BackendAuto, "":
		if prober.Available(ctx) {
			store, err := videostore.Open(ctx, dir, prober)
			if err == nil {
				return store, nil
			}
			log.Warnw("video back-end open failed, falling back to file", "dir", dir, "err", err)
		}
		return filestore.Open(dir)
	default:
		return nil, fmt.Errorf("engine: unknown backend %q", cfg.ForceBackend)
	}
}
