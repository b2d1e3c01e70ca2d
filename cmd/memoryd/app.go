package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/andreahaku/llm-memory-mcp/internal/config"
	"github.com/andreahaku/llm-memory-mcp/internal/engine"
	"github.com/andreahaku/llm-memory-mcp/internal/maintenance"
	"github.com/andreahaku/llm-memory-mcp/internal/memory"
	"github.com/andreahaku/llm-memory-mcp/pkg/memoryapi"
)

// openService builds a config.Config from c's global/home/backend flags and
// environment, opens the engine over it, and wraps both in a
// memoryapi.Service plus its (not-yet-started) maintenance scheduler. The
// caller owns closing svc.Manager.
func openService(ctx context.Context, c *cli.Context) (*memoryapi.Service, error) {
	var opts []config.Option
	if home := c.String("home"); home != "" {
		opts = append(opts, config.WithHomeDir(home))
	}
	if backend := c.String("backend"); backend != "" {
		opts = append(opts, config.WithForceBackend(config.Backend(backend)))
	}

	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, fmt.Errorf("memoryd: load config: %w", err)
	}

	mgr, err := engine.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("memoryd: open engine: %w", err)
	}

	sched := maintenance.NewScheduler(mgr, cfg.Maintenance)
	return memoryapi.New(cfg, mgr, sched), nil
}

// scopeFlag resolves the --scope flag to a memory.Scope, defaulting to
// ScopeLocal (the scope a coding assistant writes to by default).
func scopeFlag(c *cli.Context) (memory.Scope, error) {
	name := c.String("scope")
	if name == "" {
		return memory.ScopeLocal, nil
	}
	switch memory.Scope(name) {
	case memory.ScopeGlobal, memory.ScopeLocal, memory.ScopeCommitted:
		return memory.Scope(name), nil
	default:
		return "", fmt.Errorf("memoryd: unknown scope %q", name)
	}
}

var flagScope = &cli.StringFlag{
	Name:  "scope",
	Usage: "global, local, or committed (default: local)",
}
