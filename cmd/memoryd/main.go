// Command memoryd is the CLI entrypoint wiring internal/engine,
// internal/maintenance, internal/migration and pkg/memoryapi into a
// runnable process: a foreground daemon that keeps the maintenance
// scheduler running, plus one-shot subcommands for maintenance and
// migration operations (spec §6 external interfaces, §9 process model).
// Grounded on the teacher's main.go (signal-cancelable context, sorted
// urfave/cli/v2 command table) and cmd-version.go (version subcommand).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, syscall.SIGTERM, syscall.SIGINT)

		select {
		case <-interrupt:
			fmt.Println()
			klog.Info("received interrupt signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(interrupt)
	}()

	app := &cli.App{
		Name:        "memoryd",
		Version:     GitCommit,
		Description: "Local-first multi-scope memory store for coding assistants.",
		Flags: []cli.Flag{
			FlagHomeDir,
			FlagBackend,
		},
		Commands: []*cli.Command{
			newCmd_Version(),
			newCmd_Serve(),
			newCmd_Maintenance(),
			newCmd_Migration(),
			newCmd_Vectors(),
		},
	}

	sort.Sort(cli.FlagsByName(app.Flags))
	sort.Sort(cli.CommandsByName(app.Commands))

	if err := app.RunContext(ctx, os.Args); err != nil {
		klog.Fatal(err)
	}
}

// FlagHomeDir overrides config.Config.HomeDir for every subcommand.
var FlagHomeDir = &cli.StringFlag{
	Name:  "home",
	Usage: "memory store home directory (defaults to $HOME_DIR or the user home)",
}

// FlagBackend pins every scope to a single storage back-end for this
// invocation, bypassing per-scope auto-detection.
var FlagBackend = &cli.StringFlag{
	Name:  "backend",
	Usage: "storage backend override: auto, file, or video",
}
