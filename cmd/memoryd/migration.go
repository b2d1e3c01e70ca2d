package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/andreahaku/llm-memory-mcp/internal/config"
	"github.com/andreahaku/llm-memory-mcp/internal/memory"
	"github.com/andreahaku/llm-memory-mcp/internal/migration"
	"github.com/andreahaku/llm-memory-mcp/internal/scope"
)

func newCmd_Migration() *cli.Command {
	return &cli.Command{
		Name:  "migration",
		Usage: "Move a scope between storage back-ends, or move items between scopes.",
		Subcommands: []*cli.Command{
			{
				Name:  "backend",
				Usage: "Migrate a scope's storage back-end (file<->video). Requires no live daemon holding that scope open.",
				Flags: []cli.Flag{
					flagScope,
					&cli.StringFlag{Name: "from", Usage: "source backend: file or video", Required: true},
					&cli.StringFlag{Name: "to", Usage: "target backend: file or video", Required: true},
					&cli.IntFlag{Name: "batch-size", Value: 0},
					&cli.BoolFlag{Name: "dry-run"},
				},
				Action: func(c *cli.Context) error {
					var opts []config.Option
					if h := c.String("home"); h != "" {
						opts = append(opts, config.WithHomeDir(h))
					}
					cfg, err := config.Load(opts...)
					if err != nil {
						return err
					}
					home := cfg.HomeDir

					s, err := scopeFlag(c)
					if err != nil {
						return err
					}
					sub := scope.DirName(s)
					from := memory.Backend(c.String("from"))
					to := memory.Backend(c.String("to"))
					dryRun := c.Bool("dry-run")

					var bar *mpb.Bar
					var progress *mpb.Progress
					if !dryRun {
						progress = mpb.New(mpb.WithWidth(48))
						bar = progress.AddBar(0,
							mpb.PrependDecorators(decor.Name("migrating "+sub)),
							mpb.AppendDecorators(decor.Percentage()))
					}

					result, err := migration.MigrateBackend(c.Context, home, sub, from, to, c.Int("batch-size"), dryRun, func(done, total int) {
						if bar == nil {
							return
						}
						if bar.Current() == 0 && total > 0 {
							bar.SetTotal(int64(total), false)
						}
						bar.SetCurrent(int64(done))
					})
					if progress != nil {
						progress.Wait()
					}
					if err != nil {
						return err
					}
					fmt.Printf("migrated %d/%d items (dryRun=%v)\n", result.RecoveredCount, result.SourceCount, result.DryRun)
					return result.Combined()
				},
			},
			{
				Name:  "scope",
				Usage: "Move items matching a tag filter from one scope to another.",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "from", Required: true},
					&cli.StringFlag{Name: "to", Required: true},
					&cli.StringSliceFlag{Name: "tag"},
					&cli.BoolFlag{Name: "dry-run"},
				},
				Action: func(c *cli.Context) error {
					svc, err := openService(c.Context, c)
					if err != nil {
						return err
					}
					defer svc.Manager.Close()

					from, err := parseScope(c.String("from"))
					if err != nil {
						return err
					}
					to, err := parseScope(c.String("to"))
					if err != nil {
						return err
					}

					result, err := svc.MigrateScope(c.Context, from, to, migration.ScopeFilter{Tags: c.StringSlice("tag")}, c.Bool("dry-run"))
					if err != nil {
						return err
					}
					fmt.Printf("candidates=%d migrated=%d\n", len(result.CandidateIDs), len(result.MigratedIDs))
					return nil
				},
			},
		},
	}
}

func parseScope(name string) (memory.Scope, error) {
	return scope.Parse(name)
}
