package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/andreahaku/llm-memory-mcp/internal/config"
	"github.com/andreahaku/llm-memory-mcp/internal/memlog"
	"github.com/andreahaku/llm-memory-mcp/internal/memory"
	"github.com/andreahaku/llm-memory-mcp/internal/scope"
)

var serveLog = memlog.Named("memoryd.serve")

func newCmd_Serve() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the maintenance scheduler in the foreground until interrupted.",
		Action: func(c *cli.Context) error {
			svc, err := openService(c.Context, c)
			if err != nil {
				return err
			}
			defer svc.Manager.Close()

			svc.Scheduler.Start(c.Context)
			defer svc.Scheduler.Stop()

			if err := svc.InitCommitted(); err != nil {
				serveLog.Warnw("could not ensure committed scope directory", "err", err)
			}
			configPath := filepath.Join(scope.Dir(svc.Config.HomeDir, memory.ScopeCommitted), "config.json")
			if _, err := os.Stat(configPath); os.IsNotExist(err) {
				_ = os.WriteFile(configPath, []byte("{}\n"), 0o644)
			}
			watcher, werr := config.Watch(configPath, func() {
				serveLog.Infow("project config changed on disk", "path", configPath)
			})
			if werr == nil {
				defer watcher.Close()
			} else {
				serveLog.Warnw("config watch unavailable", "path", configPath, "err", werr)
			}

			for _, s := range svc.Manager.Scopes() {
				status, _ := svc.Manager.Status(s)
				serveLog.Infow("scope opened", "scope", s, "journalOps", humanize.Comma(int64(status.JournalAppendCount)))
			}

			fmt.Println("memoryd serving; press Ctrl-C to stop")
			<-c.Context.Done()
			return nil
		},
	}
}
