package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
)

func newCmd_Maintenance() *cli.Command {
	return &cli.Command{
		Name:  "maintenance",
		Usage: "Run or inspect scope maintenance (rebuild, compact, verify, prune, snapshot).",
		Subcommands: []*cli.Command{
			{
				Name:  "status",
				Usage: "Print journal append counts and last-compact times for every open scope.",
				Action: func(c *cli.Context) error {
					svc, err := openService(c.Context, c)
					if err != nil {
						return err
					}
					defer svc.Manager.Close()
					for _, st := range svc.Status() {
						fmt.Printf("%-10s ops=%-8s lastCompact=%s\n", st.Scope, humanize.Comma(int64(st.JournalAppendCount)), st.LastCompactAt.Format(time.RFC3339))
					}
					return nil
				},
			},
			{
				Name:  "rebuild",
				Usage: "Rebuild a scope's in-memory indices from its durable catalog.",
				Flags: []cli.Flag{flagScope},
				Action: func(c *cli.Context) error {
					svc, err := openService(c.Context, c)
					if err != nil {
						return err
					}
					defer svc.Manager.Close()
					s, err := scopeFlag(c)
					if err != nil {
						return err
					}
					return svc.Rebuild(c.Context, s)
				},
			},
			{
				Name:  "compact",
				Usage: "Compact a scope, optionally snapshotting afterward.",
				Flags: []cli.Flag{flagScope, &cli.BoolFlag{Name: "snapshot", Usage: "also write state-ok.json after compacting"}},
				Action: func(c *cli.Context) error {
					svc, err := openService(c.Context, c)
					if err != nil {
						return err
					}
					defer svc.Manager.Close()
					s, err := scopeFlag(c)
					if err != nil {
						return err
					}
					if c.Bool("snapshot") {
						return svc.CompactSnapshot(c.Context, s)
					}
					return svc.Compact(c.Context, s)
				},
			},
			{
				Name:  "verify",
				Usage: "Recompute a scope's catalog checksum and compare it to state-ok.json.",
				Flags: []cli.Flag{flagScope},
				Action: func(c *cli.Context) error {
					svc, err := openService(c.Context, c)
					if err != nil {
						return err
					}
					defer svc.Manager.Close()
					s, err := scopeFlag(c)
					if err != nil {
						return err
					}
					result, err := svc.Verify(c.Context, s)
					if err != nil {
						return err
					}
					fmt.Printf("ok=%v items=%s computed=%s recorded=%s\n", result.OK, humanize.Comma(int64(result.ItemCount)), result.ComputedChecksum, result.RecordedChecksum)
					return nil
				},
			},
			{
				Name:  "prune",
				Usage: "Delete items whose TTL has elapsed.",
				Flags: []cli.Flag{flagScope},
				Action: func(c *cli.Context) error {
					svc, err := openService(c.Context, c)
					if err != nil {
						return err
					}
					defer svc.Manager.Close()
					s, err := scopeFlag(c)
					if err != nil {
						return err
					}
					n, err := svc.Prune(c.Context, s, time.Now())
					if err != nil {
						return err
					}
					fmt.Printf("pruned %s items\n", humanize.Comma(int64(n)))
					return nil
				},
			},
			{
				Name:  "snapshot",
				Usage: "Write a fresh state-ok.json for a scope.",
				Flags: []cli.Flag{flagScope},
				Action: func(c *cli.Context) error {
					svc, err := openService(c.Context, c)
					if err != nil {
						return err
					}
					defer svc.Manager.Close()
					s, err := scopeFlag(c)
					if err != nil {
						return err
					}
					checksum, n, err := svc.Snapshot(c.Context, s)
					if err != nil {
						return err
					}
					fmt.Printf("checksum=%s items=%s\n", checksum, humanize.Comma(int64(n)))
					return nil
				},
			},
		},
	}
}
