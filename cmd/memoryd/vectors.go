package main

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
)

func newCmd_Vectors() *cli.Command {
	return &cli.Command{
		Name:  "vectors",
		Usage: "Attach precomputed embeddings to existing items.",
		Subcommands: []*cli.Command{
			{
				Name:      "import-bulk",
				Usage:     "Import an NDJSON file of {id, scope, vector} records.",
				ArgsUsage: "<path>",
				Action: func(c *cli.Context) error {
					path := c.Args().First()
					if path == "" {
						return fmt.Errorf("memoryd: vectors import-bulk requires a file path argument")
					}
					f, err := os.Open(path)
					if err != nil {
						return err
					}
					defer f.Close()

					info, _ := f.Stat()
					var size int64
					if info != nil {
						size = info.Size()
					}
					bar := progressbar.DefaultBytes(size, "importing vectors")

					svc, err := openService(c.Context, c)
					if err != nil {
						return err
					}
					defer svc.Manager.Close()

					result, importErr := svc.ImportBulk(c.Context, io.TeeReader(f, bar))
					fmt.Printf("\nimported=%d skipped=%d\n", result.Imported, result.Skipped)
					return importErr
				},
			},
		},
	}
}
