package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/kailas-cloud/matchdex/internal/version"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	app := &cli.App{
		Name:    "matchdex-indexer",
		Usage:   "Offline maintenance for the matchdex profile and vector stores",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Aliases: []string{"e"},
				Usage:   "Config environment (config/<env>.yaml)",
				EnvVars: []string{"ENV"},
				Value:   "local",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Override logging level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "index",
				Usage:  "Embed profiles that are missing or stale in the vector index",
				Action: withDeps(indexCommand),
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of profiles to process (0 = all)",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Profiles per batch (default: indexer.batch_size)",
					},
					&cli.BoolFlag{
						Name:  "resume",
						Usage: "Continue after the saved checkpoint",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Re-embed profiles whose text is unchanged",
					},
					&cli.BoolFlag{
						Name:  "recreate-index",
						Usage: "Drop and recreate the vector index definition first (implies --force)",
					},
				},
			},
			{
				Name:   "import",
				Usage:  "Load profiles from a CSV file",
				Action: withDeps(importCommand),
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Path to the CSV file",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Rows per store write",
					},
				},
			},
			{
				Name:   "inspect",
				Usage:  "Show store counts and a sample of profiles",
				Action: withDeps(inspectCommand),
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "sample",
						Usage: "Number of profiles to show",
						Value: 5,
					},
				},
			},
			{
				Name:   "stats",
				Usage:  "Show categorical distributions and age statistics",
				Action: withDeps(statsCommand),
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "top",
						Usage: "Values to show per field",
						Value: 10,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
