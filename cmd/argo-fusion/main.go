package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/rxtech-lab/argo-fusion/internal/version"
	"github.com/rxtech-lab/argo-fusion/pkg/marketdata/provider"
	"github.com/urfave/cli/v3"
)

func dayFlag(name, usage string) *cli.TimestampFlag {
	return &cli.TimestampFlag{
		Name:  name,
		Usage: usage + " in `YYYY-MM-DD` format. Defaults to today.",
		Value: time.Now().UTC(),
		Config: cli.TimestampConfig{
			Layouts: []string{"2006-01-02"},
		},
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "argo-fusion",
		Usage:   "Build labels and features, train and serve the news model and fuse it with price scores",
		Version: version.GetVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration. Defaults are used when empty.",
				Sources: cli.EnvVars("ARGO_FUSION_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override the configured log level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "prices",
				Usage: "Download daily closes for every configured symbol into the prices table",
				Flags: []cli.Flag{
					&cli.TimestampFlag{
						Name:     "start",
						Aliases:  []string{"s"},
						Usage:    "First day in `YYYY-MM-DD` format",
						Required: true,
						Config: cli.TimestampConfig{
							Layouts: []string{"2006-01-02"},
						},
					},
					dayFlag("end", "Last day"),
					&cli.StringFlag{
						Name:    "provider",
						Aliases: []string{"p"},
						Usage:   fmt.Sprintf("Override the configured provider (%s or %s)", provider.ProviderBinance, provider.ProviderPolygon),
					},
				},
				Action: pricesAction,
			},
			{
				Name:   "labels",
				Usage:  "Load prices and build forward-return labels",
				Flags:  []cli.Flag{dayFlag("as-of", "Last day whose closes may be used")},
				Action: labelsAction,
			},
			{
				Name:  "news",
				Usage: "Aggregate scored articles into the daily news signal table",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "articles",
						Usage: "Parquet file of scored articles. Defaults to store.articles_path.",
					},
				},
				Action: newsAction,
			},
			{
				Name:  "assemble",
				Usage: "Join labels and feature sources into a new feature matrix version",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "news",
						Usage: "Include the news signal table",
						Value: true,
					},
				},
				Action: assembleAction,
			},
			{
				Name:  "train",
				Usage: "Run walk-forward training on the current matrix and register the model",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "activate",
						Usage: "Activate the registered model",
					},
				},
				Action: trainAction,
			},
			{
				Name:  "activate",
				Usage: "Make a registered model the active one",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Model id",
						Required: true,
					},
				},
				Action: activateAction,
			},
			{
				Name:   "infer",
				Usage:  "Score the latest matrix rows with the active model and publish signals",
				Flags:  []cli.Flag{dayFlag("day", "Decision day")},
				Action: inferAction,
			},
			{
				Name:  "fuse",
				Usage: "Fuse price scores with the day's signals and news flags into decisions",
				Flags: []cli.Flag{
					dayFlag("day", "Decision day"),
					&cli.StringFlag{
						Name:     "price-scores",
						Aliases:  []string{"p"},
						Usage:    "Parquet or CSV file with asset and score columns",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write decisions as JSON to this file instead of stdout",
					},
					&cli.BoolFlag{
						Name:  "news",
						Usage: "Read veto flags and sentiment from the news signal table",
						Value: true,
					},
				},
				Action: fuseAction,
			},
			{
				Name:   "models",
				Usage:  "List registered models",
				Action: modelsAction,
			},
			{
				Name:  "runs",
				Usage: "List recorded job runs",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "job",
						Usage:    "Job name",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "limit",
						Usage: "Maximum number of runs",
						Value: "20",
					},
				},
				Action: runsAction,
			},
			{
				Name:  "export",
				Usage: "Export tables to parquet",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:     "table",
						Aliases:  []string{"t"},
						Usage:    "Table to export (repeatable)",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "dir",
						Usage: "Output directory. Defaults to store.export_dir.",
					},
				},
				Action: exportAction,
			},
			{
				Name:  "schema",
				Usage: "Print the JSON schema of the configuration",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the schema to this file instead of stdout",
					},
				},
				Action: schemaAction,
			},
		},
	}
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
