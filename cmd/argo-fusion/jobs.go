package main

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-fusion/internal/features"
	"github.com/rxtech-lab/argo-fusion/internal/fusion"
	"github.com/rxtech-lab/argo-fusion/internal/inference"
	"github.com/rxtech-lab/argo-fusion/internal/labels"
	"github.com/rxtech-lab/argo-fusion/internal/logger"
	"github.com/rxtech-lab/argo-fusion/internal/news"
	"github.com/rxtech-lab/argo-fusion/internal/storage"
	"github.com/rxtech-lab/argo-fusion/internal/trainer"
	"github.com/rxtech-lab/argo-fusion/internal/types"
	"github.com/rxtech-lab/argo-fusion/pkg/errors"
	"github.com/rxtech-lab/argo-fusion/pkg/marketdata"
	"github.com/rxtech-lab/argo-fusion/pkg/marketdata/provider"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func unbounded() optional.Option[time.Time] {
	return optional.None[time.Time]()
}

func pricesAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	providerType := a.cfg.Prices.Provider
	if p := cmd.String("provider"); p != "" {
		providerType = p
	}

	apiKey := a.cfg.Prices.PolygonAPIKey
	if key := os.Getenv("POLYGON_API_KEY"); key != "" {
		apiKey = key
	}

	bar := progressbar.Default(int64(len(a.cfg.Assets.Symbols)), "prices")

	client, err := marketdata.NewClient(marketdata.ClientConfig{
		ProviderType:  provider.ProviderType(providerType),
		PolygonAPIKey: apiKey,
		BinanceQuote:  a.cfg.Prices.BinanceQuote,
	}, a.logger, func(_, _ int, _ string) {
		_ = bar.Add(1)
	})
	if err != nil {
		return err
	}

	params := marketdata.DownloadParams{
		Symbols:   a.cfg.Assets.Symbols,
		StartDate: types.Day(cmd.Timestamp("start")),
		EndDate:   types.Day(cmd.Timestamp("end")),
	}

	return a.run(ctx, "prices", func(ctx context.Context, log *logger.Logger, stats *storage.RunStats) error {
		bars, err := client.Download(ctx, params)
		_ = bar.Finish()

		if err != nil {
			return err
		}

		if err := a.store.UpsertPrices(ctx, bars); err != nil {
			return err
		}

		stats.Set("bars", float64(len(bars)))
		a.recorder.RowsWritten("prices", len(bars))

		log.Info("Daily closes stored",
			zap.String("provider", providerType),
			zap.Int("bars", len(bars)),
			zap.Time("start", params.StartDate),
			zap.Time("end", params.EndDate),
		)

		return nil
	})
}

func labelsAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	asOf := cmd.Timestamp("as-of")

	return a.run(ctx, "labels", func(ctx context.Context, log *logger.Logger, stats *storage.RunStats) error {
		if path := a.cfg.Store.PricesPath; path != "" {
			loaded, err := a.store.LoadPricesParquet(ctx, path)
			if err != nil {
				return err
			}

			stats.Set("prices_loaded", float64(loaded))
		}

		bars, err := a.store.ReadPrices(ctx, unbounded(), unbounded())
		if err != nil {
			return err
		}

		fresh, err := labels.NewBuilder(a.cfg.Labels, log).Build(bars, asOf)
		if err != nil {
			return err
		}

		if err := labels.Verify(fresh, bars); err != nil {
			return err
		}

		existing, err := a.store.ReadLabels(ctx, unbounded(), unbounded())
		if err != nil {
			return err
		}

		changed, err := labels.Reconcile(existing, fresh)
		if err != nil {
			return err
		}

		if err := a.store.WriteLabels(ctx, changed); err != nil {
			return err
		}

		stats.Set("labels_built", float64(len(fresh)))
		stats.Set("labels_written", float64(len(changed)))
		a.recorder.RowsWritten("labels", len(changed))

		log.Info("Labels written", zap.Int("built", len(fresh)), zap.Int("written", len(changed)), zap.Time("as_of", asOf))

		return nil
	})
}

func newsAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	path := cmd.String("articles")
	if path == "" {
		path = a.cfg.Store.ArticlesPath
	}

	if path == "" {
		return errors.New(errors.ErrCodeMissingParameter, "no articles file: set store.articles_path or --articles")
	}

	return a.run(ctx, "news", func(ctx context.Context, log *logger.Logger, stats *storage.RunStats) error {
		articles, err := a.store.ReadArticlesParquet(ctx, path)
		if err != nil {
			return err
		}

		aggregator := news.NewAggregator(a.cfg.News, news.NewMapper(a.cfg.Assets, a.cfg.News), log)
		table := aggregator.Aggregate(articles)

		if err := a.store.WriteFeatureTable(ctx, table); err != nil {
			return err
		}

		stats.Set("articles", float64(len(articles)))
		stats.Set("rows", float64(len(table.Rows)))
		a.recorder.RowsWritten(table.Name, len(table.Rows))

		log.Info("News signals written", zap.String("table", table.Name), zap.Int("articles", len(articles)), zap.Int("rows", len(table.Rows)))

		return nil
	})
}

func assembleAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	withNews := cmd.Bool("news")

	return a.run(ctx, "assemble", func(ctx context.Context, log *logger.Logger, stats *storage.RunStats) error {
		stored, err := a.store.ReadLabels(ctx, unbounded(), unbounded())
		if err != nil {
			return err
		}

		tables := make([]types.FeatureTable, 0, len(a.cfg.Sources)+1)

		for _, source := range a.cfg.Sources {
			if err := a.store.RegisterSource(ctx, source); err != nil {
				return err
			}

			table, err := a.store.ReadFeatureTable(ctx, source.Name, source.AssetScoped, source.Columns)
			if err != nil {
				return err
			}

			tables = append(tables, table)
		}

		if withNews {
			table, err := a.store.ReadFeatureTable(ctx, a.cfg.News.TableName, true, news.Columns())
			if err != nil {
				return err
			}

			tables = append(tables, table)
		}

		snapshot, err := features.Assemble(stored, tables)
		if err != nil {
			return err
		}

		published, err := a.store.SwapMatrix(ctx, snapshot, a.cfg.Store.MatrixRetained)
		if err != nil {
			return err
		}

		stats.Set("rows", float64(len(published.Rows)))
		stats.Set("columns", float64(len(published.Columns)))
		stats.Set("version", float64(published.Version))
		a.recorder.RowsWritten(storage.MatrixView, len(published.Rows))

		log.Info("Feature matrix published",
			zap.Int64("version", published.Version),
			zap.String("snapshot_id", published.ID),
			zap.Int("rows", len(published.Rows)),
			zap.Int("columns", len(published.Columns)),
			zap.String("checksum", published.Checksum),
		)

		return nil
	})
}

func trainAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	reg, release, err := a.openRegistry(ctx)
	if err != nil {
		return err
	}
	defer release()

	activate := cmd.Bool("activate")

	return a.run(ctx, "train", func(ctx context.Context, log *logger.Logger, stats *storage.RunStats) error {
		snapshot, err := a.store.ReadMatrix(ctx)
		if err != nil {
			return err
		}

		if len(snapshot.Rows) == 0 {
			return errors.New(errors.ErrCodeInsufficientTrainData, "the feature matrix is empty")
		}

		lastDay := snapshot.Rows[len(snapshot.Rows)-1].Label.Time

		plan, err := trainer.PlanFromConfig(a.cfg, snapshot.Columns, lastDay)
		if err != nil {
			return err
		}

		bar := progressbar.Default(int64(len(plan.Windows)), "walk-forward")
		callbacks := trainer.Callbacks{
			OnWindowDone: func(_ int, _ types.BacktestResult) {
				_ = bar.Add(1)
			},
		}

		result, err := trainer.NewTrainer(reg, a.artifacts(), a.cfg, log, callbacks).Run(ctx, plan, snapshot)
		_ = bar.Finish()

		if err != nil {
			return err
		}

		stats.Set("model_id", float64(result.ModelID))
		stats.Set("windows", float64(len(result.Backtests)))

		if path := a.cfg.Training.ReportPath; path != "" {
			if err := types.WriteBacktestReport(path, result.Backtests); err != nil {
				return err
			}

			log.Info("Backtest report written", zap.String("path", path))
		}

		if activate {
			if err := reg.Activate(ctx, result.ModelID); err != nil {
				return err
			}
		}

		log.Info("Model registered", zap.Int64("model_id", result.ModelID), zap.String("name", result.Record.Name), zap.Bool("activated", activate))

		return nil
	})
}

func activateAction(ctx context.Context, cmd *cli.Command) error {
	id, err := strconv.ParseInt(cmd.String("id"), 10, 64)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "model id must be an integer", err)
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	reg, release, err := a.openRegistry(ctx)
	if err != nil {
		return err
	}
	defer release()

	return a.run(ctx, "activate", func(ctx context.Context, log *logger.Logger, stats *storage.RunStats) error {
		if err := reg.Activate(ctx, id); err != nil {
			return err
		}

		stats.Set("model_id", float64(id))
		log.Info("Model activated", zap.Int64("model_id", id))

		return nil
	})
}

func inferAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	reg, release, err := a.openRegistry(ctx)
	if err != nil {
		return err
	}
	defer release()

	publisher, err := a.kafka()
	if err != nil {
		return err
	}
	defer a.closeKafka(publisher)

	sinks := []inference.SignalSink{a.store.Signals()}
	if publisher != nil {
		sinks = append(sinks, publisher)
	}

	day := types.Day(cmd.Timestamp("day"))

	return a.run(ctx, "infer", func(ctx context.Context, log *logger.Logger, stats *storage.RunStats) error {
		snapshot, err := a.store.ReadMatrix(ctx)
		if err != nil {
			return err
		}

		engine := inference.NewEngine(reg, a.artifacts(), a.cfg.Inference, a.cfg.Labels.Fingerprint(), a.recorder, log, sinks...)

		signals, err := engine.Run(ctx, snapshot, day)
		if err != nil {
			return err
		}

		stats.Set("signals", float64(len(signals)))
		a.recorder.RowsWritten("signals", len(signals))

		return nil
	})
}

func fuseAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	fuser, err := fusion.New(a.cfg.Fusion)
	if err != nil {
		a.logger.Error("Invalid fusion configuration", zap.Error(err))

		return err
	}

	publisher, err := a.kafka()
	if err != nil {
		return err
	}
	defer a.closeKafka(publisher)

	day := types.Day(cmd.Timestamp("day"))
	scoresPath := cmd.String("price-scores")
	output := cmd.String("output")
	withNews := cmd.Bool("news")

	return a.run(ctx, "fuse", func(ctx context.Context, log *logger.Logger, stats *storage.RunStats) error {
		scores, err := a.store.ReadPriceScores(ctx, scoresPath)
		if err != nil {
			return err
		}

		signals, err := a.store.Signals().Read(ctx, day)
		if err != nil {
			return err
		}

		newsTable := types.FeatureTable{Name: a.cfg.News.TableName, AssetScoped: true, Columns: news.Columns()}
		if withNews {
			newsTable, err = a.store.ReadFeatureTable(ctx, a.cfg.News.TableName, true, news.Columns())
			if err != nil {
				return err
			}
		}

		inputs := fusion.BuildInputs(day, scores, signals, newsTable, a.cfg.Assets)
		decisions := make([]fusion.Decision, 0, len(inputs))

		for _, in := range inputs {
			decision, err := fuser.Decide(in)
			if err != nil {
				return err
			}

			a.recorder.Decision(string(decision.Mode), decision.Direction)

			if decision.Veto {
				for _, reason := range decision.Reasons {
					a.recorder.Veto(string(reason))
				}

				stats.Add("vetoes", 1)
			}

			log.Debug("Fusion decision",
				zap.String("asset", decision.Asset),
				zap.String("direction", decision.Direction.String()),
				zap.Float64("leverage_multiplier", decision.LeverageMultiplier),
				zap.Bool("veto", decision.Veto),
			)

			decisions = append(decisions, decision)
		}

		if publisher != nil {
			if err := publisher.PublishDecisions(ctx, decisions); err != nil {
				return err
			}
		}

		data, err := json.MarshalIndent(decisions, "", "  ")
		if err != nil {
			return errors.Wrap(errors.ErrCodeWriteFailed, "failed to encode decisions", err)
		}

		if err := writeOutput(output, data); err != nil {
			return errors.Wrap(errors.ErrCodeWriteFailed, "failed to write decisions", err)
		}

		stats.Set("decisions", float64(len(decisions)))
		stats.Set("signals", float64(len(signals)))
		log.Info("Fusion finished", zap.Int("decisions", len(decisions)), zap.Int("signals", len(signals)))

		return nil
	})
}

func modelsAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	reg, release, err := a.openRegistry(ctx)
	if err != nil {
		return err
	}
	defer release()

	records, err := reg.List(ctx)
	if err != nil {
		return err
	}

	type modelSummary struct {
		ID       int64             `yaml:"id"`
		Name     string            `yaml:"name"`
		Family   types.ModelFamily `yaml:"family"`
		Target   string            `yaml:"target"`
		Universe string            `yaml:"universe"`
		Active   bool              `yaml:"active"`
		IC3d     *float64          `yaml:"ic_3d,omitempty"`
		Sharpe   *float64          `yaml:"sharpe,omitempty"`
		Train    types.DateRange   `yaml:"train"`
		Created  time.Time         `yaml:"created_at"`
	}

	out := make([]modelSummary, 0, len(records))
	for _, r := range records {
		summary := modelSummary{
			ID:       r.ID,
			Name:     r.Name,
			Family:   r.Family,
			Target:   r.Target.String(),
			Universe: r.Universe,
			Active:   r.Active,
			Train:    r.Train,
			Created:  r.CreatedAt,
		}

		summary.IC3d = types.Ptr(r.Metrics.IC3d)
		summary.Sharpe = types.Ptr(r.Metrics.Sharpe)

		out = append(out, summary)
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return err
	}

	return writeOutput("", data)
}

func runsAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	limit, err := strconv.Atoi(cmd.String("limit"))
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "limit must be an integer", err)
	}

	runs, err := a.store.Runs(ctx, cmd.String("job"), limit)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(runs)
	if err != nil {
		return err
	}

	return writeOutput("", data)
}

func exportAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	dir := cmd.String("dir")
	if dir == "" {
		dir = a.cfg.Store.ExportDir
	}

	tables := cmd.StringSlice("table")

	return a.run(ctx, "export", func(ctx context.Context, log *logger.Logger, stats *storage.RunStats) error {
		for _, table := range tables {
			path, err := a.store.ExportParquet(ctx, table, dir)
			if err != nil {
				return err
			}

			stats.Add("tables", 1)
			log.Info("Table exported", zap.String("table", table), zap.String("path", path))
		}

		return nil
	})
}

func schemaAction(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	schema, err := cfg.GenerateSchemaJSON()
	if err != nil {
		return err
	}

	return writeOutput(cmd.String("output"), []byte(schema))
}
