package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rxtech-lab/argo-fusion/internal/config"
	"github.com/rxtech-lab/argo-fusion/internal/logger"
	"github.com/rxtech-lab/argo-fusion/internal/metrics"
	"github.com/rxtech-lab/argo-fusion/internal/model"
	"github.com/rxtech-lab/argo-fusion/internal/registry"
	"github.com/rxtech-lab/argo-fusion/internal/sink"
	"github.com/rxtech-lab/argo-fusion/internal/storage"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// app holds what every subcommand needs: the configuration, the logger, the store and the
// metrics recorder.
type app struct {
	cfg      *config.Config
	logger   *logger.Logger
	store    *storage.Store
	recorder *metrics.Recorder
}

// loadConfig reads --config when it is set and falls back to the defaults otherwise.
// --log-level overrides the configured level.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)

	if path := cmd.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.Default()
	}

	if err != nil {
		return nil, err
	}

	if level := cmd.String("log-level"); level != "" {
		cfg.Log.Level = level
	}

	return cfg, nil
}

func newApp(cmd *cli.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	log, err := logger.NewLoggerWithLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	store, err := storage.Open(cfg.Store.Path, log)
	if err != nil {
		log.Error("Failed to open store", zap.String("path", cfg.Store.Path), zap.Error(err))

		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   log,
		store:    store,
		recorder: metrics.NewRecorder(),
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("Failed to close store", zap.Error(err))
	}

	_ = a.logger.Sync()
}

// run executes one batch job: the run is recorded in job_runs, timed in the metrics
// recorder and the textfile is rewritten afterwards.
func (a *app) run(ctx context.Context, job string, fn func(ctx context.Context, log *logger.Logger, stats *storage.RunStats) error) error {
	log := a.logger.Job(job)
	log.Info("Job started")

	start := time.Now()
	err := a.store.Track(ctx, job, func(ctx context.Context, stats *storage.RunStats) error {
		return fn(ctx, log, stats)
	})
	elapsed := time.Since(start)

	a.recorder.ObserveJob(job, err, elapsed)

	if path := a.cfg.Metrics.TextfilePath; path != "" {
		if werr := a.recorder.WriteTextfile(path); werr != nil {
			log.Warn("Failed to write metrics textfile", zap.String("path", path), zap.Error(werr))
		}
	}

	if err != nil {
		log.Error("Job failed", zap.Duration("elapsed", elapsed), zap.Error(err))

		return err
	}

	log.Info("Job finished", zap.Duration("elapsed", elapsed))

	return nil
}

// openRegistry opens the model registry with a Redis activation lock when Redis is configured
// and an in-process lock otherwise. The returned function releases the lock client.
func (a *app) openRegistry(ctx context.Context) (*registry.DuckDBRegistry, func(), error) {
	var (
		locker  registry.Locker = registry.NewLocalLocker()
		release                 = func() {}
	)

	if a.cfg.Redis.Addr != "" {
		redisLocker, err := registry.NewRedisLockerFromConfig(ctx, a.cfg.Redis)
		if err != nil {
			return nil, nil, err
		}

		locker = redisLocker
		release = func() {
			if err := redisLocker.Close(); err != nil {
				a.logger.Warn("Failed to close redis client", zap.Error(err))
			}
		}
	}

	reg, err := registry.NewDuckDBRegistry(ctx, a.store.DB(), locker, a.logger)
	if err != nil {
		release()

		return nil, nil, err
	}

	return reg, release, nil
}

func (a *app) artifacts() *model.FileArtifactStore {
	return model.NewFileArtifactStore(a.cfg.Training.ArtifactDir, a.logger)
}

// kafka returns the publisher when brokers are configured, or nil.
func (a *app) kafka() (*sink.KafkaPublisher, error) {
	if !a.cfg.Kafka.Enabled() {
		return nil, nil
	}

	return sink.NewKafkaPublisher(a.cfg.Kafka, a.logger)
}

func (a *app) closeKafka(publisher *sink.KafkaPublisher) {
	if publisher == nil {
		return
	}

	if err := publisher.Close(); err != nil {
		a.logger.Warn("Failed to close kafka writer", zap.Error(err))
	}
}

func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(append(data, '\n'))

		return err
	}

	return os.WriteFile(path, data, 0644)
}
