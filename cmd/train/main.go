package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/stayml/bookingcast/internal/config"
	"github.com/stayml/bookingcast/internal/observability"
	"github.com/stayml/bookingcast/internal/pipeline"
	"github.com/stayml/bookingcast/internal/platform/gcp"
	"github.com/stayml/bookingcast/internal/platform/logger"
	"github.com/stayml/bookingcast/internal/platform/shutdown"
	"github.com/stayml/bookingcast/internal/tracking"
)

func main() {
	configPath := flag.String("config", "", "config file path (defaults to BC_CONFIG_PATH or ./config/config.yaml)")
	search := flag.Bool("search", false, "force randomized hyperparameter search on")
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *search {
		cfg.ModelTraining.Search.Enabled = true
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Printf("failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	otelStop := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "bookingcast-train",
		Environment: cfg.Env,
	})
	defer func() { _ = otelStop(context.Background()) }()

	store, err := tracking.Open(cfg.Tracking.Driver, cfg.Tracking.DSN, log)
	if err != nil {
		log.Fatal("Failed to open tracking store", "error", err)
	}

	var bucket gcp.DatasetBucket
	if cfg.DataIngestion.LocalFile == "" || cfg.Artifacts.BucketKey != "" {
		bucket, err = gcp.NewDatasetBucket(ctx, log, cfg.DataIngestion.BucketName)
		if err != nil {
			log.Fatal("Failed to init dataset bucket", "error", err)
		}
	}

	trainer := pipeline.NewTrainer(log, cfg, store, bucket)
	report, err := trainer.Run(ctx)
	if err != nil {
		log.Fatal("Training run failed", "error", err)
	}

	log.Info("Model registered",
		"run_id", report.RunID.String(),
		"snapshot_id", report.SnapshotID.String(),
		"version", report.Version,
		"accuracy", report.Metrics.Accuracy,
		"precision", report.Metrics.Precision,
		"recall", report.Metrics.Recall,
		"f1", report.Metrics.F1,
		"auc", report.Metrics.AUC,
		"artifact", report.ArtifactPath,
	)
}
