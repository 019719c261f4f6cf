package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stayml/bookingcast/internal/artifact"
	"github.com/stayml/bookingcast/internal/config"
	"github.com/stayml/bookingcast/internal/platform/logger"
	"github.com/stayml/bookingcast/internal/tracking"
)

// writeBookings emits a raw CSV where long lead times strongly predict
// cancellation, so a small ensemble can learn the pattern.
func writeBookings(t *testing.T, rows int) string {
	t.Helper()
	rng := rand.New(rand.NewSource(99))
	var sb strings.Builder
	sb.WriteString("lead_time,avg_price_per_room,room_type_reserved,booking_status\n")
	roomTypes := []string{"Room_Type 1", "Room_Type 2", "Room_Type 3"}
	for i := 0; i < rows; i++ {
		canceled := i%2 == 0
		lead := rng.Intn(30)
		if canceled {
			lead = 200 + rng.Intn(100)
		}
		status := "Not_Canceled"
		if canceled {
			status = "Canceled"
		}
		price := 80 + rng.Float64()*60
		fmt.Fprintf(&sb, "%d,%.2f,%s,%s\n", lead, price, roomTypes[i%len(roomTypes)], status)
	}
	path := filepath.Join(t.TempDir(), "bookings.csv")
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		t.Fatalf("write bookings: %v", err)
	}
	return path
}

func testConfig(t *testing.T, rawPath string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Env: "development",
		DataIngestion: config.DataIngestionConfig{
			LocalFile:     rawPath,
			TrainRatio:    0.8,
			RetryAttempts: 1,
			RetryBackoff:  config.Duration{Duration: time.Millisecond},
		},
		DataPreprocessing: config.DataPreprocessingConfig{
			NumericalFeatures:    []string{"lead_time", "avg_price_per_room"},
			CategoricalFeatures:  []string{"room_type_reserved"},
			TargetColumn:         "booking_status",
			OneHotMaxCardinality: 5,
			OversampleRatio:      1.0,
		},
		ModelTraining: config.ModelTrainingConfig{
			ModelType:   "gbdt",
			RandomState: 42,
			TestSize:    0.2,
			Params: config.BoostParams{
				NumTrees:     15,
				LearningRate: 0.3,
				MaxDepth:     3,
				MinLeaf:      5,
				Subsample:    1.0,
			},
		},
		Tracking: config.TrackingConfig{
			Driver: "sqlite",
			DSN:    filepath.Join(dir, "tracking.db"),
		},
		Artifacts: config.ArtifactsConfig{Dir: filepath.Join(dir, "artifacts")},
	}
}

func testTrainer(t *testing.T, cfg *config.Config) (*Trainer, *tracking.Store) {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	store, err := tracking.Open(cfg.Tracking.Driver, cfg.Tracking.DSN, log)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return NewTrainer(log, cfg, store, nil), store
}

func TestTrainerEndToEnd(t *testing.T) {
	cfg := testConfig(t, writeBookings(t, 300))
	trainer, store := testTrainer(t, cfg)
	ctx := context.Background()

	report, err := trainer.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Version != 1 {
		t.Fatalf("version=%d want 1", report.Version)
	}
	if report.Metrics.AUC < 0.9 {
		t.Fatalf("auc=%v on strongly separable data", report.Metrics.AUC)
	}

	// Artifact is loadable and scores a record.
	b, err := artifact.Load(report.ArtifactPath)
	if err != nil {
		t.Fatalf("load artifact: %v", err)
	}
	vec, err := b.Transformer.ApplyRecord(map[string]string{
		"lead_time":          "250",
		"avg_price_per_room": "100",
		"room_type_reserved": "Room_Type 1",
	})
	if err != nil {
		t.Fatalf("apply record: %v", err)
	}
	// Classes sort to [Canceled, Not_Canceled], so class 1 is Not_Canceled
	// and a long lead time should score low.
	if b.PositiveLabel != "Not_Canceled" {
		t.Fatalf("positive label %q", b.PositiveLabel)
	}
	if p := b.Ensemble.PredictProba(vec); p >= 0.5 {
		t.Fatalf("long lead time scored %v, expected cancellation-leaning", p)
	}

	// Processed partitions were written next to the raw split.
	for _, name := range []string{"train.csv", "test.csv", "processed_train.csv", "processed_test.csv"} {
		if _, err := os.Stat(filepath.Join(cfg.Artifacts.Dir, "data", name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}

	// The run record is terminal and complete.
	run, err := store.GetRun(ctx, report.RunID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run.Status != tracking.StatusSucceeded || run.Progress != 100 {
		t.Fatalf("run record %+v", run)
	}
	if run.ArtifactPath != report.ArtifactPath {
		t.Fatalf("artifact path %q want %q", run.ArtifactPath, report.ArtifactPath)
	}

	// A second run bumps the registry version.
	report2, err := trainer.Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report2.Version != 2 {
		t.Fatalf("version=%d want 2", report2.Version)
	}
}

func TestTrainerWithSearch(t *testing.T) {
	cfg := testConfig(t, writeBookings(t, 200))
	cfg.ModelTraining.Search = config.SearchConfig{
		Enabled:    true,
		Iterations: 2,
		Folds:      3,
		NumTrees:   []int{5, 10},
		MaxDepth:   []int{2, 3},
	}
	trainer, _ := testTrainer(t, cfg)

	report, err := trainer.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.Search) == 0 {
		t.Fatalf("search results missing from report")
	}
	found := false
	for _, nt := range []int{5, 10} {
		if report.Params.NumTrees == nt {
			found = true
		}
	}
	if !found {
		t.Fatalf("final params %+v not drawn from the search space", report.Params)
	}
}

func TestTrainerRecordsFailure(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "missing.csv"))
	trainer, store := testTrainer(t, cfg)
	ctx := context.Background()

	if _, err := trainer.Run(ctx); err == nil {
		t.Fatalf("expected failure for missing input file")
	}

	runs, err := store.ListRecentRuns(ctx, 1)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != tracking.StatusFailed {
		t.Fatalf("failed run not recorded: %+v", runs)
	}
	if runs[0].Error == "" {
		t.Fatalf("failure reason not recorded")
	}
}
