package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stayml/bookingcast/internal/platform/apperr"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFileAppliesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
env: production
http:
  addr: ":9090"
  shutdown_timeout: 3s
data_ingestion:
  bucket_name: my-bucket
  bucket_file_name: data.csv
  train_ratio: 0.7
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Env != "production" {
		t.Fatalf("env=%q", cfg.Env)
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Fatalf("addr=%q", cfg.HTTP.Addr)
	}
	if cfg.HTTP.ShutdownTimeout.Duration != 3*time.Second {
		t.Fatalf("shutdown_timeout=%v", cfg.HTTP.ShutdownTimeout.Duration)
	}
	if cfg.DataIngestion.TrainRatio != 0.7 {
		t.Fatalf("train_ratio=%v", cfg.DataIngestion.TrainRatio)
	}
	// Defaults survive where the file is silent.
	if cfg.DataPreprocessing.TargetColumn != "booking_status" {
		t.Fatalf("target=%q", cfg.DataPreprocessing.TargetColumn)
	}
	if cfg.ModelTraining.Params.NumTrees != 200 {
		t.Fatalf("num_trees=%d", cfg.ModelTraining.Params.NumTrees)
	}
}

func TestLoadRequiresBucketWithoutLocalFile(t *testing.T) {
	path := writeConfig(t, `
data_ingestion:
  train_ratio: 0.8
`)
	_, err := LoadFile(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if apperr.KindOf(err) != apperr.KindConfig {
		t.Fatalf("kind=%q want config", apperr.KindOf(err))
	}
}

func TestLoadLocalFileSkipsBucketRequirement(t *testing.T) {
	path := writeConfig(t, `
data_ingestion:
  local_file: ./testdata/raw.csv
  train_ratio: 0.8
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataIngestion.LocalFile == "" {
		t.Fatalf("local_file not set")
	}
}

func TestLoadRejectsBadTrainRatio(t *testing.T) {
	for _, ratio := range []string{"0", "1", "1.5", "-0.1"} {
		path := writeConfig(t, `
data_ingestion:
  local_file: raw.csv
  train_ratio: `+ratio+"\n")
		if _, err := LoadFile(path); err == nil {
			t.Fatalf("ratio %s: expected error", ratio)
		}
	}
}

func TestLoadRejectsUnknownModelType(t *testing.T) {
	path := writeConfig(t, `
data_ingestion:
  local_file: raw.csv
model_training:
  model_type: linear
`)
	if _, err := LoadFile(path); err == nil {
		t.Fatalf("expected error for unsupported model type")
	}
}

func TestLoadRejectsDuplicateFeature(t *testing.T) {
	path := writeConfig(t, `
data_ingestion:
  local_file: raw.csv
data_preprocessing:
  numerical_features: [lead_time]
  categorical_features: [lead_time]
  target_column: booking_status
`)
	if _, err := LoadFile(path); err == nil {
		t.Fatalf("expected error for duplicate feature column")
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
data_ingestion:
  bucket_name: file-bucket
  bucket_file_name: data.csv
`)
	t.Setenv("BC_CONFIG_PATH", path)
	t.Setenv("BC_HTTP_ADDR", ":7070")
	t.Setenv("BC_BUCKET_NAME", "env-bucket")
	t.Setenv("BC_ARTIFACTS_DIR", "/tmp/artifacts")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":7070" {
		t.Fatalf("addr=%q", cfg.HTTP.Addr)
	}
	if cfg.DataIngestion.BucketName != "env-bucket" {
		t.Fatalf("bucket=%q", cfg.DataIngestion.BucketName)
	}
	if cfg.Artifacts.Dir != "/tmp/artifacts" {
		t.Fatalf("artifacts dir=%q", cfg.Artifacts.Dir)
	}
}

func TestDurationYAMLRoundTrip(t *testing.T) {
	path := writeConfig(t, `
data_ingestion:
  local_file: raw.csv
  retry_backoff: 500ms
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataIngestion.RetryBackoff.Duration != 500*time.Millisecond {
		t.Fatalf("retry_backoff=%v", cfg.DataIngestion.RetryBackoff.Duration)
	}
}
