package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stayml/bookingcast/internal/platform/apperr"
)

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	s := strings.TrimSpace(value.Value)
	if s == "" || s == "null" {
		d.Duration = 0
		return nil
	}
	dd, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration must be a string like \"5s\": %w", err)
	}
	d.Duration = dd
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

func defaultConfig() *Config {
	return &Config{
		Env: "development",
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: Duration{Duration: 5 * time.Second},
			IdleTimeout:       Duration{Duration: 2 * time.Minute},
			ShutdownTimeout:   Duration{Duration: 15 * time.Second},
			MaxRequestBytes:   1 << 20,
		},
		DataIngestion: DataIngestionConfig{
			TrainRatio:    0.8,
			RetryAttempts: 3,
			RetryBackoff:  Duration{Duration: 2 * time.Second},
		},
		DataPreprocessing: DataPreprocessingConfig{
			NumericalFeatures: []string{
				"no_of_adults",
				"no_of_children",
				"no_of_weekend_nights",
				"no_of_week_nights",
				"required_car_parking_space",
				"lead_time",
				"repeated_guest",
				"avg_price_per_room",
				"no_of_special_requests",
			},
			CategoricalFeatures: []string{
				"type_of_meal_plan",
				"room_type_reserved",
				"market_segment_type",
			},
			TargetColumn:         "booking_status",
			OneHotMaxCardinality: 5,
			OversampleRatio:      1.0,
		},
		ModelTraining: ModelTrainingConfig{
			ModelType:   "gbdt",
			RandomState: 42,
			TestSize:    0.2,
			Params: BoostParams{
				NumTrees:     200,
				LearningRate: 0.1,
				MaxDepth:     5,
				MinLeaf:      20,
				Subsample:    0.8,
			},
			Search: SearchConfig{
				Enabled:      false,
				Iterations:   10,
				Folds:        5,
				NumTrees:     []int{100, 200, 300},
				LearningRate: []float64{0.05, 0.1, 0.2},
				MaxDepth:     []int{3, 5, 7},
				MinLeaf:      []int{10, 20, 50},
				Subsample:    []float64{0.7, 0.8, 1.0},
			},
		},
		Tracking: TrackingConfig{
			Driver: "sqlite",
			DSN:    "artifacts/tracking.db",
		},
		Artifacts: ArtifactsConfig{
			Dir: "artifacts",
		},
	}
}

// Load reads config from BC_CONFIG_PATH (falling back to ./config/config.yaml
// if present), applies env overrides, and validates. Missing required keys
// are a fatal config error at startup.
func Load() (*Config, error) {
	cfg := defaultConfig()

	cfgPath := strings.TrimSpace(os.Getenv("BC_CONFIG_PATH"))
	if cfgPath == "" {
		if wd, err := os.Getwd(); err == nil {
			p := filepath.Join(wd, "config", "config.yaml")
			if _, err := os.Stat(p); err == nil {
				cfgPath = p
			}
		}
	}

	if cfgPath != "" {
		if err := loadFile(cfg, cfgPath); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads and validates a specific config file, bypassing the
// BC_CONFIG_PATH lookup. Used by the train CLI's -config flag.
func LoadFile(path string) (*Config, error) {
	cfg := defaultConfig()
	if err := loadFile(cfg, path); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return apperr.Config("read config file", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return apperr.Config("parse config file", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("LOG_MODE")); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(os.Getenv("BC_HTTP_ADDR")); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("BC_BUCKET_NAME")); v != "" {
		cfg.DataIngestion.BucketName = v
	}
	if v := strings.TrimSpace(os.Getenv("BC_BUCKET_FILE_NAME")); v != "" {
		cfg.DataIngestion.BucketFileName = v
	}
	if v := strings.TrimSpace(os.Getenv("BC_LOCAL_DATA_FILE")); v != "" {
		cfg.DataIngestion.LocalFile = v
	}
	if v := strings.TrimSpace(os.Getenv("BC_TRACKING_DRIVER")); v != "" {
		cfg.Tracking.Driver = v
	}
	if v := strings.TrimSpace(os.Getenv("BC_TRACKING_DSN")); v != "" {
		cfg.Tracking.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("BC_ARTIFACTS_DIR")); v != "" {
		cfg.Artifacts.Dir = v
	}
}

func validate(cfg *Config) error {
	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if strings.TrimSpace(cfg.HTTP.Addr) == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.MaxRequestBytes <= 0 {
		cfg.HTTP.MaxRequestBytes = 1 << 20
	}

	di := &cfg.DataIngestion
	if strings.TrimSpace(di.LocalFile) == "" {
		if strings.TrimSpace(di.BucketName) == "" {
			return apperr.Config("validate", errors.New("data_ingestion.bucket_name is required"))
		}
		if strings.TrimSpace(di.BucketFileName) == "" {
			return apperr.Config("validate", errors.New("data_ingestion.bucket_file_name is required"))
		}
	}
	if di.TrainRatio <= 0 || di.TrainRatio >= 1 {
		return apperr.Config("validate", fmt.Errorf("data_ingestion.train_ratio must be in (0,1), got %v", di.TrainRatio))
	}
	if di.RetryAttempts <= 0 {
		di.RetryAttempts = 3
	}
	if di.RetryBackoff.Duration <= 0 {
		di.RetryBackoff = Duration{Duration: 2 * time.Second}
	}

	dp := &cfg.DataPreprocessing
	if len(dp.NumericalFeatures) == 0 && len(dp.CategoricalFeatures) == 0 {
		return apperr.Config("validate", errors.New("data_preprocessing must list at least one feature column"))
	}
	if strings.TrimSpace(dp.TargetColumn) == "" {
		return apperr.Config("validate", errors.New("data_preprocessing.target_column is required"))
	}
	if seen := firstDuplicate(append(append([]string{}, dp.NumericalFeatures...), dp.CategoricalFeatures...)); seen != "" {
		return apperr.Config("validate", fmt.Errorf("feature column %q listed more than once", seen))
	}
	if dp.OneHotMaxCardinality < 0 {
		return apperr.Config("validate", errors.New("data_preprocessing.one_hot_max_cardinality must be >= 0"))
	}

	mt := &cfg.ModelTraining
	if strings.TrimSpace(mt.ModelType) == "" {
		mt.ModelType = "gbdt"
	}
	if mt.ModelType != "gbdt" {
		return apperr.Config("validate", fmt.Errorf("unsupported model_training.model_type %q", mt.ModelType))
	}
	if mt.TestSize <= 0 || mt.TestSize >= 1 {
		return apperr.Config("validate", fmt.Errorf("model_training.test_size must be in (0,1), got %v", mt.TestSize))
	}
	if err := validateParams(&mt.Params); err != nil {
		return err
	}
	if mt.Search.Enabled {
		if mt.Search.Iterations <= 0 {
			mt.Search.Iterations = 10
		}
		if mt.Search.Folds < 2 {
			mt.Search.Folds = 5
		}
	}

	switch strings.TrimSpace(cfg.Tracking.Driver) {
	case "sqlite", "postgres":
	case "":
		cfg.Tracking.Driver = "sqlite"
	default:
		return apperr.Config("validate", fmt.Errorf("unsupported tracking.driver %q", cfg.Tracking.Driver))
	}
	if strings.TrimSpace(cfg.Tracking.DSN) == "" {
		return apperr.Config("validate", errors.New("tracking.dsn is required"))
	}

	if strings.TrimSpace(cfg.Artifacts.Dir) == "" {
		cfg.Artifacts.Dir = "artifacts"
	}
	return nil
}

func validateParams(p *BoostParams) error {
	if p.NumTrees <= 0 {
		return apperr.Config("validate", errors.New("model_training.params.num_trees must be > 0"))
	}
	if p.LearningRate <= 0 || p.LearningRate > 1 {
		return apperr.Config("validate", fmt.Errorf("model_training.params.learning_rate must be in (0,1], got %v", p.LearningRate))
	}
	if p.MaxDepth <= 0 {
		return apperr.Config("validate", errors.New("model_training.params.max_depth must be > 0"))
	}
	if p.MinLeaf <= 0 {
		p.MinLeaf = 1
	}
	if p.Subsample <= 0 || p.Subsample > 1 {
		return apperr.Config("validate", fmt.Errorf("model_training.params.subsample must be in (0,1], got %v", p.Subsample))
	}
	return nil
}

func firstDuplicate(cols []string) string {
	seen := map[string]bool{}
	for _, c := range cols {
		if seen[c] {
			return c
		}
		seen[c] = true
	}
	return ""
}
