package config

import "time"

type Duration struct {
	Duration time.Duration
}

type HTTPConfig struct {
	Addr              string   `yaml:"addr"`
	ReadHeaderTimeout Duration `yaml:"read_header_timeout"`
	IdleTimeout       Duration `yaml:"idle_timeout"`
	ShutdownTimeout   Duration `yaml:"shutdown_timeout"`
	MaxRequestBytes   int64    `yaml:"max_request_bytes"`
}

type DataIngestionConfig struct {
	BucketName     string  `yaml:"bucket_name"`
	BucketFileName string  `yaml:"bucket_file_name"`
	TrainRatio     float64 `yaml:"train_ratio"`

	// LocalFile short-circuits the bucket and reads the raw CSV from disk.
	// Used for local development and tests.
	LocalFile string `yaml:"local_file,omitempty"`

	RetryAttempts int      `yaml:"retry_attempts"`
	RetryBackoff  Duration `yaml:"retry_backoff"`
}

type DataPreprocessingConfig struct {
	NumericalFeatures   []string `yaml:"numerical_features"`
	CategoricalFeatures []string `yaml:"categorical_features"`
	TargetColumn        string   `yaml:"target_column"`

	// OneHotMaxCardinality routes categorical columns whose fitted
	// vocabulary is at most this size to one-hot encoding; larger
	// vocabularies are ordinal-encoded.
	OneHotMaxCardinality int `yaml:"one_hot_max_cardinality"`

	// OversampleRatio is the target minority/majority row ratio after
	// synthetic oversampling of the training partition. <=0 disables it.
	OversampleRatio float64 `yaml:"oversample_ratio"`
}

type BoostParams struct {
	NumTrees     int     `yaml:"num_trees" json:"num_trees"`
	LearningRate float64 `yaml:"learning_rate" json:"learning_rate"`
	MaxDepth     int     `yaml:"max_depth" json:"max_depth"`
	MinLeaf      int     `yaml:"min_leaf" json:"min_leaf"`
	Subsample    float64 `yaml:"subsample" json:"subsample"`
}

type SearchConfig struct {
	Enabled      bool      `yaml:"enabled"`
	Iterations   int       `yaml:"iterations"`
	Folds        int       `yaml:"folds"`
	NumTrees     []int     `yaml:"num_trees"`
	LearningRate []float64 `yaml:"learning_rate"`
	MaxDepth     []int     `yaml:"max_depth"`
	MinLeaf      []int     `yaml:"min_leaf"`
	Subsample    []float64 `yaml:"subsample"`
}

type ModelTrainingConfig struct {
	ModelType   string       `yaml:"model_type"`
	RandomState int64        `yaml:"random_state"`
	TestSize    float64      `yaml:"test_size"`
	Params      BoostParams  `yaml:"params"`
	Search      SearchConfig `yaml:"search"`
}

type TrackingConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type ArtifactsConfig struct {
	Dir string `yaml:"dir"`

	// BucketKey, when set, mirrors the trained artifact back to the
	// dataset bucket under this object key.
	BucketKey string `yaml:"bucket_key,omitempty"`
}

type Config struct {
	Env               string                  `yaml:"env"`
	HTTP              HTTPConfig              `yaml:"http"`
	DataIngestion     DataIngestionConfig     `yaml:"data_ingestion"`
	DataPreprocessing DataPreprocessingConfig `yaml:"data_preprocessing"`
	ModelTraining     ModelTrainingConfig     `yaml:"model_training"`
	Tracking          TrackingConfig          `yaml:"tracking"`
	Artifacts         ArtifactsConfig         `yaml:"artifacts"`
}
