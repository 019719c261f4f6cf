package tracking

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"
)

// Snapshot stages.
const (
	StageNone       = "none"
	StageStaging    = "staging"
	StageProduction = "production"
)

// ExperimentRun records one training pipeline execution: parameters,
// metrics, artifact reference, and lifecycle bookkeeping. Rows are
// append-only once the run reaches a terminal status.
type ExperimentRun struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	Name     string `gorm:"column:name;not null;index" json:"name"`
	Status   string `gorm:"column:status;not null;index" json:"status"`
	Stage    string `gorm:"column:stage" json:"stage"`
	Progress int    `gorm:"column:progress" json:"progress"`
	Message  string `gorm:"column:message" json:"message"`
	Error    string `gorm:"column:error" json:"error"`

	ParamsJSON  datatypes.JSON `gorm:"column:params_json" json:"params_json"`
	MetricsJSON datatypes.JSON `gorm:"column:metrics_json" json:"metrics_json"`
	ResultJSON  datatypes.JSON `gorm:"column:result_json" json:"result_json"`

	ArtifactPath string `gorm:"column:artifact_path" json:"artifact_path"`
	DurationMS   int64  `gorm:"column:duration_ms" json:"duration_ms"`

	StartedAt   time.Time  `gorm:"column:started_at;not null;index" json:"started_at"`
	EndedAt     *time.Time `gorm:"column:ended_at" json:"ended_at,omitempty"`
	HeartbeatAt *time.Time `gorm:"column:heartbeat_at" json:"heartbeat_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (ExperimentRun) TableName() string { return "experiment_run" }

// ModelSnapshot is the registry row for a trained model version. Version
// numbers increase per model key; at most one version per key is active.
type ModelSnapshot struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	ModelKey string `gorm:"column:model_key;not null;index:idx_model_snapshot,unique,priority:1" json:"model_key"`
	Version  int    `gorm:"column:version;not null;index:idx_model_snapshot,unique,priority:2" json:"version"`
	Stage    string `gorm:"column:stage;not null;default:none" json:"stage"`
	Active   bool   `gorm:"column:active;not null;default:false;index" json:"active"`

	RunID        uuid.UUID      `gorm:"column:run_id;type:uuid;index" json:"run_id"`
	ParamsJSON   datatypes.JSON `gorm:"column:params_json" json:"params_json"`
	MetricsJSON  datatypes.JSON `gorm:"column:metrics_json" json:"metrics_json"`
	ArtifactPath string         `gorm:"column:artifact_path" json:"artifact_path"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (ModelSnapshot) TableName() string { return "model_snapshot" }
