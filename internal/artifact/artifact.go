// Package artifact bundles the fitted transformer and the trained
// ensemble into a single JSON file: the unit the training pipeline writes
// and the serving process loads. Bundling the transformer guarantees the
// serving path applies the exact transform the model was trained with.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/stayml/bookingcast/internal/model"
	"github.com/stayml/bookingcast/internal/platform/apperr"
	"github.com/stayml/bookingcast/internal/preprocess"
)

const SchemaVersion = 1

// FileName is the fixed artifact name inside the artifacts directory.
// Each training run overwrites it in place. There is no atomic rename or
// reader lock, so a crash mid-write can leave a truncated file and a
// concurrently starting server can read a torn one; whether that risk is
// acceptable is an open stakeholder question, not a design choice.
const FileName = "model.json"

type Bundle struct {
	SchemaVersion int                     `json:"schema_version"`
	ModelKey      string                  `json:"model_key"`
	RunID         string                  `json:"run_id"`
	TrainedAt     time.Time               `json:"trained_at"`
	Params        model.Params            `json:"params"`
	Metrics       model.Metrics           `json:"metrics"`
	PositiveLabel string                  `json:"positive_label"`
	Transformer   *preprocess.Transformer `json:"transformer"`
	Ensemble      *model.Ensemble         `json:"ensemble"`
}

// Path returns the artifact file path under dir.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Save overwrites the artifact at path.
func Save(b *Bundle, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperr.IO("create artifact dir", err)
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return apperr.IO("encode artifact", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return apperr.IO("write artifact", err)
	}
	return nil
}

// Load reads and validates an artifact bundle.
func Load(path string) (*Bundle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.IO("read artifact", err)
	}
	var b Bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, apperr.Model("decode artifact", err)
	}
	if b.SchemaVersion != SchemaVersion {
		return nil, apperr.Model("decode artifact", fmt.Errorf("unsupported artifact schema version %d", b.SchemaVersion))
	}
	if b.Transformer == nil || !b.Transformer.Fitted {
		return nil, apperr.Model("decode artifact", fmt.Errorf("artifact has no fitted transformer"))
	}
	if b.Ensemble == nil || len(b.Ensemble.Trees) == 0 {
		return nil, apperr.Model("decode artifact", fmt.Errorf("artifact has no trained ensemble"))
	}
	return &b, nil
}
