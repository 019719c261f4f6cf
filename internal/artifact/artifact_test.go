package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stayml/bookingcast/internal/dataset"
	"github.com/stayml/bookingcast/internal/model"
	"github.com/stayml/bookingcast/internal/preprocess"
)

func testBundle(t *testing.T) *Bundle {
	t.Helper()
	tbl := dataset.New([]string{"lead_time", "booking_status"})
	tbl.Rows = [][]string{
		{"10", "Not_Canceled"},
		{"20", "Canceled"},
		{"30", "Not_Canceled"},
		{"40", "Canceled"},
	}
	tr := preprocess.NewTransformer([]string{"lead_time"}, nil, "booking_status", 5)
	if err := tr.Fit(tbl); err != nil {
		t.Fatalf("fit: %v", err)
	}
	return &Bundle{
		SchemaVersion: SchemaVersion,
		ModelKey:      "booking-cancellation",
		RunID:         "run-1",
		TrainedAt:     time.Now().UTC(),
		Params:        model.Params{NumTrees: 1, LearningRate: 0.1, MaxDepth: 1, MinLeaf: 1, Subsample: 1},
		PositiveLabel: tr.PositiveLabel(),
		Transformer:   tr,
		Ensemble: &model.Ensemble{
			Bias:  0.1,
			Trees: []model.DecisionTree{{Outputs: []float64{0.2}}},
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	b := testBundle(t)
	path := Path(dir)

	if err := Save(b, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.ModelKey != b.ModelKey || got.PositiveLabel != b.PositiveLabel {
		t.Fatalf("bundle fields lost: %+v", got)
	}
	if !got.Transformer.Fitted {
		t.Fatalf("transformer not fitted after round trip")
	}
	// The decoded ensemble scores identically.
	x := []float64{1}
	if got.Ensemble.PredictProba(x) != b.Ensemble.PredictProba(x) {
		t.Fatalf("ensemble changed across round trip")
	}
}

func TestSaveOverwritesInPlace(t *testing.T) {
	dir := t.TempDir()
	path := Path(dir)
	b := testBundle(t)

	if err := Save(b, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	b.RunID = "run-2"
	if err := Save(b, path); err != nil {
		t.Fatalf("resave: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.RunID != "run-2" {
		t.Fatalf("run_id=%q want run-2", got.RunID)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "model.json")); err == nil {
		t.Fatalf("expected error for missing artifact")
	}
}

func TestLoadRejectsBadSchemaVersion(t *testing.T) {
	b := testBundle(t)
	b.SchemaVersion = SchemaVersion + 1
	path := Path(t.TempDir())
	raw, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for schema version mismatch")
	}
}

func TestLoadRejectsIncompleteBundle(t *testing.T) {
	path := Path(t.TempDir())

	b := testBundle(t)
	b.Ensemble = nil
	if err := Save(b, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for missing ensemble")
	}

	b = testBundle(t)
	b.Transformer = nil
	if err := Save(b, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for missing transformer")
	}
}
