// Package serving holds the online prediction service: it loads the
// trained artifact bundle and scores single booking records with the
// exact transform the model was trained with.
package serving

import (
	"fmt"
	"sync"
	"time"

	"github.com/stayml/bookingcast/internal/artifact"
	"github.com/stayml/bookingcast/internal/platform/apperr"
	"github.com/stayml/bookingcast/internal/platform/logger"
)

// Predictor serves predictions from the artifact at a fixed path. Reload
// swaps the bundle in place so a retrained model goes live without a
// restart.
type Predictor struct {
	log  *logger.Logger
	path string

	mu     sync.RWMutex
	bundle *artifact.Bundle
}

func NewPredictor(log *logger.Logger, artifactPath string) *Predictor {
	return &Predictor{
		log:  log.With("service", "Predictor"),
		path: artifactPath,
	}
}

// Load reads the artifact from disk. Missing or invalid artifacts leave
// any previously loaded bundle in place.
func (p *Predictor) Load() error {
	b, err := artifact.Load(p.path)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.bundle = b
	p.mu.Unlock()
	p.log.Info("Model artifact loaded",
		"path", p.path,
		"model_key", b.ModelKey,
		"trained_at", b.TrainedAt,
		"auc", b.Metrics.AUC,
	)
	return nil
}

// Loaded reports whether a bundle is currently serving.
func (p *Predictor) Loaded() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.bundle != nil
}

// Bundle returns the currently loaded bundle, or nil.
func (p *Predictor) Bundle() *artifact.Bundle {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.bundle
}

// Prediction is one scored record.
type Prediction struct {
	Prediction  int     `json:"prediction"`
	Probability float64 `json:"probability"`
	Label       string  `json:"label,omitempty"`
	ScoredAt    time.Time
}

// Predict validates and transforms a raw record, then scores it.
// Validation failures carry the model error kind so the HTTP layer maps
// them to 400-class responses.
func (p *Predictor) Predict(rec map[string]string) (*Prediction, error) {
	p.mu.RLock()
	b := p.bundle
	p.mu.RUnlock()
	if b == nil {
		return nil, apperr.IO("predict", fmt.Errorf("no model artifact loaded"))
	}

	vec, err := b.Transformer.ApplyRecord(rec)
	if err != nil {
		return nil, err
	}
	prob := b.Ensemble.PredictProba(vec)
	pred := 0
	if prob >= 0.5 {
		pred = 1
	}
	out := &Prediction{
		Prediction:  pred,
		Probability: prob,
		ScoredAt:    time.Now().UTC(),
	}
	if pred == 1 {
		out.Label = b.PositiveLabel
	} else if len(b.Transformer.TargetClasses) == 2 {
		out.Label = b.Transformer.TargetClasses[0]
	}
	return out, nil
}

// RequiredFields are the raw input columns a request must provide.
func (p *Predictor) RequiredFields() []string {
	p.mu.RLock()
	b := p.bundle
	p.mu.RUnlock()
	if b == nil {
		return nil
	}
	return b.Transformer.InputColumns()
}
