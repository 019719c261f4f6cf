package pipeline

import (
	"bytes"
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/stayml/bookingcast/internal/artifact"
	"github.com/stayml/bookingcast/internal/config"
	"github.com/stayml/bookingcast/internal/dataset"
	"github.com/stayml/bookingcast/internal/ingestion"
	"github.com/stayml/bookingcast/internal/model"
	"github.com/stayml/bookingcast/internal/observability"
	"github.com/stayml/bookingcast/internal/platform/gcp"
	"github.com/stayml/bookingcast/internal/platform/logger"
	"github.com/stayml/bookingcast/internal/preprocess"
	"github.com/stayml/bookingcast/internal/tracking"
)

// ModelKey is the registry key every training run registers under.
const ModelKey = "booking-cancellation"

// Trainer runs the full training pipeline. The bucket may be nil when
// ingestion reads from a local file and no artifact mirroring is
// configured.
type Trainer struct {
	log    *logger.Logger
	cfg    *config.Config
	store  *tracking.Store
	bucket gcp.DatasetBucket
}

func NewTrainer(log *logger.Logger, cfg *config.Config, store *tracking.Store, bucket gcp.DatasetBucket) *Trainer {
	return &Trainer{
		log:    log.With("service", "Trainer"),
		cfg:    cfg,
		store:  store,
		bucket: bucket,
	}
}

// Report summarizes a completed training run.
type Report struct {
	RunID        uuid.UUID               `json:"run_id"`
	SnapshotID   uuid.UUID               `json:"snapshot_id"`
	Version      int                     `json:"version"`
	Params       model.Params            `json:"params"`
	Metrics      model.Metrics           `json:"metrics"`
	ArtifactPath string                  `json:"artifact_path"`
	TrainRows    int                     `json:"train_rows"`
	TestRows     int                     `json:"test_rows"`
	Search       []model.CandidateResult `json:"search,omitempty"`
	Duration     time.Duration           `json:"-"`
}

// Run executes ingest, preprocess, train, evaluate, and persist in
// order. The run record is failed on any error and succeeded otherwise;
// the returned report mirrors what was registered.
func (tr *Trainer) Run(ctx context.Context) (*Report, error) {
	started := time.Now()

	params := paramsFromConfig(tr.cfg.ModelTraining.Params)
	rc, err := newRunContext(ctx, tr.log, tr.store, ModelKey, params)
	if err != nil {
		return nil, err
	}
	tr.log.Info("Training run started", "run_id", rc.RunID().String())

	report, err := tr.run(ctx, rc, params)
	if err != nil {
		rc.Fail(ctx, err)
		return nil, err
	}
	report.RunID = rc.RunID()
	report.Duration = time.Since(started)
	if err := rc.Succeed(ctx, report.Metrics, report, report.ArtifactPath); err != nil {
		return nil, err
	}
	tr.log.Info("Training run succeeded",
		"run_id", report.RunID.String(),
		"version", report.Version,
		"auc", report.Metrics.AUC,
		"duration", report.Duration,
	)
	return report, nil
}

func (tr *Trainer) run(ctx context.Context, rc *RunContext, params model.Params) (*Report, error) {
	cfg := tr.cfg
	dataDir := filepath.Join(cfg.Artifacts.Dir, "data")
	seed := cfg.ModelTraining.RandomState

	// Ingest.
	sctx, span := observability.StartStage(ctx, "ingest")
	rc.Progress(sctx, 10, "ingesting dataset")
	ing := ingestion.New(tr.log, tr.source(), cfg.DataIngestion.TrainRatio, seed)
	if cfg.DataIngestion.RetryAttempts > 0 {
		ing.RetryAttempts = cfg.DataIngestion.RetryAttempts
	}
	if cfg.DataIngestion.RetryBackoff.Duration > 0 {
		ing.RetryBackoff = cfg.DataIngestion.RetryBackoff.Duration
	}
	ingRes, err := ing.Run(sctx, dataDir)
	span.End()
	if err != nil {
		return nil, err
	}

	// Preprocess. The transformer fits on the training partition only and
	// travels with the model inside the artifact.
	sctx, span = observability.StartStage(ctx, "preprocess")
	rc.Progress(sctx, 30, "preprocessing partitions")
	pp := cfg.DataPreprocessing
	transformer := preprocess.NewTransformer(pp.NumericalFeatures, pp.CategoricalFeatures, pp.TargetColumn, pp.OneHotMaxCardinality)

	trainTable, err := dataset.ReadCSVFile(ingRes.TrainPath)
	if err != nil {
		span.End()
		return nil, err
	}
	if err := transformer.Fit(trainTable); err != nil {
		span.End()
		return nil, err
	}
	trainM, err := transformer.Transform(trainTable, true)
	if err != nil {
		span.End()
		return nil, err
	}
	if pp.OversampleRatio > 0 {
		before := trainM.NumRows()
		trainM = preprocess.Oversample(trainM, pp.OversampleRatio, rand.New(rand.NewSource(seed)))
		tr.log.Info("Oversampled training partition", "before", before, "after", trainM.NumRows())
	}

	testTable, err := dataset.ReadCSVFile(ingRes.TestPath)
	if err != nil {
		span.End()
		return nil, err
	}
	testM, err := transformer.Transform(testTable, true)
	if err != nil {
		span.End()
		return nil, err
	}

	if err := tr.writeProcessed(dataDir, trainM, testM); err != nil {
		span.End()
		return nil, err
	}
	span.End()

	// Train, with optional randomized hyperparameter search over the
	// training matrix only.
	sctx, span = observability.StartStage(ctx, "train")
	var searchResults []model.CandidateResult
	if cfg.ModelTraining.Search.Enabled {
		rc.Progress(sctx, 50, "hyperparameter search")
		best, results, err := model.RandomizedSearch(sctx, trainM, searchSpaceFromConfig(cfg.ModelTraining.Search), params, seed)
		if err != nil {
			span.End()
			return nil, err
		}
		params = best
		searchResults = results
		tr.log.Info("Search selected params", "candidates", len(results), "mean_auc", results[0].MeanAUC)
	}
	rc.Progress(sctx, 70, "training final model")
	ensemble, err := model.Fit(trainM, params, seed)
	span.End()
	if err != nil {
		return nil, err
	}

	// Evaluate on the held-out test partition.
	sctx, span = observability.StartStage(ctx, "evaluate")
	rc.Progress(sctx, 85, "evaluating on held-out partition")
	metrics, err := model.Evaluate(ensemble, testM)
	span.End()
	if err != nil {
		return nil, err
	}

	// Persist artifact and register the snapshot.
	sctx, span = observability.StartStage(ctx, "persist")
	defer span.End()
	rc.Progress(sctx, 95, "persisting artifact")
	bundle := &artifact.Bundle{
		SchemaVersion: artifact.SchemaVersion,
		ModelKey:      ModelKey,
		RunID:         rc.RunID().String(),
		TrainedAt:     time.Now().UTC(),
		Params:        params,
		Metrics:       metrics,
		PositiveLabel: transformer.PositiveLabel(),
		Transformer:   transformer,
		Ensemble:      ensemble,
	}
	artifactPath := artifact.Path(cfg.Artifacts.Dir)
	if err := artifact.Save(bundle, artifactPath); err != nil {
		return nil, err
	}
	if err := tr.mirrorArtifact(sctx, artifactPath); err != nil {
		return nil, err
	}
	snap, err := tr.store.RegisterSnapshot(sctx, ModelKey, rc.RunID(), params, metrics, artifactPath)
	if err != nil {
		return nil, err
	}

	return &Report{
		SnapshotID:   snap.ID,
		Version:      snap.Version,
		Params:       params,
		Metrics:      metrics,
		ArtifactPath: artifactPath,
		TrainRows:    trainM.NumRows(),
		TestRows:     testM.NumRows(),
		Search:       searchResults,
	}, nil
}

func (tr *Trainer) source() ingestion.Source {
	if tr.cfg.DataIngestion.LocalFile != "" {
		return ingestion.NewFileSource(tr.cfg.DataIngestion.LocalFile)
	}
	return ingestion.NewBucketSource(tr.bucket, tr.cfg.DataIngestion.BucketFileName)
}

// writeProcessed records the encoded partitions next to the raw ones so
// a run's inputs can be inspected after the fact.
func (tr *Trainer) writeProcessed(dataDir string, trainM, testM *dataset.Matrix) error {
	if err := trainM.ToTable().WriteCSVFile(filepath.Join(dataDir, "processed_train.csv")); err != nil {
		return err
	}
	return testM.ToTable().WriteCSVFile(filepath.Join(dataDir, "processed_test.csv"))
}

// mirrorArtifact copies the saved artifact to the dataset bucket when a
// bucket key is configured.
func (tr *Trainer) mirrorArtifact(ctx context.Context, path string) error {
	key := tr.cfg.Artifacts.BucketKey
	if key == "" || tr.bucket == nil {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := tr.bucket.Upload(ctx, key, bytes.NewReader(raw)); err != nil {
		return err
	}
	tr.log.Info("Artifact mirrored to bucket", "key", key)
	return nil
}

func paramsFromConfig(p config.BoostParams) model.Params {
	return model.Params{
		NumTrees:     p.NumTrees,
		LearningRate: p.LearningRate,
		MaxDepth:     p.MaxDepth,
		MinLeaf:      p.MinLeaf,
		Subsample:    p.Subsample,
	}
}

func searchSpaceFromConfig(s config.SearchConfig) model.SearchSpace {
	return model.SearchSpace{
		Iterations:   s.Iterations,
		Folds:        s.Folds,
		NumTrees:     s.NumTrees,
		LearningRate: s.LearningRate,
		MaxDepth:     s.MaxDepth,
		MinLeaf:      s.MinLeaf,
		Subsample:    s.Subsample,
	}
}

// Latest returns the most recent registry entry for the pipeline's model
// key, or nil when nothing has been trained yet.
func (tr *Trainer) Latest(ctx context.Context) (*tracking.ModelSnapshot, error) {
	return tr.store.GetLatestSnapshot(ctx, ModelKey)
}
