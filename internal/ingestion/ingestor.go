// Package ingestion fetches the raw booking CSV from object storage and
// splits it into train/test partitions on local disk. The contract is all
// or nothing: either both partitions exist and are non-empty, or the run
// has failed.
package ingestion

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/stayml/bookingcast/internal/dataset"
	"github.com/stayml/bookingcast/internal/platform/apperr"
	"github.com/stayml/bookingcast/internal/platform/gcp"
	"github.com/stayml/bookingcast/internal/platform/logger"
)

// Source yields the raw dataset stream. The bucket-backed source is the
// production path; the file source serves local development and tests.
type Source interface {
	Fetch(ctx context.Context) (io.ReadCloser, error)
	Name() string
}

type bucketSource struct {
	bucket gcp.DatasetBucket
	key    string
}

func NewBucketSource(bucket gcp.DatasetBucket, key string) Source {
	return &bucketSource{bucket: bucket, key: key}
}

func (s *bucketSource) Fetch(ctx context.Context) (io.ReadCloser, error) {
	return s.bucket.Download(ctx, s.key)
}

func (s *bucketSource) Name() string { return "gcs:" + s.key }

type fileSource struct {
	path string
}

func NewFileSource(path string) Source {
	return &fileSource{path: path}
}

func (s *fileSource) Fetch(ctx context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *fileSource) Name() string { return "file:" + s.path }

type Result struct {
	TrainPath string
	TestPath  string
	TotalRows int
	TrainRows int
	TestRows  int
}

type Ingestor struct {
	log    *logger.Logger
	source Source

	TrainRatio    float64
	Seed          int64
	RetryAttempts int
	RetryBackoff  time.Duration
}

func New(log *logger.Logger, source Source, trainRatio float64, seed int64) *Ingestor {
	return &Ingestor{
		log:           log.With("service", "Ingestor"),
		source:        source,
		TrainRatio:    trainRatio,
		Seed:          seed,
		RetryAttempts: 3,
		RetryBackoff:  2 * time.Second,
	}
}

// Run fetches the raw CSV, shuffles with the configured seed, splits by
// ratio, and writes both partitions under outDir.
func (ing *Ingestor) Run(ctx context.Context, outDir string) (*Result, error) {
	raw, err := ing.fetchWithRetry(ctx)
	if err != nil {
		return nil, err
	}
	if raw.NumRows() == 0 {
		return nil, apperr.Data("ingest", fmt.Errorf("source %s contains a header but no rows", ing.source.Name()))
	}

	rng := rand.New(rand.NewSource(ing.Seed))
	perm := rng.Perm(raw.NumRows())
	cut := int(ing.TrainRatio * float64(raw.NumRows()))
	if cut <= 0 || cut >= raw.NumRows() {
		return nil, apperr.Data("ingest", fmt.Errorf("train ratio %v leaves an empty partition for %d rows", ing.TrainRatio, raw.NumRows()))
	}

	train := raw.Select(perm[:cut])
	test := raw.Select(perm[cut:])

	res := &Result{
		TrainPath: filepath.Join(outDir, "train.csv"),
		TestPath:  filepath.Join(outDir, "test.csv"),
		TotalRows: raw.NumRows(),
		TrainRows: train.NumRows(),
		TestRows:  test.NumRows(),
	}
	if err := train.WriteCSVFile(res.TrainPath); err != nil {
		return nil, err
	}
	if err := test.WriteCSVFile(res.TestPath); err != nil {
		// Half-written output violates the both-or-nothing contract.
		_ = os.Remove(res.TrainPath)
		return nil, err
	}

	ing.log.Info("Ingestion complete",
		"source", ing.source.Name(),
		"total_rows", res.TotalRows,
		"train_rows", res.TrainRows,
		"test_rows", res.TestRows,
	)
	return res, nil
}

// fetchWithRetry retries transient fetch failures a fixed number of times
// with fixed backoff, then surfaces the failure to the caller.
func (ing *Ingestor) fetchWithRetry(ctx context.Context) (*dataset.Table, error) {
	attempts := ing.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		r, err := ing.source.Fetch(ctx)
		if err == nil {
			t, readErr := dataset.ReadCSV(r)
			_ = r.Close()
			if readErr == nil {
				return t, nil
			}
			// A malformed object will not improve on retry.
			return nil, readErr
		}
		lastErr = err
		ing.log.Warn("Fetch attempt failed",
			"source", ing.source.Name(),
			"attempt", attempt,
			"error", err,
		)
		if attempt < attempts {
			select {
			case <-ctx.Done():
				return nil, apperr.IO("fetch dataset", ctx.Err())
			case <-time.After(ing.RetryBackoff):
			}
		}
	}
	return nil, apperr.IO("fetch dataset", fmt.Errorf("after %d attempts: %w", attempts, lastErr))
}
