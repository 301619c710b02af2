package pipeline

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/couchcryptid/radar-volume-etl/internal/radar"
)

// FileResult is the outcome of decoding one file of a batch.
type FileResult struct {
	Path     string
	Volume   *radar.Volume
	Err      error
	Duration time.Duration
}

// Batch decodes local files with a bounded worker pool.
type Batch struct {
	decoder *Decoder
	workers int64
	logger  *slog.Logger
}

// NewBatch creates a Batch running at most workers decodes at once. A
// non-positive workers means GOMAXPROCS.
func NewBatch(decoder *Decoder, workers int, logger *slog.Logger) *Batch {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Batch{decoder: decoder, workers: int64(workers), logger: logger}
}

// Run decodes every path and calls fn with each result as it completes. fn
// may be called concurrently. A failed file is logged and does not stop the
// batch. Run returns the results in input order, or the context error if
// cancelled before every file was started.
func (b *Batch) Run(ctx context.Context, paths []string, fn func(FileResult)) ([]FileResult, error) {
	results := make([]FileResult, len(paths))
	for i, path := range paths {
		results[i].Path = path
	}
	sema := semaphore.NewWeighted(b.workers)
	var runErr error
	for i, path := range paths {
		if err := sema.Acquire(ctx, 1); err != nil {
			runErr = err
			break
		}
		go func() {
			defer sema.Release(1)
			start := time.Now()
			v, err := b.decoder.DecodeFile(ctx, path)
			res := FileResult{Path: path, Volume: v, Err: err, Duration: time.Since(start)}
			if err != nil {
				b.logger.Warn("decode failed, skipping file", "file", path, "error", err)
			}
			results[i] = res
			if fn != nil {
				fn(res)
			}
		}()
	}
	// Wait for in-flight decodes even when cancelled.
	_ = sema.Acquire(context.Background(), b.workers)
	return results, runErr
}

// Failed returns the results that carry an error.
func Failed(results []FileResult) []FileResult {
	var out []FileResult
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
