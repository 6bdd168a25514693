// Package search runs the parallel scan: it partitions indexed files across
// workers, matches every line and merges per-range results into run totals.
package search

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/asheshgoplani/pgrepwc/internal/index"
	"github.com/asheshgoplani/pgrepwc/internal/logging"
	"github.com/asheshgoplani/pgrepwc/internal/match"
	"github.com/asheshgoplani/pgrepwc/internal/partition"
)

var runLog = logging.ForComponent(logging.CompWorker)

// Settings configures one run.
type Settings struct {
	Words    *match.WordSet
	Mode     Mode
	AllWords bool
	// Parallelism is the number of worker goroutines. Zero scans inline on
	// the calling goroutine as worker 0.
	Parallelism int
	// Interval enables progress snapshots when positive.
	Interval time.Duration
	// MaxBytesPerSec throttles reads across all workers when positive.
	MaxBytesPerSec int
	// IndexConcurrency bounds concurrent indexing in RunPaths.
	IndexConcurrency int
}

// Result is the outcome of a run.
type Result struct {
	Start       time.Time
	Elapsed     time.Duration
	Totals      [match.MaxWords]int
	Completions []Completion
	Files       []index.FileIndex
	Failures    []index.Failure
	// Partial is set when the run was cancelled before every range was scanned.
	Partial bool
}

// Workers returns the number of workers used by a run with parallelism p.
func Workers(p int) int {
	return max(p, 1)
}

// Run scans files and returns the merged totals. Cancelling ctx stops every
// worker at its next range boundary and yields a partial Result, not an error.
func Run(ctx context.Context, files []index.FileIndex, s Settings, obs Observer) (*Result, error) {
	if s.Words == nil {
		return nil, match.ErrNoWords
	}
	if obs == nil {
		obs = NopObserver{}
	}
	start := time.Now()

	parts := partition.Split(files, Workers(s.Parallelism))
	agg := NewAggregator(parts)

	var limiter *rate.Limiter
	if s.MaxBytesPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.MaxBytesPerSec), s.MaxBytesPerSec)
	}

	reporter := NewReporter(agg, obs, s.Interval)
	reporter.Start()

	if s.Parallelism == 0 {
		newWorker(0, parts[0], s, agg, obs, limiter).run(ctx)
	} else {
		var g errgroup.Group
		for i, p := range parts {
			if p.Empty() {
				continue
			}
			w := newWorker(i+1, p, s, agg, obs, limiter)
			g.Go(func() error {
				w.run(ctx)
				return nil
			})
		}
		_ = g.Wait()
	}
	reporter.Stop()

	res := &Result{
		Start:       start,
		Elapsed:     time.Since(start),
		Totals:      agg.Totals(),
		Completions: agg.Completions(),
		Files:       files,
		Partial:     ctx.Err() != nil && agg.Outstanding() > 0,
	}
	runLog.Info("run_finished",
		slog.Int("workers", Workers(s.Parallelism)),
		slog.Int("files", len(files)),
		slog.Int("ranges", len(res.Completions)),
		slog.Bool("partial", res.Partial),
		slog.Duration("elapsed", res.Elapsed))
	return res, nil
}

// RunPaths indexes paths and then runs. Files that cannot be indexed are
// reported to obs, contribute zero lines, and are listed in Result.Failures.
func RunPaths(ctx context.Context, paths []string, s Settings, obs Observer) (*Result, error) {
	if obs == nil {
		obs = NopObserver{}
	}
	started := time.Now()
	files, failures, err := index.BuildAll(ctx, paths, s.IndexConcurrency)
	if err != nil {
		if ctx.Err() != nil {
			return &Result{Start: started, Elapsed: time.Since(started), Partial: true}, nil
		}
		return nil, err
	}
	for _, f := range failures {
		obs.FileFailed(f.Path, f.Err)
	}

	res, err := Run(ctx, files, s, obs)
	if err != nil {
		return nil, err
	}
	res.Start = started
	res.Elapsed = time.Since(started)
	res.Failures = failures
	return res, nil
}
