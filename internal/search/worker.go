package search

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/asheshgoplani/pgrepwc/internal/logging"
	"github.com/asheshgoplani/pgrepwc/internal/match"
	"github.com/asheshgoplani/pgrepwc/internal/partition"
)

var workerLog = logging.ForComponent(logging.CompWorker)

// Observer receives run events. Calls may arrive from several workers at
// once; implementations serialize their own output.
type Observer interface {
	// FileDone is called after a range has been committed.
	FileDone(c Completion)
	// FileFailed is called when a file cannot be indexed or a range cannot be read.
	FileFailed(path string, err error)
	// Progress is called on every reporter tick.
	Progress(s Snapshot)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) FileDone(Completion)      {}
func (NopObserver) FileFailed(string, error) {}
func (NopObserver) Progress(Snapshot)        {}

type worker struct {
	id       int
	part     partition.Partition
	words    *match.WordSet
	mode     Mode
	allWords bool
	agg      *Aggregator
	obs      Observer
	limiter  *rate.Limiter
	norm     *match.Normalizer
	counts   []int
}

func newWorker(id int, part partition.Partition, s Settings, agg *Aggregator, obs Observer, limiter *rate.Limiter) *worker {
	return &worker{
		id:       id,
		part:     part,
		words:    s.Words,
		mode:     s.Mode,
		allWords: s.AllWords,
		agg:      agg,
		obs:      obs,
		limiter:  limiter,
		norm:     match.NewNormalizer(),
		counts:   make([]int, match.MaxWords),
	}
}

// run scans the worker's ranges in order. Cancellation is checked between
// ranges only, so a range that has started is always committed.
func (w *worker) run(ctx context.Context) {
	for _, r := range w.part.Ranges {
		if ctx.Err() != nil {
			workerLog.Debug("worker_stopped", slog.Int("worker", w.id), slog.String("next_path", r.Path))
			return
		}
		w.agg.Begin(r.Path)
		c, err := w.scan(context.WithoutCancel(ctx), r)
		if err != nil {
			workerLog.Warn("range_failed",
				slog.Int("worker", w.id),
				slog.String("path", r.Path),
				slog.String("error", err.Error()))
			w.agg.Fail(r)
			w.obs.FileFailed(r.Path, err)
			continue
		}
		w.agg.Commit(c)
		w.obs.FileDone(c)
	}
}

func (w *worker) scan(ctx context.Context, r partition.Range) (Completion, error) {
	started := time.Now()
	c := Completion{Worker: w.id, Path: r.Path, Range: r}

	f, err := os.Open(r.Path)
	if err != nil {
		return c, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	if _, err := f.Seek(r.Start, io.SeekStart); err != nil {
		return c, fmt.Errorf("seek %d: %w", r.Start, err)
	}

	occ := NewOccurrences()
	br := bufio.NewReaderSize(f, 64*1024)
	pos := r.Start
	line := r.FirstLine
	for r.ToEOF() || pos < r.End {
		text, err := br.ReadString('\n')
		if len(text) > 0 {
			pos += int64(len(text))
			if werr := w.throttle(ctx, len(text)); werr != nil {
				return c, werr
			}
			w.matchLine(occ, line, text)
			line++
			c.Lines++
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return c, fmt.Errorf("read at %d: %w", pos, err)
		}
	}

	c.Values = occ.Values(w.mode, w.allWords)
	c.Elapsed = time.Since(started)
	return c, nil
}

func (w *worker) matchLine(occ *Occurrences, line int, text string) {
	text = strings.TrimRight(text, "\r\n")
	if text == "" {
		return
	}
	counts := w.words.Count(w.norm.String(text), w.counts)
	if match.Classify(counts, w.allWords) {
		occ.Record(line, counts)
	}
}

// throttle blocks until n bytes may be read. Requests larger than the
// limiter's burst are split.
func (w *worker) throttle(ctx context.Context, n int) error {
	if w.limiter == nil {
		return nil
	}
	burst := w.limiter.Burst()
	waited := false
	for n > 0 {
		step := min(n, burst)
		if !w.limiter.AllowN(time.Now(), step) {
			waited = true
			if err := w.limiter.WaitN(ctx, step); err != nil {
				return fmt.Errorf("throttle: %w", err)
			}
		}
		n -= step
	}
	if waited {
		logging.Aggregate(logging.CompWorker, "throttle_wait", slog.Int("worker", w.id))
	}
	return nil
}
