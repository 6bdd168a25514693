package search

import (
	"log/slog"
	"sync"
	"time"

	"github.com/asheshgoplani/pgrepwc/internal/logging"
	"github.com/asheshgoplani/pgrepwc/internal/match"
	"github.com/asheshgoplani/pgrepwc/internal/partition"
)

var aggLog = logging.ForComponent(logging.CompAggregate)

// Completion is what one worker reports after scanning one range.
type Completion struct {
	Worker  int
	Path    string
	Range   partition.Range
	Elapsed time.Duration
	Lines   int
	Values  [match.MaxWords]int
}

// Snapshot is a consistent view of a run in progress.
type Snapshot struct {
	FilesDone     int
	FilesInFlight int
	Elapsed       time.Duration
	Totals        [match.MaxWords]int
	LinesDone     int
	LinesTotal    int
}

type fileState struct {
	outstanding int
	started     bool
}

// Aggregator merges worker completions into global totals.
// All methods are safe for concurrent use.
type Aggregator struct {
	start time.Time

	mu          sync.Mutex
	totals      [match.MaxWords]int
	files       map[string]*fileState
	filesDone   int
	outstanding int
	inFlight    int
	linesDone   int
	linesTotal  int
	completions []Completion
}

// NewAggregator prepares an aggregator for the ranges in parts.
func NewAggregator(parts []partition.Partition) *Aggregator {
	a := &Aggregator{
		start: time.Now(),
		files: make(map[string]*fileState),
	}
	for _, p := range parts {
		for _, r := range p.Ranges {
			fs, ok := a.files[r.Path]
			if !ok {
				fs = &fileState{}
				a.files[r.Path] = fs
			}
			fs.outstanding++
			a.outstanding++
			a.linesTotal += r.Lines
		}
	}
	return a
}

// Begin marks a range of path as being scanned.
func (a *Aggregator) Begin(path string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fs, ok := a.files[path]
	if !ok || fs.started {
		return
	}
	fs.started = true
	a.inFlight++
}

// Commit adds a completed range to the totals.
func (a *Aggregator) Commit(c Completion) {
	a.mu.Lock()
	for i, v := range c.Values {
		a.totals[i] += v
	}
	a.linesDone += c.Lines
	a.completions = append(a.completions, c)
	a.finishRange(c.Path)
	a.mu.Unlock()

	logging.Aggregate(logging.CompAggregate, "range_committed",
		slog.Int("worker", c.Worker),
		slog.String("path", c.Path))
}

// Fail marks a range as finished without contributing to the totals.
func (a *Aggregator) Fail(r partition.Range) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.finishRange(r.Path)
	aggLog.Debug("range_failed", slog.String("path", r.Path), slog.Int("first_line", r.FirstLine))
}

// finishRange must be called with mu held.
func (a *Aggregator) finishRange(path string) {
	fs, ok := a.files[path]
	if !ok || fs.outstanding == 0 {
		return
	}
	fs.outstanding--
	a.outstanding--
	if fs.outstanding == 0 {
		a.filesDone++
		if fs.started {
			a.inFlight--
		}
	}
}

// Totals returns the current totals.
func (a *Aggregator) Totals() [match.MaxWords]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totals
}

// Snapshot returns the current progress.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Snapshot{
		FilesDone:     a.filesDone,
		FilesInFlight: a.inFlight,
		Elapsed:       time.Since(a.start),
		Totals:        a.totals,
		LinesDone:     a.linesDone,
		LinesTotal:    a.linesTotal,
	}
}

// Outstanding returns the number of ranges neither committed nor failed.
func (a *Aggregator) Outstanding() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outstanding
}

// Completions returns the committed completions in commit order.
func (a *Aggregator) Completions() []Completion {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Completion, len(a.completions))
	copy(out, a.completions)
	return out
}
