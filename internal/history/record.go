// Package history reads and writes the binary record of a finished run and
// exports it as JSON or YAML.
package history

import (
	"cmp"
	"slices"
	"time"

	"github.com/asheshgoplani/pgrepwc/internal/match"
	"github.com/asheshgoplani/pgrepwc/internal/search"
)

// Record describes one run. Times are unix microseconds and durations are
// microseconds.
type Record struct {
	Start       int64     `json:"start" yaml:"start"`
	Duration    int64     `json:"duration_us" yaml:"duration_us"`
	Parallelism int       `json:"parallelism" yaml:"parallelism"`
	AllWords    bool      `json:"all_words" yaml:"all_words"`
	Count       bool      `json:"count" yaml:"count"`
	Interval    float64   `json:"interval_s" yaml:"interval_s"`
	Words       []string  `json:"words" yaml:"words"`
	Partial     bool      `json:"partial" yaml:"partial"`
	Processes   []Process `json:"processes" yaml:"processes"`
}

// Process groups the files scanned by one worker.
type Process struct {
	ID    int          `json:"id" yaml:"id"`
	Files []FileRecord `json:"files" yaml:"files"`
}

// FileRecord is one range scanned by a worker.
type FileRecord struct {
	Path        string              `json:"path" yaml:"path"`
	Duration    int64               `json:"duration_us" yaml:"duration_us"`
	Lines       int                 `json:"lines" yaml:"lines"`
	Occurrences [match.MaxWords]int `json:"occurrences" yaml:"occurrences"`
}

// Meta carries the run options that are not part of a search.Result.
type Meta struct {
	Words       []string
	Mode        search.Mode
	AllWords    bool
	Parallelism int
	Interval    time.Duration
}

// FromResult builds a Record. Workers are listed by id; each worker's files
// keep commit order.
func FromResult(res *search.Result, m Meta) *Record {
	rec := &Record{
		Start:       res.Start.UnixMicro(),
		Duration:    res.Elapsed.Microseconds(),
		Parallelism: m.Parallelism,
		AllWords:    m.AllWords,
		Count:       m.Mode == search.ModeCount,
		Interval:    m.Interval.Seconds(),
		Words:       slices.Clone(m.Words),
		Partial:     res.Partial,
	}

	byWorker := make(map[int]int)
	for _, c := range res.Completions {
		i, ok := byWorker[c.Worker]
		if !ok {
			i = len(rec.Processes)
			byWorker[c.Worker] = i
			rec.Processes = append(rec.Processes, Process{ID: c.Worker})
		}
		rec.Processes[i].Files = append(rec.Processes[i].Files, FileRecord{
			Path:        c.Path,
			Duration:    c.Elapsed.Microseconds(),
			Lines:       c.Lines,
			Occurrences: c.Values,
		})
	}
	slices.SortStableFunc(rec.Processes, func(a, b Process) int { return cmp.Compare(a.ID, b.ID) })
	return rec
}

// StartTime returns Start as a time.Time.
func (r *Record) StartTime() time.Time { return time.UnixMicro(r.Start) }

// Elapsed returns Duration as a time.Duration.
func (r *Record) Elapsed() time.Duration { return time.Duration(r.Duration) * time.Microsecond }

// Totals sums the per-file occurrences.
func (r *Record) Totals() [match.MaxWords]int {
	var t [match.MaxWords]int
	for _, p := range r.Processes {
		for _, f := range p.Files {
			for i, v := range f.Occurrences {
				t[i] += v
			}
		}
	}
	return t
}
