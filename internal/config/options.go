package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/asheshgoplani/pgrepwc/internal/match"
)

var (
	// ErrTooManyWords and ErrNoWords are the matcher's sentinels.
	ErrTooManyWords = match.ErrTooManyWords
	ErrNoWords      = match.ErrNoWords

	ErrBadParallelism          = errors.New("parallelism must be zero or positive")
	ErrParallelismExceedsFiles = errors.New("parallelism cannot exceed the number of files")
	ErrModeConflict            = errors.New("-c and -l cannot be used together")
	ErrNoFiles                 = errors.New("at least one file is required")
	ErrBadInterval             = errors.New("progress interval must be zero or positive")
)

// ValidationError reports an invalid run option. It wraps one of the
// sentinels above.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// Options are the run options after flag parsing.
type Options struct {
	Words       []string
	Files       []string
	AllWords    bool
	CountMode   bool
	LinesMode   bool
	Parallelism int
	// Interval is the progress interval; zero disables progress output.
	Interval   time.Duration
	OutputPath string
	Watch      bool
	JSON       bool
}

// Validate checks o and returns the compiled word set. Files are
// deduplicated in place, keeping the first occurrence.
func (o *Options) Validate() (*match.WordSet, error) {
	if o.CountMode && o.LinesMode {
		return nil, invalid("mode", ErrModeConflict)
	}
	ws, err := match.Compile(o.Words)
	if err != nil {
		return nil, invalid("words", err)
	}
	o.Files = Dedupe(o.Files)
	if len(o.Files) == 0 {
		return nil, invalid("files", ErrNoFiles)
	}
	if o.Parallelism < 0 {
		return nil, invalid("parallelism", ErrBadParallelism)
	}
	if o.Parallelism > len(o.Files) {
		return nil, invalid("parallelism", fmt.Errorf("%w (%d > %d)", ErrParallelismExceedsFiles, o.Parallelism, len(o.Files)))
	}
	if o.Interval < 0 {
		return nil, invalid("interval", ErrBadInterval)
	}
	return ws, nil
}

// Dedupe drops empty and repeated entries, keeping first occurrences.
func Dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := items[:0:0]
	for _, it := range items {
		if it == "" || seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}
