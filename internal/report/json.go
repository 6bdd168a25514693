package report

import (
	"encoding/json"
	"io"

	"github.com/asheshgoplani/pgrepwc/internal/search"
)

// Summary is the --json form of a run.
type Summary struct {
	Words     []string       `json:"words"`
	Mode      string         `json:"mode"`
	AllWords  bool           `json:"all_words"`
	Totals    map[string]int `json:"totals"`
	Partial   bool           `json:"partial"`
	ElapsedUs int64          `json:"elapsed_us"`
	Files     []FileSummary  `json:"files"`
	Failures  []FailureJSON  `json:"failures,omitempty"`
}

// FileSummary is one completed range.
type FileSummary struct {
	Worker    int    `json:"worker"`
	Path      string `json:"path"`
	FirstLine int    `json:"first_line"`
	Lines     int    `json:"lines"`
	ElapsedUs int64  `json:"elapsed_us"`
	Values    []int  `json:"values"`
}

// FailureJSON is a file that could not be indexed.
type FailureJSON struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// NewSummary converts res for JSON output. In lines mode with all words the
// single value is keyed "*".
func NewSummary(res *search.Result, v View) Summary {
	s := Summary{
		Words:     v.Words,
		Mode:      v.Mode.String(),
		AllWords:  v.AllWords,
		Totals:    make(map[string]int),
		Partial:   res.Partial,
		ElapsedUs: res.Elapsed.Microseconds(),
		Files:     make([]FileSummary, 0, len(res.Completions)),
	}
	joint := v.Mode == search.ModeLines && v.AllWords
	if joint {
		s.Totals["*"] = res.Totals[0]
	} else {
		for i, w := range v.Words {
			s.Totals[w] = res.Totals[i]
		}
	}
	for _, c := range res.Completions {
		n := len(v.Words)
		if joint {
			n = 1
		}
		s.Files = append(s.Files, FileSummary{
			Worker:    c.Worker,
			Path:      c.Path,
			FirstLine: c.Range.FirstLine,
			Lines:     c.Lines,
			ElapsedUs: c.Elapsed.Microseconds(),
			Values:    append([]int(nil), c.Values[:n]...),
		})
	}
	for _, f := range res.Failures {
		s.Failures = append(s.Failures, FailureJSON{Path: f.Path, Error: f.Err.Error()})
	}
	return s
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
