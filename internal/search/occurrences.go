package search

import (
	"fmt"

	"github.com/asheshgoplani/pgrepwc/internal/match"
)

// Mode selects what a run counts.
type Mode int

const (
	// ModeCount counts word occurrences in matching lines.
	ModeCount Mode = iota
	// ModeLines counts matching lines.
	ModeLines
)

func (m Mode) String() string {
	switch m {
	case ModeCount:
		return "count"
	case ModeLines:
		return "lines"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode maps "count" and "lines" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "count", "":
		return ModeCount, nil
	case "lines":
		return ModeLines, nil
	}
	return ModeCount, fmt.Errorf("unknown mode %q", s)
}

// Occurrences holds, per word slot, the count of that word on every line that
// passed the classifier. Line keys are line indices within the file.
type Occurrences struct {
	slots [match.MaxWords]map[int]int
}

// NewOccurrences returns an empty table.
func NewOccurrences() *Occurrences {
	o := &Occurrences{}
	for i := range o.slots {
		o.slots[i] = make(map[int]int)
	}
	return o
}

// Record stores the nonzero counts of one line.
func (o *Occurrences) Record(line int, counts []int) {
	for slot, c := range counts {
		if c > 0 {
			o.slots[slot][line] += c
		}
	}
}

// Values reduces the table to one number per slot.
// Count mode sums the per-line counts of each word. Lines mode counts the
// distinct lines of each word, or with allWords the distinct lines across
// every word, stored in slot 0.
func (o *Occurrences) Values(mode Mode, allWords bool) [match.MaxWords]int {
	var v [match.MaxWords]int
	switch {
	case mode == ModeCount:
		for slot, lines := range o.slots {
			for _, c := range lines {
				v[slot] += c
			}
		}
	case allWords:
		distinct := make(map[int]struct{})
		for _, lines := range o.slots {
			for line := range lines {
				distinct[line] = struct{}{}
			}
		}
		v[0] = len(distinct)
	default:
		for slot, lines := range o.slots {
			v[slot] = len(lines)
		}
	}
	return v
}
