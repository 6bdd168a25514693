// Package partition splits indexed files into balanced, line-aligned byte
// ranges, one list of ranges per worker.
package partition

import (
	"log/slog"

	"github.com/asheshgoplani/pgrepwc/internal/index"
	"github.com/asheshgoplani/pgrepwc/internal/logging"
)

var partLog = logging.ForComponent(logging.CompPartition)

// EOF as a Range end means "read to the end of the file".
const EOF int64 = -1

// Range is a contiguous run of whole lines inside one file.
type Range struct {
	Path  string
	Start int64
	End   int64
	// FirstLine is the index of the line at Start within the file.
	FirstLine int
	Lines     int
}

// ToEOF reports whether the range runs to the end of its file.
func (r Range) ToEOF() bool { return r.End == EOF }

// Partition is the ordered work list of one worker.
type Partition struct {
	Ranges []Range
}

// Lines returns the number of lines across all ranges.
func (p Partition) Lines() int {
	n := 0
	for _, r := range p.Ranges {
		n += r.Lines
	}
	return n
}

// Empty reports whether the partition has nothing to scan.
func (p Partition) Empty() bool { return len(p.Ranges) == 0 }

// PerPartition returns ceil(total/n), the most lines any partition holds.
func PerPartition(total, n int) int {
	if n <= 0 || total <= 0 {
		return 0
	}
	return (total + n - 1) / n
}

// Split divides files into exactly n partitions (n < 1 is treated as 1).
// Files are walked in order and each partition is filled up to
// PerPartition(total, n) lines before the next one opens. Files with no
// lines contribute no range; surplus partitions stay empty.
func Split(files []index.FileIndex, n int) []Partition {
	if n < 1 {
		n = 1
	}
	parts := make([]Partition, n)
	total := index.TotalLines(files)
	per := PerPartition(total, n)
	if per == 0 {
		return parts
	}

	cur := 0
	filled := 0
	for _, f := range files {
		line := 0
		for line < f.LineCount {
			if filled == per {
				cur++
				filled = 0
			}
			take := min(f.LineCount-line, per-filled)
			r := Range{
				Path:      f.Path,
				Start:     f.LineStart(line),
				End:       EOF,
				FirstLine: line,
				Lines:     take,
			}
			line += take
			if line < f.LineCount {
				r.End = f.LineStart(line)
			}
			parts[cur].Ranges = append(parts[cur].Ranges, r)
			filled += take
		}
	}

	partLog.Debug("split",
		slog.Int("files", len(files)),
		slog.Int("lines", total),
		slog.Int("partitions", n),
		slog.Int("per_partition", per))
	return parts
}
