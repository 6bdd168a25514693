// Package index builds line-offset tables for the files a run scans.
package index

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/asheshgoplani/pgrepwc/internal/logging"
)

var indexLog = logging.ForComponent(logging.CompIndex)

// DefaultConcurrency bounds BuildAll when the caller passes limit <= 0.
const DefaultConcurrency = 4

// FileIndex records where every line of a file starts.
// It is read-only once built.
type FileIndex struct {
	Path      string
	LineCount int
	// Offsets[i] is the byte offset at which line i starts.
	Offsets []int64
	Size    int64
}

// LineStart returns the offset of line i, or Size when i == LineCount.
func (fi FileIndex) LineStart(i int) int64 {
	if i >= fi.LineCount {
		return fi.Size
	}
	return fi.Offsets[i]
}

// Failure pairs a path with the error that kept it from being indexed.
type Failure struct {
	Path string
	Err  error
}

func (f Failure) Error() string { return fmt.Sprintf("%s: %v", f.Path, f.Err) }

func (f Failure) Unwrap() error { return f.Err }

// Build scans path once and returns its line offsets. A trailing line
// without a newline still counts as a line.
func Build(path string) (FileIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileIndex{Path: path}, fmt.Errorf("index: open: %w", err)
	}
	defer f.Close()

	fi, err := scan(path, f)
	if err != nil {
		return FileIndex{Path: path}, fmt.Errorf("index: read %s: %w", path, err)
	}
	return fi, nil
}

func scan(path string, r io.Reader) (FileIndex, error) {
	fi := FileIndex{Path: path}
	br := bufio.NewReaderSize(r, 64*1024)
	var pos int64
	atLineStart := true
	for {
		chunk, err := br.ReadSlice('\n')
		if len(chunk) > 0 {
			if atLineStart {
				fi.Offsets = append(fi.Offsets, pos)
			}
			pos += int64(len(chunk))
			atLineStart = chunk[len(chunk)-1] == '\n'
		}
		if err == nil {
			continue
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		return fi, err
	}
	fi.LineCount = len(fi.Offsets)
	fi.Size = pos
	return fi, nil
}

// BuildAll indexes paths with at most limit files open at once. The result
// has one entry per path in input order; a file that failed is returned with
// zero lines and listed in the failures slice. Only context cancellation
// aborts the whole call.
func BuildAll(ctx context.Context, paths []string, limit int) ([]FileIndex, []Failure, error) {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	out := make([]FileIndex, len(paths))
	errs := make([]error, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fi, err := Build(p)
			out[i] = fi
			errs[i] = err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var failures []Failure
	for i, err := range errs {
		if err == nil {
			indexLog.Debug("file_indexed",
				slog.String("path", paths[i]),
				slog.Int("lines", out[i].LineCount),
				slog.Int64("bytes", out[i].Size))
			continue
		}
		indexLog.Warn("index_failed", slog.String("path", paths[i]), slog.String("error", err.Error()))
		failures = append(failures, Failure{Path: paths[i], Err: err})
	}
	return out, failures, nil
}

// TotalLines sums LineCount over files.
func TotalLines(files []FileIndex) int {
	n := 0
	for _, f := range files {
		n += f.LineCount
	}
	return n
}
