package report

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"

	"github.com/asheshgoplani/pgrepwc/internal/search"
)

// View describes what a run counts, for labelling output.
type View struct {
	Words    []string
	Mode     search.Mode
	AllWords bool
}

// Printer writes run output. It implements search.Observer; every write is
// serialized so lines from concurrent workers never interleave.
type Printer struct {
	mu      sync.Mutex
	out     io.Writer
	st      Styles
	view    View
	bar     progress.Model
	suggest func(path string) []string
	quiet   bool
}

// PrinterOption configures a Printer.
type PrinterOption func(*Printer)

// WithSuggest sets the lookup used to propose files for a missing path.
func WithSuggest(fn func(path string) []string) PrinterOption {
	return func(p *Printer) { p.suggest = fn }
}

// WithQuiet suppresses per-file summaries and progress lines. Errors are
// still written.
func WithQuiet() PrinterOption {
	return func(p *Printer) { p.quiet = true }
}

// NewPrinter returns a Printer writing to out with styles st.
func NewPrinter(out io.Writer, st Styles, view View, opts ...PrinterOption) *Printer {
	p := &Printer{
		out:  out,
		st:   st,
		view: view,
		bar: progress.New(
			progress.WithWidth(30),
			progress.WithSolidFill(string(st.palette.Accent)),
			progress.WithColorProfile(st.Profile()),
		),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// FileDone prints the summary of one scanned range.
func (p *Printer) FileDone(c search.Completion) {
	if p.quiet {
		return
	}
	var b strings.Builder
	b.WriteString(p.st.File.Render("File "+c.Path+":") + "\n")
	p.writeValues(&b, c.Values)
	p.write(b.String())
}

// FileFailed prints an error line, with suggestions when the file is missing.
func (p *Printer) FileFailed(path string, err error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %v\n", p.st.Error.Render("error:"), path, err)
	if p.suggest != nil && errors.Is(err, fs.ErrNotExist) {
		if alts := p.suggest(path); len(alts) > 0 {
			fmt.Fprintf(&b, "  %s %s\n", p.st.Dim.Render("did you mean:"), strings.Join(alts, ", "))
		}
	}
	p.write(b.String())
}

// Progress prints one progress line followed by running totals.
func (p *Printer) Progress(s search.Snapshot) {
	if p.quiet {
		return
	}
	var b strings.Builder
	percent := 0.0
	if s.LinesTotal > 0 {
		percent = float64(s.LinesDone) / float64(s.LinesTotal)
	}
	fmt.Fprintf(&b, "%s files done %s, in flight %s, elapsed %s µs\n",
		p.st.Dim.Render("[progress]"),
		p.st.Value.Render(fmt.Sprint(s.FilesDone)),
		p.st.Value.Render(fmt.Sprint(s.FilesInFlight)),
		p.st.Value.Render(fmt.Sprint(s.Elapsed.Microseconds())))
	p.writeValues(&b, s.Totals)
	fmt.Fprintf(&b, "\t%s %d/%d lines\n", p.bar.ViewAs(percent), s.LinesDone, s.LinesTotal)
	p.write(b.String())
}

// Totals prints the run totals. The block is skipped for a completed run
// that scanned at most one file, since the file summary already shows the
// same numbers.
func (p *Printer) Totals(res *search.Result) {
	if !res.Partial && scannedFiles(res.Completions) <= 1 {
		return
	}
	var b strings.Builder
	if res.Partial {
		b.WriteString(p.st.Partial.Render("Total so far (interrupted):") + "\n")
	} else {
		b.WriteString(p.st.Total.Render("Total:") + "\n")
	}
	p.writeValues(&b, res.Totals)
	p.write(b.String())
}

// scannedFiles counts the distinct paths among completions. Files that were
// empty or failed to index have none.
func scannedFiles(cs []search.Completion) int {
	paths := make(map[string]struct{}, len(cs))
	for _, c := range cs {
		paths[c.Path] = struct{}{}
	}
	return len(paths)
}

// Elapsed prints the run duration in microseconds.
func (p *Printer) Elapsed(d time.Duration) {
	p.write(fmt.Sprintf("%s %s\n", p.st.Value.Render(fmt.Sprint(d.Microseconds())), p.st.Dim.Render("microseconds.")))
}

// Notice prints an informational line.
func (p *Printer) Notice(format string, args ...any) {
	p.write(p.st.Warn.Render(fmt.Sprintf(format, args...)) + "\n")
}

// Values prints one block of per-word values.
func (p *Printer) Values(values [3]int) {
	var b strings.Builder
	p.writeValues(&b, values)
	p.write(b.String())
}

func (p *Printer) writeValues(b *strings.Builder, values [3]int) {
	switch {
	case p.view.Mode == search.ModeCount:
		for i, w := range p.view.Words {
			fmt.Fprintf(b, "\tword %s occurs %s times.\n", p.st.Word.Render(w), p.st.Value.Render(fmt.Sprint(values[i])))
		}
	case p.view.AllWords:
		fmt.Fprintf(b, "\t%s lines match the search.\n", p.st.Value.Render(fmt.Sprint(values[0])))
	default:
		for i, w := range p.view.Words {
			fmt.Fprintf(b, "\tword %s occurs in %s lines.\n", p.st.Word.Render(w), p.st.Value.Render(fmt.Sprint(values[i])))
		}
	}
}

func (p *Printer) write(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	io.WriteString(p.out, s)
}
