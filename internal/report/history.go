package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/asheshgoplani/pgrepwc/internal/history"
)

// labelColumn is where dotted labels end and values begin.
const labelColumn = 36

// maxPathWidth bounds file paths in the history view.
const maxPathWidth = 72

// dotted pads label with dots up to labelColumn display cells.
func dotted(st Styles, label string) string {
	pad := labelColumn - runewidth.StringWidth(label) - 1
	if pad < 2 {
		pad = 2
	}
	return st.Label.Render(label) + " " + st.Dim.Render(strings.Repeat(".", pad)) + " "
}

// FormatMicros renders a microsecond duration as h:mm:ss:micro.
func FormatMicros(us int64) string {
	d := time.Duration(us) * time.Microsecond
	h := int64(d / time.Hour)
	d -= time.Duration(h) * time.Hour
	m := int64(d / time.Minute)
	d -= time.Duration(m) * time.Minute
	s := int64(d / time.Second)
	d -= time.Duration(s) * time.Second
	return fmt.Sprintf("%d:%02d:%02d:%06d", h, m, s, d.Microseconds())
}

// RenderHistory writes a human-readable view of rec.
func RenderHistory(w io.Writer, st Styles, rec *history.Record) error {
	var b strings.Builder
	value := func(label, v string) {
		b.WriteString(dotted(st, label) + st.Value.Render(v) + "\n")
	}

	value("Search started", rec.StartTime().Format("02/01/06 15:04:05.000000"))
	value("Duration", FormatMicros(rec.Duration))
	value("Workers", fmt.Sprint(rec.Parallelism))
	value("All-words mode (-a)", yesNo(rec.AllWords))
	value("Words", strings.Join(rec.Words, ", "))
	if rec.Interval > 0 {
		value("Progress interval", fmt.Sprintf("%gs", rec.Interval))
	}
	if rec.Partial {
		b.WriteString(st.Partial.Render("Run was interrupted; totals are partial.") + "\n")
	}

	unit := "lines"
	if rec.Count {
		unit = "occurrences"
	}
	for _, p := range rec.Processes {
		b.WriteString(st.File.Render(fmt.Sprintf("Worker %d", p.ID)) + "\n")
		for _, f := range p.Files {
			b.WriteString("  " + st.Word.Render("file: "+runewidth.Truncate(f.Path, maxPathWidth, "…")) + "\n")
			b.WriteString("    " + dotted(st, "scan time") + st.Value.Render(FormatMicros(f.Duration)) + "\n")
			b.WriteString("    " + dotted(st, "lines scanned") + st.Value.Render(fmt.Sprint(f.Lines)) + "\n")
			for i := range rec.Words {
				if !rec.Count && rec.AllWords && i > 0 {
					break
				}
				label := fmt.Sprintf("%s of %s", unit, rec.Words[i])
				if !rec.Count && rec.AllWords {
					label = "lines matching all words"
				}
				b.WriteString("    " + dotted(st, label) + st.Value.Render(fmt.Sprint(f.Occurrences[i])) + "\n")
			}
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
