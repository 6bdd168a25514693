package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/asheshgoplani/pgrepwc/internal/config"
	"github.com/asheshgoplani/pgrepwc/internal/history"
	"github.com/asheshgoplani/pgrepwc/internal/report"
	"github.com/asheshgoplani/pgrepwc/internal/search"
	"github.com/asheshgoplani/pgrepwc/internal/statedb"
)

// runJSON is the JSON form of a recorded run.
type runJSON struct {
	ID          string        `json:"id"`
	StartedAt   time.Time     `json:"started_at"`
	DurationUs  int64         `json:"duration_us"`
	Words       []string      `json:"words"`
	Mode        string        `json:"mode"`
	AllWords    bool          `json:"all_words"`
	Parallelism int           `json:"parallelism"`
	Partial     bool          `json:"partial"`
	Totals      [3]int        `json:"totals"`
	FileCount   int           `json:"file_count"`
	HistoryPath string        `json:"history_path,omitempty"`
	Last        bool          `json:"last,omitempty"`
	Files       []runFileJSON `json:"files,omitempty"`
}

type runFileJSON struct {
	Worker     int    `json:"worker"`
	Path       string `json:"path"`
	Lines      int    `json:"lines"`
	DurationUs int64  `json:"duration_us"`
	Values     [3]int `json:"values"`
}

func toRunJSON(r *statedb.RunRow, files []*statedb.RunFileRow) runJSON {
	out := runJSON{
		ID:          r.ID,
		StartedAt:   r.StartedAt,
		DurationUs:  r.Duration.Microseconds(),
		Words:       r.Words,
		Mode:        r.Mode,
		AllWords:    r.AllWords,
		Parallelism: r.Parallelism,
		Partial:     r.Partial,
		Totals:      r.Totals,
		FileCount:   r.FileCount,
		HistoryPath: r.HistoryPath,
	}
	for _, f := range files {
		out.Files = append(out.Files, runFileJSON{
			Worker:     f.Worker,
			Path:       f.Path,
			Lines:      f.Lines,
			DurationUs: f.Duration.Microseconds(),
			Values:     f.Values,
		})
	}
	return out
}

// handleRuns dispatches runs subcommands
func (c *cli) handleRuns(args []string) int {
	if len(args) == 0 {
		return c.handleRunsList(nil)
	}

	switch args[0] {
	case "list", "ls":
		return c.handleRunsList(args[1:])
	case "show":
		return c.handleRunsShow(args[1:])
	case "delete", "rm":
		return c.handleRunsDelete(args[1:])
	case "prune":
		return c.handleRunsPrune(args[1:])
	case "import":
		return c.handleRunsImport(args[1:])
	case "help", "--help", "-h":
		c.printRunsHelp()
		return exitOK
	default:
		if strings.HasPrefix(args[0], "-") {
			return c.handleRunsList(args)
		}
		fmt.Fprintf(c.stderr, "Unknown runs command: %s\n\n", args[0])
		c.printRunsHelp()
		return exitUsage
	}
}

func (c *cli) printRunsHelp() {
	w := c.stdout
	fmt.Fprintln(w, "Usage: pgrepwc runs <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  list [-n N] [--json]     List recorded runs, newest first")
	fmt.Fprintln(w, "  show <id> [--json]       Show one run and its files")
	fmt.Fprintln(w, "  delete <id>              Delete one run")
	fmt.Fprintln(w, "  prune --keep N           Delete all but the newest N runs")
	fmt.Fprintln(w, "  import <history-file>    Record a history file written with -o")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Runs are recorded when [history] record_runs is enabled in config.toml.")
	fmt.Fprintln(w, "In the list, * marks the most recently recorded run.")
}

// openRunsDB opens and migrates the run database.
func (c *cli) openRunsDB() (*statedb.StateDB, bool) {
	db, err := statedb.Open(config.GetHistorySettings().Database)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return nil, false
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return nil, false
	}
	return db, true
}

func (c *cli) printJSON(v any) int {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return exitFailure
	}
	fmt.Fprintln(c.stdout, string(output))
	return exitOK
}

func (c *cli) handleRunsList(args []string) int {
	fs := flag.NewFlagSet("runs list", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	limit := fs.Int("n", 20, "Number of runs to show (0 for all)")
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		return exitUsage
	}

	db, ok := c.openRunsDB()
	if !ok {
		return exitFailure
	}
	defer db.Close()

	runs, err := db.LoadRuns(*limit)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return exitFailure
	}
	last, err := db.GetMeta(statedb.MetaLastRun)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return exitFailure
	}

	if *jsonOutput {
		out := make([]runJSON, 0, len(runs))
		for _, r := range runs {
			rj := toRunJSON(r, nil)
			rj.Last = r.ID == last
			out = append(out, rj)
		}
		return c.printJSON(out)
	}

	if len(runs) == 0 {
		fmt.Fprintln(c.stdout, "No runs recorded.")
		return exitOK
	}
	st := c.styles(c.stdout, c.stdoutTTY)
	fmt.Fprintln(c.stdout, st.Label.Render(fmt.Sprintf("  %-8s  %-19s  %-5s  %5s  %-15s  %s", "ID", "STARTED", "MODE", "FILES", "DURATION", "WORDS")))
	for _, r := range runs {
		words := runewidth.Truncate(strings.Join(r.Words, " "), 40, "…")
		mark := " "
		if r.ID == last {
			mark = "*"
		}
		line := fmt.Sprintf("%s %-8s  %-19s  %-5s  %5d  %-15s  %s",
			mark,
			r.ID[:min(8, len(r.ID))],
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Mode,
			r.FileCount,
			report.FormatMicros(r.Duration.Microseconds()),
			words)
		if r.Partial {
			line += " " + st.Partial.Render("(interrupted)")
		}
		fmt.Fprintln(c.stdout, line)
	}
	return exitOK
}

// findRun resolves a full id or a unique id prefix.
func findRun(db *statedb.StateDB, id string) (*statedb.RunRow, error) {
	if r, err := db.LoadRun(id); !errors.Is(err, statedb.ErrRunNotFound) {
		return r, err
	}
	runs, err := db.LoadRuns(0)
	if err != nil {
		return nil, err
	}
	var found *statedb.RunRow
	for _, r := range runs {
		if strings.HasPrefix(r.ID, id) {
			if found != nil {
				return nil, fmt.Errorf("ambiguous run id %q", id)
			}
			found = r
		}
	}
	if found == nil {
		return nil, statedb.ErrRunNotFound
	}
	return found, nil
}

func (c *cli) handleRunsShow(args []string) int {
	fs := flag.NewFlagSet("runs show", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(c.stderr, "Usage: pgrepwc runs show <id> [--json]")
		return exitUsage
	}

	db, ok := c.openRunsDB()
	if !ok {
		return exitFailure
	}
	defer db.Close()

	run, err := findRun(db, fs.Arg(0))
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return exitFailure
	}
	files, err := db.LoadRunFiles(run.ID)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return exitFailure
	}

	if *jsonOutput {
		return c.printJSON(toRunJSON(run, files))
	}

	st := c.styles(c.stdout, c.stdoutTTY)
	mode, err := search.ParseMode(run.Mode)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return exitFailure
	}
	view := report.View{Words: run.Words, Mode: mode, AllWords: run.AllWords}
	fmt.Fprintf(c.stdout, "%s %s\n", st.File.Render("Run"), run.ID)
	fmt.Fprintf(c.stdout, "  started %s, %s, %d worker(s)\n",
		run.StartedAt.Local().Format("2006-01-02 15:04:05"),
		report.FormatMicros(run.Duration.Microseconds()), run.Parallelism)
	if run.HistoryPath != "" {
		fmt.Fprintf(c.stdout, "  history %s\n", run.HistoryPath)
	}
	printer := report.NewPrinter(c.stdout, st, view)
	for _, f := range files {
		fmt.Fprintf(c.stdout, "%s %s\n", st.File.Render("File "+f.Path+":"),
			st.Dim.Render(fmt.Sprintf("[worker %d, %d lines]", f.Worker, f.Lines)))
		printer.Values(f.Values)
	}
	if run.Partial {
		fmt.Fprintln(c.stdout, st.Partial.Render("Total so far (interrupted):"))
	} else {
		fmt.Fprintln(c.stdout, st.Total.Render("Total:"))
	}
	printer.Values(run.Totals)
	return exitOK
}

func (c *cli) handleRunsDelete(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(c.stderr, "Usage: pgrepwc runs delete <id>")
		return exitUsage
	}

	db, ok := c.openRunsDB()
	if !ok {
		return exitFailure
	}
	defer db.Close()

	run, err := findRun(db, args[0])
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return exitFailure
	}
	if err := db.DeleteRun(run.ID); err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return exitFailure
	}
	fmt.Fprintf(c.stdout, "Deleted run %s.\n", run.ID)
	return exitOK
}

func (c *cli) handleRunsPrune(args []string) int {
	fs := flag.NewFlagSet("runs prune", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	keep := fs.Int("keep", -1, "Number of newest runs to keep")
	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		return exitUsage
	}
	if *keep < 0 {
		fmt.Fprintln(c.stderr, "Usage: pgrepwc runs prune --keep N")
		return exitUsage
	}

	db, ok := c.openRunsDB()
	if !ok {
		return exitFailure
	}
	defer db.Close()

	n, err := db.PruneRuns(*keep)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return exitFailure
	}
	fmt.Fprintf(c.stdout, "Deleted %d run(s).\n", n)
	return exitOK
}

func (c *cli) handleRunsImport(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(c.stderr, "Usage: pgrepwc runs import <history-file>")
		return exitUsage
	}
	rec, err := history.Read(args[0])
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return exitFailure
	}

	db, ok := c.openRunsDB()
	if !ok {
		return exitFailure
	}
	defer db.Close()

	run, files := runRowsFromRecord(rec, args[0])
	if err := db.SaveRun(run, files); err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return exitFailure
	}
	fmt.Fprintf(c.stdout, "Imported run %s.\n", run.ID)
	return exitOK
}
