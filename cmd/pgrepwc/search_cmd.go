package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/asheshgoplani/pgrepwc/internal/config"
	"github.com/asheshgoplani/pgrepwc/internal/history"
	"github.com/asheshgoplani/pgrepwc/internal/platform"
	"github.com/asheshgoplani/pgrepwc/internal/report"
	"github.com/asheshgoplani/pgrepwc/internal/search"
	"github.com/asheshgoplani/pgrepwc/internal/statedb"
	"github.com/asheshgoplani/pgrepwc/internal/suggest"
	"github.com/asheshgoplani/pgrepwc/internal/watch"
)

// searchFlags holds the parsed search command line.
type searchFlags struct {
	opts     config.Options
	interval float64
}

// parseSearchArgs parses the search command line. Defaults come from the
// [search] section of config.toml. filesGiven reports whether -f was used.
func parseSearchArgs(args []string, stderr io.Writer) (*searchFlags, bool, error) {
	rest, files, filesGiven := splitFilesArg(args)

	defaults := config.GetSearchSettings()
	sf := &searchFlags{interval: defaults.ProgressInterval}
	sf.opts.Parallelism = defaults.Parallelism

	fs := flag.NewFlagSet("pgrepwc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&sf.opts.AllWords, "a", false, "")
	fs.BoolVar(&sf.opts.AllWords, "all", false, "lines with exactly one word, or all words")
	fs.BoolVar(&sf.opts.CountMode, "c", false, "")
	fs.BoolVar(&sf.opts.CountMode, "count", false, "count occurrences (default)")
	fs.BoolVar(&sf.opts.LinesMode, "l", false, "")
	fs.BoolVar(&sf.opts.LinesMode, "lines", false, "count matching lines")
	fs.IntVar(&sf.opts.Parallelism, "p", sf.opts.Parallelism, "")
	fs.IntVar(&sf.opts.Parallelism, "parallelism", sf.opts.Parallelism, "number of workers")
	fs.Float64Var(&sf.interval, "w", sf.interval, "")
	fs.Float64Var(&sf.interval, "interval", sf.interval, "progress interval in seconds")
	fs.StringVar(&sf.opts.OutputPath, "o", "", "")
	fs.StringVar(&sf.opts.OutputPath, "output", "", "binary history output file")
	fs.BoolVar(&sf.opts.Watch, "watch", false, "re-run when an input file changes")
	fs.BoolVar(&sf.opts.JSON, "json", false, "print the result as JSON")

	if err := fs.Parse(normalizeArgs(fs, rest)); err != nil {
		return nil, false, &config.ValidationError{Field: "arguments", Err: err}
	}
	sf.opts.Words = fs.Args()
	sf.opts.Files = files
	sf.opts.Interval = time.Duration(sf.interval * float64(time.Second))
	return sf, filesGiven, nil
}

func (c *cli) handleSearch(args []string) int {
	sf, filesGiven, err := parseSearchArgs(args, c.stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			c.printHelp()
			return exitOK
		}
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return exitUsage
	}
	if !filesGiven {
		var prompt io.Writer
		if c.stdinTTY {
			prompt = c.stderr
		}
		files, err := readFileList(c.stdin, prompt)
		if err != nil {
			fmt.Fprintf(c.stderr, "Error: %v\n", err)
			return exitFailure
		}
		sf.opts.Files = files
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return c.runSearch(ctx, &sf.opts)
}

// runSearch validates opts and runs the search, repeating it on file changes
// in watch mode.
func (c *cli) runSearch(ctx context.Context, opts *config.Options) int {
	ws, err := opts.Validate()
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return exitCodeFor(err)
	}

	s := config.GetSearchSettings()
	mode := search.ModeCount
	if opts.LinesMode {
		mode = search.ModeLines
	}
	settings := search.Settings{
		Words:            ws,
		Mode:             mode,
		AllWords:         opts.AllWords,
		Parallelism:      opts.Parallelism,
		Interval:         opts.Interval,
		MaxBytesPerSec:   s.MaxBytesPerSec,
		IndexConcurrency: s.IndexConcurrency,
	}
	view := report.View{Words: ws.Literals(), Mode: mode, AllWords: opts.AllWords}

	var printer *report.Printer
	suggestFn := report.WithSuggest(func(p string) []string { return suggest.ForMissing(p, suggest.DefaultLimit) })
	if opts.JSON {
		printer = report.NewPrinter(c.stderr, c.styles(c.stderr, false), view, suggestFn, report.WithQuiet())
	} else {
		printer = report.NewPrinter(c.stdout, c.styles(c.stdout, c.stdoutTTY), view, suggestFn)
	}

	cliLog.Info("search_started",
		slog.Int("words", ws.Len()),
		slog.Int("files", len(opts.Files)),
		slog.String("mode", mode.String()),
		slog.Bool("all_words", opts.AllWords),
		slog.Int("parallelism", opts.Parallelism))

	code := c.runOnce(ctx, opts, settings, view, printer)
	if !opts.Watch || code != exitOK || ctx.Err() != nil {
		return code
	}
	return c.watchLoop(ctx, opts, settings, view, printer)
}

func (c *cli) runOnce(ctx context.Context, opts *config.Options, settings search.Settings, view report.View, printer *report.Printer) int {
	res, err := search.RunPaths(ctx, opts.Files, settings, printer)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return exitFailure
	}

	if opts.JSON {
		if err := report.WriteJSON(c.stdout, report.NewSummary(res, view)); err != nil {
			fmt.Fprintf(c.stderr, "Error: %v\n", err)
			return exitFailure
		}
	} else {
		printer.Totals(res)
		if opts.Interval > 0 || opts.OutputPath != "" {
			printer.Elapsed(res.Elapsed)
		}
	}

	rec := history.FromResult(res, history.Meta{
		Words:       view.Words,
		Mode:        settings.Mode,
		AllWords:    settings.AllWords,
		Parallelism: settings.Parallelism,
		Interval:    settings.Interval,
	})
	if opts.OutputPath != "" {
		if err := history.Write(opts.OutputPath, rec); err != nil {
			fmt.Fprintf(c.stderr, "Error: %v\n", err)
			return exitFailure
		}
	}
	if hs := config.GetHistorySettings(); hs.RecordRuns {
		if err := recordRun(hs.Database, rec, opts.OutputPath); err != nil {
			fmt.Fprintf(c.stderr, "Error: %v\n", err)
			return exitFailure
		}
	}
	return exitOK
}

func (c *cli) watchLoop(ctx context.Context, opts *config.Options, settings search.Settings, view report.View, printer *report.Printer) int {
	for _, f := range opts.Files {
		if warning := platform.CheckFsnotifySupport(f); warning != "" {
			printer.Notice("%s (%s)", warning, f)
			break
		}
	}

	w, err := watch.New(opts.Files, time.Duration(config.GetWatchSettings().DebounceMs)*time.Millisecond)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer w.Close()

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go w.Run(watchCtx)

	printer.Notice("Watching %d file(s); press Ctrl+C to stop.", len(opts.Files))
	for {
		select {
		case <-ctx.Done():
			return exitOK
		case changed := <-w.Changes():
			printer.Notice("Changed: %s", strings.Join(changed, ", "))
			if code := c.runOnce(ctx, opts, settings, view, printer); code != exitOK {
				return code
			}
		}
	}
}

// recordRun stores rec in the run database.
func recordRun(dbPath string, rec *history.Record, historyPath string) error {
	db, err := statedb.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return err
	}
	run, files := runRowsFromRecord(rec, historyPath)
	return db.SaveRun(run, files)
}

// runRowsFromRecord converts a history record into run database rows.
func runRowsFromRecord(rec *history.Record, historyPath string) (*statedb.RunRow, []*statedb.RunFileRow) {
	mode := search.ModeLines
	if rec.Count {
		mode = search.ModeCount
	}
	run := &statedb.RunRow{
		StartedAt:   rec.StartTime(),
		Duration:    rec.Elapsed(),
		Words:       rec.Words,
		Mode:        mode.String(),
		AllWords:    rec.AllWords,
		Parallelism: rec.Parallelism,
		Interval:    time.Duration(rec.Interval * float64(time.Second)),
		Partial:     rec.Partial,
		Totals:      rec.Totals(),
		HistoryPath: historyPath,
	}
	var files []*statedb.RunFileRow
	paths := make(map[string]bool)
	for _, p := range rec.Processes {
		for _, f := range p.Files {
			paths[f.Path] = true
			files = append(files, &statedb.RunFileRow{
				Worker:   p.ID,
				Path:     f.Path,
				Lines:    f.Lines,
				Duration: time.Duration(f.Duration) * time.Microsecond,
				Values:   f.Occurrences,
			})
		}
	}
	run.FileCount = len(paths)
	return run, files
}

var _ search.Observer = (*report.Printer)(nil)
