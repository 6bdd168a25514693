package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/asheshgoplani/pgrepwc/internal/config"
	"github.com/asheshgoplani/pgrepwc/internal/logging"
	"github.com/asheshgoplani/pgrepwc/internal/platform"
	"github.com/asheshgoplani/pgrepwc/internal/report"
)

// Version is overridden at build time with -ldflags "-X main.Version=...".
var Version = "0.1.0"

var cliLog = logging.ForComponent(logging.CompCLI)

// cli carries the process streams so handlers can be tested.
type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	// stdinTTY and stdoutTTY report whether the streams are terminals.
	stdinTTY  bool
	stdoutTTY bool
	getenv    func(string) string
}

func newCLI() *cli {
	return &cli{
		stdin:     os.Stdin,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		stdinTTY:  term.IsTerminal(int(os.Stdin.Fd())),
		stdoutTTY: term.IsTerminal(int(os.Stdout.Fd())),
		getenv:    os.Getenv,
	}
}

func main() {
	c := newCLI()
	stop := initLogging(c)
	code := c.dispatch(os.Args[1:])
	stop()
	os.Exit(code)
}

func (c *cli) dispatch(args []string) int {
	if len(args) > 0 {
		switch args[0] {
		case "version", "--version":
			fmt.Fprintf(c.stdout, "pgrepwc v%s (%s)\n", Version, platform.Detect())
			return exitOK
		case "help", "--help", "-h":
			c.printHelp()
			return exitOK
		case "history":
			return c.handleHistory(args[1:])
		case "runs":
			return c.handleRuns(args[1:])
		case "config":
			return c.handleConfig(args[1:])
		}
	}
	return c.handleSearch(args)
}

// styles returns the styles for stdout, honouring PGREPWC_COLOR and the
// configured theme.
func (c *cli) styles(w io.Writer, tty bool) report.Styles {
	profile := report.ColorProfile(c.getenv, tty)
	return report.NewStyles(report.NewRenderer(w, profile), report.Theme(config.ResolveTheme()))
}

// initLogging configures the debug log from config.toml. Logs are discarded
// unless PGREPWC_DEBUG is set. The returned func flushes and closes the log.
func initLogging(c *cli) func() {
	debugMode := c.getenv("PGREPWC_DEBUG") != ""
	baseDir, err := config.GetBaseDir()
	if err != nil || !debugMode {
		logging.Init(logging.Config{})
		return logging.Shutdown
	}

	if _, err := config.LoadUserConfig(); err != nil {
		fmt.Fprintf(c.stderr, "Warning: %v\n", err)
	}
	ls := config.GetLogSettings()
	logging.Init(logging.Config{
		LogDir:                baseDir,
		Level:                 ls.Level,
		Format:                ls.Format,
		MaxSizeMB:             ls.MaxSizeMB,
		MaxBackups:            ls.Backups,
		MaxAgeDays:            ls.RetentionDays,
		Compress:              ls.Compress,
		RingBufferSize:        ls.RingBufferKB * 1024,
		AggregateIntervalSecs: ls.AggregateIntervalSecs,
		PprofEnabled:          ls.PprofEnabled,
		PprofAddr:             ls.PprofAddr,
	})
	cliLog.Info("started", slog.Int("pid", os.Getpid()), slog.String("version", Version))

	// SIGUSR1 dumps the ring buffer for post-mortem debugging
	usr1Chan := make(chan os.Signal, 1)
	signal.Notify(usr1Chan, syscall.SIGUSR1)
	go func() {
		for range usr1Chan {
			dumpPath := filepath.Join(baseDir, fmt.Sprintf("crash-dump-%d.jsonl", time.Now().Unix()))
			if err := logging.DumpRingBuffer(dumpPath); err != nil {
				cliLog.Error("crash_dump_failed", slog.String("error", err.Error()))
			} else {
				cliLog.Info("crash_dump_written", slog.String("path", dumpPath))
			}
		}
	}()

	return func() {
		signal.Stop(usr1Chan)
		close(usr1Chan)
		logging.Shutdown()
	}
}

func (c *cli) printHelp() {
	w := c.stdout
	fmt.Fprintf(w, "pgrepwc v%s - parallel word search and count\n\n", Version)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  pgrepwc [-a] [-c|-l] [-p n] [-w s] [-o file] [--watch] [--json] words... [-f files...]")
	fmt.Fprintln(w, "  pgrepwc history <file> [--json|--yaml]")
	fmt.Fprintln(w, "  pgrepwc runs [list] [-n N] [--json]")
	fmt.Fprintln(w, "  pgrepwc runs show <id> | delete <id> | prune --keep N | import <history-file>")
	fmt.Fprintln(w, "  pgrepwc config init|path|show")
	fmt.Fprintln(w, "  pgrepwc version | help")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Search options:")
	fmt.Fprintln(w, "  -a, --all           count only lines holding exactly one word, or all of them")
	fmt.Fprintln(w, "  -c, --count         count occurrences (default)")
	fmt.Fprintln(w, "  -l, --lines         count matching lines")
	fmt.Fprintln(w, "  -p, --parallelism   number of workers, 0 scans inline (max: number of files)")
	fmt.Fprintln(w, "  -w, --interval      seconds between progress reports, 0 disables")
	fmt.Fprintln(w, "  -o, --output        write a binary history record of the run")
	fmt.Fprintln(w, "      --watch         re-run whenever an input file changes")
	fmt.Fprintln(w, "      --json          print the result as JSON")
	fmt.Fprintln(w, "  -f, --files         every following argument is a file; without it files are read from stdin")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "At most 3 distinct words are searched. Matching ignores case and accents.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  PGREPWC_HOME        base directory (default ~/.pgrepwc)")
	fmt.Fprintln(w, "  PGREPWC_DEBUG       write a debug log to <base>/debug.log; SIGUSR1 dumps recent entries")
	fmt.Fprintln(w, "  PGREPWC_COLOR       color mode: truecolor, 256, 16, none")
}
