package main

import (
	"flag"
	"fmt"

	"github.com/asheshgoplani/pgrepwc/internal/history"
	"github.com/asheshgoplani/pgrepwc/internal/report"
)

// handleHistory prints a history file written with -o.
func (c *cli) handleHistory(args []string) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	yamlOutput := fs.Bool("yaml", false, "Output as YAML")
	fs.Usage = func() {
		fmt.Fprintln(c.stderr, "Usage: pgrepwc history <file> [--json|--yaml]")
		fmt.Fprintln(c.stderr)
		fmt.Fprintln(c.stderr, "Print a history file written with -o.")
		fmt.Fprintln(c.stderr)
		fmt.Fprintln(c.stderr, "Options:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return exitUsage
	}
	if *jsonOutput && *yamlOutput {
		fmt.Fprintln(c.stderr, "Error: --json and --yaml are mutually exclusive")
		return exitUsage
	}

	rec, err := history.Read(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return exitFailure
	}

	switch {
	case *jsonOutput:
		err = history.ExportJSON(c.stdout, rec)
	case *yamlOutput:
		err = history.ExportYAML(c.stdout, rec)
	default:
		err = report.RenderHistory(c.stdout, c.styles(c.stdout, c.stdoutTTY), rec)
	}
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return exitFailure
	}
	return exitOK
}
