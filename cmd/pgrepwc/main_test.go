package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/asheshgoplani/pgrepwc/internal/config"
	"github.com/asheshgoplani/pgrepwc/internal/report"
)

// newTestCLI returns a cli with in-memory streams and an isolated
// PGREPWC_HOME.
func newTestCLI(t *testing.T, stdin string) (*cli, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	t.Setenv(config.HomeEnv, t.TempDir())
	config.ClearUserConfigCache()
	t.Cleanup(config.ClearUserConfigCache)

	var stdout, stderr bytes.Buffer
	env := map[string]string{"PGREPWC_COLOR": "none"}
	return &cli{
		stdin:  strings.NewReader(stdin),
		stdout: &stdout,
		stderr: &stderr,
		getenv: func(k string) string { return env[k] },
	}, &stdout, &stderr
}

// writeCorpus writes two small files and returns their paths.
func writeCorpus(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	if err := os.WriteFile(a, []byte("aa bb\naa\ncc\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("ÁA bb\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return a, b
}

func TestSearchCountsWords(t *testing.T) {
	c, stdout, stderr := newTestCLI(t, "")
	a, b := writeCorpus(t)

	code := c.dispatch([]string{"-c", "-a", "aa", "BB", "-f", a, b})
	if code != exitOK {
		t.Fatalf("exit = %d, stderr = %s", code, stderr.String())
	}
	out := stdout.String()
	for _, want := range []string{
		"File " + a + ":",
		"File " + b + ":",
		"Total:",
		"\tword aa occurs 3 times.",
		"\tword bb occurs 2 times.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "microseconds.") {
		t.Errorf("elapsed time printed without -w or -o:\n%s", out)
	}
}

func TestSearchLinesAllWithWorkers(t *testing.T) {
	c, stdout, stderr := newTestCLI(t, "")
	a, b := writeCorpus(t)

	code := c.dispatch([]string{"aa", "bb", "-l", "-a", "-p", "2", "-f", a, b})
	if code != exitOK {
		t.Fatalf("exit = %d, stderr = %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "\t3 lines match the search.") {
		t.Errorf("unexpected output:\n%s", stdout.String())
	}
}

func TestSearchEmptyFileGetsNoTotalBlock(t *testing.T) {
	c, stdout, stderr := newTestCLI(t, "")
	a, _ := writeCorpus(t)
	empty := filepath.Join(filepath.Dir(a), "empty.txt")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if code := c.dispatch([]string{"aa", "-f", a, empty}); code != exitOK {
		t.Fatalf("exit = %d, stderr = %s", code, stderr.String())
	}
	if strings.Contains(stdout.String(), "Total:") {
		t.Errorf("total block printed for one scanned file:\n%s", stdout.String())
	}
}

func TestSearchReadsFilesFromStdin(t *testing.T) {
	a, b := writeCorpus(t)
	c, stdout, stderr := newTestCLI(t, a+"\n"+b+"\n\n")

	code := c.dispatch([]string{"cc"})
	if code != exitOK {
		t.Fatalf("exit = %d, stderr = %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "\tword cc occurs 1 times.") {
		t.Errorf("unexpected output:\n%s", stdout.String())
	}
	if strings.Contains(stderr.String(), "Enter file names") {
		t.Errorf("prompt written for non-terminal stdin")
	}
}

func TestSearchUsageErrors(t *testing.T) {
	a, b := writeCorpus(t)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"too many words", []string{"w1", "w2", "w3", "w4", "-f", a}, "at most"},
		{"no words", []string{"-f", a}, "words"},
		{"mode conflict", []string{"-c", "-l", "aa", "-f", a}, "mode"},
		{"parallelism exceeds files", []string{"-p", "3", "aa", "-f", a, b}, "parallelism"},
		{"negative interval", []string{"-w", "-1", "aa", "-f", a}, "interval"},
		{"no files", []string{"aa", "-f"}, "files"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, stderr := newTestCLI(t, "")
			if code := c.dispatch(tt.args); code != exitUsage {
				t.Fatalf("exit = %d, want %d (stderr %s)", code, exitUsage, stderr.String())
			}
			if !strings.Contains(stderr.String(), "Error:") || !strings.Contains(stderr.String(), tt.want) {
				t.Errorf("stderr = %q, want it to mention %q", stderr.String(), tt.want)
			}
		})
	}
}

func TestSearchMissingFileSuggests(t *testing.T) {
	c, stdout, stderr := newTestCLI(t, "")
	a, _ := writeCorpus(t)
	missing := filepath.Join(filepath.Dir(a), "a.tx")

	code := c.dispatch([]string{"aa", "-f", missing, a})
	if code != exitOK {
		t.Fatalf("exit = %d, stderr = %s", code, stderr.String())
	}
	out := stdout.String()
	if !strings.Contains(out, "error: "+missing) {
		t.Errorf("missing file not reported:\n%s", out)
	}
	if !strings.Contains(out, "did you mean: "+a) {
		t.Errorf("no suggestion:\n%s", out)
	}
	if !strings.Contains(out, "\tword aa occurs 2 times.") {
		t.Errorf("remaining file not searched:\n%s", out)
	}
}

func TestSearchJSON(t *testing.T) {
	c, stdout, stderr := newTestCLI(t, "")
	a, b := writeCorpus(t)

	code := c.dispatch([]string{"--json", "aa", "bb", "-f", a, b})
	if code != exitOK {
		t.Fatalf("exit = %d, stderr = %s", code, stderr.String())
	}
	var sum report.Summary
	if err := json.Unmarshal(stdout.Bytes(), &sum); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout.String())
	}
	// lines holding both words are dropped without -a
	if sum.Mode != "count" || sum.Totals["aa"] != 1 || sum.Totals["bb"] != 0 {
		t.Errorf("summary = %+v", sum)
	}
	if len(sum.Files) != 2 {
		t.Errorf("files = %d, want 2", len(sum.Files))
	}
}

func TestSearchHistoryRoundTrip(t *testing.T) {
	c, stdout, stderr := newTestCLI(t, "")
	a, b := writeCorpus(t)
	out := filepath.Join(t.TempDir(), "run.bin")

	if code := c.dispatch([]string{"-o", out, "aa", "bb", "-p", "1", "-f", a, b}); code != exitOK {
		t.Fatalf("search exit = %d, stderr = %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "microseconds.") {
		t.Errorf("elapsed time not printed with -o:\n%s", stdout.String())
	}

	stdout.Reset()
	if code := c.dispatch([]string{"history", out}); code != exitOK {
		t.Fatalf("history exit = %d, stderr = %s", code, stderr.String())
	}
	view := stdout.String()
	for _, want := range []string{"Worker 1", "file: ", "occurrences of aa", "aa, bb"} {
		if !strings.Contains(view, want) {
			t.Errorf("history view missing %q:\n%s", want, view)
		}
	}

	stdout.Reset()
	if code := c.dispatch([]string{"history", "--yaml", out}); code != exitOK {
		t.Fatalf("history --yaml exit = %d", code)
	}
	if !strings.Contains(stdout.String(), "words:") {
		t.Errorf("yaml output:\n%s", stdout.String())
	}

	stdout.Reset()
	if code := c.dispatch([]string{"history", "--json", out}); code != exitOK {
		t.Fatalf("history --json exit = %d", code)
	}
	var rec map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &rec); err != nil {
		t.Fatalf("history --json: %v", err)
	}
	if rec["count"] != true {
		t.Errorf("count = %v", rec["count"])
	}
}

func TestHistoryRejectsNonHistoryFile(t *testing.T) {
	c, _, stderr := newTestCLI(t, "")
	a, _ := writeCorpus(t)

	if code := c.dispatch([]string{"history", a}); code != exitFailure {
		t.Fatalf("exit = %d, want %d", code, exitFailure)
	}
	if !strings.Contains(stderr.String(), "Error:") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestRunsRecordListShowDeletePrune(t *testing.T) {
	c, stdout, stderr := newTestCLI(t, "")
	a, b := writeCorpus(t)

	cfg := config.EffectiveUserConfig()
	cfg.History.RecordRuns = true
	if err := config.SaveUserConfig(cfg); err != nil {
		t.Fatal(err)
	}

	for range 3 {
		if code := c.dispatch([]string{"aa", "-f", a, b}); code != exitOK {
			t.Fatalf("search exit = %d, stderr = %s", code, stderr.String())
		}
	}

	stdout.Reset()
	if code := c.dispatch([]string{"runs", "list", "--json"}); code != exitOK {
		t.Fatalf("runs list exit = %d, stderr = %s", code, stderr.String())
	}
	var runs []runJSON
	if err := json.Unmarshal(stdout.Bytes(), &runs); err != nil {
		t.Fatalf("runs list --json: %v\n%s", err, stdout.String())
	}
	if len(runs) != 3 {
		t.Fatalf("runs = %d, want 3", len(runs))
	}
	if runs[0].Totals[0] != 3 || runs[0].FileCount != 2 {
		t.Errorf("run = %+v", runs[0])
	}
	if !runs[0].Last || runs[1].Last || runs[2].Last {
		t.Errorf("newest run should be the only one marked last: %v %v %v", runs[0].Last, runs[1].Last, runs[2].Last)
	}

	stdout.Reset()
	if code := c.dispatch([]string{"runs", "list"}); code != exitOK {
		t.Fatalf("runs list exit = %d", code)
	}
	if !strings.Contains(stdout.String(), "* "+runs[0].ID[:8]) {
		t.Errorf("last run not marked:\n%s", stdout.String())
	}

	stdout.Reset()
	if code := c.dispatch([]string{"runs", "show", runs[0].ID[:8]}); code != exitOK {
		t.Fatalf("runs show exit = %d, stderr = %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "File "+a+":") || !strings.Contains(stdout.String(), "\tword aa occurs 3 times.") {
		t.Errorf("runs show output:\n%s", stdout.String())
	}

	stdout.Reset()
	if code := c.dispatch([]string{"runs", "delete", runs[2].ID[:8]}); code != exitOK {
		t.Fatalf("runs delete exit = %d, stderr = %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Deleted run "+runs[2].ID) {
		t.Errorf("delete output: %q", stdout.String())
	}
	if code := c.dispatch([]string{"runs", "show", runs[2].ID}); code != exitFailure {
		t.Errorf("show after delete exit = %d, want %d", code, exitFailure)
	}

	stdout.Reset()
	if code := c.dispatch([]string{"runs", "prune", "--keep", "1"}); code != exitOK {
		t.Fatalf("runs prune exit = %d", code)
	}
	if !strings.Contains(stdout.String(), "Deleted 1 run(s).") {
		t.Errorf("prune output: %q", stdout.String())
	}
}

func TestRunsImport(t *testing.T) {
	c, stdout, stderr := newTestCLI(t, "")
	a, _ := writeCorpus(t)
	out := filepath.Join(t.TempDir(), "run.bin")

	if code := c.dispatch([]string{"-l", "-o", out, "aa", "-f", a}); code != exitOK {
		t.Fatalf("search exit = %d, stderr = %s", code, stderr.String())
	}
	stdout.Reset()
	if code := c.dispatch([]string{"runs", "import", out}); code != exitOK {
		t.Fatalf("import exit = %d, stderr = %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Imported run") {
		t.Errorf("import output: %q", stdout.String())
	}

	stdout.Reset()
	if code := c.dispatch([]string{"runs", "--json"}); code != exitOK {
		t.Fatalf("runs exit = %d", code)
	}
	var runs []runJSON
	if err := json.Unmarshal(stdout.Bytes(), &runs); err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Mode != "lines" || runs[0].HistoryPath != out || runs[0].Totals[0] != 2 {
		t.Errorf("runs = %+v", runs)
	}
}

func TestRunsShowUnknownID(t *testing.T) {
	c, _, stderr := newTestCLI(t, "")
	if code := c.dispatch([]string{"runs", "show", "nope"}); code != exitFailure {
		t.Fatalf("exit = %d, want %d", code, exitFailure)
	}
	if !strings.Contains(stderr.String(), "not found") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestConfigInitPathShow(t *testing.T) {
	c, stdout, stderr := newTestCLI(t, "")

	if code := c.dispatch([]string{"config", "path"}); code != exitOK {
		t.Fatalf("config path exit = %d", code)
	}
	path := strings.TrimSpace(stdout.String())
	if filepath.Base(path) != config.UserConfigFileName {
		t.Errorf("path = %q", path)
	}

	if code := c.dispatch([]string{"config", "init"}); code != exitOK {
		t.Fatalf("config init exit = %d, stderr = %s", code, stderr.String())
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if code := c.dispatch([]string{"config", "init"}); code != exitFailure {
		t.Errorf("second init exit = %d, want %d", code, exitFailure)
	}
	if code := c.dispatch([]string{"config", "init", "--force"}); code != exitOK {
		t.Errorf("forced init exit = %d", code)
	}

	stdout.Reset()
	if code := c.dispatch([]string{"config", "show"}); code != exitOK {
		t.Fatalf("config show exit = %d", code)
	}
	for _, want := range []string{"[search]", "index_concurrency = 4", "[watch]"} {
		if !strings.Contains(stdout.String(), want) {
			t.Errorf("config show missing %q:\n%s", want, stdout.String())
		}
	}
}

func TestVersionAndHelp(t *testing.T) {
	c, stdout, _ := newTestCLI(t, "")
	if code := c.dispatch([]string{"version"}); code != exitOK {
		t.Fatalf("version exit = %d", code)
	}
	if !strings.HasPrefix(stdout.String(), "pgrepwc v"+Version) {
		t.Errorf("version = %q", stdout.String())
	}

	stdout.Reset()
	if code := c.dispatch([]string{"--help"}); code != exitOK {
		t.Fatalf("help exit = %d", code)
	}
	if !strings.Contains(stdout.String(), "Usage:") {
		t.Errorf("help = %q", stdout.String())
	}
}
