package statedb

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *StateDB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRun(start time.Time) (*RunRow, []*RunFileRow) {
	run := &RunRow{
		StartedAt:   start,
		Duration:    1500 * time.Microsecond,
		Words:       []string{"aa", "bb"},
		Mode:        "count",
		Parallelism: 2,
		Interval:    time.Second,
		Totals:      [3]int{4, 1, 0},
		FileCount:   2,
	}
	files := []*RunFileRow{
		{Worker: 1, Path: "a.txt", Lines: 10, Duration: 300 * time.Microsecond, Values: [3]int{3, 1, 0}},
		{Worker: 2, Path: "b.txt", FirstLine: 4, Lines: 2, Duration: 100 * time.Microsecond, Values: [3]int{1, 0, 0}},
	}
	return run, files
}

func TestOpenClose(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "runs.db")

	db1, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db1.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	run, files := sampleRun(time.Now())
	if err := db1.SaveRun(run, files); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	db1.Close()

	db2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	defer db2.Close()
	if err := db2.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	runs, err := db2.LoadRuns(0)
	if err != nil {
		t.Fatalf("LoadRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("Expected 1 run, got %d", len(runs))
	}
	if runs[0].ID != run.ID {
		t.Errorf("Expected id %q, got %q", run.ID, runs[0].ID)
	}
}

func TestSaveRunAssignsID(t *testing.T) {
	db := newTestDB(t)
	run, files := sampleRun(time.Now())
	if err := db.SaveRun(run, files); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if len(run.ID) != 36 {
		t.Errorf("Expected a UUID, got %q", run.ID)
	}
	for _, f := range files {
		if f.RunID != run.ID {
			t.Errorf("file RunID = %q, want %q", f.RunID, run.ID)
		}
	}
}

func TestLoadRunRoundTrip(t *testing.T) {
	db := newTestDB(t)
	start := time.UnixMicro(time.Now().UnixMicro())
	run, files := sampleRun(start)
	run.AllWords = true
	run.Partial = true
	run.HistoryPath = "/tmp/run.bin"
	if err := db.SaveRun(run, files); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := db.LoadRun(run.ID)
	if err != nil {
		t.Fatalf("LoadRun: %v", err)
	}
	if !got.StartedAt.Equal(start) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, start)
	}
	if got.Duration != run.Duration || got.Interval != run.Interval {
		t.Errorf("durations mismatch: %+v", got)
	}
	if len(got.Words) != 2 || got.Words[0] != "aa" || got.Words[1] != "bb" {
		t.Errorf("Words = %v", got.Words)
	}
	if !got.AllWords || !got.Partial || got.Parallelism != 2 {
		t.Errorf("flags mismatch: %+v", got)
	}
	if got.Totals != [3]int{4, 1, 0} {
		t.Errorf("Totals = %v", got.Totals)
	}
	if got.HistoryPath != "/tmp/run.bin" {
		t.Errorf("HistoryPath = %q", got.HistoryPath)
	}

	loaded, err := db.LoadRunFiles(run.ID)
	if err != nil {
		t.Fatalf("LoadRunFiles: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("Expected 2 files, got %d", len(loaded))
	}
	if loaded[0].Path != "a.txt" || loaded[1].Path != "b.txt" {
		t.Errorf("Wrong order: %s, %s", loaded[0].Path, loaded[1].Path)
	}
	if loaded[1].FirstLine != 4 || loaded[1].Duration != 100*time.Microsecond || loaded[1].Values != [3]int{1, 0, 0} {
		t.Errorf("Unexpected file row: %+v", loaded[1])
	}
}

func TestLoadRunNotFound(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.LoadRun("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound, got %v", err)
	}
	if err := db.DeleteRun("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound, got %v", err)
	}
}

func TestLoadRunsNewestFirst(t *testing.T) {
	db := newTestDB(t)
	base := time.Now().Add(-time.Hour)
	var ids []string
	for i := 0; i < 5; i++ {
		run, files := sampleRun(base.Add(time.Duration(i) * time.Minute))
		if err := db.SaveRun(run, files); err != nil {
			t.Fatalf("SaveRun %d: %v", i, err)
		}
		ids = append(ids, run.ID)
	}

	runs, err := db.LoadRuns(3)
	if err != nil {
		t.Fatalf("LoadRuns: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("Expected 3 runs, got %d", len(runs))
	}
	if runs[0].ID != ids[4] || runs[2].ID != ids[2] {
		t.Errorf("Wrong order: %s .. %s", runs[0].ID, runs[2].ID)
	}
}

func TestDeleteRunRemovesFiles(t *testing.T) {
	db := newTestDB(t)
	run, files := sampleRun(time.Now())
	if err := db.SaveRun(run, files); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := db.DeleteRun(run.ID); err != nil {
		t.Fatalf("DeleteRun: %v", err)
	}

	var n int
	if err := db.db.QueryRow("SELECT COUNT(*) FROM run_files").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 run_files, got %d", n)
	}
}

func TestPruneRuns(t *testing.T) {
	db := newTestDB(t)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 4; i++ {
		run, files := sampleRun(base.Add(time.Duration(i) * time.Minute))
		if err := db.SaveRun(run, files); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
	}

	deleted, err := db.PruneRuns(1)
	if err != nil {
		t.Fatalf("PruneRuns: %v", err)
	}
	if deleted != 3 {
		t.Errorf("Expected 3 deleted, got %d", deleted)
	}

	var n int
	if err := db.db.QueryRow("SELECT COUNT(*) FROM run_files").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 run_files left, got %d", n)
	}
}

func TestMetadata(t *testing.T) {
	db := newTestDB(t)

	val, err := db.GetMeta("schema_version")
	if err != nil {
		t.Fatalf("GetMeta: %v", err)
	}
	if val != "1" {
		t.Errorf("Expected schema_version '1', got %q", val)
	}

	run, files := sampleRun(time.Now())
	if err := db.SaveRun(run, files); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	val, _ = db.GetMeta(MetaLastRun)
	if val != run.ID {
		t.Errorf("Expected last run %q, got %q", run.ID, val)
	}

	val, err = db.GetMeta("nonexistent")
	if err != nil {
		t.Fatalf("GetMeta nonexistent: %v", err)
	}
	if val != "" {
		t.Errorf("Expected empty, got %q", val)
	}
}

func TestConcurrentSaves(t *testing.T) {
	db := newTestDB(t)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run, files := sampleRun(time.Now())
			if err := db.SaveRun(run, files); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent SaveRun: %v", err)
	}

	runs, err := db.LoadRuns(0)
	if err != nil {
		t.Fatalf("LoadRuns: %v", err)
	}
	if len(runs) != 10 {
		t.Errorf("Expected 10 runs, got %d", len(runs))
	}
}
