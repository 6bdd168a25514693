package search

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asheshgoplani/pgrepwc/internal/partition"
)

func testParts() []partition.Partition {
	return []partition.Partition{
		{Ranges: []partition.Range{
			{Path: "a", Start: 0, End: 10, Lines: 2},
		}},
		{Ranges: []partition.Range{
			{Path: "a", Start: 10, End: partition.EOF, FirstLine: 2, Lines: 1},
			{Path: "b", Start: 0, End: partition.EOF, Lines: 3},
		}},
	}
}

func TestAggregatorFileTracking(t *testing.T) {
	agg := NewAggregator(testParts())
	s := agg.Snapshot()
	assert.Equal(t, 6, s.LinesTotal)
	assert.Equal(t, 0, s.FilesDone)
	assert.Equal(t, 3, agg.Outstanding())

	agg.Begin("a")
	agg.Begin("a")
	assert.Equal(t, 1, agg.Snapshot().FilesInFlight)

	agg.Commit(Completion{Worker: 1, Path: "a", Lines: 2, Values: [3]int{1, 0, 0}})
	s = agg.Snapshot()
	assert.Equal(t, 0, s.FilesDone)
	assert.Equal(t, 1, s.FilesInFlight)

	agg.Commit(Completion{Worker: 2, Path: "a", Lines: 1, Values: [3]int{2, 1, 0}})
	agg.Begin("b")
	s = agg.Snapshot()
	assert.Equal(t, 1, s.FilesDone)
	assert.Equal(t, 1, s.FilesInFlight)
	assert.Equal(t, 3, s.LinesDone)
	assert.Equal(t, [3]int{3, 1, 0}, s.Totals)

	agg.Fail(partition.Range{Path: "b"})
	s = agg.Snapshot()
	assert.Equal(t, 2, s.FilesDone)
	assert.Equal(t, 0, s.FilesInFlight)
	assert.Equal(t, 0, agg.Outstanding())
	assert.Len(t, agg.Completions(), 2)
}

func TestAggregatorConcurrentCommits(t *testing.T) {
	var parts []partition.Partition
	for i := 0; i < 50; i++ {
		parts = append(parts, partition.Partition{Ranges: []partition.Range{{Path: "f", Lines: 1}}})
	}
	agg := NewAggregator(parts)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			agg.Begin("f")
			agg.Commit(Completion{Path: "f", Lines: 1, Values: [3]int{1, 2, 3}})
		}()
	}
	wg.Wait()

	require.Equal(t, [3]int{50, 100, 150}, agg.Totals())
	s := agg.Snapshot()
	assert.Equal(t, 1, s.FilesDone)
	assert.Equal(t, 50, s.LinesDone)
}

// Two workers scan disjoint ranges of one file: the first sees the word once
// on lines 0 and 2, the second twice on line 5.
func TestAggregatorCommitTwoWorkers(t *testing.T) {
	parts := []partition.Partition{
		{Ranges: []partition.Range{{Path: "w", Start: 0, End: 20, Lines: 5}}},
		{Ranges: []partition.Range{{Path: "w", Start: 20, End: partition.EOF, FirstLine: 5, Lines: 3}}},
	}

	tests := []struct {
		name     string
		mode     Mode
		allWords bool
		want     [3]int
	}{
		{"count", ModeCount, false, [3]int{4, 0, 0}},
		{"lines", ModeLines, false, [3]int{3, 0, 0}},
		{"lines all words", ModeLines, true, [3]int{3, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := NewOccurrences()
			first.Record(0, []int{1})
			first.Record(2, []int{1})
			second := NewOccurrences()
			second.Record(5, []int{2})

			agg := NewAggregator(parts)
			agg.Begin("w")
			agg.Commit(Completion{Worker: 1, Path: "w", Range: parts[0].Ranges[0], Lines: 5, Values: first.Values(tt.mode, tt.allWords)})
			agg.Commit(Completion{Worker: 2, Path: "w", Range: parts[1].Ranges[0], Lines: 3, Values: second.Values(tt.mode, tt.allWords)})

			assert.Equal(t, tt.want, agg.Totals())
			assert.Equal(t, 0, agg.Outstanding())
			assert.Equal(t, 1, agg.Snapshot().FilesDone)
		})
	}
}
