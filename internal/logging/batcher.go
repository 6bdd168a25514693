package logging

import (
	"cmp"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"
)

// batchKey identifies one event type for batching.
type batchKey struct {
	Component string
	Event     string
}

type batchEntry struct {
	Count  int64
	Fields []slog.Attr
}

// Aggregator batches high-frequency events (one per scanned range, one per
// throttle wait) and emits one summary line per event type every interval.
type Aggregator struct {
	logger   *slog.Logger
	interval time.Duration

	mu      sync.Mutex
	entries map[batchKey]*batchEntry

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewAggregator creates an aggregator that flushes every intervalSecs seconds.
// If logger is nil, recorded events are dropped on flush.
func NewAggregator(logger *slog.Logger, intervalSecs int) *Aggregator {
	if intervalSecs <= 0 {
		intervalSecs = 10
	}
	return &Aggregator{
		logger:   logger,
		interval: time.Duration(intervalSecs) * time.Second,
		entries:  make(map[batchKey]*batchEntry),
		done:     make(chan struct{}),
	}
}

// Start begins the background flush goroutine.
func (a *Aggregator) Start() {
	a.wg.Add(1)
	go a.flushLoop()
}

// Stop flushes remaining entries and stops the background goroutine.
// Safe to call more than once.
func (a *Aggregator) Stop() {
	a.stopOnce.Do(func() {
		close(a.done)
		a.wg.Wait()
		a.flush()
	})
}

// Record increments the counter for an event type. The most recent fields win.
func (a *Aggregator) Record(component, event string, fields ...slog.Attr) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := batchKey{Component: component, Event: event}
	entry, ok := a.entries[key]
	if !ok {
		entry = &batchEntry{}
		a.entries[key] = entry
	}
	entry.Count++
	if len(fields) > 0 {
		entry.Fields = fields
	}
}

func (a *Aggregator) flushLoop() {
	defer a.wg.Done()
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.flush()
		case <-a.done:
			return
		}
	}
}

// flush logs one event_summary per event type, ordered by component and
// event, and resets the counters.
func (a *Aggregator) flush() {
	a.mu.Lock()
	entries := a.entries
	a.entries = make(map[batchKey]*batchEntry)
	a.mu.Unlock()

	if a.logger == nil || len(entries) == 0 {
		return
	}

	keys := slices.SortedFunc(maps.Keys(entries), func(x, y batchKey) int {
		return cmp.Or(cmp.Compare(x.Component, y.Component), cmp.Compare(x.Event, y.Event))
	})
	window := int(a.interval.Seconds())
	for _, k := range keys {
		e := entries[k]
		attrs := make([]any, 0, 4+len(e.Fields))
		attrs = append(attrs,
			slog.String("component", k.Component),
			slog.String("event", k.Event),
			slog.Int64("count", e.Count),
			slog.Int("window_seconds", window))
		for _, f := range e.Fields {
			attrs = append(attrs, f)
		}
		a.logger.Info("event_summary", attrs...)
	}
}
