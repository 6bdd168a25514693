package search

import (
	"log/slog"
	"sync"
	"time"

	"github.com/asheshgoplani/pgrepwc/internal/logging"
)

var progressLog = logging.ForComponent(logging.CompProgress)

// Reporter emits a Snapshot to an Observer on a fixed interval until stopped.
type Reporter struct {
	agg      *Aggregator
	obs      Observer
	interval time.Duration

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewReporter creates a reporter. It does nothing until Start.
func NewReporter(agg *Aggregator, obs Observer, interval time.Duration) *Reporter {
	return &Reporter{
		agg:      agg,
		obs:      obs,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start begins ticking. A non-positive interval disables the reporter.
func (r *Reporter) Start() {
	if r.interval <= 0 {
		return
	}
	r.wg.Add(1)
	go r.loop()
}

// Stop ends the ticker and waits for an in-progress report to return.
// No final snapshot is emitted. Safe to call more than once.
func (r *Reporter) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
	})
}

func (r *Reporter) loop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s := r.agg.Snapshot()
			progressLog.Debug("tick",
				slog.Int("files_done", s.FilesDone),
				slog.Int("files_in_flight", s.FilesInFlight),
				slog.Int("lines_done", s.LinesDone))
			r.obs.Progress(s)
		case <-r.done:
			return
		}
	}
}
