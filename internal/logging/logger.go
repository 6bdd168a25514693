// Package logging is the structured debug log: component loggers over one
// slog handler, a rotated file, a ring buffer for SIGUSR1 dumps and batched
// summaries of per-range events.
package logging

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Components tag every record with the part of the run that emitted it.
const (
	CompIndex     = "index"
	CompPartition = "partition"
	CompWorker    = "worker"
	CompAggregate = "aggregate"
	CompProgress  = "progress"
	CompHistory   = "history"
	CompStorage   = "storage"
	CompWatch     = "watch"
	CompCLI       = "cli"
)

// LogFileName is the rotated log written inside Config.LogDir.
const LogFileName = "debug.log"

// Config mirrors the [logs] section of config.toml. An empty LogDir
// discards everything.
type Config struct {
	LogDir string
	// Level is debug, info (default), warn or error.
	Level string
	// Format is json (default) or text.
	Format                string
	MaxSizeMB             int
	MaxBackups            int
	MaxAgeDays            int
	Compress              bool
	RingBufferSize        int
	AggregateIntervalSecs int
	PprofEnabled          bool
	PprofAddr             string
}

func (c Config) withDefaults() Config {
	def := func(v *int, d int) {
		if *v <= 0 {
			*v = d
		}
	}
	def(&c.MaxSizeMB, 10)
	def(&c.MaxBackups, 3)
	def(&c.MaxAgeDays, 7)
	def(&c.RingBufferSize, 1<<20)
	def(&c.AggregateIntervalSecs, 10)
	return c
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

var discard = slog.New(slog.NewJSONHandler(io.Discard, nil))

// state is everything Init builds and Shutdown tears down.
type state struct {
	logger *slog.Logger
	ring   *RingBuffer
	batch  *Aggregator
	file   *lumberjack.Logger
}

var (
	mu  sync.RWMutex
	cur state
)

func current() state {
	mu.RLock()
	defer mu.RUnlock()
	return cur
}

// Init replaces the global log configuration.
func Init(cfg Config) {
	cfg = cfg.withDefaults()

	mu.Lock()
	defer mu.Unlock()

	if cfg.LogDir == "" {
		cur = state{
			logger: discard,
			ring:   NewRingBuffer(1024),
			batch:  NewAggregator(nil, cfg.AggregateIntervalSecs),
		}
		return
	}

	file := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, LogFileName),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	ring := NewRingBuffer(cfg.RingBufferSize)
	logger := slog.New(newHandler(io.MultiWriter(file, ring), cfg.Format, parseLevel(cfg.Level)))
	batch := NewAggregator(logger, cfg.AggregateIntervalSecs)
	batch.Start()
	cur = state{logger: logger, ring: ring, batch: batch, file: file}

	if cfg.PprofEnabled {
		startPprof(cfg.PprofAddr)
	}
}

// Logger returns the global logger, or a discarding one before Init.
func Logger() *slog.Logger {
	if l := current().logger; l != nil {
		return l
	}
	return discard
}

// ForComponent returns a logger tagged with component. It looks up the
// global handler on every record, so package-level loggers declared before
// Init still reach the configured sink.
func ForComponent(name string) *slog.Logger {
	return slog.New(&componentHandler{component: name})
}

type componentHandler struct {
	component string
	attrs     []slog.Attr
	group     string
}

func (h *componentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return Logger().Handler().Enabled(ctx, level)
}

func (h *componentHandler) Handle(ctx context.Context, r slog.Record) error {
	handler := Logger().Handler().WithAttrs(append([]slog.Attr{slog.String("component", h.component)}, h.attrs...))
	if h.group != "" {
		handler = handler.WithGroup(h.group)
	}
	return handler.Handle(ctx, r)
}

func (h *componentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &componentHandler{component: h.component, attrs: merged, group: h.group}
}

func (h *componentHandler) WithGroup(name string) slog.Handler {
	return &componentHandler{component: h.component, attrs: h.attrs, group: name}
}

// Aggregate counts a high-frequency event; counts are logged in batches.
func Aggregate(component, key string, fields ...slog.Attr) {
	if b := current().batch; b != nil {
		b.Record(component, key, fields...)
	}
}

// DumpRingBuffer writes the recent log tail to path.
func DumpRingBuffer(path string) error {
	if r := current().ring; r != nil {
		return r.DumpToFile(path)
	}
	return nil
}

// Shutdown flushes batched events and closes the log file.
func Shutdown() {
	mu.Lock()
	defer mu.Unlock()

	if cur.batch != nil {
		cur.batch.Stop()
	}
	if cur.file != nil {
		cur.file.Close()
	}
	cur = state{}
}
