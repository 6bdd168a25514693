package history

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/asheshgoplani/pgrepwc/internal/logging"
)

var histLog = logging.ForComponent(logging.CompHistory)

// magic prefixes every history file, followed by a one-byte version.
var magic = []byte("PGRWC")

const formatVersion byte = 1

var (
	// ErrNotHistory is returned when a file does not start with the magic header.
	ErrNotHistory = errors.New("not a pgrepwc history file")
	// ErrVersion is returned for a header with an unknown version.
	ErrVersion = errors.New("unsupported history version")
)

// Encode writes the header and the gob-encoded record.
func Encode(w io.Writer, rec *Record) error {
	header := append(slices.Clone(magic), formatVersion)
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("history: write header: %w", err)
	}
	if err := gob.NewEncoder(w).Encode(rec); err != nil {
		return fmt.Errorf("history: encode: %w", err)
	}
	return nil
}

// Decode reads a record written by Encode.
func Decode(r io.Reader) (*Record, error) {
	br := bufio.NewReader(r)
	header := make([]byte, len(magic)+1)
	if _, err := io.ReadFull(br, header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrNotHistory
		}
		return nil, fmt.Errorf("history: read header: %w", err)
	}
	if !bytes.Equal(header[:len(magic)], magic) {
		return nil, ErrNotHistory
	}
	if v := header[len(magic)]; v != formatVersion {
		return nil, fmt.Errorf("%w: %d", ErrVersion, v)
	}
	var rec Record
	if err := gob.NewDecoder(br).Decode(&rec); err != nil {
		return nil, fmt.Errorf("history: decode: %w", err)
	}
	return &rec, nil
}

// Write stores rec at path, replacing any existing file.
func Write(path string, rec *Record) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("history: create dir: %w", err)
		}
	}
	var buf bytes.Buffer
	if err := Encode(&buf, rec); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("history: write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("history: rename: %w", err)
	}
	histLog.Info("history_written",
		slog.String("path", path),
		slog.Int("processes", len(rec.Processes)),
		slog.Bool("partial", rec.Partial))
	return nil
}

// Read loads the record at path.
func Read(path string) (*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// ExportJSON writes rec as indented JSON.
func ExportJSON(w io.Writer, rec *Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}

// ExportYAML writes rec as YAML.
func ExportYAML(w io.Writer, rec *Record) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("history: yaml: %w", err)
	}
	return enc.Close()
}
