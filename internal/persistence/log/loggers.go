package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"voxelflow.ai/internal/sim/world"
)

const hourLayout = "2006-01-02-15"

// hourFile is one open <prefix>-<hour>.jsonl.zst file. Each open appends a new zstd frame.
type hourFile struct {
	hour string
	f    *os.File
	enc  *zstd.Encoder
	buf  *bufio.Writer
}

func openHourFile(path, hour string) (*hourFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &hourFile{hour: hour, f: f, enc: enc, buf: bufio.NewWriterSize(enc, 128*1024)}, nil
}

func (h *hourFile) writeLine(b []byte) error {
	if _, err := h.buf.Write(b); err != nil {
		return err
	}
	if err := h.buf.WriteByte('\n'); err != nil {
		return err
	}
	return h.buf.Flush()
}

func (h *hourFile) close() error {
	flushErr := h.buf.Flush()
	encErr := h.enc.Close()
	fileErr := h.f.Close()
	return errors.Join(flushErr, encErr, fileErr)
}

// JSONLZstdWriter appends JSON lines to hourly zstd files named <prefix>-YYYY-MM-DD-HH.jsonl.zst.
// Reopening an hour appends a new zstd frame, which readers decode as one stream.
type JSONLZstdWriter struct {
	dir    string
	prefix string
	now    func() time.Time

	mu  sync.Mutex
	cur *hourFile
}

func NewJSONLZstdWriter(dir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{dir: dir, prefix: prefix, now: time.Now}
}

func (w *JSONLZstdWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	hour := w.now().UTC().Format(hourLayout)
	if w.cur == nil || w.cur.hour != hour {
		if err := w.closeLocked(); err != nil {
			return err
		}
		path := filepath.Join(w.dir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
		if w.cur, err = openHourFile(path, hour); err != nil {
			return err
		}
	}
	return w.cur.writeLine(b)
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) closeLocked() error {
	if w.cur == nil {
		return nil
	}
	err := w.cur.close()
	w.cur = nil
	return err
}

// ReadJSONL decodes every line of the <prefix>-*.jsonl.zst files in dir, oldest file first, and
// hands the raw line to fn. A truncated final frame (crash while writing) ends the file quietly.
func ReadJSONL(dir, prefix string, fn func(line []byte) error) error {
	files, err := filepath.Glob(filepath.Join(dir, prefix+"-*.jsonl.zst"))
	if err != nil {
		return err
	}
	// Hour stamps sort lexically.
	sort.Strings(files)
	for _, path := range files {
		if err := scanFile(path, fn); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

func scanFile(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		if err := fn(sc.Bytes()); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return err
	}
	return nil
}

func readEntries[T any](dir, prefix string, fn func(T) error) error {
	return ReadJSONL(dir, prefix, func(line []byte) error {
		var e T
		if err := json.Unmarshal(line, &e); err != nil {
			return err
		}
		return fn(e)
	})
}

const (
	tickStream  = "events"
	auditStream = "audit"
)

// TickLogger writes one JSONL entry per tick under <world>/events.
type TickLogger struct{ w *JSONLZstdWriter }

func NewTickLogger(worldDir string) *TickLogger {
	return &TickLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, tickStream), tickStream)}
}

func (l *TickLogger) WriteTick(v world.TickLogEntry) error { return l.w.Write(v) }
func (l *TickLogger) Close() error                         { return l.w.Close() }

// ReadTicks replays the tick log of worldDir in file order.
func ReadTicks(worldDir string, fn func(world.TickLogEntry) error) error {
	return readEntries(filepath.Join(worldDir, tickStream), tickStream, fn)
}

// AuditLogger writes block change audits under <world>/audit.
type AuditLogger struct{ w *JSONLZstdWriter }

func NewAuditLogger(worldDir string) *AuditLogger {
	return &AuditLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, auditStream), auditStream)}
}

func (l *AuditLogger) WriteAudit(v world.AuditEntry) error { return l.w.Write(v) }
func (l *AuditLogger) Close() error                        { return l.w.Close() }

func ReadAudits(worldDir string, fn func(world.AuditEntry) error) error {
	return readEntries(filepath.Join(worldDir, auditStream), auditStream, fn)
}
