// Package audit appends decision records to the shared audit log.
//
// The log is the only mutable state pathguard shares across concurrent
// hook invocations. Each record is written with a single O_APPEND write
// sized under one atomic write unit, so parallel agent sessions never
// interleave partial lines. There is no locking and no read-modify-write;
// nothing ever mutates or deletes an existing record.
//
// Logging is strictly fire-and-forget: a log failure must never alter or
// delay the verdict, so every error here is silently absorbed.
package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Level classifies an audit record.
type Level string

// Audit levels, one per notable event class.
const (
	LevelAllow   Level = "ALLOW"
	LevelBlock   Level = "BLOCK"
	LevelWarn    Level = "WARN"
	LevelError   Level = "ERROR"
	LevelSymlink Level = "SYMLINK"
)

// maxRecordBytes caps one record (newline included) under the smallest
// POSIX atomic pipe/file append unit.
const maxRecordBytes = 4096

// Record is one immutable audit log entry.
type Record struct {
	Time       time.Time
	Level      Level
	Invocation string
	Message    string
}

// Logger appends records for one invocation. The zero value and nil are
// both safe no-ops, so callers never guard their log calls.
type Logger struct {
	path       string
	invocation string
}

// New creates a Logger writing to path. Every record from this Logger
// carries the same short invocation id so concurrent sessions can be told
// apart in the shared log.
func New(path string) *Logger {
	return &Logger{
		path:       path,
		invocation: uuid.NewString()[:8],
	}
}

// Log appends one record. All failures are swallowed.
func (l *Logger) Log(level Level, message string) {
	if l == nil || l.path == "" {
		return
	}
	line := formatRecord(Record{
		Time:       time.Now().UTC(),
		Level:      level,
		Invocation: l.invocation,
		Message:    message,
	})

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.Write([]byte(line))
}

// formatRecord renders one record as a single newline-terminated line,
// truncated to fit the atomic write cap. Truncation lands on a rune
// boundary so the line stays valid UTF-8.
func formatRecord(r Record) string {
	msg := strings.ReplaceAll(r.Message, "\n", " ")
	line := fmt.Sprintf("%s [%s] %s %s\n",
		r.Time.Format(time.RFC3339), r.Level, r.Invocation, msg)
	if len(line) > maxRecordBytes {
		cut := maxRecordBytes - 1
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		line = line[:cut] + "\n"
	}
	return line
}

// ParseRecord parses one log line back into a Record. The drift report
// consumes the log through this; lines that do not parse are skipped by
// callers rather than failing the whole report.
func ParseRecord(line string) (Record, bool) {
	fields := strings.SplitN(strings.TrimRight(line, "\n"), " ", 4)
	if len(fields) < 4 {
		return Record{}, false
	}
	ts, err := time.Parse(time.RFC3339, fields[0])
	if err != nil {
		return Record{}, false
	}
	level := strings.Trim(fields[1], "[]")
	switch Level(level) {
	case LevelAllow, LevelBlock, LevelWarn, LevelError, LevelSymlink:
	default:
		return Record{}, false
	}
	return Record{
		Time:       ts,
		Level:      Level(level),
		Invocation: fields[2],
		Message:    fields[3],
	}, true
}
