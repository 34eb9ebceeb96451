package audit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestLogAppendsParsableRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit.log")
	l := New(path)

	l.Log(LevelAllow, "verdict=allow path=internal/server/server.go")
	l.Log(LevelBlock, "verdict=block rule:protected-path path=.env")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}

	first, ok := ParseRecord(lines[0])
	if !ok {
		t.Fatalf("first line did not parse: %q", lines[0])
	}
	if first.Level != LevelAllow {
		t.Errorf("Level = %q, want %q", first.Level, LevelAllow)
	}
	if !strings.Contains(first.Message, "verdict=allow") {
		t.Errorf("Message = %q, want verdict=allow present", first.Message)
	}
	if time.Since(first.Time) > time.Minute {
		t.Errorf("Time = %v, want recent", first.Time)
	}

	second, ok := ParseRecord(lines[1])
	if !ok {
		t.Fatalf("second line did not parse: %q", lines[1])
	}
	if second.Invocation != first.Invocation {
		t.Errorf("invocation ids differ within one Logger: %q vs %q", first.Invocation, second.Invocation)
	}
	if len(first.Invocation) != 8 {
		t.Errorf("invocation id %q, want 8 characters", first.Invocation)
	}
}

func TestLogNeverAppendsToExistingRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l := New(path)

	l.Log(LevelBlock, "first")
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	l.Log(LevelAllow, "second")
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(after), string(before)) {
		t.Fatal("existing record bytes were rewritten")
	}
}

func TestLogNilAndZeroAreSafe(t *testing.T) {
	var nilLogger *Logger
	nilLogger.Log(LevelError, "must not panic")

	var zero Logger
	zero.Log(LevelError, "must not panic either")
}

func TestLogSwallowsWriteFailures(t *testing.T) {
	// Directory where the log file should be: OpenFile fails, Log
	// must stay silent.
	dir := t.TempDir()
	l := New(dir)
	l.Log(LevelAllow, "swallowed")
}

func TestFormatRecord(t *testing.T) {
	r := Record{
		Time:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Level:      LevelWarn,
		Invocation: "ab12cd34",
		Message:    "multi\nline\nmessage",
	}
	line := formatRecord(r)
	if strings.Count(line, "\n") != 1 || !strings.HasSuffix(line, "\n") {
		t.Fatalf("record is not a single line: %q", line)
	}
	if !strings.HasPrefix(line, "2026-03-01T12:00:00Z [WARN] ab12cd34 ") {
		t.Errorf("line = %q, want RFC3339 [LEVEL] id prefix", line)
	}

	r.Message = strings.Repeat("x", 2*maxRecordBytes)
	line = formatRecord(r)
	if len(line) > maxRecordBytes {
		t.Errorf("len = %d, want <= %d", len(line), maxRecordBytes)
	}
	if !strings.HasSuffix(line, "\n") {
		t.Error("truncated record lost its newline")
	}
}

func TestFormatRecord_TruncatesOnRuneBoundary(t *testing.T) {
	r := Record{
		Time:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Level:      LevelBlock,
		Invocation: "ab12cd34",
		// Three-byte runes guarantee the byte cap lands mid-rune for
		// some alignment.
		Message: strings.Repeat("構", maxRecordBytes),
	}
	line := formatRecord(r)
	if len(line) > maxRecordBytes {
		t.Fatalf("len = %d, want <= %d", len(line), maxRecordBytes)
	}
	if !utf8.ValidString(line) {
		t.Error("truncated record is not valid UTF-8")
	}
	if !strings.HasSuffix(line, "\n") {
		t.Error("truncated record lost its newline")
	}
	if _, ok := ParseRecord(line); !ok {
		t.Error("truncated record no longer parses")
	}
}

func TestParseRecord_Rejects(t *testing.T) {
	for _, line := range []string{
		"",
		"not a record",
		"2026-03-01T12:00:00Z [ALLOW] ab12cd34", // no message
		"yesterday [ALLOW] ab12cd34 message",
		"2026-03-01T12:00:00Z [SHOUT] ab12cd34 message",
	} {
		if _, ok := ParseRecord(line); ok {
			t.Errorf("ParseRecord(%q) accepted", line)
		}
	}
}
