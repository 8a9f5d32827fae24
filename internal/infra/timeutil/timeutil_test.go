package timeutil_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"telegram-userbot/internal/infra/timeutil"
)

func TestNormalizeLogTimestampZapLayouts(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"zapMillisWithTZ", "2024-01-22T10:30:00.123+0000", "2024-01-22 10:30:00"},
		{"zapNoMillis", "2024-01-22T10:30:00+0000", "2024-01-22 10:30:00"},
		{"rfc3339", "2024-01-22T10:30:00Z", "2024-01-22 10:30:00"},
		{"unrecognized", "not-a-timestamp", "not-a-timestamp"},
		{"empty", "", ""},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := timeutil.NormalizeLogTimestamp(tc.raw, time.UTC)
			if got != tc.want {
				t.Fatalf("NormalizeLogTimestamp(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestNormalizeLogTimestampNilLocationDefaultsToUTC(t *testing.T) {
	t.Parallel()

	got := timeutil.NormalizeLogTimestamp("2024-01-22T10:30:00Z", nil)
	if got != "2024-01-22 10:30:00" {
		t.Fatalf("NormalizeLogTimestamp(nil loc) = %q, want 2024-01-22 10:30:00", got)
	}
}

func TestTailLinesMissingFileIsEmptySlice(t *testing.T) {
	t.Parallel()

	lines, err := timeutil.TailLines(filepath.Join(t.TempDir(), "missing.log"), 10)
	if err != nil {
		t.Fatalf("TailLines() error = %v", err)
	}
	if lines != nil {
		t.Fatalf("TailLines() = %v, want nil for a missing file", lines)
	}
}

func TestTailLinesReturnsOnlyLastN(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "app.log")
	content := "line1\nline2\nline3\nline4\nline5\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	lines, err := timeutil.TailLines(path, 2)
	if err != nil {
		t.Fatalf("TailLines() error = %v", err)
	}
	if len(lines) != 2 || lines[0] != "line4" || lines[1] != "line5" {
		t.Fatalf("TailLines(2) = %v, want [line4 line5]", lines)
	}
}

func TestTailLinesSkipsBlankLines(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "app.log")
	content := "line1\n\n  \nline2\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	lines, err := timeutil.TailLines(path, 10)
	if err != nil {
		t.Fatalf("TailLines() error = %v", err)
	}
	if len(lines) != 2 || lines[0] != "line1" || lines[1] != "line2" {
		t.Fatalf("TailLines() = %v, want [line1 line2] with blanks skipped", lines)
	}
}

func TestTailLinesFewerLinesThanRequested(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(path, []byte("only\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	lines, err := timeutil.TailLines(path, 100)
	if err != nil {
		t.Fatalf("TailLines() error = %v", err)
	}
	if len(lines) != 1 || lines[0] != "only" {
		t.Fatalf("TailLines() = %v, want [only]", lines)
	}
}
