// Package timeutil holds small time-formatting helpers shared by the
// operator console and the `--log` tail feature.
package timeutil

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"
)

// NormalizeLogTimestamp parses a timestamp string in one of zap's
// emitted layouts and re-renders it as "2006-01-02 15:04:05" in loc. If
// none of the layouts match, the original string is returned unchanged.
func NormalizeLogTimestamp(timeStr string, loc *time.Location) string {
	if timeStr == "" {
		return ""
	}
	var t time.Time
	var err error

	layouts := []string{
		"2006-01-02T15:04:05.999-0700", // zap: millis + timezone without a colon
		"2006-01-02T15:04:05-0700",     // zap: no milliseconds
		time.RFC3339,
		time.RFC3339Nano,
	}

	const outputLayout = "2006-01-02 15:04:05"

	for _, layout := range layouts {
		if t, err = time.Parse(layout, timeStr); err == nil {
			break
		}
	}
	if err != nil {
		return timeStr
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(outputLayout)
}

// TailLines reads the last n lines of the file at path. A missing file
// yields an empty slice rather than an error, matching the `--log` flag's
// contract of printing whatever is available and exiting cleanly.
func TailLines(path string, n int) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from trusted config/CLI
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("timeutil: open %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("timeutil: scan %s: %w", path, err)
	}
	return lines, nil
}
