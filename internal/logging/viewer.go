package logging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Entry is one parsed line of a JSON log file.
type Entry struct {
	Time    time.Time
	Level   string
	Message string
	Attrs   map[string]any
	Raw     string
}

// ViewerConfig filters entries returned by Tail.
type ViewerConfig struct {
	// Level is the minimum level to keep. Empty keeps everything.
	Level string
	// Pattern, when set, must match the raw line.
	Pattern *regexp.Regexp
}

// Tail returns the last n entries of the log at path that pass cfg.
// Lines that are not JSON are kept as raw entries.
func Tail(path string, n int, cfg ViewerConfig) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	minLevel := ParseLevel(cfg.Level)
	var ring []Entry

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if cfg.Pattern != nil && !cfg.Pattern.MatchString(line) {
			continue
		}

		e := ParseEntry(line)
		if cfg.Level != "" && e.Level != "" && ParseLevel(e.Level) < minLevel {
			continue
		}

		ring = append(ring, e)
		if n > 0 && len(ring) > n {
			ring = ring[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	return ring, nil
}

// ParseEntry decodes a slog JSON line.
func ParseEntry(line string) Entry {
	e := Entry{Raw: line}

	var fields map[string]any
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return e
	}

	if v, ok := fields["time"].(string); ok {
		e.Time, _ = time.Parse(time.RFC3339Nano, v)
	}
	e.Level, _ = fields["level"].(string)
	e.Message, _ = fields["msg"].(string)
	delete(fields, "time")
	delete(fields, "level")
	delete(fields, "msg")
	e.Attrs = fields

	return e
}

// Format renders e on one line: time, level, message and sorted attributes.
func (e Entry) Format() string {
	if e.Message == "" && e.Level == "" {
		return e.Raw
	}

	var sb strings.Builder
	if !e.Time.IsZero() {
		sb.WriteString(e.Time.Format("15:04:05.000"))
		sb.WriteByte(' ')
	}
	fmt.Fprintf(&sb, "%-5s %s", e.Level, e.Message)

	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, e.Attrs[k])
	}

	return sb.String()
}
