package logtail

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Entry is one parsed log line.
type Entry struct {
	Time    time.Time
	Level   string
	Message string
	Fields  map[string]string
	Raw     string
}

// Read returns at most maxLines from the end of the file at path. A missing
// file yields no lines.
func Read(path string, maxLines int) ([]string, error) {
	if maxLines <= 0 {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	ring := make([]string, maxLines)
	next, count := 0, 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		ring[next] = scanner.Text()
		next = (next + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	start := 0
	if count == maxLines {
		start = next
	}
	lines := make([]string, 0, count)
	for i := 0; i < count; i++ {
		lines = append(lines, ring[(start+i)%maxLines])
	}
	return lines, nil
}

// Tail reads the last maxLines of path and parses each one. Blank lines are
// skipped.
func Tail(path string, maxLines int) ([]Entry, error) {
	lines, err := Read(path, maxLines)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		entries = append(entries, Parse(line))
	}
	return entries, nil
}

// Parse understands both logrus formatters. Lines in neither format keep
// their text as Message.
func Parse(line string) Entry {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "{") {
		if e, ok := parseJSON(trimmed); ok {
			e.Raw = line
			return e
		}
	}
	if e, ok := parseText(trimmed); ok {
		e.Raw = line
		return e
	}
	return Entry{Message: trimmed, Raw: line}
}

// FieldString renders extra fields as sorted key=value pairs.
func (e Entry) FieldString() string {
	if len(e.Fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+e.Fields[k])
	}
	return strings.Join(parts, " ")
}

func parseJSON(line string) (Entry, bool) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Entry{}, false
	}
	e := Entry{Fields: make(map[string]string)}
	for k, v := range raw {
		s := fmt.Sprint(v)
		switch k {
		case "time":
			e.Time, _ = time.Parse(time.RFC3339, s)
		case "level":
			e.Level = s
		case "msg":
			e.Message = s
		default:
			e.Fields[k] = s
		}
	}
	return e, e.Message != "" || e.Level != ""
}

func parseText(line string) (Entry, bool) {
	pairs, ok := splitPairs(line)
	if !ok {
		return Entry{}, false
	}
	e := Entry{Fields: make(map[string]string)}
	for _, p := range pairs {
		switch p[0] {
		case "time":
			e.Time, _ = time.Parse(time.RFC3339, p[1])
		case "level":
			e.Level = p[1]
		case "msg":
			e.Message = p[1]
		default:
			e.Fields[p[0]] = p[1]
		}
	}
	return e, e.Level != ""
}

// splitPairs tokenizes key=value and key="quoted value" sequences.
func splitPairs(line string) ([][2]string, bool) {
	var pairs [][2]string
	rest := line
	for {
		rest = strings.TrimLeft(rest, " ")
		if rest == "" {
			return pairs, len(pairs) > 0
		}
		eq := strings.IndexByte(rest, '=')
		if eq <= 0 || strings.ContainsAny(rest[:eq], " \"") {
			return nil, false
		}
		key := rest[:eq]
		rest = rest[eq+1:]

		var value string
		if strings.HasPrefix(rest, `"`) {
			quoted, err := strconv.QuotedPrefix(rest)
			if err != nil {
				return nil, false
			}
			value, _ = strconv.Unquote(quoted)
			rest = rest[len(quoted):]
		} else if sp := strings.IndexByte(rest, ' '); sp >= 0 {
			value, rest = rest[:sp], rest[sp:]
		} else {
			value, rest = rest, ""
		}
		pairs = append(pairs, [2]string{key, value})
	}
}
