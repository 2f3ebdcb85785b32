package logtail

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kleis.log")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestRead(t *testing.T) {
	var all []string
	for i := 1; i <= 10; i++ {
		all = append(all, fmt.Sprintf("Line %d", i))
	}
	path := writeLog(t, all...)

	tests := []struct {
		name     string
		maxLines int
		want     []string
	}{
		{"zero reads nothing", 0, nil},
		{"negative reads nothing", -1, nil},
		{"partial", 5, all[5:]},
		{"exactly all", 10, all},
		{"more than exists", 20, all},
		{"one", 1, all[9:]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(path, tt.maxLines)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Read(%d) = %v, want %v", tt.maxLines, got, tt.want)
			}
		})
	}
}

func TestRead_MissingFile(t *testing.T) {
	got, err := Read(filepath.Join(t.TempDir(), "nope.log"), 10)
	if err != nil || got != nil {
		t.Fatalf("Read missing = (%v, %v), want (nil, nil)", got, err)
	}
}

func TestParse_JSON(t *testing.T) {
	e := Parse(`{"component":"cart","level":"warning","msg":"cart is full","time":"2026-10-16T09:30:00Z","max":50}`)
	if e.Level != "warning" || e.Message != "cart is full" {
		t.Fatalf("entry = %+v", e)
	}
	if !e.Time.Equal(time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)) {
		t.Fatalf("Time = %v", e.Time)
	}
	if e.FieldString() != "component=cart max=50" {
		t.Fatalf("FieldString = %q", e.FieldString())
	}
}

func TestParse_Text(t *testing.T) {
	e := Parse(`time="2026-10-16T09:30:00Z" level=debug msg="item added" component=cart id=SKU001 quantity=2`)
	if e.Level != "debug" || e.Message != "item added" {
		t.Fatalf("entry = %+v", e)
	}
	if e.Fields["id"] != "SKU001" || e.Fields["quantity"] != "2" {
		t.Fatalf("Fields = %v", e.Fields)
	}
	if e.Time.IsZero() {
		t.Fatalf("Time not parsed")
	}
}

func TestParse_Unstructured(t *testing.T) {
	e := Parse("  panic: something odd  ")
	if e.Message != "panic: something odd" || e.Level != "" {
		t.Fatalf("entry = %+v", e)
	}
}

func TestTail_SkipsBlankLines(t *testing.T) {
	path := writeLog(t,
		`level=info msg=first`,
		``,
		`{"level":"info","msg":"second"}`,
	)
	entries, err := Tail(path, 10)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(entries) != 2 || entries[0].Message != "first" || entries[1].Message != "second" {
		t.Fatalf("entries = %+v", entries)
	}
}
