package archive

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/chronicle/pkg/types"
)

func TestAppendPartitioning(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(root, zerolog.Nop())
	at := time.Date(2024, time.March, 5, 10, 15, 0, 0, time.UTC)

	tests := []struct {
		category string
		want     string
	}{
		{types.CategoryUsers, "users/2024_03_users.txt"},
		{types.CategoryMarks, "marks/marks_2024_03.txt"},
		{types.CategoryActivity, "activity/activity_2024_03.txt"},
		{types.CategorySecurity, "security/security_2024_03.txt"},
	}
	for _, tc := range tests {
		path, err := w.Append(tc.category, at, []string{"Jane Doe", "detail"})
		if err != nil {
			t.Fatalf("Append(%s) failed: %v", tc.category, err)
		}
		if path != filepath.Join(root, tc.want) {
			t.Errorf("Append(%s) path = %s, want .../%s", tc.category, path, tc.want)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("returned path does not exist: %v", err)
		}
	}
}

func TestAppendAccumulatesLines(t *testing.T) {
	w := NewWriter(t.TempDir(), zerolog.Nop())
	at := time.Date(2024, time.March, 5, 10, 15, 0, 0, time.UTC)

	var path string
	var err error
	for i := 0; i < 3; i++ {
		path, err = w.Append(types.CategoryUsers, at, []string{"user", "registered"})
		if err != nil {
			t.Fatal(err)
		}
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	if len(lines) != 3 {
		t.Errorf("lines = %d, want 3", len(lines))
	}
	fields := SplitFields(lines[0])
	if fields[0] != "March 05 2024 at 10:15" {
		t.Errorf("timestamp field = %q", fields[0])
	}
}

func TestAppendUnknownCategoryFailsClosed(t *testing.T) {
	w := NewWriter(t.TempDir(), zerolog.Nop())
	path, err := w.Append("nonsense", time.Now(), []string{"x"})
	if err == nil {
		t.Fatal("expected error for unknown category")
	}
	if path != "" {
		t.Errorf("failed append must not return a path, got %q", path)
	}
}

func TestAppendEscapesPayload(t *testing.T) {
	w := NewWriter(t.TempDir(), zerolog.Nop())
	at := time.Date(2024, time.March, 5, 10, 15, 0, 0, time.UTC)

	path, err := w.Append(types.CategoryActivity, at, []string{"p1", "Jane|Doe", "note\nwith newline"})
	if err != nil {
		t.Fatal(err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	// One physical line, payload recoverable.
	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	if len(lines) != 1 {
		t.Fatalf("embedded newline leaked into archive: %d lines", len(lines))
	}
	fields := SplitFields(lines[0])
	if fields[2] != "Jane|Doe" || fields[3] != "note\nwith newline" {
		t.Errorf("payload not recovered: %v", fields)
	}
}
