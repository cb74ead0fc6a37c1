package archive

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSnapshotRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "system", "current_state", "sessions.txt")
	blocks := []Block{
		{
			Kind: "Session", ID: "abc-123",
			Fields: map[string]string{
				"User":    "Jane Doe",
				"Created": "2024-03-05T14:30:43Z",
				"Expires": "2024-03-06T14:30:43Z",
			},
			Order: []string{"User", "Created", "Expires"},
		},
		{
			Kind: "Session", ID: "def|456",
			Fields: map[string]string{"User": "Bob", "Created": "2024-03-05T15:00:00Z"},
			Order:  []string{"User", "Created"},
		},
	}

	if err := WriteSnapshot(path, "sessions", time.Now(), blocks); err != nil {
		t.Fatalf("WriteSnapshot failed: %v", err)
	}

	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("blocks = %d, want 2", len(got))
	}
	if got[0].Kind != "Session" || got[0].ID != "abc-123" {
		t.Errorf("block 0 header: %+v", got[0])
	}
	if got[0].Field("User") != "Jane Doe" {
		t.Errorf("User = %q", got[0].Field("User"))
	}
	if got[1].ID != "def|456" {
		t.Errorf("escaped ID not recovered: %q", got[1].ID)
	}
}

func TestSnapshotOverwriteIsComplete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.txt")
	many := []Block{
		{Kind: "Session", ID: "a", Fields: map[string]string{"User": "x"}, Order: []string{"User"}},
		{Kind: "Session", ID: "b", Fields: map[string]string{"User": "y"}, Order: []string{"User"}},
	}
	if err := WriteSnapshot(path, "sessions", time.Now(), many); err != nil {
		t.Fatal(err)
	}
	one := many[:1]
	if err := WriteSnapshot(path, "sessions", time.Now(), one); err != nil {
		t.Fatal(err)
	}

	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("snapshot must be a full replacement, got %d blocks", len(got))
	}

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".snapshot-") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestReadSnapshotMissingFile(t *testing.T) {
	_, err := ReadSnapshot(filepath.Join(t.TempDir(), "nope.txt"))
	if !os.IsNotExist(err) {
		t.Errorf("want os.IsNotExist error, got %v", err)
	}
}
