package archive

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestAppendAndReadEventLog(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(root, zerolog.Nop())
	at := time.Date(2024, time.March, 5, 10, 15, 0, 0, time.UTC)

	path, err := w.AppendEvent("sessions", Event{
		At:     at,
		Action: "session_create",
		Actor:  "Jane Doe",
		Payload: map[string]string{
			"session": "abc-123",
			"expires": "2024-03-06T10:15:00Z",
		},
	})
	if err != nil {
		t.Fatalf("AppendEvent failed: %v", err)
	}
	if path != filepath.Join(root, "system", "event_log", "sessions_2024_03.txt") {
		t.Errorf("event log path = %s", path)
	}

	events, errs := ReadEventLog(path)
	if len(errs) != 0 {
		t.Fatalf("ReadEventLog errors: %v", errs)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	ev := events[0]
	if ev.Action != "session_create" || ev.Actor != "Jane Doe" {
		t.Errorf("event = %+v", ev)
	}
	if ev.Payload["session"] != "abc-123" {
		t.Errorf("payload = %v", ev.Payload)
	}
	if !ev.At.Equal(at) {
		t.Errorf("At = %v, want %v", ev.At, at)
	}
}

func TestReadEventLogIsolatesBadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions_2024_03.txt")
	content := "March 05 2024 at 10:15|session_create|Jane|session=a\n" +
		"garbage line without enough fields\n" +
		"March 05 2024 at 10:20|session_expire|Jane|session=a\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	events, errs := ReadEventLog(path)
	if len(events) != 2 {
		t.Errorf("events = %d, want 2", len(events))
	}
	if len(errs) != 1 {
		t.Errorf("errs = %v, want exactly 1", errs)
	}
}
