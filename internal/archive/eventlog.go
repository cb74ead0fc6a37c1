package archive

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// Event is one line of an ephemeral-category event log: a timestamped,
// append-only record of a state change. Event logs are never modified or
// deleted once written.
type Event struct {
	At      time.Time
	Action  string
	Actor   string
	Payload map[string]string
}

// AppendEvent appends one event line to the category's monthly event log
// and returns the path written. Payload keys are written sorted so the
// line is stable for a given event.
func (w *Writer) AppendEvent(category string, ev Event) (string, error) {
	path := EventLogPath(w.root, category, ev.At)

	fields := []string{FormatLogTime(ev.At), ev.Action, ev.Actor}
	keys := make([]string, 0, len(ev.Payload))
	for k := range ev.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, k+"="+ev.Payload[k])
	}

	if err := w.appendLine(path, JoinFields(fields)); err != nil {
		return "", err
	}
	return path, nil
}

// ReadEventLog parses one event-log file. Malformed lines are returned as
// errors alongside the events that did parse; one bad line never hides the
// rest of the file.
func ReadEventLog(path string) ([]Event, []error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, []error{fmt.Errorf("opening %s: %w", path, err)}
	}
	defer f.Close()

	var events []Event
	var errs []error
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		ev, err := parseEventLine(line)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s:%d: %w", path, lineNo, err))
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, fmt.Errorf("scanning %s: %w", path, err))
	}
	return events, errs
}

func parseEventLine(line string) (Event, error) {
	fields := SplitFields(line)
	if len(fields) < 3 {
		return Event{}, fmt.Errorf("want at least 3 fields, got %d", len(fields))
	}
	at, err := ParseTimestamp(fields[0])
	if err != nil {
		return Event{}, err
	}
	ev := Event{
		At:      at,
		Action:  fields[1],
		Actor:   fields[2],
		Payload: make(map[string]string),
	}
	for _, kv := range fields[3:] {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return Event{}, fmt.Errorf("malformed payload field %q", kv)
		}
		ev.Payload[k] = v
	}
	return ev, nil
}
