package archive

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mesh-intelligence/chronicle/pkg/types"
)

// Prayer block-file format. One file per prayer, structured as:
//
//	Prayer <id> from <author>
//	Submitted: <log timestamp>
//	Generated: yes|no
//	Subject: <escaped>
//	Body: <escaped>
//	Activity:
//	  <log timestamp>|<actor>|<action>|<old>|<new>
//
// The first four markers (header, Submitted, Generated, Activity) form the
// structural contract: a file missing any of them is rejected with a
// diagnostic naming the marker, never parsed leniently.

// Structural marker names used in FormatError diagnostics.
const (
	MarkerHeader    = "header"
	MarkerSubmitted = "Submitted"
	MarkerGenerated = "Generated"
	MarkerActivity  = "Activity"
)

// FormatError reports a prayer file that fails the structural contract.
type FormatError struct {
	Path    string
	Missing string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("prayer file %s: missing %s marker", e.Path, e.Missing)
}

// PrayerActivity is one activity line inside a prayer file.
type PrayerActivity struct {
	At     time.Time
	Actor  string
	Action string
	Old    string
	New    string
}

// PrayerFile is the parsed form of one prayer archive file.
type PrayerFile struct {
	ID          string
	Author      string
	SubmittedAt time.Time
	Generated   bool
	Subject     string
	Body        string
	Activity    []PrayerActivity
	Path        string
}

// WritePrayer creates the archive file for a new prayer and returns its
// path. The file must not already exist; corrections are appended activity
// lines, never edits.
func (w *Writer) WritePrayer(p *types.Prayer, author string) (string, error) {
	path := PrayerPath(w.root, p.PrayerID, p.SubmittedAt)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating prayer dir: %w", err)
	}

	generated := "no"
	if p.Generated {
		generated = "yes"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Prayer %s from %s\n", p.PrayerID, EscapeField(author))
	fmt.Fprintf(&b, "Submitted: %s\n", FormatLogTime(p.SubmittedAt))
	fmt.Fprintf(&b, "Generated: %s\n", generated)
	fmt.Fprintf(&b, "Subject: %s\n", EscapeField(p.Subject))
	fmt.Fprintf(&b, "Body: %s\n", EscapeField(p.Body))
	b.WriteString("Activity:\n")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	if _, err := f.WriteString(b.String()); err != nil {
		f.Close()
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return "", fmt.Errorf("syncing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", path, err)
	}
	return path, nil
}

// AppendPrayerActivity appends one activity line to an existing prayer
// file's Activity section.
func (w *Writer) AppendPrayerActivity(path string, a PrayerActivity) error {
	line := "  " + JoinFields([]string{
		FormatLogTime(a.At), a.Actor, a.Action, a.Old, a.New,
	})
	return w.appendLine(path, line)
}

// ValidatePrayerFile checks the structural contract against raw file
// content. It returns a *FormatError naming the first missing marker, or
// nil when the file conforms.
func ValidatePrayerFile(path string, content []byte) error {
	text := string(content)
	lines := strings.Split(text, "\n")

	hasHeader := false
	for _, l := range lines {
		if strings.HasPrefix(l, "Prayer ") && strings.Contains(l, " from ") {
			hasHeader = true
			break
		}
	}
	if !hasHeader {
		return &FormatError{Path: path, Missing: MarkerHeader}
	}
	for _, marker := range []string{MarkerSubmitted, MarkerGenerated} {
		if !containsLinePrefix(lines, marker+": ") {
			return &FormatError{Path: path, Missing: marker}
		}
	}
	if !containsLinePrefix(lines, MarkerActivity+":") {
		return &FormatError{Path: path, Missing: MarkerActivity}
	}
	return nil
}

func containsLinePrefix(lines []string, prefix string) bool {
	for _, l := range lines {
		if strings.HasPrefix(l, prefix) {
			return true
		}
	}
	return false
}

// ReadPrayerFile validates and parses one prayer archive file. Activity
// lines that fail to parse are returned as errors alongside the parsed
// file; structural failures return a *FormatError and no file.
func ReadPrayerFile(path string) (*PrayerFile, []error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, []error{fmt.Errorf("reading %s: %w", path, err)}
	}
	if err := ValidatePrayerFile(path, content); err != nil {
		return nil, []error{err}
	}

	pf := &PrayerFile{Path: path}
	var errs []error
	inActivity := false

	scanner := bufio.NewScanner(strings.NewReader(string(content)))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")

		switch {
		case strings.HasPrefix(line, "Prayer ") && strings.Contains(line, " from ") && pf.ID == "":
			rest := strings.TrimPrefix(line, "Prayer ")
			id, author, _ := strings.Cut(rest, " from ")
			pf.ID = strings.TrimSpace(id)
			pf.Author = UnescapeField(strings.TrimSpace(author))
		case strings.HasPrefix(line, "Submitted: "):
			at, err := ParseTimestamp(strings.TrimPrefix(line, "Submitted: "))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s:%d: %w", path, lineNo, err))
				continue
			}
			pf.SubmittedAt = at
		case strings.HasPrefix(line, "Generated: "):
			pf.Generated = strings.TrimPrefix(line, "Generated: ") == "yes"
		case strings.HasPrefix(line, "Subject: "):
			pf.Subject = UnescapeField(strings.TrimPrefix(line, "Subject: "))
		case strings.HasPrefix(line, "Body: "):
			pf.Body = UnescapeField(strings.TrimPrefix(line, "Body: "))
		case strings.HasPrefix(line, "Activity:"):
			inActivity = true
		case inActivity && strings.HasPrefix(line, "  ") && strings.TrimSpace(line) != "":
			a, err := parsePrayerActivity(strings.TrimSpace(line))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s:%d: %w", path, lineNo, err))
				continue
			}
			pf.Activity = append(pf.Activity, a)
		}
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, fmt.Errorf("scanning %s: %w", path, err))
	}
	return pf, errs
}

func parsePrayerActivity(line string) (PrayerActivity, error) {
	fields := SplitFields(line)
	if len(fields) < 5 {
		return PrayerActivity{}, fmt.Errorf("activity line: want 5 fields, got %d", len(fields))
	}
	at, err := ParseTimestamp(fields[0])
	if err != nil {
		return PrayerActivity{}, err
	}
	return PrayerActivity{
		At:     at,
		Actor:  fields[1],
		Action: fields[2],
		Old:    fields[3],
		New:    fields[4],
	}, nil
}
