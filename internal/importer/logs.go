package importer

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mesh-intelligence/chronicle/internal/archive"
	"github.com/mesh-intelligence/chronicle/internal/index"
	"github.com/mesh-intelligence/chronicle/pkg/types"
)

// logLine is one parsed line of a monthly log. Fields excludes the
// leading timestamp.
type logLine struct {
	path   string
	lineNo int
	at     time.Time
	fields []string
}

// forEachLogLine streams every line of every .txt file in dir, in
// filename order (which is chronological under the layout contract).
// Parse failures go to the CategoryResult; processing continues.
func forEachLogLine(dir string, c *CategoryResult, fn func(logLine)) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil // No archive for this category yet.
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".txt") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, name)
		f, err := os.Open(path)
		if err != nil {
			c.fail(path, 0, err)
			continue
		}
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := strings.TrimRight(scanner.Text(), "\r")
			if line == "" {
				continue
			}
			fields := archive.SplitFields(line)
			at, err := archive.ParseTimestamp(fields[0])
			if err != nil {
				c.fail(path, lineNo, err)
				continue
			}
			fn(logLine{path: path, lineNo: lineNo, at: at, fields: fields[1:]})
		}
		if err := scanner.Err(); err != nil {
			c.fail(path, lineNo, err)
		}
		f.Close()
	}
	return nil
}

// field returns the i-th payload field or "".
func (l logLine) field(i int) string {
	if i < len(l.fields) {
		return l.fields[i]
	}
	return ""
}

// importUsers imports registration lines: name|email.
func (im *Importer) importUsers(q *index.Queries, c *CategoryResult, dryRun bool) error {
	return forEachLogLine(filepath.Join(im.root, "users"), c, func(l logLine) {
		name := l.field(0)
		if name == "" {
			c.fail(l.path, l.lineNo, fmt.Errorf("registration line without a name"))
			return
		}
		norm := types.Normalize(name)
		_, err := q.UserByNormalizedName(norm)
		if err == nil {
			c.Skipped++
			return
		}
		if err != types.ErrNotFound {
			c.fail(l.path, l.lineNo, err)
			return
		}
		if !dryRun {
			if err := q.InsertUser(&types.User{
				UserID:         index.NewID(),
				Name:           name,
				NormalizedName: norm,
				Email:          l.field(1),
				CreatedAt:      l.at,
				Source:         types.SourceImport,
				ArchivePath:    l.path,
			}); err != nil {
				c.fail(l.path, l.lineNo, err)
				return
			}
		}
		c.Imported++
	})
}

// importAttributes imports flag lines: prayer|name|value|created_by.
func (im *Importer) importAttributes(q *index.Queries, c *CategoryResult, dryRun bool) error {
	return forEachLogLine(filepath.Join(im.root, "attributes"), c, func(l logLine) {
		prayerID, name, createdBy := l.field(0), l.field(1), l.field(3)
		if prayerID == "" || name == "" {
			c.fail(l.path, l.lineNo, fmt.Errorf("attribute line missing prayer or name"))
			return
		}
		exists, err := q.AttributeExists(prayerID, name, createdBy, l.at)
		if err != nil {
			c.fail(l.path, l.lineNo, err)
			return
		}
		if exists {
			c.Skipped++
			return
		}
		if !dryRun {
			if err := q.InsertAttribute(&types.Attribute{
				AttributeID: index.NewID(),
				PrayerID:    prayerID,
				Name:        name,
				Value:       l.field(2),
				CreatedBy:   createdBy,
				CreatedAt:   l.at,
			}); err != nil {
				c.fail(l.path, l.lineNo, err)
				return
			}
		}
		c.Imported++
	})
}

// importSecurity imports security lines: event_type|actor|detail.
func (im *Importer) importSecurity(q *index.Queries, c *CategoryResult, dryRun bool) error {
	return forEachLogLine(filepath.Join(im.root, "security"), c, func(l logLine) {
		eventType, actor := l.field(0), l.field(1)
		if eventType == "" {
			c.fail(l.path, l.lineNo, fmt.Errorf("security line without an event type"))
			return
		}
		exists, err := q.SecurityEventExists(l.at, eventType, actor)
		if err != nil {
			c.fail(l.path, l.lineNo, err)
			return
		}
		if exists {
			c.Skipped++
			return
		}
		if !dryRun {
			if err := q.InsertSecurityEvent(&types.SecurityEvent{
				EventID:    index.NewID(),
				OccurredAt: l.at,
				EventType:  eventType,
				Actor:      actor,
				Detail:     l.field(2),
			}); err != nil {
				c.fail(l.path, l.lineNo, err)
				return
			}
		}
		c.Imported++
	})
}

// importMarks imports interaction marks: prayer|actor. The actor must
// resolve to an indexed user; an unresolved actor is a counted failure,
// never a fabricated link.
func (im *Importer) importMarks(q *index.Queries, c *CategoryResult, dryRun bool) error {
	return forEachLogLine(filepath.Join(im.root, "marks"), c, func(l logLine) {
		prayerID, actor := l.field(0), l.field(1)
		if prayerID == "" || actor == "" {
			c.fail(l.path, l.lineNo, fmt.Errorf("mark line missing prayer or actor"))
			return
		}
		userID, err := resolveUser(q, actor)
		if err != nil {
			c.fail(l.path, l.lineNo, err)
			return
		}
		if userID == "" {
			c.fail(l.path, l.lineNo, fmt.Errorf("actor %q not found in index", actor))
			return
		}
		exists, err := q.MarkExists(prayerID, userID, l.at)
		if err != nil {
			c.fail(l.path, l.lineNo, err)
			return
		}
		if exists {
			c.Skipped++
			return
		}
		if !dryRun {
			if err := q.InsertMark(&types.Mark{
				MarkID:      index.NewID(),
				PrayerID:    prayerID,
				UserID:      userID,
				MarkedAt:    l.at,
				ArchivePath: l.path,
			}); err != nil {
				c.fail(l.path, l.lineNo, err)
				return
			}
		}
		c.Imported++
	})
}

// importActivity imports activity lines: prayer|actor|action|old|new.
// Activity stores the actor name verbatim; the natural key is the full
// field set.
func (im *Importer) importActivity(q *index.Queries, c *CategoryResult, dryRun bool) error {
	return forEachLogLine(filepath.Join(im.root, "activity"), c, func(l logLine) {
		a := &types.Activity{
			ActivityID: index.NewID(),
			PrayerID:   l.field(0),
			Actor:      l.field(1),
			Action:     l.field(2),
			OldValue:   l.field(3),
			NewValue:   l.field(4),
			OccurredAt: l.at,
		}
		if a.PrayerID == "" || a.Action == "" {
			c.fail(l.path, l.lineNo, fmt.Errorf("activity line missing prayer or action"))
			return
		}
		exists, err := q.ActivityExists(a)
		if err != nil {
			c.fail(l.path, l.lineNo, err)
			return
		}
		if exists {
			c.Skipped++
			return
		}
		if !dryRun {
			if err := q.InsertActivity(a); err != nil {
				c.fail(l.path, l.lineNo, err)
				return
			}
		}
		c.Imported++
	})
}
