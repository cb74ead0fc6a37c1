// Package consistency compares the index with archive-derived facts. The
// validator is a read-only diagnostic; the repair and dedup tools mutate
// only under an explicit execute flag and are safe to re-run until they
// converge. See docs/ARCHITECTURE § Consistency.
package consistency

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mesh-intelligence/chronicle/internal/archive"
	"github.com/mesh-intelligence/chronicle/pkg/types"
)

// archiveActors enumerates every actor name discoverable anywhere in the
// archive tree, keyed by normalized form; the value keeps the first
// display form seen for reporting and placeholder creation.
func archiveActors(root string) (map[string]string, []error) {
	actors := make(map[string]string)
	var errs []error
	record := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		norm := types.Normalize(name)
		if _, ok := actors[norm]; !ok {
			actors[norm] = name
		}
	}

	// Registration logs: name is the first payload field.
	walkLogs(filepath.Join(root, "users"), &errs, func(fields []string) {
		if len(fields) > 1 {
			record(fields[1])
		}
	})
	// Marks: actor is the second payload field.
	walkLogs(filepath.Join(root, "marks"), &errs, func(fields []string) {
		if len(fields) > 2 {
			record(fields[2])
		}
	})
	// Activity logs: actor is the second payload field.
	walkLogs(filepath.Join(root, "activity"), &errs, func(fields []string) {
		if len(fields) > 2 {
			record(fields[2])
		}
	})
	// Attribute flags: created_by is the fourth payload field.
	walkLogs(filepath.Join(root, "attributes"), &errs, func(fields []string) {
		if len(fields) > 4 {
			record(fields[4])
		}
	})

	// Prayer files: authorship header plus embedded activity actors.
	prayersDir := archive.PrayersDir(root)
	if _, err := os.Stat(prayersDir); err == nil {
		walkErr := filepath.WalkDir(prayersDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				errs = append(errs, err)
				return nil
			}
			if d.IsDir() || !strings.HasSuffix(d.Name(), ".txt") {
				return nil
			}
			pf, perrs := archive.ReadPrayerFile(path)
			errs = append(errs, perrs...)
			if pf == nil {
				return nil
			}
			record(pf.Author)
			for _, a := range pf.Activity {
				record(a.Actor)
			}
			return nil
		})
		if walkErr != nil {
			errs = append(errs, walkErr)
		}
	}
	return actors, errs
}

// walkLogs applies fn to the split fields (timestamp included as field 0)
// of every line in every .txt file under dir. Unparseable lines are the
// importer's concern, not the validator's, so only I/O failures are
// collected.
func walkLogs(dir string, errs *[]error, fn func(fields []string)) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		*errs = append(*errs, err)
		return
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".txt") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			*errs = append(*errs, err)
			continue
		}
		for _, line := range strings.Split(string(content), "\n") {
			line = strings.TrimRight(line, "\r")
			if line == "" {
				continue
			}
			fn(archive.SplitFields(line))
		}
	}
}
