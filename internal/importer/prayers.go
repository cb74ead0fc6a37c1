package importer

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mesh-intelligence/chronicle/internal/archive"
	"github.com/mesh-intelligence/chronicle/internal/index"
	"github.com/mesh-intelligence/chronicle/pkg/types"
)

// importPrayers walks prayers/YYYY/MM and imports each block file. The
// prayer's own activity lines import alongside it so a rebuilt index
// carries the full interaction history even before the monthly activity
// logs are processed.
func (im *Importer) importPrayers(q *index.Queries, c *CategoryResult, dryRun bool) error {
	dir := archive.PrayersDir(im.root)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil // No prayers archived yet.
	}

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			c.fail(path, 0, err)
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".txt") {
			return nil
		}
		im.importPrayerFileInto(q, c, path, dryRun)
		return nil
	})
}

// importPrayerFileInto imports one prayer file and its embedded activity.
// Failures are recorded on the CategoryResult; the walk continues.
func (im *Importer) importPrayerFileInto(q *index.Queries, c *CategoryResult, path string, dryRun bool) {
	pf, errs := archive.ReadPrayerFile(path)
	for _, e := range errs {
		c.fail(path, 0, e)
	}
	if pf == nil {
		return
	}

	exists, err := q.PrayerExists(pf.ID)
	if err != nil {
		c.fail(path, 0, err)
		return
	}
	if exists {
		c.Skipped++
	} else {
		authorID, err := resolveUser(q, pf.Author)
		if err != nil {
			c.fail(path, 0, err)
			return
		}
		if !dryRun {
			if err := q.InsertPrayer(&types.Prayer{
				PrayerID:    pf.ID,
				AuthorID:    authorID,
				Subject:     pf.Subject,
				Body:        pf.Body,
				Generated:   pf.Generated,
				SubmittedAt: pf.SubmittedAt,
				ArchivePath: path,
			}); err != nil {
				c.fail(path, 0, err)
				return
			}
		}
		c.Imported++
	}

	im.importPrayerActivity(q, c, pf, dryRun)
}

func (im *Importer) importPrayerActivity(q *index.Queries, c *CategoryResult, pf *archive.PrayerFile, dryRun bool) {
	for _, line := range pf.Activity {
		a := &types.Activity{
			ActivityID: index.NewID(),
			PrayerID:   pf.ID,
			Actor:      line.Actor,
			Action:     line.Action,
			OldValue:   line.Old,
			NewValue:   line.New,
			OccurredAt: line.At,
		}
		exists, err := q.ActivityExists(a)
		if err != nil {
			c.fail(pf.Path, 0, err)
			continue
		}
		if exists {
			c.Skipped++
			continue
		}
		if !dryRun {
			if err := q.InsertActivity(a); err != nil {
				c.fail(pf.Path, 0, err)
				continue
			}
		}
		c.Imported++
	}
}
