package importer

import (
	"errors"
	"fmt"
	"os"

	"github.com/mesh-intelligence/chronicle/internal/archive"
	"github.com/mesh-intelligence/chronicle/internal/index"
	"github.com/mesh-intelligence/chronicle/pkg/types"
)

// ImportPrayerFile imports one prayer archive file. The file must pass
// the structural contract (header, Submitted, Generated, Activity
// markers); a non-conformant file is rejected with the specific missing
// marker, never a lenient parse.
//
// With updateExisting, a changed archive file re-imports over an existing
// entity: content fields are rewritten and the activity history is
// reconciled by minute-level timestamp matching, since the archive form
// carries minute precision only. That truncation can produce same-minute
// near-duplicates; the dedup tool removes them.
func (im *Importer) ImportPrayerFile(path string, updateExisting bool) (*CategoryResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := archive.ValidatePrayerFile(path, content); err != nil {
		var fe *archive.FormatError
		if errors.As(err, &fe) {
			return nil, fe
		}
		return nil, err
	}

	c := &CategoryResult{Category: types.CategoryPrayers}
	txErr := im.idx.InTx(func(q *index.Queries) error {
		pf, errs := archive.ReadPrayerFile(path)
		for _, e := range errs {
			c.fail(path, 0, e)
		}
		if pf == nil {
			return fmt.Errorf("unparseable prayer file %s", path)
		}

		exists, err := q.PrayerExists(pf.ID)
		if err != nil {
			return err
		}
		switch {
		case !exists:
			im.importPrayerFileInto(q, c, path, false)
		case updateExisting:
			if err := im.updatePrayerFrom(q, c, pf); err != nil {
				return err
			}
		default:
			c.Skipped++
		}
		return nil
	})
	if txErr != nil {
		c.Err = txErr
	}
	return c, nil
}

// updatePrayerFrom rewrites an indexed prayer from its re-read archive
// file and inserts any activity line with no same-minute match.
func (im *Importer) updatePrayerFrom(q *index.Queries, c *CategoryResult, pf *archive.PrayerFile) error {
	if err := q.UpdatePrayer(&types.Prayer{
		PrayerID:    pf.ID,
		Subject:     pf.Subject,
		Body:        pf.Body,
		Generated:   pf.Generated,
		SubmittedAt: pf.SubmittedAt,
		ArchivePath: pf.Path,
	}); err != nil {
		return err
	}
	c.Imported++

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
		matched, err := q.ActivityExistsInMinute(a, archive.TruncateMinute(line.At))
		if err != nil {
			c.fail(pf.Path, 0, err)
			continue
		}
		if matched {
			c.Skipped++
			continue
		}
		if err := q.InsertActivity(a); err != nil {
			c.fail(pf.Path, 0, err)
			continue
		}
		c.Imported++
	}
	return nil
}
