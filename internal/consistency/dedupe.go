package consistency

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/chronicle/internal/archive"
	"github.com/mesh-intelligence/chronicle/internal/index"
	"github.com/mesh-intelligence/chronicle/pkg/types"
)

// DedupeResult is the outcome of one deduplication run.
type DedupeResult struct {
	DryRun          bool
	GroupsProcessed int // Groups that held a truncation duplicate.
	RowsRemoved     int
	Errors          []error
}

// MarshalJSON flattens wrapped errors to their messages for tool output.
func (r *DedupeResult) MarshalJSON() ([]byte, error) {
	msgs := make([]string, 0, len(r.Errors))
	for _, err := range r.Errors {
		msgs = append(msgs, err.Error())
	}
	return json.Marshal(struct {
		DryRun          bool     `json:"dry_run"`
		GroupsProcessed int      `json:"groups_processed"`
		RowsRemoved     int      `json:"rows_removed"`
		Errors          []string `json:"errors,omitempty"`
	}{r.DryRun, r.GroupsProcessed, r.RowsRemoved, msgs})
}

// Deduper removes near-duplicate interaction records left behind by the
// minute-precision archive form: a reconstruction that re-imports an
// archived line lands on :00 seconds, while the originally indexed row
// kept its full timestamp. Two genuinely distinct same-minute events
// both carry (or both lack) sub-minute precision and are left alone.
type Deduper struct {
	idx *index.Store
	log zerolog.Logger
}

// NewDeduper creates a Deduper over the given index.
func NewDeduper(idx *index.Store, log zerolog.Logger) *Deduper {
	return &Deduper{idx: idx, log: log}
}

// dupRow is the category-independent view of one deduplicable record.
type dupRow struct {
	id          string
	at          time.Time
	archivePath string
}

// hasSubMinute reports whether the timestamp carries seconds or finer.
func hasSubMinute(t time.Time) bool {
	return t.Second() != 0 || t.Nanosecond() != 0
}

// groupKey builds the minute-truncated grouping key from the natural-key
// parts of a record, excluding its timestamp's sub-minute components.
func groupKey(at time.Time, parts ...string) string {
	return strings.Join(parts, "\x00") + "\x00" + archive.TruncateMinute(at).UTC().Format(time.RFC3339)
}

// Dedupe scans marks, activity entries, and attributes for truncation
// duplicates and removes all but the canonical survivor of each group.
// The survivor is the row with sub-minute precision (smallest ID on
// ties) and absorbs the first non-empty archive path in its group.
func (d *Deduper) Dedupe(dryRun bool) (*DedupeResult, error) {
	result := &DedupeResult{DryRun: dryRun}
	err := d.idx.InTx(func(q *index.Queries) error {
		d.dedupeMarks(q, result, dryRun)
		d.dedupeActivity(q, result, dryRun)
		d.dedupeAttributes(q, result, dryRun)
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.log.Info().
		Int("groups", result.GroupsProcessed).
		Int("removed", result.RowsRemoved).
		Bool("dry_run", dryRun).
		Msg("deduplication complete")
	return result, nil
}

// processGroups applies the duplicate rule to each group and removes the
// losers. A group is a duplicate only when it mixes zero and non-zero
// sub-minute precision.
func (d *Deduper) processGroups(groups map[string][]dupRow, result *DedupeResult, dryRun bool,
	remove func(id string) error, absorb func(id, path string) error) {

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		rows := groups[k]
		if len(rows) < 2 {
			continue
		}
		var precise, truncated int
		for _, r := range rows {
			if hasSubMinute(r.at) {
				precise++
			} else {
				truncated++
			}
		}
		if precise == 0 || truncated == 0 {
			continue // Distinct same-minute events, not a truncation artifact.
		}

		survivor := pickSurvivor(rows)
		result.GroupsProcessed++

		if path := firstArchivePath(rows); path != "" && survivor.archivePath == "" && absorb != nil {
			if !dryRun {
				if err := absorb(survivor.id, path); err != nil {
					result.Errors = append(result.Errors, err)
					continue
				}
			}
		}
		for _, r := range rows {
			if r.id == survivor.id {
				continue
			}
			if !dryRun {
				if err := remove(r.id); err != nil {
					result.Errors = append(result.Errors, err)
					continue
				}
			}
			result.RowsRemoved++
		}
	}
}

// pickSurvivor prefers sub-minute precision, then the lexicographically
// smallest ID.
func pickSurvivor(rows []dupRow) dupRow {
	best := rows[0]
	for _, r := range rows[1:] {
		bp, rp := hasSubMinute(best.at), hasSubMinute(r.at)
		switch {
		case rp && !bp:
			best = r
		case rp == bp && r.id < best.id:
			best = r
		}
	}
	return best
}

func firstArchivePath(rows []dupRow) string {
	for _, r := range rows {
		if r.archivePath != "" {
			return r.archivePath
		}
	}
	return ""
}

func (d *Deduper) dedupeMarks(q *index.Queries, result *DedupeResult, dryRun bool) {
	marks, err := q.AllMarks()
	if err != nil {
		result.Errors = append(result.Errors, err)
		return
	}
	groups := make(map[string][]dupRow)
	for _, m := range marks {
		k := groupKey(m.MarkedAt, types.CategoryMarks, m.PrayerID, m.UserID)
		groups[k] = append(groups[k], dupRow{id: m.MarkID, at: m.MarkedAt, archivePath: m.ArchivePath})
	}
	d.processGroups(groups, result, dryRun, q.DeleteMark, q.SetMarkArchivePath)
}

func (d *Deduper) dedupeActivity(q *index.Queries, result *DedupeResult, dryRun bool) {
	acts, err := q.AllActivity()
	if err != nil {
		result.Errors = append(result.Errors, err)
		return
	}
	groups := make(map[string][]dupRow)
	for _, a := range acts {
		k := groupKey(a.OccurredAt, types.CategoryActivity, a.PrayerID, a.Actor, a.Action)
		groups[k] = append(groups[k], dupRow{id: a.ActivityID, at: a.OccurredAt})
	}
	d.processGroups(groups, result, dryRun, q.DeleteActivity, nil)
}

func (d *Deduper) dedupeAttributes(q *index.Queries, result *DedupeResult, dryRun bool) {
	attrs, err := q.AllAttributes()
	if err != nil {
		result.Errors = append(result.Errors, err)
		return
	}
	groups := make(map[string][]dupRow)
	for _, a := range attrs {
		k := groupKey(a.CreatedAt, types.CategoryAttributes, a.PrayerID, a.Name, a.CreatedBy)
		groups[k] = append(groups[k], dupRow{id: a.AttributeID, at: a.CreatedAt})
	}
	d.processGroups(groups, result, dryRun, q.DeleteAttribute, nil)
}
