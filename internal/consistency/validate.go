package consistency

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/chronicle/internal/index"
	"github.com/mesh-intelligence/chronicle/pkg/types"
)

// Issue is one detected inconsistency between the stores.
type Issue struct {
	Kind   string // One of the IssueKind constants.
	Detail string
}

// Issue kinds reported by Validate.
const (
	IssueActorOnlyInIndex   = "actor_only_in_index"
	IssueActorOnlyInArchive = "actor_only_in_archive"
	IssueOrphanedRecord     = "orphaned_record"
	IssueBrokenArchivePath  = "broken_archive_path"
)

// Report is the outcome of one validation run. It is recomputed on demand
// and never persisted as ground truth.
type Report struct {
	Score        float64
	TotalRecords int
	Issues       []Issue
	// ReadErrors are archive files the validator could not read; they do
	// not count against the score but a report with read errors is not
	// authoritative.
	ReadErrors []error
}

// MarshalJSON flattens read errors to their messages for tool output.
func (r *Report) MarshalJSON() ([]byte, error) {
	msgs := make([]string, 0, len(r.ReadErrors))
	for _, err := range r.ReadErrors {
		msgs = append(msgs, err.Error())
	}
	return json.Marshal(struct {
		Score        float64  `json:"score"`
		TotalRecords int      `json:"total_records"`
		Issues       []Issue  `json:"issues,omitempty"`
		ReadErrors   []string `json:"read_errors,omitempty"`
	}{r.Score, r.TotalRecords, r.Issues, msgs})
}

func (r *Report) add(kind, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Kind: kind, Detail: fmt.Sprintf(format, args...)})
}

// Clean reports whether every comparison set matched.
func (r *Report) Clean() bool {
	return len(r.Issues) == 0
}

// Validator computes drift between the index and the archive tree.
type Validator struct {
	idx  *index.Store
	root string
	log  zerolog.Logger
}

// NewValidator creates a Validator over the given stores.
func NewValidator(idx *index.Store, archiveRoot string, log zerolog.Logger) *Validator {
	return &Validator{idx: idx, root: archiveRoot, log: log}
}

// Validate compares actor sets, link fields, and archive-path references
// between the two stores. It never mutates either store. The score is
// 100 minus the issue share of total records, floored at zero, and is
// exactly 100 when every comparison matches.
func (v *Validator) Validate() (*Report, error) {
	if _, err := os.Stat(v.root); err != nil {
		return nil, fmt.Errorf("%s: %w", v.root, types.ErrArchiveRootMissing)
	}

	report := &Report{}
	fromArchive, readErrs := archiveActors(v.root)
	report.ReadErrors = readErrs

	q := v.idx.Q()
	users, err := q.AllUsers()
	if err != nil {
		return nil, err
	}
	inIndex := make(map[string]string, len(users))
	for _, u := range users {
		inIndex[u.NormalizedName] = u.Name
	}

	for _, norm := range sortedKeys(inIndex) {
		if _, ok := fromArchive[norm]; !ok {
			report.add(IssueActorOnlyInIndex, "user %q has no archive trace", inIndex[norm])
		}
	}
	for _, norm := range sortedKeys(fromArchive) {
		if _, ok := inIndex[norm]; !ok {
			report.add(IssueActorOnlyInArchive, "archive actor %q not in index", fromArchive[norm])
		}
	}

	orphans, err := q.OrphanPrayers()
	if err != nil {
		return nil, err
	}
	for _, p := range orphans {
		report.add(IssueOrphanedRecord, "prayer %s has no author link", p.PrayerID)
	}

	if err := v.checkArchivePaths(report); err != nil {
		return nil, err
	}

	report.TotalRecords, err = q.TotalRecords()
	if err != nil {
		return nil, err
	}
	report.Score = score(len(report.Issues), report.TotalRecords)

	v.log.Info().
		Float64("score", report.Score).
		Int("issues", len(report.Issues)).
		Int("records", report.TotalRecords).
		Msg("validation complete")
	return report, nil
}

// checkArchivePaths verifies that every archive-path reference stored on
// an index record resolves to an existing file.
func (v *Validator) checkArchivePaths(report *Report) error {
	q := v.idx.Q()

	prayers, err := q.AllPrayers()
	if err != nil {
		return err
	}
	for _, p := range prayers {
		if p.ArchivePath != "" && !fileExists(p.ArchivePath) {
			report.add(IssueBrokenArchivePath, "prayer %s references missing file %s", p.PrayerID, p.ArchivePath)
		}
	}

	users, err := q.AllUsers()
	if err != nil {
		return err
	}
	for _, u := range users {
		if u.ArchivePath != "" && !fileExists(u.ArchivePath) {
			report.add(IssueBrokenArchivePath, "user %q references missing file %s", u.Name, u.ArchivePath)
		}
	}

	marks, err := q.AllMarks()
	if err != nil {
		return err
	}
	for _, m := range marks {
		if m.ArchivePath != "" && !fileExists(m.ArchivePath) {
			report.add(IssueBrokenArchivePath, "mark %s references missing file %s", m.MarkID, m.ArchivePath)
		}
	}
	return nil
}

func score(issues, records int) float64 {
	if issues == 0 {
		return 100
	}
	if records == 0 {
		return 0
	}
	s := 100 - float64(issues)/float64(records)*100
	if s < 0 {
		return 0
	}
	return s
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
