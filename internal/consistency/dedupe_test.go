package consistency

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/chronicle/internal/index"
	"github.com/mesh-intelligence/chronicle/pkg/types"
)

func insertMark(t *testing.T, idx *index.Store, m *types.Mark) {
	t.Helper()
	if err := idx.InTx(func(q *index.Queries) error {
		return q.InsertMark(m)
	}); err != nil {
		t.Fatal(err)
	}
}

func TestDedupeRemovesTruncationDuplicate(t *testing.T) {
	idx := testIndex(t)
	precise := time.Date(2024, time.March, 5, 10, 15, 43, 0, time.UTC)
	truncated := time.Date(2024, time.March, 5, 10, 15, 0, 0, time.UTC)

	insertMark(t, idx, &types.Mark{
		MarkID: "m-precise", PrayerID: "p-1", UserID: "u1", MarkedAt: precise,
	})
	insertMark(t, idx, &types.Mark{
		MarkID: "m-truncated", PrayerID: "p-1", UserID: "u1", MarkedAt: truncated,
		ArchivePath: "/archives/marks/2024_03_marks.txt",
	})

	result, err := NewDeduper(idx, zerolog.Nop()).Dedupe(false)
	if err != nil {
		t.Fatal(err)
	}
	if result.GroupsProcessed != 1 || result.RowsRemoved != 1 {
		t.Fatalf("result = %+v, want 1 group, 1 removed", result)
	}

	marks, err := idx.Q().AllMarks()
	if err != nil {
		t.Fatal(err)
	}
	if len(marks) != 1 {
		t.Fatalf("marks = %d, want 1 survivor", len(marks))
	}
	if marks[0].MarkID != "m-precise" {
		t.Errorf("survivor = %s, want the sub-minute-precision row", marks[0].MarkID)
	}
	if marks[0].ArchivePath != "/archives/marks/2024_03_marks.txt" {
		t.Errorf("survivor archive path = %q, want absorbed from the removed row", marks[0].ArchivePath)
	}
}

func TestDedupeLeavesDistinctSameMinuteEvents(t *testing.T) {
	idx := testIndex(t)
	a := time.Date(2024, time.March, 5, 10, 15, 10, 0, time.UTC)
	b := time.Date(2024, time.March, 5, 10, 15, 43, 0, time.UTC)

	// Both rows carry sub-minute precision: two real events.
	insertMark(t, idx, &types.Mark{MarkID: "m-1", PrayerID: "p-1", UserID: "u1", MarkedAt: a})
	insertMark(t, idx, &types.Mark{MarkID: "m-2", PrayerID: "p-1", UserID: "u1", MarkedAt: b})

	result, err := NewDeduper(idx, zerolog.Nop()).Dedupe(false)
	if err != nil {
		t.Fatal(err)
	}
	if result.RowsRemoved != 0 {
		t.Errorf("removed %d rows from a non-duplicate group", result.RowsRemoved)
	}
	marks, err := idx.Q().AllMarks()
	if err != nil {
		t.Fatal(err)
	}
	if len(marks) != 2 {
		t.Errorf("marks = %d, want both kept", len(marks))
	}
}

func TestDedupeDifferentKeysNeverGroup(t *testing.T) {
	idx := testIndex(t)
	precise := time.Date(2024, time.March, 5, 10, 15, 43, 0, time.UTC)
	truncated := time.Date(2024, time.March, 5, 10, 15, 0, 0, time.UTC)

	insertMark(t, idx, &types.Mark{MarkID: "m-1", PrayerID: "p-1", UserID: "u1", MarkedAt: precise})
	insertMark(t, idx, &types.Mark{MarkID: "m-2", PrayerID: "p-1", UserID: "u2", MarkedAt: truncated})

	result, err := NewDeduper(idx, zerolog.Nop()).Dedupe(false)
	if err != nil {
		t.Fatal(err)
	}
	if result.RowsRemoved != 0 {
		t.Errorf("removed %d rows across different actors", result.RowsRemoved)
	}
}

func TestDedupeTieBreaksOnSmallestID(t *testing.T) {
	idx := testIndex(t)
	p1 := time.Date(2024, time.March, 5, 10, 15, 43, 0, time.UTC)
	p2 := time.Date(2024, time.March, 5, 10, 15, 50, 0, time.UTC)
	trunc := time.Date(2024, time.March, 5, 10, 15, 0, 0, time.UTC)

	insertMark(t, idx, &types.Mark{MarkID: "m-b", PrayerID: "p-1", UserID: "u1", MarkedAt: p2})
	insertMark(t, idx, &types.Mark{MarkID: "m-a", PrayerID: "p-1", UserID: "u1", MarkedAt: p1})
	insertMark(t, idx, &types.Mark{MarkID: "m-c", PrayerID: "p-1", UserID: "u1", MarkedAt: trunc})

	result, err := NewDeduper(idx, zerolog.Nop()).Dedupe(false)
	if err != nil {
		t.Fatal(err)
	}
	if result.RowsRemoved != 2 {
		t.Fatalf("removed = %d, want 2", result.RowsRemoved)
	}
	marks, err := idx.Q().AllMarks()
	if err != nil {
		t.Fatal(err)
	}
	if len(marks) != 1 || marks[0].MarkID != "m-a" {
		t.Errorf("survivor = %v, want m-a (smallest precise id)", marks)
	}
}

func TestDedupeDryRunMutatesNothing(t *testing.T) {
	idx := testIndex(t)
	precise := time.Date(2024, time.March, 5, 10, 15, 43, 0, time.UTC)
	truncated := time.Date(2024, time.March, 5, 10, 15, 0, 0, time.UTC)

	insertMark(t, idx, &types.Mark{MarkID: "m-1", PrayerID: "p-1", UserID: "u1", MarkedAt: precise})
	insertMark(t, idx, &types.Mark{MarkID: "m-2", PrayerID: "p-1", UserID: "u1", MarkedAt: truncated})

	result, err := NewDeduper(idx, zerolog.Nop()).Dedupe(true)
	if err != nil {
		t.Fatal(err)
	}
	if result.RowsRemoved != 1 {
		t.Errorf("dry run counted %d removals, want 1", result.RowsRemoved)
	}
	marks, err := idx.Q().AllMarks()
	if err != nil {
		t.Fatal(err)
	}
	if len(marks) != 2 {
		t.Errorf("dry run deleted rows: %d left", len(marks))
	}
}

func TestDedupeActivityGroupsIncludeAction(t *testing.T) {
	idx := testIndex(t)
	precise := time.Date(2024, time.March, 5, 10, 15, 43, 0, time.UTC)
	truncated := time.Date(2024, time.March, 5, 10, 15, 0, 0, time.UTC)

	if err := idx.InTx(func(q *index.Queries) error {
		for _, a := range []*types.Activity{
			{ActivityID: "a-1", PrayerID: "p-1", Actor: "Jane", Action: "status_change", OccurredAt: precise},
			{ActivityID: "a-2", PrayerID: "p-1", Actor: "Jane", Action: "status_change", OccurredAt: truncated},
			{ActivityID: "a-3", PrayerID: "p-1", Actor: "Jane", Action: "edit", OccurredAt: truncated},
		} {
			if err := q.InsertActivity(a); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	result, err := NewDeduper(idx, zerolog.Nop()).Dedupe(false)
	if err != nil {
		t.Fatal(err)
	}
	if result.RowsRemoved != 1 {
		t.Fatalf("removed = %d, want only the status_change duplicate", result.RowsRemoved)
	}
	acts, err := idx.Q().AllActivity()
	if err != nil {
		t.Fatal(err)
	}
	ids := make(map[string]bool)
	for _, a := range acts {
		ids[a.ActivityID] = true
	}
	if !ids["a-1"] || !ids["a-3"] || ids["a-2"] {
		t.Errorf("survivors = %v, want a-1 and a-3", ids)
	}
}
