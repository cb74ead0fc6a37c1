package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/chronicle/internal/archive"
	"github.com/mesh-intelligence/chronicle/internal/index"
	"github.com/mesh-intelligence/chronicle/pkg/types"
)

func testEnv(t *testing.T) (*Importer, *index.Store, *archive.Writer, string) {
	t.Helper()
	idx, err := index.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })
	root := t.TempDir()
	w := archive.NewWriter(root, zerolog.Nop())
	return New(idx, root, zerolog.Nop()), idx, w, root
}

func categoryResult(t *testing.T, r *Result, category string) CategoryResult {
	t.Helper()
	for _, c := range r.Categories {
		if c.Category == category {
			return c
		}
	}
	t.Fatalf("no result for category %s", category)
	return CategoryResult{}
}

func seedArchive(t *testing.T, w *archive.Writer) {
	t.Helper()
	at := time.Date(2024, time.March, 5, 10, 15, 0, 0, time.UTC)

	if _, err := w.Append(types.CategoryUsers, at, []string{"Jane Doe", "jane@example.org"}); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Append(types.CategoryUsers, at.Add(time.Hour), []string{"Bob Smith", ""}); err != nil {
		t.Fatal(err)
	}
	p := &types.Prayer{
		PrayerID:    "p-001",
		Subject:     "For the harvest",
		Body:        "Line one.\nLine two.",
		SubmittedAt: at,
	}
	path, err := w.WritePrayer(p, "Jane Doe")
	if err != nil {
		t.Fatal(err)
	}
	if err := w.AppendPrayerActivity(path, archive.PrayerActivity{
		At: at.Add(2 * time.Hour), Actor: "Bob Smith", Action: "status_change", Old: "open", New: "answered",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Append(types.CategoryMarks, at.Add(3*time.Hour), []string{"p-001", "Bob Smith"}); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Append(types.CategorySecurity, at, []string{"login_failed", "Jane Doe", "bad password"}); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Append(types.CategoryAttributes, at, []string{"p-001", "flagged", "spam", "Bob Smith"}); err != nil {
		t.Fatal(err)
	}
}

func TestImportAllIsIdempotent(t *testing.T) {
	im, idx, w, _ := testEnv(t)
	seedArchive(t, w)

	first, err := im.ImportAll(context.Background(), false)
	if err != nil {
		t.Fatalf("first import: %v", err)
	}
	if first.HasFailures() {
		imported, skipped, failed := first.Totals()
		t.Fatalf("first import failures: imported=%d skipped=%d failed=%d cats=%+v",
			imported, skipped, failed, first.Categories)
	}

	countAll := func() int {
		n, err := idx.Q().TotalRecords()
		if err != nil {
			t.Fatal(err)
		}
		return n
	}
	afterFirst := countAll()

	second, err := im.ImportAll(context.Background(), false)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	imported, skipped, _ := second.Totals()
	if imported != 0 {
		t.Errorf("second import imported %d records, want 0", imported)
	}
	if skipped == 0 {
		t.Error("second import skipped nothing; natural keys not matching")
	}
	if got := countAll(); got != afterFirst {
		t.Errorf("row count changed on re-import: %d -> %d", afterFirst, got)
	}
}

func TestImportOrderLeavesPrayersOrphanedForRepair(t *testing.T) {
	// Content items import before actors, so a fresh rebuild leaves the
	// author link unresolved; reconciliation patches it later.
	im, idx, w, _ := testEnv(t)
	seedArchive(t, w)

	if _, err := im.ImportAll(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	orphans, err := idx.Q().OrphanPrayers()
	if err != nil {
		t.Fatal(err)
	}
	if len(orphans) != 1 {
		t.Errorf("orphans = %d, want 1", len(orphans))
	}
}

func TestImportMarksMalformedTimestampIsolated(t *testing.T) {
	im, idx, w, root := testEnv(t)
	at := time.Date(2024, time.March, 5, 10, 15, 0, 0, time.UTC)

	if _, err := w.Append(types.CategoryUsers, at, []string{"Jane Doe", ""}); err != nil {
		t.Fatal(err)
	}
	// Three mark lines; line 2 has a malformed timestamp.
	marksPath := archive.MarksLogPath(root, at)
	if err := os.MkdirAll(filepath.Dir(marksPath), 0o755); err != nil {
		t.Fatal(err)
	}
	content := "March 05 2024 at 10:15|p-001|Jane Doe\n" +
		"garbage timestamp|p-001|Jane Doe\n" +
		"March 05 2024 at 10:17|p-002|Jane Doe\n"
	if err := os.WriteFile(marksPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := im.ImportAll(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	marks := categoryResult(t, result, types.CategoryMarks)
	if marks.Imported != 2 {
		t.Errorf("imported = %d, want 2", marks.Imported)
	}
	if marks.Failed != 1 {
		t.Errorf("failed = %d, want 1", marks.Failed)
	}
	if len(marks.Errors) != 1 || marks.Errors[0].Line != 2 {
		t.Errorf("error attribution = %+v, want line 2", marks.Errors)
	}

	rows, err := idx.Q().AllMarks()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Errorf("mark rows = %d, want 2", len(rows))
	}
}

func TestImportDryRunMutatesNothing(t *testing.T) {
	im, idx, w, _ := testEnv(t)
	seedArchive(t, w)

	result, err := im.ImportAll(context.Background(), true)
	if err != nil {
		t.Fatal(err)
	}
	imported, _, _ := result.Totals()
	if imported == 0 {
		t.Error("dry run must still count importable records")
	}
	n, err := idx.Q().TotalRecords()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("dry run inserted %d rows", n)
	}
}

func TestImportMissingArchiveRootIsHardError(t *testing.T) {
	idx, err := index.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	im := New(idx, filepath.Join(t.TempDir(), "nope"), zerolog.Nop())
	if _, err := im.ImportAll(context.Background(), false); err == nil {
		t.Fatal("missing archive root must be a hard error")
	}
}

func TestImportEphemeralMergePrecedence(t *testing.T) {
	im, idx, w, root := testEnv(t)
	at := time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)

	// Event log: s1 created then expired; s2 created and live.
	for _, ev := range []archive.Event{
		{At: at, Action: "session_create", Actor: "Jane",
			Payload: map[string]string{"session": "s1", "user": "u1"}},
		{At: at.Add(time.Minute), Action: "session_create", Actor: "Bob",
			Payload: map[string]string{"session": "s2", "user": "u2"}},
		{At: at.Add(2 * time.Minute), Action: "session_expire", Actor: "Jane",
			Payload: map[string]string{"session": "s1"}},
	} {
		if _, err := w.AppendEvent(types.CategorySessions, ev); err != nil {
			t.Fatal(err)
		}
	}

	// Snapshot is stale: it still carries s1, written before the expire
	// event was logged, plus s2 (already known) and s3.
	snapPath := archive.SnapshotPath(root, types.CategorySessions)
	blocks := []archive.Block{
		{Kind: "Session", ID: "s1", Fields: map[string]string{"UserID": "u1"},
			Order: []string{"UserID"}},
		{Kind: "Session", ID: "s2", Fields: map[string]string{"UserID": "u2-from-snapshot"},
			Order: []string{"UserID"}},
		{Kind: "Session", ID: "s3", Fields: map[string]string{"UserID": "u3",
			"Created": "2024-03-05T09:00:00Z"}, Order: []string{"UserID", "Created"}},
	}
	if err := archive.WriteSnapshot(snapPath, types.CategorySessions, at, blocks); err != nil {
		t.Fatal(err)
	}

	// Backup carries s3 (known) and s4.
	backupPath := archive.BackupPath(root, types.CategorySessions)
	if err := os.MkdirAll(filepath.Dir(backupPath), 0o755); err != nil {
		t.Fatal(err)
	}
	backup := `[{"session_id":"s1","user_id":"u1"},{"session_id":"s3","user_id":"u3-from-backup"},{"session_id":"s4","user_id":"u4","created_at":"2024-03-05T08:00:00.123456Z"}]`
	if err := os.WriteFile(backupPath, []byte(backup), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := im.ImportAll(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	sessions, err := idx.Q().AllSessions()
	if err != nil {
		t.Fatal(err)
	}
	got := make(map[string]string)
	for _, s := range sessions {
		got[s.SessionID] = s.UserID
	}
	if len(got) != 3 {
		t.Fatalf("sessions = %v, want s2 s3 s4", got)
	}
	if _, ok := got["s1"]; ok {
		t.Error("expired session s1 resurrected by a stale snapshot or backup")
	}
	// Earlier sources win: s2 from the event log, s3 from the snapshot.
	if got["s2"] != "u2" {
		t.Errorf("s2 user = %q, want event-log value u2", got["s2"])
	}
	if got["s3"] != "u3" {
		t.Errorf("s3 user = %q, want snapshot value u3", got["s3"])
	}
	if got["s4"] != "u4" {
		t.Errorf("s4 user = %q, want backup value u4", got["s4"])
	}
}

func TestImportRoleGrantsMergeAcrossSources(t *testing.T) {
	im, idx, w, root := testEnv(t)
	at := time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)

	// Event log: moderator granted to u1 (no grant id), editor granted
	// to u2 and then revoked.
	for _, ev := range []archive.Event{
		{At: at, Action: "role_create", Actor: "Jane",
			Payload: map[string]string{"role": "moderator"}},
		{At: at, Action: "role_create", Actor: "Jane",
			Payload: map[string]string{"role": "editor"}},
		{At: at.Add(time.Minute), Action: "role_grant", Actor: "Jane",
			Payload: map[string]string{"role": "moderator", "user": "u1"}},
		{At: at.Add(time.Minute), Action: "role_grant", Actor: "Jane",
			Payload: map[string]string{"role": "editor", "user": "u2"}},
		{At: at.Add(2 * time.Minute), Action: "role_revoke", Actor: "Jane",
			Payload: map[string]string{"role": "editor", "user": "u2"}},
	} {
		if _, err := w.AppendEvent(types.CategoryRoles, ev); err != nil {
			t.Fatal(err)
		}
	}

	// Stale snapshot: keys grants by role id, and still lists the
	// revoked editor grant. Neither may produce an extra row.
	snapPath := archive.SnapshotPath(root, types.CategoryRoles)
	blocks := []archive.Block{
		{Kind: "Role", ID: "moderator", Fields: map[string]string{"RoleID": "r-mod"},
			Order: []string{"RoleID"}},
		{Kind: "Role", ID: "editor", Fields: map[string]string{"RoleID": "r-ed"},
			Order: []string{"RoleID"}},
		{Kind: "Grant", ID: "", Fields: map[string]string{"UserID": "u1", "RoleID": "r-mod"},
			Order: []string{"UserID", "RoleID"}},
		{Kind: "Grant", ID: "g-ed", Fields: map[string]string{"UserID": "u2", "RoleID": "r-ed"},
			Order: []string{"UserID", "RoleID"}},
	}
	if err := archive.WriteSnapshot(snapPath, types.CategoryRoles, at, blocks); err != nil {
		t.Fatal(err)
	}

	result, err := im.ImportAll(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	roles := categoryResult(t, result, types.CategoryRoles)
	if roles.Failed != 0 {
		t.Fatalf("role import failures: %+v", roles.Errors)
	}

	grants, err := idx.Q().AllRoleGrants()
	if err != nil {
		t.Fatal(err)
	}
	if len(grants) != 1 {
		t.Fatalf("grants = %d, want only u1/moderator: %+v", len(grants), grants)
	}
	if grants[0].UserID != "u1" || grants[0].RoleID != "r-mod" {
		t.Errorf("surviving grant = %+v, want u1 with role r-mod", grants[0])
	}
}
