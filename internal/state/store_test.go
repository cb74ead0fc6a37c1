package state

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/chronicle/internal/archive"
	"github.com/mesh-intelligence/chronicle/internal/index"
	"github.com/mesh-intelligence/chronicle/pkg/types"
)

func newTestStore(t *testing.T) (*Store, *index.Store, string) {
	t.Helper()
	idx, err := index.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })
	root := t.TempDir()
	s := New(idx, archive.NewWriter(root, zerolog.Nop()), zerolog.Nop())
	s.now = func() time.Time {
		return time.Date(2024, time.March, 5, 10, 15, 43, 0, time.UTC)
	}
	return s, idx, root
}

func TestLogEventWritesLogAndSnapshot(t *testing.T) {
	s, idx, root := newTestStore(t)

	sess := &types.Session{
		SessionID: "sess-1",
		UserID:    "u1",
		CreatedAt: time.Date(2024, 3, 5, 10, 15, 43, 0, time.UTC),
		ExpiresAt: time.Date(2024, 3, 6, 10, 15, 43, 0, time.UTC),
	}
	if err := idx.Q().InsertSession(sess); err != nil {
		t.Fatal(err)
	}

	err := s.LogEvent(types.CategorySessions, ActionSessionCreate, "Jane Doe",
		map[string]string{"session": "sess-1"})
	if err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	// Event log line appended.
	logPath := filepath.Join(root, "system", "event_log", "sessions_2024_03.txt")
	events, errs := archive.ReadEventLog(logPath)
	if len(errs) != 0 {
		t.Fatalf("event log errors: %v", errs)
	}
	if len(events) != 1 || events[0].Action != ActionSessionCreate {
		t.Errorf("events = %+v", events)
	}

	// Snapshot regenerated from the index.
	snapPath := filepath.Join(root, "system", "current_state", "sessions.txt")
	blocks, err := archive.ReadSnapshot(snapPath)
	if err != nil {
		t.Fatalf("ReadSnapshot failed: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("blocks = %d, want 1", len(blocks))
	}
	got, err := ParseSessionBlock(blocks[0])
	if err != nil {
		t.Fatal(err)
	}
	if got.SessionID != "sess-1" || got.UserID != "u1" {
		t.Errorf("restored session = %+v", got)
	}
	if !got.ExpiresAt.Equal(sess.ExpiresAt) {
		t.Errorf("Expires = %v, want %v", got.ExpiresAt, sess.ExpiresAt)
	}
}

func TestLogEventRejectsNonEphemeralCategory(t *testing.T) {
	s, _, root := newTestStore(t)

	err := s.LogEvent(types.CategoryPrayers, "whatever", "Jane", nil)
	if err == nil {
		t.Fatal("prayers is not an ephemeral category")
	}
	if _, statErr := os.Stat(filepath.Join(root, "system")); !os.IsNotExist(statErr) {
		t.Error("rejected event must not touch the archive")
	}
}

func TestEventLogIsAppendOnlyAcrossEvents(t *testing.T) {
	s, idx, root := newTestStore(t)

	if err := idx.Q().InsertToken(&types.Token{
		Token: "tok-1", Kind: "invite", IssuedAt: time.Now(),
		InvitedByConfidence: types.ConfidenceRecorded,
	}); err != nil {
		t.Fatal(err)
	}

	for i, action := range []string{ActionTokenIssue, ActionTokenConsume} {
		if err := s.LogEvent(types.CategoryTokens, action, "Jane",
			map[string]string{"token": "tok-1"}); err != nil {
			t.Fatalf("event %d: %v", i, err)
		}
	}

	content, err := os.ReadFile(filepath.Join(root, "system", "event_log", "tokens_2024_03.txt"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	if len(lines) != 2 {
		t.Errorf("event log lines = %d, want 2 (append-only)", len(lines))
	}
}

func TestRegenerateAllCoversEveryEphemeralCategory(t *testing.T) {
	s, _, root := newTestStore(t)

	if err := s.RegenerateAll(); err != nil {
		t.Fatalf("RegenerateAll failed: %v", err)
	}
	for _, category := range types.EphemeralCategories {
		path := filepath.Join(root, "system", "current_state", category+".txt")
		if _, err := os.Stat(path); err != nil {
			t.Errorf("snapshot missing for %s: %v", category, err)
		}
	}
}

func TestRolesSnapshotCarriesGrants(t *testing.T) {
	s, idx, root := newTestStore(t)
	q := idx.Q()

	if err := q.InsertRole(&types.Role{RoleID: "r1", Name: "admin"}); err != nil {
		t.Fatal(err)
	}
	if err := q.InsertRoleGrant(&types.RoleGrant{
		GrantID: "g1", UserID: "u1", RoleID: "r1",
		GrantedBy: "system", GrantedAt: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}

	if err := s.RegenerateSnapshot(types.CategoryRoles); err != nil {
		t.Fatal(err)
	}
	blocks, err := archive.ReadSnapshot(filepath.Join(root, "system", "current_state", "roles.txt"))
	if err != nil {
		t.Fatal(err)
	}
	var kinds []string
	for _, b := range blocks {
		kinds = append(kinds, b.Kind)
	}
	if len(blocks) != 2 || kinds[0] != KindRole || kinds[1] != KindGrant {
		t.Errorf("blocks kinds = %v, want [Role Grant]", kinds)
	}
}
