package restore

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/chronicle/internal/archive"
	"github.com/mesh-intelligence/chronicle/internal/index"
	"github.com/mesh-intelligence/chronicle/internal/state"
	"github.com/mesh-intelligence/chronicle/pkg/types"
)

func testEnv(t *testing.T) (*Restorer, *index.Store, string) {
	t.Helper()
	idx, err := index.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })
	root := t.TempDir()
	return New(idx, root, zerolog.Nop()), idx, root
}

func writeSessionsSnapshot(t *testing.T, root string, sessions ...*types.Session) {
	t.Helper()
	blocks := make([]archive.Block, 0, len(sessions))
	for _, s := range sessions {
		blocks = append(blocks, state.SessionBlock(s))
	}
	path := archive.SnapshotPath(root, types.CategorySessions)
	if err := archive.WriteSnapshot(path, types.CategorySessions, time.Now(), blocks); err != nil {
		t.Fatal(err)
	}
}

func find(t *testing.T, r *Result, category string) CategoryResult {
	t.Helper()
	for _, c := range r.Categories {
		if c.Category == category {
			return c
		}
	}
	t.Fatalf("no result for %s", category)
	return CategoryResult{}
}

func TestRestoreMissingSnapshotsWarnNeverError(t *testing.T) {
	r, _, _ := testEnv(t)

	result, err := r.RestoreAll(false)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range result.Categories {
		if len(c.Errors) != 0 {
			t.Errorf("%s: errors = %v, want none", c.Category, c.Errors)
		}
		if len(c.Warnings) != 1 {
			t.Errorf("%s: warnings = %v, want one missing-snapshot warning", c.Category, c.Warnings)
		}
	}
}

func TestRestoreSessionsAndSkipUnknownUser(t *testing.T) {
	r, idx, root := testEnv(t)
	at := time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)

	if err := idx.InTx(func(q *index.Queries) error {
		return q.InsertUser(&types.User{
			UserID:         "u1",
			Name:           "Jane",
			NormalizedName: types.Normalize("Jane"),
			CreatedAt:      at,
			Source:         types.SourceRegistered,
		})
	}); err != nil {
		t.Fatal(err)
	}
	writeSessionsSnapshot(t, root,
		&types.Session{SessionID: "s1", UserID: "u1", CreatedAt: at},
		&types.Session{SessionID: "s2", UserID: "ghost", CreatedAt: at},
	)

	result, err := r.RestoreAll(false)
	if err != nil {
		t.Fatal(err)
	}
	c := find(t, result, types.CategorySessions)
	if c.Restored != 1 {
		t.Errorf("restored = %d, want 1", c.Restored)
	}
	if len(c.Warnings) != 1 {
		t.Errorf("warnings = %v, want one unknown-user skip", c.Warnings)
	}
	if len(c.Errors) != 0 {
		t.Errorf("errors = %v, want none: referential problems warn", c.Errors)
	}

	sessions, err := idx.Q().AllSessions()
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0].SessionID != "s1" {
		t.Errorf("sessions = %v, want only s1", sessions)
	}
}

func TestRestoreIsIdempotent(t *testing.T) {
	r, idx, root := testEnv(t)
	at := time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)

	if err := idx.InTx(func(q *index.Queries) error {
		return q.InsertUser(&types.User{
			UserID:         "u1",
			Name:           "Jane",
			NormalizedName: types.Normalize("Jane"),
			CreatedAt:      at,
			Source:         types.SourceRegistered,
		})
	}); err != nil {
		t.Fatal(err)
	}
	writeSessionsSnapshot(t, root,
		&types.Session{SessionID: "s1", UserID: "u1", CreatedAt: at})

	if _, err := r.RestoreAll(false); err != nil {
		t.Fatal(err)
	}
	second, err := r.RestoreAll(false)
	if err != nil {
		t.Fatal(err)
	}
	c := find(t, second, types.CategorySessions)
	if c.Restored != 0 || c.Skipped != 1 {
		t.Errorf("second run = %+v, want everything skipped", c)
	}
}

func TestRestoreDryRunMutatesNothing(t *testing.T) {
	r, idx, root := testEnv(t)
	at := time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)
	writeSessionsSnapshot(t, root,
		&types.Session{SessionID: "s1", CreatedAt: at})

	result, err := r.RestoreAll(true)
	if err != nil {
		t.Fatal(err)
	}
	c := find(t, result, types.CategorySessions)
	if c.Restored != 1 {
		t.Errorf("dry run restored = %d, want 1 counted", c.Restored)
	}
	sessions, err := idx.Q().AllSessions()
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 0 {
		t.Errorf("dry run inserted %d sessions", len(sessions))
	}
}

func TestRestoreRolesAndGrants(t *testing.T) {
	r, idx, root := testEnv(t)
	at := time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)

	if err := idx.InTx(func(q *index.Queries) error {
		return q.InsertUser(&types.User{
			UserID:         "u1",
			Name:           "Jane",
			NormalizedName: types.Normalize("Jane"),
			CreatedAt:      at,
			Source:         types.SourceRegistered,
		})
	}); err != nil {
		t.Fatal(err)
	}
	blocks := []archive.Block{
		state.RoleBlock(&types.Role{RoleID: "r1", Name: "moderator"}),
		state.GrantBlock(&types.RoleGrant{
			GrantID: "g1", UserID: "u1", RoleID: "r1", GrantedBy: "admin", GrantedAt: at,
		}),
	}
	path := archive.SnapshotPath(root, types.CategoryRoles)
	if err := archive.WriteSnapshot(path, types.CategoryRoles, at, blocks); err != nil {
		t.Fatal(err)
	}

	result, err := r.RestoreAll(false)
	if err != nil {
		t.Fatal(err)
	}
	c := find(t, result, types.CategoryRoles)
	if c.Restored != 2 {
		t.Errorf("restored = %d, want role and grant: %+v", c.Restored, c)
	}
	role, err := idx.Q().RoleByName("moderator")
	if err != nil {
		t.Fatal(err)
	}
	if role.RoleID != "r1" {
		t.Errorf("role id = %q, want r1", role.RoleID)
	}
	grants, err := idx.Q().AllRoleGrants()
	if err != nil {
		t.Fatal(err)
	}
	if len(grants) != 1 {
		t.Errorf("grants = %d, want 1", len(grants))
	}
}
