// Package restore reconstructs ephemeral state after a redeploy: each
// category's current-state snapshot parses back into entities, and
// whatever the index lacks gets re-inserted. A missing snapshot is a
// warning, never an error, since a fresh deployment has no state yet.
// See docs/ARCHITECTURE § Restore Engine.
package restore

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/chronicle/internal/archive"
	"github.com/mesh-intelligence/chronicle/internal/index"
	"github.com/mesh-intelligence/chronicle/internal/state"
	"github.com/mesh-intelligence/chronicle/pkg/types"
)

// CategoryResult is the outcome of restoring one ephemeral category.
type CategoryResult struct {
	Category string
	Restored int
	Skipped  int // Already present in the index.
	Warnings []string
	Errors   []error
}

func (c *CategoryResult) warnf(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

// MarshalJSON flattens wrapped errors to their messages for tool output.
func (c CategoryResult) MarshalJSON() ([]byte, error) {
	msgs := make([]string, 0, len(c.Errors))
	for _, err := range c.Errors {
		msgs = append(msgs, err.Error())
	}
	return json.Marshal(struct {
		Category string   `json:"category"`
		Restored int      `json:"restored"`
		Skipped  int      `json:"skipped"`
		Warnings []string `json:"warnings,omitempty"`
		Errors   []string `json:"errors,omitempty"`
	}{c.Category, c.Restored, c.Skipped, c.Warnings, msgs})
}

// Result is the outcome of a full RestoreAll run.
type Result struct {
	DryRun     bool
	Categories []CategoryResult
}

// Totals sums the per-category counters.
func (r *Result) Totals() (restored, skipped, warnings, errs int) {
	for _, c := range r.Categories {
		restored += c.Restored
		skipped += c.Skipped
		warnings += len(c.Warnings)
		errs += len(c.Errors)
	}
	return
}

// Restorer re-inserts snapshot state into the index.
type Restorer struct {
	idx  *index.Store
	root string
	log  zerolog.Logger
}

// New creates a Restorer reading snapshots under the archive root.
func New(idx *index.Store, archiveRoot string, log zerolog.Logger) *Restorer {
	return &Restorer{idx: idx, root: archiveRoot, log: log}
}

// RestoreAll restores every ephemeral category from its snapshot.
// Referential problems (a session whose user is unknown) warn and skip
// that one record; the rest of the restore proceeds. Re-running after a
// partial success only inserts what is still missing.
func (r *Restorer) RestoreAll(dryRun bool) (*Result, error) {
	if _, err := os.Stat(r.root); err != nil {
		return nil, fmt.Errorf("%s: %w", r.root, types.ErrArchiveRootMissing)
	}

	result := &Result{DryRun: dryRun}
	for _, category := range types.EphemeralCategories {
		cr := CategoryResult{Category: category}
		blocks, ok := r.readSnapshot(category, &cr)
		if ok {
			err := r.idx.InTx(func(q *index.Queries) error {
				r.restoreBlocks(q, &cr, category, blocks, dryRun)
				return nil
			})
			if err != nil {
				cr.Errors = append(cr.Errors, err)
			}
		}
		result.Categories = append(result.Categories, cr)

		r.log.Info().
			Str("category", cr.Category).
			Int("restored", cr.Restored).
			Int("skipped", cr.Skipped).
			Int("warnings", len(cr.Warnings)).
			Bool("dry_run", dryRun).
			Msg("category restored")
	}
	return result, nil
}

func (r *Restorer) readSnapshot(category string, c *CategoryResult) ([]archive.Block, bool) {
	path := archive.SnapshotPath(r.root, category)
	blocks, err := archive.ReadSnapshot(path)
	if os.IsNotExist(err) {
		c.warnf("no snapshot for %s; nothing to restore", category)
		return nil, false
	}
	if err != nil {
		c.Errors = append(c.Errors, fmt.Errorf("reading snapshot %s: %w", path, err))
		return nil, false
	}
	return blocks, true
}

func (r *Restorer) restoreBlocks(q *index.Queries, c *CategoryResult, category string, blocks []archive.Block, dryRun bool) {
	for _, b := range blocks {
		switch b.Kind {
		case state.KindSession:
			r.restoreSession(q, c, b, dryRun)
		case state.KindToken:
			r.restoreToken(q, c, b, dryRun)
		case state.KindRole:
			r.restoreRole(q, c, b, dryRun)
		case state.KindGrant:
			r.restoreGrant(q, c, b, dryRun)
		case state.KindApproval:
			r.restoreApproval(q, c, b, dryRun)
		default:
			c.warnf("snapshot for %s has unknown block kind %q; skipped", category, b.Kind)
		}
	}
}

func (r *Restorer) restoreSession(q *index.Queries, c *CategoryResult, b archive.Block, dryRun bool) {
	s, err := state.ParseSessionBlock(b)
	if err != nil {
		c.Errors = append(c.Errors, err)
		return
	}
	exists, err := q.SessionExists(s.SessionID)
	if err != nil {
		c.Errors = append(c.Errors, err)
		return
	}
	if exists {
		c.Skipped++
		return
	}
	if s.UserID != "" {
		if _, err := q.UserByID(s.UserID); err == types.ErrNotFound {
			c.warnf("session %s references unknown user %s; skipped", s.SessionID, s.UserID)
			return
		} else if err != nil {
			c.Errors = append(c.Errors, err)
			return
		}
	}
	if !dryRun {
		if err := q.InsertSession(s); err != nil {
			c.Errors = append(c.Errors, err)
			return
		}
	}
	c.Restored++
}

func (r *Restorer) restoreToken(q *index.Queries, c *CategoryResult, b archive.Block, dryRun bool) {
	t, err := state.ParseTokenBlock(b)
	if err != nil {
		c.Errors = append(c.Errors, err)
		return
	}
	exists, err := q.TokenExists(t.Token)
	if err != nil {
		c.Errors = append(c.Errors, err)
		return
	}
	if exists {
		c.Skipped++
		return
	}
	if !dryRun {
		if err := q.InsertToken(t); err != nil {
			c.Errors = append(c.Errors, err)
			return
		}
	}
	c.Restored++
}

func (r *Restorer) restoreRole(q *index.Queries, c *CategoryResult, b archive.Block, dryRun bool) {
	role := state.ParseRoleBlock(b)
	existing, err := q.RoleByName(role.Name)
	if err != nil && err != types.ErrNotFound {
		c.Errors = append(c.Errors, err)
		return
	}
	if existing != nil {
		c.Skipped++
		return
	}
	if role.RoleID == "" {
		role.RoleID = index.NewID()
	}
	if !dryRun {
		if err := q.InsertRole(role); err != nil {
			c.Errors = append(c.Errors, err)
			return
		}
	}
	c.Restored++
}

func (r *Restorer) restoreGrant(q *index.Queries, c *CategoryResult, b archive.Block, dryRun bool) {
	g, err := state.ParseGrantBlock(b)
	if err != nil {
		c.Errors = append(c.Errors, err)
		return
	}
	exists, err := q.GrantExists(g.GrantID, g.UserID, g.RoleID)
	if err != nil {
		c.Errors = append(c.Errors, err)
		return
	}
	if exists {
		c.Skipped++
		return
	}
	if g.UserID != "" {
		if _, err := q.UserByID(g.UserID); err == types.ErrNotFound {
			c.warnf("grant %s references unknown user %s; skipped", g.GrantID, g.UserID)
			return
		} else if err != nil {
			c.Errors = append(c.Errors, err)
			return
		}
	}
	if !dryRun {
		if err := q.InsertRoleGrant(g); err != nil {
			c.Errors = append(c.Errors, err)
			return
		}
	}
	c.Restored++
}

func (r *Restorer) restoreApproval(q *index.Queries, c *CategoryResult, b archive.Block, dryRun bool) {
	a, err := state.ParseApprovalBlock(b)
	if err != nil {
		c.Errors = append(c.Errors, err)
		return
	}
	exists, err := q.ApprovalExists(a.RequestID)
	if err != nil {
		c.Errors = append(c.Errors, err)
		return
	}
	if exists {
		c.Skipped++
		return
	}
	if !dryRun {
		if err := q.InsertApproval(a); err != nil {
			c.Errors = append(c.Errors, err)
			return
		}
	}
	c.Restored++
}
