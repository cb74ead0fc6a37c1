package importer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mesh-intelligence/chronicle/internal/archive"
	"github.com/mesh-intelligence/chronicle/internal/index"
	"github.com/mesh-intelligence/chronicle/internal/state"
	"github.com/mesh-intelligence/chronicle/pkg/types"
)

// Ephemeral categories merge three historical source formats, in a fixed
// precedence order:
//
//  1. live monthly event logs, replayed chronologically
//  2. the current-state snapshot
//  3. the JSON backup left by earlier system generations
//
// The first source to produce a natural key wins; later sources never
// override it. The replay honors terminating events (expire, revoke), so
// a session created and expired inside the logs does not resurface —
// not even from a stale snapshot written before the terminating event
// was logged.

// readCategoryEvents returns every event for a category across all
// monthly logs, in chronological order.
func (im *Importer) readCategoryEvents(category string, c *CategoryResult) []archive.Event {
	dir := filepath.Join(im.root, "system", "event_log")
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		c.fail(dir, 0, err)
		return nil
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), category+"_") && strings.HasSuffix(e.Name(), ".txt") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var events []archive.Event
	for _, name := range names {
		path := filepath.Join(dir, name)
		evs, errs := archive.ReadEventLog(path)
		for _, e := range errs {
			c.fail(path, 0, e)
		}
		events = append(events, evs...)
	}
	return events
}

// readCategorySnapshot returns the snapshot blocks for a category, or nil
// when no snapshot exists (not an error: the category may predate
// snapshots).
func (im *Importer) readCategorySnapshot(category string, c *CategoryResult) []archive.Block {
	path := archive.SnapshotPath(im.root, category)
	blocks, err := archive.ReadSnapshot(path)
	if err != nil && !os.IsNotExist(err) {
		c.fail(path, 0, err)
	}
	return blocks
}

// importSessions merges session sources and inserts what the index lacks.
func (im *Importer) importSessions(q *index.Queries, c *CategoryResult, dryRun bool) error {
	candidates := make(map[string]*types.Session)
	terminated := make(map[string]bool)
	var order []string

	// Source 1: event log replay.
	for _, ev := range im.readCategoryEvents(types.CategorySessions, c) {
		id := ev.Payload["session"]
		if id == "" {
			continue
		}
		switch ev.Action {
		case state.ActionSessionCreate:
			if _, ok := candidates[id]; ok {
				continue
			}
			delete(terminated, id)
			s := &types.Session{SessionID: id, UserID: ev.Payload["user"], CreatedAt: ev.At}
			if exp := ev.Payload["expires"]; exp != "" {
				if t, err := archive.ParseTimestamp(exp); err == nil {
					s.ExpiresAt = t
				}
			}
			candidates[id] = s
			order = append(order, id)
		case state.ActionSessionExpire:
			delete(candidates, id)
			terminated[id] = true
		}
	}

	// Source 2: snapshot.
	for _, b := range im.readCategorySnapshot(types.CategorySessions, c) {
		if b.Kind != state.KindSession {
			continue
		}
		s, err := state.ParseSessionBlock(b)
		if err != nil {
			c.fail(archive.SnapshotPath(im.root, types.CategorySessions), 0, err)
			continue
		}
		// A stale snapshot can still list a session the logs already
		// expired; the replay outcome wins.
		if _, ok := candidates[s.SessionID]; !ok && !terminated[s.SessionID] {
			candidates[s.SessionID] = s
			order = append(order, s.SessionID)
		}
	}

	// Source 3: JSON backup.
	for _, s := range im.backupSessions(c) {
		if _, ok := candidates[s.SessionID]; !ok && !terminated[s.SessionID] {
			candidates[s.SessionID] = s
			order = append(order, s.SessionID)
		}
	}

	for _, id := range order {
		s, ok := candidates[id]
		if !ok {
			continue // Created and expired inside the logs.
		}
		exists, err := q.SessionExists(id)
		if err != nil {
			c.fail("sessions", 0, err)
			continue
		}
		if exists {
			c.Skipped++
			continue
		}
		if !dryRun {
			if err := q.InsertSession(s); err != nil {
				c.fail("sessions", 0, err)
				continue
			}
		}
		c.Imported++
	}
	return nil
}

// importTokens merges token sources and inserts what the index lacks.
func (im *Importer) importTokens(q *index.Queries, c *CategoryResult, dryRun bool) error {
	candidates := make(map[string]*types.Token)
	var order []string

	for _, ev := range im.readCategoryEvents(types.CategoryTokens, c) {
		tok := ev.Payload["token"]
		if tok == "" {
			continue
		}
		switch ev.Action {
		case state.ActionTokenIssue:
			if _, ok := candidates[tok]; ok {
				continue
			}
			t := &types.Token{
				Token:    tok,
				Kind:     ev.Payload["kind"],
				IssuedTo: ev.Payload["issued_to"],
				IssuedAt: ev.At,
			}
			if by := ev.Payload["invited_by"]; by != "" {
				t.InvitedBy = by
				t.InvitedByConfidence = types.ConfidenceRecorded
			}
			candidates[tok] = t
			order = append(order, tok)
		case state.ActionTokenConsume:
			// Consumed tokens stay indexed; only the consumption time
			// changes.
			if t, ok := candidates[tok]; ok {
				t.ConsumedAt = ev.At
			}
		}
	}

	for _, b := range im.readCategorySnapshot(types.CategoryTokens, c) {
		if b.Kind != state.KindToken {
			continue
		}
		t, err := state.ParseTokenBlock(b)
		if err != nil {
			c.fail(archive.SnapshotPath(im.root, types.CategoryTokens), 0, err)
			continue
		}
		if _, ok := candidates[t.Token]; !ok {
			candidates[t.Token] = t
			order = append(order, t.Token)
		}
	}

	for _, t := range im.backupTokens(c) {
		if _, ok := candidates[t.Token]; !ok {
			candidates[t.Token] = t
			order = append(order, t.Token)
		}
	}

	for _, tok := range order {
		t := candidates[tok]
		exists, err := q.TokenExists(tok)
		if err != nil {
			c.fail("tokens", 0, err)
			continue
		}
		if exists {
			c.Skipped++
			continue
		}
		if !dryRun {
			if err := q.InsertToken(t); err != nil {
				c.fail("tokens", 0, err)
				continue
			}
		}
		c.Imported++
	}
	return nil
}

// importRoles merges role and grant sources. Roles insert before grants
// so grant role links resolve.
func (im *Importer) importRoles(q *index.Queries, c *CategoryResult, dryRun bool) error {
	roleIDs := make(map[string]string)   // name -> role id
	roleNames := make(map[string]string) // role id -> name
	var roleOrder []string
	grants := make(map[string]*types.RoleGrant) // grant id or user\x00role name
	revoked := make(map[string]bool)
	var grantOrder []string
	grantRoleNames := make(map[string]string) // grant key -> role name

	grantKey := func(grantID, userID, roleName string) string {
		if grantID != "" {
			return grantID
		}
		return userID + "\x00" + roleName
	}

	for _, ev := range im.readCategoryEvents(types.CategoryRoles, c) {
		switch ev.Action {
		case state.ActionRoleCreate:
			name := ev.Payload["role"]
			if name != "" {
				if _, ok := roleIDs[name]; !ok {
					roleIDs[name] = ""
					roleOrder = append(roleOrder, name)
				}
			}
		case state.ActionRoleGrant:
			name := ev.Payload["role"]
			key := grantKey(ev.Payload["grant"], ev.Payload["user"], name)
			if _, ok := grants[key]; ok {
				continue
			}
			delete(revoked, key)
			grants[key] = &types.RoleGrant{
				GrantID:   ev.Payload["grant"],
				UserID:    ev.Payload["user"],
				GrantedBy: ev.Actor,
				GrantedAt: ev.At,
			}
			grantRoleNames[key] = name
			grantOrder = append(grantOrder, key)
		case state.ActionRoleRevoke:
			key := grantKey(ev.Payload["grant"], ev.Payload["user"], ev.Payload["role"])
			delete(grants, key)
			revoked[key] = true
		}
	}

	// Snapshot roles register before snapshot grants so an id-less grant
	// can be keyed by role name, the same key the event replay uses.
	blocks := im.readCategorySnapshot(types.CategoryRoles, c)
	for _, b := range blocks {
		if b.Kind != state.KindRole {
			continue
		}
		r := state.ParseRoleBlock(b)
		roleNames[r.RoleID] = r.Name
		if id, ok := roleIDs[r.Name]; !ok {
			roleIDs[r.Name] = r.RoleID
			roleOrder = append(roleOrder, r.Name)
		} else if id == "" {
			// Event replay knows the role only by name; the snapshot
			// supplies its id.
			roleIDs[r.Name] = r.RoleID
		}
	}
	for _, b := range blocks {
		if b.Kind != state.KindGrant {
			continue
		}
		g, err := state.ParseGrantBlock(b)
		if err != nil {
			c.fail(archive.SnapshotPath(im.root, types.CategoryRoles), 0, err)
			continue
		}
		name := roleNames[g.RoleID]
		keyRole := name
		if keyRole == "" {
			keyRole = g.RoleID
		}
		key := grantKey(g.GrantID, g.UserID, keyRole)
		// The replay may know this grant only by its (user, role) pair,
		// so a revoke or an earlier grant under the pair key also
		// suppresses an id-carrying snapshot entry.
		pairKey := grantKey("", g.UserID, keyRole)
		if _, ok := grants[key]; ok || revoked[key] || revoked[pairKey] {
			continue
		}
		if _, ok := grants[pairKey]; ok {
			continue
		}
		grants[key] = g
		if name != "" {
			grantRoleNames[key] = name
		}
		grantOrder = append(grantOrder, key)
	}

	// Insert roles under the name natural key.
	for _, name := range roleOrder {
		existing, err := q.RoleByName(name)
		if err != nil && err != types.ErrNotFound {
			c.fail("roles", 0, err)
			continue
		}
		if existing != nil {
			roleIDs[name] = existing.RoleID
			c.Skipped++
			continue
		}
		id := roleIDs[name]
		if id == "" {
			id = index.NewID()
			roleIDs[name] = id
		}
		if !dryRun {
			if err := q.InsertRole(&types.Role{RoleID: id, Name: name}); err != nil {
				c.fail("roles", 0, err)
				continue
			}
		}
		c.Imported++
	}

	// Then grants, resolving role names recorded in event payloads.
	for _, key := range grantOrder {
		g, ok := grants[key]
		if !ok {
			continue // Revoked.
		}
		if name := grantRoleNames[key]; name != "" {
			if id, ok := roleIDs[name]; ok && id != "" {
				g.RoleID = id
			} else if r, err := q.RoleByName(name); err == nil {
				g.RoleID = r.RoleID
			}
		}
		if g.RoleID == "" {
			c.fail("roles", 0, fmt.Errorf("grant %s: role %q not found", key, grantRoleNames[key]))
			continue
		}
		if g.GrantID == "" {
			g.GrantID = index.NewID()
		}
		exists, err := q.GrantExists(g.GrantID, g.UserID, g.RoleID)
		if err != nil {
			c.fail("roles", 0, err)
			continue
		}
		if exists {
			c.Skipped++
			continue
		}
		if !dryRun {
			if err := q.InsertRoleGrant(g); err != nil {
				c.fail("roles", 0, err)
				continue
			}
		}
		c.Imported++
	}
	return nil
}

// importApprovals merges approval-request sources.
func (im *Importer) importApprovals(q *index.Queries, c *CategoryResult, dryRun bool) error {
	candidates := make(map[string]*types.Approval)
	var order []string

	for _, ev := range im.readCategoryEvents(types.CategoryApprovals, c) {
		id := ev.Payload["request"]
		if id == "" {
			continue
		}
		switch ev.Action {
		case state.ActionApprovalCreate:
			if _, ok := candidates[id]; ok {
				continue
			}
			candidates[id] = &types.Approval{
				RequestID:   id,
				UserID:      ev.Payload["user"],
				RequestedAt: ev.At,
				Status:      "pending",
			}
			order = append(order, id)
		case state.ActionApprovalResolve:
			if a, ok := candidates[id]; ok {
				a.Status = ev.Payload["status"]
				a.ResolvedAt = ev.At
				a.ResolvedBy = ev.Actor
			}
		}
	}

	for _, b := range im.readCategorySnapshot(types.CategoryApprovals, c) {
		if b.Kind != state.KindApproval {
			continue
		}
		a, err := state.ParseApprovalBlock(b)
		if err != nil {
			c.fail(archive.SnapshotPath(im.root, types.CategoryApprovals), 0, err)
			continue
		}
		if _, ok := candidates[a.RequestID]; !ok {
			candidates[a.RequestID] = a
			order = append(order, a.RequestID)
		}
	}

	for _, id := range order {
		a := candidates[id]
		exists, err := q.ApprovalExists(id)
		if err != nil {
			c.fail("approvals", 0, err)
			continue
		}
		if exists {
			c.Skipped++
			continue
		}
		if !dryRun {
			if err := q.InsertApproval(a); err != nil {
				c.fail("approvals", 0, err)
				continue
			}
		}
		c.Imported++
	}
	return nil
}
