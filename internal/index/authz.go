package index

import (
	"database/sql"
	"fmt"

	"github.com/mesh-intelligence/chronicle/pkg/types"
)

// Ephemeral-category accessors: sessions, tokens, roles, grants, and
// approval requests. These rows are fully restorable from snapshots and
// event logs; the index copies exist only for querying.

// InsertSession inserts a session row.
func (q *Queries) InsertSession(s *types.Session) error {
	if s.SessionID == "" {
		return types.ErrInvalidID
	}
	_, err := q.q.Exec(
		`INSERT INTO sessions (session_id, user_id, created_at, expires_at, last_seen)
		 VALUES (?, ?, ?, ?, ?)`,
		s.SessionID, s.UserID, fmtTime(s.CreatedAt), fmtTime(s.ExpiresAt), fmtTime(s.LastSeen),
	)
	if err != nil {
		return fmt.Errorf("inserting session %s: %w", s.SessionID, err)
	}
	return nil
}

// SessionExists checks the session-id natural key.
func (q *Queries) SessionExists(id string) (bool, error) {
	var one int
	err := q.q.QueryRow("SELECT 1 FROM sessions WHERE session_id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// DeleteSession removes one session row (session expiry).
func (q *Queries) DeleteSession(id string) error {
	_, err := q.q.Exec("DELETE FROM sessions WHERE session_id = ?", id)
	return err
}

// AllSessions returns every live session.
func (q *Queries) AllSessions() ([]*types.Session, error) {
	rows, err := q.q.Query(
		"SELECT session_id, user_id, created_at, expires_at, last_seen FROM sessions ORDER BY session_id")
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*types.Session
	for rows.Next() {
		var s types.Session
		var created, expires, seen string
		if err := rows.Scan(&s.SessionID, &s.UserID, &created, &expires, &seen); err != nil {
			return nil, err
		}
		var perr error
		if s.CreatedAt, perr = parseTime(created); perr != nil {
			return nil, fmt.Errorf("session %s created_at: %w", s.SessionID, perr)
		}
		if s.ExpiresAt, perr = parseTime(expires); perr != nil {
			return nil, fmt.Errorf("session %s expires_at: %w", s.SessionID, perr)
		}
		if s.LastSeen, perr = parseTime(seen); perr != nil {
			return nil, fmt.Errorf("session %s last_seen: %w", s.SessionID, perr)
		}
		sessions = append(sessions, &s)
	}
	return sessions, rows.Err()
}

// InsertToken inserts an invite/capability token row.
func (q *Queries) InsertToken(t *types.Token) error {
	if t.Token == "" {
		return types.ErrInvalidID
	}
	_, err := q.q.Exec(
		`INSERT INTO tokens (token, kind, issued_to, invited_by, invited_by_confidence, issued_at, consumed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.Token, t.Kind, t.IssuedTo, t.InvitedBy, t.InvitedByConfidence,
		fmtTime(t.IssuedAt), fmtTime(t.ConsumedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting token: %w", err)
	}
	return nil
}

// TokenExists checks the token-string natural key.
func (q *Queries) TokenExists(token string) (bool, error) {
	var one int
	err := q.q.QueryRow("SELECT 1 FROM tokens WHERE token = ?", token).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// AllTokens returns every token row.
func (q *Queries) AllTokens() ([]*types.Token, error) {
	rows, err := q.q.Query(
		"SELECT token, kind, issued_to, invited_by, invited_by_confidence, issued_at, consumed_at FROM tokens ORDER BY token")
	if err != nil {
		return nil, fmt.Errorf("listing tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*types.Token
	for rows.Next() {
		var t types.Token
		var issued, consumed string
		if err := rows.Scan(&t.Token, &t.Kind, &t.IssuedTo, &t.InvitedBy,
			&t.InvitedByConfidence, &issued, &consumed); err != nil {
			return nil, err
		}
		var perr error
		if t.IssuedAt, perr = parseTime(issued); perr != nil {
			return nil, fmt.Errorf("token issued_at: %w", perr)
		}
		if t.ConsumedAt, perr = parseTime(consumed); perr != nil {
			return nil, fmt.Errorf("token consumed_at: %w", perr)
		}
		tokens = append(tokens, &t)
	}
	return tokens, rows.Err()
}

// InsertRole inserts a role row. Name is globally unique.
func (q *Queries) InsertRole(r *types.Role) error {
	if r.RoleID == "" {
		return types.ErrInvalidID
	}
	_, err := q.q.Exec("INSERT INTO roles (role_id, name) VALUES (?, ?)", r.RoleID, r.Name)
	if err != nil {
		return fmt.Errorf("inserting role %s: %w", r.Name, err)
	}
	return nil
}

// RoleByName retrieves one role by its natural key, or types.ErrNotFound.
func (q *Queries) RoleByName(name string) (*types.Role, error) {
	var r types.Role
	err := q.q.QueryRow("SELECT role_id, name FROM roles WHERE name = ?", name).
		Scan(&r.RoleID, &r.Name)
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// AllRoles returns every role row.
func (q *Queries) AllRoles() ([]*types.Role, error) {
	rows, err := q.q.Query("SELECT role_id, name FROM roles ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}
	defer rows.Close()

	var roles []*types.Role
	for rows.Next() {
		var r types.Role
		if err := rows.Scan(&r.RoleID, &r.Name); err != nil {
			return nil, err
		}
		roles = append(roles, &r)
	}
	return roles, rows.Err()
}

// InsertRoleGrant inserts a grant row.
func (q *Queries) InsertRoleGrant(g *types.RoleGrant) error {
	if g.GrantID == "" {
		return types.ErrInvalidID
	}
	_, err := q.q.Exec(
		`INSERT INTO role_grants (grant_id, user_id, role_id, granted_by, granted_at)
		 VALUES (?, ?, ?, ?, ?)`,
		g.GrantID, g.UserID, g.RoleID, g.GrantedBy, fmtTime(g.GrantedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting grant %s: %w", g.GrantID, err)
	}
	return nil
}

// GrantExists checks the grant natural key: grant id or the
// (user, role) pair.
func (q *Queries) GrantExists(grantID, userID, roleID string) (bool, error) {
	var one int
	// A grant matches on its id or on the (user, role) pair: the same
	// logical grant can surface from one source with an id and from
	// another without one.
	err := q.q.QueryRow(
		"SELECT 1 FROM role_grants WHERE grant_id = ? OR (user_id = ? AND role_id = ?)",
		grantID, userID, roleID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// DeleteRoleGrant removes one grant row (role revocation).
func (q *Queries) DeleteRoleGrant(grantID string) error {
	_, err := q.q.Exec("DELETE FROM role_grants WHERE grant_id = ?", grantID)
	return err
}

// AllRoleGrants returns every grant row.
func (q *Queries) AllRoleGrants() ([]*types.RoleGrant, error) {
	rows, err := q.q.Query(
		"SELECT grant_id, user_id, role_id, granted_by, granted_at FROM role_grants ORDER BY grant_id")
	if err != nil {
		return nil, fmt.Errorf("listing grants: %w", err)
	}
	defer rows.Close()

	var grants []*types.RoleGrant
	for rows.Next() {
		var g types.RoleGrant
		var at string
		if err := rows.Scan(&g.GrantID, &g.UserID, &g.RoleID, &g.GrantedBy, &at); err != nil {
			return nil, err
		}
		var perr error
		if g.GrantedAt, perr = parseTime(at); perr != nil {
			return nil, fmt.Errorf("grant %s granted_at: %w", g.GrantID, perr)
		}
		grants = append(grants, &g)
	}
	return grants, rows.Err()
}

// InsertApproval inserts an approval-request row.
func (q *Queries) InsertApproval(a *types.Approval) error {
	if a.RequestID == "" {
		return types.ErrInvalidID
	}
	_, err := q.q.Exec(
		`INSERT INTO approvals (request_id, user_id, requested_at, status, resolved_at, resolved_by)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.RequestID, a.UserID, fmtTime(a.RequestedAt), a.Status, fmtTime(a.ResolvedAt), a.ResolvedBy,
	)
	if err != nil {
		return fmt.Errorf("inserting approval %s: %w", a.RequestID, err)
	}
	return nil
}

// ApprovalExists checks the request-id natural key.
func (q *Queries) ApprovalExists(id string) (bool, error) {
	var one int
	err := q.q.QueryRow("SELECT 1 FROM approvals WHERE request_id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// AllApprovals returns every approval row.
func (q *Queries) AllApprovals() ([]*types.Approval, error) {
	rows, err := q.q.Query(
		"SELECT request_id, user_id, requested_at, status, resolved_at, resolved_by FROM approvals ORDER BY request_id")
	if err != nil {
		return nil, fmt.Errorf("listing approvals: %w", err)
	}
	defer rows.Close()

	var approvals []*types.Approval
	for rows.Next() {
		var a types.Approval
		var requested, resolved string
		if err := rows.Scan(&a.RequestID, &a.UserID, &requested, &a.Status, &resolved, &a.ResolvedBy); err != nil {
			return nil, err
		}
		var perr error
		if a.RequestedAt, perr = parseTime(requested); perr != nil {
			return nil, fmt.Errorf("approval %s requested_at: %w", a.RequestID, perr)
		}
		if a.ResolvedAt, perr = parseTime(resolved); perr != nil {
			return nil, fmt.Errorf("approval %s resolved_at: %w", a.RequestID, perr)
		}
		approvals = append(approvals, &a)
	}
	return approvals, rows.Err()
}
