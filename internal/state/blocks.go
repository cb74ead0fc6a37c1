package state

import (
	"fmt"
	"time"

	"github.com/mesh-intelligence/chronicle/internal/archive"
	"github.com/mesh-intelligence/chronicle/pkg/types"
)

// Snapshot block kinds.
const (
	KindSession  = "Session"
	KindToken    = "Token"
	KindRole     = "Role"
	KindGrant    = "Grant"
	KindApproval = "Approval"
)

// Block field timestamps use RFC 3339 so restore keeps full precision;
// the minute-level log form is only for monthly logs.

func fmtBlockTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseBlockTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return archive.ParseTimestamp(s)
}

// SessionBlock renders one session as a snapshot block.
func SessionBlock(s *types.Session) archive.Block {
	return archive.Block{
		Kind: KindSession,
		ID:   s.SessionID,
		Fields: map[string]string{
			"UserID":   s.UserID,
			"Created":  fmtBlockTime(s.CreatedAt),
			"Expires":  fmtBlockTime(s.ExpiresAt),
			"LastSeen": fmtBlockTime(s.LastSeen),
		},
		Order: []string{"UserID", "Created", "Expires", "LastSeen"},
	}
}

// ParseSessionBlock reverses SessionBlock.
func ParseSessionBlock(b archive.Block) (*types.Session, error) {
	s := &types.Session{SessionID: b.ID, UserID: b.Field("UserID")}
	var err error
	if s.CreatedAt, err = parseBlockTime(b.Field("Created")); err != nil {
		return nil, fmt.Errorf("session %s Created: %w", b.ID, err)
	}
	if s.ExpiresAt, err = parseBlockTime(b.Field("Expires")); err != nil {
		return nil, fmt.Errorf("session %s Expires: %w", b.ID, err)
	}
	if s.LastSeen, err = parseBlockTime(b.Field("LastSeen")); err != nil {
		return nil, fmt.Errorf("session %s LastSeen: %w", b.ID, err)
	}
	return s, nil
}

// TokenBlock renders one token as a snapshot block.
func TokenBlock(t *types.Token) archive.Block {
	return archive.Block{
		Kind: KindToken,
		ID:   t.Token,
		Fields: map[string]string{
			"Kind":       t.Kind,
			"IssuedTo":   t.IssuedTo,
			"InvitedBy":  t.InvitedBy,
			"Confidence": t.InvitedByConfidence,
			"Issued":     fmtBlockTime(t.IssuedAt),
			"Consumed":   fmtBlockTime(t.ConsumedAt),
		},
		Order: []string{"Kind", "IssuedTo", "InvitedBy", "Confidence", "Issued", "Consumed"},
	}
}

// ParseTokenBlock reverses TokenBlock.
func ParseTokenBlock(b archive.Block) (*types.Token, error) {
	t := &types.Token{
		Token:               b.ID,
		Kind:                b.Field("Kind"),
		IssuedTo:            b.Field("IssuedTo"),
		InvitedBy:           b.Field("InvitedBy"),
		InvitedByConfidence: b.Field("Confidence"),
	}
	var err error
	if t.IssuedAt, err = parseBlockTime(b.Field("Issued")); err != nil {
		return nil, fmt.Errorf("token Issued: %w", err)
	}
	if t.ConsumedAt, err = parseBlockTime(b.Field("Consumed")); err != nil {
		return nil, fmt.Errorf("token Consumed: %w", err)
	}
	return t, nil
}

// RoleBlock renders one role as a snapshot block.
func RoleBlock(r *types.Role) archive.Block {
	return archive.Block{
		Kind:   KindRole,
		ID:     r.Name,
		Fields: map[string]string{"RoleID": r.RoleID},
		Order:  []string{"RoleID"},
	}
}

// ParseRoleBlock reverses RoleBlock.
func ParseRoleBlock(b archive.Block) *types.Role {
	return &types.Role{RoleID: b.Field("RoleID"), Name: b.ID}
}

// GrantBlock renders one role grant as a snapshot block.
func GrantBlock(g *types.RoleGrant) archive.Block {
	return archive.Block{
		Kind: KindGrant,
		ID:   g.GrantID,
		Fields: map[string]string{
			"UserID":    g.UserID,
			"RoleID":    g.RoleID,
			"GrantedBy": g.GrantedBy,
			"Granted":   fmtBlockTime(g.GrantedAt),
		},
		Order: []string{"UserID", "RoleID", "GrantedBy", "Granted"},
	}
}

// ParseGrantBlock reverses GrantBlock.
func ParseGrantBlock(b archive.Block) (*types.RoleGrant, error) {
	g := &types.RoleGrant{
		GrantID:   b.ID,
		UserID:    b.Field("UserID"),
		RoleID:    b.Field("RoleID"),
		GrantedBy: b.Field("GrantedBy"),
	}
	var err error
	if g.GrantedAt, err = parseBlockTime(b.Field("Granted")); err != nil {
		return nil, fmt.Errorf("grant %s Granted: %w", b.ID, err)
	}
	return g, nil
}

// ApprovalBlock renders one approval request as a snapshot block.
func ApprovalBlock(a *types.Approval) archive.Block {
	return archive.Block{
		Kind: KindApproval,
		ID:   a.RequestID,
		Fields: map[string]string{
			"UserID":     a.UserID,
			"Requested":  fmtBlockTime(a.RequestedAt),
			"Status":     a.Status,
			"Resolved":   fmtBlockTime(a.ResolvedAt),
			"ResolvedBy": a.ResolvedBy,
		},
		Order: []string{"UserID", "Requested", "Status", "Resolved", "ResolvedBy"},
	}
}

// ParseApprovalBlock reverses ApprovalBlock.
func ParseApprovalBlock(b archive.Block) (*types.Approval, error) {
	a := &types.Approval{
		RequestID:  b.ID,
		UserID:     b.Field("UserID"),
		Status:     b.Field("Status"),
		ResolvedBy: b.Field("ResolvedBy"),
	}
	var err error
	if a.RequestedAt, err = parseBlockTime(b.Field("Requested")); err != nil {
		return nil, fmt.Errorf("approval %s Requested: %w", b.ID, err)
	}
	if a.ResolvedAt, err = parseBlockTime(b.Field("Resolved")); err != nil {
		return nil, fmt.Errorf("approval %s Resolved: %w", b.ID, err)
	}
	return a, nil
}
