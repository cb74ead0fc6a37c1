package types

import "time"

// Session is an ephemeral login session. Natural key: SessionID.
type Session struct {
	SessionID string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
	LastSeen  time.Time
}

// Expired reports whether the session has passed its expiry at the given
// instant.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Token is an invite or capability token. Natural key: the token string
// itself. InvitedByConfidence distinguishes an inviter read directly from
// an archive line (recorded) from one guessed by temporal proximity
// (inferred); the two are never conflated.
type Token struct {
	Token               string
	Kind                string // "invite" or "capability".
	IssuedTo            string
	InvitedBy           string
	InvitedByConfidence string // ConfidenceRecorded or ConfidenceInferred.
	IssuedAt            time.Time
	ConsumedAt          time.Time // Zero until consumed.
}

// Role is a named role. Natural key: Name, globally unique.
type Role struct {
	RoleID string
	Name   string
}

// RoleGrant assigns a role to a user. Natural key: GrantID when present,
// otherwise (UserID, RoleID).
type RoleGrant struct {
	GrantID   string
	UserID    string
	RoleID    string
	GrantedBy string
	GrantedAt time.Time
}

// Approval is a pending or resolved account-approval request.
// Natural key: RequestID.
type Approval struct {
	RequestID   string
	UserID      string
	RequestedAt time.Time
	Status      string // "pending", "approved", or "denied".
	ResolvedAt  time.Time
	ResolvedBy  string
}

// SecurityEvent is one line of the security log.
// Natural key: (OccurredAt, EventType, Actor).
type SecurityEvent struct {
	EventID    string
	OccurredAt time.Time
	EventType  string
	Actor      string
	Detail     string
}
