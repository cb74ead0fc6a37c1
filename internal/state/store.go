// Package state maintains the restorable record of ephemeral categories:
// sessions, tokens, roles and grants, and approval requests. Every
// mutation writes one append-only event-log line and then synchronously
// regenerates the category's full current-state snapshot from the live
// index. Restoration therefore only ever reads one small file per
// category instead of replaying a growing log.
// See docs/ARCHITECTURE § Ephemeral State.
package state

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/chronicle/internal/archive"
	"github.com/mesh-intelligence/chronicle/internal/index"
	"github.com/mesh-intelligence/chronicle/pkg/types"
)

// Event actions recorded in the ephemeral event logs.
const (
	ActionSessionCreate   = "session_create"
	ActionSessionExpire   = "session_expire"
	ActionTokenIssue      = "token_issue"
	ActionTokenConsume    = "token_consume"
	ActionRoleCreate      = "role_create"
	ActionRoleGrant       = "role_grant"
	ActionRoleRevoke      = "role_revoke"
	ActionApprovalCreate  = "approval_create"
	ActionApprovalResolve = "approval_resolve"
)

// Store writes ephemeral-state events and snapshots. It reads the index
// but never mutates it; index changes happen before LogEvent is called.
type Store struct {
	idx    *index.Store
	writer *archive.Writer
	log    zerolog.Logger

	// now is overridable in tests.
	now func() time.Time
}

// New creates a state Store over the given index and archive writer.
func New(idx *index.Store, writer *archive.Writer, log zerolog.Logger) *Store {
	return &Store{
		idx:    idx,
		writer: writer,
		log:    log,
		now:    time.Now,
	}
}

// LogEvent records one state change for an ephemeral category: an event
// line in the category's monthly log, then a full snapshot regeneration.
// The event line is the authoritative record, so its failure aborts the
// call before the snapshot is touched.
func (s *Store) LogEvent(category, action, actor string, payload map[string]string) error {
	if !isEphemeral(category) {
		return fmt.Errorf("log event %s: %w", category, types.ErrInvalidCategory)
	}

	at := s.now()
	if _, err := s.writer.AppendEvent(category, archive.Event{
		At:      at,
		Action:  action,
		Actor:   actor,
		Payload: payload,
	}); err != nil {
		return fmt.Errorf("appending %s event: %w", category, err)
	}

	if err := s.RegenerateSnapshot(category); err != nil {
		return fmt.Errorf("regenerating %s snapshot: %w", category, err)
	}

	s.log.Debug().
		Str("category", category).
		Str("action", action).
		Str("actor", actor).
		Msg("state event recorded")
	return nil
}

// RegenerateSnapshot rewrites the category's current-state snapshot from
// the live index with a single atomic replacement.
func (s *Store) RegenerateSnapshot(category string) error {
	blocks, err := s.snapshotBlocks(category)
	if err != nil {
		return err
	}
	path := archive.SnapshotPath(s.writer.Root(), category)
	return archive.WriteSnapshot(path, category, s.now(), blocks)
}

// RegenerateAll rewrites every ephemeral category's snapshot. Used by the
// snapshot CLI command before a planned redeploy.
func (s *Store) RegenerateAll() error {
	for _, category := range types.EphemeralCategories {
		if err := s.RegenerateSnapshot(category); err != nil {
			return err
		}
	}
	return nil
}

func isEphemeral(category string) bool {
	for _, c := range types.EphemeralCategories {
		if c == category {
			return true
		}
	}
	return false
}

func (s *Store) snapshotBlocks(category string) ([]archive.Block, error) {
	q := s.idx.Q()
	switch category {
	case types.CategorySessions:
		sessions, err := q.AllSessions()
		if err != nil {
			return nil, err
		}
		blocks := make([]archive.Block, 0, len(sessions))
		for _, sess := range sessions {
			blocks = append(blocks, SessionBlock(sess))
		}
		return blocks, nil

	case types.CategoryTokens:
		tokens, err := q.AllTokens()
		if err != nil {
			return nil, err
		}
		blocks := make([]archive.Block, 0, len(tokens))
		for _, t := range tokens {
			blocks = append(blocks, TokenBlock(t))
		}
		return blocks, nil

	case types.CategoryRoles:
		roles, err := q.AllRoles()
		if err != nil {
			return nil, err
		}
		grants, err := q.AllRoleGrants()
		if err != nil {
			return nil, err
		}
		blocks := make([]archive.Block, 0, len(roles)+len(grants))
		for _, r := range roles {
			blocks = append(blocks, RoleBlock(r))
		}
		for _, g := range grants {
			blocks = append(blocks, GrantBlock(g))
		}
		return blocks, nil

	case types.CategoryApprovals:
		approvals, err := q.AllApprovals()
		if err != nil {
			return nil, err
		}
		blocks := make([]archive.Block, 0, len(approvals))
		for _, a := range approvals {
			blocks = append(blocks, ApprovalBlock(a))
		}
		return blocks, nil
	}
	return nil, fmt.Errorf("snapshot %s: %w", category, types.ErrInvalidCategory)
}
