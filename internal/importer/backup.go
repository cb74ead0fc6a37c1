package importer

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mesh-intelligence/chronicle/internal/archive"
	"github.com/mesh-intelligence/chronicle/pkg/types"
)

// JSON backups are artifacts of earlier system generations: a flat array
// of objects per category, ISO-8601 timestamps with second or microsecond
// precision. chronicle reads them as the lowest-precedence import source
// and never writes them.

type backupSession struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	CreatedAt string `json:"created_at"`
	ExpiresAt string `json:"expires_at"`
	LastSeen  string `json:"last_seen"`
}

type backupToken struct {
	Token      string `json:"token"`
	Kind       string `json:"kind"`
	IssuedTo   string `json:"issued_to"`
	InvitedBy  string `json:"invited_by"`
	IssuedAt   string `json:"issued_at"`
	ConsumedAt string `json:"consumed_at"`
}

// loadBackup reads and decodes one backup file into dst. A missing file
// returns false with no error recorded: most deployments never had
// backups.
func (im *Importer) loadBackup(category string, c *CategoryResult, dst any) bool {
	path := archive.BackupPath(im.root, category)
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false
	}
	if err != nil {
		c.fail(path, 0, err)
		return false
	}
	if err := json.Unmarshal(content, dst); err != nil {
		c.fail(path, 0, fmt.Errorf("decoding backup: %w", err))
		return false
	}
	return true
}

func parseBackupTime(s, field, path string, c *CategoryResult) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := archive.ParseTimestamp(s)
	if err != nil {
		c.fail(path, 0, fmt.Errorf("%s: %w", field, err))
		return time.Time{}
	}
	return t
}

func (im *Importer) backupSessions(c *CategoryResult) []*types.Session {
	var raw []backupSession
	if !im.loadBackup(types.CategorySessions, c, &raw) {
		return nil
	}
	path := archive.BackupPath(im.root, types.CategorySessions)

	var sessions []*types.Session
	for _, r := range raw {
		if r.SessionID == "" {
			c.fail(path, 0, fmt.Errorf("backup session without session_id"))
			continue
		}
		sessions = append(sessions, &types.Session{
			SessionID: r.SessionID,
			UserID:    r.UserID,
			CreatedAt: parseBackupTime(r.CreatedAt, "created_at", path, c),
			ExpiresAt: parseBackupTime(r.ExpiresAt, "expires_at", path, c),
			LastSeen:  parseBackupTime(r.LastSeen, "last_seen", path, c),
		})
	}
	return sessions
}

func (im *Importer) backupTokens(c *CategoryResult) []*types.Token {
	var raw []backupToken
	if !im.loadBackup(types.CategoryTokens, c, &raw) {
		return nil
	}
	path := archive.BackupPath(im.root, types.CategoryTokens)

	var tokens []*types.Token
	for _, r := range raw {
		if r.Token == "" {
			c.fail(path, 0, fmt.Errorf("backup token without token string"))
			continue
		}
		t := &types.Token{
			Token:      r.Token,
			Kind:       r.Kind,
			IssuedTo:   r.IssuedTo,
			IssuedAt:   parseBackupTime(r.IssuedAt, "issued_at", path, c),
			ConsumedAt: parseBackupTime(r.ConsumedAt, "consumed_at", path, c),
		}
		if r.InvitedBy != "" {
			t.InvitedBy = r.InvitedBy
			t.InvitedByConfidence = types.ConfidenceRecorded
		}
		tokens = append(tokens, t)
	}
	return tokens
}
