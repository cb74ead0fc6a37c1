package index

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mesh-intelligence/chronicle/pkg/types"
)

// InsertSecurityEvent inserts one security-log row.
func (q *Queries) InsertSecurityEvent(e *types.SecurityEvent) error {
	if e.EventID == "" {
		return types.ErrInvalidID
	}
	_, err := q.q.Exec(
		`INSERT INTO security_events (event_id, occurred_at, event_type, actor, detail)
		 VALUES (?, ?, ?, ?, ?)`,
		e.EventID, fmtTime(e.OccurredAt), e.EventType, e.Actor, e.Detail,
	)
	if err != nil {
		return fmt.Errorf("inserting security event: %w", err)
	}
	return nil
}

// SecurityEventExists checks the (timestamp, event type, actor) natural
// key.
func (q *Queries) SecurityEventExists(at time.Time, eventType, actor string) (bool, error) {
	var one int
	err := q.q.QueryRow(
		"SELECT 1 FROM security_events WHERE occurred_at = ? AND event_type = ? AND actor = ?",
		fmtTime(at), eventType, actor,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// AllSecurityEvents returns every security-log row.
func (q *Queries) AllSecurityEvents() ([]*types.SecurityEvent, error) {
	rows, err := q.q.Query(
		"SELECT event_id, occurred_at, event_type, actor, detail FROM security_events ORDER BY occurred_at")
	if err != nil {
		return nil, fmt.Errorf("listing security events: %w", err)
	}
	defer rows.Close()

	var events []*types.SecurityEvent
	for rows.Next() {
		var e types.SecurityEvent
		var at string
		if err := rows.Scan(&e.EventID, &at, &e.EventType, &e.Actor, &e.Detail); err != nil {
			return nil, err
		}
		var perr error
		if e.OccurredAt, perr = parseTime(at); perr != nil {
			return nil, fmt.Errorf("security event %s occurred_at: %w", e.EventID, perr)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}
