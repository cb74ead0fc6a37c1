package index

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mesh-intelligence/chronicle/pkg/types"
)

// Marks, attributes, and activity entries. Natural-key existence checks
// here are what make import idempotent; the key fields must match the
// archive grammar exactly.

const markColumns = "mark_id, prayer_id, user_id, marked_at, archive_path"

// InsertMark inserts an interaction mark.
func (q *Queries) InsertMark(m *types.Mark) error {
	if m.MarkID == "" {
		return types.ErrInvalidID
	}
	_, err := q.q.Exec(
		`INSERT INTO marks (mark_id, prayer_id, user_id, marked_at, archive_path)
		 VALUES (?, ?, ?, ?, ?)`,
		m.MarkID, m.PrayerID, m.UserID, fmtTime(m.MarkedAt), m.ArchivePath,
	)
	if err != nil {
		return fmt.Errorf("inserting mark %s: %w", m.MarkID, err)
	}
	return nil
}

// MarkExists checks the (prayer, user, timestamp) natural key.
func (q *Queries) MarkExists(prayerID, userID string, at time.Time) (bool, error) {
	var one int
	err := q.q.QueryRow(
		"SELECT 1 FROM marks WHERE prayer_id = ? AND user_id = ? AND marked_at = ?",
		prayerID, userID, fmtTime(at),
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func scanMark(row interface{ Scan(...any) error }) (*types.Mark, error) {
	var m types.Mark
	var at string
	if err := row.Scan(&m.MarkID, &m.PrayerID, &m.UserID, &at, &m.ArchivePath); err != nil {
		return nil, err
	}
	t, err := parseTime(at)
	if err != nil {
		return nil, fmt.Errorf("mark %s marked_at: %w", m.MarkID, err)
	}
	m.MarkedAt = t
	return &m, nil
}

// AllMarks returns every mark row.
func (q *Queries) AllMarks() ([]*types.Mark, error) {
	rows, err := q.q.Query("SELECT " + markColumns + " FROM marks ORDER BY mark_id")
	if err != nil {
		return nil, fmt.Errorf("listing marks: %w", err)
	}
	defer rows.Close()

	var marks []*types.Mark
	for rows.Next() {
		m, err := scanMark(rows)
		if err != nil {
			return nil, err
		}
		marks = append(marks, m)
	}
	return marks, rows.Err()
}

// DeleteMark removes one mark row. Only deduplication deletes marks.
func (q *Queries) DeleteMark(markID string) error {
	_, err := q.q.Exec("DELETE FROM marks WHERE mark_id = ?", markID)
	return err
}

// SetMarkArchivePath sets the archive back-reference on a mark.
func (q *Queries) SetMarkArchivePath(markID, path string) error {
	_, err := q.q.Exec("UPDATE marks SET archive_path = ? WHERE mark_id = ?", path, markID)
	return err
}

// InsertAttribute inserts an attribute/flag row.
func (q *Queries) InsertAttribute(a *types.Attribute) error {
	if a.AttributeID == "" {
		return types.ErrInvalidID
	}
	_, err := q.q.Exec(
		`INSERT INTO attributes (attribute_id, prayer_id, name, value, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.AttributeID, a.PrayerID, a.Name, a.Value, a.CreatedBy, fmtTime(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting attribute %s: %w", a.AttributeID, err)
	}
	return nil
}

// AttributeExists checks the (prayer, name, created-by, timestamp) natural
// key.
func (q *Queries) AttributeExists(prayerID, name, createdBy string, at time.Time) (bool, error) {
	var one int
	err := q.q.QueryRow(
		"SELECT 1 FROM attributes WHERE prayer_id = ? AND name = ? AND created_by = ? AND created_at = ?",
		prayerID, name, createdBy, fmtTime(at),
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// AllAttributes returns every attribute row.
func (q *Queries) AllAttributes() ([]*types.Attribute, error) {
	rows, err := q.q.Query(
		"SELECT attribute_id, prayer_id, name, value, created_by, created_at FROM attributes ORDER BY attribute_id")
	if err != nil {
		return nil, fmt.Errorf("listing attributes: %w", err)
	}
	defer rows.Close()

	var attrs []*types.Attribute
	for rows.Next() {
		var a types.Attribute
		var at string
		if err := rows.Scan(&a.AttributeID, &a.PrayerID, &a.Name, &a.Value, &a.CreatedBy, &at); err != nil {
			return nil, err
		}
		t, err := parseTime(at)
		if err != nil {
			return nil, fmt.Errorf("attribute %s created_at: %w", a.AttributeID, err)
		}
		a.CreatedAt = t
		attrs = append(attrs, &a)
	}
	return attrs, rows.Err()
}

// DeleteAttribute removes one attribute row.
func (q *Queries) DeleteAttribute(attributeID string) error {
	_, err := q.q.Exec("DELETE FROM attributes WHERE attribute_id = ?", attributeID)
	return err
}

// InsertActivity inserts an activity-log row.
func (q *Queries) InsertActivity(a *types.Activity) error {
	if a.ActivityID == "" {
		return types.ErrInvalidID
	}
	_, err := q.q.Exec(
		`INSERT INTO activity (activity_id, prayer_id, actor, action, old_value, new_value, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ActivityID, a.PrayerID, a.Actor, a.Action, a.OldValue, a.NewValue, fmtTime(a.OccurredAt),
	)
	if err != nil {
		return fmt.Errorf("inserting activity %s: %w", a.ActivityID, err)
	}
	return nil
}

// ActivityExists checks the full six-field natural key.
func (q *Queries) ActivityExists(a *types.Activity) (bool, error) {
	var one int
	err := q.q.QueryRow(
		`SELECT 1 FROM activity WHERE prayer_id = ? AND actor = ? AND action = ?
		 AND old_value = ? AND new_value = ? AND occurred_at = ?`,
		a.PrayerID, a.Actor, a.Action, a.OldValue, a.NewValue, fmtTime(a.OccurredAt),
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// ActivityExistsInMinute checks for an activity row matching every natural
// key field except the timestamp, with a timestamp inside the given
// minute. Used by update-existing re-import, where the archive carries
// only minute precision.
func (q *Queries) ActivityExistsInMinute(a *types.Activity, minuteStart time.Time) (bool, error) {
	var one int
	err := q.q.QueryRow(
		`SELECT 1 FROM activity WHERE prayer_id = ? AND actor = ? AND action = ?
		 AND old_value = ? AND new_value = ? AND occurred_at >= ? AND occurred_at < ?`,
		a.PrayerID, a.Actor, a.Action, a.OldValue, a.NewValue,
		fmtTime(minuteStart), fmtTime(minuteStart.Add(time.Minute)),
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// AllActivity returns every activity row.
func (q *Queries) AllActivity() ([]*types.Activity, error) {
	rows, err := q.q.Query(
		"SELECT activity_id, prayer_id, actor, action, old_value, new_value, occurred_at FROM activity ORDER BY activity_id")
	if err != nil {
		return nil, fmt.Errorf("listing activity: %w", err)
	}
	defer rows.Close()

	var entries []*types.Activity
	for rows.Next() {
		var a types.Activity
		var at string
		if err := rows.Scan(&a.ActivityID, &a.PrayerID, &a.Actor, &a.Action, &a.OldValue, &a.NewValue, &at); err != nil {
			return nil, err
		}
		t, err := parseTime(at)
		if err != nil {
			return nil, fmt.Errorf("activity %s occurred_at: %w", a.ActivityID, err)
		}
		a.OccurredAt = t
		entries = append(entries, &a)
	}
	return entries, rows.Err()
}

// DeleteActivity removes one activity row.
func (q *Queries) DeleteActivity(activityID string) error {
	_, err := q.q.Exec("DELETE FROM activity WHERE activity_id = ?", activityID)
	return err
}
