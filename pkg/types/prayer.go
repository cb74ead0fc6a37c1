package types

import "time"

// Prayer represents one content item. The archive file identified by
// ArchivePath is the authoritative record; the index row exists for
// querying and may be discarded and rebuilt at any time.
type Prayer struct {
	PrayerID    string    // Archive-embedded ID (natural key).
	AuthorID    string    // Index ID of the author; empty means orphaned.
	Subject     string    // One-line subject.
	Body        string    // Full text.
	Generated   bool      // Whether the body was machine-generated.
	SubmittedAt time.Time // Submission timestamp from the archive header.
	ArchivePath string    // The prayer's own archive file.
}

// Mark is one interaction mark ("prayed for this") on a prayer.
// Natural key: (PrayerID, UserID, MarkedAt).
type Mark struct {
	MarkID      string
	PrayerID    string
	UserID      string
	MarkedAt    time.Time
	ArchivePath string
}

// Attribute is a named flag or annotation attached to a prayer, including
// moderation flags. Natural key: (PrayerID, Name, CreatedBy, CreatedAt).
type Attribute struct {
	AttributeID string
	PrayerID    string
	Name        string
	Value       string
	CreatedBy   string
	CreatedAt   time.Time
}

// Activity is one activity-log entry. Natural key: every field except
// ActivityID.
type Activity struct {
	ActivityID string
	PrayerID   string
	Actor      string
	Action     string
	OldValue   string
	NewValue   string
	OccurredAt time.Time
}
