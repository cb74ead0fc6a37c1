package types

import "time"

// User represents a community member. The archive records users by display
// name; NormalizedName is the lookup form produced by Normalize at
// registration time and is what every resolution path compares against.
type User struct {
	UserID         string    // UUID v7, generated on creation.
	Name           string    // Display name exactly as registered.
	NormalizedName string    // Trimmed, whitespace-collapsed, case-folded form.
	Email          string    // Optional contact address.
	CreatedAt      time.Time // Timestamp of registration.
	Source         string    // SourceRegistered, SourceImport, or SourcePlaceholder.
	ArchivePath    string    // Registration log file, if known.
}

// IsPlaceholder reports whether the user was fabricated by reconciliation
// because an archive named an actor the index did not have.
func (u *User) IsPlaceholder() bool {
	return u.Source == SourcePlaceholder
}
