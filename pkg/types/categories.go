package types

// Archive categories. Each category maps to one region of the archive tree
// and one or more index tables.
const (
	CategoryPrayers    = "prayers"
	CategoryUsers      = "users"
	CategoryMarks      = "marks"
	CategoryAttributes = "attributes"
	CategoryActivity   = "activity"
	CategorySessions   = "sessions"
	CategoryTokens     = "tokens"
	CategoryRoles      = "roles"
	CategoryApprovals  = "approvals"
	CategorySecurity   = "security"
)

// EphemeralCategories are the categories whose current state is kept
// restorable through snapshot files and event logs. Order matters for
// restore: sessions and approvals reference users, which roles do not.
var EphemeralCategories = []string{
	CategoryRoles,
	CategorySessions,
	CategoryTokens,
	CategoryApprovals,
}

// Provenance values for entities created outside of normal operation.
const (
	SourceRegistered  = "registered"
	SourceImport      = "import"
	SourcePlaceholder = "placeholder"
)

// Confidence values attached to facts that were inferred rather than
// directly recorded. Inferred facts are never merged into recorded ones.
const (
	ConfidenceRecorded = "recorded"
	ConfidenceInferred = "inferred"
)
