// Package index implements the SQLite query index over the chronicle
// archives. The index is derived state: it can be discarded and rebuilt
// from the archive tree at any time, and nothing in it is authoritative.
// See docs/ARCHITECTURE § Index.
package index

// Schema DDL for all tables. Timestamps are stored as RFC 3339 TEXT in
// UTC. archive_path columns hold the durable back-reference returned by
// the archive writer; they may be empty but never fabricated.
const (
	createUsers = `CREATE TABLE IF NOT EXISTS users (
    user_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    normalized_name TEXT NOT NULL,
    email TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    source TEXT NOT NULL,
    archive_path TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_users_normalized ON users(normalized_name);`

	createPrayers = `CREATE TABLE IF NOT EXISTS prayers (
    prayer_id TEXT PRIMARY KEY,
    author_id TEXT,
    subject TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL DEFAULT '',
    generated INTEGER NOT NULL DEFAULT 0,
    submitted_at TEXT NOT NULL,
    archive_path TEXT NOT NULL DEFAULT ''
);`

	createMarks = `CREATE TABLE IF NOT EXISTS marks (
    mark_id TEXT PRIMARY KEY,
    prayer_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    marked_at TEXT NOT NULL,
    archive_path TEXT NOT NULL DEFAULT '',
    UNIQUE (prayer_id, user_id, marked_at)
);`

	createAttributes = `CREATE TABLE IF NOT EXISTS attributes (
    attribute_id TEXT PRIMARY KEY,
    prayer_id TEXT NOT NULL,
    name TEXT NOT NULL,
    value TEXT NOT NULL DEFAULT '',
    created_by TEXT NOT NULL,
    created_at TEXT NOT NULL,
    UNIQUE (prayer_id, name, created_by, created_at)
);`

	createActivity = `CREATE TABLE IF NOT EXISTS activity (
    activity_id TEXT PRIMARY KEY,
    prayer_id TEXT NOT NULL,
    actor TEXT NOT NULL,
    action TEXT NOT NULL,
    old_value TEXT NOT NULL DEFAULT '',
    new_value TEXT NOT NULL DEFAULT '',
    occurred_at TEXT NOT NULL,
    UNIQUE (prayer_id, actor, action, old_value, new_value, occurred_at)
);`

	createSessions = `CREATE TABLE IF NOT EXISTS sessions (
    session_id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    created_at TEXT NOT NULL,
    expires_at TEXT NOT NULL DEFAULT '',
    last_seen TEXT NOT NULL DEFAULT ''
);`

	createTokens = `CREATE TABLE IF NOT EXISTS tokens (
    token TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    issued_to TEXT NOT NULL DEFAULT '',
    invited_by TEXT NOT NULL DEFAULT '',
    invited_by_confidence TEXT NOT NULL DEFAULT '',
    issued_at TEXT NOT NULL,
    consumed_at TEXT NOT NULL DEFAULT ''
);`

	createRoles = `CREATE TABLE IF NOT EXISTS roles (
    role_id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE
);`

	createRoleGrants = `CREATE TABLE IF NOT EXISTS role_grants (
    grant_id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    role_id TEXT NOT NULL,
    granted_by TEXT NOT NULL DEFAULT '',
    granted_at TEXT NOT NULL,
    UNIQUE (user_id, role_id)
);`

	createApprovals = `CREATE TABLE IF NOT EXISTS approvals (
    request_id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    requested_at TEXT NOT NULL,
    status TEXT NOT NULL,
    resolved_at TEXT NOT NULL DEFAULT '',
    resolved_by TEXT NOT NULL DEFAULT ''
);`

	createSecurityEvents = `CREATE TABLE IF NOT EXISTS security_events (
    event_id TEXT PRIMARY KEY,
    occurred_at TEXT NOT NULL,
    event_type TEXT NOT NULL,
    actor TEXT NOT NULL,
    detail TEXT NOT NULL DEFAULT '',
    UNIQUE (occurred_at, event_type, actor)
);`
)

// schemaDDL lists all DDL statements in creation order.
var schemaDDL = []string{
	createUsers,
	createPrayers,
	createMarks,
	createAttributes,
	createActivity,
	createSessions,
	createTokens,
	createRoles,
	createRoleGrants,
	createApprovals,
	createSecurityEvents,
}
