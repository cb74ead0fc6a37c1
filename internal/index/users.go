package index

import (
	"database/sql"
	"fmt"

	"github.com/mesh-intelligence/chronicle/pkg/types"
)

// InsertUser inserts a user row. The caller supplies NormalizedName; the
// index never re-derives it.
func (q *Queries) InsertUser(u *types.User) error {
	if u.UserID == "" {
		return types.ErrInvalidID
	}
	_, err := q.q.Exec(
		`INSERT INTO users (user_id, name, normalized_name, email, created_at, source, archive_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.UserID, u.Name, u.NormalizedName, u.Email, fmtTime(u.CreatedAt), u.Source, u.ArchivePath,
	)
	if err != nil {
		return fmt.Errorf("inserting user %s: %w", u.UserID, err)
	}
	return nil
}

func scanUser(row interface{ Scan(...any) error }) (*types.User, error) {
	var u types.User
	var createdAt string
	if err := row.Scan(&u.UserID, &u.Name, &u.NormalizedName, &u.Email, &createdAt, &u.Source, &u.ArchivePath); err != nil {
		return nil, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("user %s created_at: %w", u.UserID, err)
	}
	u.CreatedAt = t
	return &u, nil
}

const userColumns = "user_id, name, normalized_name, email, created_at, source, archive_path"

// UserByID retrieves one user, or types.ErrNotFound.
func (q *Queries) UserByID(id string) (*types.User, error) {
	u, err := scanUser(q.q.QueryRow(
		"SELECT "+userColumns+" FROM users WHERE user_id = ?", id))
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	return u, err
}

// UserByNormalizedName retrieves one user by the normalized lookup form,
// or types.ErrNotFound.
func (q *Queries) UserByNormalizedName(norm string) (*types.User, error) {
	u, err := scanUser(q.q.QueryRow(
		"SELECT "+userColumns+" FROM users WHERE normalized_name = ?", norm))
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	return u, err
}

// AllUsers returns every user row.
func (q *Queries) AllUsers() ([]*types.User, error) {
	rows, err := q.q.Query("SELECT " + userColumns + " FROM users ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []*types.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CountUsers returns the number of user rows.
func (q *Queries) CountUsers() (int, error) {
	var n int
	err := q.q.QueryRow("SELECT COUNT(*) FROM users").Scan(&n)
	return n, err
}
