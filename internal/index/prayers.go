package index

import (
	"database/sql"
	"fmt"

	"github.com/mesh-intelligence/chronicle/pkg/types"
)

const prayerColumns = "prayer_id, author_id, subject, body, generated, submitted_at, archive_path"

// InsertPrayer inserts a prayer row. AuthorID may be empty: an orphaned
// row is legal and is what the repair tooling works on.
func (q *Queries) InsertPrayer(p *types.Prayer) error {
	if p.PrayerID == "" {
		return types.ErrInvalidID
	}
	var author any
	if p.AuthorID != "" {
		author = p.AuthorID
	}
	gen := 0
	if p.Generated {
		gen = 1
	}
	_, err := q.q.Exec(
		`INSERT INTO prayers (prayer_id, author_id, subject, body, generated, submitted_at, archive_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.PrayerID, author, p.Subject, p.Body, gen, fmtTime(p.SubmittedAt), p.ArchivePath,
	)
	if err != nil {
		return fmt.Errorf("inserting prayer %s: %w", p.PrayerID, err)
	}
	return nil
}

func scanPrayer(row interface{ Scan(...any) error }) (*types.Prayer, error) {
	var p types.Prayer
	var author sql.NullString
	var gen int
	var submitted string
	if err := row.Scan(&p.PrayerID, &author, &p.Subject, &p.Body, &gen, &submitted, &p.ArchivePath); err != nil {
		return nil, err
	}
	p.AuthorID = author.String
	p.Generated = gen != 0
	t, err := parseTime(submitted)
	if err != nil {
		return nil, fmt.Errorf("prayer %s submitted_at: %w", p.PrayerID, err)
	}
	p.SubmittedAt = t
	return &p, nil
}

// PrayerExists reports whether a prayer with the archive-embedded ID is
// already indexed.
func (q *Queries) PrayerExists(id string) (bool, error) {
	var one int
	err := q.q.QueryRow("SELECT 1 FROM prayers WHERE prayer_id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// PrayerByID retrieves one prayer, or types.ErrNotFound.
func (q *Queries) PrayerByID(id string) (*types.Prayer, error) {
	p, err := scanPrayer(q.q.QueryRow(
		"SELECT "+prayerColumns+" FROM prayers WHERE prayer_id = ?", id))
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	return p, err
}

// AllPrayers returns every prayer row.
func (q *Queries) AllPrayers() ([]*types.Prayer, error) {
	rows, err := q.q.Query("SELECT " + prayerColumns + " FROM prayers ORDER BY prayer_id")
	if err != nil {
		return nil, fmt.Errorf("listing prayers: %w", err)
	}
	defer rows.Close()

	var prayers []*types.Prayer
	for rows.Next() {
		p, err := scanPrayer(rows)
		if err != nil {
			return nil, err
		}
		prayers = append(prayers, p)
	}
	return prayers, rows.Err()
}

// OrphanPrayers returns prayers whose author link is unresolved.
func (q *Queries) OrphanPrayers() ([]*types.Prayer, error) {
	rows, err := q.q.Query(
		"SELECT " + prayerColumns + " FROM prayers WHERE author_id IS NULL OR author_id = '' ORDER BY prayer_id")
	if err != nil {
		return nil, fmt.Errorf("listing orphan prayers: %w", err)
	}
	defer rows.Close()

	var prayers []*types.Prayer
	for rows.Next() {
		p, err := scanPrayer(rows)
		if err != nil {
			return nil, err
		}
		prayers = append(prayers, p)
	}
	return prayers, rows.Err()
}

// SetPrayerAuthor patches the author link on an orphaned prayer.
func (q *Queries) SetPrayerAuthor(prayerID, authorID string) error {
	res, err := q.q.Exec("UPDATE prayers SET author_id = ? WHERE prayer_id = ?", authorID, prayerID)
	if err != nil {
		return fmt.Errorf("setting author for prayer %s: %w", prayerID, err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return types.ErrNotFound
	}
	return err
}

// UpdatePrayer rewrites the content fields of an existing prayer from a
// re-imported archive file. The author link is managed separately.
func (q *Queries) UpdatePrayer(p *types.Prayer) error {
	gen := 0
	if p.Generated {
		gen = 1
	}
	res, err := q.q.Exec(
		`UPDATE prayers SET subject = ?, body = ?, generated = ?, submitted_at = ?, archive_path = ?
		 WHERE prayer_id = ?`,
		p.Subject, p.Body, gen, fmtTime(p.SubmittedAt), p.ArchivePath, p.PrayerID,
	)
	if err != nil {
		return fmt.Errorf("updating prayer %s: %w", p.PrayerID, err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return types.ErrNotFound
	}
	return err
}

// CountPrayers returns the number of prayer rows.
func (q *Queries) CountPrayers() (int, error) {
	var n int
	err := q.q.QueryRow("SELECT COUNT(*) FROM prayers").Scan(&n)
	return n, err
}
