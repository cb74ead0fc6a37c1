package index

import "fmt"

// indexTables lists every table counted by TotalRecords.
var indexTables = []string{
	"users", "prayers", "marks", "attributes", "activity",
	"sessions", "tokens", "roles", "role_grants", "approvals",
	"security_events",
}

// TotalRecords returns the row count across all index tables. The
// consistency score denominator.
func (q *Queries) TotalRecords() (int, error) {
	total := 0
	for _, table := range indexTables {
		var n int
		if err := q.q.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			return 0, fmt.Errorf("counting %s: %w", table, err)
		}
		total += n
	}
	return total, nil
}

// CountTable returns one table's row count. Used by import dry runs to
// report before/after sizes.
func (q *Queries) CountTable(table string) (int, error) {
	for _, known := range indexTables {
		if known == table {
			var n int
			err := q.q.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n)
			return n, err
		}
	}
	return 0, fmt.Errorf("unknown table %q", table)
}
