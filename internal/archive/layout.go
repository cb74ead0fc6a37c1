package archive

import (
	"fmt"
	"path/filepath"
	"time"
)

// Directory layout contract. Paths are fixed; other entities store the
// returned values as durable archive-path references, so a change here is
// a data migration, not a refactor.
//
//	prayers/YYYY/MM/<id>.txt            one block file per prayer
//	users/YYYY_MM_users.txt             registration lines
//	marks/marks_YYYY_MM.txt             interaction marks
//	activity/activity_YYYY_MM.txt       activity lines
//	security/security_YYYY_MM.txt       security events
//	system/current_state/<cat>.txt      ephemeral snapshots
//	system/event_log/<cat>_YYYY_MM.txt  ephemeral event logs
//	system/backups/<cat>_backup.json    historical JSON backups

// PrayerPath returns the archive file for one prayer, partitioned by
// submission year and month.
func PrayerPath(root, prayerID string, submittedAt time.Time) string {
	return filepath.Join(root, "prayers",
		fmt.Sprintf("%04d", submittedAt.Year()),
		fmt.Sprintf("%02d", int(submittedAt.Month())),
		prayerID+".txt")
}

// PrayersDir returns the root of the prayer archive tree.
func PrayersDir(root string) string {
	return filepath.Join(root, "prayers")
}

// UsersLogPath returns the monthly registration log.
func UsersLogPath(root string, t time.Time) string {
	return filepath.Join(root, "users",
		fmt.Sprintf("%04d_%02d_users.txt", t.Year(), int(t.Month())))
}

// MarksLogPath returns the monthly interaction-mark log.
func MarksLogPath(root string, t time.Time) string {
	return filepath.Join(root, "marks",
		fmt.Sprintf("marks_%04d_%02d.txt", t.Year(), int(t.Month())))
}

// AttributesLogPath returns the monthly attribute/flag log.
func AttributesLogPath(root string, t time.Time) string {
	return filepath.Join(root, "attributes",
		fmt.Sprintf("attributes_%04d_%02d.txt", t.Year(), int(t.Month())))
}

// ActivityLogPath returns the monthly activity log.
func ActivityLogPath(root string, t time.Time) string {
	return filepath.Join(root, "activity",
		fmt.Sprintf("activity_%04d_%02d.txt", t.Year(), int(t.Month())))
}

// SecurityLogPath returns the monthly security log.
func SecurityLogPath(root string, t time.Time) string {
	return filepath.Join(root, "security",
		fmt.Sprintf("security_%04d_%02d.txt", t.Year(), int(t.Month())))
}

// SnapshotPath returns the current-state snapshot file for an ephemeral
// category.
func SnapshotPath(root, category string) string {
	return filepath.Join(root, "system", "current_state", category+".txt")
}

// EventLogPath returns the monthly event log for an ephemeral category.
func EventLogPath(root, category string, t time.Time) string {
	return filepath.Join(root, "system", "event_log",
		fmt.Sprintf("%s_%04d_%02d.txt", category, t.Year(), int(t.Month())))
}

// BackupPath returns the historical JSON backup for a category. Backups
// are produced by earlier generations of the system; chronicle reads them
// during import but never writes them.
func BackupPath(root, category string) string {
	return filepath.Join(root, "system", "backups", category+"_backup.json")
}
