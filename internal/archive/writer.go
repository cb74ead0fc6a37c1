package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/chronicle/pkg/types"
)

// Writer appends records to the archive tree. The archive is the
// authoritative store: a failed append must abort the mutation that
// triggered it, so every method fails closed and returns no path on error.
type Writer struct {
	root string
	log  zerolog.Logger
}

// NewWriter creates a Writer rooted at the archive tree.
func NewWriter(root string, log zerolog.Logger) *Writer {
	return &Writer{root: root, log: log}
}

// Root returns the archive root directory.
func (w *Writer) Root() string {
	return w.root
}

// Append writes one delimited line for the given category, selecting the
// target file by the category's partitioning policy, and returns the path
// written. The returned path is what other entities store as their durable
// archive reference.
func (w *Writer) Append(category string, at time.Time, fields []string) (string, error) {
	var path string
	switch category {
	case types.CategoryUsers:
		path = UsersLogPath(w.root, at)
	case types.CategoryMarks:
		path = MarksLogPath(w.root, at)
	case types.CategoryAttributes:
		path = AttributesLogPath(w.root, at)
	case types.CategoryActivity:
		path = ActivityLogPath(w.root, at)
	case types.CategorySecurity:
		path = SecurityLogPath(w.root, at)
	default:
		return "", fmt.Errorf("append %s: %w", category, types.ErrInvalidCategory)
	}

	line := append([]string{FormatLogTime(at)}, fields...)
	if err := w.appendLine(path, JoinFields(line)); err != nil {
		return "", err
	}
	w.log.Debug().Str("category", category).Str("path", path).Msg("archived")
	return path, nil
}

// appendLine appends a single line to path, creating directories and the
// file as needed, and flushes before returning.
func (w *Writer) appendLine(path, line string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating archive dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("appending to %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}
