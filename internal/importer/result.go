// Package importer rebuilds the SQLite index from the archive tree. Each
// category imports in a fixed order, inside its own transaction, with
// per-record failures counted and reported rather than thrown: the caller
// decides whether partial failure is acceptable.
// See docs/ARCHITECTURE § Importer.
package importer

import (
	"encoding/json"
	"fmt"
)

// RecordError attributes one failed record to its archive source.
type RecordError struct {
	Source string // Archive file the record came from.
	Line   int    // 1-based line number, or 0 when not line-oriented.
	Err    error
}

func (e RecordError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", e.Source, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

// MarshalJSON flattens the wrapped error to its message for tool output.
func (e RecordError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Source string `json:"source"`
		Line   int    `json:"line,omitempty"`
		Error  string `json:"error"`
	}{e.Source, e.Line, e.Err.Error()})
}

// CategoryResult accumulates the outcome of one category's import.
type CategoryResult struct {
	Category string
	Imported int
	Skipped  int // Already present under the natural key.
	Failed   int
	Errors   []RecordError
	// Err is a category-level failure (after retry); the category's
	// transaction rolled back but other categories proceeded.
	Err error
}

func (c *CategoryResult) fail(source string, line int, err error) {
	c.Failed++
	c.Errors = append(c.Errors, RecordError{Source: source, Line: line, Err: err})
}

// Result is the full outcome of an ImportAll run.
type Result struct {
	DryRun     bool
	Categories []CategoryResult
}

// Totals sums the per-category counters.
func (r *Result) Totals() (imported, skipped, failed int) {
	for _, c := range r.Categories {
		imported += c.Imported
		skipped += c.Skipped
		failed += c.Failed
	}
	return
}

// HasFailures reports whether any record or category failed.
func (r *Result) HasFailures() bool {
	for _, c := range r.Categories {
		if c.Failed > 0 || c.Err != nil {
			return true
		}
	}
	return false
}
