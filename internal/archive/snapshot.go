package archive

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Snapshot document format. One file per ephemeral category, fully
// overwritten on every state change:
//
//	=== chronicle <category> state ===
//	Generated: <RFC 3339>
//	Count: <n>
//
//	<Kind> <id>:
//	  Key: Value
//	  ...
//
//	=== end ===
//
// The file always reflects the last successful write and is never left
// partially written: WriteSnapshot goes through a temp file, fsync, and
// rename.

// Block is one entity inside a snapshot document.
type Block struct {
	Kind   string // e.g. "Session", "Token", "Role", "Approval".
	ID     string
	Fields map[string]string
	Order  []string // Field emission order; keys absent from Order are skipped.
}

// Field returns a block field value, or "" when absent.
func (b Block) Field(key string) string {
	return b.Fields[key]
}

// WriteSnapshot atomically replaces the snapshot file for a category with
// the given blocks, using the temp-file, fsync, rename pattern.
func WriteSnapshot(path, category string, generatedAt time.Time, blocks []Block) error {
	var buf strings.Builder
	fmt.Fprintf(&buf, "=== chronicle %s state ===\n", category)
	fmt.Fprintf(&buf, "Generated: %s\n", generatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&buf, "Count: %d\n", len(blocks))
	for _, b := range blocks {
		buf.WriteString("\n")
		fmt.Fprintf(&buf, "%s %s:\n", b.Kind, EscapeField(b.ID))
		for _, key := range b.Order {
			val, ok := b.Fields[key]
			if !ok {
				continue
			}
			fmt.Fprintf(&buf, "  %s: %s\n", key, EscapeField(val))
		}
	}
	buf.WriteString("\n=== end ===\n")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(buf.String()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot parses a snapshot document back into blocks. A missing file
// is the caller's concern (os.IsNotExist on the returned error); a present
// but truncated file yields the blocks that parsed.
func ReadSnapshot(path string) ([]Block, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var blocks []Block
	var cur *Block
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		switch {
		case line == "" || strings.HasPrefix(line, "=== ") ||
			strings.HasPrefix(line, "Generated: ") || strings.HasPrefix(line, "Count: "):
			continue
		case strings.HasPrefix(line, "  "):
			if cur == nil {
				continue
			}
			key, val, ok := strings.Cut(strings.TrimPrefix(line, "  "), ": ")
			if !ok {
				continue
			}
			cur.Fields[key] = UnescapeField(val)
			cur.Order = append(cur.Order, key)
		case strings.HasSuffix(line, ":"):
			if cur != nil {
				blocks = append(blocks, *cur)
			}
			kind, id, ok := strings.Cut(strings.TrimSuffix(line, ":"), " ")
			if !ok {
				cur = nil
				continue
			}
			cur = &Block{Kind: kind, ID: UnescapeField(id), Fields: make(map[string]string)}
		}
	}
	if cur != nil {
		blocks = append(blocks, *cur)
	}
	if err := scanner.Err(); err != nil {
		return blocks, fmt.Errorf("scanning %s: %w", path, err)
	}
	return blocks, nil
}
