package importer

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/chronicle/internal/index"
	"github.com/mesh-intelligence/chronicle/pkg/types"
)

// Importer rebuilds index rows from archive sources. It never writes to
// the archive tree.
type Importer struct {
	idx  *index.Store
	root string
	log  zerolog.Logger
}

// New creates an Importer reading from the archive root and writing to
// the given index.
func New(idx *index.Store, archiveRoot string, log zerolog.Logger) *Importer {
	return &Importer{idx: idx, root: archiveRoot, log: log}
}

// categoryImport binds a category name to its import function. Order is
// fixed: content items, then actors, then attributes, then ephemeral
// state (approvals), then authentication records, then invite records,
// then roles, then the security log, then interaction marks and
// activity. A category's failure never blocks the ones after it.
type categoryImport struct {
	category string
	run      func(q *index.Queries, c *CategoryResult, dryRun bool) error
}

func (im *Importer) categories() []categoryImport {
	return []categoryImport{
		{types.CategoryPrayers, im.importPrayers},
		{types.CategoryUsers, im.importUsers},
		{types.CategoryAttributes, im.importAttributes},
		{types.CategoryApprovals, im.importApprovals},
		{types.CategorySessions, im.importSessions},
		{types.CategoryTokens, im.importTokens},
		{types.CategoryRoles, im.importRoles},
		{types.CategorySecurity, im.importSecurity},
		{types.CategoryMarks, im.importMarks},
		{types.CategoryActivity, im.importActivity},
	}
}

// ImportAll imports every category from every known archive source.
// dryRun parses and counts without mutating the index. The returned
// error is reserved for environment failures (missing archive root);
// data problems land in the Result.
func (im *Importer) ImportAll(ctx context.Context, dryRun bool) (*Result, error) {
	if _, err := os.Stat(im.root); err != nil {
		return nil, fmt.Errorf("%s: %w", im.root, types.ErrArchiveRootMissing)
	}

	result := &Result{DryRun: dryRun}
	for _, ci := range im.categories() {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		cr := im.runCategory(ci, dryRun)
		result.Categories = append(result.Categories, cr)

		im.log.Info().
			Str("category", cr.Category).
			Int("imported", cr.Imported).
			Int("skipped", cr.Skipped).
			Int("failed", cr.Failed).
			Bool("dry_run", dryRun).
			Msg("category imported")
	}
	return result, nil
}

// runCategory executes one category import in its own transaction. A
// category-level failure rolls back and is retried once with a fresh
// transaction before being recorded.
func (im *Importer) runCategory(ci categoryImport, dryRun bool) CategoryResult {
	attempt := func() (CategoryResult, error) {
		cr := CategoryResult{Category: ci.category}
		if dryRun {
			// Dry runs read the live index for existence checks but
			// never open a write transaction.
			return cr, ci.run(im.idx.Q(), &cr, true)
		}
		err := im.idx.InTx(func(q *index.Queries) error {
			return ci.run(q, &cr, false)
		})
		return cr, err
	}

	cr, err := attempt()
	if err != nil {
		im.log.Warn().Err(err).Str("category", ci.category).Msg("category import failed, retrying")
		cr, err = attempt()
	}
	if err != nil {
		cr.Err = err
	}
	return cr
}

// resolveUser maps an archive actor name to an index user ID via the
// normalization rule used at registration. Returns "" when unresolved.
func resolveUser(q *index.Queries, name string) (string, error) {
	u, err := q.UserByNormalizedName(types.Normalize(name))
	if err == types.ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return u.UserID, nil
}
