package consistency

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/chronicle/internal/archive"
	"github.com/mesh-intelligence/chronicle/internal/index"
	"github.com/mesh-intelligence/chronicle/pkg/types"
)

// RepairResult is the outcome of one reconciliation run.
type RepairResult struct {
	DryRun            bool
	PlaceholdersMade  int // Archive actors the index lacked.
	OrphansRelinked   int
	OrphansUnresolved []string // Prayer IDs still orphaned; never guessed.
	Errors            []error
}

// MarshalJSON flattens wrapped errors to their messages for tool output.
func (r *RepairResult) MarshalJSON() ([]byte, error) {
	msgs := make([]string, 0, len(r.Errors))
	for _, err := range r.Errors {
		msgs = append(msgs, err.Error())
	}
	return json.Marshal(struct {
		DryRun            bool     `json:"dry_run"`
		PlaceholdersMade  int      `json:"placeholders_made"`
		OrphansRelinked   int      `json:"orphans_relinked"`
		OrphansUnresolved []string `json:"orphans_unresolved,omitempty"`
		Errors            []string `json:"errors,omitempty"`
	}{r.DryRun, r.PlaceholdersMade, r.OrphansRelinked, r.OrphansUnresolved, msgs})
}

// Repairer resolves drift the validator finds: archive actors missing
// from the index become explicit placeholder users, and orphaned records
// are relinked by re-reading their own archive file. It never fabricates
// a link it cannot verify, and re-running it converges to zero changes.
type Repairer struct {
	idx  *index.Store
	root string
	log  zerolog.Logger
	now  func() time.Time
}

// NewRepairer creates a Repairer over the given stores.
func NewRepairer(idx *index.Store, archiveRoot string, log zerolog.Logger) *Repairer {
	return &Repairer{idx: idx, root: archiveRoot, log: log, now: time.Now}
}

// actorCache resolves actor names against the index in three passes:
// exact display name, stored normalized name, then a pairwise comparison
// re-normalizing each stored display name (covers rows whose normalized
// column predates the current rule).
type actorCache struct {
	exact  map[string]string // display name -> user id
	normed map[string]string // normalized name -> user id
	users  []*types.User
}

func newActorCache(q *index.Queries) (*actorCache, error) {
	users, err := q.AllUsers()
	if err != nil {
		return nil, err
	}
	c := &actorCache{
		exact:  make(map[string]string, len(users)),
		normed: make(map[string]string, len(users)),
		users:  users,
	}
	for _, u := range users {
		c.exact[u.Name] = u.UserID
		c.normed[u.NormalizedName] = u.UserID
	}
	return c, nil
}

// resolve returns the user ID for an actor name, or "" when no index
// user matches under any pass.
func (c *actorCache) resolve(name string) string {
	if id, ok := c.exact[name]; ok {
		return id
	}
	norm := types.Normalize(name)
	if id, ok := c.normed[norm]; ok {
		return id
	}
	for _, u := range c.users {
		if types.Normalize(u.Name) == norm {
			return u.UserID
		}
	}
	return ""
}

func (c *actorCache) add(u *types.User) {
	c.exact[u.Name] = u.UserID
	c.normed[u.NormalizedName] = u.UserID
	c.users = append(c.users, u)
}

// Reconstruct repairs drift in two phases: placeholder creation for
// archive actors the index lacks, then orphan relinking through each
// orphan's own archive file. Data problems are reported, never thrown;
// only a missing archive root is a hard error.
func (r *Repairer) Reconstruct(dryRun bool) (*RepairResult, error) {
	if _, err := os.Stat(r.root); err != nil {
		return nil, fmt.Errorf("%s: %w", r.root, types.ErrArchiveRootMissing)
	}

	result := &RepairResult{DryRun: dryRun}
	fromArchive, readErrs := archiveActors(r.root)
	result.Errors = append(result.Errors, readErrs...)

	err := r.idx.InTx(func(q *index.Queries) error {
		cache, err := newActorCache(q)
		if err != nil {
			return err
		}
		r.makePlaceholders(q, cache, fromArchive, result, dryRun)
		r.relinkOrphans(q, cache, result, dryRun)
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.log.Info().
		Int("placeholders", result.PlaceholdersMade).
		Int("relinked", result.OrphansRelinked).
		Int("unresolved", len(result.OrphansUnresolved)).
		Bool("dry_run", dryRun).
		Msg("reconciliation complete")
	return result, nil
}

// makePlaceholders creates a minimal placeholder user for every archive
// actor the cache cannot resolve. Placeholders are explicit and logged;
// they carry SourcePlaceholder so later tooling can tell them apart from
// registrations.
func (r *Repairer) makePlaceholders(q *index.Queries, cache *actorCache, fromArchive map[string]string, result *RepairResult, dryRun bool) {
	for _, norm := range sortedKeys(fromArchive) {
		display := fromArchive[norm]
		if cache.resolve(display) != "" {
			continue
		}
		u := &types.User{
			UserID:         index.NewID(),
			Name:           display,
			NormalizedName: norm,
			CreatedAt:      r.now(),
			Source:         types.SourcePlaceholder,
		}
		if !dryRun {
			if err := q.InsertUser(u); err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("placeholder for %q: %w", display, err))
				continue
			}
			r.log.Info().Str("actor", display).Str("user_id", u.UserID).Msg("placeholder user created")
		}
		cache.add(u)
		result.PlaceholdersMade++
	}
}

// relinkOrphans re-reads each orphaned prayer's archive file, re-parses
// the authorship header, and resolves it through the cache. A prayer
// whose author still cannot be resolved stays orphaned and is reported.
func (r *Repairer) relinkOrphans(q *index.Queries, cache *actorCache, result *RepairResult, dryRun bool) {
	orphans, err := q.OrphanPrayers()
	if err != nil {
		result.Errors = append(result.Errors, err)
		return
	}
	for _, p := range orphans {
		if p.ArchivePath == "" {
			result.OrphansUnresolved = append(result.OrphansUnresolved, p.PrayerID)
			continue
		}
		pf, errs := archive.ReadPrayerFile(p.ArchivePath)
		result.Errors = append(result.Errors, errs...)
		if pf == nil {
			result.OrphansUnresolved = append(result.OrphansUnresolved, p.PrayerID)
			continue
		}
		authorID := cache.resolve(pf.Author)
		if authorID == "" {
			result.OrphansUnresolved = append(result.OrphansUnresolved, p.PrayerID)
			continue
		}
		if !dryRun {
			if err := q.SetPrayerAuthor(p.PrayerID, authorID); err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("relinking prayer %s: %w", p.PrayerID, err))
				continue
			}
		}
		result.OrphansRelinked++
	}
}
