package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/chronicle/internal/archive"
	"github.com/mesh-intelligence/chronicle/internal/state"
	"github.com/mesh-intelligence/chronicle/pkg/types"
)

// newSnapshotCmd regenerates every ephemeral category's current-state
// snapshot from the live index. Normal operation regenerates snapshots
// after every mutation; this command exists for recovery after hand
// edits or a restored database.
func newSnapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Regenerate all current-state snapshots from the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return &exitCodeError{code: exitEscalated, msg: err.Error()}
			}
			defer e.close()

			writer := archive.NewWriter(e.archiveRoot, e.log)
			st := state.New(e.idx, writer, e.log)
			if err := st.RegenerateAll(); err != nil {
				return &exitCodeError{code: exitIssues, msg: err.Error()}
			}
			for _, category := range types.EphemeralCategories {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n",
					category, archive.SnapshotPath(e.archiveRoot, category))
			}
			return nil
		},
	}
}
