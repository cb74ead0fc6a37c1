package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/chronicle/internal/restore"
)

func newRestoreCmd() *cobra.Command {
	var execute bool
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore ephemeral state from current-state snapshots",
		Long: "Restore re-inserts sessions, tokens, roles, grants, and approval\n" +
			"requests from each category's snapshot file after a redeploy. A\n" +
			"missing snapshot is a warning; re-running inserts only what is\n" +
			"still missing.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return &exitCodeError{code: exitEscalated, msg: err.Error()}
			}
			defer e.close()

			result, err := restore.New(e.idx, e.archiveRoot, e.log).RestoreAll(!execute)
			if err != nil {
				return &exitCodeError{code: exitEscalated, msg: err.Error()}
			}
			if flags.jsonMode {
				if err := printJSON(cmd, result); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				for _, c := range result.Categories {
					fmt.Fprintf(out, "%-12s %d restored, %d skipped\n", c.Category, c.Restored, c.Skipped)
					for _, w := range c.Warnings {
						fmt.Fprintf(out, "  warning: %s\n", w)
					}
					for _, e := range c.Errors {
						fmt.Fprintf(out, "  error: %v\n", e)
					}
				}
				restored, skipped, warnings, errs := result.Totals()
				mode := "executed"
				if result.DryRun {
					mode = "dry run"
				}
				fmt.Fprintf(out, "total (%s): %d restored, %d skipped, %d warnings, %d errors\n",
					mode, restored, skipped, warnings, errs)
			}
			if _, _, _, errs := result.Totals(); errs > 0 {
				return &exitCodeError{code: exitIssues}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&execute, "execute", false, "mutate the index (default is dry run)")
	return cmd
}
