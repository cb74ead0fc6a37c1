package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/chronicle/internal/consistency"
)

func newDedupeCmd() *cobra.Command {
	var execute bool
	cmd := &cobra.Command{
		Use:   "dedupe",
		Short: "Remove truncation duplicates from interaction records",
		Long: "Dedupe finds same-minute records that differ only because a\n" +
			"reconstruction lost sub-minute precision and keeps the precise\n" +
			"one. Genuinely distinct same-minute events are left untouched.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return &exitCodeError{code: exitEscalated, msg: err.Error()}
			}
			defer e.close()

			result, err := consistency.NewDeduper(e.idx, e.log).Dedupe(!execute)
			if err != nil {
				return &exitCodeError{code: exitEscalated, msg: err.Error()}
			}
			if flags.jsonMode {
				if err := printJSON(cmd, result); err != nil {
					return err
				}
			} else {
				mode := "executed"
				if result.DryRun {
					mode = "dry run"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "dedupe (%s): %d groups, %d rows removed\n",
					mode, result.GroupsProcessed, result.RowsRemoved)
				for _, err := range result.Errors {
					fmt.Fprintf(cmd.OutOrStdout(), "  error: %v\n", err)
				}
			}
			if len(result.Errors) > 0 {
				return &exitCodeError{code: exitIssues}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&execute, "execute", false, "mutate the index (default is dry run)")
	return cmd
}
