package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/chronicle/internal/consistency"
)

func newRepairCmd() *cobra.Command {
	var execute bool
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Reconcile drift between the index and the archives",
		Long: "Repair creates placeholder users for archive actors the index\n" +
			"lacks and relinks orphaned records by re-reading their archive\n" +
			"files. It never guesses: an orphan whose actor cannot be verified\n" +
			"stays orphaned and is reported.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return &exitCodeError{code: exitEscalated, msg: err.Error()}
			}
			defer e.close()

			result, err := consistency.NewRepairer(e.idx, e.archiveRoot, e.log).Reconstruct(!execute)
			if err != nil {
				return &exitCodeError{code: exitEscalated, msg: err.Error()}
			}
			if flags.jsonMode {
				if err := printJSON(cmd, result); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				mode := "executed"
				if result.DryRun {
					mode = "dry run"
				}
				fmt.Fprintf(out, "repair (%s): %d placeholders created, %d orphans relinked\n",
					mode, result.PlaceholdersMade, result.OrphansRelinked)
				for _, id := range result.OrphansUnresolved {
					fmt.Fprintf(out, "  still orphaned: %s\n", id)
				}
				for _, err := range result.Errors {
					fmt.Fprintf(out, "  error: %v\n", err)
				}
			}
			if len(result.OrphansUnresolved) > 0 || len(result.Errors) > 0 {
				return &exitCodeError{code: exitIssues}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&execute, "execute", false, "mutate the index (default is dry run)")
	return cmd
}
