package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/chronicle/internal/consistency"
)

func newValidateCmd() *cobra.Command {
	var minScore float64
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Compute the consistency score between index and archives",
		Long: "Validate compares actor sets, link fields, and archive-path\n" +
			"references between the two stores without mutating either. Exit\n" +
			"code is 0 when clean, 1 when issues were found, and 2 when the\n" +
			"score falls below --min-score.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return &exitCodeError{code: exitEscalated, msg: err.Error()}
			}
			defer e.close()

			report, err := consistency.NewValidator(e.idx, e.archiveRoot, e.log).Validate()
			if err != nil {
				return &exitCodeError{code: exitEscalated, msg: err.Error()}
			}
			if flags.jsonMode {
				if err := printJSON(cmd, report); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "score: %.1f (%d records, %d issues)\n",
					report.Score, report.TotalRecords, len(report.Issues))
				for _, is := range report.Issues {
					fmt.Fprintf(out, "  [%s] %s\n", is.Kind, is.Detail)
				}
				for _, err := range report.ReadErrors {
					fmt.Fprintf(out, "  read error: %v\n", err)
				}
			}
			switch {
			case report.Score < minScore:
				return &exitCodeError{code: exitEscalated,
					msg: fmt.Sprintf("consistency score %.1f below minimum %.1f", report.Score, minScore)}
			case !report.Clean():
				return &exitCodeError{code: exitIssues}
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&minScore, "min-score", 85, "escalate (exit 2) when the score is below this")
	return cmd
}
