package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/chronicle/internal/importer"
)

func newImportCmd() *cobra.Command {
	var (
		execute        bool
		file           string
		updateExisting bool
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Rebuild the index from the archive tree",
		Long: "Import walks every archive category and inserts whatever the index\n" +
			"lacks. Without --execute it is a dry run that parses and counts only.\n" +
			"With --file it imports a single prayer archive file instead.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return &exitCodeError{code: exitEscalated, msg: err.Error()}
			}
			defer e.close()

			im := importer.New(e.idx, e.archiveRoot, e.log)
			if file != "" {
				return runSingleImport(cmd, im, file, updateExisting)
			}

			result, err := im.ImportAll(cmd.Context(), !execute)
			if err != nil {
				return &exitCodeError{code: exitEscalated, msg: err.Error()}
			}
			if err := printImportResult(cmd, result); err != nil {
				return err
			}
			if result.HasFailures() {
				return &exitCodeError{code: exitIssues}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&execute, "execute", false, "mutate the index (default is dry run)")
	cmd.Flags().StringVar(&file, "file", "", "import a single prayer archive file")
	cmd.Flags().BoolVar(&updateExisting, "update-existing", false, "with --file: re-import over an existing entity")
	return cmd
}

func runSingleImport(cmd *cobra.Command, im *importer.Importer, file string, updateExisting bool) error {
	result, err := im.ImportPrayerFile(file, updateExisting)
	if err != nil {
		return &exitCodeError{code: exitIssues, msg: err.Error()}
	}
	if flags.jsonMode {
		return printJSON(cmd, result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d imported, %d skipped, %d failed\n",
		file, result.Imported, result.Skipped, result.Failed)
	for _, re := range result.Errors {
		fmt.Fprintf(cmd.OutOrStdout(), "  %v\n", re)
	}
	if result.Failed > 0 || result.Err != nil {
		return &exitCodeError{code: exitIssues}
	}
	return nil
}

func printImportResult(cmd *cobra.Command, result *importer.Result) error {
	if flags.jsonMode {
		return printJSON(cmd, result)
	}
	out := cmd.OutOrStdout()
	for _, c := range result.Categories {
		fmt.Fprintf(out, "%-12s %d imported, %d skipped, %d failed\n",
			c.Category, c.Imported, c.Skipped, c.Failed)
		for _, re := range c.Errors {
			fmt.Fprintf(out, "  %v\n", re)
		}
		if c.Err != nil {
			fmt.Fprintf(out, "  category error: %v\n", c.Err)
		}
	}
	imported, skipped, failed := result.Totals()
	mode := "executed"
	if result.DryRun {
		mode = "dry run"
	}
	fmt.Fprintf(out, "total (%s): %d imported, %d skipped, %d failed\n",
		mode, imported, skipped, failed)
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
