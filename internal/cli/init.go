package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/chronicle/internal/index"
	"github.com/mesh-intelligence/chronicle/internal/paths"
)

// newInitCmd creates config.yaml, the index database, and the archive
// tree skeleton so the other subcommands have somewhere to work.
func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize chronicle configuration, index, and archive tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, err := paths.ResolveConfigDir(flags.configDir)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(configDir)
			if err != nil {
				return err
			}
			dataDir, err := paths.ResolveDataDir(flags.dataDir, cfg.DataDir)
			if err != nil {
				return err
			}
			archiveRoot, err := paths.ResolveArchiveRoot(flags.archiveRoot, cfg.ArchiveRoot)
			if err != nil {
				return err
			}

			idx, err := index.Open(dataDir)
			if err != nil {
				return fmt.Errorf("initializing index: %w", err)
			}
			idx.Close()

			for _, sub := range []string{
				"prayers", "users", "marks", "attributes", "activity", "security",
				filepath.Join("system", "current_state"),
				filepath.Join("system", "event_log"),
				filepath.Join("system", "backups"),
			} {
				if err := os.MkdirAll(filepath.Join(archiveRoot, sub), 0o755); err != nil {
					return fmt.Errorf("creating archive tree: %w", err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "config:  %s\nindex:   %s\narchive: %s\n",
				configDir, dataDir, archiveRoot)
			return nil
		},
	}
}
