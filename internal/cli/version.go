package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/chronicle/pkg/chronicle"
)

const modulePath = "github.com/mesh-intelligence/chronicle"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the chronicle version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "chronicle v%s\nmodule: %s\n", chronicle.Version, modulePath)
			return nil
		},
	}
}
