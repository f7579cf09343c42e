package commands

import (
	"fmt"

	"gridstream/pkg/grid"

	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:   "rm <id|name>...",
	Short: "Remove files and their chunks (by name: every stored version)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if GS == nil {
			return fmt.Errorf("app not initialized")
		}
		for _, arg := range args {
			if err := GS.Grid.Remove(cmd.Context(), grid.Lookup(arg)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🗑️  Removed %s\n", arg)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rmCmd)
}
