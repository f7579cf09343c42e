package commands

import (
	"fmt"

	"gridstream/pkg/grid"

	"github.com/spf13/cobra"
)

var existsCmd = &cobra.Command{
	Use:   "exists <id|name>",
	Short: "Report whether a file is stored",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if GS == nil {
			return fmt.Errorf("app not initialized")
		}
		ok, err := GS.Grid.Exist(cmd.Context(), grid.Lookup(args[0]))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ok)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(existsCmd)
}
