package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List files in the collection root",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if GS == nil {
			return fmt.Errorf("app not initialized")
		}
		files, err := GS.Grid.Files(cmd.Context())
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No files in %q.\n", GS.Grid.Root())
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tLENGTH\tUPLOADED\tFILENAME")
		for _, f := range files {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n",
				f.ID, f.Length, f.UploadDate.Local().Format(time.DateTime), f.Filename)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(lsCmd)
}
