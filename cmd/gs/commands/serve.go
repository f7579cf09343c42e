package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"gridstream/pkg/server"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the local grid over gRPC (gridstream.v1.FileService)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if GS == nil {
			return fmt.Errorf("app not initialized")
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		addr := viper.GetString("server.addr")
		fmt.Printf("🚀 Serving root %q on %s\n", GS.Grid.Root(), addr)
		return server.Run(ctx, addr, GS)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default from server.addr)")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	rootCmd.AddCommand(serveCmd)
}
