package commands

import (
	"fmt"
	"os"

	"gridstream/pkg/app"
	"gridstream/pkg/client"
	"gridstream/pkg/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// remoteOnly 标记不需要本地 App 的命令 (只和远端服务端交互)
const remoteOnly = "remote-only"

var (
	cfgFile string
	// 全局应用实例，供子命令使用
	GS *app.App
)

var rootCmd = &cobra.Command{
	Use:           "gs",
	Short:         "gridstream: chunked file storage with streaming reads and writes",
	SilenceUsage:  true,
	SilenceErrors: false,
	// PersistentPreRunE 会在所有子命令执行前运行
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[remoteOnly] == "true" || GS != nil {
			return nil
		}
		var err error
		GS, err = app.NewApp(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to initialize gridstream: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if GS == nil {
			return nil
		}
		err := GS.Close()
		GS = nil
		return err
	},
}

// Execute 是入口
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.gs/config.yaml)")
	flags.String("storage-path", "", "Directory to store chunks (disk storage)")
	flags.String("root", "", "Collection root (default \"fs\")")
	flags.String("remote", "", "Remote gridstream server address")

	// 既可以在 yaml 里写，也可以用参数覆盖
	for key, flag := range map[string]string{
		"storage.path": "storage-path",
		"grid.root":    "root",
		"remote.addr":  "remote",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			fmt.Println("Failed to bind flag:", err)
			os.Exit(1)
		}
	}
}

// initConfig 读取配置文件和环境变量
func initConfig() {
	if err := config.Load(cfgFile); err != nil {
		fmt.Println("Config error:", err)
		os.Exit(1)
	}
}

// GetRemoteClient 按 remote.addr 创建客户端；连接在第一次调用时才真正建立
func GetRemoteClient() (*client.GSClient, error) {
	addr := viper.GetString("remote.addr")
	if addr == "" {
		return nil, fmt.Errorf("remote address not set (use --remote or remote.addr)")
	}
	return client.NewGSClient(addr)
}
