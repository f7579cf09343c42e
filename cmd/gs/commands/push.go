package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"gridstream/pkg/client"
	"gridstream/pkg/grid"
	"gridstream/pkg/ignore"
	"gridstream/pkg/types"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var pushFlags struct {
	name string
	jobs int
}

var pushCmd = &cobra.Command{
	Use:         "push <file|dir>",
	Short:       "Upload a file (or a directory) to a remote gridstream server",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{remoteOnly: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 获取连接 (Lazy)
		cli, err := GetRemoteClient()
		if err != nil {
			return err
		}
		defer cli.Close()

		target := args[0]
		fi, err := os.Stat(target)
		if err != nil {
			return err
		}

		// 2. 单文件
		if !fi.IsDir() {
			name := pushFlags.name
			if name == "" {
				name = filepath.Base(target)
			}
			info, err := pushFile(cmd.Context(), cli, target, name)
			if err != nil {
				return err
			}
			fmt.Printf("✅ Pushed %s as %s (%d bytes)\n", name, info.ID, info.Length)
			return nil
		}

		// 3. 目录：批量并发上传
		matcher, err := ignore.NewMatcher(target)
		if err != nil {
			return err
		}
		var success, failures atomic.Int64
		eg, ctx := errgroup.WithContext(cmd.Context())
		eg.SetLimit(max(pushFlags.jobs, 1))
		err = matcher.Walk(target, func(rel, abs string) error {
			eg.Go(func() error {
				if _, err := pushFile(ctx, cli, abs, rel); err != nil {
					fmt.Printf("❌ %s: %v\n", rel, err)
					failures.Add(1)
					return nil
				}
				fmt.Printf("  ↑ %s\n", rel)
				success.Add(1)
				return nil
			})
			return nil
		})
		_ = eg.Wait()
		if err != nil {
			return err
		}

		fmt.Printf("\nSummary: %d succeeded, %d failed.\n", success.Load(), failures.Load())
		if failures.Load() > 0 {
			return fmt.Errorf("some files failed to upload")
		}
		return nil
	},
}

func pushFile(ctx context.Context, cli *client.GSClient, path, name string) (*types.FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return cli.Upload(ctx, grid.Filename(name), f)
}

var pullFlags struct {
	output string
	rng    string
}

var pullCmd = &cobra.Command{
	Use:         "pull <id|name>",
	Short:       "Download a file (or a byte range of it) from a remote gridstream server",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{remoteOnly: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := lookupOptions(args[0], pullFlags.rng)
		if err != nil {
			return err
		}
		cli, err := GetRemoteClient()
		if err != nil {
			return err
		}
		defer cli.Close()

		out, err := openOutput(cmd, pullFlags.output)
		if err != nil {
			return err
		}
		n, err := cli.Download(cmd.Context(), opts, out)
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		if pullFlags.output != "" && pullFlags.output != "-" {
			fmt.Fprintf(cmd.ErrOrStderr(), "✅ Pulled %d bytes into %s\n", n, pullFlags.output)
		}
		return nil
	},
}

func init() {
	pushCmd.Flags().StringVarP(&pushFlags.name, "name", "n", "", "Remote filename (default: base name)")
	pushCmd.Flags().IntVarP(&pushFlags.jobs, "jobs", "j", 4, "Concurrent uploads for directories")
	pullCmd.Flags().StringVarP(&pullFlags.output, "output", "o", "", "Output file (default stdout)")
	pullCmd.Flags().StringVarP(&pullFlags.rng, "range", "r", "", "Byte range START-END (inclusive) or START-")
	rootCmd.AddCommand(pushCmd, pullCmd)
}
