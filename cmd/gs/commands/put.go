package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"gridstream/pkg/grid"
	"gridstream/pkg/ignore"
	"gridstream/pkg/types"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var putFlags struct {
	name        string
	id          string
	contentType string
	mode        string
	chunkSize   int
	jobs        int
}

var putCmd = &cobra.Command{
	Use:   "put <file|dir>",
	Short: "Store a file (or every file under a directory) in the grid",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if GS == nil {
			return fmt.Errorf("app not initialized")
		}
		target := args[0]
		fi, err := os.Stat(target)
		if err != nil {
			return err
		}
		start := time.Now()

		// 1. 单文件
		if !fi.IsDir() {
			name := putFlags.name
			if name == "" {
				name = filepath.Base(target)
			}
			info, err := putFile(cmd.Context(), GS.Grid, target, putOptions(name, putFlags.id))
			if err != nil {
				return err
			}
			fmt.Printf("✅ Stored %s as %s (%d bytes) in %s\n", name, info.ID, info.Length, time.Since(start))
			return nil
		}

		// 2. 目录：按 .gsignore 过滤，并发上传，文件名是相对路径
		if putFlags.id != "" {
			return fmt.Errorf("--id cannot be used with a directory")
		}
		matcher, err := ignore.NewMatcher(target)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", ignore.FileName, err)
		}

		var count, total atomic.Int64
		eg, ctx := errgroup.WithContext(cmd.Context())
		eg.SetLimit(max(putFlags.jobs, 1))
		err = matcher.Walk(target, func(rel, abs string) error {
			name := rel
			if putFlags.name != "" {
				name = putFlags.name + "/" + rel
			}
			eg.Go(func() error {
				info, err := putFile(ctx, GS.Grid, abs, putOptions(name, ""))
				if err != nil {
					return fmt.Errorf("failed to store %s: %w", rel, err)
				}
				count.Add(1)
				total.Add(info.Length)
				fmt.Printf("  + %s (%d)\n", name, info.Length)
				return nil
			})
			return nil
		})
		if werr := eg.Wait(); err == nil {
			err = werr
		}
		if err != nil {
			return err
		}

		if count.Load() == 0 {
			fmt.Println("⚠️  No files stored.")
			return nil
		}
		fmt.Printf("✅ Stored %d files (%d bytes) in %s\n", count.Load(), total.Load(), time.Since(start))
		return nil
	},
}

func putOptions(name, id string) grid.Options {
	opts := grid.Options{
		Filename:    name,
		Mode:        types.Mode(putFlags.mode),
		ContentType: putFlags.contentType,
		ChunkSize:   putFlags.chunkSize,
	}
	if id != "" {
		opts.ID = id
	}
	return opts
}

// putFile 把本地文件写进一个写流，等待 close 后返回文件信息
func putFile(ctx context.Context, g *grid.Grid, path string, opts grid.Options) (*types.FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	w := g.CreateWriteStream(ctx, opts)
	if _, err := w.ReadFrom(f); err != nil {
		return nil, err
	}
	return w.File(), nil
}

func init() {
	f := putCmd.Flags()
	f.StringVarP(&putFlags.name, "name", "n", "", "Stored filename (directory: name prefix)")
	f.StringVar(&putFlags.id, "id", "", "File id (uuid or any string); generated when empty")
	f.StringVar(&putFlags.contentType, "content-type", "", "Content type recorded with the file")
	f.StringVar(&putFlags.mode, "mode", "w", "Write mode: w (truncate) or w+ (append)")
	f.IntVar(&putFlags.chunkSize, "chunk-size", 0, "Chunk size in bytes for new files")
	f.IntVarP(&putFlags.jobs, "jobs", "j", 4, "Concurrent uploads for directories")
	rootCmd.AddCommand(putCmd)
}
