package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gridstream/pkg/grid"
	"gridstream/pkg/types"

	"github.com/spf13/cobra"
)

var getFlags struct {
	output   string
	rng      string
	encoding string
}

var getCmd = &cobra.Command{
	Use:   "get <id|name>",
	Short: "Stream a stored file (or a byte range of it) to stdout or a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if GS == nil {
			return fmt.Errorf("app not initialized")
		}
		opts, err := lookupOptions(args[0], getFlags.rng)
		if err != nil {
			return err
		}

		rs := GS.Grid.CreateReadStream(cmd.Context(), opts)
		if err := rs.SetEncoding(getFlags.encoding); err != nil {
			rs.Destroy()
			return err
		}

		if getFlags.output == "" || getFlags.output == "-" {
			_, err := rs.WriteTo(cmd.OutOrStdout())
			return err
		}
		f, err := os.Create(getFlags.output)
		if err != nil {
			rs.Destroy()
			return err
		}
		// Pipe 结束或出错后都会关闭 f
		if err := rs.Pipe(f); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "✅ Wrote %s\n", getFlags.output)
		return nil
	},
}

// lookupOptions: 能解析成 uuid 就按 ID 查，否则按文件名；rng 形如 "2-4" 或 "5-"
func lookupOptions(arg, rng string) (grid.Options, error) {
	opts := grid.Lookup(arg)
	if rng == "" {
		return opts, nil
	}
	r, err := parseRange(rng)
	if err != nil {
		return opts, err
	}
	opts.Range = &r
	return opts, nil
}

func parseRange(s string) (types.ByteRange, error) {
	startStr, endStr, ok := strings.Cut(s, "-")
	if !ok {
		return types.ByteRange{}, fmt.Errorf("invalid range %q: want START-END or START-", s)
	}
	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil {
		return types.ByteRange{}, fmt.Errorf("invalid range start %q: %w", startStr, err)
	}
	if endStr == "" {
		return types.From(start), nil
	}
	end, err := strconv.ParseInt(endStr, 10, 64)
	if err != nil {
		return types.ByteRange{}, fmt.Errorf("invalid range end %q: %w", endStr, err)
	}
	r := types.NewRange(start, end)
	return r, r.Validate()
}

// openOutput 供 pull 复用：目标为空或 "-" 时写 stdout
func openOutput(cmd *cobra.Command, path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{cmd.OutOrStdout()}, nil
	}
	return os.Create(path)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func init() {
	f := getCmd.Flags()
	f.StringVarP(&getFlags.output, "output", "o", "", "Output file (default stdout)")
	f.StringVarP(&getFlags.rng, "range", "r", "", "Byte range START-END (inclusive) or START-")
	f.StringVar(&getFlags.encoding, "encoding", "", "Decode output: utf8, utf16le, latin1, hex, base64")
	rootCmd.AddCommand(getCmd)
}
