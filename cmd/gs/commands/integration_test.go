package commands

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gridstream/pkg/app"
	"gridstream/pkg/grid"
	"gridstream/pkg/gridstore"
	"gridstream/pkg/meta"
	"gridstream/pkg/storage/disk"
	"gridstream/pkg/types"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupIntegrationEnv 搭建一个使用 真实文件系统 + 内存数据库 的集成环境
func setupIntegrationEnv(t *testing.T) string {
	tmpDir := t.TempDir()

	// 1. 块存储落在临时目录
	chunks, err := disk.NewAdapter(filepath.Join(tmpDir, ".gs", "chunks"))
	require.NoError(t, err)

	// 2. 内存 SQLite 代替 Postgres
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	metaDB := meta.NewWithConn(db)
	require.NoError(t, metaDB.AutoMigrate(&meta.FileRecord{}))

	// 3. 组装 App 并注入全局变量 GS
	log := slog.New(slog.DiscardHandler)
	files := meta.NewRepository(metaDB)
	store := gridstore.New(files, chunks, gridstore.WithChunkSize(8), gridstore.WithLogger(log))
	g, err := grid.New(store, grid.WithLogger(log))
	require.NoError(t, err)
	GS = &app.App{DB: metaDB, Files: files, Chunks: chunks, Store: store, Grid: g, Log: log}
	t.Cleanup(func() { GS = nil })

	return tmpDir
}

// run 直接调用子命令的 RunE，捕获 stdout
func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetContext(context.Background())
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.RunE(cmd, args)
	return out.String(), err
}

func TestIntegration_PutGetRange(t *testing.T) {
	tmpDir := setupIntegrationEnv(t)
	src := filepath.Join(tmpDir, "digits.txt")
	require.NoError(t, os.WriteFile(src, []byte("0123456789abcdef0123"), 0o644))

	// gs put digits.txt
	putFlags.name, putFlags.mode = "", "w"
	_, err := run(t, putCmd, src)
	require.NoError(t, err)

	// gs get digits.txt
	getFlags = struct{ output, rng, encoding string }{}
	out, err := run(t, getCmd, "digits.txt")
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef0123", out)

	// gs get digits.txt --range 6-11
	getFlags.rng = "6-11"
	out, err = run(t, getCmd, "digits.txt")
	require.NoError(t, err)
	assert.Equal(t, "6789ab", out)

	// gs get digits.txt -o copy.txt
	getFlags.rng = ""
	getFlags.output = filepath.Join(tmpDir, "copy.txt")
	_, err = run(t, getCmd, "digits.txt")
	require.NoError(t, err)
	data, err := os.ReadFile(getFlags.output)
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef0123", string(data))
	getFlags.output = ""
}

func TestIntegration_PutDirExistsRm(t *testing.T) {
	tmpDir := setupIntegrationEnv(t)
	dir := filepath.Join(tmpDir, "dataset")
	for rel, content := range map[string]string{
		"train/a.bin": "aaaa",
		"train/b.bin": "bbbbbbbbbbbb",
		"notes.tmp":   "ignored",
		".gsignore":   "*.tmp\n",
	} {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}

	putFlags.name, putFlags.mode, putFlags.jobs = "", "w", 2
	_, err := run(t, putCmd, dir)
	require.NoError(t, err)

	out, err := run(t, existsCmd, "train/b.bin")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	out, err = run(t, existsCmd, "notes.tmp")
	require.NoError(t, err)
	assert.Equal(t, "false\n", out)

	out, err = run(t, lsCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "train/a.bin")
	assert.Contains(t, out, "train/b.bin")
	assert.NotContains(t, out, "notes.tmp")

	_, err = run(t, rmCmd, "train/a.bin")
	require.NoError(t, err)
	ok, err := GS.Grid.Exist(context.Background(), grid.Filename("train/a.bin"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		in      string
		want    types.ByteRange
		wantErr bool
	}{
		{in: "2-4", want: types.NewRange(2, 4)},
		{in: "5-", want: types.From(5)},
		{in: "0-0", want: types.NewRange(0, 0)},
		{in: "4-2", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "x-3", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseRange(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
