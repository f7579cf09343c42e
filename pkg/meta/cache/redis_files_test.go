package cache

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"gridstream/pkg/grid"
	"gridstream/pkg/gridstore"
	"gridstream/pkg/meta"
	"gridstream/pkg/storage/memory"
	"gridstream/pkg/types"
)

// -----------------------------------------------------------------------------
// SpyFiles (间谍仓库)
// 统计底层方法被调用的次数，验证请求是否穿透了缓存
// -----------------------------------------------------------------------------
type SpyFiles struct {
	mu       sync.Mutex
	getCount int32
	records  map[string]meta.FileRecord
}

func NewSpyFiles() *SpyFiles {
	return &SpyFiles{records: make(map[string]meta.FileRecord)}
}

func (s *SpyFiles) Get(_ context.Context, root, id string) (*meta.FileRecord, error) {
	atomic.AddInt32(&s.getCount, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[root+"/"+id]
	if !ok {
		return nil, meta.ErrFileNotFound
	}
	return &rec, nil
}

func (s *SpyFiles) FindLatestByName(_ context.Context, root, name string) (*meta.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *meta.FileRecord
	for _, rec := range s.records {
		if rec.Root == root && rec.Filename == name && (best == nil || rec.UploadDate.After(best.UploadDate)) {
			r := rec
			best = &r
		}
	}
	if best == nil {
		return nil, meta.ErrFileNotFound
	}
	return best, nil
}

func (s *SpyFiles) FindByName(context.Context, string, string) ([]meta.FileRecord, error) {
	return nil, nil
}

func (s *SpyFiles) Save(_ context.Context, rec *meta.FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Root+"/"+rec.FileID] = *rec
	return nil
}

func (s *SpyFiles) Delete(_ context.Context, root, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, root+"/"+id)
	return nil
}

func (s *SpyFiles) List(context.Context, string) ([]meta.FileRecord, error) { return nil, nil }

func TestRecordCodec(t *testing.T) {
	rec := &meta.FileRecord{
		Root:        "fs",
		FileID:      "an_arbitrary_id",
		Filename:    "a.txt",
		ContentType: "text/plain",
		Length:      11,
		ChunkSize:   255 * 1024,
		UploadDate:  time.Date(2024, 5, 1, 12, 0, 0, 123, time.UTC),
		Metadata:    datatypes.JSON(`{"k":"v"}`),
	}

	raw, err := encodeRecord(rec)
	require.NoError(t, err)

	got, err := decodeRecord(raw)
	require.NoError(t, err)
	assert.Equal(t, rec.FileID, got.FileID)
	assert.Equal(t, rec.Length, got.Length)
	assert.True(t, rec.UploadDate.Equal(got.UploadDate))
	assert.JSONEq(t, `{"k":"v"}`, string(got.Metadata))

	_, err = decodeRecord([]byte("not cbor"))
	assert.Error(t, err)
}

// newRedisCache 连接本地 Redis 并清空 DB，Redis 不可用时跳过
func newRedisCache(t *testing.T, backend meta.Files) *CachedFiles {
	t.Helper()
	redisAddr := "localhost:6379"
	conn, err := net.DialTimeout("tcp", redisAddr, 1*time.Second)
	if err != nil {
		t.Skipf("Skipping Redis integration test: %v", err)
	}
	conn.Close()

	cached, err := NewCachedFiles(backend, Config{
		RedisURL: fmt.Sprintf("redis://%s/0", redisAddr),
		TTL:      time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(func() { cached.Close() })
	require.NoError(t, cached.client.FlushDB(context.Background()).Err())
	cached.log = slog.New(slog.DiscardHandler)
	return cached
}

func TestCachedFiles_Integration(t *testing.T) {
	ctx := context.Background()
	spy := NewSpyFiles()
	cached := newRedisCache(t, spy)

	// 直接写进底层，缓存里还没有
	rec := &meta.FileRecord{Root: "fs", FileID: "cached-1", Filename: "a.txt", Length: 11, UploadDate: time.Now()}
	require.NoError(t, spy.Save(ctx, rec))

	// --- Step 1: Cache Miss，返回前已经回填 ---
	got, err := cached.Get(ctx, "fs", "cached-1")
	require.NoError(t, err)
	assert.Equal(t, int64(11), got.Length)
	assert.Equal(t, int32(1), atomic.LoadInt32(&spy.getCount))
	n, err := cached.client.Exists(ctx, fileKey("fs", "cached-1")).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// --- Step 2: Cache Hit ---
	_, err = cached.Get(ctx, "fs", "cached-1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&spy.getCount), "backend Get should NOT be called on hit")

	// --- Step 3: Save 直接写入新值 ---
	rec.Length = 20
	require.NoError(t, cached.Save(ctx, rec))
	got, err = cached.Get(ctx, "fs", "cached-1")
	require.NoError(t, err)
	assert.Equal(t, int64(20), got.Length)
	assert.Equal(t, int32(1), atomic.LoadInt32(&spy.getCount), "Save should write through")

	// --- Step 4: 按名字查 ---
	byName, err := cached.FindLatestByName(ctx, "fs", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "cached-1", byName.FileID)
	id, err := cached.client.Get(ctx, nameKey("fs", "a.txt")).Result()
	require.NoError(t, err)
	assert.Equal(t, "cached-1", id)

	// --- Step 5: 删除之后查不到 ---
	require.NoError(t, cached.Delete(ctx, "fs", "cached-1"))
	_, err = cached.Get(ctx, "fs", "cached-1")
	assert.ErrorIs(t, err, meta.ErrFileNotFound)
	_, err = cached.FindLatestByName(ctx, "fs", "a.txt")
	assert.ErrorIs(t, err, meta.ErrFileNotFound)
}

// 追加 / 截断之后立刻按 ID 读，必须拿到新长度
func TestCachedFiles_ReadAfterRewrite(t *testing.T) {
	cached := newRedisCache(t, NewSpyFiles())
	store := gridstore.New(cached, memory.New(), gridstore.WithChunkSize(4))
	g, err := grid.New(store, grid.WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, err)

	ctx := context.Background()
	write := func(opts grid.Options, data string) {
		w := g.CreateWriteStream(ctx, opts)
		_, err := w.Write([]byte(data))
		require.NoError(t, err)
		require.NoError(t, w.Close())
	}
	read := func(id types.FileID) string {
		var buf bytes.Buffer
		_, err := g.CreateReadStream(ctx, grid.Options{ID: id}).WriteTo(&buf)
		require.NoError(t, err)
		return buf.String()
	}

	for i := range 50 {
		id := types.NewFileID()
		write(grid.Options{ID: id, Mode: types.ModeWrite}, "abc")
		require.Equal(t, "abc", read(id), "iteration %d", i)

		write(grid.Options{ID: id, Mode: types.ModeAppend}, "defg")
		require.Equal(t, "abcdefg", read(id), "iteration %d: append", i)

		write(grid.Options{ID: id, Mode: types.ModeWrite}, "xy")
		require.Equal(t, "xy", read(id), "iteration %d: truncate", i)
	}
}
