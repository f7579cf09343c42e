// Package gridstore 是一个 GridFS 风格的参考后端：
// 文件记录放在 files 集合 (meta.Files)，内容按固定大小切块放进 storage.Store。
package gridstore

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"gridstream/pkg/grid"
	"gridstream/pkg/meta"
	"gridstream/pkg/storage"
	"gridstream/pkg/types"
)

const (
	DefaultChunkSize   = 255 * 1024
	DefaultContentType = "binary/octet-stream"
)

var (
	ErrHandleClosed   = errors.New("handle already closed")
	ErrSeekOutOfRange = errors.New("seek position out of range")
	ErrMissingChunk   = errors.New("chunk missing")
	ErrInvalidRoot    = errors.New("invalid root name")
	ErrWrongMode      = errors.New("operation not allowed in this mode")
)

var rootPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Store 实现 grid.Backend 和 grid.Lister
type Store struct {
	files  meta.Files
	chunks storage.Store
	log    *slog.Logger

	chunkSize     int
	rateLimit     float64 // bytes/sec, 0 = 不限速
	limiter       *rate.Limiter
	removeWorkers int
	now           func() time.Time
}

var (
	_ grid.Backend = (*Store)(nil)
	_ grid.Lister  = (*Store)(nil)
)

type Option func(*Store)

func WithChunkSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithRateLimit 限制写入吞吐 (字节/秒)
func WithRateLimit(bytesPerSec float64) Option {
	return func(s *Store) { s.rateLimit = bytesPerSec }
}

func WithRemoveConcurrency(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.removeWorkers = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

func New(files meta.Files, chunks storage.Store, opts ...Option) *Store {
	s := &Store{
		files:         files,
		chunks:        chunks,
		log:           slog.Default(),
		chunkSize:     DefaultChunkSize,
		removeWorkers: 8,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rateLimit > 0 {
		// burst 至少一个块，保证单次写入能拿到令牌
		s.limiter = rate.NewLimiter(rate.Limit(s.rateLimit), max(int(s.rateLimit), s.chunkSize))
	}
	return s
}

func (s *Store) Open(ctx context.Context, d grid.Descriptor) (grid.Handle, error) {
	if err := validateRoot(d.Root); err != nil {
		return nil, err
	}
	if d.Mode == types.ModeRead {
		rec, err := s.locate(ctx, d)
		if err != nil {
			return nil, err
		}
		return &readHandle{s: s, rec: rec}, nil
	}
	return s.openWrite(ctx, d)
}

func (s *Store) openWrite(ctx context.Context, d grid.Descriptor) (grid.Handle, error) {
	rec, err := s.files.Get(ctx, d.Root, d.ID.String())
	if errors.Is(err, meta.ErrFileNotFound) {
		rec, err = s.newRecord(d)
		if err != nil {
			return nil, err
		}
		return &writeHandle{s: s, rec: rec}, nil
	}
	if err != nil {
		return nil, err
	}

	// 已有文件：只覆盖调用方显式给出的字段
	if d.HasName {
		rec.Filename = d.Name
	}
	if d.ContentType != "" {
		rec.ContentType = d.ContentType
	}
	if d.Metadata != nil {
		if err := rec.SetMetadata(d.Metadata); err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}
	}

	h := &writeHandle{s: s, rec: rec}
	switch d.Mode {
	case types.ModeWrite:
		// 1. 截断：删掉旧块，长度归零
		if err := s.deleteChunks(ctx, rec); err != nil {
			return nil, fmt.Errorf("truncate %s: %w", rec.FileID, err)
		}
		rec.Length = 0
		rec.UploadDate = s.now()
		if d.ChunkSize > 0 {
			rec.ChunkSize = d.ChunkSize
		}
	default:
		// 2. 追加：把未满的尾块读回缓冲区，之后原地重写
		cs := int64(rec.ChunkSize)
		h.chunkN = rec.Length / cs
		if off := rec.Length % cs; off > 0 {
			data, err := storage.ReadAll(ctx, s.chunks, chunkKey(rec, h.chunkN))
			if err != nil {
				return nil, fmt.Errorf("load tail chunk %d: %w", h.chunkN, err)
			}
			if int64(len(data)) < off {
				return nil, fmt.Errorf("%w: tail chunk %d is short", ErrMissingChunk, h.chunkN)
			}
			h.buf = append(make([]byte, 0, cs), data[:off]...)
		}
	}
	s.log.Debug("file opened for write", "root", rec.Root, "file", rec.FileID, "mode", string(d.Mode), "length", rec.Length)
	return h, nil
}

func (s *Store) newRecord(d grid.Descriptor) (*meta.FileRecord, error) {
	rec := &meta.FileRecord{
		Root:        d.Root,
		FileID:      d.ID.String(),
		Native:      d.ID.IsNative(),
		Filename:    d.Name,
		ContentType: d.ContentType,
		ChunkSize:   d.ChunkSize,
		UploadDate:  s.now(),
	}
	if rec.ContentType == "" {
		rec.ContentType = DefaultContentType
	}
	if rec.ChunkSize <= 0 {
		rec.ChunkSize = s.chunkSize
	}
	if err := rec.SetMetadata(d.Metadata); err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return rec, nil
}

// locate 按 ID 或 (最新的) 文件名找到记录
func (s *Store) locate(ctx context.Context, d grid.Descriptor) (*meta.FileRecord, error) {
	var (
		rec *meta.FileRecord
		err error
	)
	switch {
	case !d.ID.IsZero():
		rec, err = s.files.Get(ctx, d.Root, d.ID.String())
	case d.HasName:
		rec, err = s.files.FindLatestByName(ctx, d.Root, d.Name)
	default:
		return nil, grid.ErrMissingIdentity
	}
	if errors.Is(err, meta.ErrFileNotFound) {
		return nil, fmt.Errorf("%w: %s/%s", grid.ErrNotFound, d.Root, d.Identity())
	}
	return rec, err
}

func (s *Store) Exists(ctx context.Context, d grid.Descriptor) (bool, error) {
	if err := validateRoot(d.Root); err != nil {
		return false, err
	}
	_, err := s.locate(ctx, d)
	if errors.Is(err, grid.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Remove 先并发删块再删记录；按文件名删除时删掉所有同名版本。文件不存在不算错误。
func (s *Store) Remove(ctx context.Context, d grid.Descriptor) error {
	if err := validateRoot(d.Root); err != nil {
		return err
	}
	var recs []meta.FileRecord
	switch {
	case !d.ID.IsZero():
		rec, err := s.files.Get(ctx, d.Root, d.ID.String())
		if errors.Is(err, meta.ErrFileNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		recs = append(recs, *rec)
	case d.HasName:
		found, err := s.files.FindByName(ctx, d.Root, d.Name)
		if err != nil {
			return err
		}
		recs = found
	default:
		return grid.ErrMissingIdentity
	}

	for i := range recs {
		rec := &recs[i]
		if err := s.deleteChunks(ctx, rec); err != nil {
			return fmt.Errorf("delete chunks of %s: %w", rec.FileID, err)
		}
		if err := s.files.Delete(ctx, rec.Root, rec.FileID); err != nil {
			return err
		}
		s.log.Info("file removed", "root", rec.Root, "file", rec.FileID, "chunks", numChunks(rec))
	}
	return nil
}

func (s *Store) List(ctx context.Context, root string) ([]types.FileInfo, error) {
	if err := validateRoot(root); err != nil {
		return nil, err
	}
	recs, err := s.files.List(ctx, root)
	if err != nil {
		return nil, err
	}
	infos := make([]types.FileInfo, 0, len(recs))
	for i := range recs {
		infos = append(infos, *recs[i].Info())
	}
	return infos, nil
}

func (s *Store) deleteChunks(ctx context.Context, rec *meta.FileRecord) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.removeWorkers)
	for n := range numChunks(rec) {
		key := chunkKey(rec, n)
		g.Go(func() error {
			return s.chunks.Delete(gctx, key)
		})
	}
	return g.Wait()
}

func (s *Store) throttle(ctx context.Context, n int) error {
	if s.limiter == nil {
		return nil
	}
	burst := s.limiter.Burst()
	for n > 0 {
		take := min(n, burst)
		if err := s.limiter.WaitN(ctx, take); err != nil {
			return err
		}
		n -= take
	}
	return nil
}

func validateRoot(root string) error {
	if !rootPattern.MatchString(root) || root == "." || root == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidRoot, root)
	}
	return nil
}

func numChunks(rec *meta.FileRecord) int64 {
	if rec.ChunkSize <= 0 || rec.Length <= 0 {
		return 0
	}
	return (rec.Length + int64(rec.ChunkSize) - 1) / int64(rec.ChunkSize)
}

// chunkKey: "<root>/<file>/<n>"。原始 ID 可能包含任意字符，统一 hex 编码后加 "x" 前缀。
func chunkKey(rec *meta.FileRecord, n int64) string {
	dir := rec.FileID
	if !rec.Native {
		dir = "x" + hex.EncodeToString([]byte(rec.FileID))
	}
	return fmt.Sprintf("%s/%s/%06d", rec.Root, dir, n)
}
