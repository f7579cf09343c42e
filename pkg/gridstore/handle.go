package gridstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gridstream/pkg/grid"
	"gridstream/pkg/meta"
	"gridstream/pkg/storage"
	"gridstream/pkg/types"
)

// writeHandle 把写入攒成定长块，块满就落盘；未满的尾块在 Close 时落盘
type writeHandle struct {
	s      *Store
	rec    *meta.FileRecord
	buf    []byte
	chunkN int64
	closed bool
}

func (h *writeHandle) Seek(context.Context, int64) error {
	return fmt.Errorf("%w: seek on write handle", ErrWrongMode)
}

func (h *writeHandle) Write(ctx context.Context, p []byte) (int64, error) {
	if h.closed {
		return 0, ErrHandleClosed
	}
	if err := h.s.throttle(ctx, len(p)); err != nil {
		return 0, err
	}

	cs := h.rec.ChunkSize
	written := int64(len(p))
	for len(p) > 0 {
		n := min(cs-len(h.buf), len(p))
		h.buf = append(h.buf, p[:n]...)
		p = p[n:]
		if len(h.buf) == cs {
			if err := h.s.chunks.Put(ctx, chunkKey(h.rec, h.chunkN), h.buf); err != nil {
				return 0, fmt.Errorf("put chunk %d: %w", h.chunkN, err)
			}
			h.chunkN++
			h.buf = h.buf[:0]
		}
	}
	h.rec.Length += written
	return h.rec.Length, nil
}

func (h *writeHandle) Close(ctx context.Context) (*types.FileInfo, error) {
	if h.closed {
		return nil, ErrHandleClosed
	}
	h.closed = true

	// 1. 尾块落盘
	if len(h.buf) > 0 {
		if err := h.s.chunks.Put(ctx, chunkKey(h.rec, h.chunkN), h.buf); err != nil {
			return nil, fmt.Errorf("put tail chunk %d: %w", h.chunkN, err)
		}
	}

	// 2. 写文件记录
	if err := h.s.files.Save(ctx, h.rec); err != nil {
		return nil, err
	}
	return h.rec.Info(), nil
}

func (h *writeHandle) Stream(context.Context) grid.ChunkReader {
	return errReader{err: fmt.Errorf("%w: stream on write handle", ErrWrongMode)}
}

type readHandle struct {
	s      *Store
	rec    *meta.FileRecord
	pos    int64
	closed bool
}

func (h *readHandle) Seek(_ context.Context, pos int64) error {
	if pos < 0 || pos > h.rec.Length {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrSeekOutOfRange, pos, h.rec.Length)
	}
	h.pos = pos
	return nil
}

func (h *readHandle) Write(context.Context, []byte) (int64, error) {
	return 0, fmt.Errorf("%w: write on read handle", ErrWrongMode)
}

func (h *readHandle) Close(context.Context) (*types.FileInfo, error) {
	if h.closed {
		return nil, ErrHandleClosed
	}
	h.closed = true
	return h.rec.Info(), nil
}

func (h *readHandle) Stream(context.Context) grid.ChunkReader {
	return &chunkReader{h: h, pos: h.pos}
}

// chunkReader 从游标所在的块开始，每次返回当前块里游标之后的部分
type chunkReader struct {
	h      *readHandle
	pos    int64
	closed bool
}

func (r *chunkReader) Next(ctx context.Context) ([]byte, error) {
	if r.closed {
		return nil, ErrHandleClosed
	}
	rec := r.h.rec
	if r.pos >= rec.Length {
		return nil, io.EOF
	}

	cs := int64(rec.ChunkSize)
	n := r.pos / cs
	off := r.pos % cs
	data, err := storage.ReadAll(ctx, r.h.s.chunks, chunkKey(rec, n))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d of %s", ErrMissingChunk, n, rec.FileID)
	}
	if err != nil {
		return nil, err
	}

	want := min(cs-off, rec.Length-r.pos)
	if int64(len(data)) < off+want {
		return nil, fmt.Errorf("%w: %d of %s is short", ErrMissingChunk, n, rec.FileID)
	}
	r.pos += want
	return data[off : off+want], nil
}

func (r *chunkReader) Close() error {
	r.closed = true
	return nil
}

type errReader struct{ err error }

func (e errReader) Next(context.Context) ([]byte, error) { return nil, e.err }
func (e errReader) Close() error                          { return nil }
