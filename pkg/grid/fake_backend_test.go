package grid

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"gridstream/pkg/types"
)

// fakeBackend 用于注入错误和阻塞点
type fakeBackend struct {
	mu sync.Mutex

	openErr  error
	seekErr  error
	writeErr error
	closeErr error
	readErr  error

	entered   chan struct{} // Open 进入时发信号
	openGate  chan struct{} // 非 nil 时 Open 阻塞到关闭
	writeGate chan struct{} // 非 nil 时每次 Write 阻塞到关闭

	data      []byte
	chunkSize int

	opens   int
	closes  int
	nexts   int // ChunkReader.Next 的调用次数
	written []byte
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{chunkSize: 4}
}

func (b *fakeBackend) Open(ctx context.Context, d Descriptor) (Handle, error) {
	b.mu.Lock()
	b.opens++
	entered, gate := b.entered, b.openGate
	b.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if b.openErr != nil {
		return nil, b.openErr
	}
	return &fakeHandle{b: b, d: d}, nil
}

func (b *fakeBackend) Exists(ctx context.Context, d Descriptor) (bool, error) {
	return d.Name == "present", nil
}

func (b *fakeBackend) Remove(ctx context.Context, d Descriptor) error { return nil }

func (b *fakeBackend) counts() (opens, closes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opens, b.closes
}

func (b *fakeBackend) nextCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nexts
}

func (b *fakeBackend) writtenString() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.written)
}

type fakeHandle struct {
	b   *fakeBackend
	d   Descriptor
	pos int64
}

func (h *fakeHandle) Seek(ctx context.Context, pos int64) error {
	if h.b.seekErr != nil {
		return h.b.seekErr
	}
	h.pos = pos
	return nil
}

func (h *fakeHandle) Write(ctx context.Context, p []byte) (int64, error) {
	if h.b.writeGate != nil {
		<-h.b.writeGate
	}
	if h.b.writeErr != nil {
		return 0, h.b.writeErr
	}
	h.b.mu.Lock()
	defer h.b.mu.Unlock()
	h.b.written = append(h.b.written, p...)
	return int64(len(h.b.written)), nil
}

func (h *fakeHandle) Close(ctx context.Context) (*types.FileInfo, error) {
	h.b.mu.Lock()
	h.b.closes++
	n := int64(len(h.b.written))
	h.b.mu.Unlock()
	if h.b.closeErr != nil {
		return nil, h.b.closeErr
	}
	return &types.FileInfo{ID: h.d.ID, Root: h.d.Root, Filename: h.d.Name, Length: n}, nil
}

func (h *fakeHandle) Stream(ctx context.Context) ChunkReader {
	return &fakeReader{b: h.b, pos: h.pos}
}

type fakeReader struct {
	b   *fakeBackend
	pos int64
}

func (r *fakeReader) Next(ctx context.Context) ([]byte, error) {
	r.b.mu.Lock()
	r.b.nexts++
	r.b.mu.Unlock()
	if r.b.readErr != nil {
		return nil, r.b.readErr
	}
	if r.pos >= int64(len(r.b.data)) {
		return nil, io.EOF
	}
	end := min(r.pos+int64(r.b.chunkSize), int64(len(r.b.data)))
	chunk := r.b.data[r.pos:end]
	r.pos = end
	return chunk, nil
}

func (r *fakeReader) Close() error { return nil }

// recorder 按顺序记录事件名称
type recorder struct {
	mu     sync.Mutex
	events []string
	data   []byte
	errs   []error
	file   *types.FileInfo
	closed chan struct{}
}

func newRecorder() *recorder {
	return &recorder{closed: make(chan struct{})}
}

func (r *recorder) add(name string) {
	r.mu.Lock()
	r.events = append(r.events, name)
	r.mu.Unlock()
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		OnOpen:  func() { r.add("open") },
		OnDrain: func() { r.add("drain") },
		OnEnd:   func() { r.add("end") },
		OnData: func(p []byte) {
			r.mu.Lock()
			r.data = append(r.data, p...)
			r.mu.Unlock()
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
			r.add("error")
		},
		OnClose: func(f *types.FileInfo) {
			r.mu.Lock()
			r.file = f
			r.mu.Unlock()
			r.add("close")
			close(r.closed)
		},
	}
}

// writeHooks 不含 OnData，读流不会因此自动流动
func (r *recorder) writeHooks() Hooks {
	h := r.hooks()
	h.OnData = nil
	return h
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.closed:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for close")
	}
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) firstErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.errs) == 0 {
		return nil
	}
	return r.errs[0]
}
