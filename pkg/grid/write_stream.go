package grid

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"gridstream/pkg/event"
	"gridstream/pkg/lifecycle"
	"gridstream/pkg/types"
)

// WriteStream 把调用方的写入排进队列，文件打开后逐块串行写入后端。
// 队列排空且调用过 End 之后关闭句柄并发出 close(FileInfo)。
type WriteStream struct {
	backend Backend
	desc    Descriptor
	ctx     context.Context
	log     *slog.Logger
	lc      *lifecycle.Coordinator

	limit         int
	immediateSoon bool

	mu   sync.Mutex
	cond *sync.Cond // 队列变短或状态变化时广播

	handle Handle
	queue  [][]byte

	openIssued    bool
	openDone      bool
	opened        bool
	flushing      bool
	ending        bool
	destroyed     bool
	destroySoon   bool
	needDrain     bool
	handleClosing bool

	position int64
	file     *types.FileInfo
}

func newWriteStream(ctx context.Context, backend Backend, d Descriptor, opts Options, log *slog.Logger, sopts ...StreamOption) *WriteStream {
	var cfg streamConfig
	for _, o := range sopts {
		o(&cfg)
	}
	log = log.With("stream", "write", "root", d.Root, "file", d.Identity())
	w := &WriteStream{
		backend:       backend,
		desc:          d,
		ctx:           ctx,
		log:           log,
		lc:            lifecycle.New(log, cfg.hooks...),
		limit:         opts.Limit,
		immediateSoon: opts.ImmediateDestroySoon,
	}
	w.cond = sync.NewCond(&w.mu)
	go w.open()
	return w
}

func (w *WriteStream) open() {
	// 1. 打开之前已经被销毁：不再打开
	w.mu.Lock()
	if w.lc.Closing() {
		w.mu.Unlock()
		return
	}
	w.openIssued = true
	_ = w.lc.Transition(lifecycle.Opening)
	w.mu.Unlock()

	// 2. 阻塞调用放在锁外
	h, err := w.backend.Open(w.ctx, w.desc)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.openDone = true
	if err != nil {
		w.failLocked(newFailure(OpenFailure, w.desc, err))
		return
	}
	w.handle = h

	// 3. 打开期间被销毁：直接关句柄
	if w.lc.Closing() {
		w.tryCloseLocked()
		return
	}

	w.opened = true
	_ = w.lc.Transition(lifecycle.Open)
	w.lc.Emit(event.Event{Kind: event.Open})
	w.log.Debug("write stream opened", "mode", string(w.desc.Mode))
	w.cond.Broadcast()
	w.flushLocked()
}

// flushLocked 每次只启动一个后端写入，写完回调里再继续
func (w *WriteStream) flushLocked() {
	if !w.opened || w.flushing || w.lc.Closing() || w.lc.Err() != nil {
		return
	}
	if len(w.queue) == 0 {
		if w.needDrain {
			w.needDrain = false
			w.lc.Emit(event.Event{Kind: event.Drain})
		}
		switch {
		case w.ending:
			w.beginCloseLocked()
		case w.destroySoon:
			w.destroyLocked()
		}
		return
	}

	chunk := w.queue[0]
	w.queue[0] = nil
	w.queue = w.queue[1:]
	w.flushing = true
	_ = w.lc.Transition(lifecycle.Flushing)
	go w.writeChunk(w.handle, chunk)
}

func (w *WriteStream) writeChunk(h Handle, chunk []byte) {
	pos, err := h.Write(w.ctx, chunk)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushing = false
	w.cond.Broadcast()

	// 已经在关闭：在途写入的结果不再上报
	if w.lc.Closing() {
		if err != nil {
			w.log.Debug("write completed after close began", "err", err)
		}
		w.tryCloseLocked()
		return
	}
	if err != nil {
		w.failLocked(newFailure(WriteFailure, w.desc, err))
		return
	}

	w.position = pos
	_ = w.lc.Transition(lifecycle.Open)
	w.lc.Emit(event.Event{Kind: event.Progress, Position: pos})
	w.flushLocked()
}

// failLocked: 丢弃队列 → error → 尽力关闭 → close
func (w *WriteStream) failLocked(err error) {
	if !w.lc.Fail(err) {
		return
	}
	w.log.Warn("write stream failed", "err", err)
	w.queue = nil
	w.cond.Broadcast()
	w.beginCloseLocked()
}

func (w *WriteStream) beginCloseLocked() {
	if !w.lc.BeginClose() {
		return
	}
	w.cond.Broadcast()
	w.tryCloseLocked()
}

// tryCloseLocked 在没有在途的 open / write 时真正关闭句柄，且只关一次
func (w *WriteStream) tryCloseLocked() {
	if !w.lc.Closing() || w.handleClosing {
		return
	}
	if w.flushing || (w.openIssued && !w.openDone) {
		return
	}
	w.handleClosing = true
	if w.handle == nil {
		w.lc.Finish(nil, nil)
		w.cond.Broadcast()
		return
	}
	go w.closeHandle(w.handle)
}

func (w *WriteStream) closeHandle(h Handle) {
	info, err := h.Close(w.ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		err = newFailure(CloseFailure, w.desc, err)
	}
	w.file = info
	if info != nil {
		w.log.Debug("write stream closed", "length", info.Length)
	}
	w.lc.Finish(info, err)
	w.cond.Broadcast()
}

func (w *WriteStream) writableLocked() bool {
	return !w.ending && !w.destroyed && !w.destroySoon && !w.lc.Closing() && w.lc.Err() == nil
}

// enqueueLocked 返回值 ok 即流控信号：false 表示调用方应当等待 drain
func (w *WriteStream) enqueueLocked(p []byte) (ok bool) {
	if len(p) > 0 {
		w.queue = append(w.queue, bytes.Clone(p))
	}
	if !w.opened {
		w.needDrain = true
		return false
	}
	over := w.limit > 0 && len(w.queue) > w.limit
	w.flushLocked()
	if over {
		w.needDrain = true
		return false
	}
	return true
}

// WriteChunk 把 p 的副本排进队列。
// 返回 false 表示文件尚未打开或队列超过 Limit；结束/关闭/出错之后是空操作；销毁之后返回 ErrDestroyed。
func (w *WriteStream) WriteChunk(p []byte) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return false, ErrDestroyed
	}
	if !w.writableLocked() {
		return false, nil
	}
	return w.enqueueLocked(p), nil
}

// Write 实现 io.Writer，流控为 false 时阻塞到队列回落
func (w *WriteStream) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return 0, ErrDestroyed
	}
	if !w.writableLocked() {
		return 0, w.notWritableErrLocked()
	}
	if w.enqueueLocked(p) {
		return len(p), nil
	}
	for !w.lc.Closing() && w.lc.Err() == nil && !w.flowingLocked() {
		w.cond.Wait()
	}
	if err := w.lc.Err(); err != nil {
		return 0, err
	}
	if w.destroyed {
		return 0, ErrDestroyed
	}
	return len(p), nil
}

func (w *WriteStream) flowingLocked() bool {
	return w.opened && (w.limit <= 0 || len(w.queue) <= w.limit)
}

func (w *WriteStream) notWritableErrLocked() error {
	if err := w.lc.Err(); err != nil {
		return err
	}
	return ErrClosed
}

// End 追加最后的数据并标记输入结束，队列排空后关闭。重复调用无效。
func (w *WriteStream) End(final ...[]byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.writableLocked() {
		return
	}
	for _, p := range final {
		if len(p) > 0 {
			w.queue = append(w.queue, bytes.Clone(p))
		}
	}
	w.ending = true
	w.flushLocked()
}

// Destroy 丢弃队列并关闭句柄 (等在途写入返回后)。End 之后调用无效。
func (w *WriteStream) Destroy() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.destroyLocked()
}

func (w *WriteStream) destroyLocked() {
	if w.ending || w.destroyed || w.lc.Closing() {
		return
	}
	w.destroyed = true
	w.queue = nil
	w.log.Debug("write stream destroyed")
	w.cond.Broadcast()
	w.beginCloseLocked()
}

// DestroySoon 队列为空时立即销毁，否则等队列刷完再销毁
func (w *WriteStream) DestroySoon() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.immediateSoon || (len(w.queue) == 0 && !w.flushing) {
		w.destroyLocked()
		return
	}
	if !w.writableLocked() {
		return
	}
	w.destroySoon = true
	w.flushLocked()
}

// Close 等价于 End 后等待关闭完成
func (w *WriteStream) Close() error {
	w.End()
	_, err := w.Wait(context.Background())
	return err
}

// ReadFrom 把 r 读到 EOF 后结束并等待关闭，实现 io.ReaderFrom
func (w *WriteStream) ReadFrom(r io.Reader) (int64, error) {
	buf := make([]byte, 64*1024)
	var n int64
	for {
		m, rerr := r.Read(buf)
		if m > 0 {
			if _, err := w.Write(buf[:m]); err != nil {
				return n, err
			}
			n += int64(m)
		}
		if errors.Is(rerr, io.EOF) {
			return n, w.Close()
		}
		if rerr != nil {
			w.Destroy()
			return n, rerr
		}
	}
}

// Wait 阻塞到 close 事件派发完成
func (w *WriteStream) Wait(ctx context.Context) (*types.FileInfo, error) {
	select {
	case <-w.lc.Done():
		return w.File(), w.lc.Err()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// On 追加钩子，已经发生的事件不会重放
func (w *WriteStream) On(h Hooks) { w.lc.On(h) }

func (w *WriteStream) Done() <-chan struct{}  { return w.lc.Done() }
func (w *WriteStream) Err() error             { return w.lc.Err() }
func (w *WriteStream) State() lifecycle.State { return w.lc.State() }

func (w *WriteStream) File() *types.FileInfo {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file
}

func (w *WriteStream) Position() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.position
}

func (w *WriteStream) ID() types.FileID       { return w.desc.ID }
func (w *WriteStream) Name() string           { return w.desc.Name }
func (w *WriteStream) Mode() types.Mode       { return w.desc.Mode }
func (w *WriteStream) Descriptor() Descriptor { return w.desc }
