package grid

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"gridstream/pkg/event"
	"gridstream/pkg/lifecycle"
	"gridstream/pkg/types"
)

// producerState 是读流与后端生产者之间的连接：打开之前没有 reader
type producerState struct {
	open   bool
	reader ChunkReader
}

// ReadStream 打开文件 (必要时先定位到 StartPos)，从后端逐块拉取数据，
// 按区间截断、按编码解码后通过 data 事件投递。
//
// 只有在构造时挂了 OnData、调用了 Resume 或 Pipe/WriteTo 之后才开始流动。
type ReadStream struct {
	backend Backend
	desc    Descriptor
	ctx     context.Context
	log     *slog.Logger
	lc      *lifecycle.Coordinator

	mu   sync.Mutex
	cond *sync.Cond

	handle   Handle
	producer producerState
	dec      decoder

	openIssued    bool
	openDone      bool
	paused        bool
	flowing       bool
	pumping       bool
	ended         bool
	destroyed     bool
	handleClosing bool

	offset int64
}

func newReadStream(ctx context.Context, backend Backend, d Descriptor, log *slog.Logger, sopts ...StreamOption) *ReadStream {
	var cfg streamConfig
	for _, o := range sopts {
		o(&cfg)
	}
	log = log.With("stream", "read", "root", d.Root, "file", d.Identity())
	r := &ReadStream{
		backend: backend,
		desc:    d,
		ctx:     ctx,
		log:     log,
		lc:      lifecycle.New(log, cfg.hooks...),
	}
	r.cond = sync.NewCond(&r.mu)
	r.flowing = r.lc.HasDataHook()
	go r.open()
	return r
}

func (r *ReadStream) open() {
	r.mu.Lock()
	if r.lc.Closing() {
		r.mu.Unlock()
		return
	}
	r.openIssued = true
	_ = r.lc.Transition(lifecycle.Opening)
	r.mu.Unlock()

	h, err := r.openHandle()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.openDone = true
	r.handle = h
	if err != nil {
		r.failLocked(err)
		return
	}
	if r.lc.Closing() {
		r.tryCloseLocked()
		return
	}

	// 定位完成之后才发出 open
	r.producer = producerState{open: true, reader: h.Stream(r.ctx)}
	r.offset = r.desc.Range.StartPos
	_ = r.lc.Transition(lifecycle.Open)
	r.lc.Emit(event.Event{Kind: event.Open})
	r.log.Debug("read stream opened", "range", r.desc.Range.String())
	go r.pump()
}

// openHandle 在锁外执行打开和定位；定位失败时仍返回句柄以便关闭
func (r *ReadStream) openHandle() (Handle, error) {
	if !r.desc.HasIdentity() {
		return nil, newFailure(OpenFailure, r.desc, ErrMissingIdentity)
	}
	if err := r.desc.Range.Validate(); err != nil {
		return nil, newFailure(OpenFailure, r.desc, err)
	}
	h, err := r.backend.Open(r.ctx, r.desc)
	if err != nil {
		return nil, newFailure(OpenFailure, r.desc, err)
	}
	if start := r.desc.Range.StartPos; start > 0 {
		if err := h.Seek(r.ctx, start); err != nil {
			return h, newFailure(SeekFailure, r.desc, err)
		}
	}
	return h, nil
}

func (r *ReadStream) pump() {
	for {
		// 1. 等待消费者
		r.mu.Lock()
		for (r.paused || !r.flowing) && !r.lc.Closing() {
			r.cond.Wait()
		}
		if r.lc.Closing() || r.ended {
			r.tryCloseLocked()
			r.mu.Unlock()
			return
		}
		r.pumping = true
		reader := r.producer.reader
		r.mu.Unlock()

		// 2. 从生产者拉取一块
		chunk, err := reader.Next(r.ctx)

		r.mu.Lock()
		r.pumping = false
		if r.lc.Closing() {
			r.tryCloseLocked()
			r.mu.Unlock()
			return
		}
		if errors.Is(err, io.EOF) {
			r.endLocked()
			r.mu.Unlock()
			return
		}
		if err != nil {
			r.failLocked(newFailure(ReadFailure, r.desc, err))
			r.mu.Unlock()
			return
		}

		// 3. 暂停期间持有已经拉到的块
		for r.paused && !r.lc.Closing() {
			r.cond.Wait()
		}
		if r.lc.Closing() {
			r.tryCloseLocked()
			r.mu.Unlock()
			return
		}
		out, last := r.clipLocked(chunk)
		if r.dec != nil {
			out = r.dec.Decode(out)
		}
		r.mu.Unlock()

		// 4. 锁外投递，等钩子返回形成背压
		if len(out) > 0 {
			r.lc.Deliver(out)
		}
		if last {
			r.mu.Lock()
			r.endLocked()
			r.mu.Unlock()
			return
		}
	}
}

// clipLocked 按区间截断，返回的 last 表示已经到达 EndPos
func (r *ReadStream) clipLocked(chunk []byte) ([]byte, bool) {
	n := int64(len(chunk))
	if !r.desc.Range.Bounded {
		r.offset += n
		return chunk, false
	}
	limit := r.desc.Range.EndPos + 1
	if r.offset+n >= limit {
		keep := max(min(limit-r.offset, n), 0)
		r.offset += keep
		return chunk[:keep], true
	}
	r.offset += n
	return chunk, false
}

func (r *ReadStream) endLocked() {
	if r.ended || r.lc.Closing() {
		return
	}
	r.ended = true
	if r.dec != nil {
		if tail := r.dec.Flush(); len(tail) > 0 {
			r.lc.Emit(event.Event{Kind: event.Data, Data: tail})
		}
	}
	r.lc.End()
	r.log.Debug("read stream ended", "offset", r.offset)
	r.beginCloseLocked()
}

func (r *ReadStream) failLocked(err error) {
	if !r.lc.Fail(err) {
		return
	}
	r.log.Warn("read stream failed", "err", err)
	r.beginCloseLocked()
}

func (r *ReadStream) beginCloseLocked() {
	if !r.lc.BeginClose() {
		return
	}
	r.cond.Broadcast()
	r.tryCloseLocked()
}

func (r *ReadStream) tryCloseLocked() {
	if !r.lc.Closing() || r.handleClosing {
		return
	}
	if r.pumping || (r.openIssued && !r.openDone) {
		return
	}
	r.handleClosing = true
	if r.handle == nil {
		r.lc.Finish(nil, nil)
		return
	}
	reader := r.producer.reader
	r.producer = producerState{}
	go r.closeHandle(r.handle, reader)
}

func (r *ReadStream) closeHandle(h Handle, reader ChunkReader) {
	if reader != nil {
		if err := reader.Close(); err != nil {
			r.log.Debug("producer close", "err", err)
		}
	}
	info, err := h.Close(r.ctx)
	if err != nil {
		err = newFailure(CloseFailure, r.desc, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lc.Finish(info, err)
}

// Pause 停止从后端拉取；打开之前调用只记录意图
func (r *ReadStream) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = true
}

// Resume 取消暂停并开始流动
func (r *ReadStream) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = false
	r.flowing = true
	r.cond.Broadcast()
}

// SetEncoding 设置增量解码，空串表示输出原始字节
func (r *ReadStream) SetEncoding(enc string) error {
	d, err := newDecoder(enc)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dec = d
	return nil
}

// Destroy 停止投递、与生产者断开、关闭句柄并发出 close
func (r *ReadStream) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed || r.lc.Closing() {
		return
	}
	r.destroyed = true
	r.log.Debug("read stream destroyed", "offset", r.offset)
	r.beginCloseLocked()
}

// Pipe 把全部数据写入 dst 并在结束后关闭 dst (如果它是 io.Closer)。
// 出错时 dst 被销毁 (实现了 Destroy 时，例如 *WriteStream) 或直接关闭。
func (r *ReadStream) Pipe(dst io.Writer) error {
	if _, err := r.WriteTo(dst); err != nil {
		abort(dst)
		return err
	}
	if c, ok := dst.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func abort(dst io.Writer) {
	switch d := dst.(type) {
	case interface{ Destroy() }:
		d.Destroy()
	case io.Closer:
		_ = d.Close()
	}
}

// WriteTo 实现 io.WriterTo。dst.Write 阻塞时读流随之停下。
func (r *ReadStream) WriteTo(dst io.Writer) (int64, error) {
	var n int64
	var werr error
	r.lc.On(event.Hooks{OnData: func(p []byte) {
		if werr != nil {
			return
		}
		m, err := dst.Write(p)
		n += int64(m)
		if err != nil {
			werr = err
			r.Destroy()
		}
	}})
	r.Resume()

	cancelled := false
	select {
	case <-r.lc.Done():
	case <-r.ctx.Done():
		cancelled = true
		r.Destroy()
		<-r.lc.Done()
	}
	if werr != nil {
		return n, werr
	}
	if err := r.lc.Err(); err != nil {
		return n, err
	}
	if cancelled {
		return n, r.ctx.Err()
	}
	return n, nil
}

func (r *ReadStream) Wait(ctx context.Context) error {
	select {
	case <-r.lc.Done():
		return r.lc.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *ReadStream) On(h Hooks) {
	r.lc.On(h)
	if h.OnData != nil {
		r.mu.Lock()
		r.flowing = true
		r.cond.Broadcast()
		r.mu.Unlock()
	}
}

func (r *ReadStream) Done() <-chan struct{}  { return r.lc.Done() }
func (r *ReadStream) Err() error             { return r.lc.Err() }
func (r *ReadStream) State() lifecycle.State { return r.lc.State() }
func (r *ReadStream) ID() types.FileID       { return r.desc.ID }
func (r *ReadStream) Name() string           { return r.desc.Name }
func (r *ReadStream) Range() types.ByteRange { return r.desc.Range }
