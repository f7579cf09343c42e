// Package lifecycle 维护一个流适配器的状态机：
// 打开 → 传输 → 关闭/出错，保证 close 只执行一次、error 先于 close。
package lifecycle

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"gridstream/pkg/event"
	"gridstream/pkg/types"
)

type State int

const (
	Unopened State = iota
	Opening
	Open
	Flushing
	Closing
	Closed
	Errored
)

func (s State) String() string {
	switch s {
	case Unopened:
		return "unopened"
	case Opening:
		return "opening"
	case Open:
		return "open"
	case Flushing:
		return "flushing"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	case Errored:
		return "errored"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var ErrInvalidTransition = errors.New("invalid state transition")

// Errored 只能经由 Closing 走到 Closed (或在 close 本身失败时直接落到 Closed)
var transitions = map[State][]State{
	Unopened: {Opening, Closing, Errored},
	Opening:  {Open, Closing, Errored},
	Open:     {Flushing, Closing, Errored},
	Flushing: {Open, Closing, Errored},
	Closing:  {Closed, Errored},
	Errored:  {Closing, Closed},
	Closed:   {},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Coordinator 不持有适配器自身的锁。
// 约定：适配器先拿自己的锁，再调用 Coordinator；Coordinator 从不回调适配器。
type Coordinator struct {
	mu           sync.Mutex
	state        State
	err          error
	closeStarted bool
	ended        bool

	emitter *event.Emitter
	log     *slog.Logger
}

func New(log *slog.Logger, hooks ...event.Hooks) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		emitter: event.NewEmitter(hooks...),
		log:     log,
	}
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Transition 做合法性校验后切换状态
func (c *Coordinator) Transition(to State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transitionLocked(to)
}

func (c *Coordinator) transitionLocked(to State) error {
	if c.state == to {
		return nil
	}
	if !canTransition(c.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.state, to)
	}
	c.log.Debug("stream state", "from", c.state.String(), "to", to.String())
	c.state = to
	return nil
}

// Closing 报告 close 是否已经开始 (包括已完成)
func (c *Coordinator) Closing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeStarted
}

func (c *Coordinator) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Fail 记录第一个错误并发出 error 事件。
// close 已经开始之后的失败被忽略 (返回 false)，迟到的完成回调不再上报。
func (c *Coordinator) Fail(err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil || c.closeStarted {
		c.log.Debug("stream error ignored", "err", err)
		return false
	}
	c.err = err
	_ = c.transitionLocked(Errored)
	c.emitter.Emit(event.Event{Kind: event.Error, Err: err})
	return true
}

// BeginClose 是 close 的去重点：只有第一次调用返回 true
func (c *Coordinator) BeginClose() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeStarted {
		return false
	}
	c.closeStarted = true
	if err := c.transitionLocked(Closing); err != nil {
		c.log.Warn("begin close", "err", err)
	}
	return true
}

// Finish 完成关闭并发出 close 事件。
// closeErr 只在之前没有错误时上报，并保证排在 close 之前。
func (c *Coordinator) Finish(file *types.FileInfo, closeErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Closed {
		return
	}
	if closeErr != nil {
		if c.err == nil {
			c.err = closeErr
			c.state = Errored
			c.emitter.Emit(event.Event{Kind: event.Error, Err: closeErr})
		} else {
			c.log.Warn("close after error failed", "err", closeErr)
		}
	}
	_ = c.transitionLocked(Closed)
	c.emitter.Emit(event.Event{Kind: event.Close, File: file})
}

// End 发出 end 事件，至多一次；出错或关闭之后不再发出
func (c *Coordinator) End() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ended || c.err != nil || c.closeStarted {
		return false
	}
	c.ended = true
	return c.emitter.Emit(event.Event{Kind: event.End})
}

// Emit 发出非终结事件 (open/data/progress/drain)
func (c *Coordinator) Emit(ev event.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ev.Kind == event.Data && c.ended {
		return false
	}
	return c.emitter.Emit(ev)
}

// Deliver 发出 data 事件并等待钩子处理完，调用方不能持有适配器的锁。
// 检查和入队在同一把锁内完成，BeginClose 之后不会再有 data 入队。
func (c *Coordinator) Deliver(p []byte) bool {
	c.mu.Lock()
	if c.ended || c.closeStarted {
		c.mu.Unlock()
		return false
	}
	ack, ok := c.emitter.Post(event.Event{Kind: event.Data, Data: p})
	c.mu.Unlock()
	if !ok {
		return false
	}
	<-ack
	return true
}

func (c *Coordinator) On(h event.Hooks)      { c.emitter.On(h) }
func (c *Coordinator) HasDataHook() bool     { return c.emitter.HasData() }
func (c *Coordinator) Done() <-chan struct{} { return c.emitter.Done() }
