// Package event 负责把流事件按入队顺序投递给钩子。
//
// 每个 Emitter 有且只有一个派发 goroutine；钩子永远不会在持有流内部锁的情况下被调用，
// 所以钩子里可以安全地回调流 (Pause/Destroy 等)。
package event

import (
	"sync"

	"gridstream/pkg/types"
)

type Kind int

const (
	Open Kind = iota
	Data
	Progress
	Drain
	End
	Close
	Error
)

func (k Kind) String() string {
	switch k {
	case Open:
		return "open"
	case Data:
		return "data"
	case Progress:
		return "progress"
	case Drain:
		return "drain"
	case End:
		return "end"
	case Close:
		return "close"
	case Error:
		return "error"
	}
	return "unknown"
}

type Event struct {
	Kind     Kind
	Data     []byte
	Position int64
	File     *types.FileInfo
	Err      error
}

// Hooks 是一组事件回调，未设置的字段被忽略
type Hooks struct {
	OnOpen     func()
	OnData     func(p []byte)
	OnProgress func(position int64)
	OnDrain    func()
	OnEnd      func()
	OnClose    func(file *types.FileInfo)
	OnError    func(err error)
}

func (h Hooks) dispatch(ev Event) {
	switch ev.Kind {
	case Open:
		if h.OnOpen != nil {
			h.OnOpen()
		}
	case Data:
		if h.OnData != nil {
			h.OnData(ev.Data)
		}
	case Progress:
		if h.OnProgress != nil {
			h.OnProgress(ev.Position)
		}
	case Drain:
		if h.OnDrain != nil {
			h.OnDrain()
		}
	case End:
		if h.OnEnd != nil {
			h.OnEnd()
		}
	case Close:
		if h.OnClose != nil {
			h.OnClose(ev.File)
		}
	case Error:
		if h.OnError != nil {
			h.OnError(ev.Err)
		}
	}
}

type pending struct {
	ev  Event
	ack chan struct{}
}

// Emitter 是一个有序事件队列 + 单一派发 goroutine。
// Close 事件是终结事件：它入队之后的事件一律被拒绝，派发完成后 Done() 关闭。
type Emitter struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []pending
	hooks  []Hooks
	sealed bool
	done   chan struct{}
}

func NewEmitter(hooks ...Hooks) *Emitter {
	e := &Emitter{
		hooks: append([]Hooks(nil), hooks...),
		done:  make(chan struct{}),
	}
	e.cond = sync.NewCond(&e.mu)
	go e.loop()
	return e
}

// On 追加一组钩子。已经派发过的事件不会重放。
func (e *Emitter) On(h Hooks) {
	e.mu.Lock()
	e.hooks = append(e.hooks, h)
	e.mu.Unlock()
}

// HasData 报告是否有钩子在消费 data 事件
func (e *Emitter) HasData() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, h := range e.hooks {
		if h.OnData != nil {
			return true
		}
	}
	return false
}

// Emit 非阻塞入队。终结之后返回 false。
func (e *Emitter) Emit(ev Event) bool {
	return e.enqueue(ev, nil)
}

// Deliver 入队并等待该事件被派发完毕 (所有钩子返回)。
// 用于 data 事件的背压；不能在钩子内部调用。
func (e *Emitter) Deliver(ev Event) bool {
	ack, ok := e.Post(ev)
	if !ok {
		return false
	}
	<-ack
	return true
}

// Post 入队并返回一个在该事件派发完毕后关闭的通道
func (e *Emitter) Post(ev Event) (<-chan struct{}, bool) {
	ack := make(chan struct{})
	if !e.enqueue(ev, ack) {
		return nil, false
	}
	return ack, true
}

func (e *Emitter) enqueue(ev Event, ack chan struct{}) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sealed {
		return false
	}
	if ev.Kind == Close {
		e.sealed = true
	}
	e.queue = append(e.queue, pending{ev: ev, ack: ack})
	e.cond.Signal()
	return true
}

// Done 在 close 事件派发完成后关闭
func (e *Emitter) Done() <-chan struct{} { return e.done }

func (e *Emitter) loop() {
	for {
		e.mu.Lock()
		for len(e.queue) == 0 {
			e.cond.Wait()
		}
		p := e.queue[0]
		e.queue[0] = pending{}
		e.queue = e.queue[1:]
		hooks := e.hooks
		e.mu.Unlock()

		for _, h := range hooks {
			h.dispatch(p.ev)
		}
		if p.ack != nil {
			close(p.ack)
		}
		if p.ev.Kind == Close {
			close(e.done)
			return
		}
	}
}
