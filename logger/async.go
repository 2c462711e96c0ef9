package logger

import (
	"sync"
	"sync/atomic"

	"embracedb"
)

// Async decorates another embracedb.Logger with a buffered channel and a
// single worker goroutine, so log calls on the engine's write path never
// block on the sink. When the buffer is full the entry is dropped and
// counted rather than queued.
type Async struct {
	sink    embracedb.Logger
	entries chan entry
	dropped atomic.Uint64

	closeOnce sync.Once
	done      chan struct{}
}

type entry struct {
	level int
	msg   string
	args  []any
}

const (
	levelInfo = iota
	levelWarn
	levelError
)

// NewAsync wraps sink with a non-blocking buffer of the given capacity.
// Call Close to drain and stop the worker.
func NewAsync(sink embracedb.Logger, capacity int) *Async {
	if capacity <= 0 {
		capacity = 1024
	}
	a := &Async{
		sink:    sink,
		entries: make(chan entry, capacity),
		done:    make(chan struct{}),
	}
	go a.worker()
	return a
}

func (a *Async) worker() {
	defer close(a.done)
	for e := range a.entries {
		switch e.level {
		case levelError:
			a.sink.Error(e.msg, e.args...)
		case levelWarn:
			a.sink.Warn(e.msg, e.args...)
		default:
			a.sink.Info(e.msg, e.args...)
		}
	}
}

func (a *Async) enqueue(level int, msg string, args []any) {
	select {
	case a.entries <- entry{level: level, msg: msg, args: args}:
	default:
		a.dropped.Add(1)
	}
}

// Error enqueues an error-level message.
func (a *Async) Error(msg string, args ...any) {
	a.enqueue(levelError, msg, args)
}

// Warn enqueues a warn-level message.
func (a *Async) Warn(msg string, args ...any) {
	a.enqueue(levelWarn, msg, args)
}

// Info enqueues an info-level message.
func (a *Async) Info(msg string, args ...any) {
	a.enqueue(levelInfo, msg, args)
}

// Dropped reports how many entries were discarded because the buffer was
// full.
func (a *Async) Dropped() uint64 {
	return a.dropped.Load()
}

// Close drains buffered entries into the sink and stops the worker.
// The logger must not be used after Close.
func (a *Async) Close() {
	a.closeOnce.Do(func() {
		close(a.entries)
		<-a.done
	})
}
