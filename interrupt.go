package lorahal

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// EdgePin is the part of gpio.PinIn the bridge waits on. The pin must already
// be configured for rising edges.
type EdgePin interface {
	WaitForEdge(timeout time.Duration) bool
}

// edgePollTimeout bounds each WaitForEdge so watchers notice cancellation.
const edgePollTimeout = 100 * time.Millisecond

// Bridge turns rising edges on DIO0/DIO1 into engine interrupt callbacks.
//
// An edge only sets the line's pending flag and wakes the timebase; the
// scheduler loop calls Dispatch to hand pending lines to the engine from its
// own context, so the engine never runs concurrently with itself and never
// does bus I/O from an edge handler.
//
// Edges that arrive while their line is still pending merge into one
// callback. They are counted by Overruns but otherwise lost.
type Bridge struct {
	lines [numLines]EdgePin
	wake  func()
	log   logrus.FieldLogger

	pending  [numLines]atomic.Bool
	overruns atomic.Uint32
	reported uint32
	started  atomic.Bool
	wg       sync.WaitGroup
}

// NewBridge watches dio0 and dio1; either may be nil when the line is not
// wired or is fed by Signal from a platform interrupt handler. wake is
// called after every edge.
func NewBridge(dio0, dio1 EdgePin, wake func(), log logrus.FieldLogger) *Bridge {
	if wake == nil {
		wake = func() {}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Bridge{lines: [numLines]EdgePin{dio0, dio1}, wake: wake, log: log}
}

// Start launches one watcher per wired line. Lines are registered once for
// the life of the bridge; the watchers exit when ctx is done.
func (b *Bridge) Start(ctx context.Context) error {
	if !b.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	for i, p := range b.lines {
		if p == nil {
			continue
		}
		b.wg.Add(1)
		go b.watch(ctx, i, p)
	}
	return nil
}

// Wait blocks until all watchers started by Start have exited.
func (b *Bridge) Wait() {
	b.wg.Wait()
}

func (b *Bridge) watch(ctx context.Context, line int, p EdgePin) {
	defer b.wg.Done()
	for ctx.Err() == nil {
		// Returning from WaitForEdge consumes the edge, which is the
		// acknowledgement on Linux GPIO.
		if p.WaitForEdge(edgePollTimeout) {
			b.Signal(line)
		}
	}
}

// Signal records a rising edge on line. It only touches atomics and a
// non-blocking wake, so it is safe to call from an interrupt handler.
func (b *Bridge) Signal(line int) {
	if line < 0 || line >= numLines {
		return
	}
	if b.pending[line].Swap(true) {
		b.overruns.Add(1)
	}
	b.wake()
}

// Dispatch calls fn once for every pending line, clearing it first, and
// returns how many lines were delivered.
func (b *Bridge) Dispatch(fn func(line int)) int {
	if n := b.overruns.Load(); n != b.reported {
		b.log.WithField("overruns", n).Debug("radio interrupts merged")
		b.reported = n
	}
	n := 0
	for i := range b.pending {
		if b.pending[i].Swap(false) {
			b.log.WithField("line", i).Debug("radio interrupt")
			fn(i)
			n++
		}
	}
	return n
}

// Overruns is the number of edges merged into an already pending one.
func (b *Bridge) Overruns() uint32 {
	return b.overruns.Load()
}
