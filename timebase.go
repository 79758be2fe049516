package lorahal

import "time"

// Timebase counts milliseconds since it was created. The counter is 32 bits
// wide and wraps after about 49.7 days; callers compare ticks with wrap-safe
// arithmetic.
type Timebase struct {
	clock Clock
	start time.Time
	wake  chan struct{}
}

func NewTimebase(clock Clock) *Timebase {
	if clock == nil {
		clock = SystemClock
	}
	return &Timebase{
		clock: clock,
		start: clock.Now(),
		wake:  make(chan struct{}, 1),
	}
}

func (t *Timebase) Ticks() uint32 {
	return uint32(t.clock.Now().Sub(t.start) / time.Millisecond)
}

func (t *Timebase) TicksPerSecond() uint32 {
	return TicksPerSecond
}

// Sleep parks the caller for ticks or until Wake is called, whichever comes
// first. A Wake issued while nobody was sleeping cancels the next Sleep, so an
// interrupt that lands between the last check and the sleep is not missed.
// TicksForever returns immediately.
func (t *Timebase) Sleep(ticks uint32) {
	if ticks == 0 || ticks == TicksForever {
		return
	}
	select {
	case <-t.wake:
	case <-t.clock.After(time.Duration(ticks) * time.Millisecond):
	}
}

// Wake ends the current or next Sleep early. It never blocks.
func (t *Timebase) Wake() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}
