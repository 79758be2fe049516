package lorahal

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
)

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

// fakeClock advances only when told to. With auto set, After fires at once
// and moves time forward by the requested duration.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	auto   bool
	afters []time.Duration
}

func newFakeClock(auto bool) *fakeClock {
	return &fakeClock{now: time.Unix(1000, 0), auto: auto}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.Advance(d)
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.afters = append(c.afters, d)
	ch := make(chan time.Time, 1)
	if c.auto {
		c.now = c.now.Add(d)
		ch <- c.now
	}
	return ch
}

func (c *fakeClock) Afters() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.afters...)
}

// fakeChip is an SX127x register file behind an SPI conn. It doubles as the
// NSS pin so the chip select and the bytes land in one transaction log.
type fakeChip struct {
	ops  []string
	regs [128]byte

	framed   bool
	haveAddr bool
	write    bool
	addr     byte

	failTx  error
	packets [][]spi.Packet
}

func newFakeChip() *fakeChip {
	f := &fakeChip{}
	f.regs[RegVersion] = ExpectedVersion
	return f
}

func (f *fakeChip) logf(format string, args ...interface{}) {
	f.ops = append(f.ops, fmt.Sprintf(format, args...))
}

func (f *fakeChip) Out(l gpio.Level) error {
	if l == gpio.Low {
		f.logf("cs-low")
		f.framed = true
		f.haveAddr = false
	} else {
		f.logf("cs-high")
		f.framed = false
	}
	return nil
}

func (f *fakeChip) Tx(w, r []byte) error {
	if f.failTx != nil {
		return f.failTx
	}
	f.logf("tx % x", w)
	n := len(w)
	if len(r) > n {
		n = len(r)
	}
	for i := 0; i < n; i++ {
		var in byte
		if i < len(w) {
			in = w[i]
		}
		out := f.shift(in)
		if i < len(r) {
			r[i] = out
		}
	}
	return nil
}

func (f *fakeChip) TxPackets(p []spi.Packet) error {
	if f.failTx != nil {
		return f.failTx
	}
	f.packets = append(f.packets, append([]spi.Packet(nil), p...))
	f.Out(gpio.Low)
	for _, pkt := range p {
		if err := f.Tx(pkt.W, pkt.R); err != nil {
			return err
		}
	}
	f.Out(gpio.High)
	return nil
}

func (f *fakeChip) shift(in byte) byte {
	if !f.haveAddr {
		f.haveAddr = true
		f.write = in&regWriteBit != 0
		f.addr = in & regAddrMask
		return 0
	}
	if f.write {
		f.regs[f.addr] = in
		f.advance()
		return 0
	}
	v := f.regs[f.addr]
	f.advance()
	return v
}

// advance mimics the address auto-increment; the FIFO register stays put.
func (f *fakeChip) advance() {
	if Register(f.addr) != RegFifo {
		f.addr = (f.addr + 1) & regAddrMask
	}
}

// fakePin records every level it is driven to, stamped with the fake clock.
type fakePin struct {
	clock  *fakeClock
	levels []gpio.Level
	at     []time.Time
	err    error
}

func (p *fakePin) Out(l gpio.Level) error {
	if p.err != nil {
		return p.err
	}
	p.levels = append(p.levels, l)
	if p.clock != nil {
		p.at = append(p.at, p.clock.Now())
	}
	return nil
}

func (p *fakePin) last() (gpio.Level, bool) {
	if len(p.levels) == 0 {
		return gpio.Low, false
	}
	return p.levels[len(p.levels)-1], true
}

// fakeEdge delivers one rising edge per value sent on edges.
type fakeEdge struct {
	edges chan struct{}
}

func newFakeEdge() *fakeEdge {
	return &fakeEdge{edges: make(chan struct{}, 16)}
}

func (e *fakeEdge) WaitForEdge(timeout time.Duration) bool {
	select {
	case <-e.edges:
		return true
	case <-time.After(timeout):
		return false
	}
}
