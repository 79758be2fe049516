package lorahal

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	ErrTransport       = errors.New("spi transport fault")
	ErrVersionMismatch = errors.New("version not matched")
	ErrAlreadyStarted  = errors.New("interrupt bridge already started")
	ErrPinNotFound     = errors.New("gpio pin not found")
	ErrBadCredential   = errors.New("bad credential length")
)

// Chip is the single attached transceiver. It owns the bus, the register
// framing, the mode controller and the timebase, and implements Radio.
type Chip struct {
	bus   *Bus
	regs  *Registers
	modes *ModeController
	time  *Timebase
	log   logrus.FieldLogger
}

func NewChip(bus *Bus, modes *ModeController, tb *Timebase, log logrus.FieldLogger) *Chip {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Chip{
		bus:   bus,
		regs:  NewRegisters(bus),
		modes: modes,
		time:  tb,
		log:   log,
	}
}

// Init resets the chip and checks its version register. On a mismatch the
// error is logged and returned; bring-up stops but nothing else is torn down.
func (c *Chip) Init() error {
	c.log.Info("chip init")
	c.SetMode(ModeReset)

	v, err := c.regs.ReadRegister(RegVersion)
	if err != nil {
		return errors.Wrap(err, "read version")
	}
	if v != ExpectedVersion {
		c.log.WithFields(logrus.Fields{
			"version":  fmt.Sprintf("0x%02x", v),
			"expected": fmt.Sprintf("0x%02x", ExpectedVersion),
		}).Error("unexpected SX127x version")
		return errors.Wrapf(ErrVersionMismatch, "expect 0x%02x found 0x%02x", ExpectedVersion, v)
	}
	c.log.WithField("version", fmt.Sprintf("0x%02x", v)).Info("SX127x detected")
	return nil
}

func (c *Chip) SetMode(m Mode) { c.modes.SetMode(m) }

func (c *Chip) Mode() (Mode, bool) { return c.modes.Current() }

func (c *Chip) Write(opcode, data []byte) error { return c.bus.Write(opcode, data) }

func (c *Chip) Read(opcode, data []byte) error { return c.bus.Read(opcode, data) }

func (c *Chip) Ticks() uint32 { return c.time.Ticks() }

func (c *Chip) TicksPerSecond() uint32 { return c.time.TicksPerSecond() }

func (c *Chip) Sleep(ticks uint32) { c.time.Sleep(ticks) }

// Wake ends a Sleep in progress.
func (c *Chip) Wake() { c.time.Wake() }

func (c *Chip) Timebase() *Timebase { return c.time }

// Board is a transceiver brought up on concrete hardware.
type Board struct {
	Chip   *Chip
	Bridge *Bridge
	closer io.Closer
}

func (b *Board) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}
