package lorahal

import (
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
)

// Mode is an operating mode requested by the engine.
type Mode int

const (
	ModeReset Mode = iota
	ModeSleep
	ModeStandby
	ModeRx
	ModeTxBoost
	ModeTxRFO
)

func (m Mode) String() string {
	switch m {
	case ModeReset:
		return "reset"
	case ModeSleep:
		return "sleep"
	case ModeStandby:
		return "standby"
	case ModeRx:
		return "rx"
	case ModeTxBoost:
		return "tx-boost"
	case ModeTxRFO:
		return "tx-rfo"
	}
	return "unknown"
}

// ModeController applies mode requests to the board pins. Only reset has
// mandated timing; the other modes steer the optional RF switch lines and are
// no-ops on boards without them.
type ModeController struct {
	reset OutPin
	rxEn  OutPin
	txEn  OutPin
	clock Clock
	log   logrus.FieldLogger

	current Mode
	known   bool
}

// NewModeController takes the reset line and optional RXEN/TXEN switch lines
// (nil when the board has no RF switch).
func NewModeController(reset, rxEn, txEn OutPin, clock Clock, log logrus.FieldLogger) *ModeController {
	if clock == nil {
		clock = SystemClock
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ModeController{reset: reset, rxEn: rxEn, txEn: txEn, clock: clock, log: log}
}

// SetMode never fails observably; pin faults are logged.
func (c *ModeController) SetMode(m Mode) {
	var err error
	switch m {
	case ModeReset:
		err = c.pulseReset()
	case ModeSleep, ModeStandby:
		err = c.rfSwitch(gpio.Low, gpio.Low)
	case ModeRx:
		err = c.rfSwitch(gpio.High, gpio.Low)
	case ModeTxBoost, ModeTxRFO:
		err = c.rfSwitch(gpio.Low, gpio.High)
	default:
		c.log.WithField("mode", int(m)).Warn("ignoring unknown mode")
		return
	}
	if err != nil {
		c.log.WithError(err).WithField("mode", m).Error("set mode failed")
	}
	if m == ModeReset {
		c.known = err == nil
	}
	c.current = m
}

// Current reports the last applied mode. It is false until the first reset,
// since the chip state after power-up is unknown.
func (c *ModeController) Current() (Mode, bool) {
	return c.current, c.known
}

func (c *ModeController) pulseReset() error {
	c.log.Info("chip reset")
	if err := c.rfSwitch(gpio.Low, gpio.Low); err != nil {
		c.log.WithError(err).Warn("rf switch off before reset")
	}
	if err := c.reset.Out(gpio.Low); err != nil {
		return err
	}
	c.clock.Sleep(ResetHold)
	err := c.reset.Out(gpio.High)
	c.clock.Sleep(ResetSettle)
	return err
}

func (c *ModeController) rfSwitch(rx, tx gpio.Level) error {
	// Open the active path last so both are never driven at once.
	if c.txEn != nil && !tx {
		if err := c.txEn.Out(tx); err != nil {
			return err
		}
	}
	if c.rxEn != nil {
		if err := c.rxEn.Out(rx); err != nil {
			return err
		}
	}
	if c.txEn != nil && tx {
		return c.txEn.Out(tx)
	}
	return nil
}
