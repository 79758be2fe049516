//go:build tinygo && rp2040

package lorahal

import (
	"machine"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
	"tinygo.org/x/drivers"
)

// RFM95W breakout wiring on a Raspberry Pi Pico, SPI0 on the default pins.
const (
	picoReset = machine.GPIO6
	picoNSS   = machine.GPIO7
	picoDIO0  = machine.GPIO8
	picoDIO1  = machine.GPIO9

	picoSPIHz = 15625 * 1000
)

type tinygoConn struct {
	bus drivers.SPI
}

func (c tinygoConn) Tx(w, r []byte) error {
	return c.bus.Tx(w, r)
}

// TxPackets is only reached without an NSS pin, which the Pico board always
// has; it is kept so the bus works unchanged over other wirings.
func (c tinygoConn) TxPackets(p []spi.Packet) error {
	for _, pkt := range p {
		if err := c.bus.Tx(pkt.W, pkt.R); err != nil {
			return err
		}
	}
	return nil
}

type tinygoPin machine.Pin

func (p tinygoPin) Out(l gpio.Level) error {
	machine.Pin(p).Set(bool(l))
	return nil
}

// OpenPico configures SPI0 in mode 0 and the board pins, and routes DIO0/DIO1
// rising edges into the bridge from the GPIO interrupt.
//
// The edge handler only sets the bridge's pending flag. It does not wake the
// timebase, because channel operations are not allowed in interrupt context,
// so Sleep on this board always runs to its deadline.
func OpenPico(log logrus.FieldLogger) (*Board, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	err := machine.SPI0.Configure(machine.SPIConfig{
		Frequency: picoSPIHz,
		SCK:       machine.SPI0_SCK_PIN,
		SDO:       machine.SPI0_SDO_PIN,
		SDI:       machine.SPI0_SDI_PIN,
		Mode:      0,
	})
	if err != nil {
		return nil, err
	}
	var bus drivers.SPI = machine.SPI0

	for _, p := range []machine.Pin{picoReset, picoNSS} {
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
		p.High()
	}

	tb := NewTimebase(SystemClock)
	bridge := NewBridge(nil, nil, nil, log)
	for line, p := range [numLines]machine.Pin{picoDIO0, picoDIO1} {
		line := line
		p.Configure(machine.PinConfig{Mode: machine.PinInputPulldown})
		err := p.SetInterrupt(machine.PinRising, func(machine.Pin) {
			bridge.Signal(line)
		})
		if err != nil {
			return nil, err
		}
	}

	chip := NewChip(
		NewBus(tinygoConn{bus: bus}, tinygoPin(picoNSS), log),
		NewModeController(tinygoPin(picoReset), nil, nil, SystemClock, log),
		tb,
		log,
	)
	return &Board{Chip: chip, Bridge: bridge}, nil
}
