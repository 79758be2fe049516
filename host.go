//go:build !tinygo

package lorahal

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// BoardConfig names the SPI port and GPIO lines of a Linux board. Pin names
// are anything gpioreg.ByName accepts ("GPIO7", "7", ...). Empty optional
// pins are not used.
type BoardConfig struct {
	SPIDevice string `json:"spiDevice"`
	SPIHz     int64  `json:"spiHz"`

	Reset string `json:"reset"`
	// NSS is a GPIO driven as chip select. Empty leaves CS to the SPI
	// controller.
	NSS  string `json:"nss"`
	DIO0 string `json:"dio0"`
	DIO1 string `json:"dio1"`
	RxEn string `json:"rxEn"`
	TxEn string `json:"txEn"`
}

// Open initialises periph, connects to the SPI port in mode 0 with 8 bit
// words and claims the board pins. The chip is not reset; call Chip.Init.
func Open(cfg BoardConfig, log logrus.FieldLogger) (*Board, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "host init")
	}

	p, err := spireg.Open(cfg.SPIDevice)
	if err != nil {
		return nil, errors.Wrapf(err, "spireg open %q", cfg.SPIDevice)
	}
	board, err := openPins(cfg, p, log)
	if err != nil {
		p.Close()
		return nil, err
	}
	return board, nil
}

func openPins(cfg BoardConfig, p spi.PortCloser, log logrus.FieldLogger) (*Board, error) {
	c, err := p.Connect(physic.Frequency(cfg.SPIHz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		return nil, errors.Wrap(err, "spi connect")
	}

	reset, err := outPin("reset", cfg.Reset, gpio.High)
	if err != nil {
		return nil, err
	}
	nss, err := optionalOutPin("nss", cfg.NSS, gpio.High)
	if err != nil {
		return nil, err
	}
	rxEn, err := optionalOutPin("rxen", cfg.RxEn, gpio.Low)
	if err != nil {
		return nil, err
	}
	txEn, err := optionalOutPin("txen", cfg.TxEn, gpio.Low)
	if err != nil {
		return nil, err
	}
	dio0, err := edgePin("dio0", cfg.DIO0)
	if err != nil {
		return nil, err
	}
	dio1, err := edgePin("dio1", cfg.DIO1)
	if err != nil {
		return nil, err
	}

	tb := NewTimebase(SystemClock)
	chip := NewChip(
		NewBus(c, asOut(nss), log),
		NewModeController(reset, asOut(rxEn), asOut(txEn), SystemClock, log),
		tb,
		log,
	)
	log.WithFields(logrus.Fields{
		"spi":  c.String(),
		"dio0": cfg.DIO0,
		"dio1": cfg.DIO1,
	}).Info("board open")

	return &Board{
		Chip:   chip,
		Bridge: NewBridge(asEdge(dio0), asEdge(dio1), tb.Wake, log),
		closer: p,
	}, nil
}

func outPin(name, id string, initial gpio.Level) (gpio.PinIO, error) {
	p := gpioreg.ByName(id)
	if p == nil {
		return nil, errors.Wrapf(ErrPinNotFound, "%s pin %q", name, id)
	}
	if err := p.Out(initial); err != nil {
		return nil, errors.Wrapf(err, "%s pin out", name)
	}
	return p, nil
}

func optionalOutPin(name, id string, initial gpio.Level) (gpio.PinIO, error) {
	if id == "" {
		return nil, nil
	}
	return outPin(name, id, initial)
}

func edgePin(name, id string) (gpio.PinIO, error) {
	if id == "" {
		return nil, nil
	}
	p := gpioreg.ByName(id)
	if p == nil {
		return nil, errors.Wrapf(ErrPinNotFound, "%s pin %q", name, id)
	}
	if err := p.In(gpio.PullDown, gpio.RisingEdge); err != nil {
		return nil, errors.Wrapf(err, "%s pin in", name)
	}
	return p, nil
}

// asOut and asEdge keep a nil pin a nil interface.
func asOut(p gpio.PinIO) OutPin {
	if p == nil {
		return nil
	}
	return p
}

func asEdge(p gpio.PinIO) EdgePin {
	if p == nil {
		return nil
	}
	return p
}
