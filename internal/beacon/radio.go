package beacon

import (
	"github.com/NV4RE/lorahal"
	"github.com/pkg/errors"
)

var (
	ErrNotDetected    = errors.New("sx127x not detected")
	ErrNotJoined      = errors.New("not joined")
	ErrBusy           = errors.New("transmission in progress")
	ErrPacketSize     = errors.New("packet too large")
	ErrCrcNotMatched  = errors.New("crc not matched")
	ErrJoinsExhausted = errors.New("join attempts exhausted")
)

// Modem register helpers. All of them assume the chip is in LoRa mode and
// go through the HAL's register framing.

func (e *Engine) setOpMode(m lorahal.OpMode) error {
	return e.regs.WriteRegister(lorahal.RegOpMode, byte(lorahal.OpModeLongRange|m))
}

func (e *Engine) checkVersion() error {
	v, err := e.regs.ReadRegister(lorahal.RegVersion)
	if err != nil {
		return err
	}
	if v != lorahal.ExpectedVersion {
		return errors.Wrapf(ErrNotDetected, "expect 0x%02x found 0x%02x", lorahal.ExpectedVersion, v)
	}
	return nil
}

func (e *Engine) setFrequency(frequency uint64) error {
	frf := (frequency << 19) / 32000000

	err := e.regs.WriteRegister(lorahal.RegFrfMsb, byte(frf>>16))
	if err != nil {
		return err
	}
	err = e.regs.WriteRegister(lorahal.RegFrfMid, byte(frf>>8))
	if err != nil {
		return err
	}
	return e.regs.WriteRegister(lorahal.RegFrfLsb, byte(frf>>0))
}

func (e *Engine) setLnaBoost(boost bool) error {
	lna, err := e.regs.ReadRegister(lorahal.RegLna)
	if err != nil {
		return err
	}

	if boost {
		return e.regs.WriteRegister(lorahal.RegLna, lna|0x03)
	}
	return e.regs.WriteRegister(lorahal.RegLna, lna&0xfc)
}

func (e *Engine) setSpreadingFactor(sf uint8) error {
	if sf < 6 {
		sf = 6
	} else if sf > 12 {
		sf = 12
	}

	var detectionOptimize byte = 0xc3
	var detectionThreshold byte = 0x0a
	if sf == 6 {
		detectionOptimize = 0xc5
		detectionThreshold = 0x0c
	}

	err := e.regs.WriteRegister(lorahal.RegDetectionOptimize, detectionOptimize)
	if err != nil {
		return err
	}

	err = e.regs.WriteRegister(lorahal.RegDetectionThreshold, detectionThreshold)
	if err != nil {
		return err
	}

	mc, err := e.regs.ReadRegister(lorahal.RegModemConfig2)
	if err != nil {
		return err
	}

	return e.regs.WriteRegister(lorahal.RegModemConfig2, (mc&0x0f)|(sf<<4))
}

// bwBins are the upper edges of the selectable LoRa bandwidths in Hz.
var bwBins = [...]uint64{7.8e3, 10.4e3, 15.6e3, 20.8e3, 31.25e3, 41.7e3, 62.5e3, 125e3, 250e3}

func (e *Engine) setSignalBandwidth(bandwidth uint64) error {
	bw := byte(len(bwBins))
	for i, edge := range bwBins {
		if bandwidth <= edge {
			bw = byte(i)
			break
		}
	}

	mc, err := e.regs.ReadRegister(lorahal.RegModemConfig1)
	if err != nil {
		return err
	}

	return e.regs.WriteRegister(lorahal.RegModemConfig1, (mc&0x0f)|(bw<<4))
}

// setCodingRate takes the denominator of the 4/x coding rate, 5 to 8.
func (e *Engine) setCodingRate(denominator uint8) error {
	if denominator < 5 {
		denominator = 5
	} else if denominator > 8 {
		denominator = 8
	}

	mc, err := e.regs.ReadRegister(lorahal.RegModemConfig1)
	if err != nil {
		return err
	}
	cr := denominator - 4

	// Bit 0 clear selects the explicit header.
	return e.regs.WriteRegister(lorahal.RegModemConfig1, (mc&0xf0)|(cr<<1))
}

func (e *Engine) setPreambleLength(length uint16) error {
	err := e.regs.WriteRegister(lorahal.RegPreambleMsb, byte(length>>8))
	if err != nil {
		return err
	}
	return e.regs.WriteRegister(lorahal.RegPreambleLsb, byte(length>>0))
}

func (e *Engine) setCrc(crc bool) error {
	mc, err := e.regs.ReadRegister(lorahal.RegModemConfig2)
	if err != nil {
		return err
	}
	if crc {
		return e.regs.WriteRegister(lorahal.RegModemConfig2, mc|0x04)
	}
	return e.regs.WriteRegister(lorahal.RegModemConfig2, mc&0xfb)
}

// setTxPower drives the PA_BOOST pin, 2 to 20 dBm. Above 17 dBm the high
// power DAC is enabled.
func (e *Engine) setTxPower(power uint8) error {
	if power < 2 {
		power = 2
	} else if power > 20 {
		power = 20
	}

	var dac byte = 0x84
	if power > 17 {
		dac = 0x87
		power -= 3
	}
	if err := e.regs.WriteRegister(lorahal.RegPaDac, dac); err != nil {
		return err
	}
	return e.regs.WriteRegister(lorahal.RegPaConfig, byte(lorahal.PABoost)|(power-2))
}

func (e *Engine) clearIrqFlags() (byte, error) {
	irq, err := e.regs.ReadRegister(lorahal.RegIrqFlags)
	if err != nil {
		return 0, err
	}

	return irq, e.regs.WriteRegister(lorahal.RegIrqFlags, irq)
}

// entropy samples the wideband RSSI LSB, which is noise while receiving.
func (e *Engine) entropy() (uint32, error) {
	if err := e.setOpMode(lorahal.OpModeRxContinuous); err != nil {
		return 0, err
	}
	var v uint32
	for i := 0; i < 32; i++ {
		b, err := e.regs.ReadRegister(lorahal.RegRssiWideBand)
		if err != nil {
			return 0, err
		}
		v = v<<1 | uint32(b&0x01)
	}
	return v, e.setOpMode(lorahal.OpModeStandby)
}

func (e *Engine) rssi() (int, error) {
	rssi, err := e.regs.ReadRegister(lorahal.RegPktRssiValue)
	if err != nil {
		return 0, err
	}

	if e.cfg.Frequency < rfMidBandThreshold {
		return int(rssi) - rssiOffsetLfPort, nil
	}
	return int(rssi) - rssiOffsetHfPort, nil
}

func (e *Engine) snr() (float64, error) {
	snr, err := e.regs.ReadRegister(lorahal.RegPktSnrValue)
	if err != nil {
		return 0, err
	}
	return float64(int8(snr)) * 0.25, nil
}

const (
	rfMidBandThreshold uint64 = 525e6
	rssiOffsetHfPort          = 157
	rssiOffsetLfPort          = 164
)
