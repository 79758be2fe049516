package lorahal

import (
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
)

// Conn is the part of spi.Conn the bus needs.
type Conn interface {
	Tx(w, r []byte) error
	TxPackets(p []spi.Packet) error
}

// OutPin is the part of gpio.PinOut the HAL drives.
type OutPin interface {
	Out(l gpio.Level) error
}

// Transport frames opcode+payload exchanges with the transceiver.
type Transport interface {
	Write(opcode, data []byte) error
	Read(opcode, data []byte) error
}

// TransportError reports a transfer that failed or moved fewer bytes than
// requested. errors.Is(err, ErrTransport) holds for it.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return "spi " + e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// Bus issues chip-select bracketed exchanges. With a dedicated NSS pin the
// bus asserts it around the whole frame; without one the frame is issued as
// a single packet list and the controller keeps CS asserted between packets.
//
// Opcode and data must not overlap. Bus is not safe for concurrent use.
type Bus struct {
	conn Conn
	cs   OutPin
	log  logrus.FieldLogger
	pkts [2]spi.Packet
}

func NewBus(conn Conn, cs OutPin, log logrus.FieldLogger) *Bus {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Bus{conn: conn, cs: cs, log: log}
}

// Write shifts out opcode then data.
func (b *Bus) Write(opcode, data []byte) error {
	if b.cs == nil {
		return b.txPackets("write", opcode, data, false)
	}
	return b.bracket("write", func() error {
		if err := b.writeBurst(opcode); err != nil {
			return err
		}
		return b.writeBurst(data)
	})
}

// Read shifts out opcode then clocks len(data) bytes into data, driving
// FillerByte on the write side. data is undefined when Read fails.
func (b *Bus) Read(opcode, data []byte) error {
	if b.cs == nil {
		return b.txPackets("read", opcode, data, true)
	}
	return b.bracket("read", func() error {
		if err := b.writeBurst(opcode); err != nil {
			return err
		}
		return b.readBurst(data)
	})
}

func (b *Bus) bracket(op string, fn func() error) error {
	if err := b.cs.Out(gpio.Low); err != nil {
		return b.fault(op+" chip select", err)
	}
	err := fn()
	if rerr := b.cs.Out(gpio.High); rerr != nil && err == nil {
		return b.fault(op+" chip release", rerr)
	}
	if err != nil {
		return b.fault(op+" burst", err)
	}
	return nil
}

func (b *Bus) writeBurst(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	return b.conn.Tx(p, nil)
}

func (b *Bus) readBurst(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	fill(p)
	return b.conn.Tx(p, p)
}

func (b *Bus) txPackets(op string, opcode, data []byte, read bool) error {
	pkts := b.pkts[:0]
	if len(opcode) > 0 {
		pkts = append(pkts, spi.Packet{W: opcode, KeepCS: true})
	}
	if len(data) > 0 {
		p := spi.Packet{W: data}
		if read {
			fill(data)
			p.R = data
		}
		pkts = append(pkts, p)
	}
	if len(pkts) == 0 {
		return nil
	}
	pkts[len(pkts)-1].KeepCS = false
	err := b.conn.TxPackets(pkts)
	b.pkts = [2]spi.Packet{}
	if err != nil {
		return b.fault(op+" packets", err)
	}
	return nil
}

func (b *Bus) fault(op string, err error) error {
	b.log.WithError(err).WithField("op", op).Error("spi transfer failed")
	return &TransportError{Op: op, Err: err}
}

func fill(p []byte) {
	for i := range p {
		p[i] = FillerByte
	}
}
