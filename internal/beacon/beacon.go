// Package beacon is a small point-to-point LoRa engine for the HAL. It
// periodically transmits the loop's uplink framed with the device EUI and a
// frame counter, optionally listens for replies between uplinks, and honours
// a duty-cycle off time. It is not LoRaWAN: "join" brings the modem up and
// the session is the frame counter.
package beacon

import (
	"encoding/binary"

	"github.com/NV4RE/lorahal"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Frequency       uint64 `json:"frequency"`
	Bandwidth       uint64 `json:"bandwidth"`
	SpreadingFactor uint8  `json:"spreadingFactor"`
	CodingRate      uint8  `json:"codingRate"`
	PreambleLength  uint16 `json:"preambleLength"`
	SyncWord        byte   `json:"syncWord"`
	TxPower         uint8  `json:"txPower"`
	CRC             bool   `json:"crc"`

	// IntervalMs is the minimum time between uplink starts, and the retry
	// delay after a failed join.
	IntervalMs uint32 `json:"intervalMs"`
	// TxTimeoutMs gives up on a transmission without TxDone. Zero waits for
	// the interrupt forever.
	TxTimeoutMs uint32 `json:"txTimeoutMs"`
	// RxWindowMs keeps the receiver on after each uplink. Zero disables it.
	RxWindowMs uint32 `json:"rxWindowMs"`
	// DutyCycle is the inverse duty-cycle limit: 100 allows 1% airtime.
	DutyCycle uint32 `json:"dutyCycle"`
	// MaxJoinAttempts stops retrying after that many failed joins. Zero
	// retries forever.
	MaxJoinAttempts int `json:"maxJoinAttempts"`
}

func DefaultConfig() Config {
	return Config{
		Frequency:       868.1e6,
		Bandwidth:       125e3,
		SpreadingFactor: 7,
		CodingRate:      5,
		PreambleLength:  8,
		SyncWord:        0x12,
		TxPower:         17,
		CRC:             true,
		IntervalMs:      60000,
		TxTimeoutMs:     3000,
		DutyCycle:       100,
		MaxJoinAttempts: 10,
	}
}

// Frame layout: DevEUI (8) | counter (4, big endian) | port (1) | payload.
const (
	headerLen = 13
	MaxData   = lorahal.MaxPktLength - headerLen
)

type state int

const (
	stateIdle state = iota
	stateTx
	stateRx
)

// Engine implements lorahal.Engine. Like the loop that drives it, it is
// single threaded.
type Engine struct {
	radio   lorahal.Radio
	regs    *lorahal.Registers
	cfg     Config
	cred    lorahal.Credentials
	handler lorahal.EventHandler
	log     logrus.FieldLogger

	state     state
	joined    bool
	exhausted bool
	attempts  int
	devNonce  uint32
	joinNonce uint32
	counter   uint32
	txStart   uint32
	nextTx    uint32
	deadline  uint32
	irq       [2]bool

	frame   [lorahal.MaxPktLength]byte
	rx      [lorahal.MaxPktLength]byte
	session [4]byte
}

// New restores the frame counter from cred.Session (4 bytes, big endian)
// and the nonces from cred. The first Join is due immediately.
func New(radio lorahal.Radio, cfg Config, cred lorahal.Credentials, handler lorahal.EventHandler, log logrus.FieldLogger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	e := &Engine{
		radio:     radio,
		regs:      lorahal.NewRegisters(radio),
		cfg:       cfg,
		cred:      cred,
		handler:   handler,
		log:       log,
		devNonce:  cred.DevNonce,
		joinNonce: cred.JoinNonce,
		nextTx:    radio.Ticks(),
	}
	if len(cred.Session) == len(e.session) {
		e.counter = binary.BigEndian.Uint32(cred.Session)
	}
	return e
}

func (e *Engine) Ready() bool {
	return !e.exhausted && e.state != stateTx && reached(e.radio.Ticks(), e.nextTx)
}

func (e *Engine) Joined() bool { return e.joined }

// Join configures the modem. Failures are retried after IntervalMs until
// MaxJoinAttempts is reached.
func (e *Engine) Join() error {
	if e.exhausted {
		return ErrJoinsExhausted
	}
	if e.state == stateTx {
		return ErrBusy
	}
	e.attempts++
	e.devNonce++
	e.emit(lorahal.DevNonceUpdatedEvent{NextDevNonce: e.devNonce})

	if err := e.configure(); err != nil {
		e.log.WithError(err).WithField("attempt", e.attempts).Warn("modem configuration failed")
		e.emit(lorahal.OpErrorEvent{Err: err})
		if e.cfg.MaxJoinAttempts > 0 && e.attempts >= e.cfg.MaxJoinAttempts {
			e.exhausted = true
			e.emit(lorahal.JoinExhaustedEvent{})
		}
		e.nextTx = e.radio.Ticks() + e.cfg.IntervalMs
		return err
	}

	e.attempts = 0
	e.joined = true
	e.joinNonce++
	e.log.WithField("joinNonce", e.joinNonce).Info("modem ready")
	e.emit(lorahal.JoinCompleteEvent{
		JoinNonce: e.joinNonce,
		DevAddr:   binary.BigEndian.Uint32(e.cred.DevEUI[4:]),
	})
	if v, err := e.entropy(); err == nil {
		e.emit(lorahal.EntropyEvent{Value: v})
	} else {
		e.log.WithError(err).Debug("entropy")
	}
	e.nextTx = e.radio.Ticks()
	return nil
}

func (e *Engine) configure() error {
	e.radio.SetMode(lorahal.ModeSleep)

	err := e.checkVersion()
	if err != nil {
		return err
	}

	// LoRa mode can only be entered from sleep.
	err = e.setOpMode(lorahal.OpModeSleep)
	if err != nil {
		return err
	}

	err = e.setFrequency(e.cfg.Frequency)
	if err != nil {
		return err
	}

	err = e.setSpreadingFactor(e.cfg.SpreadingFactor)
	if err != nil {
		return err
	}

	err = e.setSignalBandwidth(e.cfg.Bandwidth)
	if err != nil {
		return err
	}

	err = e.setCodingRate(e.cfg.CodingRate)
	if err != nil {
		return err
	}

	err = e.setPreambleLength(e.cfg.PreambleLength)
	if err != nil {
		return err
	}

	err = e.setCrc(e.cfg.CRC)
	if err != nil {
		return err
	}

	err = e.regs.WriteRegister(lorahal.RegSyncWord, e.cfg.SyncWord)
	if err != nil {
		return err
	}

	err = e.regs.WriteRegister(lorahal.RegFifoTxBaseAddr, 0)
	if err != nil {
		return err
	}
	err = e.regs.WriteRegister(lorahal.RegFifoRxBaseAddr, 0)
	if err != nil {
		return err
	}

	err = e.setLnaBoost(true)
	if err != nil {
		return err
	}

	// AGC on.
	err = e.regs.WriteRegister(lorahal.RegModemConfig3, 0x04)
	if err != nil {
		return err
	}

	err = e.setTxPower(e.cfg.TxPower)
	if err != nil {
		return err
	}

	err = e.setOpMode(lorahal.OpModeStandby)
	if err != nil {
		return err
	}
	e.radio.SetMode(lorahal.ModeStandby)
	return nil
}

// Send starts a transmission. Completion is reported by DataCompleteEvent or
// DataTimeoutEvent from a later Process.
func (e *Engine) Send(port uint8, data []byte) error {
	if !e.joined {
		return ErrNotJoined
	}
	if e.state == stateTx {
		return ErrBusy
	}
	if len(data) > MaxData {
		e.emit(lorahal.OpErrorEvent{Err: ErrPacketSize})
		return ErrPacketSize
	}

	n := headerLen + len(data)
	copy(e.frame[0:8], e.cred.DevEUI[:])
	binary.BigEndian.PutUint32(e.frame[8:12], e.counter)
	e.frame[12] = port
	copy(e.frame[headerLen:], data)

	now := e.radio.Ticks()
	if err := e.transmit(e.frame[:n]); err != nil {
		e.emit(lorahal.OpErrorEvent{Err: err})
		e.idle()
		e.nextTx = now + e.cfg.IntervalMs
		return err
	}
	e.state = stateTx
	e.txStart = now
	e.deadline = now + e.cfg.TxTimeoutMs
	return nil
}

func (e *Engine) transmit(pkt []byte) error {
	// Standby is required to write to the FIFO.
	err := e.setOpMode(lorahal.OpModeStandby)
	if err != nil {
		return err
	}

	_, err = e.clearIrqFlags()
	if err != nil {
		return err
	}

	err = e.regs.WriteRegister(lorahal.RegFifoAddrPtr, 0)
	if err != nil {
		return err
	}

	err = e.regs.WriteRegister(lorahal.RegPayloadLength, uint8(len(pkt)))
	if err != nil {
		return err
	}

	err = e.regs.WriteBurst(lorahal.RegFifo, pkt)
	if err != nil {
		return err
	}

	err = e.regs.WriteRegister(lorahal.RegDioMapping1, lorahal.DioMappingTxDone)
	if err != nil {
		return err
	}

	e.radio.SetMode(lorahal.ModeTxBoost)
	return e.setOpMode(lorahal.OpModeTx)
}

// OnRadioInterrupt only records the line; Process does the bus work.
func (e *Engine) OnRadioInterrupt(line int) {
	if line >= 0 && line < len(e.irq) {
		e.irq[line] = true
	}
}

func (e *Engine) Process() {
	now := e.radio.Ticks()
	dio0 := e.irq[lorahal.LineDIO0]
	e.irq = [2]bool{}

	switch e.state {
	case stateTx:
		if dio0 {
			e.finishTx(now)
		} else if e.cfg.TxTimeoutMs > 0 && reached(now, e.deadline) {
			e.log.Warn("tx timeout")
			e.idle()
			e.nextTx = now + e.cfg.IntervalMs
			e.emit(lorahal.DataTimeoutEvent{})
		}
	case stateRx:
		if dio0 {
			e.receive()
		}
		if e.state == stateRx && reached(now, e.deadline) {
			e.sleep()
		}
	}
}

func (e *Engine) finishTx(now uint32) {
	flags, err := e.clearIrqFlags()
	if err != nil {
		e.emit(lorahal.OpErrorEvent{Err: err})
		e.idle()
		e.nextTx = now + e.cfg.IntervalMs
		return
	}
	if flags&lorahal.IrqTxDoneMask == 0 {
		e.log.WithField("flags", flags).Debug("dio0 without tx done")
		return
	}

	e.counter++
	binary.BigEndian.PutUint32(e.session[:], e.counter)
	e.emit(lorahal.SessionUpdatedEvent{Session: e.session[:]})

	e.nextTx = e.txStart + e.cfg.IntervalMs
	if e.cfg.DutyCycle > 1 {
		off := now + (now-e.txStart)*(e.cfg.DutyCycle-1)
		if int32(off-e.nextTx) > 0 {
			e.nextTx = off
		}
	}

	if e.cfg.RxWindowMs > 0 {
		e.listen(now)
	} else {
		e.sleep()
	}
	e.emit(lorahal.DataCompleteEvent{})
}

func (e *Engine) listen(now uint32) {
	err := e.regs.WriteRegister(lorahal.RegDioMapping1, lorahal.DioMappingRxDone)
	if err == nil {
		e.radio.SetMode(lorahal.ModeRx)
		err = e.setOpMode(lorahal.OpModeRxContinuous)
	}
	if err != nil {
		e.emit(lorahal.OpErrorEvent{Err: err})
		e.idle()
		return
	}
	e.state = stateRx
	e.deadline = now + e.cfg.RxWindowMs
}

func (e *Engine) receive() {
	flags, err := e.clearIrqFlags()
	if err != nil {
		e.emit(lorahal.OpErrorEvent{Err: err})
		return
	}
	if flags&lorahal.IrqRxDoneMask == 0 {
		return
	}
	if flags&lorahal.IrqPayloadCrcErrorMask != 0 {
		e.emit(lorahal.OpErrorEvent{Err: ErrCrcNotMatched})
		return
	}

	ev, err := e.readMessage()
	if err != nil {
		e.emit(lorahal.OpErrorEvent{Err: err})
		return
	}
	e.emit(ev)
}

func (e *Engine) readMessage() (lorahal.RxEvent, error) {
	var ev lorahal.RxEvent

	n, err := e.regs.ReadRegister(lorahal.RegRxNbBytes)
	if err != nil {
		return ev, err
	}
	addr, err := e.regs.ReadRegister(lorahal.RegFifoRxCurrentAddr)
	if err != nil {
		return ev, err
	}
	err = e.regs.WriteRegister(lorahal.RegFifoAddrPtr, addr)
	if err != nil {
		return ev, err
	}
	buf := e.rx[:n]
	err = e.regs.ReadBurst(lorahal.RegFifo, buf)
	if err != nil {
		return ev, err
	}

	ev.RSSI, err = e.rssi()
	if err != nil {
		return ev, err
	}
	ev.SNR, err = e.snr()
	if err != nil {
		return ev, err
	}

	if len(buf) >= headerLen {
		ev.Counter = binary.BigEndian.Uint32(buf[8:12])
		ev.Port = buf[12]
		ev.Data = buf[headerLen:]
	} else {
		ev.Data = buf
	}
	return ev, nil
}

// idle leaves the modem in standby after an aborted operation.
func (e *Engine) idle() {
	if err := e.setOpMode(lorahal.OpModeStandby); err != nil {
		e.log.WithError(err).Debug("standby")
	}
	e.radio.SetMode(lorahal.ModeStandby)
	e.state = stateIdle
}

func (e *Engine) sleep() {
	if err := e.setOpMode(lorahal.OpModeSleep); err != nil {
		e.log.WithError(err).Debug("sleep")
	}
	e.radio.SetMode(lorahal.ModeSleep)
	e.state = stateIdle
}

func (e *Engine) TicksUntilNextEvent() uint32 {
	if e.exhausted {
		return lorahal.TicksForever
	}
	now := e.radio.Ticks()
	switch e.state {
	case stateTx:
		if e.cfg.TxTimeoutMs == 0 {
			return lorahal.TicksForever
		}
		return until(now, e.deadline)
	case stateRx:
		return min(until(now, e.deadline), until(now, e.nextTx))
	}
	return until(now, e.nextTx)
}

func (e *Engine) emit(ev lorahal.Event) {
	if e.handler != nil {
		e.handler(ev)
	}
}

// reached reports whether tick t is at or before now, across counter wrap.
func reached(now, t uint32) bool {
	return int32(now-t) >= 0
}

func until(now, t uint32) uint32 {
	if reached(now, t) {
		return 0
	}
	return t - now
}
