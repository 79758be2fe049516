package lorahal

import "time"

type Register byte
type OpMode byte
type PAConfig byte

const (
	RegFifo               Register = 0x00
	RegOpMode             Register = 0x01
	RegFrfMsb             Register = 0x06
	RegFrfMid             Register = 0x07
	RegFrfLsb             Register = 0x08
	RegPaConfig           Register = 0x09
	RegOcp                Register = 0x0b
	RegLna                Register = 0x0c
	RegFifoAddrPtr        Register = 0x0d
	RegFifoTxBaseAddr     Register = 0x0e
	RegFifoRxBaseAddr     Register = 0x0f
	RegFifoRxCurrentAddr  Register = 0x10
	RegIrqFlags           Register = 0x12
	RegRxNbBytes          Register = 0x13
	RegPktSnrValue        Register = 0x19
	RegPktRssiValue       Register = 0x1a
	RegRssiValue          Register = 0x1b
	RegModemConfig1       Register = 0x1d
	RegModemConfig2       Register = 0x1e
	RegPreambleMsb        Register = 0x20
	RegPreambleLsb        Register = 0x21
	RegPayloadLength      Register = 0x22
	RegModemConfig3       Register = 0x26
	RegRssiWideBand       Register = 0x2c
	RegDetectionOptimize  Register = 0x31
	RegDetectionThreshold Register = 0x37
	RegSyncWord           Register = 0x39
	RegDioMapping1        Register = 0x40
	RegVersion            Register = 0x42
	RegPaDac              Register = 0x4d
)

// Register address bit 7 selects write (1) or read (0) access.
const (
	regWriteBit byte = 0x80
	regAddrMask byte = 0x7f
)

const (
	OpModeLongRange    OpMode = 0x80
	OpModeSleep        OpMode = 0x00
	OpModeStandby      OpMode = 0x01
	OpModeTx           OpMode = 0x03
	OpModeRxContinuous OpMode = 0x05
	OpModeRxSingle     OpMode = 0x06
)

const (
	PABoost PAConfig = 0x80
)

const (
	IrqRxTimeoutMask       byte = 0x80
	IrqRxDoneMask          byte = 0x40
	IrqPayloadCrcErrorMask byte = 0x20
	IrqTxDoneMask          byte = 0x08

	// DIO0 mapping in RegDioMapping1 bits 7-6.
	DioMappingRxDone byte = 0x00
	DioMappingTxDone byte = 0x40
)

const (
	// ExpectedVersion is the silicon revision reported by SX1276/77/78/79.
	ExpectedVersion byte = 0x12

	// FillerByte is shifted out while clocking in read data.
	FillerByte byte = 0x00

	MaxPktLength = 255
)

// Reset pulse timing. Both are datasheet minimums; shortening them leaves the
// chip in an undefined state.
const (
	ResetHold   = 10 * time.Millisecond
	ResetSettle = 10 * time.Millisecond
)

const (
	// TicksPerSecond is the timebase rate: one tick per millisecond.
	TicksPerSecond uint32 = 1000

	// TicksForever is the deadline meaning "nothing scheduled". Sleep returns
	// immediately for it and the loop relies on interrupts to make progress.
	TicksForever uint32 = 0xFFFFFFFF
)

// Interrupt line indexes forwarded verbatim to Engine.OnRadioInterrupt.
const (
	LineDIO0 = 0
	LineDIO1 = 1

	numLines = 2
)
