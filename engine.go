package lorahal

import (
	"encoding/hex"

	"github.com/pkg/errors"
)

// Radio is the chip contract an engine drives. *Chip implements it.
type Radio interface {
	Transport
	SetMode(m Mode)
	Ticks() uint32
	TicksPerSecond() uint32
	Sleep(ticks uint32)
}

// Engine is the protocol stack driven by the scheduler loop. All methods are
// called from the loop's goroutine only.
type Engine interface {
	// Ready reports whether the engine can accept a Join or Send now.
	Ready() bool
	Joined() bool
	// Join and Send are requests; their outcome arrives later as an Event.
	Join() error
	Send(port uint8, data []byte) error
	// Process advances internal timers and handles recorded interrupts.
	Process()
	// TicksUntilNextEvent returns 0 when work is due now and TicksForever
	// when nothing is scheduled.
	TicksUntilNextEvent() uint32
	OnRadioInterrupt(line int)
}

// Event is one of the notifications an engine emits while processing. The
// set is closed; receivers switch on the concrete type.
type Event interface {
	isEvent()
}

// EventHandler receives engine events synchronously from Engine.Process or
// the request that produced them. Slices in events are only valid during
// the call.
type EventHandler func(Event)

type (
	// EntropyEvent carries random bits gathered by the radio.
	EntropyEvent struct{ Value uint32 }

	RxEvent struct {
		Port    uint8
		Counter uint32
		Data    []byte
		RSSI    int
		SNR     float64
	}

	// SessionUpdatedEvent is an opportunity to persist the session blob.
	SessionUpdatedEvent struct{ Session []byte }

	JoinCompleteEvent struct {
		JoinNonce uint32
		NetID     uint32
		DevAddr   uint32
	}

	DevNonceUpdatedEvent struct{ NextDevNonce uint32 }

	ChannelReadyEvent  struct{}
	OpErrorEvent       struct{ Err error }
	OpCancelledEvent   struct{}
	DataCompleteEvent  struct{}
	DataTimeoutEvent   struct{}
	JoinExhaustedEvent struct{}

	LinkStatusEvent struct {
		Margin  int
		GwCount int
	}

	DeviceTimeEvent struct {
		Seconds   uint32
		Fractions uint8
	}
)

func (EntropyEvent) isEvent()         {}
func (RxEvent) isEvent()              {}
func (SessionUpdatedEvent) isEvent()  {}
func (JoinCompleteEvent) isEvent()    {}
func (DevNonceUpdatedEvent) isEvent() {}
func (ChannelReadyEvent) isEvent()    {}
func (OpErrorEvent) isEvent()         {}
func (OpCancelledEvent) isEvent()     {}
func (DataCompleteEvent) isEvent()    {}
func (DataTimeoutEvent) isEvent()     {}
func (JoinExhaustedEvent) isEvent()   {}
func (LinkStatusEvent) isEvent()      {}
func (DeviceTimeEvent) isEvent()      {}

// Credentials is the identity and state handed to an engine at start-up.
// Session, DevNonce and JoinNonce restore what an earlier run persisted.
type Credentials struct {
	AppKey    [16]byte
	DevEUI    [8]byte
	JoinEUI   [8]byte
	Session   []byte
	DevNonce  uint32
	JoinNonce uint32
}

// ParseCredentials decodes MSB-first hex strings into fixed size keys.
func ParseCredentials(appKey, devEUI, joinEUI string) (Credentials, error) {
	var c Credentials
	if err := decodeHex(c.AppKey[:], appKey); err != nil {
		return c, errors.Wrap(err, "app key")
	}
	if err := decodeHex(c.DevEUI[:], devEUI); err != nil {
		return c, errors.Wrap(err, "dev eui")
	}
	if err := decodeHex(c.JoinEUI[:], joinEUI); err != nil {
		return c, errors.Wrap(err, "join eui")
	}
	return c, nil
}

func decodeHex(dst []byte, s string) error {
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(b) != len(dst) {
		return errors.Wrapf(ErrBadCredential, "want %d bytes, got %d", len(dst), len(b))
	}
	copy(dst, b)
	return nil
}
