package lorahal

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Sleeper parks the loop until a deadline or an interrupt. *Timebase
// implements it.
type Sleeper interface {
	Sleep(ticks uint32)
}

// Uplink is the payload the loop hands to the engine whenever it is ready
// and joined.
type Uplink struct {
	Port uint8
	Data []byte
}

// Scheduler is the process control loop. It never blocks except in the
// sleep at the end of an iteration, and an interrupt ends that sleep early.
type Scheduler struct {
	engine Engine
	bridge *Bridge
	sleep  Sleeper
	uplink Uplink
	log    logrus.FieldLogger

	onInterrupt func(line int)
}

// NewScheduler builds a loop over engine. bridge may be nil when the engine
// receives interrupts some other way.
func NewScheduler(engine Engine, bridge *Bridge, sleep Sleeper, uplink Uplink, log logrus.FieldLogger) *Scheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{
		engine:      engine,
		bridge:      bridge,
		sleep:       sleep,
		uplink:      uplink,
		log:         log,
		onInterrupt: engine.OnRadioInterrupt,
	}
}

// Run repeats Step until ctx is done. Cancelling ctx does not interrupt a
// sleep in progress; pair it with Timebase.Wake.
func (s *Scheduler) Run(ctx context.Context) {
	for ctx.Err() == nil {
		s.Step()
	}
}

// Step runs one loop iteration.
func (s *Scheduler) Step() {
	if s.bridge != nil {
		s.bridge.Dispatch(s.onInterrupt)
	}

	if s.engine.Ready() {
		if s.engine.Joined() {
			if err := s.engine.Send(s.uplink.Port, s.uplink.Data); err != nil {
				s.log.WithError(err).Debug("send request")
			}
		} else {
			if err := s.engine.Join(); err != nil {
				s.log.WithError(err).Debug("join request")
			}
		}
	}

	s.engine.Process()

	if ticks := s.engine.TicksUntilNextEvent(); ticks > 0 && ticks != TicksForever {
		s.sleep.Sleep(ticks)
	}
}
