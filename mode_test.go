package lorahal

import (
	"errors"
	"testing"

	"periph.io/x/conn/v3/gpio"
)

func TestModeController_ResetPulse(t *testing.T) {
	prior := []Mode{ModeReset, ModeSleep, ModeStandby, ModeRx, ModeTxBoost, ModeTxRFO}

	for _, p := range prior {
		t.Run("from "+p.String(), func(t *testing.T) {
			clock := newFakeClock(false)
			reset := &fakePin{clock: clock}
			c := NewModeController(reset, nil, nil, clock, testLogger())
			c.SetMode(p)
			reset.levels, reset.at = nil, nil

			start := clock.Now()
			c.SetMode(ModeReset)
			end := clock.Now()

			if len(reset.levels) != 2 || reset.levels[0] != gpio.Low || reset.levels[1] != gpio.High {
				t.Fatalf("reset levels = %v, want [Low High]", reset.levels)
			}
			if hold := reset.at[1].Sub(reset.at[0]); hold < ResetHold {
				t.Errorf("low pulse = %v, want >= %v", hold, ResetHold)
			}
			if settle := end.Sub(reset.at[1]); settle < ResetSettle {
				t.Errorf("settle = %v, want >= %v", settle, ResetSettle)
			}
			if reset.at[0].Before(start) {
				t.Errorf("reset asserted before SetMode was called")
			}
			if m, ok := c.Current(); !ok || m != ModeReset {
				t.Errorf("Current() = %v, %v; want reset, true", m, ok)
			}
		})
	}
}

func TestModeController_UnknownUntilReset(t *testing.T) {
	clock := newFakeClock(false)
	c := NewModeController(&fakePin{}, nil, nil, clock, testLogger())

	if _, ok := c.Current(); ok {
		t.Fatal("Current() known before any reset")
	}
	c.SetMode(ModeStandby)
	if m, ok := c.Current(); ok || m != ModeStandby {
		t.Errorf("Current() = %v, %v; want standby, false", m, ok)
	}
	c.SetMode(ModeReset)
	c.SetMode(ModeRx)
	if m, ok := c.Current(); !ok || m != ModeRx {
		t.Errorf("Current() = %v, %v; want rx, true", m, ok)
	}
}

func TestModeController_FailedResetStaysUnknown(t *testing.T) {
	clock := newFakeClock(false)
	c := NewModeController(&fakePin{err: errors.New("gpio busy")}, nil, nil, clock, testLogger())

	c.SetMode(ModeReset)
	if _, ok := c.Current(); ok {
		t.Error("Current() known after failed reset")
	}
}

func TestModeController_RFSwitch(t *testing.T) {
	tests := []struct {
		mode   Mode
		rx, tx gpio.Level
	}{
		{ModeSleep, gpio.Low, gpio.Low},
		{ModeStandby, gpio.Low, gpio.Low},
		{ModeRx, gpio.High, gpio.Low},
		{ModeTxBoost, gpio.Low, gpio.High},
		{ModeTxRFO, gpio.Low, gpio.High},
		{ModeReset, gpio.Low, gpio.Low},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			rx, tx := &fakePin{}, &fakePin{}
			c := NewModeController(&fakePin{}, rx, tx, newFakeClock(false), testLogger())
			c.SetMode(tt.mode)

			if l, _ := rx.last(); l != tt.rx {
				t.Errorf("rxen = %v, want %v", l, tt.rx)
			}
			if l, _ := tx.last(); l != tt.tx {
				t.Errorf("txen = %v, want %v", l, tt.tx)
			}
		})
	}
}

func TestModeController_NoSwitchLines(t *testing.T) {
	reset := &fakePin{}
	c := NewModeController(reset, nil, nil, newFakeClock(false), testLogger())

	for _, m := range []Mode{ModeSleep, ModeStandby, ModeRx, ModeTxBoost, ModeTxRFO} {
		c.SetMode(m)
		if got, _ := c.Current(); got != m {
			t.Errorf("Current() = %v, want %v", got, m)
		}
	}
	if len(reset.levels) != 0 {
		t.Errorf("reset line touched by non-reset modes: %v", reset.levels)
	}
}

func TestModeController_UnknownModeIgnored(t *testing.T) {
	c := NewModeController(&fakePin{}, nil, nil, newFakeClock(false), testLogger())
	c.SetMode(ModeSleep)
	c.SetMode(Mode(42))
	if got, _ := c.Current(); got != ModeSleep {
		t.Errorf("Current() = %v, want sleep", got)
	}
	if Mode(42).String() != "unknown" {
		t.Errorf("String() = %q", Mode(42).String())
	}
}
