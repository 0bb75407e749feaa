package tally

import (
	"errors"
	"testing"

	"github.com/cjeanneret/iriscam/internal/events"
	"github.com/cjeanneret/iriscam/internal/hw/gpio"
)

type recordingEmitter struct {
	states []events.LifecycleState
	errs   []error
}

func (r *recordingEmitter) Emit(state events.LifecycleState, err error) {
	r.states = append(r.states, state)
	r.errs = append(r.errs, err)
}

// failingDriver accepts setup and the initial reset, then fails every write.
type failingDriver struct {
	*gpio.MockDriver
	writes int
}

func (d *failingDriver) WritePin(pin int, level gpio.Level) error {
	d.writes++
	if d.writes > 1 {
		return errors.New("pin busy")
	}
	return d.MockDriver.WritePin(pin, level)
}

func TestNewLamp_StartsOff(t *testing.T) {
	drv := gpio.NewMockDriver()
	_ = drv.WritePin(17, gpio.High)

	l, err := NewLamp(drv, 17, &recordingEmitter{})
	if err != nil {
		t.Fatalf("NewLamp: %v", err)
	}
	if lvl, _ := drv.ReadPin(17); lvl != gpio.Low {
		t.Errorf("pin level = %v, want low", lvl)
	}
	if l.Lit() {
		t.Error("new lamp should be off")
	}
}

func TestLamp_FollowsLifecycle(t *testing.T) {
	cases := []struct {
		state events.LifecycleState
		want  gpio.Level
	}{
		{events.LifecycleRunning, gpio.High},
		{events.LifecycleStopping, gpio.Low},
		{events.LifecycleRunning, gpio.High},
		{events.LifecycleError, gpio.Low},
		{events.LifecycleRunning, gpio.High},
		{events.LifecycleRunning, gpio.High},
		{events.LifecycleDisposed, gpio.Low},
		{events.LifecycleIdle, gpio.Low},
	}

	drv := gpio.NewMockDriver()
	next := &recordingEmitter{}
	l, err := NewLamp(drv, 17, next)
	if err != nil {
		t.Fatalf("NewLamp: %v", err)
	}

	for i, tc := range cases {
		l.Emit(tc.state, nil)
		if lvl, _ := drv.ReadPin(17); lvl != tc.want {
			t.Errorf("step %d (%s): pin = %v, want %v", i, tc.state, lvl, tc.want)
		}
	}
	if len(next.states) != len(cases) {
		t.Fatalf("forwarded %d transitions, want %d", len(next.states), len(cases))
	}
}

func TestLamp_ForwardsError(t *testing.T) {
	next := &recordingEmitter{}
	l, _ := NewLamp(gpio.NewMockDriver(), 17, next)

	cause := events.NewError("gpio", "stuck")
	l.Emit(events.LifecycleError, cause)

	if next.states[0] != events.LifecycleError || next.errs[0] != cause {
		t.Errorf("forwarded (%v, %v), want (error, %v)", next.states[0], next.errs[0], cause)
	}
}

func TestLamp_GPIOFailureStillForwards(t *testing.T) {
	drv := &failingDriver{MockDriver: gpio.NewMockDriver()}
	next := &recordingEmitter{}
	l, err := NewLamp(drv, 17, next)
	if err != nil {
		t.Fatalf("NewLamp: %v", err)
	}

	l.Emit(events.LifecycleRunning, nil)

	if l.Lit() {
		t.Error("lamp should stay off when the write fails")
	}
	if len(next.states) != 1 || next.states[0] != events.LifecycleRunning {
		t.Errorf("forwarded %v, want [running]", next.states)
	}
}

func TestLamp_ImplementsEmitter(t *testing.T) {
	var _ Emitter = events.NewStateHandler()
	var _ Emitter = (*Lamp)(nil)
}
