package camera

import (
	"time"

	"github.com/cjeanneret/iriscam/internal/debug"
	"github.com/cjeanneret/iriscam/internal/events"
)

// Simulated is a Trigger with no hardware behind it. It walks through the
// full focus then exposure negotiation, pausing step between states.
type Simulated struct {
	step time.Duration
}

// NewSimulated creates a simulated trigger.
func NewSimulated(step time.Duration) *Simulated {
	return &Simulated{step: step}
}

// Trigger reports focusing, focusLocked, exposureSearching, exposureLocked
// and combinedLocked, in that order.
func (s *Simulated) Trigger(fe FocusExposureEmitter) error {
	for _, st := range []events.FocusExposureState{
		events.Focusing,
		events.FocusLocked,
		events.ExposureSearching,
		events.ExposureLocked,
		events.CombinedLocked,
	} {
		fe.Emit(st)
		time.Sleep(s.step)
	}
	debug.Live("Camera: simulated shot complete")
	return nil
}
