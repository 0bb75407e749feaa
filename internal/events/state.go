package events

import "fmt"

// LifecycleState is the coarse camera-session status.
type LifecycleState int

const (
	LifecycleIdle LifecycleState = iota
	LifecycleRunning
	LifecycleStopping
	LifecycleDisposed
	LifecycleError
)

var lifecycleNames = [...]string{
	LifecycleIdle:     "idle",
	LifecycleRunning:  "running",
	LifecycleStopping: "stopping",
	LifecycleDisposed: "disposed",
	LifecycleError:    "error",
}

// LifecycleStates lists every lifecycle state in declaration order.
func LifecycleStates() []LifecycleState {
	return []LifecycleState{LifecycleIdle, LifecycleRunning, LifecycleStopping, LifecycleDisposed, LifecycleError}
}

// Valid reports whether s is one of the declared states.
func (s LifecycleState) Valid() bool {
	return s >= 0 && int(s) < len(lifecycleNames)
}

// String returns the canonical wire name.
func (s LifecycleState) String() string {
	if !s.Valid() {
		return fmt.Sprintf("LifecycleState(%d)", int(s))
	}
	return lifecycleNames[s]
}

// ParseLifecycleState returns the state whose wire name is name.
func ParseLifecycleState(name string) (LifecycleState, bool) {
	for i, n := range lifecycleNames {
		if n == name {
			return LifecycleState(i), true
		}
	}
	return 0, false
}

// FocusExposureState is the autofocus/auto-exposure negotiation status.
type FocusExposureState int

const (
	Focusing FocusExposureState = iota
	FocusLocked
	FocusFailed
	ExposureSearching
	ExposureLocked
	ExposureFailed
	CombinedLocked
	FocusExposureUnknown
)

var focusExposureNames = [...]string{
	Focusing:             "focusing",
	FocusLocked:          "focusLocked",
	FocusFailed:          "focusFailed",
	ExposureSearching:    "exposureSearching",
	ExposureLocked:       "exposureLocked",
	ExposureFailed:       "exposureFailed",
	CombinedLocked:       "combinedLocked",
	FocusExposureUnknown: "unknown",
}

// FocusExposureStates lists every focus/exposure state in declaration order.
func FocusExposureStates() []FocusExposureState {
	return []FocusExposureState{
		Focusing, FocusLocked, FocusFailed,
		ExposureSearching, ExposureLocked, ExposureFailed,
		CombinedLocked, FocusExposureUnknown,
	}
}

// Valid reports whether s is one of the declared states.
func (s FocusExposureState) Valid() bool {
	return s >= 0 && int(s) < len(focusExposureNames)
}

// String returns the canonical wire name.
func (s FocusExposureState) String() string {
	if !s.Valid() {
		return fmt.Sprintf("FocusExposureState(%d)", int(s))
	}
	return focusExposureNames[s]
}

// ParseFocusExposureState returns the state whose wire name is name.
func ParseFocusExposureState(name string) (FocusExposureState, bool) {
	for i, n := range focusExposureNames {
		if n == name {
			return FocusExposureState(i), true
		}
	}
	return 0, false
}
