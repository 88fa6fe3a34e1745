// Package kiosk implements the capture orchestration state machine.
package kiosk

import "fmt"

// State is the single authoritative capture phase.
type State int

const (
	StateIdle State = iota
	StateDetectingBody
	// StateBodyDetected is a display-only sub-state; the machine never rests in it.
	StateBodyDetected
	StateDetectingGesture
	StateGestureDetected
	StateCountdown
	StateCapturing
	StateCapture
	StateCompleted
)

// stateTable is the one place state names and user-facing labels live.
// It is indexed by State and must cover every value.
var stateTable = [...]struct {
	name   string
	status string
}{
	StateIdle:             {"IDLE", "Step in front of the camera"},
	StateDetectingBody:    {"DETECTING_BODY", "Hold still..."},
	StateBodyDetected:     {"BODY_DETECTED", "Got you!"},
	StateDetectingGesture: {"DETECTING_GESTURE", "Show an OK sign to start"},
	StateGestureDetected:  {"GESTURE_DETECTED", "Keep holding the OK sign"},
	StateCountdown:        {"COUNTDOWN", "Get ready"},
	StateCapturing:        {"CAPTURING", "Smile!"},
	StateCapture:          {"CAPTURE", "Processing your photo"},
	StateCompleted:        {"COMPLETED", "All done"},
}

func (s State) valid() bool {
	return s >= 0 && int(s) < len(stateTable)
}

// String returns the state's canonical name.
func (s State) String() string {
	if !s.valid() {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateTable[s].name
}

// Status returns the label shown to the person at the kiosk.
func (s State) Status() string {
	if !s.valid() {
		return ""
	}
	return stateTable[s].status
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	v, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseState returns the state with the given canonical name.
func ParseState(name string) (State, error) {
	for i, e := range stateTable {
		if e.name == name {
			return State(i), nil
		}
	}
	return StateIdle, fmt.Errorf("unknown capture state %q", name)
}

// ConfirmingBody reports whether only the body detector should run.
func (s State) ConfirmingBody() bool {
	return s == StateIdle || s == StateDetectingBody || s == StateBodyDetected
}

// ConfirmingGesture reports whether the hand detector is the primary detector.
func (s State) ConfirmingGesture() bool {
	return s == StateDetectingGesture || s == StateGestureDetected
}
