package drowsiness

import (
	"errors"
	"fmt"
	"time"
)

// State is the alert state reported for a frame.
type State int

const (
	// Awake is the initial state.
	Awake State = iota
	// Drowsy means the eyes stayed closed for FramesRequired frames.
	Drowsy
)

// String returns "AWAKE" or "DROWSY".
func (s State) String() string {
	switch s {
	case Awake:
		return "AWAKE"
	case Drowsy:
		return "DROWSY"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes "AWAKE" or "DROWSY".
func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "AWAKE":
		*s = Awake
	case "DROWSY":
		*s = Drowsy
	default:
		return fmt.Errorf("drowsiness: unknown state %q", b)
	}
	return nil
}

// SkipReason says why a frame produced no measurement.
type SkipReason string

const (
	SkipNone       SkipReason = ""
	SkipNoFace     SkipReason = "no_face"
	SkipDegenerate SkipReason = "degenerate"
)

// Status is the result of one update. It fully determines what a caller
// should display.
type Status struct {
	State        State      `json:"state"`
	EAR          float64    `json:"ear"`
	ClosedFrames int        `json:"closed_frames"`
	Measured     bool       `json:"measured"`
	Skip         SkipReason `json:"skip,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
}

// Alert reports whether the status is Drowsy.
func (s Status) Alert() bool {
	return s.State == Drowsy
}

// EngineState is the mutable part of the state machine.
type EngineState struct {
	ClosedFrames int  `json:"closed_frames"`
	Alert        bool `json:"alert"`
}

func (st EngineState) state() State {
	if st.Alert {
		return Drowsy
	}
	return Awake
}

// Step is the pure transition function: given the previous state, the
// frame's observation (nil for no face) and the configuration, it returns
// the next state and the status to display. cfg is assumed valid.
func Step(prev EngineState, obs *Observation, cfg Config) (EngineState, Status) {
	next := prev
	status := Status{}

	if obs == nil {
		if cfg.policy() == ResetOnMissingFace {
			next = EngineState{}
		}
		status.Skip = SkipNoFace
		return next, next.status(status)
	}
	status.Timestamp = obs.Timestamp

	ear, err := CombinedEAR(obs.Left, obs.Right)
	if err != nil {
		status.Skip = SkipDegenerate
		return next, next.status(status)
	}
	status.EAR = ear
	status.Measured = true

	if ear < cfg.Threshold {
		next.ClosedFrames++
		if next.ClosedFrames >= cfg.FramesRequired {
			next.Alert = true
		}
	} else {
		next = EngineState{}
	}

	return next, next.status(status)
}

func (st EngineState) status(s Status) Status {
	s.State = st.state()
	s.ClosedFrames = st.ClosedFrames
	return s
}

// Engine couples an EngineState with its Config. It is not safe for
// concurrent use; confine it to one goroutine or guard it externally.
type Engine struct {
	cfg   Config
	state EngineState
}

// NewEngine returns an Awake engine, or a *ConfigError if cfg is invalid.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Update processes one frame. obs is nil when no face was detected.
func (e *Engine) Update(obs *Observation) Status {
	var st Status
	e.state, st = Step(e.state, obs, e.cfg)
	return st
}

// Config returns the configuration in force.
func (e *Engine) Config() Config {
	return e.cfg
}

// State returns a copy of the current counter and alert flag.
func (e *Engine) State() EngineState {
	return e.state
}

// SetConfig replaces the whole configuration. Counters are kept.
func (e *Engine) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.cfg = cfg
	return nil
}

// SetThreshold changes the EAR threshold from the next Update on.
func (e *Engine) SetThreshold(t float64) error {
	if err := validateThreshold(t); err != nil {
		return err
	}
	e.cfg.Threshold = t
	return nil
}

// SetFramesRequired changes the run length needed to alert.
func (e *Engine) SetFramesRequired(n int) error {
	if err := validateFramesRequired(n); err != nil {
		return err
	}
	e.cfg.FramesRequired = n
	return nil
}

// SetMissingFacePolicy changes the no-face policy.
func (e *Engine) SetMissingFacePolicy(p MissingFacePolicy) error {
	if err := validatePolicy(p); err != nil {
		return err
	}
	e.cfg.MissingFace = p
	return nil
}

// Reset clears the counter and alert, as on a session stop/restart.
func (e *Engine) Reset() {
	e.state = EngineState{}
}

// IsConfigError reports whether err is a rejected configuration.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}
