package drowsiness

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"
)

func observe(ear float64) *Observation {
	return &Observation{
		Left:      eyeWithEAR(ear),
		Right:     eyeWithEAR(ear),
		Timestamp: time.Unix(1700000000, 0),
	}
}

func newTestEngine(t *testing.T, threshold float64, frames int) *Engine {
	t.Helper()
	e, err := NewEngine(Config{Threshold: threshold, FramesRequired: frames})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestEngine_Scenario(t *testing.T) {
	e := newTestEngine(t, 0.25, 3)

	ears := []float64{0.30, 0.20, 0.18, 0.15, 0.30}
	wantStates := []State{Awake, Awake, Awake, Drowsy, Awake}
	wantClosed := []int{0, 1, 2, 3, 0}

	for i, ear := range ears {
		st := e.Update(observe(ear))
		if st.State != wantStates[i] {
			t.Errorf("frame %d: state got %v, want %v", i, st.State, wantStates[i])
		}
		if st.ClosedFrames != wantClosed[i] {
			t.Errorf("frame %d: closed frames got %d, want %d", i, st.ClosedFrames, wantClosed[i])
		}
		if !almostEqual(st.EAR, ear) {
			t.Errorf("frame %d: EAR got %f, want %f", i, st.EAR, ear)
		}
		if !st.Measured {
			t.Errorf("frame %d: expected a measured frame", i)
		}
	}
}

func TestEngine_AlertsExactlyAtRequiredCount(t *testing.T) {
	for _, required := range []int{1, 2, 5, 15} {
		e := newTestEngine(t, 0.25, required)
		for i := 1; i <= required; i++ {
			st := e.Update(observe(0.1))
			if i < required && st.State != Awake {
				t.Fatalf("required=%d: drowsy too early at frame %d", required, i)
			}
			if i == required && st.State != Drowsy {
				t.Fatalf("required=%d: expected drowsy at frame %d, got %v", required, i, st.State)
			}
		}

		// Stays drowsy and keeps counting.
		st := e.Update(observe(0.1))
		if st.State != Drowsy || st.ClosedFrames != required+1 {
			t.Errorf("required=%d: got %v/%d after extra closed frame", required, st.State, st.ClosedFrames)
		}
	}
}

func TestEngine_ImmediateRecovery(t *testing.T) {
	e := newTestEngine(t, 0.25, 2)
	e.Update(observe(0.1))
	if st := e.Update(observe(0.1)); st.State != Drowsy {
		t.Fatalf("expected drowsy, got %v", st.State)
	}

	st := e.Update(observe(0.25)) // threshold itself counts as open
	if st.State != Awake {
		t.Errorf("recovery state: got %v, want AWAKE", st.State)
	}
	if st.ClosedFrames != 0 {
		t.Errorf("recovery counter: got %d, want 0", st.ClosedFrames)
	}
}

func TestEngine_Idempotent(t *testing.T) {
	e := newTestEngine(t, 0.25, 3)
	obs := observe(0.32)

	first := e.Update(obs)
	second := e.Update(obs)
	if first != second {
		t.Errorf("repeated update differs: %+v vs %+v", first, second)
	}
}

func TestEngine_MissingFaceHold(t *testing.T) {
	e := newTestEngine(t, 0.25, 3)

	e.Update(observe(0.2))
	e.Update(observe(0.2))

	st := e.Update(nil)
	if st.ClosedFrames != 2 {
		t.Errorf("hold: counter got %d, want 2", st.ClosedFrames)
	}
	if st.State != Awake || st.Measured || st.Skip != SkipNoFace {
		t.Errorf("hold: unexpected status %+v", st)
	}
	if st.EAR != 0 {
		t.Errorf("hold: EAR got %f, want 0 on neutral frame", st.EAR)
	}

	// The run continues where it left off.
	if st := e.Update(observe(0.2)); st.State != Drowsy || st.ClosedFrames != 3 {
		t.Errorf("after hold: got %v/%d, want DROWSY/3", st.State, st.ClosedFrames)
	}

	// A missing face while drowsy keeps the alert.
	if st := e.Update(nil); st.State != Drowsy || st.ClosedFrames != 3 {
		t.Errorf("hold while drowsy: got %v/%d", st.State, st.ClosedFrames)
	}
}

func TestEngine_MissingFaceReset(t *testing.T) {
	e, err := NewEngine(Config{Threshold: 0.25, FramesRequired: 2, MissingFace: ResetOnMissingFace})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	e.Update(observe(0.2))
	e.Update(observe(0.2))
	if !e.State().Alert {
		t.Fatal("expected alert before missing face")
	}

	st := e.Update(nil)
	if st.State != Awake || st.ClosedFrames != 0 {
		t.Errorf("reset: got %v/%d, want AWAKE/0", st.State, st.ClosedFrames)
	}
}

func TestEngine_DegenerateFrameIsNeutral(t *testing.T) {
	for _, policy := range []MissingFacePolicy{HoldOnMissingFace, ResetOnMissingFace} {
		t.Run(string(policy), func(t *testing.T) {
			e, err := NewEngine(Config{Threshold: 0.25, FramesRequired: 3, MissingFace: policy})
			if err != nil {
				t.Fatalf("NewEngine: %v", err)
			}
			e.Update(observe(0.2))

			obs := observe(0.2)
			obs.Left[3] = obs.Left[0]
			st := e.Update(obs)

			if st.Skip != SkipDegenerate || st.Measured {
				t.Errorf("degenerate: unexpected status %+v", st)
			}
			if st.ClosedFrames != 1 {
				t.Errorf("degenerate: counter got %d, want 1", st.ClosedFrames)
			}
		})
	}
}

func TestEngine_ThresholdChangeKeepsCounter(t *testing.T) {
	e := newTestEngine(t, 0.25, 3)
	e.Update(observe(0.2))
	e.Update(observe(0.2))

	if err := e.SetThreshold(0.15); err != nil {
		t.Fatalf("SetThreshold: %v", err)
	}
	if got := e.State().ClosedFrames; got != 2 {
		t.Errorf("counter after threshold change: got %d, want 2", got)
	}

	// 0.2 is now above the threshold.
	if st := e.Update(observe(0.2)); st.ClosedFrames != 0 || st.State != Awake {
		t.Errorf("after threshold change: got %v/%d", st.State, st.ClosedFrames)
	}
}

func TestEngine_FramesRequiredChange(t *testing.T) {
	e := newTestEngine(t, 0.25, 5)
	e.Update(observe(0.2))
	e.Update(observe(0.2))

	if err := e.SetFramesRequired(2); err != nil {
		t.Fatalf("SetFramesRequired: %v", err)
	}
	if e.State().Alert {
		t.Error("lowering frames_required must not alert before the next frame")
	}
	if st := e.Update(observe(0.2)); st.State != Drowsy {
		t.Errorf("next closed frame: got %v, want DROWSY", st.State)
	}

	if err := e.SetFramesRequired(50); err != nil {
		t.Fatalf("SetFramesRequired: %v", err)
	}
	if st := e.Update(observe(0.2)); st.State != Drowsy {
		t.Errorf("raising frames_required cleared the alert: %v", st.State)
	}
}

func TestEngine_InvalidConfigRejected(t *testing.T) {
	tests := []struct {
		name  string
		apply func(*Engine) error
		field string
	}{
		{"zero threshold", func(e *Engine) error { return e.SetThreshold(0) }, "threshold"},
		{"threshold one", func(e *Engine) error { return e.SetThreshold(1) }, "threshold"},
		{"negative threshold", func(e *Engine) error { return e.SetThreshold(-0.2) }, "threshold"},
		{"NaN threshold", func(e *Engine) error { return e.SetThreshold(math.NaN()) }, "threshold"},
		{"zero frames", func(e *Engine) error { return e.SetFramesRequired(0) }, "frames_required"},
		{"bad policy", func(e *Engine) error { return e.SetMissingFacePolicy("drop") }, "missing_face_policy"},
		{"whole config", func(e *Engine) error {
			return e.SetConfig(Config{Threshold: 0.3, FramesRequired: -1})
		}, "frames_required"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEngine(t, 0.25, 3)
			before := e.Config()

			err := tc.apply(e)
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got %v", err)
			}
			if cfgErr.Field != tc.field {
				t.Errorf("field: got %s, want %s", cfgErr.Field, tc.field)
			}
			if !IsConfigError(err) {
				t.Error("IsConfigError should match")
			}
			if e.Config() != before {
				t.Errorf("config changed after rejected update: %+v", e.Config())
			}
		})
	}
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	if _, err := NewEngine(Config{Threshold: 1.5, FramesRequired: 3}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("NewEngine: got %v, want ErrInvalidConfig", err)
	}
}

func TestEngine_Reset(t *testing.T) {
	e := newTestEngine(t, 0.25, 1)
	e.Update(observe(0.1))
	e.Reset()

	if st := e.State(); st.Alert || st.ClosedFrames != 0 {
		t.Errorf("Reset: got %+v", st)
	}
}

func TestStep_Pure(t *testing.T) {
	cfg := Config{Threshold: 0.25, FramesRequired: 2}
	prev := EngineState{ClosedFrames: 1}

	next, st := Step(prev, observe(0.1), cfg)
	if prev.ClosedFrames != 1 {
		t.Error("Step mutated its input")
	}
	if !next.Alert || next.ClosedFrames != 2 || st.State != Drowsy {
		t.Errorf("Step: got %+v / %+v", next, st)
	}
}

func TestStatus_JSON(t *testing.T) {
	e := newTestEngine(t, 0.25, 1)
	st := e.Update(observe(0.1))

	data, err := json.Marshal(st)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.State != "DROWSY" {
		t.Errorf("state JSON: got %s, want DROWSY", decoded.State)
	}
}

func TestPresets(t *testing.T) {
	for _, name := range PresetNames() {
		cfg, err := Preset(name)
		if err != nil {
			t.Fatalf("Preset(%s): %v", name, err)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Preset(%s) invalid: %v", name, err)
		}
	}

	if cfg := DefaultConfig(); cfg.Threshold != 0.25 || cfg.FramesRequired != 15 {
		t.Errorf("DefaultConfig: got %+v", cfg)
	}

	if _, err := Preset("sleepy"); !errors.Is(err, ErrUnknownPreset) {
		t.Errorf("unknown preset: got %v", err)
	}
}
