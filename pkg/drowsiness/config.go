package drowsiness

import (
	"fmt"
	"sort"
)

// MissingFacePolicy decides what a frame without a face does to the
// closed-frame counter.
type MissingFacePolicy string

const (
	// HoldOnMissingFace leaves counter and state untouched.
	HoldOnMissingFace MissingFacePolicy = "hold"

	// ResetOnMissingFace clears the counter and returns to Awake.
	ResetOnMissingFace MissingFacePolicy = "reset"
)

// Config holds the runtime-adjustable alert parameters.
type Config struct {
	// Threshold is the EAR below which the eyes count as closed. Must be in (0, 1).
	Threshold float64 `json:"threshold"`

	// FramesRequired is how many consecutive closed frames raise the alert. Must be >= 1.
	FramesRequired int `json:"frames_required"`

	// MissingFace selects the no-face policy. Empty means hold.
	MissingFace MissingFacePolicy `json:"missing_face_policy"`
}

// DefaultConfig returns the reference parameters (EAR 0.25, 15 frames).
func DefaultConfig() Config {
	return Config{
		Threshold:      0.25,
		FramesRequired: 15,
		MissingFace:    HoldOnMissingFace,
	}
}

// SensitiveConfig alerts earlier: a higher threshold and a shorter run.
func SensitiveConfig() Config {
	cfg := DefaultConfig()
	cfg.Threshold = 0.28
	cfg.FramesRequired = 10
	return cfg
}

// RelaxedConfig tolerates longer blinks and squinting.
func RelaxedConfig() Config {
	cfg := DefaultConfig()
	cfg.Threshold = 0.22
	cfg.FramesRequired = 20
	return cfg
}

var presets = map[string]func() Config{
	"default":   DefaultConfig,
	"sensitive": SensitiveConfig,
	"relaxed":   RelaxedConfig,
}

// Preset returns a named configuration preset.
func Preset(name string) (Config, error) {
	fn, ok := presets[name]
	if !ok {
		return Config{}, fmt.Errorf("%w: %s", ErrUnknownPreset, name)
	}
	return fn(), nil
}

// PresetNames lists the preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate reports the first out-of-range field as a *ConfigError.
// Values are never clamped.
func (c Config) Validate() error {
	if err := validateThreshold(c.Threshold); err != nil {
		return err
	}
	if err := validateFramesRequired(c.FramesRequired); err != nil {
		return err
	}
	return validatePolicy(c.MissingFace)
}

func validateThreshold(t float64) error {
	// NaN fails both comparisons, so it is rejected too.
	if !(t > 0 && t < 1) {
		return &ConfigError{Field: "threshold", Value: t, Reason: "must be in (0, 1)"}
	}
	return nil
}

func validateFramesRequired(n int) error {
	if n < 1 {
		return &ConfigError{Field: "frames_required", Value: n, Reason: "must be >= 1"}
	}
	return nil
}

func validatePolicy(p MissingFacePolicy) error {
	switch p {
	case "", HoldOnMissingFace, ResetOnMissingFace:
		return nil
	}
	return &ConfigError{Field: "missing_face_policy", Value: p, Reason: "must be hold or reset"}
}

func (c Config) policy() MissingFacePolicy {
	if c.MissingFace == "" {
		return HoldOnMissingFace
	}
	return c.MissingFace
}
