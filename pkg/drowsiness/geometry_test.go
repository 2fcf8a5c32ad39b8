package drowsiness

import (
	"errors"
	"math"
	"testing"
)

// syntheticEye builds an eye 3 units wide whose lids sit h above and below
// the corner line, giving EAR = 2h/3.
func syntheticEye(h float64) EyeLandmarks {
	return EyeLandmarks{
		{X: 0, Y: 0},
		{X: 1, Y: -h},
		{X: 2, Y: -h},
		{X: 3, Y: 0},
		{X: 2, Y: h},
		{X: 1, Y: h},
	}
}

// eyeWithEAR returns a synthetic eye with the requested ratio.
func eyeWithEAR(ear float64) EyeLandmarks {
	return syntheticEye(1.5 * ear)
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestEAR(t *testing.T) {
	tests := []struct {
		name   string
		eye    EyeLandmarks
		expect float64
	}{
		{
			name:   "open eye",
			eye:    syntheticEye(0.45),
			expect: 0.30,
		},
		{
			name:   "exactly threshold",
			eye:    syntheticEye(0.375),
			expect: 0.25,
		},
		{
			name:   "fully closed",
			eye:    syntheticEye(0),
			expect: 0,
		},
		{
			name: "asymmetric lids",
			eye: EyeLandmarks{
				{X: 0, Y: 0}, {X: 1, Y: -1}, {X: 2, Y: -0.5},
				{X: 4, Y: 0}, {X: 2, Y: 0.5}, {X: 1, Y: 1},
			},
			expect: (2.0 + 1.0) / 8.0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := EAR(tc.eye)
			if err != nil {
				t.Fatalf("EAR: unexpected error %v", err)
			}
			if !almostEqual(got, tc.expect) {
				t.Errorf("EAR: got %.6f, want %.6f", got, tc.expect)
			}
		})
	}
}

func TestEAR_NonNegative(t *testing.T) {
	eyes := []EyeLandmarks{
		syntheticEye(0.5),
		syntheticEye(-0.5), // lids swapped
		{{X: 10, Y: 10}, {X: 10, Y: 10}, {X: 10, Y: 10}, {X: 20, Y: 10}, {X: 10, Y: 10}, {X: 10, Y: 10}},
		{{X: -5, Y: 3}, {X: 7, Y: -2}, {X: 1, Y: 9}, {X: 4, Y: 4}, {X: -3, Y: -8}, {X: 0, Y: 0}},
	}

	for i, eye := range eyes {
		got, err := EAR(eye)
		if err != nil {
			t.Fatalf("eye %d: unexpected error %v", i, err)
		}
		if got < 0 {
			t.Errorf("eye %d: EAR should be >= 0, got %f", i, got)
		}
	}
}

func TestEAR_ScaleInvariant(t *testing.T) {
	eye := EyeLandmarks{
		{X: 100, Y: 200}, {X: 110, Y: 194}, {X: 122, Y: 193},
		{X: 133, Y: 201}, {X: 121, Y: 207}, {X: 109, Y: 206},
	}

	base, err := EAR(eye)
	if err != nil {
		t.Fatalf("EAR: %v", err)
	}
	scaled, err := EAR(eye.Scale(2))
	if err != nil {
		t.Fatalf("EAR scaled: %v", err)
	}

	if !almostEqual(base, scaled) {
		t.Errorf("EAR changed under 2x scaling: %f vs %f", base, scaled)
	}
}

func TestEAR_Degenerate(t *testing.T) {
	coincident := syntheticEye(0.4)
	coincident[3] = coincident[0]

	nan := syntheticEye(0.4)
	nan[2].Y = math.NaN()

	inf := syntheticEye(0.4)
	inf[1].X = math.Inf(1)

	for name, eye := range map[string]EyeLandmarks{
		"coincident corners": coincident,
		"NaN coordinate":     nan,
		"Inf coordinate":     inf,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := EAR(eye)
			if !errors.Is(err, ErrDegenerateGeometry) {
				t.Errorf("EAR: got %v, want ErrDegenerateGeometry", err)
			}
		})
	}
}

func TestCombinedEAR(t *testing.T) {
	got, err := CombinedEAR(eyeWithEAR(0.2), eyeWithEAR(0.3))
	if err != nil {
		t.Fatalf("CombinedEAR: %v", err)
	}
	if !almostEqual(got, 0.25) {
		t.Errorf("CombinedEAR: got %f, want 0.25", got)
	}

	bad := eyeWithEAR(0.3)
	bad[3] = bad[0]
	if _, err := CombinedEAR(eyeWithEAR(0.3), bad); !errors.Is(err, ErrDegenerateGeometry) {
		t.Errorf("CombinedEAR with degenerate right eye: got %v", err)
	}
}
