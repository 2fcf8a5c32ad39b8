// Package drowsiness implements the eye-closure decision engine: the Eye
// Aspect Ratio (EAR) of six eye-contour landmarks and the consecutive-frame
// alert state machine built on top of it.
package drowsiness

import (
	"math"
	"time"
)

// Point is a 2-D landmark in image coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Scale returns p with both coordinates multiplied by k.
func (p Point) Scale(k float64) Point {
	return Point{X: p.X * k, Y: p.Y * k}
}

func (p Point) finite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// EyeLandmarks holds the six contour points of one eye, p1..p6.
// p1 and p4 are the horizontal corners; (p2, p6) and (p3, p5) are the
// upper/lower lid pairs.
type EyeLandmarks [6]Point

// Scale returns the eye with every point multiplied by k.
func (e EyeLandmarks) Scale(k float64) EyeLandmarks {
	var out EyeLandmarks
	for i, p := range e {
		out[i] = p.Scale(k)
	}
	return out
}

// Observation is the landmark input of one processed video frame.
// A nil *Observation stands for a frame where no face was found.
type Observation struct {
	Left      EyeLandmarks `json:"left"`
	Right     EyeLandmarks `json:"right"`
	Timestamp time.Time    `json:"timestamp"`
}

// EAR computes the Eye Aspect Ratio:
//
//	EAR = (|p2-p6| + |p3-p5|) / (2 * |p1-p4|)
//
// Lower values mean a more closed eye.
func EAR(eye EyeLandmarks) (float64, error) {
	for _, p := range eye {
		if !p.finite() {
			return 0, ErrDegenerateGeometry
		}
	}

	horizontal := eye[0].Dist(eye[3])
	if horizontal == 0 {
		return 0, ErrDegenerateGeometry
	}

	a := eye[1].Dist(eye[5])
	b := eye[2].Dist(eye[4])
	return (a + b) / (2.0 * horizontal), nil
}

// CombinedEAR averages the EAR of both eyes. It fails if either eye is
// degenerate.
func CombinedEAR(left, right EyeLandmarks) (float64, error) {
	l, err := EAR(left)
	if err != nil {
		return 0, err
	}
	r, err := EAR(right)
	if err != nil {
		return 0, err
	}
	return (l + r) / 2.0, nil
}
