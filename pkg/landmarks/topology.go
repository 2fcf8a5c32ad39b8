// Package landmarks adapts face-landmark producers to the drowsiness
// engine: it maps a fixed-topology point set onto the six-point eye
// contours and provides the frame sources that feed a monitoring session.
package landmarks

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-drowsy/pkg/drowsiness"
)

// Frame is the landmark output for one video frame.
type Frame struct {
	Timestamp  time.Time    `json:"ts"`
	Width      int          `json:"width,omitempty"`
	Height     int          `json:"height,omitempty"`
	Normalized bool         `json:"normalized,omitempty"` // points in 0-1, scaled by Width/Height
	Points     [][2]float64 `json:"points"`               // empty when no face was found
}

// HasFace reports whether the frame carries any landmarks.
func (f Frame) HasFace() bool {
	return len(f.Points) > 0
}

// Topology names the landmark indices of both eyes in a point set.
// Eye indices are ordered p1..p6 as drowsiness.EAR expects.
type Topology struct {
	Name     string
	Size     int // minimum number of points a frame must carry
	LeftEye  [6]int
	RightEye [6]int
}

// MediaPipe is the 468-point face mesh (478 with irises).
var MediaPipe = Topology{
	Name:     "mediapipe",
	Size:     468,
	LeftEye:  [6]int{33, 160, 158, 133, 153, 144},
	RightEye: [6]int{362, 385, 387, 263, 373, 380},
}

// Dlib68 is the iBUG 68-point layout used by dlib's shape predictor.
var Dlib68 = Topology{
	Name:     "dlib68",
	Size:     68,
	LeftEye:  [6]int{36, 37, 38, 39, 40, 41},
	RightEye: [6]int{42, 43, 44, 45, 46, 47},
}

var topologies = map[string]Topology{
	MediaPipe.Name: MediaPipe,
	Dlib68.Name:    Dlib68,
}

// TopologyByName returns a built-in topology.
func TopologyByName(name string) (Topology, error) {
	t, ok := topologies[name]
	if !ok {
		return Topology{}, fmt.Errorf("%w: %s", ErrUnknownTopology, name)
	}
	return t, nil
}

// Observe extracts both eyes from a frame. It returns a nil observation
// for a frame without a face.
func (t Topology) Observe(f Frame) (*drowsiness.Observation, error) {
	if !f.HasFace() {
		return nil, nil
	}
	if len(f.Points) < t.Size {
		return nil, fmt.Errorf("%w: %s needs %d points, got %d",
			ErrTopologyMismatch, t.Name, t.Size, len(f.Points))
	}

	sx, sy := 1.0, 1.0
	if f.Normalized {
		if f.Width <= 0 || f.Height <= 0 {
			return nil, fmt.Errorf("%w: width %d, height %d", ErrMissingFrameSize, f.Width, f.Height)
		}
		sx, sy = float64(f.Width), float64(f.Height)
	}

	return &drowsiness.Observation{
		Left:      t.eye(f.Points, t.LeftEye, sx, sy),
		Right:     t.eye(f.Points, t.RightEye, sx, sy),
		Timestamp: f.Timestamp,
	}, nil
}

func (t Topology) eye(points [][2]float64, idx [6]int, sx, sy float64) drowsiness.EyeLandmarks {
	var eye drowsiness.EyeLandmarks
	for i, j := range idx {
		eye[i] = drowsiness.Point{X: points[j][0] * sx, Y: points[j][1] * sy}
	}
	return eye
}
