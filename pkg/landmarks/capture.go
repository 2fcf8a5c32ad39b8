package landmarks

import (
	"context"
	"fmt"
	"image"
	"strconv"
	"time"

	"gocv.io/x/gocv"
)

// Every capture is resized to this frame size before landmark extraction.
const (
	CaptureWidth  = 640
	CaptureHeight = 480
)

// CaptureSource reads frames from a gocv VideoCapture and runs a FaceMesh
// on each of them.
type CaptureSource struct {
	capture *gocv.VideoCapture
	mesh    *FaceMesh
	raw     gocv.Mat
	resized gocv.Mat
	size    image.Point
}

// OpenCapture opens device, which is a camera index ("0") or a video file
// path. The FaceMesh stays owned by the caller.
func OpenCapture(device string, mesh *FaceMesh) (*CaptureSource, error) {
	var id interface{} = device
	if n, err := strconv.Atoi(device); err == nil {
		id = n
	}

	capture, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, fmt.Errorf("open capture %s: %w", device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("open capture %s: device not opened", device)
	}

	return &CaptureSource{
		capture: capture,
		mesh:    mesh,
		raw:     gocv.NewMat(),
		resized: gocv.NewMat(),
		size:    image.Pt(CaptureWidth, CaptureHeight),
	}, nil
}

// Next grabs one frame and extracts its landmarks.
func (c *CaptureSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	if ok := c.capture.Read(&c.raw); !ok || c.raw.Empty() {
		return Frame{}, ErrCaptureRead
	}
	ts := time.Now()

	gocv.Resize(c.raw, &c.resized, c.size, 0, 0, gocv.InterpolationLinear)

	points, err := c.mesh.Landmarks(c.resized)
	if err != nil {
		return Frame{}, fmt.Errorf("landmarks: %w", err)
	}

	return Frame{
		Timestamp: ts,
		Width:     c.size.X,
		Height:    c.size.Y,
		Points:    points,
	}, nil
}

// Close releases the capture device and frame buffers.
func (c *CaptureSource) Close() error {
	c.raw.Close()
	c.resized.Close()
	return c.capture.Close()
}
