package landmarks

import (
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/teslashibe/go-drowsy/internal/log"
	"gocv.io/x/gocv"
)

// meshPoints is the number of landmarks the face-mesh network emits.
const meshPoints = 468

// FaceMeshConfig holds the landmark model configuration.
type FaceMeshConfig struct {
	DetectorModelPath string  // YuNet ONNX face detector
	MeshModelPath     string  // MediaPipe face-mesh ONNX (192x192 input)
	ConfidenceThresh  float64 // Minimum face score (default 0.6)
	MeshInputSize     int     // Mesh network input side in pixels
	CropMargin        float64 // Extra context around the face box, as a fraction of its side
}

// DefaultFaceMeshConfig returns defaults matching the published models.
func DefaultFaceMeshConfig() FaceMeshConfig {
	return FaceMeshConfig{
		DetectorModelPath: "models/face_detection_yunet.onnx",
		MeshModelPath:     "models/face_mesh.onnx",
		ConfidenceThresh:  0.6,
		MeshInputSize:     192,
		CropMargin:        0.25,
	}
}

// faceBox is one YuNet detection in pixels.
type faceBox struct {
	rect  image.Rectangle
	score float64
}

func (b faceBox) area() float64 {
	return float64(b.rect.Dx() * b.rect.Dy())
}

// selectFace picks the face to track: confidence weighs 0.7, relative
// area 0.3. Only one face is ever measured.
func selectFace(boxes []faceBox) (faceBox, bool) {
	if len(boxes) == 0 {
		return faceBox{}, false
	}

	maxArea := 0.0
	for _, b := range boxes {
		if a := b.area(); a > maxArea {
			maxArea = a
		}
	}

	best, bestScore := 0, -1.0
	for i, b := range boxes {
		score := b.score * 0.7
		if maxArea > 0 {
			score += b.area() / maxArea * 0.3
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return boxes[best], true
}

// squareCrop grows the box into a square with margin, clipped to bounds.
func squareCrop(r image.Rectangle, margin float64, bounds image.Rectangle) image.Rectangle {
	side := r.Dx()
	if r.Dy() > side {
		side = r.Dy()
	}
	side = int(float64(side) * (1 + margin))

	c := image.Pt((r.Min.X+r.Max.X)/2, (r.Min.Y+r.Max.Y)/2)
	sq := image.Rect(c.X-side/2, c.Y-side/2, c.X-side/2+side, c.Y-side/2+side)
	return sq.Intersect(bounds)
}

// FaceMesh finds a face with YuNet and runs the face-mesh network on it.
type FaceMesh struct {
	detector gocv.FaceDetectorYN
	net      gocv.Net
	config   FaceMeshConfig
	mu       sync.Mutex // Protects inference
}

// NewFaceMesh loads both models.
func NewFaceMesh(cfg FaceMeshConfig) (*FaceMesh, error) {
	for _, p := range []string{cfg.DetectorModelPath, cfg.MeshModelPath} {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, p)
		}
	}

	net := gocv.ReadNetFromONNX(cfg.MeshModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load face mesh model from %s", cfg.MeshModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.DetectorModelPath,
		"",
		image.Pt(320, 320), // reset per frame
		float32(cfg.ConfidenceThresh),
		0.3,  // NMS threshold
		5000, // Top K
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	return &FaceMesh{
		detector: detector,
		net:      net,
		config:   cfg,
	}, nil
}

// LandmarksJPEG decodes a JPEG and returns its landmarks.
func (m *FaceMesh) LandmarksJPEG(jpeg []byte) ([][2]float64, error) {
	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()

	return m.Landmarks(img)
}

// Landmarks returns the mesh points of the best face in pixel coordinates
// of img, or nil when no face is found.
func (m *FaceMesh) Landmarks(img gocv.Mat) ([][2]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	bounds := image.Rect(0, 0, img.Cols(), img.Rows())
	face, ok := m.detectFace(img)
	if !ok {
		return nil, nil
	}

	crop := squareCrop(face.rect, m.config.CropMargin, bounds)
	if crop.Empty() {
		return nil, nil
	}

	roi := img.Region(crop)
	defer roi.Close()

	size := image.Pt(m.config.MeshInputSize, m.config.MeshInputSize)
	blob := gocv.BlobFromImage(roi, 1.0/255.0, size, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	m.net.SetInput(blob, "")
	output := m.net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read mesh output: %w", err)
	}
	if len(data) < meshPoints*3 {
		return nil, fmt.Errorf("mesh output has %d values, want %d", len(data), meshPoints*3)
	}

	// Output is x, y, z triples in mesh-input pixels.
	sx := float64(crop.Dx()) / float64(m.config.MeshInputSize)
	sy := float64(crop.Dy()) / float64(m.config.MeshInputSize)
	points := make([][2]float64, meshPoints)
	for i := range points {
		points[i] = [2]float64{
			float64(crop.Min.X) + float64(data[i*3])*sx,
			float64(crop.Min.Y) + float64(data[i*3+1])*sy,
		}
	}

	log.Debug("face mesh", "score", face.score, "crop", crop.String())
	return points, nil
}

func (m *FaceMesh) detectFace(img gocv.Mat) (faceBox, bool) {
	m.detector.SetInputSize(image.Pt(img.Cols(), img.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()
	m.detector.Detect(img, &faces)

	// YuNet rows: 0-3 box, 4-13 five landmarks, 14 score.
	boxes := make([]faceBox, 0, faces.Rows())
	for r := 0; r < faces.Rows(); r++ {
		x := int(faces.GetFloatAt(r, 0))
		y := int(faces.GetFloatAt(r, 1))
		w := int(faces.GetFloatAt(r, 2))
		h := int(faces.GetFloatAt(r, 3))
		boxes = append(boxes, faceBox{
			rect:  image.Rect(x, y, x+w, y+h),
			score: float64(faces.GetFloatAt(r, 14)),
		})
	}

	return selectFace(boxes)
}

// Close releases both models.
func (m *FaceMesh) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detector.Close()
	return m.net.Close()
}
