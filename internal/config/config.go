// Package config provides configuration helpers for go-drowsy commands.
// Values come from the environment, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/teslashibe/go-drowsy/pkg/drowsiness"
)

// Default settings.
const (
	DefaultPort     = "8080"
	DefaultSource   = "camera"
	DefaultDevice   = "0"
	DefaultTopology = "mediapipe"
	DefaultDBPath   = "drowsy.db"
)

// Settings holds everything cmd/drowsy needs to wire a session.
type Settings struct {
	Port     string
	LogLevel string

	// Landmark source: "camera" (gocv capture + face mesh) or "jsonl".
	Source   string
	Device   string // camera index or video file
	FeedPath string // JSONL feed, "-" for stdin
	Topology string

	DetectorModel string
	MeshModel     string

	DBPath string

	Engine drowsiness.Config
}

// Load reads .env (if present) and the environment. Malformed numeric
// values are reported as *drowsiness.ConfigError naming the variable,
// never replaced by defaults; range checks happen when the engine config
// is applied. Load does not log, so callers can set up logging from the
// returned LogLevel first.
func Load() (Settings, error) {
	var errs []error
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("read .env: %w", err))
	}

	engine := drowsiness.DefaultConfig()
	threshold, err := getEnvFloat("DROWSY_THRESHOLD", engine.Threshold)
	if err != nil {
		errs = append(errs, err)
	}
	frames, err := getEnvInt("DROWSY_FRAMES", engine.FramesRequired)
	if err != nil {
		errs = append(errs, err)
	}
	engine.Threshold = threshold
	engine.FramesRequired = frames
	engine.MissingFace = drowsiness.MissingFacePolicy(getEnv("DROWSY_MISSING_FACE", string(engine.MissingFace)))

	return Settings{
		Port:          getEnv("DROWSY_PORT", DefaultPort),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		Source:        getEnv("DROWSY_SOURCE", DefaultSource),
		Device:        getEnv("DROWSY_DEVICE", DefaultDevice),
		FeedPath:      getEnv("DROWSY_FEED", "-"),
		Topology:      getEnv("DROWSY_TOPOLOGY", DefaultTopology),
		DetectorModel: getEnv("DROWSY_DETECTOR_MODEL", "models/face_detection_yunet.onnx"),
		MeshModel:     getEnv("DROWSY_MESH_MODEL", "models/face_mesh.onnx"),
		DBPath:        getEnv("DROWSY_DB", DefaultDBPath),
		Engine:        engine,
	}, errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, &drowsiness.ConfigError{Field: key, Value: v, Reason: "not an integer"}
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback, &drowsiness.ConfigError{Field: key, Value: v, Reason: "not a number"}
	}
	return f, nil
}
