// drowsy - driver drowsiness monitor
// Reads eye landmarks from a camera or a JSONL feed, raises an alert after a
// run of closed-eye frames and serves live status over HTTP and websocket.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-drowsy/internal/config"
	"github.com/teslashibe/go-drowsy/internal/log"
	"github.com/teslashibe/go-drowsy/pkg/drowsiness"
	"github.com/teslashibe/go-drowsy/pkg/episodes"
	"github.com/teslashibe/go-drowsy/pkg/hub"
	"github.com/teslashibe/go-drowsy/pkg/landmarks"
	"github.com/teslashibe/go-drowsy/pkg/monitor"
	"github.com/teslashibe/go-drowsy/pkg/web"
)

func main() {
	cfg, err := parseFlags()
	log.Init(cfg.LogLevel)
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	if err := run(cfg); err != nil {
		log.Error("drowsy stopped", "error", err)
		os.Exit(1)
	}
}

// parseFlags loads env settings and lets command line flags override them.
// Malformed environment values are returned as an error.
func parseFlags() (config.Settings, error) {
	cfg, err := config.Load()

	flag.StringVar(&cfg.Port, "port", cfg.Port, "Dashboard HTTP port")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	flag.StringVar(&cfg.Source, "source", cfg.Source, "Landmark source: camera or jsonl")
	flag.StringVar(&cfg.Device, "device", cfg.Device, "Camera index or video file (camera source)")
	flag.StringVar(&cfg.FeedPath, "feed", cfg.FeedPath, "JSONL landmark feed, - for stdin (jsonl source)")
	flag.StringVar(&cfg.Topology, "topology", cfg.Topology, "Landmark layout: mediapipe or dlib68")
	flag.StringVar(&cfg.DetectorModel, "detector-model", cfg.DetectorModel, "YuNet face detector ONNX model")
	flag.StringVar(&cfg.MeshModel, "mesh-model", cfg.MeshModel, "Face mesh ONNX model")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Episode database path, empty to disable")
	threshold := flag.Float64("threshold", cfg.Engine.Threshold, "EAR below which eyes count as closed")
	frames := flag.Int("frames", cfg.Engine.FramesRequired, "Consecutive closed frames before alerting")
	policy := flag.String("missing-face", string(cfg.Engine.MissingFace), "Frames without a face: hold or reset")
	preset := flag.String("preset", "", "Start from a named preset (default, sensitive, relaxed)")
	flag.Parse()

	if *preset != "" {
		p, perr := drowsiness.Preset(*preset)
		if perr != nil {
			return cfg, perr
		}
		cfg.Engine = p
	}

	// Explicit engine flags win over env and preset.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "threshold":
			cfg.Engine.Threshold = *threshold
		case "frames":
			cfg.Engine.FramesRequired = *frames
		case "missing-face":
			cfg.Engine.MissingFace = drowsiness.MissingFacePolicy(*policy)
		}
	})
	return cfg, err
}

func run(cfg config.Settings) error {
	topology, err := landmarks.TopologyByName(cfg.Topology)
	if err != nil {
		return err
	}

	session, err := monitor.New(monitor.Config{
		Engine:   cfg.Engine,
		Topology: topology,
	})
	if err != nil {
		return fmt.Errorf("engine config: %w", err)
	}

	metrics := monitor.NewMetrics()
	session.SetMetrics(metrics)

	var store *episodes.Store
	if cfg.DBPath != "" {
		store, err = episodes.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()
		session.SetRecorder(store)
	}

	src, err := openSource(cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	opts := web.Options{
		Port:    cfg.Port,
		Monitor: session,
		Metrics: metrics.Handler(),
	}
	if store != nil {
		opts.Episodes = store
	}
	server := web.NewServer(opts)

	session.OnSnapshot = func(s monitor.Snapshot) { server.Publish(hub.EventStatus, s) }
	session.OnAlert = func(s monitor.Snapshot) { server.Publish(hub.EventAlert, s) }
	session.OnRecover = func(_ monitor.Snapshot, ep episodes.Episode) { server.Publish(hub.EventRecover, ep) }

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	server.StartAsync(ctx)
	defer func() {
		if err := server.Shutdown(); err != nil {
			log.Warn("dashboard shutdown", "error", err)
		}
	}()

	log.Info("drowsy started",
		"session", session.ID(),
		"source", cfg.Source,
		"topology", topology.Name,
		"threshold", cfg.Engine.Threshold,
		"frames_required", cfg.Engine.FramesRequired)

	return session.Run(ctx, src)
}

func openSource(cfg config.Settings) (landmarks.Source, error) {
	switch cfg.Source {
	case "jsonl":
		if cfg.FeedPath == "-" {
			return landmarks.NewJSONLSource(os.Stdin), nil
		}
		f, err := os.Open(cfg.FeedPath)
		if err != nil {
			return nil, fmt.Errorf("open feed: %w", err)
		}
		return landmarks.NewJSONLSource(f), nil

	case "camera":
		meshCfg := landmarks.DefaultFaceMeshConfig()
		if cfg.DetectorModel != "" {
			meshCfg.DetectorModelPath = cfg.DetectorModel
		}
		if cfg.MeshModel != "" {
			meshCfg.MeshModelPath = cfg.MeshModel
		}
		mesh, err := landmarks.NewFaceMesh(meshCfg)
		if err != nil {
			return nil, err
		}
		capture, err := landmarks.OpenCapture(cfg.Device, mesh)
		if err != nil {
			mesh.Close()
			return nil, err
		}
		return &cameraSource{CaptureSource: capture, mesh: mesh}, nil
	}
	return nil, fmt.Errorf("unknown source %q (want camera or jsonl)", cfg.Source)
}

// cameraSource also releases the face mesh it was opened with.
type cameraSource struct {
	*landmarks.CaptureSource
	mesh *landmarks.FaceMesh
}

func (c *cameraSource) Close() error {
	err := c.CaptureSource.Close()
	c.mesh.Close()
	return err
}
