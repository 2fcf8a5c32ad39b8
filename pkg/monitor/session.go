// Package monitor runs a drowsiness monitoring session: it pulls landmark
// frames from a source, drives one drowsiness engine, tracks alert
// episodes and publishes a snapshot per frame.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-drowsy/internal/log"
	"github.com/teslashibe/go-drowsy/pkg/drowsiness"
	"github.com/teslashibe/go-drowsy/pkg/episodes"
	"github.com/teslashibe/go-drowsy/pkg/landmarks"
)

// Config holds the session parameters.
type Config struct {
	Engine        drowsiness.Config
	Topology      landmarks.Topology
	MaxReadErrors int // consecutive source failures before Run gives up
}

// DefaultConfig returns the reference engine settings on the MediaPipe mesh.
func DefaultConfig() Config {
	return Config{
		Engine:        drowsiness.DefaultConfig(),
		Topology:      landmarks.MediaPipe,
		MaxReadErrors: 30,
	}
}

// Recorder receives every completed episode.
type Recorder interface {
	Record(ctx context.Context, ep episodes.Episode) error
}

// Snapshot is what a session publishes after each frame.
type Snapshot struct {
	SessionID string `json:"session_id"`
	Seq       uint64 `json:"seq"`
	drowsiness.Status
	Threshold      float64 `json:"threshold"`
	FramesRequired int     `json:"frames_required"`
}

// Session owns one engine. The engine is guarded by mu so the frame loop
// and API handlers can share it; only Snapshot values leave the lock.
type Session struct {
	id            string
	topology      landmarks.Topology
	maxReadErrors int
	recorder      Recorder
	metrics       *Metrics
	log           *slog.Logger

	mu      sync.Mutex
	engine  *drowsiness.Engine
	seq     uint64
	latest  Snapshot
	episode *episodes.Episode

	// OnSnapshot is called after every processed frame and after Reset.
	OnSnapshot func(Snapshot)

	// OnAlert is called on the frame that turns the session DROWSY.
	OnAlert func(Snapshot)

	// OnRecover is called when a DROWSY episode ends.
	OnRecover func(Snapshot, episodes.Episode)
}

// New creates a session with a fresh id, or fails with a
// *drowsiness.ConfigError.
func New(cfg Config) (*Session, error) {
	engine, err := drowsiness.NewEngine(cfg.Engine)
	if err != nil {
		return nil, err
	}
	if cfg.Topology.Size == 0 {
		cfg.Topology = landmarks.MediaPipe
	}
	if cfg.MaxReadErrors <= 0 {
		cfg.MaxReadErrors = DefaultConfig().MaxReadErrors
	}

	id := uuid.NewString()
	s := &Session{
		id:            id,
		topology:      cfg.Topology,
		maxReadErrors: cfg.MaxReadErrors,
		engine:        engine,
		log:           log.With("session", id),
	}
	s.latest = s.snapshotLocked(drowsiness.Status{})
	return s, nil
}

// SetRecorder sets where completed episodes go.
func (s *Session) SetRecorder(r Recorder) {
	s.recorder = r
}

// SetMetrics attaches Prometheus collectors.
func (s *Session) SetMetrics(m *Metrics) {
	s.metrics = m
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Latest returns the last published snapshot.
func (s *Session) Latest() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Config returns the engine configuration in force.
func (s *Session) Config() drowsiness.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Config()
}

// SetConfig replaces the engine configuration. Counters are kept.
func (s *Session) SetConfig(cfg drowsiness.Config) error {
	return s.configure(func(e *drowsiness.Engine) error { return e.SetConfig(cfg) })
}

// UpdateConfig applies fn to the configuration in force and installs the
// result, all under the session lock. It returns the configuration after
// the update, or the current one when fn's result is rejected.
func (s *Session) UpdateConfig(fn func(drowsiness.Config) drowsiness.Config) (drowsiness.Config, error) {
	var cfg drowsiness.Config
	err := s.configure(func(e *drowsiness.Engine) error {
		err := e.SetConfig(fn(e.Config()))
		cfg = e.Config()
		return err
	})
	return cfg, err
}

// SetThreshold changes only the EAR threshold.
func (s *Session) SetThreshold(t float64) error {
	return s.configure(func(e *drowsiness.Engine) error { return e.SetThreshold(t) })
}

// SetFramesRequired changes only the closed-frame run length.
func (s *Session) SetFramesRequired(n int) error {
	return s.configure(func(e *drowsiness.Engine) error { return e.SetFramesRequired(n) })
}

// ApplyPreset switches to a named drowsiness preset.
func (s *Session) ApplyPreset(name string) (drowsiness.Config, error) {
	cfg, err := drowsiness.Preset(name)
	if err != nil {
		return drowsiness.Config{}, err
	}
	return cfg, s.SetConfig(cfg)
}

func (s *Session) configure(apply func(*drowsiness.Engine) error) error {
	s.mu.Lock()
	err := apply(s.engine)
	cfg := s.engine.Config()
	if err == nil {
		s.latest.Threshold = cfg.Threshold
		s.latest.FramesRequired = cfg.FramesRequired
	}
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.log.Info("config updated",
		"threshold", cfg.Threshold,
		"frames_required", cfg.FramesRequired,
		"missing_face_policy", cfg.MissingFace)
	return nil
}

// Process runs one frame through the engine.
func (s *Session) Process(ctx context.Context, f landmarks.Frame) (Snapshot, error) {
	obs, err := s.topology.Observe(f)
	if err != nil {
		s.metrics.sourceError()
		return Snapshot{}, err
	}

	s.mu.Lock()
	prev := s.latest.State
	st := s.engine.Update(obs)
	if st.Timestamp.IsZero() {
		st.Timestamp = f.Timestamp
	}
	s.seq++
	snap := s.snapshotLocked(st)
	s.latest = snap
	finished := s.trackEpisodeLocked(snap)
	s.mu.Unlock()

	alerted := prev == drowsiness.Awake && snap.State == drowsiness.Drowsy
	s.metrics.observe(snap, alerted)

	if !snap.Measured {
		s.log.Debug("frame skipped", "seq", snap.Seq, "reason", snap.Skip)
	}

	if alerted {
		s.log.Warn("drowsiness detected",
			"ear", snap.EAR, "closed_frames", snap.ClosedFrames, "threshold", snap.Threshold)
		if s.OnAlert != nil {
			s.OnAlert(snap)
		}
	}
	if finished != nil {
		s.finishEpisode(ctx, *finished)
		if s.OnRecover != nil {
			s.OnRecover(snap, *finished)
		}
	}
	if s.OnSnapshot != nil {
		s.OnSnapshot(snap)
	}
	return snap, nil
}

func (s *Session) snapshotLocked(st drowsiness.Status) Snapshot {
	cfg := s.engine.Config()
	return Snapshot{
		SessionID:      s.id,
		Seq:            s.seq,
		Status:         st,
		Threshold:      cfg.Threshold,
		FramesRequired: cfg.FramesRequired,
	}
}

// trackEpisodeLocked opens, extends or closes the current episode and
// returns the episode that just ended, if any.
func (s *Session) trackEpisodeLocked(snap Snapshot) *episodes.Episode {
	if snap.State == drowsiness.Drowsy {
		if s.episode == nil {
			s.episode = &episodes.Episode{
				ID:        uuid.NewString(),
				SessionID: s.id,
				StartedAt: snap.Timestamp,
				MinEAR:    snap.EAR,
				Threshold: snap.Threshold,
			}
		}
		s.episode.Frames++
		s.episode.EndedAt = snap.Timestamp
		if snap.Measured && snap.EAR < s.episode.MinEAR {
			s.episode.MinEAR = snap.EAR
		}
		return nil
	}

	if s.episode == nil {
		return nil
	}
	ep := *s.episode
	ep.EndedAt = snap.Timestamp
	s.episode = nil
	return &ep
}

func (s *Session) finishEpisode(ctx context.Context, ep episodes.Episode) {
	s.metrics.episodeDone(ep.Duration().Seconds())
	s.log.Info("drowsiness episode ended",
		"episode", ep.ID, "frames", ep.Frames, "min_ear", ep.MinEAR, "duration", ep.Duration())

	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, ep); err != nil {
		s.log.Error("failed to record episode", "episode", ep.ID, "error", err)
	}
}

// Reset clears the engine and closes any open episode, as a stop/restart
// of the monitoring session would.
func (s *Session) Reset(ctx context.Context) Snapshot {
	s.mu.Lock()
	s.engine.Reset()
	snap := s.snapshotLocked(drowsiness.Status{Timestamp: time.Now()})
	s.latest = snap
	open := s.episode
	s.episode = nil
	s.mu.Unlock()

	s.metrics.reset()
	s.log.Info("session reset")

	if open != nil {
		ep := *open
		ep.EndedAt = snap.Timestamp
		s.finishEpisode(ctx, ep)
	}
	if s.OnSnapshot != nil {
		s.OnSnapshot(snap)
	}
	return snap
}

// closeOpenEpisode records an episode still open when the session stops.
func (s *Session) closeOpenEpisode(ctx context.Context) {
	s.mu.Lock()
	open := s.episode
	s.episode = nil
	s.mu.Unlock()

	if open != nil {
		s.finishEpisode(ctx, *open)
	}
}

// Run processes frames from src until it is exhausted or ctx is cancelled.
// It fails after MaxReadErrors consecutive read or mapping errors. An
// episode still open on exit is recorded.
func (s *Session) Run(ctx context.Context, src landmarks.Source) error {
	defer s.closeOpenEpisode(context.WithoutCancel(ctx))

	s.log.Info("monitoring started", "topology", s.topology.Name)
	failures := 0

	for {
		if ctx.Err() != nil {
			return nil
		}

		f, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			s.log.Info("landmark source finished", "frames", s.Latest().Seq)
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}

		if err == nil {
			_, err = s.Process(ctx, f)
		} else {
			s.metrics.sourceError()
		}
		if err == nil {
			failures = 0
			continue
		}

		failures++
		s.log.Warn("frame failed", "error", err, "consecutive", failures)
		if failures >= s.maxReadErrors {
			return fmt.Errorf("monitor: %d consecutive frame failures: %w", failures, err)
		}
	}
}
