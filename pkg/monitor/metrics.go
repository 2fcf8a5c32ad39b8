package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/teslashibe/go-drowsy/pkg/drowsiness"
)

// Metrics holds the Prometheus collectors of a session.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	frames       prometheus.Counter
	skipped      *prometheus.CounterVec
	sourceErrors prometheus.Counter
	alerts       prometheus.Counter
	ear          prometheus.Gauge
	closedFrames prometheus.Gauge
	drowsy       prometheus.Gauge
	episodeSecs  prometheus.Histogram
}

// NewMetrics creates the collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drowsy_frames_total",
			Help: "Frames processed by the drowsiness engine",
		}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drowsy_frames_skipped_total",
			Help: "Frames without a usable measurement, by reason",
		}, []string{"reason"}),
		sourceErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drowsy_source_errors_total",
			Help: "Landmark source read or mapping failures",
		}),
		alerts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drowsy_alerts_total",
			Help: "Transitions from AWAKE to DROWSY",
		}),
		ear: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "drowsy_ear",
			Help: "Combined eye aspect ratio of the last measured frame",
		}),
		closedFrames: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "drowsy_closed_frames",
			Help: "Current run of consecutive closed-eye frames",
		}),
		drowsy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "drowsy_alert_active",
			Help: "1 while the session is DROWSY",
		}),
		episodeSecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "drowsy_episode_seconds",
			Help:    "Length of completed drowsiness episodes",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		}),
	}

	m.registry.MustRegister(
		m.frames, m.skipped, m.sourceErrors, m.alerts,
		m.ear, m.closedFrames, m.drowsy, m.episodeSecs,
	)
	return m
}

func (m *Metrics) observe(s Snapshot, alerted bool) {
	if m == nil {
		return
	}
	m.frames.Inc()
	if s.Measured {
		m.ear.Set(s.EAR)
	} else {
		m.skipped.WithLabelValues(string(s.Skip)).Inc()
	}
	m.closedFrames.Set(float64(s.ClosedFrames))
	if s.State == drowsiness.Drowsy {
		m.drowsy.Set(1)
	} else {
		m.drowsy.Set(0)
	}
	if alerted {
		m.alerts.Inc()
	}
}

func (m *Metrics) sourceError() {
	if m == nil {
		return
	}
	m.sourceErrors.Inc()
}

func (m *Metrics) episodeDone(seconds float64) {
	if m == nil {
		return
	}
	m.episodeSecs.Observe(seconds)
}

func (m *Metrics) reset() {
	if m == nil {
		return
	}
	m.closedFrames.Set(0)
	m.drowsy.Set(0)
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
