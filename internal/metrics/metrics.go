// Package metrics exposes the save pipeline to Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SaveCollector holds the metrics of the avatar save pipeline.
type SaveCollector struct {
	saves          *prometheus.CounterVec
	saveDuration   prometheus.Histogram
	unmappedMorphs *prometheus.CounterVec
}

// NewSaveCollector creates the metrics and registers them with reg. Tests pass a fresh prometheus.NewRegistry().
func NewSaveCollector(reg prometheus.Registerer) *SaveCollector {
	factory := promauto.With(reg)
	return &SaveCollector{
		saves: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "morphsync_saves_total",
				Help: "Save attempts by outcome",
			},
			[]string{"outcome"},
		),
		saveDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "morphsync_save_duration_seconds",
				Help:    "Duration of save round trips to the avatar backend",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		unmappedMorphs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "morphsync_unmapped_morph_keys_total",
				Help: "Backend morph keys received that no catalog morph is mapped to",
			},
			[]string{"known_suggestion"},
		),
	}
}

// ObserveSave records one finished save attempt.
func (c *SaveCollector) ObserveSave(outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.saves.WithLabelValues(outcome).Inc()
	if duration > 0 {
		c.saveDuration.Observe(duration.Seconds())
	}
}

// IncUnmappedMorphKey counts a backend key the catalog does not know. The key itself is only logged since backend
// data would make it an unbounded label; hasSuggestion tells apart likely typos from keys of unknown morphs.
func (c *SaveCollector) IncUnmappedMorphKey(hasSuggestion bool) {
	if c == nil {
		return
	}
	c.unmappedMorphs.WithLabelValues(strconv.FormatBool(hasSuggestion)).Inc()
}

// WorkspaceGauge tracks the avatar stores held in memory, one per active browser session.
type WorkspaceGauge struct {
	active  prometheus.Gauge
	evicted prometheus.Counter
}

func NewWorkspaceGauge(reg prometheus.Registerer) *WorkspaceGauge {
	factory := promauto.With(reg)
	return &WorkspaceGauge{
		active: factory.NewGauge(prometheus.GaugeOpts{
			Name: "morphsync_active_workspaces",
			Help: "Avatar stores currently held in memory",
		}),
		evicted: factory.NewCounter(prometheus.CounterOpts{
			Name: "morphsync_evicted_workspaces_total",
			Help: "Avatar stores closed after their session went idle",
		}),
	}
}

// Set records the current number of workspaces.
func (g *WorkspaceGauge) Set(n int) {
	if g == nil {
		return
	}
	g.active.Set(float64(n))
}

// Evicted counts workspaces closed for inactivity.
func (g *WorkspaceGauge) Evicted(n int) {
	if g == nil {
		return
	}
	g.evicted.Add(float64(n))
}
