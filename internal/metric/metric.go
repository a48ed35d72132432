package metric

import (
	"strconv"

	"github.com/garethgeorge/fixnested/internal/nest"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	globalRegistry = NewRegistry()
)

func GetRegistry() *Registry {
	return globalRegistry
}

type Registry struct {
	reg                *prometheus.Registry
	directoriesVisited prometheus.Counter
	traversalSkips     prometheus.Counter
	merges             *prometheus.CounterVec
	entriesMoved       *prometheus.CounterVec
	directoriesRemoved *prometheus.CounterVec
	runDuration        prometheus.Gauge
	lastRunSuccess     prometheus.Gauge
}

var _ nest.Observer = (*Registry)(nil)

func NewRegistry() *Registry {
	dims := []string{"dry_run"}

	registry := &Registry{
		reg: prometheus.NewRegistry(),
		directoriesVisited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fixnested_directories_visited_total",
			Help: "The total number of directories inspected",
		}),
		traversalSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fixnested_traversal_skips_total",
			Help: "The total number of directories that could not be read",
		}),
		merges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fixnested_merges_total",
			Help: "The total number of nested directories merged into their parent",
		}, dims),
		entriesMoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fixnested_entries_moved_total",
			Help: "The total number of renames",
		}, dims),
		directoriesRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fixnested_directories_removed_total",
			Help: "The total number of emptied nested directories removed",
		}, dims),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fixnested_run_duration_seconds",
			Help: "The duration of the last run in seconds",
		}),
		lastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fixnested_last_run_success",
			Help: "1 if the last run completed without error, 0 otherwise",
		}),
	}

	registry.reg.MustRegister(registry.directoriesVisited)
	registry.reg.MustRegister(registry.traversalSkips)
	registry.reg.MustRegister(registry.merges)
	registry.reg.MustRegister(registry.entriesMoved)
	registry.reg.MustRegister(registry.directoriesRemoved)
	registry.reg.MustRegister(registry.runDuration)
	registry.reg.MustRegister(registry.lastRunSuccess)

	return registry
}

func (r *Registry) Observe(ev nest.Event) error {
	dryRun := strconv.FormatBool(ev.DryRun)
	switch ev.Kind {
	case nest.EventVisit:
		r.directoriesVisited.Inc()
	case nest.EventSkip:
		r.traversalSkips.Inc()
	case nest.EventMerge:
		r.merges.WithLabelValues(dryRun).Inc()
	case nest.EventMove:
		r.entriesMoved.WithLabelValues(dryRun).Inc()
	case nest.EventRemove:
		r.directoriesRemoved.WithLabelValues(dryRun).Inc()
	}
	return nil
}

func (r *Registry) RecordRun(durationSecs float64, success bool) {
	r.runDuration.Set(durationSecs)
	if success {
		r.lastRunSuccess.Set(1)
	} else {
		r.lastRunSuccess.Set(0)
	}
}

// WriteTextfile writes the registry in the text exposition format, for the node exporter
// textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}
