package metrics

import (
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/specforge/internal/engine"
)

const namespace = "specforge"

// Recorder implements engine.Observer using Prometheus metrics.
type Recorder struct {
	reg *prom.Registry

	once          sync.Once
	specOutcomes  *prom.CounterVec
	specDuration  *prom.HistogramVec
	generatorCall prom.Counter
	builds        *prom.CounterVec
	buildDuration prom.Histogram
	lastBuild     prom.Gauge
	lastCounts    *prom.GaugeVec
}

var _ engine.Observer = (*Recorder)(nil)

// NewRecorder constructs and registers the metrics on reg. A nil reg gets
// a fresh registry.
func NewRecorder(reg *prom.Registry) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	r := &Recorder{reg: reg}
	r.once.Do(func() {
		r.specOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "spec_outcomes_total",
			Help:      "Spec outcomes by terminal state and reason",
		}, []string{"state", "reason"})
		r.specDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "spec_duration_seconds",
			Help:      "Time to take one spec to a terminal state",
			Buckets:   prom.DefBuckets,
		}, []string{"state"})
		r.generatorCall = prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "generator_calls_total",
			Help:      "Calls made to the external generator",
		})
		r.builds = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Builds by overall result",
		}, []string{"result"})
		r.buildDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		})
		r.lastBuild = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_build_timestamp_seconds",
			Help:      "Unix time the last build finished",
		})
		r.lastCounts = prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_build_specs",
			Help:      "Spec counts of the last build by terminal state",
		}, []string{"state"})
		reg.MustRegister(r.specOutcomes, r.specDuration, r.generatorCall, r.builds, r.buildDuration, r.lastBuild, r.lastCounts)
	})
	return r
}

// Registry returns the registry the metrics live in.
func (r *Recorder) Registry() *prom.Registry {
	return r.reg
}

// SpecFinished implements engine.Observer.
func (r *Recorder) SpecFinished(_ string, o engine.Outcome) {
	if r == nil || r.specOutcomes == nil {
		return
	}
	r.specOutcomes.WithLabelValues(string(o.State), o.Reason).Inc()
	r.specDuration.WithLabelValues(string(o.State)).Observe(o.Duration.Seconds())
	if o.GeneratorCalled {
		r.generatorCall.Inc()
	}
}

// BuildFinished implements engine.Observer.
func (r *Recorder) BuildFinished(rep *engine.Report) {
	if r == nil || r.builds == nil {
		return
	}
	result := "success"
	if rep.Failed() {
		result = "failed"
	}
	r.builds.WithLabelValues(result).Inc()
	r.buildDuration.Observe(rep.Finished.Sub(rep.Started).Seconds())
	r.lastBuild.Set(float64(rep.Finished.UnixNano()) / 1e9)

	c := rep.Counts()
	r.lastCounts.WithLabelValues(string(engine.StatePublished)).Set(float64(c.Published))
	r.lastCounts.WithLabelValues(string(engine.StateSkippedUnchanged)).Set(float64(c.Skipped))
	r.lastCounts.WithLabelValues(string(engine.StateFailed)).Set(float64(c.Failed))
}

// WriteTextfile writes the current metrics in the text exposition format
// for node-exporter's textfile collector. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	return prom.WriteToTextfile(path, r.reg)
}
