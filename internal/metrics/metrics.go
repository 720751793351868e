package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder collects pipeline metrics. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry       *prometheus.Registry
	stageDuration  *prometheus.HistogramVec
	backendAttempt *prometheus.CounterVec
	chunkResults   *prometheus.CounterVec
	runs           *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
}

// New creates a recorder backed by its own registry
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "study_pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		backendAttempt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "study_pipeline",
			Name:      "extraction_attempts_total",
			Help:      "Text extraction backend attempts by outcome.",
		}, []string{"backend", "outcome"}),
		chunkResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "study_pipeline",
			Name:      "chunk_results_total",
			Help:      "Chunk processing results by outcome.",
		}, []string{"outcome"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "study_pipeline",
			Name:      "runs_total",
			Help:      "Completed pipeline runs by status.",
		}, []string{"status"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "study_pipeline",
			Name:      "result_cache_lookups_total",
			Help:      "Result cache lookups by outcome.",
		}, []string{"outcome"}),
	}
	r.registry.MustRegister(
		r.stageDuration,
		r.backendAttempt,
		r.chunkResults,
		r.runs,
		r.cacheLookups,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler exposes the registry for scraping
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (r *Recorder) BackendAttempt(backend string, ok bool) {
	if r == nil {
		return
	}
	r.backendAttempt.WithLabelValues(backend, outcome(ok)).Inc()
}

func (r *Recorder) ChunkResult(ok bool) {
	if r == nil {
		return
	}
	r.chunkResults.WithLabelValues(outcome(ok)).Inc()
}

func (r *Recorder) Run(ok bool) {
	if r == nil {
		return
	}
	status := "completed"
	if !ok {
		status = "failed"
	}
	r.runs.WithLabelValues(status).Inc()
}

func (r *Recorder) CacheLookup(hit bool) {
	if r == nil {
		return
	}
	o := "miss"
	if hit {
		o = "hit"
	}
	r.cacheLookups.WithLabelValues(o).Inc()
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}
