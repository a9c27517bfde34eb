package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsSnapshot is a lightweight view of process counters.
type MetricsSnapshot struct {
	Requests          uint64  `json:"requests"`
	AvgRequestMillis  float64 `json:"avg_request_ms"`
	CacheHitRatio     float64 `json:"cache_hit_ratio"`
	UploadsAccepted   uint64  `json:"uploads_accepted"`
	UploadsRejected   uint64  `json:"uploads_rejected"`
	ProgressWrites    uint64  `json:"progress_writes"`
	ProgressFailures  uint64  `json:"progress_failures"`
	JobsSucceeded     uint64  `json:"jobs_succeeded"`
	JobsFailed        uint64  `json:"jobs_failed"`
	GoroutinesRunning int     `json:"goroutines"`
}

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	uploads         *prometheus.CounterVec
	uploadBytes     prometheus.Counter
	progressWrites  *prometheus.CounterVec
	jobRuns         *prometheus.CounterVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	uploadsAccepted      uint64
	uploadsRejected      uint64
	progressOK           uint64
	progressFailed       uint64
	jobsOK               uint64
	jobsFailed           uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	uploads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "video_uploads_total",
		Help: "Video upload attempts by outcome",
	}, []string{"outcome"})

	uploadBytes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "video_upload_bytes_total",
		Help: "Bytes of published video files",
	})

	progressWrites := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "progress_writes_total",
		Help: "Course progress writes by kind and outcome",
	}, []string{"kind", "outcome"})

	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "background_jobs_total",
		Help: "Background job executions by type and outcome",
	}, []string{"type", "outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		uploads, uploadBytes, progressWrites, jobRuns, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		uploads:         uploads,
		uploadBytes:     uploadBytes,
		progressWrites:  progressWrites,
		jobRuns:         jobRuns,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	if ratio, ok := m.hitRatio(); ok {
		m.cacheHitRatio.Set(ratio)
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordUpload counts an upload attempt. size is added only for accepted uploads.
func (m *MetricsService) RecordUpload(accepted bool, size int64) {
	if m == nil {
		return
	}
	if accepted {
		m.uploads.WithLabelValues("accepted").Inc()
		m.uploadBytes.Add(float64(size))
		atomic.AddUint64(&m.uploadsAccepted, 1)
		return
	}
	m.uploads.WithLabelValues("rejected").Inc()
	atomic.AddUint64(&m.uploadsRejected, 1)
}

// RecordProgressWrite counts a position or completion write.
func (m *MetricsService) RecordProgressWrite(kind string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.progressWrites.WithLabelValues(kind, "error").Inc()
		atomic.AddUint64(&m.progressFailed, 1)
		return
	}
	m.progressWrites.WithLabelValues(kind, "ok").Inc()
	atomic.AddUint64(&m.progressOK, 1)
}

// RecordJob counts a background job execution.
func (m *MetricsService) RecordJob(jobType string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.jobRuns.WithLabelValues(jobType, "error").Inc()
		atomic.AddUint64(&m.jobsFailed, 1)
		return
	}
	m.jobRuns.WithLabelValues(jobType, "ok").Inc()
	atomic.AddUint64(&m.jobsOK, 1)
}

// Snapshot returns aggregated counters.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}
	ratio, _ := m.hitRatio()

	return MetricsSnapshot{
		Requests:          requests,
		AvgRequestMillis:  avgRequestMs,
		CacheHitRatio:     ratio,
		UploadsAccepted:   atomic.LoadUint64(&m.uploadsAccepted),
		UploadsRejected:   atomic.LoadUint64(&m.uploadsRejected),
		ProgressWrites:    atomic.LoadUint64(&m.progressOK),
		ProgressFailures:  atomic.LoadUint64(&m.progressFailed),
		JobsSucceeded:     atomic.LoadUint64(&m.jobsOK),
		JobsFailed:        atomic.LoadUint64(&m.jobsFailed),
		GoroutinesRunning: runtime.NumGoroutine(),
	}
}

func (m *MetricsService) hitRatio() (float64, bool) {
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if hits+misses == 0 {
		return 0, false
	}
	return float64(hits) / float64(hits+misses), true
}
