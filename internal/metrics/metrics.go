package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	JobsScheduled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "postpulse_jobs_scheduled_total",
		Help: "Publish jobs enqueued, by mode",
	}, []string{"mode"})
	DispatchAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "postpulse_dispatch_attempts_total",
		Help: "Publish dispatch attempts, by outcome",
	}, []string{"outcome"})
	EngagementRefreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "postpulse_engagement_refreshes_total",
		Help: "Engagement refreshes, by outcome",
	}, []string{"outcome"})
	CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "postpulse_metrics_cache_lookups_total",
		Help: "Metrics cache lookups, by result",
	}, []string{"result"})
	XAPIDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "postpulse_x_api_duration_seconds",
		Help:    "X API call duration seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)

func init() {
	prometheus.MustRegister(JobsScheduled, DispatchAttempts, EngagementRefreshes, CacheLookups, XAPIDuration)
}

// Handler serves the registered metrics and a health probe.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return mux
}

// StartServer serves Handler on addr in the background. Empty addr disables it.
func StartServer(addr string) *http.Server {
	if addr == "" {
		return nil
	}
	srv := &http.Server{Addr: addr, Handler: Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}

func ObserveXAPI(endpoint string, start time.Time) {
	XAPIDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
