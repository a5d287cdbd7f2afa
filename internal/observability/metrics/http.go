package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics captures request rate and latency per route.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMetrics registers HTTP instruments on the default registerer.
func NewHTTPMetrics(cfg Config) *HTTPMetrics {
	constLabels := prometheus.Labels{
		"service": serviceLabel(cfg),
		"env":     environmentLabel(cfg),
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "peppolway_http_requests_total",
		Help:        "HTTP requests by route, method, and status code.",
		ConstLabels: constLabels,
	}, []string{"route", "method", "status_code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "peppolway_http_request_duration_seconds",
		Help:        "HTTP request latency by route.",
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		ConstLabels: constLabels,
	}, []string{"route", "method"})

	requests = registerCounterVec(prometheus.DefaultRegisterer, requests)
	duration = registerHistogramVec(prometheus.DefaultRegisterer, duration)

	return &HTTPMetrics{requests: requests, duration: duration}
}

// GinMiddleware records per-request metrics.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if strings.TrimSpace(route) == "" {
			route = "unknown"
		}
		method := c.Request.Method
		m.requests.WithLabelValues(route, method, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}

func serviceLabel(cfg Config) string {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "peppolway"
	}
	return name
}

func environmentLabel(cfg Config) string {
	env := strings.TrimSpace(cfg.Environment)
	if env == "" {
		env = "unknown"
	}
	return env
}

func registerCounterVec(registerer prometheus.Registerer, vec *prometheus.CounterVec) *prometheus.CounterVec {
	if err := registerer.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if ok := errAs(err, &already); ok {
			return already.ExistingCollector.(*prometheus.CounterVec)
		}
	}
	return vec
}

func registerHistogramVec(registerer prometheus.Registerer, vec *prometheus.HistogramVec) *prometheus.HistogramVec {
	if err := registerer.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if ok := errAs(err, &already); ok {
			return already.ExistingCollector.(*prometheus.HistogramVec)
		}
	}
	return vec
}
