package middleware

import (
	"strconv"
	"sync"
	"time"

	applogger "SybilScan/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight *prometheus.GaugeVec
	size     *prometheus.HistogramVec
}

var (
	httpMetricsOnce sync.Once
	httpMetricsInst *httpMetrics
)

func sharedHTTPMetrics() *httpMetrics {
	httpMetricsOnce.Do(func() {
		m := &httpMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "sybilscan_http_requests_total",
				Help: "HTTP requests by route, method and status",
			}, []string{"route", "method", "status"}),
			duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "sybilscan_http_request_seconds",
				Help:    "HTTP request latency",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			}, []string{"route", "method", "class"}),
			inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "sybilscan_http_in_flight",
				Help: "HTTP requests currently being served",
			}, []string{"route"}),
			size: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "sybilscan_http_response_bytes",
				Help:    "HTTP response size",
				Buckets: prometheus.ExponentialBuckets(256, 4, 8),
			}, []string{"route", "class"}),
		}
		prometheus.MustRegister(m.requests, m.duration, m.inFlight, m.size)
		httpMetricsInst = m
	})
	return httpMetricsInst
}

// Metrics records request metrics labelled by the route template (c.Path()),
// so job ids never become label values. Status and size come from echo's
// Response rather than a wrapped writer; hijacked websocket connections pass
// through untouched. 5xx responses are logged as errors and requests slower
// than slowThreshold as warnings.
func Metrics(l *applogger.Logger, slowThreshold time.Duration) echo.MiddlewareFunc {
	m := sharedHTTPMetrics()

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method

			gauge := m.inFlight.WithLabelValues(route)
			gauge.Inc()
			defer gauge.Dec()

			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			took := time.Since(start)

			res := c.Response()
			status := strconv.Itoa(res.Status)
			class := status[:1] + "xx"
			m.requests.WithLabelValues(route, method, status).Inc()
			m.duration.WithLabelValues(route, method, class).Observe(took.Seconds())
			m.size.WithLabelValues(route, class).Observe(float64(res.Size))

			if l == nil {
				return nil
			}
			fields := []applogger.Field{
				applogger.String("route", route),
				applogger.String("method", method),
				applogger.Int("status", res.Status),
				applogger.Duration("duration_ms", took),
			}
			if res.Status >= 500 {
				l.Error("http request failed", append(fields, applogger.Int64("bytes", res.Size))...)
			} else if slowThreshold > 0 && took >= slowThreshold {
				l.Warn("http request slow", fields...)
			}
			return nil
		}
	}
}
