package observability

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/medquiz-backend/internal/platform/envutil"
	"github.com/yungbote/medquiz-backend/internal/platform/logger"
)

type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	answers            *prometheus.CounterVec
	answerLatency      prometheus.Histogram
	masteryRetries     prometheus.Counter
	selections         *prometheus.CounterVec
	calibrations       *prometheus.CounterVec
	calibrationSamples prometheus.Histogram
	integrityErrors    prometheus.Counter

	pgStats   *prometheus.GaugeVec
	redisUp   prometheus.Gauge
	redisPing prometheus.Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

func Current() *Metrics {
	return instance
}

func scrapeInterval() time.Duration {
	d := envutil.Duration("METRICS_SCRAPE_INTERVAL", 15*time.Second)
	if d < time.Second {
		return time.Second
	}
	return d
}

// Init builds the process-wide metrics once. It returns nil when METRICS_ENABLED is off,
// and every method on a nil *Metrics is a no-op.
func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		instance = NewMetrics(reg)
		if log != nil {
			log.Info("metrics enabled")
		}
	})
	return instance
}

// NewMetrics registers the service collectors on reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		apiRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mq_api_requests_total",
			Help: "Total API requests by method/route/status.",
		}, []string{"method", "route", "status"}),
		apiLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mq_api_request_duration_seconds",
			Help:    "API request latency in seconds by method/route/status.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method", "route", "status"}),
		apiInflight: f.NewGauge(prometheus.GaugeOpts{
			Name: "mq_api_inflight_requests",
			Help: "In-flight API requests.",
		}),
		answers: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mq_answers_processed_total",
			Help: "Answers processed by outcome (correct, incorrect, skipped, error).",
		}, []string{"outcome"}),
		answerLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mq_answer_update_duration_seconds",
			Help:    "Time spent applying one answer to mastery and ability.",
			Buckets: prometheus.DefBuckets,
		}),
		masteryRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "mq_mastery_update_retries_total",
			Help: "Mastery transactions retried after a version conflict or serialization failure.",
		}),
		selections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mq_selection_decisions_total",
			Help: "Next-item selections by mode (exploit, explore) and target band.",
		}, []string{"mode", "band"}),
		calibrations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mq_calibration_refresh_total",
			Help: "Item calibration refreshes by result (updated, skipped, error).",
		}, []string{"result"}),
		calibrationSamples: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mq_calibration_samples",
			Help:    "Responses used per calibration refresh.",
			Buckets: []float64{8, 16, 32, 64, 128, 256, 512, 1024},
		}),
		integrityErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "mq_calibration_integrity_errors_total",
			Help: "Items found with zero or several latest calibration rows.",
		}),
		pgStats: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mq_db_stats",
			Help: "Database connection pool stats.",
		}, []string{"metric"}),
		redisUp: f.NewGauge(prometheus.GaugeOpts{
			Name: "mq_redis_up",
			Help: "Redis connectivity (1=up, 0=down).",
		}),
		redisPing: f.NewGauge(prometheus.GaugeOpts{
			Name: "mq_redis_ping_seconds",
			Help: "Last Redis ping latency in seconds.",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route, status).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

// ObserveAnswer records one processed answer. correct nil means the learner skipped.
func (m *Metrics) ObserveAnswer(correct *bool, err error, dur time.Duration) {
	if m == nil {
		return
	}
	outcome := "skipped"
	switch {
	case err != nil:
		outcome = "error"
	case correct == nil:
	case *correct:
		outcome = "correct"
	default:
		outcome = "incorrect"
	}
	m.answers.WithLabelValues(outcome).Inc()
	m.answerLatency.Observe(dur.Seconds())
}

func (m *Metrics) AddMasteryRetries(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.masteryRetries.Add(float64(n))
}

func (m *Metrics) IncSelection(mode, band string) {
	if m == nil {
		return
	}
	if band == "" {
		band = "none"
	}
	m.selections.WithLabelValues(mode, band).Inc()
}

func (m *Metrics) ObserveCalibration(result string, samples int) {
	if m == nil {
		return
	}
	m.calibrations.WithLabelValues(result).Inc()
	if samples > 0 {
		m.calibrationSamples.Observe(float64(samples))
	}
}

func (m *Metrics) IncIntegrityError() {
	if m == nil {
		return
	}
	m.integrityErrors.Inc()
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: db stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.pgStats.WithLabelValues("open_connections").Set(float64(stats.OpenConnections))
				m.pgStats.WithLabelValues("in_use").Set(float64(stats.InUse))
				m.pgStats.WithLabelValues("idle").Set(float64(stats.Idle))
				m.pgStats.WithLabelValues("wait_count").Set(float64(stats.WaitCount))
				m.pgStats.WithLabelValues("wait_duration_seconds").Set(stats.WaitDuration.Seconds())
				m.pgStats.WithLabelValues("max_open_connections").Set(float64(stats.MaxOpenConnections))
			}
		}
	}()
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb goredis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}

func StatusLabel(code int) string {
	return strconv.Itoa(code)
}
