package monitoring

import (
	"context"
	"crypto/md5"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/NHYCRaymond/go-anime-crawler/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Stage metrics
	StageMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_stage_messages_total",
			Help: "Total number of messages handled by a stage",
		},
		[]string{"stage", "status"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crawler_stage_duration_seconds",
			Help:    "Duration of stage runs",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"stage"},
	)

	// Fetch metrics
	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_fetch_total",
			Help: "Total number of page fetches",
		},
		[]string{"outcome"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crawler_fetch_duration_seconds",
			Help:    "Duration of page fetches",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	// Store metrics
	UpsertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_upserts_total",
			Help: "Total number of record upserts",
		},
		[]string{"entity", "outcome"},
	)

	DBConnectionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
		[]string{"database"},
	)

	DBConnectionsIdle = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
		[]string{"database"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_query_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	// Redis metrics
	RedisCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_commands_total",
			Help: "Total number of Redis commands",
		},
		[]string{"command", "status"},
	)

	RedisCommandsDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_commands_duration_seconds",
			Help:    "Duration of Redis commands",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)

	// Message queue metrics
	MessageQueuePublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "message_queue_published_total",
			Help: "Total number of messages published to the exchange",
		},
		[]string{"routing_key", "status"},
	)

	MessageQueueDispositionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "message_queue_dispositions_total",
			Help: "Total number of consumed messages by disposition",
		},
		[]string{"queue", "disposition"},
	)

	MessageQueueProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "message_queue_processing_duration_seconds",
			Help:    "Duration of message processing",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"queue"},
	)

	// Application metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application information",
		},
		[]string{"version", "instance_id"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)

	MemoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "memory_usage_bytes",
			Help: "Current memory usage in bytes",
		},
	)

	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "goroutines_total",
			Help: "Number of goroutines currently running",
		},
	)

	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors",
		},
		[]string{"type", "component"},
	)
)

// StartServer starts the metrics server. /ready reports the registered
// health checks; /health and /live only report that the process is up.
// The uptime and runtime collectors stop when ctx is done.
func StartServer(ctx context.Context, cfg config.MonitoringConfig, version string, health *HealthCheckCollector, logger *slog.Logger) *http.Server {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
	if version == "" {
		version = "unknown"
	}
	instanceID := getInstanceID()
	logger.Info("Starting Prometheus metrics server", "port", cfg.Port, "instance_id", instanceID, "version", version)

	SetAppInfo(version, instanceID)

	go trackUptime(ctx, time.Now(), 10*time.Second)
	go collectSystemMetrics(ctx, 15*time.Second)

	metricsPath := "/metrics"
	if cfg.Path != "" {
		metricsPath = cfg.Path
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           NewMux(metricsPath, health),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Prometheus metrics server failed", "error", err)
		}
	}()

	logger.Info("Prometheus metrics server started", "address", server.Addr, "path", metricsPath)
	return server
}

// NewMux builds the metrics and probe routes
func NewMux(metricsPath string, health *HealthCheckCollector) *http.ServeMux {
	if health == nil {
		health = NewHealthCheckCollector()
	}

	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Alive"))
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if failed := health.CollectHealthMetrics(); len(failed) > 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, "Not ready: %v", failed)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Ready"))
	})

	return mux
}

// getInstanceID generates a unique instance ID
func getInstanceID() string {
	if instanceID := os.Getenv("INSTANCE_ID"); instanceID != "" {
		return instanceID
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%x", md5.Sum([]byte(hostname)))
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordStage records one stage run
func RecordStage(stage, result string, duration time.Duration) {
	StageMessagesTotal.WithLabelValues(stage, result).Inc()
	StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordFetch records one page fetch
func RecordFetch(outcome string, duration time.Duration) {
	FetchTotal.WithLabelValues(outcome).Inc()
	FetchDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordUpsert records one record write
func RecordUpsert(entity, outcome string) {
	UpsertsTotal.WithLabelValues(entity, outcome).Inc()
}

// RecordDBMetrics records database metrics
func RecordDBMetrics(operation string, duration time.Duration, err error) {
	DBQueryTotal.WithLabelValues(operation, status(err)).Inc()
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRedisMetrics records Redis metrics
func RecordRedisMetrics(command string, duration time.Duration, err error) {
	RedisCommandsTotal.WithLabelValues(command, status(err)).Inc()
	RedisCommandsDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordPublish records one publish to the exchange
func RecordPublish(routingKey string, err error) {
	MessageQueuePublishedTotal.WithLabelValues(routingKey, status(err)).Inc()
}

// RecordDisposition records how a consumed message was settled
func RecordDisposition(queue, disposition string, duration time.Duration) {
	MessageQueueDispositionsTotal.WithLabelValues(queue, disposition).Inc()
	MessageQueueProcessingDuration.WithLabelValues(queue).Observe(duration.Seconds())
}

// RecordError records error metrics
func RecordError(errorType, component string) {
	ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// SetDBConnections sets database connection metrics
func SetDBConnections(database string, active, idle int) {
	DBConnectionsActive.WithLabelValues(database).Set(float64(active))
	DBConnectionsIdle.WithLabelValues(database).Set(float64(idle))
}

// SetAppInfo sets application information
func SetAppInfo(version, instanceID string) {
	AppInfo.WithLabelValues(version, instanceID).Set(1)
}

func trackUptime(ctx context.Context, start time.Time, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		AppUptime.Set(time.Since(start).Seconds())

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func collectSystemMetrics(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var m runtime.MemStats
	for {
		runtime.ReadMemStats(&m)
		MemoryUsage.Set(float64(m.Alloc))
		Goroutines.Set(float64(runtime.NumGoroutine()))

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
