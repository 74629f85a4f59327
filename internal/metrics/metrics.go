package metrics

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	Namespace = "tide"

	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Recorder receives run and migration outcomes from the runner
type Recorder interface {
	RunFinished(direction, status string)
	MigrationFinished(direction, connection, status string, took time.Duration)
}

type NullRecorder struct{}

var _ Recorder = NullRecorder{}

func (NullRecorder) RunFinished(string, string) {}

func (NullRecorder) MigrationFinished(string, string, string, time.Duration) {}

type PrometheusRecorder struct {
	Runs              *prometheus.CounterVec
	Migrations        *prometheus.CounterVec
	MigrationDuration *prometheus.HistogramVec
}

var _ Recorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder creates the collectors and registers them with reg
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "runs_total",
			Help:      "Total number of migration runs",
		}, []string{"direction", "status"}),

		Migrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "migrations_total",
			Help:      "Total number of executed migrations",
		}, []string{"direction", "connection", "status"}),

		MigrationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "migration_duration_seconds",
			Help:      "Duration of a single migration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"direction"}),
	}

	for _, c := range []prometheus.Collector{r.Runs, r.Migrations, r.MigrationDuration} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "could not register migration metrics")
		}
	}

	return r, nil
}

func (r *PrometheusRecorder) RunFinished(direction, status string) {
	r.Runs.WithLabelValues(direction, status).Inc()
}

func (r *PrometheusRecorder) MigrationFinished(direction, connection, status string, took time.Duration) {
	r.Migrations.WithLabelValues(direction, connection, status).Inc()
	r.MigrationDuration.WithLabelValues(direction).Observe(took.Seconds())
}

// Push sends everything gathered by g to a Prometheus pushgateway,
// migration runs are short lived jobs that are never scraped
func Push(url, job string, g prometheus.Gatherer) error {
	if err := push.New(url, job).Gatherer(g).Push(); err != nil {
		return errors.Wrapf(err, "could not push metrics to %s", url)
	}

	return nil
}
