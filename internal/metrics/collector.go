package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Collector holds the batch job metrics for one run. It owns its registry so
// repeated runs in one process do not collide on registration.
type Collector struct {
	registry *prometheus.Registry

	RowsLoaded     *prometheus.GaugeVec
	ReportRows     *prometheus.GaugeVec
	ReportDuration *prometheus.GaugeVec
	RunDuration    prometheus.Gauge
	LastSuccess    prometheus.Gauge
	RunFailures    prometheus.Counter
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		RowsLoaded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "feastmetrics_rows_loaded",
			Help: "Rows loaded per input table in the last run",
		}, []string{"table"}),
		ReportRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "feastmetrics_report_rows",
			Help: "Rows written per report in the last run",
		}, []string{"report"}),
		ReportDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "feastmetrics_report_duration_seconds",
			Help: "Time to compute and write each report",
		}, []string{"report"}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "feastmetrics_run_duration_seconds",
			Help: "Wall time of the last run",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "feastmetrics_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run",
		}),
		RunFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feastmetrics_run_failures_total",
			Help: "Failed runs",
		}),
	}
	c.registry.MustRegister(c.RowsLoaded, c.ReportRows, c.ReportDuration, c.RunDuration, c.LastSuccess, c.RunFailures)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) ObserveReport(name string, rows int, took time.Duration) {
	c.ReportRows.WithLabelValues(name).Set(float64(rows))
	c.ReportDuration.WithLabelValues(name).Set(took.Seconds())
}

// Finish records the outcome of a run
func (c *Collector) Finish(took time.Duration, err error) {
	c.RunDuration.Set(took.Seconds())
	if err != nil {
		c.RunFailures.Inc()
		return
	}
	c.LastSuccess.SetToCurrentTime()
}

// Push sends the registry to a Pushgateway. An empty url is a no-op.
func (c *Collector) Push(url, job string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(c.registry).Push(); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}
