package database

import (
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// poolMetric is one pgxpool statistic exported by PoolStatsCollector.
type poolMetric struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(*pgxpool.Stat) float64
}

func newPoolMetric(name, help string, kind prometheus.ValueType, value func(*pgxpool.Stat) float64) poolMetric {
	return poolMetric{
		desc:  prometheus.NewDesc("db_pool_"+name, help, []string{"service"}, nil),
		kind:  kind,
		value: value,
	}
}

// PoolStatsCollector exports pgxpool statistics, read at scrape time.
type PoolStatsCollector struct {
	pool    *pgxpool.Pool
	service string
	metrics []poolMetric
}

// NewPoolStatsCollector creates a collector for pool labelled with service.
func NewPoolStatsCollector(pool *pgxpool.Pool, service string) *PoolStatsCollector {
	gauge, counter := prometheus.GaugeValue, prometheus.CounterValue
	return &PoolStatsCollector{
		pool:    pool,
		service: service,
		metrics: []poolMetric{
			newPoolMetric("acquired_connections", "Number of currently acquired connections", gauge,
				func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) }),
			newPoolMetric("idle_connections", "Number of currently idle connections", gauge,
				func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) }),
			newPoolMetric("total_connections", "Total number of connections in the pool", gauge,
				func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) }),
			newPoolMetric("max_connections", "Maximum number of connections allowed", gauge,
				func(s *pgxpool.Stat) float64 { return float64(s.MaxConns()) }),
			newPoolMetric("constructing_connections", "Number of connections currently being constructed", gauge,
				func(s *pgxpool.Stat) float64 { return float64(s.ConstructingConns()) }),
			newPoolMetric("acquire_count_total", "Total number of connection acquires", counter,
				func(s *pgxpool.Stat) float64 { return float64(s.AcquireCount()) }),
			newPoolMetric("acquire_duration_seconds_total", "Total time spent acquiring connections in seconds", counter,
				func(s *pgxpool.Stat) float64 { return s.AcquireDuration().Seconds() }),
			newPoolMetric("canceled_acquire_count_total", "Total number of canceled connection acquires", counter,
				func(s *pgxpool.Stat) float64 { return float64(s.CanceledAcquireCount()) }),
			newPoolMetric("empty_acquire_count_total", "Total number of acquires that had to wait for a connection", counter,
				func(s *pgxpool.Stat) float64 { return float64(s.EmptyAcquireCount()) }),
			newPoolMetric("new_connections_total", "Total number of new connections created", counter,
				func(s *pgxpool.Stat) float64 { return float64(s.NewConnsCount()) }),
		},
	}
}

// Describe implements prometheus.Collector.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

// Collect implements prometheus.Collector.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stat := c.pool.Stat()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.kind, m.value(stat), c.service)
	}
}

// RegisterPoolMetrics registers a pool collector with reg. Registering the
// same service twice is not an error.
func RegisterPoolMetrics(reg prometheus.Registerer, pool *pgxpool.Pool, service string) error {
	err := reg.Register(NewPoolStatsCollector(pool, service))
	if errors.As(err, new(prometheus.AlreadyRegisteredError)) {
		return nil
	}
	return err
}
