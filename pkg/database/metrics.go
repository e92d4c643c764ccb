package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// poolCollector exposes pgxpool statistics as Prometheus gauges.
type poolCollector struct {
	pool    *pgxpool.Pool
	service string

	total    *prometheus.Desc
	idle     *prometheus.Desc
	acquired *prometheus.Desc
	maxConns *prometheus.Desc
}

// RegisterPoolMetrics registers a collector exposing connection pool stats
// labeled with the service name.
func RegisterPoolMetrics(pool *pgxpool.Pool, service string) {
	prometheus.MustRegister(&poolCollector{
		pool:    pool,
		service: service,
		total: prometheus.NewDesc("pgxpool_total_conns",
			"Total connections in the pool", nil, prometheus.Labels{"service": service}),
		idle: prometheus.NewDesc("pgxpool_idle_conns",
			"Idle connections in the pool", nil, prometheus.Labels{"service": service}),
		acquired: prometheus.NewDesc("pgxpool_acquired_conns",
			"Connections currently acquired", nil, prometheus.Labels{"service": service}),
		maxConns: prometheus.NewDesc("pgxpool_max_conns",
			"Maximum pool size", nil, prometheus.Labels{"service": service}),
	})
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.total
	ch <- c.idle
	ch <- c.acquired
	ch <- c.maxConns
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	stat := c.pool.Stat()
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(stat.TotalConns()))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(stat.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.GaugeValue, float64(stat.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.maxConns, prometheus.GaugeValue, float64(stat.MaxConns()))
}
