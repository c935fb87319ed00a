// Package prom exports index metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	mc, err := prom.New(reg, "hnswkit")
//	ix, err := hnswkit.New(cfg, hnswkit.WithMetrics(mc))
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/hnswkit"
)

// Collector implements hnswkit.MetricsCollector on Prometheus metrics.
type Collector struct {
	opLatency    *prometheus.HistogramVec
	vectors      *prometheus.CounterVec
	savedBytes   prometheus.Counter
	loadedPoints prometheus.Gauge
	tombstones   prometheus.Counter
	survivors    prometheus.Gauge
}

var _ hnswkit.MetricsCollector = (*Collector)(nil)

// New creates a Collector and registers it on reg. A nil reg uses
// prometheus.DefaultRegisterer. namespace prefixes every metric name.
func New(reg prometheus.Registerer, namespace string) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of index operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "status"}),
		vectors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vectors_inserted_total",
			Help:      "Vectors inserted, by insert path",
		}, []string{"path"}),
		savedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saved_bytes_total",
			Help:      "Bytes written by successful saves",
		}),
		loadedPoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loaded_points",
			Help:      "Points in the most recently loaded image",
		}),
		tombstones: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compaction_tombstones_total",
			Help:      "Tombstoned ids dropped by compaction",
		}),
		survivors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "compaction_survivors",
			Help:      "Points kept by the most recent compaction",
		}),
	}

	for _, col := range []prometheus.Collector{
		c.opLatency, c.vectors, c.savedBytes, c.loadedPoints, c.tombstones, c.survivors,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on registration errors.
func MustNew(reg prometheus.Registerer, namespace string) *Collector {
	c, err := New(reg, namespace)
	if err != nil {
		panic(err)
	}
	return c
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (c *Collector) observe(op string, d time.Duration, err error) {
	c.opLatency.WithLabelValues(op, status(err)).Observe(d.Seconds())
}

func (c *Collector) RecordInsert(d time.Duration, err error) {
	c.observe("insert", d, err)
	if err == nil {
		c.vectors.WithLabelValues("single").Inc()
	}
}

func (c *Collector) RecordBatchInsert(count int, d time.Duration, err error) {
	c.observe("batch_insert", d, err)
	if err == nil {
		c.vectors.WithLabelValues("batch").Add(float64(count))
	}
}

func (c *Collector) RecordSearch(_ int, d time.Duration, err error) {
	c.observe("search", d, err)
}

func (c *Collector) RecordSave(bytes int64, d time.Duration, err error) {
	c.observe("save", d, err)
	if err == nil {
		c.savedBytes.Add(float64(bytes))
	}
}

func (c *Collector) RecordLoad(points int, d time.Duration, err error) {
	c.observe("load", d, err)
	if err == nil {
		c.loadedPoints.Set(float64(points))
	}
}

func (c *Collector) RecordCompact(removed, survivors int, d time.Duration, err error) {
	c.observe("compact", d, err)
	if err == nil {
		c.tombstones.Add(float64(removed))
		c.survivors.Set(float64(survivors))
	}
}
