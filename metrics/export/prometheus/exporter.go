// Package prometheus bridges engine counters into the Prometheus client
// library. The collector reads a fresh snapshot on every scrape; nothing is
// registered globally, callers own the registry and the handler mount.
package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authcore "github.com/taskgrid/authcore"
)

// Source is the engine-shaped surface the collector scrapes.
type Source interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	AuditDropped() uint64
}

// Collector implements prometheus.Collector over an engine snapshot.
type Collector struct {
	source  Source
	descs   map[authcore.MetricID]*prometheus.Desc
	dropped *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector builds a collector for the given source.
func NewCollector(source Source) *Collector {
	descs := make(map[authcore.MetricID]*prometheus.Desc)
	for _, def := range authcore.MetricDefs() {
		descs[def.ID] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
	}
	return &Collector{
		source: source,
		descs:  descs,
		dropped: prometheus.NewDesc(
			"authcore_audit_dropped_total",
			"Audit events shed under backpressure.",
			nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, desc := range c.descs {
		ch <- desc
	}
	ch <- c.dropped
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c == nil || c.source == nil {
		return
	}
	snap := c.source.MetricsSnapshot()
	for _, def := range authcore.MetricDefs() {
		ch <- prometheus.MustNewConstMetric(
			c.descs[def.ID], prometheus.CounterValue, float64(snap.Counters[def.ID]))
	}
	ch <- prometheus.MustNewConstMetric(
		c.dropped, prometheus.CounterValue, float64(c.source.AuditDropped()))
}

// Handler registers the collector in a private registry and returns a scrape
// handler for it.
func Handler(source Source) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollector(source))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
