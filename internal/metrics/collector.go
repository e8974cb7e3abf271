package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PipelineStats provides the metrics collector access to live pipeline state.
type PipelineStats interface {
	ProfilesLoaded() int
	InFlight() int
}

// Collector implements prometheus.Collector to read live gauges at scrape time.
type Collector struct {
	stats PipelineStats

	profilesLoaded *prometheus.Desc
	inFlight       *prometheus.Desc
}

// NewCollector creates a collector that reads live state at scrape time.
// stats may be nil if no pipeline is running (metrics will report 0).
func NewCollector(stats PipelineStats) *Collector {
	return &Collector{
		stats: stats,
		profilesLoaded: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "voice_profiles_loaded"),
			"Voice profiles loaded into the matcher.",
			nil, nil,
		),
		inFlight: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "pipeline_in_flight"),
			"Audio files currently being processed.",
			nil, nil,
		),
	}
}

// MustRegisterCollector registers the collector with the default registry.
// Call once, after the pipeline is built.
func MustRegisterCollector(c *Collector) {
	prometheus.MustRegister(c)
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.profilesLoaded
	ch <- c.inFlight
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.stats != nil {
		ch <- prometheus.MustNewConstMetric(c.profilesLoaded, prometheus.GaugeValue, float64(c.stats.ProfilesLoaded()))
		ch <- prometheus.MustNewConstMetric(c.inFlight, prometheus.GaugeValue, float64(c.stats.InFlight()))
	} else {
		ch <- prometheus.MustNewConstMetric(c.profilesLoaded, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.inFlight, prometheus.GaugeValue, 0)
	}
}
