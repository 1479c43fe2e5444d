package station

import (
	"github.com/itohio/gobonsai/pkg/sample"
	"github.com/prometheus/client_golang/prometheus"
)

var _ prometheus.Collector = (*Collector)(nil)

// Collector exports station reports as Prometheus metrics.
type Collector struct {
	station *Station

	mean    *prometheus.Desc
	min     *prometheus.Desc
	max     *prometheus.Desc
	latest  *prometheus.Desc
	samples *prometheus.Desc
	water   *prometheus.Desc
	warning *prometheus.Desc
}

// NewCollector creates a collector reading from s.
func NewCollector(s *Station) *Collector {
	labels := []string{"sensor", "unit"}
	return &Collector{
		station: s,
		mean:    prometheus.NewDesc("bonsai_sensor_mean", "Running mean of the sensor value.", labels, nil),
		min:     prometheus.NewDesc("bonsai_sensor_min", "Running minimum of the sensor value.", labels, nil),
		max:     prometheus.NewDesc("bonsai_sensor_max", "Running maximum of the sensor value.", labels, nil),
		latest:  prometheus.NewDesc("bonsai_sensor_latest", "Most recent sensor value.", labels, nil),
		samples: prometheus.NewDesc("bonsai_sensor_samples_total", "Samples recorded since start.", labels, nil),
		water:   prometheus.NewDesc("bonsai_water_percentage", "Calibrated water level.", nil, nil),
		warning: prometheus.NewDesc("bonsai_water_warning", "1 when the water level is at or below the warning level.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.mean
	ch <- c.min
	ch <- c.max
	ch <- c.latest
	ch <- c.samples
	ch <- c.water
	ch <- c.warning
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, r := range c.station.Reports() {
		if r.Summary.Empty() {
			continue
		}
		lv := []string{r.Name, r.Unit}
		ch <- prometheus.MustNewConstMetric(c.mean, prometheus.GaugeValue, r.Summary.Mean, lv...)
		ch <- prometheus.MustNewConstMetric(c.min, prometheus.GaugeValue, float64(r.Summary.Min), lv...)
		ch <- prometheus.MustNewConstMetric(c.max, prometheus.GaugeValue, float64(r.Summary.Max), lv...)
		ch <- prometheus.MustNewConstMetric(c.latest, prometheus.GaugeValue, float64(r.Summary.Latest), lv...)
		ch <- prometheus.MustNewConstMetric(c.samples, prometheus.CounterValue, float64(r.Total), lv...)

		if r.Kind == sample.Water {
			ch <- prometheus.MustNewConstMetric(c.water, prometheus.GaugeValue, float64(r.Percentage))
			ch <- prometheus.MustNewConstMetric(c.warning, prometheus.GaugeValue, boolToFloat(r.Warning))
		}
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
