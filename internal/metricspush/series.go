package metricspush

import (
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/prometheus/prompb"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	metricspb "go.opentelemetry.io/proto/otlp/metrics/v1"
)

// Only counters and gauges are shipped; histograms stay on /metrics.

// servicePrefix selects the families worth pushing. Go runtime and process
// collectors are left for the scraper.
const servicePrefix = "sadaqah_"

type prefixGatherer struct {
	next   prometheus.Gatherer
	prefix string
}

func (g prefixGatherer) Gather() ([]*dto.MetricFamily, error) {
	families, err := g.next.Gather()
	kept := families[:0]
	for _, family := range families {
		if strings.HasPrefix(family.GetName(), g.prefix) {
			kept = append(kept, family)
		}
	}
	return kept, err
}

func buildRemoteWriteSeries(families []*dto.MetricFamily, timestampMs int64) []prompb.TimeSeries {
	series := make([]prompb.TimeSeries, 0, len(families))
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			value, ok := sampleValue(family.GetType(), metric)
			if !ok {
				continue
			}
			labels := make([]prompb.Label, 0, len(metric.GetLabel())+1)
			labels = append(labels, prompb.Label{Name: "__name__", Value: family.GetName()})
			for _, label := range metric.GetLabel() {
				labels = append(labels, prompb.Label{Name: label.GetName(), Value: label.GetValue()})
			}
			sort.Slice(labels, func(i, j int) bool {
				return labels[i].Name < labels[j].Name
			})

			series = append(series, prompb.TimeSeries{
				Labels: labels,
				Samples: []prompb.Sample{{
					Value:     value,
					Timestamp: timestampMs,
				}},
			})
		}
	}
	return series
}

func buildOTLPMetrics(families []*dto.MetricFamily, now uint64) []*metricspb.Metric {
	metrics := make([]*metricspb.Metric, 0, len(families))
	for _, family := range families {
		points := buildOTLPDataPoints(family.GetType(), family.GetMetric(), now)
		if len(points) == 0 {
			continue
		}
		metric := &metricspb.Metric{
			Name:        family.GetName(),
			Description: family.GetHelp(),
		}
		if family.GetType() == dto.MetricType_COUNTER {
			metric.Data = &metricspb.Metric_Sum{
				Sum: &metricspb.Sum{
					IsMonotonic:            true,
					AggregationTemporality: metricspb.AggregationTemporality_AGGREGATION_TEMPORALITY_CUMULATIVE,
					DataPoints:             points,
				},
			}
		} else {
			metric.Data = &metricspb.Metric_Gauge{
				Gauge: &metricspb.Gauge{DataPoints: points},
			}
		}
		metrics = append(metrics, metric)
	}
	return metrics
}

func buildOTLPDataPoints(metricType dto.MetricType, metrics []*dto.Metric, now uint64) []*metricspb.NumberDataPoint {
	points := make([]*metricspb.NumberDataPoint, 0, len(metrics))
	for _, metric := range metrics {
		value, ok := sampleValue(metricType, metric)
		if !ok {
			continue
		}
		var attrs []*commonpb.KeyValue
		for _, label := range metric.GetLabel() {
			attrs = append(attrs, stringKeyValue(label.GetName(), label.GetValue()))
		}
		points = append(points, &metricspb.NumberDataPoint{
			Attributes:   attrs,
			TimeUnixNano: now,
			Value:        &metricspb.NumberDataPoint_AsDouble{AsDouble: value},
		})
	}
	return points
}

func sampleValue(metricType dto.MetricType, metric *dto.Metric) (float64, bool) {
	if metric == nil {
		return 0, false
	}
	switch metricType {
	case dto.MetricType_COUNTER:
		if metric.GetCounter() == nil {
			return 0, false
		}
		return metric.GetCounter().GetValue(), true
	case dto.MetricType_GAUGE:
		if metric.GetGauge() == nil {
			return 0, false
		}
		return metric.GetGauge().GetValue(), true
	default:
		return 0, false
	}
}
