package status

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/simplesurance/commitqueue/internal/logfields"
)

const metricNamespace = "commitqueue_status"

const (
	deliveredMetricName = "events_delivered_total"
	failedMetricName    = "events_failed_total"
	droppedMetricName   = "events_dropped_total"
)

const sinkLabel = "sink"

type metricCollector struct {
	logger    *zap.Logger
	delivered *prometheus.CounterVec
	failed    *prometheus.CounterVec
	dropped   *prometheus.CounterVec
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		logger: zap.L().Named(loggerName).Named("metrics"),
		delivered: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      deliveredMetricName,
				Help:      "count of status events delivered to a sink",
			},
			[]string{sinkLabel},
		),
		failed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      failedMetricName,
				Help:      "count of status events that could not be delivered to a sink",
			},
			[]string{sinkLabel},
		),
		dropped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      droppedMetricName,
				Help:      "count of status events dropped because the sink queue was full",
			},
			[]string{sinkLabel},
		),
	}
}

func (m *metricCollector) inc(vec *prometheus.CounterVec, metricName, sink string) {
	if m == nil {
		return
	}

	cnt, err := vec.GetMetricWith(prometheus.Labels{sinkLabel: sink})
	if err != nil {
		m.logger.Warn(
			"could not record metric",
			zap.String("metric", metricName),
			logfields.Event("recording_metric_failed"),
			zap.Error(err),
		)
		return
	}

	cnt.Inc()
}

func (m *metricCollector) DeliveredInc(sink string) {
	m.inc(m.delivered, deliveredMetricName, sink)
}

func (m *metricCollector) FailedInc(sink string) {
	m.inc(m.failed, failedMetricName, sink)
}

func (m *metricCollector) DroppedInc(sink string) {
	m.inc(m.dropped, droppedMetricName, sink)
}
