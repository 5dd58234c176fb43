package tryjob

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/simplesurance/commitqueue/internal/logfields"
)

const metricNamespace = "commitqueue_tryjobs"

const (
	triggeredMetricName        = "triggered_total"
	discoveredMetricName       = "discovered_total"
	retriesExhaustedMetricName = "retries_exhausted_total"
)

const builderLabel = "builder"

type metricCollector struct {
	logger           *zap.Logger
	triggered        *prometheus.CounterVec
	discovered       *prometheus.CounterVec
	retriesExhausted *prometheus.CounterVec
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		logger: zap.L().Named(loggerName).Named("metrics"),
		triggered: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      triggeredMetricName,
				Help:      "count of try job trigger requests",
			},
			[]string{builderLabel},
		),
		discovered: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      discoveredMetricName,
				Help:      "count of builds that were discovered as try jobs",
			},
			[]string{builderLabel},
		),
		retriesExhausted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      retriesExhaustedMetricName,
				Help:      "count of try job lineages that failed after the maximum number of retries",
			},
			[]string{builderLabel},
		),
	}
}

func (m *metricCollector) logGetMetricFailed(metricName string, err error) {
	m.logger.Warn(
		"could not record metric",
		zap.String("metric", metricName),
		logfields.Event("recording_metric_failed"),
		zap.Error(err),
	)
}

func (m *metricCollector) inc(vec *prometheus.CounterVec, metricName, builder string) {
	cnt, err := vec.GetMetricWith(prometheus.Labels{builderLabel: builder})
	if err != nil {
		m.logGetMetricFailed(metricName, err)
		return
	}

	cnt.Inc()
}

func (m *metricCollector) TriggeredInc(builder string) {
	if m == nil {
		return
	}

	m.inc(m.triggered, triggeredMetricName, builder)
}

func (m *metricCollector) DiscoveredInc(builder string) {
	if m == nil {
		return
	}

	m.inc(m.discovered, discoveredMetricName, builder)
}

func (m *metricCollector) RetriesExhaustedInc(builder string) {
	if m == nil {
		return
	}

	m.inc(m.retriesExhausted, retriesExhaustedMetricName, builder)
}
