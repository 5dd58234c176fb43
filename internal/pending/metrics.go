package pending

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/simplesurance/commitqueue/internal/logfields"
)

const metricNamespace = "commitqueue"

const (
	landedMetricName        = "commits_landed_total"
	discardedMetricName     = "commits_discarded_total"
	queueSizeMetricName     = "queue_size"
	cycleErrorsMetricName   = "cycle_errors_total"
	cycleDurationMetricName = "cycle_duration_seconds"
)

const reasonLabel = "reason"

const (
	discardReasonFailed  = "failed"
	discardReasonIgnored = "ignored"
	discardReasonAborted = "aborted"
)

type metricCollector struct {
	logger        *zap.Logger
	landed        prometheus.Counter
	discarded     *prometheus.CounterVec
	queueSize     prometheus.Gauge
	cycleErrors   prometheus.Counter
	cycleDuration prometheus.Histogram
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		logger: zap.L().Named(loggerName).Named("metrics"),
		landed: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      landedMetricName,
				Help:      "count of landed commits",
			},
		),
		discarded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      discardedMetricName,
				Help:      "count of commits that were removed from the queue without landing",
			},
			[]string{reasonLabel},
		),
		queueSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricNamespace,
				Name:      queueSizeMetricName,
				Help:      "number of commits in the queue",
			},
		),
		cycleErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      cycleErrorsMetricName,
				Help:      "count of poll cycles that had errors",
			},
		),
		cycleDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricNamespace,
				Name:      cycleDurationMetricName,
				Help:      "duration of poll cycles",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
	}
}

func (m *metricCollector) LandedInc() {
	if m == nil {
		return
	}

	m.landed.Inc()
}

func (m *metricCollector) DiscardedInc(reason string) {
	if m == nil {
		return
	}

	cnt, err := m.discarded.GetMetricWith(prometheus.Labels{reasonLabel: reason})
	if err != nil {
		m.logger.Warn(
			"could not record metric",
			zap.String("metric", discardedMetricName),
			logfields.Event("recording_metric_failed"),
			zap.Error(err),
		)
		return
	}

	cnt.Inc()
}

func (m *metricCollector) QueueSizeSet(size int) {
	if m == nil {
		return
	}

	m.queueSize.Set(float64(size))
}

func (m *metricCollector) CycleErrorsInc() {
	if m == nil {
		return
	}

	m.cycleErrors.Inc()
}

func (m *metricCollector) CycleDurationObserve(d time.Duration) {
	if m == nil {
		return
	}

	m.cycleDuration.Observe(d.Seconds())
}
