package status

import (
	"context"

	"go.uber.org/zap"

	"github.com/simplesurance/commitqueue/internal/logfields"
)

// Sink delivers events to an external system.
// Send returns a cqerr.RetryableError if delivery can be retried.
type Sink interface {
	Name() string
	Send(context.Context, *Event) error
}

// LogSink writes events to the log.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink() *LogSink {
	return &LogSink{logger: zap.L().Named(loggerName).Named("log_sink")}
}

func (*LogSink) Name() string {
	return "log"
}

func (s *LogSink) Send(_ context.Context, ev *Event) error {
	s.logger.Info(
		ev.Message,
		append(
			ev.LogFields(),
			logfields.Owner(ev.Owner),
			logfields.Revision(ev.Revision),
			logfields.Event("status_event_logged"),
		)...,
	)

	return nil
}
