package status

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/commitqueue/internal/logfields"
)

const DefEventChannelBufferSize = 512

// DefStopTimeout is how long Stop waits for outstanding deliveries before
// it aborts retries.
const DefStopTimeout = 30 * time.Second

const loggerName = "status_pusher"

// Retryer is an interface used for running Sink.Send repeatedly if it fails
// with a temporary error.
type Retryer interface {
	Run(context.Context, func(context.Context) error, []zap.Field) error
	Stop()
}

type sinkWorker struct {
	sink Sink
	ch   chan *Event
}

// Pusher delivers events asynchronously to sinks.
// Each sink receives the events in the order they were pushed. Deliveries
// that fail with a retryable error are retried by the Retryer.
type Pusher struct {
	workers     []*sinkWorker
	retryer     Retryer
	logger      *zap.Logger
	stopTimeout time.Duration

	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewPusher(retryer Retryer, sinks ...Sink) *Pusher {
	p := Pusher{
		retryer:     retryer,
		logger:      zap.L().Named(loggerName),
		stopTimeout: DefStopTimeout,
	}

	for _, s := range sinks {
		p.workers = append(p.workers, &sinkWorker{
			sink: s,
			ch:   make(chan *Event, DefEventChannelBufferSize),
		})
	}

	return &p
}

// Start starts one go-routine per sink that delivers the pushed events.
func (p *Pusher) Start() {
	for _, w := range p.workers {
		p.wg.Add(1)
		go p.run(w)
	}

	p.logger.Info("status pusher started", logfields.Event("status_pusher_started"))
}

func (p *Pusher) run(w *sinkWorker) {
	defer p.wg.Done()

	ctx := context.Background()

	for ev := range w.ch {
		ev := ev
		err := p.retryer.Run(
			ctx,
			func(ctx context.Context) error { return w.sink.Send(ctx, ev) },
			append(ev.LogFields(), zap.String("status.sink", w.sink.Name())),
		)
		if err != nil {
			metrics.FailedInc(w.sink.Name())
			continue
		}

		metrics.DeliveredInc(w.sink.Name())
	}
}

// Push schedules the delivery of ev to all sinks.
// If the queue of a sink is full, the event is dropped for it.
// Push must not be called after Stop.
func (p *Pusher) Push(ev *Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	for _, w := range p.workers {
		select {
		case w.ch <- ev:
		default:
			metrics.DroppedInc(w.sink.Name())
			p.logger.Warn(
				"status event queue is full, dropping event",
				append(ev.LogFields(),
					zap.String("status.sink", w.sink.Name()),
					logfields.Event("status_event_dropped"),
				)...,
			)
		}
	}
}

// Stop waits until all pushed events were delivered and terminates the
// go-routines. If the deliveries do not finish within DefStopTimeout,
// retries are aborted.
func (p *Pusher) Stop() {
	p.stopOnce.Do(func() {
		p.logger.Debug("status pusher terminating", logfields.Event("status_pusher_terminating"))

		for _, w := range p.workers {
			close(w.ch)
		}

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		timer := time.NewTimer(p.stopTimeout)
		defer timer.Stop()

		select {
		case <-done:
		case <-timer.C:
			p.logger.Warn(
				"delivering outstanding status events timed out, aborting retries",
				logfields.Event("status_pusher_stop_timeout"),
			)
			p.retryer.Stop()
			<-done
		}

		p.retryer.Stop()

		p.logger.Info("status pusher terminated", logfields.Event("status_pusher_terminated"))
	})
}
