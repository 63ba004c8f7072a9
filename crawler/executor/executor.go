// Package executor runs stage functions against broker deliveries. It
// applies the returned writes, publishes follow-on messages and settles
// each delivery as ack, nack-with-requeue or reject-to-dead-letter.
package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/NHYCRaymond/go-anime-crawler/crawler/stage"
	"github.com/NHYCRaymond/go-anime-crawler/crawler/storage"
	"github.com/NHYCRaymond/go-anime-crawler/crawler/task"
	"github.com/NHYCRaymond/go-anime-crawler/errors"
	"github.com/NHYCRaymond/go-anime-crawler/lock"
	"github.com/NHYCRaymond/go-anime-crawler/logging"
	"github.com/NHYCRaymond/go-anime-crawler/monitoring"
	"github.com/rabbitmq/amqp091-go"
)

// Disposition is how a delivery was settled
type Disposition string

const (
	DispositionAck    Disposition = "ack"
	DispositionNack   Disposition = "nack"
	DispositionReject Disposition = "reject"
)

// Publisher sends an encoded payload under a routing key
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// Applier persists stage writes
type Applier interface {
	Apply(ctx context.Context, writes ...storage.Write) error
}

// Guard marks a page as in flight so concurrent duplicates are dropped
type Guard interface {
	Acquire(ctx context.Context, key string) (*lock.Lease, error)
	Release(ctx context.Context, lease *lock.Lease) error
}

// Executor dispatches deliveries to stage functions
type Executor struct {
	handlers  map[task.Stage]stage.Func
	store     Applier
	publisher Publisher
	guard     Guard
	logger    *slog.Logger
}

// Option configures an Executor
type Option func(*Executor)

// WithGuard enables the in-flight duplicate guard
func WithGuard(g Guard) Option {
	return func(e *Executor) {
		e.guard = g
	}
}

// WithLogger sets the base logger
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// New creates an executor over a stage table
func New(handlers map[task.Stage]stage.Func, store Applier, publisher Publisher, opts ...Option) *Executor {
	e := &Executor{
		handlers:  handlers,
		store:     store,
		publisher: publisher,
		logger:    logging.GetLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handler returns the delivery handler for a stage queue
func (e *Executor) Handler(s task.Stage) func(ctx context.Context, msg amqp091.Delivery) {
	return func(ctx context.Context, msg amqp091.Delivery) {
		e.Handle(ctx, s, msg)
	}
}

// Handle processes one delivery of stage s and settles it. Errors never
// escape: a failing message must not stop the consumer.
func (e *Executor) Handle(ctx context.Context, s task.Stage, msg amqp091.Delivery) Disposition {
	start := time.Now()

	ctx = logging.ContextWithMessageID(ctx, msg.MessageId)
	ctx = logging.ContextWithStage(ctx, string(s))
	ctx = logging.ContextWithLogger(ctx, e.logger)
	logger := logging.EnrichLogger(ctx, e.logger)

	status, err := e.run(ctx, s, msg.Body)
	disposition := dispositionFor(err)

	result := status.String()
	switch disposition {
	case DispositionAck:
		logger.Info("Message processed", "status", result, "duration", time.Since(start))
	case DispositionNack:
		result = "retry"
		logger.Warn("Message failed, requeueing", "error", err, "redelivered", msg.Redelivered)
		monitoring.RecordError(errors.GetErrorCode(err), string(s))
	case DispositionReject:
		result = "rejected"
		logger.Error("Message rejected to dead-letter", "error", err)
		monitoring.RecordError(errors.GetErrorCode(err), string(s))
	}

	if settleErr := settle(msg, disposition); settleErr != nil {
		logger.Error("Failed to settle message", "disposition", disposition, "error", settleErr)
	}

	monitoring.RecordStage(string(s), result, time.Since(start))
	monitoring.RecordDisposition(s.Queue(), string(disposition), time.Since(start))
	return disposition
}

func (e *Executor) run(ctx context.Context, s task.Stage, body []byte) (task.Status, error) {
	payload, err := task.Decode(body)
	if err != nil {
		return task.StatusSkipped, err
	}
	if err := payload.Validate(); err != nil {
		return task.StatusSkipped, err
	}

	handler, ok := e.handlers[s]
	if !ok {
		return task.StatusSkipped, errors.ErrUnknownStage.WithMessage("no handler for stage %q", s)
	}

	if e.guard != nil {
		lease, err := e.guard.Acquire(ctx, lock.Key(string(s), storage.RecordID(payload.PageURL)))
		switch {
		case err != nil:
			logging.L(ctx).Warn("In-flight guard unavailable, processing without it", "error", err)
		case lease == nil:
			logging.L(ctx).Info("Page already in flight, skipping duplicate", "page_url", payload.PageURL)
			return task.StatusSkipped, nil
		default:
			defer func() {
				if err := e.guard.Release(context.WithoutCancel(ctx), lease); err != nil {
					logging.L(ctx).Warn("Failed to release in-flight guard", "error", err)
				}
			}()
		}
	}

	out, err := handler(ctx, payload)
	if err != nil {
		return task.StatusSkipped, err
	}

	if err := e.store.Apply(ctx, out.Writes...); err != nil {
		return out.Status, err
	}

	for _, next := range out.Next {
		data, err := next.Payload.Encode()
		if err != nil {
			return out.Status, errors.ErrMalformedMessage.WithCause(err)
		}
		if err := e.publisher.Publish(ctx, next.Stage.RoutingKey(), data); err != nil {
			return out.Status, errors.ErrBrokerFailed.WithCause(err)
		}
	}

	return out.Status, nil
}

// dispositionFor maps a stage error onto a broker decision. Recoverable
// failures are redelivered; everything else goes to the dead-letter queue.
func dispositionFor(err error) Disposition {
	switch {
	case err == nil:
		return DispositionAck
	case errors.IsRecoverable(err):
		return DispositionNack
	default:
		return DispositionReject
	}
}

func settle(msg amqp091.Delivery, d Disposition) error {
	switch d {
	case DispositionAck:
		return msg.Ack(false)
	case DispositionNack:
		return msg.Nack(false, true)
	default:
		return msg.Reject(false)
	}
}
