package worker

import (
	"context"
	"errors"
	"time"

	"shopping-assistant/internal/broker"
	"shopping-assistant/internal/service"
	"shopping-assistant/internal/util"

	"github.com/cenkalti/backoff/v5"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageSource delivers broker messages to a handler until the context ends
type MessageSource interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// ReservationAuditWorker consumes reservation events and writes them to the reservation log
type ReservationAuditWorker struct {
	source       MessageSource
	eventHandler *broker.EventHandler
	newBackOff   func() backoff.BackOff
	logger       *zap.Logger
}

// NewReservationAuditWorker creates a new reservation audit worker
func NewReservationAuditWorker(source MessageSource, audit *service.AuditService) *ReservationAuditWorker {
	logger := util.GetLogger()
	eventHandler := broker.NewEventHandler(logger)

	eventHandler.OnReservationCommitted(audit.HandleReservationCommitted)
	eventHandler.OnReservationRejected(audit.HandleReservationRejected)

	return &ReservationAuditWorker{
		source:       source,
		eventHandler: eventHandler,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 30 * time.Second
			return b
		},
		logger: logger,
	}
}

// Start blocks consuming events until ctx is cancelled
func (w *ReservationAuditWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting reservation audit worker")
	return w.source.StartConsuming(ctx, w.handle)
}

// Stop stops the worker
func (w *ReservationAuditWorker) Stop() error {
	w.logger.Info("Stopping reservation audit worker")
	return w.source.Close()
}

// handle retries a failing event until it is audited or ctx ends, so the
// message is never committed past a lost log entry. Malformed events are skipped.
func (w *ReservationAuditWorker) handle(ctx context.Context, msg kafka.Message) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := w.eventHandler.HandleMessage(ctx, msg)
		if errors.Is(err, broker.ErrMalformedEvent) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(w.newBackOff()),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			w.logger.Warn("Auditing reservation event failed, retrying",
				zap.Int64("offset", msg.Offset),
				zap.Duration("retry_in", next),
				zap.Error(err))
		}),
	)

	if errors.Is(err, broker.ErrMalformedEvent) {
		w.logger.Error("Skipping malformed reservation event",
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
		return nil
	}
	return err
}
