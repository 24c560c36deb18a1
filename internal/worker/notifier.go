// Package worker holds the background consumers that run outside the API
// process.
package worker

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/time/rate"

	"saldo/internal/amqp"
	"saldo/internal/log"
	"saldo/internal/sheets"
)

// DeliveryLog remembers which alerts were already forwarded so redelivered
// events are not written twice.
type DeliveryLog interface {
	Delivered(ctx context.Context, alertID string) (bool, error)
	MarkDelivered(ctx context.Context, alertID, kind string) (bool, error)
}

// AlertConsumer is the subscription side of the alert event stream.
type AlertConsumer interface {
	ConsumeAlerts(ctx context.Context, handler func(context.Context, *amqp.AlertMessage) error) error
}

// Notifier appends every alert event to the spreadsheet alert log.
type Notifier struct {
	deliveries DeliveryLog
	sheet      sheets.AlertWriter
	limiter    *rate.Limiter
	logger     *log.Logger

	processed atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64
}

// Stats counts handled events since start.
type Stats struct {
	Processed int64
	Skipped   int64
	Failed    int64
}

// NewNotifier builds a notifier. writesPerMinute bounds the spreadsheet
// write rate; 0 disables the limit.
func NewNotifier(deliveries DeliveryLog, sheet sheets.AlertWriter, writesPerMinute int, logger *log.Logger) *Notifier {
	if logger == nil {
		logger = log.Discard()
	}
	limit := rate.Inf
	if writesPerMinute > 0 {
		limit = rate.Limit(float64(writesPerMinute) / 60.0)
	}
	return &Notifier{
		deliveries: deliveries,
		sheet:      sheet,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger.WithComponent(log.ComponentWorker),
	}
}

// Run consumes events until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context, consumer AlertConsumer) error {
	n.logger.InfoContext(ctx, "Notifier started")
	err := consumer.ConsumeAlerts(ctx, n.HandleAlertMessage)
	n.logger.InfoContext(ctx, "Notifier stopped",
		"processed", n.processed.Load(),
		"skipped", n.skipped.Load(),
		"failed", n.failed.Load())
	return err
}

// HandleAlertMessage forwards one alert event. Events already delivered are
// acknowledged without writing. A returned error requeues the event.
func (n *Notifier) HandleAlertMessage(ctx context.Context, msg *amqp.AlertMessage) error {
	a := msg.Alert()
	logger := n.logger.With(log.FieldID, a.ID, log.FieldAlertKind, string(a.Kind))

	done, err := n.deliveries.Delivered(ctx, a.ID)
	if err != nil {
		n.failed.Add(1)
		return fmt.Errorf("check delivery: %w", err)
	}
	if done {
		n.skipped.Add(1)
		logger.DebugContext(ctx, "Alert already delivered, skipping")
		return nil
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for sheet quota: %w", err)
	}

	ref, err := n.sheet.AppendAlert(ctx, a)
	if err != nil {
		n.failed.Add(1)
		return fmt.Errorf("append alert to sheet: %w", err)
	}

	if _, err := n.deliveries.MarkDelivered(ctx, a.ID, string(a.Kind)); err != nil {
		// The row is written; a redelivery may duplicate it.
		logger.ErrorContext(ctx, "Failed to record alert delivery", log.FieldError, err)
	}

	n.processed.Add(1)
	logger.InfoContext(ctx, "Alert delivered", "sheet_ref", ref)
	return nil
}

func (n *Notifier) Stats() Stats {
	return Stats{
		Processed: n.processed.Load(),
		Skipped:   n.skipped.Load(),
		Failed:    n.failed.Load(),
	}
}
