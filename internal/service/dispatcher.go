package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/edupay/edupay/internal/domain/enrollment"
	"github.com/edupay/edupay/internal/domain/payment"
)

// TemplatePaymentConfirmation names the notification sent after a payment
// completes. Rendering happens in the notification collaborator.
const TemplatePaymentConfirmation = "payment_confirmation"

// Dispatcher runs the side effects of a completed payment: activating the
// enrollment and enqueuing a confirmation notification. It is invoked only
// from the winning compare-and-set transition, so effects run at most once
// per payment; the enrollment upsert is idempotent as a second line of
// defense.
type Dispatcher struct {
	enrollments enrollment.Repository
	notifier    enrollment.Notifier
	logger      *slog.Logger
}

// NewDispatcher creates a completion dispatcher
func NewDispatcher(enrollments enrollment.Repository, notifier enrollment.Notifier, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		enrollments: enrollments,
		notifier:    notifier,
		logger:      logger,
	}
}

// Dispatch grants access and enqueues the confirmation. An enrollment
// failure is returned; a notification failure is logged and swallowed so it
// cannot block the payment from being usable.
func (d *Dispatcher) Dispatch(ctx context.Context, p *payment.Payment) error {
	e, err := d.enrollments.CreateOrActivate(ctx, p.UserID, p.ResourceType, p.ResourceID)
	if err != nil {
		return fmt.Errorf("activate enrollment: %w", err)
	}

	d.logger.Info("enrollment activated",
		"payment_id", p.ID,
		"enrollment_id", e.ID,
		"user_id", p.UserID,
		"resource_type", p.ResourceType,
		"resource_id", p.ResourceID,
	)

	if err := d.notifier.Enqueue(ctx, p.UserID, TemplatePaymentConfirmation, p); err != nil {
		d.logger.Error("notification enqueue failed",
			"payment_id", p.ID,
			"user_id", p.UserID,
			"error", err,
		)
	}

	return nil
}
