package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/edupay/edupay/internal/domain/payment"
)

// ChannelNotifications carries enqueued notification jobs for the external
// notification worker.
const ChannelNotifications = "payments:notifications"

// PubSub provides Redis pub/sub functionality
type PubSub struct {
	client *redis.Client
	logger *slog.Logger
}

// NewPubSub creates a new Redis pub/sub client
func NewPubSub(client *redis.Client, logger *slog.Logger) *PubSub {
	return &PubSub{
		client: client,
		logger: logger,
	}
}

// Publish publishes a message to a channel
func (p *PubSub) Publish(ctx context.Context, channel string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	p.logger.Debug("published message", "channel", channel)
	return nil
}

// NotificationJob is the payload handed to the notification collaborator.
// Rendering and delivery happen outside this service.
type NotificationJob struct {
	UserID     uuid.UUID `json:"user_id"`
	Template   string    `json:"template"`
	PaymentID  uuid.UUID `json:"payment_id"`
	Reference  string    `json:"reference"`
	Amount     string    `json:"amount"`
	Currency   string    `json:"currency"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Enqueue implements enrollment.Notifier by publishing a notification job.
// Delivery and retry are the subscriber's responsibility.
func (p *PubSub) Enqueue(ctx context.Context, userID uuid.UUID, template string, pay *payment.Payment) error {
	job := NotificationJob{
		UserID:     userID,
		Template:   template,
		PaymentID:  pay.ID,
		Reference:  pay.Reference,
		Amount:     pay.Amount.String(),
		Currency:   pay.Currency,
		EnqueuedAt: time.Now(),
	}
	return p.Publish(ctx, ChannelNotifications, job)
}
