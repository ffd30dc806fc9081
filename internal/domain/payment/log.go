package payment

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Source identifies which notification path produced a status update
type Source string

const (
	SourceWebhook Source = "webhook"
	SourcePoll    Source = "poll"
	SourceDirect  Source = "direct"
	SourceRefund  Source = "refund"
)

// LogKind classifies the outcome of applying an update
type LogKind string

const (
	LogApplied   LogKind = "applied"
	LogDuplicate LogKind = "ignored-duplicate"
	LogConflict  LogKind = "conflict"
)

// Log is an append-only audit record of every status update that reached the
// state machine, including the ones it absorbed. Logs are never mutated or
// deleted.
type Log struct {
	ID           uuid.UUID       `json:"id"`
	PaymentID    uuid.UUID       `json:"payment_id"`
	Source       Source          `json:"source"`
	Kind         LogKind         `json:"kind"`
	Status       Status          `json:"status"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	RefundID     string          `json:"refund_id,omitempty"`
	RefundAmount decimal.Decimal `json:"refund_amount,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// NewLog creates a new audit log entry
func NewLog(paymentID uuid.UUID, source Source, kind LogKind, status Status, payload json.RawMessage) *Log {
	return &Log{
		ID:        uuid.New(),
		PaymentID: paymentID,
		Source:    source,
		Kind:      kind,
		Status:    status,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}

// LogRepository defines the append-only payment log store
type LogRepository interface {
	Append(ctx context.Context, log *Log) error
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]*Log, error)

	// SumRefunds totals the refund amounts recorded for a payment. The domain
	// model has no partial-refund sub-state; remaining-refundable accounting
	// is derived from the log instead of Payment.Status.
	SumRefunds(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error)
}
