package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/edupay/edupay/internal/domain/gateway"
)

// CreatePaymentRequest represents the request to initiate a payment
type CreatePaymentRequest struct {
	UserID        uuid.UUID `json:"user_id" validate:"required"`
	ResourceType  string    `json:"resource_type" validate:"required,oneof=course batch program"`
	ResourceID    uuid.UUID `json:"resource_id" validate:"required"`
	Amount        string    `json:"amount" validate:"required"`
	Currency      string    `json:"currency" validate:"required,len=3,uppercase"`
	Gateway       string    `json:"gateway" validate:"required,oneof=paystack flutterwave stripe"`
	Method        string    `json:"method" validate:"required,oneof=card ussd bank_transfer mobile_money"`
	CustomerEmail string    `json:"customer_email,omitempty" validate:"omitempty,email,max=255"`
	PhoneNumber   string    `json:"phone_number,omitempty" validate:"omitempty,max=20"`
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID           uuid.UUID             `json:"id"`
	UserID       uuid.UUID             `json:"user_id"`
	ResourceType string                `json:"resource_type"`
	ResourceID   uuid.UUID             `json:"resource_id"`
	Amount       string                `json:"amount"`
	Currency     string                `json:"currency"`
	Gateway      string                `json:"gateway"`
	Method       string                `json:"method"`
	Status       string                `json:"status"`
	Reference    string                `json:"reference"`
	Instructions *gateway.Instructions `json:"instructions,omitempty"`
	CompletedAt  *time.Time            `json:"completed_at,omitempty"`
	FailedAt     *time.Time            `json:"failed_at,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
}

// RefundRequest represents an admin refund request. Amount is optional;
// when absent the full payment amount is refunded.
type RefundRequest struct {
	Amount string `json:"amount,omitempty"`
}

// PaymentLogResponse represents one audit log entry
type PaymentLogResponse struct {
	ID           uuid.UUID `json:"id"`
	Source       string    `json:"source"`
	Kind         string    `json:"kind"`
	Status       string    `json:"status"`
	RefundID     string    `json:"refund_id,omitempty"`
	RefundAmount string    `json:"refund_amount,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
