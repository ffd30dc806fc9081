package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the status of a payment
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
)

// Terminal reports whether no further transition is expected from s,
// except for the single completed -> refunded edge.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// CanTransitionTo reports whether the transition s -> next is legal.
// Pending may move to any of the three first-level terminal statuses;
// completed may additionally move to refunded. Nothing else is allowed.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusCompleted || next == StatusFailed || next == StatusCancelled
	case StatusCompleted:
		return next == StatusRefunded
	default:
		return false
	}
}

// Gateway represents the payment gateway
type Gateway string

const (
	GatewayPaystack    Gateway = "paystack"
	GatewayFlutterwave Gateway = "flutterwave"
	GatewayStripe      Gateway = "stripe"
)

// Method represents the payment instrument
type Method string

const (
	MethodCard         Method = "card"
	MethodUSSD         Method = "ussd"
	MethodBankTransfer Method = "bank_transfer"
	MethodMobileMoney  Method = "mobile_money"
)

// ResourceType identifies what a payment grants access to
type ResourceType string

const (
	ResourceCourse  ResourceType = "course"
	ResourceBatch   ResourceType = "batch"
	ResourceProgram ResourceType = "program"
)

// Payment represents a learner payment attempt
type Payment struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	ResourceType  ResourceType    `json:"resource_type"`
	ResourceID    uuid.UUID       `json:"resource_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Gateway       Gateway         `json:"gateway"`
	Method        Method          `json:"method"`
	Status        Status          `json:"status"`
	Reference     string          `json:"reference"`
	CustomerEmail string          `json:"customer_email,omitempty"`
	PhoneNumber   string          `json:"phone_number,omitempty"`
	PollingActive bool            `json:"polling_active"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	FailedAt      *time.Time      `json:"failed_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NewPayment creates a new pending payment
func NewPayment(userID uuid.UUID, resourceType ResourceType, resourceID uuid.UUID, amount decimal.Decimal, currency string, gw Gateway, method Method) *Payment {
	now := time.Now()
	return &Payment{
		ID:            uuid.New(),
		UserID:        userID,
		ResourceType:  resourceType,
		ResourceID:    resourceID,
		Amount:        amount,
		Currency:      currency,
		Gateway:       gw,
		Method:        method,
		Status:        StatusPending,
		PollingActive: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// AttachReference records the gateway correlation id. It is assigned exactly
// once, at initiation, and is the idempotency key for all later updates.
func (p *Payment) AttachReference(ref string) {
	p.Reference = ref
	p.UpdatedAt = time.Now()
}

// IsPending checks if the payment is still awaiting confirmation
func (p *Payment) IsPending() bool {
	return p.Status == StatusPending
}

// IsCompleted checks if the payment has been confirmed
func (p *Payment) IsCompleted() bool {
	return p.Status == StatusCompleted
}

// Repository defines the payment repository interface
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	GetByReference(ctx context.Context, ref string) (*Payment, error)
	ListPollingActive(ctx context.Context) ([]*Payment, error)

	// CompareAndSetStatus atomically moves the payment from expected to next
	// and clears polling_active. It returns true iff the payment's status was
	// still expected at update time; a false return means another writer won
	// the race. This is the sole correctness mechanism against concurrent
	// webhook/poll delivery.
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, expected, next Status, at time.Time) (bool, error)
}
