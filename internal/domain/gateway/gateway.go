package gateway

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/edupay/edupay/internal/domain/payment"
)

// State is the canonical normalized result of a provider call or event
type State string

const (
	StateSuccess State = "success"
	StateFailed  State = "failed"
	StatePending State = "pending"
)

// Instructions holds the client-facing next step returned at initiation.
// Which fields are set depends on the payment method.
type Instructions struct {
	RedirectURL   string `json:"redirect_url,omitempty"`
	USSDCode      string `json:"ussd_code,omitempty"`
	BankName      string `json:"bank_name,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	AccountName   string `json:"account_name,omitempty"`
	Carrier       string `json:"carrier,omitempty"`
	DisplayText   string `json:"display_text,omitempty"`
}

// InitiateResult holds the outcome of creating a remote transaction
type InitiateResult struct {
	Reference    string          `json:"reference"`
	Instructions Instructions    `json:"instructions"`
	Raw          json.RawMessage `json:"raw,omitempty"`
}

// VerifyResult holds the provider's current view of a transaction
type VerifyResult struct {
	State  State           `json:"state"`
	Amount decimal.Decimal `json:"amount"`
	Raw    json.RawMessage `json:"raw,omitempty"`
}

// RefundResult holds the outcome of a refund call
type RefundResult struct {
	RefundID string          `json:"refund_id"`
	State    State           `json:"state"`
	Raw      json.RawMessage `json:"raw,omitempty"`
}

// EventKind is the closed set of webhook event kinds. Provider event-type
// strings are decoded into this set at the boundary and matched exhaustively
// thereafter; anything unknown maps to EventUnrecognized.
type EventKind string

const (
	EventSuccess        EventKind = "success"
	EventFailure        EventKind = "failure"
	EventRefundDone     EventKind = "refund-processed"
	EventDisputeCreated EventKind = "dispute-created"
	EventUnrecognized   EventKind = "unrecognized"
)

// Event is a verified, parsed webhook notification
type Event struct {
	Kind      EventKind       `json:"kind"`
	Reference string          `json:"reference"`
	EventID   string          `json:"event_id"`
	RawType   string          `json:"raw_type"`
	Raw       json.RawMessage `json:"raw"`
}

// Adapter translates domain payment requests into provider wire calls and
// normalizes provider responses and events. Adapters are constructed once per
// gateway, hold their own bound HTTP client, and resolve the active credential
// through an explicit CredentialProvider before any network call.
type Adapter interface {
	// Name returns the gateway this adapter speaks for
	Name() payment.Gateway

	// Initialize creates a remote transaction and returns client-facing
	// instructions plus the gateway correlation id.
	Initialize(ctx context.Context, p *payment.Payment) (*InitiateResult, error)

	// Verify asks the provider for the current status of a transaction
	Verify(ctx context.Context, reference string) (*VerifyResult, error)

	// Refund refunds a completed payment, fully or partially
	Refund(ctx context.Context, p *payment.Payment, amount decimal.Decimal) (*RefundResult, error)

	// SignatureHeader returns the HTTP header carrying the webhook signature
	SignatureHeader() string

	// VerifyWebhook authenticates a raw webhook body against its signature
	VerifyWebhook(ctx context.Context, body []byte, signature string) error

	// ParseWebhook decodes a verified body into the closed event set
	ParseWebhook(body []byte) (*Event, error)

	// SupportsMethod checks if the adapter can process the given instrument
	SupportsMethod(method payment.Method) bool
}

// Provider resolves the adapter for a requested gateway type
type Provider interface {
	Adapter(gw payment.Gateway) (Adapter, error)
}
