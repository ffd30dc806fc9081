package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/edupay/edupay/internal/domain/gateway"
	"github.com/edupay/edupay/internal/domain/payment"
)

// PaymentService owns the payment lifecycle: initiation, the guarded status
// transition path shared by webhook, poll, direct and refund sources, and
// refund processing.
type PaymentService struct {
	payments   payment.Repository
	logs       payment.LogRepository
	gateways   gateway.Provider
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	payments payment.Repository,
	logs payment.LogRepository,
	gateways gateway.Provider,
	dispatcher *Dispatcher,
	logger *slog.Logger,
) *PaymentService {
	return &PaymentService{
		payments:   payments,
		logs:       logs,
		gateways:   gateways,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// InitiateParams holds parameters for starting a payment
type InitiateParams struct {
	UserID        uuid.UUID
	ResourceType  payment.ResourceType
	ResourceID    uuid.UUID
	Amount        decimal.Decimal
	Currency      string
	Gateway       payment.Gateway
	Method        payment.Method
	CustomerEmail string
	PhoneNumber   string
}

// InitiateResult holds the persisted payment and the client instructions
type InitiateResult struct {
	Payment      *payment.Payment
	Instructions gateway.Instructions
}

// Initiate creates a remote transaction with the configured gateway and
// persists the payment as pending with the gateway's correlation id.
// Configuration and provider errors are surfaced to the caller; this is the
// only path (besides refunds) that does so.
func (s *PaymentService) Initiate(ctx context.Context, params InitiateParams) (*InitiateResult, error) {
	adapter, err := s.gateways.Adapter(params.Gateway)
	if err != nil {
		return nil, err
	}
	if !adapter.SupportsMethod(params.Method) {
		return nil, fmt.Errorf("%w: %s via %s", gateway.ErrUnsupportedMethod, params.Method, params.Gateway)
	}

	p := payment.NewPayment(params.UserID, params.ResourceType, params.ResourceID,
		params.Amount, params.Currency, params.Gateway, params.Method)
	p.CustomerEmail = params.CustomerEmail
	p.PhoneNumber = params.PhoneNumber

	res, err := adapter.Initialize(ctx, p)
	if err != nil {
		return nil, err
	}

	p.AttachReference(res.Reference)
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("persist payment: %w", err)
	}

	s.logger.Info("payment initiated",
		"payment_id", p.ID,
		"gateway", p.Gateway,
		"method", p.Method,
		"reference", p.Reference,
		"amount", p.Amount.String(),
		"currency", p.Currency,
	)

	return &InitiateResult{Payment: p, Instructions: res.Instructions}, nil
}

// ApplyInput is one status update arriving from any notification source
type ApplyInput struct {
	Reference    string
	Status       payment.Status
	Raw          json.RawMessage
	Source       payment.Source
	RefundID     string
	RefundAmount decimal.Decimal
}

// Apply is the guarded state-machine entry point shared by all sources.
// Every input is absorbed safely: unknown references are logged and ignored,
// duplicates and conflicts are recorded in the audit log without mutation,
// and concurrent writers are serialized by the repository's compare-and-set.
// The returned payment reflects the state after the update, or nil when the
// reference is unknown.
func (s *PaymentService) Apply(ctx context.Context, in ApplyInput) (*payment.Payment, error) {
	p, err := s.payments.GetByReference(ctx, in.Reference)
	if err != nil {
		if errors.Is(err, payment.ErrNotFound) {
			// Foreign or stale references are expected from webhooks/polls.
			s.logger.Warn("update for unknown payment reference ignored",
				"reference", in.Reference,
				"status", in.Status,
				"source", in.Source,
			)
			return nil, nil
		}
		return nil, err
	}

	for {
		if p.Status == in.Status {
			return p, s.appendLog(ctx, p, in, payment.LogDuplicate)
		}
		if !p.Status.CanTransitionTo(in.Status) {
			s.logger.Warn("conflicting status update rejected",
				"payment_id", p.ID,
				"current", p.Status,
				"incoming", in.Status,
				"source", in.Source,
			)
			return p, s.appendLog(ctx, p, in, payment.LogConflict)
		}

		now := time.Now()
		ok, err := s.payments.CompareAndSetStatus(ctx, p.ID, p.Status, in.Status, now)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Another writer won the race; reload and absorb as duplicate
			// or conflict against the status it installed.
			p, err = s.payments.GetByID(ctx, p.ID)
			if err != nil {
				return nil, err
			}
			continue
		}

		p.Status = in.Status
		p.PollingActive = false
		switch in.Status {
		case payment.StatusCompleted:
			p.CompletedAt = &now
		case payment.StatusFailed, payment.StatusCancelled:
			p.FailedAt = &now
		}

		if err := s.appendLog(ctx, p, in, payment.LogApplied); err != nil {
			return p, err
		}

		s.logger.Info("payment status transition applied",
			"payment_id", p.ID,
			"status", p.Status,
			"source", in.Source,
		)

		if in.Status == payment.StatusCompleted {
			// The compare-and-set succeeds exactly once, so this runs at
			// most once per payment.
			if err := s.dispatcher.Dispatch(ctx, p); err != nil {
				s.logger.Error("completion side effects failed",
					"payment_id", p.ID,
					"error", err,
				)
			}
		}

		return p, nil
	}
}

// ApplyVerifyResult feeds a normalized adapter verify result through the
// guarded path. Pending results are not transitions and are ignored.
func (s *PaymentService) ApplyVerifyResult(ctx context.Context, reference string, res *gateway.VerifyResult, source payment.Source) (*payment.Payment, error) {
	switch res.State {
	case gateway.StateSuccess:
		return s.Apply(ctx, ApplyInput{Reference: reference, Status: payment.StatusCompleted, Raw: res.Raw, Source: source})
	case gateway.StateFailed:
		return s.Apply(ctx, ApplyInput{Reference: reference, Status: payment.StatusFailed, Raw: res.Raw, Source: source})
	default:
		return nil, nil
	}
}

// Cancel abandons a still-pending payment through the guarded path.
// Cancelling an already-cancelled payment is a no-op; cancelling any other
// settled payment is rejected.
func (s *PaymentService) Cancel(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != payment.StatusCancelled && !p.Status.CanTransitionTo(payment.StatusCancelled) {
		return nil, fmt.Errorf("%w: %s -> cancelled", payment.ErrIllegalTransition, p.Status)
	}
	return s.Apply(ctx, ApplyInput{
		Reference: p.Reference,
		Status:    payment.StatusCancelled,
		Source:    payment.SourceDirect,
	})
}

// Requery asks the gateway directly for the payment's status and applies
// the result through the guarded path with a direct source tag.
func (s *PaymentService) Requery(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	adapter, err := s.gateways.Adapter(p.Gateway)
	if err != nil {
		return nil, err
	}

	res, err := adapter.Verify(ctx, p.Reference)
	if err != nil {
		return nil, err
	}

	updated, err := s.ApplyVerifyResult(ctx, p.Reference, res, payment.SourceDirect)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return p, nil
	}
	return updated, nil
}

// Refund refunds a completed payment through the gateway and moves it to
// refunded via the guarded path. A nil amount refunds the full original
// amount. Legal only from completed; this is the one non-initiation path
// that returns errors to its caller.
func (s *PaymentService) Refund(ctx context.Context, id uuid.UUID, amount *decimal.Decimal) (*payment.Payment, error) {
	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsCompleted() {
		return nil, fmt.Errorf("%w: status is %s", payment.ErrNotRefundable, p.Status)
	}

	refundAmount := p.Amount
	if amount != nil {
		refundAmount = *amount
	}
	if !refundAmount.IsPositive() {
		return nil, fmt.Errorf("%w: refund amount must be positive", payment.ErrNotRefundable)
	}

	refunded, err := s.logs.SumRefunds(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if refundAmount.Add(refunded).GreaterThan(p.Amount) {
		return nil, fmt.Errorf("%w: amount exceeds refundable balance", payment.ErrNotRefundable)
	}

	adapter, err := s.gateways.Adapter(p.Gateway)
	if err != nil {
		return nil, err
	}

	res, err := adapter.Refund(ctx, p, refundAmount)
	if err != nil {
		return nil, err
	}
	if res.State == gateway.StateFailed {
		return nil, fmt.Errorf("refund rejected by %s", p.Gateway)
	}

	return s.Apply(ctx, ApplyInput{
		Reference:    p.Reference,
		Status:       payment.StatusRefunded,
		Raw:          res.Raw,
		Source:       payment.SourceRefund,
		RefundID:     res.RefundID,
		RefundAmount: refundAmount,
	})
}

// GetByID returns a payment by id
func (s *PaymentService) GetByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	return s.payments.GetByID(ctx, id)
}

// Logs returns the audit trail for a payment
func (s *PaymentService) Logs(ctx context.Context, id uuid.UUID) ([]*payment.Log, error) {
	return s.logs.ListByPayment(ctx, id)
}

func (s *PaymentService) appendLog(ctx context.Context, p *payment.Payment, in ApplyInput, kind payment.LogKind) error {
	log := payment.NewLog(p.ID, in.Source, kind, in.Status, in.Raw)
	log.RefundID = in.RefundID
	log.RefundAmount = in.RefundAmount
	if err := s.logs.Append(ctx, log); err != nil {
		return fmt.Errorf("append payment log: %w", err)
	}
	return nil
}
