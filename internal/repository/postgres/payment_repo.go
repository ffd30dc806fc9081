package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edupay/edupay/internal/domain/payment"
)

// PaymentRepository implements payment.Repository using PostgreSQL
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

const paymentColumns = `
	id, user_id, resource_type, resource_id, amount, currency, gateway, method,
	status, reference, customer_email, phone_number, polling_active,
	completed_at, failed_at, created_at, updated_at
`

// Create persists a new pending payment
func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := r.pool.Exec(ctx, query,
		p.ID,
		p.UserID,
		string(p.ResourceType),
		p.ResourceID,
		p.Amount,
		p.Currency,
		string(p.Gateway),
		string(p.Method),
		string(p.Status),
		p.Reference,
		p.CustomerEmail,
		p.PhoneNumber,
		p.PollingActive,
		p.CompletedAt,
		p.FailedAt,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create payment: %w", err)
	}

	return nil
}

// GetByID gets a payment by ID
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	return r.scanPayment(r.pool.QueryRow(ctx, query, id))
}

// GetByReference gets a payment by its gateway correlation id
func (r *PaymentRepository) GetByReference(ctx context.Context, ref string) (*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE reference = $1`

	return r.scanPayment(r.pool.QueryRow(ctx, query, ref))
}

// ListPollingActive lists payments still awaiting confirmation, used for
// poll task recovery at startup
func (r *PaymentRepository) ListPollingActive(ctx context.Context) ([]*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE polling_active ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list polling active payments: %w", err)
	}
	defer rows.Close()

	payments := make([]*payment.Payment, 0)
	for rows.Next() {
		p, err := r.scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}

	return payments, rows.Err()
}

// CompareAndSetStatus performs the conditional update that guards all
// concurrent status transitions. The WHERE clause on the current status is
// the single-writer-wins gate; zero rows affected means another writer won.
func (r *PaymentRepository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, expected, next payment.Status, at time.Time) (bool, error) {
	query := `
		UPDATE payments
		SET status = $3,
		    polling_active = false,
		    completed_at = CASE WHEN $3 = 'completed' THEN $4 ELSE completed_at END,
		    failed_at = CASE WHEN $3 IN ('failed', 'cancelled') THEN $4 ELSE failed_at END,
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	result, err := r.pool.Exec(ctx, query, id, string(expected), string(next), at)
	if err != nil {
		return false, fmt.Errorf("compare-and-set payment status: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PaymentRepository) scanPayment(row rowScanner) (*payment.Payment, error) {
	var p payment.Payment
	var resourceType, gw, method, status string

	err := row.Scan(
		&p.ID,
		&p.UserID,
		&resourceType,
		&p.ResourceID,
		&p.Amount,
		&p.Currency,
		&gw,
		&method,
		&status,
		&p.Reference,
		&p.CustomerEmail,
		&p.PhoneNumber,
		&p.PollingActive,
		&p.CompletedAt,
		&p.FailedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrNotFound
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}

	p.ResourceType = payment.ResourceType(resourceType)
	p.Gateway = payment.Gateway(gw)
	p.Method = payment.Method(method)
	p.Status = payment.Status(status)

	return &p, nil
}
