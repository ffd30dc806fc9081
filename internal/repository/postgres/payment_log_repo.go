package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/edupay/edupay/internal/domain/payment"
)

// PaymentLogRepository implements payment.LogRepository using PostgreSQL.
// The payment_logs table is append-only; there is no update or delete path.
type PaymentLogRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentLogRepository creates a new payment log repository
func NewPaymentLogRepository(pool *pgxpool.Pool) *PaymentLogRepository {
	return &PaymentLogRepository{pool: pool}
}

// Append appends an audit log entry
func (r *PaymentLogRepository) Append(ctx context.Context, log *payment.Log) error {
	query := `
		INSERT INTO payment_logs (
			id, payment_id, source, kind, status, payload, refund_id, refund_amount, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		log.ID,
		log.PaymentID,
		string(log.Source),
		string(log.Kind),
		string(log.Status),
		[]byte(log.Payload),
		log.RefundID,
		log.RefundAmount,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append payment log: %w", err)
	}

	return nil
}

// ListByPayment lists the audit trail for a payment, oldest first
func (r *PaymentLogRepository) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]*payment.Log, error) {
	query := `
		SELECT id, payment_id, source, kind, status, payload, refund_id, refund_amount, created_at
		FROM payment_logs
		WHERE payment_id = $1
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query, paymentID)
	if err != nil {
		return nil, fmt.Errorf("list payment logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*payment.Log, 0)
	for rows.Next() {
		var log payment.Log
		var source, kind, status string

		err := rows.Scan(
			&log.ID,
			&log.PaymentID,
			&source,
			&kind,
			&status,
			&log.Payload,
			&log.RefundID,
			&log.RefundAmount,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan payment log: %w", err)
		}

		log.Source = payment.Source(source)
		log.Kind = payment.LogKind(kind)
		log.Status = payment.Status(status)
		logs = append(logs, &log)
	}

	return logs, rows.Err()
}

// SumRefunds totals recorded refund amounts for a payment
func (r *PaymentLogRepository) SumRefunds(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(refund_amount), 0)
		FROM payment_logs
		WHERE payment_id = $1 AND source = 'refund' AND kind = 'applied'
	`

	var total decimal.Decimal
	if err := r.pool.QueryRow(ctx, query, paymentID).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("sum refunds: %w", err)
	}

	return total, nil
}
