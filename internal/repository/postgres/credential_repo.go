package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edupay/edupay/internal/domain/gateway"
	"github.com/edupay/edupay/internal/domain/payment"
)

// CredentialRepository resolves gateway credentials from PostgreSQL.
// Credentials are managed externally; this repository is read-only.
type CredentialRepository struct {
	pool *pgxpool.Pool
}

// NewCredentialRepository creates a new credential repository
func NewCredentialRepository(pool *pgxpool.Pool) *CredentialRepository {
	return &CredentialRepository{pool: pool}
}

// Active returns the currently active credential for a gateway, or
// gateway.ErrNotConfigured when none exists.
func (r *CredentialRepository) Active(ctx context.Context, gw payment.Gateway) (*gateway.Credential, error) {
	query := `
		SELECT id, gateway, active, secret_key, public_key, webhook_secret, currencies, updated_at
		FROM gateway_credentials
		WHERE gateway = $1 AND active
		ORDER BY updated_at DESC
		LIMIT 1
	`

	var cred gateway.Credential
	var gwName string

	err := r.pool.QueryRow(ctx, query, string(gw)).Scan(
		&cred.ID,
		&gwName,
		&cred.Active,
		&cred.SecretKey,
		&cred.PublicKey,
		&cred.WebhookSecret,
		&cred.Currencies,
		&cred.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", gateway.ErrNotConfigured, gw)
		}
		return nil, fmt.Errorf("get active credential: %w", err)
	}

	cred.Gateway = payment.Gateway(gwName)
	return &cred, nil
}
