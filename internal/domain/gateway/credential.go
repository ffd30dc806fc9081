package gateway

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/edupay/edupay/internal/domain/payment"
)

// Credential holds the externally managed configuration for one gateway.
// It is read-only to this service.
type Credential struct {
	ID            uuid.UUID       `json:"id"`
	Gateway       payment.Gateway `json:"gateway"`
	Active        bool            `json:"active"`
	SecretKey     string          `json:"-"`
	PublicKey     string          `json:"public_key"`
	WebhookSecret string          `json:"-"`
	Currencies    []string        `json:"currencies"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// SupportsCurrency checks if the credential accepts the given ISO 4217 code
func (c *Credential) SupportsCurrency(currency string) bool {
	return slices.Contains(c.Currencies, currency)
}

// CredentialProvider resolves the currently active credential for a gateway.
// Absence of an active credential is reported as ErrNotConfigured and must
// fail fast, before any network call.
type CredentialProvider interface {
	Active(ctx context.Context, gw payment.Gateway) (*Credential, error)
}
