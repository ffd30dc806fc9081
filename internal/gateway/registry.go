// Package gatewayreg wires the per-provider adapters behind a single
// resolver keyed by gateway type.
package gatewayreg

import (
	"fmt"

	"github.com/edupay/edupay/internal/domain/gateway"
	"github.com/edupay/edupay/internal/domain/payment"
	"github.com/edupay/edupay/internal/gateway/flutterwave"
	"github.com/edupay/edupay/internal/gateway/paystack"
	"github.com/edupay/edupay/internal/gateway/stripe"
)

// Config holds per-adapter construction options
type Config struct {
	Paystack    paystack.Config
	Flutterwave flutterwave.Config
	Stripe      stripe.Config
}

// Registry resolves adapters for gateway types. Adapters are stateless and
// constructed once; each holds the shared CredentialProvider.
type Registry struct {
	adapters map[payment.Gateway]gateway.Adapter
}

// New creates a registry with all supported adapters
func New(creds gateway.CredentialProvider, cfg Config) *Registry {
	return &Registry{
		adapters: map[payment.Gateway]gateway.Adapter{
			payment.GatewayPaystack:    paystack.New(creds, cfg.Paystack),
			payment.GatewayFlutterwave: flutterwave.New(creds, cfg.Flutterwave),
			payment.GatewayStripe:      stripe.New(creds, cfg.Stripe),
		},
	}
}

// Adapter returns the adapter for the given gateway type
func (r *Registry) Adapter(gw payment.Gateway) (gateway.Adapter, error) {
	adapter, ok := r.adapters[gw]
	if !ok {
		return nil, fmt.Errorf("%w: %s", gateway.ErrNotConfigured, gw)
	}
	return adapter, nil
}
