package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/edupay/edupay/internal/domain/gateway"
	"github.com/edupay/edupay/internal/domain/payment"
)

// CredentialCache decorates a gateway.CredentialProvider with a short-lived
// Redis cache so that webhook bursts do not hammer the credentials table.
// A cache failure falls through to the underlying provider.
type CredentialCache struct {
	next   gateway.CredentialProvider
	cache  *Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCredentialCache creates a caching credential provider
func NewCredentialCache(next gateway.CredentialProvider, cache *Cache, ttl time.Duration, logger *slog.Logger) *CredentialCache {
	return &CredentialCache{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

// Active resolves the active credential, preferring the cache
func (c *CredentialCache) Active(ctx context.Context, gw payment.Gateway) (*gateway.Credential, error) {
	key := CredentialKey(string(gw))

	var cached credentialRecord
	err := c.cache.Get(ctx, key, &cached)
	if err == nil {
		return cached.toCredential(gw), nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn("credential cache read failed", "gateway", gw, "error", err)
	}

	cred, err := c.next.Active(ctx, gw)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, key, fromCredential(cred), c.ttl); err != nil {
		c.logger.Warn("credential cache write failed", "gateway", gw, "error", err)
	}

	return cred, nil
}

// credentialRecord is the cached form; secrets round-trip through Redis so
// the struct carries them explicitly rather than relying on the domain
// type's redacted JSON encoding.
type credentialRecord struct {
	SecretKey     string   `json:"secret_key"`
	PublicKey     string   `json:"public_key"`
	WebhookSecret string   `json:"webhook_secret"`
	Currencies    []string `json:"currencies"`
}

func fromCredential(cred *gateway.Credential) credentialRecord {
	return credentialRecord{
		SecretKey:     cred.SecretKey,
		PublicKey:     cred.PublicKey,
		WebhookSecret: cred.WebhookSecret,
		Currencies:    cred.Currencies,
	}
}

func (r credentialRecord) toCredential(gw payment.Gateway) *gateway.Credential {
	return &gateway.Credential{
		Gateway:       gw,
		Active:        true,
		SecretKey:     r.SecretKey,
		PublicKey:     r.PublicKey,
		WebhookSecret: r.WebhookSecret,
		Currencies:    r.Currencies,
	}
}
