package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/edupay/edupay/internal/domain/gateway"
	"github.com/edupay/edupay/internal/domain/payment"
	redisRepo "github.com/edupay/edupay/internal/repository/redis"
	"github.com/edupay/edupay/internal/service"
)

// maxWebhookBody bounds webhook payload size
const maxWebhookBody = 1 << 20

// WebhookHandler receives and authenticates provider webhooks. Verified
// events flow into the payment state machine; everything the machine absorbs
// still gets a 200 so providers stop retrying.
type WebhookHandler struct {
	paymentService *service.PaymentService
	gateways       gateway.Provider
	cache          *redisRepo.Cache
	dedupTTL       time.Duration
	poller         watcher
	logger         *slog.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(
	paymentService *service.PaymentService,
	gateways gateway.Provider,
	cache *redisRepo.Cache,
	dedupTTL time.Duration,
	poller watcher,
	logger *slog.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		paymentService: paymentService,
		gateways:       gateways,
		cache:          cache,
		dedupTTL:       dedupTTL,
		poller:         poller,
		logger:         logger,
	}
}

// Handle returns the webhook endpoint for one gateway
func (h *WebhookHandler) Handle(gw payment.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adapter, err := h.gateways.Adapter(gw)
		if err != nil {
			h.logger.Error("webhook for unconfigured gateway", "gateway", gw, "error", err)
			respondError(w, http.StatusNotFound, "UNKNOWN_GATEWAY", "Unknown gateway")
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			respondError(w, http.StatusBadRequest, "READ_FAILED", "Failed to read request body")
			return
		}

		signature := r.Header.Get(adapter.SignatureHeader())
		if err := adapter.VerifyWebhook(r.Context(), body, signature); err != nil {
			if errors.Is(err, gateway.ErrSignatureInvalid) {
				h.logger.Warn("webhook signature rejected", "gateway", gw)
				respondError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "Webhook signature verification failed")
				return
			}
			h.logger.Error("webhook verification failed", "gateway", gw, "error", err)
			respondError(w, http.StatusInternalServerError, "VERIFY_FAILED", "Webhook verification failed")
			return
		}

		event, err := adapter.ParseWebhook(body)
		if err != nil {
			h.logger.Warn("webhook body unparseable", "gateway", gw, "error", err)
			respondError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "Webhook payload could not be parsed")
			return
		}

		h.process(w, r, gw, event)
	}
}

func (h *WebhookHandler) process(w http.ResponseWriter, r *http.Request, gw payment.Gateway, event *gateway.Event) {
	ctx := r.Context()

	if event.Kind == gateway.EventUnrecognized {
		h.logger.Info("unrecognized webhook event ignored",
			"gateway", gw,
			"raw_type", event.RawType,
		)
		respondJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	// Fast-path dedupe on the provider's event id. The state machine's
	// duplicate absorption still covers deliveries without one.
	if event.EventID != "" {
		fresh, err := h.cache.SetNX(ctx, redisRepo.WebhookEventKey(string(gw), event.EventID), time.Now().Unix(), h.dedupTTL)
		if err != nil {
			h.logger.Warn("webhook dedupe check failed", "gateway", gw, "error", err)
		} else if !fresh {
			respondJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
			return
		}
	}

	var next payment.Status
	switch event.Kind {
	case gateway.EventSuccess:
		next = payment.StatusCompleted
	case gateway.EventFailure:
		next = payment.StatusFailed
	case gateway.EventRefundDone:
		next = payment.StatusRefunded
	case gateway.EventDisputeCreated:
		// Disputes have no state-machine edge; surface them for operators.
		h.logger.Warn("dispute opened on payment",
			"gateway", gw,
			"reference", event.Reference,
		)
		respondJSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
		return
	}

	p, err := h.paymentService.Apply(ctx, service.ApplyInput{
		Reference: event.Reference,
		Status:    next,
		Raw:       event.Raw,
		Source:    payment.SourceWebhook,
	})
	if err != nil {
		h.logger.Error("failed to apply webhook event",
			"gateway", gw,
			"reference", event.Reference,
			"error", err,
		)
		respondError(w, http.StatusInternalServerError, "APPLY_FAILED", "Failed to process webhook")
		return
	}

	if p != nil && !p.IsPending() {
		h.poller.Cancel(p.ID)
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
