package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/edupay/edupay/internal/domain/gateway"
	"github.com/edupay/edupay/internal/domain/payment"
	"github.com/edupay/edupay/internal/http/dto"
	"github.com/edupay/edupay/internal/service"
)

// AdminHandler handles operator payment actions
type AdminHandler struct {
	paymentService *service.PaymentService
	poller         watcher
	logger         *slog.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(paymentService *service.PaymentService, poller watcher, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		paymentService: paymentService,
		poller:         poller,
		logger:         logger,
	}
}

// Refund handles POST /api/v1/admin/payments/{id}/refund
func (h *AdminHandler) Refund(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Invalid payment ID")
		return
	}

	var amount *decimal.Decimal
	var req dto.RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if req.Amount != "" {
		parsed, err := decimal.NewFromString(req.Amount)
		if err != nil || !parsed.IsPositive() {
			respondError(w, http.StatusBadRequest, "INVALID_AMOUNT", "Refund amount must be a positive decimal")
			return
		}
		amount = &parsed
	}

	p, err := h.paymentService.Refund(r.Context(), id, amount)
	if err != nil {
		h.respondRefundError(w, id, err)
		return
	}

	respondJSON(w, http.StatusOK, toPaymentResponse(p))
}

// Requery handles POST /api/v1/admin/payments/{id}/requery
func (h *AdminHandler) Requery(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Invalid payment ID")
		return
	}

	p, err := h.paymentService.Requery(r.Context(), id)
	if err != nil {
		if errors.Is(err, payment.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Payment not found")
			return
		}
		h.logger.Error("requery failed", "payment_id", id, "error", err)
		respondError(w, http.StatusBadGateway, "REQUERY_FAILED", "Gateway status check failed")
		return
	}

	if !p.IsPending() {
		h.poller.Cancel(p.ID)
	}

	respondJSON(w, http.StatusOK, toPaymentResponse(p))
}

// Logs handles GET /api/v1/admin/payments/{id}/logs
func (h *AdminHandler) Logs(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Invalid payment ID")
		return
	}

	if _, err := h.paymentService.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, payment.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Payment not found")
			return
		}
		h.logger.Error("failed to fetch payment", "payment_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "FETCH_FAILED", "Failed to fetch payment")
		return
	}

	logs, err := h.paymentService.Logs(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to fetch payment logs", "payment_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "FETCH_FAILED", "Failed to fetch payment logs")
		return
	}

	responses := make([]dto.PaymentLogResponse, len(logs))
	for i, l := range logs {
		responses[i] = dto.PaymentLogResponse{
			ID:        l.ID,
			Source:    string(l.Source),
			Kind:      string(l.Kind),
			Status:    string(l.Status),
			RefundID:  l.RefundID,
			CreatedAt: l.CreatedAt,
		}
		if !l.RefundAmount.IsZero() {
			responses[i].RefundAmount = l.RefundAmount.String()
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"payment_id": id,
		"logs":       responses,
	})
}

// respondRefundError maps refund failures to HTTP status codes
func (h *AdminHandler) respondRefundError(w http.ResponseWriter, id uuid.UUID, err error) {
	var reqErr *gateway.RequestError

	switch {
	case errors.Is(err, payment.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Payment not found")
	case errors.Is(err, payment.ErrNotRefundable):
		respondError(w, http.StatusConflict, "NOT_REFUNDABLE", err.Error())
	case errors.As(err, &reqErr):
		h.logger.Error("gateway rejected refund",
			"payment_id", id,
			"gateway", reqErr.Gateway,
			"status_code", reqErr.StatusCode,
			"error", err,
		)
		respondError(w, http.StatusBadGateway, "GATEWAY_ERROR", "Payment gateway rejected the refund")
	default:
		h.logger.Error("refund failed", "payment_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "REFUND_FAILED", "Failed to process refund")
	}
}
