package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/edupay/edupay/internal/domain/gateway"
	"github.com/edupay/edupay/internal/domain/payment"
	"github.com/edupay/edupay/internal/http/dto"
	"github.com/edupay/edupay/internal/service"
)

// watcher is the slice of the poller the handlers need
type watcher interface {
	Watch(p *payment.Payment)
	Cancel(paymentID uuid.UUID)
}

// PaymentHandler handles payment HTTP requests
type PaymentHandler struct {
	paymentService *service.PaymentService
	poller         watcher
	validator      *validator.Validate
	logger         *slog.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(
	paymentService *service.PaymentService,
	poller watcher,
	validator *validator.Validate,
	logger *slog.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		poller:         poller,
		validator:      validator,
		logger:         logger,
	}
}

// Create handles POST /api/v1/payments
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreatePaymentRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		validationErrors := err.(validator.ValidationErrors)
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", formatValidationErrors(validationErrors))
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		respondError(w, http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be a positive decimal")
		return
	}

	result, err := h.paymentService.Initiate(r.Context(), service.InitiateParams{
		UserID:        req.UserID,
		ResourceType:  payment.ResourceType(req.ResourceType),
		ResourceID:    req.ResourceID,
		Amount:        amount,
		Currency:      req.Currency,
		Gateway:       payment.Gateway(req.Gateway),
		Method:        payment.Method(req.Method),
		CustomerEmail: req.CustomerEmail,
		PhoneNumber:   req.PhoneNumber,
	})
	if err != nil {
		h.respondInitiateError(w, err)
		return
	}

	h.poller.Watch(result.Payment)

	response := toPaymentResponse(result.Payment)
	response.Instructions = &result.Instructions

	respondJSON(w, http.StatusCreated, response)
}

// GetByID handles GET /api/v1/payments/{id}
func (h *PaymentHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Invalid payment ID")
		return
	}

	p, err := h.paymentService.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, payment.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Payment not found")
			return
		}
		h.logger.Error("failed to fetch payment", "payment_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "FETCH_FAILED", "Failed to fetch payment")
		return
	}

	respondJSON(w, http.StatusOK, toPaymentResponse(p))
}

// Cancel handles POST /api/v1/payments/{id}/cancel
func (h *PaymentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Invalid payment ID")
		return
	}

	p, err := h.paymentService.Cancel(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrNotFound):
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Payment not found")
		case errors.Is(err, payment.ErrIllegalTransition):
			respondError(w, http.StatusConflict, "NOT_CANCELLABLE", err.Error())
		default:
			h.logger.Error("failed to cancel payment", "payment_id", id, "error", err)
			respondError(w, http.StatusInternalServerError, "CANCEL_FAILED", "Failed to cancel payment")
		}
		return
	}

	if p.Status != payment.StatusCancelled {
		// A webhook settled the payment between the check and the apply
		respondError(w, http.StatusConflict, "NOT_CANCELLABLE", "Payment is already "+string(p.Status))
		return
	}

	h.poller.Cancel(p.ID)

	respondJSON(w, http.StatusOK, toPaymentResponse(p))
}

// respondInitiateError maps initiation failures to HTTP status codes
func (h *PaymentHandler) respondInitiateError(w http.ResponseWriter, err error) {
	var reqErr *gateway.RequestError

	switch {
	case errors.Is(err, gateway.ErrUnsupportedMethod):
		respondError(w, http.StatusBadRequest, "UNSUPPORTED_METHOD", err.Error())
	case errors.Is(err, gateway.ErrUnsupportedCurrency):
		respondError(w, http.StatusBadRequest, "UNSUPPORTED_CURRENCY", err.Error())
	case errors.Is(err, gateway.ErrNotConfigured):
		h.logger.Error("payment initiation rejected, gateway not configured", "error", err)
		respondError(w, http.StatusServiceUnavailable, "GATEWAY_NOT_CONFIGURED", "Payment gateway is not available")
	case errors.As(err, &reqErr):
		h.logger.Error("gateway rejected payment initiation",
			"gateway", reqErr.Gateway,
			"status_code", reqErr.StatusCode,
			"error", err,
		)
		respondError(w, http.StatusBadGateway, "GATEWAY_ERROR", "Payment gateway rejected the request")
	default:
		h.logger.Error("failed to initiate payment", "error", err)
		respondError(w, http.StatusInternalServerError, "CREATE_FAILED", "Failed to initiate payment")
	}
}
