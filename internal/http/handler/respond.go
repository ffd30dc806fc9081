package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/edupay/edupay/internal/domain/payment"
	"github.com/edupay/edupay/internal/http/dto"
)

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, dto.ErrorResponse{
		Error:   code,
		Message: message,
	})
}

// toPaymentResponse maps a payment entity to its API representation
func toPaymentResponse(p *payment.Payment) dto.PaymentResponse {
	return dto.PaymentResponse{
		ID:           p.ID,
		UserID:       p.UserID,
		ResourceType: string(p.ResourceType),
		ResourceID:   p.ResourceID,
		Amount:       p.Amount.String(),
		Currency:     p.Currency,
		Gateway:      string(p.Gateway),
		Method:       string(p.Method),
		Status:       string(p.Status),
		Reference:    p.Reference,
		CompletedAt:  p.CompletedAt,
		FailedAt:     p.FailedAt,
		CreatedAt:    p.CreatedAt,
	}
}

// formatValidationErrors formats validation errors
func formatValidationErrors(errs validator.ValidationErrors) string {
	if len(errs) == 0 {
		return "Validation failed"
	}

	// Report the first failure only; the client fixes one field at a time.
	err := errs[0]
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "email":
		return err.Field() + " must be a valid email"
	case "oneof":
		return err.Field() + " has an unsupported value"
	case "len":
		return err.Field() + " has the wrong length"
	case "max":
		return err.Field() + " is too long"
	default:
		return err.Field() + " is invalid"
	}
}
