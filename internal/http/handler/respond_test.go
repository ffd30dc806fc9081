package handler

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Email  string `validate:"required,email"`
	Amount string `validate:"required"`
}

func validationErrors(t *testing.T, req sampleRequest) validator.ValidationErrors {
	t.Helper()
	err := validator.New().Struct(req)
	require.Error(t, err)
	return err.(validator.ValidationErrors)
}

func TestFormatValidationErrorsReportsFirstFailure(t *testing.T) {
	errs := validationErrors(t, sampleRequest{})
	assert.Equal(t, "Email is required", formatValidationErrors(errs))
}

func TestFormatValidationErrorsTagMessages(t *testing.T) {
	errs := validationErrors(t, sampleRequest{Email: "not-an-email", Amount: "10"})
	assert.Equal(t, "Email must be a valid email", formatValidationErrors(errs))
}

func TestFormatValidationErrorsEmpty(t *testing.T) {
	assert.Equal(t, "Validation failed", formatValidationErrors(nil))
}
