package payment

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{"pending to completed", StatusPending, StatusCompleted, true},
		{"pending to failed", StatusPending, StatusFailed, true},
		{"pending to cancelled", StatusPending, StatusCancelled, true},
		{"pending to refunded", StatusPending, StatusRefunded, false},
		{"completed to refunded", StatusCompleted, StatusRefunded, true},
		{"completed to failed", StatusCompleted, StatusFailed, false},
		{"completed to cancelled", StatusCompleted, StatusCancelled, false},
		{"completed to pending", StatusCompleted, StatusPending, false},
		{"failed to completed", StatusFailed, StatusCompleted, false},
		{"failed to refunded", StatusFailed, StatusRefunded, false},
		{"cancelled to completed", StatusCancelled, StatusCompleted, false},
		{"refunded to completed", StatusRefunded, StatusCompleted, false},
		{"refunded to refunded", StatusRefunded, StatusRefunded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.True(t, StatusRefunded.Terminal())
}

func TestNewPayment(t *testing.T) {
	userID := uuid.New()
	resourceID := uuid.New()
	amount := decimal.RequireFromString("15000.00")

	p := NewPayment(userID, ResourceCourse, resourceID, amount, "NGN", GatewayPaystack, MethodUSSD)

	require.NotEqual(t, uuid.Nil, p.ID)
	assert.Equal(t, StatusPending, p.Status)
	assert.True(t, p.PollingActive)
	assert.Empty(t, p.Reference)
	assert.True(t, amount.Equal(p.Amount))
	assert.Nil(t, p.CompletedAt)
	assert.Nil(t, p.FailedAt)
}

func TestAttachReference(t *testing.T) {
	p := NewPayment(uuid.New(), ResourceBatch, uuid.New(), decimal.NewFromInt(100), "NGN", GatewayPaystack, MethodCard)

	p.AttachReference("PSK-abc123")

	assert.Equal(t, "PSK-abc123", p.Reference)
}
