package gateway

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		amount string
		want   int64
	}{
		{"99.99", 9999},
		{"100", 10000},
		{"0.01", 1},
		{"15000.00", 1500000},
		{"10.999", 1099}, // sub-cent precision truncates, never rounds up
		{"0", 0},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.want, MinorUnits(decimal.RequireFromString(tt.amount)))
		})
	}
}

func TestFromMinorUnits(t *testing.T) {
	assert.True(t, decimal.RequireFromString("99.99").Equal(FromMinorUnits(9999)))
	assert.True(t, decimal.RequireFromString("0.01").Equal(FromMinorUnits(1)))
	assert.True(t, decimal.Zero.Equal(FromMinorUnits(0)))
}

func TestMinorUnitsRoundTrip(t *testing.T) {
	amount := decimal.RequireFromString("99.99")
	assert.True(t, amount.Equal(FromMinorUnits(MinorUnits(amount))))
}
