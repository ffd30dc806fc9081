package paystack

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCarrierFromPhone(t *testing.T) {
	tests := []struct {
		name  string
		phone string
		want  string
	}{
		{"international mtn", "+2348031234567", "mtn"},
		{"local airtel", "08021234567", "airtel"},
		{"local glo", "08051234567", "glo"},
		{"local 9mobile", "08091234567", "9mobile"},
		{"unmapped prefix", "07001234567", "unknown"},
		{"formatted with spaces", "+234 803 123 4567", "mtn"},
		{"formatted with dashes", "0805-123-4567", "glo"},
		{"too short", "08", "unknown"},
		{"empty", "", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CarrierFromPhone(tt.phone))
		})
	}
}
