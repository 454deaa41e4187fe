package services

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
		{"1250.50", 125050},
		{"0", 0},
		{"19.999", 2000},
		{"0.005", 1},
		{"0.3", 30},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.want, MinorUnits(decimal.RequireFromString(tt.amount)))
		})
	}

	sum := decimal.NewFromFloat(0.1).Add(decimal.NewFromFloat(0.2))
	assert.Equal(t, int64(30), MinorUnits(sum))
}

func TestPresent(t *testing.T) {
	assert.Equal(t, 1250.5, Present(decimal.RequireFromString("1250.50")))
	assert.Equal(t, 10.01, Present(decimal.RequireFromString("10.005")))
}
