package service

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

func TestNewQuote(t *testing.T) {
	tests := []struct {
		amount     string
		priceCents float64
		shares     string
		ret        string
		cents      int64
	}{
		{"50", 65, "76.92", "26.92", 65},
		{"10", 50, "20", "10", 50},
		{"1", 33.5, "2.99", "1.99", 34},
		{"100", 99, "101.01", "1.01", 99},
		{"25", 100, "25", "0", 100},
	}
	for _, tt := range tests {
		t.Run(tt.amount+"@"+decimal.NewFromFloat(tt.priceCents).String(), func(t *testing.T) {
			q, err := NewQuote(decimal.RequireFromString(tt.amount), tt.priceCents)
			require.NoError(t, err)
			assert.Equal(t, tt.shares, q.Shares.String())
			assert.Equal(t, tt.ret, q.PotentialReturn.String())
			assert.Equal(t, tt.cents, q.PriceCents)
		})
	}
}

func TestNewQuoteKeepsFullPrecisionPrice(t *testing.T) {
	q, err := NewQuote(decimal.NewFromInt(10), 65.5)
	require.NoError(t, err)
	assert.Equal(t, "0.655", q.Price.String())
	assert.Equal(t, int64(66), q.PriceCents)
}

func TestNewQuoteRejectsBadPrice(t *testing.T) {
	for _, cents := range []float64{0, -5, 101, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := NewQuote(decimal.NewFromInt(10), cents)
		require.ErrorIs(t, err, domain.ErrInvalidOrderParams)
	}
}

func TestParseAmount(t *testing.T) {
	for _, bad := range []string{"", "abc", "0", "-1", "NaN", "Inf"} {
		_, err := ParseAmount(bad)
		require.ErrorIs(t, err, domain.ErrInvalidAmount, bad)
	}
	a, err := ParseAmount(" 50.5 ")
	require.NoError(t, err)
	assert.Equal(t, "50.5", a.String())
}
