package polymarket

import (
	"testing"

	"github.com/polymarket/go-order-utils/pkg/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

func TestOrderAmounts(t *testing.T) {
	tests := []struct {
		name      string
		side      domain.OrderSide
		price     string
		size      string
		wantMaker string
		wantTaker string
	}{
		{"buy gives usdc", domain.OrderSideBuy, "0.65", "76.92", "49998000", "76920000"},
		{"sell gives shares", domain.OrderSideSell, "0.65", "76.92", "76920000", "49998000"},
		{"size truncated to cents", domain.OrderSideBuy, "0.5", "10.129", "5060000", "10120000"},
		{"full precision price", domain.OrderSideBuy, "0.655", "100", "65500000", "100000000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			maker, taker, err := orderAmounts(tt.side, decimal.RequireFromString(tt.price), decimal.RequireFromString(tt.size))
			require.NoError(t, err)
			assert.Equal(t, tt.wantMaker, maker)
			assert.Equal(t, tt.wantTaker, taker)
		})
	}
}

func TestOrderAmountsRejectsDust(t *testing.T) {
	_, _, err := orderAmounts(domain.OrderSideBuy, decimal.RequireFromString("0.5"), decimal.RequireFromString("0.004"))
	require.ErrorIs(t, err, domain.ErrInvalidOrderParams)
	assert.Equal(t, "Size must be at least 0.01", domain.UserMessage(err))
}

func TestBuildOrderData(t *testing.T) {
	req := domain.OrderRequest{
		TokenID: "42",
		Price:   decimal.RequireFromString("0.4"),
		Size:    decimal.RequireFromString("5"),
		Side:    domain.OrderSideSell,
		NegRisk: true,
	}
	data, contract, err := buildOrderData(req, "", "0xSigner", 2)
	require.NoError(t, err)
	assert.Equal(t, model.NegRiskCTFExchange, contract)
	assert.Equal(t, "0xSigner", data.Maker, "maker defaults to signer without a funder")
	assert.Equal(t, model.SELL, data.Side)
	assert.Equal(t, zeroAddress, data.Taker)
	assert.Equal(t, "5000000", data.MakerAmount)
	assert.Equal(t, "2000000", data.TakerAmount)
}

func TestToSignedOrderJSON(t *testing.T) {
	signer := newTestSigner(t)
	data, contract, err := buildOrderData(buyOrder(), "", signer.Address().Hex(), 0)
	require.NoError(t, err)
	signed, err := signer.SignOrder(data, contract)
	require.NoError(t, err)

	j := toSignedOrderJSON(signed)
	assert.Equal(t, "BUY", j.Side)
	assert.Equal(t, "1234", j.TokenID)
	assert.Equal(t, "5000000", j.MakerAmount)
	assert.Equal(t, "10000000", j.TakerAmount)
	assert.Equal(t, signer.Address().Hex(), j.Maker)
	assert.Equal(t, "0", j.FeeRateBps)
	assert.Regexp(t, "^0x[0-9a-f]{130}$", j.Signature)
}
