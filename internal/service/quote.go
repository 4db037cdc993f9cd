package service

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)

	errBadPrice = &domain.ValidationError{Kind: domain.ErrInvalidOrderParams, Message: "Price must be between 0.00 and 1.00"}
)

// Quote is what an amount buys at a price, as shown on the ticket.
type Quote struct {
	// PriceCents is the display price, rounded to a whole cent.
	PriceCents int64 `json:"priceCents"`
	// Price is the exchange price in [0,1] at full precision.
	Price           decimal.Decimal `json:"price"`
	Shares          decimal.Decimal `json:"shares"`
	PotentialReturn decimal.Decimal `json:"potentialReturn"`
}

// ParseAmount reads a ticket amount. It must be a positive finite number.
func ParseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, domain.ErrInvalidAmount
	}
	return amount, nil
}

// NewQuote converts a USDC amount at priceCents into shares and the profit
// if the outcome resolves in the holder's favour. Shares and return are
// rounded half away from zero to two decimals; the return is computed from
// unrounded shares.
func NewQuote(amount decimal.Decimal, priceCents float64) (Quote, error) {
	if !amount.IsPositive() {
		return Quote{}, domain.ErrInvalidAmount
	}
	if math.IsNaN(priceCents) || math.IsInf(priceCents, 0) {
		return Quote{}, errBadPrice
	}
	cents := decimal.NewFromFloat(priceCents)
	price := cents.Div(hundred)
	if !price.IsPositive() || price.GreaterThan(one) {
		return Quote{}, errBadPrice
	}

	shares := amount.DivRound(price, 16)
	return Quote{
		PriceCents:      cents.Round(0).IntPart(),
		Price:           price,
		Shares:          shares.Round(2),
		PotentialReturn: shares.Mul(one.Sub(price)).Round(2),
	}, nil
}
