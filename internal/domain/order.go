package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// ParseOrderSide accepts BUY/SELL in any case.
func ParseOrderSide(s string) (OrderSide, bool) {
	switch OrderSide(strings.ToUpper(strings.TrimSpace(s))) {
	case OrderSideBuy:
		return OrderSideBuy, true
	case OrderSideSell:
		return OrderSideSell, true
	}
	return "", false
}

// OrderType indicates the time-in-force policy.
type OrderType string

const (
	OrderTypeGTC OrderType = "GTC" // Good-Till-Cancelled
	OrderTypeGTD OrderType = "GTD" // Good-Till-Date
	OrderTypeFOK OrderType = "FOK" // Fill-Or-Kill
	OrderTypeFAK OrderType = "FAK" // Fill-And-Kill
)

// OrderRequest is a single limit order as handed to the exchange client.
type OrderRequest struct {
	TokenID string
	Price   decimal.Decimal // [0,1]
	Size    decimal.Decimal // shares, > 0
	Side    OrderSide
	Type    OrderType
	NegRisk bool
}

// OrderReceipt is the exchange's response to an order post, passed through
// unchanged.
type OrderReceipt struct {
	Success            bool     `json:"success"`
	ErrorMsg           string   `json:"errorMsg"`
	OrderID            string   `json:"orderID"`
	Status             string   `json:"status"`
	TransactionsHashes []string `json:"transactionsHashes,omitempty"`
	TakingAmount       string   `json:"takingAmount,omitempty"`
	MakingAmount       string   `json:"makingAmount,omitempty"`
}

// OpenOrder is an order as reported by the exchange.
type OpenOrder struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Market       string `json:"market"`
	AssetID      string `json:"asset_id"`
	Side         string `json:"side"`
	OriginalSize string `json:"original_size"`
	SizeMatched  string `json:"size_matched"`
	Price        string `json:"price"`
	Outcome      string `json:"outcome"`
	OrderType    string `json:"order_type"`
	MakerAddress string `json:"maker_address"`
	Owner        string `json:"owner"`
	CreatedAt    int64  `json:"created_at"`
}
