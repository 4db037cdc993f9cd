package domain

// PriceLevel is a single price+size entry in an orderbook, kept as the
// exchange's decimal strings.
type PriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// OrderBook is a snapshot of bids and asks for one outcome token.
type OrderBook struct {
	Market    string       `json:"market"`
	AssetID   string       `json:"asset_id"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp string       `json:"timestamp"`
	Hash      string       `json:"hash,omitempty"`
}
