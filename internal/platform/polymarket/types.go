package polymarket

import (
	"encoding/json"
	"strings"
)

// apiKeyResponse is returned by both /auth/derive-api-key and /auth/api-key.
type apiKeyResponse struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// signedOrderJSON is the wire shape of a signed order inside POST /order.
type signedOrderJSON struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Side          string `json:"side"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

// postOrderRequest is the POST /order body. Owner is the API key, not the
// maker address.
type postOrderRequest struct {
	Order     signedOrderJSON `json:"order"`
	Owner     string          `json:"owner"`
	OrderType string          `json:"orderType"`
}

type cancelOrderRequest struct {
	OrderID string `json:"orderID"`
}

// cancelResponse lists which order ids were cancelled and why others were not.
type cancelResponse struct {
	Canceled    []string          `json:"canceled"`
	NotCanceled map[string]string `json:"not_canceled"`
}

// errorBody covers the error shapes the CLOB returns on non-2xx responses.
type errorBody struct {
	Error    string `json:"error"`
	ErrorMsg string `json:"errorMsg"`
	Message  string `json:"message"`
}

// remoteMessage extracts the human-readable error text from a response body,
// falling back to the raw body.
func remoteMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		for _, m := range []string{eb.Error, eb.ErrorMsg, eb.Message} {
			if m = strings.TrimSpace(m); m != "" {
				return m
			}
		}
	}
	s := strings.TrimSpace(string(body))
	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "<") {
		return ""
	}
	return s
}
