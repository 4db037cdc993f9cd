package backend

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// envelope is the backend's response wrapper. Some routes answer with the
// bare payload, in which case Success is nil and the whole body is the data.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apiError       `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// User is the signed-in backend account.
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	CreatedAt    string `json:"createdAt"`
	LastSignInAt string `json:"lastSignInAt,omitempty"`
}

type authResponse struct {
	User        User   `json:"user"`
	AccessToken string `json:"accessToken"`
}

// Price is the last traded price of one outcome token.
type Price struct {
	Market    string    `json:"market"`
	TokenID   string    `json:"tokenId"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

type apiPrice struct {
	Market    string    `json:"market"`
	AssetID   string    `json:"asset_id"`
	Price     flexFloat `json:"price"`
	Timestamp int64     `json:"timestamp"`
}

func (p apiPrice) toPrice(tokenID string) Price {
	out := Price{Market: p.Market, TokenID: p.AssetID, Price: float64(p.Price)}
	if out.TokenID == "" {
		out.TokenID = tokenID
	}
	if p.Timestamp > 0 {
		// Milliseconds when the value is too large to be seconds.
		if p.Timestamp > 1e12 {
			out.Timestamp = time.UnixMilli(p.Timestamp).UTC()
		} else {
			out.Timestamp = time.Unix(p.Timestamp, 0).UTC()
		}
	}
	return out
}

// flexStrings decodes a JSON array of strings or numbers, or a string holding
// such an array. Anything unparseable decodes to an empty list.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = nil
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(strings.TrimSpace(s))
		if len(data) == 0 {
			*f = nil
			return nil
		}
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		*f = nil
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			out = append(out, s)
			continue
		}
		out = append(out, string(bytes.TrimSpace(r)))
	}
	*f = out
	return nil
}

// flexFloat decodes a JSON number or a numeric string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*f = 0
		return nil
	}
	n, _ = strconv.ParseFloat(strings.TrimSpace(s), 64)
	*f = flexFloat(n)
	return nil
}

// flexBool decodes a JSON bool or "true"/"false".
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*f = false
		return nil
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// apiMarket is a market as served by the backend.
type apiMarket struct {
	ID            string      `json:"id"`
	Question      string      `json:"question"`
	ConditionID   string      `json:"conditionId"`
	Slug          string      `json:"slug"`
	Outcomes      flexStrings `json:"outcomes"`
	OutcomePrices flexStrings `json:"outcomePrices"`
	ClobTokenIDs  flexStrings `json:"clobTokenIds"`
	NegRisk       flexBool    `json:"negRisk"`
	Active        flexBool    `json:"active"`
	Closed        flexBool    `json:"closed"`
	Volume        flexFloat   `json:"volume"`
	Image         string      `json:"image"`
}

func (m apiMarket) toDomain() domain.Market {
	prices := make([]float64, 0, len(m.OutcomePrices))
	for _, p := range m.OutcomePrices {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			v = 0
		}
		prices = append(prices, v)
	}
	return domain.Market{
		ID:            m.ID,
		Question:      m.Question,
		Slug:          m.Slug,
		ConditionID:   m.ConditionID,
		Outcomes:      []string(m.Outcomes),
		OutcomePrices: prices,
		TokenIDs:      []string(m.ClobTokenIDs),
		NegRisk:       bool(m.NegRisk),
		Active:        bool(m.Active),
		Closed:        bool(m.Closed),
		Volume:        float64(m.Volume),
		Image:         m.Image,
	}
}
