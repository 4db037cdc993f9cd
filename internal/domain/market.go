package domain

import "strings"

// Outcome selects one side of a binary market.
type Outcome string

const (
	OutcomeYes Outcome = "yes"
	OutcomeNo  Outcome = "no"
)

// Market represents a Polymarket prediction market as served by the backend.
type Market struct {
	ID            string    `json:"id"`
	Question      string    `json:"question"`
	Slug          string    `json:"slug"`
	ConditionID   string    `json:"conditionId"`
	Outcomes      []string  `json:"outcomes"`      // e.g. ["Yes","No"]
	OutcomePrices []float64 `json:"outcomePrices"` // decimal prices in [0,1]
	TokenIDs      []string  `json:"clobTokenIds"`  // ERC-1155 token IDs
	NegRisk       bool      `json:"negRisk"`
	Active        bool      `json:"active"`
	Closed        bool      `json:"closed"`
	Volume        float64   `json:"volume"`
	Image         string    `json:"image,omitempty"`
}

// Outcome returns the token id and the display price in cents for outcome.
// The second outcome is treated as "no" when labels are not Yes/No.
func (m Market) Outcome(o Outcome) (tokenID string, priceCents float64, ok bool) {
	idx := -1
	for i, name := range m.Outcomes {
		if strings.EqualFold(name, string(o)) {
			idx = i
			break
		}
	}
	if idx < 0 {
		switch o {
		case OutcomeYes:
			idx = 0
		case OutcomeNo:
			idx = 1
		}
	}
	if idx < 0 || idx >= len(m.TokenIDs) {
		return "", 0, false
	}
	if idx < len(m.OutcomePrices) {
		priceCents = m.OutcomePrices[idx] * 100
	}
	return m.TokenIDs[idx], priceCents, true
}
