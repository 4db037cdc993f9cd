package domain

import (
	"context"
	"time"
)

// AuditFilter narrows an audit log query. Zero fields match everything.
type AuditFilter struct {
	Event  string
	Wallet string
	Since  time.Time
	Until  time.Time
	Limit  int
	Offset int
}

// AuditEntry is one recorded event.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Wallet    string         `json:"wallet,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// AuditStore is an append-only event log. Log derives the wallet column
// from a "wallet" string in detail.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, f AuditFilter) ([]AuditEntry, error)
}
