package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

const maxAuditPage = 500

// AuditHandler serves the recorded setup and order events.
type AuditHandler struct {
	store  domain.AuditStore
	logger *slog.Logger
}

func NewAuditHandler(store domain.AuditStore, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{store: store, logger: logger.With(slog.String("handler", "audit"))}
}

// GET /api/audit?event=&wallet=&since=&until=&limit=&offset=
// since and until are RFC 3339.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := parseAuditFilter(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	entries, err := h.store.List(r.Context(), f)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func parseAuditFilter(r *http.Request) (domain.AuditFilter, error) {
	q := r.URL.Query()
	f := domain.AuditFilter{Event: q.Get("event"), Wallet: q.Get("wallet"), Limit: 100}

	for name, dst := range map[string]*time.Time{"since": &f.Since, "until": &f.Until} {
		if v := q.Get(name); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return f, badRequest("%s must be an RFC 3339 time", name)
			}
			*dst = t
		}
	}
	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return f, badRequest("%s must be a non-negative integer", name)
			}
			*dst = n
		}
	}
	if f.Limit == 0 || f.Limit > maxAuditPage {
		f.Limit = maxAuditPage
	}
	return f, nil
}
