package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/polytrade/internal/platform/polymarket"
)

// BuilderHandler serves POST /api/polymarket/sign with the daemon's own
// builder credentials, so other clients can use it as their remote signer.
type BuilderHandler struct {
	signer polymarket.BuilderSigner
	logger *slog.Logger
}

func NewBuilderHandler(signer polymarket.BuilderSigner, logger *slog.Logger) *BuilderHandler {
	return &BuilderHandler{signer: signer, logger: logger.With(slog.String("handler", "builder"))}
}

func (h *BuilderHandler) Sign(w http.ResponseWriter, r *http.Request) {
	var req polymarket.SignRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	req.Method = strings.ToUpper(strings.TrimSpace(req.Method))
	if req.Method == "" || !strings.HasPrefix(req.Path, "/") {
		writeError(w, h.logger, r, badRequest("method and an absolute path are required"))
		return
	}
	headers, err := h.signer.BuilderHeaders(r.Context(), req.Method, req.Path, req.Body)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, headers)
}
