package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// SetupActions is the trading setup state machine as seen by the API.
type SetupActions interface {
	Status() domain.SetupStatus
	CompleteSetup(ctx context.Context) error
	GenerateCredentials(ctx context.Context) (domain.ClobCredentials, error)
	InitializeTradingClient(ctx context.Context) error
	Reset()
	ClearError()
}

// SetupHandler serves /api/setup. Every response carries the status with
// credential secrets masked.
type SetupHandler struct {
	setup  SetupActions
	logger *slog.Logger
}

func NewSetupHandler(setup SetupActions, logger *slog.Logger) *SetupHandler {
	return &SetupHandler{setup: setup, logger: logger.With(slog.String("handler", "setup"))}
}

// GET /api/setup
func (h *SetupHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.setup.Status().Redacted())
}

// POST /api/setup/complete
func (h *SetupHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.setup.CompleteSetup)
}

// POST /api/setup/credentials
func (h *SetupHandler) GenerateCredentials(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(ctx context.Context) error {
		_, err := h.setup.GenerateCredentials(ctx)
		return err
	})
}

// POST /api/setup/initialize
func (h *SetupHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.setup.InitializeTradingClient)
}

// POST /api/setup/reset
func (h *SetupHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.setup.Reset()
	writeJSON(w, http.StatusOK, h.setup.Status().Redacted())
}

// POST /api/setup/clear-error
func (h *SetupHandler) ClearError(w http.ResponseWriter, r *http.Request) {
	h.setup.ClearError()
	writeJSON(w, http.StatusOK, h.setup.Status().Redacted())
}

func (h *SetupHandler) run(w http.ResponseWriter, r *http.Request, action func(context.Context) error) {
	if err := action(r.Context()); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.setup.Status().Redacted())
}
