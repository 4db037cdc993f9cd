// Package handler implements the daemon's REST endpoints.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polytrade/internal/domain"
	"github.com/alanyoungcy/polytrade/internal/service"
)

const maxBodyBytes = 1 << 20

// errBadRequest marks a request body or query that could not be parsed.
var errBadRequest = errors.New("bad request")

// writeJSON marshals v as JSON and writes it with status. A marshal failure
// falls back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes {"error": UserMessage(err)} with a status derived from
// the error kind. An expired backend session also tells the UI where to go.
func writeError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error) {
	if errors.Is(err, domain.ErrSessionExpired) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error":    "session expired",
			"redirect": "/login",
		})
		return
	}

	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	writeJSON(w, status, map[string]string{"error": messageFor(err)})
}

func messageFor(err error) string {
	switch {
	case errors.Is(err, errBadRequest):
		return err.Error()
	case errors.Is(err, service.ErrTicketClosed):
		return "No order ticket is open"
	case errors.Is(err, service.ErrTicketSubmitting):
		return "Order is already being submitted"
	}
	return domain.UserMessage(err)
}

func statusFor(err error) int {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve),
		errors.Is(err, errBadRequest),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidOrderParams):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrWalletNotConnected),
		errors.Is(err, domain.ErrWrongNetwork),
		errors.Is(err, domain.ErrSetupIncomplete),
		errors.Is(err, domain.ErrSetupRequired),
		errors.Is(err, domain.ErrNotInitialized),
		errors.Is(err, domain.ErrSetupSuperseded),
		errors.Is(err, domain.ErrLockHeld),
		errors.Is(err, service.ErrTicketClosed),
		errors.Is(err, service.ErrTicketSubmitting):
		return http.StatusConflict
	case errors.Is(err, domain.ErrOrderSubmission),
		errors.Is(err, domain.ErrOrderCancellation),
		errors.Is(err, domain.ErrCredentialDerivation):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// decodeJSON reads a JSON body of at most maxBodyBytes into v. An empty body
// leaves v unchanged.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}
