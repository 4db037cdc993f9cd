package domain

import (
	"errors"
	"strings"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrSigningFailed = errors.New("signing failed")
	ErrLockHeld      = errors.New("lock already held")

	ErrWalletNotConnected   = errors.New("wallet not connected")
	ErrWrongNetwork         = errors.New("wrong network")
	ErrCredentialDerivation = errors.New("credential derivation failed")
	ErrSetupIncomplete      = errors.New("trading setup incomplete")
	ErrNotInitialized       = errors.New("trading client not initialized")
	ErrInvalidOrderParams   = errors.New("invalid order parameters")
	ErrOrderSubmission      = errors.New("order submission failed")
	ErrOrderCancellation    = errors.New("order cancellation failed")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrSetupRequired        = errors.New("trading setup required")
	ErrSessionExpired       = errors.New("session expired")
	ErrSetupSuperseded      = errors.New("wallet changed during trading setup")
)

// ExchangeError carries a message produced by a remote service. Error returns
// the remote text unchanged; errors.Is matches Kind and, when set, Err.
type ExchangeError struct {
	Kind    error
	Status  int
	Message string
	Err     error
}

func (e *ExchangeError) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Kind.Error() + ": " + e.Err.Error()
	}
	return e.Kind.Error()
}

func (e *ExchangeError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Is lets a 401 from the exchange match ErrUnauthorized in addition to Kind.
func (e *ExchangeError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == 401
}

var userMessages = []struct {
	err error
	msg string
}{
	{ErrWalletNotConnected, "Wallet not connected"},
	{ErrWrongNetwork, "Please switch to Polygon network"},
	{ErrCredentialDerivation, "Failed to generate trading credentials. Please try again."},
	{ErrSetupIncomplete, "Trading setup is incomplete"},
	{ErrNotInitialized, "Trading client not initialized"},
	{ErrInvalidOrderParams, "Invalid order parameters"},
	{ErrInvalidAmount, "Please enter a valid amount"},
	{ErrSetupRequired, "Complete trading setup first"},
	{ErrSessionExpired, "Session expired. Please sign in again."},
	{ErrRateLimited, "Too many requests. Please slow down."},
	{ErrLockHeld, "Trading setup is already in progress"},
	{ErrSetupSuperseded, "Wallet changed during setup. Please try again."},
	{ErrOrderSubmission, "Failed to place order"},
	{ErrOrderCancellation, "Failed to cancel order"},
	{ErrNotFound, "Not found"},
	{ErrUnauthorized, "Unauthorized"},
}

// UserMessage renders err as a short human-readable string. Exchange text is
// passed through verbatim; known sentinels map to fixed strings.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var xe *ExchangeError
	if errors.As(err, &xe) && strings.TrimSpace(xe.Message) != "" {
		return xe.Message
	}
	// Invalid order params carry the specific validation failure.
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	for _, m := range userMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return "Something went wrong. Please try again."
}

// ValidationError is a local input rejection. It matches Kind under errors.Is.
type ValidationError struct {
	Kind    error
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return e.Kind }
