// Package exchange holds the process-wide trading client. It owns the
// lifecycle of the authenticated exchange session and validates orders
// before they leave the process.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// Client wraps an exchange connector. It starts uninitialized; Initialize
// binds a session and Reset drops it.
type Client struct {
	connector domain.ExchangeConnector
	logger    *slog.Logger

	mu      sync.RWMutex
	session domain.ExchangeSession
	address string
}

// New creates an uninitialized client.
func New(connector domain.ExchangeConnector, logger *slog.Logger) *Client {
	return &Client{
		connector: connector,
		logger:    logger.With(slog.String("component", "exchange")),
	}
}

// DeriveCredentials runs the L1 handshake for signer. It does not require
// the client to be initialized.
func (c *Client) DeriveCredentials(ctx context.Context, signer domain.WalletSigner) (domain.ClobCredentials, error) {
	if signer == nil {
		return domain.ClobCredentials{}, domain.ErrWalletNotConnected
	}
	creds, err := c.connector.DeriveCredentials(ctx, signer)
	if err != nil {
		return domain.ClobCredentials{}, fmt.Errorf("exchange: %w: %w", domain.ErrCredentialDerivation, err)
	}
	return creds, nil
}

// Initialize binds signer, creds and funder, replacing any earlier binding.
func (c *Client) Initialize(_ context.Context, signer domain.WalletSigner, creds domain.ClobCredentials, funder string) error {
	if signer == nil || !creds.Valid() {
		return fmt.Errorf("exchange: initialize: %w", domain.ErrSetupIncomplete)
	}
	session, err := c.connector.Connect(signer, creds, funder)
	if err != nil {
		return fmt.Errorf("exchange: initialize: %w", err)
	}

	address := signer.Address().Hex()
	c.mu.Lock()
	c.session = session
	c.address = address
	c.mu.Unlock()

	c.logger.Info("trading client initialized", slog.String("address", address), slog.String("funder", funder))
	return nil
}

// IsReady reports whether a session is bound.
func (c *Client) IsReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session != nil
}

// Address returns the signer address of the bound session, or "".
func (c *Client) Address() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.address
}

// Reset drops the bound session.
func (c *Client) Reset() {
	c.mu.Lock()
	wasReady := c.session != nil
	c.session = nil
	c.address = ""
	c.mu.Unlock()

	if wasReady {
		c.logger.Info("trading client reset")
	}
}

func (c *Client) current() (domain.ExchangeSession, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil, domain.ErrNotInitialized
	}
	return c.session, nil
}

// CreateOrder validates req and submits it. Any remote failure is reported
// as an ExchangeError of kind ErrOrderSubmission carrying the exchange text.
func (c *Client) CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderReceipt, error) {
	session, err := c.current()
	if err != nil {
		return domain.OrderReceipt{}, err
	}
	if err := validateOrder(req); err != nil {
		return domain.OrderReceipt{}, err
	}

	receipt, err := session.PostOrder(ctx, req)
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			return receipt, err
		}
		return receipt, remoteError(domain.ErrOrderSubmission, err)
	}
	return receipt, nil
}

// CancelOrder cancels orderID.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	session, err := c.current()
	if err != nil {
		return err
	}
	if err := session.CancelOrder(ctx, orderID); err != nil {
		return remoteError(domain.ErrOrderCancellation, err)
	}
	return nil
}

// GetOrderBook returns the book for tokenID.
func (c *Client) GetOrderBook(ctx context.Context, tokenID string) (domain.OrderBook, error) {
	session, err := c.current()
	if err != nil {
		return domain.OrderBook{}, err
	}
	book, err := session.GetOrderBook(ctx, tokenID)
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("exchange: get order book: %w", err)
	}
	return book, nil
}

// GetOrderByID looks up an order. Lookup failures are logged and reported
// as not found; only ErrNotInitialized is returned as an error.
func (c *Client) GetOrderByID(ctx context.Context, orderID string) (domain.OpenOrder, bool, error) {
	session, err := c.current()
	if err != nil {
		return domain.OpenOrder{}, false, err
	}
	order, err := session.GetOrder(ctx, orderID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			c.logger.WarnContext(ctx, "order lookup failed",
				slog.String("order_id", orderID),
				slog.String("error", err.Error()),
			)
		}
		return domain.OpenOrder{}, false, nil
	}
	return order, true, nil
}

var one = decimal.NewFromInt(1)

func validateOrder(req domain.OrderRequest) error {
	if req.Price.IsNegative() || req.Price.GreaterThan(one) {
		return &domain.ValidationError{Kind: domain.ErrInvalidOrderParams, Message: "Price must be between 0.00 and 1.00"}
	}
	if !req.Size.IsPositive() {
		return &domain.ValidationError{Kind: domain.ErrInvalidOrderParams, Message: "Size must be greater than 0"}
	}
	return nil
}

// remoteError re-kinds err while keeping the remote status and text.
func remoteError(kind, err error) error {
	out := &domain.ExchangeError{Kind: kind, Err: err}
	var xe *domain.ExchangeError
	if errors.As(err, &xe) {
		out.Status = xe.Status
		out.Message = xe.Message
	}
	return out
}
