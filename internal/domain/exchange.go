package domain

import "context"

// ExchangeSession is an authenticated connection to the order book
// exchange bound to one wallet and credential triple.
type ExchangeSession interface {
	PostOrder(ctx context.Context, req OrderRequest) (OrderReceipt, error)
	CancelOrder(ctx context.Context, orderID string) error
	GetOrder(ctx context.Context, orderID string) (OpenOrder, error)
	GetOrderBook(ctx context.Context, tokenID string) (OrderBook, error)
}

// ExchangeConnector performs the unauthenticated half of the exchange
// handshake and opens sessions.
type ExchangeConnector interface {
	// DeriveCredentials signs the L1 auth message with signer and returns
	// the API key triple the exchange associates with its address.
	DeriveCredentials(ctx context.Context, signer WalletSigner) (ClobCredentials, error)
	// Connect binds signer, creds and funder into a session. It does no I/O.
	Connect(signer WalletSigner, creds ClobCredentials, funder string) (ExchangeSession, error)
}
