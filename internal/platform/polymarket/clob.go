package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/alanyoungcy/polytrade/internal/crypto"
	"github.com/alanyoungcy/polytrade/internal/domain"
)

// errHTTPStatus is the kind of an ExchangeError for statuses with no more
// specific domain meaning.
var errHTTPStatus = errors.New("polymarket: unexpected HTTP status")

// ClobConfig configures the CLOB REST endpoints.
type ClobConfig struct {
	BaseURL       string        // e.g. "https://clob.polymarket.com"
	ChainID       int           // 137
	SignatureType int           // 0 EOA, 1 POLY_PROXY, 2 POLY_GNOSIS_SAFE
	Timeout       time.Duration // per request; 30s when zero
}

// Connector performs the L1 auth handshake and opens CLOB sessions. It
// implements domain.ExchangeConnector.
type Connector struct {
	cfg        ClobConfig
	httpClient *http.Client
	builder    BuilderSigner
	logger     *slog.Logger
}

// NewConnector creates a connector. builder may be nil, in which case orders
// carry no builder attribution.
func NewConnector(cfg ClobConfig, builder BuilderSigner, logger *slog.Logger) *Connector {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Connector{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		builder:    builder,
		logger:     logger.With(slog.String("component", "clob")),
	}
}

// DeriveCredentials signs a ClobAuth message and fetches the wallet's API
// key. When the exchange has no key for the wallet yet it creates one.
func (c *Connector) DeriveCredentials(ctx context.Context, signer domain.WalletSigner) (domain.ClobCredentials, error) {
	creds, err := c.l1Request(ctx, signer, http.MethodGet, "/auth/derive-api-key")
	var xe *domain.ExchangeError
	if errors.As(err, &xe) && (xe.Status == http.StatusNotFound || xe.Status == http.StatusBadRequest) {
		c.logger.InfoContext(ctx, "no api key for wallet, creating one",
			slog.String("address", signer.Address().Hex()),
		)
		creds, err = c.l1Request(ctx, signer, http.MethodPost, "/auth/api-key")
	}
	if err != nil {
		return domain.ClobCredentials{}, fmt.Errorf("polymarket/clob: derive api key: %w", err)
	}
	return creds, nil
}

// Connect binds a session. No request is made until the first call.
func (c *Connector) Connect(signer domain.WalletSigner, creds domain.ClobCredentials, funder string) (domain.ExchangeSession, error) {
	if signer == nil {
		return nil, fmt.Errorf("polymarket/clob: connect: %w", domain.ErrWalletNotConnected)
	}
	if !creds.Valid() {
		return nil, fmt.Errorf("polymarket/clob: connect: %w", domain.ErrSetupIncomplete)
	}
	return &ClobClient{
		baseURL:    c.cfg.BaseURL,
		httpClient: c.httpClient,
		sigType:    c.cfg.SignatureType,
		signer:     signer,
		auth:       crypto.FromCredentials(creds),
		funder:     funder,
		builder:    c.builder,
	}, nil
}

// l1Request sends a ClobAuth-signed request and decodes the API key triple.
func (c *Connector) l1Request(ctx context.Context, signer domain.WalletSigner, method, path string) (domain.ClobCredentials, error) {
	address := signer.Address().Hex()
	timestamp := time.Now().Unix()
	nonce := int64(0)

	sig, err := signer.SignAuthMessage(address, timestamp, nonce)
	if err != nil {
		return domain.ClobCredentials{}, fmt.Errorf("sign auth message: %w: %w", domain.ErrSigningFailed, err)
	}

	headers := map[string]string{
		"POLY_ADDRESS":   address,
		"POLY_SIGNATURE": sig,
		"POLY_TIMESTAMP": strconv.FormatInt(timestamp, 10),
		"POLY_NONCE":     strconv.FormatInt(nonce, 10),
	}
	respBody, err := do(ctx, c.httpClient, method, c.cfg.BaseURL+path, nil, headers)
	if err != nil {
		return domain.ClobCredentials{}, err
	}

	var ak apiKeyResponse
	if err := json.Unmarshal(respBody, &ak); err != nil {
		return domain.ClobCredentials{}, fmt.Errorf("decode api key: %w", err)
	}
	creds := domain.ClobCredentials{Key: ak.APIKey, Secret: ak.Secret, Passphrase: ak.Passphrase}
	if !creds.Valid() {
		return domain.ClobCredentials{}, errors.New("exchange returned an incomplete api key")
	}
	return creds, nil
}

// ClobClient is an authenticated CLOB session for one wallet. It implements
// domain.ExchangeSession.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
	sigType    int
	signer     domain.WalletSigner
	auth       crypto.HMACAuth
	funder     string
	builder    BuilderSigner
}

// PostOrder signs req and posts it. A response with success=false is
// returned together with an ExchangeError carrying the exchange's text.
func (c *ClobClient) PostOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderReceipt, error) {
	data, contract, err := buildOrderData(req, c.funder, c.signer.Address().Hex(), c.sigType)
	if err != nil {
		return domain.OrderReceipt{}, err
	}
	signed, err := c.signer.SignOrder(data, contract)
	if err != nil {
		return domain.OrderReceipt{}, fmt.Errorf("polymarket/clob: sign order: %w: %w", domain.ErrSigningFailed, err)
	}

	orderType := req.Type
	if orderType == "" {
		orderType = domain.OrderTypeGTC
	}
	body, err := json.Marshal(postOrderRequest{
		Order:     toSignedOrderJSON(signed),
		Owner:     c.auth.Key,
		OrderType: string(orderType),
	})
	if err != nil {
		return domain.OrderReceipt{}, fmt.Errorf("polymarket/clob: marshal order: %w", err)
	}

	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodPost, "/order", body, true)
	if err != nil {
		return domain.OrderReceipt{}, fmt.Errorf("polymarket/clob: post order: %w", err)
	}

	var receipt domain.OrderReceipt
	if err := json.Unmarshal(respBody, &receipt); err != nil {
		return domain.OrderReceipt{}, fmt.Errorf("polymarket/clob: decode order result: %w", err)
	}
	if !receipt.Success {
		return receipt, &domain.ExchangeError{
			Kind:    domain.ErrOrderSubmission,
			Status:  http.StatusOK,
			Message: receipt.ErrorMsg,
		}
	}
	return receipt, nil
}

// CancelOrder cancels a single order by id.
func (c *ClobClient) CancelOrder(ctx context.Context, orderID string) error {
	body, err := json.Marshal(cancelOrderRequest{OrderID: orderID})
	if err != nil {
		return fmt.Errorf("polymarket/clob: marshal cancel: %w", err)
	}

	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodDelete, "/order", body, false)
	if err != nil {
		return fmt.Errorf("polymarket/clob: cancel order %s: %w", orderID, err)
	}

	var result cancelResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("polymarket/clob: decode cancel response: %w", err)
	}
	if reason, ok := result.NotCanceled[orderID]; ok {
		return &domain.ExchangeError{Kind: domain.ErrOrderCancellation, Status: http.StatusOK, Message: reason}
	}
	return nil
}

// GetOrder fetches one order. An unknown id yields domain.ErrNotFound.
func (c *ClobClient) GetOrder(ctx context.Context, orderID string) (domain.OpenOrder, error) {
	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodGet, "/data/order/"+url.PathEscape(orderID), nil, false)
	if err != nil {
		return domain.OpenOrder{}, fmt.Errorf("polymarket/clob: get order %s: %w", orderID, err)
	}

	var order *domain.OpenOrder
	if err := json.Unmarshal(respBody, &order); err != nil {
		return domain.OpenOrder{}, fmt.Errorf("polymarket/clob: decode order: %w", err)
	}
	if order == nil || order.ID == "" {
		return domain.OpenOrder{}, fmt.Errorf("polymarket/clob: get order %s: %w", orderID, domain.ErrNotFound)
	}
	return *order, nil
}

// GetOrderBook fetches the public book for a token.
func (c *ClobClient) GetOrderBook(ctx context.Context, tokenID string) (domain.OrderBook, error) {
	q := url.Values{}
	q.Set("token_id", tokenID)

	respBody, err := do(ctx, c.httpClient, http.MethodGet, c.baseURL+"/book?"+q.Encode(), nil, nil)
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("polymarket/clob: get book %s: %w", tokenID, err)
	}

	var book domain.OrderBook
	if err := json.Unmarshal(respBody, &book); err != nil {
		return domain.OrderBook{}, fmt.Errorf("polymarket/clob: decode book: %w", err)
	}
	return book, nil
}

// doAuthenticatedRequest signs the request with L2 HMAC headers and, when
// withBuilder is set and a builder is configured, builder headers.
func (c *ClobClient) doAuthenticatedRequest(ctx context.Context, method, path string, body []byte, withBuilder bool) ([]byte, error) {
	headers := c.auth.L2Headers(c.signer.Address().Hex(), method, path, string(body))
	if withBuilder && c.builder != nil {
		bh, err := c.builder.BuilderHeaders(ctx, method, path, string(body))
		if err != nil {
			return nil, err
		}
		for k, v := range bh {
			headers[k] = v
		}
	}

	return do(ctx, c.httpClient, method, c.baseURL+path, body, headers)
}

// do sends one request and returns the body of a 2xx response.
func do(ctx context.Context, hc *http.Client, method, target string, body []byte, headers map[string]string) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

// checkHTTPStatus maps non-2xx status codes to an ExchangeError carrying the
// exchange's message.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	kind := errHTTPStatus
	switch statusCode {
	case http.StatusNotFound:
		kind = domain.ErrNotFound
	case http.StatusUnauthorized:
		kind = domain.ErrUnauthorized
	case http.StatusTooManyRequests:
		kind = domain.ErrRateLimited
	}
	return &domain.ExchangeError{Kind: kind, Status: statusCode, Message: remoteMessage(body)}
}
