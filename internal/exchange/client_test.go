package exchange

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/polymarket/go-order-utils/pkg/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

type fakeSigner struct{ addr common.Address }

func (f fakeSigner) Address() common.Address { return f.addr }
func (f fakeSigner) SignAuthMessage(string, int64, int64) (string, error) {
	return "0xsig", nil
}
func (f fakeSigner) SignOrder(*model.OrderData, model.VerifyingContract) (*model.SignedOrder, error) {
	return nil, errors.New("unused")
}

type fakeSession struct {
	calls   atomic.Int32
	postErr error
	getErr  error
}

func (s *fakeSession) PostOrder(context.Context, domain.OrderRequest) (domain.OrderReceipt, error) {
	s.calls.Add(1)
	if s.postErr != nil {
		return domain.OrderReceipt{}, s.postErr
	}
	return domain.OrderReceipt{Success: true, OrderID: "0xabc", Status: "live"}, nil
}

func (s *fakeSession) CancelOrder(context.Context, string) error {
	s.calls.Add(1)
	return s.postErr
}

func (s *fakeSession) GetOrder(_ context.Context, id string) (domain.OpenOrder, error) {
	s.calls.Add(1)
	if s.getErr != nil {
		return domain.OpenOrder{}, s.getErr
	}
	return domain.OpenOrder{ID: id, Status: "LIVE"}, nil
}

func (s *fakeSession) GetOrderBook(_ context.Context, tokenID string) (domain.OrderBook, error) {
	s.calls.Add(1)
	return domain.OrderBook{AssetID: tokenID}, nil
}

type fakeConnector struct {
	session   *fakeSession
	deriveErr error
}

func (f *fakeConnector) DeriveCredentials(context.Context, domain.WalletSigner) (domain.ClobCredentials, error) {
	if f.deriveErr != nil {
		return domain.ClobCredentials{}, f.deriveErr
	}
	return domain.ClobCredentials{Key: "k", Secret: "s", Passphrase: "p"}, nil
}

func (f *fakeConnector) Connect(domain.WalletSigner, domain.ClobCredentials, string) (domain.ExchangeSession, error) {
	return f.session, nil
}

var (
	signer = fakeSigner{addr: common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23")}
	creds  = domain.ClobCredentials{Key: "k", Secret: "s", Passphrase: "p"}
)

func newClient(sess *fakeSession) *Client {
	return New(&fakeConnector{session: sess}, slog.New(slog.DiscardHandler))
}

func order(price, size string) domain.OrderRequest {
	return domain.OrderRequest{
		TokenID: "1",
		Price:   decimal.RequireFromString(price),
		Size:    decimal.RequireFromString(size),
		Side:    domain.OrderSideBuy,
	}
}

func TestLifecycle(t *testing.T) {
	c := newClient(&fakeSession{})
	assert.False(t, c.IsReady())

	require.NoError(t, c.Initialize(t.Context(), signer, creds, ""))
	assert.True(t, c.IsReady())
	assert.Equal(t, signer.addr.Hex(), c.Address())

	c.Reset()
	assert.False(t, c.IsReady())
	assert.Empty(t, c.Address())
}

func TestInitializeRequiresSignerAndCredentials(t *testing.T) {
	c := newClient(&fakeSession{})
	require.ErrorIs(t, c.Initialize(t.Context(), nil, creds, ""), domain.ErrSetupIncomplete)
	require.ErrorIs(t, c.Initialize(t.Context(), signer, domain.ClobCredentials{}, ""), domain.ErrSetupIncomplete)
	assert.False(t, c.IsReady())
}

func TestNotInitializedMakesNoCall(t *testing.T) {
	sess := &fakeSession{}
	c := newClient(sess)

	_, err := c.CreateOrder(t.Context(), order("0.5", "10"))
	require.ErrorIs(t, err, domain.ErrNotInitialized)
	require.ErrorIs(t, c.CancelOrder(t.Context(), "x"), domain.ErrNotInitialized)
	_, err = c.GetOrderBook(t.Context(), "1")
	require.ErrorIs(t, err, domain.ErrNotInitialized)
	_, _, err = c.GetOrderByID(t.Context(), "x")
	require.ErrorIs(t, err, domain.ErrNotInitialized)

	// Not-initialized wins over invalid params.
	_, err = c.CreateOrder(t.Context(), order("1.5", "0"))
	require.ErrorIs(t, err, domain.ErrNotInitialized)

	assert.Zero(t, sess.calls.Load())
}

func TestCreateOrderValidation(t *testing.T) {
	sess := &fakeSession{}
	c := newClient(sess)
	require.NoError(t, c.Initialize(t.Context(), signer, creds, ""))

	tests := []struct {
		price, size, msg string
	}{
		{"-0.1", "10", "Price must be between 0.00 and 1.00"},
		{"1.1", "10", "Price must be between 0.00 and 1.00"},
		{"0.5", "0", "Size must be greater than 0"},
		{"0.5", "-3", "Size must be greater than 0"},
	}
	for _, tt := range tests {
		_, err := c.CreateOrder(t.Context(), order(tt.price, tt.size))
		require.ErrorIs(t, err, domain.ErrInvalidOrderParams)
		assert.Equal(t, tt.msg, domain.UserMessage(err))
	}
	assert.Zero(t, sess.calls.Load())

	receipt, err := c.CreateOrder(t.Context(), order("1", "10"))
	require.NoError(t, err)
	assert.Equal(t, "0xabc", receipt.OrderID)
}

func TestCreateOrderRemoteFailure(t *testing.T) {
	sess := &fakeSession{postErr: &domain.ExchangeError{Kind: domain.ErrUnauthorized, Status: 401, Message: "Unauthorized/Invalid api key"}}
	c := newClient(sess)
	require.NoError(t, c.Initialize(t.Context(), signer, creds, ""))

	_, err := c.CreateOrder(t.Context(), order("0.5", "10"))
	require.ErrorIs(t, err, domain.ErrOrderSubmission)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, "Unauthorized/Invalid api key", err.Error())

	sess.postErr = errors.New("dial tcp: connection refused")
	_, err = c.CreateOrder(t.Context(), order("0.5", "10"))
	require.ErrorIs(t, err, domain.ErrOrderSubmission)
	assert.NotErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, "Failed to place order", domain.UserMessage(err))
}

func TestCancelOrderFailure(t *testing.T) {
	sess := &fakeSession{postErr: &domain.ExchangeError{Kind: domain.ErrOrderCancellation, Message: "order not found"}}
	c := newClient(sess)
	require.NoError(t, c.Initialize(t.Context(), signer, creds, ""))

	err := c.CancelOrder(t.Context(), "gone")
	require.ErrorIs(t, err, domain.ErrOrderCancellation)
	assert.Equal(t, "order not found", err.Error())
}

func TestGetOrderByIDBestEffort(t *testing.T) {
	sess := &fakeSession{}
	c := newClient(sess)
	require.NoError(t, c.Initialize(t.Context(), signer, creds, ""))

	o, found, err := c.GetOrderByID(t.Context(), "0xabc")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "0xabc", o.ID)

	sess.getErr = errors.New("boom")
	_, found, err = c.GetOrderByID(t.Context(), "0xabc")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDeriveCredentialsWrapsFailure(t *testing.T) {
	c := New(&fakeConnector{deriveErr: errors.New("signature rejected")}, slog.New(slog.DiscardHandler))

	_, err := c.DeriveCredentials(t.Context(), signer)
	require.ErrorIs(t, err, domain.ErrCredentialDerivation)
	assert.Equal(t, "Failed to generate trading credentials. Please try again.", domain.UserMessage(err))

	_, err = c.DeriveCredentials(t.Context(), nil)
	require.ErrorIs(t, err, domain.ErrWalletNotConnected)
}
