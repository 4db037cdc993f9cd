package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// WalletControl drives the wallet connection monitor.
type WalletControl interface {
	Connect(signer domain.WalletSigner, chainID int)
	SwitchChain(chainID int) error
	Disconnect()
	Current() domain.WalletConnection
}

type chainRequest struct {
	ChainID int `json:"chainId"`
}

// WalletHandler serves /api/wallet. The browser wallet integration reports
// connection and network changes here; signing uses the daemon's local key.
type WalletHandler struct {
	wallet WalletControl
	signer domain.WalletSigner
	logger *slog.Logger
}

// NewWalletHandler creates a WalletHandler. signer is nil when no local key
// is configured, in which case connect requests fail.
func NewWalletHandler(wallet WalletControl, signer domain.WalletSigner, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{wallet: wallet, signer: signer, logger: logger.With(slog.String("handler", "wallet"))}
}

// GET /api/wallet
func (h *WalletHandler) Current(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.wallet.Current())
}

// POST /api/wallet/connect {"chainId": 137}
func (h *WalletHandler) Connect(w http.ResponseWriter, r *http.Request) {
	if h.signer == nil {
		writeError(w, h.logger, r, badRequest("no wallet key is configured"))
		return
	}
	req := chainRequest{ChainID: domain.PolygonChainID}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if req.ChainID <= 0 {
		writeError(w, h.logger, r, badRequest("chainId must be positive"))
		return
	}
	h.wallet.Connect(h.signer, req.ChainID)
	writeJSON(w, http.StatusOK, h.wallet.Current())
}

// POST /api/wallet/chain {"chainId": 137}
func (h *WalletHandler) SwitchChain(w http.ResponseWriter, r *http.Request) {
	var req chainRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if req.ChainID <= 0 {
		writeError(w, h.logger, r, badRequest("chainId must be positive"))
		return
	}
	if err := h.wallet.SwitchChain(req.ChainID); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.wallet.Current())
}

// POST /api/wallet/disconnect
func (h *WalletHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	h.wallet.Disconnect()
	writeJSON(w, http.StatusOK, h.wallet.Current())
}

