package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/polymarket/go-order-utils/pkg/model"
)

// PolygonChainID is the only network trading is enabled on.
const PolygonChainID = 137

// WalletConnection is the externally-driven wallet state.
type WalletConnection struct {
	Connected bool   `json:"isConnected"`
	Address   string `json:"address,omitempty"`
	ChainID   int    `json:"chainId,omitempty"`
}

// WalletSigner is the signing capability of a connected wallet.
type WalletSigner interface {
	Address() common.Address
	// SignAuthMessage signs the CLOB L1 auth payload.
	SignAuthMessage(address string, timestamp, nonce int64) (string, error)
	// SignOrder builds and signs an exchange order.
	SignOrder(data *model.OrderData, contract model.VerifyingContract) (*model.SignedOrder, error)
}
