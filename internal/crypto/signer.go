package crypto

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/polymarket/go-order-utils/pkg/builder"
	"github.com/polymarket/go-order-utils/pkg/model"
)

// ClobAuthMessage is the fixed attestation embedded in every L1 auth
// signature.
const ClobAuthMessage = "This message attests that I control the given wallet"

const (
	clobAuthDomainName    = "ClobAuthDomain"
	clobAuthDomainVersion = "1"
)

var clobAuthTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
	},
	"ClobAuth": {
		{Name: "address", Type: "address"},
		{Name: "timestamp", Type: "string"},
		{Name: "nonce", Type: "uint256"},
		{Name: "message", Type: "string"},
	},
}

// Signer is a local secp256k1 wallet for CLOB auth messages and exchange
// orders.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID int
	orders  *builder.ExchangeOrderBuilderImpl
}

// NewSigner binds a hex private key to chainID (137 Polygon, 80002 Amoy).
func NewSigner(privateKeyHex string, chainID int) (*Signer, error) {
	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}
	return &Signer{
		key:     key,
		address: ethcrypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
		orders:  builder.NewExchangeOrderBuilderImpl(big.NewInt(int64(chainID)), nil),
	}, nil
}

func (s *Signer) Address() common.Address { return s.address }

func (s *Signer) ChainID() int { return s.chainID }

// SignAuthMessage signs the ClobAuth typed data used to create or derive an
// API key. The result is a 0x-prefixed r || s || v with v in {27, 28}.
func (s *Signer) SignAuthMessage(address string, timestamp, nonce int64) (string, error) {
	digest, err := ClobAuthDigest(s.chainID, address, timestamp, nonce)
	if err != nil {
		return "", err
	}
	sig, err := ethcrypto.Sign(digest, s.key)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: sign auth message: %w", err)
	}
	sig[64] += 27
	return hexutil.Encode(sig), nil
}

// SignOrder builds and signs an order against the given exchange contract.
func (s *Signer) SignOrder(data *model.OrderData, contract model.VerifyingContract) (*model.SignedOrder, error) {
	signed, err := s.orders.BuildSignedOrder(s.key, data, contract)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: build order: %w", err)
	}
	return signed, nil
}

// ClobAuthDigest returns the EIP-712 hash signed for L1 authentication.
func ClobAuthDigest(chainID int, address string, timestamp, nonce int64) ([]byte, error) {
	td := apitypes.TypedData{
		Types:       clobAuthTypes,
		PrimaryType: "ClobAuth",
		Domain: apitypes.TypedDataDomain{
			Name:    clobAuthDomainName,
			Version: clobAuthDomainVersion,
			ChainId: math.NewHexOrDecimal256(int64(chainID)),
		},
		Message: apitypes.TypedDataMessage{
			"address":   common.HexToAddress(address).Hex(),
			"timestamp": strconv.FormatInt(timestamp, 10),
			"nonce":     big.NewInt(nonce),
			"message":   ClobAuthMessage,
		},
	}
	digest, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: hash auth message: %w", err)
	}
	return digest, nil
}

// RecoverAuthSigner returns the address that produced sig over the ClobAuth
// digest.
func RecoverAuthSigner(chainID int, address string, timestamp, nonce int64, sig string) (common.Address, error) {
	raw, err := hexutil.Decode(sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto/signer: decode signature: %w", err)
	}
	if len(raw) != 65 {
		return common.Address{}, fmt.Errorf("crypto/signer: signature length %d", len(raw))
	}
	if raw[64] >= 27 {
		raw[64] -= 27
	}
	digest, err := ClobAuthDigest(chainID, address, timestamp, nonce)
	if err != nil {
		return common.Address{}, err
	}
	pub, err := ethcrypto.SigToPub(digest, raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto/signer: recover: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}
