package polymarket

import (
	"github.com/alanyoungcy/polytrade/internal/domain"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/polymarket/go-order-utils/pkg/model"
	"github.com/shopspring/decimal"
)

const zeroAddress = "0x0000000000000000000000000000000000000000"

// Share sizes are quoted to 2 decimals and notional USDC to 4; both are sent
// to the exchange in 6-decimal base units.
const (
	sizeDecimals     = 2
	notionalDecimals = 4
	baseUnitDecimals = 6
)

// orderAmounts converts a limit order into maker and taker base-unit amounts.
// A buyer gives USDC and takes shares; a seller does the reverse.
func orderAmounts(side domain.OrderSide, price, size decimal.Decimal) (maker, taker string, err error) {
	shares := size.RoundDown(sizeDecimals)
	notional := shares.Mul(price).RoundDown(notionalDecimals)
	if !shares.IsPositive() {
		return "", "", &domain.ValidationError{Kind: domain.ErrInvalidOrderParams, Message: "Size must be at least 0.01"}
	}
	if !notional.IsPositive() {
		return "", "", &domain.ValidationError{Kind: domain.ErrInvalidOrderParams, Message: "Order value is too small"}
	}

	sharesUnits := shares.Shift(baseUnitDecimals).Truncate(0).String()
	notionalUnits := notional.Shift(baseUnitDecimals).Truncate(0).String()
	if side == domain.OrderSideSell {
		return sharesUnits, notionalUnits, nil
	}
	return notionalUnits, sharesUnits, nil
}

// buildOrderData assembles the unsigned order. funder is the maker (the
// account holding funds); signer is the key that signs.
func buildOrderData(req domain.OrderRequest, funder, signer string, sigType int) (*model.OrderData, model.VerifyingContract, error) {
	maker, taker, err := orderAmounts(req.Side, req.Price, req.Size)
	if err != nil {
		return nil, 0, err
	}

	side := model.BUY
	if req.Side == domain.OrderSideSell {
		side = model.SELL
	}
	var contract model.VerifyingContract = model.CTFExchange
	if req.NegRisk {
		contract = model.NegRiskCTFExchange
	}
	if funder == "" {
		funder = signer
	}

	return &model.OrderData{
		Maker:         funder,
		Signer:        signer,
		Taker:         zeroAddress,
		TokenId:       req.TokenID,
		MakerAmount:   maker,
		TakerAmount:   taker,
		Side:          side,
		FeeRateBps:    "0",
		Nonce:         "0",
		Expiration:    "0",
		SignatureType: model.SignatureType(sigType),
	}, contract, nil
}

// toSignedOrderJSON flattens a library SignedOrder into the wire shape.
func toSignedOrderJSON(o *model.SignedOrder) signedOrderJSON {
	side := string(domain.OrderSideBuy)
	if o.Side.Int64() == int64(model.SELL) {
		side = string(domain.OrderSideSell)
	}
	return signedOrderJSON{
		Salt:          o.Salt.Int64(),
		Maker:         o.Maker.Hex(),
		Signer:        o.Signer.Hex(),
		Taker:         o.Taker.Hex(),
		TokenID:       o.TokenId.String(),
		MakerAmount:   o.MakerAmount.String(),
		TakerAmount:   o.TakerAmount.String(),
		Side:          side,
		Expiration:    o.Expiration.String(),
		Nonce:         o.Nonce.String(),
		FeeRateBps:    o.FeeRateBps.String(),
		SignatureType: int(o.SignatureType.Int64()),
		Signature:     hexutil.Encode(o.Signature),
	}
}
