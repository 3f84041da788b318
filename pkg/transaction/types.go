package transaction

import (
	"encoding/json"
	"fmt"
)

// TxType tags the operation kind inside the canonical encoding and the wire
// envelope. Values are part of the sequencer protocol and must not change.
type TxType uint8

const (
	TxTypeCreateOrder    TxType = 14
	TxTypeCancelOrder    TxType = 15
	TxTypeModifyOrder    TxType = 17
	TxTypeUpdateLeverage TxType = 20
)

// OrderType is the closed set of order kinds the sequencer accepts.
type OrderType uint8

const (
	OrderTypeLimit OrderType = iota
	OrderTypeMarket
	OrderTypeStopLoss
	OrderTypeTakeProfit
)

// TimeInForce is the closed set of order lifetime policies.
type TimeInForce uint8

const (
	TifGoodTillTime TimeInForce = iota
	TifImmediateOrCancel
)

// MarginMode is the closed set of margin configurations for UpdateLeverage.
type MarginMode uint8

const (
	MarginModeCross MarginMode = iota
	MarginModeIsolated
)

// MaxLeverage bounds the leverage multiplier accepted by the venue.
const MaxLeverage = 100

// SignerScope identifies whose sequence the transaction belongs to. The
// chain id keeps signatures from replaying across environments.
type SignerScope struct {
	AccountIndex int64  `json:"account_index"`
	ApiKeyIndex  uint8  `json:"api_key_index"`
	ChainID      uint32 `json:"chain_id"`
}

// CreateOrderTxReq carries the caller-supplied fields for a new order.
// ClientOrderIndex is a caller-chosen idempotency key, unique within the
// account's active-order scope; it is not the sequence nonce.
type CreateOrderTxReq struct {
	MarketIndex      uint8       `json:"market_index"`
	ClientOrderIndex int64       `json:"client_order_index"`
	BaseAmount       int64       `json:"base_amount"`
	Price            int64       `json:"price"`
	IsAsk            uint8       `json:"is_ask"`
	Type             OrderType   `json:"type"`
	TimeInForce      TimeInForce `json:"time_in_force"`
	ReduceOnly       uint8       `json:"reduce_only"`
	TriggerPrice     int64       `json:"trigger_price"`
	OrderExpiry      int64       `json:"order_expiry"` // unix millis, GTT only
}

// ModifyOrderTxReq reprices an order by its exchange-assigned index.
type ModifyOrderTxReq struct {
	MarketIndex  uint8 `json:"market_index"`
	Index        int64 `json:"index"`
	BaseAmount   int64 `json:"base_amount"`
	Price        int64 `json:"price"`
	TriggerPrice int64 `json:"trigger_price"`
}

// CancelOrderTxReq cancels an order by its exchange-assigned index.
type CancelOrderTxReq struct {
	MarketIndex uint8 `json:"market_index"`
	Index       int64 `json:"index"`
}

// UpdateLeverageTxReq adjusts a market's leverage multiplier and margin mode.
type UpdateLeverageTxReq struct {
	MarketIndex        uint8      `json:"market_index"`
	LeverageMultiplier uint8      `json:"leverage_multiplier"`
	MarginMode         MarginMode `json:"margin_mode"`
}

// SignedTx is the wire envelope handed to the submission endpoint: the
// operation payload as JSON, the sequence nonce, and the authentication
// material. Sig and PubKey lengths are fixed protocol constants.
type SignedTx struct {
	TxType TxType          `json:"tx_type"`
	TxInfo json.RawMessage `json:"tx_info"`
	Nonce  uint64          `json:"nonce"`
	Sig    []byte          `json:"sig"`
	PubKey []byte          `json:"pub_key"`
	TxHash string          `json:"tx_hash,omitempty"`
}

// txInfoEnvelope is the JSON shape inside TxInfo: signer scope, sequence
// nonce, and the typed request, flattened the way the sequencer expects.
type txInfoEnvelope struct {
	SignerScope
	Nonce uint64          `json:"nonce"`
	Tx    json.RawMessage `json:"tx"`
}

// BuildTxInfo marshals the typed request with its scope and nonce into the
// envelope's TxInfo payload.
func BuildTxInfo(scope SignerScope, nonce uint64, req any) (json.RawMessage, error) {
	inner, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tx payload: %w", err)
	}
	info, err := json.Marshal(txInfoEnvelope{SignerScope: scope, Nonce: nonce, Tx: inner})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tx info: %w", err)
	}
	return info, nil
}

func (t TxType) String() string {
	switch t {
	case TxTypeCreateOrder:
		return "create_order"
	case TxTypeCancelOrder:
		return "cancel_order"
	case TxTypeModifyOrder:
		return "modify_order"
	case TxTypeUpdateLeverage:
		return "update_leverage"
	default:
		return fmt.Sprintf("tx_type(%d)", uint8(t))
	}
}
