package transaction

import (
	"fmt"
	"time"
)

// ValidationError reports a caller-supplied field that failed validation.
// It is detected before any network traffic and is not retryable until the
// caller corrects the input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Builder validates typed requests and produces their canonical encodings.
// It owns no mutable state beyond the clock, which is injectable so expiry
// validation is deterministic in tests.
type Builder struct {
	now func() time.Time
}

func NewBuilder() *Builder {
	return &Builder{now: time.Now}
}

// NewBuilderWithClock fixes the clock used for GTT expiry validation.
func NewBuilderWithClock(now func() time.Time) *Builder {
	return &Builder{now: now}
}

// Now reports the builder's clock, so callers derive defaults (a GTT expiry)
// from the same time base validation checks them against.
func (b *Builder) Now() time.Time {
	return b.now()
}

// BuildCreateOrder validates a create-order request and returns its
// canonical encoding for the given scope and sequence nonce.
func (b *Builder) BuildCreateOrder(scope SignerScope, nonce uint64, req *CreateOrderTxReq) ([]byte, error) {
	if err := b.ValidateCreateOrder(req); err != nil {
		return nil, err
	}
	return encodeCreateOrder(scope, nonce, req), nil
}

func (b *Builder) BuildModifyOrder(scope SignerScope, nonce uint64, req *ModifyOrderTxReq) ([]byte, error) {
	if err := b.ValidateModifyOrder(req); err != nil {
		return nil, err
	}
	return encodeModifyOrder(scope, nonce, req), nil
}

func (b *Builder) BuildCancelOrder(scope SignerScope, nonce uint64, req *CancelOrderTxReq) ([]byte, error) {
	if err := b.ValidateCancelOrder(req); err != nil {
		return nil, err
	}
	return encodeCancelOrder(scope, nonce, req), nil
}

func (b *Builder) BuildUpdateLeverage(scope SignerScope, nonce uint64, req *UpdateLeverageTxReq) ([]byte, error) {
	if err := b.ValidateUpdateLeverage(req); err != nil {
		return nil, err
	}
	return encodeUpdateLeverage(scope, nonce, req), nil
}

// ValidateCreateOrder checks every caller-supplied field of a create-order
// request against the venue's rules.
func (b *Builder) ValidateCreateOrder(req *CreateOrderTxReq) error {
	if req.BaseAmount <= 0 {
		return &ValidationError{Field: "base_amount", Reason: "must be positive"}
	}
	if req.Price < 0 {
		return &ValidationError{Field: "price", Reason: "must not be negative"}
	}
	if req.ClientOrderIndex < 0 {
		return &ValidationError{Field: "client_order_index", Reason: "must not be negative"}
	}
	if req.IsAsk > 1 {
		return &ValidationError{Field: "is_ask", Reason: "must be 0 (bid) or 1 (ask)"}
	}
	if req.ReduceOnly > 1 {
		return &ValidationError{Field: "reduce_only", Reason: "must be 0 or 1"}
	}

	switch req.Type {
	case OrderTypeLimit, OrderTypeMarket:
	case OrderTypeStopLoss, OrderTypeTakeProfit:
		if req.TriggerPrice == 0 {
			return &ValidationError{Field: "trigger_price", Reason: "required for stop-loss and take-profit orders"}
		}
	default:
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown order type %d", req.Type)}
	}

	switch req.TimeInForce {
	case TifGoodTillTime:
		if req.OrderExpiry <= b.now().UnixMilli() {
			return &ValidationError{Field: "order_expiry", Reason: "good-till-time orders require a future expiry"}
		}
	case TifImmediateOrCancel:
	default:
		return &ValidationError{Field: "time_in_force", Reason: fmt.Sprintf("unknown time in force %d", req.TimeInForce)}
	}

	// Market orders execute against the book immediately; a resting market
	// order is not a meaningful request.
	if req.Type == OrderTypeMarket && req.TimeInForce != TifImmediateOrCancel {
		return &ValidationError{Field: "time_in_force", Reason: "market orders must be immediate-or-cancel"}
	}

	return nil
}

func (b *Builder) ValidateModifyOrder(req *ModifyOrderTxReq) error {
	if req.Index < 0 {
		return &ValidationError{Field: "index", Reason: "must not be negative"}
	}
	if req.BaseAmount <= 0 {
		return &ValidationError{Field: "base_amount", Reason: "must be positive"}
	}
	if req.Price < 0 {
		return &ValidationError{Field: "price", Reason: "must not be negative"}
	}
	return nil
}

func (b *Builder) ValidateCancelOrder(req *CancelOrderTxReq) error {
	if req.Index < 0 {
		return &ValidationError{Field: "index", Reason: "must not be negative"}
	}
	return nil
}

func (b *Builder) ValidateUpdateLeverage(req *UpdateLeverageTxReq) error {
	if req.LeverageMultiplier < 1 || req.LeverageMultiplier > MaxLeverage {
		return &ValidationError{
			Field:  "leverage_multiplier",
			Reason: fmt.Sprintf("must be between 1 and %d", MaxLeverage),
		}
	}
	switch req.MarginMode {
	case MarginModeCross, MarginModeIsolated:
	default:
		return &ValidationError{Field: "margin_mode", Reason: fmt.Sprintf("unknown margin mode %d", req.MarginMode)}
	}
	return nil
}
