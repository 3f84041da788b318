package transaction

import "encoding/binary"

// Canonical encoding: a fixed-layout byte string fed to the digest function.
// Layout is one tag byte, the signer scope, the sequence nonce, then the
// per-kind fields in declaration order, all integers big-endian at fixed
// widths. Two transactions encode identically iff every field matches.

type encoder struct {
	buf []byte
}

func newEncoder(tag TxType, scope SignerScope, nonce uint64) *encoder {
	e := &encoder{buf: make([]byte, 0, 64)}
	e.putU8(uint8(tag))
	e.putI64(scope.AccountIndex)
	e.putU8(scope.ApiKeyIndex)
	e.putU32(scope.ChainID)
	e.putU64(nonce)
	return e
}

func (e *encoder) putU8(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *encoder) putU32(v uint32) {
	e.buf = binary.BigEndian.AppendUint32(e.buf, v)
}

func (e *encoder) putU64(v uint64) {
	e.buf = binary.BigEndian.AppendUint64(e.buf, v)
}

func (e *encoder) putI64(v int64) {
	e.buf = binary.BigEndian.AppendUint64(e.buf, uint64(v))
}

func encodeCreateOrder(scope SignerScope, nonce uint64, req *CreateOrderTxReq) []byte {
	e := newEncoder(TxTypeCreateOrder, scope, nonce)
	e.putU8(req.MarketIndex)
	e.putI64(req.ClientOrderIndex)
	e.putI64(req.BaseAmount)
	e.putI64(req.Price)
	e.putU8(req.IsAsk)
	e.putU8(uint8(req.Type))
	e.putU8(uint8(req.TimeInForce))
	e.putU8(req.ReduceOnly)
	e.putI64(req.TriggerPrice)
	e.putI64(req.OrderExpiry)
	return e.buf
}

func encodeModifyOrder(scope SignerScope, nonce uint64, req *ModifyOrderTxReq) []byte {
	e := newEncoder(TxTypeModifyOrder, scope, nonce)
	e.putU8(req.MarketIndex)
	e.putI64(req.Index)
	e.putI64(req.BaseAmount)
	e.putI64(req.Price)
	e.putI64(req.TriggerPrice)
	return e.buf
}

func encodeCancelOrder(scope SignerScope, nonce uint64, req *CancelOrderTxReq) []byte {
	e := newEncoder(TxTypeCancelOrder, scope, nonce)
	e.putU8(req.MarketIndex)
	e.putI64(req.Index)
	return e.buf
}

func encodeUpdateLeverage(scope SignerScope, nonce uint64, req *UpdateLeverageTxReq) []byte {
	e := newEncoder(TxTypeUpdateLeverage, scope, nonce)
	e.putU8(req.MarketIndex)
	e.putU8(req.LeverageMultiplier)
	e.putU8(uint8(req.MarginMode))
	return e.buf
}
