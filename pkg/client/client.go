// Package client implements the transaction signing and submission pipeline:
// validate -> reserve sequence nonce -> encode -> digest -> sign -> submit ->
// classify, with the scope held exclusively from allocation until the
// submission outcome is known so nonces reach the sequencer in order.
package client

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/0xvasanth/lighter-go/params"
	"github.com/0xvasanth/lighter-go/pkg/crypto"
	"github.com/0xvasanth/lighter-go/pkg/nonce"
	"github.com/0xvasanth/lighter-go/pkg/transaction"
)

// defaultOrderExpiry is applied to good-till-time convenience constructors
// when the caller does not pick an expiry.
const defaultOrderExpiry = 28 * 24 * time.Hour

// TxOpts tunes a single operation. A nil *TxOpts means defaults.
type TxOpts struct {
	// Nonce, when set, bypasses the allocator entirely. The caller owns
	// sequencing; intended for offline signing and recovery tooling.
	Nonce *uint64
	// Timeout bounds the network round trip of SendTransaction.
	Timeout time.Duration
}

// TxClient signs and submits transactions for one (account, api-key) scope.
// It is safe for concurrent use; the nonce allocator serializes same-scope
// submissions while unrelated scopes proceed independently.
type TxClient struct {
	km      *crypto.KeyManager
	builder *transaction.Builder
	alloc   *nonce.Allocator
	sub     Submitter
	scope   transaction.SignerScope
	log     *zap.Logger

	staleness time.Duration
	source    nonce.Source
}

// Option customizes a TxClient at construction.
type Option func(*TxClient)

// WithLogger replaces the no-op default logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *TxClient) { c.log = log }
}

// WithTransport replaces the HTTP transport, e.g. with a test double. The
// source feeds the nonce allocator's authoritative lookups.
func WithTransport(sub Submitter, src nonce.Source) Option {
	return func(c *TxClient) {
		c.sub = sub
		c.source = src
	}
}

// WithNonceStaleness overrides how long cached nonce state stays trusted.
func WithNonceStaleness(d time.Duration) Option {
	return func(c *TxClient) { c.staleness = d }
}

// NewTxClient builds a client from explicit arguments. The private key is
// hex, with or without 0x prefix, 32 or 40 bytes decoded.
func NewTxClient(apiURL, privateKeyHex string, accountIndex int64, apiKeyIndex uint8, chainID uint32, opts ...Option) (*TxClient, error) {
	km, err := crypto.FromHex(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize key manager: %w", err)
	}

	httpSub := NewHTTPSubmitter(apiURL, 0)
	c := &TxClient{
		km:      km,
		builder: transaction.NewBuilder(),
		sub:     httpSub,
		source:  httpSub,
		scope: transaction.SignerScope{
			AccountIndex: accountIndex,
			ApiKeyIndex:  apiKeyIndex,
			ChainID:      chainID,
		},
		log:       zap.NewNop(),
		staleness: nonce.DefaultStaleness,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.alloc = nonce.NewAllocator(c.source, c.staleness, c.log)
	return c, nil
}

// NewTxClientFromConfig builds a client from a params.Config.
func NewTxClientFromConfig(cfg params.Config, opts ...Option) (*TxClient, error) {
	var pre []Option
	if cfg.NonceStaleness > 0 {
		pre = append(pre, WithNonceStaleness(cfg.NonceStaleness))
	}
	if cfg.SubmitTimeout > 0 {
		hs := NewHTTPSubmitter(cfg.ApiURL, cfg.SubmitTimeout)
		pre = append(pre, WithTransport(hs, hs))
	}
	opts = append(pre, opts...)
	return NewTxClient(cfg.ApiURL, cfg.PrivateKey, cfg.AccountIndex, cfg.ApiKeyIndex, cfg.ChainID, opts...)
}

// PubKeyHex returns the account's compressed public key as hex.
func (c *TxClient) PubKeyHex() string {
	return c.km.PubKeyHex()
}

func (c *TxClient) nonceScope() nonce.Scope {
	return nonce.Scope{AccountIndex: c.scope.AccountIndex, ApiKeyIndex: c.scope.ApiKeyIndex}
}

// PendingTx is a signed envelope plus the sequence-nonce lease backing it.
// Until SendTransaction (or Discard) settles it, the scope stays exclusively
// held and no other same-scope transaction can be allocated.
type PendingTx struct {
	*transaction.SignedTx

	lease   *nonce.Lease
	resign  func(n uint64) (*transaction.SignedTx, error)
	timeout time.Duration
	retried bool
	inDoubt bool
}

// Discard releases a never-submitted transaction's nonce back to the
// allocator. Calling it after submission is a no-op.
func (p *PendingTx) Discard() {
	p.settle(NonceReclaim)
}

func (p *PendingTx) settle(d NonceDisposition) {
	if p.lease == nil {
		return
	}
	switch d {
	case NonceConsume:
		p.lease.Consume()
	case NonceReclaim:
		p.lease.Release()
	case NonceInDoubt:
		p.lease.InDoubt()
	}
	p.lease = nil
}

// seal encodes, digests, and signs one operation at a given sequence nonce.
func (c *TxClient) seal(txType transaction.TxType, req any, n uint64, encode func(uint64) ([]byte, error)) (*transaction.SignedTx, error) {
	encoded, err := encode(n)
	if err != nil {
		return nil, err
	}
	digest, err := crypto.TxDigest(encoded)
	if err != nil {
		return nil, err
	}
	sig, err := c.km.Sign(digest)
	if err != nil {
		return nil, err
	}
	txInfo, err := transaction.BuildTxInfo(c.scope, n, req)
	if err != nil {
		return nil, err
	}
	return &transaction.SignedTx{
		TxType: txType,
		TxInfo: txInfo,
		Nonce:  n,
		Sig:    sig,
		PubKey: c.km.PubKey(),
		TxHash: hex.EncodeToString(digest),
	}, nil
}

// signTx reserves a sequence nonce (unless the caller pinned one) and seals
// the transaction. On any failure after allocation the nonce is released:
// the remote never observed it.
func (c *TxClient) signTx(ctx context.Context, txType transaction.TxType, req any, encode func(uint64) ([]byte, error), opts *TxOpts) (*PendingTx, error) {
	var timeout time.Duration
	if opts != nil {
		timeout = opts.Timeout
	}

	if opts != nil && opts.Nonce != nil {
		signed, err := c.seal(txType, req, *opts.Nonce, encode)
		if err != nil {
			return nil, err
		}
		return &PendingTx{SignedTx: signed, timeout: timeout}, nil
	}

	lease, err := c.alloc.Acquire(ctx, c.nonceScope())
	if err != nil {
		return nil, err
	}

	signed, err := c.seal(txType, req, lease.Nonce(), encode)
	if err != nil {
		lease.Release()
		return nil, err
	}

	p := &PendingTx{SignedTx: signed, lease: lease, timeout: timeout}
	p.resign = func(n uint64) (*transaction.SignedTx, error) {
		return c.seal(txType, req, n, encode)
	}
	return p, nil
}

// CreateOrder validates, allocates a nonce for, and signs a create-order
// request. Submit the result with SendTransaction.
func (c *TxClient) CreateOrder(ctx context.Context, req *transaction.CreateOrderTxReq, opts *TxOpts) (*PendingTx, error) {
	if err := c.builder.ValidateCreateOrder(req); err != nil {
		return nil, err
	}
	return c.signTx(ctx, transaction.TxTypeCreateOrder, req, func(n uint64) ([]byte, error) {
		return c.builder.BuildCreateOrder(c.scope, n, req)
	}, opts)
}

// CreateLimitOrder is a good-till-time limit order with a default 28-day
// expiry.
func (c *TxClient) CreateLimitOrder(ctx context.Context, marketIndex uint8, clientOrderIndex, baseAmount, price int64, isAsk uint8, reduceOnly bool, opts *TxOpts) (*PendingTx, error) {
	return c.CreateOrder(ctx, &transaction.CreateOrderTxReq{
		MarketIndex:      marketIndex,
		ClientOrderIndex: clientOrderIndex,
		BaseAmount:       baseAmount,
		Price:            price,
		IsAsk:            isAsk,
		Type:             transaction.OrderTypeLimit,
		TimeInForce:      transaction.TifGoodTillTime,
		ReduceOnly:       boolToFlag(reduceOnly),
		OrderExpiry:      c.builder.Now().Add(defaultOrderExpiry).UnixMilli(),
	}, opts)
}

// CreateMarketOrder executes immediately against the book; price is the
// worst acceptable execution price.
func (c *TxClient) CreateMarketOrder(ctx context.Context, marketIndex uint8, clientOrderIndex, baseAmount, price int64, isAsk uint8, reduceOnly bool, opts *TxOpts) (*PendingTx, error) {
	return c.CreateOrder(ctx, &transaction.CreateOrderTxReq{
		MarketIndex:      marketIndex,
		ClientOrderIndex: clientOrderIndex,
		BaseAmount:       baseAmount,
		Price:            price,
		IsAsk:            isAsk,
		Type:             transaction.OrderTypeMarket,
		TimeInForce:      transaction.TifImmediateOrCancel,
		ReduceOnly:       boolToFlag(reduceOnly),
	}, opts)
}

// CreateSLOrder places a stop-loss: executes at price once triggerPrice trades.
func (c *TxClient) CreateSLOrder(ctx context.Context, marketIndex uint8, clientOrderIndex, baseAmount, triggerPrice, price int64, isAsk uint8, reduceOnly bool, opts *TxOpts) (*PendingTx, error) {
	return c.createTriggerOrder(ctx, transaction.OrderTypeStopLoss, marketIndex, clientOrderIndex, baseAmount, triggerPrice, price, isAsk, reduceOnly, opts)
}

// CreateTPOrder places a take-profit: executes at price once triggerPrice trades.
func (c *TxClient) CreateTPOrder(ctx context.Context, marketIndex uint8, clientOrderIndex, baseAmount, triggerPrice, price int64, isAsk uint8, reduceOnly bool, opts *TxOpts) (*PendingTx, error) {
	return c.createTriggerOrder(ctx, transaction.OrderTypeTakeProfit, marketIndex, clientOrderIndex, baseAmount, triggerPrice, price, isAsk, reduceOnly, opts)
}

func (c *TxClient) createTriggerOrder(ctx context.Context, orderType transaction.OrderType, marketIndex uint8, clientOrderIndex, baseAmount, triggerPrice, price int64, isAsk uint8, reduceOnly bool, opts *TxOpts) (*PendingTx, error) {
	return c.CreateOrder(ctx, &transaction.CreateOrderTxReq{
		MarketIndex:      marketIndex,
		ClientOrderIndex: clientOrderIndex,
		BaseAmount:       baseAmount,
		Price:            price,
		IsAsk:            isAsk,
		Type:             orderType,
		TimeInForce:      transaction.TifImmediateOrCancel,
		ReduceOnly:       boolToFlag(reduceOnly),
		TriggerPrice:     triggerPrice,
	}, opts)
}

// ModifyOrder reprices an existing order by its exchange-assigned index.
func (c *TxClient) ModifyOrder(ctx context.Context, req *transaction.ModifyOrderTxReq, opts *TxOpts) (*PendingTx, error) {
	if err := c.builder.ValidateModifyOrder(req); err != nil {
		return nil, err
	}
	return c.signTx(ctx, transaction.TxTypeModifyOrder, req, func(n uint64) ([]byte, error) {
		return c.builder.BuildModifyOrder(c.scope, n, req)
	}, opts)
}

// CancelOrder cancels an existing order by its exchange-assigned index.
func (c *TxClient) CancelOrder(ctx context.Context, req *transaction.CancelOrderTxReq, opts *TxOpts) (*PendingTx, error) {
	if err := c.builder.ValidateCancelOrder(req); err != nil {
		return nil, err
	}
	return c.signTx(ctx, transaction.TxTypeCancelOrder, req, func(n uint64) ([]byte, error) {
		return c.builder.BuildCancelOrder(c.scope, n, req)
	}, opts)
}

// UpdateLeverage adjusts a market's leverage multiplier and margin mode.
func (c *TxClient) UpdateLeverage(ctx context.Context, req *transaction.UpdateLeverageTxReq, opts *TxOpts) (*PendingTx, error) {
	if err := c.builder.ValidateUpdateLeverage(req); err != nil {
		return nil, err
	}
	return c.signTx(ctx, transaction.TxTypeUpdateLeverage, req, func(n uint64) ([]byte, error) {
		return c.builder.BuildUpdateLeverage(c.scope, n, req)
	}, opts)
}

// UpdateLeverageWithMultiplier is shorthand for UpdateLeverage.
func (c *TxClient) UpdateLeverageWithMultiplier(ctx context.Context, marketIndex, multiplier uint8, mode transaction.MarginMode, opts *TxOpts) (*PendingTx, error) {
	return c.UpdateLeverage(ctx, &transaction.UpdateLeverageTxReq{
		MarketIndex:        marketIndex,
		LeverageMultiplier: multiplier,
		MarginMode:         mode,
	}, opts)
}

// SendTransaction submits a signed transaction and settles its nonce lease
// by the classifier's verdict. A sequencing conflict triggers exactly one
// forced refresh and retry with a fresh nonce; a second conflict is fatal.
// When no response is received the nonce is quarantined and the error wraps
// the transport failure; the caller may Resubmit the identical envelope.
func (c *TxClient) SendTransaction(ctx context.Context, ptx *PendingTx) (*TxResponse, error) {
	if ptx.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ptx.timeout)
		defer cancel()
	}

	for {
		resp, sendErr := c.sub.SendTx(ctx, ptx.SignedTx)
		cls := Classify(resp, sendErr)

		c.log.Info("transaction submitted",
			zap.String("tx_type", ptx.TxType.String()),
			zap.Uint64("nonce", ptx.Nonce),
			zap.String("outcome", cls.Outcome.String()),
			zap.Int32("code", cls.Code))

		switch cls.Outcome {
		case OutcomeSuccess:
			ptx.settle(NonceConsume)
			return resp, nil

		case OutcomeSequencing:
			// The conflicted nonce is spent on the remote side either way.
			ptx.settle(NonceConsume)
			if ptx.retried || ptx.resign == nil {
				return resp, &SequencingConflictError{Code: cls.Code, Message: cls.Message}
			}
			ptx.retried = true
			if err := c.alloc.ForceRefresh(ctx, c.nonceScope()); err != nil {
				return resp, fmt.Errorf("nonce reconciliation failed: %w", err)
			}
			lease, err := c.alloc.Acquire(ctx, c.nonceScope())
			if err != nil {
				return resp, fmt.Errorf("nonce reallocation failed: %w", err)
			}
			signed, err := ptx.resign(lease.Nonce())
			if err != nil {
				lease.Release()
				return resp, err
			}
			ptx.SignedTx = signed
			ptx.lease = lease
			continue

		case OutcomeTransient:
			// Outcome unknown, not failed. The nonce may be in flight; it is
			// quarantined until a definitive result is observed.
			ptx.settle(NonceInDoubt)
			ptx.inDoubt = true
			if sendErr == nil {
				sendErr = fmt.Errorf("no response received")
			}
			return nil, &SubmitError{Err: sendErr}

		default:
			// Remote acknowledged receipt and rejected the content: the nonce
			// is consumed and must never be reissued.
			ptx.settle(NonceConsume)
			return resp, &BusinessRejectionError{Code: cls.Code, Message: cls.Message, Outcome: cls.Outcome}
		}
	}
}

// Resubmit retries a transaction whose outcome is unknown, with byte-for-byte
// identical content: resubmitting different content under the same nonce
// would be equivocation. On a definitive response the quarantined nonce is
// resolved as consumed.
func (c *TxClient) Resubmit(ctx context.Context, ptx *PendingTx) (*TxResponse, error) {
	if !ptx.inDoubt {
		return nil, fmt.Errorf("resubmit is only valid after an unknown submission outcome")
	}

	resp, sendErr := c.sub.SendTx(ctx, ptx.SignedTx)
	cls := Classify(resp, sendErr)

	if cls.Outcome == OutcomeTransient {
		if sendErr == nil {
			sendErr = fmt.Errorf("no response received")
		}
		return nil, &SubmitError{Err: sendErr}
	}

	c.alloc.Resolve(c.nonceScope(), ptx.Nonce, true)
	ptx.inDoubt = false

	switch cls.Outcome {
	case OutcomeSuccess:
		return resp, nil
	case OutcomeSequencing:
		// A duplicate-nonce verdict here usually means the first attempt
		// landed; surface it for the caller to reconcile against tx history.
		return resp, &SequencingConflictError{Code: cls.Code, Message: cls.Message}
	default:
		return resp, &BusinessRejectionError{Code: cls.Code, Message: cls.Message, Outcome: cls.Outcome}
	}
}

func boolToFlag(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
