package client

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/0xvasanth/lighter-go/pkg/transaction"
)

const (
	sendTxPath    = "/api/v1/sendTx"
	nextNoncePath = "/api/v1/nextNonce"

	defaultHTTPTimeout = 10 * time.Second
)

// Submitter transports a signed envelope to the remote sequencer and returns
// its result. Implementations must return a nil response only together with
// a non-nil error (no response received).
type Submitter interface {
	SendTx(ctx context.Context, tx *transaction.SignedTx) (*TxResponse, error)
}

// HTTPSubmitter speaks the sequencer's REST API. It implements both
// Submitter and the allocator's nonce Source.
type HTTPSubmitter struct {
	baseURL string
	hc      *http.Client
}

func NewHTTPSubmitter(baseURL string, timeout time.Duration) *HTTPSubmitter {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &HTTPSubmitter{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: timeout},
	}
}

// SendTx posts the signed envelope form-encoded to the sendTx endpoint.
// Any decoded sequencer response, success or not, is returned with a nil
// error; the classifier decides what it means.
func (s *HTTPSubmitter) SendTx(ctx context.Context, tx *transaction.SignedTx) (*TxResponse, error) {
	form := url.Values{}
	form.Set("tx_type", strconv.Itoa(int(tx.TxType)))
	form.Set("tx_info", string(tx.TxInfo))
	form.Set("nonce", strconv.FormatUint(tx.Nonce, 10))
	form.Set("sig", hex.EncodeToString(tx.Sig))
	form.Set("pub_key", hex.EncodeToString(tx.PubKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+sendTxPath,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build sendTx request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := s.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sendTx transport failed: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read sendTx response: %w", err)
	}

	var resp TxResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode sendTx response (http %d): %w", httpResp.StatusCode, err)
	}
	return &resp, nil
}

// NextNonce fetches the authoritative next sequence nonce for a scope.
func (s *HTTPSubmitter) NextNonce(ctx context.Context, accountIndex int64, apiKeyIndex uint8) (uint64, error) {
	q := url.Values{}
	q.Set("account_index", strconv.FormatInt(accountIndex, 10))
	q.Set("api_key_index", strconv.Itoa(int(apiKeyIndex)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.baseURL+nextNoncePath+"?"+q.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build nextNonce request: %w", err)
	}

	httpResp, err := s.hc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("nextNonce transport failed: %w", err)
	}
	defer httpResp.Body.Close()

	var resp struct {
		Code  int32  `json:"code"`
		Nonce uint64 `json:"nonce"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return 0, fmt.Errorf("failed to decode nextNonce response: %w", err)
	}
	if resp.Code != CodeOK {
		return 0, fmt.Errorf("nextNonce rejected: code=%d", resp.Code)
	}
	return resp.Nonce, nil
}
