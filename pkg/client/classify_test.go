package client

import (
	"errors"
	"testing"
)

func strptr(s string) *string { return &s }

func TestClassifyScenarios(t *testing.T) {
	cases := []struct {
		name    string
		resp    *TxResponse
		err     error
		outcome Outcome
		retry   bool
		nonce   NonceDisposition
	}{
		{
			name:    "success with tx hash",
			resp:    &TxResponse{Code: 200, TxHash: strptr("0xabc")},
			outcome: OutcomeSuccess,
			retry:   false,
			nonce:   NonceConsume,
		},
		{
			name:    "invalid base amount",
			resp:    &TxResponse{Code: 21701, Message: strptr("invalid base amount")},
			outcome: OutcomeValidation,
			retry:   false,
			nonce:   NonceConsume,
		},
		{
			name:    "api key not found",
			resp:    &TxResponse{Code: 21109, Message: strptr("api key not found")},
			outcome: OutcomeClientConfig,
			retry:   false,
			nonce:   NonceConsume,
		},
		{
			name:    "malformed api key",
			resp:    &TxResponse{Code: 21120},
			outcome: OutcomeClientConfig,
			retry:   false,
			nonce:   NonceConsume,
		},
		{
			name:    "invalid nonce",
			resp:    &TxResponse{Code: 21104, Message: strptr("invalid nonce")},
			outcome: OutcomeSequencing,
			retry:   true,
			nonce:   NonceConsume,
		},
		{
			name:    "duplicate nonce",
			resp:    &TxResponse{Code: 21105},
			outcome: OutcomeSequencing,
			retry:   true,
			nonce:   NonceConsume,
		},
		{
			name:    "network timeout",
			err:     errors.New("dial tcp: i/o timeout"),
			outcome: OutcomeTransient,
			retry:   true,
			nonce:   NonceInDoubt,
		},
		{
			name:    "nil response without error",
			outcome: OutcomeTransient,
			retry:   true,
			nonce:   NonceInDoubt,
		},
		{
			name:    "unknown venue code passes through",
			resp:    &TxResponse{Code: 34015, Message: strptr("margin check failed")},
			outcome: OutcomeBusiness,
			retry:   false,
			nonce:   NonceConsume,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cls := Classify(tc.resp, tc.err)
			if cls.Outcome != tc.outcome {
				t.Errorf("outcome = %s, want %s", cls.Outcome, tc.outcome)
			}
			if cls.Retry != tc.retry {
				t.Errorf("retry = %v, want %v", cls.Retry, tc.retry)
			}
			if cls.Nonce != tc.nonce {
				t.Errorf("nonce disposition = %d, want %d", cls.Nonce, tc.nonce)
			}
			if tc.resp != nil && cls.Code != tc.resp.Code {
				t.Errorf("code not preserved verbatim: got %d, want %d", cls.Code, tc.resp.Code)
			}
			if tc.resp != nil && tc.resp.Message != nil && cls.Message != *tc.resp.Message {
				t.Errorf("message not preserved verbatim: got %q, want %q", cls.Message, *tc.resp.Message)
			}
		})
	}
}
