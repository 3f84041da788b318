package client

import "fmt"

// TxResponse is one submission attempt's result as reported by the
// sequencer. Code 200 is the only success indicator; every other value is a
// venue-defined numeric code surfaced unmodified.
type TxResponse struct {
	Code    int32   `json:"code"`
	Message *string `json:"message,omitempty"`
	TxHash  *string `json:"tx_hash,omitempty"`
}

func (r *TxResponse) message() string {
	if r == nil || r.Message == nil {
		return ""
	}
	return *r.Message
}

// Sequencer result codes the classifier gives special treatment. The venue's
// code space is externally defined; anything unlisted passes through as a
// business rejection with the verbatim code.
const (
	CodeOK int32 = 200

	CodeInvalidNonce   int32 = 21104
	CodeDuplicateNonce int32 = 21105

	CodeApiKeyNotFound  int32 = 21109
	CodeMalformedApiKey int32 = 21120

	CodeInvalidBaseAmount int32 = 21701
	CodeInvalidPrice      int32 = 21703
	CodeInvalidTrigger    int32 = 21705
)

// Outcome is the local taxonomy a sequencer result maps into.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeClientConfig
	OutcomeValidation
	OutcomeSequencing
	OutcomeTransient
	OutcomeBusiness
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeClientConfig:
		return "client_config_error"
	case OutcomeValidation:
		return "validation_error"
	case OutcomeSequencing:
		return "sequencing_conflict"
	case OutcomeTransient:
		return "transient"
	case OutcomeBusiness:
		return "business_rejection"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// NonceDisposition says what happens to the sequence nonce after an attempt.
type NonceDisposition int

const (
	// NonceConsume: the remote acknowledged receipt; the nonce is spent even
	// if the transaction's content was rejected.
	NonceConsume NonceDisposition = iota
	// NonceReclaim: the remote never observed the nonce; it may be reused by
	// the next allocation.
	NonceReclaim
	// NonceInDoubt: the outcome is unknown; the nonce is quarantined until a
	// definitive result is observed.
	NonceInDoubt
)

// Classification is the classifier's verdict: the local taxonomy bucket, a
// retry recommendation, the nonce disposition, and the verbatim venue code.
type Classification struct {
	Outcome Outcome
	Retry   bool
	Nonce   NonceDisposition
	Code    int32
	Message string
}

// Classify maps a submission attempt to the local error taxonomy. A nil
// response with a non-nil error means no response was received: transient,
// retry permitted, nonce in doubt. Any response means the remote
// acknowledged receipt, so the nonce is consumed regardless of the verdict.
func Classify(resp *TxResponse, err error) Classification {
	if err != nil || resp == nil {
		msg := "no response received"
		if err != nil {
			msg = err.Error()
		}
		return Classification{Outcome: OutcomeTransient, Retry: true, Nonce: NonceInDoubt, Message: msg}
	}

	c := Classification{Code: resp.Code, Message: resp.message(), Nonce: NonceConsume}
	switch resp.Code {
	case CodeOK:
		c.Outcome = OutcomeSuccess
	case CodeInvalidNonce, CodeDuplicateNonce:
		// One forced refresh-and-retry; a second conflict is fatal.
		c.Outcome = OutcomeSequencing
		c.Retry = true
	case CodeApiKeyNotFound, CodeMalformedApiKey:
		c.Outcome = OutcomeClientConfig
	case CodeInvalidBaseAmount, CodeInvalidPrice, CodeInvalidTrigger:
		c.Outcome = OutcomeValidation
	default:
		c.Outcome = OutcomeBusiness
	}
	return c
}
