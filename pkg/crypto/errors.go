package crypto

import "fmt"

// InvalidPrivateKeyLengthError is returned when key material does not match
// one of the two accepted widths. It is fatal: no KeyManager is constructed.
type InvalidPrivateKeyLengthError struct {
	Expected int
	Actual   int
}

func (e *InvalidPrivateKeyLengthError) Error() string {
	return fmt.Sprintf("invalid private key length: expected %d (or %d) bytes, got %d",
		e.Expected, CompactPrivateKeyLength, e.Actual)
}

// InvalidDigestLengthError is returned by Sign when the input is not exactly
// DigestLength bytes. Callers must hash with TxDigest before signing.
type InvalidDigestLengthError struct {
	Expected int
	Actual   int
}

func (e *InvalidDigestLengthError) Error() string {
	return fmt.Sprintf("invalid digest length: expected %d bytes, got %d", e.Expected, e.Actual)
}

// CryptoError marks an internal invariant violation (bad scalar, wrong output
// width). It signals an implementation defect, not a business condition, and
// should be impossible to trigger with well-formed input.
type CryptoError struct {
	Reason string
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("crypto: %s", e.Reason)
}
