package client

import "fmt"

// SequencingConflictError is returned when the sequencer rejected the
// transaction's nonce twice: once before the forced refresh and once after.
// It is fatal for the request; there is no unbounded retry loop.
type SequencingConflictError struct {
	Code    int32
	Message string
}

func (e *SequencingConflictError) Error() string {
	return fmt.Sprintf("sequencing conflict persisted after refresh: code=%d message=%q", e.Code, e.Message)
}

// BusinessRejectionError carries a venue rejection verbatim alongside the
// best-effort local classification. The numeric code space belongs to the
// venue and is never renamed or discarded here.
type BusinessRejectionError struct {
	Code    int32
	Message string
	Outcome Outcome
}

func (e *BusinessRejectionError) Error() string {
	return fmt.Sprintf("sequencer rejected transaction (%s): code=%d message=%q", e.Outcome, e.Code, e.Message)
}

// SubmitError wraps a transport failure where no sequencer response was
// received. The outcome is unknown, not failed; the nonce is in doubt and
// the same envelope may be resubmitted with identical content.
type SubmitError struct {
	Err error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submission outcome unknown: %v", e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}
