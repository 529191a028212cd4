package billing

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount  = errors.New("tuition amount must be positive and within the configured maximum")
	ErrUnknownPlan    = errors.New("unknown payment plan")
	ErrUnknownChannel = errors.New("unknown charge channel")

	ErrUnknownReference   = errors.New("no installment matches this reference")
	ErrAmbiguousReference = errors.New("reference matches more than one installment")
)

// DeclinedError carries the processor's decline reason verbatim so the
// caller can show it to the payer.
type DeclinedError struct {
	Reason string
}

func (e *DeclinedError) Error() string {
	return fmt.Sprintf("charge declined: %s", e.Reason)
}

// ReconciliationError means the first installment was charged but the
// enrollment could not be fully set up afterwards. The money has moved;
// the record has not. These must be reconciled by an operator.
type ReconciliationError struct {
	ChargeRef string
	Err       error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("charge %s succeeded but enrollment setup failed: %v", e.ChargeRef, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }
