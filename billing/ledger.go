package billing

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/edupay/tuition_pay/models"
)

// RefKind identifies which processor object a reference points at. Each
// installment row holds at most one reference.
type RefKind string

const (
	RefPaymentIntent RefKind = "payment_intent"
	RefInvoice       RefKind = "invoice"
	RefPaymentLink   RefKind = "payment_link"
)

type ExternalRef struct {
	Kind RefKind
	ID   string
}

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// Store is the persistence collaborator for enrollments and installments.
// The Mark* methods must apply conditionally ("where status still open")
// and report whether a row actually changed, so racing notifications
// serialize per installment.
type Store interface {
	CreateEnrollment(ctx context.Context, enrollment *models.Enrollment, installments []models.Installment, payments []models.Payment) error
	EnrollmentByID(ctx context.Context, id uuid.UUID) (models.Enrollment, error)
	EnrollmentByUser(ctx context.Context, userID uuid.UUID) (models.Enrollment, error)
	InstallmentsByEnrollment(ctx context.Context, enrollmentID uuid.UUID) ([]models.Installment, error)
	InstallmentsByReference(ctx context.Context, refID string) ([]models.Installment, error)
	OpenInstallmentsBySubscription(ctx context.Context, subscriptionRef string) ([]models.Installment, error)
	MarkInstallmentPending(ctx context.Context, id uuid.UUID) (bool, error)
	MarkInstallmentPaid(ctx context.Context, id uuid.UUID, ref ExternalRef, paidAt time.Time) (bool, error)
	MarkInstallmentFailed(ctx context.Context, id uuid.UUID, ref ExternalRef, reason string) (bool, error)
	CancelEnrollmentBySubscription(ctx context.Context, subscriptionRef string) (bool, error)
	InstallmentsDueBetween(ctx context.Context, from, to time.Time) ([]models.Installment, error)
}

// CanTransition is the one place installment status changes are allowed
// or refused.
func CanTransition(from, to string) bool {
	switch to {
	case models.InstallmentStatusPending:
		return from == models.InstallmentStatusScheduled
	case models.InstallmentStatusPaid, models.InstallmentStatusFailed:
		return from == models.InstallmentStatusScheduled || from == models.InstallmentStatusPending
	}
	return false
}

// Ledger applies asynchronous processor outcomes to installment rows.
// Every apply is idempotent: replays and lost races are no-ops, never
// errors.
type Ledger struct {
	store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// ApplyChargeOutcome resolves ref against exactly one installment and
// moves it to its terminal state. The returned bool is false when the
// call was a no-op (already terminal, or another notification won the
// race).
func (l *Ledger) ApplyChargeOutcome(ctx context.Context, ref ExternalRef, outcome Outcome, failureReason string, at time.Time) (models.Installment, bool, error) {
	matches, err := l.store.InstallmentsByReference(ctx, ref.ID)
	if err != nil {
		return models.Installment{}, false, err
	}
	switch {
	case len(matches) == 0:
		return models.Installment{}, false, ErrUnknownReference
	case len(matches) > 1:
		return models.Installment{}, false, ErrAmbiguousReference
	}

	inst := matches[0]
	if !inst.Open() {
		return inst, false, nil
	}
	return l.settle(ctx, inst, ref, outcome, failureReason, at)
}

// ApplyChargeInitiated moves a scheduled installment to pending when the
// payer has started a charge whose settlement is still outstanding (an
// ACH debit takes days to clear after the payment session completes).
// The terminal outcome arrives later through ApplyChargeOutcome. Replays
// and already-settled rows are no-ops.
func (l *Ledger) ApplyChargeInitiated(ctx context.Context, ref ExternalRef) (models.Installment, bool, error) {
	matches, err := l.store.InstallmentsByReference(ctx, ref.ID)
	if err != nil {
		return models.Installment{}, false, err
	}
	switch {
	case len(matches) == 0:
		return models.Installment{}, false, ErrUnknownReference
	case len(matches) > 1:
		return models.Installment{}, false, ErrAmbiguousReference
	}

	inst := matches[0]
	if !CanTransition(inst.Status, models.InstallmentStatusPending) {
		return inst, false, nil
	}
	applied, err := l.store.MarkInstallmentPending(ctx, inst.ID)
	if err != nil {
		return models.Installment{}, false, err
	}
	if applied {
		inst.Status = models.InstallmentStatusPending
	}
	return inst, applied, nil
}

// ApplyInvoiceOutcome handles subscription-cycle billing. Cycle
// installments only carry the parent subscription reference up front, so
// the invoice is bound to the lowest-numbered open installment when its
// outcome arrives. A replayed invoice id resolves through the bound
// reference and no-ops.
func (l *Ledger) ApplyInvoiceOutcome(ctx context.Context, subscriptionRef, invoiceRef string, outcome Outcome, failureReason string, at time.Time) (models.Installment, bool, error) {
	seen, err := l.store.InstallmentsByReference(ctx, invoiceRef)
	if err != nil {
		return models.Installment{}, false, err
	}
	if len(seen) > 1 {
		return models.Installment{}, false, ErrAmbiguousReference
	}
	if len(seen) == 1 {
		// Replay: the invoice is already bound to a row.
		return seen[0], false, nil
	}

	open, err := l.store.OpenInstallmentsBySubscription(ctx, subscriptionRef)
	if err != nil {
		return models.Installment{}, false, err
	}
	if len(open) == 0 {
		return models.Installment{}, false, ErrUnknownReference
	}
	sort.Slice(open, func(i, j int) bool {
		return open[i].InstallmentNumber < open[j].InstallmentNumber
	})
	return l.settle(ctx, open[0], ExternalRef{Kind: RefInvoice, ID: invoiceRef}, outcome, failureReason, at)
}

// ApplySubscriptionCancelled cancels the enrollment attached to
// subscriptionRef. Outstanding installments keep their current statuses.
func (l *Ledger) ApplySubscriptionCancelled(ctx context.Context, subscriptionRef string) error {
	found, err := l.store.CancelEnrollmentBySubscription(ctx, subscriptionRef)
	if err != nil {
		return err
	}
	if !found {
		return ErrUnknownReference
	}
	return nil
}

// InstallmentsDueWithin lists still-unpaid installments due in the next
// given number of days, for the reminder job.
func (l *Ledger) InstallmentsDueWithin(ctx context.Context, now time.Time, days int) ([]models.Installment, error) {
	return l.store.InstallmentsDueBetween(ctx, now, now.AddDate(0, 0, days))
}

func (l *Ledger) settle(ctx context.Context, inst models.Installment, ref ExternalRef, outcome Outcome, failureReason string, at time.Time) (models.Installment, bool, error) {
	var (
		applied bool
		err     error
	)
	switch outcome {
	case OutcomeSucceeded:
		if !CanTransition(inst.Status, models.InstallmentStatusPaid) {
			return inst, false, nil
		}
		applied, err = l.store.MarkInstallmentPaid(ctx, inst.ID, ref, at)
		if applied {
			inst.Status = models.InstallmentStatusPaid
			inst.PaidAt = &at
		}
	case OutcomeFailed:
		if !CanTransition(inst.Status, models.InstallmentStatusFailed) {
			return inst, false, nil
		}
		applied, err = l.store.MarkInstallmentFailed(ctx, inst.ID, ref, failureReason)
		if applied {
			inst.Status = models.InstallmentStatusFailed
			inst.FailureReason = &failureReason
		}
	}
	if err != nil {
		return models.Installment{}, false, err
	}
	return inst, applied, nil
}
