package billing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edupay/tuition_pay/models"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{models.InstallmentStatusScheduled, models.InstallmentStatusPending, true},
		{models.InstallmentStatusScheduled, models.InstallmentStatusPaid, true},
		{models.InstallmentStatusScheduled, models.InstallmentStatusFailed, true},
		{models.InstallmentStatusPending, models.InstallmentStatusPaid, true},
		{models.InstallmentStatusPending, models.InstallmentStatusFailed, true},
		{models.InstallmentStatusPaid, models.InstallmentStatusScheduled, false},
		{models.InstallmentStatusPaid, models.InstallmentStatusFailed, false},
		{models.InstallmentStatusFailed, models.InstallmentStatusPaid, false},
		{models.InstallmentStatusPending, models.InstallmentStatusScheduled, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestApplyChargeOutcome_MarksPaid(t *testing.T) {
	store := &mockStore{}
	ledger := NewLedger(store)

	inst := models.Installment{
		ID:                uuid.New(),
		InstallmentNumber: 2,
		Status:            models.InstallmentStatusScheduled,
	}
	ref := ExternalRef{Kind: RefPaymentIntent, ID: "pi_123"}
	at := time.Now().UTC()

	store.On("InstallmentsByReference", mock.Anything, "pi_123").Return([]models.Installment{inst}, nil)
	store.On("MarkInstallmentPaid", mock.Anything, inst.ID, ref, at).Return(true, nil)

	updated, applied, err := ledger.ApplyChargeOutcome(context.Background(), ref, OutcomeSucceeded, "", at)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, models.InstallmentStatusPaid, updated.Status)
	require.NotNil(t, updated.PaidAt)
	assert.Equal(t, at, *updated.PaidAt)

	store.AssertExpectations(t)
}

func TestApplyChargeOutcome_MarksFailedWithReason(t *testing.T) {
	store := &mockStore{}
	ledger := NewLedger(store)

	inst := models.Installment{ID: uuid.New(), Status: models.InstallmentStatusPending}
	ref := ExternalRef{Kind: RefPaymentIntent, ID: "pi_456"}

	store.On("InstallmentsByReference", mock.Anything, "pi_456").Return([]models.Installment{inst}, nil)
	store.On("MarkInstallmentFailed", mock.Anything, inst.ID, ref, "card_declined").Return(true, nil)

	updated, applied, err := ledger.ApplyChargeOutcome(context.Background(), ref, OutcomeFailed, "card_declined", time.Now())
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, models.InstallmentStatusFailed, updated.Status)
	require.NotNil(t, updated.FailureReason)
	assert.Equal(t, "card_declined", *updated.FailureReason)

	store.AssertExpectations(t)
}

// A replayed success notification for an already-paid installment is a
// no-op, not an error, and never touches the store again.
func TestApplyChargeOutcome_IdempotentOnPaid(t *testing.T) {
	store := &mockStore{}
	ledger := NewLedger(store)

	paidAt := time.Now().UTC()
	inst := models.Installment{
		ID:     uuid.New(),
		Status: models.InstallmentStatusPaid,
		PaidAt: &paidAt,
	}
	ref := ExternalRef{Kind: RefPaymentIntent, ID: "pi_123"}

	store.On("InstallmentsByReference", mock.Anything, "pi_123").Return([]models.Installment{inst}, nil)

	updated, applied, err := ledger.ApplyChargeOutcome(context.Background(), ref, OutcomeSucceeded, "", time.Now())
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, models.InstallmentStatusPaid, updated.Status)

	store.AssertExpectations(t)
	store.AssertNotCalled(t, "MarkInstallmentPaid", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// A failure notification racing in after a success must not flip the
// terminal state.
func TestApplyChargeOutcome_FailureAfterPaidIsNoOp(t *testing.T) {
	store := &mockStore{}
	ledger := NewLedger(store)

	inst := models.Installment{ID: uuid.New(), Status: models.InstallmentStatusPaid}
	ref := ExternalRef{Kind: RefPaymentIntent, ID: "pi_123"}

	store.On("InstallmentsByReference", mock.Anything, "pi_123").Return([]models.Installment{inst}, nil)

	_, applied, err := ledger.ApplyChargeOutcome(context.Background(), ref, OutcomeFailed, "late decline", time.Now())
	require.NoError(t, err)
	assert.False(t, applied)
	store.AssertNotCalled(t, "MarkInstallmentFailed", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// When the conditional update loses the per-row race, the apply reports
// not-applied rather than overwriting.
func TestApplyChargeOutcome_LostRaceIsNoOp(t *testing.T) {
	store := &mockStore{}
	ledger := NewLedger(store)

	inst := models.Installment{ID: uuid.New(), Status: models.InstallmentStatusPending}
	ref := ExternalRef{Kind: RefPaymentIntent, ID: "pi_123"}
	at := time.Now().UTC()

	store.On("InstallmentsByReference", mock.Anything, "pi_123").Return([]models.Installment{inst}, nil)
	store.On("MarkInstallmentPaid", mock.Anything, inst.ID, ref, at).Return(false, nil)

	_, applied, err := ledger.ApplyChargeOutcome(context.Background(), ref, OutcomeSucceeded, "", at)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestApplyChargeOutcome_ReferenceGuards(t *testing.T) {
	store := &mockStore{}
	ledger := NewLedger(store)

	store.On("InstallmentsByReference", mock.Anything, "pi_none").Return([]models.Installment{}, nil)
	store.On("InstallmentsByReference", mock.Anything, "pi_dup").Return([]models.Installment{
		{ID: uuid.New(), Status: models.InstallmentStatusPending},
		{ID: uuid.New(), Status: models.InstallmentStatusPending},
	}, nil)

	_, _, err := ledger.ApplyChargeOutcome(context.Background(), ExternalRef{Kind: RefPaymentIntent, ID: "pi_none"}, OutcomeSucceeded, "", time.Now())
	assert.ErrorIs(t, err, ErrUnknownReference)

	_, _, err = ledger.ApplyChargeOutcome(context.Background(), ExternalRef{Kind: RefPaymentIntent, ID: "pi_dup"}, OutcomeSucceeded, "", time.Now())
	assert.ErrorIs(t, err, ErrAmbiguousReference)

	store.AssertNotCalled(t, "MarkInstallmentPaid", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyChargeInitiated_MarksPending(t *testing.T) {
	store := &mockStore{}
	ledger := NewLedger(store)

	inst := models.Installment{
		ID:                uuid.New(),
		InstallmentNumber: 3,
		Status:            models.InstallmentStatusScheduled,
	}
	ref := ExternalRef{Kind: RefPaymentLink, ID: "plink_123"}

	store.On("InstallmentsByReference", mock.Anything, "plink_123").Return([]models.Installment{inst}, nil)
	store.On("MarkInstallmentPending", mock.Anything, inst.ID).Return(true, nil)

	updated, applied, err := ledger.ApplyChargeInitiated(context.Background(), ref)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, models.InstallmentStatusPending, updated.Status)

	store.AssertExpectations(t)
}

// A completed payment session only means the debit was initiated. The
// installment must stay open so the bank's eventual decision can land.
func TestApplyChargeInitiated_DoesNotSettle(t *testing.T) {
	store := &mockStore{}
	ledger := NewLedger(store)

	inst := models.Installment{ID: uuid.New(), Status: models.InstallmentStatusScheduled}
	ref := ExternalRef{Kind: RefPaymentLink, ID: "plink_123"}

	store.On("InstallmentsByReference", mock.Anything, "plink_123").Return([]models.Installment{inst}, nil)
	store.On("MarkInstallmentPending", mock.Anything, inst.ID).Return(true, nil)

	updated, _, err := ledger.ApplyChargeInitiated(context.Background(), ref)
	require.NoError(t, err)
	assert.True(t, updated.Open())
	assert.Nil(t, updated.PaidAt)
	store.AssertNotCalled(t, "MarkInstallmentPaid", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// The full ACH link lifecycle: the session completes (pending), then the
// debit bounces days later and the installment must end up failed.
func TestApplyChargeInitiated_ThenDebitFails(t *testing.T) {
	store := &mockStore{}
	ledger := NewLedger(store)

	scheduled := models.Installment{ID: uuid.New(), InstallmentNumber: 2, Status: models.InstallmentStatusScheduled}
	pending := scheduled
	pending.Status = models.InstallmentStatusPending
	ref := ExternalRef{Kind: RefPaymentLink, ID: "plink_456"}

	store.On("InstallmentsByReference", mock.Anything, "plink_456").Return([]models.Installment{scheduled}, nil).Once()
	store.On("MarkInstallmentPending", mock.Anything, scheduled.ID).Return(true, nil)
	store.On("InstallmentsByReference", mock.Anything, "plink_456").Return([]models.Installment{pending}, nil).Once()
	store.On("MarkInstallmentFailed", mock.Anything, scheduled.ID, ref, "bank debit failed").Return(true, nil)

	_, applied, err := ledger.ApplyChargeInitiated(context.Background(), ref)
	require.NoError(t, err)
	assert.True(t, applied)

	updated, applied, err := ledger.ApplyChargeOutcome(context.Background(), ref, OutcomeFailed, "bank debit failed", time.Now())
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, models.InstallmentStatusFailed, updated.Status)

	store.AssertExpectations(t)
}

// Replayed session-completed events and sessions arriving after the
// settlement are no-ops.
func TestApplyChargeInitiated_ReplayAndTerminalNoOps(t *testing.T) {
	store := &mockStore{}
	ledger := NewLedger(store)

	pending := models.Installment{ID: uuid.New(), Status: models.InstallmentStatusPending}
	paid := models.Installment{ID: uuid.New(), Status: models.InstallmentStatusPaid}

	store.On("InstallmentsByReference", mock.Anything, "plink_pending").Return([]models.Installment{pending}, nil)
	store.On("InstallmentsByReference", mock.Anything, "plink_paid").Return([]models.Installment{paid}, nil)

	_, applied, err := ledger.ApplyChargeInitiated(context.Background(), ExternalRef{Kind: RefPaymentLink, ID: "plink_pending"})
	require.NoError(t, err)
	assert.False(t, applied)

	_, applied, err = ledger.ApplyChargeInitiated(context.Background(), ExternalRef{Kind: RefPaymentLink, ID: "plink_paid"})
	require.NoError(t, err)
	assert.False(t, applied)

	store.AssertNotCalled(t, "MarkInstallmentPending", mock.Anything, mock.Anything)
}

func TestApplyChargeInitiated_ReferenceGuards(t *testing.T) {
	store := &mockStore{}
	ledger := NewLedger(store)

	store.On("InstallmentsByReference", mock.Anything, "plink_none").Return([]models.Installment{}, nil)
	store.On("InstallmentsByReference", mock.Anything, "plink_dup").Return([]models.Installment{
		{ID: uuid.New(), Status: models.InstallmentStatusScheduled},
		{ID: uuid.New(), Status: models.InstallmentStatusScheduled},
	}, nil)

	_, _, err := ledger.ApplyChargeInitiated(context.Background(), ExternalRef{Kind: RefPaymentLink, ID: "plink_none"})
	assert.ErrorIs(t, err, ErrUnknownReference)

	_, _, err = ledger.ApplyChargeInitiated(context.Background(), ExternalRef{Kind: RefPaymentLink, ID: "plink_dup"})
	assert.ErrorIs(t, err, ErrAmbiguousReference)
}

// Invoice outcomes bind to the lowest-numbered open cycle installment.
func TestApplyInvoiceOutcome_BindsEarliestOpenInstallment(t *testing.T) {
	store := &mockStore{}
	ledger := NewLedger(store)

	third := models.Installment{ID: uuid.New(), InstallmentNumber: 3, Status: models.InstallmentStatusPending}
	second := models.Installment{ID: uuid.New(), InstallmentNumber: 2, Status: models.InstallmentStatusPending}
	at := time.Now().UTC()
	ref := ExternalRef{Kind: RefInvoice, ID: "in_789"}

	store.On("InstallmentsByReference", mock.Anything, "in_789").Return([]models.Installment{}, nil)
	store.On("OpenInstallmentsBySubscription", mock.Anything, "sub_1").Return([]models.Installment{third, second}, nil)
	store.On("MarkInstallmentPaid", mock.Anything, second.ID, ref, at).Return(true, nil)

	updated, applied, err := ledger.ApplyInvoiceOutcome(context.Background(), "sub_1", "in_789", OutcomeSucceeded, "", at)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 2, updated.InstallmentNumber)

	store.AssertExpectations(t)
}

func TestApplyInvoiceOutcome_ReplayNoOps(t *testing.T) {
	store := &mockStore{}
	ledger := NewLedger(store)

	invoiceID := "in_789"
	bound := models.Installment{
		ID:              uuid.New(),
		Status:          models.InstallmentStatusPaid,
		StripeInvoiceID: &invoiceID,
	}
	store.On("InstallmentsByReference", mock.Anything, invoiceID).Return([]models.Installment{bound}, nil)

	_, applied, err := ledger.ApplyInvoiceOutcome(context.Background(), "sub_1", invoiceID, OutcomeSucceeded, "", time.Now())
	require.NoError(t, err)
	assert.False(t, applied)
	store.AssertNotCalled(t, "OpenInstallmentsBySubscription", mock.Anything, mock.Anything)
}

func TestApplyInvoiceOutcome_NoOpenInstallments(t *testing.T) {
	store := &mockStore{}
	ledger := NewLedger(store)

	store.On("InstallmentsByReference", mock.Anything, "in_000").Return([]models.Installment{}, nil)
	store.On("OpenInstallmentsBySubscription", mock.Anything, "sub_1").Return([]models.Installment{}, nil)

	_, _, err := ledger.ApplyInvoiceOutcome(context.Background(), "sub_1", "in_000", OutcomeSucceeded, "", time.Now())
	assert.ErrorIs(t, err, ErrUnknownReference)
}

func TestApplySubscriptionCancelled(t *testing.T) {
	store := &mockStore{}
	ledger := NewLedger(store)

	store.On("CancelEnrollmentBySubscription", mock.Anything, "sub_1").Return(true, nil)
	store.On("CancelEnrollmentBySubscription", mock.Anything, "sub_unknown").Return(false, nil)

	assert.NoError(t, ledger.ApplySubscriptionCancelled(context.Background(), "sub_1"))
	assert.ErrorIs(t, ledger.ApplySubscriptionCancelled(context.Background(), "sub_unknown"), ErrUnknownReference)

	// Cancellation never touches installment rows.
	store.AssertNotCalled(t, "MarkInstallmentPaid", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "MarkInstallmentFailed", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestInstallmentsDueWithin(t *testing.T) {
	store := &mockStore{}
	ledger := NewLedger(store)

	now := time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)
	due := []models.Installment{{ID: uuid.New(), Status: models.InstallmentStatusScheduled}}
	store.On("InstallmentsDueBetween", mock.Anything, now, now.AddDate(0, 0, 7)).Return(due, nil)

	got, err := ledger.InstallmentsDueWithin(context.Background(), now, 7)
	require.NoError(t, err)
	assert.Equal(t, due, got)
}
