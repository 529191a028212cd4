package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/edupay/tuition_pay/models"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateEnrollment(ctx context.Context, enrollment *models.Enrollment, installments []models.Installment, payments []models.Payment) error {
	args := m.Called(ctx, enrollment, installments, payments)
	return args.Error(0)
}

func (m *mockStore) EnrollmentByID(ctx context.Context, id uuid.UUID) (models.Enrollment, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.Enrollment), args.Error(1)
}

func (m *mockStore) EnrollmentByUser(ctx context.Context, userID uuid.UUID) (models.Enrollment, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.Enrollment), args.Error(1)
}

func (m *mockStore) InstallmentsByEnrollment(ctx context.Context, enrollmentID uuid.UUID) ([]models.Installment, error) {
	args := m.Called(ctx, enrollmentID)
	return args.Get(0).([]models.Installment), args.Error(1)
}

func (m *mockStore) InstallmentsByReference(ctx context.Context, refID string) ([]models.Installment, error) {
	args := m.Called(ctx, refID)
	return args.Get(0).([]models.Installment), args.Error(1)
}

func (m *mockStore) OpenInstallmentsBySubscription(ctx context.Context, subscriptionRef string) ([]models.Installment, error) {
	args := m.Called(ctx, subscriptionRef)
	return args.Get(0).([]models.Installment), args.Error(1)
}

func (m *mockStore) MarkInstallmentPending(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) MarkInstallmentPaid(ctx context.Context, id uuid.UUID, ref ExternalRef, paidAt time.Time) (bool, error) {
	args := m.Called(ctx, id, ref, paidAt)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) MarkInstallmentFailed(ctx context.Context, id uuid.UUID, ref ExternalRef, reason string) (bool, error) {
	args := m.Called(ctx, id, ref, reason)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) CancelEnrollmentBySubscription(ctx context.Context, subscriptionRef string) (bool, error) {
	args := m.Called(ctx, subscriptionRef)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) InstallmentsDueBetween(ctx context.Context, from, to time.Time) ([]models.Installment, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).([]models.Installment), args.Error(1)
}

type mockChargeService struct {
	mock.Mock
}

func (m *mockChargeService) CreateCustomer(ctx context.Context, details CustomerDetails) (string, error) {
	args := m.Called(ctx, details)
	return args.String(0), args.Error(1)
}

func (m *mockChargeService) AttachPaymentMethod(ctx context.Context, customerRef, paymentMethodID string) error {
	args := m.Called(ctx, customerRef, paymentMethodID)
	return args.Error(0)
}

func (m *mockChargeService) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(ChargeResult), args.Error(1)
}

type mockSubscriptionService struct {
	mock.Mock
}

func (m *mockSubscriptionService) CreateSubscription(ctx context.Context, req SubscriptionRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type mockLinkService struct {
	mock.Mock
}

func (m *mockLinkService) CreateLink(ctx context.Context, req LinkRequest) (PaymentLink, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(PaymentLink), args.Error(1)
}

// nopNotifier stands in for the mailer; enrollment outcomes must not
// depend on it.
type nopNotifier struct{}

func (nopNotifier) EnrollmentConfirmed(models.Enrollment, []models.Installment) {}
func (nopNotifier) PaymentReminder(models.Installment, models.Enrollment)       {}
