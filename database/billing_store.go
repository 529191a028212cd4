package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/edupay/tuition_pay/billing"
	"github.com/edupay/tuition_pay/models"
)

var openStatuses = []string{models.InstallmentStatusScheduled, models.InstallmentStatusPending}

// GormStore implements billing.Store on Postgres. Status changes use
// conditional UPDATEs ("where status still open") so racing webhook
// deliveries serialize per row.
type GormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) CreateEnrollment(ctx context.Context, enrollment *models.Enrollment, installments []models.Installment, payments []models.Payment) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(enrollment).Error; err != nil {
			return err
		}
		for i := range installments {
			installments[i].EnrollmentID = enrollment.ID
		}
		if err := tx.Create(&installments).Error; err != nil {
			return err
		}
		if err := tx.Create(&payments).Error; err != nil {
			return err
		}
		return nil
	})
}

func (s *GormStore) EnrollmentByID(ctx context.Context, id uuid.UUID) (models.Enrollment, error) {
	var enrollment models.Enrollment
	err := s.db.WithContext(ctx).First(&enrollment, "id = ?", id).Error
	return enrollment, err
}

func (s *GormStore) EnrollmentByUser(ctx context.Context, userID uuid.UUID) (models.Enrollment, error) {
	var enrollment models.Enrollment
	err := s.db.WithContext(ctx).First(&enrollment, "user_id = ?", userID).Error
	return enrollment, err
}

func (s *GormStore) InstallmentsByEnrollment(ctx context.Context, enrollmentID uuid.UUID) ([]models.Installment, error) {
	var installments []models.Installment
	err := s.db.WithContext(ctx).
		Where("enrollment_id = ?", enrollmentID).
		Order("installment_number ASC").
		Find(&installments).Error
	return installments, err
}

func (s *GormStore) InstallmentsByReference(ctx context.Context, refID string) ([]models.Installment, error) {
	var installments []models.Installment
	err := s.db.WithContext(ctx).
		Where("stripe_payment_intent_id = ? OR stripe_invoice_id = ? OR payment_link_id = ?", refID, refID, refID).
		Find(&installments).Error
	return installments, err
}

func (s *GormStore) OpenInstallmentsBySubscription(ctx context.Context, subscriptionRef string) ([]models.Installment, error) {
	var installments []models.Installment
	err := s.db.WithContext(ctx).
		Joins("JOIN enrollments ON enrollments.id = installments.enrollment_id").
		Where("enrollments.stripe_subscription_id = ? AND installments.status IN ?", subscriptionRef, openStatuses).
		Order("installments.installment_number ASC").
		Find(&installments).Error
	return installments, err
}

func (s *GormStore) MarkInstallmentPending(ctx context.Context, id uuid.UUID) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Installment{}).
		Where("id = ? AND status = ?", id, models.InstallmentStatusScheduled).
		Update("status", models.InstallmentStatusPending)
	return res.RowsAffected > 0, res.Error
}

func (s *GormStore) MarkInstallmentPaid(ctx context.Context, id uuid.UUID, ref billing.ExternalRef, paidAt time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status":  models.InstallmentStatusPaid,
		"paid_at": paidAt,
	}
	col, err := refColumn(ref.Kind)
	if err != nil {
		return false, err
	}
	updates[col] = ref.ID

	res := s.db.WithContext(ctx).
		Model(&models.Installment{}).
		Where("id = ? AND status IN ?", id, openStatuses).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

func (s *GormStore) MarkInstallmentFailed(ctx context.Context, id uuid.UUID, ref billing.ExternalRef, reason string) (bool, error) {
	updates := map[string]interface{}{
		"status":         models.InstallmentStatusFailed,
		"failure_reason": reason,
	}
	col, err := refColumn(ref.Kind)
	if err != nil {
		return false, err
	}
	updates[col] = ref.ID

	res := s.db.WithContext(ctx).
		Model(&models.Installment{}).
		Where("id = ? AND status IN ?", id, openStatuses).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

func (s *GormStore) CancelEnrollmentBySubscription(ctx context.Context, subscriptionRef string) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Enrollment{}).
		Where("stripe_subscription_id = ?", subscriptionRef).
		Update("status", models.EnrollmentStatusCancelled)
	return res.RowsAffected > 0, res.Error
}

func (s *GormStore) InstallmentsDueBetween(ctx context.Context, from, to time.Time) ([]models.Installment, error) {
	var installments []models.Installment
	err := s.db.WithContext(ctx).
		Preload("Enrollment").
		Where("status IN ? AND due_date BETWEEN ? AND ?", openStatuses, from, to).
		Order("due_date ASC").
		Find(&installments).Error
	return installments, err
}

// PaymentsByUser lists the dashboard payment history, newest first.
func (s *GormStore) PaymentsByUser(ctx context.Context, userID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&payments).Error
	return payments, err
}

// ReminderSentSince reports whether a reminder of the given type already
// went out for this installment at or after the cutoff.
func (s *GormStore) ReminderSentSince(ctx context.Context, installmentID uuid.UUID, reminderType string, cutoff time.Time) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.PaymentReminder{}).
		Where("installment_id = ? AND reminder_type = ? AND sent_at >= ?", installmentID, reminderType, cutoff).
		Count(&count).Error
	return count > 0, err
}

func (s *GormStore) RecordReminder(ctx context.Context, installmentID uuid.UUID, reminderType string, sentAt time.Time) error {
	return s.db.WithContext(ctx).Create(&models.PaymentReminder{
		InstallmentID: installmentID,
		ReminderType:  reminderType,
		SentAt:        sentAt,
	}).Error
}

func refColumn(kind billing.RefKind) (string, error) {
	switch kind {
	case billing.RefPaymentIntent:
		return "stripe_payment_intent_id", nil
	case billing.RefInvoice:
		return "stripe_invoice_id", nil
	case billing.RefPaymentLink:
		return "payment_link_id", nil
	}
	return "", fmt.Errorf("unknown reference kind %q", kind)
}
