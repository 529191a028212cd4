package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	InstallmentStatusScheduled = "scheduled"
	InstallmentStatusPending   = "pending"
	InstallmentStatusPaid      = "paid"
	InstallmentStatusFailed    = "failed"
)

const (
	PaymentChannelCard         = "card"
	PaymentChannelACHLink      = "ach-link"
	PaymentChannelSubscription = "subscription-cycle"
)

type Installment struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	EnrollmentID uuid.UUID `gorm:"not null;index;uniqueIndex:idx_enrollment_installment,priority:1" json:"enrollment_id"`

	InstallmentNumber int             `gorm:"not null;uniqueIndex:idx_enrollment_installment,priority:2" json:"installment_number"`
	Amount            decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"amount"`
	DueDate           time.Time       `gorm:"not null;index" json:"due_date"`
	PaymentChannel    string          `gorm:"size:30;not null" json:"payment_channel"`
	Status            string          `gorm:"size:20;not null;default:'scheduled';index" json:"status"`
	PaidAt            *time.Time      `json:"paid_at"`
	FailureReason     *string         `gorm:"type:text" json:"failure_reason"`

	// At most one external reference is populated per row.
	StripePaymentIntentID *string `gorm:"size:255;unique" json:"-"`
	StripeInvoiceID       *string `gorm:"size:255;unique" json:"-"`
	PaymentLinkID         *string `gorm:"size:255;unique" json:"-"`

	PaymentLinkURL       *string    `gorm:"size:512" json:"payment_link_url"`
	PaymentLinkExpiresAt *time.Time `json:"payment_link_expires_at"`

	Enrollment Enrollment `gorm:"foreignkey:EnrollmentID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Open reports whether the installment can still move to a terminal state.
func (i Installment) Open() bool {
	return i.Status == InstallmentStatusScheduled || i.Status == InstallmentStatusPending
}
