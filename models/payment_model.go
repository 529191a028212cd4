package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
)

// Payment is the per-user payment history row shown on the dashboard.
// It mirrors the installment schedule and is updated from the same
// processor events.
type Payment struct {
	ID     uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID uuid.UUID `gorm:"not null;index" json:"user_id"`

	Amount      decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"amount"`
	PaymentPlan string          `gorm:"size:20;not null" json:"payment_plan"`
	PaymentType string          `gorm:"size:30;not null" json:"payment_type"`
	Status      string          `gorm:"size:20;not null" json:"status"`
	DueDate     time.Time       `gorm:"not null" json:"due_date"`

	StripePaymentIntentID *string `gorm:"size:255" json:"-"`
	ReceiptNumber         *string `gorm:"size:20;uniqueIndex" json:"receipt_number,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
