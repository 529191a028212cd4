package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentReminder records every reminder email sent so the daily job
// never mails the same installment twice in one day.
type PaymentReminder struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	InstallmentID uuid.UUID `gorm:"not null;index"`
	ReminderType  string    `gorm:"size:30;not null"`
	SentAt        time.Time `gorm:"not null"`

	Installment Installment `gorm:"foreignkey:InstallmentID"`
}
