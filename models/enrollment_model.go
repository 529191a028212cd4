package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EnrollmentStatusActive    = "active"
	EnrollmentStatusCancelled = "cancelled"
)

const (
	ChargeChannelSubscription = "subscription"
	ChargeChannelHybrid       = "hybrid-ach-links"
)

type Enrollment struct {
	ID     uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID uuid.UUID `gorm:"not null;index" json:"user_id"`

	UniversityName string `gorm:"size:255;not null" json:"university_name"`
	StudentID      string `gorm:"size:100;not null" json:"student_id"`
	StudentEmail   string `gorm:"size:255;not null" json:"student_email"`

	TuitionAmount decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"tuition_amount"`
	AdminFee      decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"admin_fee"`
	TotalAmount   decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"total_amount"`
	PaymentPlan   string          `gorm:"size:20;not null" json:"payment_plan"`
	ChargeChannel string          `gorm:"size:30;not null" json:"charge_channel"`
	Status        string          `gorm:"size:20;not null;default:'active'" json:"status"`

	StripeCustomerID      string  `gorm:"size:255;not null" json:"-"`
	StripeSubscriptionID  *string `gorm:"size:255;unique" json:"-"`
	StripePaymentMethodID string  `gorm:"size:255" json:"-"`

	FirstName   string `gorm:"size:100;not null" json:"first_name"`
	LastName    string `gorm:"size:100;not null" json:"last_name"`
	Email       string `gorm:"size:255;not null" json:"email"`
	PhoneNumber string `gorm:"size:50" json:"phone_number"`
	Address     string `gorm:"size:255" json:"address"`
	City        string `gorm:"size:100" json:"city"`
	State       string `gorm:"size:100" json:"state"`
	ZipCode     string `gorm:"size:20" json:"zip_code"`
	Country     string `gorm:"size:100" json:"country"`

	EmergencyContactName         string `gorm:"size:255" json:"emergency_contact_name"`
	EmergencyContactPhone        string `gorm:"size:50" json:"emergency_contact_phone"`
	EmergencyContactRelationship string `gorm:"size:100" json:"emergency_contact_relationship"`

	// Banking details are record-keeping only; no routing/IBAN validation.
	BankName      string `gorm:"size:255" json:"-"`
	AccountNumber string `gorm:"size:50" json:"-"`
	RoutingNumber string `gorm:"size:50" json:"-"`
	AccountType   string `gorm:"size:20" json:"-"`

	Installments []Installment `gorm:"foreignkey:EnrollmentID" json:"installments,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
