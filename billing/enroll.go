package billing

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/edupay/tuition_pay/models"
)

// Payment links stay payable for a week past their due date.
const linkGraceDays = 7

type CustomerDetails struct {
	Email    string
	Name     string
	Phone    string
	Address  string
	City     string
	State    string
	ZipCode  string
	Country  string
	Metadata map[string]string
}

type ChargeRequest struct {
	CustomerRef     string
	PaymentMethodID string
	Amount          decimal.Decimal
	Description     string
	IdempotencyKey  string
	Metadata        map[string]string
}

type ChargeResult struct {
	Ref string
}

type SubscriptionRequest struct {
	CustomerRef     string
	PaymentMethodID string
	AmountPerCycle  decimal.Decimal
	Cycles          int
	ProductName     string
	Metadata        map[string]string
}

type LinkRequest struct {
	Amount      decimal.Decimal
	DueDate     time.Time
	ProductName string
	Description string
	Metadata    map[string]string
}

type PaymentLink struct {
	Ref string
	URL string
}

// ChargeService charges a stored payment instrument synchronously.
// Declines come back as *DeclinedError.
type ChargeService interface {
	CreateCustomer(ctx context.Context, details CustomerDetails) (string, error)
	AttachPaymentMethod(ctx context.Context, customerRef, paymentMethodID string) error
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
}

// SubscriptionService registers a recurring charge with the processor.
type SubscriptionService interface {
	CreateSubscription(ctx context.Context, req SubscriptionRequest) (string, error)
}

// LinkService creates one-off hosted payment links.
type LinkService interface {
	CreateLink(ctx context.Context, req LinkRequest) (PaymentLink, error)
}

// Notifier sends fire-and-forget mail. Its failures never surface to the
// enrollment caller.
type Notifier interface {
	EnrollmentConfirmed(enrollment models.Enrollment, installments []models.Installment)
	PaymentReminder(installment models.Installment, enrollment models.Enrollment)
}

// EnrollmentRequest is everything the onboarding flow collects.
type EnrollmentRequest struct {
	UserID          uuid.UUID
	TuitionAmount   decimal.Decimal
	PlanID          string
	ChargeChannel   string
	PaymentMethodID string

	UniversityName string
	StudentID      string
	StudentEmail   string

	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
	Address     string
	City        string
	State       string
	ZipCode     string
	Country     string

	EmergencyContactName         string
	EmergencyContactPhone        string
	EmergencyContactRelationship string

	BankName      string
	AccountNumber string
	RoutingNumber string
	AccountType   string
}

// Enroller runs the full enrollment sequence: resolve plan, compute the
// schedule, charge installment 1, set up the remaining-installments
// channel, then persist everything in one shot. Nothing is retried; the
// caller gets one pass/fail per attempt.
type Enroller struct {
	catalog       *Catalog
	calc          Calculator
	store         Store
	charges       ChargeService
	subscriptions SubscriptionService
	links         LinkService
	notifier      Notifier

	now func() time.Time
}

func NewEnroller(catalog *Catalog, calc Calculator, store Store, charges ChargeService, subscriptions SubscriptionService, links LinkService, notifier Notifier) *Enroller {
	return &Enroller{
		catalog:       catalog,
		calc:          calc,
		store:         store,
		charges:       charges,
		subscriptions: subscriptions,
		links:         links,
		notifier:      notifier,
		now:           time.Now,
	}
}

// Preview computes the schedule a prospective payer sees before
// committing. It shares the calculator with Enroll so the breakdown can
// never drift from what gets charged.
func (e *Enroller) Preview(tuition decimal.Decimal, planID string, startDate time.Time) (Plan, Schedule, error) {
	plan, err := e.catalog.Lookup(planID)
	if err != nil {
		return Plan{}, Schedule{}, err
	}
	schedule, err := e.calc.ComputeSchedule(tuition, plan, startDate)
	if err != nil {
		return Plan{}, Schedule{}, err
	}
	return plan, schedule, nil
}

func (e *Enroller) Enroll(ctx context.Context, req EnrollmentRequest) (models.Enrollment, error) {
	plan, err := e.catalog.Lookup(req.PlanID)
	if err != nil {
		return models.Enrollment{}, err
	}

	// Reject a bad channel before any money moves.
	switch req.ChargeChannel {
	case models.ChargeChannelSubscription, models.ChargeChannelHybrid:
	default:
		return models.Enrollment{}, fmt.Errorf("%w: %q", ErrUnknownChannel, req.ChargeChannel)
	}

	startDate := e.now().UTC()
	schedule, err := e.calc.ComputeSchedule(req.TuitionAmount, plan, startDate)
	if err != nil {
		return models.Enrollment{}, err
	}

	customerRef, err := e.charges.CreateCustomer(ctx, CustomerDetails{
		Email:   req.Email,
		Name:    fmt.Sprintf("%s %s", req.FirstName, req.LastName),
		Phone:   req.PhoneNumber,
		Address: req.Address,
		City:    req.City,
		State:   req.State,
		ZipCode: req.ZipCode,
		Country: req.Country,
		Metadata: map[string]string{
			"userId":     req.UserID.String(),
			"studentId":  req.StudentID,
			"university": req.UniversityName,
		},
	})
	if err != nil {
		return models.Enrollment{}, err
	}
	if err := e.charges.AttachPaymentMethod(ctx, customerRef, req.PaymentMethodID); err != nil {
		return models.Enrollment{}, err
	}

	first := schedule.Installments[0]
	charge, err := e.charges.Charge(ctx, ChargeRequest{
		CustomerRef:     customerRef,
		PaymentMethodID: req.PaymentMethodID,
		Amount:          first.Amount,
		Description:     fmt.Sprintf("Tuition Payment - Installment 1 of %d - %s", plan.TotalInstallments, req.UniversityName),
		IdempotencyKey:  uuid.NewString(),
		Metadata: map[string]string{
			"userId":            req.UserID.String(),
			"studentId":         req.StudentID,
			"university":        req.UniversityName,
			"paymentPlan":       plan.ID,
			"installmentNumber": "1",
		},
	})
	if err != nil {
		// Declined or timed out: nothing was persisted, the caller sees
		// the reason as-is.
		return models.Enrollment{}, err
	}

	enrollment := models.Enrollment{
		UserID:                       req.UserID,
		UniversityName:               req.UniversityName,
		StudentID:                    req.StudentID,
		StudentEmail:                 req.StudentEmail,
		TuitionAmount:                req.TuitionAmount,
		AdminFee:                     schedule.AdminFee,
		TotalAmount:                  schedule.TotalAmount,
		PaymentPlan:                  plan.ID,
		ChargeChannel:                req.ChargeChannel,
		Status:                       models.EnrollmentStatusActive,
		StripeCustomerID:             customerRef,
		StripePaymentMethodID:        req.PaymentMethodID,
		FirstName:                    req.FirstName,
		LastName:                     req.LastName,
		Email:                        req.Email,
		PhoneNumber:                  req.PhoneNumber,
		Address:                      req.Address,
		City:                         req.City,
		State:                        req.State,
		ZipCode:                      req.ZipCode,
		Country:                      req.Country,
		EmergencyContactName:         req.EmergencyContactName,
		EmergencyContactPhone:        req.EmergencyContactPhone,
		EmergencyContactRelationship: req.EmergencyContactRelationship,
		BankName:                     req.BankName,
		AccountNumber:                req.AccountNumber,
		RoutingNumber:                req.RoutingNumber,
		AccountType:                  req.AccountType,
	}

	installments, err := e.buildInstallments(ctx, &enrollment, plan, schedule, req, customerRef, charge)
	if err != nil {
		log.Printf("🔥 CRITICAL: charge %s for user %s succeeded but channel setup failed, manual reconciliation required: %v", charge.Ref, req.UserID, err)
		return models.Enrollment{}, &ReconciliationError{ChargeRef: charge.Ref, Err: err}
	}

	payments := buildPaymentHistory(req.UserID, plan, installments)

	if err := e.store.CreateEnrollment(ctx, &enrollment, installments, payments); err != nil {
		log.Printf("🔥 CRITICAL: charge %s for user %s succeeded but enrollment persistence failed, manual reconciliation required: %v", charge.Ref, req.UserID, err)
		return models.Enrollment{}, &ReconciliationError{ChargeRef: charge.Ref, Err: err}
	}

	go e.notifier.EnrollmentConfirmed(enrollment, installments)

	return enrollment, nil
}

func (e *Enroller) buildInstallments(ctx context.Context, enrollment *models.Enrollment, plan Plan, schedule Schedule, req EnrollmentRequest, customerRef string, charge ChargeResult) ([]models.Installment, error) {
	paidAt := e.now().UTC()
	first := schedule.Installments[0]
	chargeRef := charge.Ref
	installments := []models.Installment{{
		InstallmentNumber:     first.Number,
		Amount:                first.Amount,
		DueDate:               first.DueDate,
		PaymentChannel:        models.PaymentChannelCard,
		Status:                models.InstallmentStatusPaid,
		PaidAt:                &paidAt,
		StripePaymentIntentID: &chargeRef,
	}}

	switch req.ChargeChannel {
	case models.ChargeChannelSubscription:
		subRef, err := e.subscriptions.CreateSubscription(ctx, SubscriptionRequest{
			CustomerRef:     customerRef,
			PaymentMethodID: req.PaymentMethodID,
			AmountPerCycle:  schedule.PerInstallment,
			Cycles:          plan.RemainingInstallments(),
			ProductName:     fmt.Sprintf("Tuition Payment Plan - %s", req.UniversityName),
			Metadata: map[string]string{
				"userId":      req.UserID.String(),
				"studentId":   req.StudentID,
				"university":  req.UniversityName,
				"paymentPlan": plan.ID,
			},
		})
		if err != nil {
			return nil, err
		}
		enrollment.StripeSubscriptionID = &subRef

		for _, line := range schedule.Installments[1:] {
			installments = append(installments, models.Installment{
				InstallmentNumber: line.Number,
				Amount:            line.Amount,
				DueDate:           line.DueDate,
				PaymentChannel:    models.PaymentChannelSubscription,
				Status:            models.InstallmentStatusPending,
			})
		}

	case models.ChargeChannelHybrid:
		for _, line := range schedule.Installments[1:] {
			link, err := e.links.CreateLink(ctx, LinkRequest{
				Amount:      line.Amount,
				DueDate:     line.DueDate,
				ProductName: fmt.Sprintf("%s Tuition Payment - Installment %d", req.UniversityName, line.Number),
				Description: fmt.Sprintf("%s payment plan installment %d of %d", plan.Name, line.Number, plan.TotalInstallments),
				Metadata: map[string]string{
					"userId":            req.UserID.String(),
					"studentId":         req.StudentID,
					"university":        req.UniversityName,
					"paymentPlan":       plan.ID,
					"installmentNumber": fmt.Sprintf("%d", line.Number),
				},
			})
			if err != nil {
				return nil, err
			}
			linkRef, linkURL := link.Ref, link.URL
			expiresAt := line.DueDate.AddDate(0, 0, linkGraceDays)
			installments = append(installments, models.Installment{
				InstallmentNumber:    line.Number,
				Amount:               line.Amount,
				DueDate:              line.DueDate,
				PaymentChannel:       models.PaymentChannelACHLink,
				Status:               models.InstallmentStatusScheduled,
				PaymentLinkID:        &linkRef,
				PaymentLinkURL:       &linkURL,
				PaymentLinkExpiresAt: &expiresAt,
			})
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, req.ChargeChannel)
	}

	return installments, nil
}

func buildPaymentHistory(userID uuid.UUID, plan Plan, installments []models.Installment) []models.Payment {
	payments := make([]models.Payment, 0, len(installments))
	for _, inst := range installments {
		status := models.PaymentStatusPending
		if inst.Status == models.InstallmentStatusPaid {
			status = models.PaymentStatusSucceeded
		}
		payments = append(payments, models.Payment{
			UserID:                userID,
			Amount:                inst.Amount,
			PaymentPlan:           plan.ID,
			PaymentType:           fmt.Sprintf("installment_%d", inst.InstallmentNumber),
			Status:                status,
			DueDate:               inst.DueDate,
			StripePaymentIntentID: inst.StripePaymentIntentID,
		})
	}
	return payments
}
