package handlers

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/edupay/tuition_pay/billing"
	"github.com/edupay/tuition_pay/models"
)

type PreviewRequest struct {
	TuitionAmount decimal.Decimal `json:"tuition_amount" validate:"required"`
	PaymentPlan   string          `json:"payment_plan" validate:"required"`
}

type EnrollRequest struct {
	TuitionAmount   decimal.Decimal `json:"tuition_amount" validate:"required"`
	PaymentPlan     string          `json:"payment_plan" validate:"required"`
	PaymentMethodID string          `json:"payment_method_id" validate:"required"`

	UniversityName string `json:"university_name" validate:"required"`
	StudentID      string `json:"student_id" validate:"required"`
	StudentEmail   string `json:"student_email" validate:"required,email"`

	FirstName   string `json:"first_name" validate:"required"`
	LastName    string `json:"last_name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	PhoneNumber string `json:"phone_number" validate:"required"`
	Address     string `json:"address" validate:"required"`
	City        string `json:"city" validate:"required"`
	State       string `json:"state" validate:"required"`
	ZipCode     string `json:"zip_code" validate:"required"`
	Country     string `json:"country" validate:"required"`

	EmergencyContactName         string `json:"emergency_contact_name"`
	EmergencyContactPhone        string `json:"emergency_contact_phone"`
	EmergencyContactRelationship string `json:"emergency_contact_relationship"`

	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	RoutingNumber string `json:"routing_number"`
	AccountType   string `json:"account_type"`
}

// GetPaymentPlans lists the plan tiers shown on the pricing page.
func GetPaymentPlans(c *fiber.Ctx) error {
	plans := planCatalog.All()
	out := make([]fiber.Map, 0, len(plans))
	for _, p := range plans {
		out = append(out, fiber.Map{
			"id":           p.ID,
			"name":         p.Name,
			"fee_rate":     p.FeeRate,
			"installments": p.TotalInstallments,
		})
	}
	return c.JSON(fiber.Map{"plans": out})
}

// PreviewSchedule computes the fee and installment breakdown for a
// tuition amount without committing to anything.
func PreviewSchedule(c *fiber.Ctx) error {
	var req PreviewRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	plan, schedule, err := enroller.Preview(req.TuitionAmount, req.PaymentPlan, time.Now().UTC())
	if err != nil {
		return billingErrorResponse(c, err)
	}

	lines := make([]fiber.Map, 0, len(schedule.Installments))
	for _, line := range schedule.Installments {
		lines = append(lines, fiber.Map{
			"installment_number": line.Number,
			"amount":             line.Amount,
			"due_date":           line.DueDate.Format("2006-01-02"),
		})
	}

	return c.JSON(fiber.Map{
		"payment_plan":    plan.ID,
		"tuition_amount":  req.TuitionAmount,
		"admin_fee":       schedule.AdminFee,
		"total_amount":    schedule.TotalAmount,
		"per_installment": schedule.PerInstallment,
		"installments":    lines,
	})
}

// EnrollSubscription sets up a plan whose remaining installments are
// collected by a processor subscription against the stored card.
func EnrollSubscription(c *fiber.Ctx) error {
	return enroll(c, models.ChargeChannelSubscription)
}

// EnrollHybrid sets up a plan whose remaining installments are collected
// through per-installment ACH payment links.
func EnrollHybrid(c *fiber.Ctx) error {
	return enroll(c, models.ChargeChannelHybrid)
}

func enroll(c *fiber.Ctx, channel string) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req EnrollRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if _, err := billingStore.EnrollmentByUser(c.Context(), userID); err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "An enrollment already exists for this account"})
	}

	enrollment, err := enroller.Enroll(c.Context(), billing.EnrollmentRequest{
		UserID:          userID,
		TuitionAmount:   req.TuitionAmount,
		PlanID:          req.PaymentPlan,
		ChargeChannel:   channel,
		PaymentMethodID: req.PaymentMethodID,

		UniversityName: req.UniversityName,
		StudentID:      req.StudentID,
		StudentEmail:   req.StudentEmail,

		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Address:     req.Address,
		City:        req.City,
		State:       req.State,
		ZipCode:     req.ZipCode,
		Country:     req.Country,

		EmergencyContactName:         req.EmergencyContactName,
		EmergencyContactPhone:        req.EmergencyContactPhone,
		EmergencyContactRelationship: req.EmergencyContactRelationship,

		BankName:      req.BankName,
		AccountNumber: req.AccountNumber,
		RoutingNumber: req.RoutingNumber,
		AccountType:   req.AccountType,
	})
	if err != nil {
		return billingErrorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(enrollment)
}

// GetMyEnrollment returns the caller's enrollment with its installment
// schedule for the dashboard.
func GetMyEnrollment(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	enrollment, err := billingStore.EnrollmentByUser(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No enrollment found"})
	}

	installments, err := billingStore.InstallmentsByEnrollment(c.Context(), enrollment.ID)
	if err != nil {
		log.Printf("Error fetching installments for enrollment %s: %v", enrollment.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch installments"})
	}

	return c.JSON(fiber.Map{
		"enrollment":   enrollment,
		"installments": installments,
	})
}

func billingErrorResponse(c *fiber.Ctx, err error) error {
	var declined *billing.DeclinedError
	var reconcile *billing.ReconciliationError
	switch {
	case errors.Is(err, billing.ErrUnknownPlan):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unknown payment plan"})
	case errors.Is(err, billing.ErrInvalidAmount):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid tuition amount"})
	case errors.Is(err, billing.ErrUnknownChannel):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unknown charge channel"})
	case errors.As(err, &declined):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": "Payment declined", "reason": declined.Reason})
	case errors.As(err, &reconcile):
		log.Printf("🔥 CRITICAL: enrollment left in partial state, charge ref %s: %v", reconcile.ChargeRef, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Enrollment failed after payment, our team has been notified"})
	default:
		log.Printf("Enrollment error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Enrollment failed"})
	}
}
