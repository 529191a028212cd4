package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/edupay/tuition_pay/billing"
	config "github.com/edupay/tuition_pay/configs"
	"github.com/edupay/tuition_pay/database"
	"github.com/edupay/tuition_pay/models"
	"github.com/edupay/tuition_pay/payments"
	"github.com/edupay/tuition_pay/services"
	"github.com/edupay/tuition_pay/utils"
	"github.com/edupay/tuition_pay/websocket"
)

const webhookTolerance = 5 * time.Minute

type stripeEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type paymentIntentObject struct {
	ID               string `json:"id"`
	LastPaymentError *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"last_payment_error"`
}

type invoiceObject struct {
	ID           string `json:"id"`
	Subscription string `json:"subscription"`
}

type checkoutSessionObject struct {
	ID          string `json:"id"`
	PaymentLink string `json:"payment_link"`
}

type subscriptionObject struct {
	ID string `json:"id"`
}

// HandleStripeWebhook is the single entry point for asynchronous payment
// outcomes. Unknown references are logged and acknowledged with 200 so
// the processor stops retrying events that are not ours to handle.
func HandleStripeWebhook(c *fiber.Ctx) error {
	payload := c.Body()

	secret := config.Config("STRIPE_WEBHOOK_SECRET")
	if err := payments.VerifyWebhookSignature(payload, c.Get("Stripe-Signature"), secret, webhookTolerance); err != nil {
		log.Printf("Rejected webhook with bad signature: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid signature"})
	}

	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse webhook payload"})
	}

	eventTime := time.Unix(event.Created, 0).UTC()
	log.Printf("Received webhook event %s (%s)", event.ID, event.Type)

	switch event.Type {
	case "payment_intent.succeeded":
		var intent paymentIntentObject
		if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse payment intent"})
		}
		ref := billing.ExternalRef{Kind: billing.RefPaymentIntent, ID: intent.ID}
		return applyChargeOutcome(c, ref, billing.OutcomeSucceeded, "", eventTime)

	case "payment_intent.payment_failed":
		var intent paymentIntentObject
		if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse payment intent"})
		}
		reason := "payment_failed"
		if intent.LastPaymentError != nil && intent.LastPaymentError.Message != "" {
			reason = intent.LastPaymentError.Message
		}
		ref := billing.ExternalRef{Kind: billing.RefPaymentIntent, ID: intent.ID}
		return applyChargeOutcome(c, ref, billing.OutcomeFailed, reason, eventTime)

	// An ACH debit takes days to clear after the payer finishes the
	// session, so `completed` only moves the installment to pending; the
	// settlement lands with the async_payment_* events.
	case "checkout.session.completed", "checkout.session.async_payment_succeeded", "checkout.session.async_payment_failed":
		var session checkoutSessionObject
		if err := json.Unmarshal(event.Data.Object, &session); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse checkout session"})
		}
		if session.PaymentLink == "" {
			return c.JSON(fiber.Map{"message": "Ignored: session not from a payment link"})
		}
		ref := billing.ExternalRef{Kind: billing.RefPaymentLink, ID: session.PaymentLink}
		switch event.Type {
		case "checkout.session.async_payment_succeeded":
			return applyChargeOutcome(c, ref, billing.OutcomeSucceeded, "", eventTime)
		case "checkout.session.async_payment_failed":
			return applyChargeOutcome(c, ref, billing.OutcomeFailed, "bank debit failed", eventTime)
		}
		inst, applied, err := ledger.ApplyChargeInitiated(c.Context(), ref)
		if err != nil {
			return ledgerErrorResponse(c, ref.ID, err)
		}
		if applied {
			pushInstallmentEvent(inst)
		}
		return c.JSON(fiber.Map{"message": "Processed", "applied": applied})

	case "invoice.payment_succeeded", "invoice.payment_failed":
		var invoice invoiceObject
		if err := json.Unmarshal(event.Data.Object, &invoice); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse invoice"})
		}
		if invoice.Subscription == "" {
			return c.JSON(fiber.Map{"message": "Ignored: invoice not tied to a subscription"})
		}
		outcome := billing.OutcomeSucceeded
		reason := ""
		if event.Type == "invoice.payment_failed" {
			outcome = billing.OutcomeFailed
			reason = "invoice_payment_failed"
		}
		inst, applied, err := ledger.ApplyInvoiceOutcome(c.Context(), invoice.Subscription, invoice.ID, outcome, reason, eventTime)
		if err != nil {
			return ledgerErrorResponse(c, invoice.ID, err)
		}
		if applied {
			afterSettle(inst)
		}
		return c.JSON(fiber.Map{"message": "Processed", "applied": applied})

	case "customer.subscription.deleted":
		var sub subscriptionObject
		if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse subscription"})
		}
		if err := ledger.ApplySubscriptionCancelled(c.Context(), sub.ID); err != nil {
			return ledgerErrorResponse(c, sub.ID, err)
		}
		log.Printf("✅ Cancelled enrollment for subscription %s.", sub.ID)
		return c.JSON(fiber.Map{"message": "Processed"})

	default:
		return c.JSON(fiber.Map{"message": "Ignored event type"})
	}
}

func applyChargeOutcome(c *fiber.Ctx, ref billing.ExternalRef, outcome billing.Outcome, reason string, at time.Time) error {
	inst, applied, err := ledger.ApplyChargeOutcome(c.Context(), ref, outcome, reason, at)
	if err != nil {
		return ledgerErrorResponse(c, ref.ID, err)
	}
	if applied {
		afterSettle(inst)
	}
	return c.JSON(fiber.Map{"message": "Processed", "applied": applied})
}

func ledgerErrorResponse(c *fiber.Ctx, refID string, err error) error {
	switch {
	case errors.Is(err, billing.ErrUnknownReference):
		log.Printf("Webhook reference %s matched no installment, acknowledging.", refID)
		return c.JSON(fiber.Map{"message": "Acknowledged: unknown reference"})
	case errors.Is(err, billing.ErrAmbiguousReference):
		log.Printf("🔥 CRITICAL: webhook reference %s matched multiple installments, manual review required.", refID)
		return c.JSON(fiber.Map{"message": "Acknowledged: ambiguous reference"})
	default:
		log.Printf("🔥 CRITICAL: failed to process webhook for reference %s: %v", refID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process webhook"})
	}
}

// afterSettle runs the side effects of a settled installment: mirror the
// payment history row, push the dashboard event, and kick off the
// paid-in-full statement check.
func afterSettle(inst models.Installment) {
	enrollment, err := billingStore.EnrollmentByID(context.Background(), inst.EnrollmentID)
	if err != nil {
		log.Printf("Error loading enrollment %s after settling installment: %v", inst.EnrollmentID, err)
		return
	}

	mirrorPaymentRow(enrollment, inst)

	notifyDashboard(enrollment, inst)

	if inst.Status == models.InstallmentStatusPaid {
		go services.CheckAndGenerateStatement(inst.EnrollmentID)
	}
}

// pushInstallmentEvent surfaces a non-terminal status change (a debit in
// flight) to the dashboard. No payment mirroring, no statement check.
func pushInstallmentEvent(inst models.Installment) {
	enrollment, err := billingStore.EnrollmentByID(context.Background(), inst.EnrollmentID)
	if err != nil {
		log.Printf("Error loading enrollment %s after installment update: %v", inst.EnrollmentID, err)
		return
	}
	notifyDashboard(enrollment, inst)
}

func notifyDashboard(enrollment models.Enrollment, inst models.Installment) {
	websocket.NotifyInstallment(enrollment.UserID, websocket.InstallmentEvent{
		EnrollmentID:      enrollment.ID.String(),
		InstallmentNumber: inst.InstallmentNumber,
		Status:            inst.Status,
		Amount:            inst.Amount.StringFixed(2),
	})
}

func mirrorPaymentRow(enrollment models.Enrollment, inst models.Installment) {
	status := models.PaymentStatusFailed
	if inst.Status == models.InstallmentStatusPaid {
		status = models.PaymentStatusSucceeded
	}

	var payment models.Payment
	paymentType := "installment_" + strconv.Itoa(inst.InstallmentNumber)
	if err := database.DB.Where("user_id = ? AND payment_type = ?", enrollment.UserID, paymentType).First(&payment).Error; err != nil {
		log.Printf("Error finding payment row %s for user %s: %v", paymentType, enrollment.UserID, err)
		return
	}

	payment.Status = status
	if inst.StripePaymentIntentID != nil {
		payment.StripePaymentIntentID = inst.StripePaymentIntentID
	}
	if status == models.PaymentStatusSucceeded && payment.ReceiptNumber == nil {
		receipt, err := utils.GenerateUniqueReceiptNumber(database.DB)
		if err != nil {
			log.Printf("Error generating receipt number: %v", err)
		} else {
			payment.ReceiptNumber = &receipt
		}
	}
	if err := database.DB.Save(&payment).Error; err != nil {
		log.Printf("Error updating payment row %s for user %s: %v", paymentType, enrollment.UserID, err)
	}
}
