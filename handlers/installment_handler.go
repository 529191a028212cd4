package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// GetEnrollmentInstallments lists installments for one enrollment. The
// caller must own the enrollment or be an admin.
func GetEnrollmentInstallments(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	enrollmentID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid enrollment ID"})
	}

	enrollment, err := billingStore.EnrollmentByID(c.Context(), enrollmentID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Enrollment not found"})
	}
	if enrollment.UserID != userID && !isAdmin(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	installments, err := billingStore.InstallmentsByEnrollment(c.Context(), enrollmentID)
	if err != nil {
		log.Printf("Error fetching installments for enrollment %s: %v", enrollmentID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch installments"})
	}

	return c.JSON(fiber.Map{"installments": installments})
}

// GetMyPayments returns the caller's payment history rows.
func GetMyPayments(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	payments, err := billingStore.PaymentsByUser(c.Context(), userID)
	if err != nil {
		log.Printf("Error fetching payments for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch payments"})
	}

	return c.JSON(fiber.Map{"payments": payments})
}
