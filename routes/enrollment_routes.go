package routes

import (
	"github.com/edupay/tuition_pay/handlers"
	"github.com/edupay/tuition_pay/middleware"
	"github.com/gofiber/fiber/v2"
)

func EnrollmentRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	api.Get("/plans", handlers.GetPaymentPlans)
	api.Post("/plans/preview", handlers.PreviewSchedule)
	api.Get("/universities", handlers.GetUniversities)

	enrollments := api.Group("/enrollments", middleware.Protected())
	enrollments.Post("/subscription", handlers.EnrollSubscription)
	enrollments.Post("/hybrid", handlers.EnrollHybrid)
	enrollments.Get("/me", handlers.GetMyEnrollment)
	enrollments.Get("/:id/installments", handlers.GetEnrollmentInstallments)
}
