package main

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"github.com/edupay/tuition_pay/billing"
	config "github.com/edupay/tuition_pay/configs"
	"github.com/edupay/tuition_pay/database"
	"github.com/edupay/tuition_pay/handlers"
	"github.com/edupay/tuition_pay/jobs"
	"github.com/edupay/tuition_pay/notifications"
	"github.com/edupay/tuition_pay/payments"
	"github.com/edupay/tuition_pay/routes"
	"github.com/edupay/tuition_pay/websocket"
)

func main() {
	database.ConnectDB()
	database.Migrate()
	database.SeedAdmin()
	notifications.InitEmailService()

	maxTuition := decimal.NewFromInt(6000)
	if raw := config.Config("MAX_TUITION_AMOUNT"); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			log.Fatalf("🔥 Invalid MAX_TUITION_AMOUNT %q: %v", raw, err)
		}
		maxTuition = parsed
	}

	stripe := payments.NewStripeService()
	store := database.NewStore(database.DB)
	catalog := billing.DefaultCatalog()
	calc := billing.Calculator{MaxTuition: maxTuition}
	notifier := notifications.NewEmailNotifier()

	enroller := billing.NewEnroller(catalog, calc, store, stripe, stripe, stripe, notifier)
	ledger := billing.NewLedger(store)

	handlers.InitBilling(enroller, ledger, store, catalog)
	jobs.InitBilling(ledger, store, notifier)

	c := cron.New()
	c.AddFunc("0 9 * * *", jobs.SendInstallmentReminders)
	go c.Start()
	log.Println("✅ Cron job for installment reminders scheduled successfully.")

	app := fiber.New(fiber.Config{
		Prefork:           false,
		AppName:           "Tuition Pay",
		CaseSensitive:     true,
		StrictRouting:     true,
		EnablePrintRoutes: true,
		PassLocalsToViews: true,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			log.Printf("[ERROR] %v | Path: %s | Method: %s", err, c.Path(), c.Method())
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"code":    code,
				"message": err.Error(),
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Authorization",
		MaxAge:        86400,
	}))

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "UTC",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "success",
			"message": "Welcome to Tuition Pay API",
		})
	})

	routes.AuthRoutes(app)
	routes.EnrollmentRoutes(app)
	routes.PaymentRoutes(app)

	go websocket.RunHub()

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})

	port := config.Config("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("✅ Server is running on port %s", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("🔥 Server failed to start: %v", err)
	}
}
