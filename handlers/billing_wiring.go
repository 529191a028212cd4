package handlers

import (
	"github.com/edupay/tuition_pay/billing"
	"github.com/edupay/tuition_pay/database"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// Wired in main before routes are registered.
var (
	enroller     *billing.Enroller
	ledger       *billing.Ledger
	billingStore *database.GormStore
	planCatalog  *billing.Catalog
)

func InitBilling(e *billing.Enroller, l *billing.Ledger, s *database.GormStore, catalog *billing.Catalog) {
	enroller = e
	ledger = l
	billingStore = s
	planCatalog = catalog
}

func currentUserID(c *fiber.Ctx) (uuid.UUID, error) {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	return uuid.Parse(claims["user_id"].(string))
}

func isAdmin(c *fiber.Ctx) bool {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	role, _ := claims["role"].(string)
	return role == "admin"
}
