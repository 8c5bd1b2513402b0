package server

import (
	"storefront/internal/config"
	"storefront/internal/handler"

	"github.com/labstack/echo/v4"
)

type Handlers struct {
	Bag       *handler.BagHandler
	Product   *handler.ProductHandler
	Inventory *handler.InventoryHandler
	Checkout  *handler.CheckoutHandler
	Webhook   *handler.WebhookHandler
	Health    *handler.HealthHandler
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, h Handlers) {
	h.Health.RegisterRoutes(e)
	h.Product.RegisterRoutes(e)
	h.Inventory.RegisterRoutes(e)
	h.Checkout.RegisterRoutes(e)
	h.Webhook.RegisterRoutes(e)
	h.Bag.RegisterRoutes(e, cfg)
}
