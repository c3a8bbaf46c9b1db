package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/middleware"
)

// Handlers groups everything mounted by RegisterRoutes. Events may be nil.
type Handlers struct {
	Health  *HealthHandler
	Users   *UserHandler
	Product *ProductHandler
	Order   *OrderHandler
	Invoice *InvoiceHandler
	Events  *EventsHandler
}

func RegisterRoutes(router *gin.Engine, h Handlers, jwtSecret string) {
	auth := middleware.AuthMiddleware(jwtSecret)
	optional := middleware.OptionalAuth(jwtSecret)
	admin := middleware.AdminOnly()

	router.GET("/healthz", h.Health.Healthz)
	router.GET("/readyz", h.Health.Readyz)

	v1 := router.Group("/api/v1")
	{
		users := v1.Group("/users")
		users.POST("", optional, h.Users.Register)
		users.GET("/me", auth, h.Users.Me)

		products := v1.Group("/products")
		products.GET("", optional, h.Product.List)
		products.GET("/:id", optional, h.Product.GetByID)
		products.POST("", auth, admin, h.Product.Create)
		products.PUT("/:id", auth, admin, h.Product.Update)
		products.DELETE("/:id", auth, admin, h.Product.Delete)

		orders := v1.Group("/orders")
		orders.POST("", optional, h.Order.CreateOrder)
		orders.GET("", auth, h.Order.ListOrders)
		orders.GET("/:id", auth, h.Order.GetOrder)
		orders.GET("/:id/invoice", auth, h.Invoice.GetByOrder)
		orders.POST("/:id/cancel", auth, h.Order.Cancel)
		orders.PUT("/:id/status", auth, admin, h.Order.UpdateStatus)
		orders.PUT("/:id/payment", auth, admin, h.Order.UpdatePayment)

		invoices := v1.Group("/invoices")
		invoices.GET("/verify/:invoiceId", h.Invoice.Verify)
		invoices.GET("", auth, h.Invoice.List)
		invoices.GET("/:id", auth, h.Invoice.Get)
		invoices.POST("/:id/qr", auth, admin, h.Invoice.RegenerateQR)

		if h.Events != nil {
			v1.GET("/events", auth, h.Events.Stream)
		}
	}
}
