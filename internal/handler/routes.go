package handler

import (
	"go-inventory-ledger/internal/middleware"
	"go-inventory-ledger/internal/ws"

	"github.com/gofiber/fiber/v2"
)

// Routes is everything Mount needs. Hub may be nil.
type Routes struct {
	Auth          *AuthHandler
	Inventory     *InventoryHandler
	Admin         *AdminHandler
	Dashboard     *DashboardHandler
	Hub           *ws.Hub
	Authenticator middleware.Authenticator
}

// Mount registers the /api/v1 surface and the /ws feed on app.
func (r Routes) Mount(app *fiber.App) {
	requireAuth := middleware.RequireAuth(r.Authenticator)
	optionalAuth := middleware.OptionalAuth(r.Authenticator)

	api := app.Group("/api/v1")

	// ============ PUBLIC ROUTES ============
	auth := api.Group("/auth")
	auth.Post("/register", r.Auth.Register)
	auth.Post("/login", r.Auth.Login)
	auth.Post("/heartbeat", requireAuth, r.Auth.Heartbeat)
	auth.Get("/me", requireAuth, r.Auth.Me)

	// Reads allow anonymous callers
	api.Get("/products", optionalAuth, r.Inventory.GetProducts)
	api.Get("/products/next-code", requireAuth, r.Inventory.NextCode)
	api.Get("/products/:id", optionalAuth, r.Inventory.GetProduct)
	api.Get("/products/:id/image", optionalAuth, r.Inventory.GetProductImage)
	api.Get("/transactions", optionalAuth, r.Inventory.GetTransactions)
	api.Get("/transactions/:id", optionalAuth, r.Inventory.GetTransaction)

	// ============ PROTECTED ROUTES ============
	protected := api.Group("", requireAuth)
	protected.Get("/dashboard/stats", r.Dashboard.GetDashboardStats)
	protected.Get("/dashboard/stock-movement", r.Dashboard.GetStockMovement)
	protected.Post("/products", r.Inventory.CreateProduct)
	protected.Patch("/products/:id/active", r.Inventory.SetActive)
	protected.Post("/stock/in", r.Inventory.StockIn)
	protected.Post("/stock/out", r.Inventory.StockOut)
	protected.Get("/skus/:id/audit", r.Admin.AuditSKU)
	protected.Post("/admin/reconcile", r.Admin.Reconcile)

	// WebSocket Route
	if r.Hub != nil {
		app.Use("/ws", r.Hub.Upgrade)
		app.Get("/ws", r.Hub.Handler())
	}
}
