package handler

import (
	"go-inventory-ledger/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AdminHandler struct {
	rec service.Reconciler
	log *zap.Logger
}

func NewAdminHandler(rec service.Reconciler, log *zap.Logger) *AdminHandler {
	return &AdminHandler{rec: rec, log: log}
}

// AuditSKU handles GET /api/v1/skus/:id/audit
func (h *AdminHandler) AuditSKU(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return badRequest(c, "Invalid sub variant ID")
	}
	audit, err := h.rec.AuditSubVariant(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(audit)
}

// Reconcile handles POST /api/v1/admin/reconcile?repair=true&product_id=
// Without product_id every product is checked.
func (h *AdminHandler) Reconcile(c *fiber.Ctx) error {
	repair := c.QueryBool("repair", false)

	if raw := c.Query("product_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return badRequest(c, "Invalid product ID")
		}
		rec, err := h.rec.Reconcile(c.UserContext(), id, repair)
		if err != nil {
			return respondError(c, h.log, err)
		}
		return c.JSON(fiber.Map{"data": []service.Reconciliation{*rec}})
	}

	all, err := h.rec.ReconcileAll(c.UserContext(), repair)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"data": all})
}
