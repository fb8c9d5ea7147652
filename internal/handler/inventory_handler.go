package handler

import (
	"go-inventory-ledger/internal/middleware"
	"go-inventory-ledger/internal/model"
	"go-inventory-ledger/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type InventoryHandler struct {
	catalog service.CatalogService
	stock   service.StockService
	query   service.QueryService
	log     *zap.Logger
}

func NewInventoryHandler(catalog service.CatalogService, stock service.StockService, query service.QueryService, log *zap.Logger) *InventoryHandler {
	return &InventoryHandler{catalog: catalog, stock: stock, query: query, log: log}
}

// MovementRequest is the body of POST /stock/in and /stock/out.
type MovementRequest struct {
	SubVariantID uuid.UUID       `json:"sub_variant_id"`
	Quantity     decimal.Decimal `json:"quantity"`
}

type SetActiveRequest struct {
	Active *bool `json:"active"`
}

// actor is only called behind RequireAuth.
func actor(c *fiber.Ctx) service.Actor {
	a, _ := middleware.Actor(c)
	return a
}

func parseID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params("id"))
	return id, err == nil
}

// CreateProduct handles POST /api/v1/products
func (h *InventoryHandler) CreateProduct(c *fiber.Ctx) error {
	var req service.CreateProductInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	product, err := h.catalog.CreateProduct(c.UserContext(), req, actor(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Product created", "data": product})
}

// GetProducts handles GET /api/v1/products?cursor=&page_size=
func (h *InventoryHandler) GetProducts(c *fiber.Ctx) error {
	page, err := h.query.ListActiveProducts(c.UserContext(), c.Query("cursor"), c.QueryInt("page_size"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(page)
}

func (h *InventoryHandler) GetProduct(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return badRequest(c, "Invalid product ID")
	}
	product, err := h.query.GetProduct(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(product)
}

// GetProductImage streams the stored blob with its content type.
func (h *InventoryHandler) GetProductImage(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return badRequest(c, "Invalid product ID")
	}
	img, err := h.query.GetProductImage(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	c.Set(fiber.HeaderContentType, img.ContentType)
	return c.Send(img.Data)
}

// NextCode handles GET /api/v1/products/next-code. Nothing is reserved.
func (h *InventoryHandler) NextCode(c *fiber.Ctx) error {
	number, code, err := h.catalog.PreviewNextCode(c.UserContext())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"product_number": number, "product_code": code})
}

// SetActive handles PATCH /api/v1/products/:id/active
func (h *InventoryHandler) SetActive(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return badRequest(c, "Invalid product ID")
	}
	var req SetActiveRequest
	if err := c.BodyParser(&req); err != nil || req.Active == nil {
		return badRequest(c, "Body must be {\"active\": true|false}")
	}

	product, err := h.catalog.SetActive(c.UserContext(), id, *req.Active, actor(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"message": "Product updated", "data": product})
}

// StockIn handles POST /api/v1/stock/in
func (h *InventoryHandler) StockIn(c *fiber.Ctx) error {
	return h.move(c, model.TxIn)
}

// StockOut handles POST /api/v1/stock/out
func (h *InventoryHandler) StockOut(c *fiber.Ctx) error {
	return h.move(c, model.TxOut)
}

func (h *InventoryHandler) move(c *fiber.Ctx, dir model.TransactionType) error {
	var req MovementRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	row, err := h.stock.ApplyMovement(c.UserContext(), service.Movement{
		SubVariantID: req.SubVariantID,
		Quantity:     req.Quantity,
		Direction:    dir,
	}, actor(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Transaction recorded", "data": row})
}

// GetTransactions handles GET /api/v1/transactions?start_date=&end_date=&cursor=&page_size=
// Dates are YYYY-MM-DD; startDate/endDate are accepted as well.
func (h *InventoryHandler) GetTransactions(c *fiber.Ctx) error {
	q := service.TransactionQuery{
		StartDate: c.Query("start_date", c.Query("startDate")),
		EndDate:   c.Query("end_date", c.Query("endDate")),
	}
	page, err := h.query.ListTransactions(c.UserContext(), q, c.Query("cursor"), c.QueryInt("page_size"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(page)
}

func (h *InventoryHandler) GetTransaction(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return badRequest(c, "Invalid transaction ID")
	}
	row, err := h.query.GetTransaction(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(row)
}
