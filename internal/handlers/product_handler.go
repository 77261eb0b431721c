package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "tienda/internal/errors"
	"tienda/internal/models"
	"tienda/internal/pagination"
	"tienda/internal/services"
)

// ProductHandler handles catalog and stock movement requests.
type ProductHandler struct {
	productService services.ProductServicer
	stockService   services.StockServicer
	auditService   services.AuditServicer
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(productService services.ProductServicer, stockService services.StockServicer, auditService services.AuditServicer) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		stockService:   stockService,
		auditService:   auditService,
	}
}

// CreateProductRequest represents the payload for creating a product.
type CreateProductRequest struct {
	SKU       string `json:"sku" binding:"required,min=1,max=64"`
	Name      string `json:"name" binding:"required,min=1,max=255"`
	SalePrice string `json:"sale_price" binding:"required,money"`
	UnitCost  string `json:"unit_cost" binding:"required,money"`
}

// RecordMovementRequest represents the payload for posting a stock movement.
type RecordMovementRequest struct {
	MovementType  string `json:"movement_type" binding:"required,movement_type"`
	QuantityDelta string `json:"quantity_delta" binding:"required,money"`
	ReferenceType string `json:"reference_type" binding:"required,min=1,max=64"`
	ReferenceID   string `json:"reference_id" binding:"required,min=1,max=64"`
	Note          string `json:"note" binding:"max=255"`
}

// CreateProduct handles product creation
// @Summary     Create a product
// @Description Add a product to the catalog
// @Tags        products
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateProductRequest true "Product details"
// @Success     201 {object} models.Product "Product created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     409 {object} ErrorResponse "Duplicate SKU"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /products [post]
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	actorID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	salePrice, err := parseAmount("sale_price", req.SalePrice)
	if err != nil {
		respondWithError(c, err)
		return
	}
	unitCost, err := parseAmount("unit_cost", req.UnitCost)
	if err != nil {
		respondWithError(c, err)
		return
	}

	product, err := h.productService.CreateProduct(req.SKU, req.Name, salePrice, unitCost)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actorID, "product.create", "product", product.ID, c.ClientIP(),
		map[string]any{"sku": product.SKU, "name": product.Name})

	c.JSON(http.StatusCreated, gin.H{"product": product})
}

// ListProducts handles listing products
// @Summary     List products
// @Description Get a paginated list of products, optionally filtered by name or SKU
// @Tags        products
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       q         query string false "Name or SKU filter"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Product] "Paginated products"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /products [get]
func (h *ProductHandler) ListProducts(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.productService.ListProducts(c.Query("q"), page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetProduct handles retrieving a product with its stock metrics
// @Summary     Get product
// @Description Get a product by ID with current stock, reserved, and assignable quantities
// @Tags        products
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Product ID"
// @Success     200 {object} models.ProductMetrics "Product with metrics"
// @Failure     400 {object} ErrorResponse "Invalid product ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Product not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /products/{id} [get]
func (h *ProductHandler) GetProduct(c *gin.Context) {
	productID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	product, err := h.productService.GetProduct(productID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	metrics, err := h.productService.Metrics(productID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"product": product, "metrics": metrics})
}

// RecordMovement handles posting a manual stock movement
// @Summary     Record stock movement
// @Description Post a quantity delta against a product's stock ledger
// @Tags        products
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                true "Product ID"
// @Param       request body RecordMovementRequest true "Movement details"
// @Success     201 {object} models.StockMovement "Movement recorded"
// @Failure     400 {object} ErrorResponse "Invalid input or insufficient stock"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Product not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /products/{id}/movements [post]
func (h *ProductHandler) RecordMovement(c *gin.Context) {
	actorID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	productID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req RecordMovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	delta, err := parseAmount("quantity_delta", req.QuantityDelta)
	if err != nil {
		respondWithError(c, err)
		return
	}

	movement, err := h.stockService.RecordMovement(productID, models.MovementType(req.MovementType),
		delta, req.ReferenceType, req.ReferenceID, req.Note, actorID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actorID, "stock.movement", "product", productID, c.ClientIP(),
		map[string]any{
			"movement_type":  req.MovementType,
			"quantity_delta": delta.StringFixed(2),
			"reference_type": req.ReferenceType,
			"reference_id":   req.ReferenceID,
		})

	c.JSON(http.StatusCreated, gin.H{"movement": movement})
}

// ListMovements handles listing a product's stock movements
// @Summary     List stock movements
// @Description Get a product's stock movements, newest first
// @Tags        products
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id        path  string true  "Product ID"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.StockMovement] "Paginated movements"
// @Failure     400 {object} ErrorResponse "Invalid product ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /products/{id}/movements [get]
func (h *ProductHandler) ListMovements(c *gin.Context) {
	productID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.stockService.ListMovements(productID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
