package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "tienda/internal/errors"
	"tienda/internal/models"
	"tienda/internal/pagination"
	"tienda/internal/services"
)

// SaleHandler handles sale requests.
type SaleHandler struct {
	saleService  services.SaleServicer
	auditService services.AuditServicer
}

// NewSaleHandler creates a new SaleHandler.
func NewSaleHandler(saleService services.SaleServicer, auditService services.AuditServicer) *SaleHandler {
	return &SaleHandler{saleService: saleService, auditService: auditService}
}

// SaleLineRequest is one product line of a draft sale.
type SaleLineRequest struct {
	ProductID   string `json:"product_id" binding:"required,uuid"`
	Qty         string `json:"qty" binding:"required,money"`
	UnitPrice   string `json:"unit_price" binding:"required,money"`
	UnitCost    string `json:"unit_cost" binding:"omitempty,money"`
	DiscountPct string `json:"discount_pct" binding:"omitempty,money"`
}

// PaymentRequest is one tender on a sale or layaway.
type PaymentRequest struct {
	Method         string `json:"method" binding:"required,payment_method"`
	Amount         string `json:"amount" binding:"required,money"`
	CommissionRate string `json:"commission_rate" binding:"omitempty,money"`
}

// CreateSaleRequest represents the payload for creating a draft sale.
type CreateSaleRequest struct {
	CustomerID *string           `json:"customer_id" binding:"omitempty,uuid"`
	Lines      []SaleLineRequest `json:"lines" binding:"required,min=1,dive"`
	Payments   []PaymentRequest  `json:"payments" binding:"required,min=1,dive"`
}

// VoidSaleRequest represents the payload for voiding a sale.
type VoidSaleRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=255"`
}

// CreateSale handles draft sale creation
// @Summary     Create a sale
// @Description Create a draft sale with lines and payments; nothing moves until confirmation
// @Tags        sales
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateSaleRequest true "Sale details"
// @Success     201 {object} models.Sale "Draft sale created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /sales [post]
func (h *SaleHandler) CreateSale(c *gin.Context) {
	cashierID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	lines, err := parseSaleLines(req.Lines)
	if err != nil {
		respondWithError(c, err)
		return
	}
	payments, err := parsePayments(req.Payments)
	if err != nil {
		respondWithError(c, err)
		return
	}

	sale, err := h.saleService.CreateSale(cashierID, req.CustomerID, lines, payments)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(cashierID, "sale.create", "sale", sale.ID, c.ClientIP(),
		map[string]any{"total": sale.Total.StringFixed(2), "line_count": len(sale.Lines)})

	c.JSON(http.StatusCreated, gin.H{"sale": sale})
}

// ListSales handles listing sales
// @Summary     List sales
// @Description Get a paginated list of sales, newest first
// @Tags        sales
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Sale] "Paginated sales"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /sales [get]
func (h *SaleHandler) ListSales(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.saleService.ListSales(page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetSale handles retrieving one sale
// @Summary     Get sale
// @Description Get a sale by ID with its lines and payments
// @Tags        sales
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Sale ID"
// @Success     200 {object} models.Sale "Sale details"
// @Failure     400 {object} ErrorResponse "Invalid sale ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Sale not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /sales/{id} [get]
func (h *SaleHandler) GetSale(c *gin.Context) {
	saleID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	sale, err := h.saleService.GetSale(saleID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sale": sale})
}

// Confirm handles sale confirmation
// @Summary     Confirm sale
// @Description Confirm a draft sale: stock moves out and the allocation engine distributes cost and profit. Re-confirming a confirmed sale is a no-op.
// @Tags        sales
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Sale ID"
// @Success     200 {object} models.Sale "Confirmed sale"
// @Failure     400 {object} ErrorResponse "Invalid state or insufficient stock"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Sale not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /sales/{id}/confirm [post]
func (h *SaleHandler) Confirm(c *gin.Context) {
	actorID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	saleID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	sale, err := h.saleService.Confirm(saleID, actorID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actorID, "sale.confirm", "sale", sale.ID, c.ClientIP(),
		map[string]any{"total": sale.Total.StringFixed(2)})

	c.JSON(http.StatusOK, gin.H{"sale": sale})
}

// Void handles sale voiding
// @Summary     Void sale
// @Description Void a confirmed sale: stock returns and ledger effects are reversed. Cashiers may only void their own recent sales.
// @Tags        sales
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string          true "Sale ID"
// @Param       request body VoidSaleRequest true "Void reason"
// @Success     200 {object} models.Sale "Voided sale"
// @Failure     400 {object} ErrorResponse "Invalid state"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Not permitted or void window expired"
// @Failure     404 {object} ErrorResponse "Sale not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /sales/{id}/void [post]
func (h *SaleHandler) Void(c *gin.Context) {
	actorID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	actorRole, err := getUserRole(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	saleID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req VoidSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	sale, err := h.saleService.Void(saleID, actorID, actorRole, req.Reason)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actorID, "sale.void", "sale", sale.ID, c.ClientIP(),
		map[string]any{"reason": req.Reason, "total": sale.Total.StringFixed(2)})

	c.JSON(http.StatusOK, gin.H{"sale": sale})
}

// parseSaleLines converts wire-format sale lines into service inputs.
func parseSaleLines(reqs []SaleLineRequest) ([]services.SaleLineInput, error) {
	lines := make([]services.SaleLineInput, 0, len(reqs))
	for _, req := range reqs {
		qty, err := parseAmount("qty", req.Qty)
		if err != nil {
			return nil, err
		}
		unitPrice, err := parseAmount("unit_price", req.UnitPrice)
		if err != nil {
			return nil, err
		}
		unitCost := decimal.Zero
		if req.UnitCost != "" {
			unitCost, err = parseAmount("unit_cost", req.UnitCost)
			if err != nil {
				return nil, err
			}
		}
		discountPct := decimal.Zero
		if req.DiscountPct != "" {
			discountPct, err = parseAmount("discount_pct", req.DiscountPct)
			if err != nil {
				return nil, err
			}
		}
		lines = append(lines, services.SaleLineInput{
			ProductID:   req.ProductID,
			Qty:         qty,
			UnitPrice:   unitPrice,
			UnitCost:    unitCost,
			DiscountPct: discountPct,
		})
	}
	return lines, nil
}

// parsePayments converts wire-format payments into service inputs.
func parsePayments(reqs []PaymentRequest) ([]services.PaymentInput, error) {
	payments := make([]services.PaymentInput, 0, len(reqs))
	for _, req := range reqs {
		amount, err := parseAmount("amount", req.Amount)
		if err != nil {
			return nil, err
		}
		commissionRate := decimal.Zero
		if req.CommissionRate != "" {
			commissionRate, err = parseAmount("commission_rate", req.CommissionRate)
			if err != nil {
				return nil, err
			}
		}
		payments = append(payments, services.PaymentInput{
			Method:         models.PaymentMethod(req.Method),
			Amount:         amount,
			CommissionRate: commissionRate,
		})
	}
	return payments, nil
}
