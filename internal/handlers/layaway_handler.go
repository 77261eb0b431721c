package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "tienda/internal/errors"
	"tienda/internal/models"
	"tienda/internal/pagination"
	"tienda/internal/services"
)

// LayawayHandler handles layaway and customer credit requests.
type LayawayHandler struct {
	layawayService services.LayawayServicer
	auditService   services.AuditServicer
}

// NewLayawayHandler creates a new LayawayHandler.
func NewLayawayHandler(layawayService services.LayawayServicer, auditService services.AuditServicer) *LayawayHandler {
	return &LayawayHandler{layawayService: layawayService, auditService: auditService}
}

// LayawayLineRequest is one product line of a new layaway.
type LayawayLineRequest struct {
	ProductID   string `json:"product_id" binding:"required,uuid"`
	Qty         string `json:"qty" binding:"required,money"`
	UnitPrice   string `json:"unit_price" binding:"required,money"`
	DiscountPct string `json:"discount_pct" binding:"omitempty,money"`
}

// CreateLayawayRequest represents the payload for opening a layaway.
type CreateLayawayRequest struct {
	CustomerPhone string               `json:"customer_phone" binding:"required,min=1,max=50"`
	CustomerName  string               `json:"customer_name" binding:"max=255"`
	Lines         []LayawayLineRequest `json:"lines" binding:"required,min=1,dive"`
	Deposit       *PaymentRequest      `json:"deposit" binding:"omitempty"`
	ExpiresAt     time.Time            `json:"expires_at" binding:"required"`
	Notes         string               `json:"notes" binding:"max=255"`
}

// AddPaymentsRequest represents the payload for paying toward a layaway.
type AddPaymentsRequest struct {
	Payments []PaymentRequest `json:"payments" binding:"required,min=1,dive"`
}

// ExtendLayawayRequest represents the payload for extending a layaway.
type ExtendLayawayRequest struct {
	ExpiresAt time.Time `json:"expires_at" binding:"required"`
	Reason    string    `json:"reason" binding:"max=255"`
}

// ExpireLayawayRequest represents the payload for expiring a layaway.
type ExpireLayawayRequest struct {
	Force bool `json:"force"`
}

// Create handles opening a layaway
// @Summary     Create a layaway
// @Description Open a layaway for a customer: stock is reserved and an optional deposit applied
// @Tags        layaways
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateLayawayRequest true "Layaway details"
// @Success     201 {object} models.Layaway "Layaway created"
// @Failure     400 {object} ErrorResponse "Invalid input or insufficient stock"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /layaways [post]
func (h *LayawayHandler) Create(c *gin.Context) {
	actorID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateLayawayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	input := services.LayawayInput{
		CustomerPhone: req.CustomerPhone,
		CustomerName:  req.CustomerName,
		ExpiresAt:     req.ExpiresAt,
		Notes:         req.Notes,
	}

	for _, line := range req.Lines {
		qty, err := parseAmount("qty", line.Qty)
		if err != nil {
			respondWithError(c, err)
			return
		}
		unitPrice, err := parseAmount("unit_price", line.UnitPrice)
		if err != nil {
			respondWithError(c, err)
			return
		}
		discountPct := decimal.Zero
		if line.DiscountPct != "" {
			discountPct, err = parseAmount("discount_pct", line.DiscountPct)
			if err != nil {
				respondWithError(c, err)
				return
			}
		}
		input.Lines = append(input.Lines, services.LayawayLineInput{
			ProductID:   line.ProductID,
			Qty:         qty,
			UnitPrice:   unitPrice,
			DiscountPct: discountPct,
		})
	}

	if req.Deposit != nil {
		deposits, err := parsePayments([]PaymentRequest{*req.Deposit})
		if err != nil {
			respondWithError(c, err)
			return
		}
		input.Deposit = deposits[0]
	}

	layaway, err := h.layawayService.Create(actorID, input)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actorID, "layaway.create", "layaway", layaway.ID, c.ClientIP(),
		map[string]any{"total": layaway.Total.StringFixed(2), "expires_at": layaway.ExpiresAt})

	c.JSON(http.StatusCreated, gin.H{"layaway": layaway})
}

// List handles listing layaways
// @Summary     List layaways
// @Description Get a paginated list of layaways, optionally filtered by status
// @Tags        layaways
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       status    query string false "Status filter (ACTIVE, SETTLED, EXPIRED, REFUNDED)"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Layaway] "Paginated layaways"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /layaways [get]
func (h *LayawayHandler) List(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var status *models.LayawayStatus
	if raw := c.Query("status"); raw != "" {
		s := models.LayawayStatus(raw)
		status = &s
	}

	result, err := h.layawayService.List(status, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Get handles retrieving one layaway
// @Summary     Get layaway
// @Description Get a layaway by ID with its customer, lines, and payments
// @Tags        layaways
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Layaway ID"
// @Success     200 {object} models.Layaway "Layaway details"
// @Failure     400 {object} ErrorResponse "Invalid layaway ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Layaway not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /layaways/{id} [get]
func (h *LayawayHandler) Get(c *gin.Context) {
	layawayID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	layaway, err := h.layawayService.Get(layawayID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"layaway": layaway})
}

// AddPayments handles paying toward a layaway
// @Summary     Add layaway payments
// @Description Apply payments to an active layaway; the payment that covers the balance settles it
// @Tags        layaways
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string             true "Layaway ID"
// @Param       request body AddPaymentsRequest true "Payments"
// @Success     200 {object} models.Layaway "Updated layaway"
// @Failure     400 {object} ErrorResponse "Invalid payment"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Layaway not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /layaways/{id}/payments [post]
func (h *LayawayHandler) AddPayments(c *gin.Context) {
	actorID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	layawayID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req AddPaymentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	payments, err := parsePayments(req.Payments)
	if err != nil {
		respondWithError(c, err)
		return
	}

	layaway, err := h.layawayService.AddPayments(layawayID, actorID, payments)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actorID, "layaway.payment", "layaway", layaway.ID, c.ClientIP(),
		map[string]any{"amount_paid": layaway.AmountPaid.StringFixed(2), "status": layaway.Status})

	c.JSON(http.StatusOK, gin.H{"layaway": layaway})
}

// Extend handles moving a layaway's expiry forward
// @Summary     Extend layaway
// @Description Move an active layaway's expiry date forward
// @Tags        layaways
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string               true "Layaway ID"
// @Param       request body ExtendLayawayRequest true "New expiry"
// @Success     200 {object} models.Layaway "Updated layaway"
// @Failure     400 {object} ErrorResponse "Invalid expiry date"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Layaway not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /layaways/{id}/extend [post]
func (h *LayawayHandler) Extend(c *gin.Context) {
	actorID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	layawayID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ExtendLayawayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	layaway, err := h.layawayService.Extend(layawayID, actorID, req.ExpiresAt, req.Reason)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actorID, "layaway.extend", "layaway", layaway.ID, c.ClientIP(),
		map[string]any{"expires_at": layaway.ExpiresAt, "reason": req.Reason})

	c.JSON(http.StatusOK, gin.H{"layaway": layaway})
}

// Expire handles expiring a layaway
// @Summary     Expire layaway
// @Description Expire an overdue layaway: reserved stock is released and payments become customer credit. Admins may force-expire early.
// @Tags        layaways
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string               true "Layaway ID"
// @Param       request body ExpireLayawayRequest false "Expiry options"
// @Success     200 {object} models.Layaway "Expired layaway"
// @Failure     400 {object} ErrorResponse "Layaway not expirable"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Layaway not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /layaways/{id}/expire [post]
func (h *LayawayHandler) Expire(c *gin.Context) {
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

	layawayID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ExpireLayawayRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
	}

	layaway, err := h.layawayService.Expire(layawayID, actorID, actorRole, req.Force)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actorID, "layaway.expire", "layaway", layaway.ID, c.ClientIP(),
		map[string]any{"force": req.Force, "amount_paid": layaway.AmountPaid.StringFixed(2)})

	c.JSON(http.StatusOK, gin.H{"layaway": layaway})
}

// CustomerCredit handles retrieving a customer's credit balance
// @Summary     Get customer credit
// @Description Get a customer's store-credit balance
// @Tags        layaways
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Customer ID"
// @Success     200 {object} models.CustomerCredit "Credit balance"
// @Failure     400 {object} ErrorResponse "Invalid customer ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Customer not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /customers/{id}/credit [get]
func (h *LayawayHandler) CustomerCredit(c *gin.Context) {
	customerID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	credit, err := h.layawayService.CustomerCredit(customerID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"credit": credit})
}
