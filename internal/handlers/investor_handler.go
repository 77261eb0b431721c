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

// InvestorHandler handles investor, ledger, and purchase requests.
type InvestorHandler struct {
	investorService services.InvestorServicer
	ledgerService   services.LedgerServicer
	auditService    services.AuditServicer
}

// NewInvestorHandler creates a new InvestorHandler.
func NewInvestorHandler(investorService services.InvestorServicer, ledgerService services.LedgerServicer, auditService services.AuditServicer) *InvestorHandler {
	return &InvestorHandler{
		investorService: investorService,
		ledgerService:   ledgerService,
		auditService:    auditService,
	}
}

// CreateInvestorRequest represents the payload for registering an investor.
type CreateInvestorRequest struct {
	DisplayName string  `json:"display_name" binding:"required,min=1,max=100"`
	UserID      *string `json:"user_id" binding:"omitempty,uuid"`
}

// AmountRequest carries a monetary amount for deposit, withdraw, and
// reinvest operations. Amounts cross the wire as strings.
type AmountRequest struct {
	Amount string `json:"amount" binding:"required,money"`
	Note   string `json:"note" binding:"max=255"`
}

// PurchaseLineRequest is one requested line of an investor purchase.
type PurchaseLineRequest struct {
	ProductID     string `json:"product_id" binding:"required,uuid"`
	Qty           string `json:"qty" binding:"required,money"`
	UnitCostGross string `json:"unit_cost_gross" binding:"required,money"`
}

// PurchaseRequest represents the payload for an investor purchase.
type PurchaseRequest struct {
	TaxRatePct string                `json:"tax_rate_pct" binding:"omitempty,money"`
	Lines      []PurchaseLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// CreateInvestor handles investor registration
// @Summary     Register an investor
// @Description Register a new investor, optionally linked to a user account
// @Tags        investors
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateInvestorRequest true "Investor details"
// @Success     201 {object} models.Investor "Investor created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /investors [post]
func (h *InvestorHandler) CreateInvestor(c *gin.Context) {
	actorID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateInvestorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	investor, err := h.investorService.CreateInvestor(req.DisplayName, req.UserID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actorID, "investor.create", "investor", investor.ID, c.ClientIP(),
		map[string]any{"display_name": investor.DisplayName})

	c.JSON(http.StatusCreated, gin.H{"investor": investor})
}

// ListInvestors handles listing investors
// @Summary     List investors
// @Description Get a paginated list of investors, optionally filtered by name
// @Tags        investors
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       q         query string false "Name filter"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Investor] "Paginated investors"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /investors [get]
func (h *InvestorHandler) ListInvestors(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.investorService.ListInvestors(c.Query("q"), page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetInvestor handles retrieving one investor with derived balances
// @Summary     Get investor
// @Description Get an investor by ID together with derived capital, inventory, and profit balances
// @Tags        investors
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Investor ID"
// @Success     200 {object} models.Investor "Investor with balances"
// @Failure     400 {object} ErrorResponse "Invalid investor ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Investor not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /investors/{id} [get]
func (h *InvestorHandler) GetInvestor(c *gin.Context) {
	investorID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.authorizeInvestorView(c, investorID); err != nil {
		respondWithError(c, err)
		return
	}

	investor, err := h.investorService.GetInvestor(investorID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	balances, err := h.ledgerService.Balances(investorID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"investor": investor, "balances": balances})
}

// Deposit handles a capital deposit
// @Summary     Deposit capital
// @Description Add liquid capital to an investor's ledger
// @Tags        investors
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string        true "Investor ID"
// @Param       request body AmountRequest true "Deposit amount"
// @Success     201 {object} models.LedgerEntry "Ledger entry created"
// @Failure     400 {object} ErrorResponse "Invalid amount"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Investor not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /investors/{id}/deposit [post]
func (h *InvestorHandler) Deposit(c *gin.Context) {
	h.recordCapitalOperation(c, "investor.deposit", h.ledgerService.Deposit)
}

// Withdraw handles a capital withdrawal
// @Summary     Withdraw capital
// @Description Remove liquid capital from an investor's ledger
// @Tags        investors
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string        true "Investor ID"
// @Param       request body AmountRequest true "Withdrawal amount"
// @Success     201 {object} models.LedgerEntry "Ledger entry created"
// @Failure     400 {object} ErrorResponse "Invalid amount or insufficient capital"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Investor not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /investors/{id}/withdraw [post]
func (h *InvestorHandler) Withdraw(c *gin.Context) {
	h.recordCapitalOperation(c, "investor.withdraw", h.ledgerService.Withdraw)
}

// Reinvest handles moving realized profit into liquid capital
// @Summary     Reinvest profit
// @Description Move realized profit into liquid capital
// @Tags        investors
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string        true "Investor ID"
// @Param       request body AmountRequest true "Reinvestment amount"
// @Success     201 {object} models.LedgerEntry "Ledger entry created"
// @Failure     400 {object} ErrorResponse "Invalid amount or insufficient profit"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Investor not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /investors/{id}/reinvest [post]
func (h *InvestorHandler) Reinvest(c *gin.Context) {
	h.recordCapitalOperation(c, "investor.reinvest", h.ledgerService.Reinvest)
}

// Ledger handles listing an investor's ledger entries
// @Summary     List ledger entries
// @Description Get an investor's ledger entries, newest first
// @Tags        investors
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id        path  string true  "Investor ID"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.LedgerEntry] "Paginated ledger entries"
// @Failure     400 {object} ErrorResponse "Invalid investor ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /investors/{id}/ledger [get]
func (h *InvestorHandler) Ledger(c *gin.Context) {
	investorID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.authorizeInvestorView(c, investorID); err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.ledgerService.Entries(investorID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Purchase handles an investor stock purchase
// @Summary     Purchase stock
// @Description Convert the investor's liquid capital into assignment lots against house stock
// @Tags        investors
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string          true "Investor ID"
// @Param       request body PurchaseRequest true "Purchase lines"
// @Success     201 {object} services.PurchaseResult "Purchase result"
// @Failure     400 {object} ErrorResponse "Insufficient capital or stock"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Investor not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /investors/{id}/purchases [post]
func (h *InvestorHandler) Purchase(c *gin.Context) {
	actorID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	investorID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	taxRate := decimal.Zero
	if req.TaxRatePct != "" {
		taxRate, err = parseAmount("tax_rate_pct", req.TaxRatePct)
		if err != nil {
			respondWithError(c, err)
			return
		}
	}

	lines := make([]services.PurchaseLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		qty, err := parseAmount("qty", line.Qty)
		if err != nil {
			respondWithError(c, err)
			return
		}
		unitCost, err := parseAmount("unit_cost_gross", line.UnitCostGross)
		if err != nil {
			respondWithError(c, err)
			return
		}
		lines = append(lines, services.PurchaseLine{
			ProductID:     line.ProductID,
			Qty:           qty,
			UnitCostGross: unitCost,
		})
	}

	result, err := h.investorService.Purchase(investorID, taxRate, lines)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actorID, "investor.purchase", "investor", investorID, c.ClientIP(),
		map[string]any{
			"purchase_total": result.PurchaseTotal.StringFixed(2),
			"tax_rate_pct":   taxRate.String(),
			"line_count":     len(lines),
		})

	c.JSON(http.StatusCreated, result)
}

// Assignments handles listing an investor's assignment lots
// @Summary     List assignment lots
// @Description Get an investor's assignment lots, newest first
// @Tags        investors
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id        path  string true  "Investor ID"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.InvestorAssignment] "Paginated assignments"
// @Failure     400 {object} ErrorResponse "Invalid investor ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /investors/{id}/assignments [get]
func (h *InvestorHandler) Assignments(c *gin.Context) {
	investorID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.authorizeInvestorView(c, investorID); err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.investorService.ListAssignments(investorID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// authorizeInvestorView rejects investor-role users viewing any investor
// record other than the one linked to their own login.
func (h *InvestorHandler) authorizeInvestorView(c *gin.Context, investorID string) error {
	role, err := getUserRole(c)
	if err != nil {
		return err
	}
	if role != models.RoleInvestor {
		return nil
	}
	userID, err := getUserID(c)
	if err != nil {
		return err
	}
	investor, err := h.investorService.GetInvestor(investorID)
	if err != nil {
		return err
	}
	if investor.UserID == nil || *investor.UserID != userID {
		return apperrors.ErrForbidden
	}
	return nil
}

type capitalOperation func(investorID string, amount decimal.Decimal, note string) (*models.LedgerEntry, error)

// recordCapitalOperation shares the deposit/withdraw/reinvest request flow.
func (h *InvestorHandler) recordCapitalOperation(c *gin.Context, action string, op capitalOperation) {
	actorID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	investorID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		respondWithError(c, err)
		return
	}

	entry, err := op(investorID, amount, req.Note)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actorID, action, "investor", investorID, c.ClientIP(),
		map[string]any{"amount": amount.StringFixed(2), "entry_id": entry.ID})

	c.JSON(http.StatusCreated, gin.H{"entry": entry})
}
