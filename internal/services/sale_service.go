package services

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "tienda/internal/errors"
	"tienda/internal/locks"
	"tienda/internal/models"
	"tienda/internal/money"
	"tienda/internal/pagination"
)

// cashierVoidWindow is how long after confirmation a cashier may void their
// own sale. Admins are not bound by it.
const cashierVoidWindow = 10 * time.Minute

// saleService owns the sale state machine. Confirm and void take the
// store-wide lock because allocation touches lots across all investors.
type saleService struct {
	db         *gorm.DB
	locks      *locks.Registry
	stock      StockServicer
	allocation AllocationServicer
}

// NewSaleService creates a new SaleServicer.
func NewSaleService(db *gorm.DB, registry *locks.Registry, stock StockServicer, allocation AllocationServicer) SaleServicer {
	return &saleService{db: db, locks: registry, stock: stock, allocation: allocation}
}

// CreateSale builds a draft sale with computed totals. Payments must exactly
// cover the total; nothing moves until the sale is confirmed.
func (s *saleService) CreateSale(cashierID string, customerID *string, lines []SaleLineInput, payments []PaymentInput) (*models.Sale, error) {
	if len(lines) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "at least one sale line is required")
	}
	if len(payments) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidPayment, "at least one payment is required")
	}

	sale := &models.Sale{
		CashierID:  cashierID,
		CustomerID: customerID,
		Status:     models.SaleDraft,
	}

	subtotal := decimal.Zero
	discountAmount := decimal.Zero
	for _, input := range lines {
		if !money.IsPositive(input.Qty) {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "line quantity must be greater than zero")
		}
		if input.UnitPrice.IsNegative() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "unit price cannot be negative")
		}
		if input.DiscountPct.IsNegative() || input.DiscountPct.GreaterThan(decimal.NewFromInt(100)) {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "discount must be between 0 and 100 percent")
		}

		var product models.Product
		if err := s.db.Where("id = ?", input.ProductID).First(&product).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.ErrProductNotFound
			}
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if !product.IsActive {
			return nil, apperrors.WithMessage(apperrors.ErrProductNotFound, product.Name+" is inactive")
		}

		unitCost := input.UnitCost
		if unitCost.IsZero() {
			unitCost = product.UnitCost
		}

		lineGross := input.Qty.Mul(input.UnitPrice)
		lineDiscount := lineGross.Mul(input.DiscountPct).Div(decimal.NewFromInt(100))
		subtotal = subtotal.Add(lineGross)
		discountAmount = discountAmount.Add(lineDiscount)

		sale.Lines = append(sale.Lines, models.SaleLine{
			ProductID:   input.ProductID,
			Qty:         input.Qty,
			UnitPrice:   money.Round(input.UnitPrice),
			UnitCost:    money.Round(unitCost),
			DiscountPct: input.DiscountPct,
		})
	}

	sale.Subtotal = money.Round(subtotal)
	sale.DiscountAmount = money.Round(discountAmount)
	sale.Total = money.Round(subtotal.Sub(discountAmount))

	paid := decimal.Zero
	for _, input := range payments {
		if !input.Method.Valid() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidPayment, "unknown payment method")
		}
		if !money.IsPositive(input.Amount) {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidPayment, "payment amount must be greater than zero")
		}
		if input.CommissionRate.IsNegative() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidPayment, "commission rate cannot be negative")
		}
		if input.Method == models.PaymentCustomerCredit && customerID == nil {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidPayment, "customer credit payments require a customer")
		}
		paid = paid.Add(input.Amount)
		sale.Payments = append(sale.Payments, models.Payment{
			Method:         input.Method,
			Amount:         money.Round(input.Amount),
			CommissionRate: input.CommissionRate,
		})
	}
	if !money.Round(paid).Equal(sale.Total) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidPayment, "payments must exactly cover the sale total")
	}

	if err := s.db.Create(sale).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return sale, nil
}

// GetSale retrieves a sale with its lines and payments.
func (s *saleService) GetSale(id string) (*models.Sale, error) {
	return s.getSaleTx(s.db, id)
}

func (s *saleService) getSaleTx(tx *gorm.DB, id string) (*models.Sale, error) {
	var sale models.Sale
	if err := tx.Preload("Lines").Preload("Payments").
		Where("id = ?", id).First(&sale).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrSaleNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &sale, nil
}

// ListSales returns sales newest first.
func (s *saleService) ListSales(page pagination.PageRequest) (*pagination.PageResponse[models.Sale], error) {
	page.Defaults()

	var totalItems int64
	if err := s.db.Model(&models.Sale{}).Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var sales []models.Sale
	if err := s.db.Preload("Lines").Preload("Payments").
		Scopes(pagination.Paginate(page)).
		Order("created_at DESC").
		Find(&sales).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(sales, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// Confirm transitions a draft sale to CONFIRMED: customer credit is drawn
// down, each line posts an OUTBOUND movement, and the allocation engine
// distributes cost recovery and profit across investor lots. Re-confirming a
// confirmed sale is a success no-op. The sale is loaded and its status checked
// only after the store lock is held, so racing confirms cannot both allocate.
func (s *saleService) Confirm(saleID, actorID string) (*models.Sale, error) {
	unlock := s.locks.LockStore()
	defer unlock()

	var sale *models.Sale
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		sale, err = s.getSaleTx(tx, saleID)
		if err != nil {
			return err
		}
		switch sale.Status {
		case models.SaleConfirmed:
			return nil
		case models.SaleVoid:
			return apperrors.WithMessage(apperrors.ErrInvalidState, "a voided sale cannot be confirmed")
		}

		if err := s.applyCustomerCredit(tx, sale, false); err != nil {
			return err
		}

		for _, line := range sale.Lines {
			if _, err := s.stock.Record(tx, line.ProductID, models.MovementOutbound,
				line.Qty.Neg(), "sale_confirm", sale.ID, "Sale confirmed", actorID); err != nil {
				return err
			}
		}

		if err := s.allocation.AllocateSale(tx, sale); err != nil {
			return err
		}

		now := time.Now()
		sale.Status = models.SaleConfirmed
		sale.ConfirmedAt = &now
		return tx.Model(&models.Sale{}).Where("id = ?", sale.ID).
			Updates(map[string]any{"status": sale.Status, "confirmed_at": sale.ConfirmedAt}).Error
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// Void reverses a confirmed sale. Cashiers may only void their own sales
// within the void window; admins may void any confirmed sale. Like Confirm,
// the state check runs under the store lock so a racing confirm or void never
// reverses twice.
func (s *saleService) Void(saleID, actorID string, actorRole models.Role, reason string) (*models.Sale, error) {
	unlock := s.locks.LockStore()
	defer unlock()

	var sale *models.Sale
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		sale, err = s.getSaleTx(tx, saleID)
		if err != nil {
			return err
		}
		if sale.Status != models.SaleConfirmed {
			return apperrors.WithMessage(apperrors.ErrInvalidState, "only confirmed sales can be voided")
		}

		if actorRole != models.RoleAdmin {
			if sale.CashierID != actorID {
				return apperrors.WithMessage(apperrors.ErrForbidden, "cashiers may only void their own sales")
			}
			if sale.ConfirmedAt == nil || time.Since(*sale.ConfirmedAt) > cashierVoidWindow {
				return apperrors.ErrVoidWindow
			}
		}

		if err := s.applyCustomerCredit(tx, sale, true); err != nil {
			return err
		}

		for _, line := range sale.Lines {
			if _, err := s.stock.Record(tx, line.ProductID, models.MovementInbound,
				line.Qty, "sale_void", sale.ID, "Sale voided", actorID); err != nil {
				return err
			}
		}

		if err := s.allocation.ReverseSale(tx, sale); err != nil {
			return err
		}

		if err := s.refundSettledLayaway(tx, sale.ID); err != nil {
			return err
		}

		now := time.Now()
		sale.Status = models.SaleVoid
		sale.VoidedAt = &now
		if err := tx.Model(&models.Sale{}).Where("id = ?", sale.ID).
			Updates(map[string]any{"status": sale.Status, "voided_at": sale.VoidedAt}).Error; err != nil {
			return err
		}

		event := models.VoidEvent{SaleID: sale.ID, Reason: reason, ActorID: actorID}
		return tx.Create(&event).Error
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// applyCustomerCredit draws down (or, on void, restores) the customer's
// credit balance for every customer-credit payment on the sale.
func (s *saleService) applyCustomerCredit(tx *gorm.DB, sale *models.Sale, restore bool) error {
	total := decimal.Zero
	for _, p := range sale.Payments {
		if p.Method == models.PaymentCustomerCredit {
			total = total.Add(p.Amount)
		}
	}
	if total.IsZero() {
		return nil
	}
	if sale.CustomerID == nil {
		return apperrors.WithMessage(apperrors.ErrInvalidPayment, "customer credit payments require a customer")
	}

	var credit models.CustomerCredit
	err := tx.Where("customer_id = ?", *sale.CustomerID).First(&credit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if restore {
			credit = models.CustomerCredit{CustomerID: *sale.CustomerID, Balance: decimal.Zero}
			if err := tx.Create(&credit).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		} else {
			return apperrors.ErrInsufficientCredit
		}
	} else if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if restore {
		credit.Balance = money.Round(credit.Balance.Add(total))
	} else {
		if total.GreaterThan(credit.Balance) {
			return apperrors.ErrInsufficientCredit
		}
		credit.Balance = money.Round(credit.Balance.Sub(total))
	}
	if err := tx.Model(&credit).Update("balance", credit.Balance).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// refundSettledLayaway flips the layaway settled by this sale to REFUNDED.
// Stock was reserved at layaway creation and returns via the void's INBOUND
// movements, so no RELEASED movement is posted here.
func (s *saleService) refundSettledLayaway(tx *gorm.DB, saleID string) error {
	var layaway models.Layaway
	err := tx.Where("settled_sale_id = ? AND status = ?", saleID, models.LayawaySettled).
		First(&layaway).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return tx.Model(&layaway).Update("status", models.LayawayRefunded).Error
}
