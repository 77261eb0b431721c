package services

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "tienda/internal/errors"
	"tienda/internal/locks"
	"tienda/internal/models"
	"tienda/internal/money"
	"tienda/internal/pagination"
)

// layawayService owns layaways and customer credit. All mutating operations
// take the store-wide lock: reservations and releases change the assignable
// stock that concurrent investor purchases validate against.
type layawayService struct {
	db         *gorm.DB
	locks      *locks.Registry
	stock      StockServicer
	allocation AllocationServicer
}

// NewLayawayService creates a new LayawayServicer.
func NewLayawayService(db *gorm.DB, registry *locks.Registry, stock StockServicer, allocation AllocationServicer) LayawayServicer {
	return &layawayService{db: db, locks: registry, stock: stock, allocation: allocation}
}

// Create opens a layaway: the customer is found or created by normalized
// phone, stock is reserved per line, and an optional deposit is applied. A
// deposit covering the full total settles the layaway immediately.
func (s *layawayService) Create(createdByID string, input LayawayInput) (*models.Layaway, error) {
	if len(input.Lines) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "at least one layaway line is required")
	}
	if !input.ExpiresAt.After(time.Now()) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "expiry date must be in the future")
	}
	phone := models.NormalizePhone(input.CustomerPhone)
	if phone == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "customer phone is required")
	}

	unlock := s.locks.LockStore()
	defer unlock()

	var layaway *models.Layaway
	err := s.db.Transaction(func(tx *gorm.DB) error {
		customer, err := s.getOrCreateCustomer(tx, input.CustomerPhone, input.CustomerName)
		if err != nil {
			return err
		}

		layaway = &models.Layaway{
			CustomerID:  customer.ID,
			ExpiresAt:   input.ExpiresAt,
			Status:      models.LayawayActive,
			Notes:       input.Notes,
			CreatedByID: createdByID,
			AmountPaid:  decimal.Zero,
		}

		subtotal := decimal.Zero
		total := decimal.Zero
		for _, line := range input.Lines {
			if !money.IsPositive(line.Qty) {
				return apperrors.WithMessage(apperrors.ErrInvalidInput, "line quantity must be greater than zero")
			}
			if line.UnitPrice.IsNegative() {
				return apperrors.WithMessage(apperrors.ErrInvalidInput, "unit price cannot be negative")
			}
			if line.DiscountPct.IsNegative() || line.DiscountPct.GreaterThan(decimal.NewFromInt(100)) {
				return apperrors.WithMessage(apperrors.ErrInvalidInput, "discount must be between 0 and 100 percent")
			}

			var product models.Product
			if err := tx.Where("id = ?", line.ProductID).First(&product).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperrors.ErrProductNotFound
				}
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			if !product.IsActive {
				return apperrors.WithMessage(apperrors.ErrProductNotFound, product.Name+" is inactive")
			}

			lineGross := line.Qty.Mul(line.UnitPrice)
			lineNet := lineGross.Mul(decimal.NewFromInt(1).Sub(line.DiscountPct.Div(decimal.NewFromInt(100))))
			subtotal = subtotal.Add(lineGross)
			total = total.Add(lineNet)

			layaway.Lines = append(layaway.Lines, models.LayawayLine{
				ProductID:   line.ProductID,
				Qty:         line.Qty,
				UnitPrice:   money.Round(line.UnitPrice),
				UnitCost:    product.UnitCost,
				DiscountPct: line.DiscountPct,
			})
		}
		layaway.Subtotal = money.Round(subtotal)
		layaway.Total = money.Round(total)

		if err := tx.Create(layaway).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		for _, line := range layaway.Lines {
			if _, err := s.stock.Record(tx, line.ProductID, models.MovementReserved,
				line.Qty.Neg(), "layaway_create", layaway.ID, "Layaway reservation", createdByID); err != nil {
				return err
			}
		}

		if money.IsPositive(input.Deposit.Amount) {
			if err := s.applyPayments(tx, layaway, createdByID, []PaymentInput{input.Deposit}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return layaway, nil
}

// Get retrieves a layaway with its customer, lines and payments.
func (s *layawayService) Get(id string) (*models.Layaway, error) {
	var layaway models.Layaway
	if err := s.db.Preload("Customer").Preload("Lines").Preload("Payments").
		Where("id = ?", id).First(&layaway).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrLayawayNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &layaway, nil
}

// List returns layaways newest first, optionally filtered by status.
func (s *layawayService) List(status *models.LayawayStatus, page pagination.PageRequest) (*pagination.PageResponse[models.Layaway], error) {
	page.Defaults()

	base := s.db.Model(&models.Layaway{})
	if status != nil {
		base = base.Where("status = ?", *status)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var layaways []models.Layaway
	if err := base.Preload("Customer").Scopes(pagination.Paginate(page)).
		Order("created_at DESC").
		Find(&layaways).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(layaways, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// AddPayments applies one or more payments to an active layaway. The payment
// that brings amount_paid up to the total settles the layaway.
func (s *layawayService) AddPayments(layawayID, actorID string, payments []PaymentInput) (*models.Layaway, error) {
	if len(payments) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidPayment, "at least one payment is required")
	}

	unlock := s.locks.LockStore()
	defer unlock()

	var layaway *models.Layaway
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		layaway, err = s.lockedLayaway(tx, layawayID)
		if err != nil {
			return err
		}
		if layaway.Status != models.LayawayActive {
			return apperrors.WithMessage(apperrors.ErrInvalidState, "payments can only be added to an active layaway")
		}
		return s.applyPayments(tx, layaway, actorID, payments)
	})
	if err != nil {
		return nil, err
	}
	return layaway, nil
}

// Extend moves the expiry date forward. The new date must be in the future
// and later than the current expiry.
func (s *layawayService) Extend(layawayID, actorID string, newExpiresAt time.Time, reason string) (*models.Layaway, error) {
	var layaway *models.Layaway
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		layaway, err = s.lockedLayaway(tx, layawayID)
		if err != nil {
			return err
		}
		if layaway.Status != models.LayawayActive {
			return apperrors.WithMessage(apperrors.ErrInvalidState, "only active layaways can be extended")
		}
		if !newExpiresAt.After(time.Now()) || !newExpiresAt.After(layaway.ExpiresAt) {
			return apperrors.ErrInvalidExpiryExtension
		}
		layaway.ExpiresAt = newExpiresAt
		return tx.Model(&models.Layaway{}).Where("id = ?", layaway.ID).
			Update("expires_at", newExpiresAt).Error
	})
	if err != nil {
		return nil, err
	}
	return layaway, nil
}

// Expire releases an overdue layaway's reserved stock and converts whatever
// was paid into customer credit. Admins may force-expire before the expiry
// date.
func (s *layawayService) Expire(layawayID, actorID string, actorRole models.Role, force bool) (*models.Layaway, error) {
	unlock := s.locks.LockStore()
	defer unlock()

	var layaway *models.Layaway
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		layaway, err = s.lockedLayaway(tx, layawayID)
		if err != nil {
			return err
		}
		if layaway.Status != models.LayawayActive {
			return apperrors.WithMessage(apperrors.ErrInvalidState, "only active layaways can expire")
		}
		if time.Now().Before(layaway.ExpiresAt) {
			if !force || actorRole != models.RoleAdmin {
				return apperrors.ErrLayawayNotExpirable
			}
		}

		for _, line := range layaway.Lines {
			if _, err := s.stock.Record(tx, line.ProductID, models.MovementReleased,
				line.Qty, "layaway_expire", layaway.ID, "Layaway expired", actorID); err != nil {
				return err
			}
		}

		if money.IsPositive(layaway.AmountPaid) {
			if err := s.accrueCredit(tx, layaway.CustomerID, layaway.AmountPaid); err != nil {
				return err
			}
		}

		layaway.Status = models.LayawayExpired
		return tx.Model(&models.Layaway{}).Where("id = ?", layaway.ID).
			Update("status", models.LayawayExpired).Error
	})
	if err != nil {
		return nil, err
	}
	return layaway, nil
}

// CustomerCredit returns the customer's store-credit balance, zero if none
// has ever accrued.
func (s *layawayService) CustomerCredit(customerID string) (*models.CustomerCredit, error) {
	var count int64
	s.db.Model(&models.Customer{}).Where("id = ?", customerID).Count(&count)
	if count == 0 {
		return nil, apperrors.ErrCustomerNotFound
	}

	var credit models.CustomerCredit
	err := s.db.Where("customer_id = ?", customerID).First(&credit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.CustomerCredit{CustomerID: customerID, Balance: decimal.Zero}, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &credit, nil
}

// applyPayments validates and records payments, draws down customer credit,
// and settles the layaway when the balance reaches zero. Caller holds the
// store lock and the transaction.
func (s *layawayService) applyPayments(tx *gorm.DB, layaway *models.Layaway, actorID string, payments []PaymentInput) error {
	paid := decimal.Zero
	for _, input := range payments {
		if !input.Method.Valid() {
			return apperrors.WithMessage(apperrors.ErrInvalidPayment, "unknown payment method")
		}
		if !money.IsPositive(input.Amount) {
			return apperrors.WithMessage(apperrors.ErrInvalidPayment, "payment amount must be greater than zero")
		}
		if input.CommissionRate.IsNegative() {
			return apperrors.WithMessage(apperrors.ErrInvalidPayment, "commission rate cannot be negative")
		}
		paid = paid.Add(input.Amount)
	}
	paid = money.Round(paid)
	if paid.GreaterThan(layaway.BalanceDue()) {
		return apperrors.WithMessage(apperrors.ErrInvalidPayment, "payments exceed the layaway balance due")
	}

	for _, input := range payments {
		if input.Method == models.PaymentCustomerCredit {
			if err := s.drawCredit(tx, layaway.CustomerID, money.Round(input.Amount)); err != nil {
				return err
			}
		}
		payment := models.LayawayPayment{
			LayawayID:      layaway.ID,
			Method:         input.Method,
			Amount:         money.Round(input.Amount),
			CommissionRate: input.CommissionRate,
			CreatedByID:    actorID,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		layaway.Payments = append(layaway.Payments, payment)
	}

	layaway.AmountPaid = money.Round(layaway.AmountPaid.Add(paid))
	if err := tx.Model(&models.Layaway{}).Where("id = ?", layaway.ID).
		Update("amount_paid", layaway.AmountPaid).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if layaway.AmountPaid.Equal(layaway.Total) {
		return s.settle(tx, layaway, actorID)
	}
	return nil
}

// settle materializes a confirmed sale from the layaway's lines and payments
// and runs it through the allocation engine. Stock was already consumed by
// the reservation movements, so the sale posts no OUTBOUND movements.
func (s *layawayService) settle(tx *gorm.DB, layaway *models.Layaway, actorID string) error {
	now := time.Now()
	sale := &models.Sale{
		CashierID:      actorID,
		CustomerID:     &layaway.CustomerID,
		Status:         models.SaleConfirmed,
		Subtotal:       layaway.Subtotal,
		DiscountAmount: money.Round(layaway.Subtotal.Sub(layaway.Total)),
		Total:          layaway.Total,
		ConfirmedAt:    &now,
	}
	for _, line := range layaway.Lines {
		sale.Lines = append(sale.Lines, models.SaleLine{
			ProductID:   line.ProductID,
			Qty:         line.Qty,
			UnitPrice:   line.UnitPrice,
			UnitCost:    line.UnitCost,
			DiscountPct: line.DiscountPct,
		})
	}
	for _, payment := range layaway.Payments {
		sale.Payments = append(sale.Payments, models.Payment{
			Method:         payment.Method,
			Amount:         payment.Amount,
			CommissionRate: payment.CommissionRate,
		})
	}

	if err := tx.Create(sale).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := s.allocation.AllocateSale(tx, sale); err != nil {
		return err
	}

	layaway.Status = models.LayawaySettled
	layaway.SettledSaleID = &sale.ID
	return tx.Model(&models.Layaway{}).Where("id = ?", layaway.ID).
		Updates(map[string]any{"status": models.LayawaySettled, "settled_sale_id": sale.ID}).Error
}

func (s *layawayService) getOrCreateCustomer(tx *gorm.DB, phone, name string) (*models.Customer, error) {
	normalized := models.NormalizePhone(phone)

	var customer models.Customer
	err := tx.Where("phone_normalized = ?", normalized).First(&customer).Error
	if err == nil {
		return &customer, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "customer name is required for a new customer")
	}
	customer = models.Customer{
		Phone:           strings.TrimSpace(phone),
		PhoneNormalized: normalized,
		Name:            name,
	}
	if err := tx.Create(&customer).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &customer, nil
}

func (s *layawayService) drawCredit(tx *gorm.DB, customerID string, amount decimal.Decimal) error {
	var credit models.CustomerCredit
	err := tx.Where("customer_id = ?", customerID).First(&credit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrInsufficientCredit
	}
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if amount.GreaterThan(credit.Balance) {
		return apperrors.ErrInsufficientCredit
	}
	credit.Balance = money.Round(credit.Balance.Sub(amount))
	return tx.Model(&credit).Update("balance", credit.Balance).Error
}

func (s *layawayService) accrueCredit(tx *gorm.DB, customerID string, amount decimal.Decimal) error {
	var credit models.CustomerCredit
	err := tx.Where("customer_id = ?", customerID).First(&credit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		credit = models.CustomerCredit{CustomerID: customerID, Balance: money.Round(amount)}
		if err := tx.Create(&credit).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	}
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	credit.Balance = money.Round(credit.Balance.Add(amount))
	return tx.Model(&credit).Update("balance", credit.Balance).Error
}

func (s *layawayService) lockedLayaway(tx *gorm.DB, id string) (*models.Layaway, error) {
	var layaway models.Layaway
	if err := tx.Preload("Lines").Preload("Payments").
		Where("id = ?", id).First(&layaway).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrLayawayNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &layaway, nil
}
