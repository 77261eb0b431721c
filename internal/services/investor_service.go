package services

import (
	"errors"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "tienda/internal/errors"
	"tienda/internal/locks"
	"tienda/internal/models"
	"tienda/internal/money"
	"tienda/internal/pagination"
)

// investorService handles investor management and the purchase workflow.
type investorService struct {
	db     *gorm.DB
	locks  *locks.Registry
	ledger LedgerServicer
	stock  StockServicer
}

// NewInvestorService creates a new InvestorServicer.
func NewInvestorService(db *gorm.DB, registry *locks.Registry, ledger LedgerServicer, stock StockServicer) InvestorServicer {
	return &investorService{db: db, locks: registry, ledger: ledger, stock: stock}
}

// CreateInvestor registers a new investor. UserID is optional; house
// investors have no login.
func (s *investorService) CreateInvestor(displayName string, userID *string) (*models.Investor, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "display name is required")
	}

	if userID != nil {
		var count int64
		s.db.Model(&models.User{}).Where("id = ?", *userID).Count(&count)
		if count == 0 {
			return nil, apperrors.ErrUserNotFound
		}
	}

	investor := &models.Investor{DisplayName: displayName, UserID: userID, IsActive: true}
	if err := s.db.Create(investor).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return investor, nil
}

// GetInvestor retrieves an investor by ID.
func (s *investorService) GetInvestor(id string) (*models.Investor, error) {
	var investor models.Investor
	if err := s.db.Where("id = ?", id).First(&investor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvestorNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &investor, nil
}

// ListInvestors returns a paginated, optionally name-filtered list.
func (s *investorService) ListInvestors(query string, page pagination.PageRequest) (*pagination.PageResponse[models.Investor], error) {
	page.Defaults()

	base := s.db.Model(&models.Investor{})
	if q := strings.TrimSpace(query); q != "" {
		base = base.Where("display_name LIKE ?", "%"+q+"%")
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var investors []models.Investor
	if err := base.Scopes(pagination.Paginate(page)).
		Order("display_name ASC").
		Find(&investors).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(investors, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// ListAssignments returns an investor's lots, newest first.
func (s *investorService) ListAssignments(investorID string, page pagination.PageRequest) (*pagination.PageResponse[models.InvestorAssignment], error) {
	page.Defaults()

	base := s.db.Model(&models.InvestorAssignment{}).Where("investor_id = ?", investorID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var assignments []models.InvestorAssignment
	if err := base.Preload("Product").Scopes(pagination.Paginate(page)).
		Order("created_at DESC").
		Find(&assignments).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(assignments, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// mergedLine is one (product, gross unit cost) pair after merging duplicate
// request lines.
type mergedLine struct {
	productID     string
	qty           decimal.Decimal
	unitCostGross decimal.Decimal
}

// Purchase converts liquid capital into assignment lots. Validation order:
// merge duplicate lines, check per-product assignable stock (collecting all
// shortfalls), check capital sufficiency, then create or grow lots with one
// CAPITAL_TO_INVENTORY entry each, all inside one transaction under the
// store lock.
func (s *investorService) Purchase(investorID string, taxRatePct decimal.Decimal, lines []PurchaseLine) (*PurchaseResult, error) {
	if len(lines) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "at least one purchase line is required")
	}
	for _, line := range lines {
		if !money.IsPositive(line.Qty) {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "line quantity must be greater than zero")
		}
		if line.UnitCostGross.IsNegative() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "unit cost cannot be negative")
		}
	}

	merged := mergeLines(lines)

	// Purchases shrink the shared assignable pool, so they take the
	// store-wide lock rather than the investor's.
	unlock := s.locks.LockStore()
	defer unlock()

	var result *PurchaseResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		investor, err := s.lockedInvestor(tx, investorID)
		if err != nil {
			return err
		}

		productsByID, err := s.checkAssignable(tx, merged)
		if err != nil {
			return err
		}

		purchaseTotal := decimal.Zero
		for _, line := range merged {
			purchaseTotal = purchaseTotal.Add(line.qty.Mul(line.unitCostGross))
		}
		purchaseTotal = money.Round(purchaseTotal)

		balances, err := s.ledger.BalancesTx(tx, investorID)
		if err != nil {
			return err
		}
		if purchaseTotal.GreaterThan(balances.Capital) {
			return apperrors.WithMessage(apperrors.ErrInsufficientCapital, "Purchase total exceeds available capital")
		}

		assignments := make([]models.InvestorAssignment, 0, len(merged))
		entries := make([]models.LedgerEntry, 0, len(merged))

		for _, line := range merged {
			assignment, err := s.upsertLot(tx, investor.ID, line)
			if err != nil {
				return err
			}

			lineTotal := money.Round(line.qty.Mul(line.unitCostGross))
			entry, err := s.ledger.Record(tx, investor.ID, models.EntryCapitalToInventory,
				lineTotal.Neg(), lineTotal, decimal.Zero,
				"investor_assignment", assignment.ID, "Investor purchase "+productsByID[line.productID].SKU)
			if err != nil {
				return err
			}

			assignments = append(assignments, *assignment)
			entries = append(entries, *entry)
		}

		finalBalances, err := s.ledger.BalancesTx(tx, investorID)
		if err != nil {
			return err
		}

		result = &PurchaseResult{
			InvestorID:    investor.ID,
			PurchaseTotal: purchaseTotal,
			Balances:      finalBalances,
			Assignments:   assignments,
			LedgerEntries: entries,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// mergeLines collapses duplicate (product, gross unit cost) pairs by summing
// quantities, so client-side line duplication cannot create duplicate lots.
// Output order is deterministic.
func mergeLines(lines []PurchaseLine) []mergedLine {
	type key struct {
		productID string
		cost      string
	}
	byKey := make(map[key]*mergedLine)
	order := make([]key, 0, len(lines))

	for _, line := range lines {
		cost := money.Round(line.UnitCostGross)
		k := key{productID: line.ProductID, cost: cost.StringFixed(2)}
		if existing, ok := byKey[k]; ok {
			existing.qty = existing.qty.Add(line.Qty)
			continue
		}
		byKey[k] = &mergedLine{productID: line.ProductID, qty: line.Qty, unitCostGross: cost}
		order = append(order, k)
	}

	merged := make([]mergedLine, 0, len(order))
	for _, k := range order {
		merged = append(merged, *byKey[k])
	}
	return merged
}

// checkAssignable validates every product's requested quantity against the
// house's free stock, collecting all shortfalls instead of failing fast.
// On success it returns the loaded products keyed by ID.
func (s *investorService) checkAssignable(tx *gorm.DB, merged []mergedLine) (map[string]*models.Product, error) {
	requestedByProduct := make(map[string]decimal.Decimal)
	for _, line := range merged {
		requestedByProduct[line.productID] = requestedByProduct[line.productID].Add(line.qty)
	}

	productIDs := make([]string, 0, len(requestedByProduct))
	for id := range requestedByProduct {
		productIDs = append(productIDs, id)
	}
	sort.Strings(productIDs)

	var products []models.Product
	if err := tx.Where("id IN ?", productIDs).Find(&products).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	productsByID := make(map[string]*models.Product, len(products))
	for i := range products {
		productsByID[products[i].ID] = &products[i]
	}

	shortfalls := make(map[string]string)
	for _, productID := range productIDs {
		requested := requestedByProduct[productID]
		product, ok := productsByID[productID]
		if !ok {
			shortfalls[productID] = "product not found"
			continue
		}
		if !product.IsActive {
			shortfalls[productID] = product.Name + " is inactive"
			continue
		}
		assignable, err := s.stock.AssignableQty(tx, productID)
		if err != nil {
			return nil, err
		}
		if requested.GreaterThan(assignable) {
			shortfalls[productID] = product.Name + " only has " + assignable.StringFixed(2) + " units available for investors"
		}
	}

	if len(shortfalls) > 0 {
		return nil, apperrors.WithDetails(apperrors.ErrInsufficientStock, "Unable to complete the investor purchase", shortfalls)
	}
	return productsByID, nil
}

// upsertLot grows the existing (investor, product, unit_cost) lot or creates
// a new one. A different cost basis always gets its own lot.
func (s *investorService) upsertLot(tx *gorm.DB, investorID string, line mergedLine) (*models.InvestorAssignment, error) {
	var assignment models.InvestorAssignment
	err := tx.Where("investor_id = ? AND product_id = ? AND unit_cost = ?", investorID, line.productID, line.unitCostGross).
		First(&assignment).Error
	if err == nil {
		assignment.QtyAssigned = assignment.QtyAssigned.Add(line.qty)
		if err := tx.Model(&assignment).Update("qty_assigned", assignment.QtyAssigned).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return &assignment, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	assignment = models.InvestorAssignment{
		InvestorID:  investorID,
		ProductID:   line.productID,
		QtyAssigned: line.qty,
		UnitCost:    line.unitCostGross,
		QtySold:     decimal.Zero,
	}
	if err := tx.Create(&assignment).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &assignment, nil
}

func (s *investorService) lockedInvestor(tx *gorm.DB, investorID string) (*models.Investor, error) {
	var investor models.Investor
	if err := tx.Where("id = ?", investorID).First(&investor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvestorNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &investor, nil
}
