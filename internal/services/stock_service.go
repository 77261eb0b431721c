package services

import (
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "tienda/internal/errors"
	"tienda/internal/models"
	"tienda/internal/money"
	"tienda/internal/pagination"
)

// stockService owns the append-only stock movement ledger. Current stock is
// always the sum of a product's movement deltas.
type stockService struct {
	db *gorm.DB
}

// NewStockService creates a new StockServicer.
func NewStockService(db *gorm.DB) StockServicer {
	return &stockService{db: db}
}

// Record appends a movement inside the caller's transaction. A negative
// delta that would drive stock below zero is rejected. If a movement with
// the same (reference_type, reference_id, product) already exists, the
// existing movement is returned unchanged so client retries stay idempotent.
func (s *stockService) Record(tx *gorm.DB, productID string, movementType models.MovementType, quantityDelta decimal.Decimal, referenceType, referenceID, note, createdByID string) (*models.StockMovement, error) {
	quantityDelta = money.Round(quantityDelta)
	if quantityDelta.IsZero() {
		return nil, apperrors.ErrZeroQuantity
	}
	if !movementType.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown movement type")
	}

	var product models.Product
	if err := tx.Where("id = ?", productID).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrProductNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var existing models.StockMovement
	err := tx.Where("reference_type = ? AND reference_id = ? AND product_id = ?", referenceType, referenceID, productID).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if quantityDelta.IsNegative() {
		available, err := s.CurrentStock(tx, productID)
		if err != nil {
			return nil, err
		}
		if available.Add(quantityDelta).IsNegative() {
			return nil, apperrors.WithDetails(apperrors.ErrInsufficientStock, "", map[string]string{
				productID: "only " + available.StringFixed(2) + " units in stock",
			})
		}
	}

	movement := &models.StockMovement{
		ProductID:     productID,
		MovementType:  movementType,
		QuantityDelta: quantityDelta,
		ReferenceType: referenceType,
		ReferenceID:   referenceID,
		Note:          note,
		CreatedByID:   createdByID,
	}
	if err := tx.Create(movement).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return movement, nil
}

// RecordMovement appends a movement in its own transaction.
func (s *stockService) RecordMovement(productID string, movementType models.MovementType, quantityDelta decimal.Decimal, referenceType, referenceID, note, createdByID string) (*models.StockMovement, error) {
	var movement *models.StockMovement
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		movement, txErr = s.Record(tx, productID, movementType, quantityDelta, referenceType, referenceID, note, createdByID)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}

// CurrentStock sums a product's movement deltas. The sum runs in Go over
// decimals so sqlite's float aggregation cannot introduce drift.
func (s *stockService) CurrentStock(tx *gorm.DB, productID string) (decimal.Decimal, error) {
	var movements []models.StockMovement
	if err := tx.Where("product_id = ?", productID).Find(&movements).Error; err != nil {
		return decimal.Zero, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	total := decimal.Zero
	for _, m := range movements {
		total = total.Add(m.QuantityDelta)
	}
	return total, nil
}

// ReservedQty sums unconsumed assignment quantity (qty_assigned - qty_sold)
// across all investors for a product.
func (s *stockService) ReservedQty(tx *gorm.DB, productID string) (decimal.Decimal, error) {
	var assignments []models.InvestorAssignment
	if err := tx.Where("product_id = ?", productID).Find(&assignments).Error; err != nil {
		return decimal.Zero, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	total := decimal.Zero
	for _, a := range assignments {
		total = total.Add(a.QtyAvailable())
	}
	return total, nil
}

// AssignableQty is the house's free stock for a product: current stock minus
// investor-reserved quantity, floored at zero.
func (s *stockService) AssignableQty(tx *gorm.DB, productID string) (decimal.Decimal, error) {
	stock, err := s.CurrentStock(tx, productID)
	if err != nil {
		return decimal.Zero, err
	}
	reserved, err := s.ReservedQty(tx, productID)
	if err != nil {
		return decimal.Zero, err
	}
	assignable := stock.Sub(reserved)
	if assignable.IsNegative() {
		return decimal.Zero, nil
	}
	return assignable, nil
}

// ListMovements returns a product's stock ledger, newest first.
func (s *stockService) ListMovements(productID string, page pagination.PageRequest) (*pagination.PageResponse[models.StockMovement], error) {
	page.Defaults()

	base := s.db.Model(&models.StockMovement{}).Where("product_id = ?", productID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var movements []models.StockMovement
	if err := base.Scopes(pagination.Paginate(page)).
		Order("created_at DESC").
		Find(&movements).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(movements, page.Page, page.PageSize, totalItems)
	return &result, nil
}
