package services

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "tienda/internal/errors"
	"tienda/internal/models"
	"tienda/internal/money"
	"tienda/internal/pagination"
)

// productService handles catalog management.
type productService struct {
	db    *gorm.DB
	stock StockServicer
}

// NewProductService creates a new ProductServicer.
func NewProductService(db *gorm.DB, stock StockServicer) ProductServicer {
	return &productService{db: db, stock: stock}
}

// CreateProduct registers a new catalog item.
func (s *productService) CreateProduct(sku, name string, salePrice, unitCost decimal.Decimal) (*models.Product, error) {
	sku = strings.TrimSpace(sku)
	name = strings.TrimSpace(name)
	if sku == "" || name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "sku and name are required")
	}
	if salePrice.IsNegative() || unitCost.IsNegative() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "prices cannot be negative")
	}

	var count int64
	s.db.Model(&models.Product{}).Where("sku = ?", sku).Count(&count)
	if count > 0 {
		return nil, apperrors.ErrDuplicateSKU
	}

	product := &models.Product{
		SKU:       sku,
		Name:      name,
		SalePrice: money.Round(salePrice),
		UnitCost:  money.Round(unitCost),
		IsActive:  true,
	}
	if err := s.db.Create(product).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return product, nil
}

// GetProduct retrieves a product by ID.
func (s *productService) GetProduct(id string) (*models.Product, error) {
	var product models.Product
	if err := s.db.Where("id = ?", id).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrProductNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &product, nil
}

// ListProducts returns a paginated, optionally name/SKU-filtered catalog.
func (s *productService) ListProducts(query string, page pagination.PageRequest) (*pagination.PageResponse[models.Product], error) {
	page.Defaults()

	base := s.db.Model(&models.Product{})
	if q := strings.TrimSpace(query); q != "" {
		like := "%" + q + "%"
		base = base.Where("name LIKE ? OR sku LIKE ?", like, like)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var products []models.Product
	if err := base.Scopes(pagination.Paginate(page)).
		Order("name ASC").
		Find(&products).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(products, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// Metrics derives the product's stock, investor-reserved, and assignable
// quantities.
func (s *productService) Metrics(productID string) (*models.ProductMetrics, error) {
	if _, err := s.GetProduct(productID); err != nil {
		return nil, err
	}

	stock, err := s.stock.CurrentStock(s.db, productID)
	if err != nil {
		return nil, err
	}
	reserved, err := s.stock.ReservedQty(s.db, productID)
	if err != nil {
		return nil, err
	}
	assignable := stock.Sub(reserved)
	if assignable.IsNegative() {
		assignable = decimal.Zero
	}
	return &models.ProductMetrics{Stock: stock, ReservedQty: reserved, AssignableQty: assignable}, nil
}
