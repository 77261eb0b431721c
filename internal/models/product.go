package models

import "github.com/shopspring/decimal"

// Product is a catalog item. Stock is not stored here; it is always derived
// from the product's stock movements.
type Product struct {
	Base
	SKU       string          `gorm:"uniqueIndex;not null" json:"sku"`
	Name      string          `gorm:"not null" json:"name"`
	SalePrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"sale_price"`
	UnitCost  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_cost"`
	IsActive  bool            `gorm:"default:true" json:"is_active"`
}

// ProductMetrics carries the derived inventory figures for one product.
type ProductMetrics struct {
	Stock         decimal.Decimal `json:"stock"`
	ReservedQty   decimal.Decimal `json:"investor_reserved_qty"`
	AssignableQty decimal.Decimal `json:"assignable_qty"`
}
