package models

import "github.com/shopspring/decimal"

// Investor is a capital provider. UserID is optional: "house" investors have
// no login. An investor is never deleted while ledger entries or assignments
// reference it.
type Investor struct {
	Base
	UserID      *string `gorm:"type:uuid;uniqueIndex" json:"user_id,omitempty"`
	DisplayName string  `gorm:"not null" json:"display_name"`
	IsActive    bool    `gorm:"default:true" json:"is_active"`
}

// InvestorAssignment is a lot: one investor's claim on a quantity of one
// product at one cost basis. At most one lot exists per
// (investor, product, unit_cost); repeat purchases at the same cost grow
// qty_assigned instead of creating a duplicate. qty_sold rises during sale
// confirmation and falls during void, and always satisfies
// 0 <= qty_sold <= qty_assigned.
type InvestorAssignment struct {
	Base
	InvestorID  string          `gorm:"type:uuid;not null;index;uniqueIndex:uniq_assignment_tuple" json:"investor_id"`
	ProductID   string          `gorm:"type:uuid;not null;index;uniqueIndex:uniq_assignment_tuple" json:"product_id"`
	QtyAssigned decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"qty_assigned"`
	UnitCost    decimal.Decimal `gorm:"type:decimal(12,2);not null;uniqueIndex:uniq_assignment_tuple" json:"unit_cost"`
	QtySold     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"qty_sold"`

	Investor Investor `gorm:"foreignKey:InvestorID" json:"investor,omitempty"`
	Product  Product  `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

// QtyAvailable returns the unconsumed quantity of the lot.
func (a *InvestorAssignment) QtyAvailable() decimal.Decimal {
	return a.QtyAssigned.Sub(a.QtySold)
}
