package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleStatus is the sale state machine: DRAFT -> CONFIRMED -> VOID.
// Re-confirming a CONFIRMED sale is a no-op; no other transition is legal.
type SaleStatus string

const (
	SaleDraft     SaleStatus = "DRAFT"
	SaleConfirmed SaleStatus = "CONFIRMED"
	SaleVoid      SaleStatus = "VOID"
)

// PaymentMethod is how a sale or layaway payment was made.
type PaymentMethod string

const (
	PaymentCash           PaymentMethod = "CASH"
	PaymentCard           PaymentMethod = "CARD"
	PaymentCustomerCredit PaymentMethod = "CUSTOMER_CREDIT"
)

// Valid reports whether m is one of the known payment methods.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentCustomerCredit:
		return true
	}
	return false
}

// Sale is a point-of-sale ticket. Totals are fixed at creation; the
// allocation engine treats lines and payments as read-only once the sale is
// CONFIRMED.
type Sale struct {
	Base
	CashierID      string          `gorm:"type:uuid;not null;index" json:"cashier_id"`
	CustomerID     *string         `gorm:"type:uuid;index" json:"customer_id,omitempty"`
	Status         SaleStatus      `gorm:"size:16;not null;default:'DRAFT'" json:"status"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"subtotal"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"discount_amount"`
	Total          decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total"`
	ConfirmedAt    *time.Time      `json:"confirmed_at,omitempty"`
	VoidedAt       *time.Time      `json:"voided_at,omitempty"`

	Lines    []SaleLine `gorm:"foreignKey:SaleID" json:"lines,omitempty"`
	Payments []Payment  `gorm:"foreignKey:SaleID" json:"payments,omitempty"`
}

// SaleLine is one product line on a sale.
type SaleLine struct {
	Base
	SaleID      string          `gorm:"type:uuid;not null;index" json:"sale_id"`
	ProductID   string          `gorm:"type:uuid;not null" json:"product_id"`
	Qty         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"qty"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	UnitCost    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_cost"`
	DiscountPct decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"discount_pct"`

	Product Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

// Payment is one tender on a sale. CommissionRate applies to card payments
// only and is expressed as a fraction (0.035 = 3.5%).
type Payment struct {
	Base
	SaleID         string          `gorm:"type:uuid;not null;index" json:"sale_id"`
	Method         PaymentMethod   `gorm:"size:20;not null" json:"method"`
	Amount         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	CommissionRate decimal.Decimal `gorm:"type:decimal(6,4);not null;default:0" json:"commission_rate"`
}

// VoidEvent records who voided a sale and why.
type VoidEvent struct {
	Base
	SaleID  string `gorm:"type:uuid;not null;uniqueIndex" json:"sale_id"`
	Reason  string `gorm:"size:255;not null" json:"reason"`
	ActorID string `gorm:"type:uuid;not null" json:"actor_id"`
}
