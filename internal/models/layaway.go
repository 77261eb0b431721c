package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var nonDigits = regexp.MustCompile(`\D+`)

// NormalizePhone strips everything but digits from a phone number. Customers
// are deduplicated on the normalized form.
func NormalizePhone(value string) string {
	raw := strings.TrimSpace(value)
	normalized := nonDigits.ReplaceAllString(raw, "")
	if normalized == "" {
		return raw
	}
	return normalized
}

// LayawayStatus is the layaway state machine: ACTIVE -> SETTLED | EXPIRED,
// and SETTLED -> REFUNDED when the settlement sale is voided.
type LayawayStatus string

const (
	LayawayActive   LayawayStatus = "ACTIVE"
	LayawaySettled  LayawayStatus = "SETTLED"
	LayawayExpired  LayawayStatus = "EXPIRED"
	LayawayRefunded LayawayStatus = "REFUNDED"
)

// Customer is a layaway customer, keyed by normalized phone.
type Customer struct {
	Base
	Phone           string `gorm:"size:50;not null" json:"phone"`
	PhoneNormalized string `gorm:"size:50;uniqueIndex;not null" json:"phone_normalized"`
	Name            string `gorm:"not null" json:"name"`
	Notes           string `gorm:"size:255" json:"notes"`
}

// Layaway reserves stock for a customer until fully paid. The final payment
// materializes a CONFIRMED sale (the settlement bridge) and flips the status
// to SETTLED.
type Layaway struct {
	Base
	CustomerID    string          `gorm:"type:uuid;not null;index" json:"customer_id"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"subtotal"`
	Total         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	AmountPaid    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"amount_paid"`
	ExpiresAt     time.Time       `gorm:"not null;index" json:"expires_at"`
	Status        LayawayStatus   `gorm:"size:16;not null;default:'ACTIVE';index" json:"status"`
	Notes         string          `gorm:"size:255" json:"notes"`
	SettledSaleID *string         `gorm:"type:uuid;index" json:"settled_sale_id,omitempty"`
	CreatedByID   string          `gorm:"type:uuid;not null" json:"created_by_id"`

	Customer Customer         `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Lines    []LayawayLine    `gorm:"foreignKey:LayawayID" json:"lines,omitempty"`
	Payments []LayawayPayment `gorm:"foreignKey:LayawayID" json:"payments,omitempty"`
}

// BalanceDue returns the unpaid remainder of the layaway total.
func (l *Layaway) BalanceDue() decimal.Decimal {
	return l.Total.Sub(l.AmountPaid)
}

// LayawayLine is one product line on a layaway, priced at creation time.
type LayawayLine struct {
	Base
	LayawayID   string          `gorm:"type:uuid;not null;index" json:"layaway_id"`
	ProductID   string          `gorm:"type:uuid;not null" json:"product_id"`
	Qty         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"qty"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	UnitCost    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"unit_cost"`
	DiscountPct decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"discount_pct"`

	Product Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

// LayawayPayment is one partial payment toward a layaway.
type LayawayPayment struct {
	Base
	LayawayID      string          `gorm:"type:uuid;not null;index" json:"layaway_id"`
	Method         PaymentMethod   `gorm:"size:20;not null;default:'CASH'" json:"method"`
	Amount         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	CommissionRate decimal.Decimal `gorm:"type:decimal(6,4);not null;default:0" json:"commission_rate"`
	CreatedByID    string          `gorm:"type:uuid" json:"created_by_id"`
}

// CustomerCredit is a customer's store-credit balance, fed by expired
// layaways and drawn down by CUSTOMER_CREDIT payments.
type CustomerCredit struct {
	Base
	CustomerID string          `gorm:"type:uuid;uniqueIndex;not null" json:"customer_id"`
	Balance    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"balance"`

	Customer Customer `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
}
