package models

import "github.com/shopspring/decimal"

// MovementType classifies a stock movement.
type MovementType string

const (
	MovementInbound    MovementType = "INBOUND"
	MovementOutbound   MovementType = "OUTBOUND"
	MovementAdjustment MovementType = "ADJUSTMENT"
	MovementReserved   MovementType = "RESERVED"
	MovementReleased   MovementType = "RELEASED"
)

// Valid reports whether m is one of the known movement types.
func (m MovementType) Valid() bool {
	switch m {
	case MovementInbound, MovementOutbound, MovementAdjustment, MovementReserved, MovementReleased:
		return true
	}
	return false
}

// StockMovement is one entry in the append-only stock ledger. A product's
// current stock is the sum of its movements' quantity deltas. The
// (reference_type, reference_id, product) triple is unique so the same
// economic event is never posted twice.
type StockMovement struct {
	Base
	ProductID     string          `gorm:"type:uuid;not null;index;uniqueIndex:uniq_movement_reference" json:"product_id"`
	MovementType  MovementType    `gorm:"not null" json:"movement_type"`
	QuantityDelta decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"quantity_delta"`
	ReferenceType string          `gorm:"size:64;not null;uniqueIndex:uniq_movement_reference" json:"reference_type"`
	ReferenceID   string          `gorm:"size:64;not null;uniqueIndex:uniq_movement_reference" json:"reference_id"`
	Note          string          `gorm:"size:255" json:"note"`
	CreatedByID   string          `gorm:"type:uuid" json:"created_by_id"`

	Product Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}
