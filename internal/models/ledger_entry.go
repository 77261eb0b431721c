package models

import "github.com/shopspring/decimal"

// LedgerEntryType classifies a ledger entry. Each type constrains which of
// the three deltas may be non-zero.
type LedgerEntryType string

const (
	EntryCapitalDeposit     LedgerEntryType = "CAPITAL_DEPOSIT"
	EntryCapitalWithdrawal  LedgerEntryType = "CAPITAL_WITHDRAWAL"
	EntryCapitalToInventory LedgerEntryType = "CAPITAL_TO_INVENTORY"
	EntryInventoryToCapital LedgerEntryType = "INVENTORY_TO_CAPITAL"
	EntryProfitShare        LedgerEntryType = "PROFIT_SHARE"
	EntryReinvestment       LedgerEntryType = "REINVESTMENT"
)

// LedgerEntry is an immutable record of one economic event as a signed
// triple of capital/inventory/profit deltas. Entries are never updated or
// deleted; a reversal is a new entry with negated deltas. An investor's
// balances are always the sum of its entries' deltas, never a stored field.
type LedgerEntry struct {
	Base
	InvestorID     string          `gorm:"type:uuid;not null;index" json:"investor_id"`
	EntryType      LedgerEntryType `gorm:"size:32;not null" json:"entry_type"`
	CapitalDelta   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"capital_delta"`
	InventoryDelta decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"inventory_delta"`
	ProfitDelta    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"profit_delta"`
	ReferenceType  string          `gorm:"size:64;not null" json:"reference_type"`
	ReferenceID    string          `gorm:"size:64;not null" json:"reference_id"`
	Note           string          `gorm:"size:255" json:"note"`

	Investor Investor `gorm:"foreignKey:InvestorID" json:"investor,omitempty"`
}

// Balances is the derived capital/inventory/profit position of an investor.
type Balances struct {
	Capital   decimal.Decimal `json:"capital"`
	Inventory decimal.Decimal `json:"inventory"`
	Profit    decimal.Decimal `json:"profit"`
}

// SumEntries derives balances from a list of ledger entries. This is the
// single source of truth for balances; every component that writes entries
// must preserve the property that balances equal the sum of all deltas.
func SumEntries(entries []LedgerEntry) Balances {
	b := Balances{Capital: decimal.Zero, Inventory: decimal.Zero, Profit: decimal.Zero}
	for _, e := range entries {
		b.Capital = b.Capital.Add(e.CapitalDelta)
		b.Inventory = b.Inventory.Add(e.InventoryDelta)
		b.Profit = b.Profit.Add(e.ProfitDelta)
	}
	return b
}
