package services

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"tienda/internal/models"
	"tienda/internal/pagination"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName string, role models.Role) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(email, password string) (*models.User, error)
	StoreRefreshTokenHash(userID, tokenHash string) error
	GetRefreshTokenHash(userID string) (string, error)
}

// LedgerServicer owns the append-only investor ledger. Balances are always
// derived by summing entry deltas; no component may cache them.
type LedgerServicer interface {
	// Record appends one entry inside the caller's transaction, rounding
	// every delta to two fractional digits before it is persisted.
	Record(tx *gorm.DB, investorID string, entryType models.LedgerEntryType, capitalDelta, inventoryDelta, profitDelta decimal.Decimal, referenceType, referenceID, note string) (*models.LedgerEntry, error)

	Balances(investorID string) (models.Balances, error)
	BalancesTx(tx *gorm.DB, investorID string) (models.Balances, error)
	Entries(investorID string, page pagination.PageRequest) (*pagination.PageResponse[models.LedgerEntry], error)

	Deposit(investorID string, amount decimal.Decimal, note string) (*models.LedgerEntry, error)
	Withdraw(investorID string, amount decimal.Decimal, note string) (*models.LedgerEntry, error)
	Reinvest(investorID string, amount decimal.Decimal, note string) (*models.LedgerEntry, error)
}

// PurchaseLine is one requested (product, qty, gross unit cost) line of an
// investor purchase.
type PurchaseLine struct {
	ProductID     string
	Qty           decimal.Decimal
	UnitCostGross decimal.Decimal
}

// PurchaseResult is the outcome of a completed investor purchase.
type PurchaseResult struct {
	InvestorID    string                      `json:"investor_id"`
	PurchaseTotal decimal.Decimal             `json:"purchase_total"`
	Balances      models.Balances             `json:"balances"`
	Assignments   []models.InvestorAssignment `json:"assignments"`
	LedgerEntries []models.LedgerEntry        `json:"ledger_entries"`
}

// InvestorServicer defines investor management and the purchase workflow.
type InvestorServicer interface {
	CreateInvestor(displayName string, userID *string) (*models.Investor, error)
	GetInvestor(id string) (*models.Investor, error)
	ListInvestors(query string, page pagination.PageRequest) (*pagination.PageResponse[models.Investor], error)
	ListAssignments(investorID string, page pagination.PageRequest) (*pagination.PageResponse[models.InvestorAssignment], error)

	// Purchase validates capital and house-wide assignable stock, then
	// atomically creates or grows one lot per (product, gross unit cost)
	// pair with a CAPITAL_TO_INVENTORY entry each. The tax rate is recorded
	// for audit only and does not affect the cost basis.
	Purchase(investorID string, taxRatePct decimal.Decimal, lines []PurchaseLine) (*PurchaseResult, error)
}

// StockServicer owns the append-only stock movement ledger.
type StockServicer interface {
	// Record appends a movement inside the caller's transaction. Negative
	// deltas are rejected when they would drive stock below zero. Re-posting
	// an already-posted (reference, product) pair returns the existing
	// movement as a success-no-op.
	Record(tx *gorm.DB, productID string, movementType models.MovementType, quantityDelta decimal.Decimal, referenceType, referenceID, note, createdByID string) (*models.StockMovement, error)

	RecordMovement(productID string, movementType models.MovementType, quantityDelta decimal.Decimal, referenceType, referenceID, note, createdByID string) (*models.StockMovement, error)
	CurrentStock(tx *gorm.DB, productID string) (decimal.Decimal, error)
	ReservedQty(tx *gorm.DB, productID string) (decimal.Decimal, error)
	AssignableQty(tx *gorm.DB, productID string) (decimal.Decimal, error)
	ListMovements(productID string, page pagination.PageRequest) (*pagination.PageResponse[models.StockMovement], error)
}

// ProductServicer defines catalog management.
type ProductServicer interface {
	CreateProduct(sku, name string, salePrice, unitCost decimal.Decimal) (*models.Product, error)
	GetProduct(id string) (*models.Product, error)
	ListProducts(query string, page pagination.PageRequest) (*pagination.PageResponse[models.Product], error)
	Metrics(productID string) (*models.ProductMetrics, error)
}

// SaleLineInput is one product line of a draft sale.
type SaleLineInput struct {
	ProductID   string
	Qty         decimal.Decimal
	UnitPrice   decimal.Decimal
	UnitCost    decimal.Decimal
	DiscountPct decimal.Decimal
}

// PaymentInput is one tender on a sale or layaway.
type PaymentInput struct {
	Method         models.PaymentMethod
	Amount         decimal.Decimal
	CommissionRate decimal.Decimal
}

// SaleServicer owns the sale state machine. Confirmation and void drive the
// allocation and reversal engines.
type SaleServicer interface {
	CreateSale(cashierID string, customerID *string, lines []SaleLineInput, payments []PaymentInput) (*models.Sale, error)
	GetSale(id string) (*models.Sale, error)
	ListSales(page pagination.PageRequest) (*pagination.PageResponse[models.Sale], error)
	Confirm(saleID, actorID string) (*models.Sale, error)
	Void(saleID, actorID string, actorRole models.Role, reason string) (*models.Sale, error)
}

// AllocationServicer consumes and restores investor assignment lots as sales
// are confirmed and voided. Both methods run inside the caller's transaction
// under the store-wide lock.
type AllocationServicer interface {
	AllocateSale(tx *gorm.DB, sale *models.Sale) error
	ReverseSale(tx *gorm.DB, sale *models.Sale) error
}

// LayawayLineInput is one product line of a new layaway.
type LayawayLineInput struct {
	ProductID   string
	Qty         decimal.Decimal
	UnitPrice   decimal.Decimal
	DiscountPct decimal.Decimal
}

// LayawayInput is the payload for creating a layaway.
type LayawayInput struct {
	CustomerPhone string
	CustomerName  string
	Lines         []LayawayLineInput
	Deposit       PaymentInput
	ExpiresAt     time.Time
	Notes         string
}

// LayawayServicer owns layaways and customer credit. The final payment
// settles the layaway by materializing a confirmed sale through the
// allocation engine.
type LayawayServicer interface {
	Create(createdByID string, input LayawayInput) (*models.Layaway, error)
	Get(id string) (*models.Layaway, error)
	List(status *models.LayawayStatus, page pagination.PageRequest) (*pagination.PageResponse[models.Layaway], error)
	AddPayments(layawayID, actorID string, payments []PaymentInput) (*models.Layaway, error)
	Extend(layawayID, actorID string, newExpiresAt time.Time, reason string) (*models.Layaway, error)
	Expire(layawayID, actorID string, actorRole models.Role, force bool) (*models.Layaway, error)
	CustomerCredit(customerID string) (*models.CustomerCredit, error)
}

// AuditServicer records audit events without ever failing the caller.
type AuditServicer interface {
	Log(actorID, action, entityType, entityID, ipAddress string, payload map[string]any)
}
