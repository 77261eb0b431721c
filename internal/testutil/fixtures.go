package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"tienda/internal/models"
)

// Amount parses a decimal literal, panicking on malformed input. It keeps
// expected values in tests readable.
func Amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// CreateTestUser creates an admin user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return CreateTestUserWithRole(t, db, models.RoleAdmin)
}

// CreateTestUserWithRole creates a user with the given role.
func CreateTestUserWithRole(t *testing.T, db *gorm.DB, role models.Role) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    fmt.Sprintf("user%d@test.com", nextID()),
		Password: string(hash),
		Role:     role,
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestInvestor creates an investor with a unique display name and no
// linked user.
func CreateTestInvestor(t *testing.T, db *gorm.DB) *models.Investor {
	t.Helper()

	investor := &models.Investor{
		DisplayName: fmt.Sprintf("Investor %d", nextID()),
		IsActive:    true,
	}
	if err := db.Create(investor).Error; err != nil {
		t.Fatalf("failed to create test investor: %v", err)
	}
	return investor
}

// CreateTestProduct creates an active product with a unique SKU.
func CreateTestProduct(t *testing.T, db *gorm.DB, salePrice, unitCost string) *models.Product {
	t.Helper()

	n := nextID()
	product := &models.Product{
		SKU:       fmt.Sprintf("SKU-%04d", n),
		Name:      fmt.Sprintf("Product %d", n),
		SalePrice: decimal.RequireFromString(salePrice),
		UnitCost:  decimal.RequireFromString(unitCost),
		IsActive:  true,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("failed to create test product: %v", err)
	}
	return product
}

// SeedStock posts an INBOUND movement so the product has stock on hand.
func SeedStock(t *testing.T, db *gorm.DB, productID, qty string) *models.StockMovement {
	t.Helper()

	movement := &models.StockMovement{
		ProductID:     productID,
		MovementType:  models.MovementInbound,
		QuantityDelta: decimal.RequireFromString(qty),
		ReferenceType: "seed",
		ReferenceID:   fmt.Sprintf("seed-%d", nextID()),
	}
	if err := db.Create(movement).Error; err != nil {
		t.Fatalf("failed to seed stock: %v", err)
	}
	return movement
}

// SeedCapital appends a CAPITAL_DEPOSIT ledger entry directly, bypassing the
// service layer, so tests can arrange balances without exercising Deposit.
func SeedCapital(t *testing.T, db *gorm.DB, investorID, amount string) *models.LedgerEntry {
	t.Helper()

	entry := &models.LedgerEntry{
		InvestorID:    investorID,
		EntryType:     models.EntryCapitalDeposit,
		CapitalDelta:  decimal.RequireFromString(amount),
		ReferenceType: "manual_deposit",
		ReferenceID:   investorID,
	}
	if err := db.Create(entry).Error; err != nil {
		t.Fatalf("failed to seed capital: %v", err)
	}
	return entry
}

// CreateTestAssignment creates an assignment lot with an explicit creation
// time so tests can control FIFO ordering.
func CreateTestAssignment(t *testing.T, db *gorm.DB, investorID, productID, qtyAssigned, unitCost string, createdAt time.Time) *models.InvestorAssignment {
	t.Helper()

	assignment := &models.InvestorAssignment{
		InvestorID:  investorID,
		ProductID:   productID,
		QtyAssigned: decimal.RequireFromString(qtyAssigned),
		QtySold:     decimal.Zero,
		UnitCost:    decimal.RequireFromString(unitCost),
	}
	if err := db.Create(assignment).Error; err != nil {
		t.Fatalf("failed to create test assignment: %v", err)
	}
	if !createdAt.IsZero() {
		if err := db.Model(assignment).Update("created_at", createdAt).Error; err != nil {
			t.Fatalf("failed to backdate test assignment: %v", err)
		}
		assignment.CreatedAt = createdAt
	}
	return assignment
}

// CreateTestCustomer creates a customer with a unique phone number.
func CreateTestCustomer(t *testing.T, db *gorm.DB) *models.Customer {
	t.Helper()

	phone := fmt.Sprintf("555%07d", nextID())
	customer := &models.Customer{
		Phone:           phone,
		PhoneNormalized: models.NormalizePhone(phone),
		Name:            fmt.Sprintf("Customer %d", nextID()),
	}
	if err := db.Create(customer).Error; err != nil {
		t.Fatalf("failed to create test customer: %v", err)
	}
	return customer
}
