package services

import (
	"testing"
	"time"

	"tienda/internal/pagination"
	"tienda/internal/testutil"
)

func TestCreateProduct(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewProductService(db, NewStockService(db))

		product, err := svc.CreateProduct("RING-001", "Gold Ring", testutil.Amount("150.005"), testutil.Amount("60.00"))
		testutil.AssertNoError(t, err)
		if !product.SalePrice.Equal(testutil.Amount("150.01")) {
			t.Errorf("expected rounded sale price 150.01, got %s", product.SalePrice)
		}
		if !product.IsActive {
			t.Error("expected new product to be active")
		}
	})

	t.Run("duplicate_sku", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewProductService(db, NewStockService(db))

		_, err := svc.CreateProduct("RING-001", "Gold Ring", testutil.Amount("150.00"), testutil.Amount("60.00"))
		testutil.AssertNoError(t, err)
		_, err = svc.CreateProduct("RING-001", "Another Ring", testutil.Amount("99.00"), testutil.Amount("40.00"))
		testutil.AssertAppError(t, err, "DUPLICATE_SKU")
	})

	t.Run("negative_price_rejected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewProductService(db, NewStockService(db))

		_, err := svc.CreateProduct("RING-001", "Gold Ring", testutil.Amount("-1.00"), testutil.Amount("60.00"))
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestProductMetrics(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewProductService(db, NewStockService(db))
	investor := testutil.CreateTestInvestor(t, db)
	product := testutil.CreateTestProduct(t, db, "100.00", "40.00")
	testutil.SeedStock(t, db, product.ID, "12")
	testutil.CreateTestAssignment(t, db, investor.ID, product.ID, "5", "40.00", time.Time{})

	metrics, err := svc.Metrics(product.ID)
	testutil.AssertNoError(t, err)
	if !metrics.Stock.Equal(testutil.Amount("12")) {
		t.Errorf("expected stock 12, got %s", metrics.Stock)
	}
	if !metrics.ReservedQty.Equal(testutil.Amount("5")) {
		t.Errorf("expected reserved 5, got %s", metrics.ReservedQty)
	}
	if !metrics.AssignableQty.Equal(testutil.Amount("7")) {
		t.Errorf("expected assignable 7, got %s", metrics.AssignableQty)
	}
}

func TestListProducts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewProductService(db, NewStockService(db))

	_, err := svc.CreateProduct("RING-001", "Gold Ring", testutil.Amount("150.00"), testutil.Amount("60.00"))
	testutil.AssertNoError(t, err)
	_, err = svc.CreateProduct("NECK-001", "Silver Necklace", testutil.Amount("90.00"), testutil.Amount("35.00"))
	testutil.AssertNoError(t, err)

	result, err := svc.ListProducts("", pagination.PageRequest{})
	testutil.AssertNoError(t, err)
	if result.TotalItems != 2 {
		t.Fatalf("expected 2 products, got %d", result.TotalItems)
	}
	if result.Data[0].Name != "Gold Ring" {
		t.Errorf("expected name order, got %q first", result.Data[0].Name)
	}

	bySKU, err := svc.ListProducts("NECK", pagination.PageRequest{})
	testutil.AssertNoError(t, err)
	if bySKU.TotalItems != 1 || bySKU.Data[0].SKU != "NECK-001" {
		t.Errorf("expected the SKU filter to match the necklace only")
	}
}
