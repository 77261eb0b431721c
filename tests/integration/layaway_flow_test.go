package integration

import (
	"fmt"
	"net/http"
	"testing"
	"time"
)

// createLayaway opens a layaway for 2 units of the product at 100.00 each.
func createLayaway(t *testing.T, app *testApp, token, productID string) (layawayID, customerID string) {
	t.Helper()
	expires := time.Now().Add(30 * 24 * time.Hour).UTC().Format(time.RFC3339)
	body := fmt.Sprintf(`{
		"customer_phone":"(555) 010-2030",
		"customer_name":"Rosa Diaz",
		"lines":[{"product_id":%q,"qty":"2","unit_price":"100.00"}],
		"expires_at":%q
	}`, productID, expires)
	rec := app.request("POST", "/api/v1/layaways", body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create layaway failed: %d %s", rec.Code, rec.Body.String())
	}
	layaway := parseJSON(t, rec)["layaway"].(map[string]interface{})
	return layaway["id"].(string), layaway["customer_id"].(string)
}

// TestLayawaySettlementFlow pays off a layaway in installments and checks the
// settlement sale runs the allocation engine exactly once.
func TestLayawaySettlementFlow(t *testing.T) {
	app := setupApp(t)
	adminToken, _ := app.registerUser(t, "admin@tienda.test", "password123", "admin")
	cashierToken, _ := app.registerUser(t, "cashier@tienda.test", "password123", "cashier")

	productID := app.createProduct(t, adminToken, "RING-001", "Gold Ring", "100.00", "40.00")
	app.stockProduct(t, adminToken, productID, "10")

	investorID := app.createInvestor(t, adminToken, "Maria Lopez")
	app.deposit(t, adminToken, investorID, "500.00")
	purchase := fmt.Sprintf(`{"lines":[{"product_id":%q,"qty":"2","unit_cost_gross":"40.00"}]}`, productID)
	rec := app.request("POST", "/api/v1/investors/"+investorID+"/purchases", purchase, adminToken)
	if rec.Code != http.StatusCreated {
		t.Fatalf("purchase failed: %d %s", rec.Code, rec.Body.String())
	}

	layawayID, _ := createLayaway(t, app, cashierToken, productID)

	t.Run("creation reserves stock", func(t *testing.T) {
		rec := app.request("GET", "/api/v1/products/"+productID, "", adminToken)
		metrics := parseJSON(t, rec)["metrics"].(map[string]interface{})
		if metrics["stock"] != "8" {
			t.Errorf("expected stock 8 after reservation, got %v", metrics["stock"])
		}
	})

	t.Run("partial payment stays active", func(t *testing.T) {
		rec := app.request("POST", "/api/v1/layaways/"+layawayID+"/payments",
			`{"payments":[{"method":"CASH","amount":"50.00"}]}`, cashierToken)
		if rec.Code != http.StatusOK {
			t.Fatalf("payment failed: %d %s", rec.Code, rec.Body.String())
		}
		layaway := parseJSON(t, rec)["layaway"].(map[string]interface{})
		if layaway["status"] != "ACTIVE" {
			t.Errorf("expected ACTIVE, got %v", layaway["status"])
		}
		if layaway["amount_paid"] != "50" {
			t.Errorf("expected amount_paid 50, got %v", layaway["amount_paid"])
		}
	})

	t.Run("overpayment is rejected", func(t *testing.T) {
		rec := app.request("POST", "/api/v1/layaways/"+layawayID+"/payments",
			`{"payments":[{"method":"CASH","amount":"150.01"}]}`, cashierToken)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
		}
		errObj := parseJSON(t, rec)["error"].(map[string]interface{})
		if errObj["code"] != "INVALID_PAYMENT" {
			t.Errorf("expected INVALID_PAYMENT, got %v", errObj["code"])
		}
	})

	t.Run("final payment settles through a confirmed sale", func(t *testing.T) {
		rec := app.request("POST", "/api/v1/layaways/"+layawayID+"/payments",
			`{"payments":[{"method":"CASH","amount":"150.00"}]}`, cashierToken)
		if rec.Code != http.StatusOK {
			t.Fatalf("payment failed: %d %s", rec.Code, rec.Body.String())
		}
		layaway := parseJSON(t, rec)["layaway"].(map[string]interface{})
		if layaway["status"] != "SETTLED" {
			t.Fatalf("expected SETTLED, got %v", layaway["status"])
		}
		saleID, ok := layaway["settled_sale_id"].(string)
		if !ok || saleID == "" {
			t.Fatal("expected settled_sale_id to be set")
		}

		rec = app.request("GET", "/api/v1/sales/"+saleID, "", cashierToken)
		if rec.Code != http.StatusOK {
			t.Fatalf("get settlement sale failed: %d %s", rec.Code, rec.Body.String())
		}
		sale := parseJSON(t, rec)["sale"].(map[string]interface{})
		if sale["status"] != "CONFIRMED" {
			t.Errorf("expected CONFIRMED settlement sale, got %v", sale["status"])
		}

		// Cost 80 returns to capital, profit 120 splits in half.
		balances := app.investorBalances(t, adminToken, investorID)
		if balances["capital"] != "500" {
			t.Errorf("expected capital 500, got %v", balances["capital"])
		}
		if balances["profit"] != "60" {
			t.Errorf("expected profit 60, got %v", balances["profit"])
		}

		// Stock was already reserved at creation; settling moves nothing.
		rec = app.request("GET", "/api/v1/products/"+productID, "", adminToken)
		metrics := parseJSON(t, rec)["metrics"].(map[string]interface{})
		if metrics["stock"] != "8" {
			t.Errorf("expected stock 8 after settlement, got %v", metrics["stock"])
		}
	})

	t.Run("settled layaway refuses more payments", func(t *testing.T) {
		rec := app.request("POST", "/api/v1/layaways/"+layawayID+"/payments",
			`{"payments":[{"method":"CASH","amount":"10.00"}]}`, cashierToken)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}

// TestLayawayExpiryGrantsCredit force-expires a part-paid layaway and draws
// the resulting store credit on a second layaway.
func TestLayawayExpiryGrantsCredit(t *testing.T) {
	app := setupApp(t)
	adminToken, _ := app.registerUser(t, "admin@tienda.test", "password123", "admin")
	cashierToken, _ := app.registerUser(t, "cashier@tienda.test", "password123", "cashier")

	productID := app.createProduct(t, adminToken, "NECK-001", "Silver Necklace", "100.00", "40.00")
	app.stockProduct(t, adminToken, productID, "10")

	layawayID, customerID := createLayaway(t, app, cashierToken, productID)

	rec := app.request("POST", "/api/v1/layaways/"+layawayID+"/payments",
		`{"payments":[{"method":"CASH","amount":"70.00"}]}`, cashierToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("payment failed: %d %s", rec.Code, rec.Body.String())
	}

	t.Run("cashier cannot expire early", func(t *testing.T) {
		rec := app.request("POST", "/api/v1/layaways/"+layawayID+"/expire", `{"force":true}`, cashierToken)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
		}
		errObj := parseJSON(t, rec)["error"].(map[string]interface{})
		if errObj["code"] != "LAYAWAY_NOT_EXPIRABLE" {
			t.Errorf("expected LAYAWAY_NOT_EXPIRABLE, got %v", errObj["code"])
		}
	})

	t.Run("admin force-expire releases stock and grants credit", func(t *testing.T) {
		rec := app.request("POST", "/api/v1/layaways/"+layawayID+"/expire", `{"force":true}`, adminToken)
		if rec.Code != http.StatusOK {
			t.Fatalf("expire failed: %d %s", rec.Code, rec.Body.String())
		}
		layaway := parseJSON(t, rec)["layaway"].(map[string]interface{})
		if layaway["status"] != "EXPIRED" {
			t.Fatalf("expected EXPIRED, got %v", layaway["status"])
		}

		rec = app.request("GET", "/api/v1/products/"+productID, "", adminToken)
		metrics := parseJSON(t, rec)["metrics"].(map[string]interface{})
		if metrics["stock"] != "10" {
			t.Errorf("expected stock 10 after release, got %v", metrics["stock"])
		}

		rec = app.request("GET", "/api/v1/customers/"+customerID+"/credit", "", cashierToken)
		if rec.Code != http.StatusOK {
			t.Fatalf("get credit failed: %d %s", rec.Code, rec.Body.String())
		}
		credit := parseJSON(t, rec)["credit"].(map[string]interface{})
		if credit["balance"] != "70" {
			t.Errorf("expected credit balance 70, got %v", credit["balance"])
		}
	})

	t.Run("a second layaway can draw the credit", func(t *testing.T) {
		expires := time.Now().Add(30 * 24 * time.Hour).UTC().Format(time.RFC3339)
		body := fmt.Sprintf(`{
			"customer_phone":"555 010 2030",
			"lines":[{"product_id":%q,"qty":"1","unit_price":"100.00"}],
			"deposit":{"method":"CUSTOMER_CREDIT","amount":"50.00"},
			"expires_at":%q
		}`, productID, expires)
		rec := app.request("POST", "/api/v1/layaways", body, cashierToken)
		if rec.Code != http.StatusCreated {
			t.Fatalf("create layaway failed: %d %s", rec.Code, rec.Body.String())
		}
		layaway := parseJSON(t, rec)["layaway"].(map[string]interface{})
		if layaway["amount_paid"] != "50" {
			t.Errorf("expected amount_paid 50, got %v", layaway["amount_paid"])
		}

		rec = app.request("GET", "/api/v1/customers/"+customerID+"/credit", "", cashierToken)
		credit := parseJSON(t, rec)["credit"].(map[string]interface{})
		if credit["balance"] != "20" {
			t.Errorf("expected credit balance 20, got %v", credit["balance"])
		}
	})
}
