package integration

import (
	"fmt"
	"net/http"
	"testing"
)

// TestInvestorCapitalFlow walks an investor from registration through funding,
// a stock purchase, and a withdrawal, checking derived balances at each step.
func TestInvestorCapitalFlow(t *testing.T) {
	app := setupApp(t)
	adminToken, _ := app.registerUser(t, "admin@tienda.test", "password123", "admin")

	productID := app.createProduct(t, adminToken, "RING-001", "Gold Ring", "100.00", "40.00")
	app.stockProduct(t, adminToken, productID, "10")

	investorID := app.createInvestor(t, adminToken, "Maria Lopez")
	app.deposit(t, adminToken, investorID, "500.00")

	balances := app.investorBalances(t, adminToken, investorID)
	if balances["capital"] != "500" {
		t.Fatalf("expected capital 500 after deposit, got %v", balances["capital"])
	}

	t.Run("purchase converts capital into inventory", func(t *testing.T) {
		body := fmt.Sprintf(`{"lines":[{"product_id":%q,"qty":"2","unit_cost_gross":"58.00"}]}`, productID)
		rec := app.request("POST", "/api/v1/investors/"+investorID+"/purchases", body, adminToken)
		if rec.Code != http.StatusCreated {
			t.Fatalf("purchase failed: %d %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		if result["purchase_total"] != "116" {
			t.Errorf("expected purchase_total 116, got %v", result["purchase_total"])
		}

		balances := app.investorBalances(t, adminToken, investorID)
		if balances["capital"] != "384" {
			t.Errorf("expected capital 384, got %v", balances["capital"])
		}
		if balances["inventory"] != "116" {
			t.Errorf("expected inventory 116, got %v", balances["inventory"])
		}
	})

	t.Run("assignments list the purchased lot", func(t *testing.T) {
		rec := app.request("GET", "/api/v1/investors/"+investorID+"/assignments", "", adminToken)
		if rec.Code != http.StatusOK {
			t.Fatalf("list assignments failed: %d %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		data := result["data"].([]interface{})
		if len(data) != 1 {
			t.Fatalf("expected 1 assignment, got %d", len(data))
		}
		lot := data[0].(map[string]interface{})
		if lot["qty_assigned"] != "2" {
			t.Errorf("expected qty_assigned 2, got %v", lot["qty_assigned"])
		}
		if lot["unit_cost"] != "58" {
			t.Errorf("expected unit_cost 58, got %v", lot["unit_cost"])
		}
	})

	t.Run("purchase beyond assignable stock is rejected", func(t *testing.T) {
		body := fmt.Sprintf(`{"lines":[{"product_id":%q,"qty":"9","unit_cost_gross":"40.00"}]}`, productID)
		rec := app.request("POST", "/api/v1/investors/"+investorID+"/purchases", body, adminToken)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
		}
		errObj := parseJSON(t, rec)["error"].(map[string]interface{})
		if errObj["code"] != "INSUFFICIENT_STOCK" {
			t.Errorf("expected INSUFFICIENT_STOCK, got %v", errObj["code"])
		}
	})

	t.Run("withdrawal beyond capital is rejected", func(t *testing.T) {
		rec := app.request("POST", "/api/v1/investors/"+investorID+"/withdraw",
			`{"amount":"384.01"}`, adminToken)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
		}
		errObj := parseJSON(t, rec)["error"].(map[string]interface{})
		if errObj["code"] != "INSUFFICIENT_CAPITAL" {
			t.Errorf("expected INSUFFICIENT_CAPITAL, got %v", errObj["code"])
		}
	})

	t.Run("exact withdrawal drains capital to zero", func(t *testing.T) {
		rec := app.request("POST", "/api/v1/investors/"+investorID+"/withdraw",
			`{"amount":"384.00"}`, adminToken)
		if rec.Code != http.StatusCreated {
			t.Fatalf("withdraw failed: %d %s", rec.Code, rec.Body.String())
		}
		balances := app.investorBalances(t, adminToken, investorID)
		if balances["capital"] != "0" {
			t.Errorf("expected capital 0, got %v", balances["capital"])
		}
	})

	t.Run("ledger lists every entry newest first", func(t *testing.T) {
		rec := app.request("GET", "/api/v1/investors/"+investorID+"/ledger", "", adminToken)
		if rec.Code != http.StatusOK {
			t.Fatalf("list ledger failed: %d %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		if result["total_items"] != float64(3) {
			t.Fatalf("expected 3 ledger entries, got %v", result["total_items"])
		}
		data := result["data"].([]interface{})
		newest := data[0].(map[string]interface{})
		if newest["entry_type"] != "CAPITAL_WITHDRAWAL" {
			t.Errorf("expected newest entry CAPITAL_WITHDRAWAL, got %v", newest["entry_type"])
		}
	})
}

// TestInvestorOwnershipGuard checks that investor-role logins see only the
// investor record linked to their own account.
func TestInvestorOwnershipGuard(t *testing.T) {
	app := setupApp(t)
	adminToken, _ := app.registerUser(t, "admin@tienda.test", "password123", "admin")
	investorToken, investorUserID := app.registerUser(t, "maria@tienda.test", "password123", "investor")

	// Own record, linked by user_id.
	body := fmt.Sprintf(`{"display_name":"Maria Lopez","user_id":%q}`, investorUserID)
	rec := app.request("POST", "/api/v1/investors", body, adminToken)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create investor failed: %d %s", rec.Code, rec.Body.String())
	}
	ownID := parseJSON(t, rec)["investor"].(map[string]interface{})["id"].(string)

	otherID := app.createInvestor(t, adminToken, "Someone Else")

	t.Run("sees own record", func(t *testing.T) {
		rec := app.request("GET", "/api/v1/investors/"+ownID, "", investorToken)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("cannot see another investor", func(t *testing.T) {
		rec := app.request("GET", "/api/v1/investors/"+otherID, "", investorToken)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("cannot deposit", func(t *testing.T) {
		rec := app.request("POST", "/api/v1/investors/"+ownID+"/deposit",
			`{"amount":"100.00"}`, investorToken)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}
