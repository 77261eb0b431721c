package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"tienda/internal/handlers"
	"tienda/internal/locks"
	"tienda/internal/logger"
	"tienda/internal/middleware"
	"tienda/internal/models"
	"tienda/internal/services"
	"tienda/internal/validator"
)

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
}

// dbCounter ensures each test gets a unique in-memory database.
var dbCounter atomic.Int64

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupIsolatedDB creates an isolated in-memory SQLite database for a single test.
func setupIsolatedDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := dbCounter.Add(1)
	dsn := fmt.Sprintf("file:integrationdb%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	allModels := []interface{}{
		&models.User{},
		&models.Investor{},
		&models.InvestorAssignment{},
		&models.LedgerEntry{},
		&models.Product{},
		&models.StockMovement{},
		&models.Sale{},
		&models.SaleLine{},
		&models.Payment{},
		&models.VoidEvent{},
		&models.Customer{},
		&models.Layaway{},
		&models.LayawayLine{},
		&models.LayawayPayment{},
		&models.CustomerCredit{},
		&models.AuditLog{},
	}
	if err := db.AutoMigrate(allModels...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// setupApp creates a full application stack backed by an isolated in-memory SQLite.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := setupIsolatedDB(t)
	registry := locks.NewRegistry()

	// Services
	userService := services.NewUserService(db)
	auditService := services.NewAuditService(db)
	ledgerService := services.NewLedgerService(db, registry)
	stockService := services.NewStockService(db)
	productService := services.NewProductService(db, stockService)
	investorService := services.NewInvestorService(db, registry, ledgerService, stockService)
	allocationService := services.NewAllocationService(ledgerService)
	saleService := services.NewSaleService(db, registry, stockService, allocationService)
	layawayService := services.NewLayawayService(db, registry, stockService, allocationService)

	// Handlers
	authHandler := handlers.NewAuthHandler(userService)
	investorHandler := handlers.NewInvestorHandler(investorService, ledgerService, auditService)
	productHandler := handlers.NewProductHandler(productService, stockService, auditService)
	saleHandler := handlers.NewSaleHandler(saleService, auditService)
	layawayHandler := handlers.NewLayawayHandler(layawayService, auditService)

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())

	v1 := router.Group("/api/v1")

	// Public auth routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	investors := protected.Group("/investors")
	investors.POST("", middleware.RequireCapability("investor.manage"), investorHandler.CreateInvestor)
	investors.GET("", middleware.RequireCapability("investor.manage"), investorHandler.ListInvestors)
	investors.GET("/:id", middleware.RequireCapability("investor.view"), investorHandler.GetInvestor)
	investors.POST("/:id/deposit", middleware.RequireCapability("ledger.manage"), investorHandler.Deposit)
	investors.POST("/:id/withdraw", middleware.RequireCapability("ledger.manage"), investorHandler.Withdraw)
	investors.POST("/:id/reinvest", middleware.RequireCapability("ledger.manage"), investorHandler.Reinvest)
	investors.GET("/:id/ledger", middleware.RequireCapability("ledger.view"), investorHandler.Ledger)
	investors.POST("/:id/purchases", middleware.RequireCapability("ledger.manage"), investorHandler.Purchase)
	investors.GET("/:id/assignments", middleware.RequireCapability("investor.view"), investorHandler.Assignments)

	products := protected.Group("/products")
	products.POST("", middleware.RequireCapability("catalog.manage"), productHandler.CreateProduct)
	products.GET("", productHandler.ListProducts)
	products.GET("/:id", productHandler.GetProduct)
	products.POST("/:id/movements", middleware.RequireCapability("catalog.manage"), productHandler.RecordMovement)
	products.GET("/:id/movements", productHandler.ListMovements)

	sales := protected.Group("/sales")
	sales.POST("", middleware.RequireCapability("sales.create"), saleHandler.CreateSale)
	sales.GET("", middleware.RequireCapability("sales.view"), saleHandler.ListSales)
	sales.GET("/:id", middleware.RequireCapability("sales.view"), saleHandler.GetSale)
	sales.POST("/:id/confirm", middleware.RequireCapability("sales.confirm"), saleHandler.Confirm)
	sales.POST("/:id/void", middleware.RequireCapability("sales.void"), saleHandler.Void)

	layaways := protected.Group("/layaways")
	layaways.POST("", middleware.RequireCapability("layaway.manage"), layawayHandler.Create)
	layaways.GET("", middleware.RequireCapability("layaway.manage"), layawayHandler.List)
	layaways.GET("/:id", middleware.RequireCapability("layaway.manage"), layawayHandler.Get)
	layaways.POST("/:id/payments", middleware.RequireCapability("layaway.manage"), layawayHandler.AddPayments)
	layaways.POST("/:id/extend", middleware.RequireCapability("layaway.manage"), layawayHandler.Extend)
	layaways.POST("/:id/expire", middleware.RequireCapability("layaway.manage"), layawayHandler.Expire)

	customers := protected.Group("/customers")
	customers.GET("/:id/credit", middleware.RequireCapability("layaway.manage"), layawayHandler.CustomerCredit)

	return &testApp{DB: db, Router: router}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// registerUser registers a new user and returns the access token and user ID.
func (app *testApp) registerUser(t *testing.T, email, password, role string) (accessToken, userID string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q,"role":%q}`, email, password, role)
	rec := app.request("POST", "/api/v1/auth/register", body, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	user := result["user"].(map[string]interface{})
	return result["access_token"].(string), user["id"].(string)
}

// loginUser logs in and returns the access and refresh tokens.
func (app *testApp) loginUser(t *testing.T, email, password string) (accessToken, refreshToken string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, password)
	rec := app.request("POST", "/api/v1/auth/login", body, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	return result["access_token"].(string), result["refresh_token"].(string)
}

// createProduct creates a product as the given user and returns its ID.
func (app *testApp) createProduct(t *testing.T, token, sku, name, salePrice, unitCost string) string {
	t.Helper()
	body := fmt.Sprintf(`{"sku":%q,"name":%q,"sale_price":%q,"unit_cost":%q}`, sku, name, salePrice, unitCost)
	rec := app.request("POST", "/api/v1/products", body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create product failed: %d %s", rec.Code, rec.Body.String())
	}
	product := parseJSON(t, rec)["product"].(map[string]interface{})
	return product["id"].(string)
}

// stockProduct posts an INBOUND movement for the product.
func (app *testApp) stockProduct(t *testing.T, token, productID, qty string) {
	t.Helper()
	body := fmt.Sprintf(`{"movement_type":"INBOUND","quantity_delta":%q,"reference_type":"restock","reference_id":"seed-%s","note":"initial stock"}`,
		qty, productID)
	rec := app.request("POST", "/api/v1/products/"+productID+"/movements", body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("stock product failed: %d %s", rec.Code, rec.Body.String())
	}
}

// createInvestor creates an investor and returns its ID.
func (app *testApp) createInvestor(t *testing.T, token, displayName string) string {
	t.Helper()
	body := fmt.Sprintf(`{"display_name":%q}`, displayName)
	rec := app.request("POST", "/api/v1/investors", body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create investor failed: %d %s", rec.Code, rec.Body.String())
	}
	investor := parseJSON(t, rec)["investor"].(map[string]interface{})
	return investor["id"].(string)
}

// deposit adds liquid capital to an investor.
func (app *testApp) deposit(t *testing.T, token, investorID, amount string) {
	t.Helper()
	body := fmt.Sprintf(`{"amount":%q,"note":"funding"}`, amount)
	rec := app.request("POST", "/api/v1/investors/"+investorID+"/deposit", body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("deposit failed: %d %s", rec.Code, rec.Body.String())
	}
}

// investorBalances fetches the derived balances for an investor.
func (app *testApp) investorBalances(t *testing.T, token, investorID string) map[string]interface{} {
	t.Helper()
	rec := app.request("GET", "/api/v1/investors/"+investorID, "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("get investor failed: %d %s", rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)["balances"].(map[string]interface{})
}
