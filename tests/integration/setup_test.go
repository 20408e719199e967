package integration

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"registra/internal/handlers"
	"registra/internal/logger"
	"registra/internal/middleware"
	"registra/internal/models"
	"registra/internal/services"
	"registra/internal/validator"
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
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	allModels := []interface{}{
		&models.Company{},
		&models.Register{},
		&models.ShareClass{},
		&models.Shareholder{},
		&models.BankMandate{},
		&models.RegisterAccount{},
		&models.SharePosition{},
		&models.Declaration{},
		&models.EntitlementRun{},
		&models.Entitlement{},
		&models.Payment{},
		&models.ApprovalStep{},
		&models.ApprovalAction{},
		&models.ApprovalDelegation{},
		&models.WorkflowEvent{},
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

	// Services
	eventService := services.NewEventService(db)
	declarationService := services.NewDeclarationService(db, eventService)
	entitlementService := services.NewEntitlementService(db)
	runService := services.NewRunService(db, eventService)
	workflowService := services.NewWorkflowService(db, eventService)
	paymentService := services.NewPaymentService(db, eventService)
	exportService := services.NewExportService(db, eventService)

	// Handlers
	declarationHandler := handlers.NewDeclarationHandler(declarationService)
	entitlementHandler := handlers.NewEntitlementHandler(entitlementService, runService)
	workflowHandler := handlers.NewWorkflowHandler(workflowService, eventService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	exportHandler := handlers.NewExportHandler(exportService)

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware())

	declarations := v1.Group("/declarations")
	declarations.POST("", declarationHandler.CreateDeclaration)
	declarations.GET("", declarationHandler.GetDeclarations)
	declarations.GET("/:id", declarationHandler.GetDeclaration)
	declarations.PUT("/:id", declarationHandler.UpdateDeclaration)
	declarations.DELETE("/:id", declarationHandler.DeleteDeclaration)

	declarations.GET("/:id/entitlements/preview", entitlementHandler.PreviewEntitlements)
	declarations.GET("/:id/entitlements/totals", entitlementHandler.GetGrandTotals)
	declarations.POST("/:id/entitlements/preview-runs", entitlementHandler.RecordPreviewRun)
	declarations.POST("/:id/entitlements/freeze", entitlementHandler.FreezeEntitlements)
	declarations.GET("/:id/entitlements", entitlementHandler.GetFrozenEntitlements)
	declarations.GET("/:id/runs", entitlementHandler.GetRuns)

	declarations.POST("/:id/submit", workflowHandler.SubmitDeclaration)
	declarations.POST("/:id/decisions", workflowHandler.RecordDecision)
	declarations.POST("/:id/go-live", workflowHandler.GoLive)
	declarations.POST("/:id/archive", workflowHandler.ArchiveDeclaration)
	declarations.POST("/:id/delegations", workflowHandler.CreateDelegation)
	declarations.GET("/:id/delegations", workflowHandler.GetDelegations)
	declarations.DELETE("/:id/delegations/:delegation_id", workflowHandler.RevokeDelegation)
	declarations.GET("/:id/actions", workflowHandler.GetActions)
	declarations.GET("/:id/events", workflowHandler.GetEvents)

	declarations.POST("/:id/payments/generate", paymentHandler.GeneratePayments)
	declarations.GET("/:id/payments", paymentHandler.GetPayments)
	payments := v1.Group("/payments")
	payments.PATCH("/:id/status", paymentHandler.UpdatePaymentStatus)
	payments.POST("/:id/reissue", paymentHandler.ReissuePayment)

	declarations.GET("/:id/export/csv", exportHandler.ExportEntitlementsCSV)

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

// actorCounter hands out distinct actor ids for tokens.
var actorCounter atomic.Int64

// newActor mints an actor id and a signed bearer token carrying the given
// role codes. Tokens are issued directly since the identity provider is
// external to this service.
func newActor(t *testing.T, roles ...string) (actorID, token string) {
	t.Helper()
	actorID = fmt.Sprintf("00000000-0000-4000-9000-%012d", actorCounter.Add(1))
	token, err := middleware.GenerateToken(actorID, roles)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return actorID, token
}
