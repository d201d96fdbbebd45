package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cartaocomp/cartaocomp/internal/audit"
	"github.com/cartaocomp/cartaocomp/internal/db"
	"github.com/cartaocomp/cartaocomp/internal/gateway"
	"github.com/cartaocomp/cartaocomp/internal/models"
	"github.com/cartaocomp/cartaocomp/internal/reconcile"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const testWebhookSecret = "whsec_test"

// stubGateway satisfies gateway.Client; the webhook path never calls it.
type stubGateway struct{}

func (stubGateway) CreateCustomer(ctx context.Context, name, document string) (string, error) {
	return "", gateway.ErrGatewayUnavailable
}

func (stubGateway) CreateCharge(ctx context.Context, input gateway.CreateChargeInput) (*gateway.CreatedCharge, error) {
	return nil, gateway.ErrGatewayUnavailable
}

func (stubGateway) GetCharge(ctx context.Context, gatewayChargeID string) (string, error) {
	return "", gateway.ErrGatewayUnavailable
}

func newWebhookRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	engine := reconcile.NewEngine(conn, stubGateway{}, audit.NewRecorder(nil))
	router := gin.New()
	router.POST("/v0/webhooks/gateway", NewWebhookHandler(engine, testWebhookSecret).Gateway)
	return router, conn
}

func seedPendingCharge(t *testing.T, conn *gorm.DB, gatewayID string) (models.Charge, models.Merchant) {
	t.Helper()
	franchisee := models.Franchisee{Name: "Rede Centro"}
	if err := conn.Create(&franchisee).Error; err != nil {
		t.Fatalf("seed franchisee: %v", err)
	}
	merchant := models.Merchant{
		Name:         "Padaria do Largo",
		Status:       models.MerchantStatusPendingPayment,
		FranchiseeID: franchisee.ID,
	}
	if err := conn.Create(&merchant).Error; err != nil {
		t.Fatalf("seed merchant: %v", err)
	}
	charge := models.Charge{
		Kind:            models.ChargeKindActivation,
		Amount:          decimal.RequireFromString("250.00"),
		Status:          models.ChargeStatusPending,
		GatewayChargeID: &gatewayID,
		MerchantID:      merchant.ID,
		FranchiseeID:    franchisee.ID,
	}
	if err := conn.Create(&charge).Error; err != nil {
		t.Fatalf("seed charge: %v", err)
	}
	return charge, merchant
}

func postWebhook(router *gin.Engine, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v0/webhooks/gateway", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Gateway-Signature", signature)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	router, conn := newWebhookRouter(t)
	charge, _ := seedPendingCharge(t, conn, "pay_0001")

	body := []byte(`{"event":"PAYMENT_CONFIRMED","payment":{"id":"pay_0001","status":"confirmed"}}`)
	recorder := postWebhook(router, body, "deadbeef")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d want 401", recorder.Code)
	}

	var reloaded models.Charge
	if err := conn.First(&reloaded, charge.ID).Error; err != nil {
		t.Fatalf("reload charge: %v", err)
	}
	if reloaded.Status != models.ChargeStatusPending {
		t.Fatalf("unsigned webhook mutated charge: %s", reloaded.Status)
	}
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	router, _ := newWebhookRouter(t)

	body := []byte(`{"event":`)
	recorder := postWebhook(router, body, gateway.Sign(testWebhookSecret, body))
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d want 400", recorder.Code)
	}
}

func TestWebhookConfirmedPaymentActivatesMerchant(t *testing.T) {
	router, conn := newWebhookRouter(t)
	charge, merchant := seedPendingCharge(t, conn, "pay_0001")

	body := []byte(`{"event":"PAYMENT_CONFIRMED","payment":{"id":"pay_0001","status":"confirmed"}}`)
	recorder := postWebhook(router, body, gateway.Sign(testWebhookSecret, body))
	if recorder.Code != http.StatusOK {
		t.Fatalf("status: got %d want 200, body %s", recorder.Code, recorder.Body.String())
	}

	var reloadedCharge models.Charge
	if err := conn.First(&reloadedCharge, charge.ID).Error; err != nil {
		t.Fatalf("reload charge: %v", err)
	}
	if reloadedCharge.Status != models.ChargeStatusPaid {
		t.Fatalf("charge status: got %s want PAID", reloadedCharge.Status)
	}

	var reloadedMerchant models.Merchant
	if err := conn.First(&reloadedMerchant, merchant.ID).Error; err != nil {
		t.Fatalf("reload merchant: %v", err)
	}
	if reloadedMerchant.Status != models.MerchantStatusActive {
		t.Fatalf("merchant status: got %s want ACTIVE", reloadedMerchant.Status)
	}
}

func TestWebhookUnknownChargeStillAnswers200(t *testing.T) {
	router, _ := newWebhookRouter(t)

	body := []byte(`{"event":"PAYMENT_CONFIRMED","payment":{"id":"pay_unknown","status":"confirmed"}}`)
	recorder := postWebhook(router, body, gateway.Sign(testWebhookSecret, body))
	if recorder.Code != http.StatusOK {
		t.Fatalf("status: got %d want 200", recorder.Code)
	}
}

func TestWebhookRedelivery(t *testing.T) {
	router, conn := newWebhookRouter(t)
	charge, _ := seedPendingCharge(t, conn, "pay_0001")

	body := []byte(`{"event":"PAYMENT_CONFIRMED","payment":{"id":"pay_0001","status":"confirmed"}}`)
	signature := gateway.Sign(testWebhookSecret, body)
	for i := 0; i < 3; i++ {
		recorder := postWebhook(router, body, signature)
		if recorder.Code != http.StatusOK {
			t.Fatalf("delivery #%d: got %d want 200", i, recorder.Code)
		}
	}

	var auditCount int64
	if err := conn.Model(&models.AuditLog{}).
		Where("action = ? AND entity_id = ?", "charge.reconcile", charge.ID).
		Count(&auditCount).Error; err != nil {
		t.Fatalf("count audit rows: %v", err)
	}
	if auditCount != 1 {
		t.Fatalf("audit rows: got %d want 1", auditCount)
	}
}
