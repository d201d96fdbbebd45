package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/cartaocomp/cartaocomp/internal/audit"
	"github.com/cartaocomp/cartaocomp/internal/db"
	"github.com/cartaocomp/cartaocomp/internal/gateway"
	"github.com/cartaocomp/cartaocomp/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// fakeGateway is an in-memory gateway.Client for ledger tests.
type fakeGateway struct {
	failing bool

	customerCalls int
	chargeCalls   int
	status        string
}

func (f *fakeGateway) CreateCustomer(ctx context.Context, name, document string) (string, error) {
	f.customerCalls++
	if f.failing {
		return "", gateway.ErrGatewayUnavailable
	}
	return "cus_0001", nil
}

func (f *fakeGateway) CreateCharge(ctx context.Context, input gateway.CreateChargeInput) (*gateway.CreatedCharge, error) {
	f.chargeCalls++
	if f.failing {
		return nil, gateway.ErrGatewayUnavailable
	}
	return &gateway.CreatedCharge{
		GatewayChargeID: "pay_0001",
		PaymentURL:      "https://gateway.test/i/pay_0001",
		QRPayload:       "00020126pay0001",
	}, nil
}

func (f *fakeGateway) GetCharge(ctx context.Context, gatewayChargeID string) (string, error) {
	if f.failing {
		return "", gateway.ErrGatewayUnavailable
	}
	return f.status, nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	// A second pooled connection would see its own empty in-memory
	// database.
	sqlDB, errDB := conn.DB()
	if errDB != nil {
		t.Fatalf("sql db: %v", errDB)
	}
	sqlDB.SetMaxOpenConns(1)
	return conn
}

func seedMerchant(t *testing.T, conn *gorm.DB, status models.MerchantStatus) models.Merchant {
	t.Helper()
	franchisee := models.Franchisee{Name: "Rede Centro"}
	if err := conn.Create(&franchisee).Error; err != nil {
		t.Fatalf("seed franchisee: %v", err)
	}
	merchant := models.Merchant{
		Name:         "Padaria do Largo",
		Status:       status,
		FranchiseeID: franchisee.ID,
	}
	if err := conn.Create(&merchant).Error; err != nil {
		t.Fatalf("seed merchant: %v", err)
	}
	return merchant
}

func TestCreateActivationChargeBillsDraftMerchant(t *testing.T) {
	conn := openTestDB(t)
	merchant := seedMerchant(t, conn, models.MerchantStatusDraft)
	gw := &fakeGateway{}
	ledger := NewLedger(conn, gw, audit.NewRecorder(nil))

	charge, errCreate := ledger.CreateActivationCharge(context.Background(), merchant.ID, "franchisor:1")
	if errCreate != nil {
		t.Fatalf("create charge: %v", errCreate)
	}

	if charge.Status != models.ChargeStatusPending {
		t.Fatalf("charge status: got %s want PENDING", charge.Status)
	}
	if !charge.Amount.Equal(activationChargeAmount) {
		t.Fatalf("charge amount: got %s want %s", charge.Amount, activationChargeAmount)
	}
	if charge.GatewayChargeID == nil || *charge.GatewayChargeID != "pay_0001" {
		t.Fatal("gateway charge id not attached")
	}
	if charge.PaymentURL == nil || *charge.PaymentURL == "" {
		t.Fatal("payment url not attached")
	}

	var reloaded models.Merchant
	if err := conn.First(&reloaded, merchant.ID).Error; err != nil {
		t.Fatalf("reload merchant: %v", err)
	}
	if reloaded.Status != models.MerchantStatusPendingPayment {
		t.Fatalf("merchant status: got %s want PENDING_PAYMENT", reloaded.Status)
	}

	var franchisee models.Franchisee
	if err := conn.First(&franchisee, merchant.FranchiseeID).Error; err != nil {
		t.Fatalf("reload franchisee: %v", err)
	}
	if franchisee.GatewayCustomerID == nil || *franchisee.GatewayCustomerID != "cus_0001" {
		t.Fatal("gateway customer id not backfilled")
	}
}

func TestCreateActivationChargeReusesPending(t *testing.T) {
	conn := openTestDB(t)
	merchant := seedMerchant(t, conn, models.MerchantStatusDraft)
	gw := &fakeGateway{}
	ledger := NewLedger(conn, gw, audit.NewRecorder(nil))

	first, errFirst := ledger.CreateActivationCharge(context.Background(), merchant.ID, "franchisor:1")
	if errFirst != nil {
		t.Fatalf("first create: %v", errFirst)
	}
	second, errSecond := ledger.CreateActivationCharge(context.Background(), merchant.ID, "franchisor:1")
	if errSecond != nil {
		t.Fatalf("second create: %v", errSecond)
	}
	if first.ID != second.ID {
		t.Fatalf("pending charge duplicated: %d vs %d", first.ID, second.ID)
	}

	var count int64
	if err := conn.Model(&models.Charge{}).Count(&count).Error; err != nil {
		t.Fatalf("count charges: %v", err)
	}
	if count != 1 {
		t.Fatalf("charge rows: got %d want 1", count)
	}
}

func TestCreateActivationChargeSurvivesGatewayOutage(t *testing.T) {
	conn := openTestDB(t)
	merchant := seedMerchant(t, conn, models.MerchantStatusDraft)
	gw := &fakeGateway{failing: true}
	ledger := NewLedger(conn, gw, audit.NewRecorder(nil))

	charge, errCreate := ledger.CreateActivationCharge(context.Background(), merchant.ID, "franchisor:1")
	if errCreate != nil {
		t.Fatalf("create during outage: %v", errCreate)
	}
	if charge.Status != models.ChargeStatusPending {
		t.Fatalf("charge status: got %s want PENDING", charge.Status)
	}
	if charge.GatewayChargeID != nil {
		t.Fatal("gateway charge id set despite outage")
	}

	// Outage over; reusing the charge retries the gateway call.
	gw.failing = false
	retried, errRetry := ledger.CreateActivationCharge(context.Background(), merchant.ID, "franchisor:1")
	if errRetry != nil {
		t.Fatalf("retry create: %v", errRetry)
	}
	if retried.ID != charge.ID {
		t.Fatalf("retry created new charge: %d vs %d", retried.ID, charge.ID)
	}
	if retried.GatewayChargeID == nil || *retried.GatewayChargeID != "pay_0001" {
		t.Fatal("gateway fields not attached on retry")
	}
}

func TestConcurrentActivationChargesCreateOne(t *testing.T) {
	conn := openTestDB(t)
	merchant := seedMerchant(t, conn, models.MerchantStatusDraft)
	ledger := NewLedger(conn, &fakeGateway{}, audit.NewRecorder(nil))

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, errCreate := ledger.CreateActivationCharge(context.Background(), merchant.ID, "franchisor:1")
			errs <- errCreate
		}()
	}
	for i := 0; i < 2; i++ {
		if errCreate := <-errs; errCreate != nil {
			t.Fatalf("concurrent create: %v", errCreate)
		}
	}

	var count int64
	if err := conn.Model(&models.Charge{}).
		Where("merchant_id = ? AND kind = ? AND status IN ?",
			merchant.ID, models.ChargeKindActivation,
			[]models.ChargeStatus{models.ChargeStatusPending, models.ChargeStatusPaid}).
		Count(&count).Error; err != nil {
		t.Fatalf("count live charges: %v", err)
	}
	if count != 1 {
		t.Fatalf("live activation charges: got %d want 1", count)
	}
}

func TestCreateActivationChargeRejectsActiveMerchant(t *testing.T) {
	conn := openTestDB(t)
	merchant := seedMerchant(t, conn, models.MerchantStatusActive)
	ledger := NewLedger(conn, &fakeGateway{}, audit.NewRecorder(nil))

	_, errCreate := ledger.CreateActivationCharge(context.Background(), merchant.ID, "franchisor:1")
	if !errors.Is(errCreate, ErrMerchantAlreadyActive) {
		t.Fatalf("got %v want ErrMerchantAlreadyActive", errCreate)
	}
}

func TestMarkPaidManuallyActivatesMerchant(t *testing.T) {
	conn := openTestDB(t)
	merchant := seedMerchant(t, conn, models.MerchantStatusDraft)
	ledger := NewLedger(conn, &fakeGateway{}, audit.NewRecorder(nil))

	charge, errCreate := ledger.CreateActivationCharge(context.Background(), merchant.ID, "franchisor:1")
	if errCreate != nil {
		t.Fatalf("create charge: %v", errCreate)
	}

	paid, errPay := ledger.MarkPaidManually(context.Background(), charge.ID, "franchisor:1")
	if errPay != nil {
		t.Fatalf("mark paid: %v", errPay)
	}
	if paid.Status != models.ChargeStatusPaid {
		t.Fatalf("charge status: got %s want PAID", paid.Status)
	}
	if paid.PaidAt == nil {
		t.Fatal("paid_at not stamped")
	}

	var reloaded models.Merchant
	if err := conn.First(&reloaded, merchant.ID).Error; err != nil {
		t.Fatalf("reload merchant: %v", err)
	}
	if reloaded.Status != models.MerchantStatusActive {
		t.Fatalf("merchant status: got %s want ACTIVE", reloaded.Status)
	}
	if reloaded.ActivatedAt == nil {
		t.Fatal("merchant activated_at not stamped")
	}

	_, errAgain := ledger.MarkPaidManually(context.Background(), charge.ID, "franchisor:1")
	if !errors.Is(errAgain, ErrChargeAlreadyPaid) {
		t.Fatalf("second mark paid: got %v want ErrChargeAlreadyPaid", errAgain)
	}
}

func TestCancelChargeGuards(t *testing.T) {
	conn := openTestDB(t)
	merchant := seedMerchant(t, conn, models.MerchantStatusDraft)
	ledger := NewLedger(conn, &fakeGateway{}, audit.NewRecorder(nil))

	charge, errCreate := ledger.CreateActivationCharge(context.Background(), merchant.ID, "franchisor:1")
	if errCreate != nil {
		t.Fatalf("create charge: %v", errCreate)
	}

	cancelled, errCancel := ledger.CancelCharge(context.Background(), charge.ID, "franchisor:1")
	if errCancel != nil {
		t.Fatalf("cancel charge: %v", errCancel)
	}
	if cancelled.Status != models.ChargeStatusCancelled {
		t.Fatalf("charge status: got %s want CANCELLED", cancelled.Status)
	}

	_, errAgain := ledger.CancelCharge(context.Background(), charge.ID, "franchisor:1")
	if !errors.Is(errAgain, ErrChargeCancelled) {
		t.Fatalf("second cancel: got %v want ErrChargeCancelled", errAgain)
	}
	_, errPay := ledger.MarkPaidManually(context.Background(), charge.ID, "franchisor:1")
	if !errors.Is(errPay, ErrChargeCancelled) {
		t.Fatalf("pay after cancel: got %v want ErrChargeCancelled", errPay)
	}
}

func TestDeactivateMerchant(t *testing.T) {
	conn := openTestDB(t)
	merchant := seedMerchant(t, conn, models.MerchantStatusActive)
	ledger := NewLedger(conn, &fakeGateway{}, audit.NewRecorder(nil))

	deactivated, errDeactivate := ledger.Deactivate(context.Background(), merchant.ID, "franchisor:1")
	if errDeactivate != nil {
		t.Fatalf("deactivate: %v", errDeactivate)
	}
	if deactivated.Status != models.MerchantStatusPendingPayment {
		t.Fatalf("merchant status: got %s want PENDING_PAYMENT", deactivated.Status)
	}

	_, errAgain := ledger.Deactivate(context.Background(), merchant.ID, "franchisor:1")
	if !errors.Is(errAgain, ErrMerchantNotActive) {
		t.Fatalf("second deactivate: got %v want ErrMerchantNotActive", errAgain)
	}
}
