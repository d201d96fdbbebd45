package commission

import (
	"context"
	"errors"
	"testing"

	"github.com/cartaocomp/cartaocomp/internal/audit"
	"github.com/cartaocomp/cartaocomp/internal/db"
	"github.com/cartaocomp/cartaocomp/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func seedCommission(t *testing.T, conn *gorm.DB, txnStatus models.TransactionStatus) models.Commission {
	t.Helper()
	txn := models.Transaction{
		Kind:       models.TransactionKindRecharge,
		Amount:     decimal.RequireFromString("100.00"),
		Status:     txnStatus,
		VoucherID:  1,
		MerchantID: 1,
	}
	if err := conn.Create(&txn).Error; err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
	row := models.Commission{
		Amount:        decimal.RequireFromString("10.00"),
		Rate:          decimal.RequireFromString("10.00"),
		Status:        models.CommissionStatusPending,
		FranchiseeID:  1,
		MerchantID:    1,
		TransactionID: txn.ID,
	}
	if err := conn.Create(&row).Error; err != nil {
		t.Fatalf("seed commission: %v", err)
	}
	return row
}

func TestCompute(t *testing.T) {
	cases := []struct {
		amount string
		rate   string
		want   string
	}{
		{"100.00", "10.00", "10"},
		{"33.33", "10.00", "3.33"},
		{"0.01", "5.00", "0"},
		{"199.99", "7.50", "15"},
		{"100.00", "0", "0"},
	}
	for _, tc := range cases {
		got := Compute(decimal.RequireFromString(tc.amount), decimal.RequireFromString(tc.rate))
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("Compute(%s, %s): got %s want %s", tc.amount, tc.rate, got, tc.want)
		}
	}
}

func TestMarkPaidSetsPaidAt(t *testing.T) {
	conn := openTestDB(t)
	row := seedCommission(t, conn, models.TransactionStatusCompleted)
	engine := NewEngine(conn, audit.NewRecorder(nil))

	paid, errPay := engine.MarkPaid(context.Background(), row.ID, "franchisor:1")
	if errPay != nil {
		t.Fatalf("mark paid: %v", errPay)
	}
	if paid.Status != models.CommissionStatusPaid {
		t.Fatalf("status: got %s want PAID", paid.Status)
	}
	if paid.PaidAt == nil {
		t.Fatal("paid_at not stamped")
	}

	_, errAgain := engine.MarkPaid(context.Background(), row.ID, "franchisor:1")
	if !errors.Is(errAgain, ErrCommissionAlreadyPaid) {
		t.Fatalf("second pay: got %v want ErrCommissionAlreadyPaid", errAgain)
	}
}

func TestMarkPaidRefusedForCancelledTransaction(t *testing.T) {
	conn := openTestDB(t)
	row := seedCommission(t, conn, models.TransactionStatusCancelled)
	engine := NewEngine(conn, audit.NewRecorder(nil))

	_, errPay := engine.MarkPaid(context.Background(), row.ID, "franchisor:1")
	if !errors.Is(errPay, ErrTransactionCancelled) {
		t.Fatalf("pay for cancelled transaction: got %v want ErrTransactionCancelled", errPay)
	}

	var reloaded models.Commission
	if err := conn.First(&reloaded, row.ID).Error; err != nil {
		t.Fatalf("reload commission: %v", err)
	}
	if reloaded.Status != models.CommissionStatusPending {
		t.Fatalf("status after refused pay: got %s want PENDING", reloaded.Status)
	}
}

func TestCancelGuards(t *testing.T) {
	conn := openTestDB(t)
	row := seedCommission(t, conn, models.TransactionStatusCompleted)
	engine := NewEngine(conn, audit.NewRecorder(nil))

	cancelled, errCancel := engine.Cancel(context.Background(), row.ID, "franchisor:1")
	if errCancel != nil {
		t.Fatalf("cancel: %v", errCancel)
	}
	if cancelled.Status != models.CommissionStatusCancelled {
		t.Fatalf("status: got %s want CANCELLED", cancelled.Status)
	}

	_, errAgain := engine.Cancel(context.Background(), row.ID, "franchisor:1")
	if !errors.Is(errAgain, ErrCommissionCancelled) {
		t.Fatalf("second cancel: got %v want ErrCommissionCancelled", errAgain)
	}
	_, errPay := engine.MarkPaid(context.Background(), row.ID, "franchisor:1")
	if !errors.Is(errPay, ErrCommissionCancelled) {
		t.Fatalf("pay after cancel: got %v want ErrCommissionCancelled", errPay)
	}
}

func TestCancelUnknownCommission(t *testing.T) {
	conn := openTestDB(t)
	engine := NewEngine(conn, audit.NewRecorder(nil))

	_, errCancel := engine.Cancel(context.Background(), 999, "franchisor:1")
	if !errors.Is(errCancel, ErrCommissionNotFound) {
		t.Fatalf("cancel unknown: got %v want ErrCommissionNotFound", errCancel)
	}
}
