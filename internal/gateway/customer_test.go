package gateway

import (
	"context"
	"testing"

	"github.com/cartaocomp/cartaocomp/internal/db"
	"github.com/cartaocomp/cartaocomp/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// countingClient records CreateCustomer calls.
type countingClient struct {
	calls int
	id    string
	err   error
}

func (c *countingClient) CreateCustomer(ctx context.Context, name, document string) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return c.id, nil
}

func (c *countingClient) CreateCharge(ctx context.Context, input CreateChargeInput) (*CreatedCharge, error) {
	return nil, ErrGatewayUnavailable
}

func (c *countingClient) GetCharge(ctx context.Context, gatewayChargeID string) (string, error) {
	return "", ErrGatewayUnavailable
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
	return conn
}

func TestEnsureCustomerBackfillsOnce(t *testing.T) {
	conn := openTestDB(t)
	franchisee := models.Franchisee{Name: "Rede Centro", Document: "12.345.678/0001-00"}
	if err := conn.Create(&franchisee).Error; err != nil {
		t.Fatalf("seed franchisee: %v", err)
	}
	client := &countingClient{id: "cus_0001"}

	first, errFirst := EnsureCustomer(context.Background(), conn, client, franchisee.ID)
	if errFirst != nil {
		t.Fatalf("first ensure: %v", errFirst)
	}
	if first != "cus_0001" {
		t.Fatalf("customer id: got %q", first)
	}

	second, errSecond := EnsureCustomer(context.Background(), conn, client, franchisee.ID)
	if errSecond != nil {
		t.Fatalf("second ensure: %v", errSecond)
	}
	if second != "cus_0001" {
		t.Fatalf("customer id: got %q", second)
	}
	if client.calls != 1 {
		t.Fatalf("gateway calls: got %d want 1", client.calls)
	}
}

func TestEnsureCustomerPropagatesGatewayError(t *testing.T) {
	conn := openTestDB(t)
	franchisee := models.Franchisee{Name: "Rede Centro"}
	if err := conn.Create(&franchisee).Error; err != nil {
		t.Fatalf("seed franchisee: %v", err)
	}
	client := &countingClient{err: ErrGatewayUnavailable}

	if _, errEnsure := EnsureCustomer(context.Background(), conn, client, franchisee.ID); errEnsure == nil {
		t.Fatal("expected error from failing gateway")
	}

	var reloaded models.Franchisee
	if err := conn.First(&reloaded, franchisee.ID).Error; err != nil {
		t.Fatalf("reload franchisee: %v", err)
	}
	if reloaded.GatewayCustomerID != nil {
		t.Fatal("customer id written despite gateway failure")
	}
}

func TestEnsureCustomerUnknownFranchisee(t *testing.T) {
	conn := openTestDB(t)
	client := &countingClient{id: "cus_0001"}

	if _, errEnsure := EnsureCustomer(context.Background(), conn, client, 999); errEnsure == nil {
		t.Fatal("expected error for unknown franchisee")
	}
	if client.calls != 0 {
		t.Fatalf("gateway called for unknown franchisee: %d calls", client.calls)
	}
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"event":"PAYMENT_CONFIRMED"}`)
	signature := Sign("topsecret", payload)

	if !VerifySignature("topsecret", payload, signature) {
		t.Fatal("valid signature rejected")
	}
	if VerifySignature("othersecret", payload, signature) {
		t.Fatal("signature accepted with wrong secret")
	}
	if VerifySignature("topsecret", []byte(`{"event":"tampered"}`), signature) {
		t.Fatal("signature accepted for tampered payload")
	}
	if VerifySignature("topsecret", payload, "") {
		t.Fatal("empty signature accepted")
	}
	if VerifySignature("", payload, signature) {
		t.Fatal("empty secret accepted")
	}
}
