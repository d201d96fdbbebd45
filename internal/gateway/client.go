package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cartaocomp/cartaocomp/internal/config"
	"github.com/shopspring/decimal"
)

// ErrGatewayUnavailable indicates the gateway rejected or never answered a call.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// CreateChargeInput carries the fields of a gateway charge request.
type CreateChargeInput struct {
	CustomerRef string          `json:"customer"`
	Amount      decimal.Decimal `json:"value"`
	DueDate     time.Time       `json:"due_date"`
	Description string          `json:"description"`
}

// CreatedCharge is the gateway's answer to a charge creation.
type CreatedCharge struct {
	GatewayChargeID string `json:"id"`
	PaymentURL      string `json:"invoice_url"`
	QRPayload       string `json:"pix_payload"`
}

// Client is the payment gateway boundary.
//
// Implementations must not be called while a database transaction is open;
// callers persist first, call the gateway, then persist the result.
type Client interface {
	CreateCustomer(ctx context.Context, name, document string) (string, error)
	CreateCharge(ctx context.Context, input CreateChargeInput) (*CreatedCharge, error)
	GetCharge(ctx context.Context, gatewayChargeID string) (string, error)
}

// HTTPClient talks JSON over HTTP to the payment gateway.
//
// All credentials live in the injected config; there is no package-level
// key state.
type HTTPClient struct {
	cfg  config.GatewayConfig
	http *http.Client
}

// NewHTTPClient constructs an HTTPClient from config.
func NewHTTPClient(cfg config.GatewayConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
	}
}

// CreateCustomer registers a customer and returns its gateway identifier.
func (c *HTTPClient) CreateCustomer(ctx context.Context, name, document string) (string, error) {
	payload := map[string]string{"name": name, "document": document}

	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v3/customers", payload, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.ID) == "" {
		return "", fmt.Errorf("gateway: empty customer id: %w", ErrGatewayUnavailable)
	}
	return out.ID, nil
}

// CreateCharge creates a charge and returns its payment artifacts.
func (c *HTTPClient) CreateCharge(ctx context.Context, input CreateChargeInput) (*CreatedCharge, error) {
	body := map[string]any{
		"customer":    input.CustomerRef,
		"value":       input.Amount.StringFixed(2),
		"dueDate":     input.DueDate.UTC().Format("2006-01-02"),
		"description": input.Description,
	}

	var out CreatedCharge
	if err := c.do(ctx, http.MethodPost, "/v3/payments", body, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.GatewayChargeID) == "" {
		return nil, fmt.Errorf("gateway: empty charge id: %w", ErrGatewayUnavailable)
	}
	return &out, nil
}

// GetCharge returns the gateway's current status string for a charge.
func (c *HTTPClient) GetCharge(ctx context.Context, gatewayChargeID string) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/v3/payments/"+gatewayChargeID, nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

// do performs one JSON request against the gateway.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, errMarshal := json.Marshal(body)
		if errMarshal != nil {
			return fmt.Errorf("gateway: marshal request: %w", errMarshal)
		}
		reader = bytes.NewReader(data)
	}

	req, errReq := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.cfg.BaseURL, "/")+path, reader)
	if errReq != nil {
		return fmt.Errorf("gateway: build request: %w", errReq)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("access_token", c.cfg.APIKey)

	resp, errDo := c.http.Do(req)
	if errDo != nil {
		return fmt.Errorf("gateway: %s %s: %w", method, path, ErrGatewayUnavailable)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("gateway: %s %s: status %d: %w", method, path, resp.StatusCode, ErrGatewayUnavailable)
	}
	if out == nil {
		return nil
	}
	if errDecode := json.NewDecoder(resp.Body).Decode(out); errDecode != nil {
		return fmt.Errorf("gateway: decode response: %w", errDecode)
	}
	return nil
}

// VerifySignature checks the HMAC-SHA256 signature of a webhook payload.
func VerifySignature(secret string, payload []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

// Sign computes the webhook signature for a payload. Exposed for tests
// and for replaying stored events.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
