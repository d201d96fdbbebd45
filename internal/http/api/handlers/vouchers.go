package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/cartaocomp/cartaocomp/internal/db"
	"github.com/cartaocomp/cartaocomp/internal/models"
	"github.com/cartaocomp/cartaocomp/internal/voucher"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// VoucherHandler handles merchant-facing voucher operations.
type VoucherHandler struct {
	db       *gorm.DB
	vouchers *voucher.Store
}

// NewVoucherHandler constructs a VoucherHandler.
func NewVoucherHandler(db *gorm.DB, vouchers *voucher.Store) *VoucherHandler {
	return &VoucherHandler{db: db, vouchers: vouchers}
}

// voucherDTO defines the voucher response payload.
type voucherDTO struct {
	ID          uint64     `json:"id"`
	Code        string     `json:"code"`
	ScanCode    string     `json:"scan_code"`
	Balance     string     `json:"balance"`
	Status      string     `json:"status"`
	ActivatedAt *time.Time `json:"activated_at"`
	RedeemedAt  *time.Time `json:"redeemed_at"`
}

// transactionDTO defines the transaction response payload.
type transactionDTO struct {
	ID            uint64    `json:"id"`
	Kind          string    `json:"kind"`
	Amount        string    `json:"amount"`
	Status        string    `json:"status"`
	VoucherID     uint64    `json:"voucher_id"`
	CustomerName  string    `json:"customer_name,omitempty"`
	CustomerPhone string    `json:"customer_phone,omitempty"`
	ReceiptCode   string    `json:"receipt_code,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func toVoucherDTO(v models.Voucher) voucherDTO {
	return voucherDTO{
		ID:          v.ID,
		Code:        v.Code,
		ScanCode:    v.ScanCode,
		Balance:     v.Balance.StringFixed(2),
		Status:      string(v.Status),
		ActivatedAt: v.ActivatedAt,
		RedeemedAt:  v.RedeemedAt,
	}
}

func toTransactionDTO(t models.Transaction) transactionDTO {
	return transactionDTO{
		ID:            t.ID,
		Kind:          string(t.Kind),
		Amount:        t.Amount.StringFixed(2),
		Status:        string(t.Status),
		VoucherID:     t.VoucherID,
		CustomerName:  t.CustomerName,
		CustomerPhone: t.CustomerPhone,
		ReceiptCode:   t.ReceiptCode,
		CreatedAt:     t.CreatedAt,
	}
}

// rechargeRequest defines the recharge request body.
type rechargeRequest struct {
	Amount string `json:"amount"`
}

// Recharge adds value to a voucher on behalf of the merchant.
func (h *VoucherHandler) Recharge(c *gin.Context) {
	claims := getClaims(c)
	if claims == nil || claims.MerchantID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	voucherID, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid voucher id"})
		return
	}

	var body rechargeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	amount, errParse := decimal.NewFromString(body.Amount)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}

	result, errRecharge := h.vouchers.Recharge(c.Request.Context(), voucherID, claims.MerchantID, amount, actorLabel(claims))
	if errRecharge != nil {
		status, message := voucherErrorStatus(errRecharge)
		c.JSON(status, gin.H{"error": message})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"voucher":     toVoucherDTO(result.Voucher),
		"transaction": toTransactionDTO(result.Transaction),
		"commission": gin.H{
			"id":     result.Commission.ID,
			"amount": result.Commission.Amount.StringFixed(2),
			"rate":   result.Commission.Rate.String(),
			"status": result.Commission.Status,
		},
	})
}

// redeemRequest defines the redeem request body.
type redeemRequest struct {
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
}

// Redeem consumes the voucher's full balance for an end customer.
func (h *VoucherHandler) Redeem(c *gin.Context) {
	claims := getClaims(c)
	if claims == nil || claims.MerchantID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	voucherID, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid voucher id"})
		return
	}

	var body redeemRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.CustomerName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "customer_name is required"})
		return
	}

	result, errRedeem := h.vouchers.Redeem(c.Request.Context(), voucherID, claims.MerchantID, body.CustomerName, body.CustomerPhone, actorLabel(claims))
	if errRedeem != nil {
		status, message := voucherErrorStatus(errRedeem)
		c.JSON(status, gin.H{"error": message})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"voucher":     toVoucherDTO(result.Voucher),
		"transaction": toTransactionDTO(result.Transaction),
	})
}

// Get returns one voucher.
func (h *VoucherHandler) Get(c *gin.Context) {
	voucherID, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid voucher id"})
		return
	}

	var v models.Voucher
	if errFind := h.db.WithContext(c.Request.Context()).First(&v, voucherID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "voucher not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query voucher failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"voucher": toVoucherDTO(v)})
}

// ListTransactions returns the merchant's transactions, newest first.
// An optional ?customer= filter matches redemption customer names.
func (h *VoucherHandler) ListTransactions(c *gin.Context) {
	claims := getClaims(c)
	if claims == nil || claims.MerchantID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	query := h.db.WithContext(c.Request.Context()).
		Where("merchant_id = ?", claims.MerchantID)
	if customer := strings.TrimSpace(c.Query("customer")); customer != "" {
		query = query.Where(
			db.CaseInsensitiveLikeExpr(h.db, "customer_name"),
			db.NormalizeLikePattern(h.db, "%"+customer+"%"),
		)
	}

	var rows []models.Transaction
	if errFind := query.
		Order("created_at DESC, id DESC").
		Limit(200).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query transactions failed"})
		return
	}

	resp := make([]transactionDTO, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, toTransactionDTO(row))
	}
	c.JSON(http.StatusOK, gin.H{"transactions": resp})
}

// issueRequest defines the voucher issuance request body.
type issueRequest struct {
	Count int `json:"count"`
}

// Issue creates a batch of blank vouchers for a franchisee.
func (h *VoucherHandler) Issue(c *gin.Context) {
	franchiseeID, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid franchisee id"})
		return
	}

	var body issueRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	issued, errIssue := h.vouchers.Issue(c.Request.Context(), franchiseeID, body.Count, actorLabel(getClaims(c)))
	if errIssue != nil {
		switch {
		case errors.Is(errIssue, voucher.ErrFranchiseeNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "franchisee not found"})
		case errors.Is(errIssue, voucher.ErrInvalidBatchSize):
			c.JSON(http.StatusBadRequest, gin.H{"error": "count must be between 1 and 1000"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "operation failed"})
		}
		return
	}

	resp := make([]voucherDTO, 0, len(issued))
	for _, v := range issued {
		resp = append(resp, toVoucherDTO(v))
	}
	c.JSON(http.StatusOK, gin.H{"vouchers": resp})
}

// voucherErrorStatus maps voucher business errors to HTTP responses.
func voucherErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, voucher.ErrVoucherNotFound):
		return http.StatusNotFound, "voucher not found"
	case errors.Is(err, voucher.ErrVoucherExpired):
		return http.StatusConflict, "voucher expired"
	case errors.Is(err, voucher.ErrVoucherAlreadyRedeemed):
		return http.StatusConflict, "voucher already redeemed"
	case errors.Is(err, voucher.ErrVoucherNotActive):
		return http.StatusConflict, "voucher not active"
	case errors.Is(err, voucher.ErrVoucherEmpty):
		return http.StatusConflict, "voucher has no balance"
	case errors.Is(err, voucher.ErrInvalidAmount):
		return http.StatusBadRequest, "amount must be positive"
	default:
		return http.StatusInternalServerError, "operation failed"
	}
}
