package handlers

import (
	"errors"
	"net/http"

	"github.com/cartaocomp/cartaocomp/internal/commission"
	"github.com/cartaocomp/cartaocomp/internal/models"
	"github.com/cartaocomp/cartaocomp/internal/voucher"
	"github.com/gin-gonic/gin"
)

// CommissionHandler handles franchisor-facing commission administration.
type CommissionHandler struct {
	commissions *commission.Engine
	vouchers    *voucher.Store
}

// NewCommissionHandler constructs a CommissionHandler.
func NewCommissionHandler(commissions *commission.Engine, vouchers *voucher.Store) *CommissionHandler {
	return &CommissionHandler{commissions: commissions, vouchers: vouchers}
}

func commissionResponse(row models.Commission) gin.H {
	return gin.H{
		"id":             row.ID,
		"amount":         row.Amount.StringFixed(2),
		"rate":           row.Rate.String(),
		"status":         row.Status,
		"franchisee_id":  row.FranchiseeID,
		"transaction_id": row.TransactionID,
		"paid_at":        row.PaidAt,
	}
}

// Cancel reverses a pending commission.
func (h *CommissionHandler) Cancel(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid commission id"})
		return
	}

	row, errCancel := h.commissions.Cancel(c.Request.Context(), id, actorLabel(getClaims(c)))
	if errCancel != nil {
		status, message := commissionErrorStatus(errCancel)
		c.JSON(status, gin.H{"error": message})
		return
	}
	c.JSON(http.StatusOK, gin.H{"commission": commissionResponse(*row)})
}

// Pay disburses a pending commission.
func (h *CommissionHandler) Pay(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid commission id"})
		return
	}

	row, errPay := h.commissions.MarkPaid(c.Request.Context(), id, actorLabel(getClaims(c)))
	if errPay != nil {
		status, message := commissionErrorStatus(errPay)
		c.JSON(status, gin.H{"error": message})
		return
	}
	c.JSON(http.StatusOK, gin.H{"commission": commissionResponse(*row)})
}

// CancelTransaction reverses a transaction together with its pending
// commission.
func (h *CommissionHandler) CancelTransaction(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction id"})
		return
	}

	txn, errCancel := h.vouchers.CancelTransaction(c.Request.Context(), id, actorLabel(getClaims(c)))
	if errCancel != nil {
		switch {
		case errors.Is(errCancel, voucher.ErrTransactionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
		case errors.Is(errCancel, voucher.ErrTransactionCancelled):
			c.JSON(http.StatusConflict, gin.H{"error": "transaction already cancelled"})
		case errors.Is(errCancel, commission.ErrCommissionAlreadyPaid):
			c.JSON(http.StatusConflict, gin.H{"error": "commission already paid"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "operation failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": toTransactionDTO(*txn)})
}

// commissionErrorStatus maps commission business errors to HTTP responses.
func commissionErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, commission.ErrCommissionNotFound):
		return http.StatusNotFound, "commission not found"
	case errors.Is(err, commission.ErrCommissionAlreadyPaid):
		return http.StatusConflict, "commission already paid"
	case errors.Is(err, commission.ErrCommissionCancelled):
		return http.StatusConflict, "commission cancelled"
	case errors.Is(err, commission.ErrTransactionCancelled):
		return http.StatusConflict, "originating transaction cancelled"
	default:
		return http.StatusInternalServerError, "operation failed"
	}
}
