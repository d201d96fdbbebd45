package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/cartaocomp/cartaocomp/internal/billing"
	"github.com/cartaocomp/cartaocomp/internal/gateway"
	"github.com/cartaocomp/cartaocomp/internal/models"
	"github.com/cartaocomp/cartaocomp/internal/reconcile"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// BillingHandler handles franchisor-facing charge administration.
type BillingHandler struct {
	db         *gorm.DB
	ledger     *billing.Ledger
	reconciler *reconcile.Engine
}

// NewBillingHandler constructs a BillingHandler.
func NewBillingHandler(db *gorm.DB, ledger *billing.Ledger, reconciler *reconcile.Engine) *BillingHandler {
	return &BillingHandler{db: db, ledger: ledger, reconciler: reconciler}
}

// chargeDTO defines the charge response payload.
type chargeDTO struct {
	ID              uint64     `json:"id"`
	Kind            string     `json:"kind"`
	Amount          string     `json:"amount"`
	Status          string     `json:"status"`
	DueDate         time.Time  `json:"due_date"`
	PaidAt          *time.Time `json:"paid_at"`
	MerchantID      uint64     `json:"merchant_id"`
	GatewayChargeID *string    `json:"gateway_charge_id"`
	PaymentURL      *string    `json:"payment_url"`
	QRPayload       *string    `json:"qr_payload"`
}

func toChargeDTO(c models.Charge) chargeDTO {
	return chargeDTO{
		ID:              c.ID,
		Kind:            string(c.Kind),
		Amount:          c.Amount.StringFixed(2),
		Status:          string(c.Status),
		DueDate:         c.DueDate,
		PaidAt:          c.PaidAt,
		MerchantID:      c.MerchantID,
		GatewayChargeID: c.GatewayChargeID,
		PaymentURL:      c.PaymentURL,
		QRPayload:       c.QRPayload,
	}
}

// CreateActivationCharge bills a merchant for activation.
func (h *BillingHandler) CreateActivationCharge(c *gin.Context) {
	merchantID, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid merchant id"})
		return
	}

	charge, errCreate := h.ledger.CreateActivationCharge(c.Request.Context(), merchantID, actorLabel(getClaims(c)))
	if errCreate != nil {
		status, message := billingErrorStatus(errCreate)
		c.JSON(status, gin.H{"error": message})
		return
	}
	c.JSON(http.StatusOK, gin.H{"charge": toChargeDTO(*charge)})
}

// DeactivateMerchant returns an active merchant to pending payment.
func (h *BillingHandler) DeactivateMerchant(c *gin.Context) {
	merchantID, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid merchant id"})
		return
	}

	merchant, errDeactivate := h.ledger.Deactivate(c.Request.Context(), merchantID, actorLabel(getClaims(c)))
	if errDeactivate != nil {
		status, message := billingErrorStatus(errDeactivate)
		c.JSON(status, gin.H{"error": message})
		return
	}
	c.JSON(http.StatusOK, gin.H{"merchant": gin.H{
		"id":     merchant.ID,
		"name":   merchant.Name,
		"status": merchant.Status,
	}})
}

// MarkPaid settles a charge by franchisor override.
func (h *BillingHandler) MarkPaid(c *gin.Context) {
	chargeID, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid charge id"})
		return
	}

	charge, errMark := h.ledger.MarkPaidManually(c.Request.Context(), chargeID, actorLabel(getClaims(c)))
	if errMark != nil {
		status, message := billingErrorStatus(errMark)
		c.JSON(status, gin.H{"error": message})
		return
	}
	c.JSON(http.StatusOK, gin.H{"charge": toChargeDTO(*charge)})
}

// Cancel cancels a pending charge.
func (h *BillingHandler) Cancel(c *gin.Context) {
	chargeID, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid charge id"})
		return
	}

	charge, errCancel := h.ledger.CancelCharge(c.Request.Context(), chargeID, actorLabel(getClaims(c)))
	if errCancel != nil {
		status, message := billingErrorStatus(errCancel)
		c.JSON(status, gin.H{"error": message})
		return
	}
	c.JSON(http.StatusOK, gin.H{"charge": toChargeDTO(*charge)})
}

// Poll queries the gateway for a charge's current status and applies it.
func (h *BillingHandler) Poll(c *gin.Context) {
	chargeID, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid charge id"})
		return
	}

	charge, errPoll := h.reconciler.PollAndReconcile(c.Request.Context(), chargeID)
	if errPoll != nil {
		switch {
		case errors.Is(errPoll, reconcile.ErrChargeNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "charge not found"})
		case errors.Is(errPoll, gateway.ErrGatewayUnavailable):
			c.JSON(http.StatusBadGateway, gin.H{"error": "gateway query failed"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "operation failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"charge": toChargeDTO(*charge)})
}

// billingErrorStatus maps billing business errors to HTTP responses.
func billingErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, billing.ErrMerchantNotFound):
		return http.StatusNotFound, "merchant not found"
	case errors.Is(err, billing.ErrMerchantAlreadyActive):
		return http.StatusConflict, "merchant already active"
	case errors.Is(err, billing.ErrMerchantNotActive):
		return http.StatusConflict, "merchant not active"
	case errors.Is(err, billing.ErrChargeNotFound):
		return http.StatusNotFound, "charge not found"
	case errors.Is(err, billing.ErrChargeAlreadyPaid):
		return http.StatusConflict, "charge already paid"
	case errors.Is(err, billing.ErrChargeCancelled):
		return http.StatusConflict, "charge cancelled"
	case errors.Is(err, billing.ErrChargeExpired):
		return http.StatusConflict, "charge expired"
	default:
		return http.StatusInternalServerError, "operation failed"
	}
}
