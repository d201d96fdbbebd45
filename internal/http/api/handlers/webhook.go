package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/cartaocomp/cartaocomp/internal/gateway"
	"github.com/cartaocomp/cartaocomp/internal/reconcile"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// maxWebhookBody caps the webhook request body size.
const maxWebhookBody = 1 << 20

// WebhookHandler receives payment-gateway push notifications.
type WebhookHandler struct {
	reconciler *reconcile.Engine
	secret     string
}

// NewWebhookHandler constructs a WebhookHandler.
func NewWebhookHandler(reconciler *reconcile.Engine, secret string) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler, secret: secret}
}

// gatewayEvent is the gateway's webhook envelope.
type gatewayEvent struct {
	Event   string `json:"event"`
	Payment struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"payment"`
}

// Gateway handles one webhook delivery.
//
// Delivery is at-least-once, so any accepted notification answers 200
// even when it triggers no local transition; a non-2xx would only make
// the gateway redeliver the same event.
func (h *WebhookHandler) Gateway(c *gin.Context) {
	body, errRead := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if errRead != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	if !gateway.VerifySignature(h.secret, body, c.GetHeader("X-Gateway-Signature")) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var event gatewayEvent
	if errUnmarshal := json.Unmarshal(body, &event); errUnmarshal != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		return
	}

	if errReconcile := h.reconciler.Reconcile(c.Request.Context(), event.Payment.ID, event.Payment.Status); errReconcile != nil {
		log.WithError(errReconcile).WithFields(log.Fields{
			"event":             event.Event,
			"gateway_charge_id": event.Payment.ID,
		}).Error("webhook: reconcile failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reconcile failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
