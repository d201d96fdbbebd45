package reconcile

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cartaocomp/cartaocomp/internal/audit"
	"github.com/cartaocomp/cartaocomp/internal/billing"
	"github.com/cartaocomp/cartaocomp/internal/gateway"
	"github.com/cartaocomp/cartaocomp/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrChargeNotFound indicates no local charge matches a polled charge id.
var ErrChargeNotFound = errors.New("charge not found")

// MapGatewayStatus translates a gateway status string into the local
// charge status. This is the single mapping table for both the webhook
// and the polling path; ok is false for statuses that trigger no local
// transition.
func MapGatewayStatus(gatewayStatus string) (models.ChargeStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(gatewayStatus)) {
	case "received", "confirmed":
		return models.ChargeStatusPaid, true
	case "overdue":
		return models.ChargeStatusExpired, true
	case "deleted", "cancelled":
		return models.ChargeStatusCancelled, true
	default:
		return "", false
	}
}

// Engine aligns local charge state with the gateway's authoritative
// status. Webhook push and user-initiated polling both funnel into
// Reconcile, which is idempotent: applying the same observation N times
// has the effect of applying it once.
type Engine struct {
	db      *gorm.DB
	gateway gateway.Client
	audit   *audit.Recorder
}

// NewEngine constructs a reconciliation Engine.
func NewEngine(db *gorm.DB, gw gateway.Client, recorder *audit.Recorder) *Engine {
	return &Engine{db: db, gateway: gw, audit: recorder}
}

// Reconcile applies one gateway status observation to the local charge.
//
// Unknown gateway charge ids and observations against a terminal local
// status are dropped without error: webhook delivery is at-least-once and
// sometimes out-of-order, so a stale or foreign notification is normal
// operation, not a failure. When the observation settles the charge, the
// merchant activation cascades inside the same database transaction.
func (e *Engine) Reconcile(ctx context.Context, gatewayChargeID, gatewayStatus string) error {
	gatewayChargeID = strings.TrimSpace(gatewayChargeID)
	if gatewayChargeID == "" {
		return nil
	}

	target, ok := MapGatewayStatus(gatewayStatus)
	if !ok {
		log.WithFields(log.Fields{
			"gateway_charge_id": gatewayChargeID,
			"gateway_status":    gatewayStatus,
		}).Debug("reconcile: gateway status triggers no transition")
		return nil
	}

	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var charge models.Charge
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("gateway_charge_id = ?", gatewayChargeID).
			First(&charge).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				log.WithField("gateway_charge_id", gatewayChargeID).
					Warn("reconcile: no local charge for gateway notification, dropping")
				return nil
			}
			return errFind
		}

		// Both reconciliation paths may race; whoever lost observes a
		// terminal status here and must treat it as already done.
		if charge.Status.IsTerminal() {
			return nil
		}

		before := charge
		now := time.Now().UTC()
		updates := map[string]any{"status": target}
		if target == models.ChargeStatusPaid {
			updates["paid_at"] = now
		}
		if errUpdate := tx.Model(&charge).Updates(updates).Error; errUpdate != nil {
			return errUpdate
		}
		charge.Status = target
		if target == models.ChargeStatusPaid {
			charge.PaidAt = &now
			if errActivate := billing.ActivateMerchant(tx, charge.MerchantID, now); errActivate != nil {
				return errActivate
			}
		}

		return e.audit.Record(tx, audit.Entry{
			Actor:    "gateway",
			Action:   "charge.reconcile",
			Entity:   "charge",
			EntityID: charge.ID,
			Before:   before,
			After:    charge,
		})
	})
}

// PollAndReconcile fetches the gateway's current status for a local
// charge and applies it through the same Reconcile path. The gateway
// query runs before any database transaction is opened.
func (e *Engine) PollAndReconcile(ctx context.Context, chargeID uint64) (*models.Charge, error) {
	var charge models.Charge
	if errFind := e.db.WithContext(ctx).First(&charge, chargeID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrChargeNotFound
		}
		return nil, errFind
	}
	if charge.GatewayChargeID == nil || *charge.GatewayChargeID == "" {
		// Never reached the gateway; nothing to poll.
		return &charge, nil
	}
	if charge.Status.IsTerminal() {
		return &charge, nil
	}

	gatewayStatus, errGet := e.gateway.GetCharge(ctx, *charge.GatewayChargeID)
	if errGet != nil {
		return nil, errGet
	}
	if errReconcile := e.Reconcile(ctx, *charge.GatewayChargeID, gatewayStatus); errReconcile != nil {
		return nil, errReconcile
	}

	if errFind := e.db.WithContext(ctx).First(&charge, chargeID).Error; errFind != nil {
		return nil, errFind
	}
	return &charge, nil
}
