package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cartaocomp/cartaocomp/internal/audit"
	"github.com/cartaocomp/cartaocomp/internal/gateway"
	"github.com/cartaocomp/cartaocomp/internal/models"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Billing business errors.
var (
	// ErrMerchantNotFound indicates no merchant exists with the given id.
	ErrMerchantNotFound = errors.New("merchant not found")
	// ErrMerchantAlreadyActive indicates the merchant needs no activation charge.
	ErrMerchantAlreadyActive = errors.New("merchant already active")
	// ErrMerchantNotActive indicates a deactivation target is not active.
	ErrMerchantNotActive = errors.New("merchant not active")
	// ErrChargeNotFound indicates no charge exists with the given id.
	ErrChargeNotFound = errors.New("charge not found")
	// ErrChargeAlreadyPaid indicates a PAID charge cannot change state.
	ErrChargeAlreadyPaid = errors.New("charge already paid")
	// ErrChargeCancelled indicates a CANCELLED charge cannot change state.
	ErrChargeCancelled = errors.New("charge cancelled")
	// ErrChargeExpired indicates an EXPIRED charge cannot change state.
	ErrChargeExpired = errors.New("charge expired")
)

// Activation billing constants.
var (
	// activationChargeAmount is the fixed merchant-activation price.
	activationChargeAmount = decimal.RequireFromString("250.00")
)

// activationDueDays is the payment window for a new activation charge.
const activationDueDays = 30

// Ledger tracks merchant-activation charges against the payment gateway.
type Ledger struct {
	db      *gorm.DB
	gateway gateway.Client
	audit   *audit.Recorder
}

// NewLedger constructs a billing Ledger.
func NewLedger(db *gorm.DB, gw gateway.Client, recorder *audit.Recorder) *Ledger {
	return &Ledger{db: db, gateway: gw, audit: recorder}
}

// CreateActivationCharge bills a merchant for activation.
//
// A still-PENDING charge for the merchant is reused instead of duplicated;
// its gateway call is retried when the gateway fields are missing. The
// local charge is persisted before the gateway call so a gateway outage
// degrades to "billed locally, payable later" instead of failing the
// operation.
func (l *Ledger) CreateActivationCharge(ctx context.Context, merchantID uint64, actor string) (*models.Charge, error) {
	var merchant models.Merchant
	var charge models.Charge
	errTx := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The merchant row lock serializes concurrent activation billing;
		// the live-charge check below is only sound while holding it.
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&merchant, merchantID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrMerchantNotFound
			}
			return errFind
		}
		if merchant.Status == models.MerchantStatusActive {
			return ErrMerchantAlreadyActive
		}

		var existing models.Charge
		errExisting := tx.
			Where("merchant_id = ? AND kind = ? AND status IN ?",
				merchantID, models.ChargeKindActivation,
				[]models.ChargeStatus{models.ChargeStatusPending, models.ChargeStatusPaid}).
			Order("id DESC").
			First(&existing).Error
		switch {
		case errExisting == nil:
			if existing.Status == models.ChargeStatusPaid {
				return ErrChargeAlreadyPaid
			}
			// Reuse the live PENDING charge.
			charge = existing
			return nil
		case !errors.Is(errExisting, gorm.ErrRecordNotFound):
			return errExisting
		}

		now := time.Now().UTC()
		charge = models.Charge{
			Kind:         models.ChargeKindActivation,
			Amount:       activationChargeAmount,
			Status:       models.ChargeStatusPending,
			DueDate:      now.AddDate(0, 0, activationDueDays),
			MerchantID:   merchant.ID,
			FranchiseeID: merchant.FranchiseeID,
		}
		if errCreate := tx.Create(&charge).Error; errCreate != nil {
			return errCreate
		}

		if merchant.Status == models.MerchantStatusDraft {
			if errUpdate := tx.Model(&models.Merchant{}).
				Where("id = ?", merchant.ID).
				Update("status", models.MerchantStatusPendingPayment).Error; errUpdate != nil {
				return errUpdate
			}
		}

		return l.audit.Record(tx, audit.Entry{
			Actor:    actor,
			Action:   "charge.create",
			Entity:   "charge",
			EntityID: charge.ID,
			After:    charge,
		})
	})
	if errTx != nil {
		return nil, errTx
	}

	// Retry the gateway call for a reused charge that never completed it.
	if charge.GatewayChargeID == nil {
		l.attachGatewayCharge(ctx, &charge, merchant)
	}
	return &charge, nil
}

// attachGatewayCharge performs the gateway call for a PENDING charge and
// persists the returned artifacts. Runs outside any open database
// transaction so no row locks are held across network latency. Gateway
// failure is logged and leaves the charge payable later via retry.
func (l *Ledger) attachGatewayCharge(ctx context.Context, charge *models.Charge, merchant models.Merchant) {
	customerRef, errCustomer := gateway.EnsureCustomer(ctx, l.db, l.gateway, merchant.FranchiseeID)
	if errCustomer != nil {
		log.WithError(errCustomer).WithField("charge_id", charge.ID).
			Warn("billing: gateway customer unavailable, charge left without gateway fields")
		return
	}

	created, errCreate := l.gateway.CreateCharge(ctx, gateway.CreateChargeInput{
		CustomerRef: customerRef,
		Amount:      charge.Amount,
		DueDate:     charge.DueDate,
		Description: fmt.Sprintf("Ativação do estabelecimento %s", merchant.Name),
	})
	if errCreate != nil {
		log.WithError(errCreate).WithField("charge_id", charge.ID).
			Warn("billing: gateway charge creation failed, charge left without gateway fields")
		return
	}

	res := l.db.WithContext(ctx).
		Model(&models.Charge{}).
		Where("id = ? AND status = ?", charge.ID, models.ChargeStatusPending).
		Updates(map[string]any{
			"gateway_charge_id": created.GatewayChargeID,
			"payment_url":       created.PaymentURL,
			"qr_payload":        created.QRPayload,
		})
	if res.Error != nil {
		log.WithError(res.Error).WithField("charge_id", charge.ID).
			Error("billing: failed to persist gateway charge fields")
		return
	}
	if res.RowsAffected > 0 {
		charge.GatewayChargeID = &created.GatewayChargeID
		charge.PaymentURL = &created.PaymentURL
		charge.QRPayload = &created.QRPayload
	}
}

// MarkPaidManually settles a PENDING charge by franchisor override and
// cascades the merchant activation in the same atomic unit.
func (l *Ledger) MarkPaidManually(ctx context.Context, chargeID uint64, actor string) (*models.Charge, error) {
	var charge models.Charge
	errTx := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&charge, chargeID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrChargeNotFound
			}
			return errFind
		}

		switch charge.Status {
		case models.ChargeStatusPaid:
			return ErrChargeAlreadyPaid
		case models.ChargeStatusCancelled:
			return ErrChargeCancelled
		case models.ChargeStatusExpired:
			return ErrChargeExpired
		}

		before := charge
		now := time.Now().UTC()
		if errUpdate := tx.Model(&charge).Updates(map[string]any{
			"status":  models.ChargeStatusPaid,
			"paid_at": now,
		}).Error; errUpdate != nil {
			return errUpdate
		}
		charge.Status = models.ChargeStatusPaid
		charge.PaidAt = &now

		if errActivate := ActivateMerchant(tx, charge.MerchantID, now); errActivate != nil {
			return errActivate
		}

		return l.audit.Record(tx, audit.Entry{
			Actor:    actor,
			Action:   "charge.mark_paid_manually",
			Entity:   "charge",
			EntityID: charge.ID,
			Before:   before,
			After:    charge,
		})
	})
	if errTx != nil {
		return nil, errTx
	}
	return &charge, nil
}

// CancelCharge cancels a PENDING charge administratively.
func (l *Ledger) CancelCharge(ctx context.Context, chargeID uint64, actor string) (*models.Charge, error) {
	var charge models.Charge
	errTx := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&charge, chargeID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrChargeNotFound
			}
			return errFind
		}

		switch charge.Status {
		case models.ChargeStatusPaid:
			return ErrChargeAlreadyPaid
		case models.ChargeStatusCancelled:
			return ErrChargeCancelled
		case models.ChargeStatusExpired:
			return ErrChargeExpired
		}

		before := charge
		if errUpdate := tx.Model(&charge).
			Update("status", models.ChargeStatusCancelled).Error; errUpdate != nil {
			return errUpdate
		}
		charge.Status = models.ChargeStatusCancelled

		return l.audit.Record(tx, audit.Entry{
			Actor:    actor,
			Action:   "charge.cancel",
			Entity:   "charge",
			EntityID: charge.ID,
			Before:   before,
			After:    charge,
		})
	})
	if errTx != nil {
		return nil, errTx
	}
	return &charge, nil
}

// ActivateMerchant sets a merchant ACTIVE as a cascade of a charge
// reaching PAID. Idempotent: an already-ACTIVE merchant is a no-op.
// Must run inside the same transaction as the charge update.
func ActivateMerchant(tx *gorm.DB, merchantID uint64, now time.Time) error {
	var merchant models.Merchant
	if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&merchant, merchantID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return ErrMerchantNotFound
		}
		return errFind
	}
	if merchant.Status == models.MerchantStatusActive {
		return nil
	}
	return tx.Model(&merchant).Updates(map[string]any{
		"status":       models.MerchantStatusActive,
		"activated_at": now,
	}).Error
}

// Deactivate returns an ACTIVE merchant to PENDING_PAYMENT. This is an
// explicit administrative action, never a billing side effect.
func (l *Ledger) Deactivate(ctx context.Context, merchantID uint64, actor string) (*models.Merchant, error) {
	var merchant models.Merchant
	errTx := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&merchant, merchantID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrMerchantNotFound
			}
			return errFind
		}
		if merchant.Status != models.MerchantStatusActive {
			return ErrMerchantNotActive
		}

		before := merchant
		if errUpdate := tx.Model(&merchant).
			Update("status", models.MerchantStatusPendingPayment).Error; errUpdate != nil {
			return errUpdate
		}
		merchant.Status = models.MerchantStatusPendingPayment

		return l.audit.Record(tx, audit.Entry{
			Actor:    actor,
			Action:   "merchant.deactivate",
			Entity:   "merchant",
			EntityID: merchant.ID,
			Before:   before,
			After:    merchant,
		})
	})
	if errTx != nil {
		return nil, errTx
	}
	return &merchant, nil
}
