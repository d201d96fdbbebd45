package commission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cartaocomp/cartaocomp/internal/audit"
	"github.com/cartaocomp/cartaocomp/internal/models"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Commission business errors.
var (
	// ErrCommissionNotFound indicates no commission exists with the given id.
	ErrCommissionNotFound = errors.New("commission not found")
	// ErrCommissionAlreadyPaid indicates a PAID commission cannot change state.
	ErrCommissionAlreadyPaid = errors.New("commission already paid")
	// ErrCommissionCancelled indicates a CANCELLED commission cannot change state.
	ErrCommissionCancelled = errors.New("commission cancelled")
	// ErrTransactionCancelled indicates the originating transaction was reversed.
	ErrTransactionCancelled = errors.New("originating transaction cancelled")
)

// hundred is the percentage divisor.
var hundred = decimal.NewFromInt(100)

// Compute returns amount × rate / 100 rounded to 2 decimal places.
func Compute(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Div(hundred).Round(2)
}

// Accrue creates the PENDING commission for a recharge transaction.
//
// It must run inside the same database transaction that created txn; a
// failure here aborts the whole recharge. The rate is the franchisee's
// configured percentage at this moment and is stored as a snapshot.
func Accrue(tx *gorm.DB, txn *models.Transaction, franchiseeID uint64, rate decimal.Decimal) (*models.Commission, error) {
	if tx == nil {
		return nil, errors.New("commission: nil tx")
	}
	if txn == nil || txn.ID == 0 {
		return nil, errors.New("commission: transaction not persisted")
	}

	row := models.Commission{
		Amount:        Compute(txn.Amount, rate),
		Rate:          rate,
		Status:        models.CommissionStatusPending,
		FranchiseeID:  franchiseeID,
		MerchantID:    txn.MerchantID,
		TransactionID: txn.ID,
	}
	if errCreate := tx.Create(&row).Error; errCreate != nil {
		return nil, fmt.Errorf("commission: accrue: %w", errCreate)
	}
	return &row, nil
}

// Engine applies state changes to accrued commissions.
type Engine struct {
	db    *gorm.DB
	audit *audit.Recorder
}

// NewEngine constructs a commission Engine.
func NewEngine(db *gorm.DB, recorder *audit.Recorder) *Engine {
	return &Engine{db: db, audit: recorder}
}

// Cancel reverses a commission while it is still PENDING.
func (e *Engine) Cancel(ctx context.Context, id uint64, actor string) (*models.Commission, error) {
	var row models.Commission
	errTx := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&row, id).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrCommissionNotFound
			}
			return errFind
		}

		switch row.Status {
		case models.CommissionStatusPaid:
			return ErrCommissionAlreadyPaid
		case models.CommissionStatusCancelled:
			return ErrCommissionCancelled
		}

		before := row
		if errUpdate := tx.Model(&row).
			Update("status", models.CommissionStatusCancelled).Error; errUpdate != nil {
			return errUpdate
		}
		row.Status = models.CommissionStatusCancelled

		return e.audit.Record(tx, audit.Entry{
			Actor:    actor,
			Action:   "commission.cancel",
			Entity:   "commission",
			EntityID: row.ID,
			Before:   before,
			After:    row,
		})
	})
	if errTx != nil {
		return nil, errTx
	}
	return &row, nil
}

// MarkPaid disburses a PENDING commission.
//
// A commission whose originating transaction was cancelled must never be
// paid; that state is a data error and is logged loudly before being
// rejected.
func (e *Engine) MarkPaid(ctx context.Context, id uint64, actor string) (*models.Commission, error) {
	var row models.Commission
	errTx := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&row, id).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrCommissionNotFound
			}
			return errFind
		}

		switch row.Status {
		case models.CommissionStatusPaid:
			return ErrCommissionAlreadyPaid
		case models.CommissionStatusCancelled:
			return ErrCommissionCancelled
		}

		var txn models.Transaction
		if errFind := tx.First(&txn, row.TransactionID).Error; errFind != nil {
			return errFind
		}
		if txn.Status == models.TransactionStatusCancelled {
			log.WithFields(log.Fields{
				"commission_id":  row.ID,
				"transaction_id": txn.ID,
			}).Error("commission: pay attempted for cancelled transaction")
			return ErrTransactionCancelled
		}

		before := row
		now := time.Now().UTC()
		if errUpdate := tx.Model(&row).Updates(map[string]any{
			"status":  models.CommissionStatusPaid,
			"paid_at": now,
		}).Error; errUpdate != nil {
			return errUpdate
		}
		row.Status = models.CommissionStatusPaid
		row.PaidAt = &now

		return e.audit.Record(tx, audit.Entry{
			Actor:    actor,
			Action:   "commission.pay",
			Entity:   "commission",
			EntityID: row.ID,
			Before:   before,
			After:    row,
		})
	})
	if errTx != nil {
		return nil, errTx
	}
	return &row, nil
}
