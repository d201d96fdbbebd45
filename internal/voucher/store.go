package voucher

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cartaocomp/cartaocomp/internal/audit"
	"github.com/cartaocomp/cartaocomp/internal/commission"
	"github.com/cartaocomp/cartaocomp/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Voucher business errors.
var (
	// ErrVoucherNotFound indicates no voucher exists with the given id.
	ErrVoucherNotFound = errors.New("voucher not found")
	// ErrVoucherExpired indicates the voucher is past its validity.
	ErrVoucherExpired = errors.New("voucher expired")
	// ErrVoucherAlreadyRedeemed indicates the voucher was fully consumed.
	ErrVoucherAlreadyRedeemed = errors.New("voucher already redeemed")
	// ErrVoucherNotActive indicates the voucher holds no redeemable state.
	ErrVoucherNotActive = errors.New("voucher not active")
	// ErrVoucherEmpty indicates the voucher has no balance to redeem.
	ErrVoucherEmpty = errors.New("voucher has no balance")
	// ErrInvalidAmount indicates a non-positive recharge amount.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrTransactionNotFound indicates no transaction exists with the given id.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrTransactionCancelled indicates the transaction was already reversed.
	ErrTransactionCancelled = errors.New("transaction already cancelled")
)

// Store owns voucher balance and status mutations.
//
// Every mutation runs inside one database transaction holding a FOR UPDATE
// lock on the voucher row, which linearizes concurrent recharge/redeem
// calls against the same voucher across process instances.
type Store struct {
	db    *gorm.DB
	audit *audit.Recorder
}

// NewStore constructs a voucher Store.
func NewStore(db *gorm.DB, recorder *audit.Recorder) *Store {
	return &Store{db: db, audit: recorder}
}

// RechargeResult carries the records created by a recharge.
type RechargeResult struct {
	Voucher     models.Voucher
	Transaction models.Transaction
	Commission  models.Commission
}

// RedeemResult carries the records created by a redemption.
type RedeemResult struct {
	Voucher     models.Voucher
	Transaction models.Transaction
}

// Recharge adds value to a voucher.
//
// In one atomic unit: the balance is increased, an AVAILABLE voucher
// becomes ACTIVE (first recharge also stamps the activation time), a
// RECHARGE transaction is appended and the franchisee commission is
// accrued with a snapshot of its current rate. Any failure rolls back the
// whole unit, balance change included.
func (s *Store) Recharge(ctx context.Context, voucherID, merchantID uint64, amount decimal.Decimal, actor string) (*RechargeResult, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var result RechargeResult
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var v models.Voucher
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&v, voucherID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrVoucherNotFound
			}
			return errFind
		}

		switch v.Status {
		case models.VoucherStatusRedeemed:
			return ErrVoucherAlreadyRedeemed
		case models.VoucherStatusExpired:
			return ErrVoucherExpired
		}

		before := v
		now := time.Now().UTC()

		updates := map[string]any{
			"balance": v.Balance.Add(amount),
			"status":  models.VoucherStatusActive,
		}
		if v.ActivatedAt == nil {
			updates["activated_at"] = now
		}
		if v.MerchantID == nil {
			updates["merchant_id"] = merchantID
		}
		if errUpdate := tx.Model(&v).Updates(updates).Error; errUpdate != nil {
			return errUpdate
		}
		v.Balance = v.Balance.Add(amount)
		v.Status = models.VoucherStatusActive
		if v.ActivatedAt == nil {
			v.ActivatedAt = &now
		}
		if v.MerchantID == nil {
			v.MerchantID = &merchantID
		}

		txn := models.Transaction{
			Kind:       models.TransactionKindRecharge,
			Amount:     amount,
			Status:     models.TransactionStatusCompleted,
			VoucherID:  v.ID,
			MerchantID: merchantID,
			CreatedAt:  now,
		}
		if errCreate := tx.Create(&txn).Error; errCreate != nil {
			return errCreate
		}

		var franchisee models.Franchisee
		if errFind := tx.First(&franchisee, v.FranchiseeID).Error; errFind != nil {
			return errFind
		}
		accrued, errAccrue := commission.Accrue(tx, &txn, franchisee.ID, franchisee.CommissionRate)
		if errAccrue != nil {
			return errAccrue
		}

		result = RechargeResult{Voucher: v, Transaction: txn, Commission: *accrued}

		return s.audit.Record(tx, audit.Entry{
			Actor:    actor,
			Action:   "voucher.recharge",
			Entity:   "voucher",
			EntityID: v.ID,
			Before:   before,
			After:    v,
		})
	})
	if errTx != nil {
		return nil, errTx
	}
	return &result, nil
}

// Redeem consumes the voucher's full remaining balance in one event.
//
// The pre-redemption balance is captured as the transaction amount and a
// dated receipt code is issued. No commission accrues on redemption;
// commission is earned when value enters the network, at recharge time.
func (s *Store) Redeem(ctx context.Context, voucherID, merchantID uint64, customerName, customerPhone, actor string) (*RedeemResult, error) {
	customerName = strings.TrimSpace(customerName)
	customerPhone = strings.TrimSpace(customerPhone)

	var result RedeemResult
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var v models.Voucher
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&v, voucherID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrVoucherNotFound
			}
			return errFind
		}

		if v.Status != models.VoucherStatusActive {
			return ErrVoucherNotActive
		}
		if !v.Balance.IsPositive() {
			return ErrVoucherEmpty
		}

		before := v
		now := time.Now().UTC()
		redeemedAmount := v.Balance

		receipt, errReceipt := GenerateReceiptCode(now)
		if errReceipt != nil {
			return errReceipt
		}

		if errUpdate := tx.Model(&v).Updates(map[string]any{
			"balance":     decimal.Zero,
			"status":      models.VoucherStatusRedeemed,
			"redeemed_at": now,
		}).Error; errUpdate != nil {
			return errUpdate
		}
		v.Balance = decimal.Zero
		v.Status = models.VoucherStatusRedeemed
		v.RedeemedAt = &now

		txn := models.Transaction{
			Kind:          models.TransactionKindRedemption,
			Amount:        redeemedAmount,
			Status:        models.TransactionStatusCompleted,
			VoucherID:     v.ID,
			MerchantID:    merchantID,
			CustomerName:  customerName,
			CustomerPhone: customerPhone,
			ReceiptCode:   receipt,
			CreatedAt:     now,
		}
		if errCreate := tx.Create(&txn).Error; errCreate != nil {
			return errCreate
		}

		result = RedeemResult{Voucher: v, Transaction: txn}

		return s.audit.Record(tx, audit.Entry{
			Actor:    actor,
			Action:   "voucher.redeem",
			Entity:   "voucher",
			EntityID: v.ID,
			Before:   before,
			After:    v,
		})
	})
	if errTx != nil {
		return nil, errTx
	}
	return &result, nil
}

// CancelTransaction reverses a COMPLETED transaction together with its
// pending commission. It is refused once the commission has been paid.
func (s *Store) CancelTransaction(ctx context.Context, transactionID uint64, actor string) (*models.Transaction, error) {
	var txn models.Transaction
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&txn, transactionID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrTransactionNotFound
			}
			return errFind
		}
		if txn.Status == models.TransactionStatusCancelled {
			return ErrTransactionCancelled
		}

		var com models.Commission
		errFindCom := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("transaction_id = ?", txn.ID).
			First(&com).Error
		switch {
		case errFindCom == nil:
			if com.Status == models.CommissionStatusPaid {
				return commission.ErrCommissionAlreadyPaid
			}
			if com.Status == models.CommissionStatusPending {
				if errUpdate := tx.Model(&com).
					Update("status", models.CommissionStatusCancelled).Error; errUpdate != nil {
					return errUpdate
				}
			}
		case errors.Is(errFindCom, gorm.ErrRecordNotFound):
			// Redemptions carry no commission.
		default:
			return errFindCom
		}

		before := txn
		if errUpdate := tx.Model(&txn).
			Update("status", models.TransactionStatusCancelled).Error; errUpdate != nil {
			return errUpdate
		}
		txn.Status = models.TransactionStatusCancelled

		return s.audit.Record(tx, audit.Entry{
			Actor:    actor,
			Action:   "transaction.cancel",
			Entity:   "transaction",
			EntityID: txn.ID,
			Before:   before,
			After:    txn,
		})
	})
	if errTx != nil {
		return nil, errTx
	}
	return &txn, nil
}
