package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind enumerates balance-affecting event kinds.
type TransactionKind string

// Transaction kinds.
const (
	// TransactionKindRecharge adds value to a voucher.
	TransactionKindRecharge TransactionKind = "RECHARGE"
	// TransactionKindRedemption consumes a voucher's full balance.
	TransactionKindRedemption TransactionKind = "REDEMPTION"
)

// TransactionStatus enumerates transaction states.
type TransactionStatus string

// Transaction states.
const (
	// TransactionStatusCompleted marks an applied transaction.
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	// TransactionStatusCancelled marks a reversed transaction.
	TransactionStatusCancelled TransactionStatus = "CANCELLED"
)

// Transaction is the append-only record of a balance-affecting event.
//
// Exactly one row is created per accepted recharge/redeem call. A COMPLETED
// row is immutable except for a single CANCELLED transition, permitted only
// while no dependent commission has been paid.
type Transaction struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Kind   TransactionKind   `gorm:"type:text;not null;index"`             // RECHARGE or REDEMPTION.
	Amount decimal.Decimal   `gorm:"type:decimal(14,2);not null"`          // Positive event amount.
	Status TransactionStatus `gorm:"type:text;not null;default:COMPLETED"` // COMPLETED or CANCELLED.

	VoucherID  uint64 `gorm:"not null;index"` // Affected voucher.
	MerchantID uint64 `gorm:"not null;index"` // Merchant that performed the operation.

	CustomerName  string `gorm:"type:text"` // End-customer name (redemption only).
	CustomerPhone string `gorm:"type:text"` // End-customer phone (redemption only).
	ReceiptCode   string `gorm:"type:text"` // Printed receipt code (redemption only).

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Event timestamp.
}
