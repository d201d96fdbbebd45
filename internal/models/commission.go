package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommissionStatus enumerates commission states.
type CommissionStatus string

// Commission states.
const (
	// CommissionStatusPending marks an accrued, not yet disbursed commission.
	CommissionStatusPending CommissionStatus = "PENDING"
	// CommissionStatusPaid marks a disbursed commission.
	CommissionStatusPaid CommissionStatus = "PAID"
	// CommissionStatusCancelled marks a reversed commission.
	CommissionStatusCancelled CommissionStatus = "CANCELLED"
)

// Commission is the franchisee's earned share of a recharge.
//
// Rate is a snapshot of the franchisee's configured percentage at accrual
// time; later rate changes never touch existing rows. Amount is always
// transaction amount × rate / 100, rounded to 2 decimal places. A
// commission is created in the same database transaction as its
// originating Transaction and the pair is one-to-one.
type Commission struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Amount decimal.Decimal  `gorm:"type:decimal(14,2);not null"`        // Accrued amount.
	Rate   decimal.Decimal  `gorm:"type:decimal(5,2);not null"`         // Percentage snapshot, 0-100.
	Status CommissionStatus `gorm:"type:text;not null;default:PENDING"` // PENDING, PAID or CANCELLED.

	FranchiseeID  uint64 `gorm:"not null;index"`       // Earning franchisee.
	MerchantID    uint64 `gorm:"not null;index"`       // Merchant where the recharge happened.
	TransactionID uint64 `gorm:"not null;uniqueIndex"` // Originating transaction.

	PaidAt *time.Time // Disbursement time, if paid.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Accrual timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
