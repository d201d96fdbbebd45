package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// VoucherStatus enumerates voucher lifecycle states.
type VoucherStatus string

// Voucher lifecycle states.
const (
	// VoucherStatusAvailable marks an issued voucher with no value yet.
	VoucherStatusAvailable VoucherStatus = "AVAILABLE"
	// VoucherStatusActive marks a voucher holding redeemable balance.
	VoucherStatusActive VoucherStatus = "ACTIVE"
	// VoucherStatusRedeemed marks a fully consumed voucher.
	VoucherStatusRedeemed VoucherStatus = "REDEEMED"
	// VoucherStatusExpired marks a voucher past its validity.
	VoucherStatusExpired VoucherStatus = "EXPIRED"
)

// Voucher represents a prepaid value instrument.
//
// Vouchers are never deleted, only transitioned. Balance is mutated solely
// by the recharge/redeem operations; balance > 0 implies ACTIVE and
// REDEEMED implies balance = 0.
type Voucher struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Code     string `gorm:"type:text;not null;uniqueIndex"` // Human-readable voucher code.
	ScanCode string `gorm:"type:text;not null;uniqueIndex"` // Machine-scannable code.

	Balance decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`      // Remaining balance.
	Status  VoucherStatus   `gorm:"type:text;not null;default:AVAILABLE;index"` // Current lifecycle state.

	FranchiseeID uint64  `gorm:"not null;index"` // Owning franchisee.
	MerchantID   *uint64 `gorm:"index"`          // Assigned merchant, if any.

	ActivatedAt *time.Time // Time of first recharge.
	RedeemedAt  *time.Time // Redemption time, if redeemed.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
