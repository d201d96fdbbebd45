package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Franchisee distributes vouchers to merchants and earns commission.
type Franchisee struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name     string `gorm:"type:text;not null"` // Display name.
	Document string `gorm:"type:text"`          // Tax document number.

	// CommissionRate is the currently configured percentage (0-100). It is
	// snapshotted into each Commission at accrual time.
	CommissionRate decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`

	GatewayCustomerID *string `gorm:"type:text;uniqueIndex"` // Gateway-side customer identifier.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
