package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChargeStatus enumerates billing charge states.
type ChargeStatus string

// Charge states.
const (
	// ChargeStatusPending marks a charge awaiting payment.
	ChargeStatusPending ChargeStatus = "PENDING"
	// ChargeStatusPaid marks a settled charge.
	ChargeStatusPaid ChargeStatus = "PAID"
	// ChargeStatusExpired marks a charge past its due date.
	ChargeStatusExpired ChargeStatus = "EXPIRED"
	// ChargeStatusCancelled marks an administratively cancelled charge.
	ChargeStatusCancelled ChargeStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition is defined from s.
func (s ChargeStatus) IsTerminal() bool {
	return s == ChargeStatusPaid || s == ChargeStatusExpired || s == ChargeStatusCancelled
}

// ChargeKindActivation is the merchant-activation charge kind.
const ChargeKindActivation = "activation"

// Charge is a billing-ledger entry tracked against the payment gateway.
//
// At most one PENDING or PAID activation charge may exist per merchant.
// GatewayChargeID stays null until the gateway call succeeds; a charge
// persisted without gateway fields is still payable later via retry.
type Charge struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Kind   string          `gorm:"type:text;not null;default:activation;index"` // Charge kind.
	Amount decimal.Decimal `gorm:"type:decimal(14,2);not null"`                 // Amount owed.
	Status ChargeStatus    `gorm:"type:text;not null;default:PENDING;index"`    // Lifecycle state.

	DueDate time.Time `gorm:"not null"` // Payment deadline.

	GatewayChargeID *string `gorm:"type:text;uniqueIndex"` // Gateway-side charge identifier.
	PaymentURL      *string `gorm:"type:text"`             // Hosted payment page URL.
	QRPayload       *string `gorm:"type:text"`             // Copy-and-paste QR payload.

	MerchantID   uint64 `gorm:"not null;index"` // Billed merchant.
	FranchiseeID uint64 `gorm:"not null;index"` // Franchisee the merchant belongs to.

	PaidAt *time.Time // Settlement time, if paid.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
