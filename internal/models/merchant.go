package models

import "time"

// MerchantStatus enumerates merchant lifecycle states.
type MerchantStatus string

// Merchant lifecycle states.
const (
	// MerchantStatusDraft marks a merchant still being onboarded.
	MerchantStatusDraft MerchantStatus = "DRAFT"
	// MerchantStatusPendingPayment marks a merchant awaiting activation payment.
	MerchantStatusPendingPayment MerchantStatus = "PENDING_PAYMENT"
	// MerchantStatusActive marks an operating merchant.
	MerchantStatusActive MerchantStatus = "ACTIVE"
	// MerchantStatusInactive marks a disabled merchant.
	MerchantStatusInactive MerchantStatus = "INACTIVE"
)

// Merchant is an establishment that recharges and redeems vouchers.
//
// PENDING_PAYMENT→ACTIVE happens only as a side effect of an activation
// Charge reaching PAID; the reverse is an explicit administrative action.
type Merchant struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name     string         `gorm:"type:text;not null"`                     // Display name.
	Document string         `gorm:"type:text"`                              // Tax document number.
	Status   MerchantStatus `gorm:"type:text;not null;default:DRAFT;index"` // Lifecycle state.

	FranchiseeID uint64 `gorm:"not null;index"` // Franchisee the merchant belongs to.

	ActivatedAt *time.Time // Activation time, if activated.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
