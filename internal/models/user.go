package models

import "time"

// Role enumerates authenticated principal roles.
type Role string

// Principal roles.
const (
	// RoleFranchisor is the network operator.
	RoleFranchisor Role = "FRANCHISOR"
	// RoleFranchisee is a regional voucher distributor.
	RoleFranchisee Role = "FRANCHISEE"
	// RoleMerchant is an establishment operator.
	RoleMerchant Role = "MERCHANT"
)

// User is an authenticated principal.
//
// FranchiseeID/MerchantID scope the principal to the entity it operates;
// a FRANCHISOR carries neither.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username     string `gorm:"type:text;not null;uniqueIndex"` // Login name.
	PasswordHash string `gorm:"type:text;not null"`             // bcrypt hash.
	Role         Role   `gorm:"type:text;not null;index"`       // Principal role.

	FranchiseeID *uint64 `gorm:"index"` // Scoped franchisee, if any.
	MerchantID   *uint64 `gorm:"index"` // Scoped merchant, if any.

	Disabled bool `gorm:"not null;default:false"` // Whether login is blocked.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
