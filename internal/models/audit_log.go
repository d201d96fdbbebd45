package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog records a single state-changing call.
//
// Exactly one row is written per atomic unit, inside the same database
// transaction as the mutation it describes.
type AuditLog struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Actor    string `gorm:"type:text;not null;index"` // Acting principal, e.g. "merchant:12".
	Action   string `gorm:"type:text;not null;index"` // Operation name, e.g. "voucher.recharge".
	Entity   string `gorm:"type:text;not null"`       // Mutated entity type.
	EntityID uint64 `gorm:"not null;index"`           // Mutated entity primary key.

	Before datatypes.JSON `gorm:"type:jsonb"` // Snapshot before the mutation.
	After  datatypes.JSON `gorm:"type:jsonb"` // Snapshot after the mutation.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Mutation timestamp.
}
