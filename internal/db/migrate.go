package db

import (
	"fmt"

	"github.com/cartaocomp/cartaocomp/internal/models"
	"gorm.io/gorm"
)

// Migrate applies the schema for all domain tables.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	return conn.AutoMigrate(
		&models.User{},
		&models.Franchisee{},
		&models.Merchant{},
		&models.Voucher{},
		&models.Transaction{},
		&models.Commission{},
		&models.Charge{},
		&models.AuditLog{},
	)
}
