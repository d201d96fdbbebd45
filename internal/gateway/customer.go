package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/cartaocomp/cartaocomp/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// EnsureCustomer returns the gateway customer id for a franchisee,
// creating it on the gateway when missing.
//
// The backfill is idempotent under concurrent callers: the id is written
// with a guarded UPDATE so only the first writer wins, and losers re-read
// the stored id. A gateway customer created by a losing writer is orphaned
// on the gateway side, which is harmless, and logged.
func EnsureCustomer(ctx context.Context, db *gorm.DB, client Client, franchiseeID uint64) (string, error) {
	var franchisee models.Franchisee
	if errFind := db.WithContext(ctx).First(&franchisee, franchiseeID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("gateway: franchisee %d not found", franchiseeID)
		}
		return "", errFind
	}
	if franchisee.GatewayCustomerID != nil && *franchisee.GatewayCustomerID != "" {
		return *franchisee.GatewayCustomerID, nil
	}

	customerID, errCreate := client.CreateCustomer(ctx, franchisee.Name, franchisee.Document)
	if errCreate != nil {
		return "", errCreate
	}

	res := db.WithContext(ctx).
		Model(&models.Franchisee{}).
		Where("id = ? AND gateway_customer_id IS NULL", franchiseeID).
		Update("gateway_customer_id", customerID)
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		// Another caller backfilled first; use the stored id.
		if errFind := db.WithContext(ctx).First(&franchisee, franchiseeID).Error; errFind != nil {
			return "", errFind
		}
		if franchisee.GatewayCustomerID != nil && *franchisee.GatewayCustomerID != "" {
			log.WithFields(log.Fields{
				"franchisee_id":      franchiseeID,
				"orphan_customer_id": customerID,
			}).Warn("gateway: lost customer backfill race, orphaning created customer")
			return *franchisee.GatewayCustomerID, nil
		}
	}
	return customerID, nil
}
