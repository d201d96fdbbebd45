package voucher

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/cartaocomp/cartaocomp/internal/audit"
	"github.com/cartaocomp/cartaocomp/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Issuance limits.
const maxIssueBatch = 1000

// Issuance errors.
var (
	// ErrFranchiseeNotFound indicates no franchisee exists with the given id.
	ErrFranchiseeNotFound = errors.New("franchisee not found")
	// ErrInvalidBatchSize indicates an out-of-range issuance count.
	ErrInvalidBatchSize = errors.New("batch size out of range")
)

// generateVoucherCode returns a printable code of the form CARD-XXXXXXXXXX.
func generateVoucherCode() (string, error) {
	var buf [5]byte
	if _, err := io.ReadFull(rand.Reader, buf[:]); err != nil {
		return "", fmt.Errorf("generate voucher code: %w", err)
	}
	return "CARD-" + hex.EncodeToString(buf[:]), nil
}

// Issue creates count blank AVAILABLE vouchers for a franchisee.
//
// Codes are printed on the physical cards; scan codes are uuids embedded
// in the QR. All rows are created in one transaction so a partial batch
// never reaches the printer.
func (s *Store) Issue(ctx context.Context, franchiseeID uint64, count int, actor string) ([]models.Voucher, error) {
	if count < 1 || count > maxIssueBatch {
		return nil, ErrInvalidBatchSize
	}

	var issued []models.Voucher
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var franchisee models.Franchisee
		if errFind := tx.First(&franchisee, franchiseeID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrFranchiseeNotFound
			}
			return errFind
		}

		batch := make([]models.Voucher, 0, count)
		for i := 0; i < count; i++ {
			code, errCode := generateVoucherCode()
			if errCode != nil {
				return errCode
			}
			batch = append(batch, models.Voucher{
				Code:         code,
				ScanCode:     uuid.NewString(),
				Balance:      decimal.Zero,
				Status:       models.VoucherStatusAvailable,
				FranchiseeID: franchisee.ID,
			})
		}
		if errCreate := tx.Create(&batch).Error; errCreate != nil {
			return errCreate
		}
		issued = batch

		return s.audit.Record(tx, audit.Entry{
			Actor:    actor,
			Action:   "voucher.issue",
			Entity:   "franchisee",
			EntityID: franchisee.ID,
			After:    map[string]any{"count": count},
		})
	})
	if errTx != nil {
		return nil, errTx
	}
	return issued, nil
}
