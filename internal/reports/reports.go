package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cartaocomp/cartaocomp/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Summary aggregates read-only network figures.
//
// These numbers are eventually consistent by design: they may be served
// from cache and are never used to drive a state transition.
type Summary struct {
	Vouchers          map[string]int64 `json:"vouchers"`
	TransactionCounts map[string]int64 `json:"transaction_counts"`
	TransactionTotal  string           `json:"transaction_total"`
	PendingCommission string           `json:"pending_commission"`
	Charges           map[string]int64 `json:"charges"`
	GeneratedAt       time.Time        `json:"generated_at"`
}

// Service answers aggregate queries with an optional redis read-through
// cache in front of the database.
type Service struct {
	db    *gorm.DB
	cache *redis.Client
	ttl   time.Duration
}

// NewService constructs a reports Service. cache may be nil.
func NewService(db *gorm.DB, cache *redis.Client, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Service{db: db, cache: cache, ttl: ttl}
}

// Scope restricts aggregates to one franchisee and/or merchant.
type Scope struct {
	FranchiseeID uint64
	MerchantID   uint64
}

// cacheKey derives the cache key for a scope.
func (s Scope) cacheKey() string {
	return fmt.Sprintf("reports:summary:f%d:m%d", s.FranchiseeID, s.MerchantID)
}

// Summary computes (or serves from cache) the aggregate summary for a scope.
func (s *Service) Summary(ctx context.Context, scope Scope) (*Summary, error) {
	if s.cache != nil {
		cached, errGet := s.cache.Get(ctx, scope.cacheKey()).Result()
		if errGet == nil {
			var out Summary
			if errUnmarshal := json.Unmarshal([]byte(cached), &out); errUnmarshal == nil {
				return &out, nil
			}
		} else if !errors.Is(errGet, redis.Nil) {
			log.WithError(errGet).Debug("reports: cache read failed, falling back to database")
		}
	}

	out, errBuild := s.buildSummary(ctx, scope)
	if errBuild != nil {
		return nil, errBuild
	}

	if s.cache != nil {
		if payload, errMarshal := json.Marshal(out); errMarshal == nil {
			if errSet := s.cache.Set(ctx, scope.cacheKey(), payload, s.ttl).Err(); errSet != nil {
				log.WithError(errSet).Debug("reports: cache write failed")
			}
		}
	}
	return out, nil
}

// statusCount is one group-by row.
type statusCount struct {
	Status string
	Total  int64
}

// buildSummary runs the aggregate queries.
func (s *Service) buildSummary(ctx context.Context, scope Scope) (*Summary, error) {
	out := &Summary{
		Vouchers:          map[string]int64{},
		TransactionCounts: map[string]int64{},
		Charges:           map[string]int64{},
		GeneratedAt:       time.Now().UTC(),
	}

	voucherQ := s.db.WithContext(ctx).Model(&models.Voucher{})
	if scope.FranchiseeID != 0 {
		voucherQ = voucherQ.Where("franchisee_id = ?", scope.FranchiseeID)
	}
	if scope.MerchantID != 0 {
		voucherQ = voucherQ.Where("merchant_id = ?", scope.MerchantID)
	}
	var voucherRows []statusCount
	if errScan := voucherQ.Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&voucherRows).Error; errScan != nil {
		return nil, errScan
	}
	for _, row := range voucherRows {
		out.Vouchers[row.Status] = row.Total
	}

	txnQ := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("status = ?", models.TransactionStatusCompleted)
	if scope.MerchantID != 0 {
		txnQ = txnQ.Where("merchant_id = ?", scope.MerchantID)
	}
	var txnRows []statusCount
	if errScan := txnQ.Select("kind AS status, COUNT(*) AS total").
		Group("kind").
		Scan(&txnRows).Error; errScan != nil {
		return nil, errScan
	}
	for _, row := range txnRows {
		out.TransactionCounts[row.Status] = row.Total
	}

	var txnTotal decimal.Decimal
	totalQ := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("status = ?", models.TransactionStatusCompleted)
	if scope.MerchantID != 0 {
		totalQ = totalQ.Where("merchant_id = ?", scope.MerchantID)
	}
	if errScan := totalQ.Select("COALESCE(SUM(amount), 0)").
		Row().Scan(&txnTotal); errScan != nil {
		return nil, errScan
	}
	out.TransactionTotal = txnTotal.StringFixed(2)

	var pending decimal.Decimal
	commissionQ := s.db.WithContext(ctx).Model(&models.Commission{}).
		Where("status = ?", models.CommissionStatusPending)
	if scope.FranchiseeID != 0 {
		commissionQ = commissionQ.Where("franchisee_id = ?", scope.FranchiseeID)
	}
	if errScan := commissionQ.Select("COALESCE(SUM(amount), 0)").
		Row().Scan(&pending); errScan != nil {
		return nil, errScan
	}
	out.PendingCommission = pending.StringFixed(2)

	chargeQ := s.db.WithContext(ctx).Model(&models.Charge{})
	if scope.FranchiseeID != 0 {
		chargeQ = chargeQ.Where("franchisee_id = ?", scope.FranchiseeID)
	}
	if scope.MerchantID != 0 {
		chargeQ = chargeQ.Where("merchant_id = ?", scope.MerchantID)
	}
	var chargeRows []statusCount
	if errScan := chargeQ.Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&chargeRows).Error; errScan != nil {
		return nil, errScan
	}
	for _, row := range chargeRows {
		out.Charges[row.Status] = row.Total
	}

	return out, nil
}
