package api

import (
	"net/http"
	"strings"

	"github.com/cartaocomp/cartaocomp/internal/billing"
	"github.com/cartaocomp/cartaocomp/internal/commission"
	"github.com/cartaocomp/cartaocomp/internal/config"
	"github.com/cartaocomp/cartaocomp/internal/http/api/handlers"
	"github.com/cartaocomp/cartaocomp/internal/models"
	"github.com/cartaocomp/cartaocomp/internal/reconcile"
	"github.com/cartaocomp/cartaocomp/internal/reports"
	"github.com/cartaocomp/cartaocomp/internal/security"
	"github.com/cartaocomp/cartaocomp/internal/voucher"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Services bundles the domain services the HTTP layer exposes.
type Services struct {
	Vouchers    *voucher.Store
	Commissions *commission.Engine
	Billing     *billing.Ledger
	Reconciler  *reconcile.Engine
	Reports     *reports.Service
}

// RegisterRoutes wires all route groups onto the engine.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg *config.Config, svc Services) {
	if r == nil || db == nil {
		return
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authHandler := handlers.NewAuthHandler(db, cfg.JWT)
	r.POST("/v0/login", authHandler.Login)

	webhookHandler := handlers.NewWebhookHandler(svc.Reconciler, cfg.Gateway.WebhookSecret)
	r.POST("/v0/webhooks/gateway", webhookHandler.Gateway)

	voucherHandler := handlers.NewVoucherHandler(db, svc.Vouchers)
	merchant := r.Group("/v0/merchant")
	merchant.Use(authMiddleware(db, cfg.JWT, models.RoleMerchant))
	merchant.POST("/vouchers/:id/recharge", voucherHandler.Recharge)
	merchant.POST("/vouchers/:id/redeem", voucherHandler.Redeem)
	merchant.GET("/vouchers/:id", voucherHandler.Get)
	merchant.GET("/transactions", voucherHandler.ListTransactions)

	billingHandler := handlers.NewBillingHandler(db, svc.Billing, svc.Reconciler)
	commissionHandler := handlers.NewCommissionHandler(svc.Commissions, svc.Vouchers)
	admin := r.Group("/v0/admin")
	admin.Use(authMiddleware(db, cfg.JWT, models.RoleFranchisor))
	admin.POST("/franchisees/:id/vouchers", voucherHandler.Issue)
	admin.POST("/merchants/:id/activation-charge", billingHandler.CreateActivationCharge)
	admin.POST("/merchants/:id/deactivate", billingHandler.DeactivateMerchant)
	admin.POST("/charges/:id/mark-paid", billingHandler.MarkPaid)
	admin.POST("/charges/:id/cancel", billingHandler.Cancel)
	admin.POST("/charges/:id/poll", billingHandler.Poll)
	admin.POST("/commissions/:id/cancel", commissionHandler.Cancel)
	admin.POST("/commissions/:id/pay", commissionHandler.Pay)
	admin.POST("/transactions/:id/cancel", commissionHandler.CancelTransaction)

	reportsHandler := handlers.NewReportsHandler(svc.Reports)
	reportsGroup := r.Group("/v0/reports")
	reportsGroup.Use(authMiddleware(db, cfg.JWT,
		models.RoleFranchisor, models.RoleFranchisee, models.RoleMerchant))
	reportsGroup.GET("/summary", reportsHandler.Summary)
}

// authMiddleware validates the bearer JWT, loads the principal and
// enforces its role.
func authMiddleware(db *gorm.DB, jwtCfg config.JWTConfig, roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var user models.User
		if errFind := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		if user.Disabled {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user disabled"})
			return
		}
		if _, ok := allowed[user.Role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "role not allowed"})
			return
		}

		c.Set("claims", claims)
		c.Next()
	}
}
