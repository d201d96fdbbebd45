package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cartaocomp/cartaocomp/internal/models"
	"github.com/cartaocomp/cartaocomp/internal/security"
	"github.com/gin-gonic/gin"
)

// getClaims returns the authenticated principal's claims, if any.
func getClaims(c *gin.Context) *security.Claims {
	v, exists := c.Get("claims")
	if !exists {
		return nil
	}
	claims, ok := v.(*security.Claims)
	if !ok {
		return nil
	}
	return claims
}

// actorLabel formats the principal for audit records, e.g. "merchant:12".
func actorLabel(claims *security.Claims) string {
	if claims == nil {
		return "anonymous"
	}
	switch claims.Role {
	case models.RoleMerchant:
		return fmt.Sprintf("merchant:%d", claims.MerchantID)
	case models.RoleFranchisee:
		return fmt.Sprintf("franchisee:%d", claims.FranchiseeID)
	case models.RoleFranchisor:
		return fmt.Sprintf("franchisor:%d", claims.UserID)
	default:
		return fmt.Sprintf("user:%d", claims.UserID)
	}
}

// parseIDParam parses the :id path parameter.
func parseIDParam(c *gin.Context) (uint64, bool) {
	raw := strings.TrimSpace(c.Param("id"))
	id, errParse := strconv.ParseUint(raw, 10, 64)
	if errParse != nil || id == 0 {
		return 0, false
	}
	return id, true
}
