package handlers

import (
	"net/http"

	"github.com/cartaocomp/cartaocomp/internal/reports"
	"github.com/gin-gonic/gin"
)

// ReportsHandler serves aggregate read models.
type ReportsHandler struct {
	reports *reports.Service
}

// NewReportsHandler constructs a ReportsHandler.
func NewReportsHandler(service *reports.Service) *ReportsHandler {
	return &ReportsHandler{reports: service}
}

// Summary returns the aggregate summary scoped to the caller's role.
// Franchisees see their own network, merchants their own counter, the
// franchisor everything.
func (h *ReportsHandler) Summary(c *gin.Context) {
	claims := getClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	scope := reports.Scope{
		FranchiseeID: claims.FranchiseeID,
		MerchantID:   claims.MerchantID,
	}

	summary, errSummary := h.reports.Summary(c.Request.Context(), scope)
	if errSummary != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}
