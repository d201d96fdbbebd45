package handlers

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/cartaocomp/cartaocomp/internal/audit"
	"github.com/cartaocomp/cartaocomp/internal/billing"
	"github.com/cartaocomp/cartaocomp/internal/db"
	"github.com/cartaocomp/cartaocomp/internal/reconcile"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newPollRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	engine := reconcile.NewEngine(conn, stubGateway{}, audit.NewRecorder(nil))
	ledger := billing.NewLedger(conn, stubGateway{}, audit.NewRecorder(nil))
	router := gin.New()
	router.POST("/v0/admin/charges/:id/poll", NewBillingHandler(conn, ledger, engine).Poll)
	return router, conn
}

func postPoll(router *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestPollUnknownChargeAnswers404(t *testing.T) {
	router, _ := newPollRouter(t)

	recorder := postPoll(router, "/v0/admin/charges/999/poll")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status: got %d want 404", recorder.Code)
	}
}

func TestPollGatewayOutageAnswers502(t *testing.T) {
	router, conn := newPollRouter(t)
	charge, _ := seedPendingCharge(t, conn, "pay_0001")

	// stubGateway fails every GetCharge call.
	recorder := postPoll(router, "/v0/admin/charges/"+strconv.FormatUint(charge.ID, 10)+"/poll")
	if recorder.Code != http.StatusBadGateway {
		t.Fatalf("status: got %d want 502, body %s", recorder.Code, recorder.Body.String())
	}
}
