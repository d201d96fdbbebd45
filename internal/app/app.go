package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cartaocomp/cartaocomp/internal/audit"
	"github.com/cartaocomp/cartaocomp/internal/billing"
	"github.com/cartaocomp/cartaocomp/internal/commission"
	"github.com/cartaocomp/cartaocomp/internal/config"
	"github.com/cartaocomp/cartaocomp/internal/db"
	"github.com/cartaocomp/cartaocomp/internal/gateway"
	"github.com/cartaocomp/cartaocomp/internal/http/api"
	"github.com/cartaocomp/cartaocomp/internal/logging"
	"github.com/cartaocomp/cartaocomp/internal/reconcile"
	"github.com/cartaocomp/cartaocomp/internal/reports"
	"github.com/cartaocomp/cartaocomp/internal/voucher"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// shutdownGrace bounds how long in-flight requests may run after a stop
// signal.
const shutdownGrace = 10 * time.Second

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, configPath string) error {
	cfg, errLoad := config.Load(configPath)
	if errLoad != nil {
		return errLoad
	}
	conn, errOpen := db.Open(cfg.Database)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// RunServer boots the voucher network API server.
func RunServer(ctx context.Context, configPath string) error {
	cfg, errLoad := config.Load(configPath)
	if errLoad != nil {
		return errLoad
	}
	logging.Setup(cfg.Log)

	conn, errOpen := db.Open(cfg.Database)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	var publisher *audit.KafkaPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = audit.NewKafkaPublisher(cfg.Kafka)
		defer publisher.Close()
	}
	recorder := audit.NewRecorder(publisher)

	var cache *redis.Client
	if cfg.Redis.Addr != "" {
		cache = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer cache.Close()
	}

	gatewayClient := gateway.NewHTTPClient(cfg.Gateway)

	services := api.Services{
		Vouchers:    voucher.NewStore(conn, recorder),
		Commissions: commission.NewEngine(conn, recorder),
		Billing:     billing.NewLedger(conn, gatewayClient, recorder),
		Reconciler:  reconcile.NewEngine(conn, gatewayClient, recorder),
		Reports:     reports.NewService(conn, cache, cfg.Redis.TTL),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	api.RegisterRoutes(engine, conn, cfg, services)

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()
	log.Infof("listening on %s", cfg.Listen)

	select {
	case errServe := <-serveErr:
		if errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			return errServe
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
		log.WithError(errShutdown).Warn("app: forced shutdown")
		return errShutdown
	}
	log.Info("server stopped")
	return nil
}
