package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chama-backend/internal/adapter/gateway/mpesa"
	httpadp "chama-backend/internal/adapter/http"
	mw "chama-backend/internal/adapter/middleware"
	"chama-backend/internal/adapter/repository/mysql"
	"chama-backend/internal/apperr"
	"chama-backend/internal/config"
	mpesaDomain "chama-backend/internal/domain/mpesa"
	"chama-backend/internal/infrastructure/cache"
	"chama-backend/internal/infrastructure/db"
	"chama-backend/internal/infrastructure/metrics"
	"chama-backend/internal/usecase/collection"
	"chama-backend/internal/usecase/contribution"
	loanuc "chama-backend/internal/usecase/loan"
	"chama-backend/internal/usecase/payment"
	"chama-backend/internal/usecase/reconcile"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const shutdownGrace = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	gdb, err := db.OpenGorm(cfg.MySQLDSN(), cfg.LogSQL)
	if err != nil {
		return fmt.Errorf("open mysql: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = cache.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return fmt.Errorf("open redis: %w", err)
		}
		defer rdb.Close()
	} else {
		log.Warn("redis not configured: idempotency and token caching disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	loans := mysql.NewLoanRepository(gdb)
	members := mysql.NewMemberRepository(gdb)
	transactions := mysql.NewTransactionRepository(gdb)
	tx := mysql.NewGormUoW(gdb)

	loanUC := loanuc.NewUsecase(tx, loans, mysql.NewPaymentRepository(gdb), mysql.NewAuditRepository(gdb),
		loanuc.WithLogger(log), loanuc.WithMetrics(m))
	payUC := payment.NewUsecase(tx, log, m)
	contribUC := contribution.NewUsecase(tx, mysql.NewContributionRepository(gdb), log)
	collectUC := collection.NewUsecase(newGateway(cfg, rdb, log, m), members, loans, transactions, log)
	reconcileUC := reconcile.NewUsecase(tx, transactions, payUC, contribUC, log, m)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Logger(), middleware.Recover())
	e.Validator = httpadp.NewValidator()

	var idem echo.MiddlewareFunc
	if rdb != nil {
		idem = mw.Idempotency(rdb, time.Duration(cfg.IdempTTLSecs)*time.Second, log)
	}
	httpadp.Register(e, httpadp.Handlers{
		Health:        httpadp.NewHandler(sqlDB),
		Loans:         httpadp.NewLoanHandler(loanUC, payUC, log),
		Contributions: httpadp.NewContributionHandler(contribUC, log),
		Mpesa:         httpadp.NewMpesaHandler(collectUC, reconcileUC, log),
		Metrics:       promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	}, idem)

	addr := ":" + cfg.AppPort
	errc := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", addr, "mpesa_environment", cfg.Mpesa.Environment)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return e.Shutdown(sctx)
}

func newGateway(cfg *config.Config, rdb *redis.Client, log *slog.Logger, m *metrics.Metrics) mpesaDomain.Gateway {
	if !cfg.Mpesa.Configured() {
		log.Warn("mpesa credentials not configured: stk push disabled")
		return unconfigured{}
	}
	opts := []mpesa.Option{mpesa.WithLogger(log), mpesa.WithMetrics(m)}
	if rdb != nil {
		opts = append(opts, mpesa.WithTokenCache(rdb, cfg.Mpesa.TokenCacheTTL))
	}
	return mpesa.NewClient(mpesa.Config{
		BaseURL:        cfg.Mpesa.BaseURL,
		ConsumerKey:    cfg.Mpesa.ConsumerKey,
		ConsumerSecret: cfg.Mpesa.ConsumerSecret,
		ShortCode:      cfg.Mpesa.ShortCode,
		Passkey:        cfg.Mpesa.Passkey,
		CallbackURL:    cfg.Mpesa.CallbackURL,
		Timeout:        cfg.Mpesa.HTTPTimeout,
	}, opts...)
}

type unconfigured struct{}

func (unconfigured) STKPush(context.Context, mpesaDomain.PushRequest) (*mpesaDomain.PushAck, error) {
	return nil, apperr.Integration("mpesa.STKPush", nil, "mpesa is not configured")
}
