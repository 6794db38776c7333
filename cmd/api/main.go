package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	httpadp "github.com/martabakCode/lofi-backend-sub001/internal/adapter/http"
	"github.com/martabakCode/lofi-backend-sub001/internal/adapter/middleware"
	"github.com/martabakCode/lofi-backend-sub001/internal/adapter/notification"
	"github.com/martabakCode/lofi-backend-sub001/internal/adapter/repository/mysql"
	"github.com/martabakCode/lofi-backend-sub001/internal/config"
	domainnotify "github.com/martabakCode/lofi-backend-sub001/internal/domain/notification"
	"github.com/martabakCode/lofi-backend-sub001/internal/infrastructure/cache"
	"github.com/martabakCode/lofi-backend-sub001/internal/infrastructure/db"
	"github.com/martabakCode/lofi-backend-sub001/internal/infrastructure/logging"
	"github.com/martabakCode/lofi-backend-sub001/internal/infrastructure/metrics"
	"github.com/martabakCode/lofi-backend-sub001/internal/usecase/credit"
	"github.com/martabakCode/lofi-backend-sub001/internal/usecase/loan"
	"github.com/martabakCode/lofi-backend-sub001/internal/usecase/notify"
)

func main() {
	if err := run(); err != nil {
		slog.Error("api exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	gdb, err := db.OpenGorm(cfg.MySQLDSN(), db.WithLogLevel(cfg.LogLevel))
	if err != nil {
		return err
	}
	if err := mysql.Migrate(gdb); err != nil {
		return err
	}
	rdb, err := cache.OpenRedis(cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer rdb.Close()

	loans := mysql.NewLoanRepository(gdb)
	products := mysql.NewProductRepository(gdb)
	engine := credit.NewEngine(loans, products,
		cache.NewRedisCache(rdb, cfg.CreditCacheTTL),
		cache.NewRedisLocker(rdb, cfg.CreditLockTTL),
		credit.WithLockWait(cfg.CreditLockWait),
		credit.WithLogger(log.With("component", "credit")),
	)

	var sink domainnotify.Sink = notification.NewLogSink(log.With("component", "notify"))
	if len(cfg.KafkaBrokers) > 0 {
		ks := notification.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer ks.Close()
		sink = ks
	}
	dispatcher := notify.New(sink, notify.Config{
		Workers:   cfg.NotifyWorkers,
		QueueSize: cfg.NotifyQueueSize,
		Timeout:   cfg.NotifyTimeout,
	}, log.With("component", "notify"))

	uc := loan.NewUsecase(loan.Deps{
		Loans:     loans,
		Approvals: mysql.NewApprovalRepository(gdb),
		Products:  products,
		UoW:       mysql.NewGormUoW(gdb),
		Credit:    engine,
		Events:    dispatcher,
	}, loan.WithLogger(log.With("component", "loan")), loan.WithCancelSetsRejectedAt(cfg.CancelSetsRejectedAt))

	e := echo.New()
	e.HideBanner = true
	e.Validator = httpadp.NewValidator()
	e.Use(echomw.Recover(), echomw.RequestID(), middleware.Metrics(), requestLogger(log))

	h := httpadp.NewHandler(map[string]httpadp.Check{
		"mysql": db.Ping(gdb),
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	})
	e.GET("/health", h.Health)
	e.GET("/ready", h.Ready)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	api := e.Group("/api/v1",
		middleware.ActorMiddleware([]byte(cfg.JWTSecret), cfg.JWTIssuer),
		middleware.Idempotency(rdb, cfg.IdempotencyTTL(), log.With("component", "idempotency")),
	)
	httpadp.NewLoanHandler(uc, log.With("component", "http")).Register(api)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.AppPort
		log.Info("listening", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "error", err)
	}
	// drain queued notifications before the sink is closed
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Warn("notification dispatcher did not drain", "error", err)
	}
	log.Info("stopped")
	return nil
}

func requestLogger(log *slog.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			log.LogAttrs(c.Request().Context(), level, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			)
			return nil
		},
	})
}
