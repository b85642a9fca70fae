// Package main запускает HTTP-сервер витрины игровой валюты.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"github.com/mmeshcher/uc-storefront/internal/checkout"
	"github.com/mmeshcher/uc-storefront/internal/config"
	"github.com/mmeshcher/uc-storefront/internal/currency"
	"github.com/mmeshcher/uc-storefront/internal/handler"
	"github.com/mmeshcher/uc-storefront/internal/history"
	"github.com/mmeshcher/uc-storefront/internal/kvstore"
	"github.com/mmeshcher/uc-storefront/internal/middleware"
	"github.com/mmeshcher/uc-storefront/internal/model"
	"github.com/mmeshcher/uc-storefront/internal/proof"
	"github.com/mmeshcher/uc-storefront/internal/rates"
	"github.com/mmeshcher/uc-storefront/internal/receipt"
	"github.com/mmeshcher/uc-storefront/internal/repository"
	"github.com/mmeshcher/uc-storefront/internal/service"
)

const janitorInterval = time.Minute

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}

func main() {
	cfg, err := config.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger initialization error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	sugar := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	var kv kvstore.Store = kvstore.NewMemoryStore()
	if cfg.RedisAddress != "" {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddress})
		defer client.Close()

		if err := client.Ping(ctx).Err(); err != nil {
			sugar.Fatalw("redis connection error", "error", err.Error())
		}

		redisStore := kvstore.NewRedisStore(client, logger)
		kv = redisStore

		// Доставка изменений от других экземпляров
		g.Go(func() error {
			return redisStore.Run(ctx)
		})
	}

	var proofs proof.Store = proof.NewMemoryStore()
	if cfg.S3Endpoint != "" {
		client, err := proof.NewS3Client(proof.S3Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
			Bucket:    cfg.S3Bucket,
		})
		if err != nil {
			sugar.Fatalw("s3 initialization error", "error", err.Error())
		}

		s3Store := proof.NewS3Store(client, cfg.S3Bucket)
		if err := s3Store.EnsureBucket(ctx); err != nil {
			sugar.Fatalw("s3 bucket error", "error", err.Error())
		}
		proofs = s3Store
	}

	var orders history.OrderRepository
	if cfg.DatabaseURI != "" {
		repo, err := repository.NewPostgresRepository(cfg.DatabaseURI, logger)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
		defer repo.Close()
		orders = repo
	}

	formatter := currency.NewFormatter(language.English)

	checkoutSvc := checkout.NewService(checkout.Options{
		EnabledMethods: cfg.PaymentMethods,
		Confirmer:      checkout.DelayConfirmer{Delay: cfg.ProcessingDelay},
		SessionTTL:     cfg.SessionTTL,
		Proofs:         proofs,
		Logger:         logger,
	})

	svc := service.NewService(service.Options{
		KV:        kv,
		Checkout:  checkoutSvc,
		Formatter: formatter,
		Exporter:  receipt.NewQRExporter(256, "M"),
		Orders:    orders,
		DefaultLocale: model.LocaleSelection{
			CountryCode:  cfg.DefaultCountry,
			CurrencyCode: cfg.DefaultCurrency,
		},
		SessionTTL: cfg.SessionTTL,
		Logger:     logger,
	})

	visitors := middleware.NewVisitorMiddleware(cfg.CookieSecret)
	h := handler.NewHandler(svc, logger, visitors)

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: h.SetupRouter(),
	}
	server.RegisterOnShutdown(h.CloseStreams)

	// Очистка завершённых и просроченных сессий покупки
	g.Go(func() error {
		return checkoutSvc.RunJanitor(ctx, janitorInterval)
	})

	if cfg.RatesAddress != "" {
		refresher := rates.NewRefresher(rates.NewClient(cfg.RatesAddress), formatter, cfg.RatesRefreshInterval, logger)
		g.Go(func() error {
			return refresher.Run(ctx)
		})
	}

	g.Go(func() error {
		sugar.Infow("starting storefront server",
			"addr", cfg.RunAddress,
			"methods", cfg.PaymentMethods,
			"redis", cfg.RedisAddress != "",
			"postgres", cfg.DatabaseURI != "",
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Оплаты в обработке дожидаемся даже при ошибке остановки HTTP-сервера
		var errs []error
		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
		drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.ProcessingDelay+5*time.Second)
		defer cancelDrain()
		if err := checkoutSvc.Shutdown(drainCtx); err != nil {
			errs = append(errs, fmt.Errorf("checkout shutdown error: %w", err))
		}
		if err := errors.Join(errs...); err != nil {
			return err
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
