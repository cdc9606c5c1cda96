package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/internal/api"
	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/internal/config"
	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/internal/coordinator"
	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/internal/driver"
	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/internal/engine"
	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/internal/launcher"
	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/internal/optimizer"
	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/internal/ratelimit"
	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/internal/session"
	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/internal/state"
	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/internal/status"
	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/internal/stream"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	logger, err := buildLogger()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Fatal("configuration", zap.Error(err))
	}

	logger.Info("starting moderator session engine",
		zap.String("addr", cfg.Addr),
		zap.String("browser_mode", string(cfg.BrowserMode)),
		zap.String("chat_url", cfg.ChatURL))

	pw, err := driver.NewPlaywright(cfg.NavigationTimeout)
	if err != nil {
		logger.Fatal("start browser driver", zap.Error(err))
	}
	defer pw.Stop()

	var browserLauncher launcher.Launcher
	switch cfg.BrowserMode {
	case config.ModeContainer:
		ctr, err := launcher.NewContainer(pw, cfg.DataRoot)
		if err != nil {
			logger.Fatal("create container launcher", zap.Error(err))
		}
		defer ctr.Close()

		pullCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := ctr.EnsureImage(pullCtx); err != nil {
			logger.Fatal("pull browser image", zap.Error(err))
		}
		browserLauncher = ctr
	default:
		browserLauncher = launcher.NewLocal(pw, cfg.DataRoot, cfg.Headless)
	}

	registry := session.NewRegistry(browserLauncher, cfg.MaxConcurrentBrowsers, logger)
	defer registry.DisposeAll()

	detector := state.NewDetector(state.DefaultSelectorSet(), logger)
	coord := coordinator.New(cfg.OperationWaitTimeout, logger)

	cache, err := optimizer.NewBackupCache(cfg.BackupRoot)
	if err != nil {
		logger.Fatal("open backup cache", zap.Error(err))
	}
	opt := optimizer.New(registry, cache, cfg.DataRoot, cfg.SessionSizeLimitBytes, logger)

	var statusStore status.Store
	if cfg.RedisURL != "" {
		redisStore, err := status.NewRedisStore(cfg.RedisURL)
		if err != nil {
			logger.Fatal("connect to redis", zap.Error(err))
		}
		defer redisStore.Close()
		statusStore = redisStore
		logger.Info("status store: redis")
	} else {
		statusStore = status.NewMemoryStore()
		logger.Info("status store: in-memory")
	}

	eng := engine.New(cfg, registry, detector, coord, opt, statusStore, logger)

	streamServer := stream.NewServer(eng, cfg.MonitorInterval, logger)
	rateLimiter := ratelimit.NewLimiter(cfg.RatePerHour, cfg.RateBurst)

	handler := api.NewHandler(eng, logger)
	router := handler.SetupRoutes(streamServer, rateLimiter, cfg.RatePerHour)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * cfg.MonitorTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

// buildLogger mirrors production zap config with a LOG_LEVEL override.
func buildLogger() (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		parsed, err := zap.ParseAtomicLevel(lvl)
		if err != nil {
			return nil, err
		}
		zcfg.Level = parsed
	}
	return zcfg.Build()
}
