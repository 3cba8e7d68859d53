package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	httpadapter "github.com/jonathan-nascimento51/glpi-dashboard-sub003/internal/adapter/http"
	"github.com/jonathan-nascimento51/glpi-dashboard-sub003/internal/cache"
	"github.com/jonathan-nascimento51/glpi-dashboard-sub003/internal/classify"
	"github.com/jonathan-nascimento51/glpi-dashboard-sub003/internal/config"
	"github.com/jonathan-nascimento51/glpi-dashboard-sub003/internal/domain"
	"github.com/jonathan-nascimento51/glpi-dashboard-sub003/internal/glpi"
	"github.com/jonathan-nascimento51/glpi-dashboard-sub003/internal/infra/logger"
	"github.com/jonathan-nascimento51/glpi-dashboard-sub003/internal/usecase"
)

// Version and build information
var (
	Version   = "development"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	version := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *version {
		fmt.Printf("GLPI Dashboard Metrics Service\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	appLog := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	appLog.WithFields(logrus.Fields{
		"version":     Version,
		"environment": cfg.Server.Environment,
	}).Info("starting glpi dashboard metrics service")

	// GLPI client and classification stack
	client := glpi.NewClient(glpi.Config{
		BaseURL:   cfg.GLPI.BaseURL,
		AppToken:  cfg.GLPI.AppToken,
		UserToken: cfg.GLPI.UserToken,
		Timeout:   cfg.GLPI.Timeout,
	}, appLog)

	classifier, err := initClassifier(cfg, client, appLog)
	if err != nil {
		appLog.WithError(err).Fatal("failed to build classifier")
	}

	metricsCache, closeCache, err := initCache(cfg, appLog)
	if err != nil {
		appLog.WithError(err).Fatal("failed to initialize cache")
	}
	defer closeCache()

	metricsUseCase := usecase.NewMetricsUseCase(
		client,
		client,
		classifier,
		metricsCache,
		cfg.Levels.Groups,
		cfg.GLPI.MaxInFlight,
		appLog,
	)

	server := httpadapter.NewServer(httpadapter.ServerConfig{
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		CORSOrigins:  cfg.Server.CORSOrigins,
	}, metricsUseCase, appLog)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			appLog.WithError(err).Fatal("failed to start server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	appLog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLog.WithError(err).Error("error during server shutdown")
	}

	// Releases the GLPI session token server-side
	client.Invalidate(shutdownCtx)

	appLog.Info("stopped")
}

// initClassifier wires the group -> profile -> name-table cascade
func initClassifier(cfg *config.Config, client *glpi.Client, appLog *logrus.Logger) (*classify.Classifier, error) {
	nameTable, err := cfg.LoadNameTable()
	if err != nil {
		return nil, fmt.Errorf("load name table: %w", err)
	}

	groupLevels := make(map[int]domain.ServiceLevel, len(cfg.Levels.Groups))
	for level, groupID := range cfg.Levels.Groups {
		groupLevels[groupID] = level
	}

	strategies := []classify.Strategy{
		&classify.GroupStrategy{Directory: client, Groups: groupLevels},
		&classify.ProfileStrategy{Directory: client, Profiles: cfg.Levels.Profiles},
		&classify.NameTableStrategy{Table: nameTable},
	}
	return classify.NewClassifier(strategies, cfg.GLPI.MaxInFlight, appLog), nil
}

// initCache selects the cache backend from configuration
func initCache(cfg *config.Config, appLog *logrus.Logger) (*cache.Cache, func(), error) {
	switch cfg.Cache.Backend {
	case "redis":
		store, err := cache.NewRedisStore(cfg.Cache.RedisURL, appLog)
		if err != nil {
			return nil, nil, err
		}
		return cache.New(store, cfg.Cache.TTL, appLog), func() { store.Close() }, nil
	default:
		store := cache.NewMemoryStore(cfg.Cache.CleanupInterval)
		return cache.New(store, cfg.Cache.TTL, appLog), func() { store.Close() }, nil
	}
}
