package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/lab-report-analyzer/internal/api"
	"github.com/lab-report-analyzer/internal/config"
	"github.com/lab-report-analyzer/internal/domain"
	"github.com/lab-report-analyzer/internal/reference"
	"github.com/lab-report-analyzer/internal/service"
	"github.com/lab-report-analyzer/pkg/external"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := newLogger(cfg.Logging)

	catalog := reference.DefaultCatalog()
	resolver := reference.NewResolver(catalog, logger)

	var structurer service.Structurer
	if cfg.Structurer.Enabled {
		var cache *external.CacheClient
		if cfg.Cache.Enabled {
			cache, err = external.NewCacheClient(cfg.Cache)
			if err != nil {
				logger.WithError(err).Warn("Cache unavailable, structuring responses will not be cached")
			}
		}
		structurer = external.NewStructurerClient(cfg.Structurer, cache, logger)
	}

	analyzer := service.NewAnalyzer(catalog, resolver, structurer, logger)

	logger.WithFields(logrus.Fields{
		"host":            cfg.Server.Host,
		"port":            cfg.Server.Port,
		"reference_tests": catalog.Len(),
		"structurer":      cfg.Structurer.Enabled,
	}).Info("Starting lab report analyzer")

	server := api.NewServer(configManager, analyzer, catalog, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if strings.ToLower(cfg.Format) == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.Output == "stderr" {
		logger.SetOutput(os.Stderr)
	} else {
		logger.SetOutput(os.Stdout)
	}

	return logger
}
