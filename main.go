package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"

	"statflow/config"
	"statflow/internal/pipeline"
	"statflow/logger"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	if cfg.Metrics.Enabled {
		logger.InitCloudWatch(cfg.Metrics.Region, cfg.Metrics.Namespace)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Statflow.Name,
		"version": cfg.Statflow.Version,
		"env":     config.AppEnvironment(),
	}).Info("starting statflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	start := time.Now()
	// One bad run is observed through the logs, not through the exit code.
	if err := pipeline.New(cfg).Run(ctx); err != nil {
		log.WithError(err).Error("run finished with errors")
	}
	log.WithFields(logger.Fields{
		"duration_ms": float64(time.Since(start).Nanoseconds()) / 1e6,
	}).Info("total execution time")
}
