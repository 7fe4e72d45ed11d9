// Image Super-Resolution desktop application
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/theme"
	"github.com/sirupsen/logrus"

	"image-super-resolution/internal/config"
	"image-super-resolution/internal/core"
	"image-super-resolution/internal/gui"
	imgio "image-super-resolution/internal/io"
	"image-super-resolution/internal/logging"
	"image-super-resolution/internal/metrics"
	"image-super-resolution/internal/model"
	"image-super-resolution/internal/persist"
	"image-super-resolution/internal/preview"
)

const (
	AppName    = "Image Super-Resolution"
	AppID      = "com.example.image-super-resolution"
	AppVersion = "1.0.0"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the YAML configuration file")
	debugMode := flag.Bool("debug", false, "Enable debug mode with verbose logging")
	userID := flag.Int64("user", 0, "Skip login and act as this user id")
	flag.Parse()

	if err := run(*configPath, *debugMode, *userID); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

func run(configPath string, debugMode bool, userID int64) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	cfg.Logging.Debug = debugMode
	logger, closeLog, err := logging.Setup(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() {
		_ = closeLog()
	}()

	logger.WithFields(logrus.Fields{
		"version":    AppVersion,
		"debug_mode": debugMode,
		"config":     configPath,
	}).Info("Starting Image Super-Resolution")

	store, err := persist.NewStore(cfg.Database.StoreConfig(), logger)
	if err != nil {
		return fmt.Errorf("invalid database configuration: %w", err)
	}
	ensureSchema(store, logger)

	net, err := model.Load(model.Options{
		Path:         cfg.Model.Path,
		Architecture: model.DefaultArchitecture,
		Device:       model.Device{Backend: cfg.Model.Backend, Target: cfg.Model.Target},
		ProbeSize:    cfg.Model.ProbeSize,
	}, logger)
	if err != nil {
		logger.WithError(err).WithField("path", cfg.Model.Path).Fatal("Failed to load super-resolution model")
	}

	resampler, err := preview.ParseResampler(cfg.Preview.Resampler)
	if err != nil {
		return err
	}

	loader := imgio.NewImageLoader(logger)
	services := gui.Services{
		Decoder:  loader,
		Upscaler: core.NewUpscaler(net, logger),
		Saver: persist.NewSaver(persist.SaverConfig{
			Encoder:               loader,
			Store:                 store,
			DefaultExtension:      cfg.Persistence.DefaultExtension,
			RollbackFileOnDBError: cfg.Persistence.RollbackFileOnDBError,
			Logger:                logger,
		}),
		Auth:      store,
		Library:   store,
		Renderer:  preview.NewRenderer(cfg.Preview.MaxWidth, cfg.Preview.MaxHeight, resampler, logger),
		Evaluator: metrics.NewEvaluator(),
	}

	fyneApp := app.NewWithID(AppID)
	fyneApp.SetIcon(theme.MediaPhotoIcon())

	mainApp := gui.NewApplication(fyneApp, services, gui.Options{
		Width:  cfg.UI.Width,
		Height: cfg.UI.Height,
		UserID: userID,
		OnShutdown: func() {
			if err := net.Close(); err != nil {
				logger.WithError(err).Warn("Failed to release model")
			}
		},
	}, logger)
	mainApp.ShowAndRun()

	logger.Info("Application shutting down gracefully")
	return nil
}

// ensureSchema prepares the tables. The app still starts without a database;
// saves will report the failure.
func ensureSchema(store *persist.Store, logger *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := store.EnsureSchema(ctx); err != nil {
		logger.WithError(err).WithField("dialect", store.Dialect()).Warn("Database not ready, saves will fail until it is reachable")
	}
}
