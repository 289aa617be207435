package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cutdeck/cutdeck-agent/internal/api"
	"github.com/cutdeck/cutdeck-agent/internal/config"
	"github.com/cutdeck/cutdeck-agent/internal/library"
	"github.com/cutdeck/cutdeck-agent/internal/logging"
	"github.com/cutdeck/cutdeck-agent/internal/media"
	"github.com/cutdeck/cutdeck-agent/internal/playback"
	"github.com/cutdeck/cutdeck-agent/internal/session"
	"github.com/cutdeck/cutdeck-agent/internal/ui"
	"github.com/cutdeck/cutdeck-agent/internal/watcher"
)

var serveHeadless bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the editing API (default)",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveHeadless, "headless", false, "run without the system tray")
	rootCmd.Flags().BoolVar(&serveHeadless, "headless", false, "run without the system tray")
}

func runServe(cmd *cobra.Command, args []string) error {
	startTime := time.Now()

	a, err := openApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg, logger := a.cfg, a.logger
	logger.Info("starting cutdeck agent", "version", config.Version, "data_dir", cfg.DataDir())

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	deviceID, err := ensureDeviceID(ctx, a.repo)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}
	authToken, err := a.store.EnsureAuthToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║                    CUTDECK AGENT v%-24s║\n", config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Device ID:  %-45s ║\n", deviceID[:16]+"...")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	router, files := a.mediaResolvers()

	prefetcher := media.NewPrefetcher(cfg.Media().Prefetchers, 0, logging.WithComponent(logger, "prefetch"))
	go prefetcher.Start(ctx)

	sessions := session.NewManager(router, prefetcher, a.sessionOptions(), logger)
	shared := media.NewCache(router, cfg.Media().CacheMaxBytes, logging.WithComponent(logger, "media"))

	var lib *library.Library
	if dir := cfg.LibraryDir(); dir != "" {
		lib = library.New(dir, logging.WithComponent(logger, "library"))
		lib.Updated().Subscribe(func(n int) {
			logger.Debug("library updated", "items", n)
		})
		if err := lib.Watch(ctx, watcher.NewFSWatcher(logger)); err != nil {
			logger.Warn("library watch unavailable, serving last scan only", "dir", logging.SanitizePath(dir), "error", err)
		}
	}

	apiServer := api.NewServer(api.ServerConfig{
		Port:           cfg.Port(),
		Version:        config.Version,
		Sessions:       sessions,
		Store:          a.store,
		Repository:     a.repo,
		Library:        lib,
		PlaybackServer: playback.NewServer(logger),
		Media:          shared,
		Files:          files,
		Prefetcher:     prefetcher,
		Logger:         logger,
		StartTime:      startTime,
		DeviceID:       deviceID,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	if serveHeadless || cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Sessions:   sessions,
			Prefetcher: prefetcher,
			Library:    lib,
			Logger:     logger,
			OnCopyToken: func() error {
				fmt.Printf("Auth Token: %s\n", authToken)
				return nil
			},
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Run(ctx)
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}
	if err := sessions.CloseAll(); err != nil {
		logger.Error("failed to close sessions", "error", err)
	}
	if err := shared.Close(); err != nil {
		logger.Error("failed to release media", "error", err)
	}
	cancel()

	logger.Info("shutdown complete")
	return nil
}
