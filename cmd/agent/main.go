package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cutdeck/cutdeck-agent/internal/compositor"
	"github.com/cutdeck/cutdeck-agent/internal/config"
	"github.com/cutdeck/cutdeck-agent/internal/db"
	"github.com/cutdeck/cutdeck-agent/internal/logging"
	"github.com/cutdeck/cutdeck-agent/internal/media"
	"github.com/cutdeck/cutdeck-agent/internal/session"
	"github.com/cutdeck/cutdeck-agent/internal/store"
)

const configDeviceID = "device_id"

var rootCmd = &cobra.Command{
	Use:   "cutdeck-agent",
	Short: "Local multi-track video editing engine",
	Long: `Cutdeck Agent runs editing sessions for the browser editor: track model,
playback clock, undo history and per-track compositing, served over a
loopback-only HTTP API.

Without a subcommand it starts the server.`,
	Version:       config.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(draftsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app holds what every subcommand opens: configuration, logger and store.
type app struct {
	cfg      *config.AppConfig
	logger   *slog.Logger
	database *db.DB
	repo     *store.SQLiteRepository
	store    *store.Service
}

func openApp(logger *slog.Logger) (*app, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	if logger == nil {
		logger = logging.NewLogger(cfg.LogLevel())
	}

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	repo := store.NewRepository(database.Conn())

	return &app{
		cfg:      cfg,
		logger:   logger,
		database: database,
		repo:     repo,
		store:    store.NewService(repo, cfg.Editor().MaxDrafts, logging.WithComponent(logger, "store")),
	}, nil
}

func (a *app) Close() error {
	return a.database.Close()
}

// mediaResolvers routes file refs to the library directory and everything
// else to the remote media endpoint, when those are configured.
func (a *app) mediaResolvers() (media.Router, *media.FileResolver) {
	var router media.Router
	mc := a.cfg.Media()
	if dir := a.cfg.LibraryDir(); dir != "" {
		router.Files = media.NewFileResolver(dir, mc.MaxSourceBytes)
	}
	if base := a.cfg.MediaBaseURL(); base != "" {
		router.Fallback = media.NewHTTPResolver(base, a.cfg.MediaToken(), mc.MaxSourceBytes, logging.WithComponent(a.logger, "media"))
	}
	return router, router.Files
}

func (a *app) sessionOptions() session.Options {
	e := a.cfg.Editor()
	return session.Options{
		HistoryLimit:    e.HistoryLimit,
		MinSplitSeconds: e.MinSplitSeconds,
		FrameInterval:   e.FrameInterval.Std(),
		CacheMaxBytes:   a.cfg.Media().CacheMaxBytes,
		Compositor: compositor.Config{
			DriftTolerance:       e.DriftTolerance,
			MainSwitchTimeout:    e.MainSwitchTimeout.Std(),
			OverlaySwitchTimeout: e.OverlaySwitchTimeout.Std(),
		},
	}
}

func ensureDeviceID(ctx context.Context, repo store.Repository) (string, error) {
	existing, err := repo.GetConfig(ctx, configDeviceID)
	if err == nil && existing != "" {
		return existing, nil
	}

	idBytes := make([]byte, 16)
	if _, err := rand.Read(idBytes); err != nil {
		return "", err
	}
	deviceID := hex.EncodeToString(idBytes)

	if err := repo.SetConfig(ctx, configDeviceID, deviceID); err != nil {
		return "", err
	}
	return deviceID, nil
}
