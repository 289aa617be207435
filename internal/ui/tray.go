package ui

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/cutdeck/cutdeck-agent/internal/library"
	"github.com/cutdeck/cutdeck-agent/internal/media"
	"github.com/cutdeck/cutdeck-agent/internal/session"
)

const refreshInterval = 2 * time.Second

type Tray struct {
	sessions   *session.Manager
	prefetcher *media.Prefetcher
	library    *library.Library
	logger     *slog.Logger

	statusItem   *systray.MenuItem
	sessionsItem *systray.MenuItem
	libraryItem  *systray.MenuItem
	pauseItem    *systray.MenuItem

	mu sync.Mutex

	onCopyToken func() error
	onQuit      func()
}

type TrayConfig struct {
	Sessions   *session.Manager
	Prefetcher *media.Prefetcher
	Library    *library.Library
	Logger     *slog.Logger
	// OnCopyToken is called from the "Show API Token" item.
	OnCopyToken func() error
	OnQuit      func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		sessions:    cfg.Sessions,
		prefetcher:  cfg.Prefetcher,
		library:     cfg.Library,
		logger:      cfg.Logger,
		onCopyToken: cfg.OnCopyToken,
		onQuit:      cfg.OnQuit,
	}
}

// Run blocks until the tray exits. ctx stops the periodic refresh.
func (t *Tray) Run(ctx context.Context) {
	systray.Run(func() { t.onReady(ctx) }, t.onExit)
}

func (t *Tray) onReady(ctx context.Context) {
	systray.SetIcon(iconBytes())
	systray.SetTitle("Cutdeck")
	systray.SetTooltip("Cutdeck Agent")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Current agent status")
	t.statusItem.Disable()

	t.sessionsItem = systray.AddMenuItem("Sessions: 0", "Open editing sessions")
	t.sessionsItem.Disable()

	t.libraryItem = systray.AddMenuItem("Library: 0 files", "Indexed local media")
	t.libraryItem.Disable()

	systray.AddSeparator()

	t.pauseItem = systray.AddMenuItem("Pause Prefetch", "Stop downloading media in the background")
	if t.prefetcher == nil {
		t.pauseItem.Disable()
	}

	tokenItem := systray.AddMenuItem("Show API Token", "Log the token editors use to connect")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Cutdeck Agent")

	go func() {
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.refresh()
			case <-t.pauseItem.ClickedCh:
				t.togglePause()
			case <-tokenItem.ClickedCh:
				t.handleCopyToken()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			case <-ctx.Done():
				systray.Quit()
				return
			}
		}
	}()

	t.refresh()
	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) paused() bool {
	return t.prefetcher != nil && t.prefetcher.IsPaused()
}

func (t *Tray) togglePause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.prefetcher == nil {
		return
	}

	if t.prefetcher.IsPaused() {
		t.prefetcher.Resume()
		t.pauseItem.SetTitle("Pause Prefetch")
	} else {
		t.prefetcher.Pause()
		t.pauseItem.SetTitle("Resume Prefetch")
	}
	t.statusItem.SetTitle("Status: " + statusLabel(t.sessionCount(), t.paused()))
}

func (t *Tray) handleCopyToken() {
	if t.onCopyToken != nil {
		if err := t.onCopyToken(); err != nil {
			t.logger.Error("failed to show token", "error", err)
		}
	}
}

func (t *Tray) sessionCount() int {
	if t.sessions == nil {
		return 0
	}
	return t.sessions.Count()
}

func (t *Tray) refresh() {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.sessionCount()
	t.statusItem.SetTitle("Status: " + statusLabel(n, t.paused()))
	t.sessionsItem.SetTitle(fmt.Sprintf("Sessions: %d", n))
	if t.library != nil {
		t.libraryItem.SetTitle(fmt.Sprintf("Library: %d files", t.library.Count()))
	}
}

func (t *Tray) Quit() {
	systray.Quit()
}

func statusLabel(sessions int, paused bool) string {
	switch {
	case paused:
		return "Paused"
	case sessions > 0:
		return "Editing"
	default:
		return "Idle"
	}
}
