// Package config provides configuration management for the Cutdeck Agent.
// Values start from defaults, are overlaid by an optional TOML file and
// finally by environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// Default values
	DefaultPort     = 8787
	DefaultLogLevel = "info"
	DefaultDataDir  = ".cutdeck"

	// Environment variable names
	EnvConfig       = "CUTDECK_CONFIG"
	EnvPort         = "CUTDECK_PORT"
	EnvLogLevel     = "CUTDECK_LOG_LEVEL"
	EnvDataDir      = "CUTDECK_DATA_DIR"
	EnvLibraryDir   = "CUTDECK_LIBRARY_DIR"
	EnvMediaBaseURL = "CUTDECK_MEDIA_BASE_URL"
	EnvMediaToken   = "CUTDECK_MEDIA_TOKEN"
	EnvHeadless     = "CUTDECK_HEADLESS"

	// File names inside the data directory
	DBFilename     = "cutdeck.db"
	ConfigFilename = "cutdeck.toml"

	// Editor tunables
	DefaultHistoryLimit         = 50
	DefaultMinSplitSeconds      = 0.5
	DefaultDriftTolerance       = 0.3
	DefaultMainSwitchTimeout    = 2 * time.Second
	DefaultOverlaySwitchTimeout = 3 * time.Second
	DefaultFrameInterval        = 16 * time.Millisecond
	DefaultMaxDrafts            = 10

	// Cache settings
	DefaultCacheMaxBytes  = 2 * 1024 * 1024 * 1024 // 2GB per session
	DefaultMaxSourceBytes = 512 * 1024 * 1024
	DefaultPrefetchers    = 2
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	LibraryDir() string
	MediaBaseURL() string
	MediaToken() string
	Headless() bool
	Editor() EditorConfig
	Media() MediaConfig
}

// Duration is a time.Duration written as "2s" or "16ms" in TOML.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type EditorConfig struct {
	HistoryLimit         int      `toml:"history_limit"`
	MinSplitSeconds      float64  `toml:"min_split_seconds"`
	DriftTolerance       float64  `toml:"drift_tolerance"`
	MainSwitchTimeout    Duration `toml:"main_switch_timeout"`
	OverlaySwitchTimeout Duration `toml:"overlay_switch_timeout"`
	FrameInterval        Duration `toml:"frame_interval"`
	MaxDrafts            int      `toml:"max_drafts"`
}

type MediaConfig struct {
	BaseURL        string `toml:"base_url"`
	Token          string `toml:"token"`
	CacheMaxBytes  int64  `toml:"cache_max_bytes"`
	MaxSourceBytes int64  `toml:"max_source_bytes"`
	Prefetchers    int    `toml:"prefetchers"`
}

// File is the on-disk TOML layout.
type File struct {
	Port       int          `toml:"port"`
	LogLevel   string       `toml:"log_level"`
	LibraryDir string       `toml:"library_dir"`
	Headless   bool         `toml:"headless"`
	Editor     EditorConfig `toml:"editor"`
	Media      MediaConfig  `toml:"media"`
}

// Defaults returns the configuration used when no file or env override
// is present.
func Defaults() File {
	return File{
		Port:     DefaultPort,
		LogLevel: DefaultLogLevel,
		Editor: EditorConfig{
			HistoryLimit:         DefaultHistoryLimit,
			MinSplitSeconds:      DefaultMinSplitSeconds,
			DriftTolerance:       DefaultDriftTolerance,
			MainSwitchTimeout:    Duration(DefaultMainSwitchTimeout),
			OverlaySwitchTimeout: Duration(DefaultOverlaySwitchTimeout),
			FrameInterval:        Duration(DefaultFrameInterval),
			MaxDrafts:            DefaultMaxDrafts,
		},
		Media: MediaConfig{
			CacheMaxBytes:  DefaultCacheMaxBytes,
			MaxSourceBytes: DefaultMaxSourceBytes,
			Prefetchers:    DefaultPrefetchers,
		},
	}
}

// AppConfig is the resolved configuration.
type AppConfig struct {
	file     File
	dataDir  string
	filePath string
}

// New creates a new AppConfig from defaults, the TOML file and environment
// variable overrides, in that order.
func New() (*AppConfig, error) {
	cfg := &AppConfig{
		file:    Defaults(),
		dataDir: defaultDataDir(),
	}

	// The data directory decides where the config file lives.
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	cfg.filePath = filepath.Join(cfg.dataDir, ConfigFilename)
	if p := os.Getenv(EnvConfig); p != "" {
		cfg.filePath = p
	}

	if err := cfg.loadFile(); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) loadFile() error {
	data, err := os.ReadFile(c.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Decoding over the defaults keeps every key the file leaves out.
	if _, err := toml.Decode(string(data), &c.file); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", c.filePath, err)
	}
	return nil
}

func (c *AppConfig) applyEnv() error {
	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		c.file.Port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		c.file.LogLevel = ll
	}
	if ld := os.Getenv(EnvLibraryDir); ld != "" {
		c.file.LibraryDir = ld
	}
	if u := os.Getenv(EnvMediaBaseURL); u != "" {
		c.file.Media.BaseURL = u
	}
	if tok := os.Getenv(EnvMediaToken); tok != "" {
		c.file.Media.Token = tok
	}
	if h := os.Getenv(EnvHeadless); h != "" {
		headless, err := strconv.ParseBool(h)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		c.file.Headless = headless
	}
	return nil
}

func (c *AppConfig) validate() error {
	if c.file.Port < 1 || c.file.Port > 65535 {
		return fmt.Errorf("invalid port %d: port must be between 1 and 65535", c.file.Port)
	}
	switch strings.ToLower(c.file.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.file.LogLevel)
	}

	e := c.file.Editor
	if e.HistoryLimit <= 0 {
		return fmt.Errorf("editor.history_limit must be positive")
	}
	if e.MaxDrafts <= 0 {
		return fmt.Errorf("editor.max_drafts must be positive")
	}
	if e.DriftTolerance <= 0 {
		return fmt.Errorf("editor.drift_tolerance must be positive")
	}
	if e.MainSwitchTimeout <= 0 || e.OverlaySwitchTimeout <= 0 || e.FrameInterval <= 0 {
		return fmt.Errorf("editor timeouts and frame_interval must be positive")
	}
	if c.file.Media.CacheMaxBytes <= 0 || c.file.Media.MaxSourceBytes <= 0 {
		return fmt.Errorf("media byte limits must be positive")
	}
	if c.file.Media.Prefetchers <= 0 {
		return fmt.Errorf("media.prefetchers must be positive")
	}
	return nil
}

// Port returns the HTTP server port
func (c *AppConfig) Port() int {
	return c.file.Port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *AppConfig) LogLevel() string {
	return c.file.LogLevel
}

// DataDir returns the data directory path
func (c *AppConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *AppConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// FilePath is where the TOML file is read from and saved to.
func (c *AppConfig) FilePath() string {
	return c.filePath
}

// LibraryDir returns the local media library root, empty when disabled.
func (c *AppConfig) LibraryDir() string {
	return c.file.LibraryDir
}

func (c *AppConfig) MediaBaseURL() string {
	return strings.TrimRight(c.file.Media.BaseURL, "/")
}

func (c *AppConfig) MediaToken() string {
	return c.file.Media.Token
}

// Headless disables the system tray.
func (c *AppConfig) Headless() bool {
	return c.file.Headless
}

func (c *AppConfig) Editor() EditorConfig {
	return c.file.Editor
}

func (c *AppConfig) Media() MediaConfig {
	return c.file.Media
}

// File returns the resolved values in file layout.
func (c *AppConfig) File() File {
	return c.file
}

// Save writes f to path as TOML, creating the parent directory.
func Save(path string, f File) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer out.Close()

	if err := toml.NewEncoder(out).Encode(f); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return out.Close()
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
