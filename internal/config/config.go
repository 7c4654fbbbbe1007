package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/schaermu/mindesktop/internal/storage"
)

// GitBackend selects the implementation used to fetch the offline site
type GitBackend string

const (
	BackendExec  GitBackend = "exec"
	BackendGoGit GitBackend = "gogit"
)

const (
	// DefaultAppName is used for the window title and the user data directory
	DefaultAppName = "MinDesktop"
	// DefaultRemoteURL is shown until an offline copy has been synced
	DefaultRemoteURL = "https://example.com/"

	// DebugEnv enables development mode when set to TRUE
	DebugEnv = "MINDESKTOP_DEBUG"
)

// Config represents the complete mindesktop configuration
type Config struct {
	App    AppConfig    `yaml:"app"`
	Paths  PathsConfig  `yaml:"paths"`
	Window WindowConfig `yaml:"window"`
	Git    GitConfig    `yaml:"git"`
	Auth   AuthConfig   `yaml:"auth"`
	Sync   SyncConfig   `yaml:"sync"`
	Notify NotifyConfig `yaml:"notify"`
}

// AppConfig configures application identity and the remote site
type AppConfig struct {
	Name      string `yaml:"name"`
	RemoteURL string `yaml:"remote_url"`
}

// PathsConfig configures local filesystem paths
type PathsConfig struct {
	UserDataDir string `yaml:"user_data_dir"`
	AssetsDir   string `yaml:"assets_dir"`
	PreloadPath string `yaml:"preload_path"`
}

// WindowConfig configures the initial window geometry
type WindowConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	MinWidth  int `yaml:"min_width"`
	MinHeight int `yaml:"min_height"`
}

// GitConfig configures how the offline site is fetched
type GitConfig struct {
	Backend GitBackend    `yaml:"backend"`
	Depth   int           `yaml:"depth"`
	Timeout time.Duration `yaml:"timeout"`
}

// AuthConfig configures Git authentication
type AuthConfig struct {
	SSHKeyFile     string `yaml:"ssh_key_file"`
	HTTPSTokenFile string `yaml:"https_token_file"`
}

// SyncConfig configures sync behavior
type SyncConfig struct {
	// OfflineFallback adopts a previously published site when the startup sync fails.
	OfflineFallback *bool `yaml:"offline_fallback"`
}

// NotifyConfig configures desktop notifications
type NotifyConfig struct {
	DefaultIcon  string        `yaml:"default_icon"`
	IconCacheDir string        `yaml:"icon_cache_dir"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// Options are the runtime switches resolved once at startup and passed down.
type Options struct {
	DevelopmentMode bool
	PreloadPath     string
	AssetsPath      string
	ChromeEnabled   bool
	StartHidden     bool
}

// Default returns a configuration with all defaults applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// LoadOptional behaves like Load but falls back to defaults when the file does not exist.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return Default()
	}
	return cfg, err
}

// Parse decodes YAML configuration data
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.expandEnv()

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// expandEnv expands environment variables in all path-like string fields
func (c *Config) expandEnv() {
	c.App.RemoteURL = os.ExpandEnv(c.App.RemoteURL)
	c.Paths.UserDataDir = os.ExpandEnv(c.Paths.UserDataDir)
	c.Paths.AssetsDir = os.ExpandEnv(c.Paths.AssetsDir)
	c.Paths.PreloadPath = os.ExpandEnv(c.Paths.PreloadPath)
	c.Auth.SSHKeyFile = os.ExpandEnv(c.Auth.SSHKeyFile)
	c.Auth.HTTPSTokenFile = os.ExpandEnv(c.Auth.HTTPSTokenFile)
	c.Notify.DefaultIcon = os.ExpandEnv(c.Notify.DefaultIcon)
	c.Notify.IconCacheDir = os.ExpandEnv(c.Notify.IconCacheDir)
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() error {
	if c.App.Name == "" {
		c.App.Name = DefaultAppName
	}
	if c.App.RemoteURL == "" {
		c.App.RemoteURL = DefaultRemoteURL
	}
	if c.Paths.UserDataDir == "" {
		dir, err := storage.DataDir(c.App.Name)
		if err != nil {
			return fmt.Errorf("failed to resolve user data directory: %w", err)
		}
		c.Paths.UserDataDir = dir
	}
	if c.Window.Width == 0 {
		c.Window.Width = 800
	}
	if c.Window.Height == 0 {
		c.Window.Height = 600
	}
	if c.Window.MinWidth == 0 {
		c.Window.MinWidth = 800
	}
	if c.Window.MinHeight == 0 {
		c.Window.MinHeight = 600
	}
	if c.Git.Backend == "" {
		c.Git.Backend = BackendExec
	}
	if c.Git.Depth == 0 {
		c.Git.Depth = 1
	}
	if c.Git.Timeout == 0 {
		c.Git.Timeout = 5 * time.Minute
	}
	if c.Sync.OfflineFallback == nil {
		enabled := true
		c.Sync.OfflineFallback = &enabled
	}
	if c.Notify.IconCacheDir == "" {
		c.Notify.IconCacheDir = filepath.Join(c.Paths.UserDataDir, "icons")
	}
	if c.Notify.FetchTimeout == 0 {
		c.Notify.FetchTimeout = 10 * time.Second
	}
	return nil
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.App.RemoteURL == "" {
		return fmt.Errorf("app.remote_url is required")
	}
	if !strings.HasPrefix(c.App.RemoteURL, "https://") && !strings.HasPrefix(c.App.RemoteURL, "http://") {
		return fmt.Errorf("app.remote_url must be an http(s) URL: %s", c.App.RemoteURL)
	}

	if !filepath.IsAbs(c.Paths.UserDataDir) {
		return fmt.Errorf("paths.user_data_dir must be an absolute path: %s", c.Paths.UserDataDir)
	}

	switch c.Git.Backend {
	case BackendExec, BackendGoGit:
		// valid
	default:
		return fmt.Errorf("invalid git.backend: %s (must be exec or gogit)", c.Git.Backend)
	}
	if c.Git.Depth < 1 {
		return fmt.Errorf("git.depth must be at least 1, got %d", c.Git.Depth)
	}
	if c.Git.Timeout < 0 {
		return fmt.Errorf("git.timeout must be positive, got %s", c.Git.Timeout)
	}

	// Validate auth: only one auth method may be configured
	if c.Auth.SSHKeyFile != "" && c.Auth.HTTPSTokenFile != "" {
		return fmt.Errorf("auth: only one of ssh_key_file or https_token_file may be set")
	}

	if c.Window.MinWidth > c.Window.Width || c.Window.MinHeight > c.Window.Height {
		return fmt.Errorf("window: minimum size %dx%d exceeds initial size %dx%d",
			c.Window.MinWidth, c.Window.MinHeight, c.Window.Width, c.Window.Height)
	}

	return nil
}

// Resolve computes the runtime options. dev forces development mode on; otherwise
// the DebugEnv variable decides, matching the old DEBUG=TRUE convention.
func (c *Config) Resolve(dev, hidden bool) Options {
	if !dev {
		dev = strings.EqualFold(os.Getenv(DebugEnv), "TRUE")
	}
	opts := Options{
		DevelopmentMode: dev,
		ChromeEnabled:   dev,
		StartHidden:     hidden,
	}
	if dev {
		opts.AssetsPath = c.Paths.AssetsDir
		opts.PreloadPath = c.Paths.PreloadPath
	}
	return opts
}

// SiteDir returns the directory holding the published offline site
func (c *Config) SiteDir() string {
	return filepath.Join(c.Paths.UserDataDir, "site")
}

// DatabasePath returns the path of the preferences database
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.UserDataDir, "prefs.db")
}

// OfflineFallbackEnabled reports whether a stale site may be adopted when syncing fails
func (c *Config) OfflineFallbackEnabled() bool {
	return c.Sync.OfflineFallback == nil || *c.Sync.OfflineFallback
}

// AuthMethod returns a description of the configured auth method
func (c *Config) AuthMethod() string {
	if c.Auth.SSHKeyFile != "" {
		return "ssh"
	}
	if c.Auth.HTTPSTokenFile != "" {
		return "https"
	}
	return "none"
}

// IsHTTPS returns true if url uses HTTPS
func IsHTTPS(url string) bool {
	return strings.HasPrefix(url, "https://")
}

// IsSSH returns true if url uses SSH
func IsSSH(url string) bool {
	return strings.HasPrefix(url, "git@") || strings.HasPrefix(url, "ssh://")
}
