package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// validConfig returns a configuration that passes Validate
func validConfig(t *testing.T) Config {
	t.Helper()
	cfg := Config{
		Paths: PathsConfig{UserDataDir: "/absolute/data"},
	}
	if err := cfg.applyDefaults(); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestLoad(t *testing.T) {
	// Create a temporary config file
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = os.Remove(tmpfile.Name())
	}()

	content := `
app:
  name: "Acme Docs"
  remote_url: "https://docs.acme.example/"

paths:
  user_data_dir: "/home/user/.local/share/acme"

window:
  width: 1280
  height: 800

git:
  backend: "gogit"
  depth: 3
  timeout: "90s"

sync:
  offline_fallback: false

auth:
  https_token_file: "/home/user/.config/acme/token"
`

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpfile.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Verify loaded values
	if cfg.App.RemoteURL != "https://docs.acme.example/" {
		t.Errorf("expected remote url https://docs.acme.example/, got %s", cfg.App.RemoteURL)
	}
	if cfg.Git.Backend != BackendGoGit {
		t.Errorf("expected backend gogit, got %s", cfg.Git.Backend)
	}
	if cfg.Git.Depth != 3 {
		t.Errorf("expected depth 3, got %d", cfg.Git.Depth)
	}
	if cfg.Git.Timeout != 90*time.Second {
		t.Errorf("expected timeout 90s, got %s", cfg.Git.Timeout)
	}
	if cfg.Window.Width != 1280 || cfg.Window.MinWidth != 800 {
		t.Errorf("unexpected window size %+v", cfg.Window)
	}
	if cfg.OfflineFallbackEnabled() {
		t.Error("expected offline fallback to be disabled")
	}
	if cfg.Notify.IconCacheDir != "/home/user/.local/share/acme/icons" {
		t.Errorf("unexpected icon cache dir %s", cfg.Notify.IconCacheDir)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := Load(missing); err == nil {
		t.Fatal("expected error for missing file")
	}

	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	cfg, err := LoadOptional(missing)
	if err != nil {
		t.Fatalf("LoadOptional failed: %v", err)
	}
	if cfg.App.Name != DefaultAppName {
		t.Errorf("expected default app name, got %s", cfg.App.Name)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("app: [")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:   "valid config",
			modify: func(*Config) {},
		},
		{
			name:    "remote url without scheme",
			modify:  func(c *Config) { c.App.RemoteURL = "example.com" },
			wantErr: true,
		},
		{
			name:    "empty remote url",
			modify:  func(c *Config) { c.App.RemoteURL = "" },
			wantErr: true,
		},
		{
			name:    "relative user data dir",
			modify:  func(c *Config) { c.Paths.UserDataDir = "relative/data" },
			wantErr: true,
		},
		{
			name:    "unknown backend",
			modify:  func(c *Config) { c.Git.Backend = "libgit2" },
			wantErr: true,
		},
		{
			name:    "zero depth",
			modify:  func(c *Config) { c.Git.Depth = 0 },
			wantErr: true,
		},
		{
			name:    "negative timeout",
			modify:  func(c *Config) { c.Git.Timeout = -time.Second },
			wantErr: true,
		},
		{
			name: "both auth methods",
			modify: func(c *Config) {
				c.Auth.SSHKeyFile = "/key"
				c.Auth.HTTPSTokenFile = "/token"
			},
			wantErr: true,
		},
		{
			name:    "minimum larger than initial size",
			modify:  func(c *Config) { c.Window.MinWidth = 1000 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.modify(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig(t)

	if cfg.App.Name != DefaultAppName {
		t.Errorf("expected app name %s, got %s", DefaultAppName, cfg.App.Name)
	}
	if cfg.App.RemoteURL != DefaultRemoteURL {
		t.Errorf("expected remote url %s, got %s", DefaultRemoteURL, cfg.App.RemoteURL)
	}
	if cfg.Git.Backend != BackendExec {
		t.Errorf("expected exec backend, got %s", cfg.Git.Backend)
	}
	if cfg.Git.Depth != 1 {
		t.Errorf("expected depth 1, got %d", cfg.Git.Depth)
	}
	if cfg.Git.Timeout != 5*time.Minute {
		t.Errorf("expected timeout 5m, got %s", cfg.Git.Timeout)
	}
	if !cfg.OfflineFallbackEnabled() {
		t.Error("expected offline fallback enabled by default")
	}
	if cfg.Notify.FetchTimeout != 10*time.Second {
		t.Errorf("expected icon fetch timeout 10s, got %s", cfg.Notify.FetchTimeout)
	}
}

func TestApplyDefaults_UserDataDir(t *testing.T) {
	dataHome := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dataHome)

	cfg := Config{App: AppConfig{Name: "Acme"}}
	if err := cfg.applyDefaults(); err != nil {
		t.Fatal(err)
	}
	if !filepath.IsAbs(cfg.Paths.UserDataDir) {
		t.Errorf("expected absolute user data dir, got %s", cfg.Paths.UserDataDir)
	}
	if filepath.Base(cfg.Paths.UserDataDir) != "Acme" {
		t.Errorf("expected user data dir named after the app, got %s", cfg.Paths.UserDataDir)
	}
}

func TestConfigHelpers(t *testing.T) {
	cfg := validConfig(t)

	if got, want := cfg.SiteDir(), filepath.Join("/absolute/data", "site"); got != want {
		t.Errorf("SiteDir() = %s, want %s", got, want)
	}
	if got, want := cfg.DatabasePath(), filepath.Join("/absolute/data", "prefs.db"); got != want {
		t.Errorf("DatabasePath() = %s, want %s", got, want)
	}
}

func TestResolve(t *testing.T) {
	cfg := validConfig(t)
	cfg.Paths.AssetsDir = "/src/frontend"
	cfg.Paths.PreloadPath = "/src/frontend/preload.js"

	tests := []struct {
		name   string
		env    string
		dev    bool
		hidden bool
		want   Options
	}{
		{
			name: "production",
			want: Options{},
		},
		{
			name:   "production hidden",
			hidden: true,
			want:   Options{StartHidden: true},
		},
		{
			name: "dev flag",
			dev:  true,
			want: Options{DevelopmentMode: true, ChromeEnabled: true, AssetsPath: "/src/frontend", PreloadPath: "/src/frontend/preload.js"},
		},
		{
			name: "debug environment",
			env:  "true",
			want: Options{DevelopmentMode: true, ChromeEnabled: true, AssetsPath: "/src/frontend", PreloadPath: "/src/frontend/preload.js"},
		},
		{
			name: "debug environment not TRUE",
			env:  "1",
			want: Options{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(DebugEnv, tt.env)
			if got := cfg.Resolve(tt.dev, tt.hidden); got != tt.want {
				t.Errorf("Resolve() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAuthMethod(t *testing.T) {
	tests := []struct {
		name string
		auth AuthConfig
		want string
	}{
		{
			name: "ssh key set",
			auth: AuthConfig{SSHKeyFile: "/key"},
			want: "ssh",
		},
		{
			name: "https token set",
			auth: AuthConfig{HTTPSTokenFile: "/token"},
			want: "https",
		},
		{
			name: "no auth",
			auth: AuthConfig{},
			want: "none",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Auth: tt.auth}
			if got := cfg.AuthMethod(); got != tt.want {
				t.Errorf("AuthMethod() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestIsHTTPS(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want bool
	}{
		{name: "https url", url: "https://github.com/test/repo.git", want: true},
		{name: "ssh url", url: "ssh://git@github.com/test/repo.git", want: false},
		{name: "git@ url", url: "git@github.com:test/repo.git", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsHTTPS(tt.url); got != tt.want {
				t.Errorf("IsHTTPS() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsSSH(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want bool
	}{
		{name: "git@ url", url: "git@github.com:test/repo.git", want: true},
		{name: "ssh:// url", url: "ssh://git@github.com/test/repo.git", want: true},
		{name: "https url", url: "https://github.com/test/repo.git", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSSH(tt.url); got != tt.want {
				t.Errorf("IsSSH() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("MINDESKTOP_TEST_HOME", "/home/testuser")

	cfg := Config{
		App: AppConfig{RemoteURL: "https://${MINDESKTOP_TEST_HOME}.example/"},
		Paths: PathsConfig{
			UserDataDir: "${MINDESKTOP_TEST_HOME}/.local/share/mindesktop",
			AssetsDir:   "${MINDESKTOP_TEST_HOME}/src/frontend",
			PreloadPath: "${MINDESKTOP_TEST_HOME}/src/preload.js",
		},
		Auth: AuthConfig{
			SSHKeyFile:     "${MINDESKTOP_TEST_HOME}/.ssh/key",
			HTTPSTokenFile: "${MINDESKTOP_TEST_HOME}/token",
		},
		Notify: NotifyConfig{
			DefaultIcon:  "${MINDESKTOP_TEST_HOME}/icon.png",
			IconCacheDir: "${MINDESKTOP_TEST_HOME}/icons",
		},
	}

	cfg.expandEnv()

	checks := []struct {
		name string
		got  string
		want string
	}{
		{"App.RemoteURL", cfg.App.RemoteURL, "https:///home/testuser.example/"},
		{"Paths.UserDataDir", cfg.Paths.UserDataDir, "/home/testuser/.local/share/mindesktop"},
		{"Paths.AssetsDir", cfg.Paths.AssetsDir, "/home/testuser/src/frontend"},
		{"Paths.PreloadPath", cfg.Paths.PreloadPath, "/home/testuser/src/preload.js"},
		{"Auth.SSHKeyFile", cfg.Auth.SSHKeyFile, "/home/testuser/.ssh/key"},
		{"Auth.HTTPSTokenFile", cfg.Auth.HTTPSTokenFile, "/home/testuser/token"},
		{"Notify.DefaultIcon", cfg.Notify.DefaultIcon, "/home/testuser/icon.png"},
		{"Notify.IconCacheDir", cfg.Notify.IconCacheDir, "/home/testuser/icons"},
	}

	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("expandEnv() %s = %s, want %s", c.name, c.got, c.want)
		}
	}
}
