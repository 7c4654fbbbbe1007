//go:build integration

package tier1

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/schaermu/mindesktop/internal/testutil"
)

const defaultTimeout = 5 * time.Minute

// Harness builds the mindesktop binary once and runs it against an isolated
// home, config and user data directory.
type Harness struct {
	t          *testing.T
	binary     string
	home       string
	dataDir    string
	configPath string
}

// NewHarness creates a new test harness
func NewHarness(t *testing.T) *Harness {
	t.Helper()
	testutil.RequireGit(t)

	home := t.TempDir()
	return &Harness{
		t:          t,
		home:       home,
		dataDir:    filepath.Join(home, "data"),
		configPath: filepath.Join(home, "config.yaml"),
	}
}

// Build compiles the binary under test
func (h *Harness) Build(ctx context.Context) error {
	h.t.Helper()

	projectRoot, err := testutil.FindProjectRoot()
	if err != nil {
		return fmt.Errorf("get project root: %w", err)
	}

	h.binary = filepath.Join(h.t.TempDir(), "mindesktop")
	h.t.Logf("Building %s", h.binary)

	cmd := exec.CommandContext(ctx, "go", "build", "-o", h.binary, "./cmd/mindesktop")
	cmd.Dir = projectRoot
	cmd.Stdout = &testWriter{t: h.t, prefix: "[build] "}
	cmd.Stderr = &testWriter{t: h.t, prefix: "[build] "}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	return nil
}

// WriteConfig writes the config file passed to every run
func (h *Harness) WriteConfig(extra string) {
	h.t.Helper()
	content := fmt.Sprintf("paths:\n  user_data_dir: %q\n%s", h.dataDir, extra)
	if err := os.WriteFile(h.configPath, []byte(content), 0o600); err != nil {
		h.t.Fatalf("write config: %v", err)
	}
}

// Run executes the binary and returns stdout, stderr and the exit code
func (h *Harness) Run(ctx context.Context, args ...string) (string, string, int, error) {
	h.t.Helper()

	full := append([]string{"--config", h.configPath, "--log-format", "text", "--log-level", "debug"}, args...)
	cmd := exec.CommandContext(ctx, h.binary, full...)
	cmd.Env = append(os.Environ(),
		"HOME="+h.home,
		"XDG_CONFIG_HOME="+filepath.Join(h.home, ".config"),
		"XDG_DATA_HOME="+filepath.Join(h.home, ".local", "share"),
		"GIT_CONFIG_NOSYSTEM=1",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = io.MultiWriter(&stderr, &testWriter{t: h.t, prefix: "[mindesktop] "})

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return stdout.String(), stderr.String(), -1, err
		}
		exitCode = exitErr.ExitCode()
	}
	return stdout.String(), stderr.String(), exitCode, nil
}

// MustRun runs the binary and fails the test on a non-zero exit
func (h *Harness) MustRun(ctx context.Context, args ...string) string {
	h.t.Helper()
	stdout, stderr, code, err := h.Run(ctx, args...)
	if err != nil {
		h.t.Fatalf("run %v: %v", args, err)
	}
	if code != 0 {
		h.t.Fatalf("run %v: exit code %d\nstderr: %s", args, code, stderr)
	}
	return stdout
}

// ReadSiteFile reads a file of the published site
func (h *Harness) ReadSiteFile(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(h.dataDir, "site", name))
	return string(data), err
}

// Leftovers lists staging or retired directories still present in the data dir
func (h *Harness) Leftovers() []string {
	entries, err := os.ReadDir(h.dataDir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".site-") && e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out
}

// testWriter wraps test logging for command output
type testWriter struct {
	t      *testing.T
	prefix string
}

func (w *testWriter) Write(p []byte) (n int, err error) {
	lines := strings.Split(string(p), "\n")
	for _, line := range lines {
		if line != "" {
			w.t.Log(w.prefix + line)
		}
	}
	return len(p), nil
}

var _ io.Writer = (*testWriter)(nil)
