package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/schaermu/mindesktop/internal/config"
)

// Fetcher retrieves exactly one branch of a remote repository.
type Fetcher interface {
	// Fetch shallow-clones branch of url into targetDir, which must be absent
	// or empty, and returns the checked out commit. Every failure is a *FetchError.
	Fetch(ctx context.Context, url, branch, targetDir string) (string, error)
}

// NewFetcher builds the fetcher selected by cfg.Git.Backend
func NewFetcher(cfg *config.Config) (Fetcher, error) {
	auth := Auth{SSHKeyFile: cfg.Auth.SSHKeyFile, HTTPSTokenFile: cfg.Auth.HTTPSTokenFile}
	switch cfg.Git.Backend {
	case config.BackendExec:
		return NewShellClient(auth, cfg.Git.Depth), nil
	case config.BackendGoGit:
		return NewGoGitClient(auth, cfg.Git.Depth), nil
	default:
		return nil, fmt.Errorf("unknown git backend %q", cfg.Git.Backend)
	}
}

// Auth holds optional credentials for the remote
type Auth struct {
	SSHKeyFile     string
	HTTPSTokenFile string
}

// ensureEmptyTarget creates targetDir if missing and fails if it has entries.
func ensureEmptyTarget(targetDir string) error {
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return fmt.Errorf("failed to create target directory: %w", err)
	}
	f, err := os.Open(targetDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()
	if _, err := f.Readdirnames(1); err == nil {
		return fmt.Errorf("%w: %s", ErrTargetNotEmpty, targetDir)
	} else if !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
