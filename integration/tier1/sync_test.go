//go:build integration

package tier1

import (
	"context"
	"strings"
	"testing"

	"github.com/schaermu/mindesktop/internal/testutil"
)

func TestTier1Sync(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	h := NewHarness(t)
	if err := h.Build(ctx); err != nil {
		t.Fatalf("build: %v", err)
	}

	repoDir := t.TempDir()
	testutil.InitRepo(t, repoDir, "release")
	testutil.CommitFile(t, repoDir, "index.html", "<html>v1</html>", "Initial site")
	repoURL := testutil.FileURL(repoDir)

	for _, backend := range []string{"exec", "gogit"} {
		t.Run(backend, func(t *testing.T) {
			h.WriteConfig("git:\n  backend: " + backend + "\n")

			t.Run("A_InitialSync", func(t *testing.T) {
				h.MustRun(ctx, "sync", "--repo", repoURL, "--branch", "release")
				assertSite(t, h, "<html>v1</html>")
			})

			t.Run("B_UpdateWithRememberedParameters", func(t *testing.T) {
				testutil.CommitFile(t, repoDir, "index.html", "<html>v2-"+backend+"</html>", "Update site")
				h.MustRun(ctx, "sync")
				assertSite(t, h, "<html>v2-"+backend+"</html>")
			})

			t.Run("C_UnknownBranchKeepsSite", func(t *testing.T) {
				_, stderr, code, err := h.Run(ctx, "sync", "--repo", repoURL, "--branch", "does-not-exist")
				if err != nil {
					t.Fatalf("run: %v", err)
				}
				if code == 0 {
					t.Fatal("expected non-zero exit for unknown branch")
				}
				if !strings.Contains(stderr, "site sync failed") {
					t.Errorf("expected failure to be logged, stderr: %s", stderr)
				}
				assertSite(t, h, "<html>v2-"+backend+"</html>")
			})

			t.Run("D_Status", func(t *testing.T) {
				out := h.MustRun(ctx, "sync", "--status")
				for _, want := range []string{"branch:   release", "recent syncs:", "succeeded", "failed"} {
					if !strings.Contains(out, want) {
						t.Errorf("status output missing %q:\n%s", want, out)
					}
				}
			})
		})
	}
}

func TestTier1Version(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	h := NewHarness(t)
	if err := h.Build(ctx); err != nil {
		t.Fatalf("build: %v", err)
	}
	out := h.MustRun(ctx, "version")
	if !strings.HasPrefix(out, "mindesktop ") {
		t.Errorf("unexpected version output %q", out)
	}
}

func assertSite(t *testing.T, h *Harness, want string) {
	t.Helper()
	got, err := h.ReadSiteFile("index.html")
	if err != nil {
		t.Fatalf("read published site: %v", err)
	}
	if got != want {
		t.Errorf("index.html = %q, want %q", got, want)
	}
	if left := h.Leftovers(); len(left) > 0 {
		t.Errorf("staging directories left behind: %v", left)
	}
}
