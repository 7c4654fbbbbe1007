package testutil

import (
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// RequireGit skips the test when no git binary is available.
func RequireGit(t testing.TB) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available in PATH")
	}
}

// InitRepo creates a repository in dir whose initial branch is branch.
func InitRepo(t testing.TB, dir, branch string) {
	t.Helper()
	RequireGit(t)
	RunGit(t, "", "init", "-b", branch, dir)
	RunGit(t, dir, "config", "user.email", "test@test.com")
	RunGit(t, dir, "config", "user.name", "Test")
	RunGit(t, dir, "config", "commit.gpgsign", "false")
}

// CommitFile creates or overwrites name (relative to repoDir) and commits it.
func CommitFile(t testing.TB, repoDir, name, content, msg string) {
	t.Helper()
	path := filepath.Join(repoDir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	RunGit(t, repoDir, "add", name)
	RunGit(t, repoDir, "commit", "-m", msg)
}

// RunGit runs git with args in dir and fails the test on error.
func RunGit(t testing.TB, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v: %s", args, err, out)
	}
	return string(out)
}

// FileURL returns a file:// URL for dir so that shallow clones are honoured.
func FileURL(dir string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(dir)}
	return u.String()
}

// NewSiteRepo creates a repository with an index.html on branch and returns its directory.
func NewSiteRepo(t testing.TB, branch, index string) string {
	t.Helper()
	dir := t.TempDir()
	InitRepo(t, dir, branch)
	CommitFile(t, dir, "index.html", index, "Initial site")
	return dir
}
