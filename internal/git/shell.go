package git

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/schaermu/mindesktop/internal/config"
)

// ShellClient implements Fetcher by shelling out to the git command
type ShellClient struct {
	auth  Auth
	depth int
}

// NewShellClient creates a new fetcher that uses the git command
func NewShellClient(auth Auth, depth int) *ShellClient {
	if depth < 1 {
		depth = 1
	}
	return &ShellClient{auth: auth, depth: depth}
}

// Fetch performs a shallow single-branch clone of branch into targetDir
func (c *ShellClient) Fetch(ctx context.Context, url, branch, targetDir string) (string, error) {
	if err := ensureEmptyTarget(targetDir); err != nil {
		return "", newFetchError(KindWrite, url, branch, err)
	}

	cmd := gitCommand(ctx, "clone",
		"--depth", strconv.Itoa(c.depth),
		"--single-branch",
		"--branch", branch,
		"--no-tags",
		"--", url, targetDir)
	if err := c.configureAuth(cmd, url); err != nil {
		return "", newFetchError(KindAuth, url, branch, err)
	}

	if err := c.runCommand(cmd); err != nil {
		if ctx.Err() != nil {
			return "", newFetchError(KindTimeout, url, branch, fmt.Errorf("git clone aborted: %w", ctx.Err()))
		}
		return "", newFetchError(KindUnknown, url, branch, fmt.Errorf("git clone failed: %w", err))
	}

	cmd = gitCommand(ctx, "-C", targetDir, "rev-parse", "HEAD")
	output, err := cmd.Output()
	if err != nil {
		return "", newFetchError(KindUnknown, url, branch, fmt.Errorf("git rev-parse failed: %w", err))
	}

	return strings.TrimSpace(string(output)), nil
}

// waitDelay bounds how long a killed git may keep its output pipes open
// through helper children such as git-remote-https or ssh.
const waitDelay = 2 * time.Second

// gitCommand builds a git invocation whose whole process tree is killed
// when ctx is done.
func gitCommand(ctx context.Context, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "git", args...)
	setProcessGroup(cmd)
	cmd.Cancel = func() error {
		return killProcessGroup(cmd)
	}
	cmd.WaitDelay = waitDelay
	return cmd
}

// configureAuth sets up authentication for git operations
func (c *ShellClient) configureAuth(cmd *exec.Cmd, url string) error {
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}
	// Never block on an interactive credential prompt; fail instead.
	cmd.Env = append(cmd.Env, "GIT_TERMINAL_PROMPT=0")

	// SSH authentication
	if c.auth.SSHKeyFile != "" && config.IsSSH(url) {
		// The path is shell-quoted to prevent injection via crafted filenames.
		sshCmd := fmt.Sprintf("ssh -i %s -o StrictHostKeyChecking=accept-new -F /dev/null", shellQuote(c.auth.SSHKeyFile))
		cmd.Env = append(cmd.Env, "GIT_SSH_COMMAND="+sshCmd)
		return nil
	}

	// HTTPS authentication with token
	if c.auth.HTTPSTokenFile != "" && config.IsHTTPS(url) {
		token, err := readToken(c.auth.HTTPSTokenFile)
		if err != nil {
			return err
		}

		// The credential helper reads the token from the environment so it
		// never appears in the process arguments.
		cmd.Env = append(cmd.Env, "MINDESKTOP_GIT_TOKEN="+token)
		cmd.Args = insertGitFlags(cmd.Args,
			"-c", `credential.helper=!f() { echo "username=x-access-token"; echo "password=$MINDESKTOP_GIT_TOKEN"; }; f`,
		)
	}

	return nil
}

// readToken loads a token file, trimming surrounding whitespace
func readToken(path string) (string, error) {
	token, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read HTTPS token file: %w", err)
	}
	return strings.TrimSpace(string(token)), nil
}

// insertGitFlags inserts flags immediately after the "git" command name,
// before the subcommand (e.g. "clone").
func insertGitFlags(args []string, flags ...string) []string {
	if len(args) == 0 {
		return flags
	}
	result := make([]string, 0, len(args)+len(flags))
	result = append(result, args[0])
	result = append(result, flags...)
	result = append(result, args[1:]...)
	return result
}

// shellQuote wraps s in single quotes, escaping any embedded single quotes.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// runCommand executes a command and returns an error with its output on failure
func (c *ShellClient) runCommand(cmd *exec.Cmd) error {
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, RedactURL(strings.TrimSpace(string(output))))
	}
	return nil
}
