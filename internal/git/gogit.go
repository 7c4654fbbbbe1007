package git

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"github.com/schaermu/mindesktop/internal/config"
)

// GoGitClient implements Fetcher in-process using go-git.
type GoGitClient struct {
	auth  Auth
	depth int
}

// NewGoGitClient creates a fetcher that does not need a git binary.
func NewGoGitClient(auth Auth, depth int) *GoGitClient {
	if depth < 1 {
		depth = 1
	}
	return &GoGitClient{auth: auth, depth: depth}
}

// Fetch performs a shallow single-branch clone of branch into targetDir.
// go-git removes what it wrote when the clone fails.
func (g *GoGitClient) Fetch(ctx context.Context, url, branch, targetDir string) (string, error) {
	if err := ensureEmptyTarget(targetDir); err != nil {
		return "", newFetchError(KindWrite, url, branch, err)
	}

	auth, err := g.transportAuth(url)
	if err != nil {
		return "", newFetchError(KindAuth, url, branch, err)
	}

	repo, err := gogit.PlainCloneContext(ctx, targetDir, false, &gogit.CloneOptions{
		URL:           url,
		Auth:          auth,
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		SingleBranch:  true,
		Depth:         g.depth,
		Tags:          gogit.NoTags,
	})
	if err != nil {
		return "", newFetchError(classifyGoGit(ctx, err), url, branch, fmt.Errorf("clone: %w", err))
	}

	head, err := repo.Head()
	if err != nil {
		return "", newFetchError(KindUnknown, url, branch, fmt.Errorf("resolve HEAD: %w", err))
	}
	return head.Hash().String(), nil
}

func (g *GoGitClient) transportAuth(url string) (transport.AuthMethod, error) {
	if g.auth.SSHKeyFile != "" && config.IsSSH(url) {
		keys, err := gitssh.NewPublicKeysFromFile("git", g.auth.SSHKeyFile, "")
		if err != nil {
			return nil, fmt.Errorf("failed to load SSH key: %w", err)
		}
		return keys, nil
	}
	if g.auth.HTTPSTokenFile != "" && config.IsHTTPS(url) {
		token, err := readToken(g.auth.HTTPSTokenFile)
		if err != nil {
			return nil, err
		}
		return &http.BasicAuth{Username: "x-access-token", Password: token}, nil
	}
	return nil, nil
}

func classifyGoGit(ctx context.Context, err error) ErrorKind {
	switch {
	case ctx.Err() != nil:
		return KindTimeout
	case errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed),
		errors.Is(err, transport.ErrInvalidAuthMethod):
		return KindAuth
	case errors.Is(err, transport.ErrRepositoryNotFound),
		errors.Is(err, transport.ErrEmptyRemoteRepository):
		return KindNotFound
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		return KindUnknownRef
	case errors.Is(err, fs.ErrPermission):
		return KindWrite
	}
	return classify(err)
}
