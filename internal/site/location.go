package site

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// EntryDocument is the file the window loads from a published site
const EntryDocument = "index.html"

// Kind tells whether the window shows the remote site or a local copy
type Kind int

const (
	KindRemote Kind = iota
	KindLocal
)

func (k Kind) String() string {
	if k == KindLocal {
		return "local"
	}
	return "remote"
}

// Location points at the content the window should render.
// The zero value is the remote location.
type Location struct {
	Kind Kind
	Path string
}

// Remote returns the location of the remote site
func Remote() Location { return Location{Kind: KindRemote} }

// Local returns the location of a published site directory
func Local(path string) Location { return Location{Kind: KindLocal, Path: path} }

// IsLocal reports whether the location is a published local copy
func (l Location) IsLocal() bool { return l.Kind == KindLocal }

// EntryPath returns the entry document of a local location, or "" for remote
func (l Location) EntryPath() string {
	if !l.IsLocal() {
		return ""
	}
	return filepath.Join(l.Path, EntryDocument)
}

func (l Location) String() string {
	if l.IsLocal() {
		return fmt.Sprintf("local(%s)", l.Path)
	}
	return "remote"
}

// Request names the repository branch to publish
type Request struct {
	RepositoryURL string `json:"repositoryUrl"`
	Branch        string `json:"branch"`
}

// Validate checks that both fields are set
func (r Request) Validate() error {
	if strings.TrimSpace(r.RepositoryURL) == "" {
		return errors.New("repository url is required")
	}
	if strings.TrimSpace(r.Branch) == "" {
		return errors.New("branch is required")
	}
	if strings.HasPrefix(r.Branch, "-") {
		return fmt.Errorf("invalid branch name %q", r.Branch)
	}
	return nil
}
