package git

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrTargetNotEmpty is returned when the clone target already holds files.
var ErrTargetNotEmpty = errors.New("target directory is not empty")

// ErrorKind classifies why a fetch failed.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNetwork
	KindAuth
	KindUnknownRef
	KindNotFound
	KindWrite
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindUnknownRef:
		return "unknown-ref"
	case KindNotFound:
		return "not-found"
	case KindWrite:
		return "write"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// FetchError is returned for every failed fetch, whatever the backend.
type FetchError struct {
	Kind   ErrorKind
	URL    string
	Branch string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s@%s (%s): %v", RedactURL(e.URL), e.Branch, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// newFetchError builds a FetchError, classifying err unless kind is already known.
func newFetchError(kind ErrorKind, url, branch string, err error) *FetchError {
	if kind == KindUnknown {
		kind = classify(err)
	}
	return &FetchError{Kind: kind, URL: url, Branch: branch, Err: err}
}

// classify inspects a git failure (typically containing stderr) for known causes.
func classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return classifyMessage(err.Error())
}

func classifyMessage(msg string) ErrorKind {
	switch {
	case strings.Contains(msg, "Remote branch") && strings.Contains(msg, "not found"),
		strings.Contains(msg, "couldn't find remote ref"),
		strings.Contains(msg, "reference not found"),
		strings.Contains(msg, "unknown revision or path not in the working tree"):
		return KindUnknownRef
	case strings.Contains(msg, "could not read Username"),
		strings.Contains(msg, "Authentication failed"),
		strings.Contains(msg, "Permission denied (publickey"),
		strings.Contains(msg, "authentication required"),
		strings.Contains(msg, "authorization failed"):
		return KindAuth
	case strings.Contains(msg, "Could not resolve host"),
		strings.Contains(msg, "Connection refused"),
		strings.Contains(msg, "Connection timed out"),
		strings.Contains(msg, "Network is unreachable"),
		strings.Contains(msg, "no such host"):
		return KindNetwork
	case matches(`repository '.*' not found`, msg),
		strings.Contains(msg, "does not appear to be a git repository"),
		strings.Contains(msg, "repository not found"):
		return KindNotFound
	case strings.Contains(msg, "could not create work tree"),
		strings.Contains(msg, "No space left on device"),
		strings.Contains(msg, "Read-only file system"),
		strings.Contains(msg, "unable to write"):
		return KindWrite
	}
	return KindUnknown
}

func matches(pattern, s string) bool {
	return regexp.MustCompile(pattern).MatchString(s)
}

var credentialsInURL = regexp.MustCompile(`(https?://)[^\s/@]+@`)

// RedactURL strips userinfo from URLs before they reach logs or error messages.
func RedactURL(s string) string {
	return credentialsInURL.ReplaceAllString(s, "${1}<redacted>@")
}
