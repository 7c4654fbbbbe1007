package site

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/schaermu/mindesktop/internal/git"
)

const (
	siteDirName   = "site"
	stateFileName = "site.json"
	lockFileName  = ".sync.lock"
	stagingPrefix = ".site-staging-"
	retiredPrefix = ".site-old-"
	statePrefix   = ".site-state-"
)

// Recorder receives the outcome of every sync attempt
type Recorder interface {
	StartRun(ctx context.Context, id, repo, branch string) error
	FinishRun(ctx context.Context, id, commit string, runErr error) error
}

// Store owns the current site slot under a user data directory.
//
// At most one Sync runs at a time, across all processes sharing root; a
// concurrent call fails with ErrBusy.
// New trees are fetched into a staging directory and renamed into place
// only after they validated, so readers never see a partial tree.
type Store struct {
	root     string
	fetcher  git.Fetcher
	logger   *slog.Logger
	timeout  time.Duration
	recorder Recorder
	now      func() time.Time

	sem  *semaphore.Weighted
	lock *flock.Flock

	mu      sync.RWMutex // guards current and state, held for writing during the swap
	current Location
	state   *State
}

// NewStore creates a store rooted at root (the application user data directory)
func NewStore(root string, fetcher git.Fetcher, logger *slog.Logger) *Store {
	return &Store{
		root:    root,
		fetcher: fetcher,
		logger:  logger,
		now:     time.Now,
		sem:     semaphore.NewWeighted(1),
		lock:    flock.New(filepath.Join(root, lockFileName)),
		current: Remote(),
	}
}

// SetTimeout bounds each fetch. Zero disables the bound.
func (s *Store) SetTimeout(d time.Duration) { s.timeout = d }

// SetRecorder attaches a sync history recorder
func (s *Store) SetRecorder(r Recorder) { s.recorder = r }

// Dir returns the canonical published site directory
func (s *Store) Dir() string { return filepath.Join(s.root, siteDirName) }

// Current returns the location the window should render
func (s *Store) Current() Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// State returns a copy of the published site's state, or nil while remote
func (s *Store) State() *State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return nil
	}
	st := *s.state
	return &st
}

// Sync fetches req into a staging directory and publishes it as the current site.
// On any failure the current location is left untouched.
func (s *Store) Sync(ctx context.Context, req Request) (Location, error) {
	if err := req.Validate(); err != nil {
		return Location{}, &SyncError{Op: "validate", Err: err}
	}

	release, err := s.acquire()
	if err != nil {
		if errors.Is(err, ErrBusy) {
			s.logger.Warn("rejecting sync, another sync is running", "repo", git.RedactURL(req.RepositoryURL), "branch", req.Branch)
		}
		return Location{}, err
	}
	defer release()

	runID := uuid.NewString()
	logger := s.logger.With("run_id", runID, "repo", git.RedactURL(req.RepositoryURL), "branch", req.Branch)
	logger.Info("starting site sync")

	s.startRun(ctx, logger, runID, req)
	commit, loc, err := s.sync(ctx, logger, runID, req)
	s.finishRun(ctx, logger, runID, commit, err)
	if err != nil {
		logger.Error("site sync failed", "error", err)
		return Location{}, err
	}

	logger.Info("site sync completed", "commit", commit, "path", loc.Path)
	return loc, nil
}

func (s *Store) sync(ctx context.Context, logger *slog.Logger, runID string, req Request) (string, Location, error) {
	s.sweep(logger)

	staging := filepath.Join(s.root, stagingPrefix+runID)
	if err := os.RemoveAll(staging); err != nil {
		return "", Location{}, &SyncError{Op: "prepare", Err: fmt.Errorf("failed to clear staging directory: %w", err)}
	}
	if err := os.MkdirAll(staging, 0755); err != nil {
		return "", Location{}, &SyncError{Op: "prepare", Err: fmt.Errorf("failed to create staging directory: %w", err)}
	}
	discard := func() {
		if err := os.RemoveAll(staging); err != nil {
			logger.Warn("failed to remove staging directory", "path", staging, "error", err)
		}
	}

	fetchCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	logger.Info("fetching repository", "dest", staging)
	commit, err := s.fetcher.Fetch(fetchCtx, req.RepositoryURL, req.Branch, staging)
	if err != nil {
		discard()
		return "", Location{}, &SyncError{Op: "fetch", Err: err}
	}

	if err := validateTree(staging); err != nil {
		discard()
		return commit, Location{}, &SyncError{Op: "validate", Err: err}
	}

	state := &State{
		Repo:     req.RepositoryURL,
		Branch:   req.Branch,
		Commit:   commit,
		SyncedAt: s.now().UTC(),
	}
	loc, retired, err := s.publish(staging, state)
	if err != nil {
		discard()
		return commit, Location{}, &SyncError{Op: "publish", Err: err}
	}

	if err := saveState(s.statePath(), state); err != nil {
		logger.Warn("failed to save site state", "error", err)
	}
	if retired != "" {
		if err := os.RemoveAll(retired); err != nil {
			logger.Warn("failed to remove previous site", "path", retired, "error", err)
		}
	}

	return commit, loc, nil
}

// publish swaps staging into the canonical site directory. It returns the
// path the previous tree was moved to, if there was one.
func (s *Store) publish(staging string, state *State) (Location, string, error) {
	dst := s.Dir()

	s.mu.Lock()
	defer s.mu.Unlock()

	retired := ""
	if _, err := os.Lstat(dst); err == nil {
		retired = filepath.Join(s.root, retiredPrefix+uuid.NewString())
		if err := os.Rename(dst, retired); err != nil {
			return Location{}, "", fmt.Errorf("failed to move previous site aside: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return Location{}, "", err
	}

	if err := os.Rename(staging, dst); err != nil {
		if retired != "" {
			if rbErr := os.Rename(retired, dst); rbErr != nil {
				return Location{}, "", fmt.Errorf("failed to publish site: %w (restoring previous site also failed: %v)", err, rbErr)
			}
		}
		return Location{}, "", fmt.Errorf("failed to publish site: %w", err)
	}

	s.current = Local(dst)
	s.state = state
	return s.current, retired, nil
}

// Restore adopts an already published site left by a previous run.
// It only moves the location from remote to local; ok is false when
// nothing usable is on disk.
func (s *Store) Restore() (Location, bool, error) {
	release, err := s.acquire()
	if err != nil {
		return Location{}, false, err
	}
	defer release()

	if loc := s.Current(); loc.IsLocal() {
		return loc, true, nil
	}

	dst := s.Dir()
	if err := validateTree(dst); err != nil {
		if errors.Is(err, ErrNoEntryDocument) || os.IsNotExist(err) {
			return Location{}, false, nil
		}
		return Location{}, false, err
	}

	state, err := loadState(s.statePath())
	if err != nil {
		s.logger.Warn("failed to load site state", "error", err)
	}

	s.mu.Lock()
	s.current = Local(dst)
	s.state = state
	s.mu.Unlock()

	s.logger.Info("restored previously published site", "path", dst)
	return Local(dst), true, nil
}

// Handler serves files of the published site. Requests are answered under
// the read lock, so a concurrent publish is never observed half way.
func (s *Store) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		defer s.mu.RUnlock()

		if !s.current.IsLocal() {
			http.NotFound(w, r)
			return
		}
		if hasHiddenSegment(r.URL.Path) || isListing(s.current.Path, r.URL.Path) {
			http.NotFound(w, r)
			return
		}
		http.FileServer(http.Dir(s.current.Path)).ServeHTTP(w, r)
	})
}

// acquire takes the in-process semaphore and the lock file shared with other
// processes using the same root. Either being held yields ErrBusy.
func (s *Store) acquire() (func(), error) {
	if !s.sem.TryAcquire(1) {
		return nil, ErrBusy
	}
	if err := os.MkdirAll(s.root, 0755); err != nil {
		s.sem.Release(1)
		return nil, &SyncError{Op: "prepare", Err: fmt.Errorf("failed to create user data directory: %w", err)}
	}
	locked, err := s.lock.TryLock()
	if err != nil {
		s.sem.Release(1)
		return nil, &SyncError{Op: "prepare", Err: fmt.Errorf("failed to lock %s: %w", s.lock.Path(), err)}
	}
	if !locked {
		s.sem.Release(1)
		return nil, ErrBusy
	}
	return func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("failed to release sync lock", "path", s.lock.Path(), "error", err)
		}
		s.sem.Release(1)
	}, nil
}

// sweep removes staging and retired directories and state temp files left
// behind by an interrupted run
func (s *Store) sweep(logger *slog.Logger) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, stagingPrefix) && !strings.HasPrefix(name, retiredPrefix) && !strings.HasPrefix(name, statePrefix) {
			continue
		}
		p := filepath.Join(s.root, name)
		logger.Info("removing leftover", "path", p)
		if err := os.RemoveAll(p); err != nil {
			logger.Warn("failed to remove leftover", "path", p, "error", err)
		}
	}
}

func (s *Store) statePath() string { return filepath.Join(s.root, stateFileName) }

func (s *Store) startRun(ctx context.Context, logger *slog.Logger, id string, req Request) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.StartRun(ctx, id, req.RepositoryURL, req.Branch); err != nil {
		logger.Warn("failed to record sync start", "error", err)
	}
}

func (s *Store) finishRun(ctx context.Context, logger *slog.Logger, id, commit string, runErr error) {
	if s.recorder == nil {
		return
	}
	// Record the outcome even when the caller's context was cancelled.
	ctx = context.WithoutCancel(ctx)
	if err := s.recorder.FinishRun(ctx, id, commit, runErr); err != nil {
		logger.Warn("failed to record sync result", "error", err)
	}
}

// validateTree checks that dir holds a loadable entry document
func validateTree(dir string) error {
	info, err := os.Stat(filepath.Join(dir, EntryDocument))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNoEntryDocument
		}
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrNoEntryDocument, EntryDocument)
	}
	return nil
}

// isListing reports whether urlPath names a directory without an entry
// document, which the file server would answer with a directory listing.
func isListing(dir, urlPath string) bool {
	p := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+urlPath)))
	info, err := os.Stat(p)
	if err != nil || !info.IsDir() {
		return false
	}
	_, err = os.Stat(filepath.Join(p, EntryDocument))
	return err != nil
}

func hasHiddenSegment(p string) bool {
	for _, seg := range strings.Split(path.Clean("/"+p), "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}
