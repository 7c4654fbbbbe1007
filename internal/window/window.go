package window

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/schaermu/mindesktop/internal/site"
	"github.com/schaermu/mindesktop/internal/storage/prefs"
)

// State of the single application window
type State int

const (
	Created State = iota
	ShowingRemote
	ShowingLocal
	Hidden
	Closed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case ShowingRemote:
		return "showing-remote"
	case ShowingLocal:
		return "showing-local"
	case Hidden:
		return "hidden"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrClosed is returned for operations on a destroyed window
var ErrClosed = errors.New("window is closed")

// Window is the native window the controller drives
type Window interface {
	// LoadRemote shows the built-in document pointing at the remote site
	LoadRemote(url string) error
	// LoadFile shows a local entry document
	LoadFile(path string) error
	Show()
	Hide()
	Maximize()
	// Destroy closes the window and lets the process exit
	Destroy()
}

// Sites is the part of the site store the controller consumes
type Sites interface {
	Sync(ctx context.Context, req site.Request) (site.Location, error)
	Restore() (site.Location, bool, error)
	Current() site.Location
}

// Params persists the last successful sync request
type Params interface {
	SyncParams(ctx context.Context) (prefs.SyncParams, bool, error)
	SaveSyncParams(ctx context.Context, p prefs.SyncParams) error
}

// Notifier forwards fire-and-forget desktop notifications
type Notifier interface {
	Notify(title, body, icon string)
}

// Options configures a Controller
type Options struct {
	RemoteURL       string
	Params          Params
	Notifier        Notifier
	OfflineFallback bool
}

// Controller owns the window and its content state machine.
// Content changes and visibility changes are serialized by mu; a running
// sync does not hold mu, so show/hide stay responsive while fetching.
type Controller struct {
	win    Window
	sites  Sites
	opts   Options
	logger *slog.Logger

	mu              sync.Mutex
	state           State
	content         State // last content state, ShowingRemote or ShowingLocal
	quitting        bool
	pendingMaximize bool
}

// NewController creates a controller in the Created state
func NewController(win Window, sites Sites, logger *slog.Logger, opts Options) *Controller {
	return &Controller{
		win:     win,
		sites:   sites,
		opts:    opts,
		logger:  logger,
		state:   Created,
		content: ShowingRemote,
	}
}

// State returns the current window state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Location returns the site location currently rendered
func (c *Controller) Location() site.Location {
	return c.sites.Current()
}

// Start loads the remote document. With hidden set the window stays hidden
// until Show is called.
func (c *Controller) Start(hidden bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Created {
		return fmt.Errorf("window already started (state %s)", c.state)
	}
	if err := c.win.LoadRemote(c.opts.RemoteURL); err != nil {
		return fmt.Errorf("failed to load remote document: %w", err)
	}
	c.content = ShowingRemote
	if hidden {
		c.win.Hide()
		c.state = Hidden
	} else {
		c.win.Show()
		c.state = ShowingRemote
	}
	c.logger.Info("window started", "state", c.state, "remote_url", c.opts.RemoteURL)
	return nil
}

// RestorePersisted triggers a sync for persisted parameters, if any. When that
// sync fails and offline fallback is enabled, a previously published site is
// loaded instead.
func (c *Controller) RestorePersisted(ctx context.Context) error {
	if c.opts.Params == nil {
		return nil
	}
	p, ok, err := c.opts.Params.SyncParams(ctx)
	if err != nil {
		return fmt.Errorf("failed to read persisted sync parameters: %w", err)
	}
	if !ok {
		c.logger.Debug("no persisted sync parameters, staying on remote")
		return nil
	}

	c.logger.Info("syncing persisted site", "branch", p.Branch)
	syncErr := c.RequestSync(ctx, p.Repo, p.Branch)
	if syncErr == nil || !c.opts.OfflineFallback {
		return syncErr
	}

	loc, restored, err := c.sites.Restore()
	if err != nil || !restored {
		return syncErr
	}
	c.logger.Warn("sync failed, showing previously published site", "error", syncErr, "path", loc.Path)
	return c.showLocal(loc)
}

// RequestSync publishes repo@branch and loads it. On failure the window
// content is left unchanged and the failure is reported as a notification.
func (c *Controller) RequestSync(ctx context.Context, repo, branch string) error {
	if c.State() == Closed {
		return ErrClosed
	}

	loc, err := c.sites.Sync(ctx, site.Request{RepositoryURL: repo, Branch: branch})
	if err != nil {
		c.notify("Offline sync failed", err.Error())
		return err
	}

	if c.opts.Params != nil {
		if err := c.opts.Params.SaveSyncParams(ctx, prefs.SyncParams{Repo: repo, Branch: branch}); err != nil {
			c.logger.Warn("failed to persist sync parameters", "error", err)
		}
	}

	return c.showLocal(loc)
}

func (c *Controller) showLocal(loc site.Location) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Closed {
		return ErrClosed
	}
	if err := c.win.LoadFile(loc.EntryPath()); err != nil {
		return fmt.Errorf("failed to load local site: %w", err)
	}
	c.content = ShowingLocal
	if c.state == Hidden {
		c.pendingMaximize = true
	} else {
		c.win.Maximize()
		c.state = ShowingLocal
	}
	c.logger.Info("window showing local site", "path", loc.Path, "state", c.state)
	return nil
}

// Reload reloads the current content
func (c *Controller) Reload() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.state == Closed || c.state == Created:
		return nil
	case c.content == ShowingLocal:
		return c.win.LoadFile(c.sites.Current().EntryPath())
	default:
		return c.win.LoadRemote(c.opts.RemoteURL)
	}
}

// HandleClose handles the window close control. It returns true when the
// close must be prevented, which hides the window to the tray instead.
func (c *Controller) HandleClose() (prevent bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.quitting || c.state == Closed {
		return false
	}
	c.hideLocked()
	return true
}

// Hide hides the window, keeping its content
func (c *Controller) Hide() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Closed || c.state == Created {
		return
	}
	c.hideLocked()
}

func (c *Controller) hideLocked() {
	c.win.Hide()
	if c.state != Hidden {
		c.logger.Debug("window hidden", "content", c.content)
	}
	c.state = Hidden
}

// Show shows the window again with whatever content was last active
func (c *Controller) Show() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Closed || c.state == Created {
		return
	}
	c.win.Show()
	if c.state == Hidden {
		c.state = c.content
	}
	if c.pendingMaximize {
		c.win.Maximize()
		c.pendingMaximize = false
	}
}

// Quit destroys the window. A close event during quitting is not prevented.
func (c *Controller) Quit() {
	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		return
	}
	c.quitting = true
	c.state = Closed
	c.mu.Unlock()

	c.logger.Info("quitting")
	c.win.Destroy()
}

func (c *Controller) notify(title, body string) {
	if c.opts.Notifier == nil {
		return
	}
	c.opts.Notifier.Notify(title, body, "")
}
