// Package shell hosts the desktop window on top of Wails. It owns the
// single window and wires it to the site store, the window controller
// and the notification collaborator.
package shell

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/menu"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/linux"
	"github.com/wailsapp/wails/v2/pkg/options/mac"
	"github.com/wailsapp/wails/v2/pkg/options/windows"

	"github.com/schaermu/mindesktop/internal/config"
	"github.com/schaermu/mindesktop/internal/site"
	"github.com/schaermu/mindesktop/internal/watch"
	"github.com/schaermu/mindesktop/internal/window"
)

// reloadDelay debounces development asset changes
const reloadDelay = 250 * time.Millisecond

// Deps are the collaborators the shell drives
type Deps struct {
	Config   *config.Config
	Options  config.Options
	Assets   fs.FS
	Store    *site.Store
	Params   window.Params
	Notifier window.Notifier
	Logger   *slog.Logger
}

// Shell is the application context: it owns the window and the
// controller and is the only place holding the Wails runtime context.
type Shell struct {
	cfg    *config.Config
	opts   config.Options
	assets fs.FS
	store  *site.Store
	logger *slog.Logger

	win  *wailsWindow
	ctrl *window.Controller
	api  *API

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	watcher *watch.Watcher
}

// New creates the shell. Nothing is shown until Run is called.
func New(d Deps) *Shell {
	s := &Shell{
		cfg:    d.Config,
		opts:   d.Options,
		assets: d.Assets,
		store:  d.Store,
		logger: d.Logger,
	}
	s.win = newWailsWindow(s.context, d.Store.Dir(), defaultRuntime)
	s.ctrl = window.NewController(s.win, d.Store, d.Logger, window.Options{
		RemoteURL:       d.Config.App.RemoteURL,
		Params:          d.Params,
		Notifier:        d.Notifier,
		OfflineFallback: d.Config.OfflineFallbackEnabled(),
	})
	s.api = &API{
		ctxFn:    s.context,
		ctrl:     s.ctrl,
		store:    d.Store,
		win:      s.win,
		notifier: d.Notifier,
	}
	return s
}

// Controller returns the window controller
func (s *Shell) Controller() *window.Controller { return s.ctrl }

// Run starts the event loop and blocks until the application quits
func (s *Shell) Run() error {
	if err := wails.Run(s.appOptions()); err != nil {
		return fmt.Errorf("failed to run window: %w", err)
	}
	return nil
}

// appMenu returns the application menu shown in development mode. The
// native frame stays in every mode so the window can always be closed.
func appMenu(opts config.Options) *menu.Menu {
	if !opts.ChromeEnabled {
		return nil
	}
	return menu.NewMenuFromItems(menu.AppMenu(), menu.EditMenu())
}

func (s *Shell) appOptions() *options.App {
	return &options.App{
		Title:       s.cfg.App.Name,
		Width:       s.cfg.Window.Width,
		Height:      s.cfg.Window.Height,
		MinWidth:    s.cfg.Window.MinWidth,
		MinHeight:   s.cfg.Window.MinHeight,
		StartHidden: s.opts.StartHidden,
		Menu:        appMenu(s.opts),
		AssetServer: &assetserver.Options{
			Handler: newAssetRouter(AssetOptions{
				Embedded:    s.assets,
				AssetsPath:  s.opts.AssetsPath,
				PreloadPath: s.opts.PreloadPath,
			}, s.store.Handler()),
		},
		BackgroundColour: &options.RGBA{R: 255, G: 255, B: 255, A: 1},
		SingleInstanceLock: &options.SingleInstanceLock{
			UniqueId: instanceID(s.cfg.App.Name),
			OnSecondInstanceLaunch: func(options.SecondInstanceData) {
				s.logger.Info("second instance launched, showing window")
				s.ctrl.Show()
			},
		},
		OnStartup:     s.startup,
		OnBeforeClose: s.beforeClose,
		OnShutdown:    s.shutdown,
		Bind:          []interface{}{s.api},
		Logger:        newWailsLogger(s.logger),
		LogLevel:      wailsLevel(s.logger),
		Linux: &linux.Options{
			ProgramName:      s.cfg.App.Name,
			WebviewGpuPolicy: linux.WebviewGpuPolicyOnDemand,
		},
		Mac: &mac.Options{
			TitleBar:             mac.TitleBarDefault(),
			WebviewIsTransparent: true,
			WindowIsTranslucent:  true,
		},
		Windows: &windows.Options{
			WebviewIsTransparent: false,
		},
	}
}

func (s *Shell) startup(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.ctx = ctx
	s.cancel = cancel
	s.mu.Unlock()

	if err := s.ctrl.Start(s.opts.StartHidden); err != nil {
		s.logger.Error("failed to start window", "error", err)
		return
	}

	if s.opts.DevelopmentMode && s.opts.AssetsPath != "" {
		s.startWatcher(runCtx)
	}

	go func() {
		if err := s.ctrl.RestorePersisted(runCtx); err != nil {
			s.logger.Warn("failed to restore offline site", "error", err)
		}
	}()
}

func (s *Shell) startWatcher(ctx context.Context) {
	w, err := watch.New(s.opts.AssetsPath, reloadDelay, func() {
		if err := s.ctrl.Reload(); err != nil {
			s.logger.Warn("failed to reload window", "error", err)
		}
	}, s.logger)
	if err != nil {
		s.logger.Warn("asset watcher disabled", "path", s.opts.AssetsPath, "error", err)
		return
	}
	s.mu.Lock()
	s.watcher = w
	s.mu.Unlock()
	s.logger.Info("watching assets for changes", "path", s.opts.AssetsPath)
	go w.Run(ctx)
}

// beforeClose turns the close control into hide-to-tray unless quitting
func (s *Shell) beforeClose(context.Context) bool {
	return s.ctrl.HandleClose()
}

func (s *Shell) shutdown(context.Context) {
	s.mu.Lock()
	cancel, w := s.cancel, s.watcher
	s.ctx = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if w != nil {
		if err := w.Close(); err != nil {
			s.logger.Warn("failed to stop asset watcher", "error", err)
		}
	}
	s.logger.Info("window shut down")
}

func (s *Shell) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// instanceID derives the single instance lock id from the application name
func instanceID(name string) string {
	id := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, name)
	return "io.mindesktop." + strings.Trim(id, "-")
}
