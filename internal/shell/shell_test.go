package shell

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wailsapp/wails/v2/pkg/logger"

	"github.com/schaermu/mindesktop/internal/config"
	"github.com/schaermu/mindesktop/internal/site"
	"github.com/schaermu/mindesktop/internal/window"
)

type runtimeLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *runtimeLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, s)
}

func (l *runtimeLog) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *runtimeLog) runtime() runtimeCalls {
	return runtimeCalls{
		execJS:   func(_ context.Context, js string) { l.add("js " + js) },
		show:     func(context.Context) { l.add("show") },
		hide:     func(context.Context) { l.add("hide") },
		maximise: func(context.Context) { l.add("maximise") },
		quit:     func(context.Context) { l.add("quit") },
	}
}

func liveContext() context.Context { return context.Background() }

func noContext() context.Context { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWailsWindow_LoadRemote(t *testing.T) {
	rl := &runtimeLog{}
	w := newWailsWindow(liveContext, "/data/site", rl.runtime())

	require.NoError(t, w.LoadRemote("https://app.example.com/path?q=1"))
	assert.Equal(t, "https://app.example.com/path?q=1", w.CurrentURL())
	assert.Equal(t, []string{`js window.mindesktop && window.mindesktop.load("https://app.example.com/path?q=1")`}, rl.Calls())

	assert.Error(t, w.LoadRemote("file:///etc/passwd"))
	assert.Error(t, w.LoadRemote("javascript:alert(1)"))
}

func TestWailsWindow_LoadFile(t *testing.T) {
	siteDir := filepath.Join(t.TempDir(), "site")

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{name: "entry document", path: filepath.Join(siteDir, "index.html"), want: "/site/index.html"},
		{name: "nested", path: filepath.Join(siteDir, "docs", "a b.html"), want: "/site/docs/a%20b.html"},
		{name: "outside", path: filepath.Join(filepath.Dir(siteDir), "site.json"), wantErr: true},
		{name: "sibling prefix", path: siteDir + "-old/index.html", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWailsWindow(liveContext, siteDir, (&runtimeLog{}).runtime())
			err := w.LoadFile(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Empty(t, w.CurrentURL())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, w.CurrentURL())
		})
	}
}

func TestWailsWindow_BeforeStartup(t *testing.T) {
	rl := &runtimeLog{}
	w := newWailsWindow(noContext, "/data/site", rl.runtime())

	require.NoError(t, w.LoadRemote("https://app.example.com/"))
	w.Show()
	w.Maximize()
	w.Hide()
	w.Destroy()

	assert.Empty(t, rl.Calls(), "no runtime calls without a context")
	assert.Equal(t, "https://app.example.com/", w.CurrentURL())
}

func TestWailsWindow_Visibility(t *testing.T) {
	rl := &runtimeLog{}
	w := newWailsWindow(liveContext, "/data/site", rl.runtime())
	w.Show()
	w.Maximize()
	w.Hide()
	w.Destroy()
	assert.Equal(t, []string{"show", "maximise", "hide", "quit"}, rl.Calls())
}

func TestAssetRouter(t *testing.T) {
	embedded := fstest.MapFS{
		"index.html": {Data: []byte("<html>shell</html>")},
		"preload.js": {Data: []byte("// embedded preload")},
	}
	siteHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "site:"+r.URL.Path)
	})

	get := func(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
		t.Helper()
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	t.Run("embedded", func(t *testing.T) {
		h := newAssetRouter(AssetOptions{Embedded: embedded}, siteHandler)

		rec := get(t, h, "/")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "shell")
		assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

		rec = get(t, h, "/preload.js")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "// embedded preload", rec.Body.String())

		rec = get(t, h, "/site/js/app.js")
		assert.Equal(t, "site:/js/app.js", rec.Body.String())

		assert.Equal(t, http.StatusNotFound, get(t, h, "/missing.css").Code)
	})

	t.Run("development paths", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>dev</html>"), 0644))
		preload := filepath.Join(t.TempDir(), "preload.js")
		require.NoError(t, os.WriteFile(preload, []byte("// dev preload"), 0644))

		h := newAssetRouter(AssetOptions{Embedded: embedded, AssetsPath: dir, PreloadPath: preload}, siteHandler)
		assert.Contains(t, get(t, h, "/").Body.String(), "dev")
		assert.Equal(t, "// dev preload", get(t, h, "/preload.js").Body.String())
	})

	t.Run("assets dir without preload", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>dev</html>"), 0644))

		h := newAssetRouter(AssetOptions{Embedded: embedded, AssetsPath: dir}, siteHandler)
		assert.Equal(t, "// embedded preload", get(t, h, "/preload.js").Body.String())
	})
}

type fetcherFunc func(ctx context.Context, url, branch, targetDir string) (string, error)

func (f fetcherFunc) Fetch(ctx context.Context, url, branch, targetDir string) (string, error) {
	return f(ctx, url, branch, targetDir)
}

func TestAPI(t *testing.T) {
	store := site.NewStore(t.TempDir(), fetcherFunc(func(_ context.Context, _, branch, dir string) (string, error) {
		return "abc123", os.WriteFile(filepath.Join(dir, "index.html"), []byte(branch), 0644)
	}), testLogger())

	rl := &runtimeLog{}
	win := newWailsWindow(liveContext, store.Dir(), rl.runtime())
	ctrl := window.NewController(win, store, testLogger(), window.Options{RemoteURL: "https://app.example.com/"})
	api := &API{ctxFn: noContext, ctrl: ctrl, store: store, win: win}

	require.NoError(t, ctrl.Start(false))
	assert.Equal(t, "https://app.example.com/", api.CurrentURL())
	assert.Equal(t, SyncStatus{State: "showing-remote"}, api.SyncStatus())

	require.NoError(t, api.RequestSync("https://example.com/repo.git", "main"))
	assert.Equal(t, "/site/index.html", api.CurrentURL())

	status := api.SyncStatus()
	assert.Equal(t, "showing-local", status.State)
	assert.True(t, status.Local)
	assert.Equal(t, "main", status.Branch)
	assert.Equal(t, "abc123", status.Commit)
	require.NotNil(t, status.SyncedAt)

	calls := rl.Calls()
	assert.Equal(t, "maximise", calls[len(calls)-1])

	api.Hide()
	assert.Equal(t, window.Hidden, ctrl.State())
	api.Quit()
	assert.Equal(t, window.Closed, ctrl.State())
	assert.Equal(t, "quit", rl.Calls()[len(rl.Calls())-1])
}

func TestWailsLogger(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	wl := newWailsLogger(l)
	wl.Info("hidden")
	wl.Warning("careful")
	wl.Error("broken")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "careful")
	assert.Contains(t, out, "component=wails")
	assert.Equal(t, 2, strings.Count(out, "\n"))

	assert.Equal(t, logger.WARNING, wailsLevel(l))
	assert.Equal(t, logger.DEBUG, wailsLevel(slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))))
}

func TestAppOptions_Chrome(t *testing.T) {
	t.Setenv(config.DebugEnv, "")
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.App.RemoteURL = "https://app.example.com/"
	store := site.NewStore(t.TempDir(), fetcherFunc(func(context.Context, string, string, string) (string, error) {
		return "", nil
	}), testLogger())

	tests := []struct {
		name     string
		dev      bool
		wantMenu bool
	}{
		{name: "production", dev: false, wantMenu: false},
		{name: "development", dev: true, wantMenu: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(Deps{
				Config:  cfg,
				Options: cfg.Resolve(tt.dev, false),
				Assets:  fstest.MapFS{},
				Store:   store,
				Logger:  testLogger(),
			})

			opts := s.appOptions()
			assert.False(t, opts.Frameless, "window must keep its native frame")
			assert.Equal(t, tt.wantMenu, opts.Menu != nil)
			assert.Equal(t, cfg.App.Name, opts.Title)
		})
	}
}

func TestInstanceID(t *testing.T) {
	assert.Equal(t, "io.mindesktop.mindesktop", instanceID("MinDesktop"))
	assert.Equal(t, "io.mindesktop.acme-site-2", instanceID("Acme Site 2!"))
}
