package shell

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// sitePrefix is the asset server path the published site is mounted at
const sitePrefix = "/site/"

// runtimeCalls are the Wails runtime functions the window uses
type runtimeCalls struct {
	execJS   func(ctx context.Context, js string)
	show     func(ctx context.Context)
	hide     func(ctx context.Context)
	maximise func(ctx context.Context)
	quit     func(ctx context.Context)
}

var defaultRuntime = runtimeCalls{
	execJS:   wailsruntime.WindowExecJS,
	show:     wailsruntime.WindowShow,
	hide:     wailsruntime.WindowHide,
	maximise: wailsruntime.WindowMaximise,
	quit:     wailsruntime.Quit,
}

// wailsWindow implements window.Window on top of the Wails runtime.
//
// The top level document is always the built-in shell page; content is
// rendered in its frame, so the frontend bindings stay available whichever
// site is shown. Calls made before the runtime context exists only record
// the content URL, which the page picks up through API.CurrentURL.
type wailsWindow struct {
	ctxFn   func() context.Context
	rt      runtimeCalls
	siteDir string

	mu  sync.Mutex
	url string
}

func newWailsWindow(ctxFn func() context.Context, siteDir string, rt runtimeCalls) *wailsWindow {
	return &wailsWindow{ctxFn: ctxFn, siteDir: siteDir, rt: rt}
}

func (w *wailsWindow) LoadRemote(remote string) error {
	u, err := url.Parse(remote)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid remote url %q", remote)
	}
	w.navigate(u.String())
	return nil
}

func (w *wailsWindow) LoadFile(path string) error {
	rel, err := filepath.Rel(w.siteDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%s is outside the site directory %s", path, w.siteDir)
	}
	u := url.URL{Path: sitePrefix + filepath.ToSlash(rel)}
	w.navigate(u.EscapedPath())
	return nil
}

func (w *wailsWindow) Show() {
	if ctx := w.ctxFn(); ctx != nil {
		w.rt.show(ctx)
	}
}

func (w *wailsWindow) Hide() {
	if ctx := w.ctxFn(); ctx != nil {
		w.rt.hide(ctx)
	}
}

func (w *wailsWindow) Maximize() {
	if ctx := w.ctxFn(); ctx != nil {
		w.rt.maximise(ctx)
	}
}

func (w *wailsWindow) Destroy() {
	if ctx := w.ctxFn(); ctx != nil {
		w.rt.quit(ctx)
	}
}

// CurrentURL returns the URL the content frame should show
func (w *wailsWindow) CurrentURL() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.url
}

func (w *wailsWindow) navigate(target string) {
	w.mu.Lock()
	w.url = target
	w.mu.Unlock()

	ctx := w.ctxFn()
	if ctx == nil {
		return
	}
	quoted, _ := json.Marshal(target)
	w.rt.execJS(ctx, fmt.Sprintf("window.mindesktop && window.mindesktop.load(%s)", quoted))
}
