package shell

import (
	"context"
	"time"

	"github.com/schaermu/mindesktop/internal/site"
	"github.com/schaermu/mindesktop/internal/window"
)

// API is bound to the frontend as window.go.shell.API
type API struct {
	ctxFn    func() context.Context
	ctrl     *window.Controller
	store    *site.Store
	win      *wailsWindow
	notifier window.Notifier
}

// SyncStatus describes the content the window is showing
type SyncStatus struct {
	State    string     `json:"state"`
	Local    bool       `json:"local"`
	Repo     string     `json:"repo,omitempty"`
	Branch   string     `json:"branch,omitempty"`
	Commit   string     `json:"commit,omitempty"`
	SyncedAt *time.Time `json:"syncedAt,omitempty"`
}

// RequestSync fetches repo@branch and switches the window to the offline copy
func (a *API) RequestSync(repo, branch string) error {
	return a.ctrl.RequestSync(a.context(), repo, branch)
}

// Notify shows a desktop notification
func (a *API) Notify(title, body, icon string) {
	if a.notifier != nil {
		a.notifier.Notify(title, body, icon)
	}
}

// CurrentURL returns the URL the content frame should load
func (a *API) CurrentURL() string {
	return a.win.CurrentURL()
}

// SyncStatus reports the window state and the published site, if any
func (a *API) SyncStatus() SyncStatus {
	st := SyncStatus{
		State: a.ctrl.State().String(),
		Local: a.ctrl.Location().IsLocal(),
	}
	if s := a.store.State(); s != nil && st.Local {
		st.Repo = s.Repo
		st.Branch = s.Branch
		st.Commit = s.Commit
		syncedAt := s.SyncedAt
		st.SyncedAt = &syncedAt
	}
	return st
}

// Hide hides the window
func (a *API) Hide() {
	a.ctrl.Hide()
}

// Quit exits the application
func (a *API) Quit() {
	a.ctrl.Quit()
}

func (a *API) context() context.Context {
	if ctx := a.ctxFn(); ctx != nil {
		return ctx
	}
	return context.Background()
}
