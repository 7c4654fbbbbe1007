package shell

import (
	"context"
	"log/slog"
	"os"

	"github.com/wailsapp/wails/v2/pkg/logger"
)

// wailsLogger routes the Wails framework log through slog
type wailsLogger struct {
	l *slog.Logger
}

var _ logger.Logger = (*wailsLogger)(nil)

func newWailsLogger(l *slog.Logger) *wailsLogger {
	return &wailsLogger{l: l.With("component", "wails")}
}

func (w *wailsLogger) Print(message string) { w.l.Info(message) }
func (w *wailsLogger) Trace(message string) {
	w.l.Log(context.Background(), slog.LevelDebug-4, message)
}
func (w *wailsLogger) Debug(message string)   { w.l.Debug(message) }
func (w *wailsLogger) Info(message string)    { w.l.Info(message) }
func (w *wailsLogger) Warning(message string) { w.l.Warn(message) }
func (w *wailsLogger) Error(message string)   { w.l.Error(message) }

func (w *wailsLogger) Fatal(message string) {
	w.l.Error(message)
	os.Exit(1)
}

// wailsLevel maps the slog level enabled on l onto the Wails log level
func wailsLevel(l *slog.Logger) logger.LogLevel {
	ctx := context.Background()
	switch {
	case l.Enabled(ctx, slog.LevelDebug):
		return logger.DEBUG
	case l.Enabled(ctx, slog.LevelInfo):
		return logger.INFO
	case l.Enabled(ctx, slog.LevelWarn):
		return logger.WARNING
	default:
		return logger.ERROR
	}
}
