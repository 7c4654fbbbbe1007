package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gen2brain/beeep"
)

// SendFunc delivers a notification with a resolved local icon path
type SendFunc func(title, body, iconPath string) error

// Notifier sends desktop notifications without blocking the caller
type Notifier struct {
	icons  *IconResolver
	send   SendFunc
	logger *slog.Logger
	wg     sync.WaitGroup
}

// New creates a notifier delivering through the OS notification service
func New(icons *IconResolver, logger *slog.Logger) *Notifier {
	return NewWithSender(icons, logger, func(title, body, iconPath string) error {
		return beeep.Notify(title, body, iconPath)
	})
}

// NewWithSender creates a notifier with a custom delivery function
func NewWithSender(icons *IconResolver, logger *slog.Logger, send SendFunc) *Notifier {
	return &Notifier{icons: icons, send: send, logger: logger}
}

// Notify resolves the icon and sends the notification in the background.
// Failures are logged, never returned.
func (n *Notifier) Notify(title, body, icon string) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		iconPath := n.icons.Resolve(ctx, icon)
		if err := n.send(title, body, iconPath); err != nil {
			n.logger.Warn("failed to send notification", "title", title, "error", err)
		}
	}()
}

// Wait blocks until all pending notifications were handed off
func (n *Notifier) Wait() {
	n.wg.Wait()
}
