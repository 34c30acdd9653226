// Package session reacts to the application's desired-connection signal.
// The core performs no authentication; it only connects or tears down the
// feed as the surrounding session state flips.
package session

import (
	"context"
	"log/slog"
)

// Controller is the connect/disconnect surface of the connection manager.
type Controller interface {
	Connect()
	Disconnect()
}

// Watcher applies the boolean "should be connected" signal to a controller.
type Watcher struct {
	ctrl   Controller
	logger *slog.Logger
}

func NewWatcher(ctrl Controller, logger *slog.Logger) *Watcher {
	return &Watcher{ctrl: ctrl, logger: logger}
}

// Run consumes the desired-connection signal until the context is cancelled
// or the channel closes. Either exit tears the feed down.
func (w *Watcher) Run(ctx context.Context, desired <-chan bool) {
	for {
		select {
		case <-ctx.Done():
			w.ctrl.Disconnect()
			return
		case want, ok := <-desired:
			if !ok {
				w.ctrl.Disconnect()
				return
			}
			if want {
				w.logger.Info("session active, connecting feed")
				w.ctrl.Connect()
			} else {
				w.logger.Info("session ended, disconnecting feed")
				w.ctrl.Disconnect()
			}
		}
	}
}
