// Package notify shows desktop notifications.
package notify

import (
	"log/slog"

	"github.com/gen2brain/beeep"
)

// AppName is used as the notification title.
const AppName = "Echo"

// Notify shows a notification. Failures are logged and otherwise ignored.
func Notify(message string) {
	if err := beeep.Notify(AppName, message, ""); err != nil {
		slog.Warn("desktop notification", "error", err)
	}
}
