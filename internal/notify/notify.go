// Package notify defines the user-facing signal surface of the sync core.
// The host UI implements Notifier to render toasts, badges and the live
// indicator; the default implementation just logs.
package notify

import "github.com/rs/zerolog"

// Level of a toast signal.
type Level string

const (
	Info    Level = "info"
	Success Level = "success"
	Warning Level = "warning"
	Error   Level = "error"
)

// ConnState mirrors the connection manager lifecycle for the UI's live
// indicator.
type ConnState string

const (
	StateClosed     ConnState = "closed"
	StateConnecting ConnState = "connecting"
	StateOpen       ConnState = "open"
	StateClosing    ConnState = "closing"
)

// Badge identifies a counter the UI renders next to a section.
type Badge string

const (
	BadgeChat  Badge = "chat"
	BadgePhone Badge = "phone"
)

// Notifier receives user-facing signals. Implementations must be safe for
// concurrent use; the connection reader goroutine emits through it.
type Notifier interface {
	// Toast shows a one-shot notification.
	Toast(level Level, message string)
	// ConnectionStatus reports every connection state change.
	ConnectionStatus(state ConnState)
	// BadgeIncrement bumps the unread counter for a section.
	BadgeIncrement(badge Badge)
}

// LogNotifier is the default Notifier: it writes every signal to the log.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (n LogNotifier) Toast(level Level, message string) {
	n.Logger.Info().Str("level", string(level)).Str("toast", message).Msg("notification")
}

func (n LogNotifier) ConnectionStatus(state ConnState) {
	n.Logger.Info().Str("state", string(state)).Msg("connection status")
}

func (n LogNotifier) BadgeIncrement(badge Badge) {
	n.Logger.Debug().Str("badge", string(badge)).Msg("badge increment")
}
