package notifications

import (
	"log/slog"
	"time"

	"github.com/geocoder89/profilehub/internal/config"
)

// FromConfig picks SendGrid when an API key is configured and the log notifier
// otherwise, wrapped in the circuit breaker either way.
func FromConfig(cfg config.Config, log *slog.Logger) *ProtectedNotifier {
	var inner Notifier = NewLogNotifier(log)
	if cfg.SendGridAPIKey != "" {
		inner = NewSendGridNotifier(cfg.SendGridAPIKey, cfg.MailFrom)
	}

	return NewProtectedNotifier(inner, ProtectedNotifierConfig{
		Timeout: time.Duration(cfg.NotifierTimeoutMS) * time.Millisecond,
	})
}
