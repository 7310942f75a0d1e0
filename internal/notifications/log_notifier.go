package notifications

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var ErrSimulatedOutage = errors.New("provider down (simulated)")

// LogNotifier writes messages to the log instead of delivering them. Delay and Fail
// simulate a slow or broken provider.
type LogNotifier struct {
	log   *slog.Logger
	Delay time.Duration
	Fail  bool
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	if n.Delay > 0 {
		select {
		case <-time.After(n.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if n.Fail {
		return ErrSimulatedOutage
	}

	n.log.InfoContext(ctx, "notification sent",
		"kind", msg.Kind,
		"to", msg.To,
		"subject", msg.Subject,
	)
	return nil
}
