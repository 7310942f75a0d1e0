package notifications

import "context"

// Message is one outbound account email.
type Message struct {
	Kind    string
	To      string
	Subject string
	Body    string
}

type Notifier interface {
	Send(ctx context.Context, msg Message) error
}
