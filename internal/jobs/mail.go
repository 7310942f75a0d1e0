package jobs

import (
	"fmt"

	"github.com/geocoder89/profilehub/internal/notifications"
)

// Compose turns a decoded payload into the email the worker sends.
func Compose(t JobType, payload any) (notifications.Message, error) {
	if err := ValidatePayload(t, payload); err != nil {
		return notifications.Message{}, err
	}

	msg := notifications.Message{Kind: string(t)}

	switch p := payload.(type) {
	case InvitationPayload:
		msg.To = p.Email
		msg.Subject = "You have been invited"
		msg.Body = fmt.Sprintf("You have been invited to create an account.\n\nAccept the invitation: %s\n", p.Link)

	case PasswordResetPayload:
		msg.To = p.Email
		msg.Subject = "Reset your password"
		msg.Body = fmt.Sprintf("A password reset was requested for %s.\n\nChoose a new password: %s\n\nIf this wasn't you, ignore this email.\n", p.Email, p.Link)

	case EmailConfirmationPayload:
		msg.To = p.Email
		msg.Subject = "Confirm your email"
		if p.Change {
			msg.Subject = "Confirm your new email"
		}
		msg.Body = fmt.Sprintf("Confirm %s: %s\n", p.Email, p.Link)

	default:
		return notifications.Message{}, ErrPayloadTypeMismatch
	}

	return msg, nil
}
