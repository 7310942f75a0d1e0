package jobs

import "strings"

func blank(s string) bool { return strings.TrimSpace(s) == "" }

// ValidatePayload performs minimal validation on payloads, by value or pointer.
func ValidatePayload(t JobType, payload any) error {
	if !t.IsValid() {
		return ErrInvalidJobType
	}

	switch t {
	case JobSendInvitation:
		var p InvitationPayload
		switch v := payload.(type) {
		case InvitationPayload:
			p = v
		case *InvitationPayload:
			p = *v
		default:
			return ErrPayloadTypeMismatch
		}
		if blank(p.Email) || blank(p.Link) {
			return ErrInvalidJobPayload
		}

	case JobSendPasswordReset:
		var p PasswordResetPayload
		switch v := payload.(type) {
		case PasswordResetPayload:
			p = v
		case *PasswordResetPayload:
			p = *v
		default:
			return ErrPayloadTypeMismatch
		}
		if blank(p.UserID) || blank(p.Email) || blank(p.Link) {
			return ErrInvalidJobPayload
		}

	case JobSendEmailConfirmation:
		var p EmailConfirmationPayload
		switch v := payload.(type) {
		case EmailConfirmationPayload:
			p = v
		case *EmailConfirmationPayload:
			p = *v
		default:
			return ErrPayloadTypeMismatch
		}
		if blank(p.UserID) || blank(p.Email) || blank(p.Link) {
			return ErrInvalidJobPayload
		}
	}

	return nil
}
