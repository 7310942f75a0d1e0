package jobs

import (
	"encoding/json"
	"fmt"
)

// EncodePayload checks that payload matches t and is valid, then marshals it.
func EncodePayload(t JobType, payload any) ([]byte, error) {
	if err := ValidatePayload(t, payload); err != nil {
		return nil, err
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
	}

	return b, nil
}

// DecodePayload unmarshals raw into the typed payload struct for t.
func DecodePayload(t JobType, raw []byte) (any, error) {
	if !t.IsValid() {
		return nil, ErrInvalidJobType
	}
	if len(raw) == 0 {
		return nil, ErrInvalidJobPayload
	}

	switch t {
	case JobSendInvitation:
		return decodeAs[InvitationPayload](raw)
	case JobSendPasswordReset:
		return decodeAs[PasswordResetPayload](raw)
	default:
		return decodeAs[EmailConfirmationPayload](raw)
	}
}

func decodeAs[T any](raw []byte) (any, error) {
	var p T
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
	}
	return p, nil
}
