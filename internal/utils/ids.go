package utils

import "github.com/google/uuid"

func IsUUID(s string) bool {
	return uuid.Validate(s) == nil
}
