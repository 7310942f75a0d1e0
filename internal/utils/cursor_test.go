package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestJobCursor_RoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.FixedZone("UTC+2", 2*3600))
	id := uuid.NewString()

	raw, err := EncodeJobCursor(at, id)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	c, err := DecodeJobCursor(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if !c.UpdatedAt.Equal(at) || c.ID != id {
		t.Fatalf("got %+v", c)
	}
}

func TestDecodeJobCursor_Rejects(t *testing.T) {
	noTime, _ := EncodeJobCursor(time.Time{}, uuid.NewString())
	notUUID, _ := EncodeJobCursor(time.Now(), "job-1")

	cases := map[string]string{
		"empty":      "",
		"not base64": "%%%",
		"not json":   "bm9wZQ",
		"no time":    noTime,
		"bad id":     notUUID,
	}

	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeJobCursor(in); !errors.Is(err, ErrInvalidCursor) {
				t.Fatalf("DecodeJobCursor(%q) err = %v, want ErrInvalidCursor", in, err)
			}
		})
	}
}

func TestIsUUID(t *testing.T) {
	if !IsUUID("6f1c1d2e-4b7a-4c1e-9d2a-0a5b6c7d8e9f") {
		t.Fatal("expected valid uuid")
	}
	if IsUUID("not-a-uuid") {
		t.Fatal("expected invalid uuid")
	}
}
