package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type notifierFunc func(ctx context.Context, msg Message) error

func (f notifierFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

func TestProtectedNotifier_OpensAfterThreshold(t *testing.T) {
	calls := 0
	inner := notifierFunc(func(context.Context, Message) error {
		calls++
		return errors.New("boom")
	})

	n := NewProtectedNotifier(inner, ProtectedNotifierConfig{FailureThreshold: 2, Cooldown: time.Hour})

	for i := 0; i < 2; i++ {
		if err := n.Send(context.Background(), Message{}); err == nil {
			t.Fatal("expected inner error")
		}
	}

	if n.State() != stateOpen {
		t.Fatalf("state = %s, want open", n.State())
	}

	if err := n.Send(context.Background(), Message{}); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if calls != 2 {
		t.Fatalf("inner called %d times while open", calls)
	}
}

func TestProtectedNotifier_HalfOpenRecovers(t *testing.T) {
	fail := true
	inner := notifierFunc(func(context.Context, Message) error {
		if fail {
			return errors.New("boom")
		}
		return nil
	})

	n := NewProtectedNotifier(inner, ProtectedNotifierConfig{FailureThreshold: 1, Cooldown: time.Millisecond})

	_ = n.Send(context.Background(), Message{})
	if n.State() != stateOpen {
		t.Fatalf("state = %s", n.State())
	}

	time.Sleep(5 * time.Millisecond)
	fail = false

	if err := n.Send(context.Background(), Message{}); err != nil {
		t.Fatalf("trial call: %v", err)
	}
	if n.State() != stateClosed {
		t.Fatalf("state = %s, want closed", n.State())
	}
}

func TestProtectedNotifier_Timeout(t *testing.T) {
	slow := NewLogNotifier(slog.New(slog.NewTextHandler(io.Discard, nil)))
	slow.Delay = time.Second

	n := NewProtectedNotifier(slow, ProtectedNotifierConfig{Timeout: 10 * time.Millisecond})

	if err := n.Send(context.Background(), Message{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestLogNotifier_SimulatedOutage(t *testing.T) {
	n := NewLogNotifier(slog.New(slog.NewTextHandler(io.Discard, nil)))
	n.Fail = true

	if err := n.Send(context.Background(), Message{To: "a@x.io"}); !errors.Is(err, ErrSimulatedOutage) {
		t.Fatalf("err = %v", err)
	}
}

func TestSendGridNotifier_Send(t *testing.T) {
	var got sendGridMailSendRequest
	var auth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewSendGridNotifier("key", "no-reply@x.io")
	n.Endpoint = srv.URL

	err := n.Send(context.Background(), Message{Kind: "send_invitation", To: "a@x.io", Subject: "Hi", Body: "link"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if auth != "Bearer key" {
		t.Fatalf("auth header = %q", auth)
	}
	if got.Personalizations[0].To[0].Email != "a@x.io" || got.Content[0].Value != "link" {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestSendGridNotifier_Non202(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	n := NewSendGridNotifier("key", "no-reply@x.io")
	n.Endpoint = srv.URL

	if err := n.Send(context.Background(), Message{To: "a@x.io"}); err == nil {
		t.Fatal("expected error")
	}

	if err := NewSendGridNotifier("", "x@x.io").Send(context.Background(), Message{}); err == nil {
		t.Fatal("expected missing key error")
	}
}
