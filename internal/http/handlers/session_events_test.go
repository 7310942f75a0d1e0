package handlers_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/geocoder89/profilehub/internal/actorctx"
	"github.com/geocoder89/profilehub/internal/http/handlers"
	"github.com/geocoder89/profilehub/internal/session"
)

func TestSessionEvents_StreamsCallerEvents(t *testing.T) {
	bus := session.NewLocalBus()
	h := handlers.NewSessionEventsHandler(bus, nil, nil)

	r := gin.New()
	r.GET("/api/session/events", func(c *gin.Context) {
		ctx := actorctx.WithSession(c.Request.Context(), actorctx.Session{UserID: "u1"})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}, h.Stream)

	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/session/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// the subscription is registered before the upgrade completes
	_ = bus.Publish(context.Background(), session.Event{Type: session.EventSignedIn, UserID: "someone-else"})
	_ = bus.Publish(context.Background(), session.Event{Type: session.EventSignedOut, UserID: "u1", At: time.Now()})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var ev session.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.Type != session.EventSignedOut || ev.UserID != "u1" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestSessionEvents_RejectsForeignOrigin(t *testing.T) {
	h := handlers.NewSessionEventsHandler(session.NewLocalBus(), []string{"https://app.example.com"}, nil)

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		c.Request = c.Request.WithContext(actorctx.WithSession(c.Request.Context(), actorctx.Session{UserID: "u1"}))
		c.Next()
	}, h.Stream)

	srv := httptest.NewServer(r)
	defer srv.Close()

	header := map[string][]string{"Origin": {"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", header)
	if err == nil {
		t.Fatalf("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != 403 {
		t.Fatalf("expected 403, got %+v", resp)
	}
}

func TestSessionEvents_RequiresSession(t *testing.T) {
	h := handlers.NewSessionEventsHandler(session.NewLocalBus(), nil, nil)

	r := gin.New()
	r.GET("/ws", h.Stream)

	w := doJSON(r, "GET", "/ws", "")
	if w.Code != 401 {
		t.Fatalf("status = %d", w.Code)
	}
}
