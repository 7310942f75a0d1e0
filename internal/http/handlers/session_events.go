package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/geocoder89/profilehub/internal/http/middlewares"
	"github.com/geocoder89/profilehub/internal/session"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// EventSubscriber is satisfied by *session.Provider.
type EventSubscriber interface {
	Subscribe(ctx context.Context, userID string) (<-chan session.Event, func(), error)
}

// SessionEventsHandler streams the caller's session changes (sign-in, sign-out,
// refresh, profile and password updates) over a websocket.
type SessionEventsHandler struct {
	events   EventSubscriber
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewSessionEventsHandler(events EventSubscriber, allowedOrigins []string, log *slog.Logger) *SessionEventsHandler {
	if log == nil {
		log = slog.Default()
	}

	return &SessionEventsHandler{
		events: events,
		log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return middlewares.OriginAllowed(allowedOrigins, r.Header.Get("Origin"))
			},
		},
	}
}

// GET /api/session/events
func (h *SessionEventsHandler) Stream(ctx *gin.Context) {
	uid, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Not authenticated")
		return
	}

	// detach from the request's deadline but keep its values; the socket outlives it
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx.Request.Context()))
	defer cancel()

	events, unsubscribe, err := h.events.Subscribe(streamCtx, uid)
	if err != nil {
		RespondServiceError(ctx, err, "Could not subscribe to session events")
		return
	}
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		// the upgrader already wrote the error response
		h.log.WarnContext(streamCtx, "websocket upgrade", "user_id", uid, "err", err)
		return
	}
	defer conn.Close()

	go h.readPump(conn, cancel)
	h.writePump(streamCtx, conn, events)
}

// readPump discards client frames and cancels the stream once the peer goes away.
func (h *SessionEventsHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *SessionEventsHandler) writePump(ctx context.Context, conn *websocket.Conn, events <-chan session.Event) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
			return

		case ev, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
