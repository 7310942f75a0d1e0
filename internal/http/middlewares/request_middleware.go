package middlewares

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-Id"

func RequestID() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id := ctx.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		ctx.Writer.Header().Set(requestIDHeader, id)
		ctx.Set(CtxRequestID, id)

		ctx.Next()
	}
}

func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}

	return func(ctx *gin.Context) {
		start := time.Now()

		route := ctx.FullPath()
		if route == "" {
			route = ctx.Request.URL.Path // 404s
		}

		method := ctx.Request.Method

		ctx.Next()

		logAttrs := []any{
			"method", method,
			"route", route,
			"status", ctx.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"request_id", ctx.GetString(CtxRequestID),
		}

		if target := ctx.GetString(CtxTargetID); target != "" {
			logAttrs = append(logAttrs, "target_id", target)
		}
		if jobID := ctx.GetString(CtxJobID); jobID != "" {
			logAttrs = append(logAttrs, "job_id", jobID)
		}

		// user_id comes from the session the auth middleware attached further down the chain
		log.InfoContext(ctx.Request.Context(), "http_request", logAttrs...)
	}
}
