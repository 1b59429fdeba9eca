package middlewares

import (
	"time"

	"menusync/src/lib"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const RequestIDHeader = "X-Request-ID"

// RequestLogger tags the request with an id and logs its outcome.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		rid := ctx.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(rid); err != nil {
			rid = uuid.NewString()
		}
		ctx.Set("request_id", rid)
		ctx.Header(RequestIDHeader, rid)
		reqLog := log.With(zap.String("request_id", rid))
		ctx.Request = ctx.Request.WithContext(lib.WithLogger(ctx.Request.Context(), reqLog))

		ctx.Next()

		fields := []zap.Field{
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.Request.URL.Path),
			zap.Int("status", ctx.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", ctx.ClientIP()),
		}
		if len(ctx.Errors) > 0 {
			fields = append(fields, zap.String("errors", ctx.Errors.String()))
		}
		// pick up tenant fields added further down the chain
		l := lib.LoggerFromContext(ctx.Request.Context())
		switch {
		case ctx.Writer.Status() >= 500:
			l.Error("request", fields...)
		case ctx.Writer.Status() >= 400:
			l.Warn("request", fields...)
		default:
			l.Info("request", fields...)
		}
	}
}

func RequestID(ctx *gin.Context) string {
	return ctx.GetString("request_id")
}
