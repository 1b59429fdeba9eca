package middlewares

import "github.com/gin-gonic/gin"

func SecureHeaders(ctx *gin.Context) {
	h := ctx.Writer.Header()
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("Referrer-Policy", "no-referrer")
	h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
	h.Set("Cache-Control", "no-store")
	ctx.Next()
}
