package middlewares

import (
	"strconv"
	"time"

	"menusync/src/lib"

	"github.com/gin-gonic/gin"
)

func Metrics(ctx *gin.Context) {
	start := time.Now()
	ctx.Next()
	path := ctx.FullPath()
	if path == "" {
		path = "unmatched"
	}
	lib.RequestCounter.WithLabelValues(ctx.Request.Method, path, strconv.Itoa(ctx.Writer.Status())).Inc()
	lib.RequestDurationHistogram.WithLabelValues(ctx.Request.Method, path).Observe(time.Since(start).Seconds())
}
