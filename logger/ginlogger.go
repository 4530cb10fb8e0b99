package logger

import (
	"net"
	"net/http"
	"net/http/httputil"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// GinLogger 管理接口的访问日志
func GinLogger() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		Infof("| %3d | %13v | %15v | %-7s  \"%s\"",
			ctx.Writer.Status(), time.Since(start), ctx.ClientIP(),
			ctx.Request.Method, ctx.Request.URL)
	}
}

func GinRecovery(stack bool) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		defer func() {
			err := recover()
			if err == nil {
				return
			}

			httpRequest, _ := httputil.DumpRequest(ctx.Request, false)
			if isBrokenPipe(err) {
				// 连接已经断了，写不回状态码
				Errorf("%s error: %v request: %s", ctx.Request.URL.Path, err, string(httpRequest))
				ctx.Error(err.(error)) // nolint: errcheck
				ctx.Abort()
				return
			}

			if stack {
				Errorf("[Recovery from panic]\nError: %v\nRequest: %v\nStack trace:\n%v",
					err, string(httpRequest), string(debug.Stack()))
			} else {
				Errorf("[Recovery from panic]\nError: %v\nRequest: %v\n", err, string(httpRequest))
			}
			ctx.AbortWithStatus(http.StatusInternalServerError)
		}()
		ctx.Next()
	}
}

// 对端断开不值得打 panic 堆栈
func isBrokenPipe(err any) bool {
	ne, ok := err.(*net.OpError)
	if !ok {
		return false
	}
	se, ok := ne.Err.(*os.SyscallError)
	if !ok {
		return false
	}
	msg := strings.ToLower(se.Error())
	return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
}
