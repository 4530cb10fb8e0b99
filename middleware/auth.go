package middleware

import (
	"crypto/subtle"
	"strings"

	common "github.com/Asterisk-tech/moderatelyhelpfulbot/controller/Common"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
)

// Auth 管理接口的 Bearer 鉴权，口令在配置文件 server.admin_token
func Auth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := viper.GetString("server.admin_token")
		if token == "" {
			// 没配置口令就不对外开放管理接口
			common.ResponseError(ctx, common.CodeInvalidToken)
			ctx.Abort()
			return
		}

		header := ctx.GetHeader("Authorization")
		got, found := strings.CutPrefix(header, "Bearer ")
		if !found || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			common.ResponseError(ctx, common.CodeInvalidToken)
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}
