package controller

import (
	common "github.com/Asterisk-tech/moderatelyhelpfulbot/controller/Common"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/dao/localcache"

	"github.com/gin-gonic/gin"
)

// HealthHandler 存活探针
func HealthHandler(ctx *gin.Context) {
	common.ResponseSuccess(ctx, gin.H{"status": "ok"})
}

// DebugLocalCacheHandler 获取本地缓存接口，排查策略缓存问题用
func DebugLocalCacheHandler(ctx *gin.Context) {
	lc := localcache.GetLocalCache()
	common.ResponseSuccess(ctx, gin.H{"local_cache": lc.GetALL(false)})
}
