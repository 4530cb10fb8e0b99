package router

import (
	"fmt"
	"net/http"

	"github.com/Asterisk-tech/moderatelyhelpfulbot/controller"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/logger"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/middleware"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
)

var router *gin.Engine

func Init() {
	if !viper.GetBool("server.develop_mode") {
		gin.SetMode(gin.ReleaseMode)
	}

	router = gin.New()
	router.Use(logger.GinLogger(), logger.GinRecovery(true), middleware.RateLimit(0.6, 5000)) // 全局限流

	v1 := router.Group("/api/v1")

	v1.GET("/health", controller.HealthHandler)

	/* Community */
	communityGrp := v1.Group("/community")
	communityGrp.Use(middleware.Auth())
	communityGrp.GET("/detail", controller.CommunityDetailHandler)
	communityGrp.GET("/stats", controller.CommunityStatsHandler)
	communityGrp.POST("/refresh", controller.CommunityRefreshHandler)

	/* Author */
	authorGrp := v1.Group("/author")
	authorGrp.Use(middleware.Auth())
	authorGrp.GET("/summary", controller.AuthorSummaryHandler)

	/* Debug */
	debugGrp := v1.Group("/debug")
	debugGrp.Use(middleware.Auth())
	debugGrp.GET("/localcache", controller.DebugLocalCacheHandler)
}

func GetServer() *http.Server {
	return &http.Server{
		Addr:    fmt.Sprintf("%s:%d", viper.GetString("server.ip"), viper.GetInt("server.port")),
		Handler: router,
	}
}
