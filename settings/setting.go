package settings

import "github.com/spf13/viper"

func InitSettings(confPath string) {
	viper.SetDefault("server.ip", "")
	viper.SetDefault("server.port", 1145)
	viper.SetDefault("server.develop_mode", false)
	viper.SetDefault("server.shutdown_waitting_time", 30) // 收到 SIGINT 信号后，超过 30s 强制退出
	viper.SetDefault("server.owner", "")                  // bot owner 账号，拥有所有社区的命令权限
	viper.SetDefault("server.bot_name", "ModeratelyHelpfulBot")
	viper.SetDefault("server.admin_token", "")
	viper.SetDefault("server.response_tail", "")

	viper.SetDefault("mysql.driverName", "mysql")
	viper.SetDefault("mysql.host", "127.0.0.1")
	viper.SetDefault("mysql.port", 3306)
	viper.SetDefault("mysql.username", "root")
	viper.SetDefault("mysql.password", "123456")
	viper.SetDefault("mysql.database", "mhb")
	viper.SetDefault("mysql.charset", "utf8mb4")
	viper.SetDefault("mysql.debug", false)

	viper.SetDefault("redis.host", "127.0.0.1")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.poolsize", 10)
	viper.SetDefault("redis.max_oper_time", 3)
	viper.SetDefault("redis.seen_post_expire_time", 86400) // 拉取去重缓存的 TTL
	viper.SetDefault("redis.sweep_lease_time", 600)        // 扫描租约，防止两个扫描并发执行

	viper.SetDefault("logger.level", 0)
	viper.SetDefault("logger.path", "./logs/mhb.log")
	viper.SetDefault("logger.max_size", 16)
	viper.SetDefault("logger.max_backups", 5)
	viper.SetDefault("logger.max_age", 28)
	viper.SetDefault("logger.compress", false)
	viper.SetDefault("logger.console", true)

	viper.SetDefault("localcache.size", 512)

	viper.SetDefault("platform.base_url", "http://127.0.0.1:8080")
	viper.SetDefault("platform.token", "")
	viper.SetDefault("platform.timeout", 30)        // 单次平台调用超时（秒）
	viper.SetDefault("platform.retry_max", 3)       // retryablehttp 重试次数
	viper.SetDefault("platform.rate_per_second", 1) // 出站调用限速

	viper.SetDefault("service.ingest.cron", "@every 2m")
	viper.SetDefault("service.ingest.query_limit", 800)
	viper.SetDefault("service.sweep.cron", "@every 5m")
	viper.SetDefault("service.sweep.time_budget", 180)   // 单次扫描软时间预算（秒）
	viper.SetDefault("service.sweep.accurate_every", 30) // 每 N 次扫描跑一次更精确（更慢）的候选查询
	viper.SetDefault("service.sweep.scan_cap", 20)       // 单个作者回看窗口内最多检查的帖子数
	viper.SetDefault("service.purge.cron", "@daily")
	viper.SetDefault("service.messages.cron", "@every 3m")
	viper.SetDefault("service.messages.inbox_limit", 25)
	viper.SetDefault("service.policy.revalidate_interval", 86400) // 策略文档重新校验间隔（秒）
	viper.SetDefault("service.policy.load_timeout", 10)

	viper.SetConfigFile(confPath)

	if err := viper.ReadInConfig(); err != nil {
		panic(err.Error())
	}
}
