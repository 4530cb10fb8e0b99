package localcache

import (
	"github.com/bluele/gcache"
	"github.com/spf13/viper"
)

// 容量很小：每个受管社区一条解析后的策略
var localcache gcache.Cache

func InitLocalCache() {
	localcache = gcache.New(viper.GetInt("localcache.size")).LRU().Build()
}

func GetLocalCache() gcache.Cache {
	return localcache
}
