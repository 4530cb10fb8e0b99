package localcache

import (
	"fmt"

	"github.com/Asterisk-tech/moderatelyhelpfulbot/models"
)

// 受管社区的解析结果缓存，替代全局 map；失效由时间驱动
// （service.policy.revalidate_interval）而不是隐式的进程生命周期

func communityKey(name string) string {
	return fmt.Sprintf("community_%s", name)
}

func SetCommunity(community *models.TrackedCommunity) {
	localcache.Set(communityKey(community.CommunityName), community)
}

func GetCommunity(name string) (*models.TrackedCommunity, bool) {
	v, err := localcache.Get(communityKey(name))
	if err != nil {
		return nil, false
	}
	community, ok := v.(*models.TrackedCommunity)
	return community, ok
}

func RemoveCommunity(name string) bool {
	return localcache.Remove(communityKey(name))
}
