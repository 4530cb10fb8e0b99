package logic

import (
	"time"

	"github.com/Asterisk-tech/moderatelyhelpfulbot/dao/mysql"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/logger"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/models"

	"github.com/spf13/viper"
)

// FindPreviousPosts 找触发帖之前、仍然计入配额的同作者帖子，升序返回
// （最后一个元素就是"上一个帖子"）。窗口是
// [trigger - interval + grace, trigger)，扫描量有上限，防止被刷屏作者拖垮
func FindPreviousPosts(community *models.TrackedCommunity, trigger *models.Post) ([]*models.Post, error) {
	policy := community.Policy
	tick := time.Now()

	from := trigger.PostedAt.Add(-policy.MinPostInterval).Add(policy.GracePeriod)
	candidates, err := mysql.SelectWindowPosts(
		community.CommunityName, trigger.AuthorName, from, trigger.PostedAt, trigger.PostID)
	if err != nil {
		return nil, err
	}

	scanCap := viper.GetInt("service.sweep.scan_cap")
	reposts := make([]*models.Post, 0, len(candidates))

	for i, candidate := range candidates {
		if i >= scanCap {
			break
		}
		logger.Debugf("possible repost of: %.20s... %s counted? %d",
			candidate.Title, candidate.URL(), candidate.CountedStatus)

		dirty := false
		if candidate.CountedStatus == models.CountedUnchecked {
			if _, err := EnsureCounted(community, candidate); err != nil {
				logger.ErrorWithStack(err)
				continue
			}
		}

		if candidate.CountedStatus == models.CountedCounts {
			// 自删状态只有在检查的这一刻才可靠，补一次刷新
			if !candidate.SelfDeleted {
				if err := RefreshPostStatus(candidate); err != nil {
					logger.Warnf("logic:FindPreviousPosts: refresh %s: %v", candidate.PostID, err)
				} else {
					dirty = true
				}
			}
			// 宽限期折叠：自删后在宽限期内重发的，当作改错字，不算规避配额
			if candidate.SelfDeleted && trigger.PostedAt.Sub(candidate.PostedAt) < policy.GracePeriod {
				candidate.CountedStatus = models.CountedExempt
				dirty = true
			} else {
				reposts = append(reposts, candidate)
			}
		}

		if dirty {
			if err := mysql.SavePost(nil, candidate); err != nil {
				logger.ErrorWithStack(err)
			}
		}
	}

	logger.Debugf(">>>total %d max %d query time: %v",
		len(reposts), policy.MaxCountPerInterval, time.Since(tick))
	return reposts, nil
}
