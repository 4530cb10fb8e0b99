package workers

import (
	"time"

	"github.com/Asterisk-tech/moderatelyhelpfulbot/dao/mysql"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/logger"
)

const (
	// minRetention 窗口再短也至少留这么久，summary 命令还要看历史
	minRetention = 14 * 24 * time.Hour
	// actionedRetention 幂等记录的保留期
	actionedRetention = 90 * 24 * time.Hour
)

// PurgeOnce 清理窗口外的旧帖和过期的幂等记录。
// 被标记为违规或违规前置的帖子是封禁证据，清理时跳过
func PurgeOnce() error {
	now := time.Now().UTC()

	rows, err := mysql.SelectAllCommunities()
	if err != nil {
		return err
	}

	var purged int64
	for _, row := range rows {
		retention := time.Duration(row.MinPostIntervalMins) * time.Minute
		if retention < minRetention {
			retention = minRetention
		}
		n, err := mysql.PurgeOldPosts(row.CommunityName, now.Add(-retention))
		if err != nil {
			logger.ErrorWithStack(err)
			continue
		}
		purged += n
	}

	actioned, err := mysql.PurgeActionedBefore(now.Add(-actionedRetention))
	if err != nil {
		logger.ErrorWithStack(err)
	}
	logger.Infof("workers: purge removed %d post(s), %d actioned record(s)", purged, actioned)
	return nil
}
