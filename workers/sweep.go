package workers

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/Asterisk-tech/moderatelyhelpfulbot/dao/mysql"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/dao/redis"
	mhb "github.com/Asterisk-tech/moderatelyhelpfulbot/errors"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/logger"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/logic"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/models"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// sweepRound 用来交替快慢路径，见 SelectViolationCandidates
var sweepRound atomic.Int64

// SweepOnce 跑一轮违规检测扫描。redis 租约保证同时只有一个实例在扫，
// 时间预算到了就提前收尾，但不会在一个作者中途放弃
func SweepOnce() error {
	holder := fmt.Sprintf("%s-%d", hostname(), os.Getpid())
	ok, err := redis.AcquireSweepLease(holder)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrap(mhb.ErrSweepRunning, "workers:SweepOnce")
	}
	defer func() {
		if err := redis.ReleaseSweepLease(); err != nil {
			logger.ErrorWithStack(err)
		}
	}()

	round := sweepRound.Add(1)
	accurateEvery := int64(viper.GetInt("service.sweep.accurate_every"))
	fastPath := accurateEvery <= 0 || round%accurateEvery != 0

	budget := time.Duration(viper.GetInt64("service.sweep.time_budget")) * time.Second
	deadline := time.Now().Add(budget)

	rows, err := mysql.SelectAllCommunities()
	if err != nil {
		return err
	}

	checked := 0
	for _, row := range rows {
		community, err := logic.GetCommunity(row.CommunityName)
		if err != nil {
			// 配置坏了：提醒一次运营者，这个社区这轮跳过
			logic.NotifyConfigError(row, err)
			continue
		}

		candidates, err := mysql.SelectViolationCandidates(
			community.CommunityName,
			community.Policy.MinPostInterval,
			community.Policy.MaxCountPerInterval,
			fastPath,
		)
		if err != nil {
			logger.ErrorWithStack(err)
			continue
		}

		for _, candidate := range candidates {
			if time.Now().After(deadline) {
				logger.Infof("workers: sweep budget exhausted after %d author(s), will resume next round", checked)
				return nil
			}
			if err := redis.ExtendSweepLease(); err != nil {
				logger.ErrorWithStack(err)
			}
			checkAuthor(community, candidate.AuthorName)
			checked++
		}
	}
	logger.Debugf("workers: sweep round %d done, fast=%v, %d author(s) checked", round, fastPath, checked)
	return nil
}

// checkAuthor 把一个候选作者窗口内的未复查帖子挨个过状态机。
// 单帖失败只记日志，不中断对这个作者的其余处理
func checkAuthor(community *models.TrackedCommunity, author string) {
	since := time.Now().UTC().Add(-community.Policy.MinPostInterval)
	posts, err := mysql.SelectUnreviewedPosts(community.CommunityName, author, since)
	if err != nil {
		logger.ErrorWithStack(err)
		return
	}
	for _, post := range posts {
		if err := logic.CheckPost(community, post); err != nil {
			logger.Errorf("workers:checkAuthor: %s/%s post %s: %v",
				community.CommunityName, author, post.PostID, err)
		}
	}
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "mhb"
	}
	return h
}
